// reviewctl is the admin command line for the recipe review queue. It
// talks straight to the database, so it works even when the API is down.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"mealforge/internal/adapter/repo"
	"mealforge/internal/domain"
	"mealforge/internal/infra"
	"mealforge/internal/review"
)

func main() {
	var (
		listFlag       bool
		statusFlag     string
		batchFlag      string
		limitFlag      int
		approveFlag    string
		rejectFlag     string
		reasonFlag     string
		approveAllFlag string
		progressFlag   string
		overrideFlag   string
		reviewerFlag   string
	)

	flag.BoolVar(&listFlag, "list", false, "list review queue entries")
	flag.StringVar(&statusFlag, "status", "", "filter -list by status (pending_images, ready_for_review, approved, rejected)")
	flag.StringVar(&batchFlag, "batch", "", "filter -list by batch ID (UUID)")
	flag.IntVar(&limitFlag, "limit", 50, "max entries for -list")
	flag.StringVar(&approveFlag, "approve", "", "approve one entry by ID (UUID)")
	flag.StringVar(&rejectFlag, "reject", "", "reject one entry by ID (UUID), requires -reason")
	flag.StringVar(&reasonFlag, "reason", "", "rejection reason for -reject")
	flag.StringVar(&approveAllFlag, "approve-all", "", "approve every ready entry of a batch ID (UUID)")
	flag.StringVar(&progressFlag, "progress", "", "show review progress for a batch ID (UUID)")
	flag.StringVar(&overrideFlag, "override-ready", "", "force a recipe ID (UUID) to ready_for_review without an image")
	flag.StringVar(&reviewerFlag, "reviewer", "", "reviewer identity recorded on approvals and rejections")
	flag.Parse()

	_ = godotenv.Load()
	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "reviewctl").Logger()
	svc := review.NewService(repo.NewReviewRepository(pool), repo.NewRecipeRepository(pool), logger)

	switch {
	case listFlag:
		runList(ctx, svc, statusFlag, batchFlag, limitFlag)
	case approveFlag != "":
		entryID := parseUUIDArg(approveFlag, "-approve")
		if err := svc.Approve(ctx, entryID, requireReviewer(reviewerFlag)); err != nil {
			exitWithError(err)
		}
		fmt.Printf("entry %s approved\n", entryID)
	case rejectFlag != "":
		entryID := parseUUIDArg(rejectFlag, "-reject")
		if strings.TrimSpace(reasonFlag) == "" {
			exitWithError(errors.New("-reject requires -reason"))
		}
		if err := svc.Reject(ctx, entryID, requireReviewer(reviewerFlag), reasonFlag); err != nil {
			exitWithError(err)
		}
		fmt.Printf("entry %s rejected\n", entryID)
	case approveAllFlag != "":
		batchID := parseUUIDArg(approveAllFlag, "-approve-all")
		approved, err := svc.ApproveAllReady(ctx, batchID, requireReviewer(reviewerFlag))
		if err != nil {
			fmt.Fprintf(os.Stderr, "partial: %v\n", err)
		}
		fmt.Printf("approved %d entries in batch %s\n", approved, batchID)
	case progressFlag != "":
		batchID := parseUUIDArg(progressFlag, "-progress")
		progress, err := svc.Progress(ctx, batchID)
		if err != nil {
			exitWithError(err)
		}
		fmt.Printf("batch %s: total=%d ready=%d approved=%d rejected=%d images(ok=%d failed=%d) %.1f%% reviewed\n",
			batchID, progress.Total, progress.ReadyForReview, progress.Approved, progress.Rejected,
			progress.ImagesGenerated, progress.ImagesFailed, progress.PercentComplete)
	case overrideFlag != "":
		recipeID := parseUUIDArg(overrideFlag, "-override-ready")
		if err := svc.OverrideReady(ctx, recipeID); err != nil {
			exitWithError(err)
		}
		fmt.Printf("recipe %s forced to ready_for_review\n", recipeID)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func runList(ctx context.Context, svc *review.Service, status, batch string, limit int) {
	filter := domain.ReviewFilter{Limit: limit}
	if status != "" {
		filter.Status = domain.ReviewEntryStatus(status)
	}
	if batch != "" {
		id := parseUUIDArg(batch, "-batch")
		filter.BatchID = &id
	}

	entries, err := svc.List(ctx, filter)
	if err != nil {
		exitWithError(err)
	}
	if len(entries) == 0 {
		fmt.Println("no entries")
		return
	}
	for _, entry := range entries {
		line := fmt.Sprintf("%s  recipe=%s batch=%s status=%s image=%s",
			entry.ID, entry.RecipeID, entry.BatchID, entry.Status, entry.ImageGenStatus)
		if entry.ReviewedBy != "" {
			line += " reviewed_by=" + entry.ReviewedBy
		}
		if entry.RejectionReason != "" {
			line += fmt.Sprintf(" reason=%q", entry.RejectionReason)
		}
		fmt.Println(line)
	}
}

func requireReviewer(reviewer string) string {
	reviewer = strings.TrimSpace(reviewer)
	if reviewer == "" {
		exitWithError(errors.New("-reviewer is required"))
	}
	return reviewer
}

func parseUUIDArg(raw, flagName string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		exitWithError(fmt.Errorf("%s expects a UUID: %w", flagName, err))
	}
	return id
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
