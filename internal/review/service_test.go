package review

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mealforge/internal/domain"
)

type memReviewRepo struct {
	entries map[uuid.UUID]*domain.ReviewQueueEntry // keyed by entry id
	failOn  uuid.UUID                              // Approve/Reject fail for this entry id
}

func newMemReviewRepo() *memReviewRepo {
	return &memReviewRepo{entries: make(map[uuid.UUID]*domain.ReviewQueueEntry)}
}

func (m *memReviewRepo) add(batchID uuid.UUID, status domain.ReviewEntryStatus) *domain.ReviewQueueEntry {
	entry := &domain.ReviewQueueEntry{
		ID:       uuid.New(),
		RecipeID: uuid.New(),
		BatchID:  batchID,
		Status:   status,
	}
	m.entries[entry.ID] = entry
	return entry
}

func (m *memReviewRepo) Create(_ context.Context, entry *domain.ReviewQueueEntry) error {
	clone := *entry
	m.entries[entry.ID] = &clone
	return nil
}

func (m *memReviewRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.ReviewQueueEntry, error) {
	entry, ok := m.entries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *entry
	return &clone, nil
}

func (m *memReviewRepo) List(_ context.Context, filter domain.ReviewFilter) ([]domain.ReviewQueueEntry, error) {
	var out []domain.ReviewQueueEntry
	for _, entry := range m.entries {
		if filter.Status != "" && entry.Status != filter.Status {
			continue
		}
		out = append(out, *entry)
	}
	return out, nil
}

func (m *memReviewRepo) SetImageStatus(_ context.Context, recipeID uuid.UUID, status domain.ImageGenStatus) error {
	for _, entry := range m.entries {
		if entry.RecipeID == recipeID {
			entry.ImageGenStatus = status
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memReviewRepo) MarkReady(_ context.Context, recipeID uuid.UUID, override bool) error {
	for _, entry := range m.entries {
		if entry.RecipeID != recipeID {
			continue
		}
		if entry.Status != domain.ReviewEntryPendingImages {
			return domain.ErrInvalidTransition
		}
		if entry.ImageGenStatus != domain.ImageGenCompleted && !override {
			return domain.ErrInvalidTransition
		}
		entry.Status = domain.ReviewEntryReadyForReview
		return nil
	}
	return domain.ErrNotFound
}

func (m *memReviewRepo) Approve(_ context.Context, entryID uuid.UUID, _ string) error {
	return m.transition(entryID, domain.ReviewEntryApproved)
}

func (m *memReviewRepo) Reject(_ context.Context, entryID uuid.UUID, _, reason string) error {
	if err := m.transition(entryID, domain.ReviewEntryRejected); err != nil {
		return err
	}
	m.entries[entryID].RejectionReason = reason
	return nil
}

func (m *memReviewRepo) transition(entryID uuid.UUID, to domain.ReviewEntryStatus) error {
	if entryID == m.failOn {
		return domain.ErrStorageFailure
	}
	entry, ok := m.entries[entryID]
	if !ok {
		return domain.ErrNotFound
	}
	if entry.Status != domain.ReviewEntryReadyForReview {
		return domain.ErrInvalidTransition
	}
	entry.Status = to
	return nil
}

func (m *memReviewRepo) ListReady(_ context.Context, batchID uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, entry := range m.entries {
		if entry.BatchID == batchID && entry.Status == domain.ReviewEntryReadyForReview {
			out = append(out, entry.ID)
		}
	}
	return out, nil
}

func (m *memReviewRepo) BatchProgress(_ context.Context, batchID uuid.UUID) (*domain.ReviewBatchProgress, error) {
	progress := &domain.ReviewBatchProgress{BatchID: batchID}
	for _, entry := range m.entries {
		if entry.BatchID != batchID {
			continue
		}
		progress.Total++
		switch entry.Status {
		case domain.ReviewEntryReadyForReview:
			progress.ReadyForReview++
		case domain.ReviewEntryApproved:
			progress.Approved++
		case domain.ReviewEntryRejected:
			progress.Rejected++
		}
	}
	if progress.Total > 0 {
		progress.PercentComplete = 100 * float64(progress.Approved+progress.Rejected) / float64(progress.Total)
	}
	return progress, nil
}

type memRecipeRepo struct {
	statuses map[uuid.UUID]domain.ReviewStatus
}

func newMemRecipeRepo() *memRecipeRepo {
	return &memRecipeRepo{statuses: make(map[uuid.UUID]domain.ReviewStatus)}
}

func (m *memRecipeRepo) Create(_ context.Context, recipe *domain.Recipe) error {
	m.statuses[recipe.ID] = recipe.ReviewStatus
	return nil
}

func (m *memRecipeRepo) GetByID(_ context.Context, _ uuid.UUID) (*domain.Recipe, error) {
	return nil, domain.ErrNotFound
}

func (m *memRecipeRepo) SetImageURL(_ context.Context, _ uuid.UUID, _ string) error {
	return nil
}

func (m *memRecipeRepo) SetReviewStatus(_ context.Context, id uuid.UUID, status domain.ReviewStatus) error {
	m.statuses[id] = status
	return nil
}

func newTestService() (*Service, *memReviewRepo, *memRecipeRepo) {
	reviews := newMemReviewRepo()
	recipes := newMemRecipeRepo()
	return NewService(reviews, recipes, zerolog.Nop()), reviews, recipes
}

func TestApprovePublishesRecipe(t *testing.T) {
	svc, reviews, recipes := newTestService()
	entry := reviews.add(uuid.New(), domain.ReviewEntryReadyForReview)

	if err := svc.Approve(context.Background(), entry.ID, "chef@example.com"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got := reviews.entries[entry.ID].Status; got != domain.ReviewEntryApproved {
		t.Fatalf("entry status = %s, want approved", got)
	}
	if got := recipes.statuses[entry.RecipeID]; got != domain.ReviewStatusApproved {
		t.Fatalf("recipe status = %s, want approved", got)
	}
}

func TestApproveRequiresReadyState(t *testing.T) {
	svc, reviews, _ := newTestService()
	entry := reviews.add(uuid.New(), domain.ReviewEntryPendingImages)

	err := svc.Approve(context.Background(), entry.ID, "chef@example.com")
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestApproveUnknownEntry(t *testing.T) {
	svc, _, _ := newTestService()
	err := svc.Approve(context.Background(), uuid.New(), "chef@example.com")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestApproveRejectsEmptyReviewer(t *testing.T) {
	svc, reviews, _ := newTestService()
	entry := reviews.add(uuid.New(), domain.ReviewEntryReadyForReview)

	if err := svc.Approve(context.Background(), entry.ID, ""); !errors.Is(err, domain.ErrMalformedInput) {
		t.Fatalf("err = %v, want ErrMalformedInput", err)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	svc, reviews, _ := newTestService()
	entry := reviews.add(uuid.New(), domain.ReviewEntryReadyForReview)

	if err := svc.Reject(context.Background(), entry.ID, "chef@example.com", "   "); !errors.Is(err, domain.ErrMalformedInput) {
		t.Fatalf("err = %v, want ErrMalformedInput", err)
	}
}

func TestRejectMarksRecipeRejected(t *testing.T) {
	svc, reviews, recipes := newTestService()
	entry := reviews.add(uuid.New(), domain.ReviewEntryReadyForReview)

	if err := svc.Reject(context.Background(), entry.ID, "chef@example.com", "burnt"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got := reviews.entries[entry.ID].RejectionReason; got != "burnt" {
		t.Fatalf("rejection reason = %q, want %q", got, "burnt")
	}
	if got := recipes.statuses[entry.RecipeID]; got != domain.ReviewStatusRejected {
		t.Fatalf("recipe status = %s, want rejected", got)
	}
}

func TestApproveAllReadyContinuesPastFailures(t *testing.T) {
	svc, reviews, _ := newTestService()
	batchID := uuid.New()

	good1 := reviews.add(batchID, domain.ReviewEntryReadyForReview)
	bad := reviews.add(batchID, domain.ReviewEntryReadyForReview)
	good2 := reviews.add(batchID, domain.ReviewEntryReadyForReview)
	reviews.add(batchID, domain.ReviewEntryPendingImages) // not ready, ignored
	reviews.failOn = bad.ID

	approved, err := svc.ApproveAllReady(context.Background(), batchID, "chef@example.com")
	if err == nil {
		t.Fatal("expected an error naming the failed entry")
	}
	if !strings.Contains(err.Error(), bad.ID.String()) {
		t.Fatalf("error %q does not name the failed entry", err)
	}
	if approved != 2 {
		t.Fatalf("approved %d entries, want 2", approved)
	}
	for _, id := range []uuid.UUID{good1.ID, good2.ID} {
		if got := reviews.entries[id].Status; got != domain.ReviewEntryApproved {
			t.Fatalf("entry %s status = %s, want approved", id, got)
		}
	}
}

func TestOverrideReady(t *testing.T) {
	svc, reviews, _ := newTestService()
	entry := reviews.add(uuid.New(), domain.ReviewEntryPendingImages)
	reviews.entries[entry.ID].ImageGenStatus = domain.ImageGenFailed

	if err := svc.OverrideReady(context.Background(), entry.RecipeID); err != nil {
		t.Fatalf("override: %v", err)
	}
	if got := reviews.entries[entry.ID].Status; got != domain.ReviewEntryReadyForReview {
		t.Fatalf("entry status = %s, want ready_for_review", got)
	}
}

func TestProgressAggregates(t *testing.T) {
	svc, reviews, _ := newTestService()
	batchID := uuid.New()
	reviews.add(batchID, domain.ReviewEntryApproved)
	reviews.add(batchID, domain.ReviewEntryRejected)
	reviews.add(batchID, domain.ReviewEntryReadyForReview)
	reviews.add(batchID, domain.ReviewEntryPendingImages)
	reviews.add(uuid.New(), domain.ReviewEntryApproved) // other batch

	progress, err := svc.Progress(context.Background(), batchID)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progress.Total != 4 {
		t.Fatalf("total = %d, want 4", progress.Total)
	}
	if progress.Approved != 1 || progress.Rejected != 1 || progress.ReadyForReview != 1 {
		t.Fatalf("unexpected aggregates: %+v", progress)
	}
	if progress.PercentComplete != 50 {
		t.Fatalf("percent complete = %v, want 50", progress.PercentComplete)
	}
}
