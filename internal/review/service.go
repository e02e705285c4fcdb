// Package review exposes the human approval workflow over the review
// queue. Every mutation is row-scoped: approving one entry never touches
// or waits on any other entry.
package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"mealforge/internal/domain"
	"mealforge/internal/infra"
)

// Service coordinates review-queue transitions with the recipe records
// behind them.
type Service struct {
	reviews domain.ReviewRepository
	recipes domain.RecipeRepository
	logger  infra.Logger
}

func NewService(reviews domain.ReviewRepository, recipes domain.RecipeRepository, logger infra.Logger) *Service {
	return &Service{reviews: reviews, recipes: recipes, logger: logger}
}

// Approve moves a ready_for_review entry to approved and publishes the
// recipe. Entries in any other state return ErrInvalidTransition.
func (s *Service) Approve(ctx context.Context, entryID uuid.UUID, reviewer string) error {
	if reviewer == "" {
		return fmt.Errorf("approve entry %s: empty reviewer: %w", entryID, domain.ErrMalformedInput)
	}
	entry, err := s.reviews.GetByID(ctx, entryID)
	if err != nil {
		return fmt.Errorf("approve entry %s: %w", entryID, err)
	}
	if err := s.reviews.Approve(ctx, entryID, reviewer); err != nil {
		return fmt.Errorf("approve entry %s: %w", entryID, err)
	}
	if err := s.recipes.SetReviewStatus(ctx, entry.RecipeID, domain.ReviewStatusApproved); err != nil {
		// The queue row is already approved; surface the mismatch instead
		// of leaving the recipe silently unpublished.
		return fmt.Errorf("approve entry %s: publish recipe %s: %w", entryID, entry.RecipeID, err)
	}
	s.logger.Info().
		Str("entry_id", entryID.String()).
		Str("recipe_id", entry.RecipeID.String()).
		Str("reviewer", reviewer).
		Msg("review: entry approved")
	return nil
}

// Reject moves a ready_for_review entry to rejected with a required
// reason and marks the recipe rejected.
func (s *Service) Reject(ctx context.Context, entryID uuid.UUID, reviewer, reason string) error {
	if reviewer == "" {
		return fmt.Errorf("reject entry %s: empty reviewer: %w", entryID, domain.ErrMalformedInput)
	}
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("reject entry %s: empty reason: %w", entryID, domain.ErrMalformedInput)
	}
	entry, err := s.reviews.GetByID(ctx, entryID)
	if err != nil {
		return fmt.Errorf("reject entry %s: %w", entryID, err)
	}
	if err := s.reviews.Reject(ctx, entryID, reviewer, reason); err != nil {
		return fmt.Errorf("reject entry %s: %w", entryID, err)
	}
	if err := s.recipes.SetReviewStatus(ctx, entry.RecipeID, domain.ReviewStatusRejected); err != nil {
		return fmt.Errorf("reject entry %s: mark recipe %s: %w", entryID, entry.RecipeID, err)
	}
	s.logger.Info().
		Str("entry_id", entryID.String()).
		Str("recipe_id", entry.RecipeID.String()).
		Str("reviewer", reviewer).
		Msg("review: entry rejected")
	return nil
}

// ApproveAllReady approves every ready_for_review entry of a batch.
// Entries are independent: one failure is recorded and the sweep
// continues. Returns how many entries were approved.
func (s *Service) ApproveAllReady(ctx context.Context, batchID uuid.UUID, reviewer string) (int, error) {
	if reviewer == "" {
		return 0, fmt.Errorf("approve all for batch %s: empty reviewer: %w", batchID, domain.ErrMalformedInput)
	}
	ready, err := s.reviews.ListReady(ctx, batchID)
	if err != nil {
		return 0, fmt.Errorf("approve all for batch %s: %w", batchID, err)
	}

	approved := 0
	var failed []string
	for _, entryID := range ready {
		if err := s.Approve(ctx, entryID, reviewer); err != nil {
			s.logger.Warn().Err(err).Str("entry_id", entryID.String()).Msg("review: bulk approve entry failed")
			failed = append(failed, entryID.String())
			continue
		}
		approved++
	}
	if len(failed) > 0 {
		return approved, fmt.Errorf("approve all for batch %s: %d of %d entries failed: %s",
			batchID, len(failed), len(ready), strings.Join(failed, ", "))
	}
	return approved, nil
}

// OverrideReady force-advances a pending_images entry to ready_for_review
// regardless of its image generation outcome.
func (s *Service) OverrideReady(ctx context.Context, recipeID uuid.UUID) error {
	if err := s.reviews.MarkReady(ctx, recipeID, true); err != nil {
		return fmt.Errorf("override ready for recipe %s: %w", recipeID, err)
	}
	s.logger.Info().Str("recipe_id", recipeID.String()).Msg("review: entry forced ready without image")
	return nil
}

// List returns queue entries matching the filter.
func (s *Service) List(ctx context.Context, filter domain.ReviewFilter) ([]domain.ReviewQueueEntry, error) {
	entries, err := s.reviews.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list review entries: %w", err)
	}
	return entries, nil
}

// Progress returns the aggregate review state of one batch.
func (s *Service) Progress(ctx context.Context, batchID uuid.UUID) (*domain.ReviewBatchProgress, error) {
	progress, err := s.reviews.BatchProgress(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("review progress for batch %s: %w", batchID, err)
	}
	return progress, nil
}
