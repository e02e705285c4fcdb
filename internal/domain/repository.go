package domain

import (
	"context"

	"github.com/google/uuid"
)

// BatchRepository defines persistence for batch entities.
type BatchRepository interface {
	Create(ctx context.Context, batch *Batch) error
	// ClaimQueued atomically claims the oldest queued batch and moves it
	// to running. Returns ErrNotFound when no batch is available.
	ClaimQueued(ctx context.Context) (*Batch, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Batch, error)
	// MarkTerminal sets a terminal status exactly once. Returns
	// ErrInvalidTransition if the batch is already terminal.
	MarkTerminal(ctx context.Context, id uuid.UUID, status BatchStatus, errMsg string) error
}

// RecipeRepository defines persistence for recipe records.
type RecipeRepository interface {
	Create(ctx context.Context, recipe *Recipe) error
	GetByID(ctx context.Context, id uuid.UUID) (*Recipe, error)
	// SetImageURL replaces the placeholder image URL. A zero-row update
	// returns ErrNotFound; it never writes silently to no row.
	SetImageURL(ctx context.Context, id uuid.UUID, url string) error
	SetReviewStatus(ctx context.Context, id uuid.UUID, status ReviewStatus) error
}

// ReviewRepository defines persistence for the review queue. Every
// mutation is a row-level atomic update guarded by the current state, so
// concurrent approvals on different entries never contend.
type ReviewRepository interface {
	Create(ctx context.Context, entry *ReviewQueueEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*ReviewQueueEntry, error)
	List(ctx context.Context, filter ReviewFilter) ([]ReviewQueueEntry, error)
	// SetImageStatus updates image progress for the entry owning recipeID.
	SetImageStatus(ctx context.Context, recipeID uuid.UUID, status ImageGenStatus) error
	// MarkReady advances pending_images -> ready_for_review. Unless
	// override is set it requires image generation to be completed.
	MarkReady(ctx context.Context, recipeID uuid.UUID, override bool) error
	Approve(ctx context.Context, entryID uuid.UUID, reviewer string) error
	Reject(ctx context.Context, entryID uuid.UUID, reviewer, reason string) error
	ListReady(ctx context.Context, batchID uuid.UUID) ([]uuid.UUID, error)
	BatchProgress(ctx context.Context, batchID uuid.UUID) (*ReviewBatchProgress, error)
}
