package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mealforge/internal/domain"
)

// ReviewRepositoryPG implements domain.ReviewRepository. Every mutation is
// a single-row UPDATE guarded by the current state, so the state machine
// is enforced where concurrent approvers actually meet: in the database.
type ReviewRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewReviewRepository creates a new review-queue repository backed by PostgreSQL.
func NewReviewRepository(pool *pgxpool.Pool) *ReviewRepositoryPG {
	return &ReviewRepositoryPG{pool: pool}
}

// Create inserts a new queue entry.
func (r *ReviewRepositoryPG) Create(ctx context.Context, entry *domain.ReviewQueueEntry) error {
	query := `
INSERT INTO review_queue (id, recipe_id, batch_id, status, image_generation_status)
VALUES ($1, $2, $3, $4, $5);
`
	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.RecipeID,
		entry.BatchID,
		entry.Status,
		entry.ImageGenStatus,
	)
	return err
}

const reviewColumns = `id, recipe_id, batch_id, status, image_generation_status, reviewed_by, rejection_reason, created_at, reviewed_at`

// GetByID fetches a queue entry by its surrogate identifier.
func (r *ReviewRepositoryPG) GetByID(ctx context.Context, id uuid.UUID) (*domain.ReviewQueueEntry, error) {
	query := `SELECT ` + reviewColumns + ` FROM review_queue WHERE id = $1;`
	entry, err := scanReviewEntry(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return entry, nil
}

// List returns queue entries matching the filter, newest first.
func (r *ReviewRepositoryPG) List(ctx context.Context, filter domain.ReviewFilter) ([]domain.ReviewQueueEntry, error) {
	query := `SELECT ` + reviewColumns + ` FROM review_queue WHERE 1=1`
	args := []any{}
	if filter.BatchID != nil {
		args = append(args, *filter.BatchID)
		query += fmt.Sprintf(" AND batch_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.ReviewQueueEntry
	for rows.Next() {
		entry, err := scanReviewEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// SetImageStatus updates image progress for the entry owning recipeID.
// Entries already terminal are left untouched.
func (r *ReviewRepositoryPG) SetImageStatus(ctx context.Context, recipeID uuid.UUID, status domain.ImageGenStatus) error {
	query := `
UPDATE review_queue
SET image_generation_status = $2
WHERE recipe_id = $1 AND status NOT IN ('approved', 'rejected');
`
	tag, err := r.pool.Exec(ctx, query, recipeID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("review entry for recipe %s: %w", recipeID, domain.ErrNotFound)
	}
	return nil
}

// MarkReady advances pending_images -> ready_for_review. Without override
// the transition also requires image generation to be completed.
func (r *ReviewRepositoryPG) MarkReady(ctx context.Context, recipeID uuid.UUID, override bool) error {
	query := `
UPDATE review_queue
SET status = 'ready_for_review'
WHERE recipe_id = $1
  AND status = 'pending_images'
  AND (image_generation_status = 'completed' OR $2);
`
	tag, err := r.pool.Exec(ctx, query, recipeID, override)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.transitionError(ctx, recipeID)
	}
	return nil
}

// Approve performs the terminal approve transition for one entry.
func (r *ReviewRepositoryPG) Approve(ctx context.Context, entryID uuid.UUID, reviewer string) error {
	query := `
UPDATE review_queue
SET status = 'approved', reviewed_by = $2, reviewed_at = NOW()
WHERE id = $1 AND status = 'ready_for_review';
`
	tag, err := r.pool.Exec(ctx, query, entryID, reviewer)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.entryTransitionError(ctx, entryID)
	}
	return nil
}

// Reject performs the terminal reject transition for one entry.
func (r *ReviewRepositoryPG) Reject(ctx context.Context, entryID uuid.UUID, reviewer, reason string) error {
	query := `
UPDATE review_queue
SET status = 'rejected', reviewed_by = $2, rejection_reason = $3, reviewed_at = NOW()
WHERE id = $1 AND status = 'ready_for_review';
`
	tag, err := r.pool.Exec(ctx, query, entryID, reviewer, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.entryTransitionError(ctx, entryID)
	}
	return nil
}

// ListReady returns the ids of every entry currently ready_for_review for
// a batch, oldest first.
func (r *ReviewRepositoryPG) ListReady(ctx context.Context, batchID uuid.UUID) ([]uuid.UUID, error) {
	query := `
SELECT id
FROM review_queue
WHERE batch_id = $1 AND status = 'ready_for_review'
ORDER BY created_at ASC;
`
	rows, err := r.pool.Query(ctx, query, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// BatchProgress aggregates queue entries for one batch in a single query.
func (r *ReviewRepositoryPG) BatchProgress(ctx context.Context, batchID uuid.UUID) (*domain.ReviewBatchProgress, error) {
	query := `
SELECT
    COUNT(*),
    COUNT(*) FILTER (WHERE image_generation_status = 'completed'),
    COUNT(*) FILTER (WHERE image_generation_status IN ('pending', 'in_progress')),
    COUNT(*) FILTER (WHERE image_generation_status = 'failed'),
    COUNT(*) FILTER (WHERE status = 'ready_for_review'),
    COUNT(*) FILTER (WHERE status = 'approved'),
    COUNT(*) FILTER (WHERE status = 'rejected')
FROM review_queue
WHERE batch_id = $1;
`
	progress := domain.ReviewBatchProgress{BatchID: batchID}
	row := r.pool.QueryRow(ctx, query, batchID)
	if err := row.Scan(
		&progress.Total,
		&progress.ImagesGenerated,
		&progress.ImagesInProgress,
		&progress.ImagesFailed,
		&progress.ReadyForReview,
		&progress.Approved,
		&progress.Rejected,
	); err != nil {
		return nil, err
	}
	if progress.Total > 0 {
		reviewed := progress.Approved + progress.Rejected
		progress.PercentComplete = 100 * float64(reviewed) / float64(progress.Total)
	}
	return &progress, nil
}

// transitionError distinguishes a missing entry from an illegal transition
// after a guarded update matched no row, keyed by recipe id.
func (r *ReviewRepositoryPG) transitionError(ctx context.Context, recipeID uuid.UUID) error {
	query := `SELECT id FROM review_queue WHERE recipe_id = $1;`
	var id uuid.UUID
	if err := r.pool.QueryRow(ctx, query, recipeID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("review entry for recipe %s: %w", recipeID, domain.ErrNotFound)
		}
		return err
	}
	return fmt.Errorf("review entry for recipe %s: %w", recipeID, domain.ErrInvalidTransition)
}

func (r *ReviewRepositoryPG) entryTransitionError(ctx context.Context, entryID uuid.UUID) error {
	if _, err := r.GetByID(ctx, entryID); err != nil {
		return err
	}
	return fmt.Errorf("review entry %s: %w", entryID, domain.ErrInvalidTransition)
}

func scanReviewEntry(row pgx.Row) (*domain.ReviewQueueEntry, error) {
	var entry domain.ReviewQueueEntry
	if err := row.Scan(
		&entry.ID,
		&entry.RecipeID,
		&entry.BatchID,
		&entry.Status,
		&entry.ImageGenStatus,
		&entry.ReviewedBy,
		&entry.RejectionReason,
		&entry.CreatedAt,
		&entry.ReviewedAt,
	); err != nil {
		return nil, err
	}
	return &entry, nil
}
