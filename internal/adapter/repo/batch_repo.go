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

// BatchRepositoryPG implements domain.BatchRepository.
type BatchRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewBatchRepository creates a new batch repository backed by PostgreSQL.
func NewBatchRepository(pool *pgxpool.Pool) *BatchRepositoryPG {
	return &BatchRepositoryPG{pool: pool}
}

// Create inserts a new batch record.
func (r *BatchRepositoryPG) Create(ctx context.Context, batch *domain.Batch) error {
	query := `
INSERT INTO batches (id, requested_count, chunk_size, meal_types, dietary_constraints, generate_images, locale, status, error_message)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
`
	_, err := r.pool.Exec(ctx, query,
		batch.ID,
		batch.RequestedCount,
		batch.ChunkSize,
		batch.MealTypes,
		batch.DietaryConstraints,
		batch.GenerateImages,
		batch.Locale,
		batch.Status,
		batch.ErrorMessage,
	)
	return err
}

// ClaimQueued claims the oldest queued batch using SKIP LOCKED so that
// concurrent workers never pick up the same batch.
func (r *BatchRepositoryPG) ClaimQueued(ctx context.Context) (*domain.Batch, error) {
	query := `
WITH next_batch AS (
    SELECT id
    FROM batches
    WHERE status = 'queued'
    ORDER BY created_at ASC
    FOR UPDATE SKIP LOCKED
    LIMIT 1
),
claimed AS (
    UPDATE batches
    SET status = 'running', updated_at = NOW()
    WHERE id IN (SELECT id FROM next_batch)
    RETURNING id, requested_count, chunk_size, meal_types, dietary_constraints, generate_images, locale, status, error_message, created_at, updated_at
)
SELECT * FROM claimed;
`
	row := r.pool.QueryRow(ctx, query)
	batch, err := scanBatch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return batch, nil
}

// GetByID fetches a batch by its identifier.
func (r *BatchRepositoryPG) GetByID(ctx context.Context, id uuid.UUID) (*domain.Batch, error) {
	query := `
SELECT id, requested_count, chunk_size, meal_types, dietary_constraints, generate_images, locale, status, error_message, created_at, updated_at
FROM batches
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, query, id)
	batch, err := scanBatch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return batch, nil
}

// MarkTerminal sets a terminal status. The guard on the current status
// enforces the terminal-once-set invariant at the row level.
func (r *BatchRepositoryPG) MarkTerminal(ctx context.Context, id uuid.UUID, status domain.BatchStatus, errMsg string) error {
	if !status.Terminal() {
		return fmt.Errorf("mark terminal with non-terminal status %q: %w", status, domain.ErrInvalidTransition)
	}
	query := `
UPDATE batches
SET status = $2, error_message = $3, updated_at = NOW()
WHERE id = $1 AND status NOT IN ('complete', 'complete_with_errors', 'failed');
`
	tag, err := r.pool.Exec(ctx, query, id, status, errMsg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("batch %s already terminal: %w", id, domain.ErrInvalidTransition)
	}
	return nil
}

func scanBatch(row pgx.Row) (*domain.Batch, error) {
	var batch domain.Batch
	if err := row.Scan(
		&batch.ID,
		&batch.RequestedCount,
		&batch.ChunkSize,
		&batch.MealTypes,
		&batch.DietaryConstraints,
		&batch.GenerateImages,
		&batch.Locale,
		&batch.Status,
		&batch.ErrorMessage,
		&batch.CreatedAt,
		&batch.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &batch, nil
}
