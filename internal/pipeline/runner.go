package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"mealforge/internal/domain"
	"mealforge/internal/infra"
	"mealforge/internal/nutrition"
	"mealforge/internal/progress"
	"mealforge/internal/providers/concept"
)

const defaultPollInterval = 2 * time.Second

// Runner drains queued batches with a small pool of workers. Chunks
// within one batch run strictly sequentially to respect the shared
// upstream rate limit; independent batches run concurrently up to the
// pool size.
type Runner struct {
	batches   domain.BatchRepository
	concepts  concept.Generator
	validator *nutrition.Validator
	persister *Persister
	images    *ImageStage
	broker    *progress.Broker
	logger    infra.Logger

	workers      int
	pollInterval time.Duration

	wg sync.WaitGroup
}

// NewRunner assembles the batch pipeline.
func NewRunner(
	batches domain.BatchRepository,
	concepts concept.Generator,
	validator *nutrition.Validator,
	persister *Persister,
	images *ImageStage,
	broker *progress.Broker,
	workers int,
	logger infra.Logger,
) *Runner {
	if workers <= 0 {
		workers = 1
	}
	return &Runner{
		batches:      batches,
		concepts:     concepts,
		validator:    validator,
		persister:    persister,
		images:       images,
		broker:       broker,
		logger:       logger,
		workers:      workers,
		pollInterval: defaultPollInterval,
	}
}

// Start launches the worker pool. Workers exit when ctx is cancelled;
// a batch already in flight is allowed to finish its current chunk.
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info().Int("workers", r.workers).Msg("pipeline: worker pool started")
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go func(worker int) {
			defer r.wg.Done()
			r.workLoop(ctx, worker)
		}(i)
	}
}

// Wait blocks until every worker has exited.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) workLoop(ctx context.Context, worker int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		batch, err := r.batches.ClaimQueued(ctx)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, context.Canceled) {
				r.logger.Error().Err(err).Int("worker", worker).Msg("pipeline: claim batch failed")
			}
			if !sleepCtx(ctx, r.pollInterval) {
				return
			}
			continue
		}

		r.logger.Info().
			Int("worker", worker).
			Str("batch_id", batch.ID.String()).
			Int("requested", batch.RequestedCount).
			Msg("pipeline: picked batch")
		r.runBatch(ctx, batch)
	}
}

// runBatch executes the whole pipeline for one claimed batch and always
// leaves it in exactly one terminal state.
func (r *Runner) runBatch(ctx context.Context, batch *domain.Batch) {
	r.broker.StartBatch(batch.ID, batch.RequestedCount)

	chunks := SplitChunks(batch.RequestedCount, batch.ChunkSize)
	saved := 0
	quotaHit := false

	for _, chunk := range chunks {
		if ctx.Err() != nil {
			break
		}

		persisted, quota := r.runChunk(ctx, batch, chunk)
		saved += persisted
		if quota {
			// The shared quota is gone for every remaining chunk too, so
			// dispatching them would only burn retries on certain failure.
			quotaHit = true
			break
		}
	}

	r.finishBatch(ctx, batch, saved, quotaHit)
}

// runChunk runs concept -> validate -> persist -> images for one chunk.
// It returns how many recipes were persisted and whether the provider
// quota was exhausted.
func (r *Runner) runChunk(ctx context.Context, batch *domain.Batch, chunk Chunk) (int, bool) {
	r.broker.SetPhase(batch.ID, "generating concepts")

	concepts, err := r.concepts.Generate(ctx, concept.Request{
		BatchID:            batch.ID.String(),
		ChunkIndex:         chunk.Index,
		Count:              chunk.Size,
		StartID:            chunk.StartID,
		MealTypes:          batch.MealTypes,
		DietaryConstraints: batch.DietaryConstraints,
		Locale:             batch.Locale,
	})
	if err != nil {
		r.broker.ReportError(batch.ID, chunk.Index, err)
		return 0, errors.Is(err, domain.ErrQuotaExceeded)
	}

	r.broker.SetPhase(batch.ID, "validating nutrition")
	valid, failures := r.validator.Filter(concepts)
	for _, failure := range failures {
		r.logger.Warn().
			Str("batch_id", batch.ID.String()).
			Int("chunk", chunk.Index).
			Msg("pipeline: dropped concept: " + failure.String())
		r.broker.ReportError(batch.ID, chunk.Index, fmt.Errorf("validation: %s", failure.String()))
	}
	if len(valid) == 0 {
		return 0, false
	}

	r.broker.SetPhase(batch.ID, "persisting recipes")
	ids := NewIdentifierMap()
	records, err := r.persister.Persist(ctx, batch, valid, ids)
	if err != nil {
		r.broker.ReportError(batch.ID, chunk.Index, err)
		return 0, false
	}
	r.broker.AddRecipesCompleted(batch.ID, len(records))
	if len(records) < len(valid) {
		r.broker.ReportError(batch.ID, chunk.Index,
			fmt.Errorf("persisted %d of %d recipes: %w", len(records), len(valid), domain.ErrStorageFailure))
	}

	if batch.GenerateImages && len(records) > 0 {
		r.broker.SetPhase(batch.ID, "generating images")
		underReview := batch.RequestedCount > r.persister.reviewThreshold
		r.images.Run(ctx, batch, chunk.Index, persistedConcepts(valid, ids), ids, underReview)
	}

	return len(records), false
}

// persistedConcepts keeps only the concepts whose transient id received a
// durable binding, preserving order.
func persistedConcepts(concepts []domain.RecipeConcept, ids *IdentifierMap) []domain.RecipeConcept {
	out := make([]domain.RecipeConcept, 0, len(concepts))
	for _, c := range concepts {
		if _, err := ids.Durable(c.RecipeID); err == nil {
			out = append(out, c)
		}
	}
	return out
}

func (r *Runner) finishBatch(ctx context.Context, batch *domain.Batch, saved int, quotaHit bool) {
	snapshot, _ := r.broker.Snapshot(batch.ID)

	var status domain.BatchStatus
	switch {
	case saved == 0:
		status = domain.BatchStatusFailed
		if len(snapshot.Errors) == 0 {
			// A batch that produced nothing must carry an explicit cause,
			// never an ambiguous "complete with 0 recipes".
			r.broker.ReportError(batch.ID, 0, errors.New("no recipes were generated"))
			snapshot, _ = r.broker.Snapshot(batch.ID)
		}
	case saved < batch.RequestedCount || len(snapshot.Errors) > 0 || quotaHit:
		status = domain.BatchStatusCompleteWithErrors
	default:
		status = domain.BatchStatusComplete
	}

	errMsg := summarizeErrors(snapshot.Errors)
	if err := r.batches.MarkTerminal(ctx, batch.ID, status, errMsg); err != nil {
		r.logger.Error().Err(err).Str("batch_id", batch.ID.String()).Msg("pipeline: mark terminal failed")
	}
	r.broker.Finish(batch.ID, progress.TerminalFor(status))

	r.logger.Info().
		Str("batch_id", batch.ID.String()).
		Str("status", string(status)).
		Int("saved", saved).
		Int("requested", batch.RequestedCount).
		Msg("pipeline: batch finished")
}

func summarizeErrors(errs []string) string {
	if len(errs) == 0 {
		return ""
	}
	const maxListed = 3
	listed := errs
	if len(listed) > maxListed {
		listed = listed[:maxListed]
	}
	summary := strings.Join(listed, "; ")
	if len(errs) > maxListed {
		summary = fmt.Sprintf("%s (and %d more)", summary, len(errs)-maxListed)
	}
	return summary
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
