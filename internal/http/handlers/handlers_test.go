package handlers

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"mealforge/internal/domain"
)

type stubBatchRepo struct {
	mu      sync.Mutex
	batches map[uuid.UUID]*domain.Batch
	failAll bool
}

func newStubBatchRepo() *stubBatchRepo {
	return &stubBatchRepo{batches: make(map[uuid.UUID]*domain.Batch)}
}

func (s *stubBatchRepo) Create(_ context.Context, batch *domain.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return domain.ErrStorageFailure
	}
	clone := *batch
	s.batches[batch.ID] = &clone
	return nil
}

func (s *stubBatchRepo) ClaimQueued(_ context.Context) (*domain.Batch, error) {
	return nil, domain.ErrNotFound
}

func (s *stubBatchRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batches[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *batch
	return &clone, nil
}

func (s *stubBatchRepo) MarkTerminal(_ context.Context, id uuid.UUID, status domain.BatchStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batches[id]
	if !ok {
		return domain.ErrNotFound
	}
	batch.Status = status
	batch.ErrorMessage = errMsg
	return nil
}

type stubRecipeRepo struct {
	mu       sync.Mutex
	statuses map[uuid.UUID]domain.ReviewStatus
}

func newStubRecipeRepo() *stubRecipeRepo {
	return &stubRecipeRepo{statuses: make(map[uuid.UUID]domain.ReviewStatus)}
}

func (s *stubRecipeRepo) Create(_ context.Context, recipe *domain.Recipe) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[recipe.ID] = recipe.ReviewStatus
	return nil
}

func (s *stubRecipeRepo) GetByID(_ context.Context, _ uuid.UUID) (*domain.Recipe, error) {
	return nil, domain.ErrNotFound
}

func (s *stubRecipeRepo) SetImageURL(_ context.Context, _ uuid.UUID, _ string) error {
	return nil
}

func (s *stubRecipeRepo) SetReviewStatus(_ context.Context, id uuid.UUID, status domain.ReviewStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[id] = status
	return nil
}

type stubReviewRepo struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*domain.ReviewQueueEntry
}

func newStubReviewRepo() *stubReviewRepo {
	return &stubReviewRepo{entries: make(map[uuid.UUID]*domain.ReviewQueueEntry)}
}

func (s *stubReviewRepo) add(status domain.ReviewEntryStatus) *domain.ReviewQueueEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := &domain.ReviewQueueEntry{
		ID:       uuid.New(),
		RecipeID: uuid.New(),
		BatchID:  uuid.New(),
		Status:   status,
	}
	s.entries[entry.ID] = entry
	return entry
}

func (s *stubReviewRepo) Create(_ context.Context, entry *domain.ReviewQueueEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *entry
	s.entries[entry.ID] = &clone
	return nil
}

func (s *stubReviewRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.ReviewQueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *entry
	return &clone, nil
}

func (s *stubReviewRepo) List(_ context.Context, filter domain.ReviewFilter) ([]domain.ReviewQueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ReviewQueueEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		if filter.BatchID != nil && entry.BatchID != *filter.BatchID {
			continue
		}
		if filter.Status != "" && entry.Status != filter.Status {
			continue
		}
		out = append(out, *entry)
	}
	return out, nil
}

func (s *stubReviewRepo) SetImageStatus(_ context.Context, recipeID uuid.UUID, status domain.ImageGenStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.entries {
		if entry.RecipeID == recipeID {
			entry.ImageGenStatus = status
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *stubReviewRepo) MarkReady(_ context.Context, recipeID uuid.UUID, override bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.entries {
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

func (s *stubReviewRepo) Approve(_ context.Context, entryID uuid.UUID, reviewer string) error {
	return s.transition(entryID, domain.ReviewEntryApproved, reviewer, "")
}

func (s *stubReviewRepo) Reject(_ context.Context, entryID uuid.UUID, reviewer, reason string) error {
	return s.transition(entryID, domain.ReviewEntryRejected, reviewer, reason)
}

func (s *stubReviewRepo) transition(entryID uuid.UUID, to domain.ReviewEntryStatus, reviewer, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[entryID]
	if !ok {
		return domain.ErrNotFound
	}
	if entry.Status != domain.ReviewEntryReadyForReview {
		return domain.ErrInvalidTransition
	}
	entry.Status = to
	entry.ReviewedBy = reviewer
	entry.RejectionReason = reason
	return nil
}

func (s *stubReviewRepo) ListReady(_ context.Context, batchID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []uuid.UUID
	for _, entry := range s.entries {
		if entry.BatchID == batchID && entry.Status == domain.ReviewEntryReadyForReview {
			out = append(out, entry.ID)
		}
	}
	return out, nil
}

func (s *stubReviewRepo) BatchProgress(_ context.Context, batchID uuid.UUID) (*domain.ReviewBatchProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	progress := &domain.ReviewBatchProgress{BatchID: batchID}
	for _, entry := range s.entries {
		if entry.BatchID != batchID {
			continue
		}
		progress.Total++
	}
	return progress, nil
}
