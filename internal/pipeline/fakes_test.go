package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"mealforge/internal/domain"
	"mealforge/internal/providers/concept"
	imageprovider "mealforge/internal/providers/image"
)

type fakeBatchRepo struct {
	mu             sync.Mutex
	queue          []*domain.Batch
	terminalStatus domain.BatchStatus
	terminalMsg    string
	terminalCalls  int
}

func (f *fakeBatchRepo) Create(_ context.Context, batch *domain.Batch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, batch)
	return nil
}

func (f *fakeBatchRepo) ClaimQueued(_ context.Context) (*domain.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return nil, domain.ErrNotFound
	}
	batch := f.queue[0]
	f.queue = f.queue[1:]
	batch.Status = domain.BatchStatusRunning
	return batch, nil
}

func (f *fakeBatchRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Batch, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeBatchRepo) MarkTerminal(_ context.Context, _ uuid.UUID, status domain.BatchStatus, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.terminalCalls > 0 {
		return domain.ErrInvalidTransition
	}
	f.terminalCalls++
	f.terminalStatus = status
	f.terminalMsg = errMsg
	return nil
}

type fakeRecipeRepo struct {
	mu       sync.Mutex
	recipes  map[uuid.UUID]*domain.Recipe
	failName string // Create fails for recipes with this name
}

func newFakeRecipeRepo() *fakeRecipeRepo {
	return &fakeRecipeRepo{recipes: make(map[uuid.UUID]*domain.Recipe)}
}

func (f *fakeRecipeRepo) Create(_ context.Context, recipe *domain.Recipe) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failName != "" && recipe.Name == f.failName {
		return fmt.Errorf("insert %q: %w", recipe.Name, domain.ErrStorageFailure)
	}
	clone := *recipe
	f.recipes[recipe.ID] = &clone
	return nil
}

func (f *fakeRecipeRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Recipe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	recipe, ok := f.recipes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *recipe
	return &clone, nil
}

func (f *fakeRecipeRepo) SetImageURL(_ context.Context, id uuid.UUID, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	recipe, ok := f.recipes[id]
	if !ok {
		return domain.ErrNotFound
	}
	recipe.ImageURL = url
	return nil
}

func (f *fakeRecipeRepo) SetReviewStatus(_ context.Context, id uuid.UUID, status domain.ReviewStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	recipe, ok := f.recipes[id]
	if !ok {
		return domain.ErrNotFound
	}
	recipe.ReviewStatus = status
	return nil
}

func (f *fakeRecipeRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.recipes)
}

type fakeReviewRepo struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*domain.ReviewQueueEntry // keyed by recipe id
}

func newFakeReviewRepo() *fakeReviewRepo {
	return &fakeReviewRepo{entries: make(map[uuid.UUID]*domain.ReviewQueueEntry)}
}

func (f *fakeReviewRepo) Create(_ context.Context, entry *domain.ReviewQueueEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *entry
	f.entries[entry.RecipeID] = &clone
	return nil
}

func (f *fakeReviewRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.ReviewQueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, entry := range f.entries {
		if entry.ID == id {
			clone := *entry
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeReviewRepo) List(_ context.Context, _ domain.ReviewFilter) ([]domain.ReviewQueueEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ReviewQueueEntry, 0, len(f.entries))
	for _, entry := range f.entries {
		out = append(out, *entry)
	}
	return out, nil
}

func (f *fakeReviewRepo) SetImageStatus(_ context.Context, recipeID uuid.UUID, status domain.ImageGenStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[recipeID]
	if !ok {
		return domain.ErrNotFound
	}
	entry.ImageGenStatus = status
	return nil
}

func (f *fakeReviewRepo) MarkReady(_ context.Context, recipeID uuid.UUID, override bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[recipeID]
	if !ok {
		return domain.ErrNotFound
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

func (f *fakeReviewRepo) Approve(_ context.Context, entryID uuid.UUID, _ string) error {
	return f.transition(entryID, domain.ReviewEntryApproved)
}

func (f *fakeReviewRepo) Reject(_ context.Context, entryID uuid.UUID, _, _ string) error {
	return f.transition(entryID, domain.ReviewEntryRejected)
}

func (f *fakeReviewRepo) transition(entryID uuid.UUID, to domain.ReviewEntryStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, entry := range f.entries {
		if entry.ID != entryID {
			continue
		}
		if entry.Status != domain.ReviewEntryReadyForReview {
			return domain.ErrInvalidTransition
		}
		entry.Status = to
		return nil
	}
	return domain.ErrNotFound
}

func (f *fakeReviewRepo) ListReady(_ context.Context, batchID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []uuid.UUID
	for _, entry := range f.entries {
		if entry.BatchID == batchID && entry.Status == domain.ReviewEntryReadyForReview {
			out = append(out, entry.ID)
		}
	}
	return out, nil
}

func (f *fakeReviewRepo) BatchProgress(_ context.Context, batchID uuid.UUID) (*domain.ReviewBatchProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	progress := &domain.ReviewBatchProgress{BatchID: batchID}
	for _, entry := range f.entries {
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
		switch entry.ImageGenStatus {
		case domain.ImageGenCompleted:
			progress.ImagesGenerated++
		case domain.ImageGenInProgress:
			progress.ImagesInProgress++
		case domain.ImageGenFailed:
			progress.ImagesFailed++
		}
	}
	if progress.Total > 0 {
		progress.PercentComplete = 100 * float64(progress.Approved+progress.Rejected) / float64(progress.Total)
	}
	return progress, nil
}

func (f *fakeReviewRepo) statusByRecipe(recipeID uuid.UUID) (domain.ReviewEntryStatus, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[recipeID]
	if !ok {
		return "", false
	}
	return entry.Status, true
}

// fakeConceptGen dispatches per-chunk behavior and records which chunk
// indexes were requested.
type fakeConceptGen struct {
	mu     sync.Mutex
	fn     func(req concept.Request) ([]domain.RecipeConcept, error)
	chunks []int
}

func (f *fakeConceptGen) Generate(_ context.Context, req concept.Request) ([]domain.RecipeConcept, error) {
	f.mu.Lock()
	f.chunks = append(f.chunks, req.ChunkIndex)
	f.mu.Unlock()
	return f.fn(req)
}

func (f *fakeConceptGen) requestedChunks() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.chunks...)
}

type fakeImageGen struct {
	mu    sync.Mutex
	fn    func(req imageprovider.Request) (*imageprovider.Asset, error)
	calls int
}

func (f *fakeImageGen) Generate(_ context.Context, req imageprovider.Request) (*imageprovider.Asset, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fn(req)
}

// makeConcepts returns n well-formed concepts with transient ids starting
// at startID. Macros are consistent with calories so the nutrition
// validator accepts them.
func makeConcepts(startID, n int) []domain.RecipeConcept {
	out := make([]domain.RecipeConcept, 0, n)
	for i := 0; i < n; i++ {
		id := startID + i
		out = append(out, domain.RecipeConcept{
			RecipeID:    id,
			Name:        fmt.Sprintf("Test Dish %d", id),
			Description: "a dish used in tests",
			MealType:    "dinner",
			Servings:    2,
			PrepMinutes: 10,
			CookMinutes: 20,
			Ingredients: []domain.Ingredient{{Name: "salt", Quantity: "1 tsp"}},
			Instructions: []string{
				"combine everything",
				"cook until done",
			},
			Nutrition: domain.Nutrition{
				Calories:     430,
				ProteinGrams: 30,
				CarbsGrams:   40,
				FatGrams:     10,
			},
		})
	}
	return out
}
