package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"mealforge/internal/domain"
	"mealforge/internal/infra"
)

// Persister writes validated concepts to the store, directly approved for
// small batches or routed through the review queue for large ones.
type Persister struct {
	recipes         domain.RecipeRepository
	reviews         domain.ReviewRepository
	reviewThreshold int
	logger          infra.Logger
}

// NewPersister constructs a Persister. Batches whose requested count
// exceeds reviewThreshold are gated behind the review queue.
func NewPersister(recipes domain.RecipeRepository, reviews domain.ReviewRepository, reviewThreshold int, logger infra.Logger) *Persister {
	return &Persister{
		recipes:         recipes,
		reviews:         reviews,
		reviewThreshold: reviewThreshold,
		logger:          logger,
	}
}

// Persist writes each concept and binds its transient id to the durable
// id in ids. The input is checked before anything is written: a nil slice
// or a structurally broken concept fails fast with ErrMalformedInput
// rather than quietly persisting nothing. Per-recipe insert failures are
// skipped and logged; the error return is reserved for malformed input
// and for the case where every insert failed.
func (p *Persister) Persist(ctx context.Context, batch *domain.Batch, concepts []domain.RecipeConcept, ids *IdentifierMap) ([]domain.Recipe, error) {
	if batch == nil {
		return nil, fmt.Errorf("persist: nil batch: %w", domain.ErrMalformedInput)
	}
	if concepts == nil {
		return nil, fmt.Errorf("persist: nil concept slice for batch %s: %w", batch.ID, domain.ErrMalformedInput)
	}
	if ids == nil {
		return nil, fmt.Errorf("persist: nil identifier map for batch %s: %w", batch.ID, domain.ErrMalformedInput)
	}
	for i, concept := range concepts {
		if strings.TrimSpace(concept.Name) == "" || concept.RecipeID <= 0 {
			return nil, fmt.Errorf("persist: concept %d of batch %s is not a valid concept: %w",
				i, batch.ID, domain.ErrMalformedInput)
		}
	}
	if len(concepts) == 0 {
		return []domain.Recipe{}, nil
	}

	reviewStatus := domain.ReviewStatusApproved
	underReview := batch.RequestedCount > p.reviewThreshold
	if underReview {
		reviewStatus = domain.ReviewStatusInReview
	}

	var saved []domain.Recipe
	var lastErr error
	for _, concept := range concepts {
		recipe, err := buildRecipe(batch, concept, reviewStatus)
		if err != nil {
			return nil, err
		}
		if err := p.recipes.Create(ctx, recipe); err != nil {
			p.logger.Error().Err(err).
				Str("batch_id", batch.ID.String()).
				Int("recipe_id", concept.RecipeID).
				Msg("persist: recipe insert failed")
			lastErr = err
			continue
		}
		if err := ids.Bind(concept.RecipeID, recipe.ID); err != nil {
			return saved, err
		}
		if underReview {
			entry := &domain.ReviewQueueEntry{
				ID:             uuid.New(),
				RecipeID:       recipe.ID,
				BatchID:        batch.ID,
				Status:         domain.ReviewEntryPendingImages,
				ImageGenStatus: domain.ImageGenPending,
			}
			if err := p.reviews.Create(ctx, entry); err != nil {
				p.logger.Error().Err(err).
					Str("batch_id", batch.ID.String()).
					Str("recipe_id", recipe.ID.String()).
					Msg("persist: review entry insert failed")
			}
		}
		saved = append(saved, *recipe)
	}

	if len(saved) == 0 && lastErr != nil {
		return nil, fmt.Errorf("persist: no recipe saved for batch %s: %v: %w",
			batch.ID, lastErr, domain.ErrStorageFailure)
	}
	return saved, nil
}

func buildRecipe(batch *domain.Batch, concept domain.RecipeConcept, status domain.ReviewStatus) (*domain.Recipe, error) {
	ingredients, err := json.Marshal(concept.Ingredients)
	if err != nil {
		return nil, fmt.Errorf("persist: marshal ingredients: %w", err)
	}
	instructions, err := json.Marshal(concept.Instructions)
	if err != nil {
		return nil, fmt.Errorf("persist: marshal instructions: %w", err)
	}
	nutrition, err := json.Marshal(concept.Nutrition)
	if err != nil {
		return nil, fmt.Errorf("persist: marshal nutrition: %w", err)
	}
	return &domain.Recipe{
		ID:               uuid.New(),
		BatchID:          batch.ID,
		Name:             concept.Name,
		Description:      concept.Description,
		MealType:         concept.MealType,
		Servings:         concept.Servings,
		PrepMinutes:      concept.PrepMinutes,
		CookMinutes:      concept.CookMinutes,
		IngredientsJSON:  ingredients,
		InstructionsJSON: instructions,
		NutritionJSON:    nutrition,
		ReviewStatus:     status,
	}, nil
}
