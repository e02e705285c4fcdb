package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"mealforge/internal/domain"
	"mealforge/internal/infra"
	"mealforge/internal/progress"
	imageprovider "mealforge/internal/providers/image"
	"mealforge/internal/storage"
)

// imageParallelism bounds per-recipe image work inside one chunk. Recipes
// are independent once validated, so they may run in parallel; the cap
// keeps upstream request concurrency civil.
const imageParallelism = 4

// ImageStage generates and stores one image per persisted recipe. Every
// durable reference goes through the chunk's identifier map; failures are
// isolated per recipe and never abort the chunk.
type ImageStage struct {
	generator           imageprovider.Generator
	store               *storage.ImageStore
	recipes             domain.RecipeRepository
	reviews             domain.ReviewRepository
	broker              *progress.Broker
	approveWithoutImage bool
	logger              infra.Logger
}

// NewImageStage constructs the image stage. When approveWithoutImage is
// set, a recipe whose image generation fails is still advanced to
// ready_for_review instead of waiting for a manual override.
func NewImageStage(
	generator imageprovider.Generator,
	store *storage.ImageStore,
	recipes domain.RecipeRepository,
	reviews domain.ReviewRepository,
	broker *progress.Broker,
	approveWithoutImage bool,
	logger infra.Logger,
) *ImageStage {
	return &ImageStage{
		generator:           generator,
		store:               store,
		recipes:             recipes,
		reviews:             reviews,
		broker:              broker,
		approveWithoutImage: approveWithoutImage,
		logger:              logger,
	}
}

// Run processes every concept that was persisted in this chunk. The
// underReview flag tells the stage whether review-queue rows exist for
// these recipes.
func (s *ImageStage) Run(ctx context.Context, batch *domain.Batch, chunkIndex int, concepts []domain.RecipeConcept, ids *IdentifierMap, underReview bool) {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(imageParallelism)

	for _, concept := range concepts {
		concept := concept
		if _, err := ids.Durable(concept.RecipeID); err != nil {
			// The recipe was never persisted (or the mapping was lost,
			// which is the bug class this check exists for): surface it,
			// do not guess at a row.
			s.broker.ReportError(batch.ID, chunkIndex, err)
			continue
		}
		g.Go(func() error {
			s.processRecipe(gCtx, batch, chunkIndex, concept, ids, underReview)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *ImageStage) processRecipe(ctx context.Context, batch *domain.Batch, chunkIndex int, concept domain.RecipeConcept, ids *IdentifierMap, underReview bool) {
	durableID, err := ids.Durable(concept.RecipeID)
	if err != nil {
		s.broker.ReportError(batch.ID, chunkIndex, err)
		return
	}

	if underReview {
		if err := s.reviews.SetImageStatus(ctx, durableID, domain.ImageGenInProgress); err != nil {
			s.logger.Warn().Err(err).Str("recipe_id", durableID.String()).Msg("images: mark in_progress failed")
		}
	}

	asset, err := s.generator.Generate(ctx, imageprovider.Request{
		RecipeName:  concept.Name,
		Description: concept.Description,
		MealType:    concept.MealType,
		BatchID:     batch.ID.String(),
		RecipeID:    concept.RecipeID,
		AspectRatio: "4:3",
	})
	if err != nil {
		s.recordFailure(ctx, batch, chunkIndex, durableID, underReview,
			fmt.Errorf("image generation for recipe %s: %w", durableID, err))
		return
	}

	url, err := s.store.Store(ctx, durableID, asset.Data, asset.Format)
	if err != nil {
		s.recordFailure(ctx, batch, chunkIndex, durableID, underReview,
			fmt.Errorf("image upload for recipe %s: %w", durableID, err))
		return
	}

	if err := s.recipes.SetImageURL(ctx, durableID, url); err != nil {
		s.recordFailure(ctx, batch, chunkIndex, durableID, underReview,
			fmt.Errorf("image url update for recipe %s: %w", durableID, err))
		return
	}

	s.broker.AddImageGenerated(batch.ID)

	if underReview {
		if err := s.reviews.SetImageStatus(ctx, durableID, domain.ImageGenCompleted); err != nil {
			s.logger.Warn().Err(err).Str("recipe_id", durableID.String()).Msg("images: mark completed failed")
			return
		}
		if err := s.reviews.MarkReady(ctx, durableID, false); err != nil && !errors.Is(err, domain.ErrInvalidTransition) {
			s.logger.Warn().Err(err).Str("recipe_id", durableID.String()).Msg("images: mark ready failed")
		}
	}
}

func (s *ImageStage) recordFailure(ctx context.Context, batch *domain.Batch, chunkIndex int, recipeID uuid.UUID, underReview bool, err error) {
	s.logger.Warn().Err(err).
		Str("batch_id", batch.ID.String()).
		Str("recipe_id", recipeID.String()).
		Msg("images: per-recipe failure")
	s.broker.AddImageFailed(batch.ID)
	s.broker.ReportError(batch.ID, chunkIndex, err)

	if !underReview {
		return
	}
	if err := s.reviews.SetImageStatus(ctx, recipeID, domain.ImageGenFailed); err != nil {
		s.logger.Warn().Err(err).Str("recipe_id", recipeID.String()).Msg("images: mark failed after image failure")
		return
	}
	if s.approveWithoutImage {
		if err := s.reviews.MarkReady(ctx, recipeID, true); err != nil {
			s.logger.Warn().Err(err).Str("recipe_id", recipeID.String()).Msg("images: override ready failed")
		}
	}
}
