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

// RecipeRepositoryPG implements domain.RecipeRepository.
type RecipeRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewRecipeRepository creates a new recipe repository backed by PostgreSQL.
func NewRecipeRepository(pool *pgxpool.Pool) *RecipeRepositoryPG {
	return &RecipeRepositoryPG{pool: pool}
}

// Create inserts a new recipe record.
func (r *RecipeRepositoryPG) Create(ctx context.Context, recipe *domain.Recipe) error {
	query := `
INSERT INTO recipes (id, batch_id, name, description, meal_type, servings, prep_minutes, cook_minutes, ingredients, instructions, nutrition, image_url, review_status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);
`
	_, err := r.pool.Exec(ctx, query,
		recipe.ID,
		recipe.BatchID,
		recipe.Name,
		recipe.Description,
		recipe.MealType,
		recipe.Servings,
		recipe.PrepMinutes,
		recipe.CookMinutes,
		recipe.IngredientsJSON,
		recipe.InstructionsJSON,
		recipe.NutritionJSON,
		recipe.ImageURL,
		recipe.ReviewStatus,
	)
	return err
}

// GetByID fetches a recipe by its durable identifier.
func (r *RecipeRepositoryPG) GetByID(ctx context.Context, id uuid.UUID) (*domain.Recipe, error) {
	query := `
SELECT id, batch_id, name, description, meal_type, servings, prep_minutes, cook_minutes, ingredients, instructions, nutrition, image_url, review_status, created_at, updated_at
FROM recipes
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, query, id)
	var recipe domain.Recipe
	if err := row.Scan(
		&recipe.ID,
		&recipe.BatchID,
		&recipe.Name,
		&recipe.Description,
		&recipe.MealType,
		&recipe.Servings,
		&recipe.PrepMinutes,
		&recipe.CookMinutes,
		&recipe.IngredientsJSON,
		&recipe.InstructionsJSON,
		&recipe.NutritionJSON,
		&recipe.ImageURL,
		&recipe.ReviewStatus,
		&recipe.CreatedAt,
		&recipe.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &recipe, nil
}

// SetImageURL replaces the placeholder image URL. The key is the durable
// identifier; an update that matches no row is reported, never swallowed.
func (r *RecipeRepositoryPG) SetImageURL(ctx context.Context, id uuid.UUID, url string) error {
	query := `
UPDATE recipes
SET image_url = $2, updated_at = NOW()
WHERE id = $1;
`
	tag, err := r.pool.Exec(ctx, query, id, url)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("recipe %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// SetReviewStatus updates the publication state on the recipe row.
func (r *RecipeRepositoryPG) SetReviewStatus(ctx context.Context, id uuid.UUID, status domain.ReviewStatus) error {
	query := `
UPDATE recipes
SET review_status = $2, updated_at = NOW()
WHERE id = $1;
`
	tag, err := r.pool.Exec(ctx, query, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("recipe %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
