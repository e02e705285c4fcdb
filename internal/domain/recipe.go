package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReviewStatus is the publication state carried on the recipe row itself.
// Small batches that bypass the review queue are written as approved.
type ReviewStatus string

const (
	ReviewStatusDraft    ReviewStatus = "draft"
	ReviewStatusInReview ReviewStatus = "in_review"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusRejected ReviewStatus = "rejected"
)

// Nutrition holds the per-serving numbers declared by the model for one
// concept. Values live on the concept itself, never in a side array.
type Nutrition struct {
	Calories     float64 `json:"calories" validate:"gt=0,lte=4000"`
	ProteinGrams float64 `json:"protein_g" validate:"gte=0,lte=500"`
	CarbsGrams   float64 `json:"carbs_g" validate:"gte=0,lte=1000"`
	FatGrams     float64 `json:"fat_g" validate:"gte=0,lte=500"`
}

// Ingredient is one line of a concept's ingredient list.
type Ingredient struct {
	Name     string `json:"name" validate:"required"`
	Quantity string `json:"quantity"`
}

// RecipeConcept is one candidate recipe inside a chunk. It is transient
// and owned by the chunk's execution until persisted. RecipeID is the
// chunk-local transient identifier assigned at concept-generation time;
// the persisted record receives a distinct durable uuid, and every stage
// after persistence must resolve the durable id through the chunk's
// identifier map.
type RecipeConcept struct {
	RecipeID     int          `json:"recipe_id"`
	Name         string       `json:"name" validate:"required"`
	Description  string       `json:"description"`
	MealType     string       `json:"meal_type"`
	Servings     int          `json:"servings" validate:"gte=1,lte=16"`
	PrepMinutes  int          `json:"prep_minutes" validate:"gte=0"`
	CookMinutes  int          `json:"cook_minutes" validate:"gte=0"`
	Ingredients  []Ingredient `json:"ingredients" validate:"required,min=1,dive"`
	Instructions []string     `json:"instructions" validate:"required,min=1"`
	Nutrition    Nutrition    `json:"nutrition"`
}

// Recipe is the persisted domain record. Ingredients, instructions and
// nutrition are stored as JSONB payloads, matching the concept shapes.
type Recipe struct {
	ID               uuid.UUID
	BatchID          uuid.UUID
	Name             string
	Description      string
	MealType         string
	Servings         int
	PrepMinutes      int
	CookMinutes      int
	IngredientsJSON  []byte
	InstructionsJSON []byte
	NutritionJSON    []byte
	ImageURL         string
	ReviewStatus     ReviewStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
