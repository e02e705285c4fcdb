package image

import "context"

// Request describes one per-recipe image generation call. RecipeID is the
// transient chunk-local identifier; it is only used to build a stable
// request id for logging and synthetic seeding, never for persistence.
type Request struct {
	RecipeName  string
	Description string
	MealType    string
	BatchID     string
	RecipeID    int
	AspectRatio string
}

// Asset is a generated image blob, not yet uploaded anywhere.
type Asset struct {
	Format string
	Width  int
	Height int
	Data   []byte
}

// Generator is the contract implemented by all image providers.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Asset, error)
}
