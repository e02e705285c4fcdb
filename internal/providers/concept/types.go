package concept

import (
	"context"

	"mealforge/internal/domain"
)

// Request describes one chunk's concept generation call. Transient recipe
// identifiers are assigned sequentially starting at StartID, so ids stay
// unique across the chunks of a batch.
type Request struct {
	BatchID            string
	ChunkIndex         int
	Count              int
	StartID            int
	MealTypes          []string
	DietaryConstraints []string
	Locale             string
}

// Generator is the contract implemented by all concept providers. Errors
// follow the domain taxonomy: ErrQuotaExceeded is batch-fatal,
// ErrProviderFailure is transient (already retried internally), and
// ErrMalformedOutput means the model response failed the schema check.
type Generator interface {
	Generate(ctx context.Context, req Request) ([]domain.RecipeConcept, error)
}
