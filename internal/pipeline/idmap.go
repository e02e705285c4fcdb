package pipeline

import (
	"fmt"

	"github.com/google/uuid"

	"mealforge/internal/domain"
)

// IdentifierMap records which durable recipe id a transient chunk-local
// id was persisted under. Every cross-stage reference after persistence
// must resolve through it; positional indexing into a parallel slice is
// exactly the cross-wiring bug this type exists to prevent.
type IdentifierMap struct {
	durable map[int]uuid.UUID
}

// NewIdentifierMap constructs an empty map for one chunk's execution.
func NewIdentifierMap() *IdentifierMap {
	return &IdentifierMap{durable: make(map[int]uuid.UUID)}
}

// Bind records the durable id for a transient id. Rebinding a transient
// id is a correctness bug and fails loudly.
func (m *IdentifierMap) Bind(transientID int, durableID uuid.UUID) error {
	if durableID == uuid.Nil {
		return fmt.Errorf("bind transient id %d to zero durable id: %w", transientID, domain.ErrMalformedInput)
	}
	if existing, ok := m.durable[transientID]; ok {
		return fmt.Errorf("transient id %d already bound to %s: %w", transientID, existing, domain.ErrMalformedInput)
	}
	m.durable[transientID] = durableID
	return nil
}

// Durable resolves a transient id. A missing binding fails loudly instead
// of letting a later stage address the wrong row or no row at all.
func (m *IdentifierMap) Durable(transientID int) (uuid.UUID, error) {
	durableID, ok := m.durable[transientID]
	if !ok {
		return uuid.Nil, fmt.Errorf("transient id %d has no durable binding: %w", transientID, domain.ErrNotFound)
	}
	return durableID, nil
}

// Len reports the number of bindings.
func (m *IdentifierMap) Len() int {
	return len(m.durable)
}
