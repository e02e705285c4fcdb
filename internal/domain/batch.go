package domain

import (
	"time"

	"github.com/google/uuid"
)

// BatchStatus enumerates batch lifecycle states. The three complete* /
// failed states are terminal: once a batch reaches one of them it is
// never mutated again.
type BatchStatus string

const (
	BatchStatusQueued             BatchStatus = "queued"
	BatchStatusRunning            BatchStatus = "running"
	BatchStatusComplete           BatchStatus = "complete"
	BatchStatusCompleteWithErrors BatchStatus = "complete_with_errors"
	BatchStatusFailed             BatchStatus = "failed"
)

// Terminal reports whether the status permits no further transitions.
func (s BatchStatus) Terminal() bool {
	switch s {
	case BatchStatusComplete, BatchStatusCompleteWithErrors, BatchStatusFailed:
		return true
	}
	return false
}

// Batch is one generation request for RequestedCount recipes.
type Batch struct {
	ID                 uuid.UUID
	RequestedCount     int
	ChunkSize          int
	MealTypes          []string
	DietaryConstraints []string
	GenerateImages     bool
	Locale             string
	Status             BatchStatus
	ErrorMessage       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
