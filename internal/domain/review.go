package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReviewEntryStatus is the review-queue state machine:
// pending_images -> ready_for_review -> approved | rejected.
// approved and rejected are terminal; entries never regress and are
// never deleted, only marked terminal, to preserve the audit trail.
type ReviewEntryStatus string

const (
	ReviewEntryPendingImages  ReviewEntryStatus = "pending_images"
	ReviewEntryReadyForReview ReviewEntryStatus = "ready_for_review"
	ReviewEntryApproved       ReviewEntryStatus = "approved"
	ReviewEntryRejected       ReviewEntryStatus = "rejected"
)

// Terminal reports whether the entry status permits no further transitions.
func (s ReviewEntryStatus) Terminal() bool {
	return s == ReviewEntryApproved || s == ReviewEntryRejected
}

// ImageGenStatus tracks image generation for a queued recipe.
type ImageGenStatus string

const (
	ImageGenPending    ImageGenStatus = "pending"
	ImageGenInProgress ImageGenStatus = "in_progress"
	ImageGenCompleted  ImageGenStatus = "completed"
	ImageGenFailed     ImageGenStatus = "failed"
)

// ReviewQueueEntry gates one in-review recipe behind human approval.
type ReviewQueueEntry struct {
	ID              uuid.UUID
	RecipeID        uuid.UUID
	BatchID         uuid.UUID
	Status          ReviewEntryStatus
	ImageGenStatus  ImageGenStatus
	ReviewedBy      string
	RejectionReason string
	CreatedAt       time.Time
	ReviewedAt      *time.Time
}

// ReviewBatchProgress aggregates queue entries for one batch. Consumed by
// the admin surface and by automated polling.
type ReviewBatchProgress struct {
	BatchID          uuid.UUID `json:"batch_id"`
	Total            int       `json:"total"`
	ImagesGenerated  int       `json:"images_generated"`
	ImagesInProgress int       `json:"images_in_progress"`
	ImagesFailed     int       `json:"images_failed"`
	ReadyForReview   int       `json:"ready_for_review"`
	Approved         int       `json:"approved"`
	Rejected         int       `json:"rejected"`
	PercentComplete  float64   `json:"percent_complete"`
}

// ReviewFilter narrows review-queue listings.
type ReviewFilter struct {
	BatchID *uuid.UUID
	Status  ReviewEntryStatus
	Limit   int
}
