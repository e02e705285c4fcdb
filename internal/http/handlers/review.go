package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"mealforge/internal/domain"
)

type reviewActionRequest struct {
	Reviewer string `json:"reviewer" validate:"required,max=128"`
	Reason   string `json:"reason" validate:"omitempty,max=1024"`
}

type reviewEntryResponse struct {
	ID              string `json:"id"`
	RecipeID        string `json:"recipe_id"`
	BatchID         string `json:"batch_id"`
	Status          string `json:"status"`
	ImageGenStatus  string `json:"image_generation_status"`
	ReviewedBy      string `json:"reviewed_by,omitempty"`
	RejectionReason string `json:"rejection_reason,omitempty"`
}

// ReviewList returns queue entries, optionally filtered by batch and
// status via query parameters.
func (a *App) ReviewList(w http.ResponseWriter, r *http.Request) {
	filter := domain.ReviewFilter{}
	if raw := r.URL.Query().Get("batch_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "invalid batch_id")
			return
		}
		filter.BatchID = &id
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		filter.Status = domain.ReviewEntryStatus(raw)
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			a.error(w, http.StatusBadRequest, "bad_request", "invalid limit")
			return
		}
		filter.Limit = limit
	}

	entries, err := a.Review.List(r.Context(), filter)
	if err != nil {
		a.Logger.Error().Err(err).Msg("handlers: list review entries failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list review entries")
		return
	}

	out := make([]reviewEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, reviewEntryResponse{
			ID:              entry.ID.String(),
			RecipeID:        entry.RecipeID.String(),
			BatchID:         entry.BatchID.String(),
			Status:          string(entry.Status),
			ImageGenStatus:  string(entry.ImageGenStatus),
			ReviewedBy:      entry.ReviewedBy,
			RejectionReason: entry.RejectionReason,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"entries": out})
}

// ReviewApprove approves one ready_for_review entry.
func (a *App) ReviewApprove(w http.ResponseWriter, r *http.Request) {
	entryID, err := uuid.Parse(chi.URLParam(r, "entryID"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid entry id")
		return
	}
	req, ok := a.decodeReviewAction(w, r, false)
	if !ok {
		return
	}

	if err := a.Review.Approve(r.Context(), entryID, req.Reviewer); err != nil {
		a.reviewError(w, entryID, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "approved"})
}

// ReviewReject rejects one ready_for_review entry with a required reason.
func (a *App) ReviewReject(w http.ResponseWriter, r *http.Request) {
	entryID, err := uuid.Parse(chi.URLParam(r, "entryID"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid entry id")
		return
	}
	req, ok := a.decodeReviewAction(w, r, true)
	if !ok {
		return
	}

	if err := a.Review.Reject(r.Context(), entryID, req.Reviewer, req.Reason); err != nil {
		a.reviewError(w, entryID, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "rejected"})
}

// ReviewApproveAll approves every ready_for_review entry of a batch,
// reporting partial success when some entries fail.
func (a *App) ReviewApproveAll(w http.ResponseWriter, r *http.Request) {
	batchID, err := uuid.Parse(chi.URLParam(r, "batchID"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid batch id")
		return
	}
	req, ok := a.decodeReviewAction(w, r, false)
	if !ok {
		return
	}

	approved, err := a.Review.ApproveAllReady(r.Context(), batchID, req.Reviewer)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedInput) {
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		// Partial success: report the count alongside the failure.
		a.json(w, http.StatusMultiStatus, map[string]any{
			"approved": approved,
			"error":    err.Error(),
		})
		return
	}
	a.json(w, http.StatusOK, map[string]any{"approved": approved})
}

// ReviewProgress returns aggregate queue counters for one batch.
func (a *App) ReviewProgress(w http.ResponseWriter, r *http.Request) {
	batchID, err := uuid.Parse(chi.URLParam(r, "batchID"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid batch id")
		return
	}
	progress, err := a.Review.Progress(r.Context(), batchID)
	if err != nil {
		a.Logger.Error().Err(err).Str("batch_id", batchID.String()).Msg("handlers: review progress failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load review progress")
		return
	}
	a.json(w, http.StatusOK, progress)
}

// ReviewOverrideReady force-advances a recipe stuck in pending_images to
// ready_for_review despite a failed image generation.
func (a *App) ReviewOverrideReady(w http.ResponseWriter, r *http.Request) {
	recipeID, err := uuid.Parse(chi.URLParam(r, "recipeID"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid recipe id")
		return
	}
	if err := a.Review.OverrideReady(r.Context(), recipeID); err != nil {
		a.reviewError(w, recipeID, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ready_for_review"})
}

func (a *App) decodeReviewAction(w http.ResponseWriter, r *http.Request, requireReason bool) (*reviewActionRequest, bool) {
	var req reviewActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return nil, false
	}
	if err := a.validate.Struct(req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return nil, false
	}
	if requireReason && req.Reason == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "reason required")
		return nil, false
	}
	return &req, true
}

func (a *App) reviewError(w http.ResponseWriter, id uuid.UUID, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "review entry not found")
	case errors.Is(err, domain.ErrInvalidTransition):
		a.error(w, http.StatusConflict, "conflict", "entry is not in a state that allows this action")
	case errors.Is(err, domain.ErrMalformedInput):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	default:
		a.Logger.Error().Err(err).Str("id", id.String()).Msg("handlers: review action failed")
		a.error(w, http.StatusInternalServerError, "internal", "review action failed")
	}
}
