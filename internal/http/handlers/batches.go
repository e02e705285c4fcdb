package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"mealforge/internal/domain"
	"mealforge/internal/middleware"
)

type createBatchRequest struct {
	Count              int      `json:"count" validate:"required,gte=1,lte=100"`
	MealTypes          []string `json:"meal_types" validate:"omitempty,dive,oneof=breakfast lunch dinner snack dessert"`
	DietaryConstraints []string `json:"dietary_constraints" validate:"omitempty,dive,max=64"`
	GenerateImages     *bool    `json:"generate_images"`
	Locale             string   `json:"locale" validate:"omitempty,bcp47_language_tag"`
}

type batchResponse struct {
	BatchID          string   `json:"batch_id"`
	Status           string   `json:"status"`
	RequestedCount   int      `json:"requested_count"`
	RecipesCompleted int      `json:"recipes_completed"`
	ImagesGenerated  int      `json:"images_generated"`
	ImagesFailed     int      `json:"images_failed"`
	Errors           []string `json:"errors,omitempty"`
	ErrorMessage     string   `json:"error_message,omitempty"`
	CreatedAt        string   `json:"created_at,omitempty"`
}

// CreateBatch accepts a generation request and queues it. The worker pool
// picks it up asynchronously; the response is a 202 with the batch id.
func (a *App) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.validate.Struct(req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	generateImages := true
	if req.GenerateImages != nil {
		generateImages = *req.GenerateImages
	}
	locale := req.Locale
	if locale == "" {
		locale = middleware.LocaleFromContext(r.Context())
	}

	batch := &domain.Batch{
		ID:                 uuid.New(),
		RequestedCount:     req.Count,
		ChunkSize:          a.Config.ChunkSize,
		MealTypes:          req.MealTypes,
		DietaryConstraints: req.DietaryConstraints,
		GenerateImages:     generateImages,
		Locale:             locale,
		Status:             domain.BatchStatusQueued,
	}
	if err := a.Batches.Create(r.Context(), batch); err != nil {
		a.Logger.Error().Err(err).Msg("handlers: create batch failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to queue batch")
		return
	}

	a.json(w, http.StatusAccepted, map[string]string{
		"batch_id": batch.ID.String(),
		"status":   string(batch.Status),
	})
}

// GetBatch returns the persisted batch plus live progress counters when
// the batch is still tracked in memory.
func (a *App) GetBatch(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid batch id")
		return
	}

	batch, err := a.Batches.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "batch not found")
			return
		}
		a.Logger.Error().Err(err).Str("batch_id", id.String()).Msg("handlers: get batch failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load batch")
		return
	}

	resp := batchResponse{
		BatchID:        batch.ID.String(),
		Status:         string(batch.Status),
		RequestedCount: batch.RequestedCount,
		ErrorMessage:   batch.ErrorMessage,
		CreatedAt:      batch.CreatedAt.Format(time.RFC3339),
	}
	if state, ok := a.Broker.Snapshot(batch.ID); ok {
		resp.RecipesCompleted = state.RecipesCompleted
		resp.ImagesGenerated = state.ImagesGenerated
		resp.ImagesFailed = state.ImagesFailed
		resp.Errors = state.Errors
	}

	a.json(w, http.StatusOK, resp)
}
