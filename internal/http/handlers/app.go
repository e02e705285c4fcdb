// Package handlers implements the HTTP surface: batch submission, batch
// progress (polling and SSE), and the review workflow.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"

	"mealforge/internal/domain"
	"mealforge/internal/infra"
	"mealforge/internal/progress"
	"mealforge/internal/review"
)

type App struct {
	Batches  domain.BatchRepository
	Recipes  domain.RecipeRepository
	Review   *review.Service
	Broker   *progress.Broker
	Pool     *pgxpool.Pool
	Config   *infra.Config
	Logger   infra.Logger
	validate *validator.Validate
}

func NewApp(
	batches domain.BatchRepository,
	recipes domain.RecipeRepository,
	reviewSvc *review.Service,
	broker *progress.Broker,
	pool *pgxpool.Pool,
	cfg *infra.Config,
	logger infra.Logger,
) *App {
	return &App{
		Batches:  batches,
		Recipes:  recipes,
		Review:   reviewSvc,
		Broker:   broker,
		Pool:     pool,
		Config:   cfg,
		Logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]string{"error": code, "message": message})
}
