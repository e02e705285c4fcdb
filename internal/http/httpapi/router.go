package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"mealforge/internal/http/handlers"
	"mealforge/internal/middleware"
)

func NewRouter(app *handlers.App) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer)
	r.Use(middleware.Logger(app.Logger))
	r.Use(middleware.Locale("en"))

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/readyz", app.Ready)

	r.Route("/v1/batches", func(r chi.Router) {
		r.With(middleware.RateLimit(app.Config.RateLimitPerMin, time.Minute)).
			Post("/", app.CreateBatch)
		r.Get("/{id}", app.GetBatch)
		r.Get("/{id}/events", app.BatchEvents)
	})

	r.Route("/v1/review", func(r chi.Router) {
		r.Get("/queue", app.ReviewList)
		r.Post("/{entryID}/approve", app.ReviewApprove)
		r.Post("/{entryID}/reject", app.ReviewReject)
		r.Post("/batches/{batchID}/approve-all", app.ReviewApproveAll)
		r.Get("/batches/{batchID}/progress", app.ReviewProgress)
		r.Post("/recipes/{recipeID}/override-ready", app.ReviewOverrideReady)
	})

	// Generated images are served from local disk in development.
	if app.Config.StoragePath != "" {
		fileServer := stdhttp.StripPrefix("/media/", stdhttp.FileServer(stdhttp.Dir(app.Config.StoragePath)))
		r.Get("/media/*", fileServer.ServeHTTP)
	}

	return r
}
