package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"mealforge/internal/adapter/repo"
	"mealforge/internal/http/handlers"
	httpapi "mealforge/internal/http/httpapi"
	"mealforge/internal/infra"
	"mealforge/internal/nutrition"
	"mealforge/internal/pipeline"
	"mealforge/internal/progress"
	"mealforge/internal/providers/concept"
	"mealforge/internal/providers/genai"
	imageprovider "mealforge/internal/providers/image"
	"mealforge/internal/review"
	"mealforge/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer pool.Close()

	batches := repo.NewBatchRepository(pool)
	recipes := repo.NewRecipeRepository(pool)
	reviews := repo.NewReviewRepository(pool)

	files, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open image storage")
	}
	imageStore, err := storage.NewImageStore(files, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure image storage")
	}

	conceptGen := buildConceptGenerator(ctx, cfg, logger)
	imageGen := buildImageGenerator(cfg, logger)

	broker := progress.NewBroker()
	persister := pipeline.NewPersister(recipes, reviews, cfg.ReviewThreshold, logger)
	imageStage := pipeline.NewImageStage(imageGen, imageStore, recipes, reviews, broker, cfg.ApproveWithoutImage, logger)
	runner := pipeline.NewRunner(batches, conceptGen, nutrition.New(), persister, imageStage, broker, cfg.WorkerPoolSize, logger)
	runner.Start(ctx)

	reviewSvc := review.NewService(reviews, recipes, logger)
	app := handlers.NewApp(batches, recipes, reviewSvc, broker, pool, cfg, logger)
	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app))

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	// Stop claiming new batches, then drain HTTP.
	cancel()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	runner.Wait()
	logger.Info().Msg("server stopped")
}

// buildConceptGenerator picks the Gemini-backed concept provider when an
// API key is configured, otherwise the deterministic local generator.
func buildConceptGenerator(ctx context.Context, cfg *infra.Config, logger infra.Logger) concept.Generator {
	if cfg.GeminiAPIKey == "" {
		logger.Warn().Msg("GEMINI_API_KEY not set; using deterministic concept generator")
		return concept.NewStaticGenerator()
	}
	gen, err := concept.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.ConceptRetries, cfg.RetryBackoff, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize concept generator")
	}
	return gen
}

// buildImageGenerator always goes through the genai client; without an
// API key the client renders synthetic images so the rest of the pipeline
// still runs end to end.
func buildImageGenerator(cfg *infra.Config, logger infra.Logger) imageprovider.Generator {
	client, err := genai.NewClient(genai.Options{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize image client")
	}
	return imageprovider.NewGeminiGenerator(client, cfg.ImageRetries, cfg.RetryBackoff)
}
