package image

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mealforge/internal/domain"
	"mealforge/internal/providers/genai"
)

// GeminiGenerator generates recipe images through the Gemini facade with
// bounded retry on transient failures. Quota errors are returned as-is and
// never retried.
type GeminiGenerator struct {
	client     *genai.Client
	maxRetries int
	backoff    time.Duration
}

// NewGeminiGenerator wraps a configured Gemini client.
func NewGeminiGenerator(client *genai.Client, maxRetries int, backoff time.Duration) *GeminiGenerator {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &GeminiGenerator{client: client, maxRetries: maxRetries, backoff: backoff}
}

// Generate requests one image for the recipe described by req.
func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (*Asset, error) {
	imageReq := genai.ImageRequest{
		Prompt:      buildPrompt(req),
		AspectRatio: req.AspectRatio,
		RequestID:   fmt.Sprintf("%s/recipe-%d", req.BatchID, req.RecipeID),
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, g.backoff, attempt); err != nil {
				return nil, err
			}
		}
		asset, err := g.client.GenerateImage(ctx, imageReq)
		if err == nil {
			return &Asset{
				Format: asset.Format,
				Width:  asset.Width,
				Height: asset.Height,
				Data:   asset.Data,
			}, nil
		}
		if errors.Is(err, domain.ErrQuotaExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("image generation failed after %d attempts: %w", g.maxRetries+1, lastErr)
}

func buildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("Professional food photography of ")
	b.WriteString(strings.TrimSpace(req.RecipeName))
	if meal := strings.TrimSpace(req.MealType); meal != "" {
		b.WriteString(", served as ")
		b.WriteString(meal)
	}
	if desc := strings.TrimSpace(req.Description); desc != "" {
		b.WriteString(". ")
		b.WriteString(desc)
	}
	b.WriteString(". Natural light, shallow depth of field, no text overlay.")
	return b.String()
}

func sleepBackoff(ctx context.Context, base time.Duration, attempt int) error {
	delay := base << (attempt - 1)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ Generator = (*GeminiGenerator)(nil)
