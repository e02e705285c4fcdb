package concept

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"mealforge/internal/domain"
	"mealforge/internal/infra"
)

// GeminiGenerator produces structured recipe concepts through the Gemini
// SDK. Transient upstream failures are retried with exponential backoff up
// to maxRetries; quota errors abort immediately and malformed output is
// never retried.
type GeminiGenerator struct {
	client     *genai.Client
	model      string
	maxRetries int
	backoff    time.Duration
	logger     infra.Logger
}

// NewGeminiGenerator creates a concept generator backed by the Gemini API.
func NewGeminiGenerator(ctx context.Context, apiKey, model string, maxRetries int, backoff time.Duration, logger infra.Logger) (*GeminiGenerator, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("concept: API key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("concept: create gemini client: %w", err)
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &GeminiGenerator{
		client:     client,
		model:      model,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger,
	}, nil
}

// Close releases the underlying SDK client.
func (g *GeminiGenerator) Close() error {
	return g.client.Close()
}

// Generate requests req.Count structured concepts in a single model call.
func (g *GeminiGenerator) Generate(ctx context.Context, req Request) ([]domain.RecipeConcept, error) {
	if req.Count <= 0 {
		return nil, fmt.Errorf("concept: non-positive count %d: %w", req.Count, domain.ErrMalformedInput)
	}

	prompt := buildPrompt(req)
	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			g.logger.Debug().
				Int("attempt", attempt).
				Str("batch_id", req.BatchID).
				Int("chunk", req.ChunkIndex).
				Msg("concept: retrying generation")
			if err := sleepBackoff(ctx, g.backoff, attempt); err != nil {
				return nil, err
			}
		}

		raw, err := g.generateJSON(ctx, prompt)
		if err != nil {
			if isQuotaError(err) {
				return nil, fmt.Errorf("concept generation: %v: %w", err, domain.ErrQuotaExceeded)
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			lastErr = err
			continue
		}

		concepts, err := DecodeConcepts([]byte(raw), req)
		if err != nil {
			// Schema violations are a model-quality problem, not a
			// transport hiccup: surface them instead of burning retries.
			return nil, err
		}
		return concepts, nil
	}
	return nil, fmt.Errorf("concept generation failed after %d attempts: %v: %w",
		g.maxRetries+1, lastErr, domain.ErrProviderFailure)
}

func (g *GeminiGenerator) generateJSON(ctx context.Context, prompt string) (string, error) {
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(0.7)
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	return extractText(resp)
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("empty response")
	}
	var b strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("no text content in response")
	}
	return cleanJSONBlock(b.String()), nil
}

// cleanJSONBlock strips markdown code fences some models wrap JSON in.
func cleanJSONBlock(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func isQuotaError(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == 429
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "resource_exhausted") || strings.Contains(msg, "quota")
}

// wireConcept is the exact shape the model is instructed to emit for one
// recipe. Anything that does not decode into it fails the chunk with a
// malformed-output error instead of leaking a half-empty concept.
type wireConcept struct {
	Name         string              `json:"name"`
	Description  string              `json:"description"`
	MealType     string              `json:"meal_type"`
	Servings     int                 `json:"servings"`
	PrepMinutes  int                 `json:"prep_minutes"`
	CookMinutes  int                 `json:"cook_minutes"`
	Ingredients  []domain.Ingredient `json:"ingredients"`
	Instructions []string            `json:"instructions"`
	Nutrition    domain.Nutrition    `json:"nutrition"`
}

// DecodeConcepts parses the model payload and assigns transient recipe
// identifiers sequentially from req.StartID. Structural problems (wrong
// shape, wrong count, missing name, no ingredients, absent nutrition)
// return domain.ErrMalformedOutput.
func DecodeConcepts(raw []byte, req Request) ([]domain.RecipeConcept, error) {
	var wires []wireConcept
	if err := json.Unmarshal(raw, &wires); err != nil {
		return nil, fmt.Errorf("decode concepts: %v: %w", err, domain.ErrMalformedOutput)
	}
	if len(wires) == 0 {
		return nil, fmt.Errorf("model returned zero concepts: %w", domain.ErrMalformedOutput)
	}
	if len(wires) > req.Count {
		wires = wires[:req.Count]
	}

	concepts := make([]domain.RecipeConcept, 0, len(wires))
	for i, w := range wires {
		if strings.TrimSpace(w.Name) == "" {
			return nil, fmt.Errorf("concept %d has no name: %w", i, domain.ErrMalformedOutput)
		}
		if len(w.Ingredients) == 0 {
			return nil, fmt.Errorf("concept %q has no ingredients: %w", w.Name, domain.ErrMalformedOutput)
		}
		if len(w.Instructions) == 0 {
			return nil, fmt.Errorf("concept %q has no instructions: %w", w.Name, domain.ErrMalformedOutput)
		}
		if w.Nutrition.Calories <= 0 {
			return nil, fmt.Errorf("concept %q has no nutrition data: %w", w.Name, domain.ErrMalformedOutput)
		}
		servings := w.Servings
		if servings <= 0 {
			servings = 1
		}
		concepts = append(concepts, domain.RecipeConcept{
			RecipeID:     req.StartID + i,
			Name:         strings.TrimSpace(w.Name),
			Description:  strings.TrimSpace(w.Description),
			MealType:     strings.ToLower(strings.TrimSpace(w.MealType)),
			Servings:     servings,
			PrepMinutes:  w.PrepMinutes,
			CookMinutes:  w.CookMinutes,
			Ingredients:  w.Ingredients,
			Instructions: w.Instructions,
			Nutrition:    w.Nutrition,
		})
	}
	return concepts, nil
}

func buildPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate exactly %d original recipes as a JSON array.\n", req.Count)
	b.WriteString("Each element must have this shape:\n")
	b.WriteString(`{"name": string, "description": string, "meal_type": string, ` +
		`"servings": int, "prep_minutes": int, "cook_minutes": int, ` +
		`"ingredients": [{"name": string, "quantity": string}], ` +
		`"instructions": [string], ` +
		`"nutrition": {"calories": number, "protein_g": number, "carbs_g": number, "fat_g": number}}`)
	b.WriteString("\nNutrition values are per serving.\n")
	if len(req.MealTypes) > 0 {
		fmt.Fprintf(&b, "Meal types to cover: %s.\n", strings.Join(req.MealTypes, ", "))
	}
	if len(req.DietaryConstraints) > 0 {
		fmt.Fprintf(&b, "Every recipe must satisfy: %s.\n", strings.Join(req.DietaryConstraints, ", "))
	}
	if req.Locale != "" {
		fmt.Fprintf(&b, "Write names and instructions for locale %q.\n", req.Locale)
	}
	b.WriteString("Respond with the JSON array only, no prose.")
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
