package genai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"mealforge/internal/domain"
)

func TestGenerateImageSyntheticWithoutKey(t *testing.T) {
	client, err := NewClient(Options{})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	asset, err := client.GenerateImage(context.Background(), ImageRequest{
		Prompt:      "grilled salmon with asparagus",
		AspectRatio: "4:3",
		RequestID:   "batch-1/chunk-0/recipe-1",
	})
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if len(asset.Data) == 0 {
		t.Fatal("synthetic asset has no data")
	}
	if asset.Format != "image/png" {
		t.Fatalf("Format = %q, want image/png", asset.Format)
	}
	if asset.Width != 1280 || asset.Height != 960 {
		t.Fatalf("dimensions = %dx%d, want 1280x960", asset.Width, asset.Height)
	}

	again, err := client.GenerateImage(context.Background(), ImageRequest{
		Prompt:      "grilled salmon with asparagus",
		AspectRatio: "4:3",
		RequestID:   "batch-1/chunk-0/recipe-1",
	})
	if err != nil {
		t.Fatalf("GenerateImage (repeat): %v", err)
	}
	if string(again.Data) != string(asset.Data) {
		t.Fatal("synthetic assets for identical requests should be deterministic")
	}
}

func TestGenerateImageClassifiesQuota(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"status":"RESOURCE_EXHAUSTED","message":"quota exhausted"}}`))
	}))
	defer srv.Close()

	client, err := NewClient(Options{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = client.GenerateImage(context.Background(), ImageRequest{Prompt: "soup"})
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("error = %v, want ErrQuotaExceeded", err)
	}
}

func TestGenerateImageClassifiesTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := NewClient(Options{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = client.GenerateImage(context.Background(), ImageRequest{Prompt: "soup"})
	if !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("error = %v, want ErrProviderFailure", err)
	}
	if errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("transient error must not classify as quota: %v", err)
	}
}
