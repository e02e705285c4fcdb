package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"mealforge/internal/domain"
)

// ImageStore uploads generated recipe images and hands back permanent
// URLs. It addresses recipes strictly by their durable identifier; the
// uuid parameter type makes it impossible to pass a transient chunk-local
// id by accident.
type ImageStore struct {
	files   *FileStore
	baseURL string
}

// NewImageStore wraps a FileStore with the public base URL under which
// stored keys are served.
func NewImageStore(files *FileStore, baseURL string) (*ImageStore, error) {
	if files == nil {
		return nil, errors.New("storage: file store is required")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("storage: base URL is required")
	}
	return &ImageStore{files: files, baseURL: baseURL}, nil
}

// Store uploads the image blob for the recipe identified by its durable
// id and returns the permanent URL.
func (s *ImageStore) Store(ctx context.Context, recipeID uuid.UUID, data []byte, mime string) (string, error) {
	if recipeID == uuid.Nil {
		return "", fmt.Errorf("storage: zero recipe id: %w", domain.ErrMalformedInput)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("storage: empty image blob for recipe %s: %w", recipeID, domain.ErrMalformedInput)
	}
	key := fmt.Sprintf("recipes/%s/cover%s", recipeID, extensionForMIME(mime))
	savedKey, err := s.files.Write(ctx, key, data)
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, domain.ErrStorageFailure)
	}
	return s.baseURL + "/" + savedKey, nil
}

func extensionForMIME(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
