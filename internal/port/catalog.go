package port

import (
	"context"

	"github.com/arturoeanton/go-product-lens/internal/domain"
)

// CatalogStore holds reference vectors and metadata for all catalog items.
// Implementations target pgvector or SQLite.
type CatalogStore interface {
	// EnsureSchema creates tables if needed and verifies that stored vector
	// widths and preprocessing match the running configuration.
	EnsureSchema(ctx context.Context, schemas []domain.VectorSchema) error

	// Upsert appends an entry. An existing ID is left untouched.
	Upsert(ctx context.Context, entry *domain.CatalogEntry) error

	// SearchByCoarse returns up to matchCount entries with cosine similarity
	// >= minThreshold, ordered by descending similarity.
	SearchByCoarse(ctx context.Context, vec domain.CoarseVector, matchCount int, minThreshold float64) ([]domain.Candidate, error)

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)

	// List returns entry metadata, newest first.
	List(ctx context.Context, limit int) ([]domain.CatalogEntry, error)
}

// MediaStore persists uploaded reference images and returns their public URL.
type MediaStore interface {
	Save(ctx context.Context, filename, contentType string, data []byte) (string, error)
	// Delete removes a saved file. Missing files are not an error.
	Delete(ctx context.Context, filename string) error
}

// ImageFetcher downloads an image from a remote URL.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}
