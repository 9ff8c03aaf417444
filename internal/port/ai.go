package port

import (
	"context"

	"github.com/arturoeanton/go-product-lens/internal/domain"
)

// Detector abstracts an open-vocabulary object detection backend.
type Detector interface {
	// ModelName returns the identifier of the detection model.
	ModelName() string

	// Detect returns every detection for the encoded image conditioned on labels.
	Detect(ctx context.Context, image []byte, labels []string) ([]domain.BoundingBox, error)

	// Ping reports whether the backend is reachable and the model is loaded.
	Ping(ctx context.Context) error
}

// ImageEncoder abstracts a backend that turns an encoded image into a raw embedding.
// Normalization and dimension checks are the caller's job.
type ImageEncoder interface {
	// ModelName returns the identifier of the embedding model.
	ModelName() string

	// EncodeImage returns the raw embedding of one encoded image.
	EncodeImage(ctx context.Context, image []byte) ([]float64, error)

	// Ping reports whether the backend is reachable and the model is loaded.
	Ping(ctx context.Context) error
}
