package service

import (
	"context"
	"fmt"
	"image"

	"github.com/arturoeanton/go-product-lens/internal/domain"
	"github.com/arturoeanton/go-product-lens/internal/imaging"
	"github.com/arturoeanton/go-product-lens/internal/port"
	"github.com/arturoeanton/go-product-lens/internal/vecmath"
)

// embedder applies pinned preprocessing, calls a remote encoder through the pool
// and returns a validated unit-norm vector.
type embedder struct {
	encoder    port.ImageEncoder
	pool       *InferencePool
	preprocess imaging.Preprocess
	dimension  int
}

func (e *embedder) embed(ctx context.Context, img image.Image) ([]float64, error) {
	data, err := imaging.EncodePNG(e.preprocess.Apply(img))
	if err != nil {
		return nil, err
	}

	var raw []float64
	err = e.pool.Do(ctx, e.encoder.ModelName(), func(ctx context.Context) error {
		var eerr error
		raw, eerr = e.encoder.EncodeImage(ctx, data)
		return eerr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", port.ErrModelUnavailable, err)
	}

	if len(raw) != e.dimension {
		return nil, fmt.Errorf("%w: %s returned %d values, want %d",
			port.ErrDimensionMismatch, e.encoder.ModelName(), len(raw), e.dimension)
	}

	vec, err := vecmath.Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.encoder.ModelName(), err)
	}
	return vec, nil
}

func (e *embedder) schema(kind string) domain.VectorSchema {
	return domain.VectorSchema{Kind: kind, Dimension: e.dimension, Preprocess: e.preprocess.Version()}
}

// EmbedderConfig describes one embedding model.
type EmbedderConfig struct {
	Preprocess imaging.Preprocess
	Dimension  int
}

// CoarseEmbedder produces semantic vectors for approximate retrieval.
type CoarseEmbedder struct {
	embedder
}

// NewCoarseEmbedder creates the coarse embedder.
func NewCoarseEmbedder(encoder port.ImageEncoder, pool *InferencePool, cfg EmbedderConfig) *CoarseEmbedder {
	return &CoarseEmbedder{embedder{encoder: encoder, pool: pool, preprocess: cfg.Preprocess, dimension: cfg.Dimension}}
}

// EmbedCoarse returns the unit-norm coarse vector of img.
func (c *CoarseEmbedder) EmbedCoarse(ctx context.Context, img image.Image) (domain.CoarseVector, error) {
	v, err := c.embed(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("embed coarse: %w", err)
	}
	return domain.CoarseVector(v), nil
}

// Schema returns the pinned coarse schema.
func (c *CoarseEmbedder) Schema() domain.VectorSchema {
	return c.schema(domain.KindCoarse)
}

// FineEmbedder produces geometry-sensitive vectors for re-ranking a short list.
type FineEmbedder struct {
	embedder
}

// NewFineEmbedder creates the fine verifier embedder.
func NewFineEmbedder(encoder port.ImageEncoder, pool *InferencePool, cfg EmbedderConfig) *FineEmbedder {
	return &FineEmbedder{embedder{encoder: encoder, pool: pool, preprocess: cfg.Preprocess, dimension: cfg.Dimension}}
}

// EmbedFine returns the unit-norm fine vector of img.
func (f *FineEmbedder) EmbedFine(ctx context.Context, img image.Image) (domain.FineVector, error) {
	v, err := f.embed(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("embed fine: %w", err)
	}
	return domain.FineVector(v), nil
}

// Schema returns the pinned fine schema.
func (f *FineEmbedder) Schema() domain.VectorSchema {
	return f.schema(domain.KindFine)
}
