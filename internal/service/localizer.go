package service

import (
	"context"
	"image"
	"log/slog"

	"github.com/arturoeanton/go-product-lens/internal/domain"
	"github.com/arturoeanton/go-product-lens/internal/imaging"
	"github.com/arturoeanton/go-product-lens/internal/port"
)

// DefaultDetectionLabels are the open-vocabulary classes the detector is conditioned on.
var DefaultDetectionLabels = []string{"product", "watch", "shoe", "clothing", "electronic device"}

const (
	defaultMinConfidence = 0.15
	defaultCropMargin    = 5
)

// LocalizerConfig tunes subject localization.
type LocalizerConfig struct {
	Labels        []string
	MinConfidence float64 // detections below this floor are ignored
	Margin        int     // pixels added on each side of the selected box
}

// Localizer finds the product in a cluttered photo and crops to it.
type Localizer struct {
	detector port.Detector
	pool     *InferencePool
	cfg      LocalizerConfig
}

// DefaultLocalizerConfig returns the stock labels, floor and margin.
func DefaultLocalizerConfig() LocalizerConfig {
	return LocalizerConfig{
		Labels:        DefaultDetectionLabels,
		MinConfidence: defaultMinConfidence,
		Margin:        defaultCropMargin,
	}
}

// NewLocalizer creates a localizer. Empty labels, a negative floor or a
// negative margin fall back to the defaults; a zero floor or margin is kept.
func NewLocalizer(detector port.Detector, pool *InferencePool, cfg LocalizerConfig) *Localizer {
	if len(cfg.Labels) == 0 {
		cfg.Labels = DefaultDetectionLabels
	}
	if cfg.MinConfidence < 0 {
		cfg.MinConfidence = defaultMinConfidence
	}
	if cfg.Margin < 0 {
		cfg.Margin = defaultCropMargin
	}
	return &Localizer{detector: detector, pool: pool, cfg: cfg}
}

// Locate returns the highest-confidence detection at or above the floor.
// A detector failure counts as no detection.
func (l *Localizer) Locate(ctx context.Context, img image.Image) (domain.BoundingBox, bool) {
	data, err := imaging.EncodePNG(img)
	if err != nil {
		slog.Warn("localizer: encode failed", "error", err)
		return domain.BoundingBox{}, false
	}

	var boxes []domain.BoundingBox
	err = l.pool.Do(ctx, l.detector.ModelName(), func(ctx context.Context) error {
		var derr error
		boxes, derr = l.detector.Detect(ctx, data, l.cfg.Labels)
		return derr
	})
	if err != nil {
		slog.Warn("localizer: detection failed, using full image", "model", l.detector.ModelName(), "error", err)
		return domain.BoundingBox{}, false
	}

	return selectBest(boxes, l.cfg.MinConfidence)
}

// Crop returns img cropped to the located subject plus margin, or img itself
// when nothing was confidently localized.
func (l *Localizer) Crop(ctx context.Context, img *image.RGBA) *image.RGBA {
	box, ok := l.Locate(ctx, img)
	if !ok {
		return img
	}

	r := imaging.CropRect(img.Bounds(), box, l.cfg.Margin)
	if r.Empty() {
		slog.Warn("localizer: box outside image", "box", box, "bounds", img.Bounds())
		return img
	}
	slog.Debug("localizer: cropped", "label", box.Label, "confidence", box.Confidence, "rect", r)
	return imaging.Crop(img, r)
}

// Ping checks the detection backend.
func (l *Localizer) Ping(ctx context.Context) error {
	return l.detector.Ping(ctx)
}

// selectBest picks the maximum-confidence box; the first one wins ties.
func selectBest(boxes []domain.BoundingBox, floor float64) (domain.BoundingBox, bool) {
	best := -1
	for i, b := range boxes {
		if best < 0 || b.Confidence > boxes[best].Confidence {
			best = i
		}
	}
	if best < 0 || boxes[best].Confidence < floor {
		return domain.BoundingBox{}, false
	}
	return boxes[best], true
}
