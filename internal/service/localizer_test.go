package service

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arturoeanton/go-product-lens/internal/domain"
)

func TestSelectBest(t *testing.T) {
	tests := []struct {
		name   string
		boxes  []domain.BoundingBox
		wantOK bool
		want   float64
	}{
		{name: "no boxes", boxes: nil},
		{name: "below floor", boxes: []domain.BoundingBox{{Confidence: 0.14}, {Confidence: 0.05}}},
		{name: "at floor", boxes: []domain.BoundingBox{{Confidence: 0.15}}, wantOK: true, want: 0.15},
		{
			name:   "max wins",
			boxes:  []domain.BoundingBox{{Confidence: 0.3}, {Confidence: 0.9, Label: "watch"}, {Confidence: 0.5}},
			wantOK: true,
			want:   0.9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			box, ok := selectBest(tt.boxes, 0.15)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, box.Confidence)
			}
		})
	}
}

func TestLocalizer_CropToBestBox(t *testing.T) {
	det := &fakeDetector{boxes: []domain.BoundingBox{
		{X1: 10, Y1: 20, X2: 50, Y2: 60, Confidence: 0.8, Label: "watch"},
		{X1: 0, Y1: 0, X2: 100, Y2: 100, Confidence: 0.2},
	}}
	loc := NewLocalizer(det, NewInferencePool(1, false), DefaultLocalizerConfig())

	out := loc.Crop(context.Background(), testImage(100, 80, 1))

	assert.Equal(t, image.Rect(0, 0, 50, 50), out.Bounds())
	assert.Equal(t, DefaultDetectionLabels, det.labels)
}

func TestLocalizer_CropClampsToImage(t *testing.T) {
	det := &fakeDetector{boxes: []domain.BoundingBox{{X1: 2, Y1: 3, X2: 98, Y2: 79.5, Confidence: 0.9}}}
	loc := NewLocalizer(det, NewInferencePool(1, false), DefaultLocalizerConfig())

	out := loc.Crop(context.Background(), testImage(100, 80, 1))

	assert.Equal(t, image.Rect(0, 0, 100, 80), out.Bounds())
}

func TestLocalizer_FallsBackToOriginal(t *testing.T) {
	img := testImage(40, 30, 2)

	tests := []struct {
		name string
		det  *fakeDetector
	}{
		{name: "no detection", det: &fakeDetector{}},
		{name: "low confidence", det: &fakeDetector{boxes: []domain.BoundingBox{{X1: 1, Y1: 1, X2: 10, Y2: 10, Confidence: 0.1}}}},
		{name: "detector error", det: &fakeDetector{err: errors.New("connection refused")}},
		{name: "box outside image", det: &fakeDetector{boxes: []domain.BoundingBox{{X1: 500, Y1: 500, X2: 600, Y2: 600, Confidence: 0.9}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc := NewLocalizer(tt.det, NewInferencePool(1, false), DefaultLocalizerConfig())
			out := loc.Crop(context.Background(), img)
			assert.Same(t, img, out)
		})
	}
}

func TestNewLocalizer_Defaults(t *testing.T) {
	loc := NewLocalizer(&fakeDetector{}, NewInferencePool(1, false), LocalizerConfig{MinConfidence: -1, Margin: -1})
	assert.Equal(t, DefaultDetectionLabels, loc.cfg.Labels)
	assert.Equal(t, 0.15, loc.cfg.MinConfidence)
	assert.Equal(t, 5, loc.cfg.Margin)
}

func TestNewLocalizer_ZeroFloorAndMarginKept(t *testing.T) {
	det := &fakeDetector{boxes: []domain.BoundingBox{{X1: 10, Y1: 10, X2: 30, Y2: 20, Confidence: 0.05}}}
	loc := NewLocalizer(det, NewInferencePool(1, false), LocalizerConfig{})

	assert.Equal(t, 0.0, loc.cfg.MinConfidence)
	assert.Equal(t, 0, loc.cfg.Margin)

	out := loc.Crop(context.Background(), testImage(40, 30, 2))
	assert.Equal(t, image.Rect(0, 0, 20, 10), out.Bounds())
}
