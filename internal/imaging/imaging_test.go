package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/go-product-lens/internal/domain"
	"github.com/arturoeanton/go-product-lens/internal/port"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestDecode(t *testing.T) {
	t.Run("round trips png", func(t *testing.T) {
		data, err := EncodePNG(solid(8, 6, color.RGBA{10, 20, 30, 255}))
		require.NoError(t, err)

		img, format, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, "png", format)
		assert.Equal(t, image.Rect(0, 0, 8, 6), img.Bounds())
		assert.Equal(t, color.RGBA{10, 20, 30, 255}, img.RGBAAt(3, 3))
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, _, err := Decode([]byte("definitely not an image"))
		assert.ErrorIs(t, err, port.ErrInvalidImage)
	})

	t.Run("rejects empty upload", func(t *testing.T) {
		_, _, err := Decode(nil)
		assert.ErrorIs(t, err, port.ErrInvalidImage)
	})
}

func TestToRGBA_ReanchorsOrigin(t *testing.T) {
	src := solid(20, 20, color.RGBA{1, 2, 3, 255}).SubImage(image.Rect(5, 5, 15, 12))
	out := ToRGBA(src)
	assert.Equal(t, image.Rect(0, 0, 10, 7), out.Bounds())
}

func TestCropRect(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 80)

	tests := []struct {
		name string
		box  domain.BoundingBox
		want image.Rectangle
	}{
		{
			name: "interior box expands by margin",
			box:  domain.BoundingBox{X1: 20, Y1: 30, X2: 60, Y2: 50},
			want: image.Rect(15, 25, 65, 55),
		},
		{
			name: "clamps at top left",
			box:  domain.BoundingBox{X1: 2, Y1: 1, X2: 40, Y2: 40},
			want: image.Rect(0, 0, 45, 45),
		},
		{
			name: "clamps at bottom right",
			box:  domain.BoundingBox{X1: 50, Y1: 50, X2: 98, Y2: 79},
			want: image.Rect(45, 45, 100, 80),
		},
		{
			name: "fractional coordinates widen outward",
			box:  domain.BoundingBox{X1: 20.4, Y1: 30.6, X2: 60.2, Y2: 50.7},
			want: image.Rect(15, 25, 66, 56),
		},
		{
			name: "box outside image is empty",
			box:  domain.BoundingBox{X1: 200, Y1: 200, X2: 300, Y2: 300},
			want: image.Rectangle{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CropRect(bounds, tt.box, 5)
			assert.Equal(t, tt.want, got)
			if !got.Empty() {
				assert.True(t, got.In(bounds), "crop %v escapes %v", got, bounds)
			}
		})
	}
}

func TestCrop(t *testing.T) {
	img := solid(10, 10, color.RGBA{0, 0, 0, 255})
	img.SetRGBA(4, 4, color.RGBA{255, 0, 0, 255})

	out := Crop(img, image.Rect(3, 3, 6, 6))
	assert.Equal(t, image.Rect(0, 0, 3, 3), out.Bounds())
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, out.RGBAAt(1, 1))
}

func TestPreprocess(t *testing.T) {
	t.Run("squash", func(t *testing.T) {
		p := Preprocess{Model: "coarse", Mode: ModeSquash, Size: 32}
		require.NoError(t, p.Validate())
		out := p.Apply(solid(100, 40, color.RGBA{9, 9, 9, 255}))
		assert.Equal(t, image.Rect(0, 0, 32, 32), out.Bounds())
		assert.Equal(t, "coarse/squash32/catmullrom-png/v1", p.Version())
	})

	t.Run("center crop on landscape", func(t *testing.T) {
		p := Preprocess{Model: "fine", Mode: ModeCenter, Resize: 32, Crop: 28}
		require.NoError(t, p.Validate())
		out := p.Apply(solid(120, 60, color.RGBA{9, 9, 9, 255}))
		assert.Equal(t, image.Rect(0, 0, 28, 28), out.Bounds())
		assert.Equal(t, "fine/short32-center28/catmullrom-png/v1", p.Version())
	})

	t.Run("center crop on portrait", func(t *testing.T) {
		p := Preprocess{Model: "fine", Mode: ModeCenter, Resize: 16, Crop: 16}
		out := p.Apply(solid(30, 90, color.RGBA{9, 9, 9, 255}))
		assert.Equal(t, image.Rect(0, 0, 16, 16), out.Bounds())
	})

	t.Run("deterministic", func(t *testing.T) {
		p := Preprocess{Model: "fine", Mode: ModeCenter, Resize: 20, Crop: 16}
		src := solid(50, 70, color.RGBA{40, 80, 120, 255})
		src.SetRGBA(25, 35, color.RGBA{255, 255, 255, 255})
		a, err := EncodePNG(p.Apply(src))
		require.NoError(t, err)
		b, err := EncodePNG(p.Apply(src))
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("invalid geometry", func(t *testing.T) {
		assert.Error(t, Preprocess{Mode: ModeSquash}.Validate())
		assert.Error(t, Preprocess{Mode: ModeCenter, Resize: 10, Crop: 20}.Validate())
		assert.Error(t, Preprocess{Mode: "zoom", Size: 10}.Validate())
	})
}
