// Package imaging decodes uploads and applies the pixel operations the pipeline
// depends on: subject crop and the pinned embedding preprocessing.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"

	// Registered decoders for uploads.
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/image/draw"

	"github.com/arturoeanton/go-product-lens/internal/domain"
	"github.com/arturoeanton/go-product-lens/internal/port"
)

// Decode decodes an uploaded image into an RGBA raster anchored at (0,0).
// Any decoder error is reported as port.ErrInvalidImage.
func Decode(data []byte) (*image.RGBA, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty upload", port.ErrInvalidImage)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", port.ErrInvalidImage, err)
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, "", fmt.Errorf("%w: zero-sized image", port.ErrInvalidImage)
	}
	return ToRGBA(img), format, nil
}

// ToRGBA copies img into a new RGBA raster whose bounds start at (0,0).
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// EncodePNG encodes img losslessly for transport to a model server.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// CropRect expands box by margin pixels on each side and clamps it to bounds.
// The minimum edge is floored and the maximum edge ceiled before clamping.
// The result may be empty when the box lies entirely outside bounds.
func CropRect(bounds image.Rectangle, box domain.BoundingBox, margin int) image.Rectangle {
	m := float64(margin)
	r := image.Rect(
		int(math.Floor(box.X1-m)),
		int(math.Floor(box.Y1-m)),
		int(math.Ceil(box.X2+m)),
		int(math.Ceil(box.Y2+m)),
	)
	return r.Intersect(bounds)
}

// Crop copies the r region of img into a new raster anchored at (0,0).
func Crop(img image.Image, r image.Rectangle) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}
