package imaging

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// Resize modes.
const (
	ModeSquash = "squash" // scale both axes to Size, ignoring aspect ratio
	ModeCenter = "center" // scale shortest edge to Resize, then center crop Crop x Crop
)

// Preprocess is the pinned pixel preprocessing applied before an image is sent to an encoder.
// Catalog vectors and query vectors must be produced under the same Preprocess; its Version
// is persisted in the catalog schema table.
type Preprocess struct {
	Model  string
	Mode   string
	Size   int
	Resize int
	Crop   int
}

// Version identifies the preprocessing for schema pinning.
func (p Preprocess) Version() string {
	switch p.Mode {
	case ModeCenter:
		return fmt.Sprintf("%s/short%d-center%d/catmullrom-png/v1", p.Model, p.Resize, p.Crop)
	default:
		return fmt.Sprintf("%s/squash%d/catmullrom-png/v1", p.Model, p.Size)
	}
}

// Validate checks that the geometry is usable.
func (p Preprocess) Validate() error {
	switch p.Mode {
	case ModeSquash:
		if p.Size <= 0 {
			return fmt.Errorf("preprocess %s: size must be positive", p.Model)
		}
	case ModeCenter:
		if p.Resize <= 0 || p.Crop <= 0 || p.Crop > p.Resize {
			return fmt.Errorf("preprocess %s: need 0 < crop <= resize", p.Model)
		}
	default:
		return fmt.Errorf("preprocess %s: unknown mode %q", p.Model, p.Mode)
	}
	return nil
}

// Apply resizes img according to p. The output is deterministic for identical input pixels.
func (p Preprocess) Apply(img image.Image) *image.RGBA {
	switch p.Mode {
	case ModeCenter:
		return p.center(img)
	default:
		return scale(img, p.Size, p.Size)
	}
}

func (p Preprocess) center(img image.Image) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	var nw, nh int
	if w <= h {
		nw = p.Resize
		nh = max(p.Resize*h/w, p.Resize)
	} else {
		nh = p.Resize
		nw = max(p.Resize*w/h, p.Resize)
	}
	resized := scale(img, nw, nh)

	x0 := (nw - p.Crop) / 2
	y0 := (nh - p.Crop) / 2
	return Crop(resized, image.Rect(x0, y0, x0+p.Crop, y0+p.Crop))
}

func scale(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}
