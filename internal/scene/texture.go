package scene

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/nfnt/resize"

	"github.com/fizyk20/atm-raytracer/internal/geom"
)

// Texture wraps a decoded billboard image with nearest-neighbor sampling.
type Texture struct {
	img image.Image
}

// LoadTexture decodes the image at path. When maxSize > 0, images whose
// larger side exceeds it are downscaled to bound the per-object memory.
func LoadTexture(path string, maxSize int) (*Texture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening texture %s: %w", path, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding texture %s: %w", path, err)
	}
	b := img.Bounds()
	if maxSize > 0 && (b.Dx() > maxSize || b.Dy() > maxSize) {
		if b.Dx() >= b.Dy() {
			img = resize.Resize(uint(maxSize), 0, img, resize.Lanczos3)
		} else {
			img = resize.Resize(0, uint(maxSize), img, resize.Lanczos3)
		}
	}
	return &Texture{img: img}, nil
}

// NewTexture wraps an in-memory image; used by tests.
func NewTexture(img image.Image) *Texture { return &Texture{img: img} }

// Sample returns the nearest texel at (u, v) in [0, 1)², v pointing up.
func (t *Texture) Sample(u, v float64) geom.Color {
	b := t.img.Bounds()
	x := b.Min.X + int(clamp01(u)*float64(b.Dx()-1)+0.5)
	y := b.Min.Y + int(clamp01(1-v)*float64(b.Dy()-1)+0.5)
	return geom.FromRGBA(t.img.At(x, y).RGBA())
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
