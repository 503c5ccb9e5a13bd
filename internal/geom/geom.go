// Package geom holds the small shared geometry and color types used across
// the renderer: geographic coordinates, RGBA colors in [0,1] channels, and
// conversions between them and image-package pixel types.
package geom

import (
	"image/color"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Coords is a geographic position: latitude and longitude in degrees,
// elevation in meters above mean sea level.
type Coords struct {
	Lat  float64
	Lon  float64
	Elev float64
}

// Lerp interpolates linearly between two positions.
func (c Coords) Lerp(other Coords, t float64) Coords {
	return Coords{
		Lat:  c.Lat + (other.Lat-c.Lat)*t,
		Lon:  c.Lon + (other.Lon-c.Lon)*t,
		Elev: c.Elev + (other.Elev-c.Elev)*t,
	}
}

// Color is an RGBA color with channels in [0, 1].
type Color struct {
	R float64
	G float64
	B float64
	A float64
}

// Lerp interpolates all four channels.
func (c Color) Lerp(other Color, t float64) Color {
	return Color{
		R: c.R + (other.R-c.R)*t,
		G: c.G + (other.G-c.G)*t,
		B: c.B + (other.B-c.B)*t,
		A: c.A + (other.A-c.A)*t,
	}
}

// Vec returns the RGB channels as a vector, dropping alpha.
func (c Color) Vec() r3.Vec { return r3.Vec{X: c.R, Y: c.G, Z: c.B} }

// VecColor wraps an RGB vector back into an opaque Color.
func VecColor(v r3.Vec) Color { return Color{R: v.X, G: v.Y, B: v.Z, A: 1} }

// RGB8 clamps and packs the color into an 8-bit RGBA pixel with full alpha.
func (c Color) RGB8() color.RGBA {
	return color.RGBA{
		R: clamp8(c.R),
		G: clamp8(c.G),
		B: clamp8(c.B),
		A: 255,
	}
}

// FromRGBA converts an image-package color (16-bit premultiplied channels as
// returned by color.Color.RGBA) into channel values in [0, 1].
func FromRGBA(r, g, b, a uint32) Color {
	if a == 0 {
		return Color{}
	}
	// Un-premultiply so texture alpha composes correctly later.
	fa := float64(a) / 65535.0
	return Color{
		R: float64(r) / float64(a),
		G: float64(g) / float64(a),
		B: float64(b) / float64(a),
		A: fa,
	}
}

func clamp8(x float64) uint8 {
	v := math.Round(x * 255.0)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
