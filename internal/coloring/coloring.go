// Package coloring converts terrain hits into colors: a plain
// elevation-ramped palette and a shaded variant driven by DEM surface
// normals.
package coloring

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/fizyk20/atm-raytracer/internal/geom"
)

// Point is the shading input for one hit.
type Point struct {
	Elevation float64
	Distance  float64
	// Normal is the surface normal at the hit, in the Earth model's frame.
	Normal r3.Vec
	// Color is set for object hits; terrain hits leave it nil.
	Color *geom.Color
}

// Coloring turns hits into RGB colors.
type Coloring interface {
	ColorAt(p Point) geom.Color
	SkyColor() geom.Color
	FogColor() geom.Color
}

// Palette selects the terrain color ramp.
type Palette int

const (
	// PaletteImproved is the default soft ramp.
	PaletteImproved Palette = iota
	// PaletteLegacy is the original saturated ramp.
	PaletteLegacy
)

func (p Palette) skyColor() r3.Vec {
	if p == PaletteLegacy {
		return r3.Vec{X: 0.11, Y: 0.11, Z: 0.11}
	}
	return r3.Vec{X: 0.23, Y: 0.41, Z: 0.55}
}

func (p Palette) waterColor() r3.Vec {
	if p == PaletteLegacy {
		return r3.Vec{X: 0, Y: 0.5, Z: 1}
	}
	return r3.Vec{X: 0.23, Y: 0.41, Z: 0.55}
}

// elevColor is the elevation ramp between fixed thresholds.
func (p Palette) elevColor(elev float64) r3.Vec {
	type stop struct {
		elev  float64
		color r3.Vec
	}
	var stops []stop
	if p == PaletteLegacy {
		stops = []stop{
			{300, r3.Vec{X: 0, Y: 1, Z: 0}},
			{1200, r3.Vec{X: 0.6, Y: 1, Z: 0}},
			{1800, r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}},
			{3000, r3.Vec{X: 1, Y: 1, Z: 1}},
		}
	} else {
		stops = []stop{
			{300, r3.Vec{X: 0.4, Y: 0.8, Z: 0.3}},
			{1000, r3.Vec{X: 0.77, Y: 0.84, Z: 0.4}},
			{1800, r3.Vec{X: 0.41, Y: 0.52, Z: 0.4}},
			{3000, r3.Vec{X: 0.85, Y: 0.92, Z: 0.95}},
		}
	}
	if elev < stops[0].elev {
		return stops[0].color
	}
	for i := 1; i < len(stops); i++ {
		if elev < stops[i].elev {
			t := (elev - stops[i-1].elev) / (stops[i].elev - stops[i-1].elev)
			return lerp(stops[i-1].color, stops[i].color, t)
		}
	}
	return stops[len(stops)-1].color
}

func lerp(a, b r3.Vec, t float64) r3.Vec {
	return r3.Add(r3.Scale(1-t, a), r3.Scale(t, b))
}

// Simple is the distance-faded HSV elevation ramp with flat water below the
// water level.
type Simple struct {
	WaterLevel  float64
	MaxDistance float64
}

func (s *Simple) ColorAt(p Point) geom.Color {
	if p.Color != nil {
		return *p.Color
	}
	distRatio := p.Distance / s.MaxDistance
	if p.Elevation <= s.WaterLevel {
		mul := 1 - distRatio*0.6
		return geom.Color{G: 128.0 / 255.0 * mul, B: mul, A: 1}
	}
	elevRatio := p.Elevation / 4500.0
	sgn := 1.0
	if elevRatio < 0 {
		sgn, elevRatio = -1, -elevRatio
	}
	h := 120.0 - 240.0*sgn*math.Pow(elevRatio, 0.65)
	elevRatio *= sgn
	var v float64
	if elevRatio > 0.7 {
		v = 2.1 - elevRatio*2.0
	} else {
		v = 0.9 - elevRatio/0.7*0.2
	}
	v *= 1 - distRatio*0.6
	sat := 1 - distRatio*0.9
	return hsv(h, sat, v)
}

func (s *Simple) SkyColor() geom.Color { return geom.Color{R: 0.11, G: 0.11, B: 0.11, A: 1} }
func (s *Simple) FogColor() geom.Color {
	return geom.Color{R: 160.0 / 255.0, G: 160.0 / 255.0, B: 160.0 / 255.0, A: 1}
}

// Shading multiplies the palette ramp by diffuse lighting from the DEM
// normal.
type Shading struct {
	WaterLevel   float64
	AmbientLight float64
	// LightDir points from the surface toward the light, unit length.
	LightDir r3.Vec
	Palette  Palette
}

func (s *Shading) brightness(normal r3.Vec) float64 {
	d := r3.Dot(s.LightDir, normal)
	if d < 0 {
		d = 0
	}
	return s.AmbientLight + (1-s.AmbientLight)*d
}

func (s *Shading) ColorAt(p Point) geom.Color {
	var c r3.Vec
	switch {
	case p.Color != nil:
		c = p.Color.Vec()
	case p.Elevation <= s.WaterLevel:
		c = s.Palette.waterColor()
	default:
		c = s.Palette.elevColor(p.Elevation)
	}
	return geom.VecColor(r3.Scale(s.brightness(p.Normal), c))
}

func (s *Shading) SkyColor() geom.Color { return geom.VecColor(s.Palette.skyColor()) }
func (s *Shading) FogColor() geom.Color {
	return geom.Color{R: 160.0 / 255.0, G: 160.0 / 255.0, B: 160.0 / 255.0, A: 1}
}

func hsv(h, s, v float64) geom.Color {
	c := v * s
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c
	var rp, gp, bp float64
	switch {
	case h < 60:
		rp, gp = c, x
	case h < 120:
		rp, gp = x, c
	case h < 180:
		gp, bp = c, x
	case h < 240:
		gp, bp = x, c
	case h < 300:
		rp, bp = x, c
	default:
		rp, bp = c, x
	}
	return geom.Color{R: rp + m, G: gp + m, B: bp + m, A: 1}
}
