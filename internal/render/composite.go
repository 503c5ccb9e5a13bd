package render

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/fizyk20/atm-raytracer/internal/coloring"
	"github.com/fizyk20/atm-raytracer/internal/config"
	"github.com/fizyk20/atm-raytracer/internal/geom"
	"github.com/fizyk20/atm-raytracer/internal/metadata"
)

// minTransmittance terminates compositing once the remaining background
// contribution would be invisible.
const minTransmittance = 1e-3

// compositePixel merges a pixel's hits front to back under premultiplied
// alpha, applies fog, and composites the remainder against the sky
// gradient. It also yields the pixel's metadata record: the first hit with
// alpha of at least one half.
func compositePixel(p *config.Params, px ResultPixel) (geom.Color, metadata.Record) {
	acc := r3.Vec{}
	transmittance := 1.0
	record := metadata.Miss()
	haveRecord := false

	for _, point := range px.Points {
		c := p.Coloring.ColorAt(coloring.Point{
			Elevation: point.Elevation,
			Distance:  point.Distance,
			Normal:    point.Normal,
			Color:     point.Color,
		})
		if p.FogDistance > 0 {
			w := 1 - math.Exp(-point.PathLength/p.FogDistance)
			c = c.Lerp(p.Coloring.FogColor(), w)
		}
		a := point.Alpha
		acc = r3.Add(acc, r3.Scale(transmittance*a, c.Vec()))
		if !haveRecord && a >= 0.5 {
			record = metadata.Record{
				Lat:        point.Lat,
				Lon:        point.Lon,
				Elevation:  point.Elevation,
				Distance:   point.Distance,
				PathLength: point.PathLength,
			}
			haveRecord = true
		}
		transmittance *= 1 - a
		if transmittance < minTransmittance {
			transmittance = 0
			break
		}
	}

	sky := skyColor(p, px.ElevationAngle)
	acc = r3.Add(acc, r3.Scale(transmittance, sky.Vec()))
	return geom.VecColor(acc), record
}

// skyColor is the background gradient: the horizon color at and below eye
// level, blending linearly to the zenith color with view-space elevation.
func skyColor(p *config.Params, elevAngle float64) geom.Color {
	t := elevAngle / 45
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return p.SkyHorizon.Lerp(p.SkyZenith, t)
}
