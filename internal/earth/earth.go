// Package earth implements the Earth-shape models used by the renderer.
//
// A Shape answers three questions: how light propagates relative to the
// reference surface (curved with some radius, or flat), how a geographic
// position advances along a fixed initial azimuth with surface arc distance,
// and what the local north/east/up frame looks like at a point.
package earth

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/fizyk20/atm-raytracer/internal/geom"
)

// Radius is the standard spherical Earth radius in meters.
const Radius = 6371000.0

// DegreeDistance is the surface length of one degree of arc, meters.
const DegreeDistance = 10_000_000.0 / 90.0

// Kind selects one of the four supported Earth-shape variants.
type Kind int

const (
	// Spherical is the standard sphere: curved light propagation,
	// great-circle position advance.
	Spherical Kind = iota
	// AzimuthalEquidistant keeps globe propagation geometry but advances
	// positions on the polar azimuthal-equidistant plane.
	AzimuthalEquidistant
	// FlatSpherical propagates light over a flat surface while mapping arc
	// distance to positions along great circles of radius R.
	FlatSpherical
	// FlatDistorted is the flat-Earth model: straight light paths and
	// equirectangular offsets with longitude scaled by cos(lat0).
	FlatDistorted
)

// Shape is one of the closed set of Earth models.
type Shape struct {
	Kind Kind
	R    float64 // radius, meters; ignored by FlatDistorted
}

// NewSpherical returns the standard curved model with the given radius.
func NewSpherical(r float64) Shape { return Shape{Kind: Spherical, R: r} }

// NewAzimuthalEquidistant returns the AE model at the standard radius.
func NewAzimuthalEquidistant() Shape {
	return Shape{Kind: AzimuthalEquidistant, R: Radius}
}

// NewFlatSpherical returns the flat-propagation, spherical-advance model.
func NewFlatSpherical(r float64) Shape { return Shape{Kind: FlatSpherical, R: r} }

// NewFlatDistorted returns the flat-Earth model.
func NewFlatDistorted() Shape { return Shape{Kind: FlatDistorted} }

// Curved reports whether light propagates in curved geometry, in which case
// CurvatureRadius is meaningful.
func (s Shape) Curved() bool {
	return s.Kind == Spherical || s.Kind == AzimuthalEquidistant
}

// CurvatureRadius returns the propagation radius for curved shapes.
func (s Shape) CurvatureRadius() float64 { return s.R }

// SlopeFactor is the arc-to-chord scale 1 + h/R at altitude h, or 1 for the
// flat variants.
func (s Shape) SlopeFactor(h float64) float64 {
	if !s.Curved() {
		return 1
	}
	return 1 + h/s.R
}

func (s Shape) String() string {
	switch s.Kind {
	case Spherical:
		return fmt.Sprintf("spherical(R=%.0f)", s.R)
	case AzimuthalEquidistant:
		return "azimuthal-equidistant"
	case FlatSpherical:
		return fmt.Sprintf("flat-spherical(R=%.0f)", s.R)
	case FlatDistorted:
		return "flat-distorted"
	}
	return "unknown"
}

// DirectionalCalc solves the direct geodetic problem for one ray: positions
// along a fixed initial azimuth as a function of surface arc distance.
type DirectionalCalc interface {
	// At returns the geographic position after arc distance dist (meters).
	At(dist float64) (lat, lon float64)
}

// Calc returns the directional calculator for a ray starting at (lat0, lon0)
// with the given initial azimuth in degrees.
func (s Shape) Calc(lat0, lon0, azimuth float64) DirectionalCalc {
	switch s.Kind {
	case Spherical, FlatSpherical:
		return newSphericalCalc(s.R, lat0, lon0, azimuth)
	case AzimuthalEquidistant:
		pos := s.Cartesian(geom.Coords{Lat: lat0, Lon: lon0})
		north, east, _ := s.WorldDirections(lat0, lon0)
		az := azimuth * math.Pi / 180
		dir := r3.Add(r3.Scale(math.Cos(az), north), r3.Scale(math.Sin(az), east))
		return &azEqCalc{pos: pos, dir: dir}
	default:
		return &flatDistortedCalc{lat0: lat0, lon0: lon0, azimuth: azimuth}
	}
}

type sphericalCalc struct {
	radius float64
	pos    r3.Vec // unit vector to the start point
	dir    r3.Vec // unit tangent in the azimuth direction
}

func newSphericalCalc(radius, lat0, lon0, azimuth float64) *sphericalCalc {
	north, east, up := sphericalDirections(lat0, lon0)
	az := azimuth * math.Pi / 180
	return &sphericalCalc{
		radius: radius,
		pos:    up,
		dir:    r3.Add(r3.Scale(math.Cos(az), north), r3.Scale(math.Sin(az), east)),
	}
}

func (c *sphericalCalc) At(dist float64) (float64, float64) {
	ang := dist / c.radius
	p := r3.Add(r3.Scale(math.Cos(ang), c.pos), r3.Scale(math.Sin(ang), c.dir))
	lat := math.Asin(p.Z) * 180 / math.Pi
	lon := math.Atan2(p.Y, p.X) * 180 / math.Pi
	return lat, lon
}

type azEqCalc struct {
	pos r3.Vec
	dir r3.Vec
}

func (c *azEqCalc) At(dist float64) (float64, float64) {
	p := r3.Add(c.pos, r3.Scale(dist, c.dir))
	lon := math.Atan2(p.Y, p.X) * 180 / math.Pi
	r := math.Hypot(p.X, p.Y)
	lat := 90 - r/DegreeDistance
	return lat, lon
}

type flatDistortedCalc struct {
	lat0, lon0, azimuth float64
}

func (c *flatDistortedCalc) At(dist float64) (float64, float64) {
	az := c.azimuth * math.Pi / 180
	dLat := math.Cos(az) * dist / DegreeDistance
	dLon := math.Sin(az) * dist / DegreeDistance / math.Cos(c.lat0*math.Pi/180)
	return c.lat0 + dLat, c.lon0 + dLon
}

// WorldDirections returns unit vectors pointing north, east and up at the
// given position, in the model's cartesian frame.
func (s Shape) WorldDirections(lat, lon float64) (north, east, up r3.Vec) {
	switch s.Kind {
	case Spherical, FlatSpherical:
		return sphericalDirections(lat, lon)
	default:
		// On the AE plane the radial direction from the pole is south.
		lonRad := lon * math.Pi / 180
		sinLon, cosLon := math.Sincos(lonRad)
		north = r3.Vec{X: -cosLon, Y: -sinLon}
		east = r3.Vec{X: -sinLon, Y: cosLon}
		up = r3.Vec{Z: 1}
		return north, east, up
	}
}

// Cartesian maps a geographic position into the model's cartesian frame.
// Used for scene-object intersection, where segments are short enough for
// straight-line treatment.
func (s Shape) Cartesian(c geom.Coords) r3.Vec {
	switch s.Kind {
	case Spherical, FlatSpherical:
		r := s.R + c.Elev
		latRad := c.Lat * math.Pi / 180
		lonRad := c.Lon * math.Pi / 180
		sinLat, cosLat := math.Sincos(latRad)
		sinLon, cosLon := math.Sincos(lonRad)
		return r3.Vec{X: r * cosLat * cosLon, Y: r * cosLat * sinLon, Z: r * sinLat}
	default:
		r := (90 - c.Lat) * DegreeDistance
		lonRad := c.Lon * math.Pi / 180
		return r3.Vec{X: r * math.Cos(lonRad), Y: r * math.Sin(lonRad), Z: c.Elev}
	}
}

func sphericalDirections(lat, lon float64) (north, east, up r3.Vec) {
	latRad := lat * math.Pi / 180
	lonRad := lon * math.Pi / 180
	sinLat, cosLat := math.Sincos(latRad)
	sinLon, cosLon := math.Sincos(lonRad)

	up = r3.Vec{X: cosLat * cosLon, Y: cosLat * sinLon, Z: sinLat}
	north = r3.Vec{X: -sinLat * cosLon, Y: -sinLat * sinLon, Z: cosLat}
	east = r3.Vec{X: -sinLon, Y: cosLon}
	return north, east, up
}

// GreatCircleAzimuth returns the initial bearing from one position to
// another on a sphere, in degrees in [0, 360).
func GreatCircleAzimuth(lat1, lon1, lat2, lon2 float64) float64 {
	f1 := lat1 * math.Pi / 180
	f2 := lat2 * math.Pi / 180
	dl := (lon2 - lon1) * math.Pi / 180
	y := math.Sin(dl) * math.Cos(f2)
	x := math.Cos(f1)*math.Sin(f2) - math.Sin(f1)*math.Cos(f2)*math.Cos(dl)
	az := math.Atan2(y, x) * 180 / math.Pi
	if az < 0 {
		az += 360
	}
	return az
}
