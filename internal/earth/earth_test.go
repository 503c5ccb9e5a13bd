package earth

import (
	"math"
	"testing"

	"github.com/fizyk20/atm-raytracer/internal/geom"
)

func TestSphericalAdvance(t *testing.T) {
	oneDegree := Radius * math.Pi / 180

	tests := []struct {
		name             string
		lat0, lon0       float64
		azimuth          float64
		dist             float64
		wantLat, wantLon float64
	}{
		{"north one degree", 0, 0, 0, oneDegree, 1, 0},
		{"east one degree on equator", 0, 0, 90, oneDegree, 0, 1},
		{"south across equator", 0.5, 10, 180, oneDegree, -0.5, 10},
		{"west", 0, 20, 270, oneDegree, 0, 19},
		{"zero distance", 48.1, 17.2, 123, 0, 48.1, 17.2},
	}

	shape := NewSpherical(Radius)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc := shape.Calc(tt.lat0, tt.lon0, tt.azimuth)
			lat, lon := calc.At(tt.dist)
			if math.Abs(lat-tt.wantLat) > 1e-9 || math.Abs(lon-tt.wantLon) > 1e-9 {
				t.Errorf("At(%g) = (%.10f, %.10f), want (%g, %g)",
					tt.dist, lat, lon, tt.wantLat, tt.wantLon)
			}
		})
	}
}

func TestFlatSphericalAdvanceMatchesSpherical(t *testing.T) {
	// FlatSpherical propagates light flat but advances positions along
	// great circles.
	a := NewSpherical(Radius).Calc(50, 20, 73)
	b := NewFlatSpherical(Radius).Calc(50, 20, 73)
	for _, dist := range []float64{0, 1000, 50000, 2e6} {
		lat1, lon1 := a.At(dist)
		lat2, lon2 := b.At(dist)
		if lat1 != lat2 || lon1 != lon2 {
			t.Errorf("advance differs at %g m: (%g, %g) vs (%g, %g)", dist, lat1, lon1, lat2, lon2)
		}
	}
}

func TestFlatDistortedAdvance(t *testing.T) {
	shape := NewFlatDistorted()

	calc := shape.Calc(60, 10, 90)
	lat, lon := calc.At(DegreeDistance)
	if math.Abs(lat-60) > 1e-9 {
		t.Errorf("eastward advance changed latitude: %g", lat)
	}
	// One degree of arc eastward covers 1/cos(60°) = 2 degrees of
	// longitude.
	if math.Abs(lon-12) > 1e-9 {
		t.Errorf("lon = %g, want 12", lon)
	}

	calc = shape.Calc(60, 10, 0)
	lat, lon = calc.At(DegreeDistance)
	if math.Abs(lat-61) > 1e-9 || math.Abs(lon-10) > 1e-9 {
		t.Errorf("northward advance = (%g, %g), want (61, 10)", lat, lon)
	}
}

func TestAzimuthalEquidistantAdvance(t *testing.T) {
	shape := NewAzimuthalEquidistant()

	// Heading north moves straight toward the pole on the AE plane.
	calc := shape.Calc(40, 25, 0)
	lat, lon := calc.At(DegreeDistance)
	if math.Abs(lat-41) > 1e-9 || math.Abs(lon-25) > 1e-9 {
		t.Errorf("northward advance = (%g, %g), want (41, 25)", lat, lon)
	}
}

func TestSlopeFactor(t *testing.T) {
	tests := []struct {
		name  string
		shape Shape
		h     float64
		want  float64
	}{
		{"spherical at surface", NewSpherical(Radius), 0, 1},
		{"spherical aloft", NewSpherical(Radius), Radius / 2, 1.5},
		{"azimuthal equidistant", NewAzimuthalEquidistant(), 1000, 1 + 1000/Radius},
		{"flat spherical", NewFlatSpherical(Radius), 5000, 1},
		{"flat distorted", NewFlatDistorted(), 5000, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.shape.SlopeFactor(tt.h); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("SlopeFactor(%g) = %g, want %g", tt.h, got, tt.want)
			}
		})
	}
}

func TestGreatCircleAzimuth(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
	}{
		{"due north", 0, 0, 10, 0, 0},
		{"due east", 0, 0, 0, 10, 90},
		{"due south", 10, 5, 0, 5, 180},
		{"due west", 0, 10, 0, 0, 270},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GreatCircleAzimuth(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("GreatCircleAzimuth = %g, want %g", got, tt.want)
			}
		})
	}
}

func TestAdvanceRoundTripAzimuth(t *testing.T) {
	// The inverse problem recovers the initial azimuth of a short advance.
	shape := NewSpherical(Radius)
	for _, az := range []float64{0, 45, 133.7, 251, 359} {
		calc := shape.Calc(47, 8, az)
		lat, lon := calc.At(5000)
		got := GreatCircleAzimuth(47, 8, lat, lon)
		// Compare on the circle: a bearing just below 360 equals one just
		// above 0.
		diff := math.Mod(got-az+540, 360) - 180
		if math.Abs(diff) > 1e-3 {
			t.Errorf("azimuth %g recovered as %g", az, got)
		}
	}
}

func TestCartesianConsistency(t *testing.T) {
	// Cartesian positions and world directions agree: moving up moves
	// along the up vector.
	for _, shape := range []Shape{NewSpherical(Radius), NewFlatDistorted()} {
		c := geom.Coords{Lat: 30, Lon: -15, Elev: 0}
		up := func() (x, y, z float64) {
			_, _, u := shape.WorldDirections(c.Lat, c.Lon)
			return u.X, u.Y, u.Z
		}
		ux, uy, uz := up()
		p0 := shape.Cartesian(c)
		c.Elev = 100
		p1 := shape.Cartesian(c)
		dx, dy, dz := p1.X-p0.X, p1.Y-p0.Y, p1.Z-p0.Z
		if math.Abs(dx-100*ux) > 1e-6 || math.Abs(dy-100*uy) > 1e-6 || math.Abs(dz-100*uz) > 1e-6 {
			t.Errorf("%v: elevation change (%g, %g, %g) not along up (%g, %g, %g)",
				shape, dx, dy, dz, ux, uy, uz)
		}
	}
}
