// Package scene holds the user-placed objects a ray can hit besides the
// terrain: upright frustums (cylinders and cones are special cases) and
// textured billboards that always face the observer.
package scene

import (
	"math"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/fizyk20/atm-raytracer/internal/earth"
	"github.com/fizyk20/atm-raytracer/internal/geom"
)

// Intersection is one crossing of a ray segment with an object.
type Intersection struct {
	// T is the position along the segment in [0, 1).
	T float64
	// Normal is the outward surface normal at the crossing.
	Normal r3.Vec
	// Color is the object's RGBA there; billboard colors come from the
	// texture sample.
	Color geom.Color
}

// Object is anything placeable in the scene.
type Object interface {
	// Bound returns the bounding cylinder: axis through Position, maximal
	// radius, and the altitude span above the object base.
	Bound() (pos geom.Coords, rMax, hMin, hMax float64)
	// Intersect tests the segment between two ray sample points, returning
	// crossings ordered by T.
	Intersect(shape earth.Shape, p1, p2 geom.Coords) []Intersection
}

// Close is the cheap per-sample prefilter: whether the ground track point
// (lat, lon) is near enough to the object for a segment of the given step to
// possibly touch it.
func Close(obj Object, shape earth.Shape, step float64, lat, lon float64) bool {
	pos, rMax, _, _ := obj.Bound()
	at := shape.Cartesian(geom.Coords{Lat: lat, Lon: lon, Elev: pos.Elev})
	center := shape.Cartesian(pos)
	d := r3.Sub(at, center)
	reach := rMax + step
	return r3.Dot(d, d) < 2*reach*reach
}

// boundHit tests the segment against the object's bounding cylinder before
// the exact primitive test.
func boundHit(shape earth.Shape, obj Object, p1, p2 geom.Coords) bool {
	pos, rMax, hMin, hMax := obj.Bound()
	if p1.Elev > pos.Elev+hMax && p2.Elev > pos.Elev+hMax {
		return false
	}
	if p1.Elev < pos.Elev+hMin && p2.Elev < pos.Elev+hMin {
		return false
	}
	center := shape.Cartesian(pos)
	_, _, up := shape.WorldDirections(pos.Lat, pos.Lon)
	a := r3.Sub(shape.Cartesian(p1), center)
	b := r3.Sub(shape.Cartesian(p2), center)
	// Distance of the segment from the axis, in the plane normal to up.
	a = r3.Sub(a, r3.Scale(r3.Dot(a, up), up))
	b = r3.Sub(b, r3.Scale(r3.Dot(b, up), up))
	return segmentPointDistSq(a, b) <= rMax*rMax
}

// segmentPointDistSq is the squared distance from the origin to segment ab.
func segmentPointDistSq(a, b r3.Vec) float64 {
	ab := r3.Sub(b, a)
	den := r3.Dot(ab, ab)
	t := 0.0
	if den > 0 {
		t = -r3.Dot(a, ab) / den
	}
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	p := r3.Add(a, r3.Scale(t, ab))
	return r3.Dot(p, p)
}

// Frustum is an upright conical frustum: radius R1 at the base, R2 at the
// top. R1 == R2 is a cylinder, R2 == 0 a cone.
type Frustum struct {
	Position geom.Coords
	R1, R2   float64
	Height   float64
	Color    geom.Color
}

func (f *Frustum) Bound() (geom.Coords, float64, float64, float64) {
	return f.Position, math.Max(f.R1, f.R2), 0, f.Height
}

func (f *Frustum) Intersect(shape earth.Shape, p1, p2 geom.Coords) []Intersection {
	if !boundHit(shape, f, p1, p2) {
		return nil
	}
	pos1 := shape.Cartesian(p1)
	pos2 := shape.Cartesian(p2)
	center := shape.Cartesian(f.Position)
	_, _, v := shape.WorldDirections(f.Position.Lat, f.Position.Lon)

	q1 := r3.Sub(pos1, center)
	w := r3.Sub(pos2, pos1)

	q1sq := r3.Dot(q1, q1)
	wsq := r3.Dot(w, w)
	q1v := r3.Dot(q1, v)
	q1w := r3.Dot(q1, w)
	wv := r3.Dot(w, v)

	slope := (f.R2 - f.R1) / f.Height
	s1 := 1 + slope*slope

	a := wsq - wv*wv*s1
	b := 2 * (q1w - wv*(q1v*s1+slope*f.R1))
	c := q1sq - q1v*q1v*s1 - f.R1*f.R1 - 2*slope*f.R1*q1v

	var hits []Intersection

	if delta := b*b - 4*a*c; delta >= 0 && a != 0 {
		sq := math.Sqrt(delta)
		t1 := (-b - sq) / (2 * a)
		t2 := (-b + sq) / (2 * a)
		if a < 0 {
			t1, t2 = t2, t1
		}
		for _, t := range []float64{t1, t2} {
			if t < 0 || t >= 1 {
				continue
			}
			p := r3.Add(q1, r3.Scale(t, w))
			h := r3.Dot(p, v)
			if h < 0 || h >= f.Height {
				continue
			}
			outward := r3.Unit(r3.Sub(p, r3.Scale(h, v)))
			ang := math.Atan2(f.R1-f.R2, f.Height)
			normal := r3.Add(r3.Scale(math.Cos(ang), outward), r3.Scale(math.Sin(ang), v))
			if r3.Dot(normal, w) >= 0 {
				// Leaving the body through its back surface.
				continue
			}
			hits = append(hits, Intersection{T: t, Normal: normal, Color: f.Color})
		}
	}

	// Bottom and top caps.
	for _, face := range []struct {
		h, r   float64
		normal r3.Vec
	}{
		{0, f.R1, r3.Scale(-1, v)},
		{f.Height, f.R2, v},
	} {
		if wv == 0 || r3.Dot(face.normal, w) >= 0 {
			continue
		}
		t := (face.h - q1v) / wv
		if t < 0 || t >= 1 {
			continue
		}
		out := r3.Sub(r3.Add(q1, r3.Scale(t, w)), r3.Scale(face.h, v))
		if r3.Dot(out, out) < face.r*face.r {
			hits = append(hits, Intersection{T: t, Normal: face.normal, Color: f.Color})
		}
	}

	if len(hits) == 0 {
		return nil
	}
	// Only the near entry point is visible; the body occludes its own back
	// surface.
	slices.SortFunc(hits, func(a, b Intersection) int {
		switch {
		case a.T < b.T:
			return -1
		case a.T > b.T:
			return 1
		}
		return 0
	})
	return hits[:1]
}

// Billboard is a vertical rectangle of the given size that rotates to face
// the observer, textured with an image.
type Billboard struct {
	Position geom.Coords
	Width    float64
	Height   float64
	Texture  *Texture
}

func (b *Billboard) Bound() (geom.Coords, float64, float64, float64) {
	return b.Position, b.Width / 2, 0, b.Height
}

func (b *Billboard) Intersect(shape earth.Shape, p1, p2 geom.Coords) []Intersection {
	if !boundHit(shape, b, p1, p2) {
		return nil
	}
	pos1 := shape.Cartesian(p1)
	pos2 := shape.Cartesian(p2)
	center := shape.Cartesian(b.Position)

	ray := r3.Sub(pos2, pos1)
	_, _, up := shape.WorldDirections(b.Position.Lat, b.Position.Lon)
	right := r3.Cross(ray, up)
	rl := r3.Norm(right)
	if rl == 0 {
		return nil
	}
	right = r3.Scale(1/rl, right)
	front := r3.Cross(right, up)

	q1 := r3.Sub(pos1, center)
	den := r3.Dot(ray, front)
	if den == 0 {
		return nil
	}
	t := -r3.Dot(q1, front) / den
	if t < 0 || t >= 1 {
		return nil
	}

	p := r3.Add(q1, r3.Scale(t, ray))
	y := r3.Dot(p, up)
	x := r3.Dot(p, right)
	if y < 0 || y >= b.Height || x < -b.Width/2 || x >= b.Width/2 {
		return nil
	}

	color := b.Texture.Sample((x+b.Width/2)/b.Width, y/b.Height)
	if color.A == 0 {
		return nil
	}
	return []Intersection{{T: t, Normal: front, Color: color}}
}
