// Package propagate integrates light rays through a refracting atmosphere
// over a curved or flat Earth.
//
// The ray is described in surface coordinates: s is arc length along the
// reference surface, h the altitude above it, u = dh/ds the slope. For a
// spherically symmetric medium Fermat's principle (via Bouguer's invariant
// n·r·sin ζ = const) gives
//
//	du/ds = (n'/n)·((1+h/R)² + u²) + 2u²/(R+h) + (1+h/R)/R
//
// on curved shapes, and with R → ∞
//
//	du/ds = (n'/n)·(1 + u²)
//
// on flat ones. The geometric terms are kept even for straight rays on a
// curved Earth: a straight line gains altitude in surface coordinates, which
// is what makes the horizon dip below eye level.
package propagate

import (
	"math"

	"github.com/fizyk20/atm-raytracer/internal/atmo"
	"github.com/fizyk20/atm-raytracer/internal/earth"
)

// EscapeAltitude terminates rays that leave the atmosphere, meters.
const EscapeAltitude = 100_000.0

// FloorAltitude terminates rays below any plausible terrain, meters.
const FloorAltitude = -1000.0

// State is the ray state at one integration node.
type State struct {
	S  float64 // arc distance along the surface from the observer
	H  float64 // altitude above the reference surface
	DH float64 // slope dh/ds
}

// Segment is one integration step handed to the visitor.
type Segment struct {
	From State
	To   State
	// PathFrom and PathTo are the cumulative path lengths along the ray at
	// the segment ends (chord metric, altitude-corrected on curved shapes).
	PathFrom float64
	PathTo   float64
}

// Decision is the visitor's verdict after a segment.
type Decision int

const (
	// Continue keeps tracing.
	Continue Decision = iota
	// Stop terminates the ray (opaque hit, or the visitor has seen enough).
	Stop
)

// Visitor observes every integration segment of a ray.
type Visitor interface {
	OnSegment(seg Segment) Decision
}

// VisitorFunc adapts a function to the Visitor interface.
type VisitorFunc func(seg Segment) Decision

func (f VisitorFunc) OnSegment(seg Segment) Decision { return f(seg) }

// Env couples the Earth shape with an atmosphere.
type Env struct {
	Shape Earth
	// Atmosphere may be nil, meaning vacuum (no refraction).
	Atmosphere *atmo.Profile
	// StraightRays drops the refraction term, leaving geometry only.
	StraightRays bool
}

// Earth is the subset of earth.Shape the integrator needs.
type Earth interface {
	Curved() bool
	CurvatureRadius() float64
}

// NewEnv builds a propagation environment.
func NewEnv(shape earth.Shape, profile *atmo.Profile, straight bool) Env {
	return Env{Shape: shape, Atmosphere: profile, StraightRays: straight}
}

// slopeRate is du/ds at the given state.
func (e Env) slopeRate(h, u float64) float64 {
	var refr float64
	if !e.StraightRays && e.Atmosphere != nil {
		n, dndh := e.Atmosphere.Refraction(h)
		refr = dndh / n
	}
	if !e.Shape.Curved() {
		return refr * (1 + u*u)
	}
	r := e.Shape.CurvatureRadius()
	f := 1 + h/r
	return refr*(f*f+u*u) + 2*u*u/(r+h) + f/r
}

// segmentLength is the path length of one step: the chord in (s, h), with
// the horizontal leg scaled to the ray's mean altitude on curved shapes.
func (e Env) segmentLength(from, to State) float64 {
	ds := to.S - from.S
	dh := to.H - from.H
	if e.Shape.Curved() {
		r := e.Shape.CurvatureRadius()
		ds *= ((from.H+to.H)/2 + r) / r
	}
	return math.Hypot(ds, dh)
}

// InitialState builds the state for a ray leaving altitude alt at the given
// elevation angle in radians.
func InitialState(alt, elevAngle float64) State {
	return State{S: 0, H: alt, DH: math.Tan(elevAngle)}
}

// Trace integrates the ray with classical fourth-order Runge-Kutta at the
// fixed step, invoking the visitor after every step, until the visitor stops
// it, the arc distance exceeds maxDist, or the ray leaves [FloorAltitude,
// EscapeAltitude].
func (e Env) Trace(initial State, step, maxDist float64, visitor Visitor) {
	if step <= 0 {
		return
	}
	cur := initial
	pathLen := 0.0

	for cur.S < maxDist {
		next := e.rk4Step(cur, step)
		nextPath := pathLen + e.segmentLength(cur, next)
		d := visitor.OnSegment(Segment{
			From:     cur,
			To:       next,
			PathFrom: pathLen,
			PathTo:   nextPath,
		})
		if d == Stop {
			return
		}
		if next.H > EscapeAltitude || next.H < FloorAltitude {
			return
		}
		cur, pathLen = next, nextPath
	}
}

func (e Env) rk4Step(s State, step float64) State {
	if e.StraightRays && !e.Shape.Curved() {
		// Straight rays over a flat surface stay exactly linear.
		return State{S: s.S + step, H: s.H + s.DH*step, DH: s.DH}
	}

	k1h, k1u := s.DH, e.slopeRate(s.H, s.DH)
	k2h, k2u := s.DH+step/2*k1u, e.slopeRate(s.H+step/2*k1h, s.DH+step/2*k1u)
	k3h, k3u := s.DH+step/2*k2u, e.slopeRate(s.H+step/2*k2h, s.DH+step/2*k2u)
	k4h, k4u := s.DH+step*k3u, e.slopeRate(s.H+step*k3h, s.DH+step*k3u)

	return State{
		S:  s.S + step,
		H:  s.H + step/6*(k1h+2*k2h+2*k3h+k4h),
		DH: s.DH + step/6*(k1u+2*k2u+2*k3u+k4u),
	}
}
