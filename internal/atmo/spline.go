package atmo

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// BoundaryKind selects the spline end conditions.
type BoundaryKind int

const (
	// Natural sets the second derivative to zero at both ends.
	Natural BoundaryKind = iota
	// Derivatives clamps the first derivative at both ends.
	Derivatives
	// SecondDerivatives pins the second derivative at both ends.
	SecondDerivatives
)

// Boundary is a spline boundary condition. D0 and D1 are ignored for
// Natural.
type Boundary struct {
	Kind BoundaryKind
	D0   float64
	D1   float64
}

// spline is a cubic spline over (h, T) pairs with precomputed second
// derivatives. The second-derivative system is tridiagonal and is solved
// once at construction with gonum.
type spline struct {
	hs, ts []float64
	m      []float64 // second derivatives at the knots
}

func newSpline(hs, ts []float64, bc Boundary) (*spline, error) {
	n := len(hs)
	if n != len(ts) {
		return nil, fmt.Errorf("spline: %d altitudes but %d temperatures", n, len(ts))
	}
	if n < 2 {
		return nil, fmt.Errorf("spline: needs at least 2 points, got %d", n)
	}
	for i := 0; i < n-1; i++ {
		if hs[i+1] <= hs[i] {
			return nil, fmt.Errorf("spline: altitudes not strictly increasing at index %d", i+1)
		}
	}

	dl := make([]float64, n-1)
	d := make([]float64, n)
	du := make([]float64, n-1)
	b := make([]float64, n)

	for i := 1; i < n-1; i++ {
		h0 := hs[i] - hs[i-1]
		h1 := hs[i+1] - hs[i]
		dl[i-1] = h0 / 6
		d[i] = (h0 + h1) / 3
		du[i] = h1 / 6
		b[i] = (ts[i+1]-ts[i])/h1 - (ts[i]-ts[i-1])/h0
	}

	switch bc.Kind {
	case Natural:
		d[0], du[0], b[0] = 1, 0, 0
		d[n-1], dl[n-2], b[n-1] = 1, 0, 0
	case SecondDerivatives:
		d[0], du[0], b[0] = 1, 0, bc.D0
		d[n-1], dl[n-2], b[n-1] = 1, 0, bc.D1
	case Derivatives:
		h0 := hs[1] - hs[0]
		d[0], du[0] = h0/3, h0/6
		b[0] = (ts[1]-ts[0])/h0 - bc.D0
		h1 := hs[n-1] - hs[n-2]
		dl[n-2], d[n-1] = h1/6, h1/3
		b[n-1] = bc.D1 - (ts[n-1]-ts[n-2])/h1
	default:
		return nil, fmt.Errorf("spline: unknown boundary kind %d", bc.Kind)
	}

	tri := mat.NewTridiag(n, dl, d, du)
	var m mat.VecDense
	if err := tri.SolveVecTo(&m, false, mat.NewVecDense(n, b)); err != nil {
		return nil, fmt.Errorf("spline: solving second derivatives: %w", err)
	}

	return &spline{hs: hs, ts: ts, m: m.RawVector().Data}, nil
}

// segment returns the knot interval for h, clamped to the spline's domain so
// the outermost cubics extrapolate.
func (s *spline) segment(h float64) int {
	i := sort.SearchFloat64s(s.hs, h) - 1
	if i < 0 {
		i = 0
	}
	if i > len(s.hs)-2 {
		i = len(s.hs) - 2
	}
	return i
}

func (s *spline) eval(h float64) float64 {
	i := s.segment(h)
	dx := s.hs[i+1] - s.hs[i]
	a := (s.hs[i+1] - h) / dx
	b := (h - s.hs[i]) / dx
	return a*s.ts[i] + b*s.ts[i+1] +
		((a*a*a-a)*s.m[i]+(b*b*b-b)*s.m[i+1])*dx*dx/6
}

func (s *spline) deriv(h float64) float64 {
	i := s.segment(h)
	dx := s.hs[i+1] - s.hs[i]
	a := (s.hs[i+1] - h) / dx
	b := (h - s.hs[i]) / dx
	return (s.ts[i+1]-s.ts[i])/dx +
		dx/6*((3*b*b-1)*s.m[i+1]-(3*a*a-1)*s.m[i])
}
