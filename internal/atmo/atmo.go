// Package atmo models a vertically stratified atmosphere: piecewise
// temperature as a function of altitude, hydrostatic pressure anchored at a
// fixed point, and the refractive index derived from both.
package atmo

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

const (
	// G is standard gravity, m/s².
	G = 9.80665
	// RSpecific is the specific gas constant of dry air, J/(kg·K).
	RSpecific = 287.053

	// Sea-level calibration for the Gladstone-Dale refractivity constant.
	seaLevelT = 288.15
	seaLevelP = 101325.0

	// maxAltitude bounds the load-time positivity scan.
	maxAltitude = 100_000.0
)

// refractivityK is the Gladstone-Dale constant: n = 1 + k·P/T.
var refractivityK = 0.000293 * seaLevelT / seaLevelP

// ProfileError reports an invalid atmosphere definition. It is fatal at
// startup.
type ProfileError struct {
	Reason string
}

func (e *ProfileError) Error() string { return "atmosphere profile: " + e.Reason }

func profileErrorf(format string, args ...any) error {
	return &ProfileError{Reason: fmt.Sprintf(format, args...)}
}

// IsProfileError reports whether err is a ProfileError.
func IsProfileError(err error) bool {
	var pe *ProfileError
	return errors.As(err, &pe)
}

// temperatureFunc is one piece of the temperature profile, valid on a
// right-open altitude interval.
type temperatureFunc interface {
	// at evaluates the temperature given the value at the piece base.
	at(baseT, baseH, h float64) float64
	// gradientAt is dT/dh at altitude h.
	gradientAt(baseT, baseH, h float64) float64
	// pinned reports whether the piece determines absolute temperature by
	// itself (splines do, linear gradients do not).
	pinned() bool
}

type linearFunc struct {
	gradient float64
}

func (l linearFunc) at(baseT, baseH, h float64) float64 { return baseT + l.gradient*(h-baseH) }
func (l linearFunc) gradientAt(_, _, _ float64) float64 { return l.gradient }
func (l linearFunc) pinned() bool                       { return false }

type splineFunc struct {
	s *spline
}

func (s splineFunc) at(_, _, h float64) float64         { return s.s.eval(h) }
func (s splineFunc) gradientAt(_, _, h float64) float64 { return s.s.deriv(h) }
func (s splineFunc) pinned() bool                       { return true }

// Layer is one interval of the profile definition.
type Layer struct {
	// Base is the altitude breakpoint opening the interval, meters.
	Base float64
	fn   temperatureFunc
}

// NewLinearLayer returns a layer with a constant lapse rate in K/m.
func NewLinearLayer(base, gradient float64) Layer {
	return Layer{Base: base, fn: linearFunc{gradient: gradient}}
}

// NewSplineLayer returns a layer interpolating the given (altitude,
// temperature) control points with a cubic spline.
func NewSplineLayer(base float64, hs, ts []float64, bc Boundary) (Layer, error) {
	sp, err := newSpline(hs, ts, bc)
	if err != nil {
		return Layer{}, &ProfileError{Reason: err.Error()}
	}
	return Layer{Base: base, fn: splineFunc{s: sp}}, nil
}

// FixPoint anchors an absolute value at an altitude.
type FixPoint struct {
	Altitude float64
	Value    float64
}

// Profile is a fully resolved atmosphere. Immutable after construction and
// safe for concurrent use.
type Profile struct {
	layers []Layer
	// temps[i] is the temperature at layers[i].Base.
	temps []float64
	// pressures[i] is the pressure at layers[i].Base.
	pressures []float64
}

// NewProfile validates and resolves a profile definition. temperature may be
// nil when at least one layer is a spline (splines pin absolute
// temperature); pressure is always required.
func NewProfile(layers []Layer, temperature *FixPoint, pressure FixPoint) (*Profile, error) {
	if len(layers) == 0 {
		return nil, profileErrorf("no layers")
	}
	for i := 0; i < len(layers)-1; i++ {
		if layers[i+1].Base <= layers[i].Base {
			return nil, profileErrorf("breakpoints not strictly increasing: %g then %g",
				layers[i].Base, layers[i+1].Base)
		}
	}

	p := &Profile{layers: layers}
	if err := p.resolveTemps(temperature); err != nil {
		return nil, err
	}
	if err := p.resolvePressures(pressure); err != nil {
		return nil, err
	}

	// The whole integration domain must stay physical.
	for h := layers[0].Base; h <= maxAltitude; h += 100 {
		if t := p.Temperature(h); t <= 0 {
			return nil, profileErrorf("temperature %.2f K at %.0f m is not positive", t, h)
		}
	}
	return p, nil
}

// layerIndex locates the right-open interval containing h; altitudes below
// the first breakpoint use the first piece.
func (p *Profile) layerIndex(h float64) int {
	i := sort.Search(len(p.layers), func(i int) bool { return p.layers[i].Base > h }) - 1
	if i < 0 {
		i = 0
	}
	return i
}

func (p *Profile) resolveTemps(fix *FixPoint) error {
	n := len(p.layers)
	p.temps = make([]float64, n)

	pinIdx := -1
	for i, l := range p.layers {
		if l.fn.pinned() {
			pinIdx = i
			break
		}
	}

	switch {
	case pinIdx >= 0:
		// A spline determines its own absolute values; chain outward from it.
		p.temps[pinIdx] = p.layers[pinIdx].fn.at(0, 0, p.layers[pinIdx].Base)
	case fix != nil:
		pinIdx = p.layerIndex(fix.Altitude)
		l := p.layers[pinIdx]
		// Invert the piece to its base value.
		p.temps[pinIdx] = fix.Value - l.fn.at(0, l.Base, fix.Altitude)
	default:
		return profileErrorf("no temperature fixed point and no spline piece")
	}

	for i := pinIdx + 1; i < n; i++ {
		prev := p.layers[i-1]
		p.temps[i] = prev.fn.at(p.temps[i-1], prev.Base, p.layers[i].Base)
	}
	for i := pinIdx - 1; i >= 0; i-- {
		l := p.layers[i]
		// Value at the next breakpoint is known; solve for the base value.
		p.temps[i] = p.temps[i+1] - (l.fn.at(0, l.Base, p.layers[i+1].Base) - l.fn.at(0, l.Base, l.Base))
		if l.fn.pinned() {
			p.temps[i] = l.fn.at(0, 0, l.Base)
		}
	}
	return nil
}

// Temperature returns T(h) in kelvins.
func (p *Profile) Temperature(h float64) float64 {
	i := p.layerIndex(h)
	return p.layers[i].fn.at(p.temps[i], p.layers[i].Base, h)
}

// TemperatureGradient returns dT/dh at h, K/m.
func (p *Profile) TemperatureGradient(h float64) float64 {
	i := p.layerIndex(h)
	return p.layers[i].fn.gradientAt(p.temps[i], p.layers[i].Base, h)
}

// Pressure returns P(h) in pascals.
func (p *Profile) Pressure(h float64) float64 {
	i := p.layerIndex(h)
	return p.pressureFrom(p.layers[i].Base, p.pressures[i], h)
}

// Sample returns temperature, pressure and refractive index at h.
func (p *Profile) Sample(h float64) (t, press, n float64) {
	t = p.Temperature(h)
	press = p.Pressure(h)
	return t, press, 1 + refractivityK*press/t
}

// N returns the refractive index at h.
func (p *Profile) N(h float64) float64 {
	_, _, n := p.Sample(h)
	return n
}

// Refraction returns n and dn/dh at h. The derivative combines the
// hydrostatic pressure gradient with the local temperature gradient:
//
//	dn/dh = k·(P'·T − P·T')/T²,  P' = −P·g/(R·T)
func (p *Profile) Refraction(h float64) (n, dndh float64) {
	t := p.Temperature(h)
	press := p.Pressure(h)
	dT := p.TemperatureGradient(h)
	dP := -press * G / (RSpecific * t)
	n = 1 + refractivityK*press/t
	dndh = refractivityK * (dP*t - press*dT) / (t * t)
	return n, dndh
}

// resolvePressures builds the breakpoint pressure table by integrating the
// hydrostatic equation outward from the fixed point. Linear pieces use the
// closed-form barometric formula; spline pieces are integrated with RK4 at
// 1 m substeps.
func (p *Profile) resolvePressures(fix FixPoint) error {
	if fix.Value <= 0 {
		return profileErrorf("pressure fixed point %.1f Pa is not positive", fix.Value)
	}
	n := len(p.layers)
	p.pressures = make([]float64, n)

	anchor := p.layerIndex(fix.Altitude)
	p.pressures[anchor] = p.integrate(anchor, fix.Altitude, fix.Value, p.layers[anchor].Base)
	for i := anchor + 1; i < n; i++ {
		p.pressures[i] = p.integrate(i-1, p.layers[i-1].Base, p.pressures[i-1], p.layers[i].Base)
	}
	for i := anchor - 1; i >= 0; i-- {
		p.pressures[i] = p.integrate(i, p.layers[i+1].Base, p.pressures[i+1], p.layers[i].Base)
	}
	return nil
}

// integrate carries pressure from (h0, p0) to h1 inside layer i.
func (p *Profile) integrate(i int, h0, p0, h1 float64) float64 {
	if h0 == h1 {
		return p0
	}
	l := p.layers[i]
	if lin, ok := l.fn.(linearFunc); ok {
		return barometric(lin.gradient,
			l.fn.at(p.temps[i], l.Base, h0),
			l.fn.at(p.temps[i], l.Base, h1), h0, h1, p0)
	}
	// RK4 on dP/dh = −P·g/(R·T(h)) with 1 m substeps.
	const sub = 1.0
	steps := int(math.Ceil(math.Abs(h1-h0) / sub))
	dh := (h1 - h0) / float64(steps)
	f := func(h, press float64) float64 {
		return -press * G / (RSpecific * l.fn.at(p.temps[i], l.Base, h))
	}
	press := p0
	h := h0
	for s := 0; s < steps; s++ {
		k1 := f(h, press)
		k2 := f(h+dh/2, press+dh/2*k1)
		k3 := f(h+dh/2, press+dh/2*k2)
		k4 := f(h+dh, press+dh*k3)
		press += dh / 6 * (k1 + 2*k2 + 2*k3 + k4)
		h += dh
	}
	return press
}

// pressureFrom extends the breakpoint table with the local closed form,
// exact inside linear pieces.
func (p *Profile) pressureFrom(h0, p0, h float64) float64 {
	if h == h0 {
		return p0
	}
	t0 := p.Temperature(h0)
	t1 := p.Temperature(h)
	grad := (t1 - t0) / (h - h0)
	return barometric(grad, t0, t1, h0, h, p0)
}

// barometric is the closed-form hydrostatic solution for a constant lapse
// rate; the isothermal form is used when the gradient vanishes.
func barometric(gradient, t0, t1, h0, h1, p0 float64) float64 {
	if math.Abs(gradient) > 1e-9 {
		return p0 * math.Pow(t1/t0, -G/(RSpecific*gradient))
	}
	return p0 * math.Exp(-G*(h1-h0)/(RSpecific*t0))
}

// US76 returns the US Standard Atmosphere 1976 troposphere and lower
// stratosphere: 288.15 K and 101325 Pa at sea level, −6.5 K/km up to 11 km,
// isothermal above.
func US76() *Profile {
	p, err := NewProfile(
		[]Layer{
			NewLinearLayer(0, -0.0065),
			NewLinearLayer(11000, 0),
		},
		&FixPoint{Altitude: 0, Value: 288.15},
		FixPoint{Altitude: 0, Value: 101325},
	)
	if err != nil {
		panic(err)
	}
	return p
}
