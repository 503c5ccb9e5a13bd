package config

import (
	"math"

	"github.com/westphae/geomag/pkg/egm96"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/fizyk20/atm-raytracer/internal/atmo"
	"github.com/fizyk20/atm-raytracer/internal/coloring"
	"github.com/fizyk20/atm-raytracer/internal/earth"
	"github.com/fizyk20/atm-raytracer/internal/geom"
	"github.com/fizyk20/atm-raytracer/internal/scene"
	"github.com/fizyk20/atm-raytracer/internal/terrain"
)

// GeneratorKind selects the frame generator.
type GeneratorKind int

const (
	GeneratorFast GeneratorKind = iota
	GeneratorRectilinear
	GeneratorInterpolatingRectilinear
)

// Tick is a resolved azimuth or elevation tick.
type Tick struct {
	Single   bool
	Angle    float64 // azimuth or elevation for single ticks
	Bias     float64
	Step     float64
	Size     int
	Labelled bool
}

// Params is the fully resolved, immutable parameter set of one render.
type Params struct {
	Shape          earth.Shape
	Atmosphere     *atmo.Profile
	StraightRays   bool
	SimulationStep float64

	Observer    geom.Coords // altitude already absolute
	Direction   float64
	Tilt        float64
	Fov         float64
	MaxDistance float64

	Objects      []scene.Object
	TerrainAlpha float64
	Coloring     coloring.Coloring
	FogDistance  float64 // 0 disables fog
	SkyHorizon   geom.Color
	SkyZenith    geom.Color

	Width           int
	Height          int
	OutputFile      string
	MetadataFile    string
	Ticks           []Tick
	VerticalTicks   []Tick
	ShowEyeLevel    bool
	ShowFlatHorizon bool
	Generator       GeneratorKind
}

// Resolve validates the configuration and produces render parameters. The
// terrain cache is needed to resolve relative altitudes.
func (c *Config) Resolve(t *terrain.Terrain) (*Params, error) {
	shape, err := c.resolveShape()
	if err != nil {
		return nil, err
	}
	profile, err := c.resolveAtmosphere()
	if err != nil {
		return nil, err
	}
	if c.SimulationStep <= 0 {
		return nil, errorf("simulation_step must be positive, got %g", c.SimulationStep)
	}
	if c.Output.Width <= 0 || c.Output.Height <= 0 {
		return nil, errorf("output size %dx%d is invalid", c.Output.Width, c.Output.Height)
	}
	if *c.View.Frame.Fov <= 0 || *c.View.Frame.Fov >= 180 {
		return nil, errorf("field of view %g out of range (0, 180)", *c.View.Frame.Fov)
	}

	p := &Params{
		Shape:          shape,
		Atmosphere:     profile,
		StraightRays:   c.StraightRays,
		SimulationStep: c.SimulationStep,
		Direction:      c.View.Frame.Direction,
		Tilt:           c.View.Frame.Tilt,
		Fov:            *c.View.Frame.Fov,
		MaxDistance:    *c.View.Frame.MaxDistance,
		TerrainAlpha:   *c.Scene.TerrainAlpha,
		Width:          c.Output.Width,
		Height:         c.Output.Height,
		OutputFile:     c.Output.File,
		MetadataFile:   c.Output.FileMetadata,
		ShowEyeLevel:   c.Output.ShowEyeLevel,
		ShowFlatHorizon: c.Output.ShowFlatHorizon &&
			!shape.Curved() && !c.StraightRays,
	}

	obs, err := resolvePosition(c.View.Position, t, "view.position")
	if err != nil {
		return nil, err
	}
	p.Observer = obs

	if c.View.FogDistance != nil {
		if *c.View.FogDistance <= 0 {
			return nil, errorf("fog_distance must be positive")
		}
		p.FogDistance = *c.View.FogDistance
	}

	if p.Objects, err = c.resolveObjects(t); err != nil {
		return nil, err
	}
	if p.Coloring, err = c.resolveColoring(shape); err != nil {
		return nil, err
	}
	if p.Generator, err = resolveGenerator(c.Output.Generator); err != nil {
		return nil, err
	}
	if p.Ticks, err = resolveTicks(c.Output.Ticks); err != nil {
		return nil, err
	}
	if p.VerticalTicks, err = resolveTicks(c.Output.VerticalTicks); err != nil {
		return nil, err
	}

	p.SkyHorizon = p.Coloring.FogColor()
	if p.FogDistance == 0 {
		p.SkyHorizon = p.Coloring.SkyColor()
	}
	p.SkyZenith = geom.Color{R: 0.1, G: 0.3, B: 0.65, A: 1}
	if c.View.SkyHorizonColor != nil {
		p.SkyHorizon = c.View.SkyHorizonColor.color()
	}
	if c.View.SkyZenithColor != nil {
		p.SkyZenith = c.View.SkyZenithColor.color()
	}

	return p, nil
}

func (d *ColorDef) color() geom.Color {
	a := 1.0
	if d.A != nil {
		a = *d.A
	}
	return geom.Color{R: d.R, G: d.G, B: d.B, A: a}
}

func (c *Config) resolveShape() (earth.Shape, error) {
	radius := earth.Radius
	if c.EarthShape.Radius != nil {
		if *c.EarthShape.Radius <= 0 {
			return earth.Shape{}, errorf("earth_shape.radius must be positive")
		}
		radius = *c.EarthShape.Radius
	}
	switch c.EarthShape.Shape {
	case "spherical":
		return earth.NewSpherical(radius), nil
	case "azimuthal_equidistant":
		return earth.NewAzimuthalEquidistant(), nil
	case "flat_spherical":
		return earth.NewFlatSpherical(radius), nil
	case "flat_distorted", "flat":
		return earth.NewFlatDistorted(), nil
	}
	return earth.Shape{}, errorf("unknown earth_shape.shape %q", c.EarthShape.Shape)
}

func (c *Config) resolveAtmosphere() (*atmo.Profile, error) {
	if c.Atmosphere == nil {
		return atmo.US76(), nil
	}
	a := c.Atmosphere
	if len(a.Layers) == 0 {
		return nil, errorf("atmosphere.layers must not be empty")
	}
	if a.Pressure.Value <= 0 {
		return nil, errorf("atmosphere.pressure must anchor a positive pressure")
	}
	layers := make([]atmo.Layer, 0, len(a.Layers))
	for i, l := range a.Layers {
		switch {
		case l.Linear != nil && l.Spline == nil:
			layers = append(layers, atmo.NewLinearLayer(l.Base, l.Linear.Gradient))
		case l.Spline != nil && l.Linear == nil:
			hs := make([]float64, len(l.Spline.Points))
			ts := make([]float64, len(l.Spline.Points))
			for j, pt := range l.Spline.Points {
				hs[j], ts[j] = pt.Altitude, pt.Temperature
			}
			bc, err := resolveBoundary(l.Spline.Boundary)
			if err != nil {
				return nil, err
			}
			layer, err := atmo.NewSplineLayer(l.Base, hs, ts, bc)
			if err != nil {
				return nil, err
			}
			layers = append(layers, layer)
		default:
			return nil, errorf("atmosphere.layers[%d]: exactly one of linear/spline required", i)
		}
	}
	var tfix *atmo.FixPoint
	if a.Temperature != nil {
		tfix = &atmo.FixPoint{Altitude: a.Temperature.Altitude, Value: a.Temperature.Value}
	}
	profile, err := atmo.NewProfile(layers, tfix,
		atmo.FixPoint{Altitude: a.Pressure.Altitude, Value: a.Pressure.Value})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func resolveBoundary(d *BoundaryDef) (atmo.Boundary, error) {
	if d == nil {
		return atmo.Boundary{Kind: atmo.Natural}, nil
	}
	switch d.Kind {
	case "", "natural":
		return atmo.Boundary{Kind: atmo.Natural}, nil
	case "derivatives":
		return atmo.Boundary{Kind: atmo.Derivatives, D0: d.D0, D1: d.D1}, nil
	case "second_derivatives":
		return atmo.Boundary{Kind: atmo.SecondDerivatives, D0: d.D0, D1: d.D1}, nil
	}
	return atmo.Boundary{}, errorf("unknown spline boundary kind %q", d.Kind)
}

func resolvePosition(p Position, t *terrain.Terrain, ctx string) (geom.Coords, error) {
	if err := p.Altitude.validate(ctx); err != nil {
		return geom.Coords{}, err
	}
	if p.Latitude < -90 || p.Latitude > 90 {
		return geom.Coords{}, errorf("%s: latitude %g out of range", ctx, p.Latitude)
	}
	c := geom.Coords{Lat: p.Latitude, Lon: p.Longitude}
	switch {
	case p.Altitude.Absolute != nil:
		c.Elev = *p.Altitude.Absolute
	case p.Altitude.Ellipsoid != nil:
		loc := egm96.NewLocationGeodetic(p.Latitude, p.Longitude, *p.Altitude.Ellipsoid)
		msl, err := loc.HeightAboveMSL()
		if err != nil {
			// The geoid grid does not cover the poles; fall back to the
			// ellipsoidal value.
			msl = *p.Altitude.Ellipsoid
		}
		c.Elev = msl
	case p.Altitude.Relative != nil:
		c.Elev = t.Elev(p.Latitude, p.Longitude) + *p.Altitude.Relative
	default:
		c.Elev = t.Elev(p.Latitude, p.Longitude) + 1
	}
	return c, nil
}

func (c *Config) resolveObjects(t *terrain.Terrain) ([]scene.Object, error) {
	objects := make([]scene.Object, 0, len(c.Scene.Objects))
	for i, def := range c.Scene.Objects {
		pos, err := resolvePosition(def.Position, t, "scene.objects")
		if err != nil {
			return nil, err
		}
		color := def.Color.color()
		var obj scene.Object
		switch {
		case def.Shape.Cylinder != nil:
			obj = &scene.Frustum{
				Position: pos,
				R1:       def.Shape.Cylinder.Radius,
				R2:       def.Shape.Cylinder.Radius,
				Height:   def.Shape.Cylinder.Height,
				Color:    color,
			}
		case def.Shape.Cone != nil:
			obj = &scene.Frustum{
				Position: pos,
				R1:       def.Shape.Cone.Radius,
				Height:   def.Shape.Cone.Height,
				Color:    color,
			}
		case def.Shape.Frustum != nil:
			obj = &scene.Frustum{
				Position: pos,
				R1:       def.Shape.Frustum.R1,
				R2:       def.Shape.Frustum.R2,
				Height:   def.Shape.Frustum.Height,
				Color:    color,
			}
		case def.Shape.Billboard != nil:
			tex, err := scene.LoadTexture(def.Shape.Billboard.Texture, c.Scene.MaxTextureSize)
			if err != nil {
				return nil, errorf("scene.objects[%d]: %v", i, err)
			}
			obj = &scene.Billboard{
				Position: pos,
				Width:    def.Shape.Billboard.Width,
				Height:   def.Shape.Billboard.Height,
				Texture:  tex,
			}
		default:
			return nil, errorf("scene.objects[%d]: exactly one shape required", i)
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

func (c *Config) resolveColoring(shape earth.Shape) (coloring.Coloring, error) {
	d := c.View.Coloring
	if d.Simple != nil && d.Shading != nil {
		return nil, errorf("view.coloring: only one of simple/shading allowed")
	}
	if d.Simple != nil {
		return &coloring.Simple{
			WaterLevel:  d.Simple.WaterLevel,
			MaxDistance: *c.View.Frame.MaxDistance,
		}, nil
	}

	sh := d.Shading
	if sh == nil {
		sh = &ShadingColoringDef{}
	}
	ambient := 0.4
	if sh.AmbientLight != nil {
		ambient = *sh.AmbientLight
	}
	zenith := 45.0
	if sh.LightZenithAngle != nil {
		zenith = *sh.LightZenithAngle
	}
	palette := coloring.PaletteImproved
	switch sh.Palette {
	case "", "improved":
	case "legacy":
		palette = coloring.PaletteLegacy
	default:
		return nil, errorf("unknown palette %q", sh.Palette)
	}

	return &coloring.Shading{
		WaterLevel:   sh.WaterLevel,
		AmbientLight: ambient,
		LightDir: lightDirection(shape, c.View.Position.Latitude,
			c.View.Position.Longitude, c.View.Frame.Direction, zenith, sh.LightDir),
		Palette: palette,
	}, nil
}

// lightDirection places the light at the given zenith angle and returns the
// unit vector from the surface toward the light. At lightDir 0 the light
// stands behind the observer, opposite the viewing direction; positive
// lightDir degrees turn it toward the observer's right.
func lightDirection(shape earth.Shape, lat, lon, frameDir, zenithDeg, lightDirDeg float64) r3.Vec {
	zenith := zenithDeg * math.Pi / 180
	ldir := lightDirDeg * math.Pi / 180
	north, east, up := shape.WorldDirections(lat, lon)
	az := frameDir * math.Pi / 180
	front := r3.Add(r3.Scale(math.Cos(az), north), r3.Scale(math.Sin(az), east))
	right := r3.Sub(r3.Scale(math.Cos(az), east), r3.Scale(math.Sin(az), north))
	v := r3.Add(
		r3.Add(
			r3.Scale(-math.Sin(zenith)*math.Cos(ldir), front),
			r3.Scale(math.Sin(zenith)*math.Sin(ldir), right)),
		r3.Scale(math.Cos(zenith), up))
	return r3.Unit(v)
}

func resolveGenerator(s string) (GeneratorKind, error) {
	switch s {
	case "fast":
		return GeneratorFast, nil
	case "rectilinear":
		return GeneratorRectilinear, nil
	case "interpolating_rectilinear":
		return GeneratorInterpolatingRectilinear, nil
	}
	return 0, errorf("unknown generator %q", s)
}

func resolveTicks(defs []TickDef) ([]Tick, error) {
	ticks := make([]Tick, 0, len(defs))
	for i, d := range defs {
		switch {
		case d.Single != nil && d.Multiple == nil:
			angle := d.Single.Azimuth
			if d.Single.Elevation != nil {
				angle = *d.Single.Elevation
			}
			ticks = append(ticks, Tick{
				Single:   true,
				Angle:    angle,
				Size:     d.Single.Size,
				Labelled: d.Single.Labelled,
			})
		case d.Multiple != nil && d.Single == nil:
			if d.Multiple.Step <= 0 {
				return nil, errorf("ticks[%d]: step must be positive", i)
			}
			ticks = append(ticks, Tick{
				Bias:     d.Multiple.Bias,
				Step:     d.Multiple.Step,
				Size:     d.Multiple.Size,
				Labelled: d.Multiple.Labelled,
			})
		default:
			return nil, errorf("ticks[%d]: exactly one of single/multiple required", i)
		}
	}
	return ticks, nil
}
