// Package config defines the YAML configuration of a render and resolves it
// into the immutable parameter set the renderer consumes. Command-line flags
// override config fields; defaults fill whatever remains.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Error reports an invalid configuration; it is rejected at startup.
type Error struct {
	Reason string
}

func (e *Error) Error() string { return "config: " + e.Reason }

func errorf(format string, args ...any) error {
	return &Error{Reason: fmt.Sprintf(format, args...)}
}

// IsError reports whether err is a configuration error.
func IsError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

// Altitude is the absolute/relative/ellipsoid one-of. Exactly one field may
// be set; an empty value defaults to one meter above the terrain.
type Altitude struct {
	// Absolute is meters above mean sea level.
	Absolute *float64 `yaml:"absolute,omitempty"`
	// Relative is meters above the terrain at the position.
	Relative *float64 `yaml:"relative,omitempty"`
	// Ellipsoid is meters above the WGS84 ellipsoid, converted to MSL
	// through EGM96.
	Ellipsoid *float64 `yaml:"ellipsoid,omitempty"`
}

func (a *Altitude) validate(ctx string) error {
	n := 0
	for _, p := range []*float64{a.Absolute, a.Relative, a.Ellipsoid} {
		if p != nil {
			n++
		}
	}
	if n > 1 {
		return errorf("%s: altitude must set only one of absolute/relative/ellipsoid", ctx)
	}
	return nil
}

// Position is a configured geographic position.
type Position struct {
	Latitude  float64  `yaml:"latitude"`
	Longitude float64  `yaml:"longitude"`
	Altitude  Altitude `yaml:"altitude"`
}

// ShapeDef is the one-of of scene object shapes.
type ShapeDef struct {
	Cylinder  *CylinderDef  `yaml:"cylinder,omitempty"`
	Cone      *CylinderDef  `yaml:"cone,omitempty"`
	Frustum   *FrustumDef   `yaml:"frustum,omitempty"`
	Billboard *BillboardDef `yaml:"billboard,omitempty"`
}

type CylinderDef struct {
	Radius float64 `yaml:"radius"`
	Height float64 `yaml:"height"`
}

type FrustumDef struct {
	R1     float64 `yaml:"r1"`
	R2     float64 `yaml:"r2"`
	Height float64 `yaml:"height"`
}

type BillboardDef struct {
	Width   float64 `yaml:"width"`
	Height  float64 `yaml:"height"`
	Texture string  `yaml:"texture"`
}

// ColorDef is an RGBA color; alpha defaults to opaque.
type ColorDef struct {
	R float64  `yaml:"r"`
	G float64  `yaml:"g"`
	B float64  `yaml:"b"`
	A *float64 `yaml:"a,omitempty"`
}

// ObjectDef is one user-placed scene object.
type ObjectDef struct {
	Position Position `yaml:"position"`
	Shape    ShapeDef `yaml:"shape"`
	Color    ColorDef `yaml:"color"`
}

// SceneDef configures the terrain source and the objects.
type SceneDef struct {
	TerrainFolder  string      `yaml:"terrain_folder"`
	Objects        []ObjectDef `yaml:"objects"`
	TerrainAlpha   *float64    `yaml:"terrain_alpha,omitempty"`
	MaxTextureSize int         `yaml:"max_texture_size"`
	// CacheTiles bounds the DEM tile cache; 0 selects the default.
	CacheTiles int `yaml:"cache_tiles"`
}

// FrameDef is the viewing frame.
type FrameDef struct {
	Direction   float64  `yaml:"direction"`
	Tilt        float64  `yaml:"tilt"`
	Fov         *float64 `yaml:"fov,omitempty"`
	MaxDistance *float64 `yaml:"max_distance,omitempty"`
}

// ColoringDef is the one-of of coloring methods.
type ColoringDef struct {
	Simple  *SimpleColoringDef  `yaml:"simple,omitempty"`
	Shading *ShadingColoringDef `yaml:"shading,omitempty"`
}

type SimpleColoringDef struct {
	WaterLevel float64 `yaml:"water_level"`
}

type ShadingColoringDef struct {
	WaterLevel       float64  `yaml:"water_level"`
	AmbientLight     *float64 `yaml:"ambient_light,omitempty"`
	LightZenithAngle *float64 `yaml:"light_zenith_angle,omitempty"`
	LightDir         float64  `yaml:"light_dir"`
	Palette          string   `yaml:"palette"`
}

// ViewDef is the observer and frame configuration.
type ViewDef struct {
	Position    Position    `yaml:"position"`
	Frame       FrameDef    `yaml:"frame"`
	Coloring    ColoringDef `yaml:"coloring"`
	FogDistance *float64    `yaml:"fog_distance,omitempty"`
	// Sky gradient endpoints; defaults depend on fog.
	SkyHorizonColor *ColorDef `yaml:"sky_horizon_color,omitempty"`
	SkyZenithColor  *ColorDef `yaml:"sky_zenith_color,omitempty"`
}

// EarthShapeDef selects the Earth model.
type EarthShapeDef struct {
	// Shape is spherical, azimuthal_equidistant, flat_spherical or
	// flat_distorted.
	Shape  string   `yaml:"shape"`
	Radius *float64 `yaml:"radius,omitempty"`
}

// FixPointDef anchors an absolute temperature or pressure.
type FixPointDef struct {
	Altitude float64 `yaml:"altitude"`
	Value    float64 `yaml:"value"`
}

// LayerDef is one atmosphere interval: the base breakpoint plus a one-of of
// temperature functions.
type LayerDef struct {
	Base   float64    `yaml:"base"`
	Linear *LinearDef `yaml:"linear,omitempty"`
	Spline *SplineDef `yaml:"spline,omitempty"`
}

type LinearDef struct {
	Gradient float64 `yaml:"gradient"`
}

type SplineDef struct {
	Points   []SplinePointDef `yaml:"points"`
	Boundary *BoundaryDef     `yaml:"boundary,omitempty"`
}

type SplinePointDef struct {
	Altitude    float64 `yaml:"altitude"`
	Temperature float64 `yaml:"temperature"`
}

type BoundaryDef struct {
	// Kind is natural, derivatives or second_derivatives.
	Kind string  `yaml:"kind"`
	D0   float64 `yaml:"d0"`
	D1   float64 `yaml:"d1"`
}

// AtmosphereDef is the full profile; nil means US Standard 1976.
type AtmosphereDef struct {
	Pressure    FixPointDef  `yaml:"pressure"`
	Temperature *FixPointDef `yaml:"temperature,omitempty"`
	Layers      []LayerDef   `yaml:"layers"`
}

// TickDef is the single/multiple one-of for azimuth ticks; VerticalTickDef
// mirrors it for elevation-angle ticks.
type TickDef struct {
	Single   *SingleTickDef   `yaml:"single,omitempty"`
	Multiple *MultipleTickDef `yaml:"multiple,omitempty"`
}

type SingleTickDef struct {
	Azimuth float64 `yaml:"azimuth"`
	// Elevation replaces Azimuth inside vertical_ticks.
	Elevation *float64 `yaml:"elevation,omitempty"`
	Size      int      `yaml:"size"`
	Labelled  bool     `yaml:"labelled"`
}

type MultipleTickDef struct {
	Bias     float64 `yaml:"bias"`
	Step     float64 `yaml:"step"`
	Size     int     `yaml:"size"`
	Labelled bool    `yaml:"labelled"`
}

// OutputDef configures the rendered products.
type OutputDef struct {
	File          string    `yaml:"file"`
	FileMetadata  string    `yaml:"file_metadata"`
	Width         int       `yaml:"width"`
	Height        int       `yaml:"height"`
	Ticks         []TickDef `yaml:"ticks"`
	VerticalTicks []TickDef `yaml:"vertical_ticks"`
	ShowEyeLevel  bool      `yaml:"show_eye_level"`
	// ShowFlatHorizon draws the astronomical horizon of a refracting flat
	// Earth.
	ShowFlatHorizon bool `yaml:"show_flat_horizon"`
	// Generator is fast, rectilinear or interpolating_rectilinear.
	Generator string `yaml:"generator"`
}

// Config is the root document.
type Config struct {
	Scene          SceneDef       `yaml:"scene"`
	View           ViewDef        `yaml:"view"`
	EarthShape     EarthShapeDef  `yaml:"earth_shape"`
	StraightRays   bool           `yaml:"straight_rays"`
	SimulationStep float64        `yaml:"simulation_step"`
	Output         OutputDef      `yaml:"output"`
	Atmosphere     *AtmosphereDef `yaml:"atmosphere,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads and decodes a YAML config file, applying defaults to absent
// fields.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errorf("reading %s: %v", path, err)
	}
	c := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return nil, errorf("parsing %s: %v", path, err)
	}
	c.applyDefaults()
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Scene.TerrainFolder == "" {
		c.Scene.TerrainFolder = "./terrain"
	}
	if c.Scene.TerrainAlpha == nil {
		c.Scene.TerrainAlpha = ptr(1.0)
	}
	if c.View.Frame.Fov == nil {
		c.View.Frame.Fov = ptr(30.0)
	}
	if c.View.Frame.MaxDistance == nil {
		c.View.Frame.MaxDistance = ptr(150_000.0)
	}
	if c.EarthShape.Shape == "" {
		c.EarthShape.Shape = "spherical"
	}
	if c.SimulationStep == 0 {
		c.SimulationStep = 50
	}
	if c.Output.File == "" {
		c.Output.File = "./output.png"
	}
	if c.Output.Width == 0 {
		c.Output.Width = 640
	}
	if c.Output.Height == 0 {
		c.Output.Height = 480
	}
	if c.Output.Generator == "" {
		c.Output.Generator = "fast"
	}
}

func ptr[T any](v T) *T { return &v }
