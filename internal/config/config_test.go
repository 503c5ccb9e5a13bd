package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/fizyk20/atm-raytracer/internal/terrain"
)

func seaLevel() *terrain.Terrain {
	return terrain.New(terrain.LoaderFunc(func(lat, lon int) (*terrain.Tile, error) {
		return nil, nil
	}), 4)
}

func writeConfig(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	doc := `
scene:
  terrain_folder: ./dted
  objects:
    - position:
        latitude: 49.9
        longitude: 21.5
        altitude: {relative: 0}
      shape:
        cylinder: {radius: 5, height: 50}
      color: {r: 1, g: 0, b: 0, a: 0.5}
view:
  position:
    latitude: 50.0
    longitude: 21.6
    altitude: {absolute: 443}
  frame:
    direction: 231
    fov: 8
    max_distance: 200000
  coloring:
    simple: {water_level: 0}
  fog_distance: 80000
earth_shape:
  shape: spherical
  radius: 6371000
straight_rays: false
simulation_step: 25
atmosphere:
  pressure: {altitude: 0, value: 101325}
  temperature: {altitude: 0, value: 288.15}
  layers:
    - base: 0
      linear: {gradient: -0.0065}
    - base: 11000
      linear: {gradient: 0}
output:
  file: panorama.png
  file_metadata: panorama.meta
  width: 320
  height: 200
  generator: fast
  show_eye_level: true
  ticks:
    - multiple: {bias: 0, step: 15, size: 10, labelled: true}
`
	cfg, err := Load(writeConfig(t, doc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	params, err := cfg.Resolve(seaLevel())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if params.Observer.Elev != 443 {
		t.Errorf("observer elevation %g, want 443", params.Observer.Elev)
	}
	if params.Fov != 8 || params.MaxDistance != 200000 {
		t.Errorf("frame = fov %g, maxdist %g", params.Fov, params.MaxDistance)
	}
	if params.SimulationStep != 25 {
		t.Errorf("simulation step %g, want 25", params.SimulationStep)
	}
	if len(params.Objects) != 1 {
		t.Fatalf("%d objects, want 1", len(params.Objects))
	}
	if params.FogDistance != 80000 {
		t.Errorf("fog distance %g, want 80000", params.FogDistance)
	}
	if params.Width != 320 || params.Height != 200 {
		t.Errorf("output %dx%d, want 320x200", params.Width, params.Height)
	}
	if params.MetadataFile != "panorama.meta" {
		t.Errorf("metadata file %q", params.MetadataFile)
	}
	if len(params.Ticks) != 1 || params.Ticks[0].Step != 15 {
		t.Errorf("ticks = %+v", params.Ticks)
	}
	if !params.ShowEyeLevel {
		t.Error("show_eye_level lost")
	}
	tAt2000 := params.Atmosphere.Temperature(2000)
	if math.Abs(tAt2000-275.15) > 1e-9 {
		t.Errorf("atmosphere T(2000) = %g, want 275.15", tAt2000)
	}
}

func TestDefaults(t *testing.T) {
	params, err := Default().Resolve(seaLevel())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if params.Width != 640 || params.Height != 480 {
		t.Errorf("default size %dx%d, want 640x480", params.Width, params.Height)
	}
	if params.Fov != 30 {
		t.Errorf("default fov %g, want 30", params.Fov)
	}
	if params.MaxDistance != 150000 {
		t.Errorf("default max distance %g", params.MaxDistance)
	}
	if params.SimulationStep != 50 {
		t.Errorf("default step %g", params.SimulationStep)
	}
	if !params.Shape.Curved() {
		t.Error("default shape is not spherical")
	}
	// One meter above sea level.
	if params.Observer.Elev != 1 {
		t.Errorf("default observer elevation %g, want 1", params.Observer.Elev)
	}
	if params.Atmosphere == nil {
		t.Fatal("no default atmosphere")
	}
	if tt := params.Atmosphere.Temperature(0); math.Abs(tt-288.15) > 1e-9 {
		t.Errorf("default atmosphere T(0) = %g", tt)
	}
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown shape", func(c *Config) { c.EarthShape.Shape = "cubical" }},
		{"negative radius", func(c *Config) {
			c.EarthShape.Radius = ptr(-1.0)
		}},
		{"negative step", func(c *Config) { c.SimulationStep = -3 }},
		{"fov too wide", func(c *Config) { c.View.Frame.Fov = ptr(200.0) }},
		{"two altitudes", func(c *Config) {
			c.View.Position.Altitude = Altitude{Absolute: ptr(5.0), Relative: ptr(2.0)}
		}},
		{"latitude out of range", func(c *Config) { c.View.Position.Latitude = 95 }},
		{"negative fog", func(c *Config) { c.View.FogDistance = ptr(-1.0) }},
		{"unknown generator", func(c *Config) { c.Output.Generator = "slow" }},
		{"unknown palette", func(c *Config) {
			c.View.Coloring.Shading = &ShadingColoringDef{Palette: "sepia"}
		}},
		{"object with no shape", func(c *Config) {
			c.Scene.Objects = []ObjectDef{{}}
		}},
		{"tick with both kinds", func(c *Config) {
			c.Output.Ticks = []TickDef{{
				Single:   &SingleTickDef{Azimuth: 10},
				Multiple: &MultipleTickDef{Step: 5},
			}}
		}},
		{"atmosphere layer with no function", func(c *Config) {
			c.Atmosphere = &AtmosphereDef{
				Pressure: FixPointDef{Altitude: 0, Value: 101325},
				Layers:   []LayerDef{{Base: 0}},
			}
		}},
		{"atmosphere without pressure", func(c *Config) {
			c.Atmosphere = &AtmosphereDef{
				Temperature: &FixPointDef{Altitude: 0, Value: 288.15},
				Layers:      []LayerDef{{Base: 0, Linear: &LinearDef{Gradient: -0.0065}}},
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			_, err := cfg.Resolve(seaLevel())
			if err == nil {
				t.Fatal("Resolve succeeded, want error")
			}
			if !IsError(err) {
				t.Errorf("error %v is not a config error", err)
			}
		})
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	doc := `
view:
  posiiton:
    latitude: 50
`
	if _, err := Load(writeConfig(t, doc)); err == nil {
		t.Error("Load accepted a misspelled field")
	}
}

func TestEarthShapeVariants(t *testing.T) {
	tests := []struct {
		shape  string
		curved bool
	}{
		{"spherical", true},
		{"azimuthal_equidistant", true},
		{"flat_spherical", false},
		{"flat_distorted", false},
		{"flat", false},
	}
	for _, tt := range tests {
		t.Run(tt.shape, func(t *testing.T) {
			cfg := Default()
			cfg.EarthShape.Shape = tt.shape
			params, err := cfg.Resolve(seaLevel())
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if params.Shape.Curved() != tt.curved {
				t.Errorf("Curved() = %v, want %v", params.Shape.Curved(), tt.curved)
			}
		})
	}
}
