package render

import (
	"bytes"
	"context"
	"math"
	"sync/atomic"
	"testing"

	"github.com/fizyk20/atm-raytracer/internal/config"
	"github.com/fizyk20/atm-raytracer/internal/earth"
	"github.com/fizyk20/atm-raytracer/internal/terrain"
)

func seaLevel() *terrain.Terrain {
	return terrain.New(terrain.LoaderFunc(func(lat, lon int) (*terrain.Tile, error) {
		return nil, nil
	}), 8)
}

func metersLat(m float64) float64 { return m / earth.DegreeDistance }

func resolve(t *testing.T, ter *terrain.Terrain, mutate func(c *config.Config)) *config.Params {
	t.Helper()
	cfg := config.Default()
	mutate(cfg)
	params, err := cfg.Resolve(ter)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return params
}

func ptr[T any](v T) *T { return &v }

// TestFlatHorizonRow is the flat-sea scenario: with straight rays over a
// flat Earth the horizon splits the image exactly at the eye-level row.
func TestFlatHorizonRow(t *testing.T) {
	ter := seaLevel()
	params := resolve(t, ter, func(c *config.Config) {
		c.EarthShape.Shape = "flat_distorted"
		c.StraightRays = true
		c.View.Position.Altitude = config.Altitude{Absolute: ptr(2.0)}
		c.View.Frame.Fov = ptr(60.0)
		c.View.Frame.MaxDistance = ptr(10000.0)
		c.SimulationStep = 10
		c.Output.Width = 64
		c.Output.Height = 48
	})

	frame, err := New(params, ter).Render(context.Background())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	_, records := Draw(params, frame)

	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			miss := records[y*64+x].IsMiss()
			switch {
			case y <= 24 && !miss:
				t.Fatalf("pixel (%d, %d) above the horizon hit terrain", x, y)
			case y > 24 && miss:
				t.Fatalf("pixel (%d, %d) below the horizon is sky", x, y)
			}
		}
	}

	// The first sea row looks down 0.9375 degrees from 2 m up.
	r := records[25*64+32]
	wantDist := 2 / math.Tan(0.9375*math.Pi/180)
	if math.Abs(r.Distance-wantDist) > params.SimulationStep {
		t.Errorf("first sea row at %g m, want about %g m", r.Distance, wantDist)
	}
	if r.Elevation != 0 {
		t.Errorf("sea hit elevation %g, want 0", r.Elevation)
	}
}

// TestRenderIdempotent renders the same configuration twice and requires
// bitwise-identical output.
func TestRenderIdempotent(t *testing.T) {
	render := func() ([]byte, error) {
		ter := seaLevel()
		params := resolve(t, ter, func(c *config.Config) {
			c.StraightRays = false
			c.View.Position.Altitude = config.Altitude{Absolute: ptr(25.0)}
			c.View.Frame.MaxDistance = ptr(20000.0)
			c.SimulationStep = 100
			c.Output.Width = 32
			c.Output.Height = 24
			c.View.FogDistance = ptr(15000.0)
		})
		frame, err := New(params, ter).Render(context.Background())
		if err != nil {
			return nil, err
		}
		img, _ := Draw(params, frame)
		return img.Pix, nil
	}

	a, err := render()
	if err != nil {
		t.Fatalf("first render: %v", err)
	}
	b, err := render()
	if err != nil {
		t.Fatalf("second render: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("two renders of the same configuration differ")
	}
}

// TestPixelCoverage checks that the row scheduler visits every pixel
// exactly once.
func TestPixelCoverage(t *testing.T) {
	params := resolve(t, seaLevel(), func(c *config.Config) {
		c.Output.Width = 37
		c.Output.Height = 53
	})
	r := New(params, nil)

	counts := make([]atomic.Int32, params.Width*params.Height)
	_, err := r.renderRows(context.Background(), func(x, y int) ResultPixel {
		counts[y*params.Width+x].Add(1)
		return ResultPixel{}
	})
	if err != nil {
		t.Fatalf("renderRows: %v", err)
	}
	for i := range counts {
		if got := counts[i].Load(); got != 1 {
			t.Fatalf("pixel %d visited %d times", i, got)
		}
	}
}

func TestRenderCancellation(t *testing.T) {
	params := resolve(t, seaLevel(), func(c *config.Config) {
		c.Output.Width = 16
		c.Output.Height = 64
	})
	r := New(params, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.renderRows(ctx, func(x, y int) ResultPixel { return ResultPixel{} })
	if err != ErrCancelled {
		t.Errorf("renderRows on a cancelled context = %v, want ErrCancelled", err)
	}
}

// TestCylinderAlphaBlend is the translucent-object scenario: a half-alpha
// red cylinder over the sky background blends half and half.
func TestCylinderAlphaBlend(t *testing.T) {
	ter := seaLevel()
	params := resolve(t, ter, func(c *config.Config) {
		c.EarthShape.Shape = "flat_distorted"
		c.StraightRays = true
		c.View.Position.Altitude = config.Altitude{Absolute: ptr(25.0)}
		c.View.Frame.Fov = ptr(10.0)
		c.View.Frame.MaxDistance = ptr(12000.0)
		c.SimulationStep = 50
		c.View.Coloring.Simple = &config.SimpleColoringDef{WaterLevel: 0}
		c.Output.Width = 10
		c.Output.Height = 10
		c.Scene.Objects = []config.ObjectDef{{
			Position: config.Position{
				Latitude: metersLat(10000),
				Altitude: config.Altitude{Absolute: ptr(0.0)},
			},
			Shape: config.ShapeDef{Cylinder: &config.CylinderDef{Radius: 5, Height: 50}},
			Color: config.ColorDef{R: 1, A: ptr(0.5)},
		}}
	})

	frame, err := New(params, ter).Render(context.Background())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	img, records := Draw(params, frame)

	// The center column and row aim straight at the cylinder.
	r := records[5*10+5]
	if r.IsMiss() {
		t.Fatal("center ray missed the cylinder")
	}
	if math.Abs(r.Distance-9995) > params.SimulationStep {
		t.Errorf("cylinder entry at %g m, want about 9995", r.Distance)
	}

	sky := params.SkyHorizon
	got := img.RGBAAt(5, 5)
	wantR := 0.5*1 + 0.5*sky.R
	wantG := 0.5 * sky.G
	if math.Abs(float64(got.R)/255-wantR) > 2.0/255 {
		t.Errorf("red channel %d, want about %g", got.R, wantR*255)
	}
	if math.Abs(float64(got.G)/255-wantG) > 2.0/255 {
		t.Errorf("green channel %d, want about %g", got.G, wantG*255)
	}

	// A column three degrees off misses the 5 m cylinder.
	if !records[5*10+8].IsMiss() {
		t.Error("off-axis ray hit the cylinder")
	}
}

// TestMetadataMatchesGeodesy is the metadata round-trip scenario: recorded
// positions coincide with advancing the observer by the recorded distance.
func TestMetadataMatchesGeodesy(t *testing.T) {
	ter := seaLevel()
	params := resolve(t, ter, func(c *config.Config) {
		c.EarthShape.Shape = "flat_distorted"
		c.StraightRays = true
		c.View.Position.Latitude = 12.5
		c.View.Position.Longitude = -4.25
		c.View.Position.Altitude = config.Altitude{Absolute: ptr(2.0)}
		c.View.Frame.Direction = 77
		c.View.Frame.Tilt = -5
		c.View.Frame.Fov = ptr(20.0)
		c.View.Frame.MaxDistance = ptr(1000.0)
		c.SimulationStep = 5
		c.Output.Width = 2
		c.Output.Height = 2
	})

	frame, err := New(params, ter).Render(context.Background())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	_, records := Draw(params, frame)

	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			r := records[y*2+x]
			if r.IsMiss() {
				continue
			}
			az := params.Direction + (float64(x)-1)/2*params.Fov
			wantLat, wantLon := params.Shape.Calc(12.5, -4.25, az).At(r.Distance)
			if math.Abs(r.Lat-wantLat) > 1e-6 || math.Abs(r.Lon-wantLon) > 1e-6 {
				t.Errorf("pixel (%d, %d) at (%.8f, %.8f), want (%.8f, %.8f)",
					x, y, r.Lat, r.Lon, wantLat, wantLon)
			}
		}
	}
}

// TestPlateauOcclusion raises a plateau in a synthetic DEM tile and checks
// the recorded hit.
func TestPlateauOcclusion(t *testing.T) {
	const n = 101
	loader := terrain.LoaderFunc(func(lat, lon int) (*terrain.Tile, error) {
		if lat != 0 || lon != 0 {
			return nil, nil
		}
		heights := make([]float64, n*n)
		for r := 0; r < n; r++ {
			lat := float64(r) / (n - 1)
			for c := 0; c < n; c++ {
				if lat >= 0.30 && lat <= 0.40 {
					heights[r*n+c] = 500
				}
			}
		}
		return &terrain.Tile{Lat0: 0, Lon0: 0, Rows: n, Cols: n, Heights: heights}, nil
	})
	ter := terrain.New(loader, 8)

	params := resolve(t, ter, func(c *config.Config) {
		c.EarthShape.Shape = "flat_distorted"
		c.StraightRays = true
		c.View.Position.Latitude = 0.05
		c.View.Position.Longitude = 0.5
		c.View.Position.Altitude = config.Altitude{Absolute: ptr(10.0)}
		c.View.Frame.Direction = 0
		c.View.Frame.Fov = ptr(2.0)
		c.View.Frame.MaxDistance = ptr(60000.0)
		c.SimulationStep = 50
		c.Output.Width = 8
		c.Output.Height = 32
	})

	frame, err := New(params, ter).Render(context.Background())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	_, records := Draw(params, frame)

	// The plateau front face is 0.25 degrees north.
	frontDist := 0.25 * earth.DegreeDistance
	cellWidth := earth.DegreeDistance / (n - 1)

	// A slightly upward-looking ray hits the face; one above the plateau's
	// angular height escapes.
	hitAny := false
	for y := 0; y < 32; y++ {
		r := records[y*8+4]
		elev := frame.Pixels[y][4].ElevationAngle
		faceAngle := math.Atan2(490, frontDist) * 180 / math.Pi
		switch {
		case elev > faceAngle+0.2 && !r.IsMiss():
			t.Errorf("row %d (elev %.2f) above the plateau hit terrain at %g m", y, elev, r.Distance)
		case elev < -0.2 && r.IsMiss():
			t.Errorf("row %d (elev %.2f) below eye level missed the sea", y, elev)
		case elev < faceAngle-0.2 && elev > 0.2:
			if r.IsMiss() {
				t.Errorf("row %d (elev %.2f) should hit the plateau face", y, elev)
				continue
			}
			hitAny = true
			if math.Abs(r.Distance-frontDist) > 2*cellWidth {
				t.Errorf("row %d hit at %g m, want about %g m", y, r.Distance, frontDist)
			}
		}
	}
	if !hitAny {
		t.Error("no ray hit the plateau face")
	}
}

func TestTickPrecedence(t *testing.T) {
	// Build a synthetic one-row frame with one-degree columns.
	frame := &Frame{Pixels: [][]ResultPixel{make([]ResultPixel, 64)}}
	for x := range frame.Pixels[0] {
		frame.Pixels[0][x].Azimuth = float64(x)
	}

	ticks := []config.Tick{
		{Single: true, Angle: 10.2, Size: 3, Labelled: false},
		{Single: true, Angle: 9.8, Size: 7, Labelled: true},
		{Single: true, Angle: 30, Size: 5, Labelled: false},
	}
	out := expandTicks(ticks, 0, 64, true, func(a float64) (int, bool) {
		return azimuthToX(a, frame)
	})

	if tick, ok := out[10]; !ok {
		t.Fatal("no tick resolved to column 10")
	} else if tick.size != 7 {
		t.Errorf("column 10 tick size %d, want 7 (larger wins)", tick.size)
	}
	if tick, ok := out[30]; !ok || tick.size != 5 {
		t.Errorf("column 30 tick = %+v, want size 5", out[30])
	}
}

func TestMultipleTicksExpand(t *testing.T) {
	frame := &Frame{Pixels: [][]ResultPixel{make([]ResultPixel, 90)}}
	for x := range frame.Pixels[0] {
		frame.Pixels[0][x].Azimuth = float64(x)
	}
	ticks := []config.Tick{{Bias: 0, Step: 15, Size: 4, Labelled: false}}
	out := expandTicks(ticks, 0, 90, true, func(a float64) (int, bool) {
		return azimuthToX(a, frame)
	})
	for _, col := range []int{0, 15, 30, 45, 60, 75} {
		if _, ok := out[col]; !ok {
			t.Errorf("no tick at column %d", col)
		}
	}
	if len(out) != 6 {
		t.Errorf("%d ticks, want 6", len(out))
	}
}
