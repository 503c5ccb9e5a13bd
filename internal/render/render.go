package render

import (
	"context"
	"errors"
	"log"
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/fizyk20/atm-raytracer/internal/config"
	"github.com/fizyk20/atm-raytracer/internal/terrain"
)

// ErrCancelled reports a render aborted through its context.
var ErrCancelled = errors.New("render cancelled")

// rowTileSize is the scheduling granularity: rows per worker task.
// Cancellation is checked between tiles.
const rowTileSize = 16

// Stats aggregates ray anomalies over a render; they produce sky pixels,
// never errors.
type Stats struct {
	escaped    atomic.Int64
	belowStart atomic.Int64
}

// Escaped counts rays that left the atmosphere.
func (s *Stats) Escaped() int64 { return s.escaped.Load() }

// BelowStart counts rays that began below the terrain.
func (s *Stats) BelowStart() int64 { return s.belowStart.Load() }

// Frame is the traced pixel grid of one render, before compositing.
type Frame struct {
	Pixels [][]ResultPixel // [y][x]
	Stats  *Stats
}

// Renderer drives one render over immutable parameters and the shared tile
// cache.
type Renderer struct {
	Params  *config.Params
	Terrain *terrain.Terrain

	// Workers overrides the worker count; 0 means GOMAXPROCS.
	Workers int
}

// New returns a renderer.
func New(p *config.Params, t *terrain.Terrain) *Renderer {
	return &Renderer{Params: p, Terrain: t}
}

// Render traces every pixel and returns the frame. It honors ctx between
// row tiles and returns ErrCancelled when interrupted.
func (r *Renderer) Render(ctx context.Context) (*Frame, error) {
	stats := &Stats{}
	tr := newTracer(r.Params, r.Terrain, stats)

	var pixelFn func(x, y int) ResultPixel
	var err error
	switch r.Params.Generator {
	case config.GeneratorFast:
		pixelFn, err = r.fastPixelFn(ctx, tr)
	case config.GeneratorRectilinear:
		pixelFn = r.rectilinearPixelFn(tr, nil)
	case config.GeneratorInterpolatingRectilinear:
		pixelFn = r.rectilinearPixelFn(tr, r.coarseAngleGrid())
	}
	if err != nil {
		return nil, err
	}

	pixels, err := r.renderRows(ctx, pixelFn)
	if err != nil {
		return nil, err
	}
	log.Printf("render: done; %d rays escaped, %d started below terrain",
		stats.Escaped(), stats.BelowStart())
	return &Frame{Pixels: pixels, Stats: stats}, nil
}

// fastAzimuth maps a column to its ray azimuth in the cylindrical
// projection.
func (r *Renderer) fastAzimuth(x int) float64 {
	p := r.Params
	w := float64(p.Width)
	return p.Direction + (float64(x)-w/2)/w*p.Fov
}

// fastElevation maps a row to its ray elevation angle.
func (r *Renderer) fastElevation(y int) float64 {
	p := r.Params
	w, h := float64(p.Width), float64(p.Height)
	aspect := w / h
	return p.Tilt - (float64(y)-h/2)/h*p.Fov/aspect
}

// fastPixelFn precomputes per-column terrain lines and per-row ray paths;
// each pixel then merges one line with one path.
func (r *Renderer) fastPixelFn(ctx context.Context, tr *tracer) (func(x, y int) ResultPixel, error) {
	p := r.Params

	log.Printf("render: generating terrain cache...")
	lines := make([][]lineSample, p.Width)
	if err := r.parallelDo(ctx, p.Width, func(x int) {
		lines[x] = tr.genTerrainLine(r.fastAzimuth(x))
	}); err != nil {
		return nil, err
	}

	log.Printf("render: generating path cache...")
	paths := make([][]pathPoint, p.Height)
	if err := r.parallelDo(ctx, p.Height, func(y int) {
		paths[y] = tr.genPath(r.fastElevation(y))
	}); err != nil {
		return nil, err
	}

	return func(x, y int) ResultPixel {
		return ResultPixel{
			ElevationAngle: r.fastElevation(y),
			Azimuth:        normalizeAzimuth(r.fastAzimuth(x)),
			Points:         tr.mergeHits(lines[x], paths[y]),
		}
	}, nil
}

// rectilinearPixelFn traces each pixel's exact ray through a pinhole
// camera. With a coarse grid the exact angles are computed only at grid
// nodes and bilinearly interpolated between them.
func (r *Renderer) rectilinearPixelFn(tr *tracer, grid *angleGrid) func(x, y int) ResultPixel {
	return func(x, y int) ResultPixel {
		var az, elev float64
		if grid != nil {
			az, elev = grid.at(x, y)
		} else {
			az, elev = r.pinholeAngles(float64(x), float64(y))
		}
		line := tr.genTerrainLine(az)
		path := tr.genPath(elev)
		return ResultPixel{
			ElevationAngle: elev,
			Azimuth:        normalizeAzimuth(az),
			Points:         tr.mergeHits(line, path),
		}
	}
}

// pinholeAngles converts image coordinates to the true ray direction of a
// rectilinear camera and back to (azimuth, elevation) in degrees.
func (r *Renderer) pinholeAngles(x, y float64) (az, elev float64) {
	p := r.Params
	w, h := float64(p.Width), float64(p.Height)
	focal := w / 2 / math.Tan(p.Fov/2*math.Pi/180)

	forward := dirVec(p.Direction, p.Tilt)
	worldUp := r3.Vec{Z: 1}
	right := r3.Unit(r3.Cross(worldUp, forward))
	camUp := r3.Cross(forward, right)

	v := r3.Add(r3.Add(
		r3.Scale(focal, forward),
		r3.Scale(x-w/2, right)),
		r3.Scale(h/2-y, camUp))

	elev = math.Asin(v.Z/r3.Norm(v)) * 180 / math.Pi
	az = math.Atan2(v.Y, v.X) * 180 / math.Pi
	// Keep azimuths continuous around the viewing direction so the coarse
	// grid can interpolate them.
	for az-p.Direction > 180 {
		az -= 360
	}
	for az-p.Direction < -180 {
		az += 360
	}
	return az, elev
}

// dirVec is the unit direction at the given azimuth and elevation, in
// north/east/up components.
func dirVec(azDeg, elevDeg float64) r3.Vec {
	az := azDeg * math.Pi / 180
	el := elevDeg * math.Pi / 180
	sinAz, cosAz := math.Sincos(az)
	sinEl, cosEl := math.Sincos(el)
	return r3.Vec{X: cosEl * cosAz, Y: cosEl * sinAz, Z: sinEl}
}

// coarseStep is the node spacing of the interpolating generator's angle
// grid, pixels.
const coarseStep = 8

type angleGrid struct {
	step       int
	cols, rows int
	az, elev   []float64
}

// coarseAngleGrid evaluates the exact pinhole angles every coarseStep
// pixels.
func (r *Renderer) coarseAngleGrid() *angleGrid {
	p := r.Params
	cols := p.Width/coarseStep + 2
	rows := p.Height/coarseStep + 2
	g := &angleGrid{
		step: coarseStep,
		cols: cols,
		rows: rows,
		az:   make([]float64, cols*rows),
		elev: make([]float64, cols*rows),
	}
	for gy := 0; gy < rows; gy++ {
		for gx := 0; gx < cols; gx++ {
			az, elev := r.pinholeAngles(float64(gx*coarseStep), float64(gy*coarseStep))
			g.az[gy*cols+gx] = az
			g.elev[gy*cols+gx] = elev
		}
	}
	return g
}

// at bilinearly interpolates the angles for a pixel.
func (g *angleGrid) at(x, y int) (az, elev float64) {
	gx := x / g.step
	gy := y / g.step
	fx := float64(x%g.step) / float64(g.step)
	fy := float64(y%g.step) / float64(g.step)

	i := gy*g.cols + gx
	az = lerp(lerp(g.az[i], g.az[i+1], fx), lerp(g.az[i+g.cols], g.az[i+g.cols+1], fx), fy)
	elev = lerp(lerp(g.elev[i], g.elev[i+1], fx), lerp(g.elev[i+g.cols], g.elev[i+g.cols+1], fx), fy)
	return az, elev
}

func normalizeAzimuth(az float64) float64 {
	az = math.Mod(az, 360)
	if az < 0 {
		az += 360
	}
	return az
}

func (r *Renderer) workers() int {
	if r.Workers > 0 {
		return r.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// renderRows traces all pixels, distributing row tiles over the worker
// pool. Every pixel is written exactly once through its own index.
func (r *Renderer) renderRows(ctx context.Context, pixelFn func(x, y int) ResultPixel) ([][]ResultPixel, error) {
	p := r.Params
	pixels := make([][]ResultPixel, p.Height)
	for y := range pixels {
		pixels[y] = make([]ResultPixel, p.Width)
	}

	tiles := (p.Height + rowTileSize - 1) / rowTileSize
	jobs := make(chan int)
	var wg sync.WaitGroup
	var done atomic.Int64
	var cancelled atomic.Bool

	log.Printf("render: calculating %dx%d pixels on %d workers...", p.Width, p.Height, r.workers())
	for w := 0; w < r.workers(); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for tile := range jobs {
				if ctx.Err() != nil {
					cancelled.Store(true)
					continue
				}
				yEnd := (tile + 1) * rowTileSize
				if yEnd > p.Height {
					yEnd = p.Height
				}
				for y := tile * rowTileSize; y < yEnd; y++ {
					for x := 0; x < p.Width; x++ {
						pixels[y][x] = pixelFn(x, y)
					}
					prev := done.Add(1) - 1
					logProgress(prev, int64(p.Height))
				}
			}
		}()
	}
	for tile := 0; tile < tiles; tile++ {
		jobs <- tile
	}
	close(jobs)
	wg.Wait()

	if cancelled.Load() || ctx.Err() != nil {
		return nil, ErrCancelled
	}
	return pixels, nil
}

// parallelDo runs fn over [0, n) on the worker pool, checking ctx between
// chunks.
func (r *Renderer) parallelDo(ctx context.Context, n int, fn func(i int)) error {
	jobs := make(chan int)
	var wg sync.WaitGroup
	var cancelled atomic.Bool
	for w := 0; w < r.workers(); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					cancelled.Store(true)
					continue
				}
				fn(i)
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	if cancelled.Load() || ctx.Err() != nil {
		return ErrCancelled
	}
	return nil
}

func logProgress(doneRows, totalRows int64) {
	prev := doneRows * 10 / totalRows
	next := (doneRows + 1) * 10 / totalRows
	if next > prev {
		log.Printf("render: %d%%...", next*10)
	}
}
