// Package render turns resolved parameters into the output image: it maps
// pixels to rays, traces them against terrain and scene objects, composites
// the hits and writes the final products.
package render

import (
	"math"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/fizyk20/atm-raytracer/internal/config"
	"github.com/fizyk20/atm-raytracer/internal/earth"
	"github.com/fizyk20/atm-raytracer/internal/geom"
	"github.com/fizyk20/atm-raytracer/internal/propagate"
	"github.com/fizyk20/atm-raytracer/internal/scene"
	"github.com/fizyk20/atm-raytracer/internal/terrain"
)

// TracePoint is one translucent hit along a pixel's ray, ordered by
// distance.
type TracePoint struct {
	Lat        float64
	Lon        float64
	Distance   float64 // surface arc distance from the observer
	Elevation  float64 // terrain or ray altitude at the hit
	PathLength float64
	Normal     r3.Vec
	Alpha      float64
	// Color is set for object hits; terrain hits are colored by the
	// coloring method.
	Color *geom.Color
}

// ResultPixel is everything known about one output pixel before
// compositing.
type ResultPixel struct {
	ElevationAngle float64 // degrees
	Azimuth        float64 // degrees
	Points         []TracePoint
}

// lineSample is one point of the ground track under a ray: the geographic
// position at a multiple of the simulation step, its terrain height, and
// the objects near enough to matter.
type lineSample struct {
	lat, lon float64
	elev     float64
	objects  []int
}

// pathPoint is one node of the vertical ray profile.
type pathPoint struct {
	s, h, path float64
}

// tracer bundles the immutable state shared by all rays of a render.
type tracer struct {
	params  *config.Params
	terrain *terrain.Terrain
	env     propagate.Env
	stats   *Stats
}

func newTracer(p *config.Params, t *terrain.Terrain, stats *Stats) *tracer {
	return &tracer{
		params:  p,
		terrain: t,
		env:     propagate.NewEnv(p.Shape, p.Atmosphere, p.StraightRays),
		stats:   stats,
	}
}

// steps is the node count of line and path caches.
func (tr *tracer) steps() int {
	return int(math.Ceil(tr.params.MaxDistance/tr.params.SimulationStep)) + 1
}

// genTerrainLine samples the ground track for a ray leaving at the given
// azimuth.
func (tr *tracer) genTerrainLine(azimuth float64) []lineSample {
	p := tr.params
	calc := p.Shape.Calc(p.Observer.Lat, p.Observer.Lon, azimuth)
	n := tr.steps()
	line := make([]lineSample, n)
	for i := 0; i < n; i++ {
		dist := float64(i) * p.SimulationStep
		lat, lon := calc.At(dist)
		s := lineSample{lat: lat, lon: lon, elev: tr.terrain.Elev(lat, lon)}
		for idx, obj := range p.Objects {
			if scene.Close(obj, p.Shape, p.SimulationStep, lat, lon) {
				s.objects = append(s.objects, idx)
			}
		}
		line[i] = s
	}
	return line
}

// genPath integrates the ray profile for the given elevation angle in
// degrees.
func (tr *tracer) genPath(elevAngle float64) []pathPoint {
	p := tr.params
	n := tr.steps()
	path := make([]pathPoint, 1, n)
	path[0] = pathPoint{s: 0, h: p.Observer.Elev, path: 0}

	initial := propagate.InitialState(p.Observer.Elev, elevAngle*math.Pi/180)
	tr.env.Trace(initial, p.SimulationStep, p.MaxDistance, propagate.VisitorFunc(
		func(seg propagate.Segment) propagate.Decision {
			path = append(path, pathPoint{s: seg.To.S, h: seg.To.H, path: seg.PathTo})
			return propagate.Continue
		}))

	if len(path) > 0 && path[len(path)-1].h > propagate.EscapeAltitude {
		tr.stats.escaped.Add(1)
	}
	return path
}

// mergeHits walks a ray's segments against the terrain line, collecting
// translucent hits front to back until the remaining transmittance is
// negligible.
func (tr *tracer) mergeHits(line []lineSample, path []pathPoint) []TracePoint {
	p := tr.params
	n := len(path)
	if len(line) < n {
		n = len(line)
	}
	if n < 2 {
		return nil
	}

	if path[0].h < line[0].elev {
		// Observer below ground: no sensible picture along this ray.
		tr.stats.belowStart.Add(1)
		return nil
	}

	var points []TracePoint
	transmittance := 1.0

	for i := 1; i < n; i++ {
		prevLine, curLine := line[i-1], line[i]
		prevPath, curPath := path[i-1], path[i]

		type stepHit struct {
			t     float64
			point TracePoint
		}
		var stepHits []stepHit

		if hit, ok := tr.terrainCrossing(prevLine, curLine, prevPath, curPath); ok {
			hit.point.Alpha = p.TerrainAlpha
			stepHits = append(stepHits, stepHit{t: hit.t, point: hit.point})
		}

		if len(prevLine.objects) > 0 || len(curLine.objects) > 0 {
			for _, idx := range mergeIndices(prevLine.objects, curLine.objects) {
				obj := p.Objects[idx]
				a := geom.Coords{Lat: prevLine.lat, Lon: prevLine.lon, Elev: prevPath.h}
				b := geom.Coords{Lat: curLine.lat, Lon: curLine.lon, Elev: curPath.h}
				for _, is := range obj.Intersect(p.Shape, a, b) {
					if is.Color.A == 0 {
						continue
					}
					c := is.Color
					stepHits = append(stepHits, stepHit{t: is.T, point: TracePoint{
						Lat:        lerp(prevLine.lat, curLine.lat, is.T),
						Lon:        lerp(prevLine.lon, curLine.lon, is.T),
						Distance:   lerp(prevPath.s, curPath.s, is.T),
						Elevation:  lerp(prevPath.h, curPath.h, is.T),
						PathLength: lerp(prevPath.path, curPath.path, is.T),
						Normal:     is.Normal,
						Alpha:      c.A,
						Color:      &c,
					}})
				}
			}
		}

		slices.SortFunc(stepHits, func(a, b stepHit) int {
			switch {
			case a.t < b.t:
				return -1
			case a.t > b.t:
				return 1
			}
			return 0
		})
		for _, h := range stepHits {
			points = append(points, h.point)
			transmittance *= 1 - h.point.Alpha
		}
		if transmittance < 1e-3 {
			break
		}
	}
	return points
}

type terrainHit struct {
	t     float64
	point TracePoint
}

// terrainCrossing finds the first terrain crossing within one segment. The
// post cells touched by the segment are walked in order and their triangles
// tested; when no triangle hit exists, a sign change between the endpoint
// samples falls back to linear interpolation.
func (tr *tracer) terrainCrossing(l1, l2 lineSample, p1, p2 pathPoint) (terrainHit, bool) {
	if t, ok := tr.cellWalkCrossing(l1, l2, p1, p2); ok {
		return t, true
	}

	diff1 := p1.h - l1.elev
	diff2 := p2.h - l2.elev
	if diff1*diff2 >= 0 {
		return terrainHit{}, false
	}
	t := diff1 / (diff1 - diff2)
	return tr.hitAt(l1, l2, p1, p2, t), true
}

func (tr *tracer) hitAt(l1, l2 lineSample, p1, p2 pathPoint, t float64) terrainHit {
	lat := lerp(l1.lat, l2.lat, t)
	lon := lerp(l1.lon, l2.lon, t)
	return terrainHit{t: t, point: TracePoint{
		Lat:        lat,
		Lon:        lon,
		Distance:   lerp(p1.s, p2.s, t),
		Elevation:  lerp(p1.h, p2.h, t),
		PathLength: lerp(p1.path, p2.path, t),
		Normal:     findNormal(tr.params.Shape, lat, lon, tr.terrain),
	}}
}

func mergeIndices(a, b []int) []int {
	out := append([]int(nil), a...)
	for _, idx := range b {
		if !slices.Contains(out, idx) {
			out = append(out, idx)
		}
	}
	return out
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

// findNormal estimates the terrain normal from finite differences 15 m
// around the point, expressed in the Earth model's cartesian frame.
func findNormal(shape earth.Shape, lat, lon float64, t *terrain.Terrain) r3.Vec {
	const diff = 15.0

	nsCalc := shape.Calc(lat, lon, 0)
	ewCalc := shape.Calc(lat, lon, 90)

	nLat, nLon := nsCalc.At(diff)
	sLat, sLon := nsCalc.At(-diff)
	eLat, eLon := ewCalc.At(diff)
	wLat, wLon := ewCalc.At(-diff)

	north, east, up := shape.WorldDirections(lat, lon)

	diffEW := t.Elev(eLat, eLon) - t.Elev(wLat, wLon)
	diffNS := t.Elev(nLat, nLon) - t.Elev(sLat, sLon)

	vecNS := r3.Add(r3.Scale(2*diff, north), r3.Scale(diffNS, up))
	vecEW := r3.Add(r3.Scale(2*diff, east), r3.Scale(diffEW, up))

	return r3.Unit(r3.Cross(vecEW, vecNS))
}
