package render

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/fizyk20/atm-raytracer/internal/terrain"
)

// cellWalkCrossing tests one ray segment against the actual DEM surface:
// the post cells touched by the segment's ground track are visited in
// order and each cell's two triangles are intersected analytically. This
// catches crossings the endpoint samples miss, including spikes between
// samples and seams at tile boundaries.
func (tr *tracer) cellWalkCrossing(l1, l2 lineSample, p1, p2 pathPoint) (terrainHit, bool) {
	// Split the segment at whole-degree boundaries so each piece lies in
	// one tile.
	t0 := 0.0
	for iter := 0; iter < 4 && t0 < 1; iter++ {
		t1 := nextTileBoundary(l1, l2, t0)
		if hit, ok := tr.cellWalkInTile(l1, l2, p1, p2, t0, t1); ok {
			return hit, true
		}
		t0 = t1
	}
	return terrainHit{}, false
}

// nextTileBoundary returns the segment parameter of the first whole-degree
// lat/lon crossing after t0, or 1 when the rest of the segment stays in one
// tile.
func nextTileBoundary(l1, l2 lineSample, t0 float64) float64 {
	next := 1.0
	for _, axis := range [][2]float64{{l1.lat, l2.lat}, {l1.lon, l2.lon}} {
		a := lerp(axis[0], axis[1], t0)
		b := axis[1]
		if a == b {
			continue
		}
		var boundary float64
		if b > a {
			boundary = math.Floor(a) + 1
		} else {
			boundary = math.Ceil(a) - 1
		}
		t := t0 + (1-t0)*(boundary-a)/(b-a)
		if t > t0 && t < next {
			next = t
		}
	}
	return next
}

func (tr *tracer) cellWalkInTile(l1, l2 lineSample, p1, p2 pathPoint, t0, t1 float64) (terrainHit, bool) {
	midLat := lerp(l1.lat, l2.lat, (t0+t1)/2)
	midLon := lerp(l1.lon, l2.lon, (t0+t1)/2)
	tile := tr.terrain.TileAt(midLat, midLon)
	if tile == nil {
		return terrainHit{}, false
	}

	// Work in post-grid units horizontally; the triangle parameter is
	// affine-invariant, so meters are not needed.
	gx1, gy1 := gridCoords(tile, lerp(l1.lat, l2.lat, t0), lerp(l1.lon, l2.lon, t0))
	gx2, gy2 := gridCoords(tile, lerp(l1.lat, l2.lat, t1), lerp(l1.lon, l2.lon, t1))
	h1 := lerp(p1.h, p2.h, t0)
	h2 := lerp(p1.h, p2.h, t1)

	orig := r3.Vec{X: gx1, Y: gy1, Z: h1}
	dir := r3.Vec{X: gx2 - gx1, Y: gy2 - gy1, Z: h2 - h1}

	for _, cell := range cellsOnTrack(gx1, gy1, gx2, gy2, tile.Cols-1, tile.Rows-1) {
		if tau, ok := cellIntersect(tile, cell[0], cell[1], orig, dir); ok {
			// Map the sub-segment parameter back to the full segment.
			t := t0 + (t1-t0)*tau
			return tr.hitAt(l1, l2, p1, p2, t), true
		}
	}
	return terrainHit{}, false
}

func gridCoords(tile *terrain.Tile, lat, lon float64) (gx, gy float64) {
	gx = (lon - float64(tile.Lon0)) * float64(tile.Cols-1)
	gy = (lat - float64(tile.Lat0)) * float64(tile.Rows-1)
	return gx, gy
}

// cellsOnTrack lists the grid cells crossed by the 2D track from (x1, y1)
// to (x2, y2), in traversal order (Amanatides-Woo stepping).
func cellsOnTrack(x1, y1, x2, y2 float64, maxX, maxY int) [][2]int {
	cx, cy := int(math.Floor(x1)), int(math.Floor(y1))
	ex, ey := int(math.Floor(x2)), int(math.Floor(y2))
	dx, dy := x2-x1, y2-y1

	stepX, tMaxX, tDeltaX := ddaAxis(x1, dx)
	stepY, tMaxY, tDeltaY := ddaAxis(y1, dy)

	var cells [][2]int
	for i := 0; ; i++ {
		if cx >= 0 && cx < maxX && cy >= 0 && cy < maxY {
			cells = append(cells, [2]int{cx, cy})
		}
		if (cx == ex && cy == ey) || i > maxX+maxY {
			break
		}
		if tMaxX < tMaxY {
			cx += stepX
			tMaxX += tDeltaX
		} else {
			cy += stepY
			tMaxY += tDeltaY
		}
	}
	return cells
}

func ddaAxis(x, dx float64) (step int, tMax, tDelta float64) {
	switch {
	case dx > 0:
		return 1, (math.Floor(x) + 1 - x) / dx, 1 / dx
	case dx < 0:
		return -1, (x - math.Floor(x)) / -dx, 1 / -dx
	}
	return 0, math.Inf(1), math.Inf(1)
}

// cellIntersect tests the two triangles of one DEM cell against the
// segment, returning the earliest parameter in [0, 1).
func cellIntersect(tile *terrain.Tile, cx, cy int, orig, dir r3.Vec) (float64, bool) {
	h00 := tile.At(cy, cx)
	h01 := tile.At(cy, cx+1)
	h10 := tile.At(cy+1, cx)
	h11 := tile.At(cy+1, cx+1)

	x0, y0 := float64(cx), float64(cy)
	v00 := r3.Vec{X: x0, Y: y0, Z: h00}
	v01 := r3.Vec{X: x0 + 1, Y: y0, Z: h01}
	v10 := r3.Vec{X: x0, Y: y0 + 1, Z: h10}
	v11 := r3.Vec{X: x0 + 1, Y: y0 + 1, Z: h11}

	best := math.Inf(1)
	if t, ok := rayTriangle(orig, dir, v00, v01, v11); ok && t < best {
		best = t
	}
	if t, ok := rayTriangle(orig, dir, v00, v11, v10); ok && t < best {
		best = t
	}
	if math.IsInf(best, 1) {
		return 0, false
	}
	return best, true
}

// rayTriangle is the Möller-Trumbore segment/triangle test; t is the
// segment parameter in [0, 1).
func rayTriangle(orig, dir, v0, v1, v2 r3.Vec) (float64, bool) {
	const eps = 1e-12
	e1 := r3.Sub(v1, v0)
	e2 := r3.Sub(v2, v0)
	p := r3.Cross(dir, e2)
	det := r3.Dot(e1, p)
	if math.Abs(det) < eps {
		return 0, false
	}
	inv := 1 / det
	s := r3.Sub(orig, v0)
	u := r3.Dot(s, p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := r3.Cross(s, e1)
	v := r3.Dot(dir, q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t := r3.Dot(e2, q) * inv
	if t < 0 || t >= 1 {
		return 0, false
	}
	return t, true
}
