package terrain

import (
	"errors"
	"math"
	"sync"
	"testing"
)

// gridTile builds an n x n tile whose posts are height(lat, lon).
func gridTile(lat0, lon0, n int, height func(lat, lon float64) float64) *Tile {
	heights := make([]float64, n*n)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			lat := float64(lat0) + float64(r)/float64(n-1)
			lon := float64(lon0) + float64(c)/float64(n-1)
			heights[r*n+c] = height(lat, lon)
		}
	}
	return &Tile{Lat0: lat0, Lon0: lon0, Rows: n, Cols: n, Heights: heights}
}

func TestTileBilinear(t *testing.T) {
	// A bilinear surface is reproduced exactly.
	f := func(lat, lon float64) float64 { return 100 + 40*(lat-50) + 70*(lon-10) }
	tile := gridTile(50, 10, 5, f)

	tests := []struct {
		name     string
		lat, lon float64
	}{
		{"southwest post", 50, 10},
		{"northeast post", 51, 11},
		{"inner post", 50.25, 10.5},
		{"between posts", 50.1, 10.37},
		{"near north edge", 50.999, 10.001},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tile.Elev(tt.lat, tt.lon)
			want := f(tt.lat, tt.lon)
			if math.Abs(got-want) > 1e-9 {
				t.Errorf("Elev(%g, %g) = %g, want %g", tt.lat, tt.lon, got, want)
			}
		})
	}
}

func TestCacheMissingTileIsSeaLevel(t *testing.T) {
	loads := 0
	cache := New(LoaderFunc(func(lat, lon int) (*Tile, error) {
		loads++
		return nil, nil
	}), 4)

	if got := cache.Elev(12.5, 44.5); got != 0 {
		t.Errorf("Elev over missing tile = %g, want 0", got)
	}
	cache.Elev(12.6, 44.4)
	if loads != 1 {
		t.Errorf("missing tile loaded %d times, want 1 (cached as absent)", loads)
	}
}

func TestCacheLoadErrorDegradesToSeaLevel(t *testing.T) {
	cache := New(LoaderFunc(func(lat, lon int) (*Tile, error) {
		return nil, &DemIoError{Lat: lat, Lon: lon, Err: errors.New("short read")}
	}), 4)
	if got := cache.Elev(0.5, 0.5); got != 0 {
		t.Errorf("Elev after load error = %g, want 0", got)
	}
}

func TestCacheLRUEviction(t *testing.T) {
	loads := make(map[[2]int]int)
	cache := New(LoaderFunc(func(lat, lon int) (*Tile, error) {
		loads[[2]int{lat, lon}]++
		return gridTile(lat, lon, 3, func(_, _ float64) float64 { return float64(lon) }), nil
	}), 2)

	cache.Elev(0.5, 0.5) // tile (0, 0)
	cache.Elev(0.5, 1.5) // tile (0, 1)
	cache.Elev(0.5, 0.5) // refresh (0, 0)
	cache.Elev(0.5, 2.5) // tile (0, 2) evicts (0, 1)

	if got := cache.Loaded(); got != 2 {
		t.Fatalf("Loaded() = %d, want 2", got)
	}

	cache.Elev(0.5, 1.5) // must reload
	if loads[[2]int{0, 1}] != 2 {
		t.Errorf("tile (0, 1) loaded %d times, want 2 (evicted in between)", loads[[2]int{0, 1}])
	}
	if loads[[2]int{0, 0}] != 1 {
		t.Errorf("tile (0, 0) loaded %d times, want 1 (kept by LRU touch)", loads[[2]int{0, 0}])
	}
}

func TestCacheNegativeCoordinates(t *testing.T) {
	var got [][2]int
	cache := New(LoaderFunc(func(lat, lon int) (*Tile, error) {
		got = append(got, [2]int{lat, lon})
		return nil, nil
	}), 4)
	cache.Elev(-0.25, -179.5)
	want := [2]int{-1, -180}
	if len(got) != 1 || got[0] != want {
		t.Errorf("loader keys = %v, want [%v]", got, want)
	}
}

func TestCacheConcurrentReaders(t *testing.T) {
	cache := New(LoaderFunc(func(lat, lon int) (*Tile, error) {
		return gridTile(lat, lon, 3, func(lat, lon float64) float64 { return lat + lon }), nil
	}), 8)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				lat := 0.1 + float64(i%10)/20
				lon := float64(w%4) + 0.5
				want := lat + lon
				if got := cache.Elev(lat, lon); math.Abs(got-want) > 1e-9 {
					t.Errorf("Elev(%g, %g) = %g, want %g", lat, lon, got, want)
					return
				}
			}
		}(w)
	}
	wg.Wait()
}
