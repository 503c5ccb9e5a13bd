// Package dted reads Digital Terrain Elevation Data files and exposes a
// directory of them as a terrain.Loader. Only the parts of MIL-PRF-89020
// needed to recover the post grid are implemented: the UHL header and the
// data records.
package dted

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fizyk20/atm-raytracer/internal/terrain"
)

const (
	uhlSize = 80
	dsiSize = 648
	accSize = 2700

	recordSentinel = 0xAA
)

// Folder is a terrain.Loader over a directory of DTED files. The directory
// is scanned once; headers are read eagerly, elevation data lazily.
type Folder struct {
	paths map[[2]int]string
}

// OpenFolder scans dir for DTED files and indexes them by their southwest
// corner. Files that do not parse as DTED are skipped.
func OpenFolder(dir string) (*Folder, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("opening terrain folder: %w", err)
	}
	f := &Folder{paths: make(map[[2]int]string)}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		lat, lon, err := readOrigin(path)
		if err != nil {
			continue
		}
		f.paths[[2]int{lat, lon}] = path
	}
	return f, nil
}

// Count returns the number of indexed tiles.
func (f *Folder) Count() int { return len(f.paths) }

// Load implements terrain.Loader.
func (f *Folder) Load(latDeg, lonDeg int) (*terrain.Tile, error) {
	path, ok := f.paths[[2]int{latDeg, lonDeg}]
	if !ok {
		return nil, nil
	}
	tile, err := ReadFile(path)
	if err != nil {
		return nil, &terrain.DemIoError{Lat: latDeg, Lon: lonDeg, Err: err}
	}
	return tile, nil
}

func readOrigin(path string) (lat, lon int, err error) {
	fh, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer fh.Close()
	var uhl [uhlSize]byte
	if _, err := fh.Read(uhl[:]); err != nil {
		return 0, 0, err
	}
	return parseUHL(uhl[:])
}

func parseUHL(uhl []byte) (lat, lon int, err error) {
	if string(uhl[:4]) != "UHL1" {
		return 0, 0, fmt.Errorf("not a DTED file (missing UHL1)")
	}
	lonF, err := parseAngle(string(uhl[4:12]))
	if err != nil {
		return 0, 0, fmt.Errorf("UHL longitude: %w", err)
	}
	latF, err := parseAngle(string(uhl[12:20]))
	if err != nil {
		return 0, 0, fmt.Errorf("UHL latitude: %w", err)
	}
	return int(latF), int(lonF), nil
}

// parseAngle decodes the DDDMMSSH angle fields of the UHL header.
func parseAngle(s string) (float64, error) {
	if len(s) != 8 {
		return 0, fmt.Errorf("angle field %q: wrong length", s)
	}
	deg, err := strconv.Atoi(s[:3])
	if err != nil {
		return 0, fmt.Errorf("angle field %q: %v", s, err)
	}
	min, err := strconv.Atoi(s[3:5])
	if err != nil {
		return 0, fmt.Errorf("angle field %q: %v", s, err)
	}
	sec, err := strconv.Atoi(s[5:7])
	if err != nil {
		return 0, fmt.Errorf("angle field %q: %v", s, err)
	}
	v := float64(deg) + float64(min)/60 + float64(sec)/3600
	switch s[7] {
	case 'S', 'W', 's', 'w':
		return -v, nil
	case 'N', 'E', 'n', 'e':
		return v, nil
	}
	return 0, fmt.Errorf("angle field %q: bad hemisphere", s)
}

// ReadFile parses a whole DTED file into a tile.
func ReadFile(path string) (*terrain.Tile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse decodes DTED bytes: UHL, skipped DSI/ACC, then one record per
// longitude line, south-to-north posts within each.
func Parse(raw []byte) (*terrain.Tile, error) {
	if len(raw) < uhlSize+dsiSize+accSize {
		return nil, fmt.Errorf("dted: truncated header: %d bytes", len(raw))
	}
	lat0, lon0, err := parseUHL(raw[:uhlSize])
	if err != nil {
		return nil, err
	}
	cols, err := strconv.Atoi(strings.TrimSpace(string(raw[47:51])))
	if err != nil {
		return nil, fmt.Errorf("dted: longitude line count: %v", err)
	}
	rows, err := strconv.Atoi(strings.TrimSpace(string(raw[51:55])))
	if err != nil {
		return nil, fmt.Errorf("dted: latitude point count: %v", err)
	}
	if rows < 2 || cols < 2 {
		return nil, fmt.Errorf("dted: implausible grid %dx%d", rows, cols)
	}

	heights := make([]float64, rows*cols)
	off := uhlSize + dsiSize + accSize
	recSize := 8 + 2*rows + 4
	for c := 0; c < cols; c++ {
		if off+recSize > len(raw) {
			return nil, fmt.Errorf("dted: truncated at record %d", c)
		}
		rec := raw[off : off+recSize]
		if rec[0] != recordSentinel {
			return nil, fmt.Errorf("dted: record %d: bad sentinel 0x%02x", c, rec[0])
		}
		data := rec[8 : 8+2*rows]
		for r := 0; r < rows; r++ {
			heights[r*cols+c] = decodeElev(binary.BigEndian.Uint16(data[2*r:]))
		}
		off += recSize
	}

	return &terrain.Tile{
		Lat0:    lat0,
		Lon0:    lon0,
		Rows:    rows,
		Cols:    cols,
		Heights: heights,
	}, nil
}

// decodeElev converts the signed-magnitude post value; the void value reads
// as sea level.
func decodeElev(v uint16) float64 {
	mag := int(v & 0x7FFF)
	if v&0x8000 != 0 {
		mag = -mag
	}
	if mag == -32767 {
		return 0
	}
	return float64(mag)
}
