// Package metadata encodes the per-pixel geographic record stream written
// alongside a rendered image and read back by the view subcommand.
//
// The format is little-endian: a header of magic "ATMR", a u16 version, u32
// width and u32 height, followed by width·height records of five f64 fields
// (lat, lon, elevation, distance, path length). Pixels without a recorded
// hit carry NaN in every field.
package metadata

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// Magic identifies a metadata file.
var Magic = [4]byte{'A', 'T', 'M', 'R'}

// Version is the current format version.
const Version uint16 = 1

// Record is the metadata of one pixel.
type Record struct {
	Lat        float64
	Lon        float64
	Elevation  float64
	Distance   float64
	PathLength float64
}

// Miss is the record for a pixel without a hit.
func Miss() Record {
	nan := math.NaN()
	return Record{Lat: nan, Lon: nan, Elevation: nan, Distance: nan, PathLength: nan}
}

// IsMiss reports whether the record encodes a missing hit.
func (r Record) IsMiss() bool { return math.IsNaN(r.Lat) }

// File is a decoded metadata stream.
type File struct {
	Width   uint32
	Height  uint32
	Records []Record // row-major, Width*Height entries
}

// At returns the record at pixel (x, y).
func (f *File) At(x, y int) Record {
	return f.Records[y*int(f.Width)+x]
}

// Write streams the records out with the header.
func Write(w io.Writer, width, height uint32, records []Record) error {
	if int(width)*int(height) != len(records) {
		return fmt.Errorf("metadata: %d records for %dx%d image", len(records), width, height)
	}
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(Magic[:]); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, Version); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, width); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, height); err != nil {
		return err
	}
	for i := range records {
		if err := binary.Write(bw, binary.LittleEndian, &records[i]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile writes the stream to path.
func WriteFile(path string, width, height uint32, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, width, height, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Read decodes a full metadata stream.
func Read(r io.Reader) (*File, error) {
	br := bufio.NewReader(r)
	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, fmt.Errorf("metadata: bad magic %q", magic[:])
	}
	var version uint16
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return nil, err
	}
	if version != Version {
		return nil, fmt.Errorf("metadata: unsupported version %d", version)
	}
	f := &File{}
	if err := binary.Read(br, binary.LittleEndian, &f.Width); err != nil {
		return nil, err
	}
	if err := binary.Read(br, binary.LittleEndian, &f.Height); err != nil {
		return nil, err
	}
	n := int(f.Width) * int(f.Height)
	f.Records = make([]Record, n)
	for i := range f.Records {
		if err := binary.Read(br, binary.LittleEndian, &f.Records[i]); err != nil {
			return nil, fmt.Errorf("metadata: record %d: %w", i, err)
		}
	}
	return f, nil
}

// ReadFile decodes the stream at path.
func ReadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}
