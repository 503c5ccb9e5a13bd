package metadata

import (
	"bytes"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	records := []Record{
		{Lat: 49.5, Lon: 20.25, Elevation: 1725.5, Distance: 35000, PathLength: 35003.2},
		Miss(),
		{Lat: -33.25, Lon: -70.5, Elevation: 0, Distance: 120, PathLength: 120},
		Miss(),
	}

	var buf bytes.Buffer
	if err := Write(&buf, 2, 2, records); err != nil {
		t.Fatalf("Write: %v", err)
	}

	wantSize := 4 + 2 + 4 + 4 + 4*5*8
	if buf.Len() != wantSize {
		t.Errorf("encoded size %d, want %d", buf.Len(), wantSize)
	}

	f, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if f.Width != 2 || f.Height != 2 {
		t.Fatalf("size = %dx%d, want 2x2", f.Width, f.Height)
	}
	if got := f.At(0, 0); got != records[0] {
		t.Errorf("At(0, 0) = %+v, want %+v", got, records[0])
	}
	if got := f.At(0, 1); got != records[2] {
		t.Errorf("At(0, 1) = %+v, want %+v", got, records[2])
	}
	if !f.At(1, 0).IsMiss() || !f.At(1, 1).IsMiss() {
		t.Error("miss records not preserved")
	}
}

func TestWriteRejectsSizeMismatch(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, 2, 2, make([]Record, 3)); err == nil {
		t.Error("Write accepted 3 records for a 2x2 image")
	}
}

func TestReadRejectsCorruptHeader(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", []byte("NOPE\x01\x00\x01\x00\x00\x00\x01\x00\x00\x00")},
		{"bad version", []byte("ATMR\xff\x00\x01\x00\x00\x00\x01\x00\x00\x00")},
		{"truncated records", []byte("ATMR\x01\x00\x01\x00\x00\x00\x01\x00\x00\x00")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Read(bytes.NewReader(tt.data)); err == nil {
				t.Error("Read succeeded on corrupt input")
			}
		})
	}
}

func TestFileRoundTrip(t *testing.T) {
	path := t.TempDir() + "/meta.bin"
	records := []Record{{Lat: 1, Lon: 2, Elevation: 3, Distance: 4, PathLength: 5}}
	if err := WriteFile(path, 1, 1, records); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	f, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if f.At(0, 0) != records[0] {
		t.Errorf("At(0, 0) = %+v, want %+v", f.At(0, 0), records[0])
	}
}
