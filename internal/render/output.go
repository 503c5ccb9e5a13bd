package render

import (
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/fizyk20/atm-raytracer/internal/config"
	"github.com/fizyk20/atm-raytracer/internal/metadata"
)

// Draw composites the frame into the final image and the metadata records.
func Draw(p *config.Params, frame *Frame) (*image.RGBA, []metadata.Record) {
	img := image.NewRGBA(image.Rect(0, 0, p.Width, p.Height))
	records := make([]metadata.Record, p.Width*p.Height)

	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			color, record := compositePixel(p, frame.Pixels[y][x])
			img.SetRGBA(x, y, color.RGB8())
			records[y*p.Width+x] = record
		}
	}

	drawTicks(p, frame, img)
	drawReferenceLines(p, frame, img)
	return img, records
}

// Output draws the frame and writes the image file and, when configured,
// the metadata file.
func Output(p *config.Params, frame *Frame) error {
	img, records := Draw(p, frame)

	if err := writePNG(p.OutputFile, img); err != nil {
		return err
	}
	if p.MetadataFile != "" {
		if err := metadata.WriteFile(p.MetadataFile, uint32(p.Width), uint32(p.Height), records); err != nil {
			return fmt.Errorf("writing metadata %s: %w", p.MetadataFile, err)
		}
	}
	return nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
