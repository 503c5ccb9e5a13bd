package render

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/fizyk20/atm-raytracer/internal/config"
)

var (
	tickColor        = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	eyeLevelColor    = color.RGBA{R: 255, G: 128, B: 255, A: 255}
	flatHorizonColor = color.RGBA{G: 128, B: 255, A: 255}
)

type drawTick struct {
	size     int
	label    string
	labelled bool
}

func diffAzimuth(az1, az2 float64) float64 {
	d := math.Mod(az1-az2, 360)
	if d < -180 {
		d += 360
	}
	if d > 180 {
		d -= 360
	}
	return d
}

// azimuthToX finds the column whose center azimuth is closest to the given
// one; ticks outside the frame return false.
func azimuthToX(azimuth float64, frame *Frame) (int, bool) {
	row := frame.Pixels[0]
	best, bestDiff := 0, math.Inf(1)
	for x := range row {
		if d := math.Abs(diffAzimuth(azimuth, row[x].Azimuth)); d < bestDiff {
			best, bestDiff = x, d
		}
	}
	neighbor := 1
	if best > 0 {
		neighbor = best - 1
	}
	perPixel := math.Abs(diffAzimuth(row[best].Azimuth, row[neighbor].Azimuth))
	if bestDiff >= perPixel*1.5 {
		return 0, false
	}
	return best, true
}

// elevationToY is the vertical counterpart of azimuthToX.
func elevationToY(elevation float64, frame *Frame) (int, bool) {
	best, bestDiff := 0, math.Inf(1)
	for y := range frame.Pixels {
		if d := math.Abs(elevation - frame.Pixels[y][0].ElevationAngle); d < bestDiff {
			best, bestDiff = y, d
		}
	}
	neighbor := 1
	if best > 0 {
		neighbor = best - 1
	}
	perPixel := math.Abs(frame.Pixels[best][0].ElevationAngle - frame.Pixels[neighbor][0].ElevationAngle)
	if bestDiff >= perPixel*1.5 {
		return 0, false
	}
	return best, true
}

// expandTicks resolves tick definitions into per-line draw instructions,
// keyed by pixel index. When several ticks land on the same line, the one
// with the larger size wins.
func expandTicks(ticks []config.Tick, minAngle, maxAngle float64, wrap bool,
	locate func(angle float64) (int, bool)) map[int]drawTick {

	decimals := labelDecimals(ticks)
	out := make(map[int]drawTick)
	place := func(angle float64, size int, labelled bool) {
		idx, ok := locate(angle)
		if !ok {
			return
		}
		tick := drawTick{
			size:     size,
			labelled: labelled,
			label:    fmt.Sprintf("%.*f", decimals, angle),
		}
		if old, ok := out[idx]; !ok || old.size < tick.size {
			out[idx] = tick
		}
	}

	for _, t := range ticks {
		if t.Single {
			place(t.Angle, t.Size, t.Labelled)
			continue
		}
		angle := math.Ceil((minAngle-t.Bias)/t.Step)*t.Step + t.Bias
		for ; angle < maxAngle; angle += t.Step {
			shown := angle
			if wrap {
				shown = normalizeAzimuth(angle)
			}
			place(shown, t.Size, t.Labelled)
		}
	}
	return out
}

// labelDecimals picks the label precision covering every labelled tick.
func labelDecimals(ticks []config.Tick) int {
	max := 0
	for _, t := range ticks {
		if !t.Labelled {
			continue
		}
		angle := t.Angle
		if !t.Single {
			angle = t.Step
		}
		if d := numDecimals(angle); d > max {
			max = d
		}
	}
	return max
}

func numDecimals(x float64) int {
	for i := 0; i < 10; i++ {
		mul := x * math.Pow(10, float64(i))
		if math.Abs(math.Round(mul)-mul) < 0.001 {
			return i
		}
	}
	return 10
}

func drawTicks(p *config.Params, frame *Frame, img *image.RGBA) {
	minAz := p.Direction - p.Fov/2
	maxAz := p.Direction + p.Fov/2
	horizontal := expandTicks(p.Ticks, minAz, maxAz, true, func(a float64) (int, bool) {
		return azimuthToX(a, frame)
	})
	for x, tick := range horizontal {
		drawVLine(img, x, 0, tick.size)
		if tick.labelled {
			drawLabel(img, x-8, tick.size+15, tick.label)
		}
	}

	aspect := float64(p.Height) / float64(p.Width)
	minElev := p.Tilt - p.Fov*aspect/2
	maxElev := p.Tilt + p.Fov*aspect/2
	vertical := expandTicks(p.VerticalTicks, minElev, maxElev, false, func(a float64) (int, bool) {
		return elevationToY(a, frame)
	})
	for y, tick := range vertical {
		drawHLine(img, 0, tick.size, y, tickColor)
		if tick.labelled {
			drawLabel(img, tick.size+5, y+4, tick.label)
		}
	}
}

// drawReferenceLines draws the eye-level line and, on refracting flat
// models, the astronomical horizon.
func drawReferenceLines(p *config.Params, frame *Frame, img *image.RGBA) {
	if p.ShowFlatHorizon {
		// Downward-curving rays put the astronomical horizon of a flat
		// Earth above eye level.
		n := p.Atmosphere.N(p.Observer.Elev)
		elev := math.Acos(1/n) * 180 / math.Pi
		drawConstElevation(frame, img, elev, flatHorizonColor)
	}
	if p.ShowEyeLevel {
		drawConstElevation(frame, img, 0, eyeLevelColor)
	}
}

// drawConstElevation traces the given view-space elevation angle across all
// columns.
func drawConstElevation(frame *Frame, img *image.RGBA, elev float64, c color.RGBA) {
	for x := range frame.Pixels[0] {
		y, ok := findElevInColumn(frame, x, elev)
		if !ok {
			continue
		}
		img.SetRGBA(x, y, c)
	}
}

func findElevInColumn(frame *Frame, x int, elev float64) (int, bool) {
	best, bestDiff := 0, math.Inf(1)
	for y := range frame.Pixels {
		if d := math.Abs(frame.Pixels[y][x].ElevationAngle - elev); d < bestDiff {
			best, bestDiff = y, d
		}
	}
	neighbor := 1
	if best > 0 {
		neighbor = best - 1
	}
	perPixel := math.Abs(frame.Pixels[best][x].ElevationAngle - frame.Pixels[neighbor][x].ElevationAngle)
	return best, bestDiff < perPixel*1.5
}

func drawVLine(img *image.RGBA, x, y0, y1 int) {
	for y := y0; y <= y1 && y < img.Bounds().Dy(); y++ {
		img.SetRGBA(x, y, tickColor)
	}
}

func drawHLine(img *image.RGBA, x0, x1, y int, c color.RGBA) {
	for x := x0; x <= x1 && x < img.Bounds().Dx(); x++ {
		img.SetRGBA(x, y, c)
	}
}

func drawLabel(img *image.RGBA, x, y int, text string) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(tickColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
