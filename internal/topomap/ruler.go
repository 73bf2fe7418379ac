package topomap

import (
	"image"
	"image/color"
	"math"
	"sort"

	"golang.org/x/image/draw"

	"github.com/UnknownOlympus/chil/internal/geo"
)

const secondsPerMinute = 60

// IntervalSeconds splits the span between start and end at every whole arc minute. The first
// interval runs from start up to the next whole minute, so a start on a whole minute gives a full
// 60 second interval. The last runs from the final minute to end. A span within a single minute
// yields one interval. The result is empty when end is not after start.
func IntervalSeconds(start, end geo.Sexagesimal) []float64 {
	from := start.TotalSeconds()
	to := end.TotalSeconds()
	if to <= from {
		return nil
	}

	var intervals []float64
	cursor := from
	for next := math.Floor(from/secondsPerMinute)*secondsPerMinute + secondsPerMinute; next < to; next += secondsPerMinute {
		intervals = append(intervals, next-cursor)
		cursor = next
	}

	return append(intervals, to-cursor)
}

// IntervalPixels distributes total pixels proportionally to the intervals. Rounding follows the
// largest remainder method so the result always sums to total.
func IntervalPixels(total int, intervals []float64) []int {
	pixels := make([]int, len(intervals))
	sum := 0.0
	for _, v := range intervals {
		sum += v
	}
	if sum <= 0 || total <= 0 {
		return pixels
	}

	remainders := make([]float64, len(intervals))
	assigned := 0
	for i, v := range intervals {
		exact := float64(total) * v / sum
		pixels[i] = int(math.Floor(exact))
		remainders[i] = exact - float64(pixels[i])
		assigned += pixels[i]
	}

	order := make([]int, len(intervals))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return remainders[order[a]] > remainders[order[b]] })

	for i := 0; assigned < total; i++ {
		pixels[order[i%len(order)]]++
		assigned++
	}

	return pixels
}

// Intervals returns the ruler intervals in pixels: heights from south to north and widths from
// west to east.
func (m *Map) Intervals() ([]int, []int) {
	bottomLeft := geo.ToSexagesimal(m.BBox.BottomLeft.Latitude)
	top := geo.ToSexagesimal(m.BBox.TopRight.Latitude)
	left := geo.ToSexagesimal(m.BBox.BottomLeft.Longitude)
	right := geo.ToSexagesimal(m.BBox.TopRight.Longitude)

	heights := IntervalPixels(m.Height, IntervalSeconds(bottomLeft, top))
	widths := IntervalPixels(m.Width, IntervalSeconds(left, right))

	return heights, widths
}

// RulerWidths returns the outline thickness (0.5 mm) and the ruler band thickness in pixels.
func (m *Map) RulerWidths() (int, int) {
	line := max(int(math.Round(rulerMm/mmPerInch*float64(m.Resolution))), 1)
	return line, line * rulerTicks
}

// DrawRulers returns a copy of the composed image with a vertical latitude ruler on the left and a
// horizontal longitude ruler at the bottom. Ruler segments alternate unfilled and filled starting
// from the south-west corner, one segment per arc minute. The latitude ruler is laid out from the
// southern edge upwards.
func (m *Map) DrawRulers() (*image.RGBA, error) {
	if m.Image == nil {
		return nil, ErrNoImage
	}

	line, band := m.RulerWidths()
	canvas := image.NewRGBA(image.Rect(0, 0, m.Width+band, m.Height+band))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(band, 0, band+m.Width, m.Height), m.Image, m.Image.Bounds().Min, draw.Src)

	vertical := image.Rect(0, 0, band, m.Height)
	horizontal := image.Rect(band, m.Height, band+m.Width, m.Height+band)
	strokeRect(canvas, vertical, line, color.Black)
	strokeRect(canvas, horizontal, line, color.Black)

	heights, widths := m.Intervals()

	// heights run south to north while the image y axis grows southwards
	bottom := m.Height
	for i, h := range heights {
		if i%2 == 1 {
			fillRect(canvas, image.Rect(line, bottom-h, band-line, bottom), color.Black)
		}
		bottom -= h
	}

	left := band
	for i, w := range widths {
		if i%2 == 1 {
			fillRect(canvas, image.Rect(left, m.Height+line, left+w, m.Height+band-line), color.Black)
		}
		left += w
	}

	return canvas, nil
}

func fillRect(dst draw.Image, r image.Rectangle, c color.Color) {
	draw.Draw(dst, r, image.NewUniform(c), image.Point{}, draw.Src)
}

// strokeRect draws the outline of r, width pixels thick, inside r.
func strokeRect(dst draw.Image, r image.Rectangle, width int, c color.Color) {
	fillRect(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width), c)
	fillRect(dst, image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y), c)
	fillRect(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y), c)
	fillRect(dst, image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y), c)
}
