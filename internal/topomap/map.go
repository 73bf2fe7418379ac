package topomap

import (
	"fmt"
	"image"
	"log/slog"
	"math"
	"strings"

	"github.com/UnknownOlympus/chil/internal/geo"
)

// Map is a topographic map of a bounding box at a given scale and print resolution.
type Map struct {
	BBox       geo.BoundingBox
	Resolution int // pixels per inch
	Scale      int // scale denominator, e.g. 25000 for 1:25000
	Title      string

	// FrameCm and ExtentKm describe how the box was derived from a paper frame, when it was.
	FrameCm  [2]float64
	ExtentKm [2]float64

	Grid   Grid
	Width  int // composed image width in pixels
	Height int // composed image height in pixels
	Image  image.Image

	log *slog.Logger
}

// Option configures a Map.
type Option func(*Map)

// WithTitle sets a human readable title used in the summary.
func WithTitle(title string) Option {
	return func(m *Map) { m.Title = title }
}

// WithFrameCm records the paper frame, height then width, the box was computed from.
func WithFrameCm(height, width float64) Option {
	return func(m *Map) { m.FrameCm = [2]float64{height, width} }
}

// WithExtentKm records the ground extent, height then width, the box was computed from.
func WithExtentKm(height, width float64) Option {
	return func(m *Map) { m.ExtentKm = [2]float64{height, width} }
}

// WithLogger sets the logger used while building the grid.
func WithLogger(log *slog.Logger) Option {
	return func(m *Map) {
		if log != nil {
			m.log = log
		}
	}
}

// New creates a map of the box between bottomLeft and topRight. The grid is not built yet.
func New(bottomLeft, topRight geo.Point, resolution, scale int, opts ...Option) (*Map, error) {
	bbox, err := geo.NewBoundingBox(bottomLeft, topRight)
	if err != nil {
		return nil, err
	}
	if resolution <= 0 {
		return nil, fmt.Errorf("%w: resolution must be positive, got %d", ErrInvalidMapParameter, resolution)
	}
	if scale <= 0 {
		return nil, fmt.Errorf("%w: scale must be positive, got %d", ErrInvalidMapParameter, scale)
	}

	m := &Map{
		BBox:       bbox,
		Resolution: resolution,
		Scale:      scale,
		log:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// ExtentKmAtScale converts a paper length in centimetres into kilometres on the ground.
func ExtentKmAtScale(cm float64, scale int) float64 {
	return cm * float64(scale) / cmPerKm
}

// FrameAtScale converts a ground length in kilometres into centimetres of paper.
func FrameAtScale(km float64, scale int) float64 {
	return cmPerKm * km / float64(scale)
}

// Frame returns the requested extent as (height, width) in kilometres and centimetres. It falls back
// to the geodesic size of the box edges when the map was not built from a frame or an extent.
func (m *Map) Frame() ([2]float64, [2]float64) {
	switch {
	case m.FrameCm != [2]float64{}:
		return [2]float64{ExtentKmAtScale(m.FrameCm[0], m.Scale), ExtentKmAtScale(m.FrameCm[1], m.Scale)}, m.FrameCm
	case m.ExtentKm != [2]float64{}:
		return m.ExtentKm, [2]float64{FrameAtScale(m.ExtentKm[0], m.Scale), FrameAtScale(m.ExtentKm[1], m.Scale)}
	default:
		km := [2]float64{m.BBox.HeightKm(), m.BBox.WidthKm()}
		return km, [2]float64{FrameAtScale(km[0], m.Scale), FrameAtScale(km[1], m.Scale)}
	}
}

// PixelsPerCm returns the print density in whole pixels per centimetre.
func (m *Map) PixelsPerCm() int {
	return int(math.Floor(float64(m.Resolution) / cmPerInch))
}

// String summarises the map: corners, requested and geodesic extent, grid and pixel size.
func (m *Map) String() string {
	var sb strings.Builder

	if m.Title != "" {
		fmt.Fprintf(&sb, "%s\n", m.Title)
	}
	km, cm := m.Frame()

	fmt.Fprintf(&sb, "Geodetic system: WGS84\n")
	fmt.Fprintf(&sb, "Scale: 1:%d, resolution: %d ppi (%d px/cm)\n", m.Scale, m.Resolution, m.PixelsPerCm())
	fmt.Fprintf(&sb, "Top left:     %s\n", geo.FormatPoint(m.BBox.TopLeft()))
	fmt.Fprintf(&sb, "Top right:    %s\n", geo.FormatPoint(m.BBox.TopRight))
	fmt.Fprintf(&sb, "Bottom left:  %s\n", geo.FormatPoint(m.BBox.BottomLeft))
	fmt.Fprintf(&sb, "Bottom right: %s\n", geo.FormatPoint(m.BBox.BottomRight()))
	fmt.Fprintf(&sb, "Height: %s, %.3f km geodesic, %.3f km requested (%.1f cm)\n",
		geo.FormatCoord(m.BBox.TopRight.Latitude-m.BBox.BottomLeft.Latitude), m.BBox.HeightKm(), km[0], cm[0])
	fmt.Fprintf(&sb, "Width:  %s, %.3f km geodesic, %.3f km requested (%.1f cm)\n",
		geo.FormatCoord(m.BBox.TopRight.Longitude-m.BBox.BottomLeft.Longitude), m.BBox.WidthKm(), km[1], cm[1])
	if m.Grid != nil {
		fmt.Fprintf(&sb, "Grid: %d x %d blocks, image %d x %d px", m.Grid.Columns(), m.Grid.Rows(), m.Width, m.Height)
	} else {
		sb.WriteString("Grid: not built")
	}

	return sb.String()
}
