package topomap

import (
	"fmt"
	"log/slog"

	"github.com/UnknownOlympus/chil/internal/geo"
)

// edgeTolerance absorbs floating point noise when comparing a block edge with the map edge.
const edgeTolerance = 1e-9

type stepKind int

const (
	stepFull   stepKind = iota // block of MaxTileSize pixels along the step direction
	stepLast                   // boundary block sized from its own extent
	stepMerged                 // boundary block also absorbing a sub-pixel remainder
)

// Grid holds the blocks column-major: Grid[x][y] is column x from the west, row y from the south.
type Grid [][]*Block

// Columns returns the number of columns.
func (g Grid) Columns() int {
	return len(g)
}

// Rows returns the number of rows of the first column.
func (g Grid) Rows() int {
	if len(g) == 0 {
		return 0
	}
	return len(g[0])
}

// Len returns the total number of blocks.
func (g Grid) Len() int {
	n := 0
	for _, column := range g {
		n += len(column)
	}
	return n
}

// At returns the block at (x, y) or nil when there is none.
func (g Grid) At(x, y int) *Block {
	if x < 0 || x >= len(g) || y < 0 || y >= len(g[x]) {
		return nil
	}
	return g[x][y]
}

// North returns the block above b, if any.
func (g Grid) North(b *Block) *Block {
	return g.At(b.x, b.y+1)
}

// East returns the block to the right of b, if any.
func (g Grid) East(b *Block) *Block {
	return g.At(b.x+1, b.y)
}

// Last returns the north-east block.
func (g Grid) Last() *Block {
	if len(g) == 0 || len(g[len(g)-1]) == 0 {
		return nil
	}
	column := g[len(g)-1]
	return column[len(column)-1]
}

// Blocks returns every block in column-major order.
func (g Grid) Blocks() []*Block {
	blocks := make([]*Block, 0, g.Len())
	for _, column := range g {
		blocks = append(blocks, column...)
	}
	return blocks
}

// Missing returns the blocks that have no image.
func (g Grid) Missing() []*Block {
	var missing []*Block
	for _, column := range g {
		for _, b := range column {
			if b.image == nil {
				missing = append(missing, b)
			}
		}
	}
	return missing
}

// blockSpan is the degree extent of a full block and whether the map edge clips it.
type blockSpan struct {
	lat, long               float64
	clippedLat, clippedLong bool
}

// MaxBlock returns the latitude and longitude extent, in degrees, of the bottom-left block:
// MaxTileSize pixels in each direction, reduced to the map extent when the map is smaller.
func (m *Map) MaxBlock() (float64, float64) {
	span := m.maxBlock()
	return span.lat, span.long
}

func (m *Map) maxBlock() blockSpan {
	km := pixelsToKm(MaxTileSize, m.Resolution, m.Scale)
	bottomLeft := m.BBox.BottomLeft
	topRight := m.BBox.TopRight

	top := geo.Destination(bottomLeft, 0, km).Latitude
	right := geo.Destination(bottomLeft, 90, km).Longitude

	span := blockSpan{lat: top - bottomLeft.Latitude, long: right - bottomLeft.Longitude}
	if m.isFinalLatitude(top, bottomLeft.Longitude) {
		span.lat = topRight.Latitude - bottomLeft.Latitude
		span.clippedLat = true
	}
	if m.isFinalLongitude(right, bottomLeft.Latitude) {
		span.long = topRight.Longitude - bottomLeft.Longitude
		span.clippedLong = true
	}

	return span
}

// isFinalLatitude tells whether a block ending at lat must be stretched to the northern edge.
func (m *Map) isFinalLatitude(lat, long float64) bool {
	edge := m.BBox.TopRight.Latitude
	if lat >= edge-edgeTolerance {
		return true
	}
	remainder := PixelDistance(geo.Point{Latitude: lat, Longitude: long},
		geo.Point{Latitude: edge, Longitude: long}, m.Resolution, m.Scale)
	return remainder < 1
}

// isFinalLongitude tells whether a block ending at long must be stretched to the eastern edge.
func (m *Map) isFinalLongitude(long, lat float64) bool {
	edge := m.BBox.TopRight.Longitude
	if long >= edge-edgeTolerance {
		return true
	}
	remainder := PixelDistance(geo.Point{Latitude: lat, Longitude: long},
		geo.Point{Latitude: lat, Longitude: edge}, m.Resolution, m.Scale)
	return remainder < 1
}

// BuildGrid splits the map into blocks no larger than MaxTileSize pixels, starting at the
// bottom-left corner. Boundary blocks end exactly on the map edges.
func (m *Map) BuildGrid() error {
	span := m.maxBlock()
	bottomLeft := m.BBox.BottomLeft
	topRight := m.BBox.TopRight

	originTopRight := geo.Point{
		Latitude:  bottomLeft.Latitude + span.lat,
		Longitude: bottomLeft.Longitude + span.long,
	}
	width, height := MaxTileSize, MaxTileSize
	if span.clippedLat {
		originTopRight.Latitude = topRight.Latitude
		height = min(PixelDistance(bottomLeft,
			geo.Point{Latitude: originTopRight.Latitude, Longitude: bottomLeft.Longitude},
			m.Resolution, m.Scale), MaxTileSize)
	}
	if span.clippedLong {
		originTopRight.Longitude = topRight.Longitude
		width = min(PixelDistance(bottomLeft,
			geo.Point{Latitude: bottomLeft.Latitude, Longitude: originTopRight.Longitude},
			m.Resolution, m.Scale), MaxTileSize)
	}

	origin, err := NewBlock(bottomLeft, originTopRight, m.Resolution, m.Scale, 0, 0, width, height)
	if err != nil {
		return fmt.Errorf("failed to create origin block: %w", err)
	}

	var grid Grid
	columnOrigin := origin
	for {
		column, err := m.buildColumn(columnOrigin, span.lat)
		if err != nil {
			return err
		}
		grid = append(grid, column)

		if columnOrigin.bbox.TopRight.Longitude >= topRight.Longitude {
			break
		}
		columnOrigin, err = m.nextColumnOrigin(columnOrigin, span.long)
		if err != nil {
			return err
		}
	}

	m.Grid = grid
	m.Width, m.Height = 0, 0
	for _, column := range grid {
		m.Width += column[0].width
	}
	for _, b := range grid[0] {
		m.Height += b.height
	}

	m.log.Debug("Grid built",
		slog.Int("columns", grid.Columns()),
		slog.Int("rows", grid.Rows()),
		slog.Int("width", m.Width),
		slog.Int("height", m.Height))

	return nil
}

func (m *Map) buildColumn(origin *Block, deltaLat float64) ([]*Block, error) {
	edge := m.BBox.TopRight.Latitude
	column := []*Block{origin}

	for b := origin; b.bbox.TopRight.Latitude < edge; {
		var (
			next *Block
			err  error
		)
		end := b.bbox.TopRight.Latitude + deltaLat
		switch {
		case end >= edge-edgeTolerance:
			next, err = b.deriveNorthern(edge, stepLast)
		case m.isFinalLatitude(end, b.bbox.TopRight.Longitude):
			next, err = b.deriveNorthern(edge, stepMerged)
		default:
			next, err = b.deriveNorthern(end, stepFull)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to derive northern block of %s: %w", b, err)
		}

		column = append(column, next)
		b = next
	}

	return column, nil
}

func (m *Map) nextColumnOrigin(prev *Block, deltaLong float64) (*Block, error) {
	edge := m.BBox.TopRight.Longitude
	end := prev.bbox.TopRight.Longitude + deltaLong

	var (
		next *Block
		err  error
	)
	switch {
	case end >= edge-edgeTolerance:
		next, err = prev.deriveEastern(edge, stepLast)
	case m.isFinalLongitude(end, prev.bbox.BottomLeft.Latitude):
		next, err = prev.deriveEastern(edge, stepMerged)
	default:
		next, err = prev.deriveEastern(end, stepFull)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to derive eastern block of %s: %w", prev, err)
	}

	return next, nil
}
