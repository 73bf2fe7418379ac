package topomap

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/draw"
)

// placeholderColor fills blocks without an image when composing in best-effort mode.
var placeholderColor = color.RGBA{R: 0xe0, G: 0xe0, B: 0xe0, A: 0xff}

// CheckConsistency verifies that every column has the same number of blocks and that the
// north-east block ends exactly on the requested top-right corner.
func (m *Map) CheckConsistency() error {
	if len(m.Grid) == 0 {
		return &MapError{Reason: "grid is empty"}
	}

	rows := len(m.Grid[0])
	for x, column := range m.Grid {
		if len(column) != rows {
			return &MapError{Reason: fmt.Sprintf("column %d has %d blocks, column 0 has %d", x, len(column), rows)}
		}
	}

	last := m.Grid.Last()
	if last.bbox.TopRight != m.BBox.TopRight {
		return &MapError{Reason: fmt.Sprintf("last block ends at %s, requested %s",
			last.bbox.TopRight, m.BBox.TopRight)}
	}

	return nil
}

// Compose pastes every block image into a single map image, west to east and north to south.
// Without bestEffort a block lacking its image fails the composition; with it the block is
// painted with a neutral placeholder.
func (m *Map) Compose(bestEffort bool) (image.Image, error) {
	if err := m.CheckConsistency(); err != nil {
		return nil, err
	}

	if missing := m.Grid.Missing(); len(missing) > 0 && !bestEffort {
		names := make([]string, len(missing))
		for i, b := range missing {
			names[i] = b.String()
		}
		return nil, fmt.Errorf("%w: %d of %d blocks: %s",
			ErrMissingTiles, len(missing), m.Grid.Len(), strings.Join(names, "; "))
	}

	canvas := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
	placeholder := image.NewUniform(placeholderColor)

	left := 0
	for _, column := range m.Grid {
		top := 0
		for y := len(column) - 1; y >= 0; y-- {
			b := column[y]
			rect := image.Rect(left, top, left+b.width, top+b.height)
			if b.image != nil {
				draw.Draw(canvas, rect, b.image, b.image.Bounds().Min, draw.Src)
			} else {
				draw.Draw(canvas, rect, placeholder, image.Point{}, draw.Src)
			}
			top += b.height
		}
		left += column[0].width
	}

	m.Image = canvas
	return canvas, nil
}
