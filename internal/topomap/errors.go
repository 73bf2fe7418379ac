package topomap

import (
	"errors"
	"fmt"

	"github.com/UnknownOlympus/chil/internal/geo"
)

// Common errors of map assembly.
var (
	ErrTileDecode          = errors.New("tile body is not a decodable image")
	ErrMissingTiles        = errors.New("map has blocks without an image")
	ErrNoImage             = errors.New("map image has not been composed")
	ErrUnsupportedFormat   = errors.New("unsupported output format")
	ErrInvalidMapParameter = errors.New("invalid map parameter")
)

// BlockError reports a block whose pixel size exceeds the service limit or whose corners are
// inconsistently ordered.
type BlockError struct {
	X, Y   int             // X and Y are the grid coordinates of the offending block.
	BBox   geo.BoundingBox // BBox is the requested extent of the block.
	Reason string          // Reason describes the violated constraint.
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("block (%d %d) %s -> %s: %s",
		e.X, e.Y, geo.FormatPoint(e.BBox.BottomLeft), geo.FormatPoint(e.BBox.TopRight), e.Reason)
}

// MapError reports an inconsistent grid. It always points at a defect of the grid builder.
type MapError struct {
	Reason string
}

func (e *MapError) Error() string {
	return "map is not well built: " + e.Reason
}
