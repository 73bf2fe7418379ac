package topomap

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math"

	// tile decoders
	_ "image/jpeg"
	_ "image/png"

	"github.com/UnknownOlympus/chil/internal/geo"
	"github.com/UnknownOlympus/chil/internal/wms"
)

// MaxTileSize is the largest width or height, in pixels, the map service renders in one request.
const MaxTileSize = 2048

const (
	cmPerKm    = 100000
	cmPerInch  = 2.54
	mmPerInch  = 25.4
	rulerMm    = 0.5
	rulerTicks = 10
)

// TileFetcher retrieves the raw image body of a GetMap request.
type TileFetcher interface {
	GetMap(ctx context.Context, req wms.GetMapRequest) ([]byte, error)
}

// Block is a rectangular part of the map fetched from the service as a single image.
type Block struct {
	bbox       geo.BoundingBox
	resolution int // pixels per inch
	scale      int // map scale denominator
	width      int
	height     int
	x, y       int // grid column and row, row 0 is the southern edge
	image      image.Image
}

// NewBlock validates the corners and pixel size and returns the block at grid position (x, y).
func NewBlock(bottomLeft, topRight geo.Point, resolution, scale, x, y, width, height int) (*Block, error) {
	bbox := geo.BoundingBox{BottomLeft: bottomLeft, TopRight: topRight}

	if _, err := geo.NewBoundingBox(bottomLeft, topRight); err != nil {
		return nil, &BlockError{X: x, Y: y, BBox: bbox, Reason: "invalid values for BBOX"}
	}

	block := &Block{bbox: bbox, resolution: resolution, scale: scale, x: x, y: y}
	if err := block.SetWidth(width); err != nil {
		return nil, err
	}
	if err := block.SetHeight(height); err != nil {
		return nil, err
	}

	return block, nil
}

// PixelDistance converts the geodesic distance between two points into pixels at the given
// scale and resolution.
func PixelDistance(p1, p2 geo.Point, resolution, scale int) int {
	km := geo.DistanceKm(p1, p2)
	inchesOnMap := km * cmPerKm / float64(scale) / cmPerInch

	return int(math.Floor(float64(resolution) * inchesOnMap))
}

// pixelsToKm is the ground distance covered by the given number of pixels.
func pixelsToKm(pixels, resolution, scale int) float64 {
	inches := float64(pixels) / float64(resolution)
	return inches * cmPerInch * float64(scale) / cmPerKm
}

// MaxPixelDimension is the length in pixels of the segment between two points on this block's map.
func (b *Block) MaxPixelDimension(p1, p2 geo.Point) int {
	return PixelDistance(p1, p2, b.resolution, b.scale)
}

// SetWidth changes the pixel width. It fails when the width is outside [1, MaxTileSize].
func (b *Block) SetWidth(width int) error {
	if width < 1 || width > MaxTileSize {
		return &BlockError{
			X: b.x, Y: b.y, BBox: b.bbox,
			Reason: fmt.Sprintf("image size out of range: WIDTH is %d but must be between 1 and %d pixels",
				width, MaxTileSize),
		}
	}
	b.width = width
	return nil
}

// SetHeight changes the pixel height. It fails when the height is outside [1, MaxTileSize].
func (b *Block) SetHeight(height int) error {
	if height < 1 || height > MaxTileSize {
		return &BlockError{
			X: b.x, Y: b.y, BBox: b.bbox,
			Reason: fmt.Sprintf("image size out of range: HEIGHT is %d but must be between 1 and %d pixels",
				height, MaxTileSize),
		}
	}
	b.height = height
	return nil
}

// DeriveNorthern builds the block sitting on top of b and spanning deltaLat degrees of latitude.
// It inherits b's width; when last is set it is a boundary block and its height is recomputed
// from its own extent.
func (b *Block) DeriveNorthern(deltaLat float64, last bool) (*Block, error) {
	kind := stepFull
	if last {
		kind = stepLast
	}
	return b.deriveNorthern(b.bbox.TopRight.Latitude+deltaLat, kind)
}

// DeriveEastern builds the block to the right of b spanning deltaLong degrees of longitude.
// It inherits b's height; when last is set its width is recomputed from its own extent.
func (b *Block) DeriveEastern(deltaLong float64, last bool) (*Block, error) {
	kind := stepFull
	if last {
		kind = stepLast
	}
	return b.deriveEastern(b.bbox.TopRight.Longitude+deltaLong, kind)
}

func (b *Block) deriveNorthern(top float64, kind stepKind) (*Block, error) {
	bottomLeft := geo.Point{Latitude: b.bbox.TopRight.Latitude, Longitude: b.bbox.BottomLeft.Longitude}
	topRight := geo.Point{Latitude: top, Longitude: b.bbox.TopRight.Longitude}

	next, err := NewBlock(bottomLeft, topRight, b.resolution, b.scale, b.x, b.y+1, b.width, MaxTileSize)
	if err != nil {
		return nil, err
	}
	if kind == stepFull {
		return next, nil
	}

	height := next.MaxPixelDimension(next.bbox.BottomRight(), next.bbox.TopRight)
	if kind == stepMerged {
		height = min(height, MaxTileSize)
	}
	if err = next.SetHeight(height); err != nil {
		return nil, err
	}

	return next, nil
}

func (b *Block) deriveEastern(right float64, kind stepKind) (*Block, error) {
	bottomLeft := geo.Point{Latitude: b.bbox.BottomLeft.Latitude, Longitude: b.bbox.TopRight.Longitude}
	topRight := geo.Point{Latitude: b.bbox.TopRight.Latitude, Longitude: right}

	next, err := NewBlock(bottomLeft, topRight, b.resolution, b.scale, b.x+1, b.y, MaxTileSize, b.height)
	if err != nil {
		return nil, err
	}
	if kind == stepFull {
		return next, nil
	}

	width := next.MaxPixelDimension(next.bbox.BottomLeft, next.bbox.BottomRight())
	if kind == stepMerged {
		width = min(width, MaxTileSize)
	}
	if err = next.SetWidth(width); err != nil {
		return nil, err
	}

	return next, nil
}

// Request returns the GetMap request for this block.
func (b *Block) Request() wms.GetMapRequest {
	return wms.GetMapRequest{BBox: b.bbox, Width: b.width, Height: b.height}
}

// Fetch retrieves the block image through fetcher and decodes it. On failure the image stays unset.
func (b *Block) Fetch(ctx context.Context, fetcher TileFetcher) error {
	body, err := fetcher.GetMap(ctx, b.Request())
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", b, err)
	}

	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTileDecode, b, err)
	}

	b.image = img
	return nil
}

// BBox returns the geographic extent of the block.
func (b *Block) BBox() geo.BoundingBox { return b.bbox }

// Width returns the width in pixels.
func (b *Block) Width() int { return b.width }

// Height returns the height in pixels.
func (b *Block) Height() int { return b.height }

// X returns the grid column.
func (b *Block) X() int { return b.x }

// Y returns the grid row.
func (b *Block) Y() int { return b.y }

// Image returns the fetched image, nil until a successful Fetch.
func (b *Block) Image() image.Image { return b.image }

func (b *Block) String() string {
	return fmt.Sprintf("Block (%d %d), %dx%d: %s -> %s", b.x, b.y, b.height, b.width,
		geo.FormatPoint(b.bbox.BottomLeft), geo.FormatPoint(b.bbox.TopRight))
}
