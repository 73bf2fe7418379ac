package topomap

import (
	"fmt"
	"path/filepath"

	"github.com/paulmach/orb/geojson"
)

// FootprintSuffix is appended to the output name of the block footprint file.
const FootprintSuffix = "_blocks"

// Footprint describes the map as GeoJSON: one polygon for the whole box followed by one polygon
// per block carrying its grid position and pixel size.
func (m *Map) Footprint() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	whole := geojson.NewFeature(m.BBox.Bound().ToPolygon())
	whole.Properties["kind"] = "map"
	whole.Properties["scale"] = m.Scale
	whole.Properties["resolution"] = m.Resolution
	whole.Properties["width"] = m.Width
	whole.Properties["height"] = m.Height
	fc.Append(whole)

	for _, b := range m.Grid.Blocks() {
		f := geojson.NewFeature(b.bbox.Bound().ToPolygon())
		f.Properties["kind"] = "block"
		f.Properties["x"] = b.x
		f.Properties["y"] = b.y
		f.Properties["width"] = b.width
		f.Properties["height"] = b.height
		f.Properties["fetched"] = b.image != nil
		fc.Append(f)
	}

	return fc
}

// SaveFootprint writes the footprint as folder/name_blocks.geojson and returns the path.
func (m *Map) SaveFootprint(folder, name string) (string, error) {
	data, err := m.Footprint().MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("failed to marshal footprint: %w", err)
	}

	path := filepath.Join(folder, name+FootprintSuffix+".geojson")
	file, err := createFile(path)
	if err != nil {
		return "", err
	}
	if _, err = file.Write(data); err != nil {
		_ = file.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err = file.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}

	return path, nil
}
