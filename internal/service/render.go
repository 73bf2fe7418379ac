package service

import (
	"context"
	"fmt"
	"time"

	"github.com/UnknownOlympus/chil/internal/topomap"
)

// RulersSuffix is appended to the output name of the ruler-annotated image.
const RulersSuffix = "_rulers"

// Output tells where and how the map is written.
type Output struct {
	Folder    string
	Filename  string
	Extension string
	Footprint bool // also write the GeoJSON block footprint
}

// RenderResult lists the written files and the fetch outcome.
type RenderResult struct {
	MapPath       string
	RulersPath    string
	FootprintPath string
	Report        FetchReport
}

// Render builds the grid of m, fetches its blocks, composes the map, draws the rulers and saves
// both images under out.
func (ms *MapService) Render(ctx context.Context, m *topomap.Map, out Output) (*RenderResult, error) {
	if !topomap.IsSupportedFormat(out.Extension) {
		return nil, fmt.Errorf("%w: %q", topomap.ErrUnsupportedFormat, out.Extension)
	}

	startTime := time.Now()
	defer func() {
		ms.metrics.BuildSeconds.Observe(time.Since(startTime).Seconds())
	}()

	if err := m.BuildGrid(); err != nil {
		return nil, fmt.Errorf("failed to build grid: %w", err)
	}
	ms.metrics.GridBlocks.Set(float64(m.Grid.Len()))
	ms.log.InfoContext(ctx, "Grid built", "columns", m.Grid.Columns(), "rows", m.Grid.Rows(),
		"width", m.Width, "height", m.Height)
	ms.log.DebugContext(ctx, "Map summary\n"+m.String())

	result := &RenderResult{Report: ms.FetchBlocks(ctx, m)}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("map build interrupted: %w", err)
	}

	for _, failure := range result.Report.Failures {
		ms.log.WarnContext(ctx, "Block has no image", "block", failure.Block.String(), "error", failure.Err)
	}
	if len(result.Report.Failures) > 0 && ms.bestEffort {
		ms.log.WarnContext(ctx, "Composing map with placeholder tiles", "missing", len(result.Report.Failures))
	}

	img, err := m.Compose(ms.bestEffort)
	if err != nil {
		return nil, fmt.Errorf("failed to compose map: %w", err)
	}

	if result.MapPath, err = topomap.Save(img, out.Folder, out.Filename, out.Extension); err != nil {
		return nil, err
	}
	ms.log.InfoContext(ctx, "Map saved", "path", result.MapPath)

	rulers, err := m.DrawRulers()
	if err != nil {
		return nil, fmt.Errorf("failed to draw rulers: %w", err)
	}
	if result.RulersPath, err = topomap.Save(rulers, out.Folder, out.Filename+RulersSuffix, out.Extension); err != nil {
		return nil, err
	}
	ms.log.InfoContext(ctx, "Map with rulers saved", "path", result.RulersPath)

	if out.Footprint {
		if result.FootprintPath, err = m.SaveFootprint(out.Folder, out.Filename); err != nil {
			return nil, err
		}
		ms.log.InfoContext(ctx, "Block footprint saved", "path", result.FootprintPath)
	}

	return result, nil
}
