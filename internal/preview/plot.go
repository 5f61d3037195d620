package preview

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/hexslice/internal/domain"
)

var ErrNoLayers = errors.New("program has no extruding layers")

var (
	extrudeColor = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	travelColor  = color.RGBA{R: 0xaa, G: 0xaa, B: 0xaa, A: 0xff}
)

// PlotLayer writes a PNG (or any format gonum/plot infers from the
// extension) of the XY moves of the given zero-based layer. Extrusions are
// solid, travels dashed.
func PlotLayer(g domain.GCode, index int, path string) error {
	layers := trace(g)
	if len(layers) == 0 {
		return ErrNoLayers
	}
	if index < 0 || index >= len(layers) {
		return fmt.Errorf("layer %d out of range: program has %d layers", index, len(layers))
	}
	l := layers[index]

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Layer %d (Z %.2f mm)", index+1, l.stats.Z)
	p.X.Label.Text = "X (mm)"
	p.Y.Label.Text = "Y (mm)"
	p.Add(plotter.NewGrid())

	var legendPrinted, legendTravel bool
	for _, run := range runs(l.segs) {
		line, err := plotter.NewLine(run.pts)
		if err != nil {
			return fmt.Errorf("build layer line: %w", err)
		}
		line.Width = vg.Points(1)
		if run.extruding {
			line.Color = extrudeColor
			if !legendPrinted {
				p.Legend.Add("extrusion", line)
				legendPrinted = true
			}
		} else {
			line.Color = travelColor
			line.Dashes = []vg.Length{vg.Points(3), vg.Points(3)}
			if !legendTravel {
				p.Legend.Add("travel", line)
				legendTravel = true
			}
		}
		p.Add(line)
	}
	p.Legend.Top = true
	p.Legend.Left = false

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
	}
	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save layer plot: %w", err)
	}
	return nil
}

type polyline struct {
	pts       plotter.XYs
	extruding bool
}

// runs joins consecutive connected segments of the same kind.
func runs(segs []segment) []polyline {
	var out []polyline
	for _, s := range segs {
		if n := len(out); n > 0 {
			last := &out[n-1]
			end := last.pts[len(last.pts)-1]
			if last.extruding == s.extruding && end.X == s.x0 && end.Y == s.y0 {
				last.pts = append(last.pts, plotter.XY{X: s.x1, Y: s.y1})
				continue
			}
		}
		out = append(out, polyline{
			pts:       plotter.XYs{{X: s.x0, Y: s.y0}, {X: s.x1, Y: s.y1}},
			extruding: s.extruding,
		})
	}
	return out
}
