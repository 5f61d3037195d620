package preview

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// WriteLayerChart renders an HTML bar chart of extrusion and travel per
// layer, with the move count overlaid as a line.
func WriteLayerChart(w io.Writer, name string, stats []LayerStats) error {
	if len(stats) == 0 {
		return ErrNoLayers
	}

	x := make([]string, len(stats))
	extrusion := make([]opts.BarData, len(stats))
	travel := make([]opts.BarData, len(stats))
	moves := make([]opts.LineData, len(stats))
	for i, s := range stats {
		x[i] = fmt.Sprintf("%d (Z%.2f)", s.Index+1, s.Z)
		extrusion[i] = opts.BarData{Value: round2(s.Extrusion)}
		travel[i] = opts.BarData{Value: round2(s.Travel)}
		moves[i] = opts.LineData{Value: s.Moves}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "hexslice: " + name, Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: name, Subtitle: fmt.Sprintf("layers=%d", len(stats))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Layer", NameLocation: "middle", NameGap: 30}),
		charts.WithYAxisOpts(opts.YAxis{Name: "mm"}),
	)
	bar.SetXAxis(x).
		AddSeries("extrusion (mm filament)", extrusion).
		AddSeries("travel (mm)", travel)

	line := charts.NewLine()
	line.SetXAxis(x).AddSeries("moves", moves)
	bar.Overlap(line)

	if err := bar.Render(w); err != nil {
		return fmt.Errorf("render layer chart: %w", err)
	}
	return nil
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
