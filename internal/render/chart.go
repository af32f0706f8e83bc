package render

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/motion.trace/internal/tracestore"
)

// HTML renders an interactive page with the position series over time and
// the recorded pixel positions.
func HTML(w io.Writer, data tracestore.RunData) error {
	xs := make([]opts.LineData, 0, len(data.Records))
	ys := make([]opts.LineData, 0, len(data.Records))
	pix := make([]opts.ScatterData, 0, len(data.Records))
	for _, r := range data.Records {
		xs = append(xs, opts.LineData{Value: []interface{}{r.TimeS, r.XMM}})
		ys = append(ys, opts.LineData{Value: []interface{}{r.TimeS, r.YMM}})
		pix = append(pix, opts.ScatterData{Value: []interface{}{r.XPixel, r.YPixel, r.TimeS}})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: data.Key, Width: "1200px", Height: "520px"}),
		charts.WithTitleOpts(opts.Title{Title: data.Key, Subtitle: fmt.Sprintf("records=%d x start=%d", len(data.Records), data.Sidecar.XStart)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}, opts.DataZoom{Type: "slider"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "time [s]", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "position [mm]", NameLocation: "middle", NameGap: 40}),
	)
	line.AddSeries("x [mm]", xs, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}))
	line.AddSeries("y [mm]", ys, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}))

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "520px"}),
		charts.WithTitleOpts(opts.Title{Title: "Pixel positions"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "x [pixels]", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "y [pixels]", NameLocation: "middle", NameGap: 40}),
	)
	scatter.AddSeries("position", pix, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))

	page := components.NewPage()
	page.PageTitle = data.Key
	page.AddCharts(line, scatter)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
