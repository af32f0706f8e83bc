// Package render turns a finalized run into the trace figure, an interactive
// chart and a printed summary.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/motion.trace/internal/fsutil"
	"github.com/banshee-data/motion.trace/internal/tracestore"
)

const (
	figureWidth  = 14 * vg.Inch
	figureHeight = 6 * vg.Inch
)

var (
	colorTrace = color.RGBA{R: 230, G: 30, B: 30, A: 255}
	colorX     = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	colorY     = color.RGBA{R: 255, G: 127, B: 14, A: 255}
)

// flippedTicks labels a y axis in image rows, which grow downwards, while the
// plot itself keeps y growing upwards.
type flippedTicks struct{ height float64 }

func (f flippedTicks) Ticks(min, max float64) []plot.Tick {
	ticks := plot.DefaultTicks{}.Ticks(min, max)
	for i := range ticks {
		if ticks[i].Label != "" {
			ticks[i].Label = strconv.FormatFloat(f.height-ticks[i].Value, 'f', -1, 64)
		}
	}
	return ticks
}

// Figure draws the two-panel trace figure as PNG: the last frame with every
// recorded pixel position, and x [mm] and y [mm] against time [s].
// lastFrame may be nil when the video is no longer readable.
func Figure(w io.Writer, data tracestore.RunData, lastFrame image.Image) error {
	left, err := framePanel(data, lastFrame)
	if err != nil {
		return err
	}
	right, err := seriesPanel(data)
	if err != nil {
		return err
	}

	img := vgimg.New(figureWidth, figureHeight)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      1,
		Cols:      2,
		PadX:      vg.Millimeter * 8,
		PadTop:    vg.Millimeter * 4,
		PadBottom: vg.Millimeter * 4,
		PadLeft:   vg.Millimeter * 4,
		PadRight:  vg.Millimeter * 4,
	}
	canvases := plot.Align([][]*plot.Plot{{left, right}}, tiles, dc)
	left.Draw(canvases[0][0])
	right.Draw(canvases[0][1])

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
		return fmt.Errorf("encode figure: %w", err)
	}
	return nil
}

func framePanel(data tracestore.RunData, lastFrame image.Image) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = data.Key
	p.X.Label.Text = "x [pixels]"
	p.Y.Label.Text = "y [pixels]"

	height := 0.0
	if lastFrame != nil {
		b := lastFrame.Bounds()
		height = float64(b.Dy())
		p.Add(plotter.NewImage(lastFrame, 0, 0, float64(b.Dx()), height))
		p.X.Min, p.X.Max = 0, float64(b.Dx())
		p.Y.Min, p.Y.Max = 0, height
	} else {
		for _, r := range data.Records {
			if float64(r.YPixel) > height {
				height = float64(r.YPixel)
			}
		}
	}
	p.Y.Tick.Marker = flippedTicks{height: height}

	if len(data.Records) == 0 {
		return p, nil
	}
	pts := make(plotter.XYs, len(data.Records))
	for i, r := range data.Records {
		pts[i] = plotter.XY{X: float64(r.XPixel), Y: height - float64(r.YPixel)}
	}
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, fmt.Errorf("trace overlay: %w", err)
	}
	s.GlyphStyle.Color = colorTrace
	s.GlyphStyle.Radius = vg.Points(1.5)
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	p.Add(s)
	return p, nil
}

func seriesPanel(data tracestore.RunData) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Position"
	p.X.Label.Text = "time [s]"
	p.Y.Label.Text = "position [mm]"
	p.Add(plotter.NewGrid())
	p.Legend.Top = true

	if len(data.Records) == 0 {
		return p, nil
	}
	xs := make(plotter.XYs, len(data.Records))
	ys := make(plotter.XYs, len(data.Records))
	for i, r := range data.Records {
		xs[i] = plotter.XY{X: r.TimeS, Y: r.XMM}
		ys[i] = plotter.XY{X: r.TimeS, Y: r.YMM}
	}
	for _, series := range []struct {
		name string
		pts  plotter.XYs
		c    color.Color
	}{
		{"x [mm]", xs, colorX},
		{"y [mm]", ys, colorY},
	} {
		line, points, err := plotter.NewLinePoints(series.pts)
		if err != nil {
			return nil, fmt.Errorf("%s series: %w", series.name, err)
		}
		line.Color = series.c
		line.Width = vg.Points(1)
		points.GlyphStyle.Color = series.c
		points.GlyphStyle.Radius = vg.Points(1.5)
		p.Add(line, points)
		p.Legend.Add(series.name, line, points)
	}
	return p, nil
}

// WriteArtifacts renders the figure and the interactive chart into the run
// directory.
func WriteArtifacts(fs fsutil.FileSystem, data tracestore.RunData, lastFrame image.Image) error {
	var png bytes.Buffer
	if err := Figure(&png, data, lastFrame); err != nil {
		return err
	}
	if err := fs.WriteFile(data.PNGPath(), png.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", data.PNGPath(), err)
	}

	var html bytes.Buffer
	if err := HTML(&html, data); err != nil {
		return err
	}
	if err := fs.WriteFile(data.HTMLPath(), html.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", data.HTMLPath(), err)
	}
	return nil
}
