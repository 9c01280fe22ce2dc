// Package chart draws the hourly congestion lines and the per-sensor rate
// histogram of a comparison into one image.
package chart

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	_ "gonum.org/v1/plot/vg/vgimg"
	_ "gonum.org/v1/plot/vg/vgpdf"
	_ "gonum.org/v1/plot/vg/vgsvg"

	"github.com/couchcryptid/traffic-congestion/internal/domain"
)

// Figure dimensions.
const (
	Width  = 15 * vg.Inch
	Height = 12 * vg.Inch
)

// ErrNothingToDraw is returned when a comparison holds no dataset summary.
var ErrNothingToDraw = errors.New("no dataset summaries to chart")

// Reporter writes the comparison chart to a file whose extension selects
// the image format (png, jpg, svg, pdf, ...).
type Reporter struct {
	path   string
	bins   int
	logger *slog.Logger
}

// NewReporter creates a chart Reporter writing to path with the given
// histogram bin count.
func NewReporter(path string, bins int, logger *slog.Logger) *Reporter {
	if bins < 1 {
		bins = domain.DefaultHistogramBins
	}
	return &Reporter{path: path, bins: bins, logger: logger}
}

// Name identifies the reporter in logs and metrics.
func (r *Reporter) Name() string { return "chart" }

// Report renders c and writes it to the configured path.
func (r *Reporter) Report(ctx context.Context, c domain.Comparison) error {
	if len(c.Summaries) == 0 {
		r.logger.Warn("skipping chart", "reason", ErrNothingToDraw)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(r.path)), ".")
	if format == "" {
		format = "png"
	}

	f, err := os.Create(r.path)
	if err != nil {
		return fmt.Errorf("create chart: %w", err)
	}
	if err := Render(f, c, format, r.bins); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close chart: %w", err)
	}

	r.logger.Info("chart written", "path", r.path, "datasets", len(c.Summaries))
	return nil
}

// Render draws the hourly line plot above the rate histogram and writes the
// image in the given format to w.
func Render(w io.Writer, c domain.Comparison, format string, bins int) error {
	if len(c.Summaries) == 0 {
		return ErrNothingToDraw
	}

	hourly, err := hourlyPlot(c)
	if err != nil {
		return err
	}
	hist, err := histogramPlot(c, bins)
	if err != nil {
		return err
	}

	canvas, err := draw.NewFormattedCanvas(Width, Height, format)
	if err != nil {
		return fmt.Errorf("chart format %q: %w", format, err)
	}

	plots := [][]*plot.Plot{{hourly}, {hist}}
	tiles := draw.Tiles{
		Rows:      2,
		Cols:      1,
		PadX:      vg.Millimeter * 5,
		PadY:      vg.Millimeter * 8,
		PadTop:    vg.Millimeter * 5,
		PadBottom: vg.Millimeter * 5,
		PadLeft:   vg.Millimeter * 5,
		PadRight:  vg.Millimeter * 5,
	}
	canvases := plot.Align(plots, tiles, draw.New(canvas))
	for i := range plots {
		plots[i][0].Draw(canvases[i][0])
	}

	if _, err := canvas.WriteTo(w); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	return nil
}

func hourlyPlot(c domain.Comparison) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Hourly congestion rate"
	p.X.Label.Text = "Hour of day"
	p.Y.Label.Text = "Congestion rate"
	p.X.Min, p.X.Max = 0, domain.HoursPerDay-1
	p.Y.Min = 0
	p.Add(plotter.NewGrid())
	p.Legend.Top = true

	for i, s := range c.Summaries {
		xys := make(plotter.XYs, len(s.Hourly))
		for j, h := range s.Hourly {
			xys[j].X = float64(h.Hour)
			xys[j].Y = h.Rate
		}
		line, points, err := plotter.NewLinePoints(xys)
		if err != nil {
			return nil, fmt.Errorf("hourly line %s: %w", s.Dataset, err)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(2)
		points.GlyphStyle.Color = plotutil.Color(i)
		points.GlyphStyle.Shape = plotutil.Shape(i)
		p.Add(line, points)
		p.Legend.Add(s.Dataset, line, points)
	}
	return p, nil
}

func histogramPlot(c domain.Comparison, bins int) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Distribution of sensor congestion rates"
	p.X.Label.Text = "Congestion rate"
	p.Y.Label.Text = "Sensors"
	p.Legend.Top = true

	for i, s := range c.Summaries {
		if len(s.Sensors) == 0 {
			continue
		}
		rates := make(plotter.Values, len(s.Sensors))
		for j, sensor := range s.Sensors {
			rates[j] = sensor.Rate
		}
		h, err := plotter.NewHist(rates, bins)
		if err != nil {
			return nil, fmt.Errorf("histogram %s: %w", s.Dataset, err)
		}
		h.FillColor = translucent(plotutil.Color(i))
		h.LineStyle.Color = plotutil.Color(i)
		p.Add(h)
		p.Legend.Add(s.Dataset, h)
	}
	return p, nil
}

// translucent returns c at half opacity.
func translucent(c color.Color) color.Color {
	r, g, b, _ := c.RGBA()
	return color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 128}
}
