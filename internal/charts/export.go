package charts

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/verte-zerg/worldboard/internal/pipeline"
)

// ErrNoData is returned when there is nothing to export.
var ErrNoData = errors.New("no data to export")

const maxYearTicks = 12

// ExportTrendPNG renders the trend chart as a PNG image. Missing values are
// skipped, so the line joins the neighbouring years. When every value falls
// in a single year there is no x range to draw lines over, and the values
// are drawn as bars for that year instead.
func ExportTrendPNG(w io.Writer, c pipeline.Charts, width, height int) error {
	if c.Empty() {
		return ErrNoData
	}
	series := make([]chart.Series, 0, len(c.Trend))
	points := make([]chart.Value, 0, len(c.Trend))
	years := make(map[int]struct{})
	maxVal := 0.0
	for _, s := range c.Trend {
		xs := make([]float64, 0, len(s.Values))
		ys := make([]float64, 0, len(s.Values))
		for i, v := range s.Values {
			if math.IsNaN(v) {
				continue
			}
			xs = append(xs, float64(s.Years[i]))
			ys = append(ys, v)
			years[s.Years[i]] = struct{}{}
			maxVal = math.Max(maxVal, v)
		}
		if len(xs) == 0 {
			continue
		}
		col := hexColor(s.Color)
		series = append(series, chart.ContinuousSeries{
			Name:    s.Label,
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: col,
				StrokeWidth: 3,
				DotColor:    col,
				DotWidth:    3,
			},
		})
		points = append(points, bar(s.Label, ys[0], col))
	}
	if len(series) == 0 {
		return ErrNoData
	}
	if len(years) == 1 {
		var year int
		for y := range years {
			year = y
		}
		title := fmt.Sprintf("Completion Rate Trends (%d)", year)
		if err := renderBars(w, title, points, maxVal, width, height); err != nil {
			return fmt.Errorf("failed to render trend chart: %w", err)
		}
		return nil
	}
	if maxVal == 0 {
		maxVal = 1
	}

	ch := chart.Chart{
		Title:      "Completion Rate Trends",
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:  "Year",
			Range: &chart.ContinuousRange{Min: float64(c.Years[0]), Max: float64(c.Years[len(c.Years)-1])},
			Ticks: yearTicks(c.Years),
		},
		YAxis: chart.YAxis{
			Name:  "Primary completion rate",
			Range: &chart.ContinuousRange{Min: 0, Max: maxVal * 1.05},
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("failed to render trend chart: %w", err)
	}
	return nil
}

// ExportComparisonPNG renders the per-country averages as a PNG bar chart.
func ExportComparisonPNG(w io.Writer, c pipeline.Charts, width, height int) error {
	if len(c.Averages) == 0 {
		return ErrNoData
	}
	bars := make([]chart.Value, 0, len(c.Averages))
	maxVal := 0.0
	for _, a := range c.Averages {
		bars = append(bars, bar(a.Label, a.Value, hexColor(a.Color)))
		maxVal = math.Max(maxVal, a.Value)
	}
	if err := renderBars(w, "Average Primary Completion Rate", bars, maxVal, width, height); err != nil {
		return fmt.Errorf("failed to render comparison chart: %w", err)
	}
	return nil
}

func bar(label string, value float64, col drawing.Color) chart.Value {
	return chart.Value{
		Label: label,
		Value: value,
		Style: chart.Style{
			FillColor:   col.WithAlpha(200),
			StrokeColor: col,
			StrokeWidth: 2,
		},
	}
}

func renderBars(w io.Writer, title string, bars []chart.Value, maxVal float64, width, height int) error {
	if maxVal == 0 {
		maxVal = 1
	}
	barWidth := (width - 120) / (2 * len(bars))
	if barWidth < minBarWidth {
		barWidth = minBarWidth
	}
	bc := chart.BarChart{
		Title:      title,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		BarWidth:   barWidth,
		BarSpacing: barWidth,
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: maxVal * 1.05},
		},
		Bars: bars,
	}
	return bc.Render(chart.PNG, w)
}

func yearTicks(years []int) []chart.Tick {
	step := 1
	if len(years) > maxYearTicks {
		step = (len(years) + maxYearTicks - 1) / maxYearTicks
	}
	ticks := make([]chart.Tick, 0, len(years)/step+1)
	for i := 0; i < len(years); i += step {
		ticks = append(ticks, chart.Tick{Value: float64(years[i]), Label: strconv.Itoa(years[i])})
	}
	return ticks
}

func hexColor(hex string) drawing.Color {
	return drawing.ColorFromHex(strings.TrimPrefix(hex, "#"))
}
