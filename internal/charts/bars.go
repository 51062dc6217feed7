package charts

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/worldboard/internal/pipeline"
)

const (
	barRune        = "█"
	barValueWidth  = 7
	minBarWidth    = 4
	comparisonNote = "Average over the selected years; missing values count as zero."
)

// RenderComparison draws one horizontal bar per selected country, scaled to the largest average.
func RenderComparison(w io.Writer, title string, c pipeline.Charts, width int, useColor bool) error {
	if len(c.Averages) == 0 {
		return nil
	}
	if width <= 0 {
		width = TerminalWidth()
	}
	labelWidth := 0
	maxVal := 0.0
	for _, a := range c.Averages {
		labelWidth = maxInt(labelWidth, runewidth.StringWidth(a.Label))
		maxVal = math.Max(maxVal, a.Value)
	}
	barWidth := width - labelWidth - barValueWidth - 3
	if barWidth < minBarWidth {
		barWidth = minBarWidth
	}

	if title != "" {
		if _, err := fmt.Fprintln(w, title); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, comparisonNote); err != nil {
		return err
	}
	for _, a := range c.Averages {
		n := 0
		if maxVal > 0 {
			n = int(math.Round(a.Value / maxVal * float64(barWidth)))
		}
		bar := strings.Repeat(barRune, n)
		if useColor && bar != "" {
			bar = colorize(a.Color, bar)
		}
		line := fmt.Sprintf("%s │ %s%s %*.1f",
			padCell(a.Label, labelWidth, false),
			bar,
			strings.Repeat(" ", barWidth-n),
			barValueWidth-1, a.Value)
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
