// Package charts renders pipeline output as terminal text and PNG images.
package charts

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/verte-zerg/worldboard/internal/pipeline"
)

type lineStyle struct {
	name   string
	period int
	on     int
}

const (
	defaultPlotHeight   = 10
	minPlotWidth        = 10
	axisLabelWidth      = 6
	axisSeparator       = " │ "
	terminalWidthBackup = 80
)

var lineStyles = []lineStyle{
	{name: "solid", period: 1, on: 1},
	{name: "dashed", period: 6, on: 3},
	{name: "dotted", period: 4, on: 1},
	{name: "dashdot", period: 8, on: 3},
}

// RenderTrend draws one braille line per series on a shared value scale, with
// points placed by year on the shared axis. A missing value breaks the line.
func RenderTrend(w io.Writer, title string, c pipeline.Charts, width, height int, useColor bool) error {
	if c.Empty() {
		return nil
	}
	if height <= 0 {
		height = defaultPlotHeight
	}
	if width <= 0 {
		width = autoPlotWidth()
	}
	if width < minPlotWidth {
		width = minPlotWidth
	}

	minYear := c.Years[0]
	maxYear := c.Years[len(c.Years)-1]
	minVal, maxVal := valueRange(c.Trend)

	dotsW := width * 2
	dotsH := height * 4
	seriesCells := make([][][]uint8, 0, len(c.Trend))
	for si, s := range c.Trend {
		cells := makeCells(height, width)
		style := lineStyles[si%len(lineStyles)]
		prevX, prevY := -1, -1
		for i, v := range s.Values {
			if math.IsNaN(v) {
				prevX, prevY = -1, -1
				continue
			}
			px := yearToColumn(s.Years[i], minYear, maxYear, dotsW)
			py := valueToRow(v, minVal, maxVal, dotsH)
			if prevX >= 0 {
				drawLine(prevX, prevY, px, py, func(dx, dy int) {
					if style.shouldPlot(dx) {
						setBrailleDot(cells, dx, dy)
					}
				})
			} else {
				setBrailleDot(cells, px, py)
			}
			prevX, prevY = px, py
		}
		seriesCells = append(seriesCells, cells)
	}

	if title != "" {
		if _, err := fmt.Fprintln(w, title); err != nil {
			return err
		}
	}
	axisLabels := makeAxisLabels(height, minVal, maxVal)
	for y := 0; y < height; y++ {
		var row strings.Builder
		row.WriteString(fmt.Sprintf("%*s%s", axisLabelWidth, axisLabels[y], axisSeparator))
		for x := 0; x < width; x++ {
			mask, seriesIdx := composeCell(seriesCells, x, y)
			ch := string(brailleFromMask(mask))
			if useColor && seriesIdx >= 0 {
				ch = colorize(c.Trend[seriesIdx].Color, ch)
			}
			row.WriteString(ch)
		}
		if _, err := fmt.Fprintln(w, row.String()); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, yearAxisLine(minYear, maxYear, width)); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, renderLegend(c.Trend, useColor)); err != nil {
		return err
	}
	return nil
}

// PlotWidthFor computes a plot width that fits within the total available width.
func PlotWidthFor(totalWidth int) int {
	if totalWidth <= 0 {
		return minPlotWidth
	}
	plotWidth := totalWidth - axisLabelWidth - runewidth.StringWidth(axisSeparator)
	if plotWidth < minPlotWidth {
		plotWidth = minPlotWidth
	}
	return plotWidth
}

func autoPlotWidth() int {
	return PlotWidthFor(TerminalWidth())
}

// TerminalWidth returns the stdout width, or 80 when stdout is not a terminal.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

// ShouldUseColor reports whether w is a terminal that accepts color.
func ShouldUseColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

func colorize(hex, s string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(hex)).Render(s)
}

func valueRange(series []pipeline.TrendSeries) (float64, float64) {
	minVal := math.Inf(1)
	maxVal := math.Inf(-1)
	for _, s := range series {
		for _, v := range s.Values {
			if math.IsNaN(v) {
				continue
			}
			minVal = math.Min(minVal, v)
			maxVal = math.Max(maxVal, v)
		}
	}
	if math.IsInf(minVal, 1) {
		return 0, 1
	}
	if minVal > 0 {
		minVal = 0
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		maxVal = minVal + 1
	}
	return minVal, maxVal
}

func makeAxisLabels(height int, minVal, maxVal float64) []string {
	labels := make([]string, height)
	if height <= 0 {
		return labels
	}
	labels[0] = formatAxisValue(maxVal)
	if height > 2 {
		labels[height/2] = formatAxisValue((minVal + maxVal) / 2)
	}
	if height > 1 {
		labels[height-1] = formatAxisValue(minVal)
	}
	return labels
}

func formatAxisValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func yearAxisLine(minYear, maxYear, width int) string {
	left := strconv.Itoa(minYear)
	right := strconv.Itoa(maxYear)
	prefix := strings.Repeat(" ", axisLabelWidth+runewidth.StringWidth(axisSeparator))
	if minYear == maxYear {
		return prefix + left
	}
	gap := width - len(left) - len(right)
	if gap < 1 {
		gap = 1
	}
	return prefix + left + strings.Repeat(" ", gap) + right
}

func yearToColumn(year, minYear, maxYear, dots int) int {
	if maxYear == minYear || dots <= 1 {
		return 0
	}
	pos := float64(year-minYear) / float64(maxYear-minYear)
	return int(math.Round(pos * float64(dots-1)))
}

func makeCells(height, width int) [][]uint8 {
	cells := make([][]uint8, height)
	for y := 0; y < height; y++ {
		cells[y] = make([]uint8, width)
	}
	return cells
}

func composeCell(seriesCells [][][]uint8, x, y int) (uint8, int) {
	var mask uint8
	seriesIdx := -1
	for i, cells := range seriesCells {
		if y < 0 || y >= len(cells) {
			continue
		}
		if x < 0 || x >= len(cells[y]) {
			continue
		}
		cellMask := cells[y][x]
		if cellMask == 0 {
			continue
		}
		if seriesIdx == -1 {
			seriesIdx = i
		}
		mask |= cellMask
	}
	return mask, seriesIdx
}

func (ls lineStyle) shouldPlot(x int) bool {
	if ls.period <= 1 {
		return true
	}
	if x < 0 {
		x = -x
	}
	return x%ls.period < ls.on
}

func valueToRow(v, minVal, maxVal float64, height int) int {
	if height <= 1 {
		return 0
	}
	pos := (v - minVal) / (maxVal - minVal)
	row := int(math.Round((1 - pos) * float64(height-1)))
	if row < 0 {
		row = 0
	}
	if row >= height {
		row = height - 1
	}
	return row
}

func renderLegend(series []pipeline.TrendSeries, useColor bool) string {
	parts := make([]string, 0, len(series))
	marker := brailleFromMask(0x01)
	for i, s := range series {
		styleName := lineStyles[i%len(lineStyles)].name
		label := fmt.Sprintf("%c %s (%s)", marker, s.Label, styleName)
		if len(s.Values) == 0 {
			label += " no data"
		}
		if useColor {
			label = colorize(s.Color, label)
		}
		parts = append(parts, label)
	}
	return "Legend: " + strings.Join(parts, "  ")
}

func drawLine(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx := int(math.Abs(float64(x1 - x0)))
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -int(math.Abs(float64(y1 - y0)))
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			if x0 == x1 {
				break
			}
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			if y0 == y1 {
				break
			}
			err += dx
			y0 += sy
		}
	}
}

func setBrailleDot(cells [][]uint8, x, y int) {
	if y < 0 || x < 0 {
		return
	}
	cellY := y / 4
	cellX := x / 2
	if cellY >= len(cells) || cellX >= len(cells[cellY]) {
		return
	}
	cells[cellY][cellX] |= brailleDotMask(x%2, y%4)
}

func brailleDotMask(x, y int) uint8 {
	switch {
	case x == 0 && y == 0:
		return 0x01
	case x == 0 && y == 1:
		return 0x02
	case x == 0 && y == 2:
		return 0x04
	case x == 0 && y == 3:
		return 0x40
	case x == 1 && y == 0:
		return 0x08
	case x == 1 && y == 1:
		return 0x10
	case x == 1 && y == 2:
		return 0x20
	case x == 1 && y == 3:
		return 0x80
	default:
		return 0
	}
}

func brailleFromMask(mask uint8) rune {
	return rune(0x2800 + int(mask))
}
