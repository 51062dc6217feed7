package charts

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/worldboard/internal/pipeline"
)

// RenderAverageTable prints per-country row counts and averages.
func RenderAverageTable(w io.Writer, c pipeline.Charts) error {
	if len(c.Averages) == 0 {
		_, err := fmt.Fprintln(w, "No countries selected.")
		return err
	}
	headers := []string{"Country", "Rows", "Missing", "Average"}
	rows := make([][]string, 0, len(c.Averages))
	for _, a := range c.Averages {
		rows = append(rows, []string{
			a.Label,
			fmt.Sprintf("%d", a.Rows),
			fmt.Sprintf("%d", a.Missing),
			fmt.Sprintf("%.2f", a.Value),
		})
	}
	rightAlign := map[int]bool{1: true, 2: true, 3: true}
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func formatTable(headers []string, rows [][]string, rightAlignCols map[int]bool) []string {
	colCount := len(headers)
	for _, row := range rows {
		if len(row) > colCount {
			colCount = len(row)
		}
	}
	if colCount == 0 {
		return nil
	}

	widths := make([]int, colCount)
	for i, header := range headers {
		widths[i] = runewidth.StringWidth(header)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, formatRow(headers, widths, rightAlignCols))
	for _, row := range rows {
		lines = append(lines, formatRow(row, widths, rightAlignCols))
	}
	return lines
}

func formatRow(row []string, widths []int, rightAlignCols map[int]bool) string {
	var b strings.Builder
	for i := 0; i < len(widths); i++ {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(padCell(cell, widths[i], rightAlignCols[i]))
	}
	return b.String()
}

func padCell(value string, width int, rightAlign bool) string {
	valueWidth := runewidth.StringWidth(value)
	if valueWidth >= width {
		return value
	}
	padding := strings.Repeat(" ", width-valueWidth)
	if rightAlign {
		return padding + value
	}
	return value + padding
}
