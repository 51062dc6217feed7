// Package pipeline reshapes world-data rows into chart-ready series.
package pipeline

import (
	"math"
	"sort"

	"github.com/verte-zerg/worldboard/internal/model"
)

// Palette is the fixed color cycle assigned by selection order.
var Palette = []string{"#3b82f6", "#ef4444", "#10b981", "#f59e0b", "#8b5cf6", "#f97316", "#06b6d4", "#84cc16"}

// ColorAt returns the palette color for the i-th selected country.
func ColorAt(i int) string {
	if i < 0 {
		i = -i
	}
	return Palette[i%len(Palette)]
}

// TrendSeries is one line of the trend chart.
//
// Values holds one entry per row of the country, sorted by year; it is not
// padded to the shared axis. A missing rate is NaN. Years[i] is the year of Values[i].
type TrendSeries struct {
	Label  string
	Color  string
	Years  []int
	Values []float64
}

// Average is one bar of the comparison chart.
type Average struct {
	Label   string
	Color   string
	Value   float64
	Rows    int
	Missing int
}

// Charts is everything the two chart panels need.
type Charts struct {
	Years    []int
	Trend    []TrendSeries
	Averages []Average
}

// Empty reports whether there is nothing to draw.
func (c Charts) Empty() bool {
	return len(c.Years) == 0
}

// Build derives the shared axis, the per-country series and the per-country averages.
func Build(rows []model.DataRow, countries []string) Charts {
	byCountry := groupByCountry(rows)
	out := Charts{
		Years:    YearAxis(rows),
		Trend:    make([]TrendSeries, 0, len(countries)),
		Averages: make([]Average, 0, len(countries)),
	}
	for i, country := range countries {
		countryRows := byCountry[country]
		color := ColorAt(i)
		out.Trend = append(out.Trend, trendFor(country, color, countryRows))
		out.Averages = append(out.Averages, averageFor(country, color, countryRows))
	}
	return out
}

// YearAxis returns the distinct years across all rows, ascending.
func YearAxis(rows []model.DataRow) []int {
	seen := make(map[int]struct{}, len(rows))
	years := make([]int, 0, len(rows))
	for _, r := range rows {
		if _, ok := seen[r.Year]; ok {
			continue
		}
		seen[r.Year] = struct{}{}
		years = append(years, r.Year)
	}
	sort.Ints(years)
	return years
}

// AverageRate sums the rates with a missing value counted as zero, and divides
// by the row count including the missing ones. No rows yields zero.
func AverageRate(rows []model.DataRow) float64 {
	if len(rows) == 0 {
		return 0
	}
	var sum float64
	for _, r := range rows {
		sum += r.RateOrZero()
	}
	return sum / float64(len(rows))
}

func groupByCountry(rows []model.DataRow) map[string][]model.DataRow {
	out := map[string][]model.DataRow{}
	for _, r := range rows {
		out[r.Country] = append(out[r.Country], r)
	}
	return out
}

func trendFor(label, color string, rows []model.DataRow) TrendSeries {
	sorted := append([]model.DataRow(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Year < sorted[j].Year
	})
	s := TrendSeries{
		Label:  label,
		Color:  color,
		Years:  make([]int, len(sorted)),
		Values: make([]float64, len(sorted)),
	}
	for i, r := range sorted {
		s.Years[i] = r.Year
		if r.Rate == nil {
			s.Values[i] = math.NaN()
			continue
		}
		s.Values[i] = *r.Rate
	}
	return s
}

func averageFor(label, color string, rows []model.DataRow) Average {
	missing := 0
	for _, r := range rows {
		if r.Rate == nil {
			missing++
		}
	}
	return Average{
		Label:   label,
		Color:   color,
		Value:   AverageRate(rows),
		Rows:    len(rows),
		Missing: missing,
	}
}
