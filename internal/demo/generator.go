// Package demo serves a self-contained world-data backend for trying the client offline.
package demo

import (
	"bufio"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strings"

	"github.com/verte-zerg/worldboard/internal/model"
)

// DefaultCountries seeds the demo dataset.
var DefaultCountries = []string{
	"Argentina", "Brazil", "Chile", "China", "Ethiopia", "France", "Germany",
	"India", "Indonesia", "Kenya", "Mexico", "Nigeria", "Peru", "United States",
}

// Generator produces synthetic completion-rate rows.
type Generator struct {
	rnd *rand.Rand
}

// NewGenerator returns a Generator with a fixed seed, so datasets are reproducible.
func NewGenerator(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// Generate builds one row per country and year. Each country follows a rising
// curve with noise; missingPct of the rows have no value.
func (g *Generator) Generate(countries []string, minYear, maxYear int, missingPct float64) []model.DataRow {
	rows := make([]model.DataRow, 0, len(countries)*(maxYear-minYear+1))
	for _, country := range countries {
		base := 30 + g.rnd.Float64()*50
		slope := 0.2 + g.rnd.Float64()*1.2
		for year := minYear; year <= maxYear; year++ {
			row := model.DataRow{Country: country, Year: year}
			if g.rnd.Float64() >= missingPct {
				v := base + slope*float64(year-minYear) + g.rnd.NormFloat64()*2
				v = math.Max(0, math.Min(110, v))
				row.Rate = model.Float(math.Round(v*100) / 100)
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// LoadCountries reads one country name per line from path.
func LoadCountries(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only country list.
			_ = cerr
		}
	}()

	var countries []string
	seen := map[string]struct{}{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		countries = append(countries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(countries) == 0 {
		return nil, fmt.Errorf("country list is empty")
	}
	return countries, nil
}
