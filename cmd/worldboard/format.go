package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/worldboard/internal/model"
	"github.com/verte-zerg/worldboard/internal/pipeline"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

type optionsReport struct {
	Countries []string `json:"countries" yaml:"countries"`
	MinYear   int      `json:"min_year" yaml:"min_year"`
	MaxYear   int      `json:"max_year" yaml:"max_year"`
}

type averageReport struct {
	Country string  `json:"country" yaml:"country"`
	Rows    int     `json:"rows" yaml:"rows"`
	Missing int     `json:"missing" yaml:"missing"`
	Average float64 `json:"average" yaml:"average"`
}

type rowReport struct {
	Country string   `json:"country" yaml:"country"`
	Year    int      `json:"year" yaml:"year"`
	Rate    *float64 `json:"primary_completion_rate" yaml:"primary_completion_rate"`
}

type fetchReport struct {
	Countries []string        `json:"countries" yaml:"countries"`
	StartYear int             `json:"start_year" yaml:"start_year"`
	EndYear   int             `json:"end_year" yaml:"end_year"`
	Years     []int           `json:"years" yaml:"years"`
	Averages  []averageReport `json:"averages" yaml:"averages"`
	Rows      []rowReport     `json:"rows" yaml:"rows"`
}

func validateFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("--format must be one of %s, %s, %s", formatText, formatJSON, formatYAML)
	}
}

func newOptionsReport(opts model.FilterOptions) optionsReport {
	countries := opts.Countries
	if countries == nil {
		countries = []string{}
	}
	return optionsReport{
		Countries: countries,
		MinYear:   opts.YearRange.MinYear,
		MaxYear:   opts.YearRange.MaxYear,
	}
}

func newFetchReport(sel model.Selection, rows []model.DataRow, c pipeline.Charts) fetchReport {
	report := fetchReport{
		Countries: sel.Countries,
		StartYear: sel.StartYear,
		EndYear:   sel.EndYear,
		Years:     c.Years,
		Averages:  make([]averageReport, 0, len(c.Averages)),
		Rows:      make([]rowReport, 0, len(rows)),
	}
	if report.Countries == nil {
		report.Countries = []string{}
	}
	if report.Years == nil {
		report.Years = []int{}
	}
	for _, a := range c.Averages {
		report.Averages = append(report.Averages, averageReport{
			Country: a.Label,
			Rows:    a.Rows,
			Missing: a.Missing,
			Average: math.Round(a.Value*100) / 100,
		})
	}
	for _, r := range rows {
		report.Rows = append(report.Rows, rowReport{Country: r.Country, Year: r.Year, Rate: r.Rate})
	}
	return report
}

// writeStructured encodes v as JSON or YAML.
func writeStructured(w io.Writer, format string, v any) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case formatJSON:
		data, err = json.MarshalIndent(v, "", "  ")
		data = append(data, '\n')
	case formatYAML:
		data, err = yaml.Marshal(v)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", format, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
