// Package model defines shared data structures.
package model

import "time"

// Config defines resolved client settings.
type Config struct {
	BaseURL         string
	Timeout         time.Duration
	ValidateYears   bool
	TestCredentials Credentials
	ShowTestButton  bool
	StartRoute      string
}

// Credentials holds a username/password pair.
type Credentials struct {
	Username string
	Password string
}

// YearRange is the inclusive span of years the backend has data for.
type YearRange struct {
	MinYear int `json:"min_year"`
	MaxYear int `json:"max_year"`
}

// Years lists every year in the range, ascending.
func (r YearRange) Years() []int {
	if r.MinYear == 0 || r.MaxYear < r.MinYear {
		return nil
	}
	years := make([]int, 0, r.MaxYear-r.MinYear+1)
	for y := r.MinYear; y <= r.MaxYear; y++ {
		years = append(years, y)
	}
	return years
}

// Contains reports whether year lies within the range.
func (r YearRange) Contains(year int) bool {
	return year >= r.MinYear && year <= r.MaxYear
}

// FilterOptions are the distinct filter values served by the backend.
type FilterOptions struct {
	Countries []string  `json:"countries"`
	YearRange YearRange `json:"year_range"`
}

// Selection is the user-chosen filter driving data fetches.
// Countries keep insertion order.
type Selection struct {
	Countries []string
	StartYear int
	EndYear   int
}

// Complete reports whether the selection can be sent to the backend.
func (s Selection) Complete() bool {
	return len(s.Countries) > 0 && s.StartYear != 0 && s.EndYear != 0
}

// Contains reports whether country is selected.
func (s Selection) Contains(country string) bool {
	for _, c := range s.Countries {
		if c == country {
			return true
		}
	}
	return false
}

// Toggle adds country at the end of the selection, or removes it when already selected.
func (s Selection) Toggle(country string) Selection {
	out := s.Clone()
	for i, c := range out.Countries {
		if c == country {
			out.Countries = append(out.Countries[:i], out.Countries[i+1:]...)
			return out
		}
	}
	out.Countries = append(out.Countries, country)
	return out
}

// Clone returns a copy that shares no memory with s.
func (s Selection) Clone() Selection {
	out := s
	out.Countries = append([]string(nil), s.Countries...)
	return out
}

// Equal reports whether two selections would produce the same request.
func (s Selection) Equal(o Selection) bool {
	if s.StartYear != o.StartYear || s.EndYear != o.EndYear || len(s.Countries) != len(o.Countries) {
		return false
	}
	for i := range s.Countries {
		if s.Countries[i] != o.Countries[i] {
			return false
		}
	}
	return true
}

// DataRow is one (country, year) observation. Rate is nil when the backend has no value.
type DataRow struct {
	Country string   `json:"country"`
	Year    int      `json:"year"`
	Rate    *float64 `json:"primary_completion_rate"`
}

// RateOrZero returns the completion rate, treating a missing value as zero.
func (r DataRow) RateOrZero() float64 {
	if r.Rate == nil {
		return 0
	}
	return *r.Rate
}

// Float returns a pointer to v, for building rows.
func Float(v float64) *float64 {
	return &v
}
