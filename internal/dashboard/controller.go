// Package dashboard holds the filter selection and drives world-data fetches.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/verte-zerg/worldboard/internal/logging"
	"github.com/verte-zerg/worldboard/internal/model"
	"github.com/verte-zerg/worldboard/internal/pipeline"
)

// DefaultCountries is the shortlist pre-selected on mount when present in the options.
var DefaultCountries = []string{"United States", "Brazil", "India", "China"}

// Used when the backend reports no year bounds.
const (
	fallbackMinYear = 1900
	fallbackMaxYear = 2020
)

// ErrInvalidRange is returned by ApplySelection when year validation is enabled
// and the selection falls outside the fetched range or has start > end.
var ErrInvalidRange = errors.New("invalid year range")

// State is the data readiness of the dashboard.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateEmpty
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateEmpty:
		return "empty"
	default:
		return "idle"
	}
}

// Source is the subset of the API client the controller needs.
type Source interface {
	GetFilterOptions(ctx context.Context) (model.FilterOptions, error)
	GetWorldData(ctx context.Context, sel model.Selection) ([]model.DataRow, error)
}

// Options configures a Controller.
type Options struct {
	ValidateYears bool
}

// Controller owns the filter options, the current selection and the rows of the
// latest accepted fetch. Every selection change goes through ApplySelection.
type Controller struct {
	src  Source
	opts Options

	mu        sync.Mutex
	options   model.FilterOptions
	selection model.Selection
	state     State
	rows      []model.DataRow
	charts    pipeline.Charts
	lastErr   error
	gen       uint64
	pending   *Pending
}

// New returns an idle controller.
func New(src Source, opts Options) *Controller {
	return &Controller{src: src, opts: opts}
}

// Load fetches the filter options and seeds the selection from them: full year
// range and the default shortlist, in option order. It does not fetch rows.
func (c *Controller) Load(ctx context.Context) (model.Selection, error) {
	c.mu.Lock()
	c.state = StateLoading
	c.mu.Unlock()

	opts, err := c.src.GetFilterOptions(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		logging.Warnf("failed to fetch filter options: %v", err)
		c.options = model.FilterOptions{}
		c.selection = model.Selection{}
		c.lastErr = err
		c.state = StateEmpty
		return model.Selection{}, err
	}
	if opts.YearRange.MinYear == 0 {
		opts.YearRange.MinYear = fallbackMinYear
	}
	if opts.YearRange.MaxYear == 0 {
		opts.YearRange.MaxYear = fallbackMaxYear
	}
	c.options = opts
	c.selection = model.Selection{
		Countries: defaultSelection(opts.Countries, DefaultCountries),
		StartYear: opts.YearRange.MinYear,
		EndYear:   opts.YearRange.MaxYear,
	}
	c.lastErr = nil
	c.state = StateIdle
	return c.selection.Clone(), nil
}

func defaultSelection(available, defaults []string) []string {
	wanted := make(map[string]struct{}, len(defaults))
	for _, d := range defaults {
		wanted[d] = struct{}{}
	}
	out := []string{}
	for _, country := range available {
		if _, ok := wanted[country]; ok {
			out = append(out, country)
		}
	}
	return out
}

// ApplySelection makes sel the current selection and starts fetching its rows.
// Any previous pending request is cancelled. An incomplete selection (no
// countries or an unset year) never reaches the backend; its handle is already
// done and commits as the empty state.
func (c *Controller) ApplySelection(ctx context.Context, sel model.Selection) (*Pending, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.opts.ValidateYears {
		if err := c.validate(sel); err != nil {
			return nil, err
		}
	}
	if c.pending != nil {
		c.pending.Cancel()
	}
	c.gen++
	c.selection = sel.Clone()

	p := &Pending{
		gen:  c.gen,
		sel:  sel.Clone(),
		done: make(chan struct{}),
	}
	c.pending = p
	if !sel.Complete() {
		p.cancel = func() {}
		p.result = Result{Generation: p.gen, Selection: p.sel, Skipped: true}
		close(p.done)
		return p, nil
	}

	c.state = StateLoading
	fetchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	go p.run(fetchCtx, c.src)
	return p, nil
}

func (c *Controller) validate(sel model.Selection) error {
	if sel.StartYear == 0 || sel.EndYear == 0 {
		return nil
	}
	if sel.StartYear > sel.EndYear {
		return fmt.Errorf("%w: start year %d is after end year %d", ErrInvalidRange, sel.StartYear, sel.EndYear)
	}
	r := c.options.YearRange
	if r.MaxYear == 0 {
		return nil
	}
	if !r.Contains(sel.StartYear) || !r.Contains(sel.EndYear) {
		return fmt.Errorf("%w: years must be within %d-%d", ErrInvalidRange, r.MinYear, r.MaxYear)
	}
	return nil
}

// Commit applies a finished fetch. Results from a superseded selection are
// discarded and Commit returns false.
func (c *Controller) Commit(res Result) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if res.Generation != c.gen {
		logging.Debugf("discarding stale result generation=%d current=%d", res.Generation, c.gen)
		return false
	}
	c.pending = nil
	switch {
	case res.Skipped:
		c.rows = nil
		c.lastErr = nil
		c.state = StateEmpty
	case errors.Is(res.Err, context.Canceled):
		c.rows = nil
		c.state = StateIdle
	case res.Err != nil:
		logging.Warnf("failed to fetch world data: %v", res.Err)
		c.rows = nil
		c.lastErr = res.Err
		c.state = StateEmpty
	default:
		c.rows = res.Rows
		c.lastErr = nil
		if len(res.Rows) == 0 {
			c.state = StateEmpty
		} else {
			c.state = StateReady
		}
	}
	c.charts = pipeline.Build(c.rows, res.Selection.Countries)
	return true
}

// ToggleCountry adds or removes country and applies the new selection.
func (c *Controller) ToggleCountry(ctx context.Context, country string) (*Pending, error) {
	return c.ApplySelection(ctx, c.Selection().Toggle(country))
}

// SetStartYear applies a new start year.
func (c *Controller) SetStartYear(ctx context.Context, year int) (*Pending, error) {
	sel := c.Selection()
	sel.StartYear = year
	return c.ApplySelection(ctx, sel)
}

// SetEndYear applies a new end year.
func (c *Controller) SetEndYear(ctx context.Context, year int) (*Pending, error) {
	sel := c.Selection()
	sel.EndYear = year
	return c.ApplySelection(ctx, sel)
}

// Selection returns a copy of the current selection.
func (c *Controller) Selection() model.Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection.Clone()
}

// FilterOptions returns the options fetched on Load.
func (c *Controller) FilterOptions() model.FilterOptions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.options
}

// YearOptions lists the selectable years.
func (c *Controller) YearOptions() []int {
	return c.FilterOptions().YearRange.Years()
}

// State returns the current readiness state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Rows returns the rows of the last accepted fetch.
func (c *Controller) Rows() []model.DataRow {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.DataRow(nil), c.rows...)
}

// Charts returns the chart data derived from the last accepted fetch.
func (c *Controller) Charts() pipeline.Charts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.charts
}

// Err returns the error of the last failed fetch, if it is still current.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}
