package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/verte-zerg/worldboard/internal/model"
)

type fakeSource struct {
	options    model.FilterOptions
	optionsErr error

	mu    sync.Mutex
	calls []model.Selection
	// gates, when set for a country list key, blocks the call until closed.
	gates map[string]chan struct{}
	rows  map[string][]model.DataRow
}

func key(sel model.Selection) string {
	out := ""
	for _, c := range sel.Countries {
		out += c + ";"
	}
	return out
}

func (f *fakeSource) GetFilterOptions(context.Context) (model.FilterOptions, error) {
	return f.options, f.optionsErr
}

func (f *fakeSource) GetWorldData(ctx context.Context, sel model.Selection) ([]model.DataRow, error) {
	f.mu.Lock()
	f.calls = append(f.calls, sel)
	gate := f.gates[key(sel)]
	rows := f.rows[key(sel)]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return rows, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newFake() *fakeSource {
	return &fakeSource{
		options: model.FilterOptions{
			Countries: []string{"Brazil", "Chile", "China", "India", "United States"},
			YearRange: model.YearRange{MinYear: 1990, MaxYear: 2020},
		},
		gates: map[string]chan struct{}{},
		rows:  map[string][]model.DataRow{},
	}
}

func TestLoadSeedsDefaults(t *testing.T) {
	c := New(newFake(), Options{})
	sel, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []string{"Brazil", "China", "India", "United States"}
	if len(sel.Countries) != len(want) {
		t.Fatalf("expected %v, got %v", want, sel.Countries)
	}
	for i := range want {
		if sel.Countries[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, sel.Countries)
		}
	}
	if sel.StartYear != 1990 || sel.EndYear != 2020 {
		t.Fatalf("expected full year range, got %d-%d", sel.StartYear, sel.EndYear)
	}
	if years := c.YearOptions(); len(years) != 31 || years[0] != 1990 || years[30] != 2020 {
		t.Fatalf("unexpected year options: %v", years)
	}
}

func TestLoadFallsBackWhenYearsMissing(t *testing.T) {
	src := newFake()
	src.options.YearRange = model.YearRange{}
	c := New(src, Options{})
	sel, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if sel.StartYear != fallbackMinYear || sel.EndYear != fallbackMaxYear {
		t.Fatalf("expected fallback years, got %d-%d", sel.StartYear, sel.EndYear)
	}
}

func TestLoadFailureLeavesWidgetsEmpty(t *testing.T) {
	src := newFake()
	src.optionsErr = errors.New("down")
	c := New(src, Options{})
	if _, err := c.Load(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if len(c.FilterOptions().Countries) != 0 || len(c.YearOptions()) != 0 {
		t.Fatalf("expected empty options after failure")
	}
	if c.State() != StateEmpty {
		t.Fatalf("expected empty state, got %s", c.State())
	}
}

func TestIncompleteSelectionNeverFetches(t *testing.T) {
	src := newFake()
	c := New(src, Options{})
	p, err := c.ApplySelection(context.Background(), model.Selection{StartYear: 2000, EndYear: 2010})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	res := p.Wait()
	if !res.Skipped {
		t.Fatalf("expected skipped result")
	}
	if !c.Commit(res) {
		t.Fatalf("expected commit to be accepted")
	}
	if c.State() != StateEmpty {
		t.Fatalf("expected empty state, got %s", c.State())
	}
	if src.callCount() != 0 {
		t.Fatalf("expected no world-data fetch, got %d", src.callCount())
	}
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	src := newFake()
	first := model.Selection{Countries: []string{"Brazil"}, StartYear: 2000, EndYear: 2010}
	second := model.Selection{Countries: []string{"Chile"}, StartYear: 2000, EndYear: 2010}
	gate := make(chan struct{})
	src.gates[key(first)] = gate
	src.rows[key(first)] = []model.DataRow{{Country: "Brazil", Year: 2000, Rate: model.Float(1)}}
	src.rows[key(second)] = []model.DataRow{{Country: "Chile", Year: 2001, Rate: model.Float(2)}}

	c := New(src, Options{})
	ctx := context.Background()
	p1, err := c.ApplySelection(ctx, first)
	if err != nil {
		t.Fatalf("apply first: %v", err)
	}
	if c.State() != StateLoading {
		t.Fatalf("expected loading, got %s", c.State())
	}
	p2, err := c.ApplySelection(ctx, second)
	if err != nil {
		t.Fatalf("apply second: %v", err)
	}
	if !c.Commit(p2.Wait()) {
		t.Fatalf("expected current result to be accepted")
	}

	close(gate)
	select {
	case <-p1.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("first request never finished")
	}
	if c.Commit(p1.Wait()) {
		t.Fatalf("expected stale result to be rejected")
	}
	rows := c.Rows()
	if len(rows) != 1 || rows[0].Country != "Chile" {
		t.Fatalf("expected rows for the newer selection, got %+v", rows)
	}
	if c.State() != StateReady {
		t.Fatalf("expected ready, got %s", c.State())
	}
	charts := c.Charts()
	if len(charts.Trend) != 1 || charts.Trend[0].Label != "Chile" {
		t.Fatalf("unexpected charts: %+v", charts.Trend)
	}
}

type blockingSource struct {
	fakeSource
	started chan struct{}
}

func (b *blockingSource) GetWorldData(ctx context.Context, sel model.Selection) ([]model.DataRow, error) {
	close(b.started)
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestSupersededRequestIsCancelled(t *testing.T) {
	src := &blockingSource{started: make(chan struct{})}
	c := New(src, Options{})
	ctx := context.Background()
	p1, err := c.ApplySelection(ctx, model.Selection{Countries: []string{"Peru"}, StartYear: 2000, EndYear: 2001})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	<-src.started
	if _, err := c.ApplySelection(ctx, model.Selection{StartYear: 2000, EndYear: 2001}); err != nil {
		t.Fatalf("apply second: %v", err)
	}
	select {
	case <-p1.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("superseded request was not cancelled")
	}
	if res := p1.Wait(); !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("expected cancellation error, got %v", res.Err)
	}
}

func TestValidateYearsGuard(t *testing.T) {
	c := New(newFake(), Options{ValidateYears: true})
	if _, err := c.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	_, err := c.ApplySelection(context.Background(), model.Selection{Countries: []string{"Chile"}, StartYear: 2010, EndYear: 2000})
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
	_, err = c.ApplySelection(context.Background(), model.Selection{Countries: []string{"Chile"}, StartYear: 1980, EndYear: 2000})
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for out of range year, got %v", err)
	}

	unguarded := New(newFake(), Options{})
	p, err := unguarded.ApplySelection(context.Background(), model.Selection{Countries: []string{"Chile"}, StartYear: 2010, EndYear: 2000})
	if err != nil {
		t.Fatalf("expected no validation without guard, got %v", err)
	}
	unguarded.Commit(p.Wait())
}

func TestToggleCountryKeepsClickOrder(t *testing.T) {
	c := New(newFake(), Options{})
	if _, err := c.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	p, err := c.ToggleCountry(context.Background(), "Brazil")
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	c.Commit(p.Wait())
	p, err = c.ToggleCountry(context.Background(), "Brazil")
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	c.Commit(p.Wait())
	sel := c.Selection()
	if sel.Countries[len(sel.Countries)-1] != "Brazil" {
		t.Fatalf("expected re-added country at the end, got %v", sel.Countries)
	}
}
