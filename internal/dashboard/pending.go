package dashboard

import (
	"context"

	"github.com/verte-zerg/worldboard/internal/model"
)

// Result is the outcome of one world-data request.
type Result struct {
	Generation uint64
	Selection  model.Selection
	Rows       []model.DataRow
	Err        error
	// Skipped is set when the selection was incomplete and nothing was fetched.
	Skipped bool
}

// Pending is a handle on an in-flight world-data request.
type Pending struct {
	gen    uint64
	sel    model.Selection
	cancel context.CancelFunc
	done   chan struct{}
	result Result
}

func (p *Pending) run(ctx context.Context, src Source) {
	defer close(p.done)
	rows, err := src.GetWorldData(ctx, p.sel)
	p.result = Result{
		Generation: p.gen,
		Selection:  p.sel,
		Rows:       rows,
		Err:        err,
	}
}

// Generation identifies the selection this request was issued for.
func (p *Pending) Generation() uint64 {
	return p.gen
}

// Selection returns the selection this request was issued for.
func (p *Pending) Selection() model.Selection {
	return p.sel.Clone()
}

// Cancel aborts the request. It is safe to call more than once.
func (p *Pending) Cancel() {
	p.cancel()
}

// Done is closed when the request has finished.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the request finishes and returns its result.
func (p *Pending) Wait() Result {
	<-p.done
	return p.result
}
