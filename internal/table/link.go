package table

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/roach88/cellsync/internal/value"
)

// Derivation computes a value from a set of source references.
type Derivation interface {
	Sources() []Ref
	Compute(ctx context.Context) (value.Value, error)
}

type derivation struct {
	sources []Ref
	fn      func(ctx context.Context) (value.Value, error)
}

func (d derivation) Sources() []Ref { return d.sources }

func (d derivation) Compute(ctx context.Context) (value.Value, error) { return d.fn(ctx) }

// Derive builds a Derivation from a compute function and its sources.
func Derive(fn func(ctx context.Context) (value.Value, error), sources ...Ref) Derivation {
	return derivation{sources: sources, fn: fn}
}

// Link binds a cell to a derivation. The cell is recomputed whenever any
// source changes, until the link is detached.
type Link struct {
	target   CellRef
	d        Derivation
	listener *Listener
	detached atomic.Bool
}

// Target returns the derived cell.
func (lk *Link) Target() CellRef { return lk.target }

// Listener returns the source subscription.
func (lk *Link) Listener() *Listener { return lk.listener }

// Detached reports whether the link stopped following its sources.
func (lk *Link) Detached() bool { return lk.detached.Load() }

// Detach stops recomputation. The target keeps its last value.
func (lk *Link) Detach() {
	if lk.detached.Swap(true) {
		return
	}
	if lk.listener != nil {
		lk.listener.Off()
	}
	t := lk.target.table
	t.linkMu.Lock()
	if t.links[lk.target] == lk {
		delete(t.links, lk.target)
	}
	t.linkMu.Unlock()
	t.logger().Debug("link detached", "table", t.String(), "target", lk.target.String())
}

func (lk *Link) refresh(ctx context.Context) error {
	if lk.detached.Load() {
		return nil
	}
	v, err := lk.d.Compute(ctx)
	if err != nil {
		return fmt.Errorf("link %s: %w", lk.target, err)
	}
	t := lk.target.table
	return t.write(context.WithValue(ctx, linkKey{t}, lk), lk.target, v)
}

// Link computes d into c now and again after every change to d's sources.
// Any other write to c detaches the link, as does linking c again.
func (c CellRef) Link(ctx context.Context, d Derivation) (*Link, error) {
	t := c.table
	if err := t.checkLive(); err != nil {
		return nil, err
	}
	if prev, ok := c.Linked(); ok {
		prev.Detach()
	}
	lk := &Link{target: c, d: d}
	if err := lk.refresh(ctx); err != nil {
		return nil, err
	}
	t.linkMu.Lock()
	t.links[c] = lk
	t.linkMu.Unlock()

	l, err := On[value.Value, value.Value](d.Sources()...).
		Named("link "+c.String()).
		SkipHistory().
		Events(ctx, func(ctx context.Context, _ *Pass, _ *Events[value.Value, value.Value]) error {
			return lk.refresh(ctx)
		})
	if err != nil {
		lk.Detach()
		return nil, fmt.Errorf("link %s: %w", c, err)
	}
	lk.listener = l
	if lk.detached.Load() {
		l.Off()
	}
	return lk, nil
}

// Linked returns the link currently driving c.
func (c CellRef) Linked() (*Link, bool) {
	t := c.table
	t.linkMu.Lock()
	defer t.linkMu.Unlock()
	lk, ok := t.links[c]
	return lk, ok
}

// detachForeign detaches the link on c unless ctx carries that link's own
// write. The marker is cleared for everything the write triggers.
func (t *Table) detachForeign(ctx context.Context, c CellRef) context.Context {
	marker, _ := ctx.Value(linkKey{t}).(*Link)
	if lk, ok := c.Linked(); ok && lk != marker {
		lk.Detach()
	}
	if marker != nil {
		ctx = context.WithValue(ctx, linkKey{t}, (*Link)(nil))
	}
	return ctx
}
