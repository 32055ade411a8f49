package table

import (
	"context"
	"errors"

	"github.com/roach88/cellsync/internal/value"
)

// tx collects the first old value of every cell written inside a batch.
type tx struct {
	order  []CellRef
	old    map[CellRef]value.Value
	closed bool
}

func newTx() *tx {
	return &tx{old: make(map[CellRef]value.Value)}
}

func (x *tx) record(c CellRef, old value.Value) {
	if _, ok := x.old[c]; ok {
		return
	}
	x.old[c] = old
	x.order = append(x.order, c)
}

// openTx returns the batch open for t in ctx, if any.
func (t *Table) openTx(ctx context.Context) *tx {
	x, ok := ctx.Value(txKey{t}).(*tx)
	if !ok || x.closed {
		return nil
	}
	return x
}

// InBatch reports whether ctx carries an open batch for t.
func (t *Table) InBatch(ctx context.Context) bool { return t.openTx(ctx) != nil }

// Batch runs fn with notifications for t deferred until fn returns.
//
// Writes inside fn reach storage immediately. At exit every written cell
// whose value differs from its value before the batch produces one change,
// and listeners see all of them in a single pass. Calling Batch with a
// context that already carries a batch for t just runs fn inside it. A
// batch on another table opens its own scope and flushes when its own fn
// returns.
//
// The batch flushes even when fn fails; the errors are joined.
//
// fn must write t through the ctx it is given. The batch holds t's writer
// lock until fn returns, so a write made with an unrelated context (such as
// context.Background()) blocks forever.
func (t *Table) Batch(ctx context.Context, fn func(ctx context.Context) error) error {
	if t.openTx(ctx) != nil {
		return fn(ctx)
	}
	if err := t.checkLive(); err != nil {
		return err
	}
	ctx, release := t.acquire(ctx)
	defer release()
	ctx, finish := t.beginCall(ctx)

	x := newTx()
	fnErr := fn(context.WithValue(ctx, txKey{t}, x))
	x.closed = true

	changes := make([]change, 0, len(x.order))
	for _, c := range x.order {
		if old := x.old[c]; !value.Equal(old, t.peek(c.col, c.index)) {
			changes = append(changes, change{cell: c, old: old})
		}
	}
	t.logger().Debug("batch closed",
		"table", t.String(),
		"written", len(x.order),
		"changed", len(changes),
	)
	return finish(errors.Join(fnErr, t.dispatch(ctx, changes)))
}

// write is the single mutation path for live storage.
func (t *Table) write(ctx context.Context, c CellRef, v value.Value) error {
	if err := t.checkLive(); err != nil {
		return err
	}
	v = value.Normalize(v)
	ctx, release := t.acquire(ctx)
	defer release()

	ctx = t.detachForeign(ctx, c)
	old := t.store(c.col, c.index, v)
	if value.Equal(old, v) {
		return nil
	}
	if x := t.openTx(ctx); x != nil {
		x.record(c, old)
		return nil
	}
	ctx, finish := t.beginCall(ctx)
	return finish(t.dispatch(ctx, []change{{cell: c, old: old}}))
}
