package table

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Context keys. Each table gets its own held and batch key, so a context can
// carry open scopes for several tables at once.
type (
	heldKey  struct{ t *Table }
	txKey    struct{ t *Table }
	linkKey  struct{ t *Table }
	chainKey struct{}
	callKey  struct{}
)

// acquire takes the table's writer lock unless ctx already holds it. The
// returned context marks the lock as held for nested calls.
func (t *Table) acquire(ctx context.Context) (context.Context, func()) {
	if ctx.Value(heldKey{t}) != nil {
		return ctx, func() {}
	}
	t.writer.Lock()
	return context.WithValue(ctx, heldKey{t}, struct{}{}), t.writer.Unlock
}

// callState is shared by everything one top-level call triggers.
type callState struct {
	quota   *QuotaEnforcer
	loopErr error // first loop error, reported even if a handler drops it
}

// beginCall attaches a callState to ctx unless one is already present. The
// returned finish function turns a recorded loop error into the result of
// the outermost call.
func (t *Table) beginCall(ctx context.Context) (context.Context, func(error) error) {
	if _, ok := ctx.Value(callKey{}).(*callState); ok {
		return ctx, func(err error) error { return err }
	}
	cs := &callState{quota: NewQuotaEnforcer(t.opts.maxSteps)}
	ctx = context.WithValue(ctx, callKey{}, cs)
	return ctx, func(err error) error {
		if err == nil && cs.loopErr != nil {
			return cs.loopErr
		}
		return err
	}
}

func callFrom(ctx context.Context) *callState {
	cs, _ := ctx.Value(callKey{}).(*callState)
	return cs
}

// frame records one handler invocation: the listener, the cells it was
// notified about and the invocation that caused it.
type frame struct {
	l      *Listener
	cells  []CellRef
	parent *frame
}

func (f *frame) String() string {
	idx := make([]string, len(f.cells))
	for i, c := range f.cells {
		idx[i] = fmt.Sprintf("%s,%d", c.col.header, c.index)
	}
	return fmt.Sprintf("%s@[%s]", f.l, strings.Join(idx, " "))
}

func chainFrom(ctx context.Context) *frame {
	f, _ := ctx.Value(chainKey{}).(*frame)
	return f
}

func withFrame(ctx context.Context, l *Listener, cells []CellRef) context.Context {
	return context.WithValue(ctx, chainKey{}, &frame{l: l, cells: cells, parent: chainFrom(ctx)})
}

// checkLoop fails when l already has a frame on the chain: whatever cell it
// is about to receive, the notification was caused by its own handler.
func checkLoop(ctx context.Context, l *Listener, c CellRef) error {
	top := chainFrom(ctx)
	for f := top; f != nil; f = f.parent {
		if f.l != l {
			continue
		}
		var names []string
		for g := top; g != nil; g = g.parent {
			names = append(names, g.String())
		}
		slices.Reverse(names)
		return &ListenerLoopError{Listener: l.String(), Cell: c.String(), Chain: names}
	}
	return nil
}
