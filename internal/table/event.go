package table

import (
	"context"
	"iter"

	"github.com/roach88/cellsync/internal/value"
)

// rawEvent is an event before conversion to a listener's declared types.
type rawEvent struct {
	cell     CellRef
	old, new value.Value
}

// Event is one observed transition of a cell.
type Event[O, N any] struct {
	Cell CellRef
	Old  O
	New  N

	oldRaw, newRaw value.Value
}

// OldValue returns the old value as a value.Value.
func (e Event[O, N]) OldValue() value.Value { return e.oldRaw }

// NewValue returns the new value as a value.Value.
func (e Event[O, N]) NewValue() value.Value { return e.newRaw }

// Equal compares table, coordinate and both values.
func (e Event[O, N]) Equal(o Event[O, N]) bool {
	return e.Cell == o.Cell && value.Equal(e.oldRaw, o.oldRaw) && value.Equal(e.newRaw, o.newRaw)
}

// Handler receives the events of one pass for one listener.
//
// The table's writer lock is held while a handler runs. Writes from the
// handler must use ctx; a write to the same table with an unrelated context
// (such as context.Background()) deadlocks.
type Handler[O, N any] func(ctx context.Context, p *Pass, evs *Events[O, N]) error

// Events is the batch of events a listener receives in one pass. It can be
// iterated any number of times.
type Events[O, N any] struct {
	items []Event[O, N]
}

func newEvents[O, N any](raw []rawEvent) *Events[O, N] {
	evs := &Events[O, N]{items: make([]Event[O, N], 0, len(raw))}
	for _, r := range raw {
		o, ok := as[O](r.old)
		if !ok {
			continue
		}
		n, ok := as[N](r.new)
		if !ok {
			continue
		}
		evs.items = append(evs.items, Event[O, N]{
			Cell:   r.cell,
			Old:    o,
			New:    n,
			oldRaw: value.Normalize(r.old),
			newRaw: value.Normalize(r.new),
		})
	}
	return evs
}

// Len returns the number of events.
func (e *Events[O, N]) Len() int { return len(e.items) }

// All iterates the events in delivery order.
func (e *Events[O, N]) All() iter.Seq[Event[O, N]] {
	return func(yield func(Event[O, N]) bool) {
		for _, ev := range e.items {
			if !yield(ev) {
				return
			}
		}
	}
}

// ForEach calls fn for every event, stopping at the first error.
func (e *Events[O, N]) ForEach(fn func(Event[O, N]) error) error {
	for _, ev := range e.items {
		if err := fn(ev); err != nil {
			return err
		}
	}
	return nil
}

// Any reports whether pred holds for at least one event.
func (e *Events[O, N]) Any(pred func(Event[O, N]) bool) bool {
	for _, ev := range e.items {
		if pred(ev) {
			return true
		}
	}
	return false
}

// Slice returns a copy of the events.
func (e *Events[O, N]) Slice() []Event[O, N] {
	return append([]Event[O, N](nil), e.items...)
}

// Narrow iterates the events whose values are also assignable to O2 and N2.
func Narrow[O2, N2, O, N any](e *Events[O, N]) iter.Seq[Event[O2, N2]] {
	return func(yield func(Event[O2, N2]) bool) {
		for _, ev := range e.items {
			o, ok := as[O2](ev.oldRaw)
			if !ok {
				continue
			}
			n, ok := as[N2](ev.newRaw)
			if !ok {
				continue
			}
			out := Event[O2, N2]{Cell: ev.Cell, Old: o, New: n, oldRaw: ev.oldRaw, newRaw: ev.newRaw}
			if !yield(out) {
				return
			}
		}
	}
}
