package store

import (
	"context"
	"math"

	"github.com/roach88/cellsync/internal/table"
	"github.com/roach88/cellsync/internal/trace"
	"github.com/roach88/cellsync/internal/value"
)

// Journal records every event of a table into the store. It runs after all
// other listeners of a pass, so it sees the final snapshot values.
type Journal struct {
	store    *Store
	name     string
	listener *table.Listener
}

// NewJournal subscribes to the whole of t. Existing cells are not
// journaled; only changes after the call are.
func NewJournal(ctx context.Context, s *Store, t *table.Table, name string) (*Journal, error) {
	j := &Journal{store: s, name: name}
	l, err := table.On[value.Value, value.Value](t.All()).
		Named(name).
		Order(math.MaxInt64).
		SkipHistory().
		Events(ctx, j.handle)
	if err != nil {
		return nil, err
	}
	j.listener = l
	return j, nil
}

func (j *Journal) handle(ctx context.Context, p *table.Pass, evs *table.Events[value.Value, value.Value]) error {
	return j.store.WriteEvents(ctx, trace.Capture(p, j.name, evs))
}

// Listener returns the journal's subscription.
func (j *Journal) Listener() *table.Listener { return j.listener }

// Close stops journaling.
func (j *Journal) Close() {
	j.listener.Off()
}
