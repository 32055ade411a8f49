package table

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
)

// Listener is the handle of one subscription.
type Listener struct {
	table       *Table
	name        string
	order       int64
	allowLoop   bool
	skipHistory bool
	refs        []Ref // union members flattened
	oldKinds    kindSet
	newKinds    kindSet

	seq        int64
	registered bool
	off        atomic.Bool
	invoke     func(ctx context.Context, p *Pass, evs []rawEvent) error
}

func (l *Listener) Table() *Table     { return l.table }
func (l *Listener) Name() string      { return l.name }
func (l *Listener) Order() int64      { return l.order }
func (l *Listener) AllowLoop() bool   { return l.allowLoop }
func (l *Listener) SkipHistory() bool { return l.skipHistory }
func (l *Listener) Refs() []Ref       { return slices.Clone(l.refs) }
func (l *Listener) Seq() int64        { return l.seq }

// Active reports whether the listener is registered and not switched off.
func (l *Listener) Active() bool { return l.registered && !l.off.Load() }

func (l *Listener) String() string {
	if l.name != "" {
		return l.name
	}
	return fmt.Sprintf("listener#%d", l.seq)
}

// Off unsubscribes the listener. It takes effect immediately, also for the
// rest of a pass in progress, and may be called more than once. Called
// before Events, it prevents the listener from ever being registered.
func (l *Listener) Off() {
	if l.off.Swap(true) {
		return
	}
	if l.table != nil {
		l.table.listeners.remove(l)
	}
}

func (l *Listener) accepts(ev rawEvent) bool {
	return l.oldKinds.has(ev.old.Kind()) && l.newKinds.has(ev.new.Kind())
}

// listenerRegistry keeps the listeners of one table sorted by (order, seq).
type listenerRegistry struct {
	mu    sync.RWMutex
	items []*Listener
}

func newListenerRegistry() *listenerRegistry {
	return &listenerRegistry{}
}

func compareListeners(a, b *Listener) int {
	if c := cmp.Compare(a.order, b.order); c != 0 {
		return c
	}
	return cmp.Compare(a.seq, b.seq)
}

func (r *listenerRegistry) add(l *Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pos, _ := slices.BinarySearchFunc(r.items, l, compareListeners)
	r.items = slices.Insert(r.items, pos, l)
}

func (r *listenerRegistry) remove(l *Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = slices.DeleteFunc(r.items, func(x *Listener) bool { return x == l })
}

// snapshot returns the listeners in dispatch order.
func (r *listenerRegistry) snapshot() []*Listener {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.items)
}

func (r *listenerRegistry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Listeners returns the active listeners in dispatch order.
func (t *Table) Listeners() []*Listener { return t.listeners.snapshot() }

// Subscription configures a listener before it is activated by Events.
type Subscription[O, N any] struct {
	l   *Listener
	err error
}

// On starts a subscription on refs, delivering transitions whose old value
// is assignable to O and whose new value is assignable to N. Use
// value.Value for either parameter to accept every kind, Unit included.
//
// All refs must point into the same table. Row references must use the At
// relation.
func On[O, N any](refs ...Ref) *Subscription[O, N] {
	u := Union(refs...)
	s := &Subscription[O, N]{l: &Listener{
		table:    u.Table(),
		refs:     u.members,
		oldKinds: kindsFor[O](),
		newKinds: kindsFor[N](),
	}}
	s.err = validateRefs(s.l.table, u.members)
	return s
}

func validateRefs(t *Table, refs []Ref) error {
	if len(refs) == 0 || t == nil {
		return &InvalidTableError{Table: "table", Message: "subscription needs at least one reference"}
	}
	for _, r := range refs {
		if r.Table() != t {
			return &InvalidTableError{Table: t.String(), Message: fmt.Sprintf("reference %s points into another table", r)}
		}
		var rows []RowRef
		switch r := r.(type) {
		case RowRef:
			rows = append(rows, r)
		case RowRange:
			rows = append(rows, r.from, r.to)
		}
		for _, row := range rows {
			if row.rel != At {
				return &InvalidRowError{Row: row.String(), Relation: row.rel}
			}
		}
	}
	return nil
}

// Named sets the listener name used in logs and errors.
func (s *Subscription[O, N]) Named(name string) *Subscription[O, N] {
	s.l.name = name
	return s
}

// Order sets the dispatch order. Lower orders run first; equal orders run
// in registration order.
func (s *Subscription[O, N]) Order(order int64) *Subscription[O, N] {
	s.l.order = order
	return s
}

// AllowLoop lets the listener be re-notified for cells it is handling, so
// it can converge on a value by writing to its own sources.
func (s *Subscription[O, N]) AllowLoop() *Subscription[O, N] {
	s.l.allowLoop = true
	return s
}

// SkipHistory suppresses the replay of existing values on activation.
func (s *Subscription[O, N]) SkipHistory() *Subscription[O, N] {
	s.l.skipHistory = true
	return s
}

// Listener returns the handle before activation, so the subscriber can
// switch itself off ahead of its first event.
func (s *Subscription[O, N]) Listener() *Listener { return s.l }

// Events activates the subscription. Unless SkipHistory was set, the
// handler is called once before Events returns with one event per occupied
// cell the refs cover, each with a Unit old value.
func (s *Subscription[O, N]) Events(ctx context.Context, h Handler[O, N]) (*Listener, error) {
	l := s.l
	if s.err != nil {
		return nil, s.err
	}
	if l.registered {
		return l, fmt.Errorf("%s is already active", l)
	}
	if l.off.Load() {
		return l, nil
	}
	t := l.table
	if err := t.checkLive(); err != nil {
		return nil, err
	}
	l.invoke = func(ctx context.Context, p *Pass, raw []rawEvent) error {
		return h(ctx, p, newEvents[O, N](raw))
	}

	ctx, release := t.acquire(ctx)
	defer release()
	ctx, finish := t.beginCall(ctx)

	l.seq = t.clock.tick()
	l.registered = true
	t.listeners.add(l)
	if l.off.Load() {
		t.listeners.remove(l)
		return l, finish(nil)
	}
	t.logger().Debug("listener registered",
		"table", t.String(),
		"listener", l.String(),
		"order", l.order,
		"old_kinds", l.oldKinds.String(),
		"new_kinds", l.newKinds.String(),
	)
	if l.skipHistory {
		return l, finish(nil)
	}
	return l, finish(t.replay(ctx, l))
}
