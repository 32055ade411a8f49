package table

import (
	"context"
	"fmt"

	"github.com/roach88/cellsync/internal/value"
)

func (t *Table) newPass(changes []change, replay bool) *Pass {
	oldT, newT := t.snapshots(changes)
	return &Pass{
		table:   t,
		token:   t.opts.passTokens.Generate(),
		replay:  replay,
		oldT:    oldT,
		newT:    newT,
		changes: changes,
	}
}

func (t *Table) chargePass(ctx context.Context) error {
	cs := callFrom(ctx)
	if cs == nil {
		return nil
	}
	if err := cs.quota.Check(t.String()); err != nil {
		t.logger().Error("dispatch quota exceeded",
			"table", t.String(),
			"steps", cs.quota.Current(),
			"limit", cs.quota.MaxSteps(),
		)
		return err
	}
	return nil
}

// dispatch runs one pass over changes. Listeners run in (order, seq) order;
// the first handler error ends the pass.
func (t *Table) dispatch(ctx context.Context, changes []change) error {
	if len(changes) == 0 || t.listeners.len() == 0 {
		return nil
	}
	listeners := t.listeners.snapshot()
	if err := t.chargePass(ctx); err != nil {
		return err
	}
	p := t.newPass(changes, false)
	t.logger().Debug("pass started",
		"table", t.String(),
		"pass", p.token,
		"changes", len(changes),
		"listeners", len(listeners),
	)
	for _, l := range listeners {
		if l.off.Load() {
			continue
		}
		if err := t.deliver(ctx, p, l); err != nil {
			return err
		}
	}
	t.logger().Debug("pass finished", "table", t.String(), "pass", p.token)
	return nil
}

// replay notifies a newly registered listener of every occupied cell its
// refs cover, as if the table had been empty before.
func (t *Table) replay(ctx context.Context, l *Listener) error {
	seen := make(map[CellRef]struct{})
	var changes []change
	for _, r := range l.refs {
		for c := range r.Cells() {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			changes = append(changes, change{cell: c, old: value.Unit{}})
		}
	}
	if len(changes) == 0 {
		return nil
	}
	if err := t.chargePass(ctx); err != nil {
		return err
	}
	p := t.newPass(changes, true)
	t.logger().Debug("replay started",
		"table", t.String(),
		"pass", p.token,
		"listener", l.String(),
		"cells", len(changes),
	)
	return t.deliver(ctx, p, l)
}

// deliver materializes l's events from the current snapshot contents and
// invokes its handler. Each bound ref is matched separately, so a cell
// covered by two members of a union is delivered twice.
func (t *Table) deliver(ctx context.Context, p *Pass, l *Listener) error {
	var evs []rawEvent
	var cells []CellRef
	seen := make(map[CellRef]struct{})
	for _, r := range l.refs {
		for _, ch := range p.changes {
			if !r.Covers(ch.cell) {
				continue
			}
			ev := rawEvent{cell: ch.cell, old: p.Old(ch.cell), new: p.New(ch.cell)}
			if !l.accepts(ev) {
				continue
			}
			evs = append(evs, ev)
			if _, dup := seen[ch.cell]; !dup {
				seen[ch.cell] = struct{}{}
				cells = append(cells, ch.cell)
			}
		}
	}
	if len(evs) == 0 {
		return nil
	}
	if !l.allowLoop {
		if err := checkLoop(ctx, l, cells[0]); err != nil {
			if cs := callFrom(ctx); cs != nil && cs.loopErr == nil {
				cs.loopErr = err
			}
			t.logger().Error("listener loop detected",
				"table", t.String(),
				"listener", l.String(),
				"cell", cells[0].String(),
			)
			return err
		}
	}

	t.logger().Debug("dispatching listener",
		"table", t.String(),
		"pass", p.token,
		"listener", l.String(),
		"events", len(evs),
	)
	prev := p.listener
	p.listener = l
	err := l.invoke(withFrame(ctx, l, cells), p, evs)
	p.listener = prev
	switch {
	case err == nil:
		return nil
	case IsLoopError(err), IsQuotaError(err):
		// Already names the listener chain or the limit; nested passes would
		// otherwise prefix it once per level.
		return err
	default:
		return fmt.Errorf("%s: %w", l, err)
	}
}
