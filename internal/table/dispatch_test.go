package table

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cellsync/internal/value"
)

func TestDispatch_OneEventPerMutation(t *testing.T) {
	ctx := context.Background()
	tb := New()
	var rec recorder
	_, err := listen(ctx, &rec, tb.Cell(hA, 1))
	require.NoError(t, err)

	passes, _ := rec.snapshot()
	assert.Zero(t, passes, "nothing to replay on an empty cell")

	require.NoError(t, tb.Set(ctx, hA, 1, 1))
	require.NoError(t, tb.Set(ctx, hA, 1, 2))
	require.NoError(t, tb.Set(ctx, hA, 1, 2))
	require.NoError(t, tb.Set(ctx, hA, 2, 9))
	require.NoError(t, tb.Clear(ctx, hA, 1))

	passes, events := rec.snapshot()
	assert.Equal(t, 3, passes)
	assert.Equal(t, []string{"A,1:unit->1", "A,1:1->2", "A,1:2->unit"}, events)
}

func TestDispatch_ReplayOnRegistration(t *testing.T) {
	ctx := context.Background()
	tb := New()
	require.NoError(t, tb.Set(ctx, hA, 1, 1))
	require.NoError(t, tb.Set(ctx, hA, 2, 2))
	require.NoError(t, tb.Set(ctx, hB, 1, 3))

	var rec recorder
	_, err := listen(ctx, &rec, tb.Column(hA))
	require.NoError(t, err)

	passes, events := rec.snapshot()
	assert.Equal(t, 1, passes)
	assert.Equal(t, []string{"A,1:unit->1", "A,2:unit->2"}, events)

	require.NoError(t, tb.Set(ctx, hA, 1, 5))
	_, events = rec.snapshot()
	assert.Equal(t, "A,1:1->5", events[len(events)-1])
}

func TestDispatch_SkipHistory(t *testing.T) {
	ctx := context.Background()
	tb := New()
	require.NoError(t, tb.Set(ctx, hA, 1, 1))

	var rec recorder
	l, err := On[value.Value, value.Value](tb.Column(hA)).SkipHistory().Events(ctx, rec.handle)
	require.NoError(t, err)
	assert.True(t, l.SkipHistory())

	passes, _ := rec.snapshot()
	assert.Zero(t, passes)

	require.NoError(t, tb.Set(ctx, hA, 1, 5))
	_, events := rec.snapshot()
	assert.Equal(t, []string{"A,1:1->5"}, events)
}

func TestDispatch_OffBeforeActivation(t *testing.T) {
	ctx := context.Background()
	tb := New()
	require.NoError(t, tb.Set(ctx, hA, 1, 1))

	calls := 0
	sub := On[value.Value, value.Value](tb.Cell(hA, 1))
	sub.Listener().Off()
	l, err := sub.Events(ctx, func(context.Context, *Pass, *Events[value.Value, value.Value]) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.False(t, l.Active())
	assert.Empty(t, tb.Listeners())

	require.NoError(t, tb.Set(ctx, hA, 1, 2))
	assert.Zero(t, calls)
}

func TestDispatch_OffFromHandler(t *testing.T) {
	ctx := context.Background()
	tb := New()

	calls := 0
	sub := On[value.Value, value.Value](tb.Cell(hA, 1))
	self := sub.Listener()
	_, err := sub.Events(ctx, func(context.Context, *Pass, *Events[value.Value, value.Value]) error {
		calls++
		self.Off()
		self.Off()
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, tb.Set(ctx, hA, 1, 1))
	require.NoError(t, tb.Set(ctx, hA, 1, 2))
	assert.Equal(t, 1, calls)
	assert.Empty(t, tb.Listeners())
}

func TestDispatch_Ordering(t *testing.T) {
	ctx := context.Background()
	tb := New()

	var order []string
	add := func(name string, o int64) {
		_, err := On[value.Value, value.Value](tb.Cell(hA, 0)).
			Named(name).
			Order(o).
			Events(ctx, func(_ context.Context, p *Pass, _ *Events[value.Value, value.Value]) error {
				order = append(order, p.Listener().Name())
				return nil
			})
		require.NoError(t, err)
	}
	add("third", 3)
	add("first", 1)
	add("second", 2)
	add("second-tie", 2)

	require.NoError(t, tb.Set(ctx, hA, 0, 1))
	assert.Equal(t, []string{"first", "second", "second-tie", "third"}, order)
}

func TestDispatch_HandlerErrorAbortsPass(t *testing.T) {
	ctx := context.Background()
	tb := New()
	boom := errors.New("boom")

	_, err := On[value.Value, value.Value](tb.Cell(hA, 0)).Named("failing").Order(1).
		Events(ctx, func(context.Context, *Pass, *Events[value.Value, value.Value]) error { return boom })
	require.NoError(t, err)

	var rec recorder
	_, err = On[value.Value, value.Value](tb.Cell(hA, 0)).Order(2).Events(ctx, rec.handle)
	require.NoError(t, err)

	err = tb.Set(ctx, hA, 0, 1)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failing")
	assert.Equal(t, value.Long(1), tb.Get(hA, 0), "the write itself is applied")

	passes, _ := rec.snapshot()
	assert.Zero(t, passes)
}

func TestDispatch_LoopDetected(t *testing.T) {
	ctx := context.Background()
	tb := New()
	cell := tb.Cell(hA, 1)

	_, err := On[value.Value, value.Long](cell).Named("incr").SkipHistory().
		Events(ctx, func(ctx context.Context, _ *Pass, evs *Events[value.Value, value.Long]) error {
			for ev := range evs.All() {
				if err := cell.Set(ctx, ev.New+1); err != nil {
					return err
				}
			}
			return nil
		})
	require.NoError(t, err)

	err = cell.Set(ctx, 1)
	require.Error(t, err)
	assert.True(t, IsLoopError(err))

	var le *ListenerLoopError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "incr", le.Listener)
	assert.Equal(t, value.Long(2), cell.Get())
}

func TestDispatch_LoopDetectedWhenHandlerDropsError(t *testing.T) {
	ctx := context.Background()
	tb := New()
	a, b := tb.Cell(hA, 0), tb.Cell(hB, 0)

	_, err := On[value.Value, value.Long](a).SkipHistory().
		Events(ctx, func(ctx context.Context, _ *Pass, evs *Events[value.Value, value.Long]) error {
			for ev := range evs.All() {
				_ = b.Set(ctx, ev.New)
			}
			return nil
		})
	require.NoError(t, err)
	_, err = On[value.Value, value.Long](b).SkipHistory().
		Events(ctx, func(ctx context.Context, _ *Pass, evs *Events[value.Value, value.Long]) error {
			for ev := range evs.All() {
				_ = a.Set(ctx, ev.New+1)
			}
			return nil
		})
	require.NoError(t, err)

	err = a.Set(ctx, 1)
	assert.True(t, IsLoopError(err))
}

func TestDispatch_LoopDetectedThroughOtherCell(t *testing.T) {
	ctx := context.Background()
	tb := New()
	col := tb.Column(hA)

	_, err := On[value.Value, value.Long](col).Named("walker").SkipHistory().
		Events(ctx, func(ctx context.Context, _ *Pass, evs *Events[value.Value, value.Long]) error {
			for ev := range evs.All() {
				if err := col.Cell(ev.Cell.Index()+1).Set(ctx, ev.New+1); err != nil {
					return err
				}
			}
			return nil
		})
	require.NoError(t, err)

	err = col.Cell(0).Set(ctx, 1)
	require.Error(t, err)
	assert.True(t, IsLoopError(err))
	assert.False(t, IsQuotaError(err))

	var le *ListenerLoopError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "walker", le.Listener)
	assert.Len(t, le.Chain, 1)
	assert.Equal(t, le.Error(), err.Error(), "nested passes do not prefix the error")

	assert.Equal(t, value.Long(2), col.Cell(1).Get())
	assert.False(t, col.Cell(2).Contains())
}

func TestDispatch_LoopAcrossListenersKeepsChain(t *testing.T) {
	ctx := context.Background()
	tb := New()
	a, b, c := tb.Cell(hA, 0), tb.Cell(hB, 0), tb.Cell(hC, 0)

	forward := func(to CellRef) Handler[value.Value, value.Long] {
		return func(ctx context.Context, _ *Pass, evs *Events[value.Value, value.Long]) error {
			for ev := range evs.All() {
				if err := to.Set(ctx, ev.New+1); err != nil {
					return err
				}
			}
			return nil
		}
	}
	_, err := On[value.Value, value.Long](a).Named("ab").SkipHistory().Events(ctx, forward(b))
	require.NoError(t, err)
	_, err = On[value.Value, value.Long](b).Named("bc").SkipHistory().Events(ctx, forward(c))
	require.NoError(t, err)
	_, err = On[value.Value, value.Long](c).Named("ca").SkipHistory().Events(ctx, forward(tb.Cell(hA, 1)))
	require.NoError(t, err)
	_, err = On[value.Value, value.Long](tb.Cell(hA, 1)).Named("back").SkipHistory().Events(ctx, forward(a))
	require.NoError(t, err)

	err = a.Set(ctx, 1)
	var le *ListenerLoopError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "ab", le.Listener)
	require.Len(t, le.Chain, 4)
	assert.Contains(t, le.Chain[0], "ab@")
	assert.Contains(t, le.Chain[3], "back@")
	assert.Equal(t, le.Error(), err.Error())
}

func TestDispatch_AllowLoopConverges(t *testing.T) {
	ctx := context.Background()
	tb := New()
	cell := tb.Cell(hA, 1)
	require.NoError(t, cell.Set(ctx, 1))

	l, err := On[value.Value, value.Long](cell).AllowLoop().
		Events(ctx, func(ctx context.Context, _ *Pass, evs *Events[value.Value, value.Long]) error {
			for ev := range evs.All() {
				if ev.New < 1000 {
					next, err := cell.Add(1)
					if err != nil {
						return err
					}
					if err := cell.Set(ctx, next); err != nil {
						return err
					}
				}
			}
			return nil
		})
	require.NoError(t, err)
	assert.True(t, l.AllowLoop())
	assert.Equal(t, value.Long(1000), cell.Get())
}

func TestDispatch_QuotaBoundsRunawayLoops(t *testing.T) {
	ctx := context.Background()
	tb := New(WithMaxSteps(10))
	cell := tb.Cell(hA, 0)
	require.NoError(t, cell.Set(ctx, 0))

	_, err := On[value.Value, value.Long](cell).AllowLoop().
		Events(ctx, func(ctx context.Context, _ *Pass, evs *Events[value.Value, value.Long]) error {
			for ev := range evs.All() {
				if err := cell.Set(ctx, ev.New+1); err != nil {
					return err
				}
			}
			return nil
		})
	require.Error(t, err)
	assert.True(t, IsQuotaError(err))

	var se *StepsExceededError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 10, se.Limit)
}

func TestDispatch_TypeFilteredChain(t *testing.T) {
	ctx := context.Background()
	tb := New()

	_, err := On[value.Value, value.String](tb.Column(hA)).Order(1).
		Events(ctx, func(ctx context.Context, p *Pass, evs *Events[value.Value, value.String]) error {
			for ev := range evs.All() {
				if err := p.NewTable().Set(ctx, ev.Cell.Header(), ev.Cell.Index(), len(ev.New)); err != nil {
					return err
				}
			}
			return nil
		})
	require.NoError(t, err)

	var lengths []value.Long
	_, err = On[value.Value, value.Long](tb.Column(hA)).Order(2).
		Events(ctx, func(_ context.Context, _ *Pass, evs *Events[value.Value, value.Long]) error {
			for ev := range evs.All() {
				lengths = append(lengths, ev.New)
			}
			return nil
		})
	require.NoError(t, err)

	require.NoError(t, tb.Set(ctx, hA, 1, "hello"))
	assert.Equal(t, []value.Long{5}, lengths)
	assert.Equal(t, value.String("hello"), tb.Get(hA, 1), "snapshot writes stay out of live storage")

	require.NoError(t, tb.Set(ctx, hA, 1, true))
	assert.Equal(t, []value.Long{5}, lengths, "booleans pass neither filter")
}

func TestDispatch_FilterOnOldType(t *testing.T) {
	ctx := context.Background()
	tb := New()

	var seen []string
	_, err := On[value.String, value.Value](tb.Cell(hA, 0)).
		Events(ctx, func(_ context.Context, _ *Pass, evs *Events[value.String, value.Value]) error {
			for ev := range evs.All() {
				seen = append(seen, string(ev.Old)+"->"+ev.New.String())
			}
			return nil
		})
	require.NoError(t, err)

	require.NoError(t, tb.Set(ctx, hA, 0, "x"))
	require.NoError(t, tb.Set(ctx, hA, 0, 3))
	require.NoError(t, tb.Set(ctx, hA, 0, "y"))
	assert.Equal(t, []string{"x->3"}, seen)
}

func TestDispatch_SharedSnapshots(t *testing.T) {
	ctx := context.Background()
	tb := New()

	var tokens []string
	_, err := On[value.Value, value.Value](tb.Cell(hA, 0)).Order(1).SkipHistory().
		Events(ctx, func(ctx context.Context, p *Pass, _ *Events[value.Value, value.Value]) error {
			tokens = append(tokens, p.Token())
			return p.NewTable().Set(ctx, hB, 0, "from first")
		})
	require.NoError(t, err)

	var seen value.Value
	var old value.Value
	_, err = On[value.Value, value.Value](tb.Cell(hA, 0)).Order(2).SkipHistory().
		Events(ctx, func(_ context.Context, p *Pass, evs *Events[value.Value, value.Value]) error {
			tokens = append(tokens, p.Token())
			seen = p.NewTable().Get(hB, 0)
			old = p.Old(tb.Cell(hA, 0))
			return nil
		})
	require.NoError(t, err)

	require.NoError(t, tb.Set(ctx, hA, 0, 1))
	require.NoError(t, tb.Set(ctx, hA, 0, 2))
	assert.Equal(t, value.String("from first"), seen)
	assert.Equal(t, value.Long(1), old)
	assert.Equal(t, value.Unit{}, tb.Get(hB, 0))
	require.Len(t, tokens, 4)
	assert.Equal(t, tokens[0], tokens[1])
	assert.NotEqual(t, tokens[1], tokens[2])
}

func TestDispatch_UnionDeliversPerMember(t *testing.T) {
	ctx := context.Background()
	tb := New()
	var rec recorder
	_, err := listen(ctx, &rec, tb.Cell(hA, 1).Or(tb.Column(hA)))
	require.NoError(t, err)

	require.NoError(t, tb.Set(ctx, hA, 1, 1))
	_, events := rec.snapshot()
	assert.Equal(t, []string{"A,1:unit->1", "A,1:unit->1"}, events)
}

func TestDispatch_RowRefOneEventPerChangedColumn(t *testing.T) {
	ctx := context.Background()
	tb := New()
	require.NoError(t, tb.Set(ctx, hC, 1, "same"))

	var rec recorder
	_, err := On[value.Value, value.Value](tb.Row(1)).SkipHistory().Events(ctx, rec.handle)
	require.NoError(t, err)

	require.NoError(t, tb.Batch(ctx, func(ctx context.Context) error {
		for _, h := range []Header{hA, hB, hC} {
			if err := tb.Set(ctx, h, 1, "same"); err != nil {
				return err
			}
		}
		return tb.Set(ctx, hA, 2, "other row")
	}))

	passes, events := rec.snapshot()
	assert.Equal(t, 1, passes)
	assert.Equal(t, []string{"A,1:unit->same", "B,1:unit->same"}, events)
}

func TestDispatch_RegistrationValidation(t *testing.T) {
	ctx := context.Background()
	tb := New()
	other := New()
	h := (&recorder{}).handle

	_, err := On[value.Value, value.Value](tb.RowAt(1, AtOrAfter)).Events(ctx, h)
	assert.True(t, IsInvalidRow(err))

	_, err = On[value.Value, value.Value](tb.Row(1).To(tb.RowAt(5, Before))).Events(ctx, h)
	assert.True(t, IsInvalidRow(err))

	_, err = On[value.Value, value.Value](tb.Cell(hA, 0), other.Cell(hA, 0)).Events(ctx, h)
	assert.True(t, IsInvalidTable(err))

	_, err = On[value.Value, value.Value]().Events(ctx, h)
	assert.True(t, IsInvalidTable(err))

	sub := On[value.Value, value.Value](tb.Cell(hA, 0))
	_, err = sub.Events(ctx, h)
	require.NoError(t, err)
	_, err = sub.Events(ctx, h)
	assert.Error(t, err, "a subscription activates once")
}

func TestEvents_Helpers(t *testing.T) {
	ctx := context.Background()
	tb := New()
	require.NoError(t, tb.Set(ctx, hA, 0, 1))
	require.NoError(t, tb.Set(ctx, hA, 1, "s"))
	require.NoError(t, tb.Set(ctx, hA, 2, 3))

	var captured *Events[value.Value, value.Value]
	_, err := On[value.Value, value.Value](tb.Column(hA)).
		Events(ctx, func(_ context.Context, _ *Pass, evs *Events[value.Value, value.Value]) error {
			captured = evs
			return nil
		})
	require.NoError(t, err)
	require.NotNil(t, captured)

	assert.Equal(t, 3, captured.Len())
	assert.True(t, captured.Any(func(ev Event[value.Value, value.Value]) bool {
		return ev.New.Kind() == value.KindString
	}))

	var longs []value.Long
	for ev := range Narrow[value.Value, value.Long](captured) {
		longs = append(longs, ev.New)
	}
	assert.Equal(t, []value.Long{1, 3}, longs)

	first, second := 0, 0
	for range captured.All() {
		first++
	}
	for range captured.All() {
		second++
	}
	assert.Equal(t, first, second, "events replay")

	stop := errors.New("stop")
	n := 0
	err = captured.ForEach(func(Event[value.Value, value.Value]) error {
		n++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, n)

	evs := captured.Slice()
	assert.True(t, evs[0].Equal(evs[0]))
	assert.False(t, evs[0].Equal(evs[2]))
}
