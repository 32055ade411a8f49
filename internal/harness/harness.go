package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/cellsync/internal/aggregate"
	"github.com/roach88/cellsync/internal/table"
	"github.com/roach88/cellsync/internal/testutil"
	"github.com/roach88/cellsync/internal/trace"
	"github.com/roach88/cellsync/internal/value"
	"github.com/roach88/cellsync/internal/workbook"
)

// Harness executes one scenario against a fresh registry.
type Harness struct {
	scenario  *Scenario
	registry  *table.Registry
	listeners map[string]*table.Listener
	result    *Result
}

// Run executes a scenario and returns its result. Step and assertion
// failures are reported in the result; the error covers setup failures
// such as an unloadable workbook.
func Run(ctx context.Context, sc *Scenario) (*Result, error) {
	tokens := testutil.NewSequentialTokens(sc.PassPrefix)
	opts := []table.Option{
		table.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		table.WithPassTokens(tokens),
	}
	if sc.MaxSteps > 0 {
		opts = append(opts, table.WithMaxSteps(sc.MaxSteps))
	}

	h := &Harness{
		scenario:  sc,
		registry:  table.NewRegistry(opts...),
		listeners: make(map[string]*table.Listener),
		result:    NewResult(),
	}

	if sc.Workbook != "" {
		wb, err := workbook.Load(sc.Workbook)
		if err != nil {
			return nil, fmt.Errorf("load workbook: %w", err)
		}
		if _, err := wb.Apply(ctx, h.registry); err != nil {
			return nil, fmt.Errorf("apply workbook: %w", err)
		}
	}

	for i, st := range sc.Steps {
		if err := h.runStep(ctx, st); err != nil {
			h.result.AddError(fmt.Sprintf("steps[%d]: %v", i, err))
			break
		}
	}

	for _, msg := range EvaluateAssertions(h.result, sc.Assertions, h.registry, sc.Table) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

// runStep executes st and checks its error against ExpectError.
func (h *Harness) runStep(ctx context.Context, st Step) error {
	err := h.execute(ctx, st)
	switch {
	case st.ExpectError == "" && err != nil:
		return fmt.Errorf("unexpected error: %w", err)
	case st.ExpectError != "" && err == nil:
		return fmt.Errorf("expected %s error, got none", st.ExpectError)
	case st.ExpectError != "" && !errorMatches(st.ExpectError, err):
		return fmt.Errorf("expected %s error, got: %w", st.ExpectError, err)
	}
	return nil
}

func (h *Harness) runSteps(ctx context.Context, steps []Step) error {
	for i, st := range steps {
		if err := h.runStep(ctx, st); err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
	}
	return nil
}

func (h *Harness) execute(ctx context.Context, st Step) error {
	switch {
	case st.Set != nil:
		return h.cell(st.Set.Coord).Set(ctx, st.Set.Value.Get())
	case st.Add != nil:
		c := h.cell(st.Add.Coord)
		sum, err := c.Add(st.Add.Value.Get())
		if err != nil {
			return err
		}
		return c.Set(ctx, sum)
	case st.Clear != nil:
		return h.cell(st.Clear.Coord).Clear(ctx)
	case st.Batch != nil:
		return h.table("").Batch(ctx, func(ctx context.Context) error {
			return h.runSteps(ctx, st.Batch)
		})
	case st.Subscribe != nil:
		return h.subscribe(ctx, st.Subscribe)
	case st.Link != nil:
		return h.link(ctx, st.Link)
	case st.Off != "":
		l, ok := h.listeners[st.Off]
		if !ok {
			return fmt.Errorf("off: unknown listener %q", st.Off)
		}
		l.Off()
		return nil
	}
	return fmt.Errorf("empty step")
}

func (h *Harness) table(name string) *table.Table {
	if name == "" {
		name = h.scenario.Table
	}
	return h.registry.Table(name)
}

func (h *Harness) cell(c Coord) table.CellRef {
	return h.table(c.Table).Cell(header(c.Column), c.Row)
}

func (h *Harness) target(t *table.Table, tg Target) table.Ref {
	switch {
	case tg.All:
		return t.All()
	case tg.To != nil:
		from := t.Cell(header(tg.Column), *tg.Row)
		return from.To(t.Cell(header(tg.To.Column), tg.To.Row))
	case tg.Column != "" && tg.Row != nil:
		return t.Cell(header(tg.Column), *tg.Row)
	case tg.Column != "":
		return t.Column(header(tg.Column))
	default:
		return t.Row(*tg.Row)
	}
}

func (h *Harness) subscribe(ctx context.Context, s *SubscribeStep) error {
	if _, dup := h.listeners[s.Name]; dup {
		return fmt.Errorf("subscribe: listener %q already exists", s.Name)
	}
	t := h.table(s.Table)
	sub := table.On[value.Value, value.Value](h.target(t, s.Target)).
		Named(s.Name).
		Order(s.Order)
	if s.AllowLoop {
		sub = sub.AllowLoop()
	}
	if s.SkipHistory {
		sub = sub.SkipHistory()
	}
	// Registered before Events so steps run during replay can refer to it.
	h.listeners[s.Name] = sub.Listener()
	_, err := sub.Events(ctx, func(ctx context.Context, p *table.Pass, evs *table.Events[value.Value, value.Value]) error {
		h.result.AddTrace(trace.Capture(p, s.Name, evs)...)
		return h.runSteps(ctx, s.Then)
	})
	return err
}

func (h *Harness) link(ctx context.Context, l *LinkStep) error {
	t := h.table(l.Table)
	src := t
	if l.From.Table != "" {
		src = h.table(l.From.Table)
	}
	from := src.Cell(header(l.From.Column), l.From.Row)
	var ref table.Ref = from
	if l.To != nil {
		ref = from.To(src.Cell(header(l.To.Column), l.To.Row))
	}
	d, err := aggregate.ByName(aggregate.Func(l.Op), ref)
	if err != nil {
		return err
	}
	_, err = t.Cell(header(l.Target.Column), l.Target.Row).Link(ctx, d)
	return err
}
