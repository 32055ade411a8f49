package table

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/cellsync/internal/value"
)

var (
	hA   = H("A")
	hB   = H("B")
	hC   = H("C")
	hSum = H("Sum")
)

// recorder collects events as "header,index:old->new" strings.
type recorder struct {
	mu     sync.Mutex
	passes int
	events []string
}

func (r *recorder) handle(_ context.Context, _ *Pass, evs *Events[value.Value, value.Value]) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.passes++
	for ev := range evs.All() {
		r.events = append(r.events, format(ev.Cell, ev.Old, ev.New))
	}
	return nil
}

func (r *recorder) snapshot() (int, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.passes, append([]string(nil), r.events...)
}

func format(c CellRef, old, new value.Value) string {
	return fmt.Sprintf("%s,%d:%s->%s", c.Header(), c.Index(), old, new)
}

func listen(ctx context.Context, r *recorder, refs ...Ref) (*Listener, error) {
	return On[value.Value, value.Value](refs...).Events(ctx, r.handle)
}
