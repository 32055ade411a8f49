package trace

import (
	"bytes"
	"fmt"

	"github.com/roach88/cellsync/internal/table"
	"github.com/roach88/cellsync/internal/value"
)

// Record is one delivered event.
type Record struct {
	Pass     string
	Seq      int64 // position within the pass delivery
	Table    string
	Listener string
	Header   []string
	Row      int64
	Old      value.Value
	New      value.Value
}

// Capture converts the events one listener received in a pass.
func Capture(p *table.Pass, listener string, evs *table.Events[value.Value, value.Value]) []Record {
	out := make([]Record, 0, evs.Len())
	var seq int64
	for ev := range evs.All() {
		out = append(out, Record{
			Pass:     p.Token(),
			Seq:      seq,
			Table:    p.Table().Name(),
			Listener: listener,
			Header:   ev.Cell.Header().Labels(),
			Row:      ev.Cell.Index(),
			Old:      ev.OldValue(),
			New:      ev.NewValue(),
		})
		seq++
	}
	return out
}

// Object returns the canonical object form of r.
func (r Record) Object() map[string]any {
	return map[string]any{
		"pass":     r.Pass,
		"seq":      r.Seq,
		"table":    r.Table,
		"listener": r.Listener,
		"header":   r.Header,
		"row":      r.Row,
		"old":      EncodeValue(r.Old),
		"new":      EncodeValue(r.New),
	}
}

// Cell formats the coordinate as header/labels[row].
func (r Record) Cell() string {
	return fmt.Sprintf("%s[%d]", table.H(r.Header...), r.Row)
}

func (r Record) String() string {
	return fmt.Sprintf("%s %s: %s -> %s", r.Listener, r.Cell(), describe(r.Old), describe(r.New))
}

func describe(v value.Value) string {
	v = value.Normalize(v)
	if value.IsUnit(v) {
		return "unit"
	}
	return v.Kind().String() + "(" + Text(v) + ")"
}

// MarshalLines renders records as canonical JSON, one record per line.
func MarshalLines(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	for i, r := range records {
		line, err := Marshal(r.Object())
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
