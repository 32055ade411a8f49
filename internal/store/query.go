package store

import (
	"strings"
)

const eventColumns = "pass_token, seq, table_name, listener, header, row_index, old_value, new_value"

// EventQuery selects journaled events. Zero fields match everything.
type EventQuery struct {
	Pass     string
	Table    string
	Listener string
	Row      *int64
	Limit    int
}

// SQL compiles q to a parameterized SELECT. Values are always bound as
// parameters, and results are always ordered by insertion id so reads are
// deterministic.
func (q EventQuery) SQL() (string, []any) {
	var where []string
	var args []any
	eq := func(col string, v any) {
		where = append(where, col+" = ?")
		args = append(args, v)
	}
	if q.Pass != "" {
		eq("pass_token", q.Pass)
	}
	if q.Table != "" {
		eq("table_name", q.Table)
	}
	if q.Listener != "" {
		eq("listener", q.Listener)
	}
	if q.Row != nil {
		eq("row_index", *q.Row)
	}

	var b strings.Builder
	b.WriteString("SELECT " + eventColumns + " FROM events")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY id ASC")
	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}
	return b.String(), args
}
