package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/cellsync/internal/trace"
)

// WriteEvents appends records in one transaction. Rewriting the same
// (pass, listener, seq) is ignored.
func (s *Store) WriteEvents(ctx context.Context, records []trace.Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write events: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events
		(pass_token, seq, table_name, listener, header, row_index, old_value, new_value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("write events: prepare: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		header, err := trace.Marshal(r.Header)
		if err != nil {
			return fmt.Errorf("write events: record %d header: %w", i, err)
		}
		oldJSON, err := trace.MarshalValue(r.Old)
		if err != nil {
			return fmt.Errorf("write events: record %d old: %w", i, err)
		}
		newJSON, err := trace.MarshalValue(r.New)
		if err != nil {
			return fmt.Errorf("write events: record %d new: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx,
			r.Pass, r.Seq, r.Table, r.Listener, string(header), r.Row, string(oldJSON), string(newJSON),
		); err != nil {
			return fmt.Errorf("write events: record %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write events: commit: %w", err)
	}
	return nil
}

// ReadEvents returns the events of one pass in delivery order.
func (s *Store) ReadEvents(ctx context.Context, passToken string) ([]trace.Record, error) {
	return s.QueryEvents(ctx, EventQuery{Pass: passToken})
}

// ReadTableEvents returns every journaled event of a table in write order.
func (s *Store) ReadTableEvents(ctx context.Context, tableName string) ([]trace.Record, error) {
	return s.QueryEvents(ctx, EventQuery{Table: tableName})
}

// QueryEvents returns the events matching q in write order.
func (s *Store) QueryEvents(ctx context.Context, q EventQuery) ([]trace.Record, error) {
	query, args := q.SQL()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	out := []trace.Record{}
	for rows.Next() {
		r, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

func scanEvent(rows *sql.Rows) (trace.Record, error) {
	var r trace.Record
	var header, oldJSON, newJSON string
	if err := rows.Scan(&r.Pass, &r.Seq, &r.Table, &r.Listener, &header, &r.Row, &oldJSON, &newJSON); err != nil {
		return r, fmt.Errorf("scan event: %w", err)
	}
	if err := json.Unmarshal([]byte(header), &r.Header); err != nil {
		return r, fmt.Errorf("decode header %q: %w", header, err)
	}
	var err error
	if r.Old, err = trace.UnmarshalValue([]byte(oldJSON)); err != nil {
		return r, err
	}
	if r.New, err = trace.UnmarshalValue([]byte(newJSON)); err != nil {
		return r, err
	}
	return r, nil
}
