package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/cellsync/internal/codec"
	"github.com/roach88/cellsync/internal/table"
)

// ErrNotFound is returned when no snapshot exists for a table name.
var ErrNotFound = errors.New("snapshot not found")

// SnapshotInfo describes one stored snapshot.
type SnapshotInfo struct {
	ID           int64  `json:"id"`
	Table        string `json:"table"`
	Seq          int64  `json:"seq"`
	CodecVersion uint32 `json:"codec_version"`
	Size         int    `json:"size"`
}

// WriteSnapshot encodes t and stores it as the next version of name.
func (s *Store) WriteSnapshot(ctx context.Context, name string, t *table.Table) (SnapshotInfo, error) {
	payload, err := codec.Marshal(t, codec.WithCompression(true))
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("write snapshot %q: %w", name, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("write snapshot %q: begin: %w", name, err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM snapshots WHERE table_name = ?`, name,
	).Scan(&seq); err != nil {
		return SnapshotInfo{}, fmt.Errorf("write snapshot %q: next seq: %w", name, err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO snapshots (table_name, seq, codec_version, payload)
		VALUES (?, ?, ?, ?)
	`, name, seq, codec.Version, payload)
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("write snapshot %q: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("write snapshot %q: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return SnapshotInfo{}, fmt.Errorf("write snapshot %q: commit: %w", name, err)
	}
	return SnapshotInfo{ID: id, Table: name, Seq: seq, CodecVersion: codec.Version, Size: len(payload)}, nil
}

// ReadSnapshot decodes the latest snapshot of name into a new table.
func (s *Store) ReadSnapshot(ctx context.Context, name string, opts ...table.Option) (*table.Table, SnapshotInfo, error) {
	info, payload, err := s.latest(ctx, name)
	if err != nil {
		return nil, SnapshotInfo{}, err
	}
	t, err := codec.Unmarshal(payload, opts...)
	if err != nil {
		return nil, info, fmt.Errorf("read snapshot %q seq %d: %w", name, info.Seq, err)
	}
	return t, info, nil
}

// RestoreSnapshot writes the latest snapshot of name into dst in one batch.
func (s *Store) RestoreSnapshot(ctx context.Context, name string, dst *table.Table) (SnapshotInfo, error) {
	info, payload, err := s.latest(ctx, name)
	if err != nil {
		return SnapshotInfo{}, err
	}
	if err := codec.DecodeInto(ctx, bytes.NewReader(payload), dst); err != nil {
		return info, fmt.Errorf("restore snapshot %q seq %d: %w", name, info.Seq, err)
	}
	return info, nil
}

func (s *Store) latest(ctx context.Context, name string) (SnapshotInfo, []byte, error) {
	info := SnapshotInfo{Table: name}
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, seq, codec_version, payload
		FROM snapshots
		WHERE table_name = ?
		ORDER BY seq DESC
		LIMIT 1
	`, name).Scan(&info.ID, &info.Seq, &info.CodecVersion, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return info, nil, fmt.Errorf("read snapshot %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return info, nil, fmt.Errorf("read snapshot %q: %w", name, err)
	}
	info.Size = len(payload)
	return info, payload, nil
}

// ListSnapshots returns every stored snapshot ordered by table name and seq.
func (s *Store) ListSnapshots(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, table_name, seq, codec_version, LENGTH(payload)
		FROM snapshots
		ORDER BY table_name COLLATE BINARY ASC, seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	out := []SnapshotInfo{}
	for rows.Next() {
		var info SnapshotInfo
		if err := rows.Scan(&info.ID, &info.Table, &info.Seq, &info.CodecVersion, &info.Size); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}
