package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cellsync/internal/codec"
	"github.com/roach88/cellsync/internal/table"
	"github.com/roach88/cellsync/internal/trace"
	"github.com/roach88/cellsync/internal/value"
)

func createTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestOpen_Pragmas(t *testing.T) {
	s, _ := createTestStore(t)
	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("synchronous", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))

	v, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, v)
}

func TestOpen_Idempotent(t *testing.T) {
	s, path := createTestStore(t)
	require.NoError(t, s.Close())

	again, err := Open(path)
	require.NoError(t, err)
	defer again.Close()
	v, err := again.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, v)
}

func TestOpen_MigratesVersionOne(t *testing.T) {
	s, path := createTestStore(t)
	_, err := s.DB().Exec("DROP INDEX idx_events_table")
	require.NoError(t, err)
	_, err = s.DB().Exec("PRAGMA user_version = 1")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	again, err := Open(path)
	require.NoError(t, err)
	defer again.Close()

	var n int
	require.NoError(t, again.DB().QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = 'idx_events_table'`,
	).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	s, path := createTestStore(t)
	_, err := s.DB().Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(path)
	require.Error(t, err)
	assert.True(t, codec.IsInvalidStorage(err))
}

func TestSnapshots(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t)

	tb := table.New()
	require.NoError(t, tb.Set(ctx, table.H("A"), 0, 1))
	require.NoError(t, tb.Set(ctx, table.H("B"), 2, "two"))

	first, err := s.WriteSnapshot(ctx, "sheet", tb)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Seq)

	require.NoError(t, tb.Set(ctx, table.H("A"), 0, 5))
	second, err := s.WriteSnapshot(ctx, "sheet", tb)
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Seq)

	_, err = s.WriteSnapshot(ctx, "other", table.New())
	require.NoError(t, err)

	got, info, err := s.ReadSnapshot(ctx, "sheet")
	require.NoError(t, err)
	assert.Equal(t, int64(2), info.Seq)
	assert.Equal(t, value.Long(5), got.Get(table.H("A"), 0))
	assert.Equal(t, value.String("two"), got.Get(table.H("B"), 2))

	list, err := s.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "other", list[0].Table)
	assert.Equal(t, "sheet", list[1].Table)
	assert.Equal(t, int64(1), list[1].Seq)
	assert.Equal(t, codec.Version, list[2].CodecVersion)
	assert.Positive(t, list[2].Size)

	_, _, err = s.ReadSnapshot(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRestoreSnapshot_SinglePass(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t)

	src := table.New()
	for i := range int64(5) {
		require.NoError(t, src.Set(ctx, table.H("A"), i, i))
	}
	_, err := s.WriteSnapshot(ctx, "sheet", src)
	require.NoError(t, err)

	dst := table.New()
	passes := 0
	_, err = table.On[value.Value, value.Value](dst.All()).
		Events(ctx, func(context.Context, *table.Pass, *table.Events[value.Value, value.Value]) error {
			passes++
			return nil
		})
	require.NoError(t, err)

	_, err = s.RestoreSnapshot(ctx, "sheet", dst)
	require.NoError(t, err)
	assert.Equal(t, 1, passes)
	assert.Len(t, table.Values(dst.All()), 5)
	assert.Equal(t, value.Long(4), dst.Get(table.H("A"), 4))
}

func TestReadSnapshot_CorruptPayload(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t)
	_, err := s.DB().Exec(
		`INSERT INTO snapshots (table_name, seq, codec_version, payload) VALUES ('bad', 1, 1, X'00')`)
	require.NoError(t, err)

	_, _, err = s.ReadSnapshot(ctx, "bad")
	require.Error(t, err)
	assert.True(t, codec.IsInvalidStorage(err))
}

func TestEvents_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t)

	dec, err := value.ParseBigDecimal("2.50")
	require.NoError(t, err)
	records := []trace.Record{
		{Pass: "p1", Seq: 0, Table: "sheet", Listener: "watch", Header: []string{"A", "x"}, Row: -3, Old: value.Unit{}, New: value.Long(1)},
		{Pass: "p1", Seq: 1, Table: "sheet", Listener: "watch", Header: []string{"B"}, Row: 7, Old: value.String("a"), New: dec},
		{Pass: "p2", Seq: 0, Table: "sheet", Listener: "watch", Header: []string{"A", "x"}, Row: -3, Old: value.Long(1), New: value.Double(0.5)},
	}
	require.NoError(t, s.WriteEvents(ctx, records))
	require.NoError(t, s.WriteEvents(ctx, records[:1]), "duplicates are ignored")

	got, err := s.ReadEvents(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"A", "x"}, got[0].Header)
	assert.Equal(t, int64(-3), got[0].Row)
	assert.True(t, value.Equal(dec, got[1].New))

	all, err := s.ReadTableEvents(ctx, "sheet")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := s.ReadEvents(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestJournal(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t)

	reg := table.NewRegistry(table.WithPassTokens(table.NewFixedGenerator("pass-1", "pass-2")))
	tb := reg.Table("sheet")
	require.NoError(t, tb.Set(ctx, table.H("A"), 0, 1))

	j, err := NewJournal(ctx, s, tb, "journal")
	require.NoError(t, err)

	require.NoError(t, tb.Batch(ctx, func(ctx context.Context) error {
		if err := tb.Set(ctx, table.H("A"), 0, 2); err != nil {
			return err
		}
		return tb.Set(ctx, table.H("B"), 1, "b")
	}))

	got, err := s.ReadEvents(ctx, "pass-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "journal A[0]: long(1) -> long(2)", got[0].String())
	assert.Equal(t, "journal B[1]: unit -> string(b)", got[1].String())
	assert.Equal(t, "sheet", got[1].Table)

	j.Close()
	require.NoError(t, tb.Set(ctx, table.H("A"), 0, 3))
	all, err := s.ReadTableEvents(ctx, "sheet")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestEvents_StringValuesRoundTripExactly(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t)

	decomposed, invalid := value.String("e\u0301"), value.String("\xff")
	records := []trace.Record{
		{Pass: "p1", Seq: 0, Table: "sheet", Listener: "journal", Header: []string{"A"}, Row: 0, Old: value.Unit{}, New: decomposed},
		{Pass: "p1", Seq: 1, Table: "sheet", Listener: "journal", Header: []string{"A"}, Row: 1, Old: decomposed, New: invalid},
	}
	require.NoError(t, s.WriteEvents(ctx, records))

	got, err := s.ReadEvents(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, decomposed, got[0].New)
	assert.Equal(t, decomposed, got[1].Old)
	assert.Equal(t, invalid, got[1].New)
}
