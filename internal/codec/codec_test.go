package codec

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cellsync/internal/table"
	"github.com/roach88/cellsync/internal/value"
)

func sample(t *testing.T) *table.Table {
	t.Helper()
	ctx := context.Background()
	tb := table.New()

	huge, ok := new(big.Int).SetString("-340282366920938463463374607431768211457", 10)
	require.True(t, ok)

	cells := []struct {
		h table.Header
		i int64
		v any
	}{
		{table.H("num", "long"), -5, math.MinInt64},
		{table.H("num", "long"), 7, int64(math.MaxInt64)},
		{table.H("num", "double"), 0, math.NaN()},
		{table.H("num", "double"), 1, math.Copysign(0, -1)},
		{table.H("num", "double"), 2, 0.1},
		{table.H("num", "big"), 0, huge},
		{table.H("num", "dec"), 0, decimal.RequireFromString("-12.3400")},
		{table.H("text"), 3, "héllo\x00world"},
		{table.H("flag"), 1 << 40, true},
		{table.H("flag"), 2, false},
	}
	for _, c := range cells {
		require.NoError(t, tb.Set(ctx, c.h, c.i, c.v))
	}
	tb.Column(table.H("empty"))
	return tb
}

func assertSameTable(t *testing.T, want, got *table.Table) {
	t.Helper()
	require.Equal(t, want.Headers(), got.Headers())
	for _, h := range want.Headers() {
		wc, gc := table.Materialize(want.Column(h)), table.Materialize(got.Column(h))
		require.Len(t, gc, len(wc), "column %s", h)
		for i := range wc {
			assert.Equal(t, wc[i].Index(), gc[i].Index())
			wv, gv := wc[i].Get(), gc[i].Get()
			assert.True(t, value.Equal(wv, gv), "%s[%d]: want %s got %s", h, wc[i].Index(), wv, gv)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, compressed := range []bool{false, true} {
		name := "plain"
		if compressed {
			name = "zstd"
		}
		t.Run(name, func(t *testing.T) {
			src := sample(t)
			data, err := Marshal(src, WithCompression(compressed))
			require.NoError(t, err)
			assert.Equal(t, Magic, string(data[:4]))
			assert.Equal(t, Version, binary.BigEndian.Uint32(data[4:8]))
			if compressed {
				assert.Equal(t, flagZstd, data[8])
			}

			got, err := Unmarshal(data)
			require.NoError(t, err)
			assertSameTable(t, src, got)
		})
	}
}

func TestDecodeInto_SinglePass(t *testing.T) {
	ctx := context.Background()
	data, err := Marshal(sample(t))
	require.NoError(t, err)

	dst := table.New()
	passes, events := 0, 0
	_, err = table.On[value.Value, value.Value](dst.All()).
		Events(ctx, func(_ context.Context, _ *table.Pass, evs *table.Events[value.Value, value.Value]) error {
			passes++
			events += evs.Len()
			return nil
		})
	require.NoError(t, err)

	require.NoError(t, DecodeInto(ctx, bytes.NewReader(data), dst))
	assert.Equal(t, 1, passes)
	assert.Equal(t, 10, events)
}

func TestDecode_Rejects(t *testing.T) {
	good, err := Marshal(sample(t))
	require.NoError(t, err)

	future := bytes.Clone(good)
	binary.BigEndian.PutUint32(future[4:8], Version+1)

	badTag := bytes.Clone(good)
	// First column: 1 column, 2 labels "num","long", 2 cells, index -5, tag.
	tagPos := 9 + 1 + 1 + 4 + 5 + 1 + 1
	require.Equal(t, byte(value.KindLong), badTag[tagPos])
	badTag[tagPos] = 0x7f

	badFlags := bytes.Clone(good)
	badFlags[8] = 0x80

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"empty", nil, "truncated header"},
		{"magic", append([]byte("NOPE"), good[4:]...), "bad magic"},
		{"future version", future, "unsupported version"},
		{"zero version", append(append([]byte(Magic), 0, 0, 0, 0), good[8:]...), "unsupported version"},
		{"flags", badFlags, "unknown flags"},
		{"unknown tag", badTag, "unknown value tag"},
		{"truncated body", good[:len(good)-3], "invalid storage"},
		{"trailing bytes", append(bytes.Clone(good), 0), "trailing bytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal(tt.data)
			require.Error(t, err)
			assert.True(t, IsInvalidStorage(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDecode_FutureVersionReportsVersion(t *testing.T) {
	data, err := Marshal(table.New())
	require.NoError(t, err)
	binary.BigEndian.PutUint32(data[4:8], 9)

	_, err = Unmarshal(data)
	var se *InvalidStorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, uint32(9), se.Version)
}
