package codec

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/big"

	"github.com/klauspost/compress/zstd"
	"github.com/shopspring/decimal"

	"github.com/roach88/cellsync/internal/table"
	"github.com/roach88/cellsync/internal/value"
)

// Magic opens every container.
const Magic = "CSYN"

// Version is the container version written by this build.
const Version uint32 = 1

const flagZstd byte = 1 << 0

// Option configures Encode.
type Option func(*options)

type options struct {
	compress bool
}

// WithCompression enables zstd compression of the body.
//
// Default: false.
func WithCompression(on bool) Option {
	return func(o *options) {
		o.compress = on
	}
}

// Encode writes t to w.
func Encode(w io.Writer, t *table.Table, opts ...Option) error {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	body := encodeBody(t)

	var head [9]byte
	copy(head[:4], Magic)
	binary.BigEndian.PutUint32(head[4:8], Version)
	if o.compress {
		head[8] |= flagZstd
	}
	if _, err := w.Write(head[:]); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	if !o.compress {
		if _, err := w.Write(body); err != nil {
			return fmt.Errorf("write body: %w", err)
		}
		return nil
	}
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	if _, err := zw.Write(body); err != nil {
		zw.Close()
		return fmt.Errorf("write compressed body: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flush compressed body: %w", err)
	}
	return nil
}

// Marshal encodes t into a byte slice.
func Marshal(t *table.Table, opts ...Option) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, t, opts...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeBody(t *table.Table) []byte {
	var buf bytes.Buffer
	headers := t.Headers()
	putUvarint(&buf, uint64(len(headers)))
	for _, h := range headers {
		labels := h.Labels()
		putUvarint(&buf, uint64(len(labels)))
		for _, l := range labels {
			putString(&buf, l)
		}
		cells := table.Materialize(t.Column(h))
		putUvarint(&buf, uint64(len(cells)))
		for _, c := range cells {
			putVarint(&buf, c.Index())
			putValue(&buf, c.Get())
		}
	}
	return buf.Bytes()
}

func putUvarint(buf *bytes.Buffer, n uint64) {
	buf.Write(binary.AppendUvarint(nil, n))
}

func putVarint(buf *bytes.Buffer, n int64) {
	buf.Write(binary.AppendVarint(nil, n))
}

func putString(buf *bytes.Buffer, s string) {
	putUvarint(buf, uint64(len(s)))
	buf.WriteString(s)
}

func putBigInt(buf *bytes.Buffer, i *big.Int) {
	buf.WriteByte(byte(i.Sign() + 1)) // 0 negative, 1 zero, 2 positive
	mag := i.Bytes()
	putUvarint(buf, uint64(len(mag)))
	buf.Write(mag)
}

func putValue(buf *bytes.Buffer, v value.Value) {
	buf.WriteByte(byte(v.Kind()))
	switch x := v.(type) {
	case value.Bool:
		if x {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case value.String:
		putString(buf, string(x))
	case value.Long:
		putVarint(buf, int64(x))
	case value.Double:
		buf.Write(binary.BigEndian.AppendUint64(nil, math.Float64bits(float64(x))))
	case value.BigInteger:
		putBigInt(buf, x.Int())
	case value.BigDecimal:
		d := x.Decimal()
		putVarint(buf, int64(d.Exponent()))
		putBigInt(buf, d.Coefficient())
	}
}

// Decode reads a container into a new table.
func Decode(r io.Reader, opts ...table.Option) (*table.Table, error) {
	t := table.New(opts...)
	if err := DecodeInto(context.Background(), r, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Unmarshal decodes data into a new table.
func Unmarshal(data []byte, opts ...table.Option) (*table.Table, error) {
	return Decode(bytes.NewReader(data), opts...)
}

// DecodeInto reads a container and writes its cells into dst inside one
// batch, so listeners on dst observe the load as a single pass.
func DecodeInto(ctx context.Context, r io.Reader, dst *table.Table) error {
	body, err := readBody(r)
	if err != nil {
		return err
	}
	cols, err := parseBody(body)
	if err != nil {
		return err
	}
	return dst.Batch(ctx, func(ctx context.Context) error {
		for _, col := range cols {
			ref := dst.Column(col.header)
			for _, c := range col.cells {
				if err := ref.Cell(c.index).Set(ctx, c.v); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func readBody(r io.Reader) ([]byte, error) {
	var head [9]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, &InvalidStorageError{Reason: "truncated header", Err: err}
	}
	if string(head[:4]) != Magic {
		return nil, &InvalidStorageError{Reason: fmt.Sprintf("bad magic %q", head[:4])}
	}
	version := binary.BigEndian.Uint32(head[4:8])
	if version == 0 || version > Version {
		return nil, &InvalidStorageError{
			Version: version,
			Reason:  fmt.Sprintf("unsupported version, this build reads up to %d", Version),
		}
	}
	flags := head[8]
	if flags&^flagZstd != 0 {
		return nil, &InvalidStorageError{Version: version, Reason: fmt.Sprintf("unknown flags %#x", flags)}
	}

	if flags&flagZstd == 0 {
		body, err := io.ReadAll(r)
		if err != nil {
			return nil, &InvalidStorageError{Version: version, Reason: "read body", Err: err}
		}
		return body, nil
	}
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, &InvalidStorageError{Version: version, Reason: "open compressed body", Err: err}
	}
	defer zr.Close()
	body, err := io.ReadAll(zr)
	if err != nil {
		return nil, &InvalidStorageError{Version: version, Reason: "decompress body", Err: err}
	}
	return body, nil
}

type decodedCell struct {
	index int64
	v     value.Value
}

type decodedColumn struct {
	header table.Header
	cells  []decodedCell
}

// reader walks a body, turning every short read into InvalidStorageError.
type reader struct {
	r *bytes.Reader
}

func (rd reader) fail(what string, err error) error {
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return &InvalidStorageError{Version: Version, Reason: "read " + what, Err: err}
}

func (rd reader) uvarint(what string) (uint64, error) {
	n, err := binary.ReadUvarint(rd.r)
	if err != nil {
		return 0, rd.fail(what, err)
	}
	return n, nil
}

// count reads a length prefix that cannot exceed the remaining bytes.
func (rd reader) count(what string) (int, error) {
	n, err := rd.uvarint(what)
	if err != nil {
		return 0, err
	}
	if n > uint64(rd.r.Len()) {
		return 0, rd.fail(what, fmt.Errorf("length %d exceeds remaining %d bytes", n, rd.r.Len()))
	}
	return int(n), nil
}

func (rd reader) varint(what string) (int64, error) {
	n, err := binary.ReadVarint(rd.r)
	if err != nil {
		return 0, rd.fail(what, err)
	}
	return n, nil
}

func (rd reader) blob(what string) ([]byte, error) {
	n, err := rd.count(what)
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(rd.r, b); err != nil {
		return nil, rd.fail(what, err)
	}
	return b, nil
}

func (rd reader) u8(what string) (byte, error) {
	b, err := rd.r.ReadByte()
	if err != nil {
		return 0, rd.fail(what, err)
	}
	return b, nil
}

func (rd reader) bigInt(what string) (*big.Int, error) {
	sign, err := rd.u8(what + " sign")
	if err != nil {
		return nil, err
	}
	if sign > 2 {
		return nil, rd.fail(what, fmt.Errorf("bad sign byte %d", sign))
	}
	mag, err := rd.blob(what + " magnitude")
	if err != nil {
		return nil, err
	}
	i := new(big.Int).SetBytes(mag)
	if sign == 0 {
		i.Neg(i)
	}
	return i, nil
}

func (rd reader) readValue() (value.Value, error) {
	tag, err := rd.u8("tag")
	if err != nil {
		return nil, err
	}
	switch value.Kind(tag) {
	case value.KindBool:
		b, err := rd.u8("bool")
		if err != nil {
			return nil, err
		}
		return value.Bool(b != 0), nil
	case value.KindString:
		b, err := rd.blob("string")
		if err != nil {
			return nil, err
		}
		return value.String(b), nil
	case value.KindLong:
		n, err := rd.varint("long")
		if err != nil {
			return nil, err
		}
		return value.Long(n), nil
	case value.KindDouble:
		var raw [8]byte
		if _, err := io.ReadFull(rd.r, raw[:]); err != nil {
			return nil, rd.fail("double", err)
		}
		return value.Double(math.Float64frombits(binary.BigEndian.Uint64(raw[:]))), nil
	case value.KindBigInteger:
		i, err := rd.bigInt("biginteger")
		if err != nil {
			return nil, err
		}
		return value.NewBigInteger(i), nil
	case value.KindBigDecimal:
		exp, err := rd.varint("bigdecimal exponent")
		if err != nil {
			return nil, err
		}
		if exp < math.MinInt32 || exp > math.MaxInt32 {
			return nil, rd.fail("bigdecimal exponent", fmt.Errorf("exponent %d out of range", exp))
		}
		coef, err := rd.bigInt("bigdecimal coefficient")
		if err != nil {
			return nil, err
		}
		return value.NewBigDecimal(decimal.NewFromBigInt(coef, int32(exp))), nil
	default:
		return nil, &InvalidStorageError{Version: Version, Reason: fmt.Sprintf("unknown value tag %d", tag)}
	}
}

func parseBody(body []byte) ([]decodedColumn, error) {
	rd := reader{r: bytes.NewReader(body)}
	ncols, err := rd.count("column count")
	if err != nil {
		return nil, err
	}
	cols := make([]decodedColumn, 0, ncols)
	for range ncols {
		nlabels, err := rd.count("label count")
		if err != nil {
			return nil, err
		}
		labels := make([]string, nlabels)
		for i := range labels {
			b, err := rd.blob("label")
			if err != nil {
				return nil, err
			}
			labels[i] = string(b)
		}
		ncells, err := rd.count("cell count")
		if err != nil {
			return nil, err
		}
		col := decodedColumn{header: table.H(labels...), cells: make([]decodedCell, 0, ncells)}
		for range ncells {
			idx, err := rd.varint("row index")
			if err != nil {
				return nil, err
			}
			v, err := rd.readValue()
			if err != nil {
				return nil, err
			}
			col.cells = append(col.cells, decodedCell{index: idx, v: v})
		}
		cols = append(cols, col)
	}
	if rd.r.Len() != 0 {
		return nil, &InvalidStorageError{Version: Version, Reason: fmt.Sprintf("%d trailing bytes", rd.r.Len())}
	}
	return cols, nil
}
