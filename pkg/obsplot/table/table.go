// Package table rebuilds tabular data shipped as Arrow IPC bytes into an
// in-memory, row-addressable table of Go values.
//
// Both IPC layouts are accepted: the file format (what feather v2 writers
// produce, recognised by its ARROW1 magic) and the bare stream format.
//
// Column values are converted once at decode time:
//
//	bool                     -> bool
//	int8..int64              -> int64
//	uint8..uint64            -> uint64
//	float16, float32, float64 -> float64
//	utf8                     -> string
//	decimal128               -> decimal.Decimal
//	date32, date64, timestamp -> time.Time (UTC)
//	null slots               -> nil
//
// Any other column type fails the decode with "unsupported type".
package table

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/apache/arrow/go/v7/arrow"
	"github.com/apache/arrow/go/v7/arrow/array"
	"github.com/apache/arrow/go/v7/arrow/decimal128"
	"github.com/apache/arrow/go/v7/arrow/ipc"
	"github.com/apache/arrow/go/v7/arrow/memory"
	"github.com/shopspring/decimal"

	"github.com/chosenoffset/obsplot/pkg/obsplot/value"
)

var fileMagic = []byte("ARROW1")

// Field describes one column.
type Field struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// Table is an immutable set of equally long named columns.
type Table struct {
	fields  []Field
	columns [][]any
	index   map[string]int
	nrows   int
}

// Decode reads an Arrow IPC payload. Errors from the arrow reader are wrapped
// and returned; nothing is recovered.
func Decode(payload []byte) (*Table, error) {
	if len(payload) == 0 {
		return nil, errors.New("arrow: empty IPC payload")
	}
	mem := memory.NewGoAllocator()
	if bytes.HasPrefix(payload, fileMagic) {
		return decodeFile(payload, mem)
	}
	return decodeStream(payload, mem)
}

func decodeFile(payload []byte, mem memory.Allocator) (*Table, error) {
	r, err := ipc.NewFileReader(bytes.NewReader(payload), ipc.WithAllocator(mem))
	if err != nil {
		return nil, fmt.Errorf("arrow file: %w", err)
	}
	defer r.Close()

	t := newTable(r.Schema())
	for i := 0; i < r.NumRecords(); i++ {
		rec, err := r.Record(i)
		if err != nil {
			return nil, fmt.Errorf("arrow file: record %d: %w", i, err)
		}
		if err := t.appendRecord(rec); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func decodeStream(payload []byte, mem memory.Allocator) (*Table, error) {
	r, err := ipc.NewReader(bytes.NewReader(payload), ipc.WithAllocator(mem))
	if err != nil {
		return nil, fmt.Errorf("arrow stream: %w", err)
	}
	defer r.Release()

	t := newTable(r.Schema())
	for r.Next() {
		if err := t.appendRecord(r.Record()); err != nil {
			return nil, err
		}
	}
	if err := r.Err(); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("arrow stream: %w", err)
	}
	return t, nil
}

func newTable(schema *arrow.Schema) *Table {
	t := &Table{
		fields:  make([]Field, len(schema.Fields())),
		columns: make([][]any, len(schema.Fields())),
		index:   make(map[string]int, len(schema.Fields())),
	}
	for i, f := range schema.Fields() {
		t.fields[i] = Field{Name: f.Name, Type: f.Type.Name(), Nullable: f.Nullable}
		t.index[f.Name] = i
	}
	return t
}

func (t *Table) appendRecord(rec arrow.Record) error {
	nrows := int(rec.NumRows())
	for c := 0; c < int(rec.NumCols()); c++ {
		col := rec.Column(c)
		for r := 0; r < nrows; r++ {
			v, err := columnValue(col, r)
			if err != nil {
				return fmt.Errorf("arrow: column %q: %w", rec.ColumnName(c), err)
			}
			t.columns[c] = append(t.columns[c], v)
		}
	}
	t.nrows += nrows
	return nil
}

func columnValue(arr arrow.Array, i int) (any, error) {
	if arr.IsNull(i) {
		return nil, nil
	}
	switch a := arr.(type) {
	case *array.Boolean:
		return a.Value(i), nil
	case *array.Int8:
		return int64(a.Value(i)), nil
	case *array.Int16:
		return int64(a.Value(i)), nil
	case *array.Int32:
		return int64(a.Value(i)), nil
	case *array.Int64:
		return a.Value(i), nil
	case *array.Uint8:
		return uint64(a.Value(i)), nil
	case *array.Uint16:
		return uint64(a.Value(i)), nil
	case *array.Uint32:
		return uint64(a.Value(i)), nil
	case *array.Uint64:
		return a.Value(i), nil
	case *array.Float16:
		return float64(a.Value(i).Float32()), nil
	case *array.Float32:
		return float64(a.Value(i)), nil
	case *array.Float64:
		return a.Value(i), nil
	case *array.String:
		return a.Value(i), nil
	case *array.Decimal128:
		scale := a.DataType().(*arrow.Decimal128Type).Scale
		return decimal.NewFromBigInt(decimalToBig(a.Value(i)), -scale), nil
	case *array.Date32:
		return time.Unix(int64(a.Value(i))*86400, 0).UTC(), nil
	case *array.Date64:
		return time.UnixMilli(int64(a.Value(i))).UTC(), nil
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return timestampToTime(int64(a.Value(i)), unit), nil
	default:
		return nil, fmt.Errorf("unsupported type %s", arr.DataType().Name())
	}
}

func decimalToBig(n decimal128.Num) *big.Int {
	b := big.NewInt(n.HighBits())
	b.Lsh(b, 64)
	return b.Add(b, new(big.Int).SetUint64(n.LowBits()))
}

func timestampToTime(v int64, unit arrow.TimeUnit) time.Time {
	switch unit {
	case arrow.Second:
		return time.Unix(v, 0).UTC()
	case arrow.Millisecond:
		return time.UnixMilli(v).UTC()
	case arrow.Microsecond:
		return time.UnixMicro(v).UTC()
	default:
		return time.Unix(0, v).UTC()
	}
}

// FromColumns builds a table from Go values. Every column must have the same
// length as names has entries in cols.
func FromColumns(names []string, cols [][]any) (*Table, error) {
	if len(names) != len(cols) {
		return nil, fmt.Errorf("table: %d names for %d columns", len(names), len(cols))
	}
	t := &Table{
		fields:  make([]Field, len(names)),
		columns: make([][]any, len(cols)),
		index:   make(map[string]int, len(names)),
	}
	for i, name := range names {
		if _, dup := t.index[name]; dup {
			return nil, fmt.Errorf("table: duplicate column %q", name)
		}
		if i > 0 && len(cols[i]) != len(cols[0]) {
			return nil, fmt.Errorf("table: column %q has %d rows, want %d", name, len(cols[i]), len(cols[0]))
		}
		t.fields[i] = Field{Name: name, Type: "any", Nullable: true}
		t.columns[i] = cols[i]
		t.index[name] = i
	}
	if len(cols) > 0 {
		t.nrows = len(cols[0])
	}
	return t, nil
}

// EncodeRecord writes rec as an uncompressed Arrow IPC file.
func EncodeRecord(rec arrow.Record) ([]byte, error) {
	var buf writeSeeker
	w, err := ipc.NewFileWriter(&buf, ipc.WithSchema(rec.Schema()))
	if err != nil {
		return nil, fmt.Errorf("arrow file: %w", err)
	}
	if err := w.Write(rec); err != nil {
		return nil, fmt.Errorf("arrow file: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("arrow file: %w", err)
	}
	return buf.buf, nil
}

// writeSeeker is an in-memory io.WriteSeeker; the IPC file writer seeks
// back to patch the footer offsets.
type writeSeeker struct {
	buf []byte
	pos int64
}

func (w *writeSeeker) Write(p []byte) (int, error) {
	end := w.pos + int64(len(p))
	if end > int64(len(w.buf)) {
		if end > int64(cap(w.buf)) {
			grown := make([]byte, end, 2*end)
			copy(grown, w.buf)
			w.buf = grown
		} else {
			w.buf = w.buf[:end]
		}
	}
	copy(w.buf[w.pos:end], p)
	w.pos = end
	return len(p), nil
}

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = w.pos + offset
	case io.SeekEnd:
		abs = int64(len(w.buf)) + offset
	default:
		return 0, fmt.Errorf("seek: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, errors.New("seek: negative position")
	}
	w.pos = abs
	return abs, nil
}

func (t *Table) NumRows() int { return t.nrows }
func (t *Table) NumCols() int { return len(t.fields) }

func (t *Table) Fields() []Field {
	out := make([]Field, len(t.fields))
	copy(out, t.fields)
	return out
}

func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.fields))
	for i, f := range t.fields {
		names[i] = f.Name
	}
	return names
}

func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the values of the named column. The slice is shared and
// must not be modified.
func (t *Table) Column(name string) ([]any, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// Row returns row i as an ordered object keyed by column name.
func (t *Table) Row(i int) *value.Object {
	row := value.NewObject()
	for c, f := range t.fields {
		row.Set(f.Name, t.columns[c][i])
	}
	return row
}

func (t *Table) String() string {
	return fmt.Sprintf("Table(%d rows x %d cols)", t.nrows, len(t.fields))
}
