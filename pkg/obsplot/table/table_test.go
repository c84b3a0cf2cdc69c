package table

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/apache/arrow/go/v7/arrow"
	"github.com/apache/arrow/go/v7/arrow/array"
	"github.com/apache/arrow/go/v7/arrow/decimal128"
	"github.com/apache/arrow/go/v7/arrow/ipc"
	"github.com/apache/arrow/go/v7/arrow/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func penguins(t *testing.T) arrow.Record {
	t.Helper()
	mem := memory.NewGoAllocator()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "species", Type: arrow.BinaryTypes.String},
		{Name: "mass", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "year", Type: arrow.PrimitiveTypes.Int32},
	}, nil)
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	b.Field(0).(*array.StringBuilder).AppendValues([]string{"Adelie", "Gentoo", "Chinstrap"}, nil)
	b.Field(1).(*array.Float64Builder).AppendValues([]float64{3750, 0, 3500}, []bool{true, false, true})
	b.Field(2).(*array.Int32Builder).AppendValues([]int32{2007, 2008, 2009}, nil)
	return b.NewRecord()
}

func TestDecodeFileFormat(t *testing.T) {
	rec := penguins(t)
	defer rec.Release()

	payload, err := EncodeRecord(rec)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(payload, []byte("ARROW1")))

	tbl, err := Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.NumRows())
	assert.Equal(t, 3, tbl.NumCols())
	assert.Equal(t, []string{"species", "mass", "year"}, tbl.ColumnNames())

	species, ok := tbl.Column("species")
	require.True(t, ok)
	assert.Equal(t, []any{"Adelie", "Gentoo", "Chinstrap"}, species)

	mass, _ := tbl.Column("mass")
	assert.Equal(t, []any{3750.0, nil, 3500.0}, mass)

	year, _ := tbl.Column("year")
	assert.Equal(t, []any{int64(2007), int64(2008), int64(2009)}, year)

	row := tbl.Row(2)
	assert.Equal(t, []string{"species", "mass", "year"}, row.Keys())
	v, _ := row.Get("species")
	assert.Equal(t, "Chinstrap", v)

	fields := tbl.Fields()
	assert.Equal(t, "utf8", fields[0].Type)
	assert.True(t, fields[1].Nullable)
}

func TestDecodeStreamFormat(t *testing.T) {
	rec := penguins(t)
	defer rec.Release()

	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(rec.Schema()))
	require.NoError(t, w.Write(rec))
	require.NoError(t, w.Write(rec))
	require.NoError(t, w.Close())

	tbl, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 6, tbl.NumRows())
	year, _ := tbl.Column("year")
	assert.Equal(t, int64(2009), year[5])
}

func TestDecodeTemporalAndDecimal(t *testing.T) {
	mem := memory.NewGoAllocator()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "day", Type: arrow.FixedWidthTypes.Date32},
		{Name: "at", Type: &arrow.TimestampType{Unit: arrow.Millisecond}},
		{Name: "price", Type: &arrow.Decimal128Type{Precision: 10, Scale: 2}},
	}, nil)
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	b.Field(0).(*array.Date32Builder).Append(arrow.Date32(19723))
	b.Field(1).(*array.TimestampBuilder).Append(arrow.Timestamp(1704067200000))
	b.Field(2).(*array.Decimal128Builder).Append(decimal128.FromI64(-12345))
	rec := b.NewRecord()
	defer rec.Release()

	payload, err := EncodeRecord(rec)
	require.NoError(t, err)
	tbl, err := Decode(payload)
	require.NoError(t, err)

	day, _ := tbl.Column("day")
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), day[0])
	at, _ := tbl.Column("at")
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), at[0])
	price, _ := tbl.Column("price")
	require.IsType(t, decimal.Decimal{}, price[0])
	assert.Equal(t, "-123.45", price[0].(decimal.Decimal).String())
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode(nil)
	assert.EqualError(t, err, "arrow: empty IPC payload")

	_, err = Decode([]byte("not arrow at all"))
	assert.Error(t, err)

	_, err = Decode([]byte("ARROW1\x00\x00garbage"))
	assert.Error(t, err)
}

func TestFromColumns(t *testing.T) {
	tbl, err := FromColumns([]string{"a", "b"}, [][]any{{"x", "y"}, {1.0, 2.0}})
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.NumRows())
	assert.True(t, tbl.HasColumn("b"))
	assert.False(t, tbl.HasColumn("c"))
	assert.Equal(t, "Table(2 rows x 2 cols)", tbl.String())

	_, err = FromColumns([]string{"a"}, nil)
	assert.Error(t, err)
	_, err = FromColumns([]string{"a", "a"}, [][]any{{1}, {2}})
	assert.Error(t, err)
	_, err = FromColumns([]string{"a", "b"}, [][]any{{1}, {2, 3}})
	assert.Error(t, err)
}

func TestDecodeUnsupportedType(t *testing.T) {
	mem := memory.NewGoAllocator()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "blob", Type: arrow.BinaryTypes.Binary},
	}, nil)
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	b.Field(0).(*array.BinaryBuilder).AppendValues([][]byte{[]byte("ab")}, nil)
	rec := b.NewRecord()
	defer rec.Release()

	payload, err := EncodeRecord(rec)
	require.NoError(t, err)

	_, err = Decode(payload)
	assert.EqualError(t, err, `arrow: column "blob": unsupported type binary`)
}

func TestWriteSeeker(t *testing.T) {
	var w writeSeeker
	n, err := w.Write([]byte("abcdef"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	pos, err := w.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(6), pos)

	_, err = w.Seek(2, io.SeekStart)
	require.NoError(t, err)
	_, err = w.Write([]byte("XY"))
	require.NoError(t, err)
	assert.Equal(t, "abXYef", string(w.buf))

	_, err = w.Seek(-1, io.SeekEnd)
	require.NoError(t, err)
	_, err = w.Write([]byte("123"))
	require.NoError(t, err)
	assert.Equal(t, "abXYe123", string(w.buf))

	_, err = w.Seek(-1, io.SeekStart)
	assert.Error(t, err)
	_, err = w.Seek(0, 7)
	assert.Error(t, err)
}
