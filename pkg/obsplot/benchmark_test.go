package obsplot

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/apache/arrow/go/v7/arrow"
	"github.com/apache/arrow/go/v7/arrow/array"
	"github.com/apache/arrow/go/v7/arrow/memory"

	"github.com/chosenoffset/obsplot/pkg/obsplot/spec"
)

func benchSpec(b *testing.B, rows int) []byte {
	b.Helper()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "x", Type: arrow.PrimitiveTypes.Float64},
		{Name: "y", Type: arrow.PrimitiveTypes.Float64},
		{Name: "k", Type: arrow.BinaryTypes.String},
	}, nil)
	rb := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer rb.Release()
	for i := 0; i < rows; i++ {
		rb.Field(0).(*array.Float64Builder).Append(float64(i))
		rb.Field(1).(*array.Float64Builder).Append(float64(i * i % 97))
		rb.Field(2).(*array.StringBuilder).Append(fmt.Sprintf("k%d", i%5))
	}
	rec := rb.NewRecord()
	defer rec.Release()

	df, err := spec.DataFrameFromRecord(rec)
	if err != nil {
		b.Fatal(err)
	}
	raw, err := json.Marshal(spec.Plot("plot", spec.Object("marks", spec.Array(
		spec.Plot("dot", df, spec.Object("x", "x", "y", "y", "stroke", "k")),
		spec.Plot("lineY", df, spec.Object("x", "x", "y", "y")),
	))))
	if err != nil {
		b.Fatal(err)
	}
	return raw
}

func BenchmarkDecode(b *testing.B) {
	raw := benchSpec(b, 1000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := spec.Decode(raw); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkInterpret(b *testing.B) {
	node, err := spec.Decode(benchSpec(b, 1000))
	if err != nil {
		b.Fatal(err)
	}
	interp := newTestInterpreter()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := interp.Interpret(node); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkBuild(b *testing.B) {
	for _, rows := range []int{10, 1000, 10000} {
		b.Run(fmt.Sprintf("rows=%d", rows), func(b *testing.B) {
			raw := benchSpec(b, rows)
			builder := newTestBuilder()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				builder.BuildJSON(raw)
			}
		})
	}
}

func BenchmarkConcurrentBuild(b *testing.B) {
	raw := benchSpec(b, 1000)
	builder := newTestBuilder()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			builder.BuildJSON(raw)
		}
	})
}

func BenchmarkWidgetUpdate(b *testing.B) {
	w, err := NewWidget(nil)
	if err != nil {
		b.Fatal(err)
	}
	specs := [][]byte{benchSpec(b, 100), benchSpec(b, 200)}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w.SetSpec(specs[i%2])
	}
}
