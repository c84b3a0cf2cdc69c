// Package d3 is the data-manipulation namespace. It exposes a small subset of
// d3-array and d3-dsv as namespace methods; the numeric helpers are exported
// for reuse by the plot renderer.
package d3

import (
	"encoding/csv"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/chosenoffset/obsplot/pkg/obsplot/namespace"
	"github.com/chosenoffset/obsplot/pkg/obsplot/table"
	"github.com/chosenoffset/obsplot/pkg/obsplot/value"
)

// Namespace returns the "d3" method table.
func Namespace() *namespace.Namespace {
	ns := namespace.New("d3")
	ns.Register("range", rangeMethod)
	ns.Register("extent", reducer("extent", func(xs []float64) any {
		lo, hi, ok := Extent(xs)
		if !ok {
			return []any{nil, nil}
		}
		return []any{lo, hi}
	}))
	ns.Register("min", reducer("min", func(xs []float64) any {
		lo, _, ok := Extent(xs)
		return orNil(lo, ok)
	}))
	ns.Register("max", reducer("max", func(xs []float64) any {
		_, hi, ok := Extent(xs)
		return orNil(hi, ok)
	}))
	ns.Register("sum", reducer("sum", func(xs []float64) any { return Sum(xs) }))
	ns.Register("mean", reducer("mean", func(xs []float64) any {
		if len(xs) == 0 {
			return nil
		}
		return Sum(xs) / float64(len(xs))
	}))
	ns.Register("median", reducer("median", func(xs []float64) any {
		m, ok := Median(xs)
		return orNil(m, ok)
	}))
	ns.Register("ticks", ticksMethod)
	ns.Register("csvParse", csvParseMethod)
	return ns
}

func orNil(v float64, ok bool) any {
	if !ok {
		return nil
	}
	return v
}

func reducer(name string, fn func([]float64) any) namespace.Func {
	return func(args ...any) (any, error) {
		if err := namespace.Arity(name, args, 1, 1); err != nil {
			return nil, err
		}
		xs, err := value.Floats(args[0])
		if err != nil {
			return nil, &namespace.ArgError{Method: name, Index: 0, Reason: err.Error()}
		}
		return fn(xs), nil
	}
}

func numbers(name string, args []any) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		f, ok := value.Float(a)
		if !ok {
			return nil, &namespace.ArgError{Method: name, Index: i, Reason: fmt.Sprintf("expected a number, got %T", a)}
		}
		out[i] = f
	}
	return out, nil
}

func rangeMethod(args ...any) (any, error) {
	if err := namespace.Arity("range", args, 1, 3); err != nil {
		return nil, err
	}
	n, err := numbers("range", args)
	if err != nil {
		return nil, err
	}
	start, stop, step := 0.0, n[0], 1.0
	if len(n) > 1 {
		start, stop = n[0], n[1]
	}
	if len(n) > 2 {
		step = n[2]
	}
	out, err := Range(start, stop, step)
	if err != nil {
		return nil, &namespace.ArgError{Method: "range", Index: len(args) - 1, Reason: err.Error()}
	}
	return floatsToAny(out), nil
}

func ticksMethod(args ...any) (any, error) {
	if err := namespace.Arity("ticks", args, 3, 3); err != nil {
		return nil, err
	}
	n, err := numbers("ticks", args)
	if err != nil {
		return nil, err
	}
	return floatsToAny(Ticks(n[0], n[1], clampCount(n[2]))), nil
}

func csvParseMethod(args ...any) (any, error) {
	if err := namespace.Arity("csvParse", args, 1, 1); err != nil {
		return nil, err
	}
	text, ok := args[0].(string)
	if !ok {
		return nil, &namespace.ArgError{Method: "csvParse", Index: 0, Reason: fmt.Sprintf("expected a string, got %T", args[0])}
	}
	return CSVParse(text)
}

// CSVParse reads comma-separated text with a header row. Every cell stays a
// string, as in d3.csvParse without a row accessor.
func CSVParse(text string) (*table.Table, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csvParse: %w", err)
	}
	if len(records) == 0 {
		return table.FromColumns(nil, nil)
	}
	header := records[0]
	cols := make([][]any, len(header))
	for _, rec := range records[1:] {
		for c := range header {
			if c < len(rec) {
				cols[c] = append(cols[c], rec[c])
			} else {
				cols[c] = append(cols[c], "")
			}
		}
	}
	for c := range cols {
		if cols[c] == nil {
			cols[c] = []any{}
		}
	}
	return table.FromColumns(header, cols)
}

func floatsToAny(xs []float64) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

// MaxLength bounds the number of elements Range and Ticks will build.
const MaxLength = 1_000_000

// MaxTickCount bounds the count hint given to Ticks and TickIncrement.
const MaxTickCount = 1000

// Range returns start, start+step, ... up to but excluding stop. It fails
// when the result would not be finite or would exceed MaxLength elements.
func Range(start, stop, step float64) ([]float64, error) {
	if step == 0 || math.IsNaN(step) {
		return []float64{}, nil
	}
	size := math.Max(0, math.Ceil((stop-start)/step))
	if math.IsNaN(size) || math.IsInf(size, 0) || size > MaxLength {
		return nil, fmt.Errorf("range of %v elements exceeds %d", size, MaxLength)
	}
	out := make([]float64, int(size))
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out, nil
}

func clampCount(count float64) int {
	switch {
	case math.IsNaN(count) || count <= 0:
		return 0
	case count > MaxTickCount:
		return MaxTickCount
	default:
		return int(count)
	}
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// Extent returns the minimum and maximum, ignoring NaN and infinities.
func Extent(xs []float64) (lo, hi float64, ok bool) {
	for _, x := range xs {
		if !finite(x) {
			continue
		}
		if !ok {
			lo, hi, ok = x, x, true
			continue
		}
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return lo, hi, ok
}

func Sum(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		if !math.IsNaN(x) {
			s += x
		}
	}
	return s
}

func Median(xs []float64) (float64, bool) {
	sorted := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) {
			sorted = append(sorted, x)
		}
	}
	if len(sorted) == 0 {
		return 0, false
	}
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], true
	}
	return (sorted[mid-1] + sorted[mid]) / 2, true
}

var (
	e10 = math.Sqrt(50)
	e5  = math.Sqrt(10)
	e2  = math.Sqrt(2)
)

// Ticks returns about count round values spanning [start, stop], following
// d3.ticks.
func Ticks(start, stop float64, count int) []float64 {
	count = clampCount(float64(count))
	if count == 0 || !finite(start) || !finite(stop) {
		return []float64{}
	}
	if start == stop {
		return []float64{start}
	}
	reverse := stop < start
	if reverse {
		start, stop = stop, start
	}
	i1, i2, inc := tickSpec(start, stop, float64(count))
	if !finite(i1) || !finite(i2) || i2 < i1 || i2-i1 >= MaxLength {
		return []float64{}
	}
	n := int(i2-i1) + 1
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		if inc < 0 {
			out[i] = (i1 + float64(i)) / -inc
		} else {
			out[i] = (i1 + float64(i)) * inc
		}
	}
	if reverse {
		for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

func tickSpec(start, stop, count float64) (i1, i2, inc float64) {
	step := (stop - start) / math.Max(0, count)
	power := math.Floor(math.Log10(step))
	err := step / math.Pow(10, power)
	factor := 1.0
	switch {
	case err >= e10:
		factor = 10
	case err >= e5:
		factor = 5
	case err >= e2:
		factor = 2
	}
	if power < 0 {
		inc = math.Pow(10, -power) / factor
		i1 = math.Round(start * inc)
		i2 = math.Round(stop * inc)
		if i1/inc < start {
			i1++
		}
		if i2/inc > stop {
			i2--
		}
		inc = -inc
	} else {
		inc = math.Pow(10, power) * factor
		i1 = math.Round(start / inc)
		i2 = math.Round(stop / inc)
		if i1*inc < start {
			i1++
		}
		if i2*inc > stop {
			i2--
		}
	}
	if i2 < i1 && count >= 0.5 && count < 2 {
		return tickSpec(start, stop, count*2)
	}
	return i1, i2, inc
}

// TickIncrement returns the step Ticks would use, for nicing domains.
func TickIncrement(start, stop float64, count int) float64 {
	count = clampCount(float64(count))
	if count == 0 || !finite(start) || !finite(stop) {
		return 0
	}
	_, _, inc := tickSpec(start, stop, float64(count))
	if inc < 0 {
		return 1 / -inc
	}
	return inc
}
