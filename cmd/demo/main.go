package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/apache/arrow/go/v7/arrow"
	"github.com/apache/arrow/go/v7/arrow/array"
	"github.com/apache/arrow/go/v7/arrow/memory"

	"github.com/chosenoffset/obsplot/pkg/obsplot"
	"github.com/chosenoffset/obsplot/pkg/obsplot/spec"
)

var schema = arrow.NewSchema([]arrow.Field{
	{Name: "step", Type: arrow.PrimitiveTypes.Int64},
	{Name: "price", Type: arrow.PrimitiveTypes.Float64},
	{Name: "volume", Type: arrow.PrimitiveTypes.Float64},
}, nil)

func main() {
	fmt.Println("Starting obsplot live demo...")

	w, err := obsplot.NewWidget(obsplot.DefaultConfig())
	if err != nil {
		log.Fatal(err)
	}
	if err := w.Start(); err != nil {
		log.Fatal(err)
	}
	defer w.Stop()

	fmt.Println("Dashboard available at: http://localhost:9090")
	fmt.Println("API endpoints:")
	fmt.Println("  - GET  /api/spec    - Current spec")
	fmt.Println("  - POST /api/spec    - Replace the spec")
	fmt.Println("  - GET  /api/render  - Current render")
	fmt.Println("  - GET  /api/stats   - Request and render stats")
	fmt.Println()
	fmt.Println("Streaming a random walk...")

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	walk := newWalk(rng, 60)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("Stopping demo...")
			return
		case <-ticker.C:
		}
		walk.advance()
		node, err := walk.spec()
		if err != nil {
			log.Printf("build spec: %v", err)
			continue
		}
		if err := w.SetSpecNode(node); err != nil {
			log.Printf("set spec: %v", err)
		}
		if walk.step%10 == 0 {
			stats := w.GetRenderStats()
			fmt.Printf("step %d: %d renders, avg %v\n", walk.step, stats.Count, stats.AvgDuration)
		}
	}
}

// walk is a rolling window over a random price series.
type walk struct {
	rng    *rand.Rand
	size   int
	step   int64
	steps  []int64
	prices []float64
	volume []float64
}

func newWalk(rng *rand.Rand, size int) *walk {
	w := &walk{rng: rng, size: size}
	for i := 0; i < size; i++ {
		w.advance()
	}
	return w
}

func (w *walk) advance() {
	price := 100.0
	if n := len(w.prices); n > 0 {
		price = w.prices[n-1] + w.rng.NormFloat64()
	}
	w.step++
	w.steps = append(w.steps, w.step)
	w.prices = append(w.prices, price)
	w.volume = append(w.volume, 10+w.rng.Float64()*90)
	if len(w.steps) > w.size {
		w.steps = w.steps[1:]
		w.prices = w.prices[1:]
		w.volume = w.volume[1:]
	}
}

func (w *walk) record() arrow.Record {
	b := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer b.Release()
	b.Field(0).(*array.Int64Builder).AppendValues(w.steps, nil)
	b.Field(1).(*array.Float64Builder).AppendValues(w.prices, nil)
	b.Field(2).(*array.Float64Builder).AppendValues(w.volume, nil)
	return b.NewRecord()
}

func (w *walk) spec() (spec.Node, error) {
	rec := w.record()
	defer rec.Release()
	data, err := spec.DataFrameFromRecord(rec)
	if err != nil {
		return nil, err
	}
	return spec.Plot("plot", spec.Object(
		"title", fmt.Sprintf("Random walk, step %d", w.step),
		"grid", true,
		"y", spec.Object("nice", true),
		"marks", spec.Array(
			spec.Plot("lineY", data, spec.Object("x", "step", "y", "price", "stroke", "steelblue")),
			spec.Plot("dot", data, spec.Object("x", "step", "y", "price", "r", "volume", "fill", "steelblue")),
			spec.Plot("ruleY", spec.Array(100.0), spec.Object("stroke", "#999")),
		),
	)), nil
}
