// Command fuzz keeps posting generated specs, valid and broken, to a running
// obsplot dashboard.
package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/chosenoffset/obsplot/internal/scenario"
)

func main() {
	baseURL := flag.String("url", "http://localhost:9090", "dashboard base URL")
	delay := flag.Duration("delay", 250*time.Millisecond, "pause between updates")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := &http.Client{Timeout: 5 * time.Second}
	rng := rand.New(rand.NewSource(*seed))
	scenarios := scenario.All(rng)
	log.Printf("Loaded %d scenarios (seed %d)", len(scenarios), *seed)

	for {
		sc := scenarios[rng.Intn(len(scenarios))]
		if err := sc.Run(ctx, client, *baseURL); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("Scenario %s failed: %v", sc.Name(), err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(*delay):
		}
	}
}
