// Package scenario holds the spec updates the fuzz client sends to a running
// dashboard. Some are valid charts, others exercise each failure path.
package scenario

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"

	"github.com/chosenoffset/obsplot/pkg/obsplot/spec"
)

type Scenario interface {
	Name() string
	Run(ctx context.Context, client *http.Client, baseURL string) error
}

// specScenario posts one generated body to /api/spec and checks the status.
type specScenario struct {
	name   string
	status int
	body   func(rng *rand.Rand) ([]byte, error)
	rng    *rand.Rand
}

func (s *specScenario) Name() string { return s.name }

func (s *specScenario) Run(ctx context.Context, client *http.Client, baseURL string) error {
	body, err := s.body(s.rng)
	if err != nil {
		return fmt.Errorf("%s: build body: %w", s.name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/spec", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}
	resp.Body.Close()
	if resp.StatusCode != s.status {
		return fmt.Errorf("%s: got status %d, want %d", s.name, resp.StatusCode, s.status)
	}
	return nil
}

func encode(node spec.Node) ([]byte, error) {
	return json.Marshal(node)
}

func randomValues(rng *rand.Rand, n int) []any {
	vals := make([]any, n)
	for i := range vals {
		vals[i] = float64(rng.Intn(100))
	}
	return vals
}

// All returns every scenario, sharing rng.
func All(rng *rand.Rand) []Scenario {
	return []Scenario{
		&specScenario{name: "bars", status: http.StatusOK, rng: rng, body: func(rng *rand.Rand) ([]byte, error) {
			return encode(spec.Plot("plot", spec.Object(
				"marks", spec.Array(spec.Plot("barY", spec.Array(randomValues(rng, 1+rng.Intn(12))...))),
			)))
		}},
		&specScenario{name: "scatter", status: http.StatusOK, rng: rng, body: func(rng *rand.Rand) ([]byte, error) {
			n := 2 + rng.Intn(30)
			points := make([]any, n)
			for i := range points {
				points[i] = spec.Object("x", rng.Float64(), "y", rng.Float64(), "group", fmt.Sprintf("g%d", rng.Intn(3)))
			}
			return encode(spec.Plot("plot", spec.Object(
				"grid", true,
				"marks", spec.Array(
					spec.Plot("dot", spec.Array(points...), spec.Object("x", "x", "y", "y", "stroke", "group")),
					spec.Plot("frame"),
				),
			)))
		}},
		&specScenario{name: "d3-range", status: http.StatusOK, rng: rng, body: func(rng *rand.Rand) ([]byte, error) {
			return encode(spec.Plot("lineY", spec.D3("range", float64(2+rng.Intn(50)))))
		}},
		&specScenario{name: "options-only", status: http.StatusOK, rng: rng, body: func(rng *rand.Rand) ([]byte, error) {
			return encode(spec.Object("width", float64(200+rng.Intn(600)), "marks", spec.Array()))
		}},
		&specScenario{name: "bogus-module", status: http.StatusOK, rng: rng, body: func(*rand.Rand) ([]byte, error) {
			return encode(&spec.Call{Module: "Bogus", Method: "dot"})
		}},
		&specScenario{name: "undefined-method", status: http.StatusOK, rng: rng, body: func(*rand.Rand) ([]byte, error) {
			return encode(spec.Plot("notAMethod"))
		}},
		&specScenario{name: "bad-dataframe", status: http.StatusOK, rng: rng, body: func(*rand.Rand) ([]byte, error) {
			return []byte(`{"ipyobsplot-type":"DataFrame","value":"%%%"}`), nil
		}},
		&specScenario{name: "bad-arguments", status: http.StatusOK, rng: rng, body: func(*rand.Rand) ([]byte, error) {
			return encode(spec.Plot("dot", "not data"))
		}},
		&specScenario{name: "malformed-json", status: http.StatusBadRequest, rng: rng, body: func(rng *rand.Rand) ([]byte, error) {
			full := []byte(`{"ipyobsplot-type":"function","module":"Plot","method":"plot","args":[]}`)
			return full[:1+rng.Intn(len(full)-1)], nil
		}},
	}
}
