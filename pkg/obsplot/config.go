package obsplot

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/chosenoffset/obsplot/pkg/obsplot/plot"
	"github.com/chosenoffset/obsplot/pkg/obsplot/value"
)

// Config holds the widget and dashboard settings.
type Config struct {
	Port        int            `yaml:"port"`         // Dashboard port
	MaxClients  int            `yaml:"max_clients"`  // Concurrent websocket clients
	HistorySize int            `yaml:"history_size"` // Render samples kept
	HTTPSamples int            `yaml:"http_samples"` // Response time samples kept
	LogChanges  bool           `yaml:"log_changes"`  // Log every spec change
	Defaults    map[string]any `yaml:"defaults"`     // Plot option defaults
}

// DefaultConfig returns the settings used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Port:        9090,
		MaxClients:  100,
		HistorySize: 1000,
		HTTPSamples: 1000,
		Defaults:    map[string]any{},
	}
}

// LoadConfig reads a YAML file over DefaultConfig and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.MaxClients <= 0 {
		return fmt.Errorf("max_clients must be positive, got %d", c.MaxClients)
	}
	if c.HistorySize <= 0 {
		return fmt.Errorf("history_size must be positive, got %d", c.HistorySize)
	}
	return plot.CheckDefaults(c.Defaults)
}

// PlotDefaults returns Defaults as realized values: numbers become float64
// and nested maps become objects.
func (c *Config) PlotDefaults() map[string]any {
	out := make(map[string]any, len(c.Defaults))
	for k, v := range c.Defaults {
		out[k] = realize(v)
	}
	return out
}

func realize(v any) any {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = realize(e)
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := value.NewObject()
		for _, k := range keys {
			obj.Set(k, realize(t[k]))
		}
		return obj
	default:
		return v
	}
}
