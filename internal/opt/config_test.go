package opt

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero initial temp", func(c *Config) { c.InitialTemp = 0 }},
		{"final above initial", func(c *Config) { c.FinalTemp = 100 }},
		{"cooling one", func(c *Config) { c.Cooling = 1 }},
		{"negative k", func(c *Config) { c.K = -1 }},
		{"no iteration source", func(c *Config) { c.IterationsPerNode = 0; c.MaxIterations = 0 }},
		{"wrong weight count", func(c *Config) { c.MoveWeights = []float64{1, 2} }},
		{"negative weight", func(c *Config) { c.MoveWeights = []float64{1, 1, -1, 1, 1} }},
		{"all-zero weights", func(c *Config) { c.MoveWeights = []float64{0, 0, 0, 0, 0} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "solver.yaml")
	body := "initial_temp: 50\ncooling: 0.95\ntime_budget: 2s\nmove_weights: [3, 1, 1, 1, 1]\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.InitialTemp != 50 || cfg.Cooling != 0.95 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.TimeBudget != 2*time.Second {
		t.Fatalf("time_budget = %v, want 2s", cfg.TimeBudget)
	}
	// untouched fields keep their defaults
	if cfg.FinalTemp != DefaultConfig().FinalTemp {
		t.Fatalf("final_temp default lost: %v", cfg.FinalTemp)
	}
	if len(cfg.MoveWeights) != numMoves || cfg.MoveWeights[0] != 3 {
		t.Fatalf("move_weights not applied: %v", cfg.MoveWeights)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "solver.yaml")
	if err := os.WriteFile(path, []byte("cooling: 2\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected validation error")
	}
}
