package opt

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the simulated-annealing parameters. The defaults follow the
// tuning used on the Prodhon/Tuzun benchmark sets.
type Config struct {
	// InitialTemp is the starting acceptance temperature T0.
	InitialTemp float64 `yaml:"initial_temp"`
	// FinalTemp is the temperature floor; the run stops once T falls below it.
	FinalTemp float64 `yaml:"final_temp"`
	// Cooling is the geometric factor applied per batch: T *= Cooling.
	Cooling float64 `yaml:"cooling"`
	// K scales the Metropolis criterion exp(-delta / (K * T)).
	K float64 `yaml:"k"`
	// IterationsPerNode sizes the batch between cooling steps:
	// batch = IterationsPerNode * (facilities + customers).
	IterationsPerNode int `yaml:"iterations_per_node"`
	// MaxIterations caps the total iteration count; 0 means no cap.
	MaxIterations int `yaml:"max_iterations"`
	// Stagnation stops the run after this many consecutive cooling steps
	// without a new best solution; 0 disables the check.
	Stagnation int `yaml:"stagnation"`
	// TimeBudget bounds wall-clock time; 0 means no bound.
	TimeBudget time.Duration `yaml:"time_budget"`
	// MoveWeights select neighborhood moves by roulette wheel. Must be empty
	// (uniform) or have one non-negative entry per move kind.
	MoveWeights []float64 `yaml:"move_weights"`
	// ProgressEvery emits a progress event every N iterations; 0 disables.
	ProgressEvery int `yaml:"progress_every"`
}

func DefaultConfig() Config {
	return Config{
		InitialTemp:       30,
		FinalTemp:         0.1,
		Cooling:           0.98,
		K:                 1.0 / 9,
		IterationsPerNode: 500,
		Stagnation:        100,
		ProgressEvery:     1000,
	}
}

func (c Config) Validate() error {
	if c.InitialTemp <= 0 {
		return fmt.Errorf("initial_temp must be > 0, got %v", c.InitialTemp)
	}
	if c.FinalTemp <= 0 {
		return fmt.Errorf("final_temp must be > 0, got %v", c.FinalTemp)
	}
	if c.FinalTemp >= c.InitialTemp {
		return fmt.Errorf("final_temp %v must be below initial_temp %v", c.FinalTemp, c.InitialTemp)
	}
	if c.Cooling <= 0 || c.Cooling >= 1 {
		return fmt.Errorf("cooling must be in (0,1), got %v", c.Cooling)
	}
	if c.K <= 0 {
		return fmt.Errorf("k must be > 0, got %v", c.K)
	}
	if c.IterationsPerNode <= 0 && c.MaxIterations <= 0 {
		return fmt.Errorf("one of iterations_per_node or max_iterations must be > 0")
	}
	if len(c.MoveWeights) != 0 && len(c.MoveWeights) != numMoves {
		return fmt.Errorf("move_weights must have %d entries, got %d", numMoves, len(c.MoveWeights))
	}
	sum := 0.0
	for i, w := range c.MoveWeights {
		if w < 0 {
			return fmt.Errorf("move_weights[%d] must be >= 0", i)
		}
		sum += w
	}
	if len(c.MoveWeights) != 0 && sum == 0 {
		return fmt.Errorf("move_weights must not all be zero")
	}
	return nil
}

// LoadConfig reads a YAML solver-defaults file over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}
