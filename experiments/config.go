package experiments

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"entmcts/operator"
)

// Config describes one sweep: the (k, d) grid, the algorithms to compare,
// the simulation budget, and the shared hyperparameters.
type Config struct {
	Ks               []int    `yaml:"ks"`
	Ds               []int    `yaml:"ds"`
	Algorithms       []string `yaml:"algorithms"`
	NumExperiments   int      `yaml:"num_experiments"`
	NumTrees         int      `yaml:"num_trees"`
	NumSimulations   int      `yaml:"num_simulations"`
	ExplorationCoeff float64  `yaml:"exploration_coeff"`
	Tau              float64  `yaml:"tau"`
	Alpha            float64  `yaml:"alpha"`
	Gamma            float64  `yaml:"gamma"`
	Seed             uint64   `yaml:"seed"`
	Workers          int      `yaml:"workers"`
}

// LoadConfig reads and validates a YAML sweep configuration.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	err = cfg.Validate()
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if len(c.Ks) == 0 || len(c.Ds) == 0 {
		return fmt.Errorf("ks and ds must be non-empty")
	}
	for _, k := range c.Ks {
		if k < 1 {
			return fmt.Errorf("branching factor must be >= 1, got %d", k)
		}
	}
	for _, d := range c.Ds {
		if d < 0 {
			return fmt.Errorf("depth must be >= 0, got %d", d)
		}
	}
	if len(c.Algorithms) == 0 {
		return fmt.Errorf("algorithms must be non-empty")
	}
	for _, name := range c.Algorithms {
		alg, err := operator.Parse(name)
		if err != nil {
			return err
		}
		if alg == operator.AlphaDivergence {
			return fmt.Errorf("alpha-divergence is solver-only and cannot be swept")
		}
		if alg.Regularized() && c.Tau <= 0 {
			return fmt.Errorf("%s requires tau > 0, got %v", alg, c.Tau)
		}
	}
	if c.NumExperiments < 1 || c.NumTrees < 1 || c.NumSimulations < 1 {
		return fmt.Errorf("num_experiments, num_trees and num_simulations must be >= 1")
	}
	if c.ExplorationCoeff < 0 {
		return fmt.Errorf("exploration_coeff must be >= 0, got %v", c.ExplorationCoeff)
	}
	return nil
}
