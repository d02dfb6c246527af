package cli

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/chazu/mortise/pkg/solve"
)

// Config holds solver settings loaded from a TOML file. Zero values fall
// back to the solver defaults.
//
// Example:
//
//	tolerance = 1e-9
//	max_iterations = 500
//	dir_weight = 100.0
type Config struct {
	Tolerance     float64 `toml:"tolerance"`
	MaxIterations int     `toml:"max_iterations"`
	DirWeight     float64 `toml:"dir_weight"`
}

// loadConfig reads a TOML config file. An empty path yields the zero
// Config, leaving every setting at its solver default.
func loadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// solveOptions converts the config into solver options.
func (c Config) solveOptions() solve.Options {
	return solve.Options{
		Tolerance:     c.Tolerance,
		MaxIterations: c.MaxIterations,
		DirWeight:     c.DirWeight,
	}
}
