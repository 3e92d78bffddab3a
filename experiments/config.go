package experiments

import (
	"errors"
	"fmt"
	"os"

	"horses/game"
	"horses/meta"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid tournament config")

// Config describes a tournament. The first heuristic always plays white, which
// moves first; the second plays black.
type Config struct {
	Name              string            `yaml:"name"`
	Levels            []meta.Difficulty `yaml:"levels"`
	MatchesPerPairing int               `yaml:"matches_per_pairing"`
	Seed              uint64            `yaml:"seed"`
	MaxMoves          int               `yaml:"max_moves"`
	RepetitionCap     int               `yaml:"repetition_cap"`
	FirstHeuristic    string            `yaml:"first_heuristic"`
	SecondHeuristic   string            `yaml:"second_heuristic"`
	OutputDir         string            `yaml:"output_dir"` // empty disables recording
	RemoteURL         string            `yaml:"remote_url"` // when set, the second side searches on this server
}

func DefaultConfig() Config {
	return Config{
		Name:              "battle",
		Levels:            append([]meta.Difficulty(nil), meta.Difficulties...),
		MatchesPerPairing: 1,
		Seed:              1,
		MaxMoves:          meta.MAX_MOVES,
		RepetitionCap:     meta.REPETITION_CAP,
		FirstHeuristic:    "aggressive",
		SecondHeuristic:   "defensive",
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate normalises level names and rejects unusable settings.
func (c *Config) Validate() error {
	if len(c.Levels) == 0 {
		return fmt.Errorf("%w: no levels", ErrInvalidConfig)
	}
	for i, level := range c.Levels {
		parsed, err := meta.ParseDifficulty(string(level))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		c.Levels[i] = parsed
	}
	if c.MatchesPerPairing < 1 {
		return fmt.Errorf("%w: matches per pairing must be at least 1, got %d", ErrInvalidConfig, c.MatchesPerPairing)
	}
	if c.MaxMoves < 1 {
		return fmt.Errorf("%w: max moves must be positive, got %d", ErrInvalidConfig, c.MaxMoves)
	}
	if c.RepetitionCap < 1 {
		return fmt.Errorf("%w: repetition cap must be positive, got %d", ErrInvalidConfig, c.RepetitionCap)
	}
	for _, name := range []string{c.FirstHeuristic, c.SecondHeuristic} {
		if _, err := game.HeuristicByName(name); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if c.Name == "" {
		c.Name = "battle"
	}
	return nil
}
