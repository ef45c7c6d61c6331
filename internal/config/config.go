// Package config loads the counter daemon settings from a yaml file and
// COUNTERCRAFT_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"countercraft.ai/internal/counters/delta"
	"countercraft.ai/internal/counters/rules"
)

const MaxDeltaRetries = 64

type Config struct {
	DataDir  string `yaml:"data_dir" env:"COUNTERCRAFT_DATA_DIR"`
	RulesDB  string `yaml:"rules_db" env:"COUNTERCRAFT_RULES_DB"`
	ScoresDB string `yaml:"scores_db" env:"COUNTERCRAFT_SCORES_DB"`
	LogDir   string `yaml:"log_dir" env:"COUNTERCRAFT_LOG_DIR"`

	Seed         uint64 `yaml:"seed" env:"COUNTERCRAFT_SEED"`
	// DeltaRetries is how many draws an out-of-range increment gets before
	// it is clamped; 0 uses the applier default.
	DeltaRetries int    `yaml:"delta_retries" env:"COUNTERCRAFT_DELTA_RETRIES"`
	Lang         string `yaml:"lang" env:"COUNTERCRAFT_LANG"`
	ConsoleLog   bool   `yaml:"console_log" env:"COUNTERCRAFT_CONSOLE_LOG"`

	// Kinds limits which rule kinds are processed; empty means all.
	Kinds []string `yaml:"kinds,omitempty" env:"COUNTERCRAFT_KINDS" envSeparator:","`
}

func Defaults() Config {
	return Config{
		DataDir:      "data",
		Seed:         1,
		DeltaRetries: delta.DefaultRetries,
		Lang:         "en",
		ConsoleLog:   true,
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("counters.yaml: %w", err)
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("counters.yaml: %w", err)
	}
	return cfg, nil
}

func ApplyEnv(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Normalize derives unset paths from DataDir.
func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.DataDir = strings.TrimSpace(c.DataDir)
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if strings.TrimSpace(c.RulesDB) == "" {
		c.RulesDB = filepath.Join(c.DataDir, "rules.sqlite")
	}
	if strings.TrimSpace(c.ScoresDB) == "" {
		c.ScoresDB = filepath.Join(c.DataDir, "scores.sqlite")
	}
	if strings.TrimSpace(c.LogDir) == "" {
		c.LogDir = filepath.Join(c.DataDir, "logs")
	}
	if strings.TrimSpace(c.Lang) == "" {
		c.Lang = "en"
	}
	kinds := c.Kinds[:0]
	for _, k := range c.Kinds {
		if k = strings.TrimSpace(k); k != "" {
			kinds = append(kinds, k)
		}
	}
	c.Kinds = kinds
}

func (c Config) Validate() error {
	if c.DeltaRetries < 0 || c.DeltaRetries > MaxDeltaRetries {
		return fmt.Errorf("delta_retries must be in 0..%d", MaxDeltaRetries)
	}
	seen := map[string]bool{}
	for _, k := range c.Kinds {
		kind, ok := rules.ParseKind(k)
		if !ok {
			return fmt.Errorf("unknown kind: %s", k)
		}
		if seen[string(kind)] {
			return fmt.Errorf("duplicate kind: %s", kind)
		}
		seen[string(kind)] = true
	}
	return nil
}

// RuleKinds returns the parsed Kinds; nil means every kind.
func (c Config) RuleKinds() []rules.Kind {
	if len(c.Kinds) == 0 {
		return nil
	}
	out := make([]rules.Kind, 0, len(c.Kinds))
	for _, k := range c.Kinds {
		if kind, ok := rules.ParseKind(k); ok {
			out = append(out, kind)
		}
	}
	return out
}
