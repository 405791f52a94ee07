// Package config loads application settings from a TOML file and the environment.
package config

import (
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Events   EventsConfig   `toml:"events"`
}

type LogConfig struct {
	Level   string `toml:"level"`
	Console bool   `toml:"console"`
}

type PipelineConfig struct {
	OutputDir    string `toml:"output_dir"`
	FavoritesDir string `toml:"favorites_dir"`
}

// EventsConfig controls the debug listener that logs every bus event.
type EventsConfig struct {
	LogEvents bool `toml:"log_events"`
}

var levels = []string{"debug", "info", "warn", "warning", "error"}

func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:   "info",
			Console: true,
		},
		Pipeline: PipelineConfig{
			OutputDir:    "output",
			FavoritesDir: "pipelines",
		},
	}
}

// Load reads path over the defaults. A missing file is not an error. An empty path
// skips the file entirely.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "load config %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Errorf("load config %s: unknown key %s", path, undecoded[0])
	}
	return cfg, nil
}

// ApplyEnv overrides settings from NEFI_LOG_LEVEL, NEFI_OUTPUT_DIR, NEFI_FAVORITES_DIR
// and DEBUG. DEBUG=1 forces debug logging and event logging.
func (c *Config) ApplyEnv() {
	if v, ok := os.LookupEnv("NEFI_LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := os.LookupEnv("NEFI_OUTPUT_DIR"); ok {
		c.Pipeline.OutputDir = v
	}
	if v, ok := os.LookupEnv("NEFI_FAVORITES_DIR"); ok {
		c.Pipeline.FavoritesDir = v
	}
	if os.Getenv("DEBUG") == "1" {
		c.Log.Level = "debug"
		c.Events.LogEvents = true
	}
}

func (c *Config) Validate() error {
	if !lo.Contains(levels, strings.ToLower(c.Log.Level)) {
		return errors.Errorf("log.level %q is not one of %v", c.Log.Level, levels)
	}
	return nil
}
