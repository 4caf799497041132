// Package config loads the runtime manifest used by the CLI: server
// settings, Redis persistence, and instances to spawn at startup.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Config is the parsed manifest.
type Config struct {
	Server        Server     `mapstructure:"server"`
	Log           Log        `mapstructure:"log"`
	Redis         Redis      `mapstructure:"redis"`
	Lock          Lock       `mapstructure:"lock"`
	Notifications Notify     `mapstructure:"notifications"`
	Instances     []Instance `mapstructure:"instances"`
}

// Server configures the HTTP adapter.
type Server struct {
	Listen string `mapstructure:"listen"`
}

// Log configures structured logging.
type Log struct {
	Level string `mapstructure:"level"`
}

// Redis configures snapshot persistence and distributed locking. An empty
// Addr disables both and falls back to in-memory storage.
type Redis struct {
	Addr        string        `mapstructure:"addr"`
	Prefix      string        `mapstructure:"prefix"`
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl"`
}

// Lock configures the distributed lock TTL.
type Lock struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// Notify configures the subscription delivery queue.
type Notify struct {
	Buffer int `mapstructure:"buffer"`
}

// Instance names a definition to spawn at startup under a fixed ID.
type Instance struct {
	ID         string `mapstructure:"id"`
	Definition string `mapstructure:"definition"`
	Args       []any  `mapstructure:"args"`
}

// Default returns the manifest defaults applied before any file is read.
func Default() Config {
	return Config{
		Server: Server{Listen: ":8080"},
		Log:    Log{Level: "info"},
		Lock:   Lock{TTL: 30 * time.Second},
	}
}

// Load reads and parses a YAML manifest. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read manifest: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     &cfg,
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return cfg, err
	}
	if err := decoder.Decode(raw); err != nil {
		return cfg, fmt.Errorf("decode manifest %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("manifest %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	seen := map[string]bool{}
	for i, inst := range c.Instances {
		if inst.Definition == "" {
			return fmt.Errorf("instances[%d]: definition is required", i)
		}
		if inst.ID == "" {
			return fmt.Errorf("instances[%d]: id is required", i)
		}
		if seen[inst.ID] {
			return fmt.Errorf("instances[%d]: duplicate id %q", i, inst.ID)
		}
		seen[inst.ID] = true
	}
	return nil
}
