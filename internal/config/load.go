package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Load reads, strictly decodes, and validates the app config.
//
// Definitions and app config are immutable for the process lifetime, so
// there is no watch/reload machinery here: restart to pick up changes.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(path, b)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes config bytes. YAML is coerced to JSON first so both formats
// share the strict JSON decoder (DisallowUnknownFields).
func Parse(path string, b []byte) (*Config, error) {
	jb, _, err := coerceToJSONBytes(path, b)
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid config: trailing data")
		}
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if _, err := ParseDurationOrDefault("scheduler.fast_tick", c.Scheduler.FastTick, 0); err != nil {
		return err
	}
	if _, err := ParseDurationOrDefault("scheduler.spawn_tick", c.Scheduler.SpawnTick, 0); err != nil {
		return err
	}
	if c.Scheduler.AmbientCap < 0 {
		return fmt.Errorf("scheduler.ambient_cap: must be >= 0")
	}
	if sc := c.Scheduler.SkipChance; sc != nil && (*sc < 0 || *sc > 1) {
		return fmt.Errorf("scheduler.skip_chance: must be in [0,1]")
	}
	if c.Storage != nil {
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	return nil
}
