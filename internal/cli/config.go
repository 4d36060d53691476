package cli

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ServeConfig is the relay configuration. It is assembled from defaults,
// an optional YAML file, environment variables and flags, in that order of
// increasing precedence.
type ServeConfig struct {
	Addr     string `yaml:"addr"`
	Database string `yaml:"database"`

	Redis struct {
		Addr string `yaml:"addr"`
	} `yaml:"redis"`

	NATS struct {
		URL string `yaml:"url"`
	} `yaml:"nats"`

	// AllowedOrigins restricts websocket upgrades. Empty allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DefaultServeConfig returns the configuration used when nothing is set.
func DefaultServeConfig() ServeConfig {
	return ServeConfig{Addr: ":8080", Database: "gisdoc.db"}
}

// LoadServeConfig overlays the YAML file at path onto cfg. Unknown keys are
// rejected.
func LoadServeConfig(path string, cfg *ServeConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays GISDOC_ADDR, GISDOC_DB, REDIS_ADDR and NATS_URL.
func (c *ServeConfig) applyEnv() {
	c.Addr = envOr("GISDOC_ADDR", c.Addr)
	c.Database = envOr("GISDOC_DB", c.Database)
	c.Redis.Addr = envOr("REDIS_ADDR", c.Redis.Addr)
	c.NATS.URL = envOr("NATS_URL", c.NATS.URL)
}

// Validate checks the assembled configuration.
func (c ServeConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.Redis.Addr != "" && c.NATS.URL != "" {
		return fmt.Errorf("redis and nats are mutually exclusive")
	}
	return nil
}
