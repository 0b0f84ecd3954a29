// Package config loads the blockpage configuration from a YAML file.
// Environment variables in the file are expanded before parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/blockpage/pkg/media"
)

// Config represents the blockpage configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Cache     CacheConfig     `yaml:"cache"`
	Templates TemplatesConfig `yaml:"templates"`
	Media     MediaConfig     `yaml:"media"`
	Sessions  SessionsConfig  `yaml:"sessions"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr  string `yaml:"addr"`
	Debug bool   `yaml:"debug"`

	// Title is shown in the page head.
	Title string `yaml:"title"`
}

// DatabaseConfig selects and configures the block store.
type DatabaseConfig struct {
	Driver  string `yaml:"driver"` // "sqlite" or "postgres"
	Path    string `yaml:"path"`   // sqlite file
	DSN     string `yaml:"dsn"`    // postgres connection string
	Readers int    `yaml:"readers"`
}

// CacheConfig configures the block list cache.
type CacheConfig struct {
	Enabled    bool     `yaml:"enabled"`
	TTL        Duration `yaml:"ttl"`
	MaxEntries int      `yaml:"max_entries"`
}

// TemplatesConfig configures template loading.
type TemplatesConfig struct {
	// Dir overrides the embedded templates.
	Dir   string `yaml:"dir"`
	Watch bool   `yaml:"watch"`
}

// MediaConfig selects where uploads go.
type MediaConfig struct {
	Backend string         `yaml:"backend"` // "local" or "s3"
	Dir     string         `yaml:"dir"`
	BaseURL string         `yaml:"base_url"`
	S3      media.S3Config `yaml:"s3"`
}

// SessionsConfig configures edit session housekeeping.
type SessionsConfig struct {
	MaxIdle  Duration `yaml:"max_idle"`
	Schedule string   `yaml:"sweep_schedule"`
}

// Duration is a time.Duration written in Go syntax ("30s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("line %d: duration must be a string: %w", node.Line, err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML writes the duration in Go syntax.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:  ":8080",
			Title: "Home",
		},
		Database: DatabaseConfig{
			Driver:  "sqlite",
			Path:    "blockpage.db",
			Readers: 4,
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTL:        Duration{30 * time.Second},
			MaxEntries: 256,
		},
		Media: MediaConfig{
			Backend: "local",
			Dir:     "media",
			BaseURL: "/media",
		},
		Sessions: SessionsConfig{
			MaxIdle:  Duration{30 * time.Minute},
			Schedule: "@every 5m",
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the combinations Load cannot default.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path is required for sqlite"))
		}
	case "postgres":
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not sqlite or postgres", c.Database.Driver))
	}

	switch c.Media.Backend {
	case "local":
		if c.Media.Dir == "" {
			errs = append(errs, errors.New("media.dir is required for local media"))
		}
	case "s3":
		if c.Media.S3.Bucket == "" {
			errs = append(errs, errors.New("media.s3.bucket is required for s3 media"))
		}
	default:
		errs = append(errs, fmt.Errorf("media.backend %q is not local or s3", c.Media.Backend))
	}

	if c.Sessions.MaxIdle.Duration <= 0 {
		errs = append(errs, errors.New("sessions.max_idle must be positive"))
	}
	return errors.Join(errs...)
}
