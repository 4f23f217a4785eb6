// Package config loads the tracker's runtime configuration.
//
// Precedence, lowest first: built-in defaults, the YAML file, TRACKER_*
// environment variables, then command line flags (applied by cmd/server).
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	yaml "go.yaml.in/yaml/v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Schedule ScheduleConfig `yaml:"schedule"`
}

type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`

	// MutationsPerSecond limits write requests; zero disables the limiter.
	MutationsPerSecond float64 `yaml:"mutations_per_second"`
	MutationBurst      int     `yaml:"mutation_burst"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // trace, debug, info, warn, error
	Format string `yaml:"format"` // console or json
}

type ScheduleConfig struct {
	// Timezone derives "today" for drift checks, e.g. "Europe/Paris".
	Timezone string `yaml:"timezone"`
	// RecentWindow bounds which items "recent" regeneration picks up.
	RecentWindow Duration `yaml:"recent_window"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:               8080,
			ReadTimeout:        Duration(15 * time.Second),
			WriteTimeout:       Duration(15 * time.Second),
			ShutdownTimeout:    Duration(30 * time.Second),
			MutationsPerSecond: 20,
			MutationBurst:      40,
		},
		Database: DatabaseConfig{Path: "./data/tracker.db"},
		Logging:  LoggingConfig{Level: "info", Format: "console"},
		Schedule: ScheduleConfig{Timezone: "UTC", RecentWindow: Duration(30 * time.Minute)},
	}
}

// Load reads path (if non-empty) over the defaults, then applies the
// environment. Unknown YAML keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from TRACKER_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("TRACKER_PORT"); ok {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("TRACKER_PORT: invalid port %q", v)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("TRACKER_DB"); ok {
		c.Database.Path = strings.TrimSpace(v)
	}
	if v, ok := lookup("TRACKER_LOG_LEVEL"); ok {
		c.Logging.Level = strings.TrimSpace(v)
	}
	if v, ok := lookup("TRACKER_LOG_FORMAT"); ok {
		c.Logging.Format = strings.TrimSpace(v)
	}
	if v, ok := lookup("TRACKER_TIMEZONE"); ok {
		c.Schedule.Timezone = strings.TrimSpace(v)
	}
	if v, ok := lookup("TRACKER_RECENT_WINDOW"); ok {
		d, err := ParseDurationField("TRACKER_RECENT_WINDOW", v)
		if err != nil {
			return err
		}
		c.Schedule.RecentWindow = Duration(d)
	}
	return nil
}

func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: must be in 1..65535, got %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database.path: required")
	}
	if c.Server.MutationsPerSecond < 0 {
		return errors.New("server.mutations_per_second: must be >= 0")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: unknown format %q", c.Logging.Format)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Schedule.Timezone; empty means UTC.
func (c Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Schedule.Timezone)
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("schedule.timezone: %w", err)
	}
	return loc, nil
}

// =============================================================================
// DURATION
// =============================================================================

// Duration is a time.Duration written as "30s", "15m" in YAML.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	v, err := ParseDurationField(fmt.Sprintf("line %d", node.Line), raw)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// ParseDurationField parses raw, rejecting negative values. path names the
// field in error messages.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}
