// Package config loads queueboard settings from defaults, a YAML file,
// .env files and QUEUEBOARD_* environment variables, in that order of
// increasing precedence. Command-line flags are applied on top by the CLI.
//
// The YAML file and the environment are both checked against an embedded
// CUE schema before they are applied.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/queueboard/internal/board"
	"github.com/roach88/queueboard/internal/broadcast"
	"github.com/roach88/queueboard/internal/engine"
)

//go:embed schema.cue
var schemaSource string

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "QUEUEBOARD_"

// Config holds every setting.
type Config struct {
	// Addr is the listen address for serve.
	Addr string `yaml:"addr"`
	// DB is the SQLite database path.
	DB string `yaml:"db"`
	// PGURL selects the PostgreSQL store instead of SQLite.
	PGURL string `yaml:"pg_url"`
	// RedisURL selects Redis pub/sub instead of the in-process hub.
	RedisURL string `yaml:"redis_url"`
	// Channel is the broadcast channel name.
	Channel string `yaml:"channel"`
	// Server is the base URL client commands talk to. Empty means open the
	// local database directly.
	Server string `yaml:"server"`
	// HistoryRetention is how many history entries the store keeps.
	HistoryRetention int `yaml:"history_retention"`
	// RateLimit is requests per second allowed per client IP.
	RateLimit float64 `yaml:"rate_limit"`
	// RateBurst is the per-IP burst size.
	RateBurst int `yaml:"rate_burst"`
	// PollInterval is the full-state poll cadence for watch.
	PollInterval Duration `yaml:"poll_interval"`
	// RequestTimeout bounds every store request.
	RequestTimeout Duration `yaml:"request_timeout"`
	// Verbose enables debug logging.
	Verbose bool `yaml:"verbose"`
}

// Defaults returns the built-in settings.
func Defaults() Config {
	t := engine.DefaultTiming()
	return Config{
		Addr:             ":8080",
		DB:               "queueboard.db",
		Channel:          broadcast.DefaultChannel,
		HistoryRetention: board.DefaultHistoryLimit,
		RateLimit:        10,
		RateBurst:        20,
		PollInterval:     Duration(t.PollInterval),
		RequestTimeout:   Duration(t.RequestTimeout),
	}
}

// Timing returns the engine delays with the configured overrides.
func (c Config) Timing() engine.Timing {
	t := engine.DefaultTiming()
	if c.PollInterval > 0 {
		t.PollInterval = time.Duration(c.PollInterval)
	}
	if c.RequestTimeout > 0 {
		t.RequestTimeout = time.Duration(c.RequestTimeout)
	}
	return t
}

// Load builds the configuration. path names a YAML file; if empty,
// QUEUEBOARD_CONFIG is consulted, and with neither no file is read. A .env
// file in the working directory is loaded if present; it never overrides
// variables already set.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if err := LoadDotEnv(); err != nil {
		return cfg, err
	}
	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := LoadEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadDotEnv loads the given .env files, or ".env" when none are named.
// Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// LoadFile validates the YAML file at path and applies it over cfg.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := apply(cfg, raw); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}

// apply validates raw against the schema and overlays it on cfg.
func apply(cfg *Config, raw map[string]any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := validate(raw); err != nil {
		return err
	}
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func validate(raw map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))
	v := def.Unify(ctx.Encode(raw))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

// ValidationError reports settings rejected by the schema.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }
