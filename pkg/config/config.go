// Package config loads berry-stats configuration from an optional YAML or
// TOML file and the environment.
//
// Precedence, lowest first: defaults, file, environment. Example YAML:
//
//	api_url: https://pokeapi.co/api/v2
//	collection: berry
//
//	fetch:
//	  mode: concurrent
//	  workers: 10
//	  timeout: 30s
//
//	history:
//	  backend: sqlite
//	  sqlite_path: ./tmp/history.db
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	// APIURL is the upstream base URL (POKE_API_URL). Empty is allowed at
	// load time; the stats route reports it.
	APIURL string `yaml:"api_url" toml:"api_url"`

	// Collection is appended to APIURL to form the listing endpoint.
	Collection string `yaml:"collection" toml:"collection"`

	Fetch   FetchConfig   `yaml:"fetch" toml:"fetch"`
	Server  ServerConfig  `yaml:"server" toml:"server"`
	Log     LogConfig     `yaml:"log" toml:"log"`
	History HistoryConfig `yaml:"history" toml:"history"`
}

// FetchConfig controls listing and detail fetching.
type FetchConfig struct {
	// Mode is "sequential" or "concurrent"; anything else means concurrent.
	Mode string `yaml:"mode" toml:"mode"`

	// Workers bounds concurrent detail fetches.
	Workers int `yaml:"workers" toml:"workers"`

	// MaxPages caps the listing. 0 means unbounded.
	MaxPages int `yaml:"max_pages" toml:"max_pages"`

	// Timeout bounds a single upstream request. 0 means none.
	Timeout Duration `yaml:"timeout" toml:"timeout"`

	// UserAgent is sent with every upstream request.
	UserAgent string `yaml:"user_agent" toml:"user_agent"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" toml:"port"`

	// ContentType is the Content-Type of the stats response.
	ContentType string `yaml:"content_type" toml:"content_type"`

	// HistogramPath is where the growth time histogram is written after each
	// run. Set it to "" in a config file to disable it.
	HistogramPath string `yaml:"histogram_path" toml:"histogram_path"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Pretty bool   `yaml:"pretty" toml:"pretty"`
}

// HistoryConfig selects the run history backend.
type HistoryConfig struct {
	// Backend is "none", "redis" or "sqlite".
	Backend    string `yaml:"backend" toml:"backend"`
	RedisURL   string `yaml:"redis_url" toml:"redis_url"`
	SQLitePath string `yaml:"sqlite_path" toml:"sqlite_path"`

	// Limit is the number of runs kept by the redis backend and the default
	// page size of /runs.
	Limit int `yaml:"limit" toml:"limit"`
}

// Duration wraps time.Duration for YAML and TOML decoding.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// UnmarshalText implements encoding.TextUnmarshaler, used by the TOML decoder.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// DefaultHistogramPath is where the histogram goes unless configured otherwise.
const DefaultHistogramPath = "./tmp/berry_growth_histogram.txt"

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Collection: "berry",
		Fetch: FetchConfig{
			Mode:      "concurrent",
			Workers:   10,
			UserAgent: "berry-stats/0.1.0",
		},
		Server: ServerConfig{
			Port:          5000,
			ContentType:   "application/json",
			HistogramPath: DefaultHistogramPath,
		},
		Log: LogConfig{
			Level: "info",
		},
		History: HistoryConfig{
			Backend: "none",
			Limit:   100,
		},
	}
}

// Load builds the configuration from defaults, the file at path (skipped when
// path is empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadFile decodes path over c, picking the format from the extension.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), c); err != nil {
			return fmt.Errorf("failed to parse TOML: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file extension %q (want .yaml, .yml or .toml)", ext)
	}
	return nil
}

// applyEnv overrides fields from environment variables. Empty values are
// ignored.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return "", false
		}
		return v, true
	}

	strs := []struct {
		key string
		dst *string
	}{
		{"POKE_API_URL", &c.APIURL},
		{"POKE_COLLECTION", &c.Collection},
		{"FETCH_MODE", &c.Fetch.Mode},
		{"USER_AGENT", &c.Fetch.UserAgent},
		{"RESPONSE_CONTENT_TYPE", &c.Server.ContentType},
		{"HISTOGRAM_PATH", &c.Server.HistogramPath},
		{"LOG_LEVEL", &c.Log.Level},
		{"HISTORY_BACKEND", &c.History.Backend},
		{"REDIS_URL", &c.History.RedisURL},
		{"SQLITE_PATH", &c.History.SQLitePath},
	}
	for _, s := range strs {
		if v, ok := get(s.key); ok {
			*s.dst = v
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"FETCH_WORKERS", &c.Fetch.Workers},
		{"FETCH_MAX_PAGES", &c.Fetch.MaxPages},
		{"PORT", &c.Server.Port},
		{"HISTORY_LIMIT", &c.History.Limit},
	}
	for _, i := range ints {
		if v, ok := get(i.key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: invalid integer %q", i.key, v)
			}
			*i.dst = n
		}
	}

	if v, ok := get("FETCH_TIMEOUT"); ok {
		if err := c.Fetch.Timeout.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("FETCH_TIMEOUT: %w", err)
		}
	}

	if v, ok := get("LOG_PRETTY"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LOG_PRETTY: invalid boolean %q", v)
		}
		c.Log.Pretty = b
	}

	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Fetch.Workers < 1 {
		return fmt.Errorf("fetch.workers must be at least 1, got %d", c.Fetch.Workers)
	}
	if c.Fetch.MaxPages < 0 {
		return fmt.Errorf("fetch.max_pages cannot be negative, got %d", c.Fetch.MaxPages)
	}
	if c.Fetch.Timeout.Duration() < 0 {
		return fmt.Errorf("fetch.timeout cannot be negative, got %s", c.Fetch.Timeout.Duration())
	}
	if c.Fetch.UserAgent == "" {
		return fmt.Errorf("fetch.user_agent is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.History.Limit < 0 {
		return fmt.Errorf("history.limit cannot be negative, got %d", c.History.Limit)
	}

	switch strings.ToLower(c.History.Backend) {
	case "", "none":
	case "redis":
		if c.History.RedisURL == "" {
			return fmt.Errorf("history.redis_url is required for the redis backend")
		}
	case "sqlite":
		if c.History.SQLitePath == "" {
			return fmt.Errorf("history.sqlite_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("history.backend must be none, redis or sqlite, got %q", c.History.Backend)
	}

	return nil
}
