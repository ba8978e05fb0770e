// Package config loads repository configuration from YAML and validates it
// against an embedded CUE schema.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	units "github.com/docker/go-units"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Unlimited is the quota value meaning no limit.
const Unlimited = "unlimited"

// Config is the complete repository configuration.
type Config struct {
	// BaseURI prefixes every entry, metadata and resource URI. Must end in "/".
	BaseURI string `yaml:"base_uri" json:"base_uri"`
	// Authorization turns ACL checking on. Off means every call is allowed.
	Authorization bool `yaml:"authorization" json:"authorization"`
	// Provenance records a revision chain for local metadata.
	Provenance bool `yaml:"provenance" json:"provenance"`
	// Tombstones keeps deletion date and principal of removed entries.
	Tombstones bool `yaml:"tombstones" json:"tombstones"`
	// DataDir holds binary payloads of Local entries.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	Quota   QuotaConfig   `yaml:"quota" json:"quota"`
	Store   StoreConfig   `yaml:"store" json:"store"`
	Log     LogConfig     `yaml:"log" json:"log"`
	Events  EventsConfig  `yaml:"events" json:"events"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// QuotaConfig configures per-context byte budgets.
type QuotaConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Default applies to contexts without an explicit quota.
	Default string `yaml:"default" json:"default"`
}

// StoreConfig selects the statement store.
type StoreConfig struct {
	// Driver is "sqlite" or "memory".
	Driver string `yaml:"driver" json:"driver"`
	// Path is the SQLite database file.
	Path string `yaml:"path" json:"path"`
}

type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

// EventsConfig configures event forwarding. An empty NATSURL disables it.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url" json:"nats_url"`
	Subject string `yaml:"subject" json:"subject"`
}

// MetricsConfig configures the Prometheus textfile dump. Empty disables it.
type MetricsConfig struct {
	Textfile string `yaml:"textfile" json:"textfile"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		BaseURI:       "http://localhost:8080/store/",
		Authorization: true,
		Provenance:    true,
		Tombstones:    false,
		DataDir:       "data",
		Quota: QuotaConfig{
			Enabled: false,
			Default: Unlimited,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   "mdrepo.db",
		},
		Log:    LogConfig{Level: "info"},
		Events: EventsConfig{Subject: "mdrepo.events"},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the config against the CUE schema, then checks values
// the schema cannot express.
func (c *Config) Validate() error {
	if err := c.validateSchema(); err != nil {
		return err
	}
	if _, err := c.DefaultQuotaBytes(); err != nil {
		return err
	}
	if c.Store.Driver == "sqlite" && c.Store.Path == "" {
		return errors.New("config: store.path is required for the sqlite driver")
	}
	return nil
}

func (c *Config) validateSchema() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))
	v := def.Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("config: %s", strings.TrimSpace(cueerrors.Details(err, nil)))
	}
	return nil
}

// DefaultQuotaBytes parses Quota.Default. "unlimited" yields -1.
func (c *Config) DefaultQuotaBytes() (int64, error) {
	return ParseSize(c.Quota.Default)
}

// ParseSize parses a byte size such as "10M" or "unlimited" (-1).
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, Unlimited) || s == "-1" {
		return -1, nil
	}
	n, err := units.RAMInBytes(s)
	if err != nil {
		return 0, fmt.Errorf("config: invalid size %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("config: negative size %q", s)
	}
	return n, nil
}

// FormatSize renders a byte count the way ParseSize reads it back.
func FormatSize(n int64) string {
	if n < 0 {
		return Unlimited
	}
	return units.BytesSize(float64(n))
}

// SlogLevel maps Log.Level to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
