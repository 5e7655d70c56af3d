// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads gatekeeper configuration from a YAML file and
// command-line flags.
package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/gatekeeper/internal/xdg"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Password storage schemes.
const (
	StorageArgon2id  = "argon2id"
	StoragePlaintext = "plaintext"
)

// DatabaseURLEnv names the environment variable holding the Postgres DSN.
const DatabaseURLEnv = "DATABASE_URL"

// Config is the full gatekeeper configuration.
type Config struct {
	HTTP    HTTPConfig    `koanf:"http" json:"http,omitempty" yaml:"http"`
	Metrics MetricsConfig `koanf:"metrics" json:"metrics,omitempty" yaml:"metrics"`
	Log     LogConfig     `koanf:"log" json:"log,omitempty" yaml:"log"`
	Store   StoreConfig   `koanf:"store" json:"store,omitempty" yaml:"store"`
	Auth    AuthConfig    `koanf:"auth" json:"auth,omitempty" yaml:"auth"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr                     string `koanf:"addr" json:"addr,omitempty" yaml:"addr" jsonschema:"description=API listen address (host:port)"`
	ReadHeaderTimeoutSeconds int    `koanf:"read_header_timeout_seconds" json:"read_header_timeout_seconds,omitempty" yaml:"read_header_timeout_seconds" jsonschema:"minimum=1"`
	ShutdownTimeoutSeconds   int    `koanf:"shutdown_timeout_seconds" json:"shutdown_timeout_seconds,omitempty" yaml:"shutdown_timeout_seconds" jsonschema:"minimum=1"`
}

// MetricsConfig configures the observability listener.
type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty" yaml:"addr" jsonschema:"description=metrics and health listen address; empty disables it"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Format string `koanf:"format" json:"format,omitempty" yaml:"format" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" json:"level,omitempty" yaml:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// StoreConfig selects and configures the identity store.
type StoreConfig struct {
	Driver                string `koanf:"driver" json:"driver,omitempty" yaml:"driver" jsonschema:"enum=memory,enum=postgres,enum=sqlite"`
	SQLitePath            string `koanf:"sqlite_path" json:"sqlite_path,omitempty" yaml:"sqlite_path" jsonschema:"description=SQLite database file; defaults to the XDG data dir"`
	AutoMigrate           bool   `koanf:"auto_migrate" json:"auto_migrate,omitempty" yaml:"auto_migrate"`
	ConnectTimeoutSeconds int    `koanf:"connect_timeout_seconds" json:"connect_timeout_seconds,omitempty" yaml:"connect_timeout_seconds" jsonschema:"minimum=1"`

	// DatabaseURL comes only from the DATABASE_URL environment variable.
	DatabaseURL string `koanf:"-" json:"-" yaml:"-"`
}

// AuthConfig configures credential policies and storage.
type AuthConfig struct {
	PasswordStorage   string       `koanf:"password_storage" json:"password_storage,omitempty" yaml:"password_storage" jsonschema:"enum=argon2id,enum=plaintext"`
	UsernameMinLength int          `koanf:"username_min_length" json:"username_min_length,omitempty" yaml:"username_min_length" jsonschema:"minimum=1"`
	PasswordMinLength int          `koanf:"password_min_length" json:"password_min_length,omitempty" yaml:"password_min_length" jsonschema:"minimum=1"`
	Argon2            Argon2Config `koanf:"argon2" json:"argon2,omitempty" yaml:"argon2"`
}

// Argon2Config holds argon2id cost parameters.
type Argon2Config struct {
	MemoryKiB   int `koanf:"memory_kib" json:"memory_kib,omitempty" yaml:"memory_kib" jsonschema:"minimum=8"`
	Iterations  int `koanf:"iterations" json:"iterations,omitempty" yaml:"iterations" jsonschema:"minimum=1"`
	Parallelism int `koanf:"parallelism" json:"parallelism,omitempty" yaml:"parallelism" jsonschema:"minimum=1,maximum=255"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:                     "127.0.0.1:8000",
			ReadHeaderTimeoutSeconds: 10,
			ShutdownTimeoutSeconds:   15,
		},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9100"},
		Log:     LogConfig{Format: "json", Level: "info"},
		Store: StoreConfig{
			Driver:                DriverMemory,
			AutoMigrate:           true,
			ConnectTimeoutSeconds: 30,
		},
		Auth: AuthConfig{
			PasswordStorage:   StorageArgon2id,
			UsernameMinLength: 3,
			PasswordMinLength: 8,
			Argon2: Argon2Config{
				MemoryKiB:   64 * 1024,
				Iterations:  1,
				Parallelism: 4,
			},
		},
	}
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"http-addr":        "http.addr",
	"metrics-addr":     "metrics.addr",
	"log-format":       "log.format",
	"log-level":        "log.level",
	"store-driver":     "store.driver",
	"sqlite-path":      "store.sqlite_path",
	"auto-migrate":     "store.auto_migrate",
	"password-storage": "auth.password_storage",
}

// RegisterFlags adds the config-backed flags to flags, with defaults from Default.
func RegisterFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.String("http-addr", d.HTTP.Addr, "API listen address")
	flags.String("metrics-addr", d.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	flags.String("log-format", d.Log.Format, "log format (json or text)")
	flags.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	flags.String("store-driver", d.Store.Driver, "identity store (memory, postgres, sqlite)")
	flags.String("sqlite-path", d.Store.SQLitePath, "SQLite database file (default: XDG_DATA_HOME/gatekeeper/gatekeeper.db)")
	flags.Bool("auto-migrate", d.Store.AutoMigrate, "apply pending migrations on startup")
	flags.String("password-storage", d.Auth.PasswordStorage, "password storage scheme (argon2id or plaintext)")
}

// Load builds the configuration. Values are layered: built-in defaults, then
// the YAML file at path, then flags the user actually set. An empty path uses
// the XDG config file when one exists. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	path, err := resolvePath(path)
	if err != nil {
		return nil, err
	}
	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // operator-supplied config path
		if err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
		if err := ValidateYAML(data); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_PARSE_FAILED").With("path", path).Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	cfg.Store.DatabaseURL = os.Getenv(DatabaseURLEnv)

	if cfg.Store.Driver == DriverSQLite && cfg.Store.SQLitePath == "" {
		dbPath, err := xdg.DefaultDatabasePath()
		if err != nil {
			return nil, err
		}
		cfg.Store.SQLitePath = dbPath
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolvePath returns the explicit path unchanged, or the XDG config file if
// it exists, or "".
func resolvePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	def, err := xdg.ConfigFile()
	if err != nil {
		// No home directory means no default file; run on defaults.
		return "", nil //nolint:nilerr // absence of a default config is not an error
	}
	if _, err := os.Stat(def); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", oops.Code("CONFIG_READ_FAILED").With("path", def).Wrap(err)
	}
	return def, nil
}

// Validate checks enums, ranges and cross-field requirements.
func (c *Config) Validate() error {
	invalid := func(key string, value any, format string, args ...any) error {
		return oops.Code("CONFIG_INVALID").With("key", key).With("value", value).Errorf(format, args...)
	}

	if c.HTTP.Addr == "" {
		return invalid("http.addr", c.HTTP.Addr, "http.addr is required")
	}
	if c.HTTP.ReadHeaderTimeoutSeconds < 1 {
		return invalid("http.read_header_timeout_seconds", c.HTTP.ReadHeaderTimeoutSeconds, "http.read_header_timeout_seconds must be at least 1")
	}
	if c.HTTP.ShutdownTimeoutSeconds < 1 {
		return invalid("http.shutdown_timeout_seconds", c.HTTP.ShutdownTimeoutSeconds, "http.shutdown_timeout_seconds must be at least 1")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid("log.format", c.Log.Format, "log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log.level", c.Log.Level, "log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.Store.Driver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return invalid("store.driver", c.Store.Driver, "%s environment variable is required for the postgres driver", DatabaseURLEnv)
		}
	default:
		return invalid("store.driver", c.Store.Driver, "store.driver must be memory, postgres or sqlite, got %q", c.Store.Driver)
	}
	if c.Store.ConnectTimeoutSeconds < 1 {
		return invalid("store.connect_timeout_seconds", c.Store.ConnectTimeoutSeconds, "store.connect_timeout_seconds must be at least 1")
	}
	if c.Auth.PasswordStorage != StorageArgon2id && c.Auth.PasswordStorage != StoragePlaintext {
		return invalid("auth.password_storage", c.Auth.PasswordStorage, "auth.password_storage must be 'argon2id' or 'plaintext', got %q", c.Auth.PasswordStorage)
	}
	if c.Auth.UsernameMinLength < 1 {
		return invalid("auth.username_min_length", c.Auth.UsernameMinLength, "auth.username_min_length must be at least 1")
	}
	if c.Auth.PasswordMinLength < 1 {
		return invalid("auth.password_min_length", c.Auth.PasswordMinLength, "auth.password_min_length must be at least 1")
	}
	a := c.Auth.Argon2
	if a.MemoryKiB < 8 || a.Iterations < 1 || a.Parallelism < 1 || a.Parallelism > 255 {
		return invalid("auth.argon2", a, "auth.argon2 parameters out of range")
	}
	return nil
}

// ReadHeaderTimeout returns the HTTP read-header timeout.
func (c HTTPConfig) ReadHeaderTimeout() time.Duration {
	return time.Duration(c.ReadHeaderTimeoutSeconds) * time.Second
}

// ShutdownTimeout returns the graceful shutdown budget.
func (c HTTPConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// ConnectTimeout returns the startup connection retry budget.
func (c StoreConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}
