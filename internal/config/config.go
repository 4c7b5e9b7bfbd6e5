// Package config loads the server and terminal client settings.
//
// Values come from three layers, later ones winning: built-in defaults,
// an optional YAML file (--config flag or TODO_CONFIG), and environment
// variables (a .env file is loaded into the environment by the binaries
// before this package runs). Loading ends with validation; a missing or
// malformed required value is an error and the binaries refuse to start.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/chetan-code/supatodo/internal/auth"
	"gopkg.in/yaml.v3"
)

const (
	VerifierSupabase = "supabase"
	VerifierJWT      = "jwt"

	DriverSupabase = "supabase"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// ServerConfig configures the API server.
type ServerConfig struct {
	// Port the server listens on. Default: 5001
	Port string `yaml:"port"`

	// CORSOrigin is the single browser origin allowed to call the API.
	// Default: http://localhost:3000
	CORSOrigin string `yaml:"cors_origin"`

	// LogLevel is one of debug, info, warn, error. Default: info
	LogLevel string `yaml:"log_level"`

	Supabase SupabaseConfig `yaml:"supabase"`
	Auth     AuthConfig     `yaml:"auth"`
	Store    StoreConfig    `yaml:"store"`
}

type SupabaseConfig struct {
	// URL of the provider project, e.g. https://abc.supabase.co
	URL string `yaml:"url"`

	// Key used for server-side calls. Service role or anon key.
	Key string `yaml:"key"`

	// JWTSecret verifies access tokens locally when Auth.Verifier is jwt.
	JWTSecret string `yaml:"jwt_secret"`
}

type AuthConfig struct {
	// Verifier is supabase (ask the provider) or jwt (check locally).
	Verifier string `yaml:"verifier"`

	// Audience required on access tokens by the jwt verifier.
	// Default: authenticated
	Audience string `yaml:"audience"`
}

type StoreConfig struct {
	// Driver is supabase, postgres or sqlite. Default: supabase
	Driver string `yaml:"driver"`

	// DatabaseURL is the PostgreSQL connection string for postgres.
	DatabaseURL string `yaml:"database_url"`

	// SQLitePath is the database file for sqlite. Default: todos.db
	SQLitePath string `yaml:"sqlite_path"`
}

// DefaultServer returns the server defaults before file and env.
func DefaultServer() *ServerConfig {
	return &ServerConfig{
		Port:       "5001",
		CORSOrigin: "http://localhost:3000",
		LogLevel:   "info",
		Auth: AuthConfig{
			Verifier: VerifierSupabase,
			Audience: auth.DefaultAudience,
		},
		Store: StoreConfig{
			Driver:     DriverSupabase,
			SQLitePath: "todos.db",
		},
	}
}

// LoadServer builds the server config from defaults, the YAML file at
// path (if non-empty) and the process environment, then validates it.
func LoadServer(path string) (*ServerConfig, error) {
	return loadServer(path, os.LookupEnv)
}

type lookupFunc func(string) (string, bool)

func loadServer(path string, lookup lookupFunc) (*ServerConfig, error) {
	cfg := DefaultServer()
	if err := loadFile(path, cfg); err != nil {
		return nil, err
	}

	override(lookup, "PORT", &cfg.Port)
	override(lookup, "CORS_ORIGIN", &cfg.CORSOrigin)
	override(lookup, "LOG_LEVEL", &cfg.LogLevel)
	override(lookup, "SUPABASE_URL", &cfg.Supabase.URL)
	override(lookup, "SUPABASE_KEY", &cfg.Supabase.Key)
	override(lookup, "SUPABASE_JWT_SECRET", &cfg.Supabase.JWTSecret)
	override(lookup, "AUTH_VERIFIER", &cfg.Auth.Verifier)
	override(lookup, "AUTH_AUDIENCE", &cfg.Auth.Audience)
	override(lookup, "STORE_DRIVER", &cfg.Store.Driver)
	override(lookup, "DB_URL", &cfg.Store.DatabaseURL)
	override(lookup, "SQLITE_PATH", &cfg.Store.SQLitePath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem with the config at once.
func (c *ServerConfig) Validate() error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, errors.New("PORT is empty"))
	}
	if _, err := url.ParseRequestURI(c.CORSOrigin); err != nil {
		errs = append(errs, fmt.Errorf("CORS_ORIGIN %q is not a url", c.CORSOrigin))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	needsProvider := false
	switch c.Auth.Verifier {
	case VerifierSupabase:
		needsProvider = true
	case VerifierJWT:
		if c.Supabase.JWTSecret == "" {
			errs = append(errs, errors.New("SUPABASE_JWT_SECRET is required for the jwt verifier"))
		}
	default:
		errs = append(errs, fmt.Errorf("AUTH_VERIFIER %q must be %s or %s", c.Auth.Verifier, VerifierSupabase, VerifierJWT))
	}

	switch c.Store.Driver {
	case DriverSupabase:
		needsProvider = true
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("DB_URL is required for the postgres store"))
		}
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite store"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER %q must be %s, %s or %s", c.Store.Driver, DriverSupabase, DriverPostgres, DriverSQLite))
	}

	if needsProvider {
		if c.Supabase.URL == "" || c.Supabase.Key == "" {
			errs = append(errs, errors.New("SUPABASE_URL and SUPABASE_KEY are required"))
		} else if _, err := url.ParseRequestURI(c.Supabase.URL); err != nil {
			errs = append(errs, fmt.Errorf("SUPABASE_URL %q is not a url", c.Supabase.URL))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid server config: %w", errors.Join(errs...))
	}
	return nil
}

// Addr is the listen address for Port.
func (c *ServerConfig) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}

// loadFile decodes the YAML file at path into cfg. An empty path is not
// an error; a path that cannot be read is.
func loadFile(path string, cfg any) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

func override(lookup lookupFunc, key string, dst *string) {
	if v, ok := lookup(key); ok && v != "" {
		*dst = v
	}
}

// FilePath returns the config file named by flagValue, falling back to
// TODO_CONFIG. Neither set means no file.
func FilePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("TODO_CONFIG")
}
