// Package config loads server configuration. Sources are applied in order:
// defaults, the backend JSON file, PTO_* environment variables, then flags.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "PTO_"

// DefaultBackendConfig is read when no path is given; it may be absent.
const DefaultBackendConfig = "backend.json"

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Google holds the OAuth client of the Google provider.
type Google struct {
	ClientID     string `json:"clientId" env:"CLIENT_ID"`
	ClientSecret string `json:"clientSecret" env:"CLIENT_SECRET"`
	RedirectURL  string `json:"redirectUrl" env:"REDIRECT_URL"`
}

// Backend is the static backend connection config, usually from backend.json.
type Backend struct {
	ProjectID   string `json:"projectId" env:"PROJECT_ID"`
	APIKey      string `json:"apiKey" env:"API_KEY"`
	AuthDomain  string `json:"authDomain" env:"AUTH_DOMAIN"`
	DatabaseDSN string `json:"databaseDsn" env:"DATABASE_DSN"`
	RedisAddr   string `json:"redisAddr" env:"REDIS_ADDR"`
	Google      Google `json:"google" envPrefix:"GOOGLE_"`
}

// Config is the full server configuration.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR"`
	GRPCAddr string `env:"GRPC_ADDR"`
	Storage  string `env:"STORAGE"`

	SigningKey string        `env:"SIGNING_KEY"`
	IDTokenTTL time.Duration `env:"ID_TOKEN_TTL"`
	SessionTTL time.Duration `env:"SESSION_TTL"`

	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"`

	// Year seeds createSelf. Zero means the wall-clock year at load time.
	Year           int  `env:"YEAR"`
	RefreshOnWrite bool `env:"REFRESH_ON_WRITE"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	OpenerOrigin   string   `env:"OPENER_ORIGIN"`
	SecureCookies  bool     `env:"SECURE_COOKIES"`
	Dev            bool     `env:"DEV"`

	BackendConfigPath string  `env:"BACKEND_CONFIG"`
	Backend           Backend
}

var now = time.Now

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		HTTPAddr:          ":8080",
		GRPCAddr:          ":8081",
		Storage:           StorageMemory,
		IDTokenTTL:        time.Hour,
		SessionTTL:        14 * 24 * time.Hour,
		RefreshOnWrite:    true,
		BackendConfigPath: DefaultBackendConfig,
	}
}

// Load builds the config from args (without the program name) and environ.
func Load(args []string, environ map[string]string) (*Config, error) {
	cfg := Default()
	if environ == nil {
		environ = map[string]string{}
	}

	path, explicit, err := backendPath(args, environ)
	if err != nil {
		return nil, err
	}
	cfg.BackendConfigPath = path
	err = readBackendFile(path, &cfg.Backend)
	if err != nil && (explicit || !errors.Is(err, fs.ErrNotExist)) {
		return nil, err
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix, Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.AllowedOrigins = splitList(strings.Join(cfg.AllowedOrigins, ","))

	fset := newFlagSet(cfg)
	if err := fset.Parse(args); err != nil {
		return nil, err
	}

	if cfg.Year == 0 {
		cfg.Year = now().Year()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required values and combinations.
func (c *Config) Validate() error {
	switch c.Storage {
	case StorageMemory:
	case StoragePostgres:
		if c.Backend.DatabaseDSN == "" {
			return errors.New("config: postgres storage requires a database dsn")
		}
	default:
		return fmt.Errorf("config: unknown storage %q", c.Storage)
	}
	if c.SigningKey == "" {
		return errors.New("config: missing signing key (PTO_SIGNING_KEY or -signing-key)")
	}
	if c.IDTokenTTL <= 0 || c.SessionTTL <= 0 {
		return errors.New("config: token and session TTLs must be positive")
	}
	if c.Backend.Google.ClientID != "" && c.Backend.Google.RedirectURL == "" {
		return errors.New("config: google sign-in requires a redirect url")
	}
	return nil
}

// backendPath finds the backend file path before the full parse; explicit
// reports whether it was set rather than defaulted.
func backendPath(args []string, environ map[string]string) (string, bool, error) {
	path, explicit := DefaultBackendConfig, false
	if v, ok := environ[EnvPrefix+"BACKEND_CONFIG"]; ok && v != "" {
		path, explicit = v, true
	}
	probe := newFlagSet(Default())
	if err := probe.Parse(args); err != nil {
		return "", false, err
	}
	probe.Visit(func(f *flag.Flag) {
		if f.Name == "backend-config" {
			path, explicit = f.Value.String(), true
		}
	})
	return path, explicit, nil
}

func readBackendFile(path string, dst *Backend) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("backend config %s: %w", path, err)
	}
	return nil
}

// newFlagSet binds flags to c; current values become the flag defaults.
func newFlagSet(c *Config) *flag.FlagSet {
	fset := flag.NewFlagSet("pto-server", flag.ContinueOnError)
	fset.SetOutput(io.Discard)

	fset.StringVar(&c.HTTPAddr, "http-addr", c.HTTPAddr, "HTTP listen address")
	fset.StringVar(&c.GRPCAddr, "grpc-addr", c.GRPCAddr, "gRPC health listen address (empty disables)")
	fset.StringVar(&c.Storage, "storage", c.Storage, "storage backend: memory or postgres")
	fset.StringVar(&c.Backend.DatabaseDSN, "dsn", c.Backend.DatabaseDSN, "PostgreSQL DSN")
	fset.StringVar(&c.Backend.RedisAddr, "redis-addr", c.Backend.RedisAddr, "Redis address (empty keeps sessions in memory)")
	fset.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database")
	fset.StringVar(&c.SigningKey, "signing-key", c.SigningKey, "HS256 signing key")
	fset.DurationVar(&c.IDTokenTTL, "id-token-ttl", c.IDTokenTTL, "id token TTL")
	fset.DurationVar(&c.SessionTTL, "session-ttl", c.SessionTTL, "session TTL")
	fset.IntVar(&c.Year, "year", c.Year, "current year for new records (0 = this year)")
	fset.BoolVar(&c.RefreshOnWrite, "refresh-on-write", c.RefreshOnWrite, "push ptoData after every write")
	fset.Func("allowed-origins", "comma separated websocket origins", func(v string) error {
		c.AllowedOrigins = splitList(v)
		return nil
	})
	fset.StringVar(&c.OpenerOrigin, "opener-origin", c.OpenerOrigin, "origin the sign-in popup reports to")
	fset.BoolVar(&c.SecureCookies, "secure-cookies", c.SecureCookies, "mark cookies Secure")
	fset.BoolVar(&c.Dev, "dev", c.Dev, "development logging and gRPC reflection")
	fset.StringVar(&c.BackendConfigPath, "backend-config", c.BackendConfigPath, "backend connection config file")
	return fset
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Environ returns the process environment as a map for Load.
func Environ() map[string]string {
	return env.ToMap(os.Environ())
}
