// Package config loads server configuration from defaults, an optional YAML
// file, and environment variables, in that order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stevemurr/simple-item-server/logging"
	"github.com/stevemurr/simple-item-server/store"
)

// Common errors for configuration loading.
var (
	ErrFileNotFound = errors.New("configuration file not found")
	ErrInvalidYAML  = errors.New("invalid YAML syntax")
	ErrInvalid      = errors.New("invalid configuration")
)

// Config is the full server configuration.
type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Store   StoreConfig    `yaml:"store"`
	Log     logging.Config `yaml:"log"`
	Metrics MetricsConfig  `yaml:"metrics"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
	MaxBodyBytes    int64         `yaml:"maxBodyBytes"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// StoreConfig selects the item store backend.
type StoreConfig struct {
	Backend string `yaml:"backend"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns the configuration used when nothing else is supplied.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			AllowedOrigins:  []string{"*"},
			MaxBodyBytes:    1 << 20,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Store:   StoreConfig{Backend: store.BackendMemory},
		Log:     logging.DefaultConfig(),
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

// Load returns defaults overlaid with the YAML file at path (if non-empty)
// and then with environment variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return c.decode(data)
}

// decode overlays YAML onto c. Unknown keys are rejected.
func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return nil
}

// ApplyEnv overrides fields from environment variables read through getenv.
// Empty values are ignored.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	env := func(key, fallback string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return fallback
	}

	c.Server.Host = env("HOST", c.Server.Host)
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: PORT=%q is not a number", ErrInvalid, v)
		}
		c.Server.Port = port
	}
	if v := getenv("ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	c.Store.Backend = env("STORE_BACKEND", c.Store.Backend)
	c.Log.Level = env("LOG_LEVEL", c.Log.Level)
	c.Log.Format = env("LOG_FORMAT", c.Log.Format)
	c.Log.File = env("LOG_FILE", c.Log.File)
	if v := getenv("METRICS_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: METRICS_ENABLED=%q is not a boolean", ErrInvalid, v)
		}
		c.Metrics.Enabled = enabled
	}
	return nil
}

// Validate checks that the configuration can be used to start a server.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.maxBodyBytes must be positive"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.shutdownTimeout must be positive"))
	}
	if len(c.Server.AllowedOrigins) == 0 {
		errs = append(errs, fmt.Errorf("server.allowedOrigins must not be empty"))
	}
	switch c.Store.Backend {
	case store.BackendMemory, store.BackendSqlite:
	default:
		errs = append(errs, fmt.Errorf("store.backend %q is not one of memory, sqlite", c.Store.Backend))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		errs = append(errs, fmt.Errorf("log.format: %w", err))
	}
	if c.Metrics.Enabled {
		if err := checkMetricsPath(c.Metrics.Path); err != nil {
			errs = append(errs, fmt.Errorf("metrics.path %q %w", c.Metrics.Path, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// checkMetricsPath rejects paths the mux cannot mount beside the API routes.
// Wildcards and unclean paths are refused, as is anything that overlaps
// the root, /health or /items.
func checkMetricsPath(p string) error {
	if !strings.HasPrefix(p, "/") {
		return errors.New("must start with /")
	}
	if strings.ContainsAny(p, "{} \t\n") {
		return errors.New("must not contain wildcards or whitespace")
	}
	if clean := path.Clean(p); clean != strings.TrimSuffix(p, "/") && clean != p {
		return errors.New("must be a clean path")
	}
	trimmed := strings.TrimSuffix(p, "/")
	switch {
	case trimmed == "":
		return errors.New("must not be the root path")
	case trimmed == "/health", trimmed == "/items", strings.HasPrefix(trimmed, "/items/"):
		return errors.New("clashes with an API route")
	}
	return nil
}

// Addr returns the host:port listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// YAML renders the configuration as YAML.
func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
