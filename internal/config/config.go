// Package config loads the activation server configuration with Viper.
//
// Layers, lowest first: built-in defaults, config.yaml, a .env file, then the
// process environment. Environment variables use the ACTIVATION_ prefix
// (ACTIVATION_DATABASE_URL overrides database.url). PORT, DATABASE_URL,
// TURSO_DATABASE_URL and TURSO_AUTH_TOKEN are accepted as well.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	APIDocs   APIDocsConfig   `mapstructure:"api_docs"`

	source *viper.Viper
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds the registration database settings.
type DatabaseConfig struct {
	URL          string        `mapstructure:"url"`
	AuthToken    string        `mapstructure:"auth_token"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// APIDocsConfig toggles the Swagger UI.
type APIDocsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

const envPrefix = "ACTIVATION"

// envAliases lists variable names accepted besides the ACTIVATION_ form.
var envAliases = map[string][]string{
	"server.port":         {"PORT"},
	"database.url":        {"DATABASE_URL", "TURSO_DATABASE_URL"},
	"database.auth_token": {"TURSO_AUTH_TOKEN"},
}

var keys = []string{
	"server.host",
	"server.port",
	"server.read_timeout",
	"server.write_timeout",
	"server.shutdown_timeout",

	"database.url",
	"database.auth_token",
	"database.max_open_conns",
	"database.max_idle_conns",
	"database.query_timeout",

	"logging.level",
	"logging.format",

	"telemetry.metrics.enabled",
	"telemetry.metrics.port",

	"api_docs.enabled",
}

// bindEnvVars binds every key explicitly; AutomaticEnv alone is not
// consulted by Unmarshal for keys without a default or file value.
func bindEnvVars(v *viper.Viper) error {
	for _, key := range keys {
		names := []string{envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}
		names = append(names, envAliases[key]...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return fmt.Errorf("failed to bind env var %q: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.url", "")
	v.SetDefault("database.auth_token", "")
	v.SetDefault("database.max_open_conns", 0)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.query_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("telemetry.metrics.enabled", true)
	v.SetDefault("telemetry.metrics.port", 9090)

	v.SetDefault("api_docs.enabled", true)
}

// Load reads configuration from configPath (or config.yaml in . or ./config
// when empty), the .env file in the working directory and the environment.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	cfg.source = v
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.Database.AuthToken = os.ExpandEnv(cfg.Database.AuthToken)
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// loadDotEnv exports the entries of a dotenv file that are not already set
// in the environment. A missing file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	d := viper.New()
	d.SetConfigFile(path)
	d.SetConfigType("env")
	if err := d.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading %s: %w", path, err)
	}
	for _, key := range d.AllKeys() {
		name := strings.ToUpper(key)
		if _, set := os.LookupEnv(name); set {
			continue
		}
		if err := os.Setenv(name, d.GetString(key)); err != nil {
			return fmt.Errorf("export %s: %w", name, err)
		}
	}
	return nil
}

// Validate rejects malformed values. Absent database settings are not
// errors; see Warnings.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Telemetry.Metrics.Enabled {
		if c.Telemetry.Metrics.Port < 1 || c.Telemetry.Metrics.Port > 65535 {
			return fmt.Errorf("invalid metrics port: %d", c.Telemetry.Metrics.Port)
		}
		if c.Telemetry.Metrics.Port == c.Server.Port {
			return fmt.Errorf("metrics port %d collides with server port", c.Telemetry.Metrics.Port)
		}
	}
	if c.Database.MaxOpenConns < 0 || c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database pool sizes must not be negative")
	}
	if c.Database.QueryTimeout <= 0 {
		return fmt.Errorf("database.query_timeout must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}
	return nil
}

// Warnings lists missing settings that leave the server running but unable
// to serve activations.
func (c *Config) Warnings() []string {
	var out []string
	if c.Database.URL == "" {
		out = append(out, "database url is missing (set ACTIVATION_DATABASE_URL, DATABASE_URL or TURSO_DATABASE_URL); activations will fail")
	}
	if c.Database.AuthToken == "" && isRemote(c.Database.URL) {
		out = append(out, "database auth token is missing (set ACTIVATION_DATABASE_AUTH_TOKEN or TURSO_AUTH_TOKEN)")
	}
	return out
}

// isRemote reports whether raw names a network database that carries no
// credential of its own.
func isRemote(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "", "sqlite", "sqlite3", "file":
		return false
	}
	_, hasPassword := u.User.Password()
	return !hasPassword
}

// GetAddress returns the listen address in host:port form.
func (s *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// FileUsed returns the path of the config file that was read, or "".
func (c *Config) FileUsed() string {
	if c.source == nil {
		return ""
	}
	return c.source.ConfigFileUsed()
}

// Watch calls onChange with the re-read configuration whenever the config
// file is written. It returns false when no config file is in use.
// Invalid edits are logged and ignored.
func (c *Config) Watch(onChange func(*Config)) bool {
	if c.FileUsed() == "" {
		return false
	}
	v := c.source
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next, err := decode(v)
		if err != nil {
			slog.Warn("ignoring config change", "file", e.Name, "error", err)
			return
		}
		next.source = v
		onChange(next)
	})
	v.WatchConfig()
	return true
}
