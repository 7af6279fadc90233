// Package config provides Viper-based configuration loading for the lasertag server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds the WebSocket listener settings.
type ServerConfig struct {
	// Host is the bind address for the HTTP listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the HTTP listener.
	Port int `mapstructure:"port"`
	// WSPath is the HTTP path that upgrades to a WebSocket.
	WSPath string `mapstructure:"ws_path"`
	// AllowedOrigins lists origin patterns accepted on upgrade. Empty means same-origin only.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// TransportConfig holds per-connection settings.
type TransportConfig struct {
	// ReadTimeout is the maximum idle time between inbound frames. Zero disables it.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout bounds a single outbound frame write.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// SendBuffer is the per-connection outbound queue depth; messages beyond it are dropped.
	SendBuffer int `mapstructure:"send_buffer"`
}

// GameConfig holds session rules.
type GameConfig struct {
	// Duration is the countdown length of a game.
	Duration time.Duration `mapstructure:"duration"`
	// TickInterval is the countdown broadcast interval.
	TickInterval time.Duration `mapstructure:"tick_interval"`
	// CodeLength is the number of characters in a game code.
	CodeLength int `mapstructure:"code_length"`
	// RulesFile is an optional YAML scoring rules file; empty uses the built-in table.
	RulesFile string `mapstructure:"rules_file"`
}

// HealthConfig holds the gRPC health-check endpoint settings.
type HealthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// Addr returns the "host:port" gRPC address.
func (h HealthConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Transport TransportConfig `mapstructure:"transport"`
	Game      GameConfig      `mapstructure:"game"`
	Health    HealthConfig    `mapstructure:"health"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateTransport(c.Transport); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateGame(c.Game); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateHealth(c.Health); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", s.Port))
	}
	if !strings.HasPrefix(s.WSPath, "/") {
		errs = append(errs, fmt.Sprintf("server.ws_path must start with '/', got %q", s.WSPath))
	}
	if s.ShutdownTimeout < 0 {
		errs = append(errs, "server.shutdown_timeout must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateTransport(t TransportConfig) error {
	var errs []string
	if t.ReadTimeout < 0 {
		errs = append(errs, "transport.read_timeout must not be negative")
	}
	if t.WriteTimeout <= 0 {
		errs = append(errs, "transport.write_timeout must be positive")
	}
	if t.SendBuffer < 1 {
		errs = append(errs, fmt.Sprintf("transport.send_buffer must be >= 1, got %d", t.SendBuffer))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateGame(g GameConfig) error {
	var errs []string
	if g.TickInterval <= 0 {
		errs = append(errs, "game.tick_interval must be positive")
	}
	if g.Duration < g.TickInterval {
		errs = append(errs, fmt.Sprintf("game.duration must be at least one tick_interval, got %s", g.Duration))
	}
	if g.CodeLength < 4 || g.CodeLength > 12 {
		errs = append(errs, fmt.Sprintf("game.code_length must be 4-12, got %d", g.CodeLength))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateHealth(h HealthConfig) error {
	if !h.Enabled {
		return nil
	}
	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("health.port must be 1-65535, got %d", h.Port)
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result. An empty path loads defaults and environment only.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := NewViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	return LoadFromViper(v)
}

// NewViper returns a Viper instance with defaults and LASERTAG_ environment
// overrides applied.
//
// Postcondition: Returns a non-nil *viper.Viper.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("LASERTAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.ws_path", "/ws")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("transport.read_timeout", "0s")
	v.SetDefault("transport.write_timeout", "10s")
	v.SetDefault("transport.send_buffer", 64)

	v.SetDefault("game.duration", "120s")
	v.SetDefault("game.tick_interval", "1s")
	v.SetDefault("game.code_length", 6)
	v.SetDefault("game.rules_file", "")

	v.SetDefault("health.enabled", true)
	v.SetDefault("health.host", "127.0.0.1")
	v.SetDefault("health.port", 50051)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
