// Package config loads zeroguard settings from defaults, an optional YAML
// or TOML file and ZEROGUARD_* environment variables, in that order.
// Settings are read once at startup.
package config

import (
	"time"

	"dqx0.com/go/zeroguard/zeroread"
)

// Config is the root configuration of the zeroguard server.
type Config struct {
	Server   ServerConfig   `yaml:"server" toml:"server"`
	ZeroRead ZeroReadConfig `yaml:"zero_read" toml:"zero_read"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics" toml:"metrics"`
}

// ServerConfig mirrors the tunables of httpx.Server.
type ServerConfig struct {
	Addr                string        `yaml:"addr" toml:"addr"`
	ReadHeaderTimeout   time.Duration `yaml:"read_header_timeout" toml:"read_header_timeout"`
	ReadTimeout         time.Duration `yaml:"read_timeout" toml:"read_timeout"`
	WriteTimeout        time.Duration `yaml:"write_timeout" toml:"write_timeout"`
	IdleTimeout         time.Duration `yaml:"idle_timeout" toml:"idle_timeout"`
	ShutdownTimeout     time.Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
	MaxHeaderBytes      int           `yaml:"max_header_bytes" toml:"max_header_bytes"`
	MaxTotalHeaderBytes int           `yaml:"max_total_header_bytes" toml:"max_total_header_bytes"`
	MaxBodyBytes        int64         `yaml:"max_body_bytes" toml:"max_body_bytes"`
	TLS                 TLSConfig     `yaml:"tls" toml:"tls"`
}

// TLSConfig enables TLS when both files are set.
type TLSConfig struct {
	CertFile string `yaml:"cert_file" toml:"cert_file"`
	KeyFile  string `yaml:"key_file" toml:"key_file"`
}

// Enabled reports whether a certificate and key were configured.
func (t TLSConfig) Enabled() bool { return t.CertFile != "" && t.KeyFile != "" }

// ZeroReadConfig holds the watchdog settings. Disabled is a kill switch so
// the zero value keeps the watchdog on.
type ZeroReadConfig struct {
	Disabled         bool          `yaml:"disabled" toml:"disabled"`
	Timeout          time.Duration `yaml:"timeout" toml:"timeout"`
	CheckCount       bool          `yaml:"check_count" toml:"check_count"`
	MaxZeroReadCount uint          `yaml:"max_zero_read_count" toml:"max_zero_read_count"`
}

type LoggingConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `yaml:"level" toml:"level"`
	// Format is console (zerolog), json or text (slog).
	Format  string `yaml:"format" toml:"format"`
	NoColor bool   `yaml:"no_color" toml:"no_color"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Addr    string `yaml:"addr" toml:"addr"`
	Path    string `yaml:"path" toml:"path"`
}

// Watchdog converts the zero_read section into the watchdog config.
func (c *Config) Watchdog() zeroread.Config {
	return zeroread.Config{
		Enabled:          !c.ZeroRead.Disabled,
		Timeout:          c.ZeroRead.Timeout,
		CheckCount:       c.ZeroRead.CheckCount,
		MaxZeroReadCount: c.ZeroRead.MaxZeroReadCount,
	}
}
