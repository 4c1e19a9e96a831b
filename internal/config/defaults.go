package config

import (
	"time"

	"dqx0.com/go/zeroguard/zeroread"
)

// Default values for configuration fields.
const (
	DefaultAddr                = "127.0.0.1:8080"
	DefaultReadHeaderTimeout   = 10 * time.Second
	DefaultIdleTimeout         = 120 * time.Second
	DefaultShutdownTimeout     = 15 * time.Second
	DefaultMaxHeaderBytes      = 1 << 20
	DefaultMaxTotalHeaderBytes = 1 << 20

	DefaultZeroReadTimeout  = zeroread.DefaultTimeout
	DefaultMaxZeroReadCount = zeroread.DefaultMaxZeroReadCount

	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"

	DefaultMetricsAddr = "127.0.0.1:9090"
	DefaultMetricsPath = "/metrics"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields. Read and write timeouts stay
// unlimited unless configured since request bodies may be long lived.
func ApplyDefaults(cfg *Config) {
	s := &cfg.Server
	if s.Addr == "" {
		s.Addr = DefaultAddr
	}
	if s.ReadHeaderTimeout == 0 {
		s.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if s.IdleTimeout == 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}
	if s.MaxHeaderBytes == 0 {
		s.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if s.MaxTotalHeaderBytes == 0 {
		s.MaxTotalHeaderBytes = DefaultMaxTotalHeaderBytes
	}

	z := &cfg.ZeroRead
	if z.Timeout == 0 {
		z.Timeout = DefaultZeroReadTimeout
	}
	if z.MaxZeroReadCount == 0 {
		z.MaxZeroReadCount = DefaultMaxZeroReadCount
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}

	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = DefaultMetricsAddr
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
}
