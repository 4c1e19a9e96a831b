package config

import (
	"fmt"
	"strings"
	"time"

	"dqx0.com/go/zeroguard/internal/obs"
)

// FieldError is a validation failure of one configuration field.
type FieldError struct {
	// Field is the dotted path, e.g. "zero_read.timeout".
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every FieldError found in a configuration.
type ValidationError struct {
	Errors []FieldError
}

func (e ValidationError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "configuration validation failed"
	case 1:
		return "configuration validation failed: " + e.Errors[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:", len(e.Errors))
	for _, err := range e.Errors {
		sb.WriteString("\n  - ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Validate returns a ValidationError listing every invalid field, or nil.
func Validate(cfg *Config) error {
	var errs []FieldError
	add := func(field, format string, args ...interface{}) {
		errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	s := cfg.Server
	if strings.TrimSpace(s.Addr) == "" {
		add("server.addr", "must not be empty")
	}
	for _, d := range []struct {
		field string
		value time.Duration
	}{
		{"server.read_header_timeout", s.ReadHeaderTimeout},
		{"server.read_timeout", s.ReadTimeout},
		{"server.write_timeout", s.WriteTimeout},
		{"server.idle_timeout", s.IdleTimeout},
	} {
		if d.value < 0 {
			add(d.field, "must not be negative")
		}
	}
	if s.ShutdownTimeout <= 0 {
		add("server.shutdown_timeout", "must be positive")
	}
	if s.MaxHeaderBytes < 0 {
		add("server.max_header_bytes", "must not be negative")
	}
	if s.MaxTotalHeaderBytes < 0 {
		add("server.max_total_header_bytes", "must not be negative")
	}
	if s.MaxBodyBytes < 0 {
		add("server.max_body_bytes", "must not be negative")
	}
	if (s.TLS.CertFile == "") != (s.TLS.KeyFile == "") {
		add("server.tls", "cert_file and key_file must be set together")
	}

	z := cfg.ZeroRead
	if z.Timeout <= 0 {
		add("zero_read.timeout", "must be positive")
	}
	if z.CheckCount && z.MaxZeroReadCount == 0 {
		add("zero_read.max_zero_read_count", "must be positive when check_count is set")
	}

	if _, err := obs.ParseLevel(cfg.Logging.Level); err != nil {
		add("logging.level", "%v", err)
	}
	switch cfg.Logging.Format {
	case "console", "json", "text":
	default:
		add("logging.format", "unknown format %q (want console, json or text)", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if strings.TrimSpace(cfg.Metrics.Addr) == "" {
			add("metrics.addr", "must not be empty when metrics are enabled")
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			add("metrics.path", "must start with /")
		}
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}
