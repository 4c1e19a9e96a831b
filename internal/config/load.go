package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ZEROGUARD_"

// Load builds the configuration. The file at path is optional; an empty
// path means defaults and environment only. The format follows the file
// extension: .yaml, .yml or .toml.
//
// The loading sequence is:
// 1. Decode the file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}
	ApplyDefaults(&cfg)
	if err := applyEnvOverrides(&cfg, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("invalid environment override: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeFile(path string, out *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, out)
	case ".toml":
		err = toml.Unmarshal(data, out)
	default:
		return fmt.Errorf("unsupported configuration format %q for %q", ext, path)
	}
	if err != nil {
		return fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}
	return nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

type lookupFunc func(string) (string, bool)

// envOverrides binds to the fields of one Config. Parse failures are
// collected so every bad variable is reported at once.
type envOverrides struct {
	lookup lookupFunc
	errs   []error
}

func (e *envOverrides) get(key string) (string, bool) {
	v, ok := e.lookup(EnvPrefix + key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e *envOverrides) fail(key string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
}

func (e *envOverrides) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envOverrides) boolean(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = b
	}
}

func (e *envOverrides) duration(key string, dst *time.Duration) {
	if v, ok := e.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = d
	}
}

func (e *envOverrides) integer(key string, dst *int) {
	if v, ok := e.get(key); ok {
		i, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = i
	}
}

func (e *envOverrides) integer64(key string, dst *int64) {
	if v, ok := e.get(key); ok {
		i, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = i
	}
}

func (e *envOverrides) unsigned(key string, dst *uint) {
	if v, ok := e.get(key); ok {
		u, err := strconv.ParseUint(v, 10, 0)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = uint(u)
	}
}

// applyEnvOverrides applies ZEROGUARD_SECTION_FIELD variables on top of cfg.
func applyEnvOverrides(cfg *Config, lookup lookupFunc) error {
	e := &envOverrides{lookup: lookup}

	e.str("SERVER_ADDR", &cfg.Server.Addr)
	e.duration("SERVER_READ_HEADER_TIMEOUT", &cfg.Server.ReadHeaderTimeout)
	e.duration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	e.duration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	e.duration("SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	e.duration("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	e.integer("SERVER_MAX_HEADER_BYTES", &cfg.Server.MaxHeaderBytes)
	e.integer("SERVER_MAX_TOTAL_HEADER_BYTES", &cfg.Server.MaxTotalHeaderBytes)
	e.integer64("SERVER_MAX_BODY_BYTES", &cfg.Server.MaxBodyBytes)
	e.str("SERVER_TLS_CERT_FILE", &cfg.Server.TLS.CertFile)
	e.str("SERVER_TLS_KEY_FILE", &cfg.Server.TLS.KeyFile)

	e.boolean("ZERO_READ_DISABLED", &cfg.ZeroRead.Disabled)
	e.duration("ZERO_READ_TIMEOUT", &cfg.ZeroRead.Timeout)
	e.boolean("ZERO_READ_CHECK_COUNT", &cfg.ZeroRead.CheckCount)
	e.unsigned("ZERO_READ_MAX_COUNT", &cfg.ZeroRead.MaxZeroReadCount)

	e.str("LOG_LEVEL", &cfg.Logging.Level)
	e.str("LOG_FORMAT", &cfg.Logging.Format)
	e.boolean("LOG_NO_COLOR", &cfg.Logging.NoColor)

	e.boolean("METRICS_ENABLED", &cfg.Metrics.Enabled)
	e.str("METRICS_ADDR", &cfg.Metrics.Addr)
	e.str("METRICS_PATH", &cfg.Metrics.Path)

	return errors.Join(e.errs...)
}
