package zeroread

import (
	"errors"
	"time"
)

const (
	DefaultTimeout          = 5 * time.Second
	DefaultMaxZeroReadCount = 20
)

// Config is read once at startup and shared by every watchdog.
type Config struct {
	// Enabled is the global switch; when false no watchdog is attached.
	Enabled bool
	// Timeout is how long a body may keep returning zero-length reads
	// after its last productive read.
	Timeout time.Duration
	// CheckCount enables the count based trigger.
	CheckCount bool
	// MaxZeroReadCount is the run length tolerated when CheckCount is set.
	MaxZeroReadCount uint
}

func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		Timeout:          DefaultTimeout,
		MaxZeroReadCount: DefaultMaxZeroReadCount,
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.Timeout <= 0 {
		errs = append(errs, errors.New("zeroread: timeout must be positive"))
	}
	if c.CheckCount && c.MaxZeroReadCount == 0 {
		errs = append(errs, errors.New("zeroread: max zero read count must be positive when counting"))
	}
	return errors.Join(errs...)
}
