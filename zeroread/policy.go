package zeroread

import (
	"errors"
	"io"
	"time"
)

// State is the per-stream record the policy works on. The zero value is
// ready to use.
type State struct {
	ZeroReads      uint
	LastProductive time.Time
	terminated     bool
}

// Observe applies one read result to s and reports whether the stream must
// be terminated. ret follows the count convention of the conduit: positive
// for bytes read, 0 for a zero-length read, negative for end-of-stream.
// Once it has reported true the state is frozen.
func (s *State) Observe(cfg Config, ret int64, now time.Time) bool {
	if s.terminated {
		return false
	}
	switch {
	case s.LastProductive.IsZero() || ret > 0:
		s.LastProductive = now
		s.ZeroReads = 0
		return false
	case ret == 0:
		s.ZeroReads++
		if s.LastProductive.Add(cfg.Timeout).Before(now) ||
			(cfg.CheckCount && s.ZeroReads > cfg.MaxZeroReadCount) {
			s.terminated = true
			return true
		}
	}
	return false
}

// Terminated reports whether Observe has fired for this stream.
func (s *State) Terminated() bool { return s.terminated }

// readResult folds a Go read result into the signed count Observe expects.
// ok is false for failures, which are forwarded without being observed.
func readResult(n int64, err error) (ret int64, ok bool) {
	switch {
	case n > 0:
		return n, true
	case err == nil:
		return 0, true
	case errors.Is(err, io.EOF):
		return -1, true
	default:
		return 0, false
	}
}
