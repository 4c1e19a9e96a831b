package zeroread

import (
	"io"
	"runtime/debug"
	"time"

	"dqx0.com/go/zeroguard/httpx"
	"dqx0.com/go/zeroguard/internal/obs"
)

// Watchdog is an httpx.Conduit that forwards every read shape to the
// conduit it wraps and terminates the connection on a zero-length read
// storm. Results are returned exactly as the wrapped conduit produced them;
// only a failed termination adds an error.
//
// A Watchdog belongs to a single request body and is not safe for
// concurrent reads, matching the one-reader discipline of the server.
type Watchdog struct {
	next  httpx.Conduit
	conn  httpx.Conn
	ident string
	cfg   Config
	state State
	log   obs.Logger
	meter obs.Meter
	now   func() time.Time
}

var _ httpx.Conduit = (*Watchdog)(nil)

// NewWatchdog wraps next. conn is the connection closed on termination and
// ident names the request in log lines. log, meter and now may be nil.
func NewWatchdog(next httpx.Conduit, conn httpx.Conn, ident string, cfg Config, log obs.Logger, meter obs.Meter, now func() time.Time) *Watchdog {
	if now == nil {
		now = time.Now
	}
	w := &Watchdog{
		next:  next,
		conn:  conn,
		ident: ident,
		cfg:   cfg,
		log:   obs.OrNop(log),
		meter: obs.MeterOrNop(meter),
		now:   now,
	}
	w.log.Logf(obs.Debug, "zeroread: watchdog attached to %s", ident)
	return w
}

// State returns a copy of the current policy state.
func (w *Watchdog) State() State { return w.state }

func (w *Watchdog) TransferAt(dst io.WriterAt, pos, count int64) (int64, error) {
	n, err := w.next.TransferAt(dst, pos, count)
	w.log.Logf(obs.Debug, "zeroread: TransferAt(pos=%d, count=%d) returned [%d]", pos, count, n)
	return n, w.observe(n, err)
}

func (w *Watchdog) TransferTo(dst io.Writer, count int64, buf []byte) (int64, error) {
	n, err := w.next.TransferTo(dst, count, buf)
	w.log.Logf(obs.Debug, "zeroread: TransferTo(count=%d, buf=%d) returned [%d]", count, len(buf), n)
	return n, w.observe(n, err)
}

func (w *Watchdog) Read(p []byte) (int, error) {
	n, err := w.next.Read(p)
	w.log.Logf(obs.Debug, "zeroread: Read(len=%d) returned [%d]", len(p), n)
	return n, w.observe(int64(n), err)
}

func (w *Watchdog) ReadVectored(bufs [][]byte) (int64, error) {
	n, err := w.next.ReadVectored(bufs)
	w.log.Logf(obs.Debug, "zeroread: ReadVectored(bufs=%d) returned [%d]", len(bufs), n)
	return n, w.observe(n, err)
}

func (w *Watchdog) TerminateReads() error { return w.next.TerminateReads() }

func (w *Watchdog) Close() error { return w.next.Close() }

// observe runs the policy on one read result and returns the error the
// caller should see.
func (w *Watchdog) observe(n int64, err error) error {
	ret, ok := readResult(n, err)
	if !ok {
		return err
	}
	if !w.state.Observe(w.cfg, ret, w.now()) {
		return err
	}
	// The policy only fires on (0, nil), so err is nil here.
	return w.terminate()
}

func (w *Watchdog) terminate() error {
	w.log.Logf(obs.Info, "zeroread: zero-read storm detected, closing connection")
	w.log.Logf(obs.Info, "zeroread: zero read count: %d, timeout: %s, request: %s", w.state.ZeroReads, w.cfg.Timeout, w.ident)
	if obs.Enabled(w.log, obs.Debug) {
		w.log.Logf(obs.Debug, "zeroread: detected at:\n%s", debug.Stack())
	}
	w.meter.Counter("zeroread_terminations_total", 1)

	var termErr, closeErr error
	if err := w.next.TerminateReads(); err != nil {
		w.log.Logf(obs.Info, "zeroread: %s failed for %s: %v", StepTerminateReads, w.ident, err)
		termErr = &TerminationError{Step: StepTerminateReads, Err: err}
	}
	if w.conn != nil {
		if err := w.conn.Close(); err != nil {
			w.log.Logf(obs.Info, "zeroread: %s failed for %s: %v", StepCloseConn, w.ident, err)
			closeErr = &TerminationError{Step: StepCloseConn, Err: err}
		}
	}
	if closeErr != nil {
		return closeErr
	}
	return termErr
}
