package zeroread

import (
	"time"

	"dqx0.com/go/zeroguard/httpx"
	"dqx0.com/go/zeroguard/internal/obs"
)

// Guard installs watchdogs on a server. It implements httpx.ConduitWrapper.
type Guard struct {
	Config Config
	Logger obs.Logger
	Meter  obs.Meter
	// Now overrides the clock used by watchdogs; nil means time.Now.
	Now func() time.Time
}

// WrapConduit wraps the conduit produced by create in a Watchdog bound to
// the request's connection.
func (g *Guard) WrapConduit(create httpx.ConduitFactory, r *httpx.Request) httpx.Conduit {
	return NewWatchdog(create(), r.Conn(), r.String(), g.Config, g.Logger, g.Meter, g.Now)
}

// Handler returns next wrapped so that every request still receiving its
// body gets a watchdog before next runs. Complete requests are passed
// through untouched since no further network reads can stall. When the
// guard is disabled, or next is already guarded, next is returned as is.
func (g *Guard) Handler(next httpx.Handler) httpx.Handler {
	if !g.Config.Enabled {
		return next
	}
	if _, ok := next.(*guardHandler); ok {
		return next
	}
	return &guardHandler{g: g, log: obs.OrNop(g.Logger), next: next}
}

// guardHandler marks a handler chain that already installs watchdogs, so
// a second guard does not stack another one on the same conduit.
type guardHandler struct {
	g    *Guard
	log  obs.Logger
	next httpx.Handler
}

func (h *guardHandler) ServeHTTP(w httpx.ResponseWriter, r *httpx.Request) {
	if !r.Complete() {
		h.log.Logf(obs.Debug, "zeroread: adding conduit wrapper to %s", r)
		r.AddConduitWrapper(h.g)
	}
	h.next.ServeHTTP(w, r)
}

// Deploy installs the guard in front of s.Handler and reports whether the
// server is guarded. A nil s.Handler is replaced by httpx.NotFoundHandler.
// Deploying onto an already guarded server leaves it unchanged.
func (g *Guard) Deploy(s *httpx.Server) bool {
	log := obs.OrNop(g.Logger)
	name := s.Addr
	if !g.Config.Enabled {
		log.Logf(obs.Debug, "zeroread: zero-read fix not activated for %q", name)
		return false
	}
	if _, ok := s.Handler.(*guardHandler); ok {
		log.Logf(obs.Debug, "zeroread: zero-read fix already active for %q", name)
		return true
	}
	log.Logf(obs.Info, "zeroread: zero-read fix activated for %q", name)
	log.Logf(obs.Debug, "zeroread: enabled = %t", g.Config.Enabled)
	log.Logf(obs.Debug, "zeroread: timeout = %s", g.Config.Timeout)
	log.Logf(obs.Debug, "zeroread: check count = %t", g.Config.CheckCount)
	log.Logf(obs.Debug, "zeroread: max zero read count = %d", g.Config.MaxZeroReadCount)

	next := s.Handler
	if next == nil {
		next = httpx.NotFoundHandler()
	}
	s.Handler = g.Handler(next)
	return true
}
