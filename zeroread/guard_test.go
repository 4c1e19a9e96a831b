package zeroread

import (
	"context"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dqx0.com/go/zeroguard/httpx"
	"dqx0.com/go/zeroguard/internal/obs"
)

type captureHandler struct {
	req *httpx.Request
}

func (h *captureHandler) ServeHTTP(w httpx.ResponseWriter, r *httpx.Request) { h.req = r }

func TestGuard_Handler(t *testing.T) {
	t.Run("disabled returns next untouched", func(t *testing.T) {
		next := &captureHandler{}
		g := &Guard{Config: Config{Enabled: false, Timeout: time.Second}}
		assert.Same(t, next, g.Handler(next))
	})

	t.Run("incomplete request gets a watchdog", func(t *testing.T) {
		next := &captureHandler{}
		g := &Guard{Config: DefaultConfig()}
		src := &scriptConduit{}
		conn := &fakeConn{}
		r := httpx.NewRequest("POST", "/upload", src, conn)
		require.False(t, r.Complete())

		g.Handler(next).ServeHTTP(nil, r)

		require.Same(t, r, next.req)
		w, ok := r.Conduit().(*Watchdog)
		require.True(t, ok, "conduit is %T", r.Conduit())
		assert.Same(t, src, w.next)
		assert.Same(t, conn, w.conn)
		assert.Equal(t, r.Conduit(), r.Body)
		assert.Contains(t, w.ident, "POST /upload")
	})

	t.Run("complete request is left alone", func(t *testing.T) {
		next := &captureHandler{}
		g := &Guard{Config: DefaultConfig()}
		r := httpx.NewRequest("GET", "/", nil, &fakeConn{})
		require.True(t, r.Complete())

		g.Handler(next).ServeHTTP(nil, r)

		assert.Nil(t, r.Conduit())
	})
}

func TestGuard_Deploy(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		log := &recordLogger{}
		next := &captureHandler{}
		s := &httpx.Server{Addr: ":8443", Handler: next}
		g := &Guard{Config: Config{Timeout: time.Second}, Logger: log}

		assert.False(t, g.Deploy(s))
		assert.Same(t, next, s.Handler)
		assert.Len(t, log.find(obs.Debug, "not activated"), 1)
		assert.Empty(t, log.find(obs.Info, "activated"))
	})

	t.Run("enabled", func(t *testing.T) {
		log := &recordLogger{}
		next := &captureHandler{}
		s := &httpx.Server{Addr: ":8443", Handler: next}
		g := &Guard{Config: DefaultConfig(), Logger: log}

		require.True(t, g.Deploy(s))
		assert.IsType(t, &guardHandler{}, s.Handler)
		assert.Len(t, log.find(obs.Info, `activated for ":8443"`), 1)
		assert.Len(t, log.find(obs.Debug, "timeout = 5s"), 1)
		assert.Len(t, log.find(obs.Debug, "max zero read count = 20"), 1)

		r := httpx.NewRequest("POST", "/", &scriptConduit{}, &fakeConn{})
		s.Handler.ServeHTTP(nil, r)
		assert.Same(t, r, next.req)
		assert.IsType(t, &Watchdog{}, r.Conduit())
	})

	t.Run("nil handler is replaced by not found", func(t *testing.T) {
		s := &httpx.Server{}
		g := &Guard{Config: DefaultConfig()}
		require.True(t, g.Deploy(s))
		require.IsType(t, &guardHandler{}, s.Handler)
		assert.IsType(t, httpx.HandlerFunc(nil), s.Handler.(*guardHandler).next)
	})

	t.Run("second deploy keeps a single watchdog", func(t *testing.T) {
		log := &recordLogger{}
		next := &captureHandler{}
		s := &httpx.Server{Addr: ":8443", Handler: next}
		g := &Guard{Config: DefaultConfig(), Logger: log}

		require.True(t, g.Deploy(s))
		first := s.Handler
		require.True(t, g.Deploy(s))
		require.True(t, (&Guard{Config: DefaultConfig()}).Deploy(s))
		assert.Same(t, first, s.Handler)
		assert.Len(t, log.find(obs.Info, "activated for"), 1)
		assert.Len(t, log.find(obs.Debug, `already active for ":8443"`), 1)
		assert.Same(t, first, g.Handler(first))

		r := httpx.NewRequest("POST", "/", &scriptConduit{}, &fakeConn{})
		s.Handler.ServeHTTP(nil, r)
		w, ok := r.Conduit().(*Watchdog)
		require.True(t, ok)
		assert.IsType(t, &scriptConduit{}, w.next)
	})
}

// stallConduit turns the body into a permanent zero-read stream until
// reads are terminated, after which the inner conduit answers.
type stallConduit struct {
	httpx.Conduit
	terminated atomic.Bool
}

func (c *stallConduit) Read(p []byte) (int, error) {
	if c.terminated.Load() {
		return c.Conduit.Read(p)
	}
	return 0, nil
}

func (c *stallConduit) TerminateReads() error {
	c.terminated.Store(true)
	return c.Conduit.TerminateReads()
}

func TestGuard_ClosesStormingConnection(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var terminations atomic.Int32
	var reads atomic.Int32
	body := httpx.HandlerFunc(func(w httpx.ResponseWriter, r *httpx.Request) {
		buf := make([]byte, 64)
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			reads.Add(1)
			if _, err := r.Body.Read(buf); err != nil {
				terminations.Add(1)
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	})
	guard := &Guard{Config: Config{Enabled: true, Timeout: 50 * time.Millisecond, MaxZeroReadCount: DefaultMaxZeroReadCount}}
	stall := httpx.ConduitWrapperFunc(func(create httpx.ConduitFactory, r *httpx.Request) httpx.Conduit {
		return &stallConduit{Conduit: create()}
	})
	s := &httpx.Server{
		Handler: httpx.HandlerFunc(func(w httpx.ResponseWriter, r *httpx.Request) {
			r.AddConduitWrapper(stall)
			guard.Handler(body).ServeHTTP(w, r)
		}),
	}
	go func() { _ = s.Serve(ln) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})

	c, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.SetDeadline(time.Now().Add(3*time.Second)))

	req := "POST /upload HTTP/1.1\r\nHost: x\r\nContent-Length: 100\r\n\r\nhello"
	_, err = io.WriteString(c, req)
	require.NoError(t, err)

	start := time.Now()
	rest, err := io.ReadAll(c)
	if err != nil {
		assert.False(t, strings.Contains(err.Error(), "timeout"), "connection was not closed: %v", err)
	}
	assert.Empty(t, rest)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Eventually(t, func() bool { return terminations.Load() == 1 }, time.Second, 10*time.Millisecond)
	assert.Greater(t, reads.Load(), int32(2))
}
