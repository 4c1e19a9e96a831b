package httpx

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"dqx0.com/go/zeroguard/httpx/internal/http1"
	"dqx0.com/go/zeroguard/internal/obs"
)

type Handler interface {
	ServeHTTP(ResponseWriter, *Request)
}

type HandlerFunc func(ResponseWriter, *Request)

func (f HandlerFunc) ServeHTTP(w ResponseWriter, r *Request) {
	f(w, r)
}

// NotFoundHandler answers every request with 404. A Server with a nil
// Handler uses it.
func NotFoundHandler() Handler {
	return HandlerFunc(func(w ResponseWriter, r *Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(404)
		w.Write([]byte("not found\n"))
	})
}

type ResponseWriter interface {
	Header() Header
	Write([]byte) (int, error)
	WriteHeader(status int)
}

type Server struct {
	Addr                string
	Handler             Handler
	ReadTimeout         time.Duration
	ReadHeaderTimeout   time.Duration
	WriteTimeout        time.Duration
	IdleTimeout         time.Duration
	MaxHeaderBytes      int
	MaxTotalHeaderBytes int
	MaxBodyBytes        int64
	// TLSConfig is used by ListenAndServeTLS. Certificates loaded from the
	// files passed to ListenAndServeTLS are added to a clone of it.
	TLSConfig *tls.Config
	Logger    obs.Logger
	Meter     obs.Meter

	mu        sync.Mutex
	listeners map[net.Listener]struct{}
	conns     map[*serverConn]struct{}
	closing   atomic.Bool
}

func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr())
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// ListenAndServeTLS is ListenAndServe over TLS. certFile and keyFile may be
// empty when TLSConfig already carries certificates.
func (s *Server) ListenAndServeTLS(certFile, keyFile string) error {
	cfg := &tls.Config{}
	if s.TLSConfig != nil {
		cfg = s.TLSConfig.Clone()
	}
	if certFile != "" || keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return err
		}
		cfg.Certificates = append(cfg.Certificates, cert)
	}
	ln, err := net.Listen("tcp", s.addr())
	if err != nil {
		return err
	}
	return s.Serve(tls.NewListener(ln, cfg))
}

func (s *Server) Serve(l net.Listener) error {
	if !s.trackListener(l, true) {
		l.Close()
		return ErrServerClosed
	}
	defer s.trackListener(l, false)
	defer l.Close()
	for {
		c, err := l.Accept()
		if err != nil {
			if s.closing.Load() {
				return ErrServerClosed
			}
			return err
		}
		go s.serveConn(c)
	}
}

// Shutdown stops accepting connections, closes idle ones and waits for
// active connections to finish their current request. When ctx expires
// first, remaining connections are closed and ctx's error is returned.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closing.Store(true)
	s.mu.Lock()
	for l := range s.listeners {
		l.Close()
	}
	s.mu.Unlock()

	t := time.NewTicker(10 * time.Millisecond)
	defer t.Stop()
	for {
		if s.closeIdle() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			s.mu.Lock()
			for c := range s.conns {
				c.Close()
			}
			s.mu.Unlock()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// closeIdle closes idle connections and returns how many remain tracked.
func (s *Server) closeIdle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		if c.idle.Load() {
			c.Close()
		}
	}
	return len(s.conns)
}

func (s *Server) trackListener(l net.Listener, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		if s.closing.Load() {
			return false
		}
		if s.listeners == nil {
			s.listeners = make(map[net.Listener]struct{})
		}
		s.listeners[l] = struct{}{}
		return true
	}
	delete(s.listeners, l)
	return true
}

func (s *Server) trackConn(c *serverConn, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		if s.closing.Load() {
			return false
		}
		if s.conns == nil {
			s.conns = make(map[*serverConn]struct{})
		}
		s.conns[c] = struct{}{}
		return true
	}
	delete(s.conns, c)
	return true
}

// connResponseWriter streams the response to the client. If keepAlive is true
// and Content-Length is not set for HTTP/1.1, it enables chunked encoding.
type connResponseWriter struct {
	bw        *bufio.Writer
	proto     string
	keepAlive bool
	status    int
	wroteHdr  bool
	chunked   bool
	hdr       Header
}

func (w *connResponseWriter) Header() Header {
	if w.hdr == nil {
		w.hdr = Header{}
	}
	return w.hdr
}

func (w *connResponseWriter) decideChunked() bool {
	if w.hdr.HasToken("Connection", "close") {
		w.keepAlive = false
	}
	hasCL := w.hdr.Get("Content-Length") != ""
	if w.proto == "HTTP/1.1" && w.keepAlive && !hasCL {
		return true
	}
	return false
}

func (w *connResponseWriter) startIfNeeded() error {
	if w.wroteHdr {
		return nil
	}
	if w.status == 0 {
		w.status = 200
	}
	// Decide chunked based on headers and keepAlive.
	w.chunked = w.decideChunked()
	// Remove any user Connection header to avoid duplicates.
	if w.hdr != nil {
		w.hdr.Del("Connection")
	}
	hdrMap := map[string][]string(w.hdr)
	if err := http1.StartResponse(w.bw, w.status, "", hdrMap, w.chunked, w.keepAlive && (w.chunked || w.hdr.Get("Content-Length") != "")); err != nil {
		return err
	}
	w.wroteHdr = true
	return nil
}

func (w *connResponseWriter) WriteHeader(status int) {
	if w.wroteHdr {
		return
	}
	if status == 0 {
		status = 200
	}
	w.status = status
	_ = w.startIfNeeded() // best-effort; error will surface on Flush
}

func (w *connResponseWriter) Write(p []byte) (int, error) {
	if !w.wroteHdr {
		if err := w.startIfNeeded(); err != nil {
			return 0, err
		}
	}
	if w.chunked {
		n, err := http1.WriteChunked(w.bw, p)
		if err != nil {
			return n, err
		}
		// Flush each chunk to enable streaming to clients.
		if err := w.bw.Flush(); err != nil {
			return n, err
		}
		return n, nil
	}
	return w.bw.Write(p)
}

func (w *connResponseWriter) Flush() error {
	if !w.wroteHdr {
		if err := w.startIfNeeded(); err != nil {
			return err
		}
	}
	return w.bw.Flush()
}

func (s *Server) serveConn(c net.Conn) {
	sc := newServerConn(c)
	if !s.trackConn(sc, true) {
		sc.Close()
		return
	}
	defer s.trackConn(sc, false)
	defer sc.Close()
	s.logf(obs.Debug, "httpx: accepted conn=%s remote=%s", sc.id, sc.RemoteAddr())
	s.meter().Counter("httpx_connections_total", 1)

	br := bufio.NewReader(c)
	bw := bufio.NewWriter(c)
	for {
		sc.idle.Store(true)
		if s.closing.Load() {
			return
		}
		if s.ReadHeaderTimeout > 0 {
			_ = c.SetReadDeadline(time.Now().Add(s.ReadHeaderTimeout))
		}
		rr := &http1.Reader{BR: br, MaxHeaderBytes: s.headerLimit(), MaxTotalHeaderBytes: s.MaxTotalHeaderBytes, MaxBodyBytes: s.MaxBodyBytes}
		pr, err := rr.ReadRequest()
		sc.idle.Store(false)
		if err != nil {
			if err == io.EOF || sc.isClosed() || isTimeout(err) {
				return
			}
			status, cause := 400, ErrBadRequest
			if errors.Is(err, http1.ErrHeaderTooLarge) {
				status, cause = 431, ErrHeaderTooLarge
			}
			s.reject(bw, sc, status, cause, err)
			return
		}
		if s.MaxBodyBytes > 0 && pr.ContentLength > s.MaxBodyBytes {
			s.reject(bw, sc, 413, ErrBodyTooLarge, nil)
			return
		}
		if s.ReadTimeout > 0 {
			_ = c.SetReadDeadline(time.Now().Add(s.ReadTimeout))
		} else {
			_ = c.SetReadDeadline(time.Time{})
		}

		// Decide keep-alive
		reqHdr := Header(pr.Header)
		ka := reqHdr.HasToken("Connection", "keep-alive")
		if pr.Proto == "HTTP/1.1" {
			ka = !reqHdr.HasToken("Connection", "close")
		}
		var u *url.URL
		if strings.HasPrefix(pr.RequestURI, "http://") || strings.HasPrefix(pr.RequestURI, "https://") {
			u, _ = url.Parse(pr.RequestURI)
		} else {
			u, _ = url.ParseRequestURI(pr.RequestURI)
		}
		conduit := http1.NewConduit(pr.Body)
		r := &Request{
			Method:        pr.Method,
			URL:           u,
			RequestURI:    pr.RequestURI,
			Proto:         pr.Proto,
			Header:        reqHdr,
			Body:          conduit,
			Host:          reqHdr.Get("Host"),
			RemoteAddr:    sc.RemoteAddr(),
			ContentLength: pr.ContentLength,
			RequestID:     genID(),
			CorrelationID: reqHdr.Get("X-Request-ID"),
			conn:          sc,
			conduit:       conduit,
			complete:      pr.Complete,
		}
		ctx := WithConn(WithRequestID(context.Background(), r.RequestID), sc)
		if r.CorrelationID != "" {
			ctx = WithCorrelationID(ctx, r.CorrelationID)
		}
		r.ctx = ctx

		// If Expect: 100-continue present, send interim response so client sends body.
		if strings.EqualFold(reqHdr.Get("Expect"), "100-continue") {
			_ = http1.WriteContinue(bw)
			_ = bw.Flush()
		}

		srw := &connResponseWriter{bw: bw, proto: pr.Proto, keepAlive: ka, hdr: Header{}}
		h := s.Handler
		if h == nil {
			h = NotFoundHandler()
		}

		start := time.Now()
		h.ServeHTTP(srw, r)
		s.meter().Counter("httpx_requests_total", 1, obs.Label{Key: "method", Value: r.Method})
		s.meter().Histogram("httpx_request_duration_seconds", time.Since(start).Seconds())

		if sc.isClosed() {
			s.logf(obs.Debug, "httpx: conn=%s closed during %s", sc.id, r)
			return
		}
		// If handler didn't close/drain body, do it here for keep-alive.
		bodyErr := r.Body.Close()
		if errors.Is(bodyErr, ErrBodyTooLarge) && !srw.wroteHdr {
			srw.status = 413
			srw.keepAlive = false
		}

		if s.WriteTimeout > 0 {
			_ = c.SetWriteDeadline(time.Now().Add(s.WriteTimeout))
		}
		if !srw.wroteHdr {
			if err := srw.startIfNeeded(); err != nil {
				return
			}
		}
		if srw.chunked {
			if err := http1.EndChunked(bw); err != nil {
				return
			}
		}
		if err := bw.Flush(); err != nil {
			return
		}

		finalKA := srw.keepAlive && (srw.chunked || srw.hdr.Get("Content-Length") != "" || noResponseBody(srw.status, r.Method))
		if !finalKA || bodyErr != nil {
			return
		}
		// Reset deadlines for next request
		if s.IdleTimeout > 0 {
			_ = c.SetReadDeadline(time.Now().Add(s.IdleTimeout))
		} else {
			_ = c.SetReadDeadline(time.Time{})
		}
		_ = c.SetWriteDeadline(time.Time{})
	}
}

func (s *Server) reject(bw *bufio.Writer, sc *serverConn, status int, cause, err error) {
	if err != nil {
		s.logf(obs.Debug, "httpx: conn=%s rejected with %d: %v: %v", sc.id, status, cause, err)
	} else {
		s.logf(obs.Debug, "httpx: conn=%s rejected with %d: %v", sc.id, status, cause)
	}
	s.meter().Counter("httpx_rejected_requests_total", 1)
	_ = http1.WriteResponse(bw, status, "", map[string][]string{"Content-Length": {"0"}}, nil, false)
	_ = bw.Flush()
}

func (s *Server) addr() string {
	if s.Addr == "" {
		return ":8080"
	}
	return s.Addr
}

func (s *Server) headerLimit() int {
	if s.MaxHeaderBytes <= 0 {
		return 8 << 10
	}
	return s.MaxHeaderBytes
}

func (s *Server) logf(level obs.Level, format string, args ...interface{}) {
	if s.Logger == nil {
		return
	}
	s.Logger.Logf(level, format, args...)
}

func (s *Server) meter() obs.Meter {
	return obs.MeterOrNop(s.Meter)
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func noResponseBody(status int, method string) bool {
	if method == "HEAD" {
		return true
	}
	if status >= 100 && status < 200 {
		return true
	}
	return status == 204 || status == 304
}
