package httpx

import (
	"bufio"
	"context"
	"io"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, h Handler, cfg func(*Server)) (*Server, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &Server{Handler: h}
	if cfg != nil {
		cfg(s)
	}
	go func() { _ = s.Serve(ln) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s, ln.Addr().String()
}

func roundTrip(t *testing.T, addr, raw string) (status string, body string) {
	t.Helper()
	c, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer c.Close()
	_ = c.SetDeadline(time.Now().Add(2 * time.Second))

	_, err = io.WriteString(c, raw)
	require.NoError(t, err)

	br := bufio.NewReader(c)
	status, err = br.ReadString('\n')
	require.NoError(t, err)
	chunked := false
	for {
		line, err := br.ReadString('\n')
		require.NoError(t, err)
		if line == "\r\n" {
			break
		}
		if strings.EqualFold(strings.TrimSpace(line), "Transfer-Encoding: chunked") {
			chunked = true
		}
	}
	if !chunked {
		b, _ := io.ReadAll(br)
		return strings.TrimSpace(status), string(b)
	}
	var sb strings.Builder
	for {
		line, err := br.ReadString('\n')
		require.NoError(t, err)
		size, err := strconv.ParseInt(strings.TrimSpace(line), 16, 64)
		require.NoError(t, err)
		if size == 0 {
			break
		}
		chunk := make([]byte, size+2)
		_, err = io.ReadFull(br, chunk)
		require.NoError(t, err)
		sb.Write(chunk[:size])
	}
	return strings.TrimSpace(status), sb.String()
}

func TestServer_GET(t *testing.T) {
	h := HandlerFunc(func(w ResponseWriter, r *Request) {
		assert.True(t, r.Complete())
		assert.NotEmpty(t, r.RequestID)
		assert.NotNil(t, r.Conn())
		w.Header().Set("Connection", "close")
		w.WriteHeader(200)
		w.Write([]byte("ok"))
	})
	_, addr := startServer(t, h, nil)

	status, body := roundTrip(t, addr, "GET / HTTP/1.1\r\nHost: x\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 200 OK", status)
	assert.Equal(t, "ok", body)
}

func TestServer_ChunkedEcho(t *testing.T) {
	h := HandlerFunc(func(w ResponseWriter, r *Request) {
		assert.False(t, r.Complete())
		b, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		w.Write(b)
	})
	_, addr := startServer(t, h, nil)

	raw := "POST /echo HTTP/1.1\r\nHost: x\r\nConnection: keep-alive\r\nTransfer-Encoding: chunked\r\n\r\n3\r\nhey\r\n0\r\n\r\n"
	status, body := roundTrip(t, addr, raw)
	assert.Equal(t, "HTTP/1.1 200 OK", status)
	assert.Equal(t, "hey", body)
}

func TestServer_ConduitWrapperSeesBody(t *testing.T) {
	var wrapped atomic.Bool
	h := HandlerFunc(func(w ResponseWriter, r *Request) {
		r.AddConduitWrapper(ConduitWrapperFunc(func(create ConduitFactory, r *Request) Conduit {
			wrapped.Store(true)
			return create()
		}))
		var sb strings.Builder
		_, err := r.Conduit().TransferTo(&sb, 100, nil)
		assert.NoError(t, err)
		w.Header().Set("Connection", "close")
		w.Write([]byte(sb.String()))
	})
	_, addr := startServer(t, h, nil)

	raw := "POST / HTTP/1.1\r\nHost: x\r\nContent-Length: 4\r\n\r\nbody"
	_, body := roundTrip(t, addr, raw)
	assert.True(t, wrapped.Load())
	assert.Equal(t, "body", body)
}

func TestServer_HandlerClosesConn(t *testing.T) {
	h := HandlerFunc(func(w ResponseWriter, r *Request) {
		assert.NoError(t, r.Conn().Close())
		// idempotent
		assert.NoError(t, r.Conn().Close())
	})
	_, addr := startServer(t, h, nil)

	c, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer c.Close()
	_ = c.SetDeadline(time.Now().Add(2 * time.Second))
	_, err = io.WriteString(c, "GET / HTTP/1.1\r\nHost: x\r\n\r\n")
	require.NoError(t, err)

	b, err := io.ReadAll(c)
	assert.NoError(t, err)
	assert.Empty(t, b)
}

func TestServer_RejectsMalformed(t *testing.T) {
	_, addr := startServer(t, nil, nil)

	status, _ := roundTrip(t, addr, "GARBAGE\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 400 Bad Request", status)
}

func TestServer_RejectsLargeBody(t *testing.T) {
	_, addr := startServer(t, nil, func(s *Server) { s.MaxBodyBytes = 4 })

	status, _ := roundTrip(t, addr, "POST / HTTP/1.1\r\nHost: x\r\nContent-Length: 10\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 413 Content Too Large", status)
}

func TestServer_RejectsLargeChunkedBody(t *testing.T) {
	var readErr atomic.Value
	h := HandlerFunc(func(w ResponseWriter, r *Request) {
		_, err := io.ReadAll(r.Body)
		readErr.Store(err)
	})
	_, addr := startServer(t, h, func(s *Server) { s.MaxBodyBytes = 4 })

	status, _ := roundTrip(t, addr, "POST / HTTP/1.1\r\nHost: x\r\nTransfer-Encoding: chunked\r\n\r\n3\r\nabc\r\n3\r\ndef\r\n0\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 413 Content Too Large", status)
	err, _ := readErr.Load().(error)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestServer_NilHandlerAnswersNotFound(t *testing.T) {
	_, addr := startServer(t, nil, nil)

	status, body := roundTrip(t, addr, "GET /missing HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 404 Not Found", status)
	assert.Equal(t, "not found\n", body)
}

func TestServer_ShutdownStopsServe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &Server{}
	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()

	// let Serve register the listener
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, s.Shutdown(context.Background()))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrServerClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
}
