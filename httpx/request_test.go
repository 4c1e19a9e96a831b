package httpx

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConn struct{ closed int }

func (c *stubConn) ID() string         { return "c1" }
func (c *stubConn) RemoteAddr() string { return "10.0.0.1:1234" }

func (c *stubConn) Close() error {
	c.closed++
	return nil
}

// stringConduit serves Read from a reader; the other shapes report
// end-of-stream.
type stringConduit struct {
	io.Reader
}

func (c stringConduit) Close() error { return nil }

func (c stringConduit) ReadVectored([][]byte) (int64, error) { return 0, io.EOF }

func (c stringConduit) TransferTo(io.Writer, int64, []byte) (int64, error) { return 0, io.EOF }

func (c stringConduit) TransferAt(io.WriterAt, int64, int64) (int64, error) { return 0, io.EOF }

func (c stringConduit) TerminateReads() error { return nil }

func TestNewRequest(t *testing.T) {
	t.Run("without body", func(t *testing.T) {
		r := NewRequest("GET", "/a?b=c", nil, &stubConn{})
		assert.True(t, r.Complete())
		assert.Equal(t, int64(0), r.ContentLength)
		assert.Nil(t, r.Body)
		assert.Equal(t, "/a", r.URL.Path)
		assert.Equal(t, "10.0.0.1:1234", r.RemoteAddr)
		assert.NotEmpty(t, r.RequestID)
	})

	t.Run("with body", func(t *testing.T) {
		body := stringConduit{strings.NewReader("abc")}
		r := NewRequest("POST", "/", body, nil)
		assert.False(t, r.Complete())
		assert.Equal(t, int64(-1), r.ContentLength)
		assert.Nil(t, r.Conn())

		b, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, "abc", string(b))
	})
}

func TestRequest_AddConduitWrapper(t *testing.T) {
	conn := &stubConn{}
	inner := stringConduit{strings.NewReader("payload")}
	r := NewRequest("PUT", "/upload", inner, conn)

	var seen *Request
	var created Conduit
	r.AddConduitWrapper(ConduitWrapperFunc(func(create ConduitFactory, req *Request) Conduit {
		seen = req
		created = create()
		return stringConduit{strings.NewReader("wrapped")}
	}))

	assert.Same(t, r, seen)
	assert.Equal(t, inner, created)
	b, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	assert.Equal(t, "wrapped", string(b))
	assert.Equal(t, r.Conduit(), r.Body)

	// no conduit, nothing to wrap
	empty := NewRequest("GET", "/", nil, conn)
	empty.AddConduitWrapper(ConduitWrapperFunc(func(ConduitFactory, *Request) Conduit {
		t.Fatal("wrapper called without a body")
		return nil
	}))
	assert.Nil(t, empty.Conduit())
}

func TestRequest_String(t *testing.T) {
	r := NewRequest("POST", "/upload", nil, &stubConn{})
	r.RequestID = "r1"
	assert.Equal(t, "POST /upload HTTP/1.1 id=r1 conn=c1 remote=10.0.0.1:1234", r.String())
}
