package httpx

import (
	"net"
	"sync"
	"sync/atomic"
)

// Conn is the control surface of a server connection that handlers and
// body decorators may use.
type Conn interface {
	// ID uniquely identifies the connection for logs.
	ID() string
	RemoteAddr() string
	// Close tears the connection down. It is idempotent and safe to call
	// while a body read on the same connection is in progress.
	Close() error
}

type serverConn struct {
	nc     net.Conn
	id     string
	once   sync.Once
	err    error
	closed atomic.Bool
	idle   atomic.Bool
}

func newServerConn(nc net.Conn) *serverConn {
	return &serverConn{nc: nc, id: genID()}
}

func (c *serverConn) ID() string { return c.id }

func (c *serverConn) RemoteAddr() string {
	if a := c.nc.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}

func (c *serverConn) Close() error {
	c.once.Do(func() {
		c.closed.Store(true)
		c.err = c.nc.Close()
	})
	return c.err
}

func (c *serverConn) isClosed() bool { return c.closed.Load() }
