package httpx

import (
	"context"
	"fmt"
	"io"
	"net/url"
)

// Request represents an HTTP request.
//
// Fields are a subset tailored for HTTP/1.1. Body is an io.ReadCloser
// backed by the request's Conduit. ContentLength is -1 when unknown.
// Context can be set via WithContext.
type Request struct {
	Method        string
	URL           *url.URL
	RequestURI    string
	Proto         string
	Header        Header
	Body          io.ReadCloser
	Host          string
	RemoteAddr    string
	ContentLength int64
	ctx           context.Context
	// RequestID is the server generated identifier for this request.
	RequestID string
	// CorrelationID is a propagated ID from the peer (X-Request-ID).
	CorrelationID string

	conn     Conn
	conduit  Conduit
	complete bool
}

// NewRequest builds an inbound request the way a Server does, for handler
// tests and embedders with their own accept loop. A nil body makes the
// request complete.
func NewRequest(method, target string, body Conduit, conn Conn) *Request {
	u, _ := url.ParseRequestURI(target)
	r := &Request{
		Method:        method,
		URL:           u,
		RequestURI:    target,
		Proto:         "HTTP/1.1",
		Header:        Header{},
		ContentLength: -1,
		RequestID:     genID(),
		conn:          conn,
		conduit:       body,
		complete:      body == nil,
	}
	if body != nil {
		r.Body = body
	} else {
		r.ContentLength = 0
	}
	if conn != nil {
		r.RemoteAddr = conn.RemoteAddr()
	}
	return r
}

// Context returns the request's context. If nil, returns Background.
func (r *Request) Context() context.Context {
	if r == nil || r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

// WithContext returns a shallow copy of r with its context changed to ctx.
func WithContext(r *Request, ctx context.Context) *Request {
	if r == nil {
		return nil
	}
	r2 := *r
	r2.ctx = ctx
	return &r2
}

// Conn returns the connection the request arrived on, or nil for requests
// not created by a Server.
func (r *Request) Conn() Conn { return r.conn }

// Conduit returns the current body conduit, including any installed
// wrappers.
func (r *Request) Conduit() Conduit { return r.conduit }

// Complete reports whether the request has been fully received, meaning
// reading the body will not touch the network.
func (r *Request) Complete() bool { return r.complete }

// AddConduitWrapper decorates the body conduit with w. The wrapper receives
// a factory for the current conduit and its result becomes both Conduit()
// and Body. It has no effect on requests without a conduit.
func (r *Request) AddConduitWrapper(w ConduitWrapper) {
	if r.conduit == nil || w == nil {
		return
	}
	inner := r.conduit
	r.conduit = w.WrapConduit(func() Conduit { return inner }, r)
	r.Body = r.conduit
}

// String identifies the request in log lines.
func (r *Request) String() string {
	connID := ""
	if r.conn != nil {
		connID = r.conn.ID()
	}
	return fmt.Sprintf("%s %s %s id=%s conn=%s remote=%s", r.Method, r.RequestURI, r.Proto, r.RequestID, connID, r.RemoteAddr)
}
