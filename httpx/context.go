package httpx

import "context"

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeyCorrelationID
	ctxKeyConn
)

// WithRequestID returns a new context that carries a request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// RequestIDFrom extracts the request ID from ctx.
func RequestIDFrom(ctx context.Context) (string, bool) {
	return stringFrom(ctx, ctxKeyRequestID)
}

// WithCorrelationID returns a new context that carries the peer supplied
// X-Request-ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyCorrelationID, id)
}

func CorrelationIDFrom(ctx context.Context) (string, bool) {
	return stringFrom(ctx, ctxKeyCorrelationID)
}

// WithConn returns a new context that carries the connection a request
// arrived on, for code that only sees the context.
func WithConn(ctx context.Context, c Conn) context.Context {
	return context.WithValue(ctx, ctxKeyConn, c)
}

// ConnFrom extracts the connection stored by WithConn.
func ConnFrom(ctx context.Context) (Conn, bool) {
	c, ok := ctx.Value(ctxKeyConn).(Conn)
	return c, ok && c != nil
}

func stringFrom(ctx context.Context, key ctxKey) (string, bool) {
	s, ok := ctx.Value(key).(string)
	return s, ok && s != ""
}
