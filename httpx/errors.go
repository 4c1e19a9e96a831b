package httpx

import (
	"errors"

	"dqx0.com/go/zeroguard/httpx/internal/http1"
)

var (
	ErrBadRequest     = errors.New("httpx: bad request")
	ErrHeaderTooLarge = errors.New("httpx: header too large")
	// ErrBodyTooLarge is also returned by body reads once a chunked body
	// passes Server.MaxBodyBytes.
	ErrBodyTooLarge = http1.ErrBodyTooLarge
	// ErrServerClosed is returned by Serve after Shutdown.
	ErrServerClosed = errors.New("httpx: server closed")
)
