package httpx

import (
	"net/textproto"
	"strings"
)

// Header maps canonical header names to their values.
type Header map[string][]string

func (h Header) Get(key string) string {
	if vv := h.Values(key); len(vv) > 0 {
		return vv[0]
	}
	return ""
}

// Values returns every value stored under key.
func (h Header) Values(key string) []string {
	if h == nil {
		return nil
	}
	return h[textproto.CanonicalMIMEHeaderKey(key)]
}

func (h Header) Set(key, value string) {
	if h == nil {
		return
	}
	h[textproto.CanonicalMIMEHeaderKey(key)] = []string{value}
}

func (h Header) Add(key, value string) {
	if h == nil {
		return
	}
	k := textproto.CanonicalMIMEHeaderKey(key)
	h[k] = append(h[k], value)
}

func (h Header) Del(key string) {
	if h == nil {
		return
	}
	delete(h, textproto.CanonicalMIMEHeaderKey(key))
}

// HasToken reports whether the comma separated list header key contains
// token, ignoring case. "Connection: keep-alive, close" has token "close".
func (h Header) HasToken(key, token string) bool {
	for _, v := range h.Values(key) {
		for _, t := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(t), token) {
				return true
			}
		}
	}
	return false
}

// Flusher is implemented by response writers that can push buffered
// response bytes to the client mid-response.
type Flusher interface {
	Flush() error
}
