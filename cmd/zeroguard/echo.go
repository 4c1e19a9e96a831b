package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"dqx0.com/go/zeroguard/httpx"
	"dqx0.com/go/zeroguard/internal/obs"
)

const transferSize = 32 << 10

// bodyHandler serves the two body consuming endpoints. /echo streams the
// body back with TransferTo, /upload stores it in a temporary file with
// TransferAt. Both keep reading through zero-length results, which is the
// access pattern the watchdog exists for.
type bodyHandler struct {
	log    obs.Logger
	tmpDir string
}

func (h *bodyHandler) ServeHTTP(w httpx.ResponseWriter, r *httpx.Request) {
	path := ""
	if r.URL != nil {
		path = r.URL.Path
	}
	switch path {
	case "/echo":
		h.echo(w, r)
	case "/upload":
		h.upload(w, r)
	default:
		httpx.NotFoundHandler().ServeHTTP(w, r)
	}
}

func (h *bodyHandler) echo(w httpx.ResponseWriter, r *httpx.Request) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(200)
	c := r.Conduit()
	if c == nil {
		return
	}
	buf := make([]byte, transferSize)
	for {
		_, err := c.TransferTo(w, transferSize, buf)
		if err == nil {
			continue
		}
		if !errors.Is(err, io.EOF) {
			h.log.Logf(obs.Debug, "zeroguard: echo aborted for %s: %v", r, err)
		}
		return
	}
}

func (h *bodyHandler) upload(w httpx.ResponseWriter, r *httpx.Request) {
	var size int64
	if c := r.Conduit(); c != nil {
		f, err := os.CreateTemp(h.tmpDir, "zeroguard-upload-*")
		if err != nil {
			h.log.Logf(obs.Error, "zeroguard: create upload file: %v", err)
			w.WriteHeader(500)
			io.WriteString(w, "cannot store upload\n")
			return
		}
		defer os.Remove(f.Name())
		defer f.Close()

		for {
			n, err := c.TransferAt(f, size, transferSize)
			size += n
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				h.log.Logf(obs.Debug, "zeroguard: upload aborted for %s after %d bytes: %v", r, size, err)
				return
			}
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(200)
	fmt.Fprintf(w, "stored %d bytes\n", size)
}
