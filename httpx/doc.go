// Package httpx provides a small, security‑minded HTTP/1.1 server aimed at
// learning, control, and embeddability in libraries and tools.
//
// Highlights
//   - Streaming ResponseWriter, keep‑alive, chunked transfer,
//     Expect: 100‑continue, CL/TE validation, header size limits,
//     graceful shutdown, optional TLS listener.
//   - Request bodies are exposed as a Conduit with single, vectored and
//     bulk transfer read shapes. Handlers may decorate the conduit per
//     request via Request.AddConduitWrapper before reading the body.
//   - Every connection carries an ID and an idempotent Close usable from
//     inside a body read.
//   - Observability: plug‑in Logger and Meter interfaces.
//
// Quick start:
//
//	s := &httpx.Server{Addr: ":8080"}
//	s.Handler = httpx.HandlerFunc(func(w httpx.ResponseWriter, r *httpx.Request) {
//	    w.Header().Set("Content-Type", "text/plain; charset=utf-8")
//	    w.WriteHeader(200)
//	    w.Write([]byte("hello"))
//	})
//	if err := s.ListenAndServe(); err != nil { log.Fatal(err) }
package httpx
