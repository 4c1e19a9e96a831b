package http1

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
)

var (
	ErrHeaderTooLarge = errors.New("http1: header too large")
	ErrMalformed      = errors.New("http1: malformed request")
	errCLTEConflict   = errors.New("http1: both Content-Length and Transfer-Encoding present")
)

// ParsedRequest is a minimal representation parsed from the wire.
type ParsedRequest struct {
	Method        string
	RequestURI    string
	Proto         string
	Header        map[string][]string
	ContentLength int64
	Body          io.ReadCloser
	// Complete reports that no further socket reads are needed to consume
	// the body: there is none, or all of it is already buffered.
	Complete bool
}

type Reader struct {
	BR                  *bufio.Reader
	MaxHeaderBytes      int // per line
	MaxTotalHeaderBytes int // request line plus all header lines
	// MaxBodyBytes bounds chunked bodies while they are decoded; 0 means
	// unlimited. Content-Length bodies are checked by the caller up front.
	MaxBodyBytes int64
	total        int
}

func (r *Reader) ReadRequest() (*ParsedRequest, error) {
	r.total = 0
	line, err := r.readLine()
	if err != nil {
		return nil, err
	}
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return nil, ErrMalformed
	}
	method, uri, proto := parts[0], parts[1], parts[2]
	if !strings.HasPrefix(proto, "HTTP/1.") || SanitizeHeaderKey(method) == "" {
		return nil, ErrMalformed
	}
	hdr, err := r.readHeaders()
	if err != nil {
		return nil, err
	}
	// Decide body source: chunked TE, else Content-Length, else empty
	var cl int64
	var body io.ReadCloser
	complete := true
	clv, hasCL, err := contentLength(hdr)
	if err != nil {
		return nil, err
	}
	switch {
	case hasChunkedTE(hdr):
		if hasCL {
			return nil, errCLTEConflict
		}
		cl = -1
		body = newChunkedBody(r.BR, r.MaxHeaderBytes, r.MaxBodyBytes)
		complete = false
	case hasCL && clv > 0:
		cl = clv
		lr := &io.LimitedReader{R: r.BR, N: cl}
		body = &limitedBody{lr: lr}
		complete = int64(r.BR.Buffered()) >= cl
	default:
		body = io.NopCloser(strings.NewReader(""))
	}
	return &ParsedRequest{
		Method:        method,
		RequestURI:    uri,
		Proto:         proto,
		Header:        hdr,
		ContentLength: cl,
		Body:          body,
		Complete:      complete,
	}, nil
}

func (r *Reader) readHeaders() (map[string][]string, error) {
	h := make(map[string][]string)
	for {
		line, err := r.readLine()
		if err != nil {
			return nil, err
		}
		if line == "" {
			break
		}
		i := strings.IndexByte(line, ':')
		if i <= 0 {
			return nil, ErrMalformed
		}
		k := line[:i]
		if SanitizeHeaderKey(k) == "" {
			return nil, ErrMalformed
		}
		v := strings.TrimSpace(line[i+1:])
		addHeader(h, k, v)
	}
	return h, nil
}

func (r *Reader) readLine() (string, error) {
	var sb strings.Builder
	for {
		b, err := r.BR.ReadByte()
		if err != nil {
			return "", err
		}
		r.total++
		if r.MaxTotalHeaderBytes > 0 && r.total > r.MaxTotalHeaderBytes {
			return "", ErrHeaderTooLarge
		}
		if b == '\n' {
			break
		}
		if b != '\r' {
			sb.WriteByte(b)
		}
		if r.MaxHeaderBytes > 0 && sb.Len() > r.MaxHeaderBytes {
			return "", ErrHeaderTooLarge
		}
	}
	return sb.String(), nil
}

// contentLength resolves Content-Length, accepting repeated values only
// when they all agree.
func contentLength(h map[string][]string) (int64, bool, error) {
	vv, ok := h[canonicalHeaderKey("Content-Length")]
	if !ok || len(vv) == 0 {
		return 0, false, nil
	}
	n := int64(-1)
	for _, v := range vv {
		for _, part := range strings.Split(v, ",") {
			m, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil || m < 0 {
				return 0, false, ErrMalformed
			}
			if n >= 0 && m != n {
				return 0, false, ErrMalformed
			}
			n = m
		}
	}
	return n, true, nil
}

type limitedBody struct {
	lr *io.LimitedReader
}

func (b *limitedBody) Read(p []byte) (int, error) {
	n, err := b.lr.Read(p)
	if err == io.EOF && b.lr.N > 0 {
		return n, io.ErrUnexpectedEOF
	}
	return n, err
}

func (b *limitedBody) Close() error {
	// Drain remaining bytes to allow next request on the same connection.
	buf := make([]byte, 1024)
	for b.lr.N > 0 {
		n := int64(len(buf))
		if n > b.lr.N {
			n = b.lr.N
		}
		if _, err := io.ReadFull(b.lr, buf[:n]); err != nil {
			if err == io.ErrUnexpectedEOF || err == io.EOF {
				break
			}
			return err
		}
	}
	return nil
}

func addHeader(h map[string][]string, k, v string) {
	hk := canonicalHeaderKey(k)
	h[hk] = append(h[hk], v)
}

func hasChunkedTE(h map[string][]string) bool {
	hk := canonicalHeaderKey("Transfer-Encoding")
	if vv, ok := h[hk]; ok {
		for _, v := range vv {
			if strings.Contains(strings.ToLower(v), "chunked") {
				return true
			}
		}
	}
	return false
}

// Very small canonicalizer to avoid importing textproto here.
func canonicalHeaderKey(s string) string {
	b := []byte(strings.ToLower(s))
	upper := true
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			if upper {
				b[i] = byte(c - 'a' + 'A')
			}
			upper = false
			continue
		}
		upper = c == '-'
	}
	return string(b)
}
