package http1

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var (
	ErrChunkFormat = fmt.Errorf("%w: invalid chunk", ErrMalformed)
	// ErrBodyTooLarge is returned by a chunked body once the decoded size
	// passes the configured limit.
	ErrBodyTooLarge = errors.New("http1: body too large")
)

// chunkedBody decodes Transfer-Encoding: chunked. Trailer fields are
// collected into Trailer once the last chunk has been read.
type chunkedBody struct {
	br      *bufio.Reader
	maxLine int   // limit for chunk size and trailer lines
	maxBody int64 // 0 means unlimited
	remain  int64 // bytes left in the current chunk, -1 before the first
	read    int64
	done    bool
	err     error // sticky once decoding failed
	Trailer map[string][]string
}

func newChunkedBody(br *bufio.Reader, maxLine int, maxBody int64) *chunkedBody {
	return &chunkedBody{br: br, maxLine: maxLine, maxBody: maxBody, remain: -1}
}

func (c *chunkedBody) Read(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.decode(p)
	if err != nil && err != io.EOF {
		c.err = err
	}
	return n, err
}

func (c *chunkedBody) decode(p []byte) (int, error) {
	if c.done {
		return 0, io.EOF
	}
	if c.remain <= 0 {
		if err := c.nextChunk(); err != nil {
			return 0, err
		}
		if c.done {
			return 0, io.EOF
		}
	}
	if len(p) == 0 {
		return 0, nil
	}
	if int64(len(p)) > c.remain {
		p = p[:c.remain]
	}
	n, err := io.ReadFull(c.br, p)
	c.remain -= int64(n)
	c.read += int64(n)
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return n, err
	}
	if c.remain == 0 {
		if err := c.expectCRLF(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// nextChunk reads the next size line, or the trailer section after the
// terminating zero-size chunk.
func (c *chunkedBody) nextChunk() error {
	size, err := c.readChunkSize()
	if err != nil {
		return err
	}
	if size == 0 {
		if err := c.readTrailers(); err != nil {
			return err
		}
		c.done = true
		return nil
	}
	if c.maxBody > 0 && c.read+size > c.maxBody {
		return ErrBodyTooLarge
	}
	c.remain = size
	return nil
}

// Close drains the rest of the body so the connection can carry another
// request.
func (c *chunkedBody) Close() error {
	_, err := io.Copy(io.Discard, c)
	return err
}

func (c *chunkedBody) readChunkSize() (int64, error) {
	line, err := readLineLimit(c.br, c.maxLine)
	if err != nil {
		return 0, err
	}
	// chunk extensions: "<hex>;<ext>"
	if i := strings.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return 0, ErrChunkFormat
	}
	n, err := strconv.ParseInt(line, 16, 64)
	if err != nil || n < 0 {
		return 0, ErrChunkFormat
	}
	return n, nil
}

func (c *chunkedBody) expectCRLF() error {
	var crlf [2]byte
	if _, err := io.ReadFull(c.br, crlf[:]); err != nil {
		return err
	}
	if crlf != [2]byte{'\r', '\n'} {
		return fmt.Errorf("%w: expected CRLF after chunk data, got %q", ErrChunkFormat, crlf[:])
	}
	return nil
}

func (c *chunkedBody) readTrailers() error {
	for {
		line, err := readLineLimit(c.br, c.maxLine)
		if err != nil {
			return err
		}
		if line == "" {
			return nil
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok || SanitizeHeaderKey(k) == "" {
			return fmt.Errorf("%w: trailer line %q", ErrMalformed, line)
		}
		if c.Trailer == nil {
			c.Trailer = make(map[string][]string)
		}
		addHeader(c.Trailer, k, strings.TrimSpace(v))
	}
}

// readLineLimit reads one line without its CR LF. Lines longer than limit
// fail with ErrHeaderTooLarge.
func readLineLimit(br *bufio.Reader, limit int) (string, error) {
	var sb strings.Builder
	for {
		b, err := br.ReadByte()
		if err != nil {
			if err == io.EOF && sb.Len() > 0 {
				err = io.ErrUnexpectedEOF
			}
			return "", err
		}
		if b == '\n' {
			return sb.String(), nil
		}
		if b != '\r' {
			sb.WriteByte(b)
		}
		if limit > 0 && sb.Len() > limit {
			return "", ErrHeaderTooLarge
		}
	}
}
