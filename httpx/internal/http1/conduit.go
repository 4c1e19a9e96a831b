package http1

import (
	"errors"
	"io"
)

// ErrReadsTerminated is returned by every read shape of a Conduit after
// TerminateReads.
var ErrReadsTerminated = errors.New("http1: reads terminated")

const transferBufSize = 32 << 10

// Conduit exposes a request body through the read shapes the server hands
// to handlers. Each method performs a single pass over the body reader and
// reports the count it observed; a zero count with a nil error means the
// body had nothing to give right now.
type Conduit struct {
	body       io.ReadCloser
	terminated bool
}

func NewConduit(body io.ReadCloser) *Conduit {
	return &Conduit{body: body}
}

func (c *Conduit) Read(p []byte) (int, error) {
	if c.terminated {
		return 0, ErrReadsTerminated
	}
	return c.body.Read(p)
}

// ReadVectored fills bufs in order and stops at the first short read.
// End-of-stream after some bytes were read is deferred to the next call.
func (c *Conduit) ReadVectored(bufs [][]byte) (int64, error) {
	var total int64
	for _, b := range bufs {
		if len(b) == 0 {
			continue
		}
		n, err := c.Read(b)
		total += int64(n)
		if err != nil {
			if err == io.EOF && total > 0 {
				return total, nil
			}
			return total, err
		}
		if n < len(b) {
			break
		}
	}
	return total, nil
}

// TransferTo moves at most count bytes into dst through buf with a single
// read. A nil or empty buf is replaced by an internal one.
func (c *Conduit) TransferTo(dst io.Writer, count int64, buf []byte) (int64, error) {
	if count <= 0 {
		return 0, nil
	}
	if len(buf) == 0 {
		buf = make([]byte, transferBufSize)
	}
	if int64(len(buf)) > count {
		buf = buf[:count]
	}
	n, err := c.Read(buf)
	if n <= 0 {
		return 0, err
	}
	w, werr := dst.Write(buf[:n])
	if werr != nil {
		return int64(w), werr
	}
	if w < n {
		return int64(w), io.ErrShortWrite
	}
	if err == io.EOF {
		err = nil
	}
	return int64(w), err
}

// TransferAt copies up to count bytes into dst starting at offset pos. It
// returns early on end-of-stream or on a read that yields no bytes.
func (c *Conduit) TransferAt(dst io.WriterAt, pos, count int64) (int64, error) {
	if count <= 0 {
		return 0, nil
	}
	size := int64(transferBufSize)
	if size > count {
		size = count
	}
	buf := make([]byte, size)
	var written int64
	for written < count {
		want := count - written
		if want > size {
			want = size
		}
		n, err := c.Read(buf[:want])
		if n > 0 {
			w, werr := dst.WriteAt(buf[:n], pos+written)
			written += int64(w)
			if werr != nil {
				return written, werr
			}
		}
		if err == io.EOF {
			if written > 0 {
				return written, nil
			}
			return 0, io.EOF
		}
		if err != nil {
			return written, err
		}
		if n == 0 {
			break
		}
	}
	return written, nil
}

// TerminateReads makes all later reads fail with ErrReadsTerminated.
func (c *Conduit) TerminateReads() error {
	c.terminated = true
	return nil
}

// Close drains the body for connection reuse unless reads were terminated.
func (c *Conduit) Close() error {
	if c.terminated {
		return nil
	}
	return c.body.Close()
}
