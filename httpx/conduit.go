package httpx

import "io"

// Conduit is the read side of a request body. Besides plain Read it offers
// vectored reads and two bulk transfer shapes. Every shape reports the
// count of a single read pass: n > 0 means progress, 0 with a nil error
// means nothing was available, and io.EOF marks end-of-stream.
type Conduit interface {
	io.ReadCloser
	ReadVectored(bufs [][]byte) (int64, error)
	// TransferTo moves at most count bytes into dst through buf.
	TransferTo(dst io.Writer, count int64, buf []byte) (int64, error)
	// TransferAt copies at most count bytes into dst at offset pos.
	TransferAt(dst io.WriterAt, pos, count int64) (int64, error)
	// TerminateReads stops the conduit from servicing further reads.
	TerminateReads() error
}

// ConduitFactory produces the conduit a wrapper decorates.
type ConduitFactory func() Conduit

// ConduitWrapper decorates a request's body conduit. It is installed per
// request through Request.AddConduitWrapper.
type ConduitWrapper interface {
	WrapConduit(create ConduitFactory, r *Request) Conduit
}

// ConduitWrapperFunc adapts a function to ConduitWrapper.
type ConduitWrapperFunc func(create ConduitFactory, r *Request) Conduit

func (f ConduitWrapperFunc) WrapConduit(create ConduitFactory, r *Request) Conduit {
	return f(create, r)
}
