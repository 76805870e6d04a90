// Package transport provides the byte-pipe contract consumed by the
// session runtime, plus the two bundled implementations: an in-memory
// loopback pair for tests and a length-prefix framed adapter over any
// io.ReadWriteCloser. The session core never interprets transported
// bytes; payload and branch-tag encoding live behind the Codec seam.
package transport

import "errors"

// ErrClosed is returned by Write and Read after either end of a pipe
// has been closed.
var ErrClosed = errors.New("transport: closed")

// Transport is one byte pipe between two endpoints. Write transmits an
// opaque message; Read blocks until one is available. Implementations
// must preserve message boundaries and ordering.
type Transport interface {
	Write(p []byte) error
	Read() ([]byte, error)
	Close() error
}
