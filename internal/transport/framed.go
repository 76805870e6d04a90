package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxFrameBytes bounds decode memory use for framed transports.
const DefaultMaxFrameBytes = 8 * 1024 * 1024

// ErrFrameTooLarge is returned when a frame exceeds the configured limit.
var ErrFrameTooLarge = errors.New("transport: frame too large")

// Framed adapts any io.ReadWriteCloser (a net.Conn, typically) to the
// Transport contract using a big-endian uint32 length prefix per
// message. The zero-length frame is legal and round-trips as an empty
// message.
type Framed struct {
	rw       io.ReadWriteCloser
	maxBytes uint32
	closed   bool
}

// NewFramed wraps rw with DefaultMaxFrameBytes.
func NewFramed(rw io.ReadWriteCloser) *Framed {
	return &Framed{rw: rw, maxBytes: DefaultMaxFrameBytes}
}

// NewFramedLimit wraps rw with an explicit frame size limit.
func NewFramedLimit(rw io.ReadWriteCloser, maxBytes uint32) *Framed {
	return &Framed{rw: rw, maxBytes: maxBytes}
}

// Write transmits one length-prefixed frame.
func (f *Framed) Write(p []byte) error {
	if f.closed {
		return ErrClosed
	}
	if uint64(len(p)) > uint64(f.maxBytes) {
		return ErrFrameTooLarge
	}
	var head [4]byte
	binary.BigEndian.PutUint32(head[:], uint32(len(p)))
	if _, err := f.rw.Write(head[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if len(p) == 0 {
		return nil
	}
	if _, err := f.rw.Write(p); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}

// Read blocks until one complete frame arrives.
func (f *Framed) Read() ([]byte, error) {
	if f.closed {
		return nil, ErrClosed
	}
	var head [4]byte
	if _, err := io.ReadFull(f.rw, head[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("read frame header: %w", err)
	}
	n := binary.BigEndian.Uint32(head[:])
	if n > f.maxBytes {
		return nil, ErrFrameTooLarge
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(f.rw, payload); err != nil {
		return nil, fmt.Errorf("read frame payload: %w", err)
	}
	return payload, nil
}

// Close closes the underlying stream. Idempotent at this layer; the
// underlying Close is called once.
func (f *Framed) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	return f.rw.Close()
}
