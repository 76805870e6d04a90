package transport

import "sync"

// pipeCapacity bounds each direction's buffer. Deep enough that a
// sender can run ahead of a slow receiver without blocking in the
// common test scenarios.
const pipeCapacity = 16

// Pipe creates a connected in-memory transport pair. Messages written
// on one end are read from the other, in order, with boundaries
// preserved. Closing either end closes the pair; buffered messages
// remain readable until drained.
func Pipe() (*PipeEnd, *PipeEnd) {
	shared := &pipeShared{
		ab:   make(chan []byte, pipeCapacity),
		ba:   make(chan []byte, pipeCapacity),
		done: make(chan struct{}),
	}
	a := &PipeEnd{shared: shared, in: shared.ba, out: shared.ab}
	b := &PipeEnd{shared: shared, in: shared.ab, out: shared.ba}
	return a, b
}

type pipeShared struct {
	ab   chan []byte
	ba   chan []byte
	done chan struct{}
	once sync.Once
}

// PipeEnd is one end of an in-memory transport pair.
type PipeEnd struct {
	shared *pipeShared
	in     chan []byte
	out    chan []byte
}

// Write transmits one message to the peer end.
func (e *PipeEnd) Write(p []byte) error {
	// Copy so the caller may reuse its buffer.
	msg := make([]byte, len(p))
	copy(msg, p)
	select {
	case <-e.shared.done:
		return ErrClosed
	default:
	}
	select {
	case e.out <- msg:
		return nil
	case <-e.shared.done:
		return ErrClosed
	}
}

// Read blocks until a message is available from the peer end.
// Messages buffered before close remain readable.
func (e *PipeEnd) Read() ([]byte, error) {
	select {
	case msg := <-e.in:
		return msg, nil
	default:
	}
	select {
	case msg := <-e.in:
		return msg, nil
	case <-e.shared.done:
		// Drain anything that raced with close.
		select {
		case msg := <-e.in:
			return msg, nil
		default:
			return nil, ErrClosed
		}
	}
}

// Close closes both ends of the pair. Idempotent.
func (e *PipeEnd) Close() error {
	e.shared.once.Do(func() { close(e.shared.done) })
	return nil
}
