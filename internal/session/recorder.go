package session

import "github.com/choreolang/choreo/internal/ir"

// EventKind enumerates recordable session transitions.
type EventKind string

const (
	EventSend    EventKind = "send"
	EventReceive EventKind = "receive"
	EventSelect  EventKind = "select"
	EventOffer   EventKind = "offer"
	EventEnter   EventKind = "enter"
	EventRecurse EventKind = "recurse"
	EventClose   EventKind = "close"
	EventAbort   EventKind = "abort"
)

// Event is one recorded session transition. Payload holds the encoded
// bytes exactly as they crossed the transport boundary; the session
// never interprets them and neither should a recorder.
type Event struct {
	SessionID   string
	Role        ir.Role
	Seq         int64 // per-session logical clock, starts at 1
	Kind        EventKind
	Peer        ir.Role // message peer or choice decider; empty otherwise
	PayloadType string  // declared payload type name (send/receive)
	Payload     []byte  // encoded payload (send/receive)
	Branch      int     // branch index (select/offer), -1 otherwise
	Label       string  // rec label (enter/recurse) or branch label
}

// Recorder observes session events. Implementations must not block
// indefinitely; a failing recorder fails the operation that produced
// the event.
type Recorder interface {
	Record(ev Event) error
}

// NopRecorder discards all events. The default.
type NopRecorder struct{}

// Record implements Recorder.
func (NopRecorder) Record(Event) error { return nil }
