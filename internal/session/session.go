package session

import (
	"fmt"

	"github.com/choreolang/choreo/internal/ir"
	"github.com/choreolang/choreo/internal/transport"
)

// Links binds each peer role to the byte pipe carrying messages
// between it and this session's role. A two-party session has exactly
// one entry. The session owns every pipe exclusively; ownership moves
// with each transition, so at most one operation is ever in flight
// against a given pipe.
type Links map[ir.Role]transport.Transport

// core holds the state shared by a session value and all of its
// successors. The linear Session values are views onto one core.
type core struct {
	id     string
	role   ir.Role
	links  Links
	codec  transport.Codec
	rec    Recorder
	seq    int64
	closed bool
}

// Session is the runtime handle a role uses to execute its local
// protocol. Every operation consumes the receiver and returns a
// successor positioned at the continuation; using a consumed value
// fails with SESSION_CONSUMED.
type Session struct {
	core     *core
	cur      ir.Local
	bindings map[string]ir.Local // rec label -> body; labels never shadow
	consumed bool
}

// Option configures a session at Begin time.
type Option func(*core)

// WithCodec replaces the default JSON codec.
func WithCodec(c transport.Codec) Option {
	return func(s *core) { s.codec = c }
}

// WithRecorder attaches an event recorder.
func WithRecorder(r Recorder) Option {
	return func(s *core) { s.rec = r }
}

// WithIDGenerator replaces the default UUIDv7 session ID generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *core) { s.id = g.Generate() }
}

// Begin creates a session for role at the root of its projected local
// protocol, bound to one transport per peer role.
func Begin(role ir.Role, local ir.Local, links Links, opts ...Option) *Session {
	c := &core{
		id:    UUIDv7Generator{}.Generate(),
		role:  role,
		links: links,
		codec: transport.JSONCodec{},
		rec:   NopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return &Session{
		core:     c,
		cur:      local,
		bindings: map[string]ir.Local{},
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.core.id }

// Role returns the session's role.
func (s *Session) Role() ir.Role { return s.core.role }

// State describes the current cursor position, for diagnostics.
func (s *Session) State() string { return stateName(s.cur) }

// PayloadType returns the declared payload type name when the cursor
// is at a Send or Receive state. Callers wanting to validate a value
// against a payload schema before sending use this.
func (s *Session) PayloadType() (string, bool) {
	switch n := s.cur.(type) {
	case *ir.LSend:
		return n.Payload, true
	case *ir.LRecv:
		return n.Payload, true
	default:
		return "", false
	}
}

// Send transmits v to the peer named by the current Send state and
// advances to its continuation.
func (s *Session) Send(v any) (*Session, error) {
	if err := s.guard("send"); err != nil {
		return nil, err
	}
	node, ok := s.cur.(*ir.LSend)
	if !ok {
		return nil, s.mismatch("send")
	}
	link, err := s.link("send", node.To)
	if err != nil {
		return nil, err
	}
	data, err := s.core.codec.EncodeValue(v)
	if err != nil {
		return nil, s.fail(ErrCodeEncodeFailure, "send", "payload encoding failed", err)
	}
	if err := link.Write(data); err != nil {
		return nil, s.fail(ErrCodeTransportFailure, "send", "transport write failed", err)
	}
	if err := s.record(Event{
		Kind:        EventSend,
		Peer:        node.To,
		PayloadType: node.Payload,
		Payload:     data,
		Branch:      -1,
	}); err != nil {
		return nil, err
	}
	return s.succeed(node.Cont), nil
}

// Receive blocks until the peer named by the current Receive state
// delivers a payload, then advances to the continuation.
func (s *Session) Receive() (any, *Session, error) {
	if err := s.guard("receive"); err != nil {
		return nil, nil, err
	}
	node, ok := s.cur.(*ir.LRecv)
	if !ok {
		return nil, nil, s.mismatch("receive")
	}
	link, err := s.link("receive", node.From)
	if err != nil {
		return nil, nil, err
	}
	data, err := link.Read()
	if err != nil {
		return nil, nil, s.fail(ErrCodeTransportFailure, "receive", "transport read failed", err)
	}
	v, err := s.core.codec.DecodeValue(data)
	if err != nil {
		return nil, nil, s.fail(ErrCodeDecodeFailure, "receive", "payload decoding failed", err)
	}
	if err := s.record(Event{
		Kind:        EventReceive,
		Peer:        node.From,
		PayloadType: node.Payload,
		Payload:     data,
		Branch:      -1,
	}); err != nil {
		return nil, nil, err
	}
	return v, s.succeed(node.Cont), nil
}

// Select picks branch i of the current Select state, transmits the
// selector tag to every offering peer, and advances into the branch.
func (s *Session) Select(i int) (*Session, error) {
	if err := s.guard("select"); err != nil {
		return nil, err
	}
	node, ok := s.cur.(*ir.LSelect)
	if !ok {
		return nil, s.mismatch("select")
	}
	if i < 0 || i >= len(node.Branches) {
		s.consumed = true
		return nil, &RuntimeError{
			Code:      ErrCodeProtocolMismatch,
			Message:   fmt.Sprintf("branch %d out of range [0,%d)", i, len(node.Branches)),
			SessionID: s.core.id,
			Role:      s.core.role,
			Op:        "select",
			State:     stateName(s.cur),
		}
	}
	tag, err := s.core.codec.EncodeTag(i)
	if err != nil {
		return nil, s.fail(ErrCodeEncodeFailure, "select", "selector encoding failed", err)
	}
	for _, to := range node.To {
		link, err := s.link("select", to)
		if err != nil {
			return nil, err
		}
		if err := link.Write(tag); err != nil {
			return nil, s.fail(ErrCodeTransportFailure, "select", "transport write failed", err)
		}
	}
	if err := s.record(Event{
		Kind:   EventSelect,
		Branch: i,
		Label:  node.Branches[i].Label,
	}); err != nil {
		return nil, err
	}
	return s.succeed(node.Branches[i].Body), nil
}

// Offer blocks until the decider's selector tag arrives, then returns
// the taken branch index with the session positioned inside it. The
// caller must handle every branch; non-exhaustive handling is a caller
// bug.
func (s *Session) Offer() (int, *Session, error) {
	if err := s.guard("offer"); err != nil {
		return 0, nil, err
	}
	node, ok := s.cur.(*ir.LOffer)
	if !ok {
		return 0, nil, s.mismatch("offer")
	}
	link, err := s.link("offer", node.From)
	if err != nil {
		return 0, nil, err
	}
	data, err := link.Read()
	if err != nil {
		return 0, nil, s.fail(ErrCodeTransportFailure, "offer", "transport read failed", err)
	}
	i, err := s.core.codec.DecodeTag(data)
	if err != nil {
		return 0, nil, s.fail(ErrCodeDecodeFailure, "offer", "selector decoding failed", err)
	}
	if i < 0 || i >= len(node.Branches) {
		return 0, nil, s.fail(ErrCodeDecodeFailure, "offer",
			fmt.Sprintf("selector %d out of range [0,%d)", i, len(node.Branches)), nil)
	}
	if err := s.record(Event{
		Kind:   EventOffer,
		Peer:   node.From,
		Branch: i,
		Label:  node.Branches[i].Label,
	}); err != nil {
		return 0, nil, err
	}
	return i, s.succeed(node.Branches[i].Body), nil
}

// Enter descends into the current Rec state's body, remembering the
// label binding for later Recurse calls.
func (s *Session) Enter() (*Session, error) {
	if err := s.guard("enter"); err != nil {
		return nil, err
	}
	node, ok := s.cur.(*ir.LRec)
	if !ok {
		return nil, s.mismatch("enter")
	}
	s.bindings[node.Label] = node.Body
	if err := s.record(Event{Kind: EventEnter, Branch: -1, Label: node.Label}); err != nil {
		return nil, err
	}
	return s.succeed(node.Body), nil
}

// Recurse resets the cursor to the body bound by the matching Enter.
func (s *Session) Recurse() (*Session, error) {
	if err := s.guard("recurse"); err != nil {
		return nil, err
	}
	node, ok := s.cur.(*ir.LVar)
	if !ok {
		return nil, s.mismatch("recurse")
	}
	body, ok := s.bindings[node.Label]
	if !ok {
		// Unreachable on projected protocols: well-formedness binds
		// every var. Programmatically built trees can get here.
		s.consumed = true
		return nil, &RuntimeError{
			Code:      ErrCodeProtocolMismatch,
			Message:   fmt.Sprintf("no binding for rec label %s", node.Label),
			SessionID: s.core.id,
			Role:      s.core.role,
			Op:        "recurse",
			State:     stateName(s.cur),
		}
	}
	if err := s.record(Event{Kind: EventRecurse, Branch: -1, Label: node.Label}); err != nil {
		return nil, err
	}
	return s.succeed(body), nil
}

// Close releases the transports. Legal only at End; closing anywhere
// else is a protocol mismatch (use Abort to abandon a session early).
func (s *Session) Close() error {
	if err := s.guard("close"); err != nil {
		return err
	}
	if _, ok := s.cur.(*ir.LEnd); !ok {
		return s.mismatch("close")
	}
	s.release()
	if err := s.record(Event{Kind: EventClose, Branch: -1}); err != nil {
		return err
	}
	s.consumed = true
	s.core.closed = true
	return nil
}

// Abort abandons the session before End, releasing the transports and
// recording an incomplete-protocol condition. There is no silent
// cleanup path: an abandoned session that is never aborted is a
// resource leak. Unlike every other operation, Abort works on a
// consumed value too, so a failed operation can still be cleaned up.
func (s *Session) Abort() error {
	if s.core.closed {
		return &RuntimeError{
			Code:      ErrCodeChannelClosed,
			Message:   "session is closed",
			SessionID: s.core.id,
			Role:      s.core.role,
			Op:        "abort",
		}
	}
	s.release()
	if err := s.record(Event{Kind: EventAbort, Branch: -1, Label: stateName(s.cur)}); err != nil {
		return err
	}
	s.consumed = true
	s.core.closed = true
	return nil
}

func (s *Session) release() {
	seen := map[transport.Transport]bool{}
	for _, link := range s.core.links {
		if seen[link] {
			continue
		}
		seen[link] = true
		link.Close()
	}
}

// guard enforces the single-use and post-close rules shared by every
// operation.
func (s *Session) guard(op string) error {
	if s.consumed {
		return &RuntimeError{
			Code:      ErrCodeSessionConsumed,
			Message:   "session value was already consumed; use the successor returned by the last operation",
			SessionID: s.core.id,
			Role:      s.core.role,
			Op:        op,
		}
	}
	if s.core.closed {
		return &RuntimeError{
			Code:      ErrCodeChannelClosed,
			Message:   "session is closed",
			SessionID: s.core.id,
			Role:      s.core.role,
			Op:        op,
		}
	}
	return nil
}

// mismatch marks the session unusable and reports the shape violation.
func (s *Session) mismatch(op string) error {
	state := stateName(s.cur)
	s.consumed = true
	return &RuntimeError{
		Code:      ErrCodeProtocolMismatch,
		Message:   fmt.Sprintf("operation %s does not match current state %s", op, state),
		SessionID: s.core.id,
		Role:      s.core.role,
		Op:        op,
		State:     state,
	}
}

// fail wraps a transport/codec error without consuming the session's
// protocol position; these failures are surfaced verbatim and never
// retried by the session.
func (s *Session) fail(code RuntimeErrorCode, op, msg string, err error) error {
	s.consumed = true
	return &RuntimeError{
		Code:      code,
		Message:   msg,
		SessionID: s.core.id,
		Role:      s.core.role,
		Op:        op,
		State:     stateName(s.cur),
		Err:       err,
	}
}

func (s *Session) link(op string, peer ir.Role) (transport.Transport, error) {
	link, ok := s.core.links[peer]
	if !ok {
		s.consumed = true
		return nil, &RuntimeError{
			Code:      ErrCodeTransportFailure,
			Message:   fmt.Sprintf("no transport bound for peer %s", peer),
			SessionID: s.core.id,
			Role:      s.core.role,
			Op:        op,
			State:     stateName(s.cur),
		}
	}
	return link, nil
}

func (s *Session) record(ev Event) error {
	s.core.seq++
	ev.SessionID = s.core.id
	ev.Role = s.core.role
	ev.Seq = s.core.seq
	if err := s.core.rec.Record(ev); err != nil {
		s.consumed = true
		return fmt.Errorf("record %s event: %w", ev.Kind, err)
	}
	return nil
}

// succeed consumes the receiver and returns the successor session.
func (s *Session) succeed(next ir.Local) *Session {
	s.consumed = true
	return &Session{
		core:     s.core,
		cur:      next,
		bindings: s.bindings,
	}
}

func stateName(l ir.Local) string {
	switch n := l.(type) {
	case *ir.LSend:
		return fmt.Sprintf("send(%s, %s)", n.To, n.Payload)
	case *ir.LRecv:
		return fmt.Sprintf("receive(%s, %s)", n.From, n.Payload)
	case *ir.LSelect:
		return fmt.Sprintf("select(%d branches)", len(n.Branches))
	case *ir.LOffer:
		return fmt.Sprintf("offer(%s, %d branches)", n.From, len(n.Branches))
	case *ir.LRec:
		return fmt.Sprintf("rec(%s)", n.Label)
	case *ir.LVar:
		return fmt.Sprintf("var(%s)", n.Label)
	case *ir.LEnd:
		return "end"
	default:
		return fmt.Sprintf("%T", l)
	}
}
