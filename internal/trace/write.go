package trace

import (
	"context"
	"fmt"

	"github.com/choreolang/choreo/internal/ir"
	"github.com/choreolang/choreo/internal/session"
)

// SessionInfo is one row of the sessions table.
type SessionInfo struct {
	ID           string  `json:"id"`
	Role         ir.Role `json:"role"`
	ProtocolName string  `json:"protocol_name"`
	GlobalHash   string  `json:"global_hash"`
	LocalHash    string  `json:"local_hash"`
}

// RegisterSession inserts the session row events will reference.
// Idempotent: re-registering the same ID is silently ignored.
func (s *Store) RegisterSession(ctx context.Context, info SessionInfo) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, role, protocol_name, global_hash, local_hash)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		info.ID,
		string(info.Role),
		info.ProtocolName,
		info.GlobalHash,
		info.LocalHash,
	)
	if err != nil {
		return fmt.Errorf("register session: %w", err)
	}
	return nil
}

// WriteEvent appends one session event. (session_id, seq) must be
// unique; the session runtime's logical clock guarantees that.
func (s *Store) WriteEvent(ctx context.Context, ev session.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (session_id, seq, kind, peer, payload_type, payload, branch, label)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.SessionID,
		ev.Seq,
		string(ev.Kind),
		string(ev.Peer),
		ev.PayloadType,
		ev.Payload,
		ev.Branch,
		ev.Label,
	)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// Recorder adapts a Store to the session.Recorder interface.
type Recorder struct {
	store *Store
	ctx   context.Context
}

// NewRecorder creates a Recorder writing through to store. The context
// bounds every write issued from inside session operations.
func NewRecorder(ctx context.Context, store *Store) *Recorder {
	return &Recorder{store: store, ctx: ctx}
}

// Record implements session.Recorder.
func (r *Recorder) Record(ev session.Event) error {
	return r.store.WriteEvent(r.ctx, ev)
}
