package trace

import (
	"context"
	"fmt"

	"github.com/choreolang/choreo/internal/ir"
	"github.com/choreolang/choreo/internal/session"
)

// ReadEvents returns all events for a session ordered by seq.
// Returns an empty slice (not nil) if the session has no events.
func (s *Store) ReadEvents(ctx context.Context, sessionID string) ([]session.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq, kind, peer, payload_type, payload, branch, label
		FROM events
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []session.Event{}
	for rows.Next() {
		var ev session.Event
		var kind, peer string
		if err := rows.Scan(&ev.SessionID, &ev.Seq, &kind, &peer, &ev.PayloadType, &ev.Payload, &ev.Branch, &ev.Label); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind = session.EventKind(kind)
		ev.Peer = ir.Role(peer)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// ListSessions returns every registered session ordered by start time,
// then ID for a deterministic tie-break.
func (s *Store) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, protocol_name, global_hash, local_hash
		FROM sessions
		ORDER BY started_at ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []SessionInfo{}
	for rows.Next() {
		var info SessionInfo
		var role string
		if err := rows.Scan(&info.ID, &role, &info.ProtocolName, &info.GlobalHash, &info.LocalHash); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		info.Role = ir.Role(role)
		sessions = append(sessions, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// GetSession returns one session row by ID.
func (s *Store) GetSession(ctx context.Context, sessionID string) (SessionInfo, error) {
	var info SessionInfo
	var role string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, role, protocol_name, global_hash, local_hash
		FROM sessions
		WHERE id = ?
	`, sessionID).Scan(&info.ID, &role, &info.ProtocolName, &info.GlobalHash, &info.LocalHash)
	if err != nil {
		return SessionInfo{}, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	info.Role = ir.Role(role)
	return info, nil
}
