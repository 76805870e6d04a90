package session

import (
	"errors"
	"fmt"

	"github.com/choreolang/choreo/internal/ir"
)

// RuntimeError represents an error detected during session execution.
//
// A PROTOCOL_MISMATCH is always a programming error in the calling
// code: the derived local protocol was not followed. It is fatal to
// the session, which is left unusable rather than silently advanced.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// SessionID identifies the affected session.
	SessionID string

	// Role is the session's role.
	Role ir.Role

	// Op is the operation that was attempted.
	Op string

	// State describes the cursor position at the time of the error.
	State string

	// Err is the underlying transport/codec error, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeProtocolMismatch indicates an operation that does not
	// match the session's current protocol position.
	ErrCodeProtocolMismatch RuntimeErrorCode = "PROTOCOL_MISMATCH"

	// ErrCodeSessionConsumed indicates reuse of a session value that
	// was already consumed by an earlier operation.
	ErrCodeSessionConsumed RuntimeErrorCode = "SESSION_CONSUMED"

	// ErrCodeChannelClosed indicates an operation after Close or Abort.
	ErrCodeChannelClosed RuntimeErrorCode = "CHANNEL_CLOSED"

	// ErrCodeTransportFailure surfaces a transport error verbatim.
	// The session never retries.
	ErrCodeTransportFailure RuntimeErrorCode = "TRANSPORT_FAILURE"

	// ErrCodeEncodeFailure surfaces a serialization error verbatim.
	ErrCodeEncodeFailure RuntimeErrorCode = "ENCODE_FAILURE"

	// ErrCodeDecodeFailure surfaces a deserialization error verbatim,
	// including branch selector tags outside the offered range.
	ErrCodeDecodeFailure RuntimeErrorCode = "DECODE_FAILURE"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s (session=%s, role=%s", e.Code, e.Message, e.SessionID, e.Role)
	if e.Op != "" {
		msg += fmt.Sprintf(", op=%s", e.Op)
	}
	if e.State != "" {
		msg += fmt.Sprintf(", state=%s", e.State)
	}
	msg += ")"
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap returns the underlying transport/codec error, if any.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsProtocolMismatch reports whether err is a protocol mismatch.
// Uses errors.As to handle wrapped errors.
func IsProtocolMismatch(err error) bool {
	return hasCode(err, ErrCodeProtocolMismatch)
}

// IsSessionConsumed reports whether err is a linear-usage violation.
func IsSessionConsumed(err error) bool {
	return hasCode(err, ErrCodeSessionConsumed)
}

// IsChannelClosed reports whether err is an operation after close.
func IsChannelClosed(err error) bool {
	return hasCode(err, ErrCodeChannelClosed)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}
