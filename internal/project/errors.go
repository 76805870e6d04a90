package project

import (
	"errors"
	"fmt"

	"github.com/choreolang/choreo/internal/ir"
)

// Projection error codes (E300-E399)
const (
	// ErrInconsistentBranches indicates a role that participates in no
	// branch of a choice would behave differently depending on which
	// branch was taken.
	ErrInconsistentBranches = "E301"

	// ErrUnknownRole indicates projection was requested for a role
	// outside the protocol's declared role set.
	ErrUnknownRole = "E302"

	// ErrNotTwoParty indicates a duality computation on a local
	// protocol that references more than one peer.
	ErrNotTwoParty = "E310"
)

// ProjectionError reports a failed projection or duality computation.
type ProjectionError struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Role    ir.Role `json:"role,omitempty"`
	Branch  int     `json:"branch,omitempty"` // offending branch index, -1 if none
}

func (e *ProjectionError) Error() string {
	if e.Branch >= 0 {
		return fmt.Sprintf("[%s] role %s, branch %d: %s", e.Code, e.Role, e.Branch, e.Message)
	}
	return fmt.Sprintf("[%s] role %s: %s", e.Code, e.Role, e.Message)
}

// IsProjectionError reports whether err is (or wraps) a ProjectionError.
func IsProjectionError(err error) bool {
	var pe *ProjectionError
	return errors.As(err, &pe)
}
