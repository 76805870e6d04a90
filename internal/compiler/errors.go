package compiler

import (
	"errors"
	"fmt"
)

// Syntax error codes (E001-E099)
const (
	ErrUnexpectedToken      = "E001" // token does not match the grammar
	ErrIllegalCharacter     = "E002" // character outside the lexical rules
	ErrUnterminatedComment  = "E003" // block comment never closed
	ErrUnreachableStatement = "E004" // interaction after choice/rec/continue/end
	ErrUnexpectedEOF        = "E005" // source ended mid-production
)

// Semantic error codes (E100-E199)
const (
	// Role resolution (E101-E109)
	ErrUndeclaredRole = "E101" // from/to/decider not in the declared role set
	ErrSelfMessage    = "E102" // message from a role to itself
	ErrDuplicateRole  = "E103" // participant declared twice

	// Recursion scoping and guardedness (E110-E119)
	ErrUnboundLabel  = "E110" // continue label with no enclosing rec
	ErrShadowedLabel = "E111" // rec label rebound inside its own scope
	ErrUnguardedRec  = "E112" // path from rec to continue with no message

	// Choice structure (E120-E129)
	ErrLeadingSender = "E120" // branch's first message not sent by the decider
	ErrChoiceArity   = "E121" // choice with fewer than two branches
)

// Position is a source location. Line and Col are 1-based; the zero
// value means "no source position" (e.g. programmatically built IR).
type Position struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// IsZero reports whether the position carries no location.
func (p Position) IsZero() bool {
	return p.Line == 0 && p.Col == 0
}

// SyntaxError reports text that does not match the grammar.
// Always carries a source position.
type SyntaxError struct {
	Code    string   `json:"code"`
	Pos     Position `json:"pos"`
	Message string   `json:"message"`
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("[%s] %s: syntax error: %s", e.Code, e.Pos, e.Message)
}

// SemanticError reports a well-formedness violation. Role, Label, and
// Branch identify the offending node; Branch is -1 when no branch is
// involved. Pos is set when the error was detected during parsing and
// zero when detected on an already-built tree.
type SemanticError struct {
	Code    string   `json:"code"`
	Pos     Position `json:"pos,omitempty"`
	Message string   `json:"message"`
	Role    string   `json:"role,omitempty"`
	Label   string   `json:"label,omitempty"`
	Branch  int      `json:"branch,omitempty"`
}

func (e *SemanticError) Error() string {
	if e.Pos.IsZero() {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Pos, e.Message)
}

// IsSyntaxError reports whether err is (or wraps) a SyntaxError.
func IsSyntaxError(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
}

// IsSemanticError reports whether err is (or wraps) a SemanticError.
func IsSemanticError(err error) bool {
	var se *SemanticError
	return errors.As(err, &se)
}
