// Package schema loads payload type declarations from CUE and checks
// protocols and payload values against them. A schema file declares one
// CUE value per payload type name:
//
//	Ping: {text: string}
//	Pong: {text: string}
//	Quote: {amount: int, currency: string}
//
// The compiler pipeline uses CheckProtocol to verify every TypeRef a
// protocol mentions is declared; the test harness uses ValidateValue to
// check concrete payload values before they are sent.
package schema

import (
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/choreolang/choreo/internal/ir"
)

// Schema error codes (E130-E139, continuing the semantic range)
const (
	ErrUndeclaredType = "E130" // protocol TypeRef not declared by the schema
	ErrValueMismatch  = "E131" // payload value does not satisfy the declared type
)

// Error reports a schema violation.
type Error struct {
	Code    string `json:"code"`
	TypeRef string `json:"type_ref"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] payload type %s: %s", e.Code, e.TypeRef, e.Message)
}

// Schema is a set of named payload type declarations.
type Schema struct {
	ctx   *cue.Context
	types map[string]cue.Value
}

// Load compiles CUE schema source text.
func Load(source string) (*Schema, error) {
	ctx := cuecontext.New()
	root := ctx.CompileString(source)
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	types := map[string]cue.Value{}
	iter, err := root.Fields()
	if err != nil {
		return nil, fmt.Errorf("iterate schema fields: %w", err)
	}
	for iter.Next() {
		types[iter.Selector().String()] = iter.Value()
	}
	return &Schema{ctx: ctx, types: types}, nil
}

// LoadFile reads and compiles a CUE schema file.
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return Load(string(data))
}

// Has reports whether the schema declares the payload type.
func (s *Schema) Has(name string) bool {
	_, ok := s.types[name]
	return ok
}

// TypeNames returns the declared type names, sorted.
func (s *Schema) TypeNames() []string {
	names := make([]string, 0, len(s.types))
	for name := range s.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateValue checks a concrete payload value against the declared
// type by unifying the two and validating the result.
func (s *Schema) ValidateValue(typeRef string, v any) error {
	want, ok := s.types[typeRef]
	if !ok {
		return &Error{
			Code:    ErrUndeclaredType,
			TypeRef: typeRef,
			Message: "not declared by the schema",
		}
	}
	got := s.ctx.Encode(v)
	if err := got.Err(); err != nil {
		return &Error{
			Code:    ErrValueMismatch,
			TypeRef: typeRef,
			Message: fmt.Sprintf("value cannot be encoded: %v", err),
		}
	}
	unified := want.Unify(got)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return &Error{
			Code:    ErrValueMismatch,
			TypeRef: typeRef,
			Message: err.Error(),
		}
	}
	return nil
}

// CheckProtocol verifies every payload TypeRef the protocol mentions is
// declared by the schema. The first undeclared reference is returned.
func (s *Schema) CheckProtocol(p *ir.GlobalProtocol) error {
	return s.checkNode(p.Body)
}

func (s *Schema) checkNode(g ir.Global) error {
	switch n := g.(type) {
	case *ir.GMessage:
		if !s.Has(n.Payload) {
			return &Error{
				Code:    ErrUndeclaredType,
				TypeRef: n.Payload,
				Message: "not declared by the schema",
			}
		}
		return s.checkNode(n.Cont)
	case *ir.GChoice:
		for _, b := range n.Branches {
			if err := s.checkNode(b.Body); err != nil {
				return err
			}
		}
		return nil
	case *ir.GRec:
		return s.checkNode(n.Body)
	default:
		return nil
	}
}
