package compiler

import (
	"fmt"

	"github.com/choreolang/choreo/internal/ir"
)

// CheckWellFormed validates a global protocol tree against the full
// well-formedness rules. The tree is left unchanged; the first
// violation found is returned as a *SemanticError identifying the
// offending node by role, label, or branch index.
//
// Checks run cheapest-first: role resolution, then recursion scoping
// and guardedness, then the choice leading-sender rule. Trees produced
// by Parse have already passed role resolution and scoping, but the
// checker makes no such assumption so programmatically built trees get
// the same guarantees.
func CheckWellFormed(p *ir.GlobalProtocol) error {
	declared := map[ir.Role]bool{}
	for _, r := range p.Roles {
		if declared[r] {
			return &SemanticError{
				Code:    ErrDuplicateRole,
				Message: fmt.Sprintf("participant %q is already declared", r),
				Role:    string(r),
				Branch:  -1,
			}
		}
		declared[r] = true
	}

	if err := checkRoles(p.Body, declared); err != nil {
		return err
	}
	if err := checkRecursion(p.Body, map[string]bool{}, map[string]bool{}); err != nil {
		return err
	}
	return checkChoices(p.Body)
}

// checkRoles verifies every from/to/decider reference resolves to a
// declared participant and that no role messages itself.
func checkRoles(g ir.Global, declared map[ir.Role]bool) error {
	switch n := g.(type) {
	case *ir.GMessage:
		for _, r := range [2]ir.Role{n.From, n.To} {
			if !declared[r] {
				return undeclaredRole(r)
			}
		}
		if n.From == n.To {
			return &SemanticError{
				Code:    ErrSelfMessage,
				Message: fmt.Sprintf("role %s cannot send a message to itself", n.From),
				Role:    string(n.From),
				Branch:  -1,
			}
		}
		return checkRoles(n.Cont, declared)
	case *ir.GChoice:
		if !declared[n.Decider] {
			return undeclaredRole(n.Decider)
		}
		for _, b := range n.Branches {
			if err := checkRoles(b.Body, declared); err != nil {
				return err
			}
		}
		return nil
	case *ir.GRec:
		return checkRoles(n.Body, declared)
	case *ir.GVar, *ir.GEnd:
		return nil
	}
	return fmt.Errorf("unsupported global node: %T", g)
}

// checkRecursion verifies scoping and guardedness in one walk.
// inScope holds every rec label on the path from the root; unguarded
// holds the subset not yet separated from this node by a message.
func checkRecursion(g ir.Global, inScope, unguarded map[string]bool) error {
	switch n := g.(type) {
	case *ir.GMessage:
		// A message guards every open rec label on this path.
		return checkRecursion(n.Cont, inScope, map[string]bool{})
	case *ir.GChoice:
		for _, b := range n.Branches {
			if err := checkRecursion(b.Body, inScope, copySet(unguarded)); err != nil {
				return err
			}
		}
		return nil
	case *ir.GRec:
		if inScope[n.Label] {
			return &SemanticError{
				Code:    ErrShadowedLabel,
				Message: fmt.Sprintf("rec label %s shadows an enclosing rec with the same label", n.Label),
				Label:   n.Label,
				Branch:  -1,
			}
		}
		inScope[n.Label] = true
		unguarded[n.Label] = true
		err := checkRecursion(n.Body, inScope, unguarded)
		delete(inScope, n.Label)
		delete(unguarded, n.Label)
		return err
	case *ir.GVar:
		if !inScope[n.Label] {
			return &SemanticError{
				Code:    ErrUnboundLabel,
				Message: fmt.Sprintf("continue %s has no enclosing rec %s", n.Label, n.Label),
				Label:   n.Label,
				Branch:  -1,
			}
		}
		if unguarded[n.Label] {
			return &SemanticError{
				Code:    ErrUnguardedRec,
				Message: fmt.Sprintf("rec %s loops back with no intervening message", n.Label),
				Label:   n.Label,
				Branch:  -1,
			}
		}
		return nil
	case *ir.GEnd:
		return nil
	}
	return fmt.Errorf("unsupported global node: %T", g)
}

// checkChoices verifies branch arity and the leading-sender rule: the
// first message reachable in each branch, before any nested choice,
// must be sent by the declared decider.
func checkChoices(g ir.Global) error {
	switch n := g.(type) {
	case *ir.GMessage:
		return checkChoices(n.Cont)
	case *ir.GChoice:
		if len(n.Branches) < 2 {
			return &SemanticError{
				Code:    ErrChoiceArity,
				Message: "choice requires at least two branches",
				Role:    string(n.Decider),
				Branch:  -1,
			}
		}
		for i, b := range n.Branches {
			sender, ok := leadingSender(b.Body)
			if !ok || sender != n.Decider {
				return &SemanticError{
					Code: ErrLeadingSender,
					Message: fmt.Sprintf(
						"branch %d of choice at %s does not start with a message sent by %s",
						i, n.Decider, n.Decider),
					Role:   string(n.Decider),
					Branch: i,
				}
			}
			if err := checkChoices(b.Body); err != nil {
				return err
			}
		}
		return nil
	case *ir.GRec:
		return checkChoices(n.Body)
	case *ir.GVar, *ir.GEnd:
		return nil
	}
	return fmt.Errorf("unsupported global node: %T", g)
}

// leadingSender finds the sender of the first message in a branch,
// looking through rec scopes but stopping at nested choices, continue,
// and end (which leave the branch without an attributable sender).
func leadingSender(g ir.Global) (ir.Role, bool) {
	for {
		switch n := g.(type) {
		case *ir.GMessage:
			return n.From, true
		case *ir.GRec:
			g = n.Body
		default:
			return "", false
		}
	}
}

func undeclaredRole(r ir.Role) *SemanticError {
	return &SemanticError{
		Code:    ErrUndeclaredRole,
		Message: fmt.Sprintf("participant %q is not declared", r),
		Role:    string(r),
		Branch:  -1,
	}
}

func copySet(src map[string]bool) map[string]bool {
	dst := make(map[string]bool, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
