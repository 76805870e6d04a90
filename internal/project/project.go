package project

import (
	"fmt"

	"github.com/choreolang/choreo/internal/ir"
)

// Project derives role's local protocol from a well-formed global
// protocol. Callers are expected to run compiler.CheckWellFormed first;
// Project's guarantees hold only for well-formed input.
func Project(p *ir.GlobalProtocol, role ir.Role) (ir.Local, error) {
	if !p.HasRole(role) {
		return nil, &ProjectionError{
			Code:    ErrUnknownRole,
			Message: "role is not declared by the protocol",
			Role:    role,
			Branch:  -1,
		}
	}
	pr := &projector{proto: p, role: role}
	return pr.node(p.Body)
}

// ProjectAll projects every declared role, in declaration order.
func ProjectAll(p *ir.GlobalProtocol) (map[ir.Role]ir.Local, error) {
	locals := make(map[ir.Role]ir.Local, len(p.Roles))
	for _, r := range p.Roles {
		l, err := Project(p, r)
		if err != nil {
			return nil, err
		}
		locals[r] = l
	}
	return locals, nil
}

type projector struct {
	proto *ir.GlobalProtocol
	role  ir.Role
}

func (p *projector) node(g ir.Global) (ir.Local, error) {
	switch n := g.(type) {
	case *ir.GMessage:
		cont, err := p.node(n.Cont)
		if err != nil {
			return nil, err
		}
		switch p.role {
		case n.From:
			return &ir.LSend{To: n.To, Payload: n.Payload, Cont: cont}, nil
		case n.To:
			return &ir.LRecv{From: n.From, Payload: n.Payload, Cont: cont}, nil
		default:
			// The interaction is elided from this role's view.
			return cont, nil
		}

	case *ir.GChoice:
		return p.choice(n)

	case *ir.GRec:
		body, err := p.node(n.Body)
		if err != nil {
			return nil, err
		}
		return &ir.LRec{Label: n.Label, Body: body}, nil

	case *ir.GVar:
		return &ir.LVar{Label: n.Label}, nil

	case *ir.GEnd:
		return &ir.LEnd{}, nil
	}
	return nil, fmt.Errorf("unsupported global node: %T", g)
}

func (p *projector) choice(n *ir.GChoice) (ir.Local, error) {
	branches := make([]ir.LBranch, len(n.Branches))
	for i, b := range n.Branches {
		body, err := p.node(b.Body)
		if err != nil {
			return nil, err
		}
		branches[i] = ir.LBranch{Label: b.Label, Body: body}
	}

	if p.role == n.Decider {
		return &ir.LSelect{To: offerRoles(p.proto, n), Branches: branches}, nil
	}

	if occursInChoice(n, p.role) {
		return &ir.LOffer{From: n.Decider, Branches: branches}, nil
	}

	// The role participates in no branch: it cannot learn which branch
	// was taken, so every branch must look identical from its view.
	// This merge rule is the core correctness guarantee of projection.
	for i := 1; i < len(branches); i++ {
		if !ir.EqualLocal(branches[0].Body, branches[i].Body) {
			return nil, &ProjectionError{
				Code: ErrInconsistentBranches,
				Message: fmt.Sprintf(
					"role does not participate in the choice at %s but branches project differently",
					n.Decider),
				Role:   p.role,
				Branch: i,
			}
		}
	}
	return branches[0].Body, nil
}

// offerRoles lists, in declaration order, every role that participates
// in at least one branch of the choice, excluding the decider. These
// are exactly the roles whose projection is an offer and that must be
// sent the branch selector tag.
func offerRoles(p *ir.GlobalProtocol, n *ir.GChoice) []ir.Role {
	var out []ir.Role
	for _, r := range p.Roles {
		if r == n.Decider {
			continue
		}
		if occursInChoice(n, r) {
			out = append(out, r)
		}
	}
	return out
}

func occursInChoice(n *ir.GChoice, role ir.Role) bool {
	for _, b := range n.Branches {
		if occurs(b.Body, role) {
			return true
		}
	}
	return false
}

// occurs reports whether role sends or receives any message in g.
func occurs(g ir.Global, role ir.Role) bool {
	switch n := g.(type) {
	case *ir.GMessage:
		return n.From == role || n.To == role || occurs(n.Cont, role)
	case *ir.GChoice:
		return occursInChoice(n, role)
	case *ir.GRec:
		return occurs(n.Body, role)
	default:
		return false
	}
}
