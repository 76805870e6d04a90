package project

import (
	"fmt"

	"github.com/choreolang/choreo/internal/ir"
)

// Dual computes the complementary local protocol of a two-party
// exchange. p is self's local protocol, whose only peer is peer; the
// result is peer's protocol, which references self. Send becomes
// Receive, Select becomes Offer (branch-wise), and vice versa;
// recursion labels pass through unchanged.
//
// Dual is pure and total over well-formed two-party local protocols.
// It fails with ErrNotTwoParty if p mentions any role other than peer.
// Involution holds structurally: Dual(Dual(p, a, b), b, a) == p.
func Dual(p ir.Local, self, peer ir.Role) (ir.Local, error) {
	switch n := p.(type) {
	case *ir.LSend:
		if n.To != peer {
			return nil, notTwoParty(self, n.To)
		}
		cont, err := Dual(n.Cont, self, peer)
		if err != nil {
			return nil, err
		}
		return &ir.LRecv{From: self, Payload: n.Payload, Cont: cont}, nil

	case *ir.LRecv:
		if n.From != peer {
			return nil, notTwoParty(self, n.From)
		}
		cont, err := Dual(n.Cont, self, peer)
		if err != nil {
			return nil, err
		}
		return &ir.LSend{To: self, Payload: n.Payload, Cont: cont}, nil

	case *ir.LSelect:
		if len(n.To) != 1 || n.To[0] != peer {
			return nil, &ProjectionError{
				Code:    ErrNotTwoParty,
				Message: fmt.Sprintf("select addresses %d roles; duality is defined for exactly one", len(n.To)),
				Role:    self,
				Branch:  -1,
			}
		}
		branches, err := dualBranches(n.Branches, self, peer)
		if err != nil {
			return nil, err
		}
		return &ir.LOffer{From: self, Branches: branches}, nil

	case *ir.LOffer:
		if n.From != peer {
			return nil, notTwoParty(self, n.From)
		}
		branches, err := dualBranches(n.Branches, self, peer)
		if err != nil {
			return nil, err
		}
		return &ir.LSelect{To: []ir.Role{self}, Branches: branches}, nil

	case *ir.LRec:
		body, err := Dual(n.Body, self, peer)
		if err != nil {
			return nil, err
		}
		return &ir.LRec{Label: n.Label, Body: body}, nil

	case *ir.LVar:
		return &ir.LVar{Label: n.Label}, nil

	case *ir.LEnd:
		return &ir.LEnd{}, nil
	}
	return nil, fmt.Errorf("unsupported local node: %T", p)
}

func dualBranches(branches []ir.LBranch, self, peer ir.Role) ([]ir.LBranch, error) {
	out := make([]ir.LBranch, len(branches))
	for i, b := range branches {
		body, err := Dual(b.Body, self, peer)
		if err != nil {
			return nil, err
		}
		out[i] = ir.LBranch{Label: b.Label, Body: body}
	}
	return out, nil
}

func notTwoParty(self, other ir.Role) *ProjectionError {
	return &ProjectionError{
		Code:    ErrNotTwoParty,
		Message: fmt.Sprintf("local protocol references peer %s; duality is defined for two-party protocols only", other),
		Role:    self,
		Branch:  -1,
	}
}
