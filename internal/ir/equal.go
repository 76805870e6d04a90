package ir

// EqualGlobal reports structural equality of two global trees.
// Branch order, labels, roles, and payload types all participate.
func EqualGlobal(a, b Global) bool {
	switch x := a.(type) {
	case *GMessage:
		y, ok := b.(*GMessage)
		return ok && x.From == y.From && x.To == y.To && x.Payload == y.Payload &&
			EqualGlobal(x.Cont, y.Cont)
	case *GChoice:
		y, ok := b.(*GChoice)
		if !ok || x.Decider != y.Decider || len(x.Branches) != len(y.Branches) {
			return false
		}
		for i := range x.Branches {
			if x.Branches[i].Label != y.Branches[i].Label ||
				!EqualGlobal(x.Branches[i].Body, y.Branches[i].Body) {
				return false
			}
		}
		return true
	case *GRec:
		y, ok := b.(*GRec)
		return ok && x.Label == y.Label && EqualGlobal(x.Body, y.Body)
	case *GVar:
		y, ok := b.(*GVar)
		return ok && x.Label == y.Label
	case *GEnd:
		_, ok := b.(*GEnd)
		return ok
	}
	return false
}

// EqualLocal reports structural equality of two local trees. This is the
// equality used by the projection merge rule and the duality involution
// property, so it must be exact: no normalization, no label dropping.
func EqualLocal(a, b Local) bool {
	switch x := a.(type) {
	case *LSend:
		y, ok := b.(*LSend)
		return ok && x.To == y.To && x.Payload == y.Payload && EqualLocal(x.Cont, y.Cont)
	case *LRecv:
		y, ok := b.(*LRecv)
		return ok && x.From == y.From && x.Payload == y.Payload && EqualLocal(x.Cont, y.Cont)
	case *LSelect:
		y, ok := b.(*LSelect)
		if !ok || len(x.To) != len(y.To) || len(x.Branches) != len(y.Branches) {
			return false
		}
		for i := range x.To {
			if x.To[i] != y.To[i] {
				return false
			}
		}
		return equalBranches(x.Branches, y.Branches)
	case *LOffer:
		y, ok := b.(*LOffer)
		if !ok || x.From != y.From || len(x.Branches) != len(y.Branches) {
			return false
		}
		return equalBranches(x.Branches, y.Branches)
	case *LRec:
		y, ok := b.(*LRec)
		return ok && x.Label == y.Label && EqualLocal(x.Body, y.Body)
	case *LVar:
		y, ok := b.(*LVar)
		return ok && x.Label == y.Label
	case *LEnd:
		_, ok := b.(*LEnd)
		return ok
	}
	return false
}

func equalBranches(a, b []LBranch) bool {
	for i := range a {
		if a[i].Label != b[i].Label || !EqualLocal(a[i].Body, b[i].Body) {
			return false
		}
	}
	return true
}
