package ir

// Role is an immutable name uniquely identifying a participant within one
// protocol definition. Declared once per protocol; referenced by every
// interaction naming that participant.
type Role string

// GlobalProtocol is a compiled protocol definition: the declared role set
// plus the root of the global interaction tree.
type GlobalProtocol struct {
	Name  string
	Roles []Role // declaration order
	Body  Global
}

// HasRole reports whether r is in the declared role set.
func (p *GlobalProtocol) HasRole(r Role) bool {
	for _, d := range p.Roles {
		if d == r {
			return true
		}
	}
	return false
}

// Global is a node of a global interaction tree.
// Implementations: GMessage, GChoice, GRec, GVar, GEnd.
type Global interface {
	isGlobal()
}

// GMessage is a point-to-point message from one role to another,
// followed by a continuation. From and To are always distinct.
type GMessage struct {
	From    Role
	To      Role
	Payload string // payload type name
	Cont    Global
}

// GChoice is a branch point decided by one role. Every branch's first
// message is sent by the decider (enforced by well-formedness).
// Branches carry their full continuations; there is no separate
// continuation node after a choice.
type GChoice struct {
	Decider  Role
	Branches []GBranch
}

// GBranch is one alternative of a GChoice. Label is the optional option
// name from the source text; it may be empty.
type GBranch struct {
	Label string
	Body  Global
}

// GRec introduces a recursion scope named Label.
type GRec struct {
	Label string
	Body  Global
}

// GVar is a back-reference to the enclosing GRec with the same label.
type GVar struct {
	Label string
}

// GEnd terminates an interaction sequence.
type GEnd struct{}

func (*GMessage) isGlobal() {}
func (*GChoice) isGlobal()  {}
func (*GRec) isGlobal()     {}
func (*GVar) isGlobal()     {}
func (*GEnd) isGlobal()     {}

// Local is a node of a local protocol tree: one role's view of a global
// protocol. Implementations: LSend, LRecv, LSelect, LOffer, LRec, LVar,
// LEnd.
type Local interface {
	isLocal()
}

// LSend transmits a payload of the named type to To, then continues.
type LSend struct {
	To      Role
	Payload string
	Cont    Local
}

// LRecv receives a payload of the named type from From, then continues.
type LRecv struct {
	From    Role
	Payload string
	Cont    Local
}

// LSelect is the decider's side of a choice. To lists, in declaration
// order, every role that offers on this choice; the branch selector tag
// is transmitted to each of them.
type LSelect struct {
	To       []Role
	Branches []LBranch
}

// LOffer is a non-deciding participant's side of a choice. From names
// the decider, the source of the branch selector tag.
type LOffer struct {
	From     Role
	Branches []LBranch
}

// LBranch is one alternative of an LSelect or LOffer.
type LBranch struct {
	Label string
	Body  Local
}

// LRec introduces a recursion scope named Label.
type LRec struct {
	Label string
	Body  Local
}

// LVar is a back-reference to the enclosing LRec with the same label.
type LVar struct {
	Label string
}

// LEnd terminates the local protocol.
type LEnd struct{}

func (*LSend) isLocal()   {}
func (*LRecv) isLocal()   {}
func (*LSelect) isLocal() {}
func (*LOffer) isLocal()  {}
func (*LRec) isLocal()    {}
func (*LVar) isLocal()    {}
func (*LEnd) isLocal()    {}
