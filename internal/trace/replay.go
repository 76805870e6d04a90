package trace

import (
	"errors"
	"fmt"

	"github.com/choreolang/choreo/internal/ir"
	"github.com/choreolang/choreo/internal/session"
)

// ReplayResult summarizes a trace replayed against a local protocol.
type ReplayResult struct {
	Steps    int  `json:"steps"`
	Complete bool `json:"complete"` // trace reached close() at End
	Aborted  bool `json:"aborted"`  // trace ends with an explicit abort
}

// DivergenceError reports the first recorded event that does not match
// the local protocol's prescribed transition.
type DivergenceError struct {
	Seq      int64             `json:"seq"`
	Kind     session.EventKind `json:"kind"`
	Expected string            `json:"expected"`
	Reason   string            `json:"reason"`
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("trace diverges at seq %d: event %s, expected %s: %s",
		e.Seq, e.Kind, e.Expected, e.Reason)
}

// IsDivergence reports whether err is (or wraps) a DivergenceError.
func IsDivergence(err error) bool {
	var de *DivergenceError
	return errors.As(err, &de)
}

// Replay walks a recorded event sequence against a local protocol and
// reports the first divergence. A trace conforms when every event
// matches the transition the protocol prescribes at that position and
// nothing follows a close or abort. A conforming trace that stops
// short of close is reported as incomplete rather than divergent: the
// session was abandoned, which is a resource leak, not a protocol
// violation.
func Replay(local ir.Local, events []session.Event) (ReplayResult, error) {
	cursor := local
	bindings := map[string]ir.Local{}
	res := ReplayResult{}
	terminated := false

	for _, ev := range events {
		if terminated {
			return res, diverge(ev, "terminal", "event recorded after close/abort")
		}
		switch ev.Kind {
		case session.EventSend:
			node, ok := cursor.(*ir.LSend)
			if !ok {
				return res, diverge(ev, describe(cursor), "trace sends here")
			}
			if node.To != ev.Peer || node.Payload != ev.PayloadType {
				return res, diverge(ev, describe(cursor),
					fmt.Sprintf("trace sends %s to %s", ev.PayloadType, ev.Peer))
			}
			cursor = node.Cont

		case session.EventReceive:
			node, ok := cursor.(*ir.LRecv)
			if !ok {
				return res, diverge(ev, describe(cursor), "trace receives here")
			}
			if node.From != ev.Peer || node.Payload != ev.PayloadType {
				return res, diverge(ev, describe(cursor),
					fmt.Sprintf("trace receives %s from %s", ev.PayloadType, ev.Peer))
			}
			cursor = node.Cont

		case session.EventSelect:
			node, ok := cursor.(*ir.LSelect)
			if !ok {
				return res, diverge(ev, describe(cursor), "trace selects here")
			}
			if ev.Branch < 0 || ev.Branch >= len(node.Branches) {
				return res, diverge(ev, describe(cursor),
					fmt.Sprintf("branch %d out of range", ev.Branch))
			}
			cursor = node.Branches[ev.Branch].Body

		case session.EventOffer:
			node, ok := cursor.(*ir.LOffer)
			if !ok {
				return res, diverge(ev, describe(cursor), "trace offers here")
			}
			if node.From != ev.Peer {
				return res, diverge(ev, describe(cursor),
					fmt.Sprintf("trace offers to decider %s", ev.Peer))
			}
			if ev.Branch < 0 || ev.Branch >= len(node.Branches) {
				return res, diverge(ev, describe(cursor),
					fmt.Sprintf("branch %d out of range", ev.Branch))
			}
			cursor = node.Branches[ev.Branch].Body

		case session.EventEnter:
			node, ok := cursor.(*ir.LRec)
			if !ok || node.Label != ev.Label {
				return res, diverge(ev, describe(cursor),
					fmt.Sprintf("trace enters rec %s", ev.Label))
			}
			bindings[node.Label] = node.Body
			cursor = node.Body

		case session.EventRecurse:
			node, ok := cursor.(*ir.LVar)
			if !ok || node.Label != ev.Label {
				return res, diverge(ev, describe(cursor),
					fmt.Sprintf("trace recurses on %s", ev.Label))
			}
			body, ok := bindings[node.Label]
			if !ok {
				return res, diverge(ev, describe(cursor),
					fmt.Sprintf("no binding for rec label %s", node.Label))
			}
			cursor = body

		case session.EventClose:
			if _, ok := cursor.(*ir.LEnd); !ok {
				return res, diverge(ev, describe(cursor), "trace closes before End")
			}
			res.Complete = true
			terminated = true

		case session.EventAbort:
			res.Aborted = true
			terminated = true

		default:
			return res, diverge(ev, describe(cursor),
				fmt.Sprintf("unknown event kind %q", ev.Kind))
		}
		res.Steps++
	}
	return res, nil
}

func diverge(ev session.Event, expected, reason string) *DivergenceError {
	return &DivergenceError{Seq: ev.Seq, Kind: ev.Kind, Expected: expected, Reason: reason}
}

func describe(l ir.Local) string {
	switch n := l.(type) {
	case *ir.LSend:
		return fmt.Sprintf("send(%s, %s)", n.To, n.Payload)
	case *ir.LRecv:
		return fmt.Sprintf("receive(%s, %s)", n.From, n.Payload)
	case *ir.LSelect:
		return fmt.Sprintf("select(%d branches)", len(n.Branches))
	case *ir.LOffer:
		return fmt.Sprintf("offer(%s, %d branches)", n.From, len(n.Branches))
	case *ir.LRec:
		return fmt.Sprintf("rec(%s)", n.Label)
	case *ir.LVar:
		return fmt.Sprintf("var(%s)", n.Label)
	case *ir.LEnd:
		return "end"
	default:
		return fmt.Sprintf("%T", l)
	}
}
