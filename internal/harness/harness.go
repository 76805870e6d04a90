package harness

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sort"
	"sync"

	"github.com/choreolang/choreo/internal/compiler"
	"github.com/choreolang/choreo/internal/ir"
	"github.com/choreolang/choreo/internal/project"
	"github.com/choreolang/choreo/internal/schema"
	"github.com/choreolang/choreo/internal/session"
	"github.com/choreolang/choreo/internal/transport"
)

// Result is the outcome of one scenario run.
type Result struct {
	ScenarioName string
	Passed       bool
	Failures     []string // one message per failed role assertion
	GlobalHash   string
	Events       map[ir.Role][]session.Event // per-role recorded transitions
}

// Run executes a scenario: compile, project, cross-check duality for
// two-party protocols, then drive every role's script concurrently
// over in-memory pipes. Scenario infrastructure problems (bad
// protocol, missing scripts) return an error; assertion failures are
// reported in the Result.
func Run(sc *Scenario, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	proto, err := compiler.Compile(sc.Protocol)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	var sch *schema.Schema
	if sc.Schema != "" {
		sch, err = schema.Load(sc.Schema)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
		if err := sch.CheckProtocol(proto); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
	}

	locals, err := project.ProjectAll(proto)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	// Independent projection oracle for two-party protocols.
	if err := checkDuality(proto, locals); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	for _, r := range proto.Roles {
		if _, ok := sc.Roles[string(r)]; !ok {
			return nil, fmt.Errorf("scenario %s: no script for role %s", sc.Name, r)
		}
	}
	for name := range sc.Roles {
		if !proto.HasRole(ir.Role(name)) {
			return nil, fmt.Errorf("scenario %s: script for undeclared role %s", sc.Name, name)
		}
	}

	globalHash, err := ir.GlobalHash(proto)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	// One pipe per unordered role pair.
	links := map[ir.Role]session.Links{}
	for _, r := range proto.Roles {
		links[r] = session.Links{}
	}
	for i, a := range proto.Roles {
		for _, b := range proto.Roles[i+1:] {
			ea, eb := transport.Pipe()
			links[a][b] = ea
			links[b][a] = eb
		}
	}

	recorders := map[ir.Role]*memRecorder{}
	sessions := map[ir.Role]*session.Session{}
	for _, r := range proto.Roles {
		rec := &memRecorder{}
		recorders[r] = rec
		id := sc.SessionIDs[string(r)]
		if id == "" {
			id = "sess-" + string(r)
		}
		sessions[r] = session.Begin(r, locals[r], links[r],
			session.WithRecorder(rec),
			session.WithIDGenerator(session.NewFixedIDGenerator(id)),
		)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures []string
	)
	for _, r := range proto.Roles {
		role := r
		wg.Add(1)
		go func() {
			defer wg.Done()
			d := &roleDriver{
				role:   role,
				steps:  sc.Roles[string(role)],
				sess:   sessions[role],
				schema: sch,
				logger: logger.With("scenario", sc.Name, "role", string(role)),
			}
			if err := d.run(); err != nil {
				mu.Lock()
				failures = append(failures, fmt.Sprintf("role %s: %v", role, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	sort.Strings(failures)
	res := &Result{
		ScenarioName: sc.Name,
		Passed:       len(failures) == 0,
		Failures:     failures,
		GlobalHash:   globalHash,
		Events:       map[ir.Role][]session.Event{},
	}
	for role, rec := range recorders {
		res.Events[role] = rec.events()
	}
	return res, nil
}

// checkDuality cross-checks two-party projections against each other:
// the dual of one role's view must equal the other role's view. A Dual
// error fails the check the same way a non-dual pair does. Protocols
// with more than two roles are out of the oracle's scope.
func checkDuality(proto *ir.GlobalProtocol, locals map[ir.Role]ir.Local) error {
	if len(proto.Roles) != 2 {
		return nil
	}
	a, b := proto.Roles[0], proto.Roles[1]
	dualOfA, err := project.Dual(locals[a], a, b)
	if err != nil {
		return fmt.Errorf("duality oracle: %w", err)
	}
	if !ir.EqualLocal(dualOfA, locals[b]) {
		return fmt.Errorf("projections of %s and %s are not duals", a, b)
	}
	return nil
}

// roleDriver executes one role's script, threading the linear session
// value through each step.
type roleDriver struct {
	role   ir.Role
	steps  []Step
	sess   *session.Session
	schema *schema.Schema
	logger *slog.Logger
}

func (d *roleDriver) run() (err error) {
	cur := d.sess
	// A failed or abandoned script must still release its transports,
	// or every peer blocked on this role deadlocks the run.
	defer func() {
		if err != nil && cur != nil {
			_ = cur.Abort()
		}
	}()
	for i, step := range d.steps {
		if cur == nil {
			return fmt.Errorf("step %d (%s): script continues after close/abort", i, step.Op)
		}
		next, err := d.apply(cur, step)
		if step.ExpectError != "" {
			if err == nil {
				cur = next
				return fmt.Errorf("step %d (%s): expected error %s, got success", i, step.Op, step.ExpectError)
			}
			if !hasRuntimeCode(err, step.ExpectError) {
				return fmt.Errorf("step %d (%s): expected error %s, got %v", i, step.Op, step.ExpectError, err)
			}
			d.logger.Debug("step failed as expected", "step", i, "op", step.Op, "code", step.ExpectError)
			continue // session stays consumed; only abort may follow
		}
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
		cur = next
	}
	if cur != nil {
		return fmt.Errorf("script ended without close or abort; the session was abandoned")
	}
	return nil
}

// apply runs one step and returns the successor session (nil for
// close/abort).
func (d *roleDriver) apply(cur *session.Session, step Step) (*session.Session, error) {
	switch step.Op {
	case "send":
		if d.schema != nil {
			if payloadType, ok := cur.PayloadType(); ok {
				if err := d.schema.ValidateValue(payloadType, step.Value); err != nil {
					return nil, err
				}
			}
		}
		return cur.Send(step.Value)

	case "recv":
		v, next, err := cur.Receive()
		if err != nil {
			return nil, err
		}
		if step.Expect != nil && !jsonEqual(step.Expect, v) {
			return nil, fmt.Errorf("received %v, expected %v", v, step.Expect)
		}
		return next, nil

	case "select":
		return cur.Select(step.Branch)

	case "offer":
		i, next, err := cur.Offer()
		if err != nil {
			return nil, err
		}
		if step.ExpectBranch != nil && i != *step.ExpectBranch {
			return nil, fmt.Errorf("offer resolved to branch %d, expected %d", i, *step.ExpectBranch)
		}
		return next, nil

	case "enter":
		return cur.Enter()

	case "recurse":
		return cur.Recurse()

	case "close":
		return nil, cur.Close()

	case "abort":
		return nil, cur.Abort()
	}
	return nil, fmt.Errorf("unknown op %q", step.Op)
}

func hasRuntimeCode(err error, code string) bool {
	switch session.RuntimeErrorCode(code) {
	case session.ErrCodeProtocolMismatch:
		return session.IsProtocolMismatch(err)
	case session.ErrCodeSessionConsumed:
		return session.IsSessionConsumed(err)
	case session.ErrCodeChannelClosed:
		return session.IsChannelClosed(err)
	default:
		return false
	}
}

// jsonEqual compares two values after JSON normalization, so YAML
// integers match JSON-decoded float64s and map types line up.
func jsonEqual(a, b any) bool {
	na, err := normalizeJSON(a)
	if err != nil {
		return false
	}
	nb, err := normalizeJSON(b)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(na, nb)
}

func normalizeJSON(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// memRecorder collects session events in memory. Each session writes
// from its own goroutine, so access is guarded.
type memRecorder struct {
	mu  sync.Mutex
	evs []session.Event
}

func (r *memRecorder) Record(ev session.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evs = append(r.evs, ev)
	return nil
}

func (r *memRecorder) events() []session.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]session.Event, len(r.evs))
	copy(out, r.evs)
	return out
}
