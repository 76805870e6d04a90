package harness

import (
	"encoding/json"
	"fmt"
	"sort"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/choreolang/choreo/internal/ir"
)

// TraceSnapshot captures every role's recorded transitions for a
// scenario run, ordered by role name then seq so output is
// deterministic across runs and schedulers.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	GlobalHash   string       `json:"global_hash"`
	Trace        []TraceEvent `json:"trace"`
}

// TraceEvent is one recorded transition, with the payload rendered as
// its wire text (the JSON codec's output) for readable golden files.
type TraceEvent struct {
	Role    string `json:"role"`
	Seq     int64  `json:"seq"`
	Kind    string `json:"kind"`
	Peer    string `json:"peer,omitempty"`
	Type    string `json:"type,omitempty"`
	Payload string `json:"payload,omitempty"`
	Branch  *int   `json:"branch,omitempty"`
	Label   string `json:"label,omitempty"`
}

// Snapshot converts a Result into its deterministic snapshot form.
func Snapshot(res *Result) *TraceSnapshot {
	snap := &TraceSnapshot{
		ScenarioName: res.ScenarioName,
		GlobalHash:   res.GlobalHash,
	}
	roles := make([]string, 0, len(res.Events))
	for role := range res.Events {
		roles = append(roles, string(role))
	}
	sort.Strings(roles)
	for _, role := range roles {
		for _, ev := range res.Events[ir.Role(role)] {
			te := TraceEvent{
				Role:    role,
				Seq:     ev.Seq,
				Kind:    string(ev.Kind),
				Peer:    string(ev.Peer),
				Type:    ev.PayloadType,
				Payload: string(ev.Payload),
				Label:   ev.Label,
			}
			if ev.Branch >= 0 {
				b := ev.Branch
				te.Branch = &b
			}
			snap.Trace = append(snap.Trace, te)
		}
	}
	return snap
}

// RunWithGolden executes a scenario, fails the test on any role
// assertion failure, and compares the trace snapshot against the
// golden file in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, sc *Scenario) {
	t.Helper()

	res, err := Run(sc, nil)
	if err != nil {
		t.Fatalf("scenario %s: %v", sc.Name, err)
	}
	if !res.Passed {
		t.Fatalf("scenario %s failed:\n%s", sc.Name, joinLines(res.Failures))
	}

	data, err := json.MarshalIndent(Snapshot(res), "", "  ")
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, sc.Name, data)
}

func joinLines(lines []string) string {
	out := ""
	for _, l := range lines {
		out += fmt.Sprintf("  - %s\n", l)
	}
	return out
}
