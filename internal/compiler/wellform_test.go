package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/choreolang/choreo/internal/ir"
)

func TestCheckWellFormedValid(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"message chain", `
			protocol P {
				participant A; participant B;
				A -> B : X;
				B -> A : Y;
			}`},
		{"guarded recursion", `
			protocol P {
				participant A; participant B;
				rec t {
					A -> B : Tick;
					continue t;
				}
			}`},
		{"choice with decider leading both branches", `
			protocol P {
				participant A; participant B;
				choice at A {
					option go { A -> B : Go; }
					or option stop { A -> B : Stop; }
				}
			}`},
		{"recursion guarded inside one branch", `
			protocol P {
				participant A; participant B;
				rec t {
					choice at A {
						option more { A -> B : More; continue t; }
						or option done { A -> B : Done; }
					}
				}
			}`},
		{"nested rec with distinct labels", `
			protocol P {
				participant A; participant B;
				rec outer {
					A -> B : X;
					rec inner {
						B -> A : Y;
						continue outer;
					}
				}
			}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.src)
			assert.NoError(t, err)
		})
	}
}

func TestCheckWellFormedUnguarded(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"immediate loop", `
			protocol P {
				participant A; participant B;
				rec t { continue t; }
			}`},
		{"unguarded through nested rec", `
			protocol P {
				participant A; participant B;
				rec outer {
					rec inner {
						continue outer;
					}
				}
			}`},
		{"one branch loops without a message", `
			protocol P {
				participant A; participant B;
				rec t {
					choice at A {
						option go { A -> B : Go; continue t; }
						or option spin { continue t; }
					}
				}
			}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.src)
			require.Error(t, err)
			code := semanticCode(t, err)
			// The branch case also violates the leading-sender rule;
			// guardedness is checked first.
			assert.Equal(t, ErrUnguardedRec, code)
		})
	}
}

func TestCheckWellFormedLeadingSender(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"branch led by the wrong role", `
			protocol P {
				participant A; participant B;
				choice at A {
					option mine { A -> B : X; }
					or option theirs { B -> A : Y; }
				}
			}`},
		{"branch with no message at all", `
			protocol P {
				participant A; participant B;
				choice at A {
					option go { A -> B : X; }
					or option bail { end; }
				}
			}`},
		{"branch starting with a nested choice", `
			protocol P {
				participant A; participant B;
				choice at A {
					option direct { A -> B : X; }
					or option nested {
						choice at A {
							option l { A -> B : Y; }
							or option r { A -> B : Z; }
						}
					}
				}
			}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.src)
			require.Error(t, err)
			assert.Equal(t, ErrLeadingSender, semanticCode(t, err))

			var se *SemanticError
			require.ErrorAs(t, err, &se)
			assert.GreaterOrEqual(t, se.Branch, 0, "error names the offending branch")
		})
	}
}

func TestCheckWellFormedLeadingSenderThroughRec(t *testing.T) {
	// A rec wrapper is transparent when attributing the branch's first
	// message.
	_, err := Compile(`
		protocol P {
			participant A; participant B;
			choice at A {
				option loop {
					rec t {
						A -> B : Tick;
						continue t;
					}
				}
				or option done { A -> B : Done; }
			}
		}`)
	assert.NoError(t, err)
}

func TestCheckWellFormedProgrammaticTrees(t *testing.T) {
	// Trees built in code skip the parser's incremental checks;
	// CheckWellFormed must catch the same violations without positions.
	tests := []struct {
		name  string
		proto *ir.GlobalProtocol
		code  string
	}{
		{
			"duplicate role",
			&ir.GlobalProtocol{Name: "P", Roles: []ir.Role{"A", "A"}, Body: &ir.GEnd{}},
			ErrDuplicateRole,
		},
		{
			"undeclared role",
			&ir.GlobalProtocol{Name: "P", Roles: []ir.Role{"A"},
				Body: &ir.GMessage{From: "A", To: "B", Payload: "X", Cont: &ir.GEnd{}}},
			ErrUndeclaredRole,
		},
		{
			"self message",
			&ir.GlobalProtocol{Name: "P", Roles: []ir.Role{"A", "B"},
				Body: &ir.GMessage{From: "A", To: "A", Payload: "X", Cont: &ir.GEnd{}}},
			ErrSelfMessage,
		},
		{
			"unbound label",
			&ir.GlobalProtocol{Name: "P", Roles: []ir.Role{"A", "B"},
				Body: &ir.GVar{Label: "t"}},
			ErrUnboundLabel,
		},
		{
			"shadowed label",
			&ir.GlobalProtocol{Name: "P", Roles: []ir.Role{"A", "B"},
				Body: &ir.GRec{Label: "t",
					Body: &ir.GMessage{From: "A", To: "B", Payload: "X",
						Cont: &ir.GRec{Label: "t", Body: &ir.GEnd{}}}}},
			ErrShadowedLabel,
		},
		{
			"single branch",
			&ir.GlobalProtocol{Name: "P", Roles: []ir.Role{"A", "B"},
				Body: &ir.GChoice{Decider: "A", Branches: []ir.GBranch{
					{Body: &ir.GMessage{From: "A", To: "B", Payload: "X", Cont: &ir.GEnd{}}},
				}}},
			ErrChoiceArity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckWellFormed(tt.proto)
			require.Error(t, err)
			assert.Equal(t, tt.code, semanticCode(t, err))
		})
	}
}

func TestCompileRunsAllChecks(t *testing.T) {
	_, err := Compile(`
		protocol P {
			participant A; participant B;
			choice at A {
				option a { A -> B : X; }
				or option b { B -> A : Y; }
			}
		}`)
	require.Error(t, err)
	assert.True(t, IsSemanticError(err))
	assert.False(t, IsSyntaxError(err))
}
