package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/choreolang/choreo/internal/compiler"
	"github.com/choreolang/choreo/internal/ir"
	"github.com/choreolang/choreo/internal/project"
	"github.com/choreolang/choreo/internal/session"
	"github.com/choreolang/choreo/internal/trace"
)

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func decodeResponse(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	return resp
}

func TestCompileCommandText(t *testing.T) {
	out, _, err := runCLI(t, "compile", "testdata/pingpong.chor")
	require.NoError(t, err)
	assert.Contains(t, out, "compiled PingPong (2 roles)")
	assert.Contains(t, out, "hash: ")
}

func TestCompileCommandJSON(t *testing.T) {
	out, _, err := runCLI(t, "compile", "testdata/pingpong.chor", "--format", "json")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)

	data := resp.Data.(map[string]any)
	assert.Equal(t, "PingPong", data["name"])
	assert.Equal(t, []any{"Client", "Server"}, data["roles"])
	assert.Len(t, data["global_hash"], 64)
	assert.NotNil(t, data["ir"])
}

func TestCompileCommandSyntaxError(t *testing.T) {
	out, _, err := runCLI(t, "compile", "testdata/bad_syntax.chor", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "E001", resp.Error.Code)
}

func TestCompileCommandWellFormednessError(t *testing.T) {
	out, _, err := runCLI(t, "compile", "testdata/unguarded.chor", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	assert.Equal(t, compiler.ErrUnguardedRec, resp.Error.Code)
}

func TestCompileCommandMissingFile(t *testing.T) {
	_, _, err := runCLI(t, "compile", "testdata/nope.chor")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCompileCommandOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pingpong.json")
	_, _, err := runCLI(t, "compile", "testdata/pingpong.chor", "--output", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	src, err := os.ReadFile("testdata/pingpong.chor")
	require.NoError(t, err)
	proto, err := compiler.Compile(string(src))
	require.NoError(t, err)
	canonical, err := ir.MarshalGlobal(proto)
	require.NoError(t, err)
	assert.Equal(t, canonical, data, "output file holds the canonical IR bytes")
}

func TestCompileCommandSchema(t *testing.T) {
	_, _, err := runCLI(t, "compile", "testdata/pingpong.chor", "--schema", "testdata/types.cue")
	require.NoError(t, err)

	out, _, err := runCLI(t, "compile", "testdata/pingpong.chor",
		"--schema", "testdata/partial_types.cue", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	assert.Equal(t, "E130", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "Pong")
}

func TestValidateCommand(t *testing.T) {
	out, _, err := runCLI(t, "validate", "testdata/pingpong.chor", "--format", "json")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	data := resp.Data.(map[string]any)
	assert.Equal(t, true, data["well_formed"])
	assert.Equal(t, true, data["projectable"])
	assert.Equal(t, true, data["dual_checked"], "two-party protocols run the duality oracle")
}

func TestValidateCommandRejectsUnguarded(t *testing.T) {
	_, _, err := runCLI(t, "validate", "testdata/unguarded.chor")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestProjectCommandSingleRole(t *testing.T) {
	out, _, err := runCLI(t, "project", "testdata/pingpong.chor", "--role", "Client", "--format", "json")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "Client", data["role"])
	assert.Len(t, data["local_hash"], 64)

	tree := data["ir"].(map[string]any)
	assert.Equal(t, "send", tree["kind"], "the client's first action is the Ping send")
}

func TestProjectCommandAllRoles(t *testing.T) {
	out, _, err := runCLI(t, "project", "testdata/pingpong.chor", "--all", "--format", "json")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	data := resp.Data.([]any)
	require.Len(t, data, 2)
	assert.Equal(t, "Client", data[0].(map[string]any)["role"])
	assert.Equal(t, "Server", data[1].(map[string]any)["role"])
}

func TestProjectCommandUnknownRole(t *testing.T) {
	out, _, err := runCLI(t, "project", "testdata/pingpong.chor", "--role", "Mallory", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	assert.Equal(t, project.ErrUnknownRole, resp.Error.Code)
}

func TestProjectCommandRequiresRoleOrAll(t *testing.T) {
	_, _, err := runCLI(t, "project", "testdata/pingpong.chor")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandPassingScenario(t *testing.T) {
	out, _, err := runCLI(t, "test", "testdata/pingpong_scenario.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "PASS")
	assert.Contains(t, out, "1 passed, 0 failed")
}

func TestTestCommandFailingScenario(t *testing.T) {
	out, _, err := runCLI(t, "test", "testdata/failing_scenario.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FAIL")
}

func TestTestCommandJSON(t *testing.T) {
	out, _, err := runCLI(t, "test", "testdata/pingpong_scenario.yaml", "--format", "json")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(1), data["total"])
	assert.Equal(t, float64(1), data["passed"])
}

// seedTraceDB records a conforming client trace in a fresh database and
// returns its path.
func seedTraceDB(t *testing.T) string {
	t.Helper()

	src, err := os.ReadFile("testdata/pingpong.chor")
	require.NoError(t, err)
	proto, err := compiler.Compile(string(src))
	require.NoError(t, err)
	local, err := project.Project(proto, "Client")
	require.NoError(t, err)
	globalHash, err := ir.GlobalHash(proto)
	require.NoError(t, err)
	localHash, err := ir.LocalHash(local)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "trace.db")
	store, err := trace.Open(path)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.RegisterSession(ctx, trace.SessionInfo{
		ID: "sess-client", Role: "Client", ProtocolName: proto.Name,
		GlobalHash: globalHash, LocalHash: localHash,
	}))
	events := []session.Event{
		{SessionID: "sess-client", Role: "Client", Seq: 1, Kind: session.EventSend,
			Peer: "Server", PayloadType: "Ping", Payload: []byte(`"ping"`), Branch: -1},
		{SessionID: "sess-client", Role: "Client", Seq: 2, Kind: session.EventReceive,
			Peer: "Server", PayloadType: "Pong", Payload: []byte(`"pong"`), Branch: -1},
		{SessionID: "sess-client", Role: "Client", Seq: 3, Kind: session.EventClose, Branch: -1},
	}
	for _, ev := range events {
		require.NoError(t, store.WriteEvent(ctx, ev))
	}
	return path
}

func TestTraceCommandListSessions(t *testing.T) {
	db := seedTraceDB(t)

	out, _, err := runCLI(t, "trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "sess-client")
	assert.Contains(t, out, "protocol=PingPong")
}

func TestTraceCommandShowSession(t *testing.T) {
	db := seedTraceDB(t)

	out, _, err := runCLI(t, "trace", "--db", db, "--session", "sess-client", "--format", "json")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	data := resp.Data.(map[string]any)
	events := data["events"].([]any)
	require.Len(t, events, 3)
	assert.Equal(t, "send", events[0].(map[string]any)["kind"])
}

func TestTraceCommandCheckConformance(t *testing.T) {
	db := seedTraceDB(t)

	out, _, err := runCLI(t, "trace", "--db", db, "--session", "sess-client",
		"--check", "testdata/pingpong.chor", "--format", "json")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	data := resp.Data.(map[string]any)
	replay := data["replay"].(map[string]any)
	assert.Equal(t, true, replay["complete"])
	assert.Equal(t, float64(3), replay["steps"])
}

func TestTraceCommandCheckDetectsWrongProtocol(t *testing.T) {
	db := seedTraceDB(t)

	// The recorded local hash belongs to PingPong's client; projecting a
	// different protocol yields a different hash, so the check fails
	// before replay.
	out, _, err := runCLI(t, "trace", "--db", db, "--session", "sess-client",
		"--check", "testdata/other.chor", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	assert.Equal(t, "HASH_MISMATCH", resp.Error.Code)
}

func TestTraceCommandMissingDatabase(t *testing.T) {
	_, _, err := runCLI(t, "trace", "--db", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestInvalidFormatRejected(t *testing.T) {
	_, _, err := runCLI(t, "compile", "testdata/pingpong.chor", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
