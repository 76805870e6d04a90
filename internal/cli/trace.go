package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/choreolang/choreo/internal/compiler"
	"github.com/choreolang/choreo/internal/ir"
	"github.com/choreolang/choreo/internal/project"
	"github.com/choreolang/choreo/internal/trace"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string
	Check    string // protocol file to replay the session against
}

// TraceEventOutput is one event row in trace output.
type TraceEventOutput struct {
	Seq     int64  `json:"seq"`
	Kind    string `json:"kind"`
	Peer    string `json:"peer,omitempty"`
	Type    string `json:"type,omitempty"`
	Payload string `json:"payload,omitempty"`
	Branch  int    `json:"branch,omitempty"`
	Label   string `json:"label,omitempty"`
}

// TraceResult holds trace output for one session.
type TraceResult struct {
	Session trace.SessionInfo   `json:"session"`
	Events  []TraceEventOutput  `json:"events"`
	Replay  *trace.ReplayResult `json:"replay,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded session traces",
		Long: `Inspect recorded session traces.

Without --session, lists every recorded session. With --session,
prints the session's event timeline. With --check, additionally
replays the timeline against the role's projection of the given
protocol and reports the first divergence.

Examples:
  choreo trace --db ./choreo.db
  choreo trace --db ./choreo.db --session sess-Client
  choreo trace --db ./choreo.db --session sess-Client --check pingpong.chor`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session ID to inspect")
	cmd.Flags().StringVar(&opts.Check, "check", "", "protocol file to replay the session against")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if _, err := os.Stat(opts.Database); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", opts.Database))
	}
	store, err := trace.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "open trace database", err)
	}
	defer store.Close()

	ctx := context.Background()

	if opts.Session == "" {
		sessions, err := store.ListSessions(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "list sessions", err)
		}
		if opts.Format == "json" {
			return formatter.Success(sessions)
		}
		msg := fmt.Sprintf("%d session(s)\n", len(sessions))
		for _, s := range sessions {
			msg += fmt.Sprintf("  %s  role=%s  protocol=%s\n", s.ID, s.Role, s.ProtocolName)
		}
		return formatter.Success(msg)
	}

	info, err := store.GetSession(ctx, opts.Session)
	if err != nil {
		return WrapExitError(ExitCommandError, "load session", err)
	}
	events, err := store.ReadEvents(ctx, opts.Session)
	if err != nil {
		return WrapExitError(ExitCommandError, "read events", err)
	}

	result := TraceResult{Session: info}
	for _, ev := range events {
		result.Events = append(result.Events, TraceEventOutput{
			Seq:     ev.Seq,
			Kind:    string(ev.Kind),
			Peer:    string(ev.Peer),
			Type:    ev.PayloadType,
			Payload: string(ev.Payload),
			Branch:  ev.Branch,
			Label:   ev.Label,
		})
	}

	if opts.Check != "" {
		src, err := readProtocol(opts.Check)
		if err != nil {
			return err
		}
		proto, err := compiler.Compile(src)
		if err != nil {
			formatter.Error(errorCode(err), err.Error(), nil)
			return NewExitError(ExitFailure, "compilation failed")
		}
		local, err := project.Project(proto, info.Role)
		if err != nil {
			formatter.Error(errorCode(err), err.Error(), nil)
			return NewExitError(ExitFailure, "projection failed")
		}
		localHash, err := ir.LocalHash(local)
		if err != nil {
			return WrapExitError(ExitCommandError, "hash local IR", err)
		}
		if localHash != info.LocalHash {
			formatter.Error("HASH_MISMATCH",
				fmt.Sprintf("session was recorded against local protocol %s, projection yields %s",
					info.LocalHash, localHash), nil)
			return NewExitError(ExitFailure, "trace check failed")
		}
		replay, err := trace.Replay(local, events)
		if err != nil {
			formatter.Error("DIVERGENCE", err.Error(), nil)
			return NewExitError(ExitFailure, "trace check failed")
		}
		result.Replay = &replay
		formatter.VerboseLog("replayed %d steps, complete=%v", replay.Steps, replay.Complete)
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	msg := fmt.Sprintf("session %s  role=%s  protocol=%s\n", info.ID, info.Role, info.ProtocolName)
	for _, ev := range result.Events {
		msg += fmt.Sprintf("  %4d  %-8s peer=%s type=%s branch=%d label=%s\n",
			ev.Seq, ev.Kind, ev.Peer, ev.Type, ev.Branch, ev.Label)
	}
	if result.Replay != nil {
		msg += fmt.Sprintf("replay: %d steps, complete=%v, aborted=%v\n",
			result.Replay.Steps, result.Replay.Complete, result.Replay.Aborted)
	}
	return formatter.Success(msg)
}
