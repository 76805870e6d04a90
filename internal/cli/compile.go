package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/choreolang/choreo/internal/compiler"
	"github.com/choreolang/choreo/internal/ir"
	"github.com/choreolang/choreo/internal/schema"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
	Schema string // optional payload schema (.cue)
}

// CompileResult summarizes a successful compilation.
type CompileResult struct {
	Name       string   `json:"name"`
	Roles      []string `json:"roles"`
	GlobalHash string   `json:"global_hash"`
	IR         any      `json:"ir"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <protocol.chor>",
		Short: "Compile a protocol description to canonical IR",
		Long: `Compile a protocol description to canonical IR.

The compiler lexes and parses the source, runs the well-formedness
checks (role resolution, recursion scoping, guardedness, choice
leading-sender), and outputs the global protocol tree as canonical
JSON together with its content hash.

With --schema, every payload type the protocol references must be
declared in the given CUE schema file.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().StringVar(&opts.Schema, "schema", "", "CUE payload schema file")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	src, err := readProtocol(path)
	if err != nil {
		return err
	}

	proto, err := compiler.Compile(src)
	if err != nil {
		formatter.Error(errorCode(err), err.Error(), nil)
		return NewExitError(ExitFailure, "compilation failed")
	}
	formatter.VerboseLog("compiled protocol %s with %d roles", proto.Name, len(proto.Roles))

	if opts.Schema != "" {
		sch, err := schema.LoadFile(opts.Schema)
		if err != nil {
			return WrapExitError(ExitCommandError, "load schema", err)
		}
		if err := sch.CheckProtocol(proto); err != nil {
			formatter.Error(schemaErrorCode(err), err.Error(), nil)
			return NewExitError(ExitFailure, "schema check failed")
		}
		formatter.VerboseLog("schema check passed (%d declared types)", len(sch.TypeNames()))
	}

	canonical, err := ir.MarshalGlobal(proto)
	if err != nil {
		return WrapExitError(ExitCommandError, "marshal IR", err)
	}
	hash, err := ir.GlobalHash(proto)
	if err != nil {
		return WrapExitError(ExitCommandError, "hash IR", err)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, canonical, 0o644); err != nil {
			return WrapExitError(ExitCommandError, "write output", err)
		}
		formatter.VerboseLog("wrote canonical IR to %s", opts.Output)
	}

	if opts.Format == "json" {
		var tree any
		if err := json.Unmarshal(canonical, &tree); err != nil {
			return WrapExitError(ExitCommandError, "decode canonical IR", err)
		}
		roles := make([]string, len(proto.Roles))
		for i, r := range proto.Roles {
			roles[i] = string(r)
		}
		return formatter.Success(CompileResult{
			Name:       proto.Name,
			Roles:      roles,
			GlobalHash: hash,
			IR:         tree,
		})
	}
	return formatter.Success(fmt.Sprintf("compiled %s (%d roles)\nhash: %s", proto.Name, len(proto.Roles), hash))
}

func schemaErrorCode(err error) string {
	if se, ok := err.(*schema.Error); ok {
		return se.Code
	}
	return "UNKNOWN"
}
