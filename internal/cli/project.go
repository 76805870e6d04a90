package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/choreolang/choreo/internal/compiler"
	"github.com/choreolang/choreo/internal/ir"
	"github.com/choreolang/choreo/internal/project"
)

// ProjectOptions holds flags for the project command.
type ProjectOptions struct {
	*RootOptions
	Role   string
	All    bool
	Output string
}

// ProjectionOutput is one role's projected local protocol.
type ProjectionOutput struct {
	Role      string `json:"role"`
	LocalHash string `json:"local_hash"`
	IR        any    `json:"ir"`
}

// NewProjectCommand creates the project command.
func NewProjectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProjectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "project <protocol.chor>",
		Short: "Derive a role's local protocol from a global protocol",
		Long: `Derive a role's local protocol from a global protocol.

Projection elides interactions that do not involve the role, turns
choices into select (decider) or offer (other participants), and
requires roles outside a choice to see identical continuations on
every branch.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Role == "" && !opts.All {
				return NewExitError(ExitCommandError, "either --role or --all is required")
			}
			return runProject(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Role, "role", "r", "", "role to project")
	cmd.Flags().BoolVar(&opts.All, "all", false, "project every declared role")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path (single role only)")

	return cmd
}

func runProject(opts *ProjectOptions, path string, cmd *cobra.Command) error {
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

	var roles []ir.Role
	if opts.All {
		roles = proto.Roles
	} else {
		roles = []ir.Role{ir.Role(opts.Role)}
	}

	outputs := make([]ProjectionOutput, 0, len(roles))
	for _, role := range roles {
		local, err := project.Project(proto, role)
		if err != nil {
			formatter.Error(errorCode(err), err.Error(), nil)
			return NewExitError(ExitFailure, "projection failed")
		}
		canonical, err := ir.MarshalLocal(local)
		if err != nil {
			return WrapExitError(ExitCommandError, "marshal local IR", err)
		}
		hash, err := ir.LocalHash(local)
		if err != nil {
			return WrapExitError(ExitCommandError, "hash local IR", err)
		}

		if opts.Output != "" && !opts.All {
			if err := os.WriteFile(opts.Output, canonical, 0o644); err != nil {
				return WrapExitError(ExitCommandError, "write output", err)
			}
		}

		var tree any
		if err := json.Unmarshal(canonical, &tree); err != nil {
			return WrapExitError(ExitCommandError, "decode local IR", err)
		}
		outputs = append(outputs, ProjectionOutput{
			Role:      string(role),
			LocalHash: hash,
			IR:        tree,
		})
	}

	if opts.Format == "json" {
		if len(outputs) == 1 {
			return formatter.Success(outputs[0])
		}
		return formatter.Success(outputs)
	}
	msg := ""
	for _, out := range outputs {
		msg += fmt.Sprintf("%s: %s\n", out.Role, out.LocalHash)
	}
	return formatter.Success(fmt.Sprintf("projected %s for %d role(s)\n%s", proto.Name, len(outputs), msg))
}
