package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/choreolang/choreo/internal/compiler"
	"github.com/choreolang/choreo/internal/ir"
	"github.com/choreolang/choreo/internal/project"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
}

// ValidateResult summarizes a successful validation.
type ValidateResult struct {
	Name        string   `json:"name"`
	Roles       []string `json:"roles"`
	WellFormed  bool     `json:"well_formed"`
	Projectable bool     `json:"projectable"`
	DualChecked bool     `json:"dual_checked"` // two-party duality oracle ran
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <protocol.chor>",
		Short: "Check a protocol for well-formedness and projectability",
		Long: `Check a protocol for well-formedness and projectability.

Runs the full compile pipeline, then projects every declared role to
surface projection inconsistencies. For two-party protocols the
duality oracle additionally verifies that the two projections are
mutual duals.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
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
		return NewExitError(ExitFailure, "validation failed")
	}

	locals, err := project.ProjectAll(proto)
	if err != nil {
		formatter.Error(errorCode(err), err.Error(), nil)
		return NewExitError(ExitFailure, "projection failed")
	}
	formatter.VerboseLog("projected %d roles", len(locals))

	dualChecked := false
	if len(proto.Roles) == 2 {
		a, b := proto.Roles[0], proto.Roles[1]
		dualOfA, err := project.Dual(locals[a], a, b)
		if err != nil {
			formatter.Error(errorCode(err), err.Error(), nil)
			return NewExitError(ExitFailure, "duality check failed")
		}
		if !ir.EqualLocal(dualOfA, locals[b]) {
			formatter.Error(project.ErrNotTwoParty,
				fmt.Sprintf("projections of %s and %s are not mutual duals", a, b), nil)
			return NewExitError(ExitFailure, "duality check failed")
		}
		dualChecked = true
		formatter.VerboseLog("duality oracle passed for %s/%s", a, b)
	}

	if opts.Format == "json" {
		roles := make([]string, len(proto.Roles))
		for i, r := range proto.Roles {
			roles[i] = string(r)
		}
		return formatter.Success(ValidateResult{
			Name:        proto.Name,
			Roles:       roles,
			WellFormed:  true,
			Projectable: true,
			DualChecked: dualChecked,
		})
	}
	return formatter.Success(fmt.Sprintf("%s is well-formed and projectable for all %d roles", proto.Name, len(proto.Roles)))
}
