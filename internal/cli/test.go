package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/choreolang/choreo/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
}

// ScenarioOutcome is the reported result of one scenario file.
type ScenarioOutcome struct {
	File       string   `json:"file"`
	Scenario   string   `json:"scenario"`
	GlobalHash string   `json:"global_hash,omitempty"`
	Passed     bool     `json:"passed"`
	Failures   []string `json:"failures,omitempty"`
}

// TestSummary aggregates outcomes across scenario files.
type TestSummary struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Outcomes []ScenarioOutcome `json:"outcomes"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test [scenario.yaml...]",
		Short: "Run conformance scenarios against their protocols",
		Long: `Run conformance scenarios against their protocols.

Each scenario file names a protocol, one script per role, and the
payloads each role expects to exchange. The harness compiles the
protocol, projects it, and drives every role concurrently over
in-memory channels. Directories are expanded to their *.yaml files.

Examples:
  choreo test scenarios/pingpong.yaml
  choreo test scenarios/
  choreo test scenarios/ --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(opts, cmd, args)
		},
	}

	return cmd
}

func runTest(opts *TestOptions, cmd *cobra.Command, args []string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	files, err := collectScenarioFiles(args)
	if err != nil {
		return WrapExitError(ExitCommandError, "collect scenario files", err)
	}
	if len(files) == 0 {
		return NewExitError(ExitCommandError, "no scenario files found")
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.Verbose {
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}

	summary := TestSummary{}
	for _, file := range files {
		outcome := ScenarioOutcome{File: file}
		sc, err := harness.LoadScenario(file)
		if err != nil {
			outcome.Failures = []string{err.Error()}
		} else {
			outcome.Scenario = sc.Name
			res, err := harness.Run(sc, logger)
			if err != nil {
				outcome.Failures = []string{err.Error()}
			} else {
				outcome.GlobalHash = res.GlobalHash
				outcome.Passed = res.Passed
				outcome.Failures = res.Failures
			}
		}
		summary.Total++
		if outcome.Passed {
			summary.Passed++
		} else {
			summary.Failed++
		}
		summary.Outcomes = append(summary.Outcomes, outcome)
		formatter.VerboseLog("%s: passed=%v", file, outcome.Passed)
	}

	if opts.Format == "json" {
		if err := formatter.Success(summary); err != nil {
			return err
		}
	} else {
		msg := ""
		for _, o := range summary.Outcomes {
			status := "PASS"
			if !o.Passed {
				status = "FAIL"
			}
			msg += fmt.Sprintf("%s  %s (%s)\n", status, o.File, o.Scenario)
			for _, f := range o.Failures {
				msg += fmt.Sprintf("      %s\n", f)
			}
		}
		msg += fmt.Sprintf("%d scenario(s): %d passed, %d failed\n",
			summary.Total, summary.Passed, summary.Failed)
		if err := formatter.Success(msg); err != nil {
			return err
		}
	}

	if summary.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", summary.Failed))
	}
	return nil
}

// collectScenarioFiles expands directory arguments to their *.yaml
// files, sorted, and passes file arguments through.
func collectScenarioFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(arg, "*.yaml"))
		if err != nil {
			return nil, err
		}
		sort.Strings(matches)
		files = append(files, matches...)
	}
	return files, nil
}
