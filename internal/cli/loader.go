package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/choreolang/choreo/internal/compiler"
	"github.com/choreolang/choreo/internal/project"
)

// readProtocol reads a protocol source file, mapping filesystem
// problems to command errors (exit code 2) so they are distinguishable
// from compile failures (exit code 1).
func readProtocol(path string) (string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", NewExitError(ExitCommandError, fmt.Sprintf("protocol file not found: %s", path))
	}
	if err != nil {
		return "", WrapExitError(ExitCommandError, "stat protocol file", err)
	}
	if info.IsDir() {
		return "", NewExitError(ExitCommandError, fmt.Sprintf("%s is a directory, expected a protocol file", path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", WrapExitError(ExitCommandError, "read protocol file", err)
	}
	return string(data), nil
}

// errorCode extracts the machine-readable code carried by compiler and
// projection errors for structured CLI output.
func errorCode(err error) string {
	var syn *compiler.SyntaxError
	if errors.As(err, &syn) {
		return syn.Code
	}
	var sem *compiler.SemanticError
	if errors.As(err, &sem) {
		return sem.Code
	}
	var pe *project.ProjectionError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return "UNKNOWN"
}
