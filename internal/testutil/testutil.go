// Package testutil provides shared helpers for protocol and session
// tests: compile-or-fail wrappers and in-memory link meshes.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/choreolang/choreo/internal/compiler"
	"github.com/choreolang/choreo/internal/ir"
	"github.com/choreolang/choreo/internal/project"
	"github.com/choreolang/choreo/internal/session"
	"github.com/choreolang/choreo/internal/transport"
)

// MustCompile compiles protocol source and fails the test on any
// syntax or well-formedness error.
func MustCompile(t *testing.T, src string) *ir.GlobalProtocol {
	t.Helper()
	p, err := compiler.Compile(src)
	require.NoError(t, err, "protocol must compile")
	return p
}

// MustProject projects a compiled protocol onto one role and fails
// the test if projection is undefined.
func MustProject(t *testing.T, p *ir.GlobalProtocol, role ir.Role) ir.Local {
	t.Helper()
	l, err := project.Project(p, role)
	require.NoError(t, err, "projection for %s must be defined", role)
	return l
}

// MustProjectAll projects onto every declared role.
func MustProjectAll(t *testing.T, p *ir.GlobalProtocol) map[ir.Role]ir.Local {
	t.Helper()
	locals, err := project.ProjectAll(p)
	require.NoError(t, err, "all projections must be defined")
	return locals
}

// LinkRoles builds a full mesh of in-memory pipes between the given
// roles: one bidirectional link per unordered pair. Closing any
// session releases its ends; tests do not need extra cleanup.
func LinkRoles(roles ...ir.Role) map[ir.Role]session.Links {
	links := make(map[ir.Role]session.Links, len(roles))
	for _, r := range roles {
		links[r] = session.Links{}
	}
	for i, a := range roles {
		for _, b := range roles[i+1:] {
			ea, eb := transport.Pipe()
			links[a][b] = ea
			links[b][a] = eb
		}
	}
	return links
}
