package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/choreolang/choreo/internal/ir"
)

func TestMustCompileAndProject(t *testing.T) {
	proto := MustCompile(t, `
		protocol P {
			participant A;
			participant B;
			A -> B : X;
		}`)
	assert.Equal(t, "P", proto.Name)

	locals := MustProjectAll(t, proto)
	assert.Len(t, locals, 2)
}

func TestLinkRolesMesh(t *testing.T) {
	links := LinkRoles("A", "B", "C")
	require.Len(t, links, 3)
	for _, r := range []ir.Role{"A", "B", "C"} {
		assert.Len(t, links[r], 2, "each role links to every other role")
	}

	// Each pair shares one pipe: bytes written on A's end toward B
	// arrive on B's end toward A.
	require.NoError(t, links["A"]["B"].Write([]byte("hi")))
	msg, err := links["B"]["A"].Read()
	require.NoError(t, err)
	assert.Equal(t, "hi", string(msg))
}
