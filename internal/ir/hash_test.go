package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalHashStable(t *testing.T) {
	p := &GlobalProtocol{
		Name:  "PingPong",
		Roles: []Role{"Client", "Server"},
		Body: &GMessage{From: "Client", To: "Server", Payload: "Ping",
			Cont: &GMessage{From: "Server", To: "Client", Payload: "Pong", Cont: &GEnd{}}},
	}

	first, err := GlobalHash(p)
	require.NoError(t, err)
	assert.Len(t, first, 64, "hex-encoded SHA-256")

	again, err := GlobalHash(p)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestGlobalHashSensitivity(t *testing.T) {
	base := func() *GlobalProtocol {
		return &GlobalProtocol{
			Name:  "P",
			Roles: []Role{"A", "B"},
			Body:  &GMessage{From: "A", To: "B", Payload: "Msg", Cont: &GEnd{}},
		}
	}

	baseHash, err := GlobalHash(base())
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*GlobalProtocol)
	}{
		{"renamed protocol", func(p *GlobalProtocol) { p.Name = "Q" }},
		{"extra role", func(p *GlobalProtocol) { p.Roles = append(p.Roles, "C") }},
		{"payload type", func(p *GlobalProtocol) { p.Body.(*GMessage).Payload = "Other" }},
		{"direction", func(p *GlobalProtocol) {
			m := p.Body.(*GMessage)
			m.From, m.To = m.To, m.From
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base()
			tt.mutate(p)
			h, err := GlobalHash(p)
			require.NoError(t, err)
			assert.NotEqual(t, baseHash, h)
		})
	}
}

func TestHashDomainSeparation(t *testing.T) {
	data := []byte(`{"kind":"end"}`)
	assert.NotEqual(t,
		hashWithDomain(DomainGlobal, data),
		hashWithDomain(DomainLocal, data),
		"identical bytes under different domains must hash differently")
}

func TestHashDomainBoundary(t *testing.T) {
	// The null separator keeps domain/data splits distinct:
	// ("ab", "c") and ("a", "bc") must not collide.
	assert.NotEqual(t,
		hashWithDomain("ab", []byte("c")),
		hashWithDomain("a", []byte("bc")))
}

func TestLocalHashDiffersAcrossRolesViews(t *testing.T) {
	send := &LSend{To: "B", Payload: "Ping", Cont: &LEnd{}}
	recv := &LRecv{From: "A", Payload: "Ping", Cont: &LEnd{}}

	hs, err := LocalHash(send)
	require.NoError(t, err)
	hr, err := LocalHash(recv)
	require.NoError(t, err)
	assert.NotEqual(t, hs, hr)
}
