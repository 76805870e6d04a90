package project

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/choreolang/choreo/internal/ir"
)

func TestDualSwapsDirections(t *testing.T) {
	client := &ir.LSend{To: "Server", Payload: "Ping",
		Cont: &ir.LRecv{From: "Server", Payload: "Pong", Cont: &ir.LEnd{}}}

	server, err := Dual(client, "Client", "Server")
	require.NoError(t, err)

	want := &ir.LRecv{From: "Client", Payload: "Ping",
		Cont: &ir.LSend{To: "Client", Payload: "Pong", Cont: &ir.LEnd{}}}
	assert.True(t, ir.EqualLocal(want, server))
}

func TestDualBranching(t *testing.T) {
	chooser := &ir.LSelect{To: []ir.Role{"B"}, Branches: []ir.LBranch{
		{Label: "go", Body: &ir.LSend{To: "B", Payload: "Go", Cont: &ir.LEnd{}}},
		{Label: "stop", Body: &ir.LSend{To: "B", Payload: "Stop", Cont: &ir.LEnd{}}},
	}}

	offered, err := Dual(chooser, "A", "B")
	require.NoError(t, err)

	want := &ir.LOffer{From: "A", Branches: []ir.LBranch{
		{Label: "go", Body: &ir.LRecv{From: "A", Payload: "Go", Cont: &ir.LEnd{}}},
		{Label: "stop", Body: &ir.LRecv{From: "A", Payload: "Stop", Cont: &ir.LEnd{}}},
	}}
	assert.True(t, ir.EqualLocal(want, offered), "labels and branch order pass through")
}

func TestDualInvolution(t *testing.T) {
	protos := []ir.Local{
		&ir.LEnd{},
		&ir.LSend{To: "B", Payload: "X", Cont: &ir.LEnd{}},
		&ir.LRec{Label: "t",
			Body: &ir.LSend{To: "B", Payload: "Tick",
				Cont: &ir.LRecv{From: "B", Payload: "Tock",
					Cont: &ir.LVar{Label: "t"}}}},
		&ir.LSelect{To: []ir.Role{"B"}, Branches: []ir.LBranch{
			{Label: "l", Body: &ir.LSend{To: "B", Payload: "L", Cont: &ir.LEnd{}}},
			{Label: "r", Body: &ir.LSend{To: "B", Payload: "R", Cont: &ir.LEnd{}}},
		}},
	}

	for _, p := range protos {
		d, err := Dual(p, "A", "B")
		require.NoError(t, err)
		dd, err := Dual(d, "B", "A")
		require.NoError(t, err)
		assert.True(t, ir.EqualLocal(p, dd), "dual is an involution")
	}
}

func TestDualMatchesProjection(t *testing.T) {
	// For a two-party protocol, the dual of one role's projection is
	// exactly the other role's projection.
	proto := mustCompile(t, `
		protocol Haggle {
			participant Buyer;
			participant Seller;
			rec round {
				Buyer -> Seller : Bid;
				choice at Seller {
					option deal { Seller -> Buyer : Accept; }
					or option counter {
						Seller -> Buyer : Counter;
						continue round;
					}
				}
			}
		}`)

	buyer, err := Project(proto, "Buyer")
	require.NoError(t, err)
	seller, err := Project(proto, "Seller")
	require.NoError(t, err)

	dualOfBuyer, err := Dual(buyer, "Buyer", "Seller")
	require.NoError(t, err)
	assert.True(t, ir.EqualLocal(seller, dualOfBuyer))

	dualOfSeller, err := Dual(seller, "Seller", "Buyer")
	require.NoError(t, err)
	assert.True(t, ir.EqualLocal(buyer, dualOfSeller))
}

func TestDualRejectsThirdParty(t *testing.T) {
	tests := []struct {
		name string
		p    ir.Local
	}{
		{"send to another role", &ir.LSend{To: "C", Payload: "X", Cont: &ir.LEnd{}}},
		{"recv from another role", &ir.LRecv{From: "C", Payload: "X", Cont: &ir.LEnd{}}},
		{"broadcast select", &ir.LSelect{To: []ir.Role{"B", "C"}, Branches: []ir.LBranch{
			{Body: &ir.LEnd{}}, {Body: &ir.LEnd{}}}}},
		{"offer from another role", &ir.LOffer{From: "C", Branches: []ir.LBranch{
			{Body: &ir.LEnd{}}, {Body: &ir.LEnd{}}}}},
		{"nested in continuation", &ir.LSend{To: "B", Payload: "X",
			Cont: &ir.LRecv{From: "C", Payload: "Y", Cont: &ir.LEnd{}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Dual(tt.p, "A", "B")
			require.Error(t, err)

			var pe *ProjectionError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, ErrNotTwoParty, pe.Code)
		})
	}
}
