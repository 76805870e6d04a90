package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/choreolang/choreo/internal/ir"
	"github.com/choreolang/choreo/internal/session"
)

// Client view of PingPong: !Ping ; ?Pong ; end
func pingPongClient() ir.Local {
	return &ir.LSend{To: "Server", Payload: "Ping",
		Cont: &ir.LRecv{From: "Server", Payload: "Pong", Cont: &ir.LEnd{}}}
}

func TestReplayConformingTrace(t *testing.T) {
	events := []session.Event{
		{Seq: 1, Kind: session.EventSend, Peer: "Server", PayloadType: "Ping"},
		{Seq: 2, Kind: session.EventReceive, Peer: "Server", PayloadType: "Pong"},
		{Seq: 3, Kind: session.EventClose},
	}

	res, err := Replay(pingPongClient(), events)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Steps)
	assert.True(t, res.Complete)
	assert.False(t, res.Aborted)
}

func TestReplayIncompleteTrace(t *testing.T) {
	events := []session.Event{
		{Seq: 1, Kind: session.EventSend, Peer: "Server", PayloadType: "Ping"},
	}

	res, err := Replay(pingPongClient(), events)
	require.NoError(t, err, "an abandoned session is a leak, not a divergence")
	assert.Equal(t, 1, res.Steps)
	assert.False(t, res.Complete)
}

func TestReplayAbortedTrace(t *testing.T) {
	events := []session.Event{
		{Seq: 1, Kind: session.EventSend, Peer: "Server", PayloadType: "Ping"},
		{Seq: 2, Kind: session.EventAbort},
	}

	res, err := Replay(pingPongClient(), events)
	require.NoError(t, err)
	assert.True(t, res.Aborted)
	assert.False(t, res.Complete)
}

func TestReplayRecursionAndBranching(t *testing.T) {
	// Producer view: rec loop { select{ item: !Item; continue loop | done: !Done } }
	local := &ir.LRec{Label: "loop", Body: &ir.LSelect{To: []ir.Role{"Consumer"},
		Branches: []ir.LBranch{
			{Label: "item", Body: &ir.LSend{To: "Consumer", Payload: "Item",
				Cont: &ir.LVar{Label: "loop"}}},
			{Label: "done", Body: &ir.LSend{To: "Consumer", Payload: "Done",
				Cont: &ir.LEnd{}}},
		}}}

	events := []session.Event{
		{Seq: 1, Kind: session.EventEnter, Label: "loop"},
		{Seq: 2, Kind: session.EventSelect, Branch: 0, Label: "item"},
		{Seq: 3, Kind: session.EventSend, Peer: "Consumer", PayloadType: "Item"},
		{Seq: 4, Kind: session.EventRecurse, Label: "loop"},
		{Seq: 5, Kind: session.EventSelect, Branch: 1, Label: "done"},
		{Seq: 6, Kind: session.EventSend, Peer: "Consumer", PayloadType: "Done"},
		{Seq: 7, Kind: session.EventClose},
	}

	res, err := Replay(local, events)
	require.NoError(t, err)
	assert.Equal(t, 7, res.Steps)
	assert.True(t, res.Complete)
}

func TestReplayDivergences(t *testing.T) {
	tests := []struct {
		name   string
		local  ir.Local
		events []session.Event
		seq    int64
	}{
		{
			"wrong operation kind",
			pingPongClient(),
			[]session.Event{
				{Seq: 1, Kind: session.EventReceive, Peer: "Server", PayloadType: "Ping"},
			},
			1,
		},
		{
			"wrong peer",
			pingPongClient(),
			[]session.Event{
				{Seq: 1, Kind: session.EventSend, Peer: "Mallory", PayloadType: "Ping"},
			},
			1,
		},
		{
			"wrong payload type",
			pingPongClient(),
			[]session.Event{
				{Seq: 1, Kind: session.EventSend, Peer: "Server", PayloadType: "Pang"},
			},
			1,
		},
		{
			"close before end",
			pingPongClient(),
			[]session.Event{
				{Seq: 1, Kind: session.EventSend, Peer: "Server", PayloadType: "Ping"},
				{Seq: 2, Kind: session.EventClose},
			},
			2,
		},
		{
			"event after close",
			pingPongClient(),
			[]session.Event{
				{Seq: 1, Kind: session.EventSend, Peer: "Server", PayloadType: "Ping"},
				{Seq: 2, Kind: session.EventReceive, Peer: "Server", PayloadType: "Pong"},
				{Seq: 3, Kind: session.EventClose},
				{Seq: 4, Kind: session.EventSend, Peer: "Server", PayloadType: "Ping"},
			},
			4,
		},
		{
			"event after abort",
			pingPongClient(),
			[]session.Event{
				{Seq: 1, Kind: session.EventAbort},
				{Seq: 2, Kind: session.EventSend, Peer: "Server", PayloadType: "Ping"},
			},
			2,
		},
		{
			"selector out of range",
			&ir.LSelect{To: []ir.Role{"B"}, Branches: []ir.LBranch{
				{Body: &ir.LEnd{}}, {Body: &ir.LEnd{}}}},
			[]session.Event{
				{Seq: 1, Kind: session.EventSelect, Branch: 5},
			},
			1,
		},
		{
			"recurse without enter",
			&ir.LVar{Label: "loop"},
			[]session.Event{
				{Seq: 1, Kind: session.EventRecurse, Label: "loop"},
			},
			1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Replay(tt.local, tt.events)
			require.Error(t, err)
			assert.True(t, IsDivergence(err))

			var de *DivergenceError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.seq, de.Seq, "divergence names the offending event")
		})
	}
}

func TestReplayEmptyTrace(t *testing.T) {
	res, err := Replay(pingPongClient(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Steps)
	assert.False(t, res.Complete)
}
