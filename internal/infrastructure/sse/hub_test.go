package sse

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/agent-hub/agent-hub/internal/domain/agent"
)

func TestHubBroadcastsStatusChanges(t *testing.T) {
	h := NewHub(zerolog.Nop())
	c1 := NewClient()
	c2 := NewClient()
	h.Register(c1)
	h.Register(c2)
	require.Equal(t, 2, h.ClientCount())

	rec := agent.NewRecord("agent-1", nil)
	rec.Status = agent.StatusBusy
	rec.HealthScore = 73
	rec.CurrentTask = "task-9"
	h.AgentStatusChanged(rec)

	for _, c := range []*Client{c1, c2} {
		ev := <-c.Events
		require.Equal(t, "agent_status", ev.Name)
		require.Equal(t, "agent-1", ev.AgentID)
		require.Equal(t, agent.StatusBusy, ev.Status)
		require.Equal(t, 73, ev.HealthScore)
		require.Equal(t, "task-9", ev.TaskID)
		require.NotEmpty(t, ev.ID)
	}
}

func TestHubDropsWhenClientBufferFull(t *testing.T) {
	h := NewHub(zerolog.Nop())
	c := &Client{ClientID: "slow", Events: make(chan *Event)}
	h.Register(c)

	// Unbuffered channel with no reader: must not block.
	h.Broadcast(&Event{Name: "agent_status", AgentID: "agent-1"})
	select {
	case ev := <-c.Events:
		t.Fatalf("unexpected delivery: %+v", ev)
	default:
	}
}

func TestHubUnregisterClosesClient(t *testing.T) {
	h := NewHub(zerolog.Nop())
	c := NewClient()
	h.Register(c)

	h.Unregister(c.ClientID)
	require.Zero(t, h.ClientCount())
	_, open := <-c.Events
	require.False(t, open)

	// Unknown ids are a no-op, double close must not panic.
	h.Unregister(c.ClientID)
	c.Close()
}

func TestHubStopClosesAllClients(t *testing.T) {
	h := NewHub(zerolog.Nop())
	c1 := NewClient()
	c2 := NewClient()
	h.Register(c1)
	h.Register(c2)

	h.Stop()
	require.Zero(t, h.ClientCount())
	_, open := <-c1.Events
	require.False(t, open)
	_, open = <-c2.Events
	require.False(t, open)
}
