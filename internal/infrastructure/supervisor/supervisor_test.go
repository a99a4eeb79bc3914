package supervisor

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/agent-hub/agent-hub/internal/domain/agent"
)

func TestRestartRequiresLaunchCommand(t *testing.T) {
	s := NewExecSupervisor(zerolog.Nop())

	_, err := s.Restart(context.Background(), agent.ProcessInfo{PID: 1234})
	require.ErrorIs(t, err, agent.ErrRestartFailed)

	_, err = s.Restart(context.Background(), agent.ProcessInfo{PID: 1234, Command: "   "})
	require.ErrorIs(t, err, agent.ErrRestartFailed)
}

func TestRestartUnknownBinaryFails(t *testing.T) {
	s := NewExecSupervisor(zerolog.Nop())

	_, err := s.Restart(context.Background(), agent.ProcessInfo{
		Command: "/nonexistent/agent-worker --id agent-1",
	})
	require.ErrorIs(t, err, agent.ErrRestartFailed)
}
