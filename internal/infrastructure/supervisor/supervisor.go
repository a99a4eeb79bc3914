package supervisor

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/agent-hub/agent-hub/internal/domain/agent"
)

// ExecSupervisor restarts agent worker processes with os/exec. The previous
// process gets a best-effort SIGTERM; reaping is left to a background Wait so
// restarted children never turn into zombies.
type ExecSupervisor struct {
	logger zerolog.Logger
}

func NewExecSupervisor(logger zerolog.Logger) *ExecSupervisor {
	return &ExecSupervisor{logger: logger.With().Str("service", "supervisor").Logger()}
}

func (s *ExecSupervisor) Restart(ctx context.Context, proc agent.ProcessInfo) (agent.ProcessInfo, error) {
	argv := strings.Fields(proc.Command)
	if len(argv) == 0 {
		return agent.ProcessInfo{}, fmt.Errorf("%w: no launch command recorded", agent.ErrRestartFailed)
	}

	s.terminate(proc.PID)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		return agent.ProcessInfo{}, fmt.Errorf("%w: start %q: %v", agent.ErrRestartFailed, argv[0], err)
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			s.logger.Warn().Err(err).Int("pid", cmd.Process.Pid).Msg("worker process exited")
		}
	}()

	s.logger.Info().
		Int("old_pid", proc.PID).
		Int("new_pid", cmd.Process.Pid).
		Str("command", proc.Command).
		Msg("worker process restarted")
	return agent.ProcessInfo{PID: cmd.Process.Pid, Command: proc.Command}, nil
}

func (s *ExecSupervisor) terminate(pid int) {
	if pid <= 0 {
		return
	}
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		s.logger.Debug().Err(err).Int("pid", pid).Msg("terminate old worker failed")
	}
}
