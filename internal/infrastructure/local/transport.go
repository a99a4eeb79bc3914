package local

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/agent-hub/agent-hub/internal/application/orchestrator"
	"github.com/agent-hub/agent-hub/internal/application/slave"
	"github.com/agent-hub/agent-hub/internal/domain/message"
)

// Pool runs slave agents inside the hub process, wired to the orchestrator
// over direct function calls instead of a network transport. Useful for
// single-binary deployments and smoke environments.
type Pool struct {
	orch   *orchestrator.Orchestrator
	agents []*slave.Agent
	logger zerolog.Logger
}

func NewPool(orch *orchestrator.Orchestrator, logger zerolog.Logger) *Pool {
	return &Pool{orch: orch, logger: logger.With().Str("service", "local-pool").Logger()}
}

// Spawn creates, registers and starts one in-process agent.
func (p *Pool) Spawn(ctx context.Context, id, masterID string, capabilities []string, executor slave.Executor, sample slave.Sampler, heartbeat time.Duration) (*slave.Agent, error) {
	up := slave.SenderFunc(func(ctx context.Context, msg *message.Message) error {
		return p.orch.DeliverMessage(ctx, msg)
	})
	a := slave.New(id, masterID, up, executor, sample, p.logger)

	down := orchestrator.SenderFunc(func(ctx context.Context, msg *message.Message) error {
		return a.HandleMessage(ctx, msg)
	})
	if err := p.orch.RegisterAgent(ctx, id, capabilities, nil, down); err != nil {
		return nil, fmt.Errorf("register local agent %s: %w", id, err)
	}

	a.Start(heartbeat)
	p.agents = append(p.agents, a)
	p.logger.Info().Str("agent_id", id).Strs("capabilities", capabilities).Msg("local agent started")
	return a, nil
}

// Stop shuts down all spawned agents.
func (p *Pool) Stop(ctx context.Context) {
	for _, a := range p.agents {
		if err := a.Stop(ctx); err != nil {
			p.logger.Warn().Err(err).Str("agent_id", a.ID()).Msg("local agent stop timed out")
		}
	}
}
