package orchestrator

import (
	"time"

	"github.com/agent-hub/agent-hub/internal/domain/agent"
)

// sweep is one health-monitor cycle. Eviction runs first, so an agent that
// times out in this cycle is only removed by a subsequent cycle (or an
// explicit CleanupFailedAgents call) if it stays critical — a heartbeat
// arriving in between revives it.
func (o *Orchestrator) sweep(now time.Time) {
	o.cleanup()

	for _, rec := range o.registry.List() {
		switch rec.Status {
		case agent.StatusShuttingDown, agent.StatusFailed:
			continue
		}
		if now.Sub(rec.LastHeartbeat) <= o.cfg.AgentTimeout {
			continue
		}
		if rec.Status != agent.StatusUnavailable {
			o.logger.Warn().
				Str("agent_id", rec.ID).
				Time("last_heartbeat", rec.LastHeartbeat).
				Msg("agent heartbeat timeout")
		}
		rec.Status = agent.StatusUnavailable
		rec.HealthScore = 0
		o.emit(rec)
		o.attemptRestart(now, rec)
	}
}
