package orchestrator

import (
	"context"
	"time"

	"github.com/agent-hub/agent-hub/internal/domain/agent"
)

// attemptRestart asks the supervisor to restart the agent's process. Without
// a process handle (or a supervisor) there is nothing to restart and the
// agent goes straight to FAILED. The attempt itself runs off the actor
// goroutine and resolves asynchronously; it is never forcibly cancelled.
func (o *Orchestrator) attemptRestart(now time.Time, rec *agent.Record) {
	if o.restarting[rec.ID] {
		return
	}
	if rec.Process == nil || o.sup == nil {
		rec.Status = agent.StatusFailed
		o.logger.Warn().Str("agent_id", rec.ID).Err(agent.ErrRestartFailed).Msg("no process handle, agent marked failed")
		o.emit(rec)
		return
	}
	o.restarting[rec.ID] = true
	id := rec.ID
	proc := *rec.Process
	o.logger.Info().Str("agent_id", id).Int("pid", proc.PID).Msg("attempting supervised restart")
	go func() {
		newProc, err := o.sup.Restart(context.Background(), proc)
		o.async(func() { o.resolveRestart(id, newProc, err) })
	}()
}

func (o *Orchestrator) resolveRestart(id string, proc agent.ProcessInfo, restartErr error) {
	delete(o.restarting, id)
	rec, ok := o.registry.Get(id)
	if !ok {
		return
	}
	if restartErr != nil {
		o.logger.Warn().Err(restartErr).Str("agent_id", id).Msg("restart failed, agent marked failed")
		rec.Status = agent.StatusFailed
		o.emit(rec)
		return
	}
	// Back to the registration lifecycle: the restarted process confirms
	// startup with its first health sample.
	rec.Process = &proc
	rec.Status = agent.StatusInitializing
	rec.HealthScore = 0
	rec.Touch(o.now())
	o.logger.Info().Str("agent_id", id).Int("pid", proc.PID).Msg("agent restarted")
	o.emit(rec)
}

// cleanup deregisters every agent that is FAILED or whose score sits at or
// below the critical threshold, freeing their task assignments for
// reassignment. Idempotent: with no new failures a second run is a no-op.
// Agents still INITIALIZING or mid-restart are left alone.
func (o *Orchestrator) cleanup() int {
	removed := 0
	for _, rec := range o.registry.List() {
		if o.restarting[rec.ID] || rec.Status == agent.StatusInitializing {
			continue
		}
		if rec.Status != agent.StatusFailed && rec.HealthScore > o.cfg.CriticalThreshold {
			continue
		}
		if rec.CurrentTask != "" {
			o.registry.Release(rec.CurrentTask)
			o.logger.Info().Str("agent_id", rec.ID).Str("task_id", rec.CurrentTask).Msg("task freed for reassignment")
			rec.CurrentTask = ""
		}
		_ = o.registry.Unregister(rec.ID)
		delete(o.senders, rec.ID)
		rec.Status = agent.StatusFailed
		o.emit(rec)
		o.logger.Warn().Str("agent_id", rec.ID).Int("health_score", rec.HealthScore).Msg("unrecoverable agent evicted")
		removed++
	}
	return removed
}

// CleanupFailedAgents runs the recovery pass immediately, returning how many
// agents were evicted.
func (o *Orchestrator) CleanupFailedAgents(ctx context.Context) (int, error) {
	var removed int
	err := o.do(ctx, func() { removed = o.cleanup() })
	return removed, err
}
