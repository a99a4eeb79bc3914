package orchestrator

import (
	"fmt"
	"time"

	"github.com/agent-hub/agent-hub/internal/domain/agent"
	"github.com/agent-hub/agent-hub/internal/domain/knowledge"
	"github.com/agent-hub/agent-hub/internal/domain/message"
)

// route dispatches one inbound message by type. Runs on the coordinating
// goroutine.
func (o *Orchestrator) route(now time.Time, msg *message.Message) error {
	rec, ok := o.registry.Get(msg.SenderID)
	if !ok {
		return fmt.Errorf("%w: %s", agent.ErrAgentNotFound, msg.SenderID)
	}
	switch msg.Type {
	case message.TypeHealthCheck:
		return o.handleHealthCheck(now, rec, msg)
	case message.TypeTaskStatusUpdate:
		return o.handleTaskStatus(now, rec, msg)
	case message.TypeErrorReport:
		return o.handleErrorReport(now, rec, msg)
	case message.TypeCoordinationSignal:
		// Signal acknowledgements carry no state beyond liveness.
		rec.Touch(now)
		return nil
	case message.TypeTaskAssignment:
		return fmt.Errorf("task assignments originate from the master, not agent %s", msg.SenderID)
	default:
		return fmt.Errorf("%w: %q", message.ErrUnknownType, msg.Type)
	}
}

func (o *Orchestrator) handleHealthCheck(now time.Time, rec *agent.Record, msg *message.Message) error {
	p, err := msg.HealthCheck()
	if err != nil {
		return err
	}
	// Score before touching the heartbeat, so a sample after a long silence
	// still carries the age penalty.
	rec.UpdateHealth(p.CPUPercent, p.MemoryMB, now)
	rec.Touch(now)

	// A heartbeat confirms startup and un-marks an unavailable agent.
	if rec.Status == agent.StatusInitializing || rec.Status == agent.StatusUnavailable {
		if rec.CurrentTask != "" {
			rec.Status = agent.StatusBusy
		} else {
			rec.Status = agent.StatusReady
		}
	}
	o.emit(rec)
	return nil
}

func (o *Orchestrator) handleTaskStatus(now time.Time, rec *agent.Record, msg *message.Message) error {
	p, err := msg.TaskStatusUpdate()
	if err != nil {
		return err
	}
	rec.Touch(now)

	switch p.Status {
	case message.TaskCompleted, message.TaskFailed, message.TaskRejected:
	default:
		return fmt.Errorf("unknown task status %q from agent %s", p.Status, rec.ID)
	}

	if holder, assigned := o.registry.AgentForTask(p.TaskID); assigned {
		if holder == rec.ID {
			o.registry.Release(p.TaskID)
		} else {
			o.logger.Warn().Str("task_id", p.TaskID).Str("holder", holder).Str("sender", rec.ID).Msg("status update from non-holder ignored for assignment table")
		}
	}
	if rec.CurrentTask == p.TaskID {
		rec.CurrentTask = ""
		if rec.Status == agent.StatusBusy {
			rec.Status = agent.StatusReady
		}
	}

	if p.Status == message.TaskCompleted {
		rec.Resources.TasksCompleted++
	}
	o.logger.Info().Str("task_id", p.TaskID).Str("agent_id", rec.ID).Str("status", string(p.Status)).Msg("task status update")
	o.emit(rec)

	// Rejections are scheduling noise, not history.
	if p.Status != message.TaskRejected && o.recorder != nil {
		o.recorder.RecordTask(&knowledge.TaskRecord{
			TaskID:    p.TaskID,
			AgentID:   rec.ID,
			Status:    string(p.Status),
			Summary:   p.Message,
			CreatedAt: now,
		})
	}
	return nil
}

func (o *Orchestrator) handleErrorReport(now time.Time, rec *agent.Record, msg *message.Message) error {
	p, err := msg.ErrorReport()
	if err != nil {
		return err
	}
	rec.Touch(now)

	rec.HealthScore -= o.cfg.ErrorPenalty
	if rec.HealthScore < 0 {
		rec.HealthScore = 0
	}
	o.logger.Warn().Str("agent_id", rec.ID).Str("error_type", p.ErrorType).Str("message", p.Message).Int("health_score", rec.HealthScore).Msg("agent error report")

	if rec.HealthScore <= o.cfg.CriticalThreshold && rec.Status != agent.StatusShuttingDown {
		rec.Status = agent.StatusFailed
	}
	o.emit(rec)
	return nil
}
