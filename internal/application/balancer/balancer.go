package balancer

import (
	"errors"
	"fmt"

	"github.com/Knetic/govaluate"
	"github.com/rs/zerolog"

	"github.com/agent-hub/agent-hub/internal/domain/agent"
)

// Request describes a task looking for an agent.
type Request struct {
	TaskID string
	// TaskType restricts candidates to agents carrying the tag. Empty
	// matches everyone.
	TaskType string
	// Constraint is an optional boolean expression evaluated against each
	// candidate's attributes (healthScore, cpuPercent, memoryMb,
	// tasksCompleted).
	Constraint string
}

// Balancer selects the best eligible agent for a task. Selection only; the
// orchestrator applies the resulting transition.
type Balancer struct {
	healthyThreshold int
	logger           zerolog.Logger
}

func New(healthyThreshold int, logger zerolog.Logger) *Balancer {
	return &Balancer{
		healthyThreshold: healthyThreshold,
		logger:           logger.With().Str("service", "balancer").Logger(),
	}
}

// Pick returns the id of the best READY, healthy candidate: highest health
// score wins, ties prefer an agent with no pending task, then the lower id
// for determinism. Greedy and health-weighted rather than round-robin, so
// work is routed away from degrading agents before they fail.
func (b *Balancer) Pick(candidates []*agent.Record, req Request) (string, error) {
	var expr *govaluate.EvaluableExpression
	if req.Constraint != "" {
		var err error
		expr, err = govaluate.NewEvaluableExpression(req.Constraint)
		if err != nil {
			return "", fmt.Errorf("invalid task constraint: %w", err)
		}
	}

	var best *agent.Record
	for _, rec := range candidates {
		if rec.Status != agent.StatusReady || !rec.Healthy(b.healthyThreshold) {
			continue
		}
		if !rec.HasCapability(req.TaskType) {
			continue
		}
		if expr != nil {
			ok, err := evalConstraint(expr, rec)
			if err != nil {
				b.logger.Warn().Err(err).
					Str("task_id", req.TaskID).
					Str("agent_id", rec.ID).
					Msg("constraint evaluation failed; agent excluded")
				continue
			}
			if !ok {
				continue
			}
		}
		if better(rec, best) {
			best = rec
		}
	}

	if best == nil {
		return "", agent.ErrNoEligibleAgent
	}
	return best.ID, nil
}

func better(candidate, incumbent *agent.Record) bool {
	if incumbent == nil {
		return true
	}
	if candidate.HealthScore != incumbent.HealthScore {
		return candidate.HealthScore > incumbent.HealthScore
	}
	if (candidate.CurrentTask == "") != (incumbent.CurrentTask == "") {
		return candidate.CurrentTask == ""
	}
	return candidate.ID < incumbent.ID
}

func evalConstraint(expr *govaluate.EvaluableExpression, rec *agent.Record) (bool, error) {
	params := map[string]interface{}{
		"healthScore":    float64(rec.HealthScore),
		"cpuPercent":     rec.Resources.CPUPercent,
		"memoryMb":       rec.Resources.MemoryMB,
		"tasksCompleted": float64(rec.Resources.TasksCompleted),
	}
	result, err := expr.Evaluate(params)
	if err != nil {
		return false, err
	}
	ok, isBool := result.(bool)
	if !isBool {
		return false, errors.New("constraint did not evaluate to boolean")
	}
	return ok, nil
}
