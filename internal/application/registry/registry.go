package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/agent-hub/agent-hub/internal/domain/agent"
)

var (
	ErrTaskAlreadyAssigned = errors.New("task already assigned")
	ErrAgentBusy           = errors.New("agent already holds an active task")
)

// Registry owns the agent records and the task-assignment table. It is not
// safe for concurrent use on purpose: the orchestrator's actor goroutine is
// the single caller, which is what keeps registry-wide operations consistent.
type Registry struct {
	maxAgents   int
	agents      map[string]*agent.Record
	assignments map[string]string // task id -> agent id
}

func New(maxAgents int) *Registry {
	return &Registry{
		maxAgents:   maxAgents,
		agents:      make(map[string]*agent.Record),
		assignments: make(map[string]string),
	}
}

// Register admits a new agent in INITIALIZING. Fails without mutation on a
// duplicate id or when the registry is at capacity.
func (r *Registry) Register(id string, capabilities []string) (*agent.Record, error) {
	if _, exists := r.agents[id]; exists {
		return nil, fmt.Errorf("%w: %s", agent.ErrDuplicateAgent, id)
	}
	if len(r.agents) >= r.maxAgents {
		return nil, fmt.Errorf("%w: limit %d", agent.ErrCapacityExceeded, r.maxAgents)
	}
	rec := agent.NewRecord(id, capabilities)
	r.agents[id] = rec
	return rec, nil
}

// Unregister removes the record. It does not touch the assignment table;
// callers clear any held task first (the recovery manager does).
func (r *Registry) Unregister(id string) error {
	if _, exists := r.agents[id]; !exists {
		return fmt.Errorf("%w: %s", agent.ErrAgentNotFound, id)
	}
	delete(r.agents, id)
	return nil
}

func (r *Registry) Get(id string) (*agent.Record, bool) {
	rec, ok := r.agents[id]
	return rec, ok
}

func (r *Registry) Count() int {
	return len(r.agents)
}

// List returns the live records in stable id order. Callers stay on the
// owning goroutine; use Snapshot for anything that leaves it.
func (r *Registry) List() []*agent.Record {
	out := make([]*agent.Record, 0, len(r.agents))
	for _, rec := range r.agents {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Snapshot returns deep copies safe to hand to other goroutines.
func (r *Registry) Snapshot() []*agent.Record {
	live := r.List()
	out := make([]*agent.Record, len(live))
	for i, rec := range live {
		out[i] = rec.Clone()
	}
	return out
}

// Assign binds a task to an agent, transitioning it to BUSY. Enforces the
// table invariants: a task appears at most once, an agent holds at most one
// active task.
func (r *Registry) Assign(taskID, agentID string) error {
	rec, ok := r.agents[agentID]
	if !ok {
		return fmt.Errorf("%w: %s", agent.ErrAgentNotFound, agentID)
	}
	if holder, dup := r.assignments[taskID]; dup {
		return fmt.Errorf("%w: task %s held by %s", ErrTaskAlreadyAssigned, taskID, holder)
	}
	if rec.CurrentTask != "" {
		return fmt.Errorf("%w: %s holds %s", ErrAgentBusy, agentID, rec.CurrentTask)
	}
	rec.Status = agent.StatusBusy
	rec.CurrentTask = taskID
	r.assignments[taskID] = agentID
	return nil
}

// Release removes a task from the assignment table, returning the agent that
// held it. The caller adjusts the agent record.
func (r *Registry) Release(taskID string) (string, bool) {
	agentID, ok := r.assignments[taskID]
	if !ok {
		return "", false
	}
	delete(r.assignments, taskID)
	return agentID, true
}

func (r *Registry) AgentForTask(taskID string) (string, bool) {
	agentID, ok := r.assignments[taskID]
	return agentID, ok
}

func (r *Registry) AssignmentCount() int {
	return len(r.assignments)
}

// Assignments returns a copy of the task-assignment table.
func (r *Registry) Assignments() map[string]string {
	out := make(map[string]string, len(r.assignments))
	for task, ag := range r.assignments {
		out[task] = ag
	}
	return out
}
