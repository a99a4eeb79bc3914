package registry

import (
	"errors"
	"fmt"
	"testing"

	"github.com/agent-hub/agent-hub/internal/domain/agent"
)

func TestRegisterDuplicate(t *testing.T) {
	r := New(10)
	if _, err := r.Register("agent-1", nil); err != nil {
		t.Fatalf("first register: %v", err)
	}
	rec, _ := r.Get("agent-1")
	rec.Status = agent.StatusReady

	_, err := r.Register("agent-1", []string{"build"})
	if !errors.Is(err, agent.ErrDuplicateAgent) {
		t.Fatalf("expected ErrDuplicateAgent, got %v", err)
	}
	// Existing record untouched.
	rec, _ = r.Get("agent-1")
	if rec.Status != agent.StatusReady || len(rec.Capabilities) != 0 {
		t.Fatalf("existing record mutated: %+v", rec)
	}
}

func TestRegisterCapacity(t *testing.T) {
	const max = 3
	r := New(max)
	for i := 0; i < max; i++ {
		if _, err := r.Register(fmt.Sprintf("agent-%d", i), nil); err != nil {
			t.Fatalf("register %d: %v", i, err)
		}
	}
	_, err := r.Register("agent-overflow", nil)
	if !errors.Is(err, agent.ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	if r.Count() != max {
		t.Fatalf("count changed on failed register: %d", r.Count())
	}
}

func TestUnregister(t *testing.T) {
	r := New(10)
	_, _ = r.Register("agent-1", nil)
	if err := r.Unregister("agent-1"); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	if err := r.Unregister("agent-1"); !errors.Is(err, agent.ErrAgentNotFound) {
		t.Fatalf("expected ErrAgentNotFound, got %v", err)
	}
	if r.Count() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Count())
	}
}

func TestAssignInvariants(t *testing.T) {
	r := New(10)
	_, _ = r.Register("agent-1", nil)
	_, _ = r.Register("agent-2", nil)

	if err := r.Assign("task-1", "agent-1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	rec, _ := r.Get("agent-1")
	if rec.Status != agent.StatusBusy || rec.CurrentTask != "task-1" {
		t.Fatalf("assignment did not transition record: %+v", rec)
	}

	// A task id appears at most once.
	if err := r.Assign("task-1", "agent-2"); !errors.Is(err, ErrTaskAlreadyAssigned) {
		t.Fatalf("expected ErrTaskAlreadyAssigned, got %v", err)
	}
	// An agent holds at most one active task.
	if err := r.Assign("task-2", "agent-1"); !errors.Is(err, ErrAgentBusy) {
		t.Fatalf("expected ErrAgentBusy, got %v", err)
	}
	// Unknown agent.
	if err := r.Assign("task-3", "ghost"); !errors.Is(err, agent.ErrAgentNotFound) {
		t.Fatalf("expected ErrAgentNotFound, got %v", err)
	}

	if r.AssignmentCount() != 1 {
		t.Fatalf("failed assigns must not grow the table: %d", r.AssignmentCount())
	}
}

func TestRelease(t *testing.T) {
	r := New(10)
	_, _ = r.Register("agent-1", nil)
	_ = r.Assign("task-1", "agent-1")

	agentID, ok := r.Release("task-1")
	if !ok || agentID != "agent-1" {
		t.Fatalf("release returned %q, %v", agentID, ok)
	}
	if _, ok := r.AgentForTask("task-1"); ok {
		t.Fatal("task still in assignment table")
	}
	if _, ok := r.Release("task-1"); ok {
		t.Fatal("second release must be a no-op")
	}
}

func TestSnapshotIsIsolated(t *testing.T) {
	r := New(10)
	_, _ = r.Register("agent-1", []string{"build"})

	snap := r.Snapshot()
	snap[0].Status = agent.StatusFailed
	snap[0].Capabilities[0] = "mutated"

	rec, _ := r.Get("agent-1")
	if rec.Status == agent.StatusFailed || rec.Capabilities[0] != "build" {
		t.Fatal("snapshot shares state with registry")
	}
}
