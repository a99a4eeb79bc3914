package agent

import (
	"testing"
	"time"
)

func TestNewRecord(t *testing.T) {
	rec := NewRecord("agent-1", []string{"build", "test"})
	if rec.Status != StatusInitializing {
		t.Fatalf("expected INITIALIZING, got %s", rec.Status)
	}
	if rec.HealthScore != 100 {
		t.Fatalf("expected score 100, got %d", rec.HealthScore)
	}
	if rec.CurrentTask != "" {
		t.Fatal("new record must not hold a task")
	}
	if rec.LastHeartbeat.IsZero() || rec.RegisteredAt.IsZero() {
		t.Fatal("timestamps must be set")
	}
}

func TestHasCapability(t *testing.T) {
	rec := NewRecord("agent-1", []string{"build", "deploy"})
	if !rec.HasCapability("build") {
		t.Fatal("expected build capability")
	}
	if rec.HasCapability("review") {
		t.Fatal("unexpected review capability")
	}
	if !rec.HasCapability("") {
		t.Fatal("empty tag must match any agent")
	}
}

func TestUpdateHealthSetsResources(t *testing.T) {
	rec := NewRecord("agent-1", nil)
	now := rec.LastHeartbeat.Add(time.Second)
	rec.UpdateHealth(42, 256, now)
	if rec.Resources.CPUPercent != 42 || rec.Resources.MemoryMB != 256 {
		t.Fatalf("resource sample not stored: %+v", rec.Resources)
	}
	if rec.HealthScore != Score(42, 256, time.Second) {
		t.Fatalf("score not recomputed: %d", rec.HealthScore)
	}
}

func TestCloneIsDeep(t *testing.T) {
	rec := NewRecord("agent-1", []string{"build"})
	rec.Process = &ProcessInfo{PID: 1234, Command: "worker --serve"}

	clone := rec.Clone()
	clone.Capabilities[0] = "mutated"
	clone.Process.PID = 9999
	clone.Status = StatusFailed

	if rec.Capabilities[0] != "build" {
		t.Fatal("clone shares capabilities slice")
	}
	if rec.Process.PID != 1234 {
		t.Fatal("clone shares process info")
	}
	if rec.Status != StatusInitializing {
		t.Fatal("clone shares status")
	}
}
