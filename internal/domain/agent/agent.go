package agent

import (
	"errors"
	"time"
)

// Status represents agent lifecycle status.
type Status string

const (
	StatusInitializing Status = "INITIALIZING"
	StatusReady        Status = "READY"
	StatusBusy         Status = "BUSY"
	StatusUnavailable  Status = "UNAVAILABLE"
	StatusFailed       Status = "FAILED"
	StatusShuttingDown Status = "SHUTTING_DOWN"
)

var (
	ErrDuplicateAgent   = errors.New("agent id already registered")
	ErrCapacityExceeded = errors.New("agent capacity exceeded")
	ErrAgentNotFound    = errors.New("agent not found")
	ErrNoEligibleAgent  = errors.New("no eligible agent available")
	ErrRestartFailed    = errors.New("agent restart failed")
)

// ResourceUsage holds the latest self-reported resource sample plus the
// cumulative completed-task counter.
type ResourceUsage struct {
	CPUPercent     float64 `json:"cpuPercent"`
	MemoryMB       float64 `json:"memoryMb"`
	TasksCompleted int     `json:"tasksCompleted"`
}

// ProcessInfo identifies the external worker process backing an agent.
// Absence means a supervised restart is never attempted.
type ProcessInfo struct {
	PID     int    `json:"pid"`
	Command string `json:"command,omitempty"`
}

// Record is the orchestrator's view of one slave agent.
type Record struct {
	ID            string         `json:"id"`
	Capabilities  []string       `json:"capabilities,omitempty"`
	Status        Status         `json:"status"`
	HealthScore   int            `json:"healthScore"`
	LastHeartbeat time.Time      `json:"lastHeartbeat"`
	CurrentTask   string         `json:"currentTask,omitempty"`
	Resources     ResourceUsage  `json:"resourceUsage"`
	Process       *ProcessInfo   `json:"processInfo,omitempty"`
	RegisteredAt  time.Time      `json:"registeredAt"`
}

// NewRecord creates a record in INITIALIZING with a full health score and a
// fresh heartbeat.
func NewRecord(id string, capabilities []string) *Record {
	now := time.Now().UTC()
	return &Record{
		ID:            id,
		Capabilities:  append([]string(nil), capabilities...),
		Status:        StatusInitializing,
		HealthScore:   100,
		LastHeartbeat: now,
		RegisteredAt:  now,
	}
}

// HasCapability reports whether the agent carries the given task-type tag.
// The empty tag matches every agent.
func (r *Record) HasCapability(tag string) bool {
	if tag == "" {
		return true
	}
	for _, c := range r.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}

// Touch resets the heartbeat clock. Called for every inbound message.
func (r *Record) Touch(now time.Time) {
	r.LastHeartbeat = now
}

// UpdateHealth applies a resource sample and recomputes the health score.
func (r *Record) UpdateHealth(cpuPercent, memoryMB float64, now time.Time) {
	r.Resources.CPUPercent = cpuPercent
	r.Resources.MemoryMB = memoryMB
	r.HealthScore = Score(cpuPercent, memoryMB, now.Sub(r.LastHeartbeat))
}

// Healthy reports whether the score clears the configured threshold.
func (r *Record) Healthy(threshold int) bool {
	return r.HealthScore > threshold
}

// Clone returns a deep copy safe to hand outside the owning goroutine.
func (r *Record) Clone() *Record {
	out := *r
	out.Capabilities = append([]string(nil), r.Capabilities...)
	if r.Process != nil {
		p := *r.Process
		out.Process = &p
	}
	return &out
}
