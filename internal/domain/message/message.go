package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Type tags the envelope payload.
type Type string

const (
	TypeTaskAssignment     Type = "TASK_ASSIGNMENT"
	TypeHealthCheck        Type = "HEALTH_CHECK"
	TypeTaskStatusUpdate   Type = "TASK_STATUS_UPDATE"
	TypeErrorReport        Type = "ERROR_REPORT"
	TypeCoordinationSignal Type = "COORDINATION_SIGNAL"
)

// Signal is an out-of-band control instruction, distinct from task work.
type Signal string

const (
	SignalPause    Signal = "pause"
	SignalResume   Signal = "resume"
	SignalShutdown Signal = "shutdown"
)

// TaskStatus is the outcome an agent reports for an assigned task.
type TaskStatus string

const (
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	// TaskRejected means the agent declined the assignment (busy or paused);
	// the orchestrator must route the task elsewhere.
	TaskRejected TaskStatus = "rejected"
)

var (
	ErrRejected    = errors.New("task rejected by agent")
	ErrUnknownType = errors.New("unknown message type")
)

// Message is the typed envelope exchanged between master and slave agents.
type Message struct {
	Type        Type            `json:"type"`
	SenderID    string          `json:"senderId"`
	RecipientID string          `json:"recipientId"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// TaskAssignmentPayload carries a unit of work to an agent.
type TaskAssignmentPayload struct {
	TaskID   string          `json:"taskId"`
	TaskType string          `json:"taskType,omitempty"`
	TaskData json.RawMessage `json:"taskData,omitempty"`
}

// HealthCheckPayload carries a self-reported resource sample.
type HealthCheckPayload struct {
	CPUPercent float64   `json:"cpuPercent"`
	MemoryMB   float64   `json:"memoryMb"`
	Timestamp  time.Time `json:"timestamp"`
}

// TaskStatusUpdatePayload reports a task outcome back to the master.
type TaskStatusUpdatePayload struct {
	TaskID  string     `json:"taskId"`
	Status  TaskStatus `json:"status"`
	Message string     `json:"message,omitempty"`
}

// ErrorReportPayload reports an agent-side fault unrelated to a specific task.
type ErrorReportPayload struct {
	ErrorType string          `json:"errorType"`
	Message   string          `json:"message"`
	Details   json.RawMessage `json:"details,omitempty"`
}

// CoordinationSignalPayload carries a pause/resume/shutdown instruction.
type CoordinationSignalPayload struct {
	Signal Signal `json:"signalType"`
}

// New builds an envelope around an arbitrary payload.
func New(t Type, sender, recipient string, payload interface{}) (*Message, error) {
	var body json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", t, err)
		}
		body = b
	}
	return &Message{
		Type:        t,
		SenderID:    sender,
		RecipientID: recipient,
		Payload:     body,
		Timestamp:   time.Now().UTC(),
	}, nil
}

func mustNew(t Type, sender, recipient string, payload interface{}) *Message {
	m, err := New(t, sender, recipient, payload)
	if err != nil {
		// Only reachable with a payload type that cannot marshal; the typed
		// constructors below never pass one.
		panic(err)
	}
	return m
}

func NewTaskAssignment(sender, recipient string, p TaskAssignmentPayload) *Message {
	return mustNew(TypeTaskAssignment, sender, recipient, p)
}

func NewHealthCheck(sender, recipient string, p HealthCheckPayload) *Message {
	return mustNew(TypeHealthCheck, sender, recipient, p)
}

func NewTaskStatusUpdate(sender, recipient string, p TaskStatusUpdatePayload) *Message {
	return mustNew(TypeTaskStatusUpdate, sender, recipient, p)
}

func NewErrorReport(sender, recipient string, p ErrorReportPayload) *Message {
	return mustNew(TypeErrorReport, sender, recipient, p)
}

func NewCoordinationSignal(sender, recipient string, sig Signal) *Message {
	return mustNew(TypeCoordinationSignal, sender, recipient, CoordinationSignalPayload{Signal: sig})
}

// Validate checks envelope well-formedness before routing.
func (m *Message) Validate() error {
	switch m.Type {
	case TypeTaskAssignment, TypeHealthCheck, TypeTaskStatusUpdate, TypeErrorReport, TypeCoordinationSignal:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
	}
	if m.SenderID == "" {
		return errors.New("senderId is required")
	}
	if m.RecipientID == "" {
		return errors.New("recipientId is required")
	}
	return nil
}

func (m *Message) decode(want Type, out interface{}) error {
	if m.Type != want {
		return fmt.Errorf("message is %s, not %s", m.Type, want)
	}
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s payload is empty", want)
	}
	return json.Unmarshal(m.Payload, out)
}

func (m *Message) TaskAssignment() (TaskAssignmentPayload, error) {
	var p TaskAssignmentPayload
	err := m.decode(TypeTaskAssignment, &p)
	return p, err
}

func (m *Message) HealthCheck() (HealthCheckPayload, error) {
	var p HealthCheckPayload
	err := m.decode(TypeHealthCheck, &p)
	return p, err
}

func (m *Message) TaskStatusUpdate() (TaskStatusUpdatePayload, error) {
	var p TaskStatusUpdatePayload
	err := m.decode(TypeTaskStatusUpdate, &p)
	return p, err
}

func (m *Message) ErrorReport() (ErrorReportPayload, error) {
	var p ErrorReportPayload
	err := m.decode(TypeErrorReport, &p)
	return p, err
}

func (m *Message) CoordinationSignal() (CoordinationSignalPayload, error) {
	var p CoordinationSignalPayload
	err := m.decode(TypeCoordinationSignal, &p)
	return p, err
}
