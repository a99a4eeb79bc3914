package slave

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/agent-hub/agent-hub/internal/domain/agent"
	"github.com/agent-hub/agent-hub/internal/domain/message"
)

const sendTimeout = 10 * time.Second

// Sender delivers a message to the master orchestrator.
type Sender interface {
	Send(ctx context.Context, msg *message.Message) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, msg *message.Message) error

func (f SenderFunc) Send(ctx context.Context, msg *message.Message) error {
	return f(ctx, msg)
}

// Executor runs a task's payload. What execution actually means is up to the
// embedding process; the state machine only cares about success or failure.
type Executor interface {
	Execute(ctx context.Context, taskID string, data json.RawMessage) error
}

// Sampler reports local resource usage for health reports.
type Sampler func() (cpuPercent, memoryMB float64)

// Agent is the slave-side state machine: INITIALIZING -> READY <-> WORKING,
// with SHUTTING_DOWN and FAILED terminal. It owns its local execution state
// and reports summaries to the master via messages; it never touches the
// orchestrator's records directly.
type Agent struct {
	id       string
	masterID string
	out      Sender
	executor Executor
	sample   Sampler
	logger   zerolog.Logger

	mu          sync.Mutex
	state       agent.Status
	paused      bool
	currentTask string
	taskStarted time.Time
	completed   int

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func New(id, masterID string, out Sender, executor Executor, sample Sampler, logger zerolog.Logger) *Agent {
	if sample == nil {
		sample = func() (float64, float64) { return 0, 0 }
	}
	return &Agent{
		id:       id,
		masterID: masterID,
		out:      out,
		executor: executor,
		sample:   sample,
		logger:   logger.With().Str("service", "slave").Str("agent_id", id).Logger(),
		state:    agent.StatusInitializing,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (a *Agent) ID() string { return a.id }

// State returns the current lifecycle state.
func (a *Agent) State() agent.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// CurrentTask returns the in-flight task id, empty when idle.
func (a *Agent) CurrentTask() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentTask
}

// TasksCompleted returns how many tasks finished successfully.
func (a *Agent) TasksCompleted() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.completed
}

// Paused reports whether new task acceptance is suspended.
func (a *Agent) Paused() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.paused
}

// Start transitions to READY, announces itself with a health report and
// begins the periodic heartbeat loop.
func (a *Agent) Start(interval time.Duration) {
	a.mu.Lock()
	if a.state == agent.StatusInitializing {
		a.state = agent.StatusReady
	}
	a.mu.Unlock()
	a.reportHealth()
	go a.heartbeatLoop(interval)
}

func (a *Agent) heartbeatLoop(interval time.Duration) {
	defer close(a.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-a.stop:
			return
		case <-ticker.C:
			a.reportHealth()
		}
	}
}

// Stop halts the heartbeat loop. In-flight work is not aborted.
func (a *Agent) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() { close(a.stop) })
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandleMessage is the inbound entry point for messages from the master.
func (a *Agent) HandleMessage(ctx context.Context, msg *message.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	switch msg.Type {
	case message.TypeTaskAssignment:
		return a.handleAssignment(ctx, msg)
	case message.TypeHealthCheck:
		// A health-check request: reply with a fresh sample.
		a.reportHealth()
		return nil
	case message.TypeCoordinationSignal:
		return a.handleSignal(msg)
	case message.TypeTaskStatusUpdate, message.TypeErrorReport:
		return fmt.Errorf("unexpected %s message on agent %s", msg.Type, a.id)
	default:
		return fmt.Errorf("%w: %q", message.ErrUnknownType, msg.Type)
	}
}

func (a *Agent) handleAssignment(ctx context.Context, msg *message.Message) error {
	p, err := msg.TaskAssignment()
	if err != nil {
		return err
	}

	a.mu.Lock()
	switch {
	case a.state == agent.StatusShuttingDown || a.state == agent.StatusFailed:
		a.mu.Unlock()
		a.rejectTask(p.TaskID, "agent is "+string(a.State()))
		return message.ErrRejected
	case a.paused:
		a.mu.Unlock()
		a.rejectTask(p.TaskID, "agent is paused")
		return message.ErrRejected
	case a.state == agent.StatusBusy:
		// Never queue a second task locally.
		held := a.currentTask
		a.mu.Unlock()
		a.rejectTask(p.TaskID, "already working on "+held)
		return message.ErrRejected
	}
	a.state = agent.StatusBusy
	a.currentTask = p.TaskID
	a.taskStarted = time.Now().UTC()
	a.mu.Unlock()

	a.logger.Info().Str("task_id", p.TaskID).Str("task_type", p.TaskType).Msg("task accepted")
	go a.execute(p.TaskID, p.TaskData)
	return nil
}

func (a *Agent) execute(taskID string, data json.RawMessage) {
	var err error
	if a.executor != nil {
		err = a.executor.Execute(context.Background(), taskID, data)
	}
	a.finish(taskID, err)
}

func (a *Agent) finish(taskID string, execErr error) {
	a.mu.Lock()
	a.currentTask = ""
	if execErr == nil {
		a.completed++
	}
	if a.state == agent.StatusBusy {
		a.state = agent.StatusReady
	}
	elapsed := time.Since(a.taskStarted)
	a.mu.Unlock()

	status := message.TaskCompleted
	note := fmt.Sprintf("finished in %s", elapsed.Round(time.Millisecond))
	if execErr != nil {
		status = message.TaskFailed
		note = execErr.Error()
		a.logger.Warn().Err(execErr).Str("task_id", taskID).Msg("task failed")
	} else {
		a.logger.Info().Str("task_id", taskID).Dur("elapsed", elapsed).Msg("task completed")
	}
	a.send(message.NewTaskStatusUpdate(a.id, a.masterID, message.TaskStatusUpdatePayload{
		TaskID:  taskID,
		Status:  status,
		Message: note,
	}))
}

func (a *Agent) handleSignal(msg *message.Message) error {
	p, err := msg.CoordinationSignal()
	if err != nil {
		return err
	}

	a.mu.Lock()
	if a.state == agent.StatusShuttingDown {
		// Terminal: no further signals are honored.
		a.mu.Unlock()
		return nil
	}
	switch p.Signal {
	case message.SignalPause:
		a.paused = true
	case message.SignalResume:
		a.paused = false
	case message.SignalShutdown:
		a.state = agent.StatusShuttingDown
	default:
		a.mu.Unlock()
		return fmt.Errorf("unknown coordination signal %q", p.Signal)
	}
	a.mu.Unlock()

	a.logger.Info().Str("signal", string(p.Signal)).Msg("coordination signal applied")
	if p.Signal == message.SignalShutdown {
		a.stopOnce.Do(func() { close(a.stop) })
	}
	return nil
}

// reportHealth samples local resources and sends a HEALTH_CHECK message.
func (a *Agent) reportHealth() {
	cpu, mem := a.sample()
	a.send(message.NewHealthCheck(a.id, a.masterID, message.HealthCheckPayload{
		CPUPercent: cpu,
		MemoryMB:   mem,
		Timestamp:  time.Now().UTC(),
	}))
}

// ReportError sends an ERROR_REPORT for a fault outside any task.
func (a *Agent) ReportError(errorType, msg string, details json.RawMessage) {
	a.send(message.NewErrorReport(a.id, a.masterID, message.ErrorReportPayload{
		ErrorType: errorType,
		Message:   msg,
		Details:   details,
	}))
}

func (a *Agent) rejectTask(taskID, reason string) {
	a.logger.Info().Str("task_id", taskID).Str("reason", reason).Msg("task rejected")
	a.send(message.NewTaskStatusUpdate(a.id, a.masterID, message.TaskStatusUpdatePayload{
		TaskID:  taskID,
		Status:  message.TaskRejected,
		Message: reason,
	}))
}

func (a *Agent) send(msg *message.Message) {
	if a.out == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := a.out.Send(ctx, msg); err != nil {
		a.logger.Warn().Err(err).Str("type", string(msg.Type)).Msg("send to master failed")
	}
}
