package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agent-hub/agent-hub/internal/application/balancer"
	"github.com/agent-hub/agent-hub/internal/application/registry"
	"github.com/agent-hub/agent-hub/internal/domain/agent"
	"github.com/agent-hub/agent-hub/internal/domain/knowledge"
	"github.com/agent-hub/agent-hub/internal/domain/message"
)

// ErrStopped is returned for operations submitted after Stop.
var ErrStopped = errors.New("orchestrator stopped")

const dispatchTimeout = 10 * time.Second

// Sender delivers an outbound message to one agent's endpoint.
type Sender interface {
	Send(ctx context.Context, msg *message.Message) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, msg *message.Message) error

func (f SenderFunc) Send(ctx context.Context, msg *message.Message) error {
	return f(ctx, msg)
}

// Supervisor restarts supervised worker processes. The fake used in tests
// keeps scheduling logic testable without spawning anything.
type Supervisor interface {
	Restart(ctx context.Context, proc agent.ProcessInfo) (agent.ProcessInfo, error)
}

// Events receives registry state transitions. Implementations must not
// block; they are called from the coordinating goroutine.
type Events interface {
	AgentStatusChanged(rec *agent.Record)
}

// Recorder archives task outcomes. Best-effort by contract: implementations
// swallow their own failures.
type Recorder interface {
	RecordTask(rec *knowledge.TaskRecord)
}

// TaskRequest describes a unit of work to place on an agent.
type TaskRequest struct {
	TaskID     string
	TaskType   string
	Constraint string
	TaskData   json.RawMessage
}

// SystemStatus is an aggregate read-only projection over the registry.
type SystemStatus struct {
	MasterID        string  `json:"masterId"`
	TotalAgents     int     `json:"totalAgents"`
	HealthyAgents   int     `json:"healthyAgents"`
	BusyAgents      int     `json:"busyAgents"`
	UnhealthyAgents int     `json:"unhealthyAgents"`
	ActiveTasks     int     `json:"activeTasks"`
	SystemHealth    float64 `json:"systemHealth"`
}

// Config carries the orchestrator's tunables.
type Config struct {
	MasterID            string
	MaxSlaveAgents      int
	HealthCheckInterval time.Duration
	AgentTimeout        time.Duration
	HealthyThreshold    int
	CriticalThreshold   int
	ErrorPenalty        int
}

// Orchestrator composes the registry, load balancer, health monitor and
// recovery manager behind one coordinating goroutine. Every registry
// mutation runs on that goroutine, fed by a command channel; readers get
// copied snapshots. No mutex guards the maps because nothing else touches
// them.
type Orchestrator struct {
	cfg      Config
	registry *registry.Registry
	balancer *balancer.Balancer
	senders  map[string]Sender
	// restarting tracks agents with a supervised restart in flight, so
	// sweeps neither re-restart nor evict them mid-attempt.
	restarting map[string]bool
	sup        Supervisor
	events     Events
	recorder   Recorder
	logger     zerolog.Logger

	cmds     chan func()
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

func New(cfg Config, sup Supervisor, events Events, recorder Recorder, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		registry:   registry.New(cfg.MaxSlaveAgents),
		balancer:   balancer.New(cfg.HealthyThreshold, logger),
		senders:    make(map[string]Sender),
		restarting: make(map[string]bool),
		sup:        sup,
		events:     events,
		recorder:   recorder,
		logger:     logger.With().Str("service", "orchestrator").Str("master_id", cfg.MasterID).Logger(),
		cmds:       make(chan func(), 64),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Start launches the coordinating loop and the health-check timer.
func (o *Orchestrator) Start() {
	go o.run()
}

func (o *Orchestrator) run() {
	defer close(o.done)
	ticker := time.NewTicker(o.cfg.HealthCheckInterval)
	defer ticker.Stop()
	o.logger.Info().Dur("health_check_interval", o.cfg.HealthCheckInterval).Msg("orchestrator started")
	for {
		select {
		case <-o.stop:
			return
		case fn := <-o.cmds:
			fn()
		case <-ticker.C:
			o.sweep(o.now())
		}
	}
}

// Stop halts the coordinating loop. In-flight restart attempts are left to
// resolve on their own.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.stopOnce.Do(func() { close(o.stop) })
	select {
	case <-o.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// do runs fn on the coordinating goroutine and waits for it.
func (o *Orchestrator) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		fn()
		close(done)
	}
	select {
	case o.cmds <- wrapped:
	case <-o.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-o.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// async submits fn without waiting. Used by completion callbacks that must
// never block (restart resolution, dispatch failures).
func (o *Orchestrator) async(fn func()) {
	select {
	case o.cmds <- fn:
	case <-o.stop:
	}
}

// RegisterAgent admits an agent in INITIALIZING. The sender, when present,
// is the endpoint task assignments and signals are dispatched to; proc, when
// present, enables supervised restarts.
func (o *Orchestrator) RegisterAgent(ctx context.Context, id string, capabilities []string, proc *agent.ProcessInfo, sender Sender) error {
	if id == "" {
		return errors.New("agent id is required")
	}
	var err error
	if doErr := o.do(ctx, func() {
		var rec *agent.Record
		rec, err = o.registry.Register(id, capabilities)
		if err != nil {
			return
		}
		if proc != nil {
			p := *proc
			rec.Process = &p
		}
		if sender != nil {
			o.senders[id] = sender
		}
		o.logger.Info().Str("agent_id", id).Strs("capabilities", capabilities).Msg("agent registered")
		o.emit(rec)
	}); doErr != nil {
		return doErr
	}
	return err
}

// ConfirmReady promotes an INITIALIZING agent to READY once it has confirmed
// startup. The first health sample has the same effect.
func (o *Orchestrator) ConfirmReady(ctx context.Context, id string) error {
	var err error
	if doErr := o.do(ctx, func() {
		rec, ok := o.registry.Get(id)
		if !ok {
			err = fmt.Errorf("%w: %s", agent.ErrAgentNotFound, id)
			return
		}
		if rec.Status == agent.StatusInitializing {
			rec.Status = agent.StatusReady
			o.emit(rec)
		}
	}); doErr != nil {
		return doErr
	}
	return err
}

// UnregisterAgent removes the record. Any assignment it still held is freed
// but not reassigned; that is the caller's decision.
func (o *Orchestrator) UnregisterAgent(ctx context.Context, id string) error {
	var err error
	if doErr := o.do(ctx, func() {
		rec, ok := o.registry.Get(id)
		if !ok {
			err = fmt.Errorf("%w: %s", agent.ErrAgentNotFound, id)
			return
		}
		if rec.CurrentTask != "" {
			o.registry.Release(rec.CurrentTask)
			o.logger.Warn().Str("agent_id", id).Str("task_id", rec.CurrentTask).Msg("unregistered agent still held a task; assignment freed")
		}
		err = o.registry.Unregister(id)
		delete(o.senders, id)
		o.logger.Info().Str("agent_id", id).Msg("agent unregistered")
	}); doErr != nil {
		return doErr
	}
	return err
}

// AssignTask selects the best eligible agent, binds the task to it and
// dispatches a TASK_ASSIGNMENT message. Returns the chosen agent id.
// agent.ErrNoEligibleAgent is a normal backpressure outcome: retry later.
func (o *Orchestrator) AssignTask(ctx context.Context, req TaskRequest) (string, error) {
	if req.TaskID == "" {
		req.TaskID = uuid.NewString()
	}
	var assigned string
	var err error
	if doErr := o.do(ctx, func() {
		assigned, err = o.assign(req)
	}); doErr != nil {
		return "", doErr
	}
	return assigned, err
}

func (o *Orchestrator) assign(req TaskRequest) (string, error) {
	if holder, dup := o.registry.AgentForTask(req.TaskID); dup {
		return "", fmt.Errorf("%w: task %s held by %s", registry.ErrTaskAlreadyAssigned, req.TaskID, holder)
	}
	chosen, err := o.balancer.Pick(o.registry.List(), balancer.Request{
		TaskID:     req.TaskID,
		TaskType:   req.TaskType,
		Constraint: req.Constraint,
	})
	if err != nil {
		return "", err
	}
	sender := o.senders[chosen]
	if sender == nil {
		return "", fmt.Errorf("agent %s has no message endpoint", chosen)
	}
	if err := o.registry.Assign(req.TaskID, chosen); err != nil {
		return "", err
	}
	rec, _ := o.registry.Get(chosen)
	o.emit(rec)
	o.logger.Info().Str("task_id", req.TaskID).Str("agent_id", chosen).Msg("task assigned")

	env := message.NewTaskAssignment(o.cfg.MasterID, chosen, message.TaskAssignmentPayload{
		TaskID:   req.TaskID,
		TaskType: req.TaskType,
		TaskData: req.TaskData,
	})
	go o.dispatch(chosen, req.TaskID, sender, env)
	return chosen, nil
}

// dispatch runs off the coordinating goroutine so a slow endpoint never
// stalls scheduling. A failed send is rolled back like a rejection.
func (o *Orchestrator) dispatch(agentID, taskID string, sender Sender, env *message.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()
	if err := sender.Send(ctx, env); err != nil {
		o.logger.Warn().Err(err).Str("agent_id", agentID).Str("task_id", taskID).Msg("task dispatch failed")
		o.async(func() { o.rollbackAssignment(taskID, agentID, "dispatch failed") })
	}
}

func (o *Orchestrator) rollbackAssignment(taskID, agentID, reason string) {
	holder, ok := o.registry.AgentForTask(taskID)
	if !ok || holder != agentID {
		return
	}
	o.registry.Release(taskID)
	rec, ok := o.registry.Get(agentID)
	if !ok {
		return
	}
	if rec.CurrentTask == taskID {
		rec.CurrentTask = ""
		if rec.Status == agent.StatusBusy {
			rec.Status = agent.StatusReady
		}
		o.emit(rec)
	}
	o.logger.Info().Str("task_id", taskID).Str("agent_id", agentID).Str("reason", reason).Msg("assignment rolled back")
}

// DeliverMessage routes one inbound agent message. Messages from a given
// agent are processed in arrival order.
func (o *Orchestrator) DeliverMessage(ctx context.Context, msg *message.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	var err error
	if doErr := o.do(ctx, func() {
		err = o.route(o.now(), msg)
	}); doErr != nil {
		return doErr
	}
	return err
}

// SignalAgent sends a pause/resume/shutdown coordination signal to an agent.
func (o *Orchestrator) SignalAgent(ctx context.Context, id string, sig message.Signal) error {
	switch sig {
	case message.SignalPause, message.SignalResume, message.SignalShutdown:
	default:
		return fmt.Errorf("unknown coordination signal %q", sig)
	}
	var err error
	if doErr := o.do(ctx, func() {
		rec, ok := o.registry.Get(id)
		if !ok {
			err = fmt.Errorf("%w: %s", agent.ErrAgentNotFound, id)
			return
		}
		sender := o.senders[id]
		if sender == nil {
			err = fmt.Errorf("agent %s has no message endpoint", id)
			return
		}
		if sig == message.SignalShutdown {
			rec.Status = agent.StatusShuttingDown
			o.emit(rec)
		}
		env := message.NewCoordinationSignal(o.cfg.MasterID, id, sig)
		go func() {
			sctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
			defer cancel()
			if sendErr := sender.Send(sctx, env); sendErr != nil {
				o.logger.Warn().Err(sendErr).Str("agent_id", id).Str("signal", string(sig)).Msg("signal dispatch failed")
			}
		}()
	}); doErr != nil {
		return doErr
	}
	return err
}

// SystemStatus computes the aggregate counters from a consistent snapshot.
func (o *Orchestrator) SystemStatus(ctx context.Context) (SystemStatus, error) {
	var st SystemStatus
	err := o.do(ctx, func() { st = o.systemStatus() })
	return st, err
}

func (o *Orchestrator) systemStatus() SystemStatus {
	st := SystemStatus{MasterID: o.cfg.MasterID}
	sum := 0
	for _, rec := range o.registry.List() {
		st.TotalAgents++
		sum += rec.HealthScore
		healthy := rec.Healthy(o.cfg.HealthyThreshold)
		if healthy && (rec.Status == agent.StatusReady || rec.Status == agent.StatusBusy) {
			st.HealthyAgents++
		}
		if rec.Status == agent.StatusBusy {
			st.BusyAgents++
		}
		if !healthy {
			st.UnhealthyAgents++
		}
	}
	st.ActiveTasks = o.registry.AssignmentCount()
	if st.TotalAgents > 0 {
		st.SystemHealth = float64(sum) / float64(st.TotalAgents)
	}
	return st
}

// Agents returns a deep-copied snapshot of every record.
func (o *Orchestrator) Agents(ctx context.Context) ([]*agent.Record, error) {
	var out []*agent.Record
	err := o.do(ctx, func() { out = o.registry.Snapshot() })
	return out, err
}

// TaskAssignments returns a copy of the task-assignment table.
func (o *Orchestrator) TaskAssignments(ctx context.Context) (map[string]string, error) {
	var out map[string]string
	err := o.do(ctx, func() { out = o.registry.Assignments() })
	return out, err
}

// RunHealthCheck triggers one monitor cycle immediately.
func (o *Orchestrator) RunHealthCheck(ctx context.Context) error {
	return o.do(ctx, func() { o.sweep(o.now()) })
}

func (o *Orchestrator) emit(rec *agent.Record) {
	if o.events == nil {
		return
	}
	o.events.AgentStatusChanged(rec.Clone())
}
