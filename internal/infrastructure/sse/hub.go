package sse

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agent-hub/agent-hub/internal/domain/agent"
)

// Event is one agent lifecycle notification pushed to subscribers.
type Event struct {
	ID          string       `json:"id"`
	Name        string       `json:"event"`
	AgentID     string       `json:"agentId"`
	Status      agent.Status `json:"status"`
	HealthScore int          `json:"healthScore"`
	TaskID      string       `json:"taskId,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

// Encode renders the event payload for the wire.
func (ev *Event) Encode() ([]byte, error) {
	return json.Marshal(ev)
}

// Client is one active SSE connection.
type Client struct {
	ClientID    string
	ConnectedAt time.Time
	Events      chan *Event

	closeOnce sync.Once
}

func NewClient() *Client {
	return &Client{
		ClientID:    uuid.New().String(),
		ConnectedAt: time.Now().UTC(),
		Events:      make(chan *Event, 100),
	}
}

func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.Events) })
}

// Hub fans agent status transitions out to SSE clients. It implements the
// orchestrator's event sink, so delivery never blocks: slow clients get
// events dropped rather than stalling the scheduling loop.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger.With().Str("service", "sse").Logger(),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ClientID] = client
}

// Subscribe creates and registers a new client in one step.
func (h *Hub) Subscribe() *Client {
	c := NewClient()
	h.Register(c)
	return c
}

func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[clientID]; ok {
		c.Close()
		delete(h.clients, clientID)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// AgentStatusChanged broadcasts a registry transition to all clients.
func (h *Hub) AgentStatusChanged(rec *agent.Record) {
	h.Broadcast(&Event{
		ID:          uuid.New().String(),
		Name:        "agent_status",
		AgentID:     rec.ID,
		Status:      rec.Status,
		HealthScore: rec.HealthScore,
		TaskID:      rec.CurrentTask,
		Timestamp:   time.Now().UTC(),
	})
}

func (h *Hub) Broadcast(ev *Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if !trySend(c, ev) {
			h.logger.Debug().Str("client_id", c.ClientID).Msg("client buffer full, event dropped")
		}
	}
}

func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.Close()
		delete(h.clients, id)
	}
}

func trySend(c *Client, ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}
