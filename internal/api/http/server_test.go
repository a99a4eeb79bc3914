package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/agent-hub/agent-hub/internal/application/orchestrator"
	"github.com/agent-hub/agent-hub/internal/domain/knowledge"
	"github.com/agent-hub/agent-hub/internal/domain/knowledge/mocks"
	"github.com/agent-hub/agent-hub/internal/domain/message"
	"github.com/agent-hub/agent-hub/internal/infrastructure/sse"
)

func newTestOrchestrator(t *testing.T, maxAgents int) *orchestrator.Orchestrator {
	t.Helper()
	o := orchestrator.New(orchestrator.Config{
		MasterID:            "master-1",
		MaxSlaveAgents:      maxAgents,
		HealthCheckInterval: time.Hour,
		AgentTimeout:        time.Hour,
		HealthyThreshold:    50,
		CriticalThreshold:   10,
		ErrorPenalty:        20,
	}, nil, nil, nil, zerolog.Nop())
	o.Start()
	t.Cleanup(func() { _ = o.Stop(context.Background()) })
	return o
}

func newTestServer(t *testing.T, o *orchestrator.Orchestrator, store knowledge.Store, tokenHash string) http.Handler {
	t.Helper()
	return NewServer(o, store, sse.NewHub(zerolog.Nop()), tokenHash, zerolog.Nop()).Router()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func registerAgentReq(id string) map[string]interface{} {
	return map[string]interface{}{"agent_id": id, "capabilities": []string{"compute"}}
}

func TestRegisterAgentLifecycle(t *testing.T) {
	o := newTestOrchestrator(t, 1)
	h := newTestServer(t, o, nil, "")

	rec := doJSON(t, h, http.MethodPost, "/v1/agents", registerAgentReq("agent-1"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/v1/agents", registerAgentReq("agent-1"))
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/v1/agents", registerAgentReq("agent-2"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/v1/agents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Agents []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"agents"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Len(t, listing.Agents, 1)
	require.Equal(t, "agent-1", listing.Agents[0].ID)

	rec = doJSON(t, h, http.MethodDelete, "/v1/agents/agent-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/v1/agents/agent-1", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAssignTaskBackpressure(t *testing.T) {
	o := newTestOrchestrator(t, 2)
	h := newTestServer(t, o, nil, "")

	rec := doJSON(t, h, http.MethodPost, "/v1/tasks", map[string]interface{}{"task_type": "compute"})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAssignAndMessageFlow(t *testing.T) {
	o := newTestOrchestrator(t, 2)
	h := newTestServer(t, o, nil, "")

	// Register directly so we can capture outbound messages.
	require.NoError(t, o.RegisterAgent(context.Background(), "agent-1", nil, nil,
		orchestrator.SenderFunc(func(context.Context, *message.Message) error { return nil })))

	// A heartbeat posted to /v1/messages flips the agent to READY.
	hb := message.NewHealthCheck("agent-1", "master-1", message.HealthCheckPayload{
		CPUPercent: 10, MemoryMB: 100, Timestamp: time.Now(),
	})
	rec := doJSON(t, h, http.MethodPost, "/v1/messages", hb)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/v1/tasks", map[string]interface{}{
		"task_id":   "task-1",
		"task_type": "compute",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var assigned struct {
		TaskID  string `json:"task_id"`
		AgentID string `json:"agent_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &assigned))
	require.Equal(t, "task-1", assigned.TaskID)
	require.Equal(t, "agent-1", assigned.AgentID)

	rec = doJSON(t, h, http.MethodPost, "/v1/tasks", map[string]interface{}{
		"task_id":   "task-1",
		"task_type": "compute",
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/v1/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var assignments struct {
		Assignments map[string]string `json:"assignments"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &assignments))
	require.Equal(t, map[string]string{"task-1": "agent-1"}, assignments.Assignments)

	rec = doJSON(t, h, http.MethodGet, "/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st orchestrator.SystemStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	require.Equal(t, 1, st.TotalAgents)
	require.Equal(t, 1, st.BusyAgents)
}

func TestMessageFromUnknownAgentIs404(t *testing.T) {
	o := newTestOrchestrator(t, 2)
	h := newTestServer(t, o, nil, "")

	hb := message.NewHealthCheck("ghost", "master-1", message.HealthCheckPayload{Timestamp: time.Now()})
	rec := doJSON(t, h, http.MethodPost, "/v1/messages", hb)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSignalAgentUnknownIs404(t *testing.T) {
	o := newTestOrchestrator(t, 2)
	h := newTestServer(t, o, nil, "")

	rec := doJSON(t, h, http.MethodPost, "/v1/agents/ghost/signal", signalRequest{Signal: message.SignalPause})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBearerAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("sesame"), bcrypt.MinCost)
	require.NoError(t, err)

	o := newTestOrchestrator(t, 2)
	h := newTestServer(t, o, nil, string(hash))

	req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	req.Header.Set("Authorization", "Bearer sesame")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestKnowledgeEndpoints(t *testing.T) {
	store := new(mocks.MockStore)
	store.On("QuerySimilarSolutions", mock.Anything, "timeout", 20, mock.Anything).
		Return([]*knowledge.TaskRecord{{TaskID: "task-1", AgentID: "agent-1", Status: "completed"}}, nil)
	store.On("StoreLearning", mock.Anything, mock.Anything).Return(uuid.New(), nil)
	store.On("GetLearnings", mock.Anything, mock.Anything).
		Return([]*knowledge.Learning{{Topic: "retries", Content: "backoff"}}, nil)

	o := newTestOrchestrator(t, 2)
	h := newTestServer(t, o, store, "")

	rec := doJSON(t, h, http.MethodGet, "/v1/knowledge/solutions?q=timeout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "task-1")

	rec = doJSON(t, h, http.MethodGet, "/v1/knowledge/solutions", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/v1/knowledge/learnings", learningCreateRequest{
		Topic: "retries", Content: "use exponential backoff",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/v1/knowledge/learnings?topic=retries", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "backoff")
}

func TestKnowledgeStoreUnavailable(t *testing.T) {
	store := new(mocks.MockStore)
	store.On("GetLearnings", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	o := newTestOrchestrator(t, 2)

	h := newTestServer(t, o, nil, "")
	rec := doJSON(t, h, http.MethodGet, "/v1/knowledge/learnings", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h = newTestServer(t, o, store, "")
	rec = doJSON(t, h, http.MethodGet, "/v1/knowledge/learnings", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
}
