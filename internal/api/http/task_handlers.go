package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/agent-hub/agent-hub/internal/application/orchestrator"
	"github.com/agent-hub/agent-hub/internal/application/registry"
	"github.com/agent-hub/agent-hub/internal/domain/agent"
	"github.com/agent-hub/agent-hub/internal/domain/message"
)

type taskAssignRequest struct {
	TaskID     string          `json:"task_id,omitempty"`
	TaskType   string          `json:"task_type"`
	Constraint string          `json:"constraint,omitempty"`
	TaskData   json.RawMessage `json:"task_data,omitempty"`
}

func (s *Server) assignTask(w http.ResponseWriter, r *http.Request) {
	var req taskAssignRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	if req.TaskID == "" {
		req.TaskID = uuid.NewString()
	}

	agentID, err := s.orch.AssignTask(r.Context(), orchestrator.TaskRequest{
		TaskID:     req.TaskID,
		TaskType:   req.TaskType,
		Constraint: req.Constraint,
		TaskData:   req.TaskData,
	})
	if err != nil {
		switch {
		case errors.Is(err, agent.ErrNoEligibleAgent):
			respondError(w, http.StatusServiceUnavailable, "NO_ELIGIBLE_AGENT", err.Error())
		case errors.Is(err, registry.ErrTaskAlreadyAssigned):
			respondError(w, http.StatusConflict, "TASK_ALREADY_ASSIGNED", err.Error())
		default:
			respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		}
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"task_id":  req.TaskID,
		"agent_id": agentID,
	})
}

func (s *Server) listAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := s.orch.TaskAssignments(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"assignments": assignments})
}

// deliverMessage is the inbound edge for remote agents: heartbeats, task
// status updates and error reports all arrive here as protocol envelopes.
func (s *Server) deliverMessage(w http.ResponseWriter, r *http.Request) {
	var msg message.Message
	if err := decodeBody(r, &msg); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	if err := s.orch.DeliverMessage(r.Context(), &msg); err != nil {
		if errors.Is(err, agent.ErrAgentNotFound) {
			respondError(w, http.StatusNotFound, "AGENT_NOT_FOUND", err.Error())
			return
		}
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]interface{}{"delivered": true})
}

func (s *Server) systemStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.orch.SystemStatus(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, st)
}

func (s *Server) eventStream(w http.ResponseWriter, r *http.Request) {
	if s.sseHub == nil {
		respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "event stream disabled")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "streaming not supported")
		return
	}

	client := s.sseHub.Subscribe()
	defer s.sseHub.Unregister(client.ClientID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Initial comment flushes headers and keeps proxies from buffering.
	_, _ = w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case ev := <-client.Events:
			if ev == nil {
				return
			}
			payload, err := ev.Encode()
			if err != nil {
				continue
			}
			_, _ = w.Write([]byte("event: " + ev.Name + "\ndata: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}
