package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agent-hub/agent-hub/internal/application/orchestrator"
	"github.com/agent-hub/agent-hub/internal/domain/agent"
	"github.com/agent-hub/agent-hub/internal/domain/message"
)

type agentRegisterRequest struct {
	AgentID      string   `json:"agent_id"`
	Capabilities []string `json:"capabilities,omitempty"`
	CallbackURL  string   `json:"callback_url,omitempty"`
	PID          int      `json:"pid,omitempty"`
	Command      string   `json:"command,omitempty"`
}

type signalRequest struct {
	Signal message.Signal `json:"signal"`
}

func (s *Server) registerAgent(w http.ResponseWriter, r *http.Request) {
	var req agentRegisterRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	if req.AgentID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "agent_id required")
		return
	}

	var proc *agent.ProcessInfo
	if req.Command != "" || req.PID > 0 {
		proc = &agent.ProcessInfo{PID: req.PID, Command: req.Command}
	}
	var sender orchestrator.Sender
	if req.CallbackURL != "" {
		sender = newCallbackSender(req.CallbackURL)
	}

	if err := s.orch.RegisterAgent(r.Context(), req.AgentID, req.Capabilities, proc, sender); err != nil {
		switch {
		case errors.Is(err, agent.ErrDuplicateAgent):
			respondError(w, http.StatusConflict, "DUPLICATE_AGENT", err.Error())
		case errors.Is(err, agent.ErrCapacityExceeded):
			respondError(w, http.StatusTooManyRequests, "CAPACITY_EXCEEDED", err.Error())
		default:
			respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		}
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{"agent_id": req.AgentID})
}

func (s *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.orch.Agents(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"agents": agents})
}

func (s *Server) unregisterAgent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "agentId")
	if err := s.orch.UnregisterAgent(r.Context(), id); err != nil {
		if errors.Is(err, agent.ErrAgentNotFound) {
			respondError(w, http.StatusNotFound, "AGENT_NOT_FOUND", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"agent_id": id})
}

func (s *Server) signalAgent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "agentId")
	var req signalRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	if err := s.orch.SignalAgent(r.Context(), id, req.Signal); err != nil {
		if errors.Is(err, agent.ErrAgentNotFound) {
			respondError(w, http.StatusNotFound, "AGENT_NOT_FOUND", err.Error())
			return
		}
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"agent_id": id, "signal": req.Signal})
}

// newCallbackSender delivers orchestrator messages to a remote agent by
// POSTing the JSON envelope to its callback URL.
func newCallbackSender(url string) orchestrator.Sender {
	client := &http.Client{}
	return orchestrator.SenderFunc(func(ctx context.Context, msg *message.Message) error {
		body, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return fmt.Errorf("callback %s returned %d", url, resp.StatusCode)
		}
		return nil
	})
}
