package httpapi

import (
	"net/http"

	"github.com/agent-hub/agent-hub/internal/domain/knowledge"
)

type learningCreateRequest struct {
	Topic   string   `json:"topic"`
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
}

func (s *Server) querySolutions(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "knowledge store not configured")
		return
	}
	q := r.URL.Query().Get("q")
	if q == "" {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "q required")
		return
	}
	filter := &knowledge.Filter{
		AgentID: r.URL.Query().Get("agent_id"),
		Status:  r.URL.Query().Get("status"),
	}
	records, err := s.store.QuerySimilarSolutions(r.Context(), q, parseLimit(r, 20, 100), filter)
	if err != nil {
		s.logger.Warn().Err(err).Msg("query solutions failed")
		respondError(w, http.StatusBadGateway, "STORE_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"solutions": records})
}

func (s *Server) listLearnings(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "knowledge store not configured")
		return
	}
	filter := &knowledge.Filter{
		Topic: r.URL.Query().Get("topic"),
		Limit: parseLimit(r, 20, 100),
	}
	learnings, err := s.store.GetLearnings(r.Context(), filter)
	if err != nil {
		s.logger.Warn().Err(err).Msg("list learnings failed")
		respondError(w, http.StatusBadGateway, "STORE_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"learnings": learnings})
}

func (s *Server) storeLearning(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "knowledge store not configured")
		return
	}
	var req learningCreateRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	if req.Topic == "" || req.Content == "" {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "topic and content required")
		return
	}
	id, err := s.store.StoreLearning(r.Context(), &knowledge.Learning{
		Topic:   req.Topic,
		Content: req.Content,
		Tags:    req.Tags,
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("store learning failed")
		respondError(w, http.StatusBadGateway, "STORE_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{"id": id})
}
