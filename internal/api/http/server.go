package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/agent-hub/agent-hub/internal/application/orchestrator"
	"github.com/agent-hub/agent-hub/internal/domain/knowledge"
	"github.com/agent-hub/agent-hub/internal/infrastructure/sse"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	orch      *orchestrator.Orchestrator
	store     knowledge.Store
	sseHub    *sse.Hub
	tokenHash string
	logger    zerolog.Logger
}

func NewServer(orch *orchestrator.Orchestrator, store knowledge.Store, sseHub *sse.Hub, tokenHash string, logger zerolog.Logger) *Server {
	return &Server{
		orch:      orch,
		store:     store,
		sseHub:    sseHub,
		tokenHash: tokenHash,
		logger:    logger.With().Str("service", "http").Logger(),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Route("/agents", func(r chi.Router) {
				r.Post("/", s.registerAgent)
				r.Get("/", s.listAgents)
				r.Delete("/{agentId}", s.unregisterAgent)
				r.Post("/{agentId}/signal", s.signalAgent)
			})

			r.Route("/tasks", func(r chi.Router) {
				r.Post("/", s.assignTask)
				r.Get("/", s.listAssignments)
			})

			r.Post("/messages", s.deliverMessage)
			r.Get("/status", s.systemStatus)
			r.Get("/events", s.eventStream)

			r.Route("/knowledge", func(r chi.Router) {
				r.Get("/solutions", s.querySolutions)
				r.Get("/learnings", s.listLearnings)
				r.Post("/learnings", s.storeLearning)
			})
		})
	})

	return r
}

// requireAuth checks the bearer token against the configured bcrypt hash.
// An empty hash disables authentication, which is the development default.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.tokenHash == "" {
			next.ServeHTTP(w, r)
			return
		}
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || token == r.Header.Get("Authorization") {
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "bearer token required")
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(s.tokenHash), []byte(token)); err != nil {
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Helpers
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func parseLimit(r *http.Request, defaultLimit, maxLimit int) int {
	limit := defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil {
			limit = l
		}
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit
}
