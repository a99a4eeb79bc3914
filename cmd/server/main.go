package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	httpapi "github.com/agent-hub/agent-hub/internal/api/http"
	appknowledge "github.com/agent-hub/agent-hub/internal/application/knowledge"
	"github.com/agent-hub/agent-hub/internal/application/orchestrator"
	"github.com/agent-hub/agent-hub/internal/config"
	domainknowledge "github.com/agent-hub/agent-hub/internal/domain/knowledge"
	"github.com/agent-hub/agent-hub/internal/domain/message"
	"github.com/agent-hub/agent-hub/internal/infrastructure/local"
	"github.com/agent-hub/agent-hub/internal/infrastructure/postgres"
	"github.com/agent-hub/agent-hub/internal/infrastructure/sse"
	"github.com/agent-hub/agent-hub/internal/infrastructure/supervisor"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg := config.Load(logger)
	ctx := context.Background()

	// The knowledge store is a best-effort collaborator: without a database
	// the hub runs fine, it just forgets.
	var store domainknowledge.Store
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Warn().Err(err).Msg("knowledge store unavailable, continuing without it")
		} else {
			defer pool.Close()
			if err := postgres.EnsureSchema(ctx, pool); err != nil {
				logger.Warn().Err(err).Msg("knowledge schema setup failed, continuing without store")
			} else {
				store = postgres.NewKnowledgeRepository(pool)
			}
		}
	}

	sseHub := sse.NewHub(logger)
	defer sseHub.Stop()

	recorder := appknowledge.NewRecorder(store, cfg.KnowledgeQueueSize, logger)
	sup := supervisor.NewExecSupervisor(logger)

	orch := orchestrator.New(orchestrator.Config{
		MasterID:            cfg.MasterID,
		MaxSlaveAgents:      cfg.MaxSlaveAgents,
		HealthCheckInterval: cfg.HealthCheckInterval,
		AgentTimeout:        cfg.AgentTimeout,
		HealthyThreshold:    cfg.HealthyThreshold,
		CriticalThreshold:   cfg.CriticalThreshold,
		ErrorPenalty:        cfg.ErrorPenalty,
	}, sup, sseHub, recorder, logger)
	orch.Start()

	pool := local.NewPool(orch, logger)
	for i := 0; i < cfg.LocalAgents; i++ {
		id := fmt.Sprintf("local-agent-%d", i+1)
		if _, err := pool.Spawn(ctx, id, cfg.MasterID, nil, nil, nil, cfg.HeartbeatInterval); err != nil {
			logger.Warn().Err(err).Str("agent_id", id).Msg("local agent spawn failed")
		}
	}

	apiServer := httpapi.NewServer(orch, store, sseHub, cfg.APITokenHash, logger)
	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.ServerAddr).Str("master_id", cfg.MasterID).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
	if agents, err := orch.Agents(ctxShutdown); err == nil {
		for _, rec := range agents {
			_ = orch.SignalAgent(ctxShutdown, rec.ID, message.SignalShutdown)
		}
	}
	pool.Stop(ctxShutdown)
	if err := orch.Stop(ctxShutdown); err != nil {
		logger.Warn().Err(err).Msg("orchestrator stop timed out")
	}
	if err := recorder.Close(ctxShutdown); err != nil {
		logger.Warn().Err(err).Msg("recorder close timed out")
	}
}
