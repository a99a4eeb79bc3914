package config

import (
	"time"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
)

// Config holds service configuration. Loaded once at startup from HUB_*
// environment variables.
type Config struct {
	ServerAddr          string        `envconfig:"SERVER_ADDR" default:"0.0.0.0:8080"`
	DatabaseURL         string        `envconfig:"DATABASE_URL" default:""`
	MasterID            string        `envconfig:"MASTER_ID" default:""`
	HealthCheckInterval time.Duration `envconfig:"HEALTH_CHECK_INTERVAL" default:"30s"`
	AgentTimeout        time.Duration `envconfig:"AGENT_TIMEOUT" default:"120s"`
	MaxSlaveAgents      int           `envconfig:"MAX_SLAVE_AGENTS" default:"10"`
	HealthyThreshold    int           `envconfig:"HEALTHY_THRESHOLD" default:"50"`
	CriticalThreshold   int           `envconfig:"CRITICAL_THRESHOLD" default:"10"`
	ErrorPenalty        int           `envconfig:"ERROR_PENALTY" default:"20"`
	HeartbeatInterval   time.Duration `envconfig:"HEARTBEAT_INTERVAL" default:"15s"`
	KnowledgeQueueSize  int           `envconfig:"KNOWLEDGE_QUEUE" default:"256"`
	APITokenHash        string        `envconfig:"API_TOKEN_HASH" default:""`
	LocalAgents         int           `envconfig:"LOCAL_AGENTS" default:"0"`
}

// Default returns the compiled-in configuration, minus the generated master
// id.
func Default() Config {
	return Config{
		ServerAddr:          "0.0.0.0:8080",
		HealthCheckInterval: 30 * time.Second,
		AgentTimeout:        120 * time.Second,
		MaxSlaveAgents:      10,
		HealthyThreshold:    50,
		CriticalThreshold:   10,
		ErrorPenalty:        20,
		HeartbeatInterval:   15 * time.Second,
		KnowledgeQueueSize:  256,
	}
}

// Load reads configuration from the environment. A malformed environment is
// never fatal: it logs a warning and falls back to the compiled-in defaults.
func Load(logger zerolog.Logger) Config {
	var cfg Config
	if err := envconfig.Process("hub", &cfg); err != nil {
		logger.Warn().Err(err).Msg("malformed configuration, falling back to defaults")
		cfg = Default()
	}
	return normalize(cfg)
}

func normalize(cfg Config) Config {
	def := Default()
	if cfg.MasterID == "" {
		cfg.MasterID = "master-" + uuid.NewString()
	}
	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = def.HealthCheckInterval
	}
	if cfg.AgentTimeout <= 0 {
		cfg.AgentTimeout = def.AgentTimeout
	}
	if cfg.MaxSlaveAgents <= 0 {
		cfg.MaxSlaveAgents = def.MaxSlaveAgents
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = def.HeartbeatInterval
	}
	if cfg.KnowledgeQueueSize <= 0 {
		cfg.KnowledgeQueueSize = def.KnowledgeQueueSize
	}
	if cfg.ErrorPenalty < 0 {
		cfg.ErrorPenalty = def.ErrorPenalty
	}
	return cfg
}
