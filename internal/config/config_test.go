package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load(zerolog.Nop())
	if cfg.HealthCheckInterval != 30*time.Second {
		t.Fatalf("health check interval: %v", cfg.HealthCheckInterval)
	}
	if cfg.AgentTimeout != 120*time.Second {
		t.Fatalf("agent timeout: %v", cfg.AgentTimeout)
	}
	if cfg.MaxSlaveAgents != 10 {
		t.Fatalf("max agents: %d", cfg.MaxSlaveAgents)
	}
	if cfg.HealthyThreshold != 50 || cfg.CriticalThreshold != 10 {
		t.Fatalf("thresholds: %d/%d", cfg.HealthyThreshold, cfg.CriticalThreshold)
	}
	if cfg.MasterID == "" {
		t.Fatal("master id must be generated when unset")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HUB_AGENT_TIMEOUT", "45s")
	t.Setenv("HUB_MAX_SLAVE_AGENTS", "3")
	t.Setenv("HUB_MASTER_ID", "master-test")

	cfg := Load(zerolog.Nop())
	if cfg.AgentTimeout != 45*time.Second {
		t.Fatalf("agent timeout override: %v", cfg.AgentTimeout)
	}
	if cfg.MaxSlaveAgents != 3 {
		t.Fatalf("max agents override: %d", cfg.MaxSlaveAgents)
	}
	if cfg.MasterID != "master-test" {
		t.Fatalf("master id override: %s", cfg.MasterID)
	}
}

func TestLoadMalformedFallsBack(t *testing.T) {
	t.Setenv("HUB_AGENT_TIMEOUT", "not-a-duration")
	t.Setenv("HUB_MAX_SLAVE_AGENTS", "99")

	cfg := Load(zerolog.Nop())
	// A corrupt environment never aborts startup; everything reverts to
	// compiled-in defaults.
	if cfg.AgentTimeout != 120*time.Second {
		t.Fatalf("expected default timeout, got %v", cfg.AgentTimeout)
	}
	if cfg.MaxSlaveAgents != 10 {
		t.Fatalf("expected default capacity, got %d", cfg.MaxSlaveAgents)
	}
}

func TestNormalizeClampsNonPositive(t *testing.T) {
	cfg := normalize(Config{MaxSlaveAgents: -1, AgentTimeout: -time.Second})
	if cfg.MaxSlaveAgents != 10 || cfg.AgentTimeout != 120*time.Second {
		t.Fatalf("normalize did not clamp: %+v", cfg)
	}
}
