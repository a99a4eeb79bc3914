package agent

import (
	"math"
	"time"
)

// Penalty caps bound the worst-case influence of any single dimension, so
// compounding pressure degrades the score smoothly instead of one noisy
// metric flipping an agent between healthy and unhealthy.
const (
	maxCPUPenalty    = 50.0
	maxMemoryPenalty = 30.0
	maxAgePenalty    = 20.0
)

// Score computes a 0-100 health score from a resource sample and the age of
// the last heartbeat. Deterministic and pure.
func Score(cpuPercent, memoryMB float64, heartbeatAge time.Duration) int {
	cpu := math.Min(maxCPUPenalty, math.Max(0, cpuPercent)*0.5)
	mem := math.Min(maxMemoryPenalty, math.Max(0, memoryMB)/100)
	age := math.Min(maxAgePenalty, math.Max(0, heartbeatAge.Hours()))

	score := 100 - cpu - mem - age
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return int(math.Round(score))
}
