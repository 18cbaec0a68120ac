package pipeline

import (
	"sync"
	"time"
)

// HealthStatus represents the health state of the pipeline.
type HealthStatus string

const (
	HealthStatusUnknown   HealthStatus = "UNKNOWN"
	HealthStatusHealthy   HealthStatus = "HEALTHY"
	HealthStatusUnhealthy HealthStatus = "UNHEALTHY"

	// DefaultUnhealthyThreshold is the number of consecutive failures
	// before the pipeline is considered unhealthy.
	DefaultUnhealthyThreshold = 5
)

// Health tracks processing outcomes and the pipeline lifecycle state for the
// health endpoint.
type Health struct {
	mu                  sync.RWMutex
	state               State
	status              HealthStatus
	consecutiveFailures int
	lastSuccessAt       *time.Time
	lastFailureAt       *time.Time
	lastProcessedBlock  int64
	unhealthyThreshold  int
}

func NewHealth() *Health {
	return &Health{
		state:              StateCold,
		status:             HealthStatusUnknown,
		unhealthyThreshold: DefaultUnhealthyThreshold,
	}
}

func (h *Health) SetState(state State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = state
}

// RecordSuccess records a committed block. Returns true if this represents a
// recovery from an unhealthy state.
func (h *Health) RecordSuccess(blockNumber int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := time.Now()
	wasUnhealthy := h.status == HealthStatusUnhealthy
	h.consecutiveFailures = 0
	h.lastSuccessAt = &now
	h.lastProcessedBlock = blockNumber
	h.status = HealthStatusHealthy
	return wasUnhealthy
}

// RecordFailure records a processing failure. Returns true if the pipeline
// transitioned to unhealthy on this call.
func (h *Health) RecordFailure() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := time.Now()
	h.consecutiveFailures++
	h.lastFailureAt = &now
	if h.consecutiveFailures >= h.unhealthyThreshold && h.status != HealthStatusUnhealthy {
		h.status = HealthStatusUnhealthy
		return true
	}
	return false
}

// Snapshot returns the current health state (JSON-safe).
func (h *Health) Snapshot() HealthSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HealthSnapshot{
		State:               string(h.state),
		Status:              string(h.status),
		ConsecutiveFailures: h.consecutiveFailures,
		LastProcessedBlock:  h.lastProcessedBlock,
		LastSuccessAt:       h.lastSuccessAt,
		LastFailureAt:       h.lastFailureAt,
	}
}

type HealthSnapshot struct {
	State               string     `json:"state"`
	Status              string     `json:"status"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastProcessedBlock  int64      `json:"last_processed_block"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	LastFailureAt       *time.Time `json:"last_failure_at,omitempty"`
}
