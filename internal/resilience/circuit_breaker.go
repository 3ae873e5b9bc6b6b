package resilience

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wpgc/quiz-archiver/internal/logging"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int32

const (
	StateClosed   CircuitState = iota // normal operation
	StateOpen                         // host failing, reject calls
	StateHalfOpen                     // probing whether the host recovered
)

// CircuitBreaker wraps calls to a single host so a failing learning-management
// host can't be hammered by every job that needs it, and so a failing host
// doesn't keep jobs blocked on calls doomed to time out.
type CircuitBreaker struct {
	name         string
	maxFailures  int32
	resetTimeout time.Duration
	halfOpenMax  int32

	failures      atomic.Int32
	lastFailTime  atomic.Int64
	state         atomic.Int32
	halfOpenTests atomic.Int32

	successCount  atomic.Int64
	failureCount  atomic.Int64
	rejectedCount atomic.Int64
}

// NewCircuitBreaker creates a circuit breaker for one host-API base URL.
func NewCircuitBreaker(name string, maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:         name,
		maxFailures:  int32(maxFailures),
		resetTimeout: resetTimeout,
		halfOpenMax:  3,
	}
}

// Call executes fn with circuit breaker protection. fn's error, if any, is
// returned unchanged; the breaker never swallows the underlying cause.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	if !cb.canAttempt() {
		cb.rejectedCount.Add(1)
		return logging.NewError(logging.ErrCodeHostUnreachable, "circuit breaker is open for "+cb.name).
			WithOperation("host_call")
	}

	err := fn(ctx)
	if err != nil {
		cb.recordFailure()
		return err
	}

	cb.recordSuccess()
	return nil
}

func (cb *CircuitBreaker) canAttempt() bool {
	state := CircuitState(cb.state.Load())

	switch state {
	case StateClosed:
		return true

	case StateOpen:
		lastFail := cb.lastFailTime.Load()
		if time.Since(time.Unix(0, lastFail)) > cb.resetTimeout {
			if cb.state.CompareAndSwap(int32(StateOpen), int32(StateHalfOpen)) {
				cb.halfOpenTests.Store(0)
			}
			return true
		}
		return false

	case StateHalfOpen:
		tests := cb.halfOpenTests.Add(1)
		return tests <= cb.halfOpenMax

	default:
		return false
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.successCount.Add(1)

	state := CircuitState(cb.state.Load())
	switch state {
	case StateHalfOpen:
		if cb.state.CompareAndSwap(int32(StateHalfOpen), int32(StateClosed)) {
			cb.failures.Store(0)
		}
	case StateClosed:
		cb.failures.Store(0)
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.failureCount.Add(1)
	failures := cb.failures.Add(1)
	cb.lastFailTime.Store(time.Now().UnixNano())

	state := CircuitState(cb.state.Load())
	switch state {
	case StateClosed:
		if failures >= cb.maxFailures {
			cb.state.Store(int32(StateOpen))
		}
	case StateHalfOpen:
		cb.state.Store(int32(StateOpen))
		cb.failures.Store(cb.maxFailures)
	}
}

// State returns the current circuit state as a lowercase string, suitable
// for inclusion in /metrics or /status payloads.
func (cb *CircuitBreaker) State() string {
	switch CircuitState(cb.state.Load()) {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Stats returns counters for observability endpoints.
func (cb *CircuitBreaker) Stats() map[string]interface{} {
	return map[string]interface{}{
		"name":           cb.name,
		"state":          cb.State(),
		"failures":       cb.failures.Load(),
		"success_count":  cb.successCount.Load(),
		"failure_count":  cb.failureCount.Load(),
		"rejected_count": cb.rejectedCount.Load(),
	}
}

// Manager keeps one CircuitBreaker per host base URL, created lazily.
type Manager struct {
	breakers map[string]*CircuitBreaker
	mu       sync.RWMutex
}

// NewManager creates an empty circuit breaker manager.
func NewManager() *Manager {
	return &Manager{
		breakers: make(map[string]*CircuitBreaker),
	}
}

// GetBreaker returns the breaker for name, creating one with default
// thresholds (5 failures, 30s reset) if it doesn't exist yet.
func (m *Manager) GetBreaker(name string) *CircuitBreaker {
	m.mu.RLock()
	cb, exists := m.breakers[name]
	m.mu.RUnlock()

	if exists {
		return cb
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if cb, exists = m.breakers[name]; exists {
		return cb
	}

	cb = NewCircuitBreaker(name, 5, 30*time.Second)
	m.breakers[name] = cb
	return cb
}

// AllStats returns stats for every breaker the manager has created.
func (m *Manager) AllStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]interface{}, len(m.breakers))
	for name, cb := range m.breakers {
		stats[name] = cb.Stats()
	}
	return stats
}
