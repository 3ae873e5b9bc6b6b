package resilience

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostRateLimiter token-buckets calls made to a single host-API base URL, so
// a job that hammers the adapter (attachment downloads, backup polling)
// can't overwhelm the host or starve other jobs' share of the connection.
type HostRateLimiter struct {
	apiLimiter  *rate.Limiter
	fileLimiter *rate.Limiter

	mu      sync.Mutex
	allowed int64
	denied  int64
}

// NewHostRateLimiter creates limiters for a host: api calls capped at 20/s
// with a burst of 10, file downloads capped at 5/s with a burst of 3.
func NewHostRateLimiter() *HostRateLimiter {
	return &HostRateLimiter{
		apiLimiter:  rate.NewLimiter(rate.Every(50*time.Millisecond), 10),
		fileLimiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 3),
	}
}

// WaitAPI blocks until an API-call token is available or ctx is done.
func (r *HostRateLimiter) WaitAPI(ctx context.Context) error {
	err := r.apiLimiter.Wait(ctx)
	r.record(err == nil)
	return err
}

// WaitFile blocks until a file-download token is available or ctx is done.
func (r *HostRateLimiter) WaitFile(ctx context.Context) error {
	err := r.fileLimiter.Wait(ctx)
	r.record(err == nil)
	return err
}

func (r *HostRateLimiter) record(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ok {
		r.allowed++
	} else {
		r.denied++
	}
}

// Stats reports limiter counters for observability endpoints.
func (r *HostRateLimiter) Stats() map[string]interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return map[string]interface{}{
		"allowed":   r.allowed,
		"denied":    r.denied,
		"api_rate":  r.apiLimiter.Limit(),
		"file_rate": r.fileLimiter.Limit(),
	}
}
