// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var rateLimitWait = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "scholars_rate_limit_wait_seconds",
	Help:    "Time spent waiting for a rate limiter grant",
	Buckets: []float64{0, .001, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
})

// Limiter enforces a global minimum interval between request starts. One
// Limiter is shared by every worker of a run; the ceiling holds no matter
// how many goroutines call Acquire.
type Limiter struct {
	lim      *rate.Limiter
	interval time.Duration
	granted  atomic.Int64
}

// NewLimiter returns a limiter that grants at most one request per
// interval. An interval <= 0 disables limiting.
func NewLimiter(interval time.Duration) *Limiter {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Limiter{lim: rate.NewLimiter(limit, 1), interval: interval}
}

// Acquire blocks until the caller may start a request. Grants are handed
// out in reservation order. A nil Limiter never blocks.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l == nil {
		return nil
	}
	start := time.Now()
	if err := l.lim.Wait(ctx); err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return fmt.Errorf("waiting for rate limiter: %w", cerr)
		}
		// Wait refuses up front when the reservation would outlast the
		// deadline; report that as the deadline it is.
		if _, ok := ctx.Deadline(); ok {
			return fmt.Errorf("waiting for rate limiter: %w: %w", context.DeadlineExceeded, err)
		}
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}
	rateLimitWait.Observe(time.Since(start).Seconds())
	l.granted.Add(1)
	return nil
}

// Interval returns the configured minimum spacing.
func (l *Limiter) Interval() time.Duration { return l.interval }

// Granted returns how many requests have been let through.
func (l *Limiter) Granted() int64 { return l.granted.Load() }
