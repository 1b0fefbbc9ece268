// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterCeilingUnderConcurrency(t *testing.T) {
	const (
		requests = 100
		workers  = 20
		interval = 5 * time.Millisecond
	)
	l := NewLimiter(interval)

	jobs := make(chan int)
	var (
		mu     sync.Mutex
		grants []time.Time
		wg     sync.WaitGroup
	)
	start := time.Now()
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				assert.NoError(t, l.Acquire(context.Background()))
				mu.Lock()
				grants = append(grants, time.Now())
				mu.Unlock()
			}
		}()
	}
	for i := range requests {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	elapsed := time.Since(start)

	assert.Equal(t, int64(requests), l.Granted())
	assert.Len(t, grants, requests)
	// The first grant is immediate; each later one waits a full interval.
	assert.GreaterOrEqual(t, elapsed, (requests-1)*interval-2*time.Millisecond)
}

func TestLimiterDisabled(t *testing.T) {
	l := NewLimiter(0)
	start := time.Now()
	for range 1000 {
		require.NoError(t, l.Acquire(context.Background()))
	}
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int64(1000), l.Granted())
}

func TestLimiterNilNeverBlocks(t *testing.T) {
	var l *Limiter
	assert.NoError(t, l.Acquire(context.Background()))
}

func TestLimiterRespectsContext(t *testing.T) {
	l := NewLimiter(time.Hour)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := l.Acquire(ctx)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second, "a grant past the deadline is refused without waiting")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, ClassCancelled, Classify(err))
	assert.Equal(t, int64(1), l.Granted())
}

func TestLimiterCancelledContextIsNotRetried(t *testing.T) {
	l := NewLimiter(time.Hour)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	calls := 0
	err := NewRetryPolicy(3, 0).Do(ctx, "users.get", func(ctx context.Context) error {
		calls++
		return l.Acquire(ctx)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, AttemptsOf(err))
	assert.Equal(t, ClassCancelled, Classify(err))
}
