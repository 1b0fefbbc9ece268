// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil holds the request plumbing shared by every stage: the
// global rate limiter, the retry policy, and the error taxonomy that both
// of them classify failures with.
package httputil

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/pdiddy/scholars-harvest/internal/logging"
)

const (
	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 1

	// DefaultRetryBackoff is the fixed wait before a retry.
	DefaultRetryBackoff = 500 * time.Millisecond
)

var (
	requestAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scholars_request_attempts_total",
			Help: "Request attempts by operation and resulting retry state",
		},
		[]string{"op", "outcome"},
	)

	retriesExhausted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scholars_retries_exhausted_total",
			Help: "Requests that failed every allowed attempt",
		},
		[]string{"class"},
	)
)

// RetryState is the state of one logical request after an attempt.
type RetryState int

const (
	StateAttempting RetryState = iota
	StateSucceeded
	StateFailedTransient
	StateFailedPermanent
)

func (s RetryState) String() string {
	switch s {
	case StateAttempting:
		return "attempting"
	case StateSucceeded:
		return "succeeded"
	case StateFailedTransient:
		return "failed_transient"
	case StateFailedPermanent:
		return "failed_permanent"
	}
	return "unknown"
}

// Terminal reports whether no further attempt follows.
func (s RetryState) Terminal() bool { return s != StateAttempting }

// Attempt describes one finished attempt. Observers receive every attempt,
// successful or not.
type Attempt struct {
	Op    string
	N     int
	Err   error
	Class ErrorClass
	State RetryState
}

// RetryPolicy retries transient failures a fixed number of times with a
// fixed backoff. A single policy is shared by all workers of a run; it holds
// no per-request state so it is safe for concurrent use.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration

	// Observer, when set, is called after every attempt. It must be safe
	// for concurrent use.
	Observer func(Attempt)

	logger zerolog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetryPolicy returns a policy allowing maxRetries retries after the
// first attempt, each preceded by backoff.
func NewRetryPolicy(maxRetries int, backoff time.Duration) *RetryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &RetryPolicy{
		MaxRetries: maxRetries,
		Backoff:    backoff,
		logger:     logging.NewLogger("retry"),
		sleep:      sleepCtx,
	}
}

// DefaultRetryPolicy returns one retry after 500ms.
func DefaultRetryPolicy() *RetryPolicy {
	return NewRetryPolicy(DefaultMaxRetries, DefaultRetryBackoff)
}

// MaxAttempts is 1 + MaxRetries.
func (p *RetryPolicy) MaxAttempts() int {
	return 1 + max(p.MaxRetries, 0)
}

// Next is the transition function: given the 1-based number of the attempt
// that just finished and its error, it returns the resulting state.
//
// A malformed body is retried like any transient failure, but if it is still
// malformed on the last attempt the request is treated as permanently bad.
func (p *RetryPolicy) Next(attempt int, err error) RetryState {
	if err == nil {
		return StateSucceeded
	}
	class := Classify(err)
	if !class.Retryable() {
		if class == ClassCancelled {
			return StateFailedTransient
		}
		return StateFailedPermanent
	}
	if attempt < p.MaxAttempts() {
		return StateAttempting
	}
	if class == ClassMalformed {
		return StateFailedPermanent
	}
	return StateFailedTransient
}

// Do runs fn until it succeeds or the policy gives up. The returned error,
// if any, is a *RequestError carrying the attempt count and the class of the
// last failure.
func (p *RetryPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		state := p.Next(attempt, err)
		class := Classify(err)

		requestAttempts.WithLabelValues(op, state.String()).Inc()
		if p.Observer != nil {
			p.Observer(Attempt{Op: op, N: attempt, Err: err, Class: class, State: state})
		}

		switch state {
		case StateSucceeded:
			return nil
		case StateAttempting:
			p.logger.Warn().
				Str(logging.FieldOp, op).
				Int(logging.FieldAttempt, attempt).
				Str(logging.FieldErrorClass, string(class)).
				Err(err).
				Dur("backoff", p.Backoff).
				Msg("retrying request")
			if serr := p.wait(ctx); serr != nil {
				return finalize(op, attempt, serr)
			}
			continue
		case StateFailedTransient:
			if class.Retryable() {
				retriesExhausted.WithLabelValues(string(class)).Inc()
			}
		case StateFailedPermanent:
			if class == ClassMalformed {
				retriesExhausted.WithLabelValues(string(class)).Inc()
			}
		}
		return finalize(op, attempt, err)
	}
}

func (p *RetryPolicy) wait(ctx context.Context) error {
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	return sleep(ctx, p.Backoff)
}

// finalize stamps the attempt count on err, wrapping it in a RequestError
// when the caller returned a plain error.
func finalize(op string, attempts int, err error) error {
	var re *RequestError
	if errors.As(err, &re) {
		out := *re
		out.Attempts = attempts
		if out.Op == "" {
			out.Op = op
		}
		return &out
	}
	return &RequestError{Op: op, Class: Classify(err), Attempts: attempts, Err: err}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
