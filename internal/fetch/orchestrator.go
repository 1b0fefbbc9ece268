// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/scholars-harvest/internal/logging"
	"github.com/pdiddy/scholars-harvest/pkg/types"
)

// ErrInvalidWidth is returned for a worker pool width below one.
var ErrInvalidWidth = errors.New("worker pool width must be at least 1")

var (
	fetchOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scholars_fetch_outcomes_total",
		Help: "Fetch outcomes, by status.",
	}, []string{"status"})

	fetchInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scholars_fetch_inflight",
		Help: "Targets currently being fetched.",
	})
)

// Fetcher produces exactly one outcome per target.
type Fetcher interface {
	Fetch(ctx context.Context, target types.ResolvedTarget) types.FetchOutcome
}

// Sink receives outcomes one at a time from a single goroutine.
type Sink interface {
	Write(ctx context.Context, out types.FetchOutcome) error
}

// Summary counts what a run produced.
type Summary struct {
	Targets    int                       `json:"targets" yaml:"targets"`
	Succeeded  int                       `json:"succeeded" yaml:"succeeded"`
	Partial    int                       `json:"partial" yaml:"partial"`
	Failed     int                       `json:"failed" yaml:"failed"`
	ByKind     map[types.FailureKind]int `json:"by_kind,omitempty" yaml:"by_kind,omitempty"`
	SinkErrors int                       `json:"sink_errors" yaml:"sink_errors"`
	Duration   time.Duration             `json:"duration" yaml:"duration"`
}

// Outcomes is the number of outcomes recorded.
func (s Summary) Outcomes() int { return s.Succeeded + s.Partial + s.Failed }

// Add merges o into s.
func (s *Summary) Add(o Summary) {
	s.Targets += o.Targets
	s.Succeeded += o.Succeeded
	s.Partial += o.Partial
	s.Failed += o.Failed
	s.SinkErrors += o.SinkErrors
	s.Duration += o.Duration
	if len(o.ByKind) > 0 && s.ByKind == nil {
		s.ByKind = make(map[types.FailureKind]int)
	}
	for k, n := range o.ByKind {
		s.ByKind[k] += n
	}
}

func (s *Summary) record(out types.FetchOutcome) {
	status := out.Status()
	fetchOutcomes.WithLabelValues(string(status)).Inc()
	switch status {
	case types.StatusOK:
		s.Succeeded++
	case types.StatusPartial:
		s.Partial++
		s.ByKind[types.FailurePartial]++
	case types.StatusFailed:
		s.Failed++
		s.ByKind[out.Failure.Kind]++
	}
}

// Orchestrator fetches targets through a fixed-width worker pool.
type Orchestrator struct {
	fetcher Fetcher
	width   int

	// Progress receives one line per outcome when set.
	Progress io.Writer

	logger zerolog.Logger
}

// NewOrchestrator returns an Orchestrator running at most width fetches at
// once.
func NewOrchestrator(f Fetcher, width int) (*Orchestrator, error) {
	if width < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWidth, width)
	}
	return &Orchestrator{fetcher: f, width: width, logger: logging.NewLogger("orchestrator")}, nil
}

// Width is the worker pool width.
func (o *Orchestrator) Width() int { return o.width }

// Run fetches every target and streams each outcome to sink as it
// completes. Sink writes happen on one goroutine in completion order; a
// failed write is counted and logged but does not stop the run. Memory held
// by the run is bounded by the pool width, not by len(targets).
func (o *Orchestrator) Run(ctx context.Context, targets []types.ResolvedTarget, sink Sink) Summary {
	start := time.Now()
	outcomes := make(chan types.FetchOutcome, o.width)
	done := make(chan Summary, 1)

	go func() {
		s := Summary{ByKind: make(map[types.FailureKind]int)}
		for out := range outcomes {
			s.record(out)
			o.write(ctx, sink, out, &s)
			if o.Progress != nil {
				fmt.Fprintf(o.Progress, "[%d/%d] %-8s %s\n", s.Outcomes(), len(targets), out.Status()+":", out.Target.Label())
			}
		}
		done <- s
	}()

	var g errgroup.Group
	g.SetLimit(o.width)
	for _, t := range targets {
		g.Go(func() error {
			fetchInflight.Inc()
			defer fetchInflight.Dec()
			outcomes <- o.fetch(ctx, t)
			return nil
		})
	}
	_ = g.Wait()
	close(outcomes)

	s := <-done
	s.Targets = len(targets)
	s.Duration = time.Since(start)
	return s
}

// EmitFailures writes failures produced before fetching (unresolved names,
// failed scan probes) through the same sink so they appear in the output
// alongside fetch outcomes.
func (o *Orchestrator) EmitFailures(ctx context.Context, failures []types.FailureRecord, sink Sink) Summary {
	s := Summary{Targets: len(failures), ByKind: make(map[types.FailureKind]int)}
	for _, f := range failures {
		out := types.Failed(f)
		s.record(out)
		o.write(ctx, sink, out, &s)
	}
	return s
}

func (o *Orchestrator) write(ctx context.Context, sink Sink, out types.FetchOutcome, s *Summary) {
	if err := sink.Write(ctx, out); err != nil {
		s.SinkErrors++
		o.logger.Error().
			Int64(logging.FieldTarget, int64(out.Target.ID)).
			Err(err).
			Msg("sink write failed")
	}
}

// fetch guarantees one outcome even if the fetcher panics.
func (o *Orchestrator) fetch(ctx context.Context, t types.ResolvedTarget) (out types.FetchOutcome) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().Int64(logging.FieldTarget, int64(t.ID)).Interface("panic", r).Msg("fetch panicked")
			out = types.Failed(types.FailureRecord{
				Target: t,
				Kind:   types.FailurePermanent,
				Cause:  fmt.Sprintf("fetch panicked: %v", r),
			})
		}
	}()
	if err := ctx.Err(); err != nil {
		return types.Failed(types.FailureRecord{
			Target: t,
			Kind:   types.FailureTransient,
			Cause:  fmt.Sprintf("run cancelled: %v", err),
		})
	}
	return o.fetcher.Fetch(ctx, t)
}
