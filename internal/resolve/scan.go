// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pdiddy/scholars-harvest/internal/httputil"
	"github.com/pdiddy/scholars-harvest/internal/logging"
	"github.com/pdiddy/scholars-harvest/internal/scholars"
	"github.com/pdiddy/scholars-harvest/pkg/types"
)

var scanProbes = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "scholars_scan_probes_total",
		Help: "Range scan probes by result",
	},
	[]string{"result"}, // matched, rejected, absent, failed
)

// Predicate is a client-side filter applied to each probed user.
type Predicate struct {
	// Name describes the filter; it becomes the Query of matched targets.
	Name  string
	Match func(u *scholars.User) bool
}

// MatchAll accepts every existing user.
func MatchAll() Predicate {
	return Predicate{Name: "all", Match: func(*scholars.User) bool { return true }}
}

// DepartmentContains matches users with a department containing sub,
// case-insensitively.
func DepartmentContains(sub string) Predicate {
	needle := strings.ToLower(strings.TrimSpace(sub))
	return Predicate{
		Name: "department:" + sub,
		Match: func(u *scholars.User) bool {
			return containsFold(u.Departments(), needle)
		},
	}
}

// InterestContains matches users with a research interest containing sub,
// case-insensitively.
func InterestContains(sub string) Predicate {
	needle := strings.ToLower(strings.TrimSpace(sub))
	return Predicate{
		Name: "interest:" + sub,
		Match: func(u *scholars.User) bool {
			return containsFold(u.ResearchInterests, needle)
		},
	}
}

// AllOf matches when every predicate matches.
func AllOf(ps ...Predicate) Predicate {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.Name
	}
	return Predicate{
		Name: strings.Join(names, " & "),
		Match: func(u *scholars.User) bool {
			for _, p := range ps {
				if !p.Match(u) {
					return false
				}
			}
			return true
		},
	}
}

func containsFold(fields []string, lowerNeedle string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), lowerNeedle) {
			return true
		}
	}
	return false
}

// RangeScanner probes every identifier in [1, MaxID] and keeps the users
// the predicate accepts. It is exhaustive: there is no match quota.
type RangeScanner struct {
	Users     UserGetter
	MaxID     int
	Workers   int
	Predicate Predicate

	// Progress, when set, receives a line every ProgressEvery probes.
	Progress      io.Writer
	ProgressEvery int
}

type probeResult struct {
	id      types.Identifier
	target  *types.ResolvedTarget
	failure *types.FailureRecord
	absent  bool
}

// Resolve runs the scan. Output order is unspecified; use SortTargets.
func (s *RangeScanner) Resolve(ctx context.Context) (Result, error) {
	if s.MaxID < 1 {
		return Result{}, fmt.Errorf("range scan needs a max identifier >= 1, got %d", s.MaxID)
	}
	if s.Workers < 1 {
		return Result{}, fmt.Errorf("range scan needs at least one worker, got %d", s.Workers)
	}
	pred := s.Predicate
	if pred.Match == nil {
		pred = MatchAll()
	}
	logger := logging.NewLogger("scan")

	ids := make(chan types.Identifier, s.Workers)
	results := make(chan probeResult, s.Workers)

	go func() {
		defer close(ids)
		for id := 1; id <= s.MaxID; id++ {
			select {
			case ids <- types.Identifier(id):
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for range s.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range ids {
				results <- s.probe(ctx, id, pred)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var res Result
	for r := range results {
		res.Stats.Probed++
		switch {
		case r.absent:
			res.Stats.Absent++
			scanProbes.WithLabelValues("absent").Inc()
		case r.failure != nil:
			res.Stats.Failed++
			res.Failures = append(res.Failures, *r.failure)
			scanProbes.WithLabelValues("failed").Inc()
			logger.Warn().
				Int64(logging.FieldTarget, int64(r.id)).
				Str("kind", string(r.failure.Kind)).
				Str("cause", r.failure.Cause).
				Msg("probe failed")
		case r.target != nil:
			res.Stats.Matched++
			res.Targets = append(res.Targets, *r.target)
			scanProbes.WithLabelValues("matched").Inc()
		default:
			res.Stats.Rejected++
			scanProbes.WithLabelValues("rejected").Inc()
		}
		if s.Progress != nil && s.ProgressEvery > 0 && res.Stats.Probed%s.ProgressEvery == 0 {
			fmt.Fprintf(s.Progress, "scanned %d/%d ids, %d matched\n", res.Stats.Probed, s.MaxID, res.Stats.Matched)
		}
	}

	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("range scan interrupted after %d probes: %w", res.Stats.Probed, err)
	}
	return res, nil
}

func (s *RangeScanner) probe(ctx context.Context, id types.Identifier, pred Predicate) probeResult {
	u, err := s.Users.User(ctx, id)
	if err != nil {
		kind := httputil.KindOf(err)
		if kind == types.FailureNotFound {
			return probeResult{id: id, absent: true}
		}
		return probeResult{id: id, failure: &types.FailureRecord{
			Target:   types.ResolvedTarget{ID: id, Source: types.SourceScanned, Query: pred.Name},
			Kind:     kind,
			Cause:    err.Error(),
			Attempts: httputil.AttemptsOf(err),
		}}
	}
	if !pred.Match(u) {
		return probeResult{id: id}
	}
	t := targetFromUser(u, types.SourceScanned, pred.Name)
	t.ID = id
	return probeResult{id: id, target: &t}
}
