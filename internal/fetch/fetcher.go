// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch turns resolved targets into entity records. EntityFetcher
// assembles one record (profile plus linked collections) and Orchestrator
// runs many of them through a bounded worker pool, streaming each outcome
// to a sink as soon as it is ready.
package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/scholars-harvest/internal/httputil"
	"github.com/pdiddy/scholars-harvest/internal/logging"
	"github.com/pdiddy/scholars-harvest/internal/paginate"
	"github.com/pdiddy/scholars-harvest/internal/scholars"
	"github.com/pdiddy/scholars-harvest/pkg/types"
)

var collectionPages = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "scholars_collection_pages_total",
	Help: "Linked-collection pages requested, by collection.",
}, []string{"collection"})

// Directory is the part of the directory client the fetcher needs.
type Directory interface {
	User(ctx context.Context, id types.Identifier) (*scholars.User, error)
	Linked(ctx context.Context, kind types.CollectionKind, owner types.Identifier, req types.PageRequest) (types.PageResult[scholars.LinkedItem], error)
}

// CollectionSpec selects one linked collection and how to page it.
type CollectionSpec struct {
	Kind     types.CollectionKind
	PageSize int
	SortKey  string
}

// Specs builds one CollectionSpec per kind with shared paging settings.
func Specs(kinds []types.CollectionKind, pageSize int, sortKey string) []CollectionSpec {
	out := make([]CollectionSpec, len(kinds))
	for i, k := range kinds {
		out[i] = CollectionSpec{Kind: k, PageSize: pageSize, SortKey: sortKey}
	}
	return out
}

// EntityFetcher assembles the record for one target.
type EntityFetcher struct {
	Directory   Directory
	Collections []CollectionSpec

	// Normalizer cleans free-text fields. Nil leaves text untouched.
	Normalizer Normalizer

	now    func() time.Time
	logger zerolog.Logger
}

// NewEntityFetcher returns a fetcher for the given collections.
func NewEntityFetcher(dir Directory, collections []CollectionSpec, norm Normalizer) *EntityFetcher {
	return &EntityFetcher{
		Directory:   dir,
		Collections: collections,
		Normalizer:  norm,
		now:         time.Now,
		logger:      logging.NewLogger("fetch"),
	}
}

type collected struct {
	items  []scholars.LinkedItem
	status types.CollectionStatus
}

// Fetch retrieves the profile, then every configured collection
// concurrently. A profile failure yields a FailureRecord. A collection
// failure leaves that collection empty and marked incomplete; the record
// is still returned.
func (f *EntityFetcher) Fetch(ctx context.Context, target types.ResolvedTarget) types.FetchOutcome {
	user, err := f.Directory.User(ctx, target.ID)
	if err != nil {
		return types.Failed(types.FailureRecord{
			Target:   target,
			Kind:     httputil.KindOf(err),
			Cause:    fmt.Sprintf("fetching profile: %v", err),
			Attempts: httputil.AttemptsOf(err),
		})
	}

	a := assembler{norm: f.normalizer()}
	rec := &types.EntityRecord{
		Profile:     a.profile(user),
		Collections: make(map[types.CollectionKind]types.CollectionStatus, len(f.Collections)),
		FetchedAt:   f.clock(),
	}
	if !rec.Profile.ObjectID.Valid() {
		rec.Profile.ObjectID = target.ID
	}
	rec.Target = withProfileNames(target, rec.Profile)

	results := make([]collected, len(f.Collections))
	var g errgroup.Group
	for i, spec := range f.Collections {
		g.Go(func() error {
			results[i] = f.collect(ctx, rec.Profile.ObjectID, spec)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		a.attach(rec, r.status.Kind, r.items)
		rec.Collections[r.status.Kind] = r.status
	}
	return types.FetchOutcome{Target: rec.Target, Record: rec}
}

func (f *EntityFetcher) collect(ctx context.Context, owner types.Identifier, spec CollectionSpec) collected {
	status := types.CollectionStatus{Kind: spec.Kind}
	fetchPage := func(ctx context.Context, req types.PageRequest) (types.PageResult[scholars.LinkedItem], error) {
		collectionPages.WithLabelValues(string(spec.Kind)).Inc()
		return f.Directory.Linked(ctx, spec.Kind, owner, req)
	}

	p, err := paginate.New(fetchPage, spec.PageSize, spec.SortKey)
	if err != nil {
		status.Failure = types.FailurePermanent
		status.Cause = err.Error()
		return collected{status: status}
	}
	items, err := p.Collect(ctx)
	status.Pages = p.Requests()
	if err == nil {
		status.Complete = true
		status.Items = len(items)
		return collected{items: items, status: status}
	}

	status.Failure = httputil.KindOf(err)
	status.Cause = err.Error()
	f.logger.Warn().
		Int64(logging.FieldTarget, int64(owner)).
		Str(logging.FieldCollection, string(spec.Kind)).
		Err(err).
		Msg("collection incomplete")
	return collected{status: status}
}

func (f *EntityFetcher) normalizer() Normalizer {
	if f.Normalizer == nil {
		return identity{}
	}
	return f.Normalizer
}

func (f *EntityFetcher) clock() time.Time {
	if f.now == nil {
		return time.Now().UTC()
	}
	return f.now().UTC()
}

// withProfileNames fills in the names of targets that arrived as bare
// identifiers, so sinks and sorting have something to show.
func withProfileNames(t types.ResolvedTarget, p types.Profile) types.ResolvedTarget {
	if t.FirstName == "" && t.LastName == "" {
		t.FirstName, t.LastName = p.FirstName, p.LastName
	}
	if t.DiscoveryURLID == "" {
		t.DiscoveryURLID = p.DiscoveryURLID
	}
	return t
}
