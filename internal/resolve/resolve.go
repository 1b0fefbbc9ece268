// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve turns a target specification into the set of directory
// identifiers to fetch. Four strategies share one Result shape: an explicit
// identifier list, an exhaustive range scan, a filtered directory search, and
// fuzzy matching of human-supplied names.
package resolve

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/pdiddy/scholars-harvest/internal/scholars"
	"github.com/pdiddy/scholars-harvest/pkg/types"
)

// UserGetter fetches one user by identifier.
type UserGetter interface {
	User(ctx context.Context, id types.Identifier) (*scholars.User, error)
}

// Searcher runs one page of a directory user search.
type Searcher interface {
	Search(ctx context.Context, q scholars.SearchQuery, req types.PageRequest) (types.PageResult[scholars.User], error)
}

// Resolver produces targets. The error return is reserved for problems that
// make the whole resolution meaningless (bad configuration, a failed search
// listing); per-target problems are reported in Result.Failures.
type Resolver interface {
	Resolve(ctx context.Context) (Result, error)
}

// Stats counts what a resolver did.
type Stats struct {
	Probed   int `json:"probed,omitempty" yaml:"probed,omitempty"`
	Absent   int `json:"absent,omitempty" yaml:"absent,omitempty"`
	Rejected int `json:"rejected,omitempty" yaml:"rejected,omitempty"`
	Matched  int `json:"matched" yaml:"matched"`
	Failed   int `json:"failed" yaml:"failed"`
	Queries  int `json:"queries,omitempty" yaml:"queries,omitempty"`
	Pages    int `json:"pages,omitempty" yaml:"pages,omitempty"`
}

// Result is the output of every resolver.
type Result struct {
	Targets  []types.ResolvedTarget
	Failures []types.FailureRecord

	// Names holds the per-name audit trail when names were resolved.
	Names []NameResolution

	Stats Stats
}

// SortTargets orders targets by last name, then first name, then
// identifier. Names compare case-insensitively.
func SortTargets(targets []types.ResolvedTarget) {
	slices.SortStableFunc(targets, func(a, b types.ResolvedTarget) int {
		return cmp.Or(
			cmp.Compare(strings.ToLower(a.LastName), strings.ToLower(b.LastName)),
			cmp.Compare(strings.ToLower(a.FirstName), strings.ToLower(b.FirstName)),
			cmp.Compare(a.ID, b.ID),
		)
	})
}

// dedupe drops repeated identifiers, keeping the first occurrence.
func dedupe(targets []types.ResolvedTarget) []types.ResolvedTarget {
	seen := make(map[types.Identifier]bool, len(targets))
	out := targets[:0]
	for _, t := range targets {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		out = append(out, t)
	}
	return out
}

// ExplicitIDs resolves a caller-supplied identifier list without touching
// the directory.
type ExplicitIDs struct {
	IDs []types.Identifier
}

// Resolve returns one target per distinct identifier, in input order.
func (e ExplicitIDs) Resolve(_ context.Context) (Result, error) {
	if len(e.IDs) == 0 {
		return Result{}, fmt.Errorf("no identifiers given")
	}
	targets := make([]types.ResolvedTarget, 0, len(e.IDs))
	for _, id := range e.IDs {
		if !id.Valid() {
			return Result{}, fmt.Errorf("invalid identifier %d", id)
		}
		targets = append(targets, types.ResolvedTarget{ID: id, Source: types.SourceExplicit})
	}
	targets = dedupe(targets)
	return Result{Targets: targets, Stats: Stats{Matched: len(targets)}}, nil
}

// targetFromUser builds a target carrying the names the directory reported.
func targetFromUser(u *scholars.User, source types.TargetSource, query string) types.ResolvedTarget {
	return types.ResolvedTarget{
		ID:             u.ObjectID,
		Source:         source,
		Query:          query,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		DiscoveryURLID: u.DiscoveryURLID,
	}
}
