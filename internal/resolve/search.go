// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/scholars-harvest/internal/paginate"
	"github.com/pdiddy/scholars-harvest/internal/scholars"
	"github.com/pdiddy/scholars-harvest/pkg/types"
)

// Facet names understood by Filter.Matches.
const (
	FacetDepartment = "department"
	FacetInterest   = "interest"
	FacetPosition   = "position"
)

// Filter is a structured search: facets are ANDed together and the values
// within one facet are ORed.
type Filter struct {
	Text   string           `json:"text,omitempty" yaml:"text,omitempty"`
	Facets []scholars.Facet `json:"facets,omitempty" yaml:"facets,omitempty"`
}

// ParseFacet parses "name=v1,v2".
func ParseFacet(s string) (scholars.Facet, error) {
	name, vals, ok := strings.Cut(s, "=")
	name = strings.ToLower(strings.TrimSpace(name))
	if !ok || name == "" {
		return scholars.Facet{}, fmt.Errorf("facet %q: want name=value[,value...]", s)
	}
	var values []string
	for _, v := range strings.Split(vals, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return scholars.Facet{}, fmt.Errorf("facet %q has no values", s)
	}
	return scholars.Facet{Name: name, Values: values}, nil
}

// Validate requires free text or at least one facet, and a value for every
// facet.
func (f Filter) Validate() error {
	if strings.TrimSpace(f.Text) == "" && len(f.Facets) == 0 {
		return fmt.Errorf("search filter is empty")
	}
	for _, fc := range f.Facets {
		if len(fc.Values) == 0 {
			return fmt.Errorf("facet %q has no values", fc.Name)
		}
	}
	return nil
}

// Matches applies the facets client-side. Unknown facet names never match.
func (f Filter) Matches(u *scholars.User) bool {
	for _, fc := range f.Facets {
		var fields []string
		switch fc.Name {
		case FacetDepartment:
			fields = u.Departments()
		case FacetInterest:
			fields = u.ResearchInterests
		case FacetPosition:
			fields = u.Titles()
		}
		matched := false
		for _, v := range fc.Values {
			if containsFold(fields, strings.ToLower(v)) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func (f Filter) String() string {
	var parts []string
	if f.Text != "" {
		parts = append(parts, fmt.Sprintf("text=%q", f.Text))
	}
	for _, fc := range f.Facets {
		parts = append(parts, fc.Name+"="+strings.Join(fc.Values, "|"))
	}
	return strings.Join(parts, " ")
}

// FilteredSearch resolves targets through the directory's own search,
// paging through the complete result set.
type FilteredSearch struct {
	Search   Searcher
	Filter   Filter
	PageSize int
	SortKey  string

	// Verify re-applies the facets to each hit and drops the ones the
	// server should not have returned.
	Verify bool
}

// Resolve runs the search.
func (s *FilteredSearch) Resolve(ctx context.Context) (Result, error) {
	if err := s.Filter.Validate(); err != nil {
		return Result{}, err
	}
	pageSize := s.PageSize
	if pageSize == 0 {
		pageSize = types.MaxPageSize
	}
	q := scholars.SearchQuery{Text: s.Filter.Text, Facets: s.Filter.Facets}
	pager, err := paginate.New(func(ctx context.Context, req types.PageRequest) (types.PageResult[scholars.User], error) {
		return s.Search.Search(ctx, q, req)
	}, pageSize, s.SortKey)
	if err != nil {
		return Result{}, err
	}

	query := s.Filter.String()
	var res Result
	for u, err := range pager.All(ctx) {
		if err != nil {
			res.Stats.Pages = pager.Requests()
			return res, fmt.Errorf("search %s: %w", query, err)
		}
		if s.Verify && !s.Filter.Matches(&u) {
			res.Stats.Rejected++
			continue
		}
		res.Targets = append(res.Targets, targetFromUser(&u, types.SourceSearch, query))
	}
	res.Targets = dedupe(res.Targets)
	res.Stats.Matched = len(res.Targets)
	res.Stats.Pages = pager.Requests()
	return res, nil
}
