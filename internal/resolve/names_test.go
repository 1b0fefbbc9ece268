// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/scholars-harvest/internal/httputil"
	"github.com/pdiddy/scholars-harvest/internal/scholars"
	"github.com/pdiddy/scholars-harvest/pkg/types"
)

// stubSearch answers searches from a table and records every query text.
type stubSearch struct {
	mu      sync.Mutex
	hits    map[string][]scholars.User
	errs    map[string]error
	queries []string
}

func (s *stubSearch) Search(_ context.Context, q scholars.SearchQuery, req types.PageRequest) (types.PageResult[scholars.User], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q.Text)
	if err := s.errs[q.Text]; err != nil {
		return types.PageResult[scholars.User]{}, err
	}
	hits := s.hits[q.Text]
	return types.PageResult[scholars.User]{Items: hits, TotalCount: len(hits)}, nil
}

func user(id types.Identifier, first, last string) scholars.User {
	return scholars.User{ObjectID: id, FirstName: first, LastName: last}
}

func TestParseName(t *testing.T) {
	tests := []struct {
		in     string
		first  string
		middle []string
		last   string
		suffix string
	}{
		{in: "Jim O'Brien-Smith Jr", first: "Jim", middle: []string{}, last: "O'Brien-Smith", suffix: "Jr"},
		{in: "  Mary   Ann  Jones ", first: "Mary", middle: []string{"Ann"}, last: "Jones"},
		{in: "Smith, John Q.", first: "John", middle: []string{"Q."}, last: "Smith"},
		{in: "King, Martin L, Jr.", first: "Martin", middle: []string{"L"}, last: "King", suffix: "Jr."},
		{in: "De La Cruz, Maria", first: "Maria", middle: []string{}, last: "De La Cruz"},
		{in: "Henry Ford III", first: "Henry", middle: []string{}, last: "Ford", suffix: "III"},
		{in: "Madonna", last: "Madonna"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			n := ParseName(tt.in)
			assert.Equal(t, tt.first, n.First)
			assert.Equal(t, tt.last, n.Last)
			assert.Equal(t, tt.suffix, n.Suffix)
			if len(tt.middle) == 0 {
				assert.Empty(t, n.Middle)
			} else {
				assert.Equal(t, tt.middle, n.Middle)
			}
		})
	}
}

func TestVariantsArePure(t *testing.T) {
	n := ParseName("Bill A. Gates-Melinda")
	nick := DefaultNicknames

	assert.Equal(t, []string{"Bill A. Gates-Melinda"}, ExactVariant().Build(n, nick))
	assert.Equal(t, []string{"Bill A. Gates-Melinda"}, SuffixStrippedVariant().Build(n, nick))
	assert.Equal(t, []string{"William A. Gates-Melinda"}, NicknameVariant().Build(n, nick))
	assert.Equal(t, []string{"Bill Gates-Melinda", "Bill Gates Melinda", "Bill Gates", "Bill Melinda"}, HyphenVariant().Build(n, nick))
	assert.Equal(t, []string{"Bill Gates-Melinda"}, FirstLastVariant().Build(n, nick))

	plain := ParseName("Ada Lovelace")
	assert.Nil(t, NicknameVariant().Build(plain, nick))
	assert.Nil(t, HyphenVariant().Build(plain, nick))
	assert.Nil(t, FirstLastVariant().Build(plain, nick))
}

func TestNameMatcherQueryOrder(t *testing.T) {
	s := &stubSearch{}
	m := NewNameMatcher(s, nil, nil)

	res := m.Match(context.Background(), "Jim O'Brien-Smith Jr")

	assert.Equal(t, []string{
		"Jim O'Brien-Smith Jr",
		"Jim O'Brien-Smith",
		"James O'Brien-Smith",
		"Jim O'Brien Smith",
		"Jim O'Brien",
		"Jim Smith",
	}, s.queries)
	assert.Equal(t, MatchNotFound, res.Status)
	require.NotNil(t, res.Failure)
	assert.Equal(t, types.FailureNotFound, res.Failure.Kind)
	assert.Equal(t, s.queries, res.Failure.Queries)
	assert.Equal(t, "Jim O'Brien-Smith Jr", res.Failure.Target.Query)
}

func TestNameMatcherStopsAtFirstMatch(t *testing.T) {
	s := &stubSearch{hits: map[string][]scholars.User{
		"James O'Brien-Smith": {user(11, "James", "O'Brien-Smith")},
		"Jim O'Brien Smith":   {user(99, "Jim", "Other")},
	}}
	m := NewNameMatcher(s, nil, nil)

	res := m.Match(context.Background(), "Jim O'Brien-Smith Jr")

	assert.Equal(t, MatchResolved, res.Status)
	assert.True(t, res.Exact)
	require.Len(t, res.Targets, 1)
	assert.Equal(t, types.Identifier(11), res.Targets[0].ID)
	assert.Equal(t, types.SourceName, res.Targets[0].Source)
	assert.Equal(t, "Jim O'Brien-Smith Jr", res.Targets[0].Query)
	assert.Len(t, s.queries, 3)
	assert.Equal(t, "nickname", res.Attempts[2].Variant)
}

func TestNameMatcherSkipsHitsThatDoNotMatchName(t *testing.T) {
	s := &stubSearch{hits: map[string][]scholars.User{
		"Ann Lee":   {user(1, "Bob", "Lee"), user(2, "Ann", "Leeds")},
		"Ann B Lee": {user(3, "Zed", "Lee")},
	}}
	m := NewNameMatcher(s, nil, nil)

	res := m.Match(context.Background(), "Ann B Lee")
	assert.Equal(t, MatchNotFound, res.Status)
	assert.Equal(t, []string{"Ann B Lee", "Ann Lee"}, s.queries)
	assert.Equal(t, 2, res.Attempts[1].Hits)
	assert.Equal(t, 0, res.Attempts[1].Candidates)
}

func TestNameMatcherTieBreak(t *testing.T) {
	tests := []struct {
		name    string
		hits    []scholars.User
		status  MatchStatus
		exact   bool
		wantIDs []types.Identifier
	}{
		{
			name:    "exact preferred over partial",
			hits:    []scholars.User{user(1, "Robert", "Lee"), user(2, "Rob", "Lee")},
			status:  MatchResolved,
			exact:   true,
			wantIDs: []types.Identifier{2},
		},
		{
			name:    "exact match is case-insensitive",
			hits:    []scholars.User{user(5, "ROB", "lee")},
			status:  MatchResolved,
			exact:   true,
			wantIDs: []types.Identifier{5},
		},
		{
			name:    "several exact matches are all returned",
			hits:    []scholars.User{user(1, "Rob", "Lee"), user(2, "Rob", "Lee")},
			status:  MatchAmbiguous,
			exact:   true,
			wantIDs: []types.Identifier{1, 2},
		},
		{
			name:    "single partial match resolves",
			hits:    []scholars.User{user(3, "Robert", "Lee"), user(4, "Mary", "Lee")},
			status:  MatchResolved,
			wantIDs: []types.Identifier{3},
		},
		{
			name:    "several partial matches are ambiguous",
			hits:    []scholars.User{user(3, "Robert", "Lee"), user(4, "Robin", "Lee")},
			status:  MatchAmbiguous,
			wantIDs: []types.Identifier{3, 4},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &stubSearch{hits: map[string][]scholars.User{"Rob Lee": tt.hits}}
			res := NewNameMatcher(s, nil, nil).Match(context.Background(), "Rob Lee")

			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, tt.exact, res.Exact)
			var ids []types.Identifier
			for _, tg := range res.Targets {
				ids = append(ids, tg.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestNameMatcherTransportFailure(t *testing.T) {
	transient := &httputil.RequestError{Op: "users.search", Class: httputil.ClassServer, Attempts: 2, Err: errors.New("HTTP 503")}
	s := &stubSearch{errs: map[string]error{"Ada Lovelace": transient}}

	res := NewNameMatcher(s, nil, nil).Match(context.Background(), "Ada Lovelace")

	assert.Equal(t, MatchFailed, res.Status)
	require.NotNil(t, res.Failure)
	assert.Equal(t, types.FailureTransient, res.Failure.Kind)
	assert.Equal(t, 2, res.Failure.Attempts)
	assert.Equal(t, []string{"Ada Lovelace"}, res.Failure.Queries)
	assert.NotEmpty(t, res.Attempts[0].Error)
}

func TestNameMatcherFailedVariantDoesNotStopLaterVariants(t *testing.T) {
	s := &stubSearch{
		errs: map[string]error{"Bill Gates": errors.New("connection reset")},
		hits: map[string][]scholars.User{"William Gates": {user(8, "William", "Gates")}},
	}
	res := NewNameMatcher(s, nil, nil).Match(context.Background(), "Bill Gates")

	assert.Equal(t, MatchResolved, res.Status)
	assert.Equal(t, types.Identifier(8), res.Targets[0].ID)
	assert.Nil(t, res.Failure)
}

func TestNameMatcherOverridesAndExtraNicknames(t *testing.T) {
	s := &stubSearch{hits: map[string][]scholars.User{"Elizabeth Bennet": {user(4, "Elizabeth", "Bennet")}}}
	m := NewNameMatcher(s,
		map[string]string{"Lizzy": "Elizabeth"},
		map[string]types.Identifier{"Fitzwilliam  Darcy": 77},
	)

	res := m.Match(context.Background(), "fitzwilliam darcy")
	assert.Equal(t, MatchOverride, res.Status)
	assert.Equal(t, types.Identifier(77), res.Targets[0].ID)
	assert.Equal(t, types.SourceOverride, res.Targets[0].Source)
	assert.Empty(t, s.queries)

	res = m.Match(context.Background(), "Lizzy Bennet")
	assert.Equal(t, MatchResolved, res.Status)
	assert.Equal(t, types.Identifier(4), res.Targets[0].ID)
}

func TestNameMatcherLastFirstInput(t *testing.T) {
	s := &stubSearch{hits: map[string][]scholars.User{"Ada Lovelace": {user(1, "Ada", "Lovelace")}}}
	res := NewNameMatcher(s, nil, nil).Match(context.Background(), "Lovelace, Ada")

	assert.Equal(t, MatchResolved, res.Status)
	assert.Equal(t, []string{"Lovelace, Ada", "Ada Lovelace"}, s.queries)
}

func TestNameResolverBatch(t *testing.T) {
	s := &stubSearch{hits: map[string][]scholars.User{
		"Ada Lovelace": {user(1, "Ada", "Lovelace")},
		"A Lovelace":   {user(1, "Ada", "Lovelace")},
		"Alan Turing":  {user(2, "Alan", "Turing")},
	}}
	r := &NameResolver{
		Matcher: NewNameMatcher(s, nil, nil),
		Names:   []string{"Ada Lovelace", "Alan Turing", "Nobody Here", "A Lovelace"},
		Workers: 3,
	}

	res, err := r.Resolve(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Names, 4)
	for i, nr := range res.Names {
		assert.Equal(t, r.Names[i], nr.Input, "audit keeps input order")
	}
	assert.Len(t, res.Targets, 2, "duplicate identifiers are fetched once")
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "Nobody Here", res.Failures[0].Target.Query)
	assert.Equal(t, 1, res.Stats.Failed)
	assert.GreaterOrEqual(t, res.Stats.Queries, 4)

	_, err = (&NameResolver{Matcher: r.Matcher}).Resolve(context.Background())
	assert.Error(t, err)
}

func TestPlanQueriesDeduplicatesCaseInsensitively(t *testing.T) {
	n := ParsedName{Raw: "ada lovelace", First: "Ada", Last: "Lovelace"}
	qs := PlanQueries(n, DefaultVariants(), DefaultNicknames)
	require.Len(t, qs, 1)
	assert.True(t, strings.EqualFold("Ada Lovelace", qs[0].Text))
}
