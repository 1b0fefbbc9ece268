// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/scholars-harvest/internal/httputil"
	"github.com/pdiddy/scholars-harvest/internal/logging"
	"github.com/pdiddy/scholars-harvest/internal/scholars"
	"github.com/pdiddy/scholars-harvest/pkg/types"
)

var nameQueries = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "scholars_name_queries_total",
		Help: "Directory searches issued while resolving names, by variant",
	},
	[]string{"variant"},
)

// DefaultNicknames maps common diminutives to the formal first name the
// directory lists.
var DefaultNicknames = map[string]string{
	"alex":  "Alexander",
	"ben":   "Benjamin",
	"bill":  "William",
	"bob":   "Robert",
	"chris": "Christopher",
	"dan":   "Daniel",
	"dave":  "David",
	"jim":   "James",
	"joe":   "Joseph",
	"liz":   "Elizabeth",
	"matt":  "Matthew",
	"mike":  "Michael",
	"nick":  "Nicholas",
	"rj":    "Reaford",
	"rob":   "Robert",
	"stan":  "Stanford",
	"steve": "Stephen",
	"terry": "Terrence",
	"tom":   "Thomas",
	"tony":  "Anthony",
}

var suffixes = map[string]bool{"jr": true, "sr": true, "ii": true, "iii": true, "iv": true}

// ParsedName is a human-supplied name split into parts. Last may hold
// several words when the input was "De La Cruz, Maria".
type ParsedName struct {
	Raw    string
	First  string
	Middle []string
	Last   string
	Suffix string
}

// ParseName normalizes whitespace, strips a trailing generational suffix,
// and accepts both "First Middle Last" and "Last, First Middle".
func ParseName(raw string) ParsedName {
	n := ParsedName{Raw: strings.Join(strings.Fields(raw), " ")}
	fields := strings.Fields(n.Raw)

	if len(fields) > 1 {
		tail := strings.ToLower(strings.Trim(fields[len(fields)-1], ".,"))
		if suffixes[tail] {
			n.Suffix = fields[len(fields)-1]
			fields = fields[:len(fields)-1]
			fields[len(fields)-1] = strings.TrimRight(fields[len(fields)-1], ",")
		}
	}

	rest := strings.Join(fields, " ")
	if last, first, ok := strings.Cut(rest, ","); ok {
		n.Last = strings.TrimSpace(last)
		given := strings.Fields(first)
		if len(given) > 0 {
			n.First = given[0]
			n.Middle = given[1:]
		}
		return n
	}

	switch len(fields) {
	case 0:
	case 1:
		n.Last = fields[0]
	default:
		n.First = fields[0]
		n.Last = fields[len(fields)-1]
		n.Middle = fields[1 : len(fields)-1]
	}
	return n
}

// Full returns "First Middle Last" without the suffix.
func (n ParsedName) Full() string {
	parts := append([]string{n.First}, n.Middle...)
	return joinName(append(parts, n.Last)...)
}

// Display returns the name with the suffix reattached.
func (n ParsedName) Display() string {
	return joinName(n.Full(), n.Suffix)
}

func joinName(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

// Variant builds zero or more search strings from a parsed name. Variants
// are pure; the matcher tries them in order.
type Variant struct {
	Name  string
	Build func(n ParsedName, nicknames map[string]string) []string
}

// ExactVariant searches for the name exactly as given.
func ExactVariant() Variant {
	return Variant{Name: "exact", Build: func(n ParsedName, _ map[string]string) []string {
		return []string{n.Raw}
	}}
}

// SuffixStrippedVariant drops Jr/Sr/II.. and reorders "Last, First".
func SuffixStrippedVariant() Variant {
	return Variant{Name: "suffix_stripped", Build: func(n ParsedName, _ map[string]string) []string {
		return []string{n.Full()}
	}}
}

// NicknameVariant substitutes the formal form of the first name.
func NicknameVariant() Variant {
	return Variant{Name: "nickname", Build: func(n ParsedName, nicknames map[string]string) []string {
		formal, ok := nicknames[strings.ToLower(n.First)]
		if !ok {
			return nil
		}
		return []string{joinName(append(append([]string{formal}, n.Middle...), n.Last)...)}
	}}
}

// HyphenVariant handles hyphenated surnames: the hyphenated form, the
// segments joined with a space, then each segment on its own.
func HyphenVariant() Variant {
	return Variant{Name: "hyphen", Build: func(n ParsedName, _ map[string]string) []string {
		if !strings.Contains(n.Last, "-") {
			return nil
		}
		var segs []string
		for _, s := range strings.Split(n.Last, "-") {
			if s = strings.TrimSpace(s); s != "" {
				segs = append(segs, s)
			}
		}
		out := []string{
			joinName(n.First, n.Last),
			joinName(n.First, strings.Join(segs, " ")),
		}
		for _, s := range segs {
			out = append(out, joinName(n.First, s))
		}
		return out
	}}
}

// FirstLastVariant drops middle names and initials.
func FirstLastVariant() Variant {
	return Variant{Name: "first_last", Build: func(n ParsedName, _ map[string]string) []string {
		if len(n.Middle) == 0 {
			return nil
		}
		return []string{joinName(n.First, n.Last)}
	}}
}

// DefaultVariants returns the strategies in the order they are tried.
func DefaultVariants() []Variant {
	return []Variant{
		ExactVariant(),
		SuffixStrippedVariant(),
		NicknameVariant(),
		HyphenVariant(),
		FirstLastVariant(),
	}
}

// Query is one planned search.
type Query struct {
	Variant string `json:"variant" yaml:"variant"`
	Text    string `json:"text" yaml:"text"`
}

// PlanQueries expands the variants into the ordered, de-duplicated list of
// search strings for n.
func PlanQueries(n ParsedName, variants []Variant, nicknames map[string]string) []Query {
	seen := make(map[string]bool)
	var out []Query
	for _, v := range variants {
		for _, text := range v.Build(n, nicknames) {
			key := strings.ToLower(strings.TrimSpace(text))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, Query{Variant: v.Name, Text: text})
		}
	}
	return out
}

// MatchStatus is the result class of one name.
type MatchStatus string

const (
	MatchResolved  MatchStatus = "resolved"
	MatchAmbiguous MatchStatus = "ambiguous"
	MatchNotFound  MatchStatus = "not_found"
	MatchFailed    MatchStatus = "failed"
	MatchOverride  MatchStatus = "override"
)

// QueryAttempt records one search issued for a name.
type QueryAttempt struct {
	Variant    string `json:"variant" yaml:"variant"`
	Text       string `json:"text" yaml:"text"`
	Hits       int    `json:"hits" yaml:"hits"`
	Candidates int    `json:"candidates" yaml:"candidates"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// NameResolution is the audit trail of one name.
type NameResolution struct {
	Input    string                 `json:"input" yaml:"input"`
	Status   MatchStatus            `json:"status" yaml:"status"`
	Exact    bool                   `json:"exact,omitempty" yaml:"exact,omitempty"`
	Targets  []types.ResolvedTarget `json:"targets,omitempty" yaml:"targets,omitempty"`
	Attempts []QueryAttempt         `json:"attempts,omitempty" yaml:"attempts,omitempty"`
	Failure  *types.FailureRecord   `json:"failure,omitempty" yaml:"failure,omitempty"`
}

// Queries returns every search string tried.
func (r NameResolution) Queries() []string {
	out := make([]string, len(r.Attempts))
	for i, a := range r.Attempts {
		out[i] = a.Text
	}
	return out
}

// NameMatcher resolves human-supplied names through directory searches.
type NameMatcher struct {
	Search    Searcher
	Variants  []Variant
	Nicknames map[string]string

	// Overrides pins names to identifiers, bypassing search. Keys compare
	// case-insensitively against the raw and the suffix-stripped name.
	Overrides map[string]types.Identifier

	// PageSize bounds the hits inspected per query (default 50).
	PageSize int

	logger zerolog.Logger
}

// NewNameMatcher returns a matcher with the default variants and the
// built-in nickname table merged with extra.
func NewNameMatcher(s Searcher, extra map[string]string, overrides map[string]types.Identifier) *NameMatcher {
	nick := maps.Clone(DefaultNicknames)
	for k, v := range extra {
		nick[strings.ToLower(k)] = v
	}
	ov := make(map[string]types.Identifier, len(overrides))
	for k, v := range overrides {
		ov[strings.ToLower(strings.Join(strings.Fields(k), " "))] = v
	}
	return &NameMatcher{
		Search:    s,
		Variants:  DefaultVariants(),
		Nicknames: nick,
		Overrides: ov,
		PageSize:  50,
		logger:    logging.NewLogger("names"),
	}
}

// Match resolves one name. It never returns an error: transport failures
// are recorded on the attempts and, if nothing matched, on the failure.
func (m *NameMatcher) Match(ctx context.Context, raw string) NameResolution {
	n := ParseName(raw)
	res := NameResolution{Input: n.Raw}

	if id, ok := m.override(n); ok {
		res.Status = MatchOverride
		res.Targets = []types.ResolvedTarget{{
			ID: id, Source: types.SourceOverride, Query: n.Raw, FirstName: n.First, LastName: n.Last,
		}}
		return res
	}

	var lastErr error
	for _, q := range PlanQueries(n, m.Variants, m.Nicknames) {
		nameQueries.WithLabelValues(q.Variant).Inc()
		attempt := QueryAttempt{Variant: q.Variant, Text: q.Text}

		page, err := m.Search.Search(ctx, scholars.SearchQuery{Text: q.Text}, types.PageRequest{PageSize: m.pageSize()})
		if err != nil {
			lastErr = err
			attempt.Error = err.Error()
			res.Attempts = append(res.Attempts, attempt)
			m.logger.Warn().Str("name", n.Raw).Str("query", q.Text).Err(err).Msg("name search failed")
			continue
		}
		attempt.Hits = len(page.Items)

		exact, partial := classify(ParseName(q.Text), page.Items)
		picked := exact
		if len(picked) == 0 {
			picked = partial
		}
		attempt.Candidates = len(picked)
		res.Attempts = append(res.Attempts, attempt)
		if len(picked) == 0 {
			continue
		}

		res.Exact = len(exact) > 0
		res.Status = MatchResolved
		if len(picked) > 1 {
			res.Status = MatchAmbiguous
		}
		for _, u := range picked {
			res.Targets = append(res.Targets, targetFromUser(u, types.SourceName, n.Raw))
		}
		return res
	}

	f := &types.FailureRecord{
		Target:  types.ResolvedTarget{Source: types.SourceName, Query: n.Raw, FirstName: n.First, LastName: n.Last},
		Kind:    types.FailureNotFound,
		Cause:   fmt.Sprintf("no directory match after %d queries", len(res.Attempts)),
		Queries: res.Queries(),
	}
	res.Status = MatchNotFound
	if lastErr != nil {
		res.Status = MatchFailed
		f.Kind = httputil.KindOf(lastErr)
		if f.Kind == types.FailureNotFound {
			f.Kind = types.FailurePermanent
		}
		f.Cause = fmt.Sprintf("no match and at least one query failed: %v", lastErr)
		f.Attempts = httputil.AttemptsOf(lastErr)
	}
	res.Failure = f
	return res
}

func (m *NameMatcher) override(n ParsedName) (types.Identifier, bool) {
	for _, key := range []string{n.Raw, n.Full(), n.Display()} {
		if id, ok := m.Overrides[strings.ToLower(key)]; ok {
			return id, true
		}
	}
	return 0, false
}

func (m *NameMatcher) pageSize() int {
	if m.PageSize <= 0 {
		return 50
	}
	return min(m.PageSize, types.MaxPageSize)
}

// classify splits hits into exact full-name matches and partial matches
// (same surname, one first name a prefix of the other).
func classify(q ParsedName, hits []scholars.User) (exact, partial []*scholars.User) {
	want := strings.ToLower(q.Full())
	qFirst := strings.ToLower(q.First)
	qLast := strings.ToLower(q.Last)
	for i := range hits {
		u := &hits[i]
		first := strings.ToLower(strings.TrimSpace(u.FirstName))
		last := strings.ToLower(strings.TrimSpace(u.LastName))
		if joinName(first, last) == want {
			exact = append(exact, u)
			continue
		}
		if !sameSurname(last, qLast) || first == "" || qFirst == "" {
			continue
		}
		if strings.HasPrefix(first, qFirst) || strings.HasPrefix(qFirst, first) {
			partial = append(partial, u)
		}
	}
	return exact, partial
}

// sameSurname accepts equal surnames and a query surname that is one
// segment of a compound surname ("smith" vs "o'brien-smith").
func sameSurname(candidate, query string) bool {
	if candidate == "" || query == "" {
		return false
	}
	if candidate == query {
		return true
	}
	for _, seg := range strings.FieldsFunc(candidate, func(r rune) bool { return r == '-' || r == ' ' }) {
		if seg == query {
			return true
		}
	}
	return false
}

// NameResolver resolves a batch of names on a bounded pool.
type NameResolver struct {
	Matcher *NameMatcher
	Names   []string
	Workers int
}

// Resolve matches every name. Ambiguous names contribute all candidates;
// names that resolve to nothing become failures carrying every query tried.
func (r *NameResolver) Resolve(ctx context.Context) (Result, error) {
	if len(r.Names) == 0 {
		return Result{}, fmt.Errorf("no names given")
	}
	workers := max(r.Workers, 1)

	resolutions := make([]NameResolution, len(r.Names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, name := range r.Names {
		g.Go(func() error {
			resolutions[i] = r.Matcher.Match(gctx, name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	res := Result{Names: resolutions}
	for _, nr := range resolutions {
		res.Stats.Queries += len(nr.Attempts)
		if nr.Failure != nil {
			res.Failures = append(res.Failures, *nr.Failure)
			res.Stats.Failed++
			continue
		}
		res.Targets = append(res.Targets, nr.Targets...)
	}
	res.Targets = dedupe(res.Targets)
	res.Stats.Matched = len(res.Targets)
	return res, nil
}
