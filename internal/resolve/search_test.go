// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/scholars-harvest/internal/paginate"
	"github.com/pdiddy/scholars-harvest/internal/scholars"
	"github.com/pdiddy/scholars-harvest/internal/testutil"
	"github.com/pdiddy/scholars-harvest/pkg/types"
)

func TestParseFacet(t *testing.T) {
	f, err := ParseFacet("Department= Medicine , Surgery,")
	require.NoError(t, err)
	assert.Equal(t, scholars.Facet{Name: "department", Values: []string{"Medicine", "Surgery"}}, f)

	_, err = ParseFacet("department")
	assert.Error(t, err)
	_, err = ParseFacet("department=")
	assert.Error(t, err)
}

func TestFilterMatches(t *testing.T) {
	u := deptUser(1, "Ada", "Lovelace", "Medicine", "Pediatrics")
	u.ResearchInterests = scholars.Interests{"Diabetes"}

	tests := []struct {
		name   string
		facets []scholars.Facet
		want   bool
	}{
		{"no facets", nil, true},
		{"or within facet", []scholars.Facet{{Name: FacetDepartment, Values: []string{"surgery", "pediatric"}}}, true},
		{"and across facets", []scholars.Facet{
			{Name: FacetDepartment, Values: []string{"medicine"}},
			{Name: FacetInterest, Values: []string{"diabetes"}},
		}, true},
		{"and fails when one facet misses", []scholars.Facet{
			{Name: FacetDepartment, Values: []string{"medicine"}},
			{Name: FacetInterest, Values: []string{"cancer"}},
		}, false},
		{"position facet", []scholars.Facet{{Name: FacetPosition, Values: []string{"professor"}}}, true},
		{"unknown facet", []scholars.Facet{{Name: "building", Values: []string{"x"}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Filter{Facets: tt.facets}.Matches(&u))
		})
	}
}

func TestFilteredSearchPagesThroughResults(t *testing.T) {
	dir := testutil.NewDirectory(t)
	for i := 1; i <= 23; i++ {
		dept := "Medicine"
		if i%4 == 0 {
			dept = "Surgery"
		}
		dir.AddUser(deptUser(types.Identifier(i), fmt.Sprintf("First%d", i), fmt.Sprintf("Last%d", i), dept))
	}

	s := &FilteredSearch{
		Search:   dir.Client(),
		Filter:   Filter{Facets: []scholars.Facet{{Name: FacetDepartment, Values: []string{"medicine"}}}},
		PageSize: 5,
	}
	res, err := s.Resolve(context.Background())
	require.NoError(t, err)

	assert.Len(t, res.Targets, 18)
	assert.Equal(t, 4, res.Stats.Pages)
	assert.Len(t, dir.SearchBodies(), 4)
	for _, tg := range res.Targets {
		assert.Equal(t, types.SourceSearch, tg.Source)
		assert.Equal(t, "department=medicine", tg.Query)
		assert.NotEmpty(t, tg.LastName)
	}
}

// looseSearch ignores facets, so Verify has something to drop.
type looseSearch struct{ users []scholars.User }

func (l looseSearch) Search(ctx context.Context, _ scholars.SearchQuery, req types.PageRequest) (types.PageResult[scholars.User], error) {
	if req.Offset >= len(l.users) {
		return types.PageResult[scholars.User]{TotalCount: len(l.users)}, nil
	}
	end := min(req.Offset+req.PageSize, len(l.users))
	return types.PageResult[scholars.User]{Items: l.users[req.Offset:end], TotalCount: len(l.users)}, nil
}

func TestFilteredSearchVerify(t *testing.T) {
	users := []scholars.User{
		deptUser(1, "Ada", "Lovelace", "Medicine"),
		deptUser(2, "Alan", "Turing", "Computer Science"),
		deptUser(1, "Ada", "Lovelace", "Medicine"),
	}
	filter := Filter{Facets: []scholars.Facet{{Name: FacetDepartment, Values: []string{"medicine"}}}}

	res, err := (&FilteredSearch{Search: looseSearch{users}, Filter: filter, PageSize: 2, Verify: true}).Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []types.Identifier{1}, ids(res.Targets))
	assert.Equal(t, 1, res.Stats.Rejected)

	res, err = (&FilteredSearch{Search: looseSearch{users}, Filter: filter, PageSize: 2}).Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []types.Identifier{1, 2}, ids(res.Targets))
}

func TestFilteredSearchPageFailure(t *testing.T) {
	dir := testutil.NewDirectory(t)
	dir.Fail("/users", http.StatusBadGateway, -1)

	_, err := (&FilteredSearch{Search: dir.Client(), Filter: Filter{Text: "diabetes"}}).Resolve(context.Background())
	require.Error(t, err)
	var pe *paginate.PageError
	assert.ErrorAs(t, err, &pe)
}

func TestFilteredSearchRejectsEmptyFilter(t *testing.T) {
	_, err := (&FilteredSearch{Search: looseSearch{}}).Resolve(context.Background())
	assert.Error(t, err)
}

func TestReadNames(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		return p
	}

	got, err := ReadNames(write("names.txt", "# roster\nAda Lovelace\n\n  Alan Turing  \n"), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Ada Lovelace", "Alan Turing"}, got)

	got, err = ReadNames(write("members.csv", "Member,Role\n\"Lovelace, Ada\",PI\nAlan Turing,Co-I\n,x\n"), "member")
	require.NoError(t, err)
	assert.Equal(t, []string{"Lovelace, Ada", "Alan Turing"}, got)

	got, err = ReadNames(write("split.csv", "first,last\nAda,Lovelace\n"), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Ada Lovelace"}, got)

	_, err = ReadNames(write("bad.csv", "email\nx@y\n"), "name")
	assert.Error(t, err)

	got, err = ReadNames(write("names.yaml", "- Ada Lovelace\n- Alan Turing\n"), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Ada Lovelace", "Alan Turing"}, got)

	got, err = ReadNames(write("team.yml", "names:\n  - Grace Hopper\n"), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Grace Hopper"}, got)
}
