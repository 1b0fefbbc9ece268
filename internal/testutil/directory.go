// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package testutil provides an in-memory directory server for tests of the
// transport, resolution, and fetch stages.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pdiddy/scholars-harvest/internal/httputil"
	"github.com/pdiddy/scholars-harvest/internal/scholars"
	"github.com/pdiddy/scholars-harvest/pkg/types"
)

var linkedKinds = map[string]types.CollectionKind{
	"publications":           types.CollectionPublications,
	"grants":                 types.CollectionGrants,
	"teachingActivities":     types.CollectionTeachingActivities,
	"professionalActivities": types.CollectionProfessionalActivities,
}

type fault struct {
	status    int
	malformed bool
	remaining int // < 0 means forever
}

// Directory is a fake Scholars@UAB API backed by maps.
type Directory struct {
	Server *httptest.Server

	mu     sync.Mutex
	users  map[types.Identifier]scholars.User
	order  []types.Identifier
	linked map[types.CollectionKind]map[types.Identifier][]scholars.LinkedItem
	faults map[string]*fault
	hits   map[string]int
	bodies []map[string]any
}

// NewDirectory starts a fake directory that is closed when t ends.
func NewDirectory(t testing.TB) *Directory {
	t.Helper()
	d := &Directory{
		users:  make(map[types.Identifier]scholars.User),
		linked: make(map[types.CollectionKind]map[types.Identifier][]scholars.LinkedItem),
		faults: make(map[string]*fault),
		hits:   make(map[string]int),
	}
	d.Server = httptest.NewServer(http.HandlerFunc(d.serve))
	t.Cleanup(d.Server.Close)
	return d
}

// Client returns a directory client pointed at d with no throttling and
// one immediate retry.
func (d *Directory) Client() *scholars.Client {
	return d.ClientWith(httputil.NewLimiter(0), httputil.NewRetryPolicy(1, 0))
}

// ClientWith returns a client using the given limiter and retry policy.
func (d *Directory) ClientWith(l *httputil.Limiter, p *httputil.RetryPolicy) *scholars.Client {
	cfg := types.DirectoryConfig{
		HTTPConfig: types.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "scholars-harvest-test"},
		BaseURL:    d.Server.URL,
	}
	return scholars.New(cfg, l, p)
}

// AddUser registers u under u.ObjectID.
func (d *Directory) AddUser(u scholars.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[u.ObjectID]; !ok {
		d.order = append(d.order, u.ObjectID)
	}
	d.users[u.ObjectID] = u
}

// AddLinked appends items to owner's kind collection.
func (d *Directory) AddLinked(kind types.CollectionKind, owner types.Identifier, items ...scholars.LinkedItem) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.linked[kind] == nil {
		d.linked[kind] = make(map[types.Identifier][]scholars.LinkedItem)
	}
	d.linked[kind][owner] = append(d.linked[kind][owner], items...)
}

// Fail makes the next times requests to path answer with status. times < 0
// fails every request. Linked paths are keyed as "/grants/linkedTo/<owner>".
func (d *Directory) Fail(path string, status, times int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faults[path] = &fault{status: status, remaining: times}
}

// Malformed makes the next times requests to path return an undecodable body.
func (d *Directory) Malformed(path string, times int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faults[path] = &fault{status: http.StatusOK, malformed: true, remaining: times}
}

// Hits returns how many requests reached path.
func (d *Directory) Hits(path string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hits[path]
}

// TotalHits returns the number of requests served.
func (d *Directory) TotalHits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, h := range d.hits {
		n += h
	}
	return n
}

// SearchBodies returns the decoded bodies of every search request.
func (d *Directory) SearchBodies() []map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]map[string]any(nil), d.bodies...)
}

func (d *Directory) serve(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	var body map[string]any
	if r.Method == http.MethodPost {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	key := path
	if strings.HasSuffix(path, "/linkedTo") {
		key = path + "/" + jsonID(body["objectId"])
	}

	d.mu.Lock()
	d.hits[key]++
	if path == "/users" && r.Method == http.MethodPost {
		d.bodies = append(d.bodies, body)
	}
	f := d.faults[key]
	if f != nil && f.remaining != 0 {
		if f.remaining > 0 {
			f.remaining--
		}
		status, malformed := f.status, f.malformed
		d.mu.Unlock()
		w.WriteHeader(status)
		if malformed {
			w.Write([]byte(`{"resource": [`))
		}
		return
	}
	d.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/users/"):
		d.serveUser(w, strings.TrimPrefix(path, "/users/"))
	case r.Method == http.MethodPost && path == "/users":
		d.serveSearch(w, body)
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/linkedTo"):
		kind, ok := linkedKinds[strings.TrimSuffix(strings.TrimPrefix(path, "/"), "/linkedTo")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		d.serveLinked(w, kind, body)
	default:
		http.NotFound(w, r)
	}
}

func (d *Directory) serveUser(w http.ResponseWriter, rawID string) {
	id, err := types.ParseIdentifier(rawID)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	d.mu.Lock()
	u, ok := d.users[id]
	d.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}`))
		return
	}
	writeJSON(w, u)
}

func (d *Directory) serveSearch(w http.ResponseWriter, body map[string]any) {
	params, _ := body["params"].(map[string]any)
	text, _ := params["text"].(string)
	facets := decodeFacets(body["filters"])

	d.mu.Lock()
	var hits []scholars.User
	for _, id := range d.order {
		u := d.users[id]
		if matchesText(u, text) && matchesFacets(u, facets) {
			hits = append(hits, u)
		}
	}
	d.mu.Unlock()

	start, per := pagination(body)
	writeJSON(w, map[string]any{
		"pagination": map[string]any{"total": len(hits)},
		"resource":   window(hits, start, per),
	})
}

func (d *Directory) serveLinked(w http.ResponseWriter, kind types.CollectionKind, body map[string]any) {
	owner, _ := types.ParseIdentifier(jsonID(body["objectId"]))
	d.mu.Lock()
	items := d.linked[kind][owner]
	d.mu.Unlock()

	start, per := pagination(body)
	writeJSON(w, map[string]any{
		"pagination": map[string]any{"total": len(items)},
		"items":      window(items, start, per),
	})
}

func matchesText(u scholars.User, text string) bool {
	name := strings.ToLower(u.FirstName + " " + u.LastName)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		if !strings.Contains(name, tok) {
			return false
		}
	}
	return true
}

func matchesFacets(u scholars.User, facets []scholars.Facet) bool {
	for _, f := range facets {
		var fields []string
		switch f.Name {
		case "department":
			fields = u.Departments()
		case "interest":
			fields = u.ResearchInterests
		}
		if !anyContains(fields, f.Values) {
			return false
		}
	}
	return true
}

func anyContains(fields, values []string) bool {
	for _, field := range fields {
		for _, v := range values {
			if strings.Contains(strings.ToLower(field), strings.ToLower(v)) {
				return true
			}
		}
	}
	return false
}

func decodeFacets(v any) []scholars.Facet {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var facets []scholars.Facet
	_ = json.Unmarshal(data, &facets)
	return facets
}

func pagination(body map[string]any) (start, per int) {
	p, _ := body["pagination"].(map[string]any)
	s, _ := p["startFrom"].(float64)
	n, _ := p["perPage"].(float64)
	return int(s), int(n)
}

func window[T any](all []T, start, per int) []T {
	if start >= len(all) {
		return []T{}
	}
	return all[start:min(start+per, len(all))]
}

func jsonID(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatInt(int64(x), 10)
	case string:
		return x
	}
	return ""
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
