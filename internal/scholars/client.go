// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scholars is the transport adapter for the Scholars@UAB directory
// API. Every logical call goes through the run's retry policy, and every
// attempt first takes a grant from the run's rate limiter.
package scholars

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/pdiddy/scholars-harvest/internal/httputil"
	"github.com/pdiddy/scholars-harvest/internal/logging"
	"github.com/pdiddy/scholars-harvest/pkg/types"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://scholars.uab.edu/api"

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 512

var (
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scholars_http_requests_total",
			Help: "HTTP requests sent to the directory by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scholars_http_request_duration_seconds",
			Help:    "Directory request latency by endpoint",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
)

// linkedPaths maps collections to their linkedTo endpoint.
var linkedPaths = map[types.CollectionKind]string{
	types.CollectionPublications:           "publications",
	types.CollectionGrants:                 "grants",
	types.CollectionTeachingActivities:     "teachingActivities",
	types.CollectionProfessionalActivities: "professionalActivities",
}

// Facet restricts a search to entities whose named facet matches any of
// Values.
type Facet struct {
	Name   string   `json:"name" yaml:"name"`
	Values []string `json:"values" yaml:"values"`
}

// SearchQuery is a user search: free text plus facet filters.
type SearchQuery struct {
	Text   string  `json:"text,omitempty" yaml:"text,omitempty"`
	Facets []Facet `json:"facets,omitempty" yaml:"facets,omitempty"`
}

// Client talks to the directory.
type Client struct {
	http      *http.Client
	baseURL   string
	userAgent string
	token     string
	limiter   *httputil.Limiter
	retry     *httputil.RetryPolicy
	logger    zerolog.Logger
}

// New returns a Client. The limiter and retry policy are shared with every
// other component of the run. A nil retry policy means the defaults.
func New(cfg types.DirectoryConfig, limiter *httputil.Limiter, retry *httputil.RetryPolicy) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if retry == nil {
		retry = httputil.DefaultRetryPolicy()
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		baseURL:   strings.TrimRight(base, "/"),
		userAgent: cfg.UserAgent,
		token:     cfg.Token,
		limiter:   limiter,
		retry:     retry,
		logger:    logging.NewLogger("scholars"),
	}
}

// User fetches one user profile. A missing identifier fails with a
// not_found RequestError.
func (c *Client) User(ctx context.Context, id types.Identifier) (*User, error) {
	var u User
	if err := c.call(ctx, "users.get", http.MethodGet, "/users/"+id.String(), nil, &u); err != nil {
		return nil, err
	}
	if !u.ObjectID.Valid() {
		u.ObjectID = id
	}
	return &u, nil
}

type paginationBody struct {
	StartFrom int `json:"startFrom"`
	PerPage   int `json:"perPage"`
}

type searchBody struct {
	Params struct {
		By       string `json:"by"`
		Category string `json:"category"`
		Text     string `json:"text"`
	} `json:"params"`
	Pagination paginationBody `json:"pagination"`
	Filters    []Facet        `json:"filters,omitempty"`
	Sort       string         `json:"sort,omitempty"`
}

// Search returns one page of users matching q.
func (c *Client) Search(ctx context.Context, q SearchQuery, req types.PageRequest) (types.PageResult[User], error) {
	if err := req.Validate(); err != nil {
		return types.PageResult[User]{}, err
	}
	var body searchBody
	body.Params.By = "text"
	body.Params.Category = "user"
	body.Params.Text = q.Text
	body.Pagination = paginationBody{StartFrom: req.Offset, PerPage: req.PageSize}
	body.Filters = q.Facets
	body.Sort = req.SortKey

	var env page[User]
	if err := c.call(ctx, "users.search", http.MethodPost, "/users", body, &env); err != nil {
		return types.PageResult[User]{}, err
	}
	return env.result(req), nil
}

type linkedBody struct {
	ObjectID        types.Identifier `json:"objectId"`
	Category        string           `json:"category"`
	Pagination      paginationBody   `json:"pagination"`
	FavouritesFirst bool             `json:"favouritesFirst"`
	Sort            string           `json:"sort,omitempty"`
}

// Linked returns one page of the kind collection owned by owner.
func (c *Client) Linked(ctx context.Context, kind types.CollectionKind, owner types.Identifier, req types.PageRequest) (types.PageResult[LinkedItem], error) {
	path, ok := linkedPaths[kind]
	if !ok {
		return types.PageResult[LinkedItem]{}, fmt.Errorf("unknown collection %q", kind)
	}
	if err := req.Validate(); err != nil {
		return types.PageResult[LinkedItem]{}, err
	}
	body := linkedBody{
		ObjectID:        owner,
		Category:        "user",
		Pagination:      paginationBody{StartFrom: req.Offset, PerPage: req.PageSize},
		FavouritesFirst: true,
		Sort:            req.SortKey,
	}

	var env page[LinkedItem]
	if err := c.call(ctx, "linked."+string(kind), http.MethodPost, "/"+path+"/linkedTo", body, &env); err != nil {
		return types.PageResult[LinkedItem]{}, err
	}
	return env.result(req), nil
}

// call runs one logical request under the retry policy.
func (c *Client) call(ctx context.Context, op, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encoding %s request: %w", op, err)
		}
	}
	return c.retry.Do(ctx, op, func(ctx context.Context) error {
		if err := c.limiter.Acquire(ctx); err != nil {
			return err
		}
		return c.attempt(ctx, op, method, path, payload, out)
	})
}

// attempt sends one HTTP request and decodes a 2xx body into out.
func (c *Client) attempt(ctx context.Context, op, method, path string, payload []byte, out any) error {
	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	httpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		httpRequests.WithLabelValues(op, "error").Inc()
		return transportError(ctx, op, fmt.Errorf("%s %s: %w", method, path, err))
	}
	defer resp.Body.Close()
	httpRequests.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(ctx, op, fmt.Errorf("reading %s response: %w", op, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug().
			Str(logging.FieldOp, op).
			Str("path", path).
			Int("status_code", resp.StatusCode).
			Msg("directory returned error status")
		snippet := strings.TrimSpace(string(data))
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return httputil.StatusError(op, resp.StatusCode, snippet)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return httputil.MalformedError(op, err)
	}
	return nil
}

// transportError classifies a failed exchange. http.Client timeouts match
// context.DeadlineExceeded, so only the caller's own context decides
// whether the request was cancelled; anything else is a network failure.
func transportError(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return err
	}
	return &httputil.RequestError{Op: op, Class: httputil.ClassNetwork, Err: err}
}
