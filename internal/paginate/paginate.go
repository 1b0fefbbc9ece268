// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package paginate walks offset-paginated listings as a lazy, single-pass
// sequence of items.
//
// The server-reported total is the only termination signal. Short pages and
// empty pages before the total is reached are followed by the next page, and
// the total from the most recent page always wins over earlier values.
package paginate

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync/atomic"

	"github.com/pdiddy/scholars-harvest/pkg/types"
)

// ErrConsumed is returned when a Paginator is iterated a second time.
var ErrConsumed = errors.New("paginator already consumed")

// FetchFunc retrieves one page. Callers pass a function already wrapped by
// the rate limiter and retry policy.
type FetchFunc[T any] func(ctx context.Context, req types.PageRequest) (types.PageResult[T], error)

// PageError is the terminal failure of a sequence.
type PageError struct {
	Offset int
	Err    error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("fetching page at offset %d: %v", e.Offset, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

// Paginator yields the items of one listing in server order.
type Paginator[T any] struct {
	fetch    FetchFunc[T]
	pageSize int
	sortKey  string

	consumed atomic.Bool
	requests int
	total    int
}

// New returns a Paginator over fetch. pageSize must be within
// (0, types.MaxPageSize].
func New[T any](fetch FetchFunc[T], pageSize int, sortKey string) (*Paginator[T], error) {
	if err := (types.PageRequest{PageSize: pageSize}).Validate(); err != nil {
		return nil, err
	}
	return &Paginator[T]{fetch: fetch, pageSize: pageSize, sortKey: sortKey}, nil
}

// All returns the item sequence. Iteration stops early if the consumer
// breaks; a page failure is yielded once as a *PageError and ends the
// sequence. Only the first call to All produces items.
func (p *Paginator[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		if !p.consumed.CompareAndSwap(false, true) {
			yield(zero, ErrConsumed)
			return
		}

		for offset := 0; ; offset += p.pageSize {
			req := types.PageRequest{Offset: offset, PageSize: p.pageSize, SortKey: p.sortKey}
			p.requests++
			page, err := p.fetch(ctx, req)
			if err != nil {
				yield(zero, &PageError{Offset: offset, Err: err})
				return
			}
			p.total = page.TotalCount

			for _, item := range page.Items {
				if !yield(item, nil) {
					return
				}
			}
			if offset+p.pageSize >= page.TotalCount {
				return
			}
		}
	}
}

// Collect drains the sequence. On failure it returns the items gathered so
// far together with the error.
func (p *Paginator[T]) Collect(ctx context.Context) ([]T, error) {
	var items []T
	for item, err := range p.All(ctx) {
		if err != nil {
			return items, err
		}
		items = append(items, item)
	}
	return items, nil
}

// Requests returns the number of page requests issued so far.
func (p *Paginator[T]) Requests() int { return p.requests }

// Total returns the total reported by the most recent page.
func (p *Paginator[T]) Total() int { return p.total }
