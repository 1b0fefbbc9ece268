// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package paginate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/scholars-harvest/pkg/types"
)

// scripted serves pre-built pages keyed by offset and records each request.
type scripted struct {
	pages    map[int]types.PageResult[int]
	failAt   int
	requests []types.PageRequest
}

func (s *scripted) fetch(_ context.Context, req types.PageRequest) (types.PageResult[int], error) {
	s.requests = append(s.requests, req)
	if s.failAt > 0 && req.Offset == s.failAt {
		return types.PageResult[int]{}, errors.New("HTTP 502")
	}
	return s.pages[req.Offset], nil
}

func items(from, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = from + i
	}
	return out
}

func offsets(reqs []types.PageRequest) []int {
	out := make([]int, len(reqs))
	for i, r := range reqs {
		out[i] = r.Offset
	}
	return out
}

func TestPaginatorTermination(t *testing.T) {
	tests := []struct {
		name        string
		pages       map[int]types.PageResult[int]
		wantOffsets []int
		wantItems   int
	}{
		{
			name: "full pages to total",
			pages: map[int]types.PageResult[int]{
				0:   {Items: items(0, 50), TotalCount: 237},
				50:  {Items: items(50, 50), TotalCount: 237},
				100: {Items: items(100, 50), TotalCount: 237},
				150: {Items: items(150, 50), TotalCount: 237},
				200: {Items: items(200, 37), TotalCount: 237},
			},
			wantOffsets: []int{0, 50, 100, 150, 200},
			wantItems:   237,
		},
		{
			name: "short non-final page does not stop",
			pages: map[int]types.PageResult[int]{
				0:   {Items: items(0, 50), TotalCount: 237},
				50:  {Items: items(50, 20), TotalCount: 237},
				100: {Items: items(100, 50), TotalCount: 237},
				150: {Items: items(150, 50), TotalCount: 237},
				200: {Items: items(200, 37), TotalCount: 237},
			},
			wantOffsets: []int{0, 50, 100, 150, 200},
			wantItems:   207,
		},
		{
			name: "spurious empty page does not stop",
			pages: map[int]types.PageResult[int]{
				0:   {Items: items(0, 50), TotalCount: 237},
				50:  {Items: nil, TotalCount: 237},
				100: {Items: items(100, 50), TotalCount: 237},
				150: {Items: items(150, 50), TotalCount: 237},
				200: {Items: items(200, 37), TotalCount: 237},
			},
			wantOffsets: []int{0, 50, 100, 150, 200},
			wantItems:   187,
		},
		{
			name: "latest total wins when it shrinks",
			pages: map[int]types.PageResult[int]{
				0:  {Items: items(0, 50), TotalCount: 237},
				50: {Items: items(50, 40), TotalCount: 90},
			},
			wantOffsets: []int{0, 50},
			wantItems:   90,
		},
		{
			name: "latest total wins when it grows",
			pages: map[int]types.PageResult[int]{
				0:   {Items: items(0, 50), TotalCount: 60},
				50:  {Items: items(50, 50), TotalCount: 120},
				100: {Items: items(100, 20), TotalCount: 120},
			},
			wantOffsets: []int{0, 50, 100},
			wantItems:   120,
		},
		{
			name:        "empty listing",
			pages:       map[int]types.PageResult[int]{0: {TotalCount: 0}},
			wantOffsets: []int{0},
			wantItems:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &scripted{pages: tt.pages}
			p, err := New(s.fetch, 50, "dateDesc")
			require.NoError(t, err)

			got, err := p.Collect(context.Background())
			require.NoError(t, err)
			assert.Len(t, got, tt.wantItems)
			assert.Equal(t, tt.wantOffsets, offsets(s.requests))
			assert.Equal(t, len(tt.wantOffsets), p.Requests())
			for _, r := range s.requests {
				assert.Equal(t, 50, r.PageSize)
				assert.Equal(t, "dateDesc", r.SortKey)
			}
		})
	}
}

func TestPaginatorPreservesServerOrder(t *testing.T) {
	s := &scripted{pages: map[int]types.PageResult[int]{
		0: {Items: []int{9, 3, 7}, TotalCount: 5},
		3: {Items: []int{1, 8}, TotalCount: 5},
	}}
	p, err := New(s.fetch, 3, "")
	require.NoError(t, err)

	got, err := p.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{9, 3, 7, 1, 8}, got)
}

func TestPaginatorPageFailureIsTerminal(t *testing.T) {
	s := &scripted{
		pages: map[int]types.PageResult[int]{
			0:   {Items: items(0, 50), TotalCount: 237},
			50:  {Items: items(50, 50), TotalCount: 237},
			150: {Items: items(150, 50), TotalCount: 237},
		},
		failAt: 100,
	}
	p, err := New(s.fetch, 50, "")
	require.NoError(t, err)

	got, err := p.Collect(context.Background())
	require.Error(t, err)

	var pe *PageError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 100, pe.Offset)
	assert.Len(t, got, 100)
	assert.Equal(t, []int{0, 50, 100}, offsets(s.requests))
}

func TestPaginatorSinglePass(t *testing.T) {
	s := &scripted{pages: map[int]types.PageResult[int]{0: {Items: items(0, 3), TotalCount: 3}}}
	p, err := New(s.fetch, 50, "")
	require.NoError(t, err)

	_, err = p.Collect(context.Background())
	require.NoError(t, err)

	_, err = p.Collect(context.Background())
	assert.ErrorIs(t, err, ErrConsumed)
	assert.Len(t, s.requests, 1)
}

func TestPaginatorStopsWhenConsumerBreaks(t *testing.T) {
	s := &scripted{pages: map[int]types.PageResult[int]{
		0:  {Items: items(0, 50), TotalCount: 100},
		50: {Items: items(50, 50), TotalCount: 100},
	}}
	p, err := New(s.fetch, 50, "")
	require.NoError(t, err)

	var seen int
	for _, err := range p.All(context.Background()) {
		require.NoError(t, err)
		seen++
		if seen == 10 {
			break
		}
	}
	assert.Equal(t, 10, seen)
	assert.Len(t, s.requests, 1)
}

func TestNewRejectsBadPageSize(t *testing.T) {
	s := &scripted{}
	_, err := New(s.fetch, 0, "")
	assert.Error(t, err)
	_, err = New(s.fetch, types.MaxPageSize+1, "")
	assert.Error(t, err)
}
