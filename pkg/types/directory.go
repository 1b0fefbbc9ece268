// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the data shared by the resolution, fetch, and sink
// stages: identifiers, page requests, entity records, and failure records.
package types

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Identifier is the opaque positive integer the directory assigns to a
// faculty entity.
type Identifier int64

// ParseIdentifier parses a decimal identifier. Zero and negative values are
// rejected.
func ParseIdentifier(s string) (Identifier, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid identifier %q: %w", s, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid identifier %q: must be positive", s)
	}
	return Identifier(n), nil
}

// Valid reports whether id is usable as a directory key.
func (id Identifier) Valid() bool { return id > 0 }

func (id Identifier) String() string { return strconv.FormatInt(int64(id), 10) }

// UnmarshalJSON accepts both 1234 and "1234". The directory returns
// objectId as a number on some endpoints and as a string on others.
func (id *Identifier) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(data, `"`))
	if s == "" || s == "null" {
		*id = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("decoding identifier %s: %w", data, err)
	}
	*id = Identifier(n)
	return nil
}

// TargetSource records which resolver produced a target.
type TargetSource string

const (
	SourceExplicit TargetSource = "explicit"
	SourceScanned  TargetSource = "scanned"
	SourceSearch   TargetSource = "search"
	SourceName     TargetSource = "name"
	SourceOverride TargetSource = "override"
)

// ResolvedTarget is an identifier plus the provenance that produced it.
// Names are carried when the resolver saw them so results can be sorted
// before any profile is fetched.
type ResolvedTarget struct {
	ID             Identifier   `json:"id" yaml:"id"`
	Source         TargetSource `json:"source" yaml:"source"`
	Query          string       `json:"query,omitempty" yaml:"query,omitempty"`
	FirstName      string       `json:"first_name,omitempty" yaml:"first_name,omitempty"`
	LastName       string       `json:"last_name,omitempty" yaml:"last_name,omitempty"`
	DiscoveryURLID string       `json:"discovery_url_id,omitempty" yaml:"discovery_url_id,omitempty"`
}

// Label returns a short human-readable description for progress output.
func (t ResolvedTarget) Label() string {
	name := strings.TrimSpace(t.FirstName + " " + t.LastName)
	switch {
	case name != "":
		return fmt.Sprintf("%s (%s)", name, t.ID)
	case t.Query != "":
		return fmt.Sprintf("%s (%s)", t.Query, t.ID)
	default:
		return t.ID.String()
	}
}

// MaxPageSize is the largest page the directory serves.
const MaxPageSize = 500

// PageRequest addresses one page of a paginated listing.
type PageRequest struct {
	Offset   int    `json:"offset" yaml:"offset"`
	PageSize int    `json:"page_size" yaml:"page_size"`
	SortKey  string `json:"sort_key,omitempty" yaml:"sort_key,omitempty"`
}

// Validate checks offset >= 0 and 0 < PageSize <= MaxPageSize.
func (r PageRequest) Validate() error {
	if r.Offset < 0 {
		return fmt.Errorf("page offset %d is negative", r.Offset)
	}
	if r.PageSize <= 0 || r.PageSize > MaxPageSize {
		return fmt.Errorf("page size %d outside (0, %d]", r.PageSize, MaxPageSize)
	}
	return nil
}

// PageResult is one page of items plus the server-reported total. The total
// is authoritative for the page it came with.
type PageResult[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"total_count"`
}
