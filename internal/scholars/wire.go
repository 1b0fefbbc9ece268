// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scholars

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/pdiddy/scholars-harvest/pkg/types"
)

// User is a directory user as returned by GET /users/{id} and, with fewer
// fields populated, by POST /users search.
type User struct {
	ObjectID                  types.Identifier `json:"objectId"`
	DiscoveryURLID            string           `json:"discoveryUrlId"`
	FirstName                 string           `json:"firstName"`
	LastName                  string           `json:"lastName"`
	EmailAddress              EmailAddress     `json:"emailAddress"`
	ORCID                     string           `json:"orcid"`
	Positions                 []Position       `json:"positions"`
	InstitutionalAppointments []Position       `json:"institutionalAppointments"`
	Overview                  string           `json:"overview"`
	ResearchInterests         Interests        `json:"researchInterests"`
	TeachingSummary           string           `json:"teachingSummary"`
}

type EmailAddress struct {
	Address string `json:"address"`
}

type Position struct {
	Department string `json:"department"`
	Position   string `json:"position"`
}

// Departments returns the distinct non-empty department names, sorted.
func (u *User) Departments() []string {
	var out []string
	for _, p := range u.Positions {
		if d := strings.TrimSpace(p.Department); d != "" {
			out = append(out, d)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Titles returns position titles followed by institutional appointments.
func (u *User) Titles() []string {
	var out []string
	for _, p := range slices.Concat(u.Positions, u.InstitutionalAppointments) {
		if t := strings.TrimSpace(p.Position); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Interests decodes researchInterests, which the directory returns as a
// plain string, a list of strings, or a list of {value|text|description}
// objects depending on how the profile was edited.
type Interests []string

func (in *Interests) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*in = nil
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) != "" {
			*in = Interests{s}
		}
		return nil
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		out := make(Interests, 0, len(raw))
		for _, r := range raw {
			var s string
			if json.Unmarshal(r, &s) == nil {
				if strings.TrimSpace(s) != "" {
					out = append(out, s)
				}
				continue
			}
			var obj struct {
				Value       string `json:"value"`
				Text        string `json:"text"`
				Description string `json:"description"`
			}
			if err := json.Unmarshal(r, &obj); err != nil {
				return fmt.Errorf("decoding research interest %s: %w", r, err)
			}
			if v := firstNonEmpty(obj.Value, obj.Text, obj.Description); v != "" {
				out = append(out, v)
			}
		}
		*in = out
		return nil
	}
	return fmt.Errorf("unexpected researchInterests %s", data)
}

// Flex is an integer the directory sends as a number, a numeric string, or
// an empty string.
type Flex int

func (f *Flex) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(bytes.Trim(data, `"`)))
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("decoding number %s: %w", data, err)
	}
	*f = Flex(n)
	return nil
}

// Date is the {year, month, day} object used for every date on the wire.
type Date struct {
	Year  Flex `json:"year"`
	Month Flex `json:"month"`
	Day   Flex `json:"day"`
}

// Parts converts to the shared date type.
func (d Date) Parts() types.DateParts {
	return types.DateParts{Year: int(d.Year), Month: int(d.Month), Day: int(d.Day)}
}

type Label struct {
	Value string `json:"value"`
}

type Author struct {
	FullName string `json:"fullName"`
}

// LinkedItem is one element of a linkedTo collection. Publications,
// grants, and activities share one envelope; each uses its own subset of
// the fields.
type LinkedItem struct {
	ObjectID        types.Identifier `json:"objectId"`
	Title           string           `json:"title"`
	TypeDisplayName string           `json:"objectTypeDisplayName"`
	Labels          []Label          `json:"labels"`

	// Publications.
	Journal         string   `json:"journal"`
	DOI             string   `json:"doi"`
	PublicationDate Date     `json:"publicationDate"`
	Volume          string   `json:"volume"`
	Issue           string   `json:"issue"`
	Pagination      string   `json:"pagination"`
	ISSN            string   `json:"issn"`
	Authors         []Author `json:"authors"`

	// Grants and activities.
	FunderName string `json:"funderName"`
	Date1      Date   `json:"date1"`
	Date2      Date   `json:"date2"`
}

// LabelValues returns the non-empty label values.
func (it *LinkedItem) LabelValues() []string {
	var out []string
	for _, l := range it.Labels {
		if l.Value != "" {
			out = append(out, l.Value)
		}
	}
	return out
}

// AuthorNames returns the non-empty author names in listed order.
func (it *LinkedItem) AuthorNames() []string {
	var out []string
	for _, a := range it.Authors {
		if a.FullName != "" {
			out = append(out, a.FullName)
		}
	}
	return out
}

// page is the list envelope. Search responses put hits under resource,
// some linkedTo responses use items.
type page[T any] struct {
	Pagination *struct {
		Total int `json:"total"`
	} `json:"pagination"`
	Resource []T `json:"resource"`
	Items    []T `json:"items"`
}

// result converts the envelope to a PageResult. When the service omits
// pagination the total is inferred from the page length: a short page ends
// the listing, a full one asks for one more.
func (p *page[T]) result(req types.PageRequest) types.PageResult[T] {
	items := p.Items
	if len(items) == 0 {
		items = p.Resource
	}
	if p.Pagination != nil {
		return types.PageResult[T]{Items: items, TotalCount: p.Pagination.Total}
	}
	total := req.Offset + len(items)
	if len(items) >= req.PageSize {
		total++
	}
	return types.PageResult[T]{Items: items, TotalCount: total}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
