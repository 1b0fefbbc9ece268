// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// CollectionKind names a paginated sub-resource linked to a faculty entity.
type CollectionKind string

const (
	CollectionPublications           CollectionKind = "publications"
	CollectionGrants                 CollectionKind = "grants"
	CollectionTeachingActivities     CollectionKind = "teaching_activities"
	CollectionProfessionalActivities CollectionKind = "professional_activities"
)

// AllCollections returns every known collection in fetch order.
func AllCollections() []CollectionKind {
	return []CollectionKind{
		CollectionPublications,
		CollectionGrants,
		CollectionTeachingActivities,
		CollectionProfessionalActivities,
	}
}

// ParseCollectionKind maps a user-facing name to a CollectionKind. The short
// forms "teaching" and "professional" are accepted.
func ParseCollectionKind(s string) (CollectionKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "publications", "pubs":
		return CollectionPublications, nil
	case "grants":
		return CollectionGrants, nil
	case "teaching", "teaching_activities":
		return CollectionTeachingActivities, nil
	case "professional", "professional_activities":
		return CollectionProfessionalActivities, nil
	}
	return "", fmt.Errorf("unknown collection %q", s)
}

// DateParts is a possibly incomplete calendar date. Zero fields are unknown.
type DateParts struct {
	Year  int `json:"year,omitempty" yaml:"year,omitempty"`
	Month int `json:"month,omitempty" yaml:"month,omitempty"`
	Day   int `json:"day,omitempty" yaml:"day,omitempty"`
}

// String renders the known prefix of the date: "2021", "2021-03", "2021-03-09".
func (d DateParts) String() string {
	switch {
	case d.Year == 0:
		return ""
	case d.Month == 0:
		return fmt.Sprintf("%04d", d.Year)
	case d.Day == 0:
		return fmt.Sprintf("%04d-%02d", d.Year, d.Month)
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Profile is the normalized top-level record for one faculty entity.
type Profile struct {
	ObjectID          Identifier `json:"object_id" yaml:"object_id"`
	DiscoveryURLID    string     `json:"discovery_url_id,omitempty" yaml:"discovery_url_id,omitempty"`
	FirstName         string     `json:"first_name" yaml:"first_name"`
	LastName          string     `json:"last_name" yaml:"last_name"`
	Email             string     `json:"email,omitempty" yaml:"email,omitempty"`
	ORCID             string     `json:"orcid,omitempty" yaml:"orcid,omitempty"`
	Departments       []string   `json:"departments,omitempty" yaml:"departments,omitempty"`
	Positions         []string   `json:"positions,omitempty" yaml:"positions,omitempty"`
	Bio               string     `json:"bio,omitempty" yaml:"bio,omitempty"`
	ResearchInterests []string   `json:"research_interests,omitempty" yaml:"research_interests,omitempty"`
	TeachingSummary   string     `json:"teaching_summary,omitempty" yaml:"teaching_summary,omitempty"`
}

// FullName returns "First Last".
func (p Profile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Publication is one item of the publications collection.
type Publication struct {
	ObjectID     Identifier `json:"object_id" yaml:"object_id"`
	UserObjectID Identifier `json:"user_object_id" yaml:"user_object_id"`
	Title        string     `json:"title" yaml:"title"`
	Journal      string     `json:"journal,omitempty" yaml:"journal,omitempty"`
	DOI          string     `json:"doi,omitempty" yaml:"doi,omitempty"`
	Published    DateParts  `json:"published" yaml:"published"`
	Volume       string     `json:"volume,omitempty" yaml:"volume,omitempty"`
	Issue        string     `json:"issue,omitempty" yaml:"issue,omitempty"`
	Pages        string     `json:"pages,omitempty" yaml:"pages,omitempty"`
	ISSN         string     `json:"issn,omitempty" yaml:"issn,omitempty"`
	Labels       []string   `json:"labels,omitempty" yaml:"labels,omitempty"`
	Authors      []string   `json:"authors,omitempty" yaml:"authors,omitempty"`
}

// Grant is one item of the grants collection.
type Grant struct {
	ObjectID     Identifier `json:"object_id" yaml:"object_id"`
	UserObjectID Identifier `json:"user_object_id" yaml:"user_object_id"`
	Title        string     `json:"title" yaml:"title"`
	Funder       string     `json:"funder,omitempty" yaml:"funder,omitempty"`
	AwardType    string     `json:"award_type,omitempty" yaml:"award_type,omitempty"`
	Date         DateParts  `json:"date" yaml:"date"`
	Labels       []string   `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// Activity is one item of the teaching or professional activity
// collections. Both share the same shape on the wire.
type Activity struct {
	ObjectID     Identifier `json:"object_id" yaml:"object_id"`
	UserObjectID Identifier `json:"user_object_id" yaml:"user_object_id"`
	Type         string     `json:"type,omitempty" yaml:"type,omitempty"`
	Title        string     `json:"title" yaml:"title"`
	Start        DateParts  `json:"start" yaml:"start"`
	End          DateParts  `json:"end" yaml:"end"`
}

// CollectionStatus reports how far one collection got for one entity.
type CollectionStatus struct {
	Kind     CollectionKind `json:"kind" yaml:"kind"`
	Complete bool           `json:"complete" yaml:"complete"`
	Items    int            `json:"items" yaml:"items"`
	Pages    int            `json:"pages" yaml:"pages"`
	Failure  FailureKind    `json:"failure,omitempty" yaml:"failure,omitempty"`
	Cause    string         `json:"cause,omitempty" yaml:"cause,omitempty"`
}

// EntityRecord is the assembled result for one target. A record with an
// incomplete collection is still a record; Partial reports that case.
type EntityRecord struct {
	Target                 ResolvedTarget                      `json:"target" yaml:"target"`
	Profile                Profile                             `json:"profile" yaml:"profile"`
	Publications           []Publication                       `json:"publications,omitempty" yaml:"publications,omitempty"`
	Grants                 []Grant                             `json:"grants,omitempty" yaml:"grants,omitempty"`
	TeachingActivities     []Activity                          `json:"teaching_activities,omitempty" yaml:"teaching_activities,omitempty"`
	ProfessionalActivities []Activity                          `json:"professional_activities,omitempty" yaml:"professional_activities,omitempty"`
	Collections            map[CollectionKind]CollectionStatus `json:"collections" yaml:"collections"`
	FetchedAt              time.Time                           `json:"fetched_at" yaml:"fetched_at"`
}

// Partial reports whether any requested collection is incomplete.
func (r *EntityRecord) Partial() bool {
	for _, st := range r.Collections {
		if !st.Complete {
			return true
		}
	}
	return false
}

// IncompleteCollections returns the kinds that failed, sorted by name.
func (r *EntityRecord) IncompleteCollections() []CollectionKind {
	var out []CollectionKind
	for kind, st := range r.Collections {
		if !st.Complete {
			out = append(out, kind)
		}
	}
	slices.Sort(out)
	return out
}
