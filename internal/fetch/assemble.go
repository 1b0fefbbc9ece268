// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"slices"

	"github.com/samber/lo"

	"github.com/pdiddy/scholars-harvest/internal/scholars"
	"github.com/pdiddy/scholars-harvest/pkg/types"
)

// Normalizer cleans one text field. It is applied exactly once to every
// free-text field while wire payloads are mapped to records.
type Normalizer interface {
	Normalize(s string) string
}

type identity struct{}

func (identity) Normalize(s string) string { return s }

// assembler maps wire payloads to records through one Normalizer.
type assembler struct {
	norm Normalizer
}

func (a assembler) text(s string) string { return a.norm.Normalize(s) }

func (a assembler) texts(in []string) []string {
	out := lo.FilterMap(in, func(s string, _ int) (string, bool) {
		c := a.norm.Normalize(s)
		return c, c != ""
	})
	if len(out) == 0 {
		return nil
	}
	return out
}

func (a assembler) profile(u *scholars.User) types.Profile {
	depts := a.texts(u.Departments())
	slices.Sort(depts)
	return types.Profile{
		ObjectID:          u.ObjectID,
		DiscoveryURLID:    u.DiscoveryURLID,
		FirstName:         a.text(u.FirstName),
		LastName:          a.text(u.LastName),
		Email:             u.EmailAddress.Address,
		ORCID:             u.ORCID,
		Departments:       slices.Compact(depts),
		Positions:         a.texts(u.Titles()),
		Bio:               a.text(u.Overview),
		ResearchInterests: a.texts(u.ResearchInterests),
		TeachingSummary:   a.text(u.TeachingSummary),
	}
}

func (a assembler) publication(owner types.Identifier, it scholars.LinkedItem) types.Publication {
	return types.Publication{
		ObjectID:     it.ObjectID,
		UserObjectID: owner,
		Title:        a.text(it.Title),
		Journal:      a.text(it.Journal),
		DOI:          it.DOI,
		Published:    it.PublicationDate.Parts(),
		Volume:       it.Volume,
		Issue:        it.Issue,
		Pages:        it.Pagination,
		ISSN:         it.ISSN,
		Labels:       a.texts(it.LabelValues()),
		Authors:      a.texts(it.AuthorNames()),
	}
}

func (a assembler) grant(owner types.Identifier, it scholars.LinkedItem) types.Grant {
	return types.Grant{
		ObjectID:     it.ObjectID,
		UserObjectID: owner,
		Title:        a.text(it.Title),
		Funder:       a.text(it.FunderName),
		AwardType:    a.text(it.TypeDisplayName),
		Date:         it.Date1.Parts(),
		Labels:       a.texts(it.LabelValues()),
	}
}

func (a assembler) activity(owner types.Identifier, it scholars.LinkedItem) types.Activity {
	return types.Activity{
		ObjectID:     it.ObjectID,
		UserObjectID: owner,
		Type:         a.text(it.TypeDisplayName),
		Title:        a.text(it.Title),
		Start:        it.Date1.Parts(),
		End:          it.Date2.Parts(),
	}
}

// attach maps items of kind into rec.
func (a assembler) attach(rec *types.EntityRecord, kind types.CollectionKind, items []scholars.LinkedItem) {
	owner := rec.Profile.ObjectID
	switch kind {
	case types.CollectionPublications:
		rec.Publications = lo.Map(items, func(it scholars.LinkedItem, _ int) types.Publication { return a.publication(owner, it) })
	case types.CollectionGrants:
		rec.Grants = lo.Map(items, func(it scholars.LinkedItem, _ int) types.Grant { return a.grant(owner, it) })
	case types.CollectionTeachingActivities:
		rec.TeachingActivities = lo.Map(items, func(it scholars.LinkedItem, _ int) types.Activity { return a.activity(owner, it) })
	case types.CollectionProfessionalActivities:
		rec.ProfessionalActivities = lo.Map(items, func(it scholars.LinkedItem, _ int) types.Activity { return a.activity(owner, it) })
	}
}
