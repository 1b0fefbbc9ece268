// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sink

import (
	"cmp"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/pdiddy/scholars-harvest/pkg/types"
)

// CSV file names and headers. The first four match the layouts analysts
// already load into spreadsheets.
const (
	ProfilesFile     = "profiles.csv"
	PublicationsFile = "publications.csv"
	GrantsFile       = "grants.csv"
	TeachingFile     = "teaching_activities.csv"
	ProfessionalFile = "professional_activities.csv"
	FailuresFile     = "failures.csv"
	listSeparator    = "; "
)

var (
	profileHeader = []string{
		"objectId", "discoveryUrlId", "firstName", "lastName",
		"email", "orcid", "departments", "positions",
		"bio", "researchInterests", "teachingSummary",
	}
	publicationHeader = []string{
		"userObjectId", "publicationObjectId", "title", "journal", "doi",
		"pubYear", "pubMonth", "pubDay", "volume", "issue", "pages", "issn",
		"labels", "authors",
	}
	grantHeader = []string{
		"userObjectId", "grantObjectId", "title", "funder",
		"awardType", "year", "month", "day", "labels",
	}
	teachingHeader = []string{
		"userObjectId", "teachingActivityObjectId", "type",
		"startYear", "startMonth", "startDay",
		"endYear", "endMonth", "endDay", "title",
	}
	professionalHeader = []string{
		"userObjectId", "professionalActivityObjectId", "type",
		"startYear", "startMonth", "startDay",
		"endYear", "endMonth", "endDay", "title",
	}
	failureHeader = []string{
		"targetId", "source", "query", "firstName", "lastName",
		"kind", "cause", "attempts", "queries",
	}
)

type csvFile struct {
	f *os.File
	w *csv.Writer
}

func createCSV(path string, header []string) (*csvFile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing header %s: %w", path, err)
	}
	return &csvFile{f: f, w: w}, nil
}

func (c *csvFile) write(rows ...[]string) error {
	if err := c.w.WriteAll(rows); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(c.f.Name()), err)
	}
	return nil
}

func (c *csvFile) close() error {
	c.w.Flush()
	return errors.Join(c.w.Error(), c.f.Close())
}

// CSVSink writes one CSV file per record type plus failures.csv. Partial
// records appear in failures.csv with kind partial_assembly alongside their
// rows in the other files.
type CSVSink struct {
	sortByName bool

	profiles     *csvFile
	publications *csvFile
	grants       *csvFile
	teaching     *csvFile
	professional *csvFile
	failures     *csvFile

	// buffered holds profiles when sortByName is set; they are written on
	// Close.
	buffered []types.Profile
}

// NewCSVSink creates the CSV files under dir, truncating existing ones.
func NewCSVSink(dir string, sortByName bool) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	s := &CSVSink{sortByName: sortByName}
	files := []struct {
		dst    **csvFile
		name   string
		header []string
	}{
		{&s.profiles, ProfilesFile, profileHeader},
		{&s.publications, PublicationsFile, publicationHeader},
		{&s.grants, GrantsFile, grantHeader},
		{&s.teaching, TeachingFile, teachingHeader},
		{&s.professional, ProfessionalFile, professionalHeader},
		{&s.failures, FailuresFile, failureHeader},
	}
	for _, f := range files {
		c, err := createCSV(filepath.Join(dir, f.name), f.header)
		if err != nil {
			s.Close()
			return nil, err
		}
		*f.dst = c
	}
	return s, nil
}

// Write appends the rows for one outcome and flushes them.
func (s *CSVSink) Write(_ context.Context, out types.FetchOutcome) error {
	return observe(FormatCSV, s.write(out))
}

func (s *CSVSink) write(out types.FetchOutcome) error {
	if out.Failure != nil {
		return s.flush(s.failures.write(failureRow(*out.Failure)))
	}
	rec := out.Record
	if rec == nil {
		return fmt.Errorf("outcome for %s has neither record nor failure", out.Target.ID)
	}

	var errs []error
	if s.sortByName {
		s.buffered = append(s.buffered, rec.Profile)
	} else {
		errs = append(errs, s.profiles.write(profileRow(rec.Profile)))
	}
	for _, p := range rec.Publications {
		errs = append(errs, s.publications.write(publicationRow(p)))
	}
	for _, g := range rec.Grants {
		errs = append(errs, s.grants.write(grantRow(g)))
	}
	for _, a := range rec.TeachingActivities {
		errs = append(errs, s.teaching.write(activityRow(a)))
	}
	for _, a := range rec.ProfessionalActivities {
		errs = append(errs, s.professional.write(activityRow(a)))
	}
	if rec.Partial() {
		errs = append(errs, s.failures.write(partialRow(rec)))
	}
	return s.flush(errors.Join(errs...))
}

func (s *CSVSink) flush(err error) error {
	for _, c := range s.all() {
		c.w.Flush()
		err = errors.Join(err, c.w.Error())
	}
	return err
}

func (s *CSVSink) all() []*csvFile {
	var out []*csvFile
	for _, c := range []*csvFile{s.profiles, s.publications, s.grants, s.teaching, s.professional, s.failures} {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

// Close writes any buffered profiles, sorted by last then first name, and
// closes every file.
func (s *CSVSink) Close() error {
	var errs []error
	if s.profiles != nil && len(s.buffered) > 0 {
		slices.SortStableFunc(s.buffered, func(a, b types.Profile) int {
			return cmp.Or(
				cmp.Compare(strings.ToLower(a.LastName), strings.ToLower(b.LastName)),
				cmp.Compare(strings.ToLower(a.FirstName), strings.ToLower(b.FirstName)),
			)
		})
		for _, p := range s.buffered {
			errs = append(errs, s.profiles.write(profileRow(p)))
		}
		s.buffered = nil
	}
	for _, c := range s.all() {
		errs = append(errs, c.close())
	}
	return errors.Join(errs...)
}

func profileRow(p types.Profile) []string {
	return []string{
		p.ObjectID.String(), p.DiscoveryURLID, p.FirstName, p.LastName,
		p.Email, p.ORCID,
		strings.Join(p.Departments, listSeparator),
		strings.Join(p.Positions, listSeparator),
		p.Bio,
		strings.Join(p.ResearchInterests, listSeparator),
		p.TeachingSummary,
	}
}

func publicationRow(p types.Publication) []string {
	row := []string{p.UserObjectID.String(), p.ObjectID.String(), p.Title, p.Journal, p.DOI}
	row = append(row, dateCells(p.Published)...)
	return append(row,
		p.Volume, p.Issue, p.Pages, p.ISSN,
		strings.Join(p.Labels, listSeparator),
		strings.Join(p.Authors, listSeparator),
	)
}

func grantRow(g types.Grant) []string {
	row := []string{g.UserObjectID.String(), g.ObjectID.String(), g.Title, g.Funder, g.AwardType}
	row = append(row, dateCells(g.Date)...)
	return append(row, strings.Join(g.Labels, listSeparator))
}

func activityRow(a types.Activity) []string {
	row := []string{a.UserObjectID.String(), a.ObjectID.String(), a.Type}
	row = append(row, dateCells(a.Start)...)
	row = append(row, dateCells(a.End)...)
	return append(row, a.Title)
}

func failureRow(f types.FailureRecord) []string {
	id := ""
	if f.Target.ID.Valid() {
		id = f.Target.ID.String()
	}
	attempts := ""
	if f.Attempts > 0 {
		attempts = strconv.Itoa(f.Attempts)
	}
	return []string{
		id, string(f.Target.Source), f.Target.Query, f.Target.FirstName, f.Target.LastName,
		string(f.Kind), f.Cause, attempts, strings.Join(f.Queries, listSeparator),
	}
}

func partialRow(rec *types.EntityRecord) []string {
	var causes []string
	for _, k := range rec.IncompleteCollections() {
		causes = append(causes, fmt.Sprintf("%s: %s", k, rec.Collections[k].Cause))
	}
	return failureRow(types.FailureRecord{
		Target: rec.Target,
		Kind:   types.FailurePartial,
		Cause:  strings.Join(causes, listSeparator),
	})
}

func dateCells(d types.DateParts) []string {
	return []string{itoa(d.Year), itoa(d.Month), itoa(d.Day)}
}

func itoa(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}
