// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/scholars-harvest/pkg/types"
)

// SQLiteSink upserts records into a SQLite database so repeated runs
// refresh the same rows. Each outcome is written in one transaction.
type SQLiteSink struct {
	db    *sql.DB
	runID string
}

// NewSQLiteSink opens or creates the database at path, creates the schema
// if needed, and registers runID in the runs table.
func NewSQLiteSink(ctx context.Context, path, runID string) (*SQLiteSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s := &SQLiteSink{db: db, runID: runID}

	if err := s.createSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO runs (id, started_at) VALUES (?, ?)`,
		runID, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("registering run: %w", err)
	}
	return s, nil
}

// DB exposes the handle for queries over harvested data.
func (s *SQLiteSink) DB() *sql.DB { return s.db }

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func (s *SQLiteSink) createSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS profiles (
			object_id INTEGER PRIMARY KEY,
			run_id TEXT NOT NULL REFERENCES runs(id),
			discovery_url_id TEXT,
			first_name TEXT,
			last_name TEXT,
			email TEXT,
			orcid TEXT,
			departments TEXT,
			positions TEXT,
			bio TEXT,
			research_interests TEXT,
			teaching_summary TEXT,
			status TEXT NOT NULL,
			incomplete TEXT,
			fetched_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS publications (
			object_id INTEGER NOT NULL,
			user_object_id INTEGER NOT NULL REFERENCES profiles(object_id) ON DELETE CASCADE,
			title TEXT,
			journal TEXT,
			doi TEXT,
			published TEXT,
			volume TEXT,
			issue TEXT,
			pages TEXT,
			issn TEXT,
			labels TEXT,
			authors TEXT,
			PRIMARY KEY (user_object_id, object_id)
		)`,
		`CREATE TABLE IF NOT EXISTS grants (
			object_id INTEGER NOT NULL,
			user_object_id INTEGER NOT NULL REFERENCES profiles(object_id) ON DELETE CASCADE,
			title TEXT,
			funder TEXT,
			award_type TEXT,
			date TEXT,
			labels TEXT,
			PRIMARY KEY (user_object_id, object_id)
		)`,
		`CREATE TABLE IF NOT EXISTS activities (
			object_id INTEGER NOT NULL,
			user_object_id INTEGER NOT NULL REFERENCES profiles(object_id) ON DELETE CASCADE,
			kind TEXT NOT NULL,
			type TEXT,
			title TEXT,
			start_date TEXT,
			end_date TEXT,
			PRIMARY KEY (user_object_id, kind, object_id)
		)`,
		`CREATE TABLE IF NOT EXISTS failures (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id),
			target_id INTEGER,
			source TEXT,
			query TEXT,
			kind TEXT NOT NULL,
			cause TEXT,
			attempts INTEGER,
			queries TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_failures_run ON failures(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_profiles_name ON profiles(last_name, first_name)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

func (s *SQLiteSink) Write(ctx context.Context, out types.FetchOutcome) error {
	var err error
	switch {
	case out.Failure != nil:
		err = s.insertFailure(ctx, s.db, *out.Failure)
	case out.Record != nil:
		err = s.upsertRecord(ctx, out.Record)
	default:
		err = fmt.Errorf("outcome for %s has neither record nor failure", out.Target.ID)
	}
	return observe(FormatSQLite, err)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteSink) insertFailure(ctx context.Context, db execer, f types.FailureRecord) error {
	var target any
	if f.Target.ID.Valid() {
		target = int64(f.Target.ID)
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO failures (run_id, target_id, source, query, kind, cause, attempts, queries)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.runID, target, string(f.Target.Source), f.Target.Query,
		string(f.Kind), f.Cause, f.Attempts, jsonText(f.Queries),
	)
	if err != nil {
		return fmt.Errorf("inserting failure: %w", err)
	}
	return nil
}

func (s *SQLiteSink) upsertRecord(ctx context.Context, rec *types.EntityRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	p := rec.Profile
	status := types.StatusOK
	var incomplete []string
	for _, k := range rec.IncompleteCollections() {
		status = types.StatusPartial
		incomplete = append(incomplete, string(k))
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO profiles (object_id, run_id, discovery_url_id, first_name, last_name, email, orcid,
			departments, positions, bio, research_interests, teaching_summary, status, incomplete, fetched_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(object_id) DO UPDATE SET
			run_id=excluded.run_id, discovery_url_id=excluded.discovery_url_id,
			first_name=excluded.first_name, last_name=excluded.last_name,
			email=excluded.email, orcid=excluded.orcid, departments=excluded.departments,
			positions=excluded.positions, bio=excluded.bio,
			research_interests=excluded.research_interests, teaching_summary=excluded.teaching_summary,
			status=excluded.status, incomplete=excluded.incomplete, fetched_at=excluded.fetched_at`,
		int64(p.ObjectID), s.runID, p.DiscoveryURLID, p.FirstName, p.LastName, p.Email, p.ORCID,
		jsonText(p.Departments), jsonText(p.Positions), p.Bio, jsonText(p.ResearchInterests),
		p.TeachingSummary, string(status), strings.Join(incomplete, ","),
		rec.FetchedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting profile %s: %w", p.ObjectID, err)
	}

	// Only complete collections replace stored rows, so a partial refresh
	// keeps what an earlier run fetched.
	complete := func(k types.CollectionKind) bool { return rec.Collections[k].Complete }

	if complete(types.CollectionPublications) {
		if err := replace(ctx, tx, "publications", p.ObjectID, "", len(rec.Publications), func(stmt *sql.Stmt, i int) error {
			pub := rec.Publications[i]
			_, err := stmt.ExecContext(ctx,
				int64(pub.ObjectID), int64(p.ObjectID), pub.Title, pub.Journal, pub.DOI,
				pub.Published.String(), pub.Volume, pub.Issue, pub.Pages, pub.ISSN,
				jsonText(pub.Labels), jsonText(pub.Authors))
			return err
		}, `INSERT OR REPLACE INTO publications
			(object_id, user_object_id, title, journal, doi, published, volume, issue, pages, issn, labels, authors)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`); err != nil {
			return err
		}
	}
	if complete(types.CollectionGrants) {
		if err := replace(ctx, tx, "grants", p.ObjectID, "", len(rec.Grants), func(stmt *sql.Stmt, i int) error {
			g := rec.Grants[i]
			_, err := stmt.ExecContext(ctx,
				int64(g.ObjectID), int64(p.ObjectID), g.Title, g.Funder, g.AwardType,
				g.Date.String(), jsonText(g.Labels))
			return err
		}, `INSERT OR REPLACE INTO grants
			(object_id, user_object_id, title, funder, award_type, date, labels)
			VALUES (?, ?, ?, ?, ?, ?, ?)`); err != nil {
			return err
		}
	}
	for kind, items := range map[types.CollectionKind][]types.Activity{
		types.CollectionTeachingActivities:     rec.TeachingActivities,
		types.CollectionProfessionalActivities: rec.ProfessionalActivities,
	} {
		if !complete(kind) {
			continue
		}
		if err := replace(ctx, tx, "activities", p.ObjectID, kind, len(items), func(stmt *sql.Stmt, i int) error {
			a := items[i]
			_, err := stmt.ExecContext(ctx,
				int64(a.ObjectID), int64(p.ObjectID), string(kind), a.Type, a.Title,
				a.Start.String(), a.End.String())
			return err
		}, `INSERT OR REPLACE INTO activities
			(object_id, user_object_id, kind, type, title, start_date, end_date)
			VALUES (?, ?, ?, ?, ?, ?, ?)`); err != nil {
			return err
		}
	}

	if rec.Partial() {
		f := types.FailureRecord{Target: rec.Target, Kind: types.FailurePartial, Cause: strings.Join(incomplete, ",")}
		if err := s.insertFailure(ctx, tx, f); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s: %w", p.ObjectID, err)
	}
	return nil
}

// replace deletes owner's rows from table (restricted to kind for the
// activities table) and inserts n fresh rows through insert.
func replace(ctx context.Context, tx *sql.Tx, table string, owner types.Identifier, kind types.CollectionKind, n int, exec func(*sql.Stmt, int) error, insert string) error {
	del := `DELETE FROM ` + table + ` WHERE user_object_id = ?`
	args := []any{int64(owner)}
	if kind != "" {
		del += ` AND kind = ?`
		args = append(args, string(kind))
	}
	if _, err := tx.ExecContext(ctx, del, args...); err != nil {
		return fmt.Errorf("clearing %s for %s: %w", table, owner, err)
	}

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("preparing %s insert: %w", table, err)
	}
	defer stmt.Close()
	for i := range n {
		if err := exec(stmt, i); err != nil {
			return fmt.Errorf("inserting into %s for %s: %w", table, owner, err)
		}
	}
	return nil
}

func jsonText(v []string) string {
	if len(v) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(v)
	return string(data)
}
