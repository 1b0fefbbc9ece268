// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/scholars-harvest/internal/fetch"
	"github.com/pdiddy/scholars-harvest/internal/scholars"
	"github.com/pdiddy/scholars-harvest/internal/sink"
	"github.com/pdiddy/scholars-harvest/internal/testutil"
	"github.com/pdiddy/scholars-harvest/pkg/types"
)

func TestReadIDs(t *testing.T) {
	ids, err := readIDs([]string{"7", " 42 "})
	require.NoError(t, err)
	assert.Equal(t, []types.Identifier{7, 42}, ids)

	_, err = readIDs([]string{"7", "abc"})
	assert.Error(t, err)
}

func TestReportPath(t *testing.T) {
	tests := []struct {
		name    string
		command string
		query   string
		report  string
		want    string
	}{
		{name: "no query", command: "fetch", want: filepath.Join("out", "run-fetch.yaml")},
		{name: "slugged query", command: "scan", query: "department contains Médecine", want: filepath.Join("out", "run-scan-department-contains-medecine.yaml")},
		{name: "explicit path", command: "scan", query: "x", report: "/tmp/r.yaml", want: "/tmp/r.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &harvest{command: tt.command, cfg: types.DefaultHarvestConfig()}
			h.cfg.Output.Dir = "out"
			h.cfg.Output.ReportPath = tt.report
			assert.Equal(t, tt.want, h.reportPath(tt.query))
		})
	}
}

func TestOutputs(t *testing.T) {
	h := &harvest{cfg: types.DefaultHarvestConfig()}
	h.cfg.Output.Dir = "out"
	h.cfg.Output.Formats = []string{"CSV", "jsonl", "sqlite", "redis"}
	h.cfg.Output.RedisAddr = "localhost:6379"
	h.cfg.Output.RedisStream = "s"

	assert.Equal(t, []string{
		filepath.Join("out", "*.csv"),
		filepath.Join("out", "outcomes.jsonl"),
		filepath.Join("out", "scholars.db"),
		"redis://localhost:6379/s",
	}, h.outputs())
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, fetch.Summary{
		Targets:   3,
		Succeeded: 1,
		Partial:   1,
		Failed:    1,
		ByKind:    map[types.FailureKind]int{types.FailureNotFound: 1, types.FailurePartial: 1},
		Duration:  1500 * time.Millisecond,
	}, 12)

	out := buf.String()
	assert.Contains(t, out, "targets: 3, ok: 1, partial: 1, failed: 1, sink errors: 0")
	assert.Contains(t, out, "requests: 12, elapsed: 1.5s")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("not_found")), bytes.Index(buf.Bytes(), []byte("partial_assembly")))
}

func TestFetchCommandEndToEnd(t *testing.T) {
	dir := testutil.NewDirectory(t)
	dir.AddUser(scholars.User{ObjectID: 7, FirstName: "Ada", LastName: "Lovelace"})
	dir.AddLinked(types.CollectionPublications, 7, scholars.LinkedItem{ObjectID: 101, Title: "Notes"})

	outDir := t.TempDir()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{
		"fetch", "7", "99",
		"--base-url", dir.Server.URL,
		"--min-interval", "0s",
		"--retry-backoff", "0s",
		"--out-dir", outDir,
		"--format", "csv,jsonl",
		"--secrets-dir", t.TempDir(),
		"--log-level", "disabled",
	})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	require.Error(t, err, "an unknown identifier fails the run")
	assert.Contains(t, err.Error(), "1 target(s) failed")
	assert.Contains(t, out.String(), "resolved 2 target(s), 0 unresolved")

	lines, err := sink.ReadJSONL(filepath.Join(outDir, "outcomes.jsonl"))
	require.NoError(t, err)
	require.Len(t, lines, 2)
	byStatus := map[types.OutcomeStatus]int{}
	for _, l := range lines {
		byStatus[l.Status]++
	}
	assert.Equal(t, map[types.OutcomeStatus]int{types.StatusOK: 1, types.StatusFailed: 1}, byStatus)
	assert.FileExists(t, filepath.Join(outDir, sink.ProfilesFile))

	report, err := sink.ReadReport(filepath.Join(outDir, "run-fetch.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "fetch", report.Command)
	assert.Equal(t, types.SourceExplicit, report.Resolution.Source)
	assert.Equal(t, 2, report.Summary.Targets)
	assert.Equal(t, 1, report.Summary.Succeeded)
	assert.Equal(t, 1, report.Summary.ByKind[types.FailureNotFound])
}
