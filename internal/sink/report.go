// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/scholars-harvest/internal/fetch"
	"github.com/pdiddy/scholars-harvest/internal/resolve"
	"github.com/pdiddy/scholars-harvest/pkg/types"
)

// NewRunID returns a fresh identifier that ties sink rows to a report.
func NewRunID() string { return uuid.NewString() }

// Report is the on-disk record of one run: what was asked for, how targets
// were resolved (including every name query tried), and what came out.
type Report struct {
	RunID      string              `yaml:"run_id"`
	Command    string              `yaml:"command"`
	Args       []string            `yaml:"args,omitempty"`
	StartedAt  time.Time           `yaml:"started_at"`
	FinishedAt time.Time           `yaml:"finished_at"`
	Config     types.HarvestConfig `yaml:"config"`
	Resolution Resolution          `yaml:"resolution"`
	Summary    fetch.Summary       `yaml:"summary"`
	Outputs    []string            `yaml:"outputs,omitempty"`
}

// Resolution describes the discovery stage of a run.
type Resolution struct {
	Source   types.TargetSource       `yaml:"source"`
	Query    string                   `yaml:"query,omitempty"`
	Targets  int                      `yaml:"targets"`
	Stats    resolve.Stats            `yaml:"stats"`
	Names    []resolve.NameResolution `yaml:"names,omitempty"`
	Failures []types.FailureRecord    `yaml:"failures,omitempty"`
}

// NewResolution summarizes a resolver result.
func NewResolution(source types.TargetSource, query string, res resolve.Result) Resolution {
	return Resolution{
		Source:   source,
		Query:    query,
		Targets:  len(res.Targets),
		Stats:    res.Stats,
		Names:    res.Names,
		Failures: res.Failures,
	}
}

// WriteReport saves r as YAML at path. Secrets in the config are never
// serialized.
func WriteReport(path string, r *Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// ReadReport loads a report written by WriteReport.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing report: %w", err)
	}
	return &r, nil
}
