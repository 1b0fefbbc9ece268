// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sink persists fetch outcomes. Every sink receives outcomes one at
// a time from the orchestrator's writer goroutine, so implementations need
// no locking of their own.
package sink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pdiddy/scholars-harvest/pkg/types"
)

// Output formats accepted by Open.
const (
	FormatCSV    = "csv"
	FormatJSONL  = "jsonl"
	FormatSQLite = "sqlite"
	FormatRedis  = "redis"
)

var sinkWrites = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "scholars_sink_writes_total",
	Help: "Outcomes written to sinks, by sink and result.",
}, []string{"sink", "result"})

// Sink stores outcomes.
type Sink interface {
	Write(ctx context.Context, out types.FetchOutcome) error
	Close() error
}

func observe(name string, err error) error {
	result := "ok"
	if err != nil {
		result = "error"
	}
	sinkWrites.WithLabelValues(name, result).Inc()
	return err
}

// Multi fans each outcome out to every sink. A failing sink does not stop
// the others; their errors are joined.
type Multi []Sink

func (m Multi) Write(ctx context.Context, out types.FetchOutcome) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, out); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open builds the sinks named in cfg.Formats. Sinks opened before a failure
// are closed again.
func Open(ctx context.Context, cfg types.OutputConfig, runID string) (Multi, error) {
	formats := cfg.Formats
	if len(formats) == 0 {
		formats = []string{FormatCSV}
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	var m Multi
	for _, f := range formats {
		s, err := open(ctx, strings.ToLower(strings.TrimSpace(f)), cfg, runID)
		if err != nil {
			m.Close()
			return nil, err
		}
		m = append(m, s)
	}
	return m, nil
}

func open(ctx context.Context, format string, cfg types.OutputConfig, runID string) (Sink, error) {
	switch format {
	case FormatCSV:
		return NewCSVSink(cfg.Dir, cfg.SortByName)
	case FormatJSONL:
		return NewJSONLSink(filepath.Join(cfg.Dir, "outcomes.jsonl"), runID)
	case FormatSQLite:
		path := cfg.SQLitePath
		if path == "" {
			path = filepath.Join(cfg.Dir, "scholars.db")
		}
		return NewSQLiteSink(ctx, path, runID)
	case FormatRedis:
		return DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisStream, runID)
	}
	return nil, fmt.Errorf("unknown output format %q (want csv, jsonl, sqlite, or redis)", format)
}
