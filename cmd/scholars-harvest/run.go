// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/scholars-harvest/internal/fetch"
	"github.com/pdiddy/scholars-harvest/internal/httputil"
	"github.com/pdiddy/scholars-harvest/internal/logging"
	"github.com/pdiddy/scholars-harvest/internal/metrics"
	"github.com/pdiddy/scholars-harvest/internal/resolve"
	"github.com/pdiddy/scholars-harvest/internal/scholars"
	"github.com/pdiddy/scholars-harvest/internal/sink"
	"github.com/pdiddy/scholars-harvest/internal/textclean"
	"github.com/pdiddy/scholars-harvest/pkg/types"
)

// harvest is one run of the pipeline: resolve targets, fetch them, stream
// outcomes to the sinks, and write the run report.
type harvest struct {
	cfg     types.HarvestConfig
	client  *scholars.Client
	limiter *httputil.Limiter
	out     io.Writer

	command string
	args    []string
	started time.Time
}

// newHarvest loads configuration and builds the shared directory client.
// One limiter and one retry policy serve every request of the run.
func newHarvest(cmd *cobra.Command, args []string) (*harvest, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	limiter := httputil.NewLimiter(cfg.Throttle.MinInterval)
	retry := httputil.NewRetryPolicy(cfg.Throttle.MaxRetries, cfg.Throttle.RetryBackoff)
	return &harvest{
		cfg:     cfg,
		client:  scholars.New(cfg.Directory, limiter, retry),
		limiter: limiter,
		out:     cmd.OutOrStdout(),
		command: cmd.Name(),
		args:    args,
		started: time.Now().UTC(),
	}, nil
}

// run resolves targets with r and, unless --resolve-only is set, fetches
// them. It returns an error when any target failed so scripts can detect
// incomplete harvests.
func (h *harvest) run(cmd *cobra.Command, r resolve.Resolver, source types.TargetSource, query string) error {
	ctx := cmd.Context()
	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		metricsCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		metrics.Serve(metricsCtx, addr, logging.NewLogger("metrics"))
	}

	res, err := r.Resolve(ctx)
	if err != nil {
		return err
	}
	resolve.SortTargets(res.Targets)
	fmt.Fprintf(h.out, "resolved %d target(s), %d unresolved\n", len(res.Targets), len(res.Failures))

	if only, _ := cmd.Flags().GetBool("resolve-only"); only {
		printTargets(h.out, res)
		return nil
	}

	runID := sink.NewRunID()
	sinks, err := sink.Open(ctx, h.cfg.Output, runID)
	if err != nil {
		return err
	}

	kinds, err := h.cfg.Fetch.Kinds()
	if err != nil {
		sinks.Close()
		return err
	}
	fetcher := fetch.NewEntityFetcher(h.client, fetch.Specs(kinds, h.cfg.Fetch.PageSize, h.cfg.Fetch.SortKey), textclean.Normalizer{})
	orch, err := fetch.NewOrchestrator(fetcher, h.cfg.Fetch.Workers)
	if err != nil {
		sinks.Close()
		return err
	}
	orch.Progress = h.out

	summary := orch.EmitFailures(ctx, res.Failures, sinks)
	summary.Add(orch.Run(ctx, res.Targets, sinks))
	if err := sinks.Close(); err != nil {
		fmt.Fprintf(h.out, "warning: closing sinks: %v\n", err)
		summary.SinkErrors++
	}

	reportPath := h.reportPath(query)
	report := &sink.Report{
		RunID:      runID,
		Command:    h.command,
		Args:       h.args,
		StartedAt:  h.started,
		FinishedAt: time.Now().UTC(),
		Config:     h.cfg,
		Resolution: sink.NewResolution(source, query, res),
		Summary:    summary,
		Outputs:    h.outputs(),
	}
	if err := sink.WriteReport(reportPath, report); err != nil {
		fmt.Fprintf(h.out, "warning: run report not written: %v\n", err)
	} else {
		fmt.Fprintf(h.out, "report: %s\n", reportPath)
	}

	printSummary(h.out, summary, h.limiter.Granted())
	if summary.Failed > 0 {
		return fmt.Errorf("%d target(s) failed", summary.Failed)
	}
	return nil
}

func (h *harvest) reportPath(query string) string {
	if h.cfg.Output.ReportPath != "" {
		return h.cfg.Output.ReportPath
	}
	name := "run-" + h.command
	if slug := textclean.Slugify(query); slug != "" {
		name += "-" + slug
	}
	return filepath.Join(h.cfg.Output.Dir, name+".yaml")
}

// outputs lists what the sinks wrote, for the report.
func (h *harvest) outputs() []string {
	var out []string
	for _, f := range h.cfg.Output.Formats {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case sink.FormatCSV:
			out = append(out, filepath.Join(h.cfg.Output.Dir, "*.csv"))
		case sink.FormatJSONL:
			out = append(out, filepath.Join(h.cfg.Output.Dir, "outcomes.jsonl"))
		case sink.FormatSQLite:
			out = append(out, cmp.Or(h.cfg.Output.SQLitePath, filepath.Join(h.cfg.Output.Dir, "scholars.db")))
		case sink.FormatRedis:
			out = append(out, "redis://"+h.cfg.Output.RedisAddr+"/"+h.cfg.Output.RedisStream)
		}
	}
	return out
}

func printTargets(w io.Writer, res resolve.Result) {
	for _, t := range res.Targets {
		fmt.Fprintf(w, "  %s\n", t.Label())
	}
	for _, f := range res.Failures {
		fmt.Fprintf(w, "  unresolved %s: %s\n", cmp.Or(f.Target.Query, f.Target.ID.String()), f.Kind)
	}
}

func printSummary(w io.Writer, s fetch.Summary, requests int64) {
	fmt.Fprintf(w, "\ntargets: %d, ok: %d, partial: %d, failed: %d, sink errors: %d\n",
		s.Targets, s.Succeeded, s.Partial, s.Failed, s.SinkErrors)
	if len(s.ByKind) > 0 {
		kinds := make([]string, 0, len(s.ByKind))
		for k := range s.ByKind {
			kinds = append(kinds, string(k))
		}
		slices.Sort(kinds)
		for _, k := range kinds {
			fmt.Fprintf(w, "  %-20s %d\n", k, s.ByKind[types.FailureKind(k)])
		}
	}
	fmt.Fprintf(w, "requests: %d, elapsed: %s\n", requests, s.Duration.Round(time.Millisecond))
}

// readIDs parses identifiers from args, one per argument.
func readIDs(args []string) ([]types.Identifier, error) {
	ids := make([]types.Identifier, 0, len(args))
	for _, a := range args {
		id, err := types.ParseIdentifier(a)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

