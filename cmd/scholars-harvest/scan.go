// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/scholars-harvest/internal/resolve"
	"github.com/pdiddy/scholars-harvest/pkg/types"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Probe every identifier up to --max-id and harvest the matches",
	Long: `Scan fetches the profile of every identifier from 1 to --max-id and keeps
the ones whose departments (or research interests) contain the given text.
Identifiers that do not exist are skipped. With no filter every existing
profile is harvested.

Scanning is the fallback when the directory search cannot express a filter;
prefer "search" when it can.`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	d := types.DefaultHarvestConfig()
	scanCmd.Flags().StringSlice("department", nil, "keep profiles with a department containing this text (repeatable; all must match)")
	scanCmd.Flags().StringSlice("interest", nil, "keep profiles with a research interest containing this text (repeatable)")
	scanCmd.Flags().Int("max-id", 0, "highest identifier to probe (required, e.g. 6000)")
	scanCmd.Flags().Int("scan-workers", d.Scan.Workers, "concurrent profile probes")
	scanCmd.Flags().Int("progress-every", 500, "print a progress line every N probes (0 disables)")

	bindFlags(scanCmd.Flags(), map[string]string{
		"scan.max_id":  "max-id",
		"scan.workers": "scan-workers",
	})
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	h, err := newHarvest(cmd, args)
	if err != nil {
		return err
	}
	if h.cfg.Scan.MaxID < 1 {
		return fmt.Errorf("scan needs --max-id (or scan.max_id in the config file)")
	}

	depts, _ := cmd.Flags().GetStringSlice("department")
	interests, _ := cmd.Flags().GetStringSlice("interest")
	every, _ := cmd.Flags().GetInt("progress-every")

	var preds []resolve.Predicate
	for _, d := range depts {
		preds = append(preds, resolve.DepartmentContains(d))
	}
	for _, i := range interests {
		preds = append(preds, resolve.InterestContains(i))
	}
	pred := resolve.MatchAll()
	if len(preds) > 0 {
		pred = resolve.AllOf(preds...)
	}

	scanner := &resolve.RangeScanner{
		Users:         h.client,
		MaxID:         h.cfg.Scan.MaxID,
		Workers:       h.cfg.Scan.Workers,
		Predicate:     pred,
		Progress:      h.out,
		ProgressEvery: every,
	}
	query := ""
	if len(preds) > 0 {
		query = pred.Name
	}
	return h.run(cmd, scanner, types.SourceScanned, query)
}
