// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/scholars-harvest/internal/resolve"
	"github.com/pdiddy/scholars-harvest/pkg/types"
)

var namesCmd = &cobra.Command{
	Use:   "names [names...]",
	Short: "Resolve free-form names to profiles and harvest them",
	Long: `Names matches each name against the directory search, trying variants in
order until one finds the person: the name as given, without a suffix, with
the formal form of a nickname, hyphenated surname variants, and first plus
last name only.

Names come from arguments or --file (.txt one per line, .csv with --column,
or .yaml). Names that match nobody are reported with every query tried.
Unfindable people can be pinned with names.overrides in the config file.`,
	RunE: runNames,
}

func init() {
	d := types.DefaultHarvestConfig()
	namesCmd.Flags().String("file", "", "file of names (.txt, .csv, .yaml)")
	namesCmd.Flags().String("column", "name", "CSV column holding names")
	namesCmd.Flags().Int("name-workers", d.Names.Workers, "names resolved concurrently")

	bindFlags(namesCmd.Flags(), map[string]string{
		"names.workers": "name-workers",
	})
	rootCmd.AddCommand(namesCmd)
}

func runNames(cmd *cobra.Command, args []string) error {
	names := append([]string(nil), args...)
	if file, _ := cmd.Flags().GetString("file"); file != "" {
		column, _ := cmd.Flags().GetString("column")
		fromFile, err := resolve.ReadNames(file, column)
		if err != nil {
			return err
		}
		names = append(names, fromFile...)
	}
	if len(names) == 0 {
		return fmt.Errorf("provide names as arguments or with --file")
	}

	h, err := newHarvest(cmd, args)
	if err != nil {
		return err
	}
	r := &resolve.NameResolver{
		Matcher: resolve.NewNameMatcher(h.client, h.cfg.Names.Nicknames, h.cfg.Names.Overrides),
		Names:   names,
		Workers: h.cfg.Names.Workers,
	}
	return h.run(cmd, r, types.SourceName, "")
}
