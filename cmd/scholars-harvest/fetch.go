// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/scholars-harvest/internal/resolve"
	"github.com/pdiddy/scholars-harvest/pkg/types"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [ids...]",
	Short: "Harvest profiles by directory identifier",
	Long: `Fetch downloads the profile and collections of each given identifier.
Identifiers that do not exist are reported as not_found.`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more directory identifiers")
	}
	ids, err := readIDs(args)
	if err != nil {
		return err
	}
	h, err := newHarvest(cmd, args)
	if err != nil {
		return err
	}
	return h.run(cmd, resolve.ExplicitIDs{IDs: ids}, types.SourceExplicit, "")
}
