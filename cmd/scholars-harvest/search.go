// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/cobra"

	"github.com/pdiddy/scholars-harvest/internal/resolve"
	"github.com/pdiddy/scholars-harvest/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Harvest everyone returned by a filtered directory search",
	Long: `Search runs one directory search with free text and facet filters and
pages through every result. Facets are ANDed; the comma-separated values of
one facet are ORed:

  scholars-harvest search --facet department=medicine,pediatrics --facet interest=diabetes

Known facets: department, interest, position. Use --verify to re-check each
hit locally when the server applies a filter loosely.`,
	Args: cobra.NoArgs,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().String("text", "", "free-text query")
	searchCmd.Flags().StringArray("facet", nil, "facet filter name=value[,value...] (repeatable)")
	searchCmd.Flags().Bool("verify", false, "drop hits that do not satisfy the facets locally")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	h, err := newHarvest(cmd, args)
	if err != nil {
		return err
	}

	text, _ := cmd.Flags().GetString("text")
	raw, _ := cmd.Flags().GetStringArray("facet")
	verify, _ := cmd.Flags().GetBool("verify")

	filter := resolve.Filter{Text: text}
	for _, r := range raw {
		f, err := resolve.ParseFacet(r)
		if err != nil {
			return err
		}
		filter.Facets = append(filter.Facets, f)
	}
	if err := filter.Validate(); err != nil {
		return err
	}

	s := &resolve.FilteredSearch{
		Search:   h.client,
		Filter:   filter,
		PageSize: h.cfg.Fetch.PageSize,
		Verify:   verify,
	}
	return h.run(cmd, s, types.SourceSearch, filter.String())
}
