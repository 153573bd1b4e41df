package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"artistsync/internal/services"
)

func init() {
	cmdRoot.AddCommand(cmdSearch())
}

func cmdSearch() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "search",
		Short:        "Search the streaming catalog",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query, _ := cmd.Flags().GetString("query")
			limit, _ := cmd.Flags().GetInt("limit")

			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return runSearch(cmd.Context(), cmd.OutOrStdout(), a.Streaming, query, limit)
		},
	}
	cmd.Flags().String("query", "", "free-form search query")
	cmd.Flags().Int("limit", 10, "maximum results")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}

func runSearch(ctx context.Context, out io.Writer, source services.AudioSource, query string, limit int) error {
	candidates, err := source.Search(ctx, query, limit)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		fmt.Fprintf(out, "No results for %q\n", query)
		return nil
	}
	for _, c := range candidates {
		fmt.Fprintf(out, "%-12s %-40s %-24s %4ds\n", c.TechnicalID, c.Title, c.Uploader, c.DurationSeconds)
	}
	return nil
}
