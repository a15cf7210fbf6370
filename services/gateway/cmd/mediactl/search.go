package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/media-platform/services/gateway/internal/media"
	"github.com/example/media-platform/services/gateway/internal/search"
)

func newSearchCmd(c *cli) *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search movies, TV shows and anime",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := search.ParseScope(scope)
			if err != nil {
				return err
			}
			var titles search.TitleSearcher
			if sc != search.ScopeAnime {
				tc, err := c.titles()
				if err != nil {
					return err
				}
				titles = tc
			}
			anime, stop := c.anime()
			defer stop()

			agg := search.NewAggregator(titles, anime, c.log)
			results, err := agg.Search(cmd.Context(), strings.Join(args, " "), sc)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			if c.asJSON {
				return c.printJSON(cmd.OutOrStdout(), results)
			}
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No results.")
				return nil
			}
			return printSummaries(cmd.OutOrStdout(), results)
		},
	}
	cmd.Flags().StringVarP(&scope, "scope", "s", string(search.ScopeMulti), "multi | movie | tv | anime")
	return cmd
}

func printSummaries(w io.Writer, items []media.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tID\tTITLE\tYEAR\tSCORE")
	for _, s := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.Provider, s.ExternalID, s.Title, optInt(s.Year), optScore(s.Score))
	}
	return tw.Flush()
}

func optInt(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func optScore(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}
