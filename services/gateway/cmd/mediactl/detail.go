package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/media-platform/services/gateway/internal/media"
)

func newDetailCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "detail <movie|tv|anime> <id>",
		Short: "Show a title's details",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := media.ParseKind(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if kind == media.KindAnime {
				anime, stop := c.anime()
				defer stop()
				d, err := anime.Detail(cmd.Context(), args[1])
				if err != nil {
					return err
				}
				if c.asJSON {
					return c.printJSON(out, d)
				}
				fmt.Fprintf(out, "%s (%s)\n", d.Title, optInt(d.Year))
				fmt.Fprintf(out, "Score: %s  Episodes: %s  Status: %s\n", optScore(d.Score), optInt(d.Episodes), d.Status)
				fmt.Fprintf(out, "Genres: %s\n\n%s\n", strings.Join(d.Genres, ", "), d.Description)
				return nil
			}

			titles, err := c.titles()
			if err != nil {
				return err
			}
			d, err := titles.Details(cmd.Context(), kind, args[1])
			if err != nil {
				return err
			}
			if c.asJSON {
				return c.printJSON(out, d)
			}
			fmt.Fprintf(out, "%s (%s)\n", d.Title, optInt(d.Year))
			if d.Tagline != "" {
				fmt.Fprintf(out, "%s\n", d.Tagline)
			}
			fmt.Fprintf(out, "Score: %s  Runtime: %s min  Seasons: %d\n", optScore(d.Score), optInt(d.RuntimeMinutes), d.NumberOfSeasons)
			fmt.Fprintf(out, "Genres: %s\n\n%s\n", strings.Join(d.Genres, ", "), d.Overview)
			return nil
		},
	}
}
