package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/media-platform/services/gateway/internal/catalog"
	"github.com/example/media-platform/services/gateway/internal/grid"
	"github.com/example/media-platform/services/gateway/internal/media"
)

func newBrowseCmd(c *cli) *cobra.Command {
	var pages int
	cmd := &cobra.Command{
		Use:   "browse <movie|tv|anime> <category>",
		Short: "Page through a catalog category",
		Long:  "Page through a catalog category. Run without arguments to list categories.",
		Args:  cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 {
				return listCategories(cmd, c)
			}
			sel := grid.Selector{Scope: strings.ToLower(args[0]), Category: strings.ToLower(args[1])}

			var titles catalog.TitleLister
			if sel.Scope != string(media.KindAnime) {
				tc, err := c.titles()
				if err != nil {
					return err
				}
				titles = tc
			}
			anime, stop := c.anime()
			defer stop()

			ctrl := grid.NewController(catalog.NewDirectory(titles, anime, nil, c.log), c.log)
			if err := ctrl.Start(cmd.Context(), sel); err != nil {
				return err
			}
			for i := 1; i < pages; i++ {
				if !ctrl.LoadNextIfNeeded(cmd.Context()) {
					break
				}
			}

			st := ctrl.State()
			if c.asJSON {
				return c.printJSON(cmd.OutOrStdout(), st)
			}
			if st.Status == grid.StatusError {
				return fmt.Errorf("%s", st.Message)
			}
			if err := printSummaries(cmd.OutOrStdout(), st.Items); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d items, page %d, status %s\n", len(st.Items), st.Cursor.PageNumber, st.Status)
			return nil
		},
	}
	cmd.Flags().IntVarP(&pages, "pages", "n", 1, "Number of pages to load")
	return cmd
}

func listCategories(cmd *cobra.Command, c *cli) error {
	cats := catalog.Categories()
	if c.asJSON {
		return c.printJSON(cmd.OutOrStdout(), cats)
	}
	scopes := make([]string, 0, len(cats))
	for s := range cats {
		scopes = append(scopes, s)
	}
	sort.Strings(scopes)
	for _, s := range scopes {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", s, strings.Join(cats[s], ", "))
	}
	return nil
}
