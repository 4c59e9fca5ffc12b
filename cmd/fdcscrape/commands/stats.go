package commands

import (
	"errors"

	"github.com/fdcscrape/scraper/internal/domain"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print row and column counts per category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Category", "Table", "Foods", "Nutrients"})

			var totalFoods int64
			for _, c := range a.cfg.Categories {
				count, err := store.Count(ctx, c.Table)
				if err != nil {
					return err
				}
				nutrients := 0
				tbl, err := store.Table(ctx, c.Table)
				switch {
				case errors.Is(err, domain.ErrUnknownCategory):
				case err != nil:
					return err
				default:
					nutrients = len(tbl.Columns) - 1
				}
				totalFoods += count
				t.AppendRow(table.Row{c.Label(), c.Table, count, nutrients})
			}

			t.AppendFooter(table.Row{"", "Total", totalFoods, ""})
			t.SetStyle(table.StyleRounded)
			t.Style().Format.Footer = text.FormatDefault
			t.Render()
			return nil
		},
	}
}
