package commands

import (
	"errors"
	"fmt"

	"github.com/fdcscrape/scraper/internal/domain"
	"github.com/fdcscrape/scraper/internal/infrastructure/files"
	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [table...]",
		Short: "Rewrite the aggregate category CSVs from the store",
		Long:  "Rewrites categories/<table>.csv under output.dir for every configured category, or only the named ones.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			aggregates, err := files.NewAggregateWriter(a.cfg.Output.Dir, a.textInexact())
			if err != nil {
				return err
			}

			tables := args
			if len(tables) == 0 {
				for _, c := range a.cfg.Categories {
					tables = append(tables, c.Table)
				}
			}

			written := 0
			for _, name := range tables {
				table, err := store.Table(ctx, name)
				if errors.Is(err, domain.ErrUnknownCategory) {
					a.logger.Debug().Str("table", name).Msg("nothing stored, skipping")
					continue
				}
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", name, err)
				}
				if err := aggregates.Rewrite(table); err != nil {
					return err
				}
				a.logger.Info().Str("table", name).Int("rows", len(table.Rows)).Str("path", aggregates.Path(name)).Msg("exported")
				written++
			}

			fmt.Fprintf(cmd.OutOrStdout(), "exported %d of %d tables to %s\n", written, len(tables), a.cfg.Output.Dir)
			return nil
		},
	}
	return cmd
}
