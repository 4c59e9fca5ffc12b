package commands

import (
	"context"
	"errors"

	"github.com/fdcscrape/scraper/config"
	"github.com/fdcscrape/scraper/internal/infrastructure/observability"
	"github.com/fdcscrape/scraper/internal/usecase"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// batch runs the pipeline over items and prints the report. A run cut
// short by a signal still prints what it got through.
func (a *app) batch(cmd *cobra.Command, need stages, mode string, items []string, output string) error {
	runID := uuid.NewString()
	ctx := observability.WithRun(cmd.Context(), a.logger, runID)
	logger := *observability.LoggerFromContext(ctx)

	rt, err := a.build(ctx, need, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	logger.Info().Str("mode", mode).Int("items", len(items)).Msg("run started")

	var report *usecase.Report
	if mode == config.InputModeNames {
		report, err = rt.pipeline.RunNames(ctx, runID, items)
	} else {
		report, err = rt.pipeline.RunURLs(ctx, runID, items)
	}

	if report != nil {
		if perr := printReport(cmd.OutOrStdout(), report, output); perr != nil {
			logger.Error().Err(perr).Msg("failed to print report")
		}
	}
	if errors.Is(err, context.Canceled) {
		logger.Warn().Msg("run interrupted")
		return nil
	}
	if err != nil {
		return err
	}

	logger.Info().Int("foods", report.Foods).Int("failures", len(report.Failures)).Msg("run finished")
	return nil
}

func newRunCmd(a *app) *cobra.Command {
	var (
		input  string
		mode   string
		output string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured pipeline over the input list",
		Long: "Reads input.path in input.mode. In names mode every name is resolved and, " +
			"with pipeline.extract_resolved, its links are extracted right away. In urls mode " +
			"every link is extracted directly.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			if input == "" {
				input = a.cfg.Input.Path
			}
			if mode == "" {
				mode = a.cfg.Input.Mode
			}
			if mode != config.InputModeNames && mode != config.InputModeURLs {
				return errors.New("mode must be 'names' or 'urls'")
			}

			items, err := inputItems(nil, input)
			if err != nil {
				return err
			}

			need := stages{extract: true}
			if mode == config.InputModeNames {
				need = stages{resolve: true, extract: a.cfg.Pipeline.ExtractResolved}
			}
			return a.batch(cmd, need, mode, items, output)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "input list (default: input.path)")
	cmd.Flags().StringVar(&mode, "mode", "", "names or urls (default: input.mode)")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "report format: table or json")
	return cmd
}

func newResolveCmd(a *app) *cobra.Command {
	var (
		input  string
		output string
	)

	cmd := &cobra.Command{
		Use:   "resolve [name...]",
		Short: "Resolve food names to FDC descriptions and detail links",
		Long: "Searches FoodData Central for every name and appends the results to " +
			"missing_foods.txt, corrected_foods.txt, urls.txt and matches.csv in output.dir.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			items, err := inputItems(args, input)
			if err != nil {
				return err
			}
			return a.batch(cmd, stages{resolve: true}, config.InputModeNames, items, output)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "file of food names, one per line")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "report format: table or json")
	return cmd
}

func newExtractCmd(a *app) *cobra.Command {
	var (
		input  string
		output string
	)

	cmd := &cobra.Command{
		Use:   "extract [url...]",
		Short: "Extract and store the nutrient tables of FDC detail pages",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			items, err := inputItems(args, input)
			if err != nil {
				return err
			}
			return a.batch(cmd, stages{extract: true}, config.InputModeURLs, items, output)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "file of detail URLs, one per line")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "report format: table or json")
	return cmd
}
