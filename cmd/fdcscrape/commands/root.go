package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fdcscrape/scraper/config"
	"github.com/fdcscrape/scraper/internal/infrastructure/observability"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const serviceName = "fdcscrape"

var (
	version = "dev"
	commit  = "none"
)

// app carries what every subcommand needs once flags are parsed
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
}

// Execute runs the CLI and returns the process exit code
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           serviceName,
		Short:         "FoodData Central nutrient scraper",
		Long:          "Resolves food names against FoodData Central, extracts nutrient tables and stores them per category.",
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			a.cfg = cfg
			a.logger = observability.InitLogger(serviceName, cfg.Log.Level, cfg.Log.Format)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level")

	rootCmd.AddCommand(
		newResolveCmd(a),
		newExtractCmd(a),
		newRunCmd(a),
		newExportCmd(a),
		newStatsCmd(a),
		newServeCmd(a),
	)
	return rootCmd
}
