// Package cli provides the command-line interface for contractflow.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/raphaelgruber/contractflow/internal/app"
	"github.com/raphaelgruber/contractflow/internal/config"
	"github.com/raphaelgruber/contractflow/internal/service"
	"github.com/raphaelgruber/contractflow/internal/storage"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Loaded in PersistentPreRunE
	cfg        config.Config
	logger     *slog.Logger
	logCleanup func() error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "contractflow",
	Short: "Contract intake pipeline",
	Long: `Contractflow reads vendor contract PDFs, extracts their key terms,
checks them against policy documents and either approves them or queues
them for human review.

The same pipeline backs the contractflow-server email webhook.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		logger, logCleanup = config.SetupLogger(cfg.LogFile, level)
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCleanup != nil {
			if err := logCleanup(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// openReviews connects only the store; review commands need no model.
func openReviews(ctx context.Context) (*service.ReviewService, storage.Store, error) {
	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return service.NewReviewService(store, nil, logger), store, nil
}

func closeStore(ctx context.Context, store storage.Store) {
	if err := store.Close(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close store: %v\n", err)
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(logsCmd)
}
