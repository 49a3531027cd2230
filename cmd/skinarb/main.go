// Command skinarb is the CLI entry point of the skin arbitrage bot. It
// loads configuration from the config directory, wires dependencies, and
// exposes the scrape and profitability surfaces as subcommands.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mfigueredo/skinarb/internal/app"
	"github.com/mfigueredo/skinarb/internal/config"
	"github.com/mfigueredo/skinarb/internal/domain"
	"github.com/mfigueredo/skinarb/internal/profit"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configDir   string
		concurrency int
		loop        bool

		mode      string
		minProfit float64
		minPrice  float64
		maxN      int
		filter    string
	)

	// Bootstrap logger; replaced once the configured level is known.
	logger := newLogger(slog.LevelInfo)
	slog.SetDefault(logger)

	var (
		cfg      *config.Config
		secrets  *config.Secrets
		loadErr  error
		exitCode = app.ExitOK
	)

	rootCmd := &cobra.Command{
		Use:           "skinarb",
		Short:         "CS:GO cross-venue arbitrage scraper",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, secrets, loadErr = config.Load(configDir)
			if loadErr != nil {
				return fmt.Errorf("load config: %w", loadErr)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger = newLogger(parseLevel(cfg.Settings.LogLevel))
			slog.SetDefault(logger)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "config", "path to the configuration directory")

	runCmd := &cobra.Command{
		Use:   "run [venues...]",
		Short: "Run the specified adapters (or all) once",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			application, err := app.New(ctx, cfg, secrets, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			if loop {
				exitCode = application.RunScrapeLoop(ctx, args)
			} else {
				exitCode = application.RunScrape(ctx, args, concurrency)
			}
			return nil
		},
	}
	runCmd.Flags().IntVar(&concurrency, "concurrency", 0, "in-flight adapter cap (0 = computed optimal)")
	runCmd.Flags().BoolVar(&loop, "loop", false, "keep scraping on the configured interval")
	rootCmd.AddCommand(runCmd)

	profitCmd := &cobra.Command{
		Use:   "profitability",
		Short: "Compute and persist arbitrage opportunities",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			application, err := app.New(ctx, cfg, secrets, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			var params profit.Params = application.ProfitDefaults()
			if cmd.Flags().Changed("mode") {
				params.Mode = mode
			}
			if cmd.Flags().Changed("min-profit") {
				params.MinProfitPercentage = minProfit
			}
			if cmd.Flags().Changed("min-price") {
				params.MinPrice = minPrice
			}
			if cmd.Flags().Changed("max") {
				params.MaxResults = maxN
			}
			preset, err := application.Filter(filter)
			if err != nil {
				return fmt.Errorf("%w: %v", domain.ErrConfig, err)
			}
			params.Filter = preset

			exitCode = application.RunProfitability(ctx, params)
			return nil
		},
	}
	profitCmd.Flags().StringVar(&mode, "mode", "complete", "fee mode: fast or complete")
	profitCmd.Flags().Float64Var(&minProfit, "min-profit", 0.01, "minimum profit percentage (0.05 = 5%)")
	profitCmd.Flags().Float64Var(&minPrice, "min-price", 1.0, "minimum buy price in USD")
	profitCmd.Flags().IntVar(&maxN, "max", 100, "maximum number of opportunities")
	profitCmd.Flags().StringVar(&filter, "filter", "", "named search filter preset (preset wins over engine config)")
	rootCmd.AddCommand(profitCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Error("command failed", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errors.Is(err, domain.ErrConfig) || loadErr != nil {
			return app.ExitConfigError
		}
		return app.ExitFatal
	}
	return exitCode
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
