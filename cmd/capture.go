package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/voidgazerbly/snapwalk/internal/browser"
	"github.com/voidgazerbly/snapwalk/internal/capture"
	"github.com/voidgazerbly/snapwalk/internal/config"
	"github.com/voidgazerbly/snapwalk/internal/observability"
	"github.com/voidgazerbly/snapwalk/internal/reporting"
	"github.com/voidgazerbly/snapwalk/internal/store"
)

const shutdownGracePeriod = 15 * time.Second

// newCaptureCmd creates and configures the `capture` command.
func newCaptureCmd() *cobra.Command {
	captureCmd := &cobra.Command{
		Use:   "capture",
		Short: "Walks the target app through its configured states and captures artifacts",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their Viper keys so the CLI overrides config
			// file and environment values with the right precedence.
			if err := viper.BindPFlag("target.url", cmd.Flags().Lookup("url")); err != nil {
				return err
			}
			if err := viper.BindPFlag("capture.output_dir", cmd.Flags().Lookup("output")); err != nil {
				return err
			}
			if err := viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless")); err != nil {
				return err
			}
			if err := viper.BindPFlag("capture.settle_wait", cmd.Flags().Lookup("settle")); err != nil {
				return err
			}
			return viper.BindPFlag("capture.navigation_timeout", cmd.Flags().Lookup("nav-timeout"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			var cfg config.Config
			if err := viper.Unmarshal(&cfg); err != nil {
				return fmt.Errorf("failed to unmarshal config with flag overrides: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			outputDir, err := cfg.ResolveOutputDir()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
			}

			logger.Info("Starting capture",
				zap.String("target", cfg.Target.URL),
				zap.Strings("states", cfg.Target.States),
				zap.String("output_dir", outputDir),
			)

			result, err := runCapture(ctx, &cfg, outputDir, logger)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Warn("Capture aborted")
					return err
				}
				logger.Error("Capture failed", zap.Error(err))
				return err
			}

			fmt.Printf("\nCapture complete. Run ID: %s\n", result.RunID)
			fmt.Printf("%d artifacts and %d records written to %s\n",
				len(result.Artifacts), len(result.Records), outputDir)
			return nil
		},
	}

	captureCmd.Flags().String("url", "", "Target application URL. (Overrides config/env)")
	captureCmd.Flags().StringP("output", "o", "", "Output directory for artifacts. (Overrides config/env)")
	captureCmd.Flags().Bool("headless", true, "Run the browser headless. (Overrides config/env)")
	captureCmd.Flags().Duration("settle", 0, "Settle wait after each state selection. (Overrides config/env)")
	captureCmd.Flags().Duration("nav-timeout", 0, "Initial navigation timeout. (Overrides config/env)")

	return captureCmd
}

// runCapture wires the components and executes one run. Session release is
// guaranteed on every exit path, including interrupt and mid-run failure.
func runCapture(ctx context.Context, cfg *config.Config, outputDir string, logger *zap.Logger) (*capture.RunResult, error) {
	manager, err := browser.NewManager(ctx, logger, &cfg.Browser)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize browser manager: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := manager.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Error during browser manager shutdown", zap.Error(err))
		}
	}()

	session, err := manager.NewSession(ctx, browser.SessionConfig{
		NavigationTimeout: cfg.Capture.NavigationTimeout,
		NetworkQuiet:      cfg.Capture.NetworkQuiet,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open browser session: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := session.Close(closeCtx); err != nil {
			logger.Warn("Error during session close", zap.Error(err))
		}
	}()

	reports := reporting.NewWriter(outputDir, cfg.Capture.ReportFile, cfg.Capture.ManifestFile, logger)

	var recorder capture.RunRecorder
	if cfg.Database.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		runStore, err := store.New(ctx, pool, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize run-history store: %w", err)
		}
		if err := runStore.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		recorder = runStore
	}

	orch, err := capture.New(cfg, logger, session, outputDir, reports, recorder)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}
	return orch.Run(ctx)
}
