package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matrixise/wallet-snapshot/internal/balance"
	"github.com/matrixise/wallet-snapshot/internal/blockchain"
	"github.com/matrixise/wallet-snapshot/internal/config"
	"github.com/matrixise/wallet-snapshot/internal/explorer"
	"github.com/matrixise/wallet-snapshot/internal/health"
	"github.com/matrixise/wallet-snapshot/internal/logger"
	"github.com/matrixise/wallet-snapshot/internal/prices"
	"github.com/matrixise/wallet-snapshot/internal/ratelimit"
	"github.com/matrixise/wallet-snapshot/internal/report"
	"github.com/matrixise/wallet-snapshot/internal/scheduler"
	"github.com/spf13/cobra"
)

var (
	interval string
	once     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate the historical balance report",
	Long:  `Fetch historical balances for the configured wallets and blocks and write the CSV report.`,
	RunE:  runReport,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&interval, "interval", "", "run interval - duration (1h) or cron (\"0 6 * * *\") - empty for one-time run")
	runCmd.Flags().BoolVar(&once, "once", false, "run once and exit (default)")
}

func runReport(cmd *cobra.Command, args []string) error {
	// Setup logger (log-level from global flag)
	logger.Setup(logLevel)

	// Context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigChan
		slog.Info("Signal received, graceful shutdown", "signal", sig)
		cancel()
	}()

	// Load config and API credentials
	cfg, creds, err := config.LoadWithCredentials(cfgFile)
	if err != nil {
		slog.Error("Configuration error", "error", err)
		return err
	}

	// Override log level if set in config
	if cfg.LogLevel != "" {
		logger.Setup(cfg.LogLevel)
	}

	// Use interval from flag if provided, otherwise from config
	runInterval := interval
	if runInterval == "" && cfg.Interval != "" {
		runInterval = cfg.Interval
	}

	slog.Info("Configuration loaded",
		"config_path", cfgFile,
		"wallets", len(cfg.Wallets),
		"blocks", len(cfg.Blocks),
		"excluded_contracts", len(cfg.ExcludeContracts),
		"rate_limit_delay", cfg.Delay().String(),
		"output", cfg.Output,
		"interval", runInterval,
	)

	// One limiter shared by every API client: the delay is global, not
	// per-endpoint
	limiter := ratelimit.New(cfg.Delay())

	// Connect to the node RPC provider
	chain, err := blockchain.Dial(cfg.RPCUrl, limiter)
	if err != nil {
		slog.Error("Failed to connect to RPC", "error", err)
		return err
	}
	defer chain.Close()
	slog.Info("RPC connection established", "endpoint", cfg.RPCUrl)

	explorerClient := explorer.NewClient(cfg.ExplorerURL, creds.ExplorerAPIKey, limiter)
	priceClient := prices.NewClient(cfg.PriceURL, creds.PriceAPIKey, limiter)
	ledger := balance.NewReconstructor(explorerClient)

	generator := report.NewGenerator(
		cfg.Wallets,
		cfg.Blocks,
		cfg.ExcludedSet(),
		explorerClient,
		chain,
		ledger,
		priceClient,
	)

	// Run mode: one-time or daemon
	if runInterval == "" || once {
		return writeReport(ctx, cfg.Output, generator)
	}

	// Daemon mode with scheduler
	slog.Info("Starting daemon mode with scheduler",
		"interval", runInterval,
		"timezone", cfg.GetTimezone().String(),
		"run_immediately", cfg.ShouldRunImmediately())

	schedulerCfg := scheduler.Config{
		Interval:       runInterval,
		Timezone:       cfg.GetTimezone(),
		RunImmediately: cfg.ShouldRunImmediately(),
		Logger:         slog.Default(),
	}

	// Job function that tracks execution status for the health checker
	var healthChecker *health.Checker
	jobFunc := func(jobCtx context.Context) error {
		err := writeReport(jobCtx, cfg.Output, generator)
		if healthChecker != nil {
			healthChecker.UpdateLastRun(err == nil)
		}
		return err
	}

	sched, err := scheduler.NewScheduler(ctx, schedulerCfg, jobFunc)
	if err != nil {
		slog.Error("Failed to create scheduler", "error", err)
		return fmt.Errorf("scheduler creation failed: %w", err)
	}
	defer sched.Stop()

	expectedInterval, err := sched.GetExpectedInterval()
	if err != nil {
		// Conservative estimate for irregular cron expressions
		expectedInterval = time.Hour
		slog.Warn("Could not determine exact interval, using conservative estimate",
			"interval", expectedInterval)
	}

	healthChecker = health.NewChecker(chain, expectedInterval)

	httpPort := cfg.HTTPPort
	if httpPort == 0 {
		httpPort = 8080
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", httpPort),
		Handler: healthChecker.Router(),
	}

	go func() {
		slog.Info("Health check server starting", "port", httpPort, "endpoint", "/health")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Health server error", "error", err)
		}
	}()

	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("Health server shutdown error", "error", err)
		}
	}()

	if err := sched.Start(); err != nil {
		slog.Error("Failed to start scheduler", "error", err)
		return fmt.Errorf("scheduler start failed: %w", err)
	}

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("Shutdown requested, stopping daemon")
	return nil
}

// writeReport generates one report into the output file. Output-file
// failures are fatal; per-call API failures inside the run are not.
func writeReport(ctx context.Context, path string, generator *report.Generator) error {
	file, err := os.Create(path)
	if err != nil {
		slog.Error("Failed to create output file", "path", path, "error", err)
		return err
	}
	defer file.Close()

	writer, err := report.NewWriter(file)
	if err != nil {
		slog.Error("Failed to write report header", "path", path, "error", err)
		return err
	}

	if err := generator.Run(ctx, writer); err != nil {
		slog.Error("Report generation failed", "error", err)
		return err
	}

	slog.Info("Completed processing all addresses", "output", path)
	return nil
}
