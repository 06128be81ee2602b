package cmd

import (
	"log/slog"

	"github.com/matrixise/wallet-snapshot/internal/config"
	"github.com/matrixise/wallet-snapshot/internal/logger"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Validate configuration file",
	Long:  `Validate the configuration file syntax and values without generating a report.`,
	RunE:  validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	// Setup logger
	logger.Setup(logLevel)

	// Load config and credentials
	cfg, creds, err := config.LoadWithCredentials(cfgFile)
	if err != nil {
		slog.Error("Configuration validation failed", "error", err)
		return err
	}

	slog.Info("✓ Configuration valid",
		"wallets", len(cfg.Wallets),
		"blocks", len(cfg.Blocks),
		"excluded_contracts", len(cfg.ExcludeContracts),
		"rpc_url", cfg.RPCUrl,
		"explorer_url", cfg.ExplorerURL,
		"price_url", cfg.PriceURL,
		"output", cfg.Output,
		"interval", cfg.Interval,
		"log_level", cfg.LogLevel,
		"explorer_api_key_set", creds.ExplorerAPIKey != "",
		"price_api_key_set", creds.PriceAPIKey != "",
	)

	return nil
}
