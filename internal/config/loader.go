package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	v.SetDefault("explorer_url", "https://api.etherscan.io/api")
	v.SetDefault("price_url", "https://min-api.cryptocompare.com/data/v2/histoday")
	v.SetDefault("rate_limit_delay", "200ms")
	v.SetDefault("output", "balances.csv")
	v.SetDefault("interval", "") // Run once by default
	v.SetDefault("log_level", "info")
	v.SetDefault("http_port", 8080)
	v.SetDefault("run_immediately", true)
	v.SetDefault("timezone", "UTC")

	// 2. Configure config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}

	// 3. Environment variables
	v.SetEnvPrefix("WALLET_SNAPSHOT")
	v.AutomaticEnv()

	// Map environment variables to config keys
	// WALLET_SNAPSHOT_RPC_URL -> rpc_url
	v.BindEnv("rpc_url", "RPC_URL")
	v.BindEnv("explorer_url", "EXPLORER_URL")
	v.BindEnv("price_url", "PRICE_URL")
	v.BindEnv("wallets", "WALLETS")
	v.BindEnv("rate_limit_delay", "RATE_LIMIT_DELAY")
	v.BindEnv("output", "OUTPUT")
	v.BindEnv("interval", "INTERVAL")
	v.BindEnv("log_level", "LOG_LEVEL")
	v.BindEnv("http_port", "HTTP_PORT")
	v.BindEnv("run_immediately", "RUN_IMMEDIATELY")
	v.BindEnv("timezone", "TIMEZONE")

	// 4. Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// 5. Unmarshal into struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Special handling for comma-separated env vars
	if walletsEnv := v.GetString("wallets"); walletsEnv != "" {
		if strings.Contains(walletsEnv, ",") {
			wallets := strings.Split(walletsEnv, ",")
			for i := range wallets {
				wallets[i] = strings.TrimSpace(wallets[i])
			}
			cfg.Wallets = wallets
		}
	}

	// 6. Validate with validator
	validate := NewValidator()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadWithCredentials loads config plus the API keys from the environment
func LoadWithCredentials(configPath string) (*Config, *Credentials, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	v := viper.New()
	v.BindEnv("etherscan_api_key", "ETHERSCAN_API_KEY")
	v.BindEnv("cryptocompare_api_key", "CRYPTOCOMPARE_API_KEY")

	creds := &Credentials{
		ExplorerAPIKey: v.GetString("etherscan_api_key"),
		PriceAPIKey:    v.GetString("cryptocompare_api_key"),
	}

	if creds.ExplorerAPIKey == "" {
		return nil, nil, fmt.Errorf("ETHERSCAN_API_KEY is required")
	}
	if creds.PriceAPIKey == "" {
		return nil, nil, fmt.Errorf("CRYPTOCOMPARE_API_KEY is required")
	}

	return cfg, creds, nil
}
