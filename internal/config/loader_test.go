package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	return configPath
}

const minimalConfig = `
rpc_url = "https://mainnet.infura.io/v3/project-id"
wallets = ["0x1234567890123456789012345678901234567890"]
blocks = [17000000]
`

func TestLoad(t *testing.T) {
	t.Run("loads valid TOML config", func(t *testing.T) {
		configPath := writeConfig(t, `
rpc_url = "https://mainnet.infura.io/v3/project-id"
wallets = ["0x1234567890123456789012345678901234567890"]
blocks = [17000000, 17100000]
exclude_contracts = ["0x1111111111111111111111111111111111111111"]
rate_limit_delay = "500ms"
output = "report.csv"
log_level = "debug"
`)

		cfg, err := Load(configPath)
		require.NoError(t, err)

		assert.Equal(t, "https://mainnet.infura.io/v3/project-id", cfg.RPCUrl)
		assert.Equal(t, []string{"0x1234567890123456789012345678901234567890"}, cfg.Wallets)
		assert.Equal(t, []uint64{17000000, 17100000}, cfg.Blocks)
		assert.Equal(t, []string{"0x1111111111111111111111111111111111111111"}, cfg.ExcludeContracts)
		assert.Equal(t, 500*time.Millisecond, cfg.Delay())
		assert.Equal(t, "report.csv", cfg.Output)
		assert.Equal(t, "debug", cfg.LogLevel)
	})

	t.Run("defaults are applied", func(t *testing.T) {
		configPath := writeConfig(t, minimalConfig)

		cfg, err := Load(configPath)
		require.NoError(t, err)

		assert.Equal(t, "https://api.etherscan.io/api", cfg.ExplorerURL)
		assert.Equal(t, "https://min-api.cryptocompare.com/data/v2/histoday", cfg.PriceURL)
		assert.Equal(t, 200*time.Millisecond, cfg.Delay())
		assert.Equal(t, "balances.csv", cfg.Output)
		assert.Equal(t, "", cfg.Interval)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, 8080, cfg.HTTPPort)
		assert.Equal(t, "UTC", cfg.Timezone)
	})

	t.Run("environment variables override config file", func(t *testing.T) {
		configPath := writeConfig(t, minimalConfig)

		t.Setenv("WALLET_SNAPSHOT_LOG_LEVEL", "debug")
		t.Setenv("WALLET_SNAPSHOT_OUTPUT", "/tmp/override.csv")

		cfg, err := Load(configPath)
		require.NoError(t, err)

		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, "/tmp/override.csv", cfg.Output)
	})

	t.Run("comma-separated wallets from env", func(t *testing.T) {
		configPath := writeConfig(t, `
rpc_url = "https://mainnet.infura.io/v3/project-id"
blocks = [17000000]
`)

		t.Setenv("WALLET_SNAPSHOT_WALLETS", "0x1111111111111111111111111111111111111111, 0x2222222222222222222222222222222222222222")

		cfg, err := Load(configPath)
		require.NoError(t, err)

		assert.Len(t, cfg.Wallets, 2)
		assert.Equal(t, "0x1111111111111111111111111111111111111111", cfg.Wallets[0])
		assert.Equal(t, "0x2222222222222222222222222222222222222222", cfg.Wallets[1])
	})

	t.Run("validation fails for invalid wallet address", func(t *testing.T) {
		configPath := writeConfig(t, `
rpc_url = "https://mainnet.infura.io/v3/project-id"
wallets = ["invalid-address"]
blocks = [17000000]
`)

		_, err := Load(configPath)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "validation")
	})

	t.Run("validation fails when blocks are missing", func(t *testing.T) {
		configPath := writeConfig(t, `
rpc_url = "https://mainnet.infura.io/v3/project-id"
wallets = ["0x1234567890123456789012345678901234567890"]
`)

		_, err := Load(configPath)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "validation")
	})

	t.Run("malformed TOML is a load error", func(t *testing.T) {
		configPath := writeConfig(t, `wallets = [`)

		_, err := Load(configPath)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config")
	})
}

func TestLoadWithCredentials(t *testing.T) {
	t.Run("loads config with API keys from env", func(t *testing.T) {
		configPath := writeConfig(t, minimalConfig)

		t.Setenv("ETHERSCAN_API_KEY", "etherscan-key")
		t.Setenv("CRYPTOCOMPARE_API_KEY", "cryptocompare-key")

		cfg, creds, err := LoadWithCredentials(configPath)
		require.NoError(t, err)

		assert.NotNil(t, cfg)
		assert.Equal(t, "etherscan-key", creds.ExplorerAPIKey)
		assert.Equal(t, "cryptocompare-key", creds.PriceAPIKey)
	})

	t.Run("fails when ETHERSCAN_API_KEY is missing", func(t *testing.T) {
		configPath := writeConfig(t, minimalConfig)

		os.Unsetenv("ETHERSCAN_API_KEY")
		t.Setenv("CRYPTOCOMPARE_API_KEY", "cryptocompare-key")

		_, _, err := LoadWithCredentials(configPath)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "ETHERSCAN_API_KEY is required")
	})

	t.Run("fails when CRYPTOCOMPARE_API_KEY is missing", func(t *testing.T) {
		configPath := writeConfig(t, minimalConfig)

		t.Setenv("ETHERSCAN_API_KEY", "etherscan-key")
		os.Unsetenv("CRYPTOCOMPARE_API_KEY")

		_, _, err := LoadWithCredentials(configPath)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "CRYPTOCOMPARE_API_KEY is required")
	})

	t.Run("propagates config load errors", func(t *testing.T) {
		t.Setenv("ETHERSCAN_API_KEY", "etherscan-key")
		t.Setenv("CRYPTOCOMPARE_API_KEY", "cryptocompare-key")

		_, _, err := LoadWithCredentials("/nonexistent/invalid.toml")
		assert.Error(t, err)
	})
}
