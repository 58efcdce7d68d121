package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExpandEnvVarsOnlyExpandsGridbotPrefix(t *testing.T) {
	t.Setenv("GRIDBOT_API_KEY", "secret123")

	input := "apiKey: ${GRIDBOT_API_KEY}\nother: ${SOME_OTHER_VAR}"
	got := expandEnvVars(input)
	require.Equal(t, "apiKey: secret123\nother: ${SOME_OTHER_VAR}", got)
}

func TestExpandEnvVarsMissingGridbotVarExpandsEmpty(t *testing.T) {
	os.Unsetenv("GRIDBOT_SECRET_KEY")
	got := expandEnvVars("secretKey: ${GRIDBOT_SECRET_KEY}")
	require.Equal(t, "secretKey: ", got)
}

const validYAML = `
exchange:
  name: binance
grids:
  - symbol: BTC/USD
    lower: "55000"
    upper: "65000"
    numLevels: 5
    spacing: arithmetic
    orderSizeQuote: "100"
risk:
  maxOpenOrders: 10
pool:
  initialBalanceQuote: "10000"
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)
	require.Equal(t, "binance", cfg.Exchange.Name)
	require.Len(t, cfg.Grids, 1)
	require.Equal(t, "BTC/USD", cfg.Grids[0].Symbol)
}

func TestLoadWrapsLegacySingleGridBlock(t *testing.T) {
	legacy := `
exchange:
  name: binance
grid:
  symbol: ETH/USD
  lower: "2000"
  upper: "3000"
  numLevels: 4
  spacing: geometric
  orderSizeBase: "0.5"
risk:
  maxOpenOrders: 5
pool:
  initialBalanceQuote: "5000"
`
	cfg, err := Load(writeConfig(t, legacy))
	require.NoError(t, err)
	require.Len(t, cfg.Grids, 1)
	require.Equal(t, "ETH/USD", cfg.Grids[0].Symbol)
}

func TestLoadRejectsMissingGrids(t *testing.T) {
	bad := `
exchange:
  name: binance
risk:
  maxOpenOrders: 5
pool:
  initialBalanceQuote: "5000"
`
	_, err := Load(writeConfig(t, bad))
	require.Error(t, err)
}

func TestLoadRejectsBadOrderSizeCombination(t *testing.T) {
	bad := `
exchange:
  name: binance
grids:
  - symbol: BTC/USD
    lower: "1"
    upper: "2"
    numLevels: 3
    spacing: arithmetic
    orderSizeQuote: "100"
    orderSizeBase: "0.1"
risk:
  maxOpenOrders: 5
pool:
  initialBalanceQuote: "5000"
`
	_, err := Load(writeConfig(t, bad))
	require.Error(t, err)
}

func TestLoadRejectsDuplicateSymbols(t *testing.T) {
	bad := `
exchange:
  name: binance
grids:
  - symbol: BTC/USD
    lower: "1"
    upper: "2"
    numLevels: 3
    spacing: arithmetic
    orderSizeQuote: "100"
  - symbol: BTC/USD
    lower: "1"
    upper: "2"
    numLevels: 3
    spacing: arithmetic
    orderSizeQuote: "100"
risk:
  maxOpenOrders: 5
pool:
  initialBalanceQuote: "5000"
`
	_, err := Load(writeConfig(t, bad))
	require.Error(t, err)
}
