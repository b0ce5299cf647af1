package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/autometa/autometa/pkg/config"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadNodeConfig(t *testing.T) {
	path := writeConfig(t, `
admin: "0x00000000000000000000000000000000000000ad"
escrow: "0x00000000000000000000000000000000000000e5"
executor: "0x00000000000000000000000000000000000000ec"
workers:
  - "0x0000000000000000000000000000000000000019"
project_admins:
  - "0x0000000000000000000000000000000000000a11"
genesis:
  "0x0000000000000000000000000000000000000021": "2000000000000000000"
price:
  feed_url: "https://api.coingecko.com/api/v3/simple/price"
  tracked_symbols: [eth, btc]
`)

	cfg, err := config.LoadNodeConfig(path)
	require.NoError(t, err)

	nodeCfg := cfg.NodeConfig()
	assert.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000000ad"), nodeCfg.Admin)
	assert.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000000e5"), nodeCfg.Escrow)
	assert.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000000ec"), nodeCfg.Executor)
	require.Len(t, nodeCfg.Workers, 1)
	require.Len(t, nodeCfg.ProjectAdmins, 1)

	require.Len(t, nodeCfg.Genesis, 1)
	assert.Equal(t, common.HexToAddress("0x0000000000000000000000000000000000000021"), nodeCfg.Genesis[0].Address)
	assert.Equal(t, "2000000000000000000", nodeCfg.Genesis[0].Amount.String())

	assert.Equal(t, "https://api.coingecko.com/api/v3/simple/price", cfg.Price.FeedURL)
	assert.Equal(t, []string{"eth", "btc"}, cfg.Price.TrackedSymbols)
}

func TestLoadNodeConfigRejectsBadAddress(t *testing.T) {
	path := writeConfig(t, `
admin: "not-an-address"
escrow: "0x00000000000000000000000000000000000000e5"
executor: "0x00000000000000000000000000000000000000ec"
`)

	_, err := config.LoadNodeConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "admin")
}

func TestLoadNodeConfigRejectsBadGenesisAmount(t *testing.T) {
	path := writeConfig(t, `
admin: "0x00000000000000000000000000000000000000ad"
escrow: "0x00000000000000000000000000000000000000e5"
executor: "0x00000000000000000000000000000000000000ec"
genesis:
  "0x0000000000000000000000000000000000000021": "lots"
`)

	_, err := config.LoadNodeConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "genesis amount")
}

func TestLoadNodeConfigMissingFile(t *testing.T) {
	_, err := config.LoadNodeConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
