package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/docanchor/docanchor/hasher"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFromStrings(nil)
	require.NoError(t, err)

	require.Equal(t, "sepolia", cfg.Ledger.Network)
	require.Equal(t, uint64(11155111), cfg.Ledger.ChainID)
	require.Equal(t, time.Minute, cfg.Ledger.Timeout.Duration)
	require.Equal(t, 3, cfg.Ledger.RetryAttempts)
	require.Equal(t, hasher.SHA256, cfg.Issuance.HashAlgorithm)
	require.Equal(t, hasher.Keccak256, cfg.Issuance.CombineAlgorithm)
	require.Equal(t, 2*time.Minute, cfg.Issuance.WaitTxTimeout.Duration)
	require.False(t, cfg.Issuance.Badge.Enabled)
	require.Equal(t, []string{"stderr"}, cfg.Log.Outputs)
}

func TestLoadOverridesDefaults(t *testing.T) {
	override := `
[Ledger]
URL = "https://rpc.example.org"
AnchorAddr = "0x1234567890123456789012345678901234567890"
Timeout = "30s"

[Issuance]
IssuerID = "acme-certs"
`
	cfg, err := LoadFromStrings([]string{override})
	require.NoError(t, err)

	require.Equal(t, "https://rpc.example.org", cfg.Ledger.URL)
	require.Equal(t, common.HexToAddress("0x1234567890123456789012345678901234567890"), cfg.Ledger.AnchorAddr)
	require.Equal(t, 30*time.Second, cfg.Ledger.Timeout.Duration)
	require.Equal(t, "acme-certs", cfg.Issuance.IssuerID)
	// untouched values keep their defaults
	require.Equal(t, "sepolia", cfg.Ledger.Network)
}

func TestLoadLastLayerWins(t *testing.T) {
	first := "[Issuance]\nIssuerID = \"first\"\n"
	second := "[Issuance]\nIssuerID = \"second\"\n"
	cfg, err := LoadFromStrings([]string{first, second})
	require.NoError(t, err)
	require.Equal(t, "second", cfg.Issuance.IssuerID)
}

func TestLoadEnvVarOverride(t *testing.T) {
	t.Setenv("DOCANCHOR_LEDGER_NETWORK", "mainnet")
	t.Setenv("DOCANCHOR_LOG_OUTPUTS", "stderr,stdout")

	cfg, err := LoadFromStrings(nil)
	require.NoError(t, err)
	require.Equal(t, "mainnet", cfg.Ledger.Network)
	require.Equal(t, []string{"stderr", "stdout"}, cfg.Log.Outputs)
}

func TestSaveConfigToString(t *testing.T) {
	cfg, err := LoadFromStrings(nil)
	require.NoError(t, err)

	rendered, err := SaveConfigToString(*cfg)
	require.NoError(t, err)
	require.Contains(t, rendered, "sepolia")

	reloaded, err := LoadFromStrings([]string{rendered})
	require.NoError(t, err)
	require.Equal(t, cfg.Ledger.Network, reloaded.Ledger.Network)
	require.Equal(t, cfg.Issuance.HashAlgorithm, reloaded.Issuance.HashAlgorithm)
}

func TestSaveWritesFile(t *testing.T) {
	cfg, err := LoadFromStrings(nil)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, save(cfg, dir))
	data, err := os.ReadFile(filepath.Join(dir, SaveConfigFileName))
	require.NoError(t, err)
	require.NotEmpty(t, data)
}
