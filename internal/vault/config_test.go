package vault_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"VaultLedger/internal/vault"
)

const sampleYAML = `
vaults:
  - id: usdc-main
    asset: USDC
    share_symbol: vUSDC
    features: [orderbook, twostep]
    account: 550e8400-e29b-41d4-a716-446655440000
    treasury: 550e8400-e29b-41d4-a716-446655440001
    redeem_fee_ppm: 1000
    redeem_order_fee_ppm: -5000
    fill_window: 24h
    redeem_delay: 72h
    min_order_shares: "1000000"
    max_deposit_per_period: "1000000000000"
  - id: usdc-yield
    asset: USDC
    share_symbol: iUSDC
    features: [yield]
    account: 550e8400-e29b-41d4-a716-446655440002
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vaults.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigs_ParsesDefinitions(t *testing.T) {
	configs, err := vault.LoadConfigs(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	require.Len(t, configs, 2)

	main := configs[0]
	require.Equal(t, "usdc-main", main.ID)
	require.True(t, main.Features.Has(vault.FeatureOrderBook))
	require.True(t, main.Features.Has(vault.FeatureTwoStep))
	require.False(t, main.Features.Has(vault.FeatureYield))
	require.Equal(t, int64(1000), main.RedeemFeePpm)
	require.Equal(t, int64(-5000), main.RedeemOrderFeePpm)
	require.Equal(t, 24*time.Hour, main.FillWindow)
	require.Equal(t, amt(1_000_000), main.MinOrderShares)
	// Omitted withdraw cap defaults to unlimited.
	require.Equal(t, vault.Unlimited, main.MaxWithdrawPerPeriod)

	yield := configs[1]
	require.True(t, yield.Features.Has(vault.FeatureYield))
	require.Equal(t, vault.Unlimited, yield.MaxDepositPerPeriod)
}

func TestLoadConfigs_RejectsDuplicateIDs(t *testing.T) {
	dup := `
vaults:
  - id: a
    asset: USDC
    account: 550e8400-e29b-41d4-a716-446655440000
  - id: a
    asset: USDC
    account: 550e8400-e29b-41d4-a716-446655440001
`
	_, err := vault.LoadConfigs(writeConfig(t, dup))
	require.ErrorContains(t, err, "duplicate vault id")
}

func TestLoadConfigs_RejectsUnknownFeature(t *testing.T) {
	bad := `
vaults:
  - id: a
    asset: USDC
    account: 550e8400-e29b-41d4-a716-446655440000
    features: [margin]
`
	_, err := vault.LoadConfigs(writeConfig(t, bad))
	require.ErrorContains(t, err, "unknown feature")
}

func TestLoadConfigs_RejectsTwoStepWithoutOrderBook(t *testing.T) {
	bad := `
vaults:
  - id: a
    asset: USDC
    account: 550e8400-e29b-41d4-a716-446655440000
    features: [twostep]
`
	_, err := vault.LoadConfigs(writeConfig(t, bad))
	require.ErrorIs(t, err, vault.ErrParamOutOfBounds)
}
