package vault

import (
	"fmt"
	"math/big"
	"os"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	vmath "VaultLedger/internal/math"
)

// Feature selects which engine capabilities a vault variant enables.
// Issuance (deposit/mint/withdraw/redeem) is always on; variants are
// composed by enabling features and injecting policy, not by subtyping.
type Feature uint8

const (
	FeatureOrderBook Feature = 1 << iota // delayed redemption orders
	FeatureYield                         // interest-bearing pool
	FeatureTwoStep                       // initiate/finalize redemption
)

func (f Feature) Has(flag Feature) bool { return f&flag != 0 }

// Unlimited is the per-period cap value meaning "no limit". Matches the
// u256 max sentinel of the accounting domain.
var Unlimited = func() sdkmath.Int {
	max := new(big.Int).Lsh(big.NewInt(1), 256)
	return sdkmath.NewIntFromBigInt(max.Sub(max, big.NewInt(1)))
}()

// Config is the mutable configuration of one vault instance. A copy is read
// at the start of each operation; admin setters are the only writers.
type Config struct {
	ID          string
	Asset       string
	ShareSymbol string
	Features    Feature

	Account  uuid.UUID // the vault's own custody account
	Treasury uuid.UUID // redemption fee recipient

	RedeemFeePpm      int64 // [0, 1e6]
	RedeemOrderFeePpm int64 // [-1e6, 1e6], negative is an incentive

	FillWindow  time.Duration // order creation -> owner may cancel
	RedeemDelay time.Duration // two-step initiate -> finalize

	MinOrderShares       sdkmath.Int
	MaxDepositPerPeriod  sdkmath.Int
	MaxWithdrawPerPeriod sdkmath.Int
}

func (c *Config) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: vault id is empty", ErrParamOutOfBounds)
	}
	if c.Asset == "" {
		return fmt.Errorf("%w: vault %s has no asset", ErrParamOutOfBounds, c.ID)
	}
	if c.Account == uuid.Nil {
		return fmt.Errorf("%w: vault %s has no custody account", ErrParamOutOfBounds, c.ID)
	}
	if c.RedeemFeePpm < 0 || c.RedeemFeePpm > vmath.PpmScale {
		return fmt.Errorf("%w: redeem fee %d ppm not in [0, %d]", ErrParamOutOfBounds, c.RedeemFeePpm, vmath.PpmScale)
	}
	if c.RedeemOrderFeePpm < -vmath.PpmScale || c.RedeemOrderFeePpm > vmath.PpmScale {
		return fmt.Errorf("%w: redeem order fee %d ppm not in [-%d, %d]",
			ErrParamOutOfBounds, c.RedeemOrderFeePpm, vmath.PpmScale, vmath.PpmScale)
	}
	if c.FillWindow < 0 || c.RedeemDelay < 0 {
		return fmt.Errorf("%w: negative window: fill=%s, delay=%s", ErrParamOutOfBounds, c.FillWindow, c.RedeemDelay)
	}
	if c.Features.Has(FeatureTwoStep) && !c.Features.Has(FeatureOrderBook) {
		return fmt.Errorf("%w: vault %s enables twostep without orderbook", ErrParamOutOfBounds, c.ID)
	}
	if c.MinOrderShares.IsNil() || c.MinOrderShares.IsNegative() {
		return fmt.Errorf("%w: vault %s min order shares %s", ErrParamOutOfBounds, c.ID, c.MinOrderShares)
	}
	if c.MaxDepositPerPeriod.IsNil() || c.MaxWithdrawPerPeriod.IsNil() {
		return fmt.Errorf("%w: vault %s has nil per-period caps", ErrParamOutOfBounds, c.ID)
	}
	return nil
}

// yamlVault is the on-disk shape of one vault definition.
type yamlVault struct {
	ID                string   `yaml:"id"`
	Asset             string   `yaml:"asset"`
	ShareSymbol       string   `yaml:"share_symbol"`
	Features          []string `yaml:"features"`
	Account           string   `yaml:"account"`
	Treasury          string   `yaml:"treasury"`
	RedeemFeePpm      int64    `yaml:"redeem_fee_ppm"`
	RedeemOrderFeePpm int64    `yaml:"redeem_order_fee_ppm"`
	FillWindow        string   `yaml:"fill_window"`
	RedeemDelay       string   `yaml:"redeem_delay"`
	MinOrderShares    string   `yaml:"min_order_shares"`
	MaxDepositPP      string   `yaml:"max_deposit_per_period"`
	MaxWithdrawPP     string   `yaml:"max_withdraw_per_period"`
}

type yamlFile struct {
	Vaults []yamlVault `yaml:"vaults"`
}

// LoadConfigs reads vault definitions from a YAML file. Amount fields are
// decimal strings; empty caps default to Unlimited.
func LoadConfigs(path string) ([]Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vault config %s: %w", path, err)
	}

	var file yamlFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse vault config %s: %w", path, err)
	}
	if len(file.Vaults) == 0 {
		return nil, fmt.Errorf("vault config %s defines no vaults", path)
	}

	configs := make([]Config, 0, len(file.Vaults))
	seen := make(map[string]struct{}, len(file.Vaults))
	for _, yv := range file.Vaults {
		if _, dup := seen[yv.ID]; dup {
			return nil, fmt.Errorf("vault config %s: duplicate vault id %q", path, yv.ID)
		}
		seen[yv.ID] = struct{}{}

		cfg, err := yv.toConfig()
		if err != nil {
			return nil, fmt.Errorf("vault config %s: vault %q: %w", path, yv.ID, err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("vault config %s: %w", path, err)
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

func (yv yamlVault) toConfig() (Config, error) {
	cfg := Config{
		ID:                yv.ID,
		Asset:             yv.Asset,
		ShareSymbol:       yv.ShareSymbol,
		RedeemFeePpm:      yv.RedeemFeePpm,
		RedeemOrderFeePpm: yv.RedeemOrderFeePpm,
		MinOrderShares:    sdkmath.ZeroInt(),
	}

	for _, f := range yv.Features {
		switch f {
		case "orderbook":
			cfg.Features |= FeatureOrderBook
		case "yield":
			cfg.Features |= FeatureYield
		case "twostep":
			cfg.Features |= FeatureTwoStep
		default:
			return Config{}, fmt.Errorf("unknown feature %q", f)
		}
	}

	var err error
	if cfg.Account, err = uuid.Parse(yv.Account); err != nil {
		return Config{}, fmt.Errorf("account: %w", err)
	}
	if yv.Treasury != "" {
		if cfg.Treasury, err = uuid.Parse(yv.Treasury); err != nil {
			return Config{}, fmt.Errorf("treasury: %w", err)
		}
	}
	if yv.FillWindow != "" {
		if cfg.FillWindow, err = time.ParseDuration(yv.FillWindow); err != nil {
			return Config{}, fmt.Errorf("fill_window: %w", err)
		}
	}
	if yv.RedeemDelay != "" {
		if cfg.RedeemDelay, err = time.ParseDuration(yv.RedeemDelay); err != nil {
			return Config{}, fmt.Errorf("redeem_delay: %w", err)
		}
	}
	if cfg.MinOrderShares, err = parseAmount(yv.MinOrderShares, sdkmath.ZeroInt()); err != nil {
		return Config{}, fmt.Errorf("min_order_shares: %w", err)
	}
	if cfg.MaxDepositPerPeriod, err = parseAmount(yv.MaxDepositPP, Unlimited); err != nil {
		return Config{}, fmt.Errorf("max_deposit_per_period: %w", err)
	}
	if cfg.MaxWithdrawPerPeriod, err = parseAmount(yv.MaxWithdrawPP, Unlimited); err != nil {
		return Config{}, fmt.Errorf("max_withdraw_per_period: %w", err)
	}
	return cfg, nil
}

func parseAmount(s string, def sdkmath.Int) (sdkmath.Int, error) {
	if s == "" {
		return def, nil
	}
	v, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("invalid amount %q", s)
	}
	if v.IsNegative() {
		return sdkmath.Int{}, fmt.Errorf("negative amount %q", s)
	}
	return v, nil
}
