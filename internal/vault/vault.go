package vault

import (
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"VaultLedger/internal/auth"
	"VaultLedger/internal/clock"
	vmath "VaultLedger/internal/math"
)

// AssetLedger is the custody collaborator. Transfers of more than the
// available balance must fail atomically.
type AssetLedger interface {
	Transfer(from, to uuid.UUID, amount sdkmath.Int) error
	TransferIn(holder uuid.UUID, amount sdkmath.Int) error
	TransferOut(holder uuid.UUID, amount sdkmath.Int) error
	BalanceOf(holder uuid.UUID) sdkmath.Int
}

// ShareLedger is the claim-token collaborator.
type ShareLedger interface {
	Mint(to uuid.UUID, amount sdkmath.Int) error
	Burn(from uuid.UUID, amount sdkmath.Int) error
	Transfer(from, to uuid.UUID, amount sdkmath.Int) error
	BalanceOf(holder uuid.UUID) sdkmath.Int
	TotalSupply() sdkmath.Int
}

// Authorizer answers capability checks for privileged operations.
type Authorizer interface {
	IsAuthorized(caller uuid.UUID, capability auth.Capability) bool
}

// Vault orchestrates issuance and redemption for one vault instance by
// composing the conversion math, rate-limit windows, order book, and the
// optional yield pool. Variants are selected through Config.Features and a
// RedeemPolicy, not through subtypes.
//
// All entry points hold the vault mutex for their duration. Inside the
// deterministic core that lock is redundant (commands are serialized), but
// the vault is also usable as a plain library.
//
// Effect ordering per operation: fallible collaborator calls that take value
// from the caller run first (they fail atomically), then vault state
// mutations, then outbound transfers.
type Vault struct {
	mu  sync.Mutex
	cfg Config

	assets AssetLedger
	shares ShareLedger
	authz  Authorizer
	clk    clock.Clock
	policy RedeemPolicy

	book         *OrderBook
	pool         *Pool
	integrations *IntegrationTable

	depositWindow  *RateLimitWindow
	withdrawWindow *RateLimitWindow

	log zerolog.Logger
}

func New(cfg Config, assets AssetLedger, shares ShareLedger, authz Authorizer, clk clock.Clock, logger zerolog.Logger) (*Vault, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	integrations := NewIntegrationTable()
	v := &Vault{
		cfg:            cfg,
		assets:         assets,
		shares:         shares,
		authz:          authz,
		clk:            clk,
		policy:         integrations,
		integrations:   integrations,
		depositWindow:  NewRateLimitWindow(),
		withdrawWindow: NewRateLimitWindow(),
		log:            logger.With().Str("component", "vault").Str("vault_id", cfg.ID).Logger(),
	}
	v.book = NewOrderBook()
	if cfg.Features.Has(FeatureYield) {
		v.pool = NewPool()
	}
	return v, nil
}

func (v *Vault) ID() string     { return v.cfg.ID }
func (v *Vault) Config() Config { return v.cfg }

// RestoreConfig replaces the mutable configuration from a snapshot.
// Parameters set by admin commands after startup live in the config, so a
// restore must carry them over before replay begins.
func (v *Vault) RestoreConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	v.cfg = cfg
	return nil
}

// Book, Pool, Integrations and the windows are exposed for the engine's
// snapshot and digest paths. Not safe for use concurrent with operations.
func (v *Vault) Book() *OrderBook                 { return v.book }
func (v *Vault) Pool() *Pool                      { return v.pool }
func (v *Vault) Integrations() *IntegrationTable  { return v.integrations }
func (v *Vault) DepositWindow() *RateLimitWindow  { return v.depositWindow }
func (v *Vault) WithdrawWindow() *RateLimitWindow { return v.withdrawWindow }

// ============================================================================
// Valuation
// ============================================================================

// totalAssets is the asset value backing the share supply. Yield vaults
// value the pool (principal + unrealized accrual + vested distribution);
// plain vaults value the custody balance minus assets already earmarked for
// filled orders awaiting payout.
func (v *Vault) totalAssets(now time.Time) sdkmath.Int {
	if v.pool != nil {
		return v.pool.TotalAssets(now)
	}
	bal := v.assets.BalanceOf(v.cfg.Account).Sub(v.book.AwaitingPayout())
	if bal.IsNegative() {
		return sdkmath.ZeroInt()
	}
	return bal
}

// buffer is the liquidity available for instant paths: the custody balance
// minus everything committed to pending orders or awaiting payout.
func (v *Vault) buffer() sdkmath.Int {
	b := v.assets.BalanceOf(v.cfg.Account).
		Sub(v.book.PendingAssets()).
		Sub(v.book.AwaitingPayout())
	if b.IsNegative() {
		return sdkmath.ZeroInt()
	}
	return b
}

func (v *Vault) redeemFeePpm(caller uuid.UUID) int64 {
	if v.policy.WaiveRedeemFee(caller) {
		return 0
	}
	return v.cfg.RedeemFeePpm
}

// ============================================================================
// Issuance
// ============================================================================

// Deposit takes assets from the caller and mints proportional shares to the
// receiver. Rejected when the deposit window cap would be exceeded.
func (v *Vault) Deposit(caller, receiver uuid.UUID, assets sdkmath.Int) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.checkReceiver(receiver); err != nil {
		return sdkmath.Int{}, err
	}
	if err := checkPositive("deposit", assets); err != nil {
		return sdkmath.Int{}, err
	}

	now, period := v.clk.Now(), v.clk.CurrentPeriod()
	if v.depositWindow.WouldExceed(assets, v.cfg.MaxDepositPerPeriod, period) {
		return sdkmath.Int{}, fmt.Errorf("%w: deposit of %s, remaining this period %s",
			ErrCapacityExceeded, assets, v.depositWindow.Remaining(v.cfg.MaxDepositPerPeriod, period))
	}

	minted := vmath.SharesForDeposit(assets, v.shares.TotalSupply(), v.totalAssets(now))
	if !minted.IsPositive() {
		return sdkmath.Int{}, fmt.Errorf("%w: deposit of %s yields zero shares", ErrParamOutOfBounds, assets)
	}

	if err := v.assets.Transfer(caller, v.cfg.Account, assets); err != nil {
		return sdkmath.Int{}, fmt.Errorf("deposit: %w", err)
	}

	v.depositWindow.Consume(assets, period)
	if v.pool != nil {
		v.pool.Credit(assets, now)
	}
	if err := v.shares.Mint(receiver, minted); err != nil {
		return sdkmath.Int{}, fmt.Errorf("deposit: %w", err)
	}

	v.log.Debug().Str("caller", caller.String()).Str("assets", assets.String()).
		Str("shares", minted.String()).Msg("deposit")
	return minted, nil
}

// Mint issues exactly the requested shares, charging the caller the rounded-
// up asset cost.
func (v *Vault) Mint(caller, receiver uuid.UUID, shares sdkmath.Int) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.checkReceiver(receiver); err != nil {
		return sdkmath.Int{}, err
	}
	if err := checkPositive("mint", shares); err != nil {
		return sdkmath.Int{}, err
	}

	now, period := v.clk.Now(), v.clk.CurrentPeriod()
	cost := vmath.AssetsForMint(shares, v.shares.TotalSupply(), v.totalAssets(now))
	if v.depositWindow.WouldExceed(cost, v.cfg.MaxDepositPerPeriod, period) {
		return sdkmath.Int{}, fmt.Errorf("%w: mint cost %s, remaining this period %s",
			ErrCapacityExceeded, cost, v.depositWindow.Remaining(v.cfg.MaxDepositPerPeriod, period))
	}

	if err := v.assets.Transfer(caller, v.cfg.Account, cost); err != nil {
		return sdkmath.Int{}, fmt.Errorf("mint: %w", err)
	}

	v.depositWindow.Consume(cost, period)
	if v.pool != nil {
		v.pool.Credit(cost, now)
	}
	if err := v.shares.Mint(receiver, shares); err != nil {
		return sdkmath.Int{}, fmt.Errorf("mint: %w", err)
	}

	v.log.Debug().Str("caller", caller.String()).Str("assets", cost.String()).
		Str("shares", shares.String()).Msg("mint")
	return cost, nil
}

// ============================================================================
// Instant redemption
// ============================================================================

// Withdraw pays out exactly the requested assets, burning the rounded-up
// share cost plus the redemption fee. Bounded by the withdraw window and the
// liquidity buffer.
func (v *Vault) Withdraw(caller, receiver uuid.UUID, assets sdkmath.Int) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.checkReceiver(receiver); err != nil {
		return sdkmath.Int{}, err
	}
	if err := checkPositive("withdraw", assets); err != nil {
		return sdkmath.Int{}, err
	}

	now := v.clk.Now()
	fee := vmath.FeeOnRaw(assets, v.redeemFeePpm(caller))
	gross := assets.Add(fee)

	burned := vmath.SharesForWithdraw(gross, v.shares.TotalSupply(), v.totalAssets(now))
	if err := v.applyRedemption(caller, gross, burned, now); err != nil {
		return sdkmath.Int{}, err
	}

	if err := v.payOut(receiver, assets, fee); err != nil {
		return sdkmath.Int{}, fmt.Errorf("withdraw: %w", err)
	}

	v.log.Debug().Str("caller", caller.String()).Str("assets", assets.String()).
		Str("fee", fee.String()).Str("shares", burned.String()).Msg("withdraw")
	return burned, nil
}

// Redeem burns exactly the requested shares and pays out the rounded-down
// asset value net of the redemption fee.
func (v *Vault) Redeem(caller, receiver uuid.UUID, shares sdkmath.Int) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.checkReceiver(receiver); err != nil {
		return sdkmath.Int{}, err
	}
	if err := checkPositive("redeem", shares); err != nil {
		return sdkmath.Int{}, err
	}

	now := v.clk.Now()
	gross := vmath.AssetsForRedeem(shares, v.shares.TotalSupply(), v.totalAssets(now))
	fee := vmath.FeeOnTotal(gross, v.redeemFeePpm(caller))
	net := gross.Sub(fee)

	if err := v.applyRedemption(caller, gross, shares, now); err != nil {
		return sdkmath.Int{}, err
	}

	if err := v.payOut(receiver, net, fee); err != nil {
		return sdkmath.Int{}, fmt.Errorf("redeem: %w", err)
	}

	v.log.Debug().Str("caller", caller.String()).Str("assets", net.String()).
		Str("fee", fee.String()).Str("shares", shares.String()).Msg("redeem")
	return net, nil
}

// applyRedemption runs the shared checks and state mutations of the instant
// path: window cap, liquidity buffer, pool allowance, then burn and consume.
func (v *Vault) applyRedemption(caller uuid.UUID, gross, burn sdkmath.Int, now time.Time) error {
	period := v.clk.CurrentPeriod()

	if v.withdrawWindow.WouldExceed(gross, v.cfg.MaxWithdrawPerPeriod, period) {
		return fmt.Errorf("%w: withdrawal of %s, remaining this period %s",
			ErrCapacityExceeded, gross, v.withdrawWindow.Remaining(v.cfg.MaxWithdrawPerPeriod, period))
	}
	if buf := v.buffer(); gross.GT(buf) {
		return fmt.Errorf("%w: withdrawal of %s, liquidity buffer %s", ErrCapacityExceeded, gross, buf)
	}
	if v.pool != nil {
		if av := v.pool.AllowanceValue(now); gross.GT(av) {
			return fmt.Errorf("%w: withdrawal of %s, pool withdraw allowance %s", ErrCapacityExceeded, gross, av)
		}
	}

	if err := v.shares.Burn(caller, burn); err != nil {
		return err
	}
	v.withdrawWindow.Consume(gross, period)
	if v.pool != nil {
		if err := v.pool.Debit(gross, now); err != nil {
			return err
		}
	}
	return nil
}

// payOut sends the net amount to the receiver and the fee to the treasury.
// Without a configured treasury the fee stays in the vault, accruing to the
// remaining shareholders.
func (v *Vault) payOut(receiver uuid.UUID, net, fee sdkmath.Int) error {
	if net.IsPositive() {
		if err := v.assets.Transfer(v.cfg.Account, receiver, net); err != nil {
			return err
		}
	}
	if fee.IsPositive() && v.cfg.Treasury != uuid.Nil {
		if err := v.assets.Transfer(v.cfg.Account, v.cfg.Treasury, fee); err != nil {
			return err
		}
	}
	return nil
}

// ============================================================================
// Delayed redemption orders
// ============================================================================

// CreateRedeemOrder escrows the caller's shares and registers a pending
// order. The payout is locked at creation: current conversion rate with the
// signed order fee applied.
func (v *Vault) CreateRedeemOrder(caller, receiver, controller uuid.UUID, shares sdkmath.Int) (uint64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireFeature(FeatureOrderBook); err != nil {
		return 0, err
	}
	if err := v.checkReceiver(receiver); err != nil {
		return 0, err
	}
	if err := checkPositive("order", shares); err != nil {
		return 0, err
	}
	if shares.LT(v.cfg.MinOrderShares) {
		return 0, fmt.Errorf("%w: order of %s shares, minimum %s", ErrBelowMinimum, shares, v.cfg.MinOrderShares)
	}

	now := v.clk.Now()
	gross := vmath.AssetsForRedeem(shares, v.shares.TotalSupply(), v.totalAssets(now))
	proceeds, err := vmath.ApplyOrderFee(gross, v.cfg.RedeemOrderFeePpm)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrParamOutOfBounds, err)
	}

	if err := v.shares.Transfer(caller, v.cfg.Account, shares); err != nil {
		return 0, fmt.Errorf("create order: %w", err)
	}

	o := v.book.Create(caller, receiver, controller, shares, proceeds, now, now.Add(v.cfg.FillWindow))
	v.log.Info().Uint64("order_id", o.ID).Str("owner", caller.String()).
		Str("shares", shares.String()).Str("assets", proceeds.String()).Msg("order created")
	return o.ID, nil
}

// FillRedeemOrder settles a pending order: the filler pays the locked asset
// amount to the receiver and takes the escrowed shares. Only authorized
// fillers may call; filling is allowed past the due time.
func (v *Vault) FillRedeemOrder(caller uuid.UUID, orderID uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireFeature(FeatureOrderBook); err != nil {
		return err
	}
	if !v.authz.IsAuthorized(caller, auth.CapOrderFiller) {
		return fmt.Errorf("%w: caller %s lacks %s", ErrUnauthorized, caller, auth.CapOrderFiller)
	}

	o, err := v.book.Get(orderID)
	if err != nil {
		return err
	}
	if o.Status != OrderPending {
		return fmt.Errorf("%w: id=%d, status=%s", ErrOrderNotPending, orderID, o.Status)
	}

	if o.Assets.IsPositive() {
		if err := v.assets.Transfer(caller, o.Receiver, o.Assets); err != nil {
			return fmt.Errorf("fill order %d: %w", orderID, err)
		}
	}
	if err := v.shares.Transfer(v.cfg.Account, caller, o.Shares); err != nil {
		return fmt.Errorf("fill order %d: %w", orderID, err)
	}
	if _, err := v.book.Fill(orderID, false); err != nil {
		return err
	}

	v.log.Info().Uint64("order_id", orderID).Str("filler", caller.String()).Msg("order filled")
	return nil
}

// CancelRedeemOrder returns the escrowed shares to the owner. The owner or
// controller may cancel once the order is due; an authorized filler may
// force-cancel at any time.
func (v *Vault) CancelRedeemOrder(caller uuid.UUID, orderID uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireFeature(FeatureOrderBook); err != nil {
		return err
	}

	o, err := v.book.Get(orderID)
	if err != nil {
		return err
	}
	if o.Status != OrderPending {
		return fmt.Errorf("%w: id=%d, status=%s", ErrOrderNotPending, orderID, o.Status)
	}

	if !v.authz.IsAuthorized(caller, auth.CapOrderFiller) {
		if !o.MayCancel(caller) {
			return fmt.Errorf("%w: caller %s is neither owner nor controller of order %d",
				ErrUnauthorized, caller, orderID)
		}
		if now := v.clk.Now(); now.Before(o.DueTime) {
			return fmt.Errorf("%w: now=%s, due=%s", ErrNotDue,
				now.UTC().Format(time.RFC3339), o.DueTime.UTC().Format(time.RFC3339))
		}
	}

	if err := v.shares.Transfer(v.cfg.Account, o.Owner, o.Shares); err != nil {
		return fmt.Errorf("cancel order %d: %w", orderID, err)
	}
	if _, err := v.book.Cancel(orderID); err != nil {
		return err
	}

	v.log.Info().Uint64("order_id", orderID).Str("caller", caller.String()).Msg("order cancelled")
	return nil
}

// ============================================================================
// Two-step redemption
// ============================================================================

// InitiateRedeem burns the caller's shares and self-fills an order from the
// vault's own liquidity, earmarking the payout until FinalizeRedeemOrder
// releases it after the redeem delay. Integrations may skip the delay or
// have the fee waived per policy.
func (v *Vault) InitiateRedeem(caller, receiver uuid.UUID, shares sdkmath.Int) (uint64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireFeature(FeatureTwoStep); err != nil {
		return 0, err
	}
	if err := v.checkReceiver(receiver); err != nil {
		return 0, err
	}
	if err := checkPositive("redeem", shares); err != nil {
		return 0, err
	}
	if shares.LT(v.cfg.MinOrderShares) {
		return 0, fmt.Errorf("%w: order of %s shares, minimum %s", ErrBelowMinimum, shares, v.cfg.MinOrderShares)
	}

	now := v.clk.Now()
	gross := vmath.AssetsForRedeem(shares, v.shares.TotalSupply(), v.totalAssets(now))
	fee := vmath.FeeOnTotal(gross, v.redeemFeePpm(caller))
	net := gross.Sub(fee)

	delay := v.cfg.RedeemDelay
	if v.policy.CanSkipRedeemDelay(caller) {
		delay = 0
	}

	if err := v.applyRedemption(caller, gross, shares, now); err != nil {
		return 0, err
	}
	if fee.IsPositive() && v.cfg.Treasury != uuid.Nil {
		if err := v.assets.Transfer(v.cfg.Account, v.cfg.Treasury, fee); err != nil {
			return 0, fmt.Errorf("initiate redeem: %w", err)
		}
	}

	o := v.book.Create(caller, receiver, uuid.Nil, shares, net, now, now.Add(delay))
	if _, err := v.book.Fill(o.ID, true); err != nil {
		return 0, err
	}

	v.log.Info().Uint64("order_id", o.ID).Str("owner", caller.String()).
		Str("assets", net.String()).Dur("delay", delay).Msg("redemption initiated")
	return o.ID, nil
}

// FinalizeRedeemOrder releases the earmarked payout of a filled order once
// it is due. Callable by anyone; succeeds exactly once per order.
func (v *Vault) FinalizeRedeemOrder(caller uuid.UUID, orderID uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireFeature(FeatureTwoStep); err != nil {
		return err
	}

	o, err := v.book.Finalize(orderID, v.clk.Now())
	if err != nil {
		return err
	}
	if o.Assets.IsPositive() {
		if err := v.assets.Transfer(v.cfg.Account, o.Receiver, o.Assets); err != nil {
			return fmt.Errorf("finalize order %d: %w", orderID, err)
		}
	}

	v.log.Info().Uint64("order_id", orderID).Str("caller", caller.String()).Msg("order finalized")
	return nil
}

// ============================================================================
// Capacity and preview queries
// ============================================================================

// The query family must be a pure projection of the mutating formulas: a
// caller acting at exactly the returned capacity, in the same period, is
// never rejected.

func (v *Vault) MaxDeposit() sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.depositWindow.Remaining(v.cfg.MaxDepositPerPeriod, v.clk.CurrentPeriod())
}

func (v *Vault) MaxMint() sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.cfg.MaxDepositPerPeriod.Equal(Unlimited) {
		return Unlimited
	}
	remaining := v.depositWindow.Remaining(v.cfg.MaxDepositPerPeriod, v.clk.CurrentPeriod())
	return vmath.SharesForDeposit(remaining, v.shares.TotalSupply(), v.totalAssets(v.clk.Now()))
}

func (v *Vault) MaxWithdraw(owner uuid.UUID) sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()

	gross := v.grossWithdrawCapacity(owner)
	return gross.Sub(vmath.FeeOnTotal(gross, v.redeemFeePpm(owner)))
}

func (v *Vault) MaxRedeem(owner uuid.UUID) sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.clk.Now()
	bal := v.shares.BalanceOf(owner)
	capShares := vmath.SharesForDeposit(v.grossWithdrawCapacity(owner), v.shares.TotalSupply(), v.totalAssets(now))
	return vmath.MinInt(bal, capShares)
}

// MaxRedeemOrder is not liquidity-bound: orders escrow shares and are paid
// by the filler, so the owner's balance is the only cap.
func (v *Vault) MaxRedeemOrder(owner uuid.UUID) sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.cfg.Features.Has(FeatureOrderBook) {
		return sdkmath.ZeroInt()
	}
	return v.shares.BalanceOf(owner)
}

// grossWithdrawCapacity is the largest gross (fee-inclusive) amount the
// instant redemption path would accept for owner right now.
func (v *Vault) grossWithdrawCapacity(owner uuid.UUID) sdkmath.Int {
	now := v.clk.Now()

	capacity := vmath.MinInt(
		v.withdrawWindow.Remaining(v.cfg.MaxWithdrawPerPeriod, v.clk.CurrentPeriod()),
		v.buffer(),
	)
	if v.pool != nil {
		capacity = vmath.MinInt(capacity, v.pool.AllowanceValue(now))
	}
	ownerValue := vmath.AssetsForRedeem(v.shares.BalanceOf(owner), v.shares.TotalSupply(), v.totalAssets(now))
	return vmath.MinInt(capacity, ownerValue)
}

func (v *Vault) PreviewDeposit(assets sdkmath.Int) sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return vmath.SharesForDeposit(assets, v.shares.TotalSupply(), v.totalAssets(v.clk.Now()))
}

func (v *Vault) PreviewMint(shares sdkmath.Int) sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return vmath.AssetsForMint(shares, v.shares.TotalSupply(), v.totalAssets(v.clk.Now()))
}

func (v *Vault) PreviewWithdraw(assets sdkmath.Int) sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()

	gross := assets.Add(vmath.FeeOnRaw(assets, v.cfg.RedeemFeePpm))
	return vmath.SharesForWithdraw(gross, v.shares.TotalSupply(), v.totalAssets(v.clk.Now()))
}

func (v *Vault) PreviewRedeem(shares sdkmath.Int) sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()

	gross := vmath.AssetsForRedeem(shares, v.shares.TotalSupply(), v.totalAssets(v.clk.Now()))
	return gross.Sub(vmath.FeeOnTotal(gross, v.cfg.RedeemFeePpm))
}

// PreviewRedeemOrder quotes the payout an order created now would lock in.
func (v *Vault) PreviewRedeemOrder(shares sdkmath.Int) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	gross := vmath.AssetsForRedeem(shares, v.shares.TotalSupply(), v.totalAssets(v.clk.Now()))
	return vmath.ApplyOrderFee(gross, v.cfg.RedeemOrderFeePpm)
}

// SharePriceE18 is the e18-scaled price of one share, unrealized yield
// included.
func (v *Vault) SharePriceE18() sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()

	supply := v.shares.TotalSupply()
	if supply.IsZero() {
		return sdkmath.NewInt(vmath.SharePriceScale)
	}
	return vmath.MulDiv(v.totalAssets(v.clk.Now()), sdkmath.NewInt(vmath.SharePriceScale), supply, vmath.RoundDown)
}

// ============================================================================
// Administration
// ============================================================================

func (v *Vault) SetRedeemFee(caller uuid.UUID, feePpm int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireCapability(caller, auth.CapRedeemManager); err != nil {
		return err
	}
	if feePpm < 0 || feePpm > vmath.PpmScale {
		return fmt.Errorf("%w: redeem fee %d ppm not in [0, %d]", ErrParamOutOfBounds, feePpm, vmath.PpmScale)
	}
	v.cfg.RedeemFeePpm = feePpm
	v.log.Info().Int64("fee_ppm", feePpm).Msg("redeem fee updated")
	return nil
}

func (v *Vault) SetRedeemOrderFee(caller uuid.UUID, feePpm int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireCapability(caller, auth.CapRedeemManager); err != nil {
		return err
	}
	// Bounded below at -100%: a larger incentive would pay out more than
	// double the order value.
	if feePpm < -vmath.PpmScale || feePpm > vmath.PpmScale {
		return fmt.Errorf("%w: redeem order fee %d ppm not in [-%d, %d]",
			ErrParamOutOfBounds, feePpm, vmath.PpmScale, vmath.PpmScale)
	}
	v.cfg.RedeemOrderFeePpm = feePpm
	v.log.Info().Int64("fee_ppm", feePpm).Msg("redeem order fee updated")
	return nil
}

func (v *Vault) SetFillWindow(caller uuid.UUID, window time.Duration) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireCapability(caller, auth.CapAdmin); err != nil {
		return err
	}
	if window < 0 {
		return fmt.Errorf("%w: fill window %s", ErrParamOutOfBounds, window)
	}
	v.cfg.FillWindow = window
	v.log.Info().Dur("fill_window", window).Msg("fill window updated")
	return nil
}

func (v *Vault) SetMaxDepositPerPeriod(caller uuid.UUID, cap sdkmath.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireCapability(caller, auth.CapLimitManager); err != nil {
		return err
	}
	if cap.IsNil() || cap.IsNegative() {
		return fmt.Errorf("%w: deposit cap %s", ErrParamOutOfBounds, cap)
	}
	v.cfg.MaxDepositPerPeriod = cap
	v.log.Info().Str("cap", cap.String()).Msg("deposit cap updated")
	return nil
}

func (v *Vault) SetMaxWithdrawPerPeriod(caller uuid.UUID, cap sdkmath.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireCapability(caller, auth.CapLimitManager); err != nil {
		return err
	}
	if cap.IsNil() || cap.IsNegative() {
		return fmt.Errorf("%w: withdraw cap %s", ErrParamOutOfBounds, cap)
	}
	v.cfg.MaxWithdrawPerPeriod = cap
	v.log.Info().Str("cap", cap.String()).Msg("withdraw cap updated")
	return nil
}

// UpdatePool replaces the externally-managed pool parameters.
func (v *Vault) UpdatePool(caller uuid.UUID, size, withdrawAllowance sdkmath.Int, dailyYieldRatePpm int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireFeature(FeatureYield); err != nil {
		return err
	}
	if err := v.requireCapability(caller, auth.CapPoolManager); err != nil {
		return err
	}
	if err := v.pool.Update(size, withdrawAllowance, dailyYieldRatePpm, v.clk.Now()); err != nil {
		return err
	}
	v.log.Info().Str("size", size.String()).Str("allowance", withdrawAllowance.String()).
		Int64("rate_ppm", dailyYieldRatePpm).Msg("pool updated")
	return nil
}

func (v *Vault) StartDistribution(caller uuid.UUID, amount sdkmath.Int, period time.Duration) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireFeature(FeatureYield); err != nil {
		return err
	}
	if err := v.requireCapability(caller, auth.CapPoolManager); err != nil {
		return err
	}
	if err := v.pool.StartDistribution(amount, period, v.clk.Now()); err != nil {
		return err
	}
	v.log.Info().Str("amount", amount.String()).Dur("period", period).Msg("distribution started")
	return nil
}

func (v *Vault) TerminateDistribution(caller uuid.UUID) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireFeature(FeatureYield); err != nil {
		return err
	}
	if err := v.requireCapability(caller, auth.CapPoolManager); err != nil {
		return err
	}
	if err := v.pool.TerminateDistribution(v.clk.Now()); err != nil {
		return err
	}
	v.log.Info().Msg("distribution terminated")
	return nil
}

func (v *Vault) SetIntegrationConfig(caller, integration uuid.UUID, cfg IntegrationConfig) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireCapability(caller, auth.CapRestrictionManager); err != nil {
		return err
	}
	if integration == uuid.Nil {
		return fmt.Errorf("%w: integration is the null identity", ErrParamOutOfBounds)
	}
	v.integrations.Set(integration, cfg)
	v.log.Info().Str("integration", integration.String()).
		Bool("skip_delay", cfg.CanSkipRedeemDelay).Bool("waive_fee", cfg.WaiveRedeemFee).
		Msg("integration config updated")
	return nil
}

// CreditBalance records asset funds the external custodian confirmed
// received for an account. Credits are the only way balances enter the
// engine's balance book, so every deposit is preceded by one.
func (v *Vault) CreditBalance(caller, account uuid.UUID, amount sdkmath.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireCapability(caller, auth.CapAdmin); err != nil {
		return err
	}
	if err := v.checkReceiver(account); err != nil {
		return err
	}
	if err := checkPositive("credit", amount); err != nil {
		return err
	}

	if err := v.assets.TransferIn(account, amount); err != nil {
		return fmt.Errorf("credit: %w", err)
	}
	v.log.Info().Str("account", account.String()).Str("amount", amount.String()).Msg("balance credited")
	return nil
}

// DebitBalance records funds the custodian released back out of an account.
/// The vault's own account cannot be debited this way: outflows from it go
// through Rescue, which protects earmarked liquidity.
func (v *Vault) DebitBalance(caller, account uuid.UUID, amount sdkmath.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireCapability(caller, auth.CapAdmin); err != nil {
		return err
	}
	if err := v.checkReceiver(account); err != nil {
		return err
	}
	if account == v.cfg.Account {
		return fmt.Errorf("%w: debit of vault account %s", ErrLiquidityProtected, account)
	}
	if err := checkPositive("debit", amount); err != nil {
		return err
	}

	if err := v.assets.TransferOut(account, amount); err != nil {
		return fmt.Errorf("debit: %w", err)
	}
	v.log.Info().Str("account", account.String()).Str("amount", amount.String()).Msg("balance debited")
	return nil
}

// Rescue moves assets out of the vault account, but never funds earmarked
// for pending orders or payouts.
func (v *Vault) Rescue(caller, to uuid.UUID, amount sdkmath.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireCapability(caller, auth.CapAdmin); err != nil {
		return err
	}
	if err := v.checkReceiver(to); err != nil {
		return err
	}
	if err := checkPositive("rescue", amount); err != nil {
		return err
	}
	if buf := v.buffer(); amount.GT(buf) {
		return fmt.Errorf("%w: rescue of %s, unearmarked balance %s", ErrLiquidityProtected, amount, buf)
	}

	if err := v.assets.Transfer(v.cfg.Account, to, amount); err != nil {
		return fmt.Errorf("rescue: %w", err)
	}
	v.log.Info().Str("to", to.String()).Str("amount", amount.String()).Msg("rescue")
	return nil
}

// ============================================================================
// Invariants
// ============================================================================

// CheckInvariants recomputes and verifies the vault's structural invariants.
// The engine calls this after every applied command and treats a failure as
// fatal.
func (v *Vault) CheckInvariants() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.book.CheckPendingInvariant(); err != nil {
		return fmt.Errorf("vault %s: %w", v.cfg.ID, err)
	}
	if v.pool != nil {
		if err := v.pool.CheckInvariant(); err != nil {
			return fmt.Errorf("vault %s: %w", v.cfg.ID, err)
		}
	}
	if bal := v.assets.BalanceOf(v.cfg.Account); bal.LT(v.book.AwaitingPayout()) {
		return fmt.Errorf("vault %s: balance %s below awaiting payout %s",
			v.cfg.ID, bal, v.book.AwaitingPayout())
	}
	return nil
}

// ============================================================================
// Helpers
// ============================================================================

func (v *Vault) requireFeature(f Feature) error {
	if !v.cfg.Features.Has(f) {
		return fmt.Errorf("%w: vault %s", ErrFeatureDisabled, v.cfg.ID)
	}
	return nil
}

func (v *Vault) requireCapability(caller uuid.UUID, cap auth.Capability) error {
	if !v.authz.IsAuthorized(caller, cap) {
		return fmt.Errorf("%w: caller %s lacks %s", ErrUnauthorized, caller, cap)
	}
	return nil
}

func (v *Vault) checkReceiver(receiver uuid.UUID) error {
	if receiver == uuid.Nil {
		return ErrZeroReceiver
	}
	return nil
}

func checkPositive(op string, amount sdkmath.Int) error {
	if amount.IsNil() {
		return fmt.Errorf("%w: %s amount is nil", ErrParamOutOfBounds, op)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s amount %s", ErrParamOutOfBounds, op, amount)
	}
	return nil
}
