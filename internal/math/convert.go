package math

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// Asset/share conversion. The rounding asymmetry is deliberate: every quote
// favors the pool over the user, so deposit/withdraw cycles can never extract
// more value than was put in.
//
// Zero total supply (or zero total assets) degrades to 1:1 — the bootstrap
// case where the pool is empty.

// SharesForDeposit returns the shares minted for a deposit of assets.
// Rounds down.
func SharesForDeposit(assets, totalShares, totalAssets sdkmath.Int) sdkmath.Int {
	if totalShares.IsZero() || totalAssets.IsZero() {
		return assets
	}
	return MulDiv(assets, totalShares, totalAssets, RoundDown)
}

// AssetsForMint returns the assets required to mint exactly shares.
// Rounds up.
func AssetsForMint(shares, totalShares, totalAssets sdkmath.Int) sdkmath.Int {
	if totalShares.IsZero() || totalAssets.IsZero() {
		return shares
	}
	return MulDiv(shares, totalAssets, totalShares, RoundUp)
}

// SharesForWithdraw returns the shares burned to withdraw exactly assets.
// Rounds up.
func SharesForWithdraw(assets, totalShares, totalAssets sdkmath.Int) sdkmath.Int {
	if totalShares.IsZero() || totalAssets.IsZero() {
		return assets
	}
	return MulDiv(assets, totalShares, totalAssets, RoundUp)
}

// AssetsForRedeem returns the assets paid out for redeeming shares.
// Rounds down.
func AssetsForRedeem(shares, totalShares, totalAssets sdkmath.Int) sdkmath.Int {
	if totalShares.IsZero() || totalAssets.IsZero() {
		return shares
	}
	return MulDiv(shares, totalAssets, totalShares, RoundDown)
}

// FeeOnRaw returns the fee added on top of a net amount (withdraw path).
// FeeOnTotal returns the fee contained in a gross amount (redeem path).
// Both round the fee up, and the denominators are chosen so the two are
// exact inverses: total = raw + FeeOnRaw(raw) implies
// FeeOnTotal(total) == FeeOnRaw(raw) at zero rounding error.

func FeeOnRaw(amount sdkmath.Int, feePpm int64) sdkmath.Int {
	if feePpm == 0 {
		return sdkmath.ZeroInt()
	}
	return MulDivInt64(amount, feePpm, PpmScale, RoundUp)
}

func FeeOnTotal(amount sdkmath.Int, feePpm int64) sdkmath.Int {
	if feePpm == 0 {
		return sdkmath.ZeroInt()
	}
	return MulDivInt64(amount, feePpm, feePpm+PpmScale, RoundUp)
}

// ApplyOrderFee converts an order's gross asset value into fill proceeds
// under a signed fee: positive ppm is a penalty subtracted from proceeds,
// negative ppm is an incentive added to proceeds. Rounding favors the pool
// in both directions (penalty up, incentive down).
func ApplyOrderFee(assets sdkmath.Int, orderFeePpm int64) (sdkmath.Int, error) {
	if orderFeePpm > PpmScale || orderFeePpm < -PpmScale {
		return sdkmath.Int{}, fmt.Errorf("order fee out of bounds: %d ppm not in [-%d, %d]",
			orderFeePpm, PpmScale, PpmScale)
	}

	if orderFeePpm >= 0 {
		fee := MulDivInt64(assets, orderFeePpm, PpmScale, RoundUp)
		return assets.Sub(fee), nil
	}

	bonus := MulDivInt64(assets, -orderFeePpm, PpmScale, RoundDown)
	return assets.Add(bonus), nil
}

// SharePriceE18 returns the e18-scaled share price for the given pool state,
// folding in unrealized linear yield. Zero supply reports exactly 1e18.
func SharePriceE18(totalAssets, totalShares sdkmath.Int, ratePpm, elapsedSeconds int64) sdkmath.Int {
	if totalShares.IsZero() {
		return sdkmath.NewInt(SharePriceScale)
	}
	grown := totalAssets.Add(AccruedSince(totalAssets, ratePpm, elapsedSeconds, RoundDown))
	return MulDiv(grown, sdkmath.NewInt(SharePriceScale), totalShares, RoundDown)
}
