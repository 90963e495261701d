package math

import (
	"math/big"

	sdkmath "cosmossdk.io/math"
)

// Linear yield: size * ratePpm * elapsedSeconds / (1e6 * 86400).
// The rate is ppm-per-day regardless of the elapsed unit; accrual is linear,
// not compounding, until the next pool update resets the baseline.

// AccruedSince returns the yield accrued on size at ratePpm-per-day over
// elapsedSeconds.
func AccruedSince(size sdkmath.Int, ratePpm, elapsedSeconds int64, mode RoundingMode) sdkmath.Int {
	if ratePpm == 0 || elapsedSeconds == 0 || size.IsZero() {
		return sdkmath.ZeroInt()
	}

	num := new(big.Int).Mul(size.BigInt(), big.NewInt(ratePpm))
	num.Mul(num, big.NewInt(elapsedSeconds))

	return MulDiv(sdkmath.NewIntFromBigInt(num), sdkmath.OneInt(),
		sdkmath.NewIntFromBigInt(bigYieldDivisor), mode)
}

// Discount is the algebraic inverse of AccruedSince: the principal that,
// deposited elapsedSeconds ago, would be worth assets now. Used so a fresh
// deposit is not credited with yield that accrued before it existed.
func Discount(assets sdkmath.Int, ratePpm, elapsedSeconds int64, mode RoundingMode) sdkmath.Int {
	if ratePpm == 0 || elapsedSeconds == 0 || assets.IsZero() {
		return assets
	}

	// principal = assets * D / (D + rate*elapsed), D = 1e6 * 86400
	denom := new(big.Int).Mul(big.NewInt(ratePpm), big.NewInt(elapsedSeconds))
	denom.Add(denom, bigYieldDivisor)

	return MulDiv(assets, sdkmath.NewIntFromBigInt(bigYieldDivisor),
		sdkmath.NewIntFromBigInt(denom), mode)
}

// Vested returns the portion of a distribution of amount over periodSeconds
// that has vested after elapsedSeconds, capped at amount.
func Vested(amount sdkmath.Int, periodSeconds, elapsedSeconds int64, mode RoundingMode) sdkmath.Int {
	if periodSeconds <= 0 || elapsedSeconds >= periodSeconds {
		return amount
	}
	if elapsedSeconds <= 0 {
		return sdkmath.ZeroInt()
	}
	vested := MulDiv(amount, sdkmath.NewInt(elapsedSeconds), sdkmath.NewInt(periodSeconds), mode)
	return MinInt(amount, vested)
}

// CompoundGrowth returns principal grown at ratePpm-per-day compounded per
// whole day, with the fractional tail accrued linearly. Provided for
// preview/projection parity with external pricing; the pool itself accrues
// linearly.
func CompoundGrowth(principal sdkmath.Int, ratePpm, elapsedSeconds int64) sdkmath.Int {
	if ratePpm == 0 || elapsedSeconds == 0 || principal.IsZero() {
		return principal
	}

	days := elapsedSeconds / SecondsPerDay
	tail := elapsedSeconds % SecondsPerDay

	grown := principal
	factorNum := big.NewInt(PpmScale + ratePpm)
	for i := int64(0); i < days; i++ {
		grown = MulDiv(grown, sdkmath.NewIntFromBigInt(factorNum),
			sdkmath.NewIntFromBigInt(bigPpmScale), RoundDown)
	}
	if tail > 0 {
		grown = grown.Add(AccruedSince(grown, ratePpm, tail, RoundDown))
	}
	return grown
}
