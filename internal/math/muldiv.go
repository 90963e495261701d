package math

import (
	"math/big"

	sdkmath "cosmossdk.io/math"
)

// RoundingMode controls the rounding direction of MulDiv.
type RoundingMode int

const (
	RoundDown RoundingMode = iota // Truncate toward zero (amounts are non-negative)
	RoundUp                       // Round away from zero on any remainder
	RoundHalfEven                 // Banker's rounding
)

const (
	// PpmScale is the fee/rate unit: 1_000_000 ppm = 100%.
	PpmScale = 1_000_000

	// SecondsPerDay converts ppm-per-day rates to per-second accrual.
	SecondsPerDay = 86_400

	// SharePriceScale is the e18 fixed-point scale for share-price queries.
	SharePriceScale = 1_000_000_000_000_000_000
)

var (
	bigOne          = big.NewInt(1)
	bigPpmScale     = big.NewInt(PpmScale)
	bigYieldDivisor = big.NewInt(PpmScale * SecondsPerDay)
)

// MulDiv computes a * b / denom over arbitrary-precision integers with an
// explicit rounding direction. The intermediate product never overflows.
// denom must be positive; a and b must be non-negative.
func MulDiv(a, b, denom sdkmath.Int, mode RoundingMode) sdkmath.Int {
	if denom.IsNil() || !denom.IsPositive() {
		panic("MulDiv: non-positive denominator")
	}
	num := new(big.Int).Mul(a.BigInt(), b.BigInt())
	return quoRound(num, denom.BigInt(), mode)
}

// quoRound divides num by den (both non-negative, den > 0) with rounding.
func quoRound(num, den *big.Int, mode RoundingMode) sdkmath.Int {
	quo := new(big.Int)
	rem := new(big.Int)
	quo.QuoRem(num, den, rem)

	if rem.Sign() == 0 {
		return sdkmath.NewIntFromBigInt(quo)
	}

	switch mode {
	case RoundUp:
		quo.Add(quo, bigOne)
	case RoundHalfEven:
		// rem*2 vs den; on exact half, round to even quotient
		twice := new(big.Int).Lsh(rem, 1)
		switch twice.Cmp(den) {
		case 1:
			quo.Add(quo, bigOne)
		case 0:
			if quo.Bit(0) == 1 {
				quo.Add(quo, bigOne)
			}
		}
	}

	return sdkmath.NewIntFromBigInt(quo)
}

// MulDivInt64 is MulDiv with int64 multiplier and divisor, for ppm math.
func MulDivInt64(a sdkmath.Int, b, denom int64, mode RoundingMode) sdkmath.Int {
	return MulDiv(a, sdkmath.NewInt(b), sdkmath.NewInt(denom), mode)
}

// MinInt returns the smaller of two Ints.
func MinInt(a, b sdkmath.Int) sdkmath.Int {
	if a.LT(b) {
		return a
	}
	return b
}
