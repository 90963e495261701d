package math_test

import (
	"testing"

	sdkmath "cosmossdk.io/math"

	vmath "VaultLedger/internal/math"
)

// ============================================================================
// Test: conversion rounding directions
// ============================================================================

func TestSharesForDeposit_EmptyPool_OneToOne(t *testing.T) {
	got := vmath.SharesForDeposit(intVal(1000), sdkmath.ZeroInt(), sdkmath.ZeroInt())
	if !got.Equal(intVal(1000)) {
		t.Errorf("empty pool deposit: got %s, want 1000", got)
	}
}

func TestSharesForDeposit_RoundsDown(t *testing.T) {
	// 10 assets into a pool of 3 shares / 7 assets: 10*3/7 = 4.28 -> 4
	got := vmath.SharesForDeposit(intVal(10), intVal(3), intVal(7))
	if !got.Equal(intVal(4)) {
		t.Errorf("got %s, want 4", got)
	}
}

func TestAssetsForMint_RoundsUp(t *testing.T) {
	// 4 shares from a pool of 3 shares / 7 assets: 4*7/3 = 9.33 -> 10
	got := vmath.AssetsForMint(intVal(4), intVal(3), intVal(7))
	if !got.Equal(intVal(10)) {
		t.Errorf("got %s, want 10", got)
	}
}

func TestSharesForWithdraw_RoundsUp(t *testing.T) {
	// withdraw 10 assets from 3 shares / 7 assets: 10*3/7 = 4.28 -> 5
	got := vmath.SharesForWithdraw(intVal(10), intVal(3), intVal(7))
	if !got.Equal(intVal(5)) {
		t.Errorf("got %s, want 5", got)
	}
}

func TestAssetsForRedeem_RoundsDown(t *testing.T) {
	// redeem 4 shares from 3 shares / 7 assets: 4*7/3 = 9.33 -> 9
	got := vmath.AssetsForRedeem(intVal(4), intVal(3), intVal(7))
	if !got.Equal(intVal(9)) {
		t.Errorf("got %s, want 9", got)
	}
}

// Round-tripping a deposit through a redeem can never pay out more than
// went in, for any pool ratio.
func TestConversion_RoundTripNeverProfits(t *testing.T) {
	ratios := []struct{ shares, assets int64 }{
		{1, 1}, {3, 7}, {7, 3}, {1000, 999}, {999, 1000}, {1, 1_000_000},
	}
	amounts := []int64{1, 2, 9, 10, 99, 100, 12345}

	for _, r := range ratios {
		for _, a := range amounts {
			shares := vmath.SharesForDeposit(intVal(a), intVal(r.shares), intVal(r.assets))
			back := vmath.AssetsForRedeem(shares, intVal(r.shares), intVal(r.assets))
			if back.GT(intVal(a)) {
				t.Errorf("pool %d/%d: deposit %d -> %s shares -> %s assets (profit)",
					r.shares, r.assets, a, shares, back)
			}
		}
	}
}

// ============================================================================
// Test: redemption fee identities
// ============================================================================

func TestFeeOnRaw_RoundsUp(t *testing.T) {
	// 1% of 101 = 1.01 -> 2
	got := vmath.FeeOnRaw(intVal(101), 10_000)
	if !got.Equal(intVal(2)) {
		t.Errorf("got %s, want 2", got)
	}
}

func TestFeeOnTotal_RoundsUp(t *testing.T) {
	// fee embedded in gross 102 at 1%: 102*10000/1010000 = 1.0099 -> 2
	got := vmath.FeeOnTotal(intVal(102), 10_000)
	if !got.Equal(intVal(2)) {
		t.Errorf("got %s, want 2", got)
	}
}

func TestFee_ZeroRate(t *testing.T) {
	if !vmath.FeeOnRaw(intVal(1000), 0).IsZero() {
		t.Error("zero rate should yield zero fee on raw")
	}
	if !vmath.FeeOnTotal(intVal(1000), 0).IsZero() {
		t.Error("zero rate should yield zero fee on total")
	}
}

// FeeOnTotal(raw + FeeOnRaw(raw)) == FeeOnRaw(raw) for all amounts and rates.
func TestFee_ExactInverse(t *testing.T) {
	rates := []int64{1, 100, 10_000, 50_000, 999_999}
	amounts := []int64{1, 7, 99, 100, 12345, 1_000_000}

	for _, rate := range rates {
		for _, a := range amounts {
			raw := intVal(a)
			feeUp := vmath.FeeOnRaw(raw, rate)
			total := raw.Add(feeUp)
			feeBack := vmath.FeeOnTotal(total, rate)
			if !feeBack.Equal(feeUp) {
				t.Errorf("rate %d, raw %d: FeeOnRaw=%s but FeeOnTotal(total)=%s",
					rate, a, feeUp, feeBack)
			}
		}
	}
}

// ============================================================================
// Test: signed order fee
// ============================================================================

func TestApplyOrderFee_Penalty(t *testing.T) {
	got, err := vmath.ApplyOrderFee(intVal(100), 100_000) // +10%
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(intVal(90)) {
		t.Errorf("100 at +10%%: got %s, want 90", got)
	}
}

func TestApplyOrderFee_Incentive(t *testing.T) {
	got, err := vmath.ApplyOrderFee(intVal(100), -100_000) // -10%
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(intVal(110)) {
		t.Errorf("100 at -10%%: got %s, want 110", got)
	}
}

func TestApplyOrderFee_RoundingFavorsPool(t *testing.T) {
	// +1% of 50 = 0.5 fee -> rounds up to 1, proceeds 49
	got, err := vmath.ApplyOrderFee(intVal(50), 10_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(intVal(49)) {
		t.Errorf("penalty fee should round up: got %s, want 49", got)
	}

	// -1% of 50 = 0.5 bonus -> rounds down to 0, proceeds 50
	got, err = vmath.ApplyOrderFee(intVal(50), -10_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(intVal(50)) {
		t.Errorf("incentive bonus should round down: got %s, want 50", got)
	}
}

func TestApplyOrderFee_FullPenaltyAndBounds(t *testing.T) {
	got, err := vmath.ApplyOrderFee(intVal(100), vmath.PpmScale) // +100%
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("full penalty should zero the proceeds: got %s", got)
	}

	if _, err := vmath.ApplyOrderFee(intVal(100), vmath.PpmScale+1); err == nil {
		t.Error("fee above +100% should be rejected")
	}
	if _, err := vmath.ApplyOrderFee(intVal(100), -vmath.PpmScale-1); err == nil {
		t.Error("fee below -100% should be rejected")
	}
}

// ============================================================================
// Test: share price
// ============================================================================

func TestSharePriceE18_ZeroSupply(t *testing.T) {
	got := vmath.SharePriceE18(sdkmath.ZeroInt(), sdkmath.ZeroInt(), 10_000, 86_400)
	if !got.Equal(sdkmath.NewInt(vmath.SharePriceScale)) {
		t.Errorf("zero supply must price at exactly 1e18: got %s", got)
	}
}

func TestSharePriceE18_WithAccrual(t *testing.T) {
	// 1000 assets, 1000 shares, 1%/day, one day elapsed -> 1010 assets.
	got := vmath.SharePriceE18(intVal(1000), intVal(1000), 10_000, 86_400)
	want := sdkmath.NewInt(vmath.SharePriceScale).MulRaw(1010).QuoRaw(1000)
	if !got.Equal(want) {
		t.Errorf("got %s, want %s", got, want)
	}
}
