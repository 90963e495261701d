package token_test

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"

	"VaultLedger/internal/token"
)

func amt(v int64) sdkmath.Int { return sdkmath.NewInt(v) }

// ============================================================================
// Test: Custody
// ============================================================================

func TestCustody_InitialBalanceZero(t *testing.T) {
	c := token.NewCustody("USDC")
	if !c.BalanceOf(uuid.New()).IsZero() {
		t.Error("initial balance should be 0")
	}
}

func TestCustody_TransferInOut(t *testing.T) {
	c := token.NewCustody("USDC")
	holder := uuid.New()

	if err := c.TransferIn(holder, amt(1_000_000)); err != nil {
		t.Fatalf("TransferIn failed: %v", err)
	}
	if !c.BalanceOf(holder).Equal(amt(1_000_000)) {
		t.Errorf("got %s, want 1_000_000", c.BalanceOf(holder))
	}

	if err := c.TransferOut(holder, amt(400_000)); err != nil {
		t.Fatalf("TransferOut failed: %v", err)
	}
	if !c.BalanceOf(holder).Equal(amt(600_000)) {
		t.Errorf("got %s, want 600_000", c.BalanceOf(holder))
	}
}

func TestCustody_OverTransferFailsAtomically(t *testing.T) {
	c := token.NewCustody("USDC")
	from := uuid.New()
	to := uuid.New()

	if err := c.TransferIn(from, amt(100)); err != nil {
		t.Fatalf("TransferIn failed: %v", err)
	}

	if err := c.Transfer(from, to, amt(101)); err == nil {
		t.Fatal("expected error for 101 > 100")
	}

	// Neither side may have moved.
	if !c.BalanceOf(from).Equal(amt(100)) {
		t.Errorf("sender balance changed on failed transfer: %s", c.BalanceOf(from))
	}
	if !c.BalanceOf(to).IsZero() {
		t.Errorf("receiver balance changed on failed transfer: %s", c.BalanceOf(to))
	}
}

func TestCustody_RejectsSelfTransfer(t *testing.T) {
	c := token.NewCustody("USDC")
	holder := uuid.New()
	_ = c.TransferIn(holder, amt(100))

	if err := c.Transfer(holder, holder, amt(10)); err == nil {
		t.Error("self-transfer should fail")
	}
}

func TestCustody_RejectsNegativeAmount(t *testing.T) {
	c := token.NewCustody("USDC")
	if err := c.TransferIn(uuid.New(), amt(-1)); err == nil {
		t.Error("negative amount should fail")
	}
}

func TestCustody_Conservation(t *testing.T) {
	c := token.NewCustody("USDC")
	a, b := uuid.New(), uuid.New()

	_ = c.TransferIn(a, amt(1_000))
	_ = c.Transfer(a, b, amt(300))
	_ = c.TransferOut(b, amt(100))

	if err := c.ValidateConservation(); err != nil {
		t.Errorf("conservation should hold: %v", err)
	}
}

func TestCustody_SnapshotRestore(t *testing.T) {
	c := token.NewCustody("USDC")
	holder := uuid.New()
	_ = c.TransferIn(holder, amt(999))

	snap := c.Snapshot()

	// Mutating the snapshot must not affect the tracker.
	for k := range snap {
		snap[k] = sdkmath.ZeroInt()
	}
	if !c.BalanceOf(holder).Equal(amt(999)) {
		t.Error("balance should not be affected by snapshot mutation")
	}

	restored := token.NewCustody("USDC")
	restored.Restore(c.Snapshot())
	if !restored.BalanceOf(holder).Equal(amt(999)) {
		t.Errorf("restore: got %s, want 999", restored.BalanceOf(holder))
	}
	if err := restored.ValidateConservation(); err != nil {
		t.Errorf("restored custody should conserve: %v", err)
	}
}

// ============================================================================
// Test: ShareLedger
// ============================================================================

func TestShareLedger_MintBurn(t *testing.T) {
	s := token.NewShareLedger("vUSDC")
	holder := uuid.New()

	if err := s.Mint(holder, amt(500)); err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	if !s.TotalSupply().Equal(amt(500)) {
		t.Errorf("supply: got %s, want 500", s.TotalSupply())
	}

	if err := s.Burn(holder, amt(200)); err != nil {
		t.Fatalf("Burn failed: %v", err)
	}
	if !s.BalanceOf(holder).Equal(amt(300)) {
		t.Errorf("balance: got %s, want 300", s.BalanceOf(holder))
	}
	if !s.TotalSupply().Equal(amt(300)) {
		t.Errorf("supply: got %s, want 300", s.TotalSupply())
	}
}

func TestShareLedger_BurnMoreThanBalance(t *testing.T) {
	s := token.NewShareLedger("vUSDC")
	holder := uuid.New()
	_ = s.Mint(holder, amt(100))

	if err := s.Burn(holder, amt(101)); err == nil {
		t.Fatal("expected error for 101 > 100")
	}
	if !s.TotalSupply().Equal(amt(100)) {
		t.Errorf("supply changed on failed burn: %s", s.TotalSupply())
	}
}

func TestShareLedger_TransferSupplyNeutral(t *testing.T) {
	s := token.NewShareLedger("vUSDC")
	a, b := uuid.New(), uuid.New()
	_ = s.Mint(a, amt(1_000))

	if err := s.Transfer(a, b, amt(400)); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	if !s.TotalSupply().Equal(amt(1_000)) {
		t.Errorf("transfer changed supply: %s", s.TotalSupply())
	}
	if err := s.ValidateSupply(); err != nil {
		t.Errorf("supply should reconcile: %v", err)
	}
}

func TestShareLedger_Restore(t *testing.T) {
	s := token.NewShareLedger("vUSDC")
	a, b := uuid.New(), uuid.New()
	_ = s.Mint(a, amt(700))
	_ = s.Mint(b, amt(300))

	restored := token.NewShareLedger("vUSDC")
	restored.Restore(s.Snapshot())

	if !restored.TotalSupply().Equal(amt(1_000)) {
		t.Errorf("restored supply: got %s, want 1_000", restored.TotalSupply())
	}
}
