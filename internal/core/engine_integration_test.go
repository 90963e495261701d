package core_test

import (
	"VaultLedger/internal/auth"
	"VaultLedger/internal/clock"
	"VaultLedger/internal/command"
	"VaultLedger/internal/core"
	"VaultLedger/internal/token"
	"VaultLedger/internal/vault"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// --- Test helpers ---

var (
	testAdmin    = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	testFiller   = uuid.MustParse("00000000-0000-0000-0000-00000000000f")
	testAlice    = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	testBob      = uuid.MustParse("00000000-0000-0000-0000-000000000002")
	testAccount  = uuid.MustParse("00000000-0000-0000-0000-0000000000aa")
	testTreasury = uuid.MustParse("00000000-0000-0000-0000-0000000000bb")
)

const testVaultID = "usdv-main"

var testEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func amt(v int64) sdkmath.Int { return sdkmath.NewInt(v) }

type engineFixture struct {
	engine    *core.Engine
	persistCh chan core.CoreOutput
	projCh    chan core.CoreOutput
	registry  *auth.Registry
	custody   *token.Custody
	shares    *token.ShareLedger

	vaultSeq  int64
	globalSeq int64
}

// newTestEngine wires a single vault behind an engine with buffered channels
// and no DB checker.
func newTestEngine(t *testing.T, projCap int) *engineFixture {
	t.Helper()

	persistCh := make(chan core.CoreOutput, 1024)
	projCh := make(chan core.CoreOutput, projCap)

	clk := clock.NewVersioned()
	registry := auth.NewRegistry()
	registry.Grant(testFiller, auth.CapOrderFiller)

	custody := token.NewCustody("USDC")
	shares := token.NewShareLedger("USDV")

	cfg := vault.Config{
		ID:                   testVaultID,
		Asset:                "USDC",
		ShareSymbol:          "USDV",
		Features:             vault.FeatureOrderBook | vault.FeatureTwoStep,
		Account:              testAccount,
		Treasury:             testTreasury,
		FillWindow:           24 * time.Hour,
		RedeemDelay:          72 * time.Hour,
		MinOrderShares:       sdkmath.ZeroInt(),
		MaxDepositPerPeriod:  vault.Unlimited,
		MaxWithdrawPerPeriod: vault.Unlimited,
	}

	v, err := vault.New(cfg, custody, shares, registry, clk, zerolog.Nop())
	if err != nil {
		t.Fatalf("vault.New failed: %v", err)
	}

	engine := core.NewEngine(0, clk, registry, persistCh, projCh, nil, nil)
	engine.BootstrapAdmin(testAdmin)
	if err := engine.RegisterVault(&core.VaultHandle{Vault: v, Custody: custody, Shares: shares}); err != nil {
		t.Fatalf("RegisterVault failed: %v", err)
	}

	return &engineFixture{
		engine:    engine,
		persistCh: persistCh,
		projCh:    projCh,
		registry:  registry,
		custody:   custody,
		shares:    shares,
	}
}

// vaultBase stamps a command for the vault partition with the next source
// sequence. Timestamps advance one minute per command.
func (f *engineFixture) vaultBase(caller uuid.UUID) command.Base {
	seq := f.vaultSeq
	f.vaultSeq++
	return command.Base{
		CommandID: uuid.New(),
		Vault:     testVaultID,
		Caller:    caller,
		Sequence:  seq,
		Timestamp: testEpoch.Add(time.Duration(seq) * time.Minute),
		Period:    0,
	}
}

func (f *engineFixture) globalBase(caller uuid.UUID) command.Base {
	seq := f.globalSeq
	f.globalSeq++
	return command.Base{
		CommandID: uuid.New(),
		Caller:    caller,
		Sequence:  seq,
		Timestamp: testEpoch.Add(time.Duration(seq) * time.Minute),
		Period:    0,
	}
}

func (f *engineFixture) deposit(t *testing.T, caller uuid.UUID, assets int64) {
	t.Helper()
	f.custody.TransferIn(caller, amt(assets))
	err := f.engine.ProcessCommand(&command.Deposit{
		Base:     f.vaultBase(caller),
		Receiver: caller,
		Assets:   amt(assets),
	})
	if err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
}

func drainOutputs(ch chan core.CoreOutput) []core.CoreOutput {
	var outputs []core.CoreOutput
	for {
		select {
		case o := <-ch:
			outputs = append(outputs, o)
		default:
			return outputs
		}
	}
}

// ============================================================================
// Test: Issuance Flow
// ============================================================================

func TestDeposit_MintsShares(t *testing.T) {
	f := newTestEngine(t, 1024)

	f.deposit(t, testAlice, 1_000)

	if got := f.shares.BalanceOf(testAlice); !got.Equal(amt(1_000)) {
		t.Errorf("expected 1000 shares, got %s", got)
	}
	if got := f.custody.BalanceOf(testAccount); !got.Equal(amt(1_000)) {
		t.Errorf("expected 1000 in custody, got %s", got)
	}

	outputs := drainOutputs(f.persistCh)
	if len(outputs) != 1 {
		t.Fatalf("expected 1 output, got %d", len(outputs))
	}
	env := outputs[0].Envelope
	if env.Sequence != 0 {
		t.Errorf("expected sequence 0, got %d", env.Sequence)
	}
	if env.CommandType != command.CommandTypeDeposit {
		t.Errorf("expected Deposit command type, got %v", env.CommandType)
	}
	if env.VaultID == nil || *env.VaultID != testVaultID {
		t.Errorf("expected vault id %q, got %v", testVaultID, env.VaultID)
	}
	if len(env.Payload) == 0 {
		t.Error("payload should not be empty")
	}
	if env.StateHash == env.PrevHash {
		t.Error("state hash should differ from prev hash")
	}
}

func TestDeposit_InsufficientFunds_Rejected(t *testing.T) {
	f := newTestEngine(t, 1024)

	// No custody balance for alice
	err := f.engine.ProcessCommand(&command.Deposit{
		Base:     f.vaultBase(testAlice),
		Receiver: testAlice,
		Assets:   amt(500),
	})
	if err == nil {
		t.Fatal("expected error for unfunded deposit, got nil")
	}

	if outputs := drainOutputs(f.persistCh); len(outputs) != 0 {
		t.Errorf("expected 0 outputs for rejected command, got %d", len(outputs))
	}
	if got := f.shares.TotalSupply(); !got.IsZero() {
		t.Errorf("expected zero supply after rejection, got %s", got)
	}
}

func TestDepositRedeem_RoundTrip(t *testing.T) {
	f := newTestEngine(t, 1024)

	f.deposit(t, testAlice, 1_000)

	err := f.engine.ProcessCommand(&command.Redeem{
		Base:     f.vaultBase(testAlice),
		Receiver: testBob,
		Shares:   amt(400),
	})
	if err != nil {
		t.Fatalf("redeem failed: %v", err)
	}

	if got := f.custody.BalanceOf(testBob); !got.Equal(amt(400)) {
		t.Errorf("expected bob to receive 400, got %s", got)
	}
	if got := f.shares.BalanceOf(testAlice); !got.Equal(amt(600)) {
		t.Errorf("expected alice to hold 600 shares, got %s", got)
	}
}

func TestCustodyBridge_CreditThenDeposit(t *testing.T) {
	f := newTestEngine(t, 1024)

	// Without a credit there is nothing to deposit.
	err := f.engine.ProcessCommand(&command.Deposit{
		Base:     f.vaultBase(testAlice),
		Receiver: testAlice,
		Assets:   amt(500),
	})
	if err == nil {
		t.Fatal("expected unfunded deposit to be rejected, got nil")
	}

	err = f.engine.ProcessCommand(&command.CreditBalance{
		Base:    f.vaultBase(testAdmin),
		Account: testAlice,
		Amount:  amt(500),
	})
	if err != nil {
		t.Fatalf("credit failed: %v", err)
	}

	err = f.engine.ProcessCommand(&command.Deposit{
		Base:     f.vaultBase(testAlice),
		Receiver: testAlice,
		Assets:   amt(500),
	})
	if err != nil {
		t.Fatalf("deposit after credit failed: %v", err)
	}
	if got := f.shares.BalanceOf(testAlice); !got.Equal(amt(500)) {
		t.Errorf("expected 500 shares after credited deposit, got %s", got)
	}

	outputs := drainOutputs(f.persistCh)
	if len(outputs) != 2 {
		t.Fatalf("expected 2 outputs (credit + deposit), got %d", len(outputs))
	}
	if outputs[0].Envelope.CommandType != command.CommandTypeCreditBalance {
		t.Errorf("expected CreditBalance envelope first, got %v", outputs[0].Envelope.CommandType)
	}
}

func TestCustodyBridge_DebitVaultAccountRejected(t *testing.T) {
	f := newTestEngine(t, 1024)

	f.deposit(t, testAlice, 1_000)

	err := f.engine.ProcessCommand(&command.DebitBalance{
		Base:    f.vaultBase(testAdmin),
		Account: testAccount,
		Amount:  amt(1),
	})
	if err == nil {
		t.Fatal("expected debit of vault account to be rejected, got nil")
	}
	if got := f.custody.BalanceOf(testAccount); !got.Equal(amt(1_000)) {
		t.Errorf("vault account balance changed on rejected debit: %s", got)
	}
}

// ============================================================================
// Test: Order Lifecycle
// ============================================================================

func TestOrderLifecycle_CreateFill(t *testing.T) {
	f := newTestEngine(t, 1024)

	f.deposit(t, testAlice, 1_000)

	err := f.engine.ProcessCommand(&command.CreateRedeemOrder{
		Base:     f.vaultBase(testAlice),
		Receiver: testAlice,
		Shares:   amt(300),
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	// Fund the filler and settle order 0
	f.custody.TransferIn(testFiller, amt(300))
	err = f.engine.ProcessCommand(&command.FillRedeemOrder{
		Base:    f.vaultBase(testFiller),
		OrderID: 0,
	})
	if err != nil {
		t.Fatalf("fill order failed: %v", err)
	}

	if got := f.custody.BalanceOf(testAlice); !got.Equal(amt(300)) {
		t.Errorf("expected alice to receive 300 assets, got %s", got)
	}
	if got := f.shares.BalanceOf(testFiller); !got.Equal(amt(300)) {
		t.Errorf("expected filler to hold 300 shares, got %s", got)
	}
}

func TestFillRedeemOrder_RequiresCapability(t *testing.T) {
	f := newTestEngine(t, 1024)

	f.deposit(t, testAlice, 1_000)

	err := f.engine.ProcessCommand(&command.CreateRedeemOrder{
		Base:     f.vaultBase(testAlice),
		Receiver: testAlice,
		Shares:   amt(300),
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	// Bob holds no order_filler capability
	f.custody.TransferIn(testBob, amt(300))
	err = f.engine.ProcessCommand(&command.FillRedeemOrder{
		Base:    f.vaultBase(testBob),
		OrderID: 0,
	})
	if err == nil {
		t.Fatal("expected unauthorized fill to be rejected, got nil")
	}
}

// ============================================================================
// Test: Capability Grants (global partition)
// ============================================================================

func TestGrantCapability_AdminOnly(t *testing.T) {
	f := newTestEngine(t, 1024)

	// Bob is not an admin
	err := f.engine.ProcessCommand(&command.GrantCapability{
		Base:       f.globalBase(testBob),
		Grantee:    testBob,
		Capability: "order_filler",
	})
	if err == nil {
		t.Fatal("expected non-admin grant to be rejected, got nil")
	}

	err = f.engine.ProcessCommand(&command.GrantCapability{
		Base:       f.globalBase(testAdmin),
		Grantee:    testBob,
		Capability: "order_filler",
	})
	if err != nil {
		t.Fatalf("admin grant failed: %v", err)
	}

	if !f.registry.IsAuthorized(testBob, auth.CapOrderFiller) {
		t.Error("expected bob to hold order_filler after grant")
	}

	// Envelope for a global command carries no vault id
	outputs := drainOutputs(f.persistCh)
	if len(outputs) != 1 {
		t.Fatalf("expected 1 output, got %d", len(outputs))
	}
	if outputs[0].Envelope.VaultID != nil {
		t.Errorf("expected nil vault id for global command, got %v", *outputs[0].Envelope.VaultID)
	}
}

func TestRevokeCapability_RemovesGrant(t *testing.T) {
	f := newTestEngine(t, 1024)

	err := f.engine.ProcessCommand(&command.RevokeCapability{
		Base:       f.globalBase(testAdmin),
		Grantee:    testFiller,
		Capability: "order_filler",
	})
	if err != nil {
		t.Fatalf("revoke failed: %v", err)
	}

	if f.registry.IsAuthorized(testFiller, auth.CapOrderFiller) {
		t.Error("expected filler capability to be revoked")
	}
}

// ============================================================================
// Test: Idempotency
// ============================================================================

func TestIdempotency_DuplicateCommandIgnored(t *testing.T) {
	f := newTestEngine(t, 1024)

	f.custody.TransferIn(testAlice, amt(1_000))
	cmd := &command.Deposit{
		Base:     f.vaultBase(testAlice),
		Receiver: testAlice,
		Assets:   amt(1_000),
	}

	if err := f.engine.ProcessCommand(cmd); err != nil {
		t.Fatalf("first apply failed: %v", err)
	}
	if outputs := drainOutputs(f.persistCh); len(outputs) != 1 {
		t.Fatalf("expected 1 output on first apply, got %d", len(outputs))
	}

	// Same command again — silently ignored
	if err := f.engine.ProcessCommand(cmd); err != nil {
		t.Fatalf("duplicate should not error: %v", err)
	}
	if outputs := drainOutputs(f.persistCh); len(outputs) != 0 {
		t.Errorf("expected 0 outputs for duplicate, got %d", len(outputs))
	}
	if got := f.shares.BalanceOf(testAlice); !got.Equal(amt(1_000)) {
		t.Errorf("duplicate must not double-mint: got %s shares", got)
	}
}

// ============================================================================
// Test: Sequence Validation
// ============================================================================

func TestSequenceValidation_GapDetected(t *testing.T) {
	f := newTestEngine(t, 1024)

	f.deposit(t, testAlice, 1_000)

	// Skip a source sequence on the vault partition
	f.custody.TransferIn(testAlice, amt(100))
	err := f.engine.ProcessCommand(&command.Deposit{
		Base: command.Base{
			CommandID: uuid.New(),
			Vault:     testVaultID,
			Caller:    testAlice,
			Sequence:  5,
			Timestamp: testEpoch.Add(time.Hour),
		},
		Receiver: testAlice,
		Assets:   amt(100),
	})
	if err == nil {
		t.Fatal("expected sequence gap error, got nil")
	}
}

func TestSequenceValidation_PartitionsIndependent(t *testing.T) {
	f := newTestEngine(t, 1024)

	// Vault partition at seq 0, global partition also at seq 0
	f.deposit(t, testAlice, 1_000)

	err := f.engine.ProcessCommand(&command.GrantCapability{
		Base:       f.globalBase(testAdmin),
		Grantee:    testBob,
		Capability: "pool_manager",
	})
	if err != nil {
		t.Fatalf("global command on independent partition failed: %v", err)
	}
}

// ============================================================================
// Test: State Hash Chain
// ============================================================================

func TestStateHashChain_Deterministic(t *testing.T) {
	run := func() [][32]byte {
		f := newTestEngine(t, 1024)
		f.deposit(t, testAlice, 1_000)

		err := f.engine.ProcessCommand(&command.Redeem{
			Base: command.Base{
				CommandID: uuid.MustParse("11111111-1111-1111-1111-111111111111"),
				Vault:     testVaultID,
				Caller:    testAlice,
				Sequence:  1,
				Timestamp: testEpoch.Add(time.Minute),
			},
			Receiver: testBob,
			Shares:   amt(250),
		})
		if err != nil {
			t.Fatalf("redeem failed: %v", err)
		}

		outputs := drainOutputs(f.persistCh)
		hashes := make([][32]byte, len(outputs))
		for i, o := range outputs {
			hashes[i] = o.Envelope.StateHash
		}
		return hashes
	}

	hashes1 := run()
	hashes2 := run()

	if len(hashes1) != len(hashes2) {
		t.Fatalf("different number of outputs: %d vs %d", len(hashes1), len(hashes2))
	}
	for i := range hashes1 {
		if hashes1[i] != hashes2[i] {
			t.Errorf("hash %d differs: %x vs %x", i, hashes1[i], hashes2[i])
		}
	}
}

func TestStateHash_CoversAdminParameters(t *testing.T) {
	run := func(window time.Duration, skipDelay bool) [32]byte {
		f := newTestEngine(t, 1024)
		f.registry.Grant(testAdmin, auth.CapRestrictionManager)

		f.deposit(t, testAlice, 1_000)
		err := f.engine.ProcessCommand(&command.SetFillWindow{
			Base:   f.vaultBase(testAdmin),
			Window: window,
		})
		if err != nil {
			t.Fatalf("set fill window failed: %v", err)
		}
		err = f.engine.ProcessCommand(&command.SetIntegrationConfig{
			Base:               f.vaultBase(testAdmin),
			Integration:        testBob,
			CanSkipRedeemDelay: skipDelay,
		})
		if err != nil {
			t.Fatalf("set integration config failed: %v", err)
		}
		return f.engine.GetStateHash()
	}

	base := run(24*time.Hour, false)
	if run(24*time.Hour, false) != base {
		t.Error("identical parameters must reproduce the hash")
	}
	if run(48*time.Hour, false) == base {
		t.Error("fill window change must alter the state hash")
	}
	if run(24*time.Hour, true) == base {
		t.Error("integration config change must alter the state hash")
	}
}

func TestStateHashChain_Linked(t *testing.T) {
	f := newTestEngine(t, 1024)

	f.deposit(t, testAlice, 1_000)
	f.deposit(t, testBob, 500)

	outputs := drainOutputs(f.persistCh)
	if len(outputs) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(outputs))
	}
	if outputs[1].Envelope.PrevHash != outputs[0].Envelope.StateHash {
		t.Error("second envelope's prev hash should equal first envelope's state hash")
	}
}

// ============================================================================
// Test: Snapshot / Restore
// ============================================================================

func TestSnapshotRestore_RoundTrip(t *testing.T) {
	f := newTestEngine(t, 1024)

	f.deposit(t, testAlice, 1_000)
	err := f.engine.ProcessCommand(&command.CreateRedeemOrder{
		Base:     f.vaultBase(testAlice),
		Receiver: testAlice,
		Shares:   amt(200),
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	drainOutputs(f.persistCh)

	snap := f.engine.CreateSnapshotState()
	if snap.Sequence != 1 {
		t.Errorf("expected snapshot sequence 1, got %d", snap.Sequence)
	}

	// Fresh engine, same wiring
	g := newTestEngine(t, 1024)
	if err := g.engine.RestoreFromSnapshot(snap); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	if got := g.shares.BalanceOf(testAlice); !got.Equal(amt(800)) {
		t.Errorf("expected alice to hold 800 free shares after restore, got %s", got)
	}
	if got := g.engine.GetSequence(); got != 2 {
		t.Errorf("expected next sequence 2 after restore, got %d", got)
	}
	if g.engine.GetStateHash() != snap.StateHash {
		t.Error("restored chain tip should match snapshot state hash")
	}

	// Restored book state: the pending order can still be filled
	g.vaultSeq = 2
	g.custody.TransferIn(testFiller, amt(200))
	err = g.engine.ProcessCommand(&command.FillRedeemOrder{
		Base:    g.vaultBase(testFiller),
		OrderID: 0,
	})
	if err != nil {
		t.Fatalf("fill after restore failed: %v", err)
	}
}

func TestSnapshotRestore_FilledOrdersKeepEarmarks(t *testing.T) {
	f := newTestEngine(t, 1024)

	f.deposit(t, testAlice, 1_000)

	// One-step order: filled and paid out immediately, nothing earmarked.
	err := f.engine.ProcessCommand(&command.CreateRedeemOrder{
		Base:     f.vaultBase(testAlice),
		Receiver: testAlice,
		Shares:   amt(200),
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	f.custody.TransferIn(testFiller, amt(200))
	err = f.engine.ProcessCommand(&command.FillRedeemOrder{
		Base:    f.vaultBase(testFiller),
		OrderID: 0,
	})
	if err != nil {
		t.Fatalf("fill failed: %v", err)
	}

	// Two-step order: the payout stays earmarked until finalize.
	err = f.engine.ProcessCommand(&command.InitiateRedeem{
		Base:     f.vaultBase(testAlice),
		Receiver: testAlice,
		Shares:   amt(300),
	})
	if err != nil {
		t.Fatalf("initiate redeem failed: %v", err)
	}
	drainOutputs(f.persistCh)

	h, _ := f.engine.Vault(testVaultID)
	liveAwaiting := h.Vault.Book().AwaitingPayout()
	liveBuffer := h.Vault.MaxWithdraw(testAlice)
	if !liveAwaiting.Equal(amt(300)) {
		t.Fatalf("expected 300 earmarked live, got %s", liveAwaiting)
	}

	snap := f.engine.CreateSnapshotState()

	g := newTestEngine(t, 1024)
	if err := g.engine.RestoreFromSnapshot(snap); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	gh, _ := g.engine.Vault(testVaultID)
	if got := gh.Vault.Book().AwaitingPayout(); !got.Equal(liveAwaiting) {
		t.Errorf("restored book must match live book, got awaitingPayout=%s, want %s", got, liveAwaiting)
	}
	if got := gh.Vault.MaxWithdraw(testAlice); !got.Equal(liveBuffer) {
		t.Errorf("restored withdraw capacity = %s, want %s", got, liveBuffer)
	}
	if err := gh.Vault.CheckInvariants(); err != nil {
		t.Errorf("restored vault invariants: %v", err)
	}

	// The restored two-step order finalizes normally once due.
	err = g.engine.ProcessCommand(&command.FinalizeRedeemOrder{
		Base: command.Base{
			CommandID: uuid.New(),
			Vault:     testVaultID,
			Caller:    testAlice,
			Sequence:  f.vaultSeq,
			Timestamp: testEpoch.Add(80 * time.Hour), // Past the 72h delay
		},
		OrderID: 1,
	})
	if err != nil {
		t.Fatalf("finalize after restore failed: %v", err)
	}
	if got := gh.Vault.Book().AwaitingPayout(); !got.IsZero() {
		t.Errorf("expected no earmarks after finalize, got %s", got)
	}
}

// ============================================================================
// Test: Projection Channel (non-blocking drop)
// ============================================================================

func TestProjectionChannel_DropsOnFull(t *testing.T) {
	f := newTestEngine(t, 1) // Tiny buffer — fills after one command

	for i := 0; i < 5; i++ {
		f.deposit(t, testAlice, 100)
	}

	// All 5 should persist (projection drops are silent)
	persistOutputs := drainOutputs(f.persistCh)
	if len(persistOutputs) != 5 {
		t.Errorf("expected 5 persist outputs, got %d", len(persistOutputs))
	}
}
