package core

import (
	"VaultLedger/internal/auth"
	"VaultLedger/internal/clock"
	"VaultLedger/internal/command"
	"VaultLedger/internal/observability"
	"VaultLedger/internal/token"
	"VaultLedger/internal/vault"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
)

// VaultHandle bundles a vault with the ledgers backing it. The engine needs
// direct ledger access for state digests and snapshots.
type VaultHandle struct {
	Vault   *vault.Vault
	Custody *token.Custody
	Shares  *token.ShareLedger
}

// Engine is the single-threaded command processor. All vault state mutation
// flows through ProcessCommand; nothing else touches the vaults after
// startup.
type Engine struct {
	sequence          int64
	hasher            *StateHasher
	clk               *clock.Versioned
	registry          *auth.Registry
	vaults            map[string]*VaultHandle
	vaultIDs          []string
	idempotency       *IdempotencyChecker
	sequenceValidator *SequenceValidator
	metrics           *observability.Metrics

	persistChan    chan<- CoreOutput
	projectionChan chan<- CoreOutput
}

// CoreOutput is one applied command plus its envelope, emitted to the
// persistence and projection workers. Orders and State carry copies of the
// data the command touched so downstream workers never read live vault state.
type CoreOutput struct {
	Envelope   *command.CommandEnvelope
	Command    command.Command
	Orders     []vault.Order
	State      *VaultStateSummary
	StateDelta []byte
}

// VaultStateSummary is a point-in-time copy of one vault's aggregates,
// captured right after dispatch.
type VaultStateSummary struct {
	VaultID        string
	ShareSupply    sdkmath.Int
	TotalAssets    sdkmath.Int
	SharePriceE18  sdkmath.Int
	PendingShares  sdkmath.Int
	AwaitingPayout sdkmath.Int
	PendingOrders  int
	Period         uint64
}

func NewEngine(
	startSequence int64,
	clk *clock.Versioned,
	registry *auth.Registry,
	persistChan, projectionChan chan<- CoreOutput,
	dbChecker DBIdempotencyChecker,
	metrics *observability.Metrics,
) *Engine {
	// Initialize with capacity of 1M entries (configurable)
	idempotencyChecker := NewIdempotencyChecker(1_000_000, dbChecker)

	return &Engine{
		sequence:          startSequence,
		hasher:            NewStateHasher(),
		clk:               clk,
		registry:          registry,
		vaults:            make(map[string]*VaultHandle),
		idempotency:       idempotencyChecker,
		sequenceValidator: NewSequenceValidator(),
		metrics:           metrics,
		persistChan:       persistChan,
		projectionChan:    projectionChan,
	}
}

// RegisterVault adds a vault to the engine. Must be called before the first
// ProcessCommand; vaults are never added while the engine is running.
func (e *Engine) RegisterVault(h *VaultHandle) error {
	id := h.Vault.ID()
	if _, exists := e.vaults[id]; exists {
		return fmt.Errorf("vault already registered: %s", id)
	}
	e.vaults[id] = h
	e.vaultIDs = append(e.vaultIDs, id)
	sort.Strings(e.vaultIDs)
	return nil
}

// BootstrapAdmin grants the genesis admin its capability. Called once at
// startup before any commands are processed; all further grants flow
// through GrantCapability commands.
func (e *Engine) BootstrapAdmin(admin uuid.UUID) {
	e.registry.Grant(admin, auth.CapAdmin)
}

// Vault returns a registered vault handle.
func (e *Engine) Vault(id string) (*VaultHandle, bool) {
	h, ok := e.vaults[id]
	return h, ok
}

// VaultIDs returns all registered vault ids in sorted order.
func (e *Engine) VaultIDs() []string {
	out := make([]string, len(e.vaultIDs))
	copy(out, e.vaultIDs)
	return out
}

// ProcessCommand is the main processing pipeline.
func (e *Engine) ProcessCommand(cmd command.Command) error {
	start := time.Now()
	commandType := cmd.CommandType().String()
	idempotencyKey := cmd.IdempotencyKey()

	// Step 1: Idempotency check (two-tier)
	isDuplicate := e.idempotency.IsDuplicate(commandType, idempotencyKey)

	// Step 2: Sequence validation
	partition := e.getPartition(cmd)
	sourceSequence := cmd.SourceSequence()

	if err := e.sequenceValidator.ValidateSequence(partition, sourceSequence, idempotencyKey, isDuplicate); err != nil {
		return fmt.Errorf("sequence validation failed: %w", err)
	}

	// If duplicate, skip processing
	if isDuplicate {
		if e.metrics != nil {
			e.metrics.CoreCommandsRejected.WithLabelValues(commandType, "duplicate").Inc()
		}
		return nil
	}

	// Step 3: Advance the versioned clock. The engine never reads the wall
	// clock for vault logic; the command carries its own timestamp and
	// period so replay reproduces identical state.
	e.clk.Set(cmd.OccurredAt(), cmd.PeriodIndex())

	// Step 4: Dispatch
	if err := e.dispatch(cmd); err != nil {
		if e.metrics != nil {
			e.metrics.CoreCommandsRejected.WithLabelValues(commandType, "rejected").Inc()
		}
		return fmt.Errorf("dispatch failed: %w", err)
	}

	// Step 5: Post-checks
	if err := e.postCheckInvariants(cmd); err != nil {
		panic(fmt.Sprintf("FATAL: invariant violated: %v", err))
	}

	// Step 6: Compute state digest and extend the hash chain
	hashStart := time.Now()
	stateDigest := e.computeStateDigest(cmd.VaultID())
	prevHash := e.hasher.GetPrevHash()
	stateHash := e.hasher.ComputeHash(e.sequence, stateDigest)
	if e.metrics != nil {
		e.metrics.CoreStateHashDur.Observe(time.Since(hashStart).Seconds())
	}

	// Step 7: Create envelope
	payload, err := json.Marshal(cmd)
	if err != nil {
		panic(fmt.Sprintf("FATAL: command payload marshal failed: %v", err))
	}

	envelope := &command.CommandEnvelope{
		Sequence:       e.sequence,
		IdempotencyKey: idempotencyKey,
		CommandType:    cmd.CommandType(),
		VaultID:        cmd.VaultID(),
		Timestamp:      cmd.OccurredAt(),
		Period:         cmd.PeriodIndex(),
		SourceSequence: sourceSequence,
		Payload:        payload,
		StateHash:      stateHash,
		PrevHash:       prevHash,
	}

	output := CoreOutput{
		Envelope:   envelope,
		Command:    cmd,
		Orders:     e.affectedOrders(cmd),
		State:      e.captureVaultState(cmd.VaultID()),
		StateDelta: stateDigest,
	}

	e.sequence++

	// Step 8: Emit outputs. Persist channel uses a BLOCKING send
	// (backpressure); projection channel is non-blocking with silent drop.
	e.persistChan <- output

	select {
	case e.projectionChan <- output:
	default:
		// Dropped — projection catches up via rebuild
	}

	// Step 9: Mark as processed (add to LRU)
	e.idempotency.MarkProcessed(commandType, idempotencyKey)

	// Record metrics
	if e.metrics != nil {
		e.metrics.CoreCommandsApplied.WithLabelValues(commandType).Inc()
		e.metrics.CoreCommandDuration.WithLabelValues(commandType).Observe(time.Since(start).Seconds())
		e.metrics.CoreSequence.Set(float64(e.sequence))
		if vid := cmd.VaultID(); vid != nil {
			if h, ok := e.vaults[*vid]; ok {
				e.updateVaultGauges(h)
			}
		}
	}

	return nil
}

// getPartition determines the partition key for sequence validation.
func (e *Engine) getPartition(cmd command.Command) string {
	if vid := cmd.VaultID(); vid != nil {
		return fmt.Sprintf("vault:%s", *vid)
	}
	return "global"
}

func (e *Engine) vaultFor(cmd command.Command) (*VaultHandle, error) {
	vid := cmd.VaultID()
	if vid == nil {
		return nil, fmt.Errorf("command %s requires a vault id", cmd.CommandType())
	}
	h, ok := e.vaults[*vid]
	if !ok {
		return nil, fmt.Errorf("unknown vault: %s", *vid)
	}
	return h, nil
}

func (e *Engine) dispatch(cmd command.Command) error {
	switch c := cmd.(type) {
	case *command.Deposit:
		h, err := e.vaultFor(cmd)
		if err != nil {
			return err
		}
		_, err = h.Vault.Deposit(c.Caller, c.Receiver, c.Assets)
		return err

	case *command.Mint:
		h, err := e.vaultFor(cmd)
		if err != nil {
			return err
		}
		_, err = h.Vault.Mint(c.Caller, c.Receiver, c.Shares)
		return err

	case *command.Withdraw:
		h, err := e.vaultFor(cmd)
		if err != nil {
			return err
		}
		_, err = h.Vault.Withdraw(c.Caller, c.Receiver, c.Assets)
		return err

	case *command.Redeem:
		h, err := e.vaultFor(cmd)
		if err != nil {
			return err
		}
		_, err = h.Vault.Redeem(c.Caller, c.Receiver, c.Shares)
		return err

	case *command.CreateRedeemOrder:
		h, err := e.vaultFor(cmd)
		if err != nil {
			return err
		}
		_, err = h.Vault.CreateRedeemOrder(c.Caller, c.Receiver, c.Controller, c.Shares)
		if err == nil && e.metrics != nil {
			e.metrics.OrdersCreated.WithLabelValues(h.Vault.ID()).Inc()
		}
		return err

	case *command.FillRedeemOrder:
		h, err := e.vaultFor(cmd)
		if err != nil {
			return err
		}
		err = h.Vault.FillRedeemOrder(c.Caller, c.OrderID)
		if err == nil && e.metrics != nil {
			e.metrics.OrdersFilled.WithLabelValues(h.Vault.ID()).Inc()
		}
		return err

	case *command.CancelRedeemOrder:
		h, err := e.vaultFor(cmd)
		if err != nil {
			return err
		}
		err = h.Vault.CancelRedeemOrder(c.Caller, c.OrderID)
		if err == nil && e.metrics != nil {
			e.metrics.OrdersCancelled.WithLabelValues(h.Vault.ID()).Inc()
		}
		return err

	case *command.FinalizeRedeemOrder:
		h, err := e.vaultFor(cmd)
		if err != nil {
			return err
		}
		err = h.Vault.FinalizeRedeemOrder(c.Caller, c.OrderID)
		if err == nil && e.metrics != nil {
			e.metrics.OrdersFinalized.WithLabelValues(h.Vault.ID()).Inc()
		}
		return err

	case *command.InitiateRedeem:
		h, err := e.vaultFor(cmd)
		if err != nil {
			return err
		}
		_, err = h.Vault.InitiateRedeem(c.Caller, c.Receiver, c.Shares)
		return err

	case *command.SetRedeemFee:
		h, err := e.vaultFor(cmd)
		if err != nil {
			return err
		}
		return h.Vault.SetRedeemFee(c.Caller, c.FeePpm)

	case *command.SetRedeemOrderFee:
		h, err := e.vaultFor(cmd)
		if err != nil {
			return err
		}
		return h.Vault.SetRedeemOrderFee(c.Caller, c.FeePpm)

	case *command.SetFillWindow:
		h, err := e.vaultFor(cmd)
		if err != nil {
			return err
		}
		return h.Vault.SetFillWindow(c.Caller, c.Window)

	case *command.SetMaxDepositPerPeriod:
		h, err := e.vaultFor(cmd)
		if err != nil {
			return err
		}
		return h.Vault.SetMaxDepositPerPeriod(c.Caller, c.Cap)

	case *command.SetMaxWithdrawPerPeriod:
		h, err := e.vaultFor(cmd)
		if err != nil {
			return err
		}
		return h.Vault.SetMaxWithdrawPerPeriod(c.Caller, c.Cap)

	case *command.UpdatePool:
		h, err := e.vaultFor(cmd)
		if err != nil {
			return err
		}
		return h.Vault.UpdatePool(c.Caller, c.Size, c.WithdrawAllowance, c.DailyYieldRatePpm)

	case *command.StartDistribution:
		h, err := e.vaultFor(cmd)
		if err != nil {
			return err
		}
		return h.Vault.StartDistribution(c.Caller, c.Amount, c.Period)

	case *command.TerminateDistribution:
		h, err := e.vaultFor(cmd)
		if err != nil {
			return err
		}
		return h.Vault.TerminateDistribution(c.Caller)

	case *command.SetIntegrationConfig:
		h, err := e.vaultFor(cmd)
		if err != nil {
			return err
		}
		return h.Vault.SetIntegrationConfig(c.Caller, c.Integration, vault.IntegrationConfig{
			CanSkipRedeemDelay: c.CanSkipRedeemDelay,
			WaiveRedeemFee:     c.WaiveRedeemFee,
		})

	case *command.Rescue:
		h, err := e.vaultFor(cmd)
		if err != nil {
			return err
		}
		return h.Vault.Rescue(c.Caller, c.To, c.Amount)

	case *command.CreditBalance:
		h, err := e.vaultFor(cmd)
		if err != nil {
			return err
		}
		return h.Vault.CreditBalance(c.Caller, c.Account, c.Amount)

	case *command.DebitBalance:
		h, err := e.vaultFor(cmd)
		if err != nil {
			return err
		}
		return h.Vault.DebitBalance(c.Caller, c.Account, c.Amount)

	case *command.GrantCapability:
		return e.handleGrant(c.Caller, c.Grantee, c.Capability, true)

	case *command.RevokeCapability:
		return e.handleGrant(c.Caller, c.Grantee, c.Capability, false)

	default:
		return fmt.Errorf("unknown command type: %T", cmd)
	}
}

// handleGrant applies a global capability grant or revoke. Only admins may
// change grants; holding admin confers nothing else by itself.
func (e *Engine) handleGrant(caller, grantee uuid.UUID, capName string, grant bool) error {
	if !e.registry.IsAuthorized(caller, auth.CapAdmin) {
		return vault.ErrUnauthorized
	}
	capability, err := auth.ParseCapability(capName)
	if err != nil {
		return err
	}
	if grant {
		e.registry.Grant(grantee, capability)
	} else {
		e.registry.Revoke(grantee, capability)
	}
	return nil
}

// affectedOrders returns copies of the orders a successfully applied command
// touched. Create and InitiateRedeem always produce the highest assigned id.
func (e *Engine) affectedOrders(cmd command.Command) []vault.Order {
	vid := cmd.VaultID()
	if vid == nil {
		return nil
	}
	h, ok := e.vaults[*vid]
	if !ok {
		return nil
	}
	book := h.Vault.Book()
	if book == nil {
		return nil
	}

	var id uint64
	switch c := cmd.(type) {
	case *command.CreateRedeemOrder, *command.InitiateRedeem:
		id = book.NextID() - 1
	case *command.FillRedeemOrder:
		id = c.OrderID
	case *command.CancelRedeemOrder:
		id = c.OrderID
	case *command.FinalizeRedeemOrder:
		id = c.OrderID
	default:
		return nil
	}

	o, err := book.Get(id)
	if err != nil {
		return nil
	}
	return []vault.Order{*o}
}

// captureVaultState copies the affected vault's aggregates for projections.
// Global commands return nil.
func (e *Engine) captureVaultState(vaultID *string) *VaultStateSummary {
	if vaultID == nil {
		return nil
	}
	h, ok := e.vaults[*vaultID]
	if !ok {
		return nil
	}

	s := &VaultStateSummary{
		VaultID:        h.Vault.ID(),
		ShareSupply:    h.Shares.TotalSupply(),
		TotalAssets:    h.Custody.BalanceOf(h.Vault.Config().Account),
		SharePriceE18:  h.Vault.SharePriceE18(),
		PendingShares:  sdkmath.ZeroInt(),
		AwaitingPayout: sdkmath.ZeroInt(),
		Period:         e.clk.CurrentPeriod(),
	}
	if book := h.Vault.Book(); book != nil {
		s.PendingShares = book.PendingShares()
		s.AwaitingPayout = book.AwaitingPayout()
		s.PendingOrders = book.PendingCount()
	}
	return s
}

// postCheckInvariants validates invariants after command application.
func (e *Engine) postCheckInvariants(cmd command.Command) error {
	if vid := cmd.VaultID(); vid != nil {
		h, ok := e.vaults[*vid]
		if !ok {
			return nil
		}
		if err := h.Vault.CheckInvariants(); err != nil {
			return fmt.Errorf("vault %s: %w", *vid, err)
		}
	}

	// Periodic global conservation check across all vaults
	if e.sequence > 0 && e.sequence%1000 == 0 {
		for _, id := range e.vaultIDs {
			h := e.vaults[id]
			if err := h.Custody.ValidateConservation(); err != nil {
				return fmt.Errorf("vault %s custody (at seq %d): %w", id, e.sequence, err)
			}
			if err := h.Shares.ValidateSupply(); err != nil {
				return fmt.Errorf("vault %s shares (at seq %d): %w", id, e.sequence, err)
			}
		}
	}

	return nil
}

// computeStateDigest creates canonical bytes for the state hash. Vault
// commands digest the affected vault's aggregates; global commands digest
// the capability grants.
func (e *Engine) computeStateDigest(vaultID *string) []byte {
	if vaultID == nil {
		return e.digestGrants()
	}

	h, ok := e.vaults[*vaultID]
	if !ok {
		return nil
	}
	return e.digestVault(h)
}

func (e *Engine) digestVault(h *VaultHandle) []byte {
	now := e.clk.Now()
	period := e.clk.CurrentPeriod()
	cfg := h.Vault.Config()

	digest := make([]byte, 0, 512)
	digest = appendLenPrefixed(digest, cfg.ID)
	digest = appendInt(digest, h.Shares.TotalSupply())
	digest = appendInt(digest, h.Custody.BalanceOf(cfg.Account))

	// Admin-mutable parameters. Two replicas that diverge only in a fee or
	// window change must produce different hashes.
	digest = appendUint64LE(digest, uint64(cfg.RedeemFeePpm))
	digest = appendUint64LE(digest, uint64(cfg.RedeemOrderFeePpm))
	digest = appendUint64LE(digest, uint64(cfg.FillWindow))
	digest = appendUint64LE(digest, uint64(cfg.RedeemDelay))
	digest = appendInt(digest, cfg.MinOrderShares)
	digest = appendInt(digest, cfg.MaxDepositPerPeriod)
	digest = appendInt(digest, cfg.MaxWithdrawPerPeriod)

	if book := h.Vault.Book(); book != nil {
		digest = appendUint64LE(digest, book.NextID())
		digest = appendInt(digest, book.PendingShares())
		digest = appendInt(digest, book.PendingAssets())
		digest = appendInt(digest, book.AwaitingPayout())
	}

	if pool := h.Vault.Pool(); pool != nil {
		digest = appendInt(digest, pool.Size())
		digest = appendInt(digest, pool.WithdrawAllowance())
		digest = appendUint64LE(digest, uint64(pool.DailyYieldRatePpm()))
		digest = appendUint64LE(digest, uint64(pool.LastUpdate().UnixNano()))
		if dist := pool.Distribution(); dist != nil {
			digest = appendInt(digest, dist.Amount)
			digest = appendUint64LE(digest, uint64(dist.Period))
			digest = appendUint64LE(digest, uint64(dist.Start.UnixNano()))
		}
	}

	if table := h.Vault.Integrations(); table != nil {
		integrations := table.Snapshot()
		ids := make([]uuid.UUID, 0, len(integrations))
		for id := range integrations {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool {
			return ids[i].String() < ids[j].String()
		})
		for _, id := range ids {
			icfg := integrations[id]
			digest = appendLenPrefixed(digest, id.String())
			digest = append(digest, boolByte(icfg.CanSkipRedeemDelay), boolByte(icfg.WaiveRedeemFee))
		}
	}

	digest = appendUint64LE(digest, period)
	digest = appendInt(digest, h.Vault.DepositWindow().Used(period))
	digest = appendInt(digest, h.Vault.WithdrawWindow().Used(period))
	digest = appendUint64LE(digest, uint64(now.UnixNano()))

	return digest
}

func (e *Engine) digestGrants() []byte {
	snapshot := e.registry.Snapshot()

	callers := make([]uuid.UUID, 0, len(snapshot))
	for caller := range snapshot {
		callers = append(callers, caller)
	}
	sort.Slice(callers, func(i, j int) bool {
		return callers[i].String() < callers[j].String()
	})

	digest := make([]byte, 0, len(callers)*64)
	for _, caller := range callers {
		digest = appendLenPrefixed(digest, caller.String())
		caps := snapshot[caller]
		names := make([]string, 0, len(caps))
		for _, c := range caps {
			names = append(names, c.String())
		}
		sort.Strings(names)
		for _, name := range names {
			digest = appendLenPrefixed(digest, name)
		}
	}

	return digest
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func appendLenPrefixed(buf []byte, s string) []byte {
	buf = append(buf, byte(len(s)))
	return append(buf, []byte(s)...)
}

func appendInt(buf []byte, v sdkmath.Int) []byte {
	return appendLenPrefixed(buf, v.String())
}

func appendUint64LE(buf []byte, v uint64) []byte {
	return append(buf,
		byte(v),
		byte(v>>8),
		byte(v>>16),
		byte(v>>24),
		byte(v>>32),
		byte(v>>40),
		byte(v>>48),
		byte(v>>56),
	)
}

func (e *Engine) updateVaultGauges(h *VaultHandle) {
	id := h.Vault.ID()
	e.metrics.VaultShareSupply.WithLabelValues(id).Set(intGauge(h.Shares.TotalSupply()))
	e.metrics.VaultSharePrice.WithLabelValues(id).Set(intGauge(h.Vault.SharePriceE18()))
	e.metrics.VaultTotalAssets.WithLabelValues(id).Set(intGauge(h.Custody.BalanceOf(h.Vault.Config().Account)))
	if book := h.Vault.Book(); book != nil {
		e.metrics.VaultPendingOrders.WithLabelValues(id).Set(float64(book.PendingCount()))
		e.metrics.VaultPendingShares.WithLabelValues(id).Set(intGauge(book.PendingShares()))
		e.metrics.VaultAwaitingPayout.WithLabelValues(id).Set(intGauge(book.AwaitingPayout()))
	}
}

// intGauge converts an arbitrary-precision amount to a float64 gauge value.
// Precision loss is acceptable for monitoring.
func intGauge(v sdkmath.Int) float64 {
	f, _ := new(big.Float).SetInt(v.BigInt()).Float64()
	return f
}

// --- Snapshot Restore & Startup Methods ---

// VaultSnapshot holds one vault's serializable state.
type VaultSnapshot struct {
	Config          vault.Config
	CustodyBalances map[uuid.UUID]sdkmath.Int
	ShareBalances   map[uuid.UUID]sdkmath.Int

	Orders      []*vault.Order
	NextOrderID uint64

	DepositPeriod  uint64
	DepositUsed    sdkmath.Int
	WithdrawPeriod uint64
	WithdrawUsed   sdkmath.Int

	PoolSize       sdkmath.Int
	PoolAllowance  sdkmath.Int
	PoolRatePpm    int64
	PoolLastUpdate time.Time
	PoolDist       *vault.Distribution

	Integrations map[uuid.UUID]vault.IntegrationConfig
}

// SnapshotState holds the engine's serializable in-memory state for restore.
type SnapshotState struct {
	Sequence        int64
	StateHash       [32]byte
	PrevHash        [32]byte
	Vaults          map[string]*VaultSnapshot
	Grants          map[uuid.UUID][]auth.Capability
	SequenceState   map[string]int64
	IdempotencyKeys []string
}

// RestoreFromSnapshot restores the engine's in-memory state. On warm
// restart, load the latest snapshot then replay commands from the log.
func (e *Engine) RestoreFromSnapshot(snap *SnapshotState) error {
	e.sequence = snap.Sequence + 1 // Next sequence to assign
	e.hasher.SetPrevHash(snap.StateHash)

	for id, vs := range snap.Vaults {
		h, ok := e.vaults[id]
		if !ok {
			return fmt.Errorf("snapshot references unknown vault: %s", id)
		}

		if err := h.Vault.RestoreConfig(vs.Config); err != nil {
			return fmt.Errorf("vault %s config: %w", id, err)
		}

		h.Custody.Restore(vs.CustodyBalances)
		h.Shares.Restore(vs.ShareBalances)

		if book := h.Vault.Book(); book != nil {
			book.Restore(vs.Orders, vs.NextOrderID)
		}

		h.Vault.DepositWindow().Restore(vs.DepositPeriod, vs.DepositUsed)
		h.Vault.WithdrawWindow().Restore(vs.WithdrawPeriod, vs.WithdrawUsed)

		if pool := h.Vault.Pool(); pool != nil {
			pool.Restore(vs.PoolSize, vs.PoolAllowance, vs.PoolRatePpm, vs.PoolLastUpdate, vs.PoolDist)
		}

		h.Vault.Integrations().Restore(vs.Integrations)
	}

	for caller, caps := range snap.Grants {
		for _, c := range caps {
			e.registry.Grant(caller, c)
		}
	}

	for partition, nextSeq := range snap.SequenceState {
		e.sequenceValidator.SetExpectedSequence(partition, nextSeq)
	}

	return nil
}

// WarmLRU loads recent idempotency keys into the LRU cache, avoiding
// cold-path DB lookups for recently processed commands.
func (e *Engine) WarmLRU(keys []string) {
	e.idempotency.lru.WarmFromKeys(keys)
}

// GetSequence returns the current global sequence number.
func (e *Engine) GetSequence() int64 {
	return e.sequence
}

// GetStateHash returns the current state hash (chain tip).
func (e *Engine) GetStateHash() [32]byte {
	return e.hasher.GetPrevHash()
}

// CreateSnapshotState captures the current in-memory state for persistence.
func (e *Engine) CreateSnapshotState() *SnapshotState {
	vaults := make(map[string]*VaultSnapshot, len(e.vaults))

	for _, id := range e.vaultIDs {
		h := e.vaults[id]
		vs := &VaultSnapshot{
			Config:          h.Vault.Config(),
			CustodyBalances: h.Custody.Snapshot(),
			ShareBalances:   h.Shares.Snapshot(),
			Integrations:    h.Vault.Integrations().Snapshot(),
		}

		if book := h.Vault.Book(); book != nil {
			vs.Orders = book.Orders()
			vs.NextOrderID = book.NextID()
		}

		vs.DepositPeriod, vs.DepositUsed = h.Vault.DepositWindow().Snapshot()
		vs.WithdrawPeriod, vs.WithdrawUsed = h.Vault.WithdrawWindow().Snapshot()

		if pool := h.Vault.Pool(); pool != nil {
			vs.PoolSize = pool.Size()
			vs.PoolAllowance = pool.WithdrawAllowance()
			vs.PoolRatePpm = pool.DailyYieldRatePpm()
			vs.PoolLastUpdate = pool.LastUpdate()
			vs.PoolDist = pool.Distribution()
		}

		vaults[id] = vs
	}

	return &SnapshotState{
		Sequence:        e.sequence - 1, // Last processed sequence
		StateHash:       e.hasher.GetPrevHash(),
		Vaults:          vaults,
		Grants:          e.registry.Snapshot(),
		SequenceState:   e.sequenceValidator.GetAllPartitions(),
		IdempotencyKeys: e.idempotency.lru.GetAllKeys(),
	}
}
