package vault

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
)

// OrderBook owns the pending-order ledger and its aggregates. It is a pure
// state machine: authorization and custody movements belong to the Vault.
//
// Aggregates are maintained incrementally and must always reconcile with the
// order set; CheckPendingInvariant recomputes them from scratch and the core
// treats a mismatch as fatal.
type OrderBook struct {
	nextID uint64
	orders map[uint64]*Order

	// Membership sets. An order id is in pending iff its status is Pending;
	// in awaiting iff it is Filled but has not yet released funds.
	pending  map[uint64]struct{}
	awaiting map[uint64]struct{}

	pendingShares  sdkmath.Int
	pendingAssets  sdkmath.Int
	awaitingPayout sdkmath.Int
}

func NewOrderBook() *OrderBook {
	return &OrderBook{
		orders:         make(map[uint64]*Order),
		pending:        make(map[uint64]struct{}),
		awaiting:       make(map[uint64]struct{}),
		pendingShares:  sdkmath.ZeroInt(),
		pendingAssets:  sdkmath.ZeroInt(),
		awaitingPayout: sdkmath.ZeroInt(),
	}
}

// Create registers a new pending order. Ids are assigned by a strictly
// increasing counter starting at 0 and are never reused, even across cancels.
func (b *OrderBook) Create(owner, receiver, controller uuid.UUID, shares, assets sdkmath.Int, createdAt, dueTime time.Time) *Order {
	o := &Order{
		ID:         b.nextID,
		Owner:      owner,
		Receiver:   receiver,
		Controller: controller,
		Shares:     shares,
		Assets:     assets,
		CreatedAt:  createdAt,
		DueTime:    dueTime,
		Status:     OrderPending,
	}
	b.nextID++
	b.orders[o.ID] = o
	b.pending[o.ID] = struct{}{}
	b.pendingShares = b.pendingShares.Add(shares)
	b.pendingAssets = b.pendingAssets.Add(assets)
	return o
}

// Get returns the order or ErrOrderNotFound.
func (b *OrderBook) Get(id uint64) (*Order, error) {
	o, ok := b.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: id=%d", ErrOrderNotFound, id)
	}
	return o, nil
}

// Fill transitions Pending -> Filled. Fill is never time-barred: it is
// allowed past the due time. With earmark set the order's assets are added
// to the awaiting-payout aggregate until Finalize releases them (two-step
// vaults); without it the payout happened at fill time.
func (b *OrderBook) Fill(id uint64, earmark bool) (*Order, error) {
	o, err := b.Get(id)
	if err != nil {
		return nil, err
	}
	if o.Status != OrderPending {
		return nil, fmt.Errorf("%w: id=%d, status=%s", ErrOrderNotPending, id, o.Status)
	}

	o.Status = OrderFilled
	delete(b.pending, id)
	b.pendingShares = b.pendingShares.Sub(o.Shares)
	b.pendingAssets = b.pendingAssets.Sub(o.Assets)

	if earmark {
		o.AwaitingPayout = true
		b.awaiting[id] = struct{}{}
		b.awaitingPayout = b.awaitingPayout.Add(o.Assets)
	}
	return o, nil
}

// Cancel transitions Pending -> Cancelled. Caller authorization and the
// due-time rule are enforced by the Vault.
func (b *OrderBook) Cancel(id uint64) (*Order, error) {
	o, err := b.Get(id)
	if err != nil {
		return nil, err
	}
	if o.Status != OrderPending {
		return nil, fmt.Errorf("%w: id=%d, status=%s", ErrOrderNotPending, id, o.Status)
	}

	o.Status = OrderCancelled
	delete(b.pending, id)
	b.pendingShares = b.pendingShares.Sub(o.Shares)
	b.pendingAssets = b.pendingAssets.Sub(o.Assets)
	return o, nil
}

// Finalize transitions Filled -> Finalized once the due time has passed,
// releasing the earmarked assets. Succeeds exactly once per order.
func (b *OrderBook) Finalize(id uint64, now time.Time) (*Order, error) {
	o, err := b.Get(id)
	if err != nil {
		return nil, err
	}
	if _, ok := b.awaiting[id]; !ok {
		return nil, fmt.Errorf("%w: id=%d, status=%s", ErrOrderNotFilled, id, o.Status)
	}
	if now.Before(o.DueTime) {
		return nil, fmt.Errorf("%w: now=%s, due=%s", ErrNotDue,
			now.UTC().Format(time.RFC3339), o.DueTime.UTC().Format(time.RFC3339))
	}

	o.Status = OrderFinalized
	o.AwaitingPayout = false
	delete(b.awaiting, id)
	b.awaitingPayout = b.awaitingPayout.Sub(o.Assets)
	return o, nil
}

func (b *OrderBook) NextID() uint64 { return b.nextID }

func (b *OrderBook) PendingCount() int { return len(b.pending) }

// PendingShares is the aggregate share liability of all Pending orders.
func (b *OrderBook) PendingShares() sdkmath.Int { return b.pendingShares }

// PendingAssets is the aggregate asset liability of all Pending orders.
func (b *OrderBook) PendingAssets() sdkmath.Int { return b.pendingAssets }

// AwaitingPayout is the asset total earmarked for Filled orders that have
// not finalized. This liquidity is excluded from the instant-withdraw buffer.
func (b *OrderBook) AwaitingPayout() sdkmath.Int { return b.awaitingPayout }

// Orders returns all orders, terminal ones included, for snapshots and
// projections.
func (b *OrderBook) Orders() []*Order {
	out := make([]*Order, 0, len(b.orders))
	for _, o := range b.orders {
		out = append(out, o)
	}
	return out
}

// Restore rebuilds the book from persisted orders. Aggregates and membership
// sets are recomputed, not trusted from the snapshot.
func (b *OrderBook) Restore(orders []*Order, nextID uint64) {
	b.orders = make(map[uint64]*Order, len(orders))
	b.pending = make(map[uint64]struct{})
	b.awaiting = make(map[uint64]struct{})
	b.pendingShares = sdkmath.ZeroInt()
	b.pendingAssets = sdkmath.ZeroInt()
	b.awaitingPayout = sdkmath.ZeroInt()
	b.nextID = nextID

	for _, o := range orders {
		b.orders[o.ID] = o
		switch o.Status {
		case OrderPending:
			b.pending[o.ID] = struct{}{}
			b.pendingShares = b.pendingShares.Add(o.Shares)
			b.pendingAssets = b.pendingAssets.Add(o.Assets)
		case OrderFilled:
			// Only two-step fills carry an unreleased asset leg; one-step
			// fills paid out at fill time.
			if o.AwaitingPayout {
				b.awaiting[o.ID] = struct{}{}
				b.awaitingPayout = b.awaitingPayout.Add(o.Assets)
			}
		}
		if o.ID >= b.nextID {
			b.nextID = o.ID + 1
		}
	}
}

// CheckPendingInvariant recomputes the aggregates from the order set and
// compares them to the tracked values.
func (b *OrderBook) CheckPendingInvariant() error {
	shares := sdkmath.ZeroInt()
	assets := sdkmath.ZeroInt()
	payout := sdkmath.ZeroInt()
	pendingCount := 0

	for id, o := range b.orders {
		_, inPending := b.pending[id]
		if (o.Status == OrderPending) != inPending {
			return fmt.Errorf("order %d: status %s disagrees with pending-set membership %v",
				id, o.Status, inPending)
		}
		_, inAwaiting := b.awaiting[id]
		if o.AwaitingPayout != inAwaiting {
			return fmt.Errorf("order %d: earmark flag %v disagrees with awaiting-set membership %v",
				id, o.AwaitingPayout, inAwaiting)
		}
		switch o.Status {
		case OrderPending:
			shares = shares.Add(o.Shares)
			assets = assets.Add(o.Assets)
			pendingCount++
		case OrderFilled:
			if o.AwaitingPayout {
				payout = payout.Add(o.Assets)
			}
		}
	}

	if !shares.Equal(b.pendingShares) || !assets.Equal(b.pendingAssets) {
		return fmt.Errorf("pending liability mismatch: tracked shares=%s assets=%s, actual shares=%s assets=%s",
			b.pendingShares, b.pendingAssets, shares, assets)
	}
	if !payout.Equal(b.awaitingPayout) {
		return fmt.Errorf("awaiting payout mismatch: tracked=%s, actual=%s", b.awaitingPayout, payout)
	}
	if pendingCount != len(b.pending) {
		return fmt.Errorf("pending set size mismatch: set=%d, orders=%d", len(b.pending), pendingCount)
	}
	return nil
}
