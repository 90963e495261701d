package vault

import (
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
)

// OrderStatus transitions are one-way:
// Pending -> Filled or Cancelled; Filled -> Finalized (two-step vaults only).
type OrderStatus uint8

const (
	OrderPending OrderStatus = iota
	OrderFilled
	OrderCancelled
	OrderFinalized
)

func (s OrderStatus) String() string {
	switch s {
	case OrderPending:
		return "pending"
	case OrderFilled:
		return "filled"
	case OrderCancelled:
		return "cancelled"
	case OrderFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// Order is a delayed redemption request. The price is locked at creation:
// Assets is the payout computed from the conversion rate and signed order fee
// at create time, not at fill time. Orders are never deleted; terminal states
// are permanent markers.
type Order struct {
	ID         uint64
	Owner      uuid.UUID
	Receiver   uuid.UUID
	Controller uuid.UUID // optional secondary authorizer, may be uuid.Nil
	Shares     sdkmath.Int
	Assets     sdkmath.Int
	CreatedAt  time.Time
	DueTime    time.Time
	Status     OrderStatus

	// AwaitingPayout is set on two-step fills whose asset leg is still
	// earmarked for Finalize. One-step fills pay out at fill time and never
	// set it. Persisted so a snapshot restore rebuilds the earmark aggregate
	// from the orders themselves, not from the Filled status alone.
	AwaitingPayout bool
}

// MayCancel reports whether caller is the owner or the designated controller.
func (o *Order) MayCancel(caller uuid.UUID) bool {
	if caller == o.Owner {
		return true
	}
	return o.Controller != uuid.Nil && caller == o.Controller
}
