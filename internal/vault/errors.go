package vault

import "errors"

// Every rejection aborts the whole operation with no partial state change and
// carries the compared values. Callers recover by changing input or waiting;
// there is no fatal error path here.
var (
	// Capacity exceeded: the request is above the computed maximum.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// Invalid input: null receiver, unknown or wrong-status order, parameter
	// out of bounds.
	ErrZeroReceiver     = errors.New("receiver is the null identity")
	ErrOrderNotFound    = errors.New("order not found")
	ErrOrderNotPending  = errors.New("order not pending")
	ErrOrderNotFilled   = errors.New("order not filled")
	ErrBelowMinimum     = errors.New("below minimum order size")
	ErrParamOutOfBounds = errors.New("parameter out of bounds")

	// Unauthorized: caller lacks the capability, or is neither the order's
	// owner nor its controller.
	ErrUnauthorized = errors.New("unauthorized")

	// Not due yet: cancel or finalize before the window elapsed.
	ErrNotDue = errors.New("not due yet")

	// Invariant protection: the operation would touch funds earmarked for
	// pending orders or filled orders awaiting payout.
	ErrLiquidityProtected = errors.New("liquidity protected")

	// Pool / distribution state conflicts.
	ErrDistributionActive = errors.New("distribution already active")
	ErrNoDistribution     = errors.New("no active distribution")

	// Feature not enabled for this vault variant.
	ErrFeatureDisabled = errors.New("feature disabled")
)
