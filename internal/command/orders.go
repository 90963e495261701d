package command

import (
	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
)

type CreateRedeemOrder struct {
	Base
	Receiver   uuid.UUID   `json:"receiver"`
	Controller uuid.UUID   `json:"controller,omitempty"`
	Shares     sdkmath.Int `json:"shares"`
}

func (c *CreateRedeemOrder) CommandType() CommandType { return CommandTypeCreateRedeemOrder }

type FillRedeemOrder struct {
	Base
	OrderID uint64 `json:"order_id"`
}

func (c *FillRedeemOrder) CommandType() CommandType { return CommandTypeFillRedeemOrder }

type CancelRedeemOrder struct {
	Base
	OrderID uint64 `json:"order_id"`
}

func (c *CancelRedeemOrder) CommandType() CommandType { return CommandTypeCancelRedeemOrder }

type FinalizeRedeemOrder struct {
	Base
	OrderID uint64 `json:"order_id"`
}

func (c *FinalizeRedeemOrder) CommandType() CommandType { return CommandTypeFinalizeRedeemOrder }

// InitiateRedeem is the two-step entry point: create an order and fill it
// from the vault's own liquidity in one command.
type InitiateRedeem struct {
	Base
	Receiver uuid.UUID   `json:"receiver"`
	Shares   sdkmath.Int `json:"shares"`
}

func (c *InitiateRedeem) CommandType() CommandType { return CommandTypeInitiateRedeem }
