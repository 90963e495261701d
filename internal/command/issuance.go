package command

import (
	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
)

type Deposit struct {
	Base
	Receiver uuid.UUID   `json:"receiver"`
	Assets   sdkmath.Int `json:"assets"`
}

func (c *Deposit) CommandType() CommandType { return CommandTypeDeposit }

type Mint struct {
	Base
	Receiver uuid.UUID   `json:"receiver"`
	Shares   sdkmath.Int `json:"shares"`
}

func (c *Mint) CommandType() CommandType { return CommandTypeMint }

type Withdraw struct {
	Base
	Receiver uuid.UUID   `json:"receiver"`
	Assets   sdkmath.Int `json:"assets"`
}

func (c *Withdraw) CommandType() CommandType { return CommandTypeWithdraw }

type Redeem struct {
	Base
	Receiver uuid.UUID   `json:"receiver"`
	Shares   sdkmath.Int `json:"shares"`
}

func (c *Redeem) CommandType() CommandType { return CommandTypeRedeem }

// CreditBalance and DebitBalance are the custody bridge: a credit records
// asset funds the external custodian confirmed received for an account, a
// debit records funds released back out. They are the only way balances
// enter or leave the engine's balance book.

type CreditBalance struct {
	Base
	Account uuid.UUID   `json:"account"`
	Amount  sdkmath.Int `json:"amount"`
}

func (c *CreditBalance) CommandType() CommandType { return CommandTypeCreditBalance }

type DebitBalance struct {
	Base
	Account uuid.UUID   `json:"account"`
	Amount  sdkmath.Int `json:"amount"`
}

func (c *DebitBalance) CommandType() CommandType { return CommandTypeDebitBalance }
