package command

import (
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
)

type SetRedeemFee struct {
	Base
	FeePpm int64 `json:"fee_ppm"`
}

func (c *SetRedeemFee) CommandType() CommandType { return CommandTypeSetRedeemFee }

type SetRedeemOrderFee struct {
	Base
	FeePpm int64 `json:"fee_ppm"`
}

func (c *SetRedeemOrderFee) CommandType() CommandType { return CommandTypeSetRedeemOrderFee }

type SetFillWindow struct {
	Base
	Window time.Duration `json:"window"`
}

func (c *SetFillWindow) CommandType() CommandType { return CommandTypeSetFillWindow }

type SetMaxDepositPerPeriod struct {
	Base
	Cap sdkmath.Int `json:"cap"`
}

func (c *SetMaxDepositPerPeriod) CommandType() CommandType { return CommandTypeSetMaxDepositPerPeriod }

type SetMaxWithdrawPerPeriod struct {
	Base
	Cap sdkmath.Int `json:"cap"`
}

func (c *SetMaxWithdrawPerPeriod) CommandType() CommandType { return CommandTypeSetMaxWithdrawPerPeriod }

type SetIntegrationConfig struct {
	Base
	Integration        uuid.UUID `json:"integration"`
	CanSkipRedeemDelay bool      `json:"can_skip_redeem_delay"`
	WaiveRedeemFee     bool      `json:"waive_redeem_fee"`
}

func (c *SetIntegrationConfig) CommandType() CommandType { return CommandTypeSetIntegrationConfig }

type Rescue struct {
	Base
	To     uuid.UUID   `json:"to"`
	Amount sdkmath.Int `json:"amount"`
}

func (c *Rescue) CommandType() CommandType { return CommandTypeRescue }

// Capability grants are global commands: Vault is empty and VaultID is nil.

type GrantCapability struct {
	Base
	Grantee    uuid.UUID `json:"grantee"`
	Capability string    `json:"capability"`
}

func (c *GrantCapability) CommandType() CommandType { return CommandTypeGrantCapability }

type RevokeCapability struct {
	Base
	Grantee    uuid.UUID `json:"grantee"`
	Capability string    `json:"capability"`
}

func (c *RevokeCapability) CommandType() CommandType { return CommandTypeRevokeCapability }
