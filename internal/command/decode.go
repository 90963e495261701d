package command

import (
	"encoding/json"
	"fmt"
)

// ParseCommandType maps a stored discriminator string back to its enum.
func ParseCommandType(s string) (CommandType, error) {
	for ct := CommandTypeDeposit; ct <= CommandTypeDebitBalance; ct++ {
		if ct.String() == s {
			return ct, nil
		}
	}
	return CommandTypeUnknown, fmt.Errorf("unknown command type: %q", s)
}

// Decode unmarshals a stored envelope payload back into its typed command.
// Used during replay; payloads are written by the engine with json.Marshal,
// so Decode is its exact inverse.
func Decode(ct CommandType, payload []byte) (Command, error) {
	var cmd Command
	switch ct {
	case CommandTypeDeposit:
		cmd = &Deposit{}
	case CommandTypeMint:
		cmd = &Mint{}
	case CommandTypeWithdraw:
		cmd = &Withdraw{}
	case CommandTypeRedeem:
		cmd = &Redeem{}
	case CommandTypeCreateRedeemOrder:
		cmd = &CreateRedeemOrder{}
	case CommandTypeFillRedeemOrder:
		cmd = &FillRedeemOrder{}
	case CommandTypeCancelRedeemOrder:
		cmd = &CancelRedeemOrder{}
	case CommandTypeFinalizeRedeemOrder:
		cmd = &FinalizeRedeemOrder{}
	case CommandTypeInitiateRedeem:
		cmd = &InitiateRedeem{}
	case CommandTypeSetRedeemFee:
		cmd = &SetRedeemFee{}
	case CommandTypeSetRedeemOrderFee:
		cmd = &SetRedeemOrderFee{}
	case CommandTypeSetFillWindow:
		cmd = &SetFillWindow{}
	case CommandTypeSetMaxDepositPerPeriod:
		cmd = &SetMaxDepositPerPeriod{}
	case CommandTypeSetMaxWithdrawPerPeriod:
		cmd = &SetMaxWithdrawPerPeriod{}
	case CommandTypeUpdatePool:
		cmd = &UpdatePool{}
	case CommandTypeStartDistribution:
		cmd = &StartDistribution{}
	case CommandTypeTerminateDistribution:
		cmd = &TerminateDistribution{}
	case CommandTypeSetIntegrationConfig:
		cmd = &SetIntegrationConfig{}
	case CommandTypeRescue:
		cmd = &Rescue{}
	case CommandTypeGrantCapability:
		cmd = &GrantCapability{}
	case CommandTypeRevokeCapability:
		cmd = &RevokeCapability{}
	case CommandTypeCreditBalance:
		cmd = &CreditBalance{}
	case CommandTypeDebitBalance:
		cmd = &DebitBalance{}
	default:
		return nil, fmt.Errorf("undecodable command type: %v", ct)
	}

	if err := json.Unmarshal(payload, cmd); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", ct, err)
	}
	return cmd, nil
}
