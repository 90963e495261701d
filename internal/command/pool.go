package command

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

type UpdatePool struct {
	Base
	Size              sdkmath.Int `json:"size"`
	WithdrawAllowance sdkmath.Int `json:"withdraw_allowance"`
	DailyYieldRatePpm int64       `json:"daily_yield_rate_ppm"`
}

func (c *UpdatePool) CommandType() CommandType { return CommandTypeUpdatePool }

type StartDistribution struct {
	Base
	Amount sdkmath.Int   `json:"amount"`
	Period time.Duration `json:"period"`
}

func (c *StartDistribution) CommandType() CommandType { return CommandTypeStartDistribution }

type TerminateDistribution struct {
	Base
}

func (c *TerminateDistribution) CommandType() CommandType { return CommandTypeTerminateDistribution }
