package ingestion

import (
	"VaultLedger/internal/command"
	"encoding/json"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
)

// ParseRawCommand converts a RawCommand (JSON bytes + command type string)
// into a typed command.Command. The ingestion shell validates, parses, and
// converts raw messages before sending to the deterministic core.
func ParseRawCommand(raw RawCommand, commandType string) (command.Command, error) {
	switch commandType {
	case "Deposit":
		return parseDeposit(raw.Data)
	case "Mint":
		return parseMint(raw.Data)
	case "Withdraw":
		return parseWithdraw(raw.Data)
	case "Redeem":
		return parseRedeem(raw.Data)
	case "CreditBalance":
		return parseCreditBalance(raw.Data)
	case "DebitBalance":
		return parseDebitBalance(raw.Data)
	case "CreateRedeemOrder":
		return parseCreateRedeemOrder(raw.Data)
	case "FillRedeemOrder":
		return parseFillRedeemOrder(raw.Data)
	case "CancelRedeemOrder":
		return parseCancelRedeemOrder(raw.Data)
	case "FinalizeRedeemOrder":
		return parseFinalizeRedeemOrder(raw.Data)
	case "InitiateRedeem":
		return parseInitiateRedeem(raw.Data)
	case "SetRedeemFee":
		return parseSetRedeemFee(raw.Data)
	case "SetRedeemOrderFee":
		return parseSetRedeemOrderFee(raw.Data)
	case "SetFillWindow":
		return parseSetFillWindow(raw.Data)
	case "SetMaxDepositPerPeriod":
		return parseSetMaxDepositPerPeriod(raw.Data)
	case "SetMaxWithdrawPerPeriod":
		return parseSetMaxWithdrawPerPeriod(raw.Data)
	case "UpdatePool":
		return parseUpdatePool(raw.Data)
	case "StartDistribution":
		return parseStartDistribution(raw.Data)
	case "TerminateDistribution":
		return parseTerminateDistribution(raw.Data)
	case "SetIntegrationConfig":
		return parseSetIntegrationConfig(raw.Data)
	case "Rescue":
		return parseRescue(raw.Data)
	case "GrantCapability":
		return parseGrantCapability(raw.Data)
	case "RevokeCapability":
		return parseRevokeCapability(raw.Data)
	default:
		return nil, fmt.Errorf("unknown command type: %s", commandType)
	}
}

// --- JSON wire formats ---
// These structs represent the JSON payloads received from NATS.
// Field names use snake_case to match upstream producers. Amounts travel
// as decimal strings; they exceed int64 range.

type baseJSON struct {
	CommandID   string `json:"command_id"`
	VaultID     string `json:"vault_id,omitempty"`
	CallerID    string `json:"caller_id"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
	Period      uint64 `json:"period"`
}

func parseBase(j baseJSON) (command.Base, error) {
	commandID, err := uuid.Parse(j.CommandID)
	if err != nil {
		return command.Base{}, fmt.Errorf("parse command_id: %w", err)
	}
	callerID, err := uuid.Parse(j.CallerID)
	if err != nil {
		return command.Base{}, fmt.Errorf("parse caller_id: %w", err)
	}
	return command.Base{
		CommandID: commandID,
		Vault:     j.VaultID,
		Caller:    callerID,
		Sequence:  j.Sequence,
		Timestamp: time.UnixMicro(j.TimestampUs),
		Period:    j.Period,
	}, nil
}

func parseAmount(field, s string) (sdkmath.Int, error) {
	v, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("parse %s: invalid amount %q", field, s)
	}
	return v, nil
}

type issuanceJSON struct {
	baseJSON
	Receiver string `json:"receiver"`
	Assets   string `json:"assets,omitempty"`
	Shares   string `json:"shares,omitempty"`
}

func (j issuanceJSON) receiverID() (uuid.UUID, error) {
	receiver, err := uuid.Parse(j.Receiver)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse receiver: %w", err)
	}
	return receiver, nil
}

func parseDeposit(data []byte) (*command.Deposit, error) {
	var j issuanceJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse Deposit: %w", err)
	}
	base, err := parseBase(j.baseJSON)
	if err != nil {
		return nil, err
	}
	receiver, err := j.receiverID()
	if err != nil {
		return nil, err
	}
	assets, err := parseAmount("assets", j.Assets)
	if err != nil {
		return nil, err
	}
	return &command.Deposit{Base: base, Receiver: receiver, Assets: assets}, nil
}

func parseMint(data []byte) (*command.Mint, error) {
	var j issuanceJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse Mint: %w", err)
	}
	base, err := parseBase(j.baseJSON)
	if err != nil {
		return nil, err
	}
	receiver, err := j.receiverID()
	if err != nil {
		return nil, err
	}
	shares, err := parseAmount("shares", j.Shares)
	if err != nil {
		return nil, err
	}
	return &command.Mint{Base: base, Receiver: receiver, Shares: shares}, nil
}

func parseWithdraw(data []byte) (*command.Withdraw, error) {
	var j issuanceJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse Withdraw: %w", err)
	}
	base, err := parseBase(j.baseJSON)
	if err != nil {
		return nil, err
	}
	receiver, err := j.receiverID()
	if err != nil {
		return nil, err
	}
	assets, err := parseAmount("assets", j.Assets)
	if err != nil {
		return nil, err
	}
	return &command.Withdraw{Base: base, Receiver: receiver, Assets: assets}, nil
}

func parseRedeem(data []byte) (*command.Redeem, error) {
	var j issuanceJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse Redeem: %w", err)
	}
	base, err := parseBase(j.baseJSON)
	if err != nil {
		return nil, err
	}
	receiver, err := j.receiverID()
	if err != nil {
		return nil, err
	}
	shares, err := parseAmount("shares", j.Shares)
	if err != nil {
		return nil, err
	}
	return &command.Redeem{Base: base, Receiver: receiver, Shares: shares}, nil
}

type balanceJSON struct {
	baseJSON
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

func (j balanceJSON) fields() (uuid.UUID, sdkmath.Int, error) {
	account, err := uuid.Parse(j.Account)
	if err != nil {
		return uuid.Nil, sdkmath.Int{}, fmt.Errorf("parse account: %w", err)
	}
	amount, err := parseAmount("amount", j.Amount)
	if err != nil {
		return uuid.Nil, sdkmath.Int{}, err
	}
	return account, amount, nil
}

func parseCreditBalance(data []byte) (*command.CreditBalance, error) {
	var j balanceJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse CreditBalance: %w", err)
	}
	base, err := parseBase(j.baseJSON)
	if err != nil {
		return nil, err
	}
	account, amount, err := j.fields()
	if err != nil {
		return nil, err
	}
	return &command.CreditBalance{Base: base, Account: account, Amount: amount}, nil
}

func parseDebitBalance(data []byte) (*command.DebitBalance, error) {
	var j balanceJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse DebitBalance: %w", err)
	}
	base, err := parseBase(j.baseJSON)
	if err != nil {
		return nil, err
	}
	account, amount, err := j.fields()
	if err != nil {
		return nil, err
	}
	return &command.DebitBalance{Base: base, Account: account, Amount: amount}, nil
}

type createOrderJSON struct {
	baseJSON
	Receiver   string `json:"receiver"`
	Controller string `json:"controller,omitempty"`
	Shares     string `json:"shares"`
}

func parseCreateRedeemOrder(data []byte) (*command.CreateRedeemOrder, error) {
	var j createOrderJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse CreateRedeemOrder: %w", err)
	}
	base, err := parseBase(j.baseJSON)
	if err != nil {
		return nil, err
	}
	receiver, err := uuid.Parse(j.Receiver)
	if err != nil {
		return nil, fmt.Errorf("parse receiver: %w", err)
	}
	controller := uuid.Nil
	if j.Controller != "" {
		controller, err = uuid.Parse(j.Controller)
		if err != nil {
			return nil, fmt.Errorf("parse controller: %w", err)
		}
	}
	shares, err := parseAmount("shares", j.Shares)
	if err != nil {
		return nil, err
	}
	return &command.CreateRedeemOrder{Base: base, Receiver: receiver, Controller: controller, Shares: shares}, nil
}

type orderRefJSON struct {
	baseJSON
	OrderID uint64 `json:"order_id"`
}

func parseFillRedeemOrder(data []byte) (*command.FillRedeemOrder, error) {
	var j orderRefJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse FillRedeemOrder: %w", err)
	}
	base, err := parseBase(j.baseJSON)
	if err != nil {
		return nil, err
	}
	return &command.FillRedeemOrder{Base: base, OrderID: j.OrderID}, nil
}

func parseCancelRedeemOrder(data []byte) (*command.CancelRedeemOrder, error) {
	var j orderRefJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse CancelRedeemOrder: %w", err)
	}
	base, err := parseBase(j.baseJSON)
	if err != nil {
		return nil, err
	}
	return &command.CancelRedeemOrder{Base: base, OrderID: j.OrderID}, nil
}

func parseFinalizeRedeemOrder(data []byte) (*command.FinalizeRedeemOrder, error) {
	var j orderRefJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse FinalizeRedeemOrder: %w", err)
	}
	base, err := parseBase(j.baseJSON)
	if err != nil {
		return nil, err
	}
	return &command.FinalizeRedeemOrder{Base: base, OrderID: j.OrderID}, nil
}

func parseInitiateRedeem(data []byte) (*command.InitiateRedeem, error) {
	var j issuanceJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse InitiateRedeem: %w", err)
	}
	base, err := parseBase(j.baseJSON)
	if err != nil {
		return nil, err
	}
	receiver, err := j.receiverID()
	if err != nil {
		return nil, err
	}
	shares, err := parseAmount("shares", j.Shares)
	if err != nil {
		return nil, err
	}
	return &command.InitiateRedeem{Base: base, Receiver: receiver, Shares: shares}, nil
}

type feeJSON struct {
	baseJSON
	FeePpm int64 `json:"fee_ppm"`
}

func parseSetRedeemFee(data []byte) (*command.SetRedeemFee, error) {
	var j feeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse SetRedeemFee: %w", err)
	}
	base, err := parseBase(j.baseJSON)
	if err != nil {
		return nil, err
	}
	return &command.SetRedeemFee{Base: base, FeePpm: j.FeePpm}, nil
}

func parseSetRedeemOrderFee(data []byte) (*command.SetRedeemOrderFee, error) {
	var j feeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse SetRedeemOrderFee: %w", err)
	}
	base, err := parseBase(j.baseJSON)
	if err != nil {
		return nil, err
	}
	return &command.SetRedeemOrderFee{Base: base, FeePpm: j.FeePpm}, nil
}

type windowJSON struct {
	baseJSON
	WindowSeconds int64 `json:"window_seconds"`
}

func parseSetFillWindow(data []byte) (*command.SetFillWindow, error) {
	var j windowJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse SetFillWindow: %w", err)
	}
	base, err := parseBase(j.baseJSON)
	if err != nil {
		return nil, err
	}
	return &command.SetFillWindow{Base: base, Window: time.Duration(j.WindowSeconds) * time.Second}, nil
}

type capJSON struct {
	baseJSON
	Cap string `json:"cap"`
}

func parseSetMaxDepositPerPeriod(data []byte) (*command.SetMaxDepositPerPeriod, error) {
	var j capJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse SetMaxDepositPerPeriod: %w", err)
	}
	base, err := parseBase(j.baseJSON)
	if err != nil {
		return nil, err
	}
	cap, err := parseAmount("cap", j.Cap)
	if err != nil {
		return nil, err
	}
	return &command.SetMaxDepositPerPeriod{Base: base, Cap: cap}, nil
}

func parseSetMaxWithdrawPerPeriod(data []byte) (*command.SetMaxWithdrawPerPeriod, error) {
	var j capJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse SetMaxWithdrawPerPeriod: %w", err)
	}
	base, err := parseBase(j.baseJSON)
	if err != nil {
		return nil, err
	}
	cap, err := parseAmount("cap", j.Cap)
	if err != nil {
		return nil, err
	}
	return &command.SetMaxWithdrawPerPeriod{Base: base, Cap: cap}, nil
}

type poolUpdateJSON struct {
	baseJSON
	Size              string `json:"size"`
	WithdrawAllowance string `json:"withdraw_allowance"`
	DailyYieldRatePpm int64  `json:"daily_yield_rate_ppm"`
}

func parseUpdatePool(data []byte) (*command.UpdatePool, error) {
	var j poolUpdateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse UpdatePool: %w", err)
	}
	base, err := parseBase(j.baseJSON)
	if err != nil {
		return nil, err
	}
	size, err := parseAmount("size", j.Size)
	if err != nil {
		return nil, err
	}
	allowance, err := parseAmount("withdraw_allowance", j.WithdrawAllowance)
	if err != nil {
		return nil, err
	}
	return &command.UpdatePool{
		Base:              base,
		Size:              size,
		WithdrawAllowance: allowance,
		DailyYieldRatePpm: j.DailyYieldRatePpm,
	}, nil
}

type distributionJSON struct {
	baseJSON
	Amount        string `json:"amount"`
	PeriodSeconds int64  `json:"period_seconds"`
}

func parseStartDistribution(data []byte) (*command.StartDistribution, error) {
	var j distributionJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse StartDistribution: %w", err)
	}
	base, err := parseBase(j.baseJSON)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", j.Amount)
	if err != nil {
		return nil, err
	}
	return &command.StartDistribution{
		Base:   base,
		Amount: amount,
		Period: time.Duration(j.PeriodSeconds) * time.Second,
	}, nil
}

func parseTerminateDistribution(data []byte) (*command.TerminateDistribution, error) {
	var j baseJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse TerminateDistribution: %w", err)
	}
	base, err := parseBase(j)
	if err != nil {
		return nil, err
	}
	return &command.TerminateDistribution{Base: base}, nil
}

type integrationJSON struct {
	baseJSON
	Integration        string `json:"integration"`
	CanSkipRedeemDelay bool   `json:"can_skip_redeem_delay"`
	WaiveRedeemFee     bool   `json:"waive_redeem_fee"`
}

func parseSetIntegrationConfig(data []byte) (*command.SetIntegrationConfig, error) {
	var j integrationJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse SetIntegrationConfig: %w", err)
	}
	base, err := parseBase(j.baseJSON)
	if err != nil {
		return nil, err
	}
	integration, err := uuid.Parse(j.Integration)
	if err != nil {
		return nil, fmt.Errorf("parse integration: %w", err)
	}
	return &command.SetIntegrationConfig{
		Base:               base,
		Integration:        integration,
		CanSkipRedeemDelay: j.CanSkipRedeemDelay,
		WaiveRedeemFee:     j.WaiveRedeemFee,
	}, nil
}

type rescueJSON struct {
	baseJSON
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func parseRescue(data []byte) (*command.Rescue, error) {
	var j rescueJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse Rescue: %w", err)
	}
	base, err := parseBase(j.baseJSON)
	if err != nil {
		return nil, err
	}
	to, err := uuid.Parse(j.To)
	if err != nil {
		return nil, fmt.Errorf("parse to: %w", err)
	}
	amount, err := parseAmount("amount", j.Amount)
	if err != nil {
		return nil, err
	}
	return &command.Rescue{Base: base, To: to, Amount: amount}, nil
}

type grantJSON struct {
	baseJSON
	Grantee    string `json:"grantee"`
	Capability string `json:"capability"`
}

func parseGrantCapability(data []byte) (*command.GrantCapability, error) {
	var j grantJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse GrantCapability: %w", err)
	}
	base, err := parseBase(j.baseJSON)
	if err != nil {
		return nil, err
	}
	grantee, err := uuid.Parse(j.Grantee)
	if err != nil {
		return nil, fmt.Errorf("parse grantee: %w", err)
	}
	return &command.GrantCapability{Base: base, Grantee: grantee, Capability: j.Capability}, nil
}

func parseRevokeCapability(data []byte) (*command.RevokeCapability, error) {
	var j grantJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse RevokeCapability: %w", err)
	}
	base, err := parseBase(j.baseJSON)
	if err != nil {
		return nil, err
	}
	grantee, err := uuid.Parse(j.Grantee)
	if err != nil {
		return nil, fmt.Errorf("parse grantee: %w", err)
	}
	return &command.RevokeCapability{Base: base, Grantee: grantee, Capability: j.Capability}, nil
}
