package command

import (
	"time"

	"github.com/google/uuid"
)

// CommandType discriminator for command payloads
type CommandType int32

const (
	CommandTypeUnknown CommandType = iota
	CommandTypeDeposit
	CommandTypeMint
	CommandTypeWithdraw
	CommandTypeRedeem
	CommandTypeCreateRedeemOrder
	CommandTypeFillRedeemOrder
	CommandTypeCancelRedeemOrder
	CommandTypeFinalizeRedeemOrder
	CommandTypeInitiateRedeem
	CommandTypeSetRedeemFee
	CommandTypeSetRedeemOrderFee
	CommandTypeSetFillWindow
	CommandTypeSetMaxDepositPerPeriod
	CommandTypeSetMaxWithdrawPerPeriod
	CommandTypeUpdatePool
	CommandTypeStartDistribution
	CommandTypeTerminateDistribution
	CommandTypeSetIntegrationConfig
	CommandTypeRescue
	CommandTypeGrantCapability
	CommandTypeRevokeCapability
	CommandTypeCreditBalance
	CommandTypeDebitBalance
)

// CommandEnvelope wraps every applied command in the log
type CommandEnvelope struct {
	// Global monotonic sequence assigned by core
	Sequence int64

	// Stable idempotency key from upstream
	IdempotencyKey string

	// Command type discriminator
	CommandType CommandType

	// Vault context (nullable for global commands such as capability grants)
	VaultID *string

	// Versioned input timestamp (NOT wall-clock)
	Timestamp time.Time

	// Rate-limit period the command executes in
	Period uint64

	// Upstream sequence for ordering validation
	SourceSequence int64

	// JSON-encoded command-specific data
	Payload []byte

	// SHA-256 of state AFTER applying this command
	StateHash [32]byte

	// Previous command's state hash (chain integrity)
	PrevHash [32]byte
}

// Command is the interface all command payloads must implement
type Command interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// CommandType returns the discriminator
	CommandType() CommandType

	// VaultID returns the vault context (nil for global commands)
	VaultID() *string

	// SourceSequence returns upstream ordering key
	SourceSequence() int64

	// OccurredAt returns the versioned input timestamp
	OccurredAt() time.Time

	// PeriodIndex returns the rate-limit period of the command
	PeriodIndex() uint64
}

func (ct CommandType) String() string {
	switch ct {
	case CommandTypeDeposit:
		return "Deposit"
	case CommandTypeMint:
		return "Mint"
	case CommandTypeWithdraw:
		return "Withdraw"
	case CommandTypeRedeem:
		return "Redeem"
	case CommandTypeCreateRedeemOrder:
		return "CreateRedeemOrder"
	case CommandTypeFillRedeemOrder:
		return "FillRedeemOrder"
	case CommandTypeCancelRedeemOrder:
		return "CancelRedeemOrder"
	case CommandTypeFinalizeRedeemOrder:
		return "FinalizeRedeemOrder"
	case CommandTypeInitiateRedeem:
		return "InitiateRedeem"
	case CommandTypeSetRedeemFee:
		return "SetRedeemFee"
	case CommandTypeSetRedeemOrderFee:
		return "SetRedeemOrderFee"
	case CommandTypeSetFillWindow:
		return "SetFillWindow"
	case CommandTypeSetMaxDepositPerPeriod:
		return "SetMaxDepositPerPeriod"
	case CommandTypeSetMaxWithdrawPerPeriod:
		return "SetMaxWithdrawPerPeriod"
	case CommandTypeUpdatePool:
		return "UpdatePool"
	case CommandTypeStartDistribution:
		return "StartDistribution"
	case CommandTypeTerminateDistribution:
		return "TerminateDistribution"
	case CommandTypeSetIntegrationConfig:
		return "SetIntegrationConfig"
	case CommandTypeRescue:
		return "Rescue"
	case CommandTypeGrantCapability:
		return "GrantCapability"
	case CommandTypeRevokeCapability:
		return "RevokeCapability"
	case CommandTypeCreditBalance:
		return "CreditBalance"
	case CommandTypeDebitBalance:
		return "DebitBalance"
	default:
		return "Unknown"
	}
}

// Base carries the fields shared by every command. Embedding it provides
// every Command method except the type discriminator.
type Base struct {
	CommandID uuid.UUID `json:"command_id"`
	Vault     string    `json:"vault_id,omitempty"`
	Caller    uuid.UUID `json:"caller"`
	Sequence  int64     `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	Period    uint64    `json:"period"`
}

func (b *Base) IdempotencyKey() string {
	return b.CommandID.String()
}

func (b *Base) VaultID() *string {
	if b.Vault == "" {
		return nil
	}
	return &b.Vault
}

func (b *Base) SourceSequence() int64 {
	return b.Sequence
}

func (b *Base) OccurredAt() time.Time {
	return b.Timestamp
}

func (b *Base) PeriodIndex() uint64 {
	return b.Period
}
