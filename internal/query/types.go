package query

import "time"

// VaultStateResponse represents a vault's aggregates for API queries.
// Amounts are decimal strings; they exceed int64 range.
type VaultStateResponse struct {
	VaultID string `json:"vault_id"`

	ShareSupply    string `json:"share_supply"`
	TotalAssets    string `json:"total_assets"`
	SharePriceE18  string `json:"share_price_e18"` // assets per share, 1e18 fixed-point
	PendingShares  string `json:"pending_shares"`
	AwaitingPayout string `json:"awaiting_payout"`
	PendingOrders  int    `json:"pending_orders"`
	Period         int64  `json:"period"`

	LastSequence int64 `json:"last_sequence"`
	AsOfSequence int64 `json:"as_of_sequence"`
}

// OrderResponse represents a redemption order for API queries.
type OrderResponse struct {
	VaultID    string    `json:"vault_id"`
	OrderID    int64     `json:"order_id"`
	Owner      string    `json:"owner"`
	Receiver   string    `json:"receiver"`
	Controller string    `json:"controller"`
	Shares     string    `json:"shares"`
	Assets     string    `json:"assets"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	DueTime    time.Time `json:"due_time"`

	AsOfSequence int64 `json:"as_of_sequence"`
}

// CommandHistoryEntry represents an applied command for API queries.
type CommandHistoryEntry struct {
	VaultID        string    `json:"vault_id"`
	Sequence       int64     `json:"sequence"`
	CommandType    string    `json:"command_type"`
	IdempotencyKey string    `json:"idempotency_key"`
	Payload        []byte    `json:"payload"`
	Timestamp      time.Time `json:"timestamp"`
	Period         int64     `json:"period"`
	SourceSequence int64     `json:"source_sequence"`
}

// IntegrityReport is the result of an integrity verification check.
type IntegrityReport struct {
	IsHealthy       bool    `json:"is_healthy"`
	HashChainBreaks []int64 `json:"hash_chain_breaks,omitempty"`
	SequenceGaps    []int64 `json:"sequence_gaps,omitempty"`
}
