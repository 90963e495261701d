package query

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// QueryService provides read-only access to projection tables.
// Queries are served over NATS request-reply and HTTP/JSON, reading from
// PostgreSQL projection tables. All responses include as_of_sequence for
// freshness semantics.
type QueryService struct {
	db *sql.DB
}

func NewQueryService(db *sql.DB) *QueryService {
	return &QueryService{db: db}
}

// GetVaultState returns a vault's current aggregates: share supply, custody
// balance, share price, and pending redemption totals.
func (qs *QueryService) GetVaultState(ctx context.Context, vaultID string) (*VaultStateResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	resp := &VaultStateResponse{VaultID: vaultID, AsOfSequence: asOfSeq}
	err = qs.db.QueryRowContext(ctx, `
		SELECT share_supply, total_assets, share_price_e18, pending_shares,
		       awaiting_payout, pending_orders, period, last_sequence
		FROM projections.vault_state
		WHERE vault_id = $1
	`, vaultID).Scan(
		&resp.ShareSupply, &resp.TotalAssets, &resp.SharePriceE18,
		&resp.PendingShares, &resp.AwaitingPayout, &resp.PendingOrders,
		&resp.Period, &resp.LastSequence,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("unknown vault: %s", vaultID)
	}
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// GetOrder returns one redemption order.
func (qs *QueryService) GetOrder(ctx context.Context, vaultID string, orderID int64) (*OrderResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	resp := &OrderResponse{VaultID: vaultID, AsOfSequence: asOfSeq}
	err = qs.db.QueryRowContext(ctx, `
		SELECT order_id, owner, receiver, controller, shares, assets, status, created_at, due_time
		FROM projections.orders
		WHERE vault_id = $1 AND order_id = $2
	`, vaultID, orderID).Scan(
		&resp.OrderID, &resp.Owner, &resp.Receiver, &resp.Controller,
		&resp.Shares, &resp.Assets, &resp.Status, &resp.CreatedAt, &resp.DueTime,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("unknown order: %s/%d", vaultID, orderID)
	}
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// GetOrders returns a vault's orders with optional owner and status filters.
// Supports cursor-based pagination via afterOrderID.
func (qs *QueryService) GetOrders(
	ctx context.Context,
	vaultID string,
	owner *uuid.UUID,
	status *string,
	limit int,
	afterOrderID *int64,
) ([]OrderResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT order_id, owner, receiver, controller, shares, assets, status, created_at, due_time
		FROM projections.orders
		WHERE vault_id = $1
	`
	args := []interface{}{vaultID}
	argIdx := 2

	if owner != nil {
		query += fmt.Sprintf(" AND owner = $%d", argIdx)
		args = append(args, owner.String())
		argIdx++
	}

	if status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, *status)
		argIdx++
	}

	if afterOrderID != nil {
		query += fmt.Sprintf(" AND order_id < $%d", argIdx)
		args = append(args, *afterOrderID)
		argIdx++
	}

	query += " ORDER BY order_id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []OrderResponse
	for rows.Next() {
		var o OrderResponse
		o.VaultID = vaultID
		o.AsOfSequence = asOfSeq
		if err := rows.Scan(
			&o.OrderID, &o.Owner, &o.Receiver, &o.Controller,
			&o.Shares, &o.Assets, &o.Status, &o.CreatedAt, &o.DueTime,
		); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}

	return orders, rows.Err()
}

// GetCommandHistory returns applied commands for a vault with pagination.
func (qs *QueryService) GetCommandHistory(
	ctx context.Context,
	vaultID string,
	limit int,
	afterSequence *int64,
) ([]CommandHistoryEntry, error) {
	query := `
		SELECT sequence, command_type, idempotency_key, payload, timestamp, period, source_sequence
		FROM command_log.commands
		WHERE vault_id = $1
	`
	args := []interface{}{vaultID}
	argIdx := 2

	if afterSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *afterSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []CommandHistoryEntry
	for rows.Next() {
		var e CommandHistoryEntry
		e.VaultID = vaultID
		if err := rows.Scan(
			&e.Sequence, &e.CommandType, &e.IdempotencyKey, &e.Payload,
			&e.Timestamp, &e.Period, &e.SourceSequence,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// --- Admin APIs ---

// VerifyIntegrity checks hash chain continuity in the command log.
func (qs *QueryService) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	// Check hash chain continuity
	rows, err := qs.db.QueryContext(ctx, `
		SELECT c1.sequence, c1.prev_hash, c2.state_hash
		FROM command_log.commands c1
		LEFT JOIN command_log.commands c2 ON c2.sequence = c1.sequence - 1
		WHERE c1.sequence > 0 AND c1.prev_hash != COALESCE(c2.state_hash, c1.prev_hash)
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		var prevHash, expectedHash []byte
		if err := rows.Scan(&seq, &prevHash, &expectedHash); err != nil {
			return nil, err
		}
		report.HashChainBreaks = append(report.HashChainBreaks, seq)
	}

	// Check for sequence gaps
	gapRows, err := qs.db.QueryContext(ctx, `
		SELECT c1.sequence + 1 AS missing_from
		FROM command_log.commands c1
		LEFT JOIN command_log.commands c2 ON c2.sequence = c1.sequence + 1
		WHERE c2.sequence IS NULL
		  AND c1.sequence < (SELECT MAX(sequence) FROM command_log.commands)
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer gapRows.Close()

	for gapRows.Next() {
		var seq int64
		if err := gapRows.Scan(&seq); err != nil {
			return nil, err
		}
		report.SequenceGaps = append(report.SequenceGaps, seq)
	}

	report.IsHealthy = len(report.HashChainBreaks) == 0 && len(report.SequenceGaps) == 0
	return report, nil
}

// --- helpers ---

func (qs *QueryService) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT COALESCE(last_sequence, 0) FROM projections.watermark WHERE worker_id = 'main'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}
