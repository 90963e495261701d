package projection

import (
	"VaultLedger/internal/core"
	"VaultLedger/internal/observability"
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"
)

// ProjectionOutput mirrors the data needed by projection workers.
// The orchestrator bridges between core.CoreOutput and this.
type ProjectionOutput struct {
	Sequence    int64
	CommandType string
	VaultID     string
	Orders      []OrderUpdate
	State       *VaultStateUpdate
	Timestamp   time.Time
}

// OrderUpdate is a simplified order record for projection consumption.
type OrderUpdate struct {
	OrderID    int64
	Owner      string
	Receiver   string
	Controller string
	Shares     string
	Assets     string
	Status     string
	CreatedAt  time.Time
	DueTime    time.Time
}

// VaultStateUpdate carries a vault's aggregates after a command applied.
type VaultStateUpdate struct {
	ShareSupply    string
	TotalAssets    string
	SharePriceE18  string
	PendingShares  string
	AwaitingPayout string
	PendingOrders  int
	Period         int64
}

// FromCoreOutput flattens an engine output for projection consumption.
func FromCoreOutput(out core.CoreOutput) ProjectionOutput {
	po := ProjectionOutput{
		Sequence:    out.Envelope.Sequence,
		CommandType: out.Envelope.CommandType.String(),
		Timestamp:   out.Envelope.Timestamp,
	}
	if out.Envelope.VaultID != nil {
		po.VaultID = *out.Envelope.VaultID
	}
	for _, o := range out.Orders {
		po.Orders = append(po.Orders, OrderUpdate{
			OrderID:    int64(o.ID),
			Owner:      o.Owner.String(),
			Receiver:   o.Receiver.String(),
			Controller: o.Controller.String(),
			Shares:     o.Shares.String(),
			Assets:     o.Assets.String(),
			Status:     o.Status.String(),
			CreatedAt:  o.CreatedAt,
			DueTime:    o.DueTime,
		})
	}
	if s := out.State; s != nil {
		po.State = &VaultStateUpdate{
			ShareSupply:    s.ShareSupply.String(),
			TotalAssets:    s.TotalAssets.String(),
			SharePriceE18:  s.SharePriceE18.String(),
			PendingShares:  s.PendingShares.String(),
			AwaitingPayout: s.AwaitingPayout.String(),
			PendingOrders:  s.PendingOrders,
			Period:         int64(s.Period),
		}
	}
	return po
}

// ProjectionWorker updates projection tables from applied commands.
// The projection channel is non-blocking with drop: if projections fall
// behind, they can be rebuilt from the command log.
type ProjectionWorker struct {
	db        *sql.DB
	inputChan <-chan ProjectionOutput
	metrics   *observability.Metrics
	lastSeq   int64
}

func NewProjectionWorker(db *sql.DB, inputChan <-chan ProjectionOutput, metrics *observability.Metrics) *ProjectionWorker {
	return &ProjectionWorker{
		db:        db,
		inputChan: inputChan,
		metrics:   metrics,
	}
}

// Run starts the projection worker loop.
func (pw *ProjectionWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case output, ok := <-pw.inputChan:
			if !ok {
				return nil
			}

			start := time.Now()
			if err := pw.processOutput(ctx, output); err != nil {
				log.Printf("WARN: projection update failed at seq=%d: %v", output.Sequence, err)
				// Continue — projections are eventually consistent
				// and can be rebuilt from the command log
			}
			if pw.metrics != nil {
				pw.metrics.ProjectionUpdateDur.WithLabelValues("orders").Observe(time.Since(start).Seconds())
				pw.metrics.QueryFreshnessLag.WithLabelValues("projection").Observe(time.Since(output.Timestamp).Seconds())
			}

			pw.lastSeq = output.Sequence
		}
	}
}

func (pw *ProjectionWorker) processOutput(ctx context.Context, output ProjectionOutput) error {
	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, o := range output.Orders {
		if err := pw.upsertOrder(ctx, tx, output.VaultID, output.Sequence, o); err != nil {
			return fmt.Errorf("order projection: %w", err)
		}
	}

	if output.State != nil {
		if err := pw.upsertVaultState(ctx, tx, output.VaultID, output.Sequence, *output.State); err != nil {
			return fmt.Errorf("vault state projection: %w", err)
		}
	}

	// Update projection watermark
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ('main', $1, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
	`, output.Sequence); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	return tx.Commit()
}

func (pw *ProjectionWorker) upsertOrder(ctx context.Context, tx *sql.Tx, vaultID string, sequence int64, o OrderUpdate) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.orders
			(vault_id, order_id, owner, receiver, controller, shares, assets, status, created_at, due_time, last_sequence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (vault_id, order_id) DO UPDATE SET
			status = EXCLUDED.status,
			last_sequence = EXCLUDED.last_sequence
		WHERE projections.orders.last_sequence < EXCLUDED.last_sequence
	`, vaultID, o.OrderID, o.Owner, o.Receiver, o.Controller,
		o.Shares, o.Assets, o.Status, o.CreatedAt, o.DueTime, sequence)
	return err
}

func (pw *ProjectionWorker) upsertVaultState(ctx context.Context, tx *sql.Tx, vaultID string, sequence int64, s VaultStateUpdate) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.vault_state
			(vault_id, share_supply, total_assets, share_price_e18, pending_shares, awaiting_payout, pending_orders, period, last_sequence, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (vault_id) DO UPDATE SET
			share_supply = EXCLUDED.share_supply,
			total_assets = EXCLUDED.total_assets,
			share_price_e18 = EXCLUDED.share_price_e18,
			pending_shares = EXCLUDED.pending_shares,
			awaiting_payout = EXCLUDED.awaiting_payout,
			pending_orders = EXCLUDED.pending_orders,
			period = EXCLUDED.period,
			last_sequence = EXCLUDED.last_sequence,
			updated_at = NOW()
		WHERE projections.vault_state.last_sequence < EXCLUDED.last_sequence
	`, vaultID, s.ShareSupply, s.TotalAssets, s.SharePriceE18,
		s.PendingShares, s.AwaitingPayout, s.PendingOrders, s.Period, sequence)
	return err
}

// RebuildOrders rebuilds the order projection from the command log's order
// table. Vault state rows refresh on the next applied command per vault.
func RebuildOrders(ctx context.Context, db *sql.DB) error {
	truncateStatements := []string{
		`TRUNCATE projections.orders`,
		`DELETE FROM projections.watermark WHERE worker_id = 'main'`,
	}

	for _, stmt := range truncateStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO projections.orders
			(vault_id, order_id, owner, receiver, controller, shares, assets, status, created_at, due_time, last_sequence)
		SELECT vault_id, order_id, owner, receiver, controller, shares, assets, status, created_at, due_time, updated_sequence
		FROM command_log.orders
		ON CONFLICT (vault_id, order_id) DO UPDATE SET
			status = EXCLUDED.status,
			last_sequence = EXCLUDED.last_sequence
	`)
	if err != nil {
		return fmt.Errorf("rebuild orders: %w", err)
	}

	log.Println("INFO: order projection rebuild complete")
	return nil
}
