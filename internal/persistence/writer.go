package persistence

import (
	"VaultLedger/internal/command"
	"VaultLedger/internal/vault"
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// CommandLogWriter writes applied commands and order rows to Postgres using
// multi-row INSERT batches. Switch to pgx CopyFrom if throughput ever
// demands it.
type CommandLogWriter struct {
	db           *sql.DB
	batchSize    int
	flushTimeout time.Duration
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// CommandRow represents a row in command_log.commands
type CommandRow struct {
	Sequence       int64
	CommandType    string
	IdempotencyKey string
	VaultID        *string
	Payload        []byte // JSON-encoded command payload
	StateHash      []byte
	PrevHash       []byte
	Timestamp      time.Time
	Period         int64
	SourceSequence int64
}

// OrderRow represents a row in command_log.orders. Amounts are stored as
// text; they are arbitrary-precision integers.
type OrderRow struct {
	VaultID    string
	OrderID    int64
	Owner      string
	Receiver   string
	Controller string
	Shares     string
	Assets     string
	Status     string
	CreatedAt  time.Time
	DueTime    time.Time
	UpdatedSeq int64
}

func NewCommandLogWriter(db *sql.DB, batchSize int, flushTimeout time.Duration) *CommandLogWriter {
	return &CommandLogWriter{
		db:           db,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
	}
}

// WriteCommandBatch writes a batch of commands to command_log.commands.
func (w *CommandLogWriter) WriteCommandBatch(ctx context.Context, tx execer, commands []CommandRow) error {
	if len(commands) == 0 {
		return nil
	}

	query := `INSERT INTO command_log.commands
		(sequence, command_type, idempotency_key, vault_id, payload, state_hash, prev_hash, timestamp, period, source_sequence)
		VALUES `

	values := make([]string, 0, len(commands))
	args := make([]interface{}, 0, len(commands)*10)

	for i, c := range commands {
		base := i * 10
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10,
		))
		args = append(args,
			c.Sequence, c.CommandType, c.IdempotencyKey, c.VaultID,
			c.Payload, c.StateHash, c.PrevHash, c.Timestamp, c.Period, c.SourceSequence,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING" // Idempotent writes

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// WriteOrderBatch upserts order rows into command_log.orders. Later updates
// win: the status and updated_sequence columns move forward as the order
// progresses through its lifecycle.
func (w *CommandLogWriter) WriteOrderBatch(ctx context.Context, tx execer, orders []OrderRow) error {
	if len(orders) == 0 {
		return nil
	}

	query := `INSERT INTO command_log.orders
		(vault_id, order_id, owner, receiver, controller, shares, assets, status, created_at, due_time, updated_sequence)
		VALUES `

	values := make([]string, 0, len(orders))
	args := make([]interface{}, 0, len(orders)*11)

	for i, o := range orders {
		base := i * 11
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10, base+11,
		))
		args = append(args,
			o.VaultID, o.OrderID, o.Owner, o.Receiver, o.Controller,
			o.Shares, o.Assets, o.Status, o.CreatedAt, o.DueTime, o.UpdatedSeq,
		)
	}

	query += strings.Join(values, ", ")
	query += ` ON CONFLICT (vault_id, order_id) DO UPDATE SET
		status = EXCLUDED.status,
		updated_sequence = EXCLUDED.updated_sequence
		WHERE command_log.orders.updated_sequence < EXCLUDED.updated_sequence`

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// BuildCommandRow converts an envelope to its storage row.
func BuildCommandRow(env *command.CommandEnvelope) CommandRow {
	return CommandRow{
		Sequence:       env.Sequence,
		CommandType:    env.CommandType.String(),
		IdempotencyKey: env.IdempotencyKey,
		VaultID:        env.VaultID,
		Payload:        env.Payload,
		StateHash:      env.StateHash[:],
		PrevHash:       env.PrevHash[:],
		Timestamp:      env.Timestamp,
		Period:         int64(env.Period),
		SourceSequence: env.SourceSequence,
	}
}

// BuildOrderRows converts touched orders to storage rows.
func BuildOrderRows(vaultID string, sequence int64, orders []vault.Order) []OrderRow {
	if len(orders) == 0 {
		return nil
	}
	rows := make([]OrderRow, 0, len(orders))
	for _, o := range orders {
		rows = append(rows, OrderRow{
			VaultID:    vaultID,
			OrderID:    int64(o.ID),
			Owner:      o.Owner.String(),
			Receiver:   o.Receiver.String(),
			Controller: o.Controller.String(),
			Shares:     o.Shares.String(),
			Assets:     o.Assets.String(),
			Status:     o.Status.String(),
			CreatedAt:  o.CreatedAt,
			DueTime:    o.DueTime,
			UpdatedSeq: sequence,
		})
	}
	return rows
}
