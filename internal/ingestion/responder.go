package ingestion

import (
	"VaultLedger/internal/query"
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// QueryResponder serves read-only queries over NATS request-reply. Admin
// tooling and downstream services send a JSON request to a vault.query.*
// subject and receive a JSON reply from the projection tables.
type QueryResponder struct {
	nc      *nats.Conn
	service *query.QueryService
	subs    []*nats.Subscription
}

func NewQueryResponder(nc *nats.Conn, service *query.QueryService) *QueryResponder {
	return &QueryResponder{nc: nc, service: service}
}

type vaultStateRequest struct {
	VaultID string `json:"vault_id"`
}

type orderRequest struct {
	VaultID string `json:"vault_id"`
	OrderID int64  `json:"order_id"`
}

type ordersRequest struct {
	VaultID      string `json:"vault_id"`
	Owner        string `json:"owner,omitempty"`
	Status       string `json:"status,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	AfterOrderID *int64 `json:"after_order_id,omitempty"`
}

type historyRequest struct {
	VaultID       string `json:"vault_id"`
	Limit         int    `json:"limit,omitempty"`
	AfterSequence *int64 `json:"after_sequence,omitempty"`
}

type errorReply struct {
	Error string `json:"error"`
}

// Start registers the query subjects. Handlers run on the NATS delivery
// goroutine; the underlying service is safe for concurrent reads.
func (qr *QueryResponder) Start(ctx context.Context) error {
	handlers := map[string]nats.MsgHandler{
		"vault.query.state":     qr.handleVaultState(ctx),
		"vault.query.order":     qr.handleOrder(ctx),
		"vault.query.orders":    qr.handleOrders(ctx),
		"vault.query.history":   qr.handleHistory(ctx),
		"vault.query.integrity": qr.handleIntegrity(ctx),
	}

	for subject, handler := range handlers {
		sub, err := qr.nc.Subscribe(subject, handler)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		qr.subs = append(qr.subs, sub)
		log.Printf("INFO: query responder on %s", subject)
	}

	return nil
}

// Stop drains all query subscriptions.
func (qr *QueryResponder) Stop() {
	for _, sub := range qr.subs {
		sub.Unsubscribe()
	}
	log.Println("INFO: query responder stopped")
}

func (qr *QueryResponder) handleVaultState(ctx context.Context) nats.MsgHandler {
	return func(msg *nats.Msg) {
		var req vaultStateRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			qr.replyError(msg, err)
			return
		}
		resp, err := qr.service.GetVaultState(ctx, req.VaultID)
		if err != nil {
			qr.replyError(msg, err)
			return
		}
		qr.reply(msg, resp)
	}
}

func (qr *QueryResponder) handleOrder(ctx context.Context) nats.MsgHandler {
	return func(msg *nats.Msg) {
		var req orderRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			qr.replyError(msg, err)
			return
		}
		resp, err := qr.service.GetOrder(ctx, req.VaultID, req.OrderID)
		if err != nil {
			qr.replyError(msg, err)
			return
		}
		qr.reply(msg, resp)
	}
}

func (qr *QueryResponder) handleOrders(ctx context.Context) nats.MsgHandler {
	return func(msg *nats.Msg) {
		var req ordersRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			qr.replyError(msg, err)
			return
		}

		var owner *uuid.UUID
		if req.Owner != "" {
			parsed, err := uuid.Parse(req.Owner)
			if err != nil {
				qr.replyError(msg, fmt.Errorf("parse owner: %w", err))
				return
			}
			owner = &parsed
		}

		var status *string
		if req.Status != "" {
			status = &req.Status
		}

		limit := req.Limit
		if limit <= 0 || limit > 1000 {
			limit = 100
		}

		resp, err := qr.service.GetOrders(ctx, req.VaultID, owner, status, limit, req.AfterOrderID)
		if err != nil {
			qr.replyError(msg, err)
			return
		}
		qr.reply(msg, resp)
	}
}

func (qr *QueryResponder) handleHistory(ctx context.Context) nats.MsgHandler {
	return func(msg *nats.Msg) {
		var req historyRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			qr.replyError(msg, err)
			return
		}

		limit := req.Limit
		if limit <= 0 || limit > 1000 {
			limit = 100
		}

		resp, err := qr.service.GetCommandHistory(ctx, req.VaultID, limit, req.AfterSequence)
		if err != nil {
			qr.replyError(msg, err)
			return
		}
		qr.reply(msg, resp)
	}
}

func (qr *QueryResponder) handleIntegrity(ctx context.Context) nats.MsgHandler {
	return func(msg *nats.Msg) {
		resp, err := qr.service.VerifyIntegrity(ctx)
		if err != nil {
			qr.replyError(msg, err)
			return
		}
		qr.reply(msg, resp)
	}
}

func (qr *QueryResponder) reply(msg *nats.Msg, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		qr.replyError(msg, err)
		return
	}
	if err := msg.Respond(data); err != nil {
		log.Printf("WARN: query reply failed on %s: %v", msg.Subject, err)
	}
}

func (qr *QueryResponder) replyError(msg *nats.Msg, err error) {
	data, _ := json.Marshal(errorReply{Error: err.Error()})
	if respondErr := msg.Respond(data); respondErr != nil {
		log.Printf("WARN: query error reply failed on %s: %v", msg.Subject, respondErr)
	}
}
