package ingestion

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSSubscriber subscribes to NATS JetStream subjects and feeds commands
// into the deterministic core via the commandChan.
// NATS JetStream is the primary high-throughput ingestion surface. Each
// subject maps to a command type.
type NATSSubscriber struct {
	js          jetstream.JetStream
	commandChan chan<- RawCommand
	consumers   []jetstream.ConsumeContext
}

// RawCommand is the parsed-but-untyped command from NATS, ready for the shell
// to validate and convert into a typed command.Command before sending to the core.
type RawCommand struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	AckFunc   func() // Call to ACK the NATS message after successful processing
	NakFunc   func() // Call to NAK on failure (will be redelivered)
}

// SubjectConfig maps NATS subjects to command types.
// Each command type has its own subject for independent scaling.
type SubjectConfig struct {
	Subject      string
	CommandType  string
	ConsumerName string
	StreamName   string
}

// DefaultSubjects returns the standard subject configuration.
func DefaultSubjects() []SubjectConfig {
	return []SubjectConfig{
		{Subject: "vault.issuance.deposit.>", CommandType: "Deposit", ConsumerName: "ledger-deposit", StreamName: "VAULT_ISSUANCE"},
		{Subject: "vault.issuance.mint.>", CommandType: "Mint", ConsumerName: "ledger-mint", StreamName: "VAULT_ISSUANCE"},
		{Subject: "vault.issuance.withdraw.>", CommandType: "Withdraw", ConsumerName: "ledger-withdraw", StreamName: "VAULT_ISSUANCE"},
		{Subject: "vault.issuance.redeem.>", CommandType: "Redeem", ConsumerName: "ledger-redeem", StreamName: "VAULT_ISSUANCE"},
		{Subject: "vault.issuance.credit.>", CommandType: "CreditBalance", ConsumerName: "ledger-credit", StreamName: "VAULT_ISSUANCE"},
		{Subject: "vault.issuance.debit.>", CommandType: "DebitBalance", ConsumerName: "ledger-debit", StreamName: "VAULT_ISSUANCE"},
		{Subject: "vault.orders.create.>", CommandType: "CreateRedeemOrder", ConsumerName: "ledger-order-create", StreamName: "VAULT_ORDERS"},
		{Subject: "vault.orders.fill.>", CommandType: "FillRedeemOrder", ConsumerName: "ledger-order-fill", StreamName: "VAULT_ORDERS"},
		{Subject: "vault.orders.cancel.>", CommandType: "CancelRedeemOrder", ConsumerName: "ledger-order-cancel", StreamName: "VAULT_ORDERS"},
		{Subject: "vault.orders.finalize.>", CommandType: "FinalizeRedeemOrder", ConsumerName: "ledger-order-finalize", StreamName: "VAULT_ORDERS"},
		{Subject: "vault.orders.initiate.>", CommandType: "InitiateRedeem", ConsumerName: "ledger-order-initiate", StreamName: "VAULT_ORDERS"},
		{Subject: "vault.admin.redeem_fee.>", CommandType: "SetRedeemFee", ConsumerName: "ledger-redeem-fee", StreamName: "VAULT_ADMIN"},
		{Subject: "vault.admin.order_fee.>", CommandType: "SetRedeemOrderFee", ConsumerName: "ledger-order-fee", StreamName: "VAULT_ADMIN"},
		{Subject: "vault.admin.fill_window.>", CommandType: "SetFillWindow", ConsumerName: "ledger-fill-window", StreamName: "VAULT_ADMIN"},
		{Subject: "vault.admin.deposit_cap.>", CommandType: "SetMaxDepositPerPeriod", ConsumerName: "ledger-deposit-cap", StreamName: "VAULT_ADMIN"},
		{Subject: "vault.admin.withdraw_cap.>", CommandType: "SetMaxWithdrawPerPeriod", ConsumerName: "ledger-withdraw-cap", StreamName: "VAULT_ADMIN"},
		{Subject: "vault.admin.integration.>", CommandType: "SetIntegrationConfig", ConsumerName: "ledger-integration", StreamName: "VAULT_ADMIN"},
		{Subject: "vault.admin.rescue.>", CommandType: "Rescue", ConsumerName: "ledger-rescue", StreamName: "VAULT_ADMIN"},
		{Subject: "vault.admin.grant.>", CommandType: "GrantCapability", ConsumerName: "ledger-grant", StreamName: "VAULT_ADMIN"},
		{Subject: "vault.admin.revoke.>", CommandType: "RevokeCapability", ConsumerName: "ledger-revoke", StreamName: "VAULT_ADMIN"},
		{Subject: "vault.pool.update.>", CommandType: "UpdatePool", ConsumerName: "ledger-pool-update", StreamName: "VAULT_POOL"},
		{Subject: "vault.pool.distribution.start.>", CommandType: "StartDistribution", ConsumerName: "ledger-dist-start", StreamName: "VAULT_POOL"},
		{Subject: "vault.pool.distribution.stop.>", CommandType: "TerminateDistribution", ConsumerName: "ledger-dist-stop", StreamName: "VAULT_POOL"},
	}
}

func NewNATSSubscriber(js jetstream.JetStream, commandChan chan<- RawCommand) *NATSSubscriber {
	return &NATSSubscriber{
		js:          js,
		commandChan: commandChan,
	}
}

// Subscribe creates JetStream consumers for all configured subjects.
// Consumers use explicit ACK, max_deliver=5, ack_wait=30s.
func (ns *NATSSubscriber) Subscribe(ctx context.Context, subjects []SubjectConfig) error {
	for _, cfg := range subjects {
		consumer, err := ns.js.CreateOrUpdateConsumer(ctx, cfg.StreamName, jetstream.ConsumerConfig{
			Durable:       cfg.ConsumerName,
			FilterSubject: cfg.Subject,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       30 * time.Second,
			MaxDeliver:    5,
			DeliverPolicy: jetstream.DeliverAllPolicy,
		})
		if err != nil {
			return fmt.Errorf("create consumer %s: %w", cfg.ConsumerName, err)
		}

		consumerContext, err := consumer.Consume(func(msg jetstream.Msg) {
			raw := RawCommand{
				Subject:   msg.Subject(),
				Data:      msg.Data(),
				Timestamp: time.Now(),
				AckFunc:   func() { msg.Ack() },
				NakFunc:   func() { msg.Nak() },
			}

			select {
			case ns.commandChan <- raw:
				// Successfully queued for processing
			case <-ctx.Done():
				msg.Nak()
			}
		})
		if err != nil {
			return fmt.Errorf("consume %s: %w", cfg.ConsumerName, err)
		}

		ns.consumers = append(ns.consumers, consumerContext)
		log.Printf("INFO: subscribed to %s (consumer=%s)", cfg.Subject, cfg.ConsumerName)
	}

	return nil
}

// EnsureStreams creates the required JetStream streams if they don't exist.
// Streams use FileStorage, retention=Limits, max_age=72h.
func EnsureStreams(ctx context.Context, js jetstream.JetStream) error {
	streams := []jetstream.StreamConfig{
		{
			Name:      "VAULT_ISSUANCE",
			Subjects:  []string{"vault.issuance.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "VAULT_ORDERS",
			Subjects:  []string{"vault.orders.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "VAULT_ADMIN",
			Subjects:  []string{"vault.admin.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "VAULT_POOL",
			Subjects:  []string{"vault.pool.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
	}

	for _, cfg := range streams {
		if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.Name, err)
		}
		log.Printf("INFO: ensured stream %s", cfg.Name)
	}

	return nil
}

// Stop gracefully stops all consumers.
func (ns *NATSSubscriber) Stop() {
	for _, cc := range ns.consumers {
		cc.Stop()
	}
	log.Println("INFO: NATS subscribers stopped")
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("WARN: NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Println("INFO: NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
