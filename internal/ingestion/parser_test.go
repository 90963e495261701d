package ingestion_test

import (
	"VaultLedger/internal/command"
	"VaultLedger/internal/ingestion"
	"encoding/json"
	"testing"
	"time"
)

func rawFromJSON(t *testing.T, v interface{}) ingestion.RawCommand {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return ingestion.RawCommand{
		Subject:   "test",
		Data:      data,
		Timestamp: time.Now(),
		AckFunc:   func() {},
		NakFunc:   func() {},
	}
}

func TestParseDeposit(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":   "550e8400-e29b-41d4-a716-446655440000",
		"vault_id":     "usdv-main",
		"caller_id":    "660e8400-e29b-41d4-a716-446655440001",
		"receiver":     "770e8400-e29b-41d4-a716-446655440002",
		"assets":       "1000000000000000000000",
		"sequence":     int64(42),
		"timestamp_us": int64(1700000000000000),
		"period":       uint64(19722),
	}

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "Deposit")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	dep, ok := cmd.(*command.Deposit)
	if !ok {
		t.Fatalf("expected *command.Deposit, got %T", cmd)
	}

	if dep.Vault != "usdv-main" {
		t.Errorf("vault: got %s, want usdv-main", dep.Vault)
	}
	if dep.Assets.String() != "1000000000000000000000" {
		t.Errorf("assets: got %s, want 1000000000000000000000", dep.Assets)
	}
	if dep.SourceSequence() != 42 {
		t.Errorf("sequence: got %d, want 42", dep.SourceSequence())
	}
	if dep.PeriodIndex() != 19722 {
		t.Errorf("period: got %d, want 19722", dep.PeriodIndex())
	}
	if dep.CommandType() != command.CommandTypeDeposit {
		t.Errorf("command type: got %v, want Deposit", dep.CommandType())
	}
}

func TestParseCreditBalance(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":   "550e8400-e29b-41d4-a716-446655440000",
		"vault_id":     "usdv-main",
		"caller_id":    "660e8400-e29b-41d4-a716-446655440001",
		"account":      "770e8400-e29b-41d4-a716-446655440002",
		"amount":       "25000000000",
		"sequence":     int64(5),
		"timestamp_us": int64(1700000000000000),
		"period":       uint64(19722),
	}

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "CreditBalance")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	cb, ok := cmd.(*command.CreditBalance)
	if !ok {
		t.Fatalf("expected *command.CreditBalance, got %T", cmd)
	}

	if cb.Account.String() != "770e8400-e29b-41d4-a716-446655440002" {
		t.Errorf("account: got %s", cb.Account)
	}
	if cb.Amount.String() != "25000000000" {
		t.Errorf("amount: got %s, want 25000000000", cb.Amount)
	}

	cmd, err = ingestion.ParseRawCommand(raw, "DebitBalance")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	db, ok := cmd.(*command.DebitBalance)
	if !ok {
		t.Fatalf("expected *command.DebitBalance, got %T", cmd)
	}
	if db.Amount.String() != "25000000000" {
		t.Errorf("amount: got %s, want 25000000000", db.Amount)
	}
}

func TestParseCreateRedeemOrder(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":   "550e8400-e29b-41d4-a716-446655440000",
		"vault_id":     "usdv-main",
		"caller_id":    "660e8400-e29b-41d4-a716-446655440001",
		"receiver":     "770e8400-e29b-41d4-a716-446655440002",
		"controller":   "880e8400-e29b-41d4-a716-446655440003",
		"shares":       "500000",
		"sequence":     int64(7),
		"timestamp_us": int64(1700000000000000),
		"period":       uint64(19722),
	}

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "CreateRedeemOrder")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	co, ok := cmd.(*command.CreateRedeemOrder)
	if !ok {
		t.Fatalf("expected *command.CreateRedeemOrder, got %T", cmd)
	}

	if co.Shares.String() != "500000" {
		t.Errorf("shares: got %s, want 500000", co.Shares)
	}
	if co.Controller.String() != "880e8400-e29b-41d4-a716-446655440003" {
		t.Errorf("controller: got %s", co.Controller)
	}
}

func TestParseFillRedeemOrder(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":   "550e8400-e29b-41d4-a716-446655440000",
		"vault_id":     "usdv-main",
		"caller_id":    "660e8400-e29b-41d4-a716-446655440001",
		"order_id":     uint64(17),
		"sequence":     int64(8),
		"timestamp_us": int64(1700000000000000),
		"period":       uint64(19722),
	}

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "FillRedeemOrder")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	fo, ok := cmd.(*command.FillRedeemOrder)
	if !ok {
		t.Fatalf("expected *command.FillRedeemOrder, got %T", cmd)
	}

	if fo.OrderID != 17 {
		t.Errorf("order_id: got %d, want 17", fo.OrderID)
	}
}

func TestParseUpdatePool(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":           "550e8400-e29b-41d4-a716-446655440000",
		"vault_id":             "usdv-main",
		"caller_id":            "660e8400-e29b-41d4-a716-446655440001",
		"size":                 "250000000000",
		"withdraw_allowance":   "50000000000",
		"daily_yield_rate_ppm": int64(137),
		"sequence":             int64(3),
		"timestamp_us":         int64(1700000000000000),
		"period":               uint64(19722),
	}

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "UpdatePool")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	up, ok := cmd.(*command.UpdatePool)
	if !ok {
		t.Fatalf("expected *command.UpdatePool, got %T", cmd)
	}

	if up.Size.String() != "250000000000" {
		t.Errorf("size: got %s, want 250000000000", up.Size)
	}
	if up.WithdrawAllowance.String() != "50000000000" {
		t.Errorf("withdraw_allowance: got %s, want 50000000000", up.WithdrawAllowance)
	}
	if up.DailyYieldRatePpm != 137 {
		t.Errorf("daily_yield_rate_ppm: got %d, want 137", up.DailyYieldRatePpm)
	}
}

func TestParseGrantCapability_NoVault(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":   "550e8400-e29b-41d4-a716-446655440000",
		"caller_id":    "660e8400-e29b-41d4-a716-446655440001",
		"grantee":      "770e8400-e29b-41d4-a716-446655440002",
		"capability":   "order_filler",
		"sequence":     int64(1),
		"timestamp_us": int64(1700000000000000),
		"period":       uint64(19722),
	}

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "GrantCapability")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	gc, ok := cmd.(*command.GrantCapability)
	if !ok {
		t.Fatalf("expected *command.GrantCapability, got %T", cmd)
	}

	if gc.VaultID() != nil {
		t.Errorf("vault_id: got %v, want nil (global command)", *gc.VaultID())
	}
	if gc.Capability != "order_filler" {
		t.Errorf("capability: got %s, want order_filler", gc.Capability)
	}
}

func TestParseSetFillWindow(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":     "550e8400-e29b-41d4-a716-446655440000",
		"vault_id":       "usdv-main",
		"caller_id":      "660e8400-e29b-41d4-a716-446655440001",
		"window_seconds": int64(86400),
		"sequence":       int64(2),
		"timestamp_us":   int64(1700000000000000),
		"period":         uint64(19722),
	}

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "SetFillWindow")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	sw, ok := cmd.(*command.SetFillWindow)
	if !ok {
		t.Fatalf("expected *command.SetFillWindow, got %T", cmd)
	}

	if sw.Window != 24*time.Hour {
		t.Errorf("window: got %v, want 24h", sw.Window)
	}
}

func TestParseInvalidAmount_Fails(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":   "550e8400-e29b-41d4-a716-446655440000",
		"vault_id":     "usdv-main",
		"caller_id":    "660e8400-e29b-41d4-a716-446655440001",
		"receiver":     "770e8400-e29b-41d4-a716-446655440002",
		"assets":       "12.5",
		"sequence":     int64(1),
		"timestamp_us": int64(1700000000000000),
		"period":       uint64(19722),
	}

	raw := rawFromJSON(t, payload)
	_, err := ingestion.ParseRawCommand(raw, "Deposit")
	if err == nil {
		t.Fatal("expected error for non-integer amount")
	}
}

func TestParseUnknownCommandType_Fails(t *testing.T) {
	raw := ingestion.RawCommand{Data: []byte(`{}`)}
	_, err := ingestion.ParseRawCommand(raw, "NonExistentType")
	if err == nil {
		t.Fatal("expected error for unknown command type")
	}
}

func TestParseInvalidJSON_Fails(t *testing.T) {
	raw := ingestion.RawCommand{Data: []byte(`{invalid json`)}
	_, err := ingestion.ParseRawCommand(raw, "Deposit")
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestParseInvalidUUID_Fails(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":   "not-a-uuid",
		"vault_id":     "usdv-main",
		"caller_id":    "also-not-a-uuid",
		"receiver":     "still-not-a-uuid",
		"assets":       "100",
		"sequence":     int64(0),
		"timestamp_us": int64(0),
		"period":       uint64(0),
	}

	raw := rawFromJSON(t, payload)
	_, err := ingestion.ParseRawCommand(raw, "Deposit")
	if err == nil {
		t.Fatal("expected error for invalid UUID")
	}
}
