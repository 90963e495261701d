package vault

import "github.com/google/uuid"

// IntegrationConfig overrides redemption behavior for a specific caller.
// Set by the restriction manager; read-only in redemption and capacity paths.
type IntegrationConfig struct {
	CanSkipRedeemDelay bool
	WaiveRedeemFee     bool
}

// RedeemPolicy answers per-caller privilege lookups. Injecting the policy
// keeps variant behavior out of the engine: a plain vault uses the zero
// policy, a staked vault with integrations uses a populated table.
type RedeemPolicy interface {
	CanSkipRedeemDelay(caller uuid.UUID) bool
	WaiveRedeemFee(caller uuid.UUID) bool
}

// IntegrationTable is a RedeemPolicy backed by a per-caller config map.
type IntegrationTable struct {
	configs map[uuid.UUID]IntegrationConfig
}

func NewIntegrationTable() *IntegrationTable {
	return &IntegrationTable{configs: make(map[uuid.UUID]IntegrationConfig)}
}

func (t *IntegrationTable) Set(caller uuid.UUID, cfg IntegrationConfig) {
	t.configs[caller] = cfg
}

func (t *IntegrationTable) Get(caller uuid.UUID) (IntegrationConfig, bool) {
	cfg, ok := t.configs[caller]
	return cfg, ok
}

func (t *IntegrationTable) CanSkipRedeemDelay(caller uuid.UUID) bool {
	return t.configs[caller].CanSkipRedeemDelay
}

func (t *IntegrationTable) WaiveRedeemFee(caller uuid.UUID) bool {
	return t.configs[caller].WaiveRedeemFee
}

// Snapshot returns a copy of the table for persistence.
func (t *IntegrationTable) Snapshot() map[uuid.UUID]IntegrationConfig {
	out := make(map[uuid.UUID]IntegrationConfig, len(t.configs))
	for k, v := range t.configs {
		out[k] = v
	}
	return out
}

// Restore replaces the table from a snapshot.
func (t *IntegrationTable) Restore(configs map[uuid.UUID]IntegrationConfig) {
	t.configs = make(map[uuid.UUID]IntegrationConfig, len(configs))
	for k, v := range configs {
		t.configs[k] = v
	}
}
