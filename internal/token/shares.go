package token

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
)

// ShareLedger tracks vault share balances and total supply for one vault.
// Supply only changes through Mint and Burn; Transfer is supply-neutral.
type ShareLedger struct {
	symbol      string
	balances    map[uuid.UUID]sdkmath.Int
	totalSupply sdkmath.Int
}

func NewShareLedger(symbol string) *ShareLedger {
	return &ShareLedger{
		symbol:      symbol,
		balances:    make(map[uuid.UUID]sdkmath.Int),
		totalSupply: sdkmath.ZeroInt(),
	}
}

func (s *ShareLedger) Symbol() string { return s.symbol }

func (s *ShareLedger) TotalSupply() sdkmath.Int { return s.totalSupply }

func (s *ShareLedger) BalanceOf(holder uuid.UUID) sdkmath.Int {
	if bal, ok := s.balances[holder]; ok {
		return bal
	}
	return sdkmath.ZeroInt()
}

func (s *ShareLedger) Mint(to uuid.UUID, amount sdkmath.Int) error {
	if err := validAmount(amount); err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	s.balances[to] = s.BalanceOf(to).Add(amount)
	s.totalSupply = s.totalSupply.Add(amount)
	return nil
}

func (s *ShareLedger) Burn(from uuid.UUID, amount sdkmath.Int) error {
	if err := validAmount(amount); err != nil {
		return fmt.Errorf("burn: %w", err)
	}
	bal := s.BalanceOf(from)
	if bal.LT(amount) {
		return fmt.Errorf("burn: insufficient shares: have=%s, need=%s", bal, amount)
	}
	s.balances[from] = bal.Sub(amount)
	s.totalSupply = s.totalSupply.Sub(amount)
	return nil
}

func (s *ShareLedger) Transfer(from, to uuid.UUID, amount sdkmath.Int) error {
	if err := validAmount(amount); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	if from == to {
		return fmt.Errorf("transfer: self-transfer %s", from)
	}
	bal := s.BalanceOf(from)
	if bal.LT(amount) {
		return fmt.Errorf("transfer: insufficient shares: have=%s, need=%s", bal, amount)
	}
	s.balances[from] = bal.Sub(amount)
	s.balances[to] = s.BalanceOf(to).Add(amount)
	return nil
}

// ValidateSupply checks that holder balances sum to the recorded total supply.
func (s *ShareLedger) ValidateSupply() error {
	total := sdkmath.ZeroInt()
	for _, bal := range s.balances {
		total = total.Add(bal)
	}
	if !total.Equal(s.totalSupply) {
		return fmt.Errorf("share ledger %s out of balance: holders=%s, supply=%s",
			s.symbol, total, s.totalSupply)
	}
	return nil
}

// Snapshot returns a copy of all balances.
func (s *ShareLedger) Snapshot() map[uuid.UUID]sdkmath.Int {
	snapshot := make(map[uuid.UUID]sdkmath.Int, len(s.balances))
	for k, v := range s.balances {
		snapshot[k] = v
	}
	return snapshot
}

// Restore replaces all balances from a snapshot and recomputes supply.
func (s *ShareLedger) Restore(balances map[uuid.UUID]sdkmath.Int) {
	s.balances = make(map[uuid.UUID]sdkmath.Int, len(balances))
	total := sdkmath.ZeroInt()
	for k, v := range balances {
		s.balances[k] = v
		total = total.Add(v)
	}
	s.totalSupply = total
}
