package token

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
)

// Custody maintains in-memory asset balances per holder for a single asset.
// TransferIn/TransferOut model movement across the custody boundary (deposits
// arriving from outside, redemption payouts leaving); Transfer moves value
// between tracked holders. Every movement either fully applies or fully
// fails, never partially.
type Custody struct {
	asset    string
	balances map[uuid.UUID]sdkmath.Int

	// Net amount moved in minus moved out. Must always equal the sum of all
	// tracked balances.
	netInflow sdkmath.Int
}

func NewCustody(asset string) *Custody {
	return &Custody{
		asset:     asset,
		balances:  make(map[uuid.UUID]sdkmath.Int),
		netInflow: sdkmath.ZeroInt(),
	}
}

// Asset returns the asset symbol this custody tracks.
func (c *Custody) Asset() string { return c.asset }

// BalanceOf returns the current balance of a holder. Unknown holders are zero.
func (c *Custody) BalanceOf(holder uuid.UUID) sdkmath.Int {
	if bal, ok := c.balances[holder]; ok {
		return bal
	}
	return sdkmath.ZeroInt()
}

// TransferIn credits a holder with assets arriving from outside custody.
func (c *Custody) TransferIn(holder uuid.UUID, amount sdkmath.Int) error {
	if err := validAmount(amount); err != nil {
		return fmt.Errorf("transfer in: %w", err)
	}
	c.balances[holder] = c.BalanceOf(holder).Add(amount)
	c.netInflow = c.netInflow.Add(amount)
	return nil
}

// TransferOut debits a holder for assets leaving custody.
func (c *Custody) TransferOut(holder uuid.UUID, amount sdkmath.Int) error {
	if err := validAmount(amount); err != nil {
		return fmt.Errorf("transfer out: %w", err)
	}
	bal := c.BalanceOf(holder)
	if bal.LT(amount) {
		return fmt.Errorf("transfer out: insufficient balance: have=%s, need=%s", bal, amount)
	}
	c.balances[holder] = bal.Sub(amount)
	c.netInflow = c.netInflow.Sub(amount)
	return nil
}

// Transfer moves assets between two tracked holders.
func (c *Custody) Transfer(from, to uuid.UUID, amount sdkmath.Int) error {
	if err := validAmount(amount); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	if from == to {
		return fmt.Errorf("transfer: self-transfer %s", from)
	}
	bal := c.BalanceOf(from)
	if bal.LT(amount) {
		return fmt.Errorf("transfer: insufficient balance: have=%s, need=%s", bal, amount)
	}
	c.balances[from] = bal.Sub(amount)
	c.balances[to] = c.BalanceOf(to).Add(amount)
	return nil
}

// ValidateConservation checks that tracked balances sum to the net inflow.
func (c *Custody) ValidateConservation() error {
	total := sdkmath.ZeroInt()
	for _, bal := range c.balances {
		total = total.Add(bal)
	}
	if !total.Equal(c.netInflow) {
		return fmt.Errorf("custody %s out of balance: holders=%s, net inflow=%s",
			c.asset, total, c.netInflow)
	}
	return nil
}

// Snapshot returns a copy of all balances (for state hashing and persistence).
func (c *Custody) Snapshot() map[uuid.UUID]sdkmath.Int {
	snapshot := make(map[uuid.UUID]sdkmath.Int, len(c.balances))
	for k, v := range c.balances {
		snapshot[k] = v
	}
	return snapshot
}

// Restore replaces all balances from a snapshot.
func (c *Custody) Restore(balances map[uuid.UUID]sdkmath.Int) {
	c.balances = make(map[uuid.UUID]sdkmath.Int, len(balances))
	total := sdkmath.ZeroInt()
	for k, v := range balances {
		c.balances[k] = v
		total = total.Add(v)
	}
	c.netInflow = total
}

func validAmount(amount sdkmath.Int) error {
	if amount.IsNil() {
		return fmt.Errorf("nil amount")
	}
	if amount.IsNegative() {
		return fmt.Errorf("negative amount %s", amount)
	}
	return nil
}
