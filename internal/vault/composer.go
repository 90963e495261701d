package vault

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Composer routes a deposit or redemption through two nested vaults: base
// assets enter the entry vault, and the entry vault's shares are the asset
// of the exit vault. The caller ends up holding exit-vault shares backed by
// the chained position (the Peg Stability Module pattern).
//
// The exit vault must be constructed with the entry vault's share ledger as
// its AssetLedger; the composer's own account is the intermediate holder for
// the duration of one operation.
type Composer struct {
	entry   *Vault
	exit    *Vault
	account uuid.UUID
	log     zerolog.Logger
}

func NewComposer(entry, exit *Vault, account uuid.UUID, logger zerolog.Logger) (*Composer, error) {
	if account == uuid.Nil {
		return nil, fmt.Errorf("%w: composer account is the null identity", ErrParamOutOfBounds)
	}
	return &Composer{
		entry:   entry,
		exit:    exit,
		account: account,
		log:     logger.With().Str("component", "composer").Logger(),
	}, nil
}

// Deposit chains caller assets -> entry shares -> exit shares to receiver.
// The second leg's capacity is checked up front so the first leg is not
// taken when the chain cannot complete; if the second leg still fails, the
// first is compensated by redeeming the intermediate shares back to the
// caller.
func (c *Composer) Deposit(caller, receiver uuid.UUID, assets sdkmath.Int) (sdkmath.Int, error) {
	intermediate := c.entry.PreviewDeposit(assets)
	if maxExit := c.exit.MaxDeposit(); intermediate.GT(maxExit) {
		return sdkmath.Int{}, fmt.Errorf("%w: chained deposit needs %s on %s, remaining %s",
			ErrCapacityExceeded, intermediate, c.exit.ID(), maxExit)
	}

	minted, err := c.entry.Deposit(caller, c.account, assets)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("composed deposit, entry leg: %w", err)
	}

	out, err := c.exit.Deposit(c.account, receiver, minted)
	if err != nil {
		if _, undoErr := c.entry.Redeem(c.account, caller, minted); undoErr != nil {
			return sdkmath.Int{}, fmt.Errorf("composed deposit, exit leg failed (%w) and unwind failed: %v", err, undoErr)
		}
		return sdkmath.Int{}, fmt.Errorf("composed deposit, exit leg: %w", err)
	}

	c.log.Debug().Str("caller", caller.String()).Str("assets", assets.String()).
		Str("shares_out", out.String()).Msg("composed deposit")
	return out, nil
}

// Redeem chains exit shares -> entry shares -> base assets to receiver.
func (c *Composer) Redeem(caller, receiver uuid.UUID, shares sdkmath.Int) (sdkmath.Int, error) {
	intermediate, err := c.exit.Redeem(caller, c.account, shares)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("composed redeem, exit leg: %w", err)
	}

	out, err := c.entry.Redeem(c.account, receiver, intermediate)
	if err != nil {
		if _, undoErr := c.exit.Deposit(c.account, caller, intermediate); undoErr != nil {
			return sdkmath.Int{}, fmt.Errorf("composed redeem, entry leg failed (%w) and unwind failed: %v", err, undoErr)
		}
		return sdkmath.Int{}, fmt.Errorf("composed redeem, entry leg: %w", err)
	}

	c.log.Debug().Str("caller", caller.String()).Str("shares", shares.String()).
		Str("assets_out", out.String()).Msg("composed redeem")
	return out, nil
}

// PreviewDeposit quotes the exit shares for a chained deposit.
func (c *Composer) PreviewDeposit(assets sdkmath.Int) sdkmath.Int {
	return c.exit.PreviewDeposit(c.entry.PreviewDeposit(assets))
}

// PreviewRedeem quotes the base assets for a chained redemption.
func (c *Composer) PreviewRedeem(shares sdkmath.Int) sdkmath.Int {
	return c.entry.PreviewRedeem(c.exit.PreviewRedeem(shares))
}
