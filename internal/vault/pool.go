package vault

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"

	vmath "VaultLedger/internal/math"
)

// Distribution is a fixed amount vesting linearly over a period. At most one
// may be in flight per pool.
type Distribution struct {
	Amount sdkmath.Int
	Period time.Duration
	Start  time.Time
}

// Vested returns the portion released at time now.
func (d *Distribution) Vested(now time.Time) sdkmath.Int {
	elapsed := int64(now.Sub(d.Start).Seconds())
	return vmath.Vested(d.Amount, int64(d.Period.Seconds()), elapsed, vmath.RoundDown)
}

// Active reports whether the distribution is still vesting at time now.
func (d *Distribution) Active(now time.Time) bool {
	return now.Before(d.Start.Add(d.Period))
}

// Pool holds the externally-managed principal of an interest-bearing vault.
// Size and the daily yield rate are supplied by a trusted pool manager, not
// derived internally. Between updates the pool value grows linearly; an
// update resets the accrual baseline.
type Pool struct {
	size              sdkmath.Int
	withdrawAllowance sdkmath.Int
	dailyYieldRatePpm int64
	lastUpdate        time.Time
	dist              *Distribution
}

func NewPool() *Pool {
	return &Pool{
		size:              sdkmath.ZeroInt(),
		withdrawAllowance: sdkmath.ZeroInt(),
	}
}

func (p *Pool) Size() sdkmath.Int              { return p.size }
func (p *Pool) WithdrawAllowance() sdkmath.Int { return p.withdrawAllowance }
func (p *Pool) DailyYieldRatePpm() int64       { return p.dailyYieldRatePpm }
func (p *Pool) LastUpdate() time.Time          { return p.lastUpdate }
func (p *Pool) Distribution() *Distribution    { return p.dist }

func (p *Pool) elapsedSeconds(now time.Time) int64 {
	if p.lastUpdate.IsZero() || now.Before(p.lastUpdate) {
		return 0
	}
	return int64(now.Sub(p.lastUpdate).Seconds())
}

// Accrued returns the unrealized linear yield on the principal since the
// last update.
func (p *Pool) Accrued(now time.Time) sdkmath.Int {
	return vmath.AccruedSince(p.size, p.dailyYieldRatePpm, p.elapsedSeconds(now), vmath.RoundDown)
}

// TotalAssets is the pool value at time now: principal, unrealized yield,
// and the vested portion of any distribution.
func (p *Pool) TotalAssets(now time.Time) sdkmath.Int {
	total := p.size.Add(p.Accrued(now))
	if p.dist != nil {
		total = total.Add(p.dist.Vested(now))
	}
	return total
}

// Update replaces the pool parameters and resets the accrual baseline.
// Rejected while a distribution is vesting.
func (p *Pool) Update(size, withdrawAllowance sdkmath.Int, dailyYieldRatePpm int64, now time.Time) error {
	if p.dist != nil && p.dist.Active(now) {
		return fmt.Errorf("%w: started %s", ErrDistributionActive, p.dist.Start.UTC().Format(time.RFC3339))
	}
	if dailyYieldRatePpm < 0 || dailyYieldRatePpm > vmath.PpmScale {
		return fmt.Errorf("%w: daily yield rate %d ppm not in [0, %d]", ErrParamOutOfBounds, dailyYieldRatePpm, vmath.PpmScale)
	}
	if withdrawAllowance.GT(size) {
		return fmt.Errorf("%w: withdraw allowance %s exceeds size %s", ErrParamOutOfBounds, withdrawAllowance, size)
	}

	p.size = size
	p.withdrawAllowance = withdrawAllowance
	p.dailyYieldRatePpm = dailyYieldRatePpm
	p.lastUpdate = now
	p.dist = nil
	return nil
}

// Credit adds a deposit to the pool, discounted to its pre-accrual
// equivalent so the depositor is not credited with yield that accrued before
// the deposit existed. The allowance grows by the same amount: fresh
// deposits are immediately withdrawable.
func (p *Pool) Credit(assets sdkmath.Int, now time.Time) {
	principal := vmath.Discount(assets, p.dailyYieldRatePpm, p.elapsedSeconds(now), vmath.RoundDown)
	p.size = p.size.Add(principal)
	p.withdrawAllowance = p.withdrawAllowance.Add(principal)
}

// Debit removes a withdrawal from the pool, discounted the same way. Fails
// if the discounted principal exceeds the withdraw allowance.
func (p *Pool) Debit(assets sdkmath.Int, now time.Time) error {
	principal := vmath.Discount(assets, p.dailyYieldRatePpm, p.elapsedSeconds(now), vmath.RoundDown)
	if principal.GT(p.withdrawAllowance) {
		return fmt.Errorf("%w: requested principal %s, withdraw allowance %s",
			ErrCapacityExceeded, principal, p.withdrawAllowance)
	}
	p.size = p.size.Sub(principal)
	p.withdrawAllowance = p.withdrawAllowance.Sub(principal)
	return nil
}

// AllowanceValue is the current asset value of the withdraw allowance,
// unrealized yield included. Debit of at most this value always succeeds.
func (p *Pool) AllowanceValue(now time.Time) sdkmath.Int {
	return p.withdrawAllowance.Add(
		vmath.AccruedSince(p.withdrawAllowance, p.dailyYieldRatePpm, p.elapsedSeconds(now), vmath.RoundDown))
}

// StartDistribution begins vesting amount linearly over period.
func (p *Pool) StartDistribution(amount sdkmath.Int, period time.Duration, now time.Time) error {
	if p.dist != nil && p.dist.Active(now) {
		return fmt.Errorf("%w: started %s", ErrDistributionActive, p.dist.Start.UTC().Format(time.RFC3339))
	}
	if amount.IsNil() || !amount.IsPositive() || period <= 0 {
		return fmt.Errorf("%w: amount=%s, period=%s", ErrParamOutOfBounds, amount, period)
	}

	// A completed distribution folds into the principal before the new one
	// starts, keeping TotalAssets continuous.
	p.foldCompletedDistribution(now)
	p.dist = &Distribution{Amount: amount, Period: period, Start: now}
	return nil
}

// TerminateDistribution ends the active distribution early, freezing it at
// its current vested value. Vested reads are constant from then on.
func (p *Pool) TerminateDistribution(now time.Time) error {
	if p.dist == nil || !p.dist.Active(now) {
		return ErrNoDistribution
	}

	vested := p.dist.Vested(now)
	elapsed := now.Sub(p.dist.Start)
	p.dist.Amount = vested
	p.dist.Period = elapsed
	return nil
}

func (p *Pool) foldCompletedDistribution(now time.Time) {
	if p.dist != nil && !p.dist.Active(now) {
		p.size = p.size.Add(p.dist.Vested(now))
		p.dist = nil
	}
}

// CheckInvariant verifies withdrawAllowance <= size.
func (p *Pool) CheckInvariant() error {
	if p.withdrawAllowance.GT(p.size) {
		return fmt.Errorf("withdraw allowance %s exceeds pool size %s", p.withdrawAllowance, p.size)
	}
	return nil
}

// Restore replaces the pool state from a snapshot.
func (p *Pool) Restore(size, withdrawAllowance sdkmath.Int, ratePpm int64, lastUpdate time.Time, dist *Distribution) {
	p.size = size
	p.withdrawAllowance = withdrawAllowance
	p.dailyYieldRatePpm = ratePpm
	p.lastUpdate = lastUpdate
	p.dist = dist
}
