package clock

import "time"

// Clock supplies the current time and rate-limit period index to the vault
// logic. The core never reads the wall clock: every command carries its own
// timestamp and period, applied to a Versioned clock before dispatch, so
// replay reproduces identical state.
type Clock interface {
	Now() time.Time
	CurrentPeriod() uint64
}

// Versioned is the core's clock. Set is called once per command with the
// command's timestamp and period before any vault logic runs.
type Versioned struct {
	now    time.Time
	period uint64
}

func NewVersioned() *Versioned {
	return &Versioned{}
}

func (v *Versioned) Set(now time.Time, period uint64) {
	v.now = now
	v.period = period
}

func (v *Versioned) Now() time.Time        { return v.now }
func (v *Versioned) CurrentPeriod() uint64 { return v.period }

// System derives the period from the wall clock. Used at the ingestion edge
// to stamp commands that arrive without an explicit period, never inside the
// core.
type System struct {
	PeriodLength time.Duration
}

func (s System) Now() time.Time { return time.Now().UTC() }

func (s System) CurrentPeriod() uint64 {
	if s.PeriodLength <= 0 {
		return 0
	}
	return uint64(time.Now().UTC().UnixNano() / int64(s.PeriodLength))
}

// PeriodAt returns the period index for an arbitrary timestamp.
func (s System) PeriodAt(t time.Time) uint64 {
	if s.PeriodLength <= 0 {
		return 0
	}
	return uint64(t.UTC().UnixNano() / int64(s.PeriodLength))
}
