package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock is a package-level time source so tests can freeze time via SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current local wall-clock time (see ToLocal).
func Now() time.Time {
	return ToLocal(clock.Now(), 0)
}

// Yesterday returns the local calendar date before today as YYYY-MM-DD. It is
// the default run date when a job lists none.
func Yesterday() string {
	return Now().AddDate(0, 0, -1).Format(DateLayout)
}
