package engine

import "time"

// =============================================================================
// CLOCK - Injectable time source
// =============================================================================

// Clock supplies the current instant. The reconciler re-reads the clock on
// every catch-up iteration, so the engine takes a Clock rather than a frozen
// time.Time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function to the Clock interface. Tests use it to pin the
// instant.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }
