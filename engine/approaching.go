package engine

import (
	"sort"
	"time"
)

// =============================================================================
// APPROACHING SCHEDULES - "What should the device be ready to dispense soon"
// =============================================================================

// Approaching returns the active definitions whose configured instant falls
// within the lookahead window of now, sorted ascending by time-to-due.
// The window is symmetric: a dose an hour overdue is still actionable for
// the dispenser. Callers treat the first element, if any, as the actionable
// item. Works purely off schedule definitions, independent of the ledger.
func Approaching(defs []ScheduleDefinition, now time.Time, window time.Duration) []ScheduleDefinition {
	out := make([]ScheduleDefinition, 0, len(defs))
	for _, def := range defs {
		if def.ScheduledDate.IsZero() {
			continue
		}
		if HoursBetween(now, def.ScheduledDate) <= window.Hours() {
			out = append(out, def)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return HoursBetween(now, out[i].ScheduledDate) < HoursBetween(now, out[j].ScheduledDate)
	})
	return out
}
