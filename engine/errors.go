/*
errors.go - Centralized error types for the dispense engine

PURPOSE:
  All expected-condition errors in one place. The engine returns typed
  outcomes for expected states (empty schedules, no pending dose) and fails
  fast only on malformed input that would otherwise cause non-termination
  (the interval guard in the catch-up loop).

USAGE:
  Callers match with errors.Is():

    if errors.Is(err, engine.ErrHistoryNotFound) {
        // confirmation without a pending dose: caller error, HTTP 404
    }

SEE ALSO:
  - reconcile.go: Uses ErrInvalidInterval
  - confirm.go: Uses ErrHistoryNotFound
*/
package engine

import "errors"

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMissingSubject is returned when the caller omitted the subject
	// identifier. Rejected before any core logic runs.
	ErrMissingSubject = errors.New("missing subject identifier")

	// ErrNoActiveSchedules is returned when a subject has zero schedule
	// definitions. A valid empty state, not a fault.
	ErrNoActiveSchedules = errors.New("no active schedules")

	// ErrNoApproachingSchedule is returned when no active definition falls
	// within the lookahead window.
	ErrNoApproachingSchedule = errors.New("no approaching schedule")

	// ErrHistoryNotFound is returned when a dose confirmation does not match
	// any currently Scheduled ledger record. A caller/state mismatch, not a
	// system fault.
	ErrHistoryNotFound = errors.New("history not found")

	// ErrInvalidInterval is returned when a schedule definition's interval is
	// non-positive or non-numeric. Never silently coerced: the catch-up loop
	// would not terminate.
	ErrInvalidInterval = errors.New("invalid dosing interval")
)
