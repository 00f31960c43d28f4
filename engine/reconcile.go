/*
reconcile.go - Missed-dose detection and catch-up rescheduling

PURPOSE:
  Scans one subject's dose ledger against the active schedule definitions and
  emits a LedgerDelta that:
    (a) deletes ledger entries whose medicine no longer has an active
        definition,
    (b) marks overdue unconfirmed doses Missed, and
    (c) inserts the catch-up occurrence for each missed dose.

CATCH-UP:
  Starting from the missed dose's original instant, the interval is added
  repeatedly until the result is strictly in the future. The clock is re-read
  on every iteration, so the computed occurrence is always forward of "now"
  even when the device was offline for days and many intervals have elapsed.

MONOTONICITY:
  Once a record is Missed it is never reconsidered. Taken records are
  likewise terminal: only Scheduled records transition, which preserves the
  at-most-one-live-Scheduled-record invariant per medicine by construction.

SEE ALSO:
  - selector.go: Runs on the post-reconciliation ledger
  - orphan.go: Explicit maintenance pass over the full ledger
*/
package engine

import (
	"fmt"

	"github.com/google/uuid"
)

// Reconciler detects missed doses and computes their catch-up occurrences.
type Reconciler struct {
	Config Config
	Clock  Clock
}

// NewReconciler creates a reconciler with the given config and clock.
func NewReconciler(cfg Config, clock Clock) *Reconciler {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Reconciler{Config: cfg, Clock: clock}
}

// Reconcile scans the snapshot's ledger and returns the delta to apply.
// It never mutates the snapshot.
func (r *Reconciler) Reconcile(snap SubjectSnapshot) (LedgerDelta, error) {
	byName := make(map[string]ScheduleDefinition, len(snap.Schedules))
	for _, def := range snap.Schedules {
		byName[def.MedicineName] = def
	}

	var delta LedgerDelta
	for _, rec := range snap.Ledger {
		if rec.MedicineName == "" {
			continue
		}

		def, active := byName[rec.MedicineName]
		if !active {
			delta.Delete = append(delta.Delete, rec.ID)
			continue
		}

		if rec.Status != StatusScheduled || rec.Time.IsZero() {
			continue
		}

		now := r.Clock.Now()
		if !rec.Time.Before(now) || now.Sub(rec.Time) < r.Config.GracePeriod {
			continue
		}

		delta.Update = append(delta.Update, StatusChange{
			RecordID: rec.ID,
			Status:   StatusMissed,
		})

		catchUp, err := r.catchUp(rec, def)
		if err != nil {
			return LedgerDelta{}, err
		}
		delta.Insert = append(delta.Insert, catchUp)
	}

	return delta, nil
}

// catchUp computes the replacement occurrence for a missed dose: the original
// instant advanced by whole intervals until strictly in the future.
func (r *Reconciler) catchUp(rec DoseRecord, def ScheduleDefinition) (DoseRecord, error) {
	if err := ValidateInterval(def.IntervalValue); err != nil {
		return DoseRecord{}, fmt.Errorf("schedule %q: %w", def.MedicineName, err)
	}

	next := rec.Time
	for !next.After(r.Clock.Now()) {
		advanced, err := AddHours(next, def.IntervalValue)
		if err != nil {
			return DoseRecord{}, fmt.Errorf("schedule %q: %w", def.MedicineName, err)
		}
		next = advanced
	}

	return DoseRecord{
		ID:            uuid.NewString(),
		MedicineName:  def.MedicineName,
		MedicineDose:  def.MedicineDose,
		ScheduledTime: ClockTime(next, r.Config.Location),
		Time:          next,
		Status:        StatusScheduled,
	}, nil
}

// Apply returns a copy of the ledger with the delta applied, in the order
// delete, update, insert. Callers use it to derive the post-reconciliation
// ledger without re-reading the store.
func (d LedgerDelta) Apply(ledger []DoseRecord) []DoseRecord {
	deleted := make(map[string]bool, len(d.Delete))
	for _, id := range d.Delete {
		deleted[id] = true
	}
	updates := make(map[string]StatusChange, len(d.Update))
	for _, u := range d.Update {
		updates[u.RecordID] = u
	}

	out := make([]DoseRecord, 0, len(ledger)+len(d.Insert))
	for _, rec := range ledger {
		if deleted[rec.ID] {
			continue
		}
		if u, ok := updates[rec.ID]; ok {
			rec.Status = u.Status
			rec.Taken = u.Taken
		}
		out = append(out, rec)
	}
	return append(out, d.Insert...)
}
