/*
confirm.go - Dose-confirmation transition

PURPOSE:
  Applies a "dose taken" confirmation for one medicine. The matching
  Scheduled ledger record transitions to Taken, then:

    once:      the definition is retired. The caller deletes the schedule,
               the stock entry, and clears the pointer ("done, nothing more
               to compute until re-provisioned").
    recurring: the next occurrence is scheduled at now + interval, and the
               definition's stored date/time advance so the approaching
               selector reflects the new cycle.

FAILURE:
  No matching Scheduled record means a confirmation without a pending dose:
  ErrHistoryNotFound, a caller error rather than a system fault.
*/
package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Confirmation describes everything the caller must persist after a dose is
// confirmed taken. Ledger holds the Taken transition plus, for recurring
// schedules, the next occurrence insert.
type Confirmation struct {
	Ledger LedgerDelta

	// UpdatedSchedule is the advanced definition (recurring only).
	UpdatedSchedule *ScheduleDefinition

	// RetireSchedule is set for once definitions: delete the definition,
	// remove the stock key, clear the pointer.
	RetireSchedule bool
	StockKey       string
}

// Confirm finds the live Scheduled record for the definition's medicine and
// dose, transitions it to Taken, and computes the follow-up actions.
func Confirm(def ScheduleDefinition, ledger []DoseRecord, clock Clock, loc *time.Location) (*Confirmation, error) {
	var match *DoseRecord
	for i := range ledger {
		rec := &ledger[i]
		if rec.MedicineName == def.MedicineName &&
			rec.MedicineDose == def.MedicineDose &&
			rec.Status == StatusScheduled {
			match = rec
			break
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%s %s: %w", def.MedicineName, def.MedicineDose, ErrHistoryNotFound)
	}

	out := &Confirmation{}
	out.Ledger.Update = append(out.Ledger.Update, StatusChange{
		RecordID: match.ID,
		Status:   StatusTaken,
		Taken:    true,
	})

	if def.IntervalType == IntervalOnce {
		out.RetireSchedule = true
		out.StockKey = def.MedicineName
		return out, nil
	}

	if err := ValidateInterval(def.IntervalValue); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", def.MedicineName, err)
	}
	nextTime, err := AddHours(clock.Now(), def.IntervalValue)
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %w", def.MedicineName, err)
	}

	display := ClockTime(nextTime, loc)

	out.Ledger.Insert = append(out.Ledger.Insert, DoseRecord{
		ID:            uuid.NewString(),
		MedicineName:  def.MedicineName,
		MedicineDose:  def.MedicineDose,
		ScheduledTime: display,
		Time:          nextTime,
		Status:        StatusScheduled,
	})

	updated := def
	updated.ScheduledDate = nextTime
	updated.ScheduledTime = display
	out.UpdatedSchedule = &updated

	return out, nil
}
