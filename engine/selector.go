/*
selector.go - Next-dose selection and pointer change-detection

PURPOSE:
  Derives the single soonest still-pending future dose from the ledger and
  diffs it against the previously published device pointer. The output is one
  of three pointer operations: none, publish, clear.

CHANGE-DETECTION:
  The selected record is rendered into a NextSchedulePointer with a canonical
  timestamp, serialized to canonical JSON, and compared byte-for-byte against
  the stored pointer. A publish is emitted only on a difference. This runs on
  every scheduling check, so skipping redundant writes matters.

NO PENDING DOSE:
  When no future Scheduled record exists the pointer is always cleared
  (if one is currently published). This is the single canonical behavior;
  the pointer is never left dangling with a stale dose.
*/
package engine

import (
	"bytes"
	"encoding/json"
	"time"
)

// =============================================================================
// POINTER OPERATIONS
// =============================================================================

type PointerAction int

const (
	// PointerNone means the published pointer already matches.
	PointerNone PointerAction = iota

	// PointerPublish means the pointer must be written with Op.Pointer.
	PointerPublish

	// PointerClear means the pointer must be removed: no pending dose exists.
	PointerClear
)

func (a PointerAction) String() string {
	switch a {
	case PointerPublish:
		return "publish"
	case PointerClear:
		return "clear"
	default:
		return "none"
	}
}

// PointerOp is the selector's verdict for the device-facing pointer.
type PointerOp struct {
	Action  PointerAction
	Pointer *NextSchedulePointer // set when Action == PointerPublish
}

// =============================================================================
// SELECTION
// =============================================================================

// NextDose returns the earliest future Scheduled record, or nil if none
// exists. Ties keep the earliest ledger position (stable selection).
func NextDose(ledger []DoseRecord, now time.Time) *DoseRecord {
	var best *DoseRecord
	for i := range ledger {
		rec := &ledger[i]
		if rec.Status != StatusScheduled || !rec.Time.After(now) {
			continue
		}
		if best == nil || rec.Time.Before(best.Time) {
			best = rec
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

// RenderPointer projects a dose record into the device-facing pointer form.
func RenderPointer(rec DoseRecord, loc *time.Location) NextSchedulePointer {
	return NextSchedulePointer{
		MedicineName:  rec.MedicineName,
		MedicineDose:  rec.MedicineDose,
		ScheduledTime: rec.ScheduledTime,
		Time:          CanonicalTimestamp(rec.Time, loc),
		Status:        string(rec.Status),
	}
}

// ResolvePointer selects the next dose from the (post-reconciliation) ledger
// and diffs it against the currently published pointer.
func ResolvePointer(ledger []DoseRecord, current *NextSchedulePointer, now time.Time, loc *time.Location) PointerOp {
	next := NextDose(ledger, now)
	if next == nil {
		if current == nil {
			return PointerOp{Action: PointerNone}
		}
		return PointerOp{Action: PointerClear}
	}

	rendered := RenderPointer(*next, loc)
	if current != nil && pointerEqual(rendered, *current) {
		return PointerOp{Action: PointerNone}
	}
	return PointerOp{Action: PointerPublish, Pointer: &rendered}
}

// pointerEqual compares two pointers on their canonical JSON serialization.
func pointerEqual(a, b NextSchedulePointer) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}
