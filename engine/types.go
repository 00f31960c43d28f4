/*
Package engine provides the core schedule reconciliation engine for the
medication dispenser.

PURPOSE:
  This package contains the pure decision logic for one subject's medicine
  schedules: detecting doses that were never confirmed and have become
  overdue, computing their catch-up rescheduling, selecting the single
  soonest-due dose for the device-facing pointer, and pruning ledger/stock
  entries that no longer correspond to an active schedule.

KEY CONCEPTS IN THIS FILE (types.go):
  - ScheduleDefinition: One prescribed medicine entry (name, dose, interval, slot)
  - DoseRecord: One entry in the historical dose ledger
  - NextSchedulePointer: The denormalized "next dose" projection for the device
  - SubjectSnapshot: Immutable input to every engine operation
  - LedgerDelta: The batch of inserts/updates/deletes the engine emits

DESIGN PRINCIPLES:
  1. Purity: The engine owns no persistent state. It consumes snapshots and
     emits deltas; all I/O belongs to the caller.
  2. Snapshot in, delta out: No read-modify-write loops. Callers apply the
     delta atomically per subject.
  3. Explicit time: Every operation takes a Clock and a timezone; nothing
     reads ambient wall-clock or locale state.
  4. Precision: Interval values use decimal.Decimal since they arrive as
     strings or numbers from upstream provisioning.

SEE ALSO:
  - reconcile.go: Missed-dose detection and catch-up rescheduling
  - selector.go: Next-dose selection and pointer change-detection
  - store.go: Collaborator interfaces for persistence
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// SubjectID identifies the device/patient that all schedules, ledger entries,
// and pointers are partitioned by.
type SubjectID string

// =============================================================================
// SCHEDULE DEFINITION - One prescribed medicine entry
// =============================================================================

type IntervalType string

const (
	// IntervalOnce is a single-shot dose: the definition is deleted after the
	// dose is confirmed taken.
	IntervalOnce IntervalType = "once"

	// IntervalRecurring repeats every IntervalValue hours.
	IntervalRecurring IntervalType = "recurring"
)

// ScheduleDefinition is one prescribed medicine entry for a subject.
// MedicineName is unique among a subject's active definitions.
type ScheduleDefinition struct {
	Subject      SubjectID
	MedicineName string
	MedicineDose string
	IntervalType IntervalType

	// IntervalValue is the dosing interval in hours. Upstream provisioning
	// stores it as a string or a number, so it is carried as a decimal and
	// validated before any catch-up arithmetic.
	IntervalValue decimal.Decimal

	// ScheduledTime is the wall-clock display time of the next occurrence,
	// "HH:MM" in 24-hour format.
	ScheduledTime string

	// ScheduledDate is the absolute instant of the next occurrence.
	ScheduledDate time.Time

	// SlotNumber is the physical dispenser slot holding this medicine.
	SlotNumber int
}

// =============================================================================
// DOSE RECORD - One entry in the historical ledger
// =============================================================================

type DoseStatus string

const (
	StatusScheduled DoseStatus = "Scheduled"
	StatusTaken     DoseStatus = "Taken"
	StatusMissed    DoseStatus = "Missed"
)

// DoseRecord is one entry in a subject's dose ledger.
type DoseRecord struct {
	ID           string
	MedicineName string
	MedicineDose string

	// ScheduledTime is the display string ("HH:MM") for the dose.
	ScheduledTime string

	// Time is the absolute instant the dose is (or was) due.
	Time time.Time

	Status DoseStatus

	// Taken mirrors Status == Taken for device firmware that reads the flag
	// directly.
	Taken bool
}

// =============================================================================
// NEXT SCHEDULE POINTER - Device-facing projection
// =============================================================================

// NextSchedulePointer is the single denormalized "next dose" projection
// published per subject to the device-facing store. Field order is fixed so
// the canonical JSON rendering is stable for change-detection.
type NextSchedulePointer struct {
	MedicineName  string `json:"medicineName"`
	MedicineDose  string `json:"medicineDose"`
	ScheduledTime string `json:"scheduledTime"`

	// Time is the canonical ISO-8601 timestamp with explicit offset.
	Time string `json:"time"`

	Status string `json:"status"`
}

// =============================================================================
// DEVICE CONFIG - Per-subject device flags
// =============================================================================

// DeviceConfig holds the device-facing configuration flags written at
// provisioning time.
type DeviceConfig struct {
	IsDispensing    bool `json:"isDispensing"`
	IsLocked        bool `json:"isLocked"`
	NotifyCaregiver bool `json:"notifyCaregiver"`
}

// DefaultDeviceConfig returns the flags a freshly provisioned device starts
// with.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		IsDispensing:    false,
		IsLocked:        false,
		NotifyCaregiver: true,
	}
}

// =============================================================================
// SNAPSHOT - Immutable engine input
// =============================================================================

// SubjectSnapshot is a consistent read of one subject's state, supplied by the
// caller. The engine never mutates it.
type SubjectSnapshot struct {
	Subject   SubjectID
	Schedules []ScheduleDefinition
	Ledger    []DoseRecord
	Pointer   *NextSchedulePointer
	StockKeys []string
}

// =============================================================================
// LEDGER DELTA - Engine output
// =============================================================================

// StatusChange transitions one existing ledger record.
type StatusChange struct {
	RecordID string
	Status   DoseStatus
	Taken    bool
}

// LedgerDelta is the batch of ledger mutations an engine operation emits.
// Callers apply the whole delta atomically so a dose is never marked Missed
// without its catch-up insert.
type LedgerDelta struct {
	Insert []DoseRecord
	Update []StatusChange
	Delete []string // record IDs
}

// Empty reports whether the delta contains no mutations.
func (d LedgerDelta) Empty() bool {
	return len(d.Insert) == 0 && len(d.Update) == 0 && len(d.Delete) == 0
}

// Merge appends the mutations of other into d.
func (d *LedgerDelta) Merge(other LedgerDelta) {
	d.Insert = append(d.Insert, other.Insert...)
	d.Update = append(d.Update, other.Update...)
	d.Delete = append(d.Delete, other.Delete...)
}

// =============================================================================
// ENGINE CONFIG
// =============================================================================

// Config carries the fixed parameters of the reconciliation engine. The
// timezone is explicit so display formatting is deterministic regardless of
// the server's local zone.
type Config struct {
	// Location is the timezone used for display formatting and the canonical
	// pointer timestamp.
	Location *time.Location

	// GracePeriod is how far past its due instant an unconfirmed dose may be
	// before it is marked Missed.
	GracePeriod time.Duration

	// Lookahead is the window the approaching-schedule selector considers.
	Lookahead time.Duration
}

// DefaultConfig returns the production parameters: one hour grace, one hour
// lookahead.
func DefaultConfig(loc *time.Location) Config {
	if loc == nil {
		loc = time.UTC
	}
	return Config{
		Location:    loc,
		GracePeriod: time.Hour,
		Lookahead:   time.Hour,
	}
}
