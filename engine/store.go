/*
store.go - Persistence interfaces for schedules, ledger, pointer, and stock

PURPOSE:
  Defines the boundary between the pure engine and the external stores. The
  engine itself never performs I/O: callers read a SubjectSnapshot through
  these interfaces, run the engine, and apply the emitted delta.

ATOMIC DELTAS:
  LedgerStore.ApplyDelta applies a whole LedgerDelta as one transaction per
  subject. Either every mutation lands or none does, so a dose is never
  marked Missed without its catch-up insert.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite store
  - engine/store/memory.go: In-memory store for tests and dev

SEE ALSO:
  - types.go: SubjectSnapshot, LedgerDelta
*/
package engine

import "context"

// =============================================================================
// STORE INTERFACES - One per collaborator contract
// =============================================================================

// ScheduleStore persists the active schedule definitions per subject.
type ScheduleStore interface {
	// ListSchedules returns all active definitions for a subject.
	ListSchedules(ctx context.Context, subject SubjectID) ([]ScheduleDefinition, error)

	// PutSchedule creates or replaces a definition, keyed by medicine name.
	PutSchedule(ctx context.Context, def ScheduleDefinition) error

	// DeleteSchedule removes a definition by medicine name and dose.
	DeleteSchedule(ctx context.Context, subject SubjectID, medicineName, medicineDose string) error
}

// LedgerStore persists the historical dose ledger per subject.
type LedgerStore interface {
	// ListRecords returns the full ledger for a subject in insertion order.
	ListRecords(ctx context.Context, subject SubjectID) ([]DoseRecord, error)

	// ApplyDelta applies inserts, status updates, and deletes atomically.
	ApplyDelta(ctx context.Context, subject SubjectID, delta LedgerDelta) error
}

// PointerStore holds the device-facing next-schedule pointer and the device
// configuration flags.
type PointerStore interface {
	// GetPointer returns the published pointer, or nil if absent.
	GetPointer(ctx context.Context, subject SubjectID) (*NextSchedulePointer, error)

	// SetPointer publishes (overwrites) the pointer.
	SetPointer(ctx context.Context, subject SubjectID, p NextSchedulePointer) error

	// RemovePointer clears the pointer. Removing an absent pointer is not an
	// error.
	RemovePointer(ctx context.Context, subject SubjectID) error

	// SetDeviceConfig writes the per-subject device flags.
	SetDeviceConfig(ctx context.Context, subject SubjectID, cfg DeviceConfig) error
}

// StockStore tracks remaining-quantity counters per medicine. The engine only
// prunes keys; dispensing decrements happen device-side.
type StockStore interface {
	// ListStockKeys returns the medicine names present in the stock table.
	ListStockKeys(ctx context.Context, subject SubjectID) ([]string, error)

	// RemoveStockKeys deletes the named stock entries.
	RemoveStockKeys(ctx context.Context, subject SubjectID, keys []string) error
}

// Store bundles every collaborator the scheduling endpoints need.
type Store interface {
	ScheduleStore
	LedgerStore
	PointerStore
	StockStore
}

// SubjectLister enumerates subjects with at least one active definition.
// The background reconcile scheduler uses it to sweep all devices.
type SubjectLister interface {
	ListSubjects(ctx context.Context) ([]SubjectID, error)
}
