/*
Package sqlite provides a SQLite-backed implementation of the engine store
interfaces.

PURPOSE:
  Implements every persistence contract the dispense engine depends on
  (ScheduleStore, LedgerStore, PointerStore, StockStore, SubjectLister)
  using SQLite. The same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

KEY TABLES:
  schedules:     Active schedule definitions, keyed (subject, medicine_name)
  dose_records:  Historical dose ledger
  next_schedule: Device-facing pointer, one row per subject
  stocks:        Remaining-quantity counters per medicine
  device_config: Per-subject device flags

ATOMIC DELTAS:
  ApplyDelta runs the whole LedgerDelta inside one SQL transaction. Either
  every insert/update/delete lands or none does, so a dose is never marked
  Missed without its catch-up insert.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/dispense.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - engine/store.go: Interface definitions
  - engine/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/pillbox/dispense-engine/engine"
)

// Store implements all engine storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Active schedule definitions
	CREATE TABLE IF NOT EXISTS schedules (
		subject TEXT NOT NULL,
		medicine_name TEXT NOT NULL,
		medicine_dose TEXT NOT NULL,
		interval_type TEXT NOT NULL,
		interval_value TEXT NOT NULL,
		scheduled_time TEXT NOT NULL,
		scheduled_date TEXT NOT NULL,
		slot_number INTEGER NOT NULL,
		PRIMARY KEY (subject, medicine_name)
	);

	-- Historical dose ledger
	CREATE TABLE IF NOT EXISTS dose_records (
		id TEXT PRIMARY KEY,
		subject TEXT NOT NULL,
		medicine_name TEXT NOT NULL,
		medicine_dose TEXT NOT NULL,
		scheduled_time TEXT NOT NULL,
		time TEXT NOT NULL,
		status TEXT NOT NULL,
		taken BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_dose_records_subject
		ON dose_records(subject);
	CREATE INDEX IF NOT EXISTS idx_dose_records_subject_status
		ON dose_records(subject, status);

	-- Device-facing next-schedule pointer
	CREATE TABLE IF NOT EXISTS next_schedule (
		subject TEXT PRIMARY KEY,
		medicine_name TEXT NOT NULL,
		medicine_dose TEXT NOT NULL,
		scheduled_time TEXT NOT NULL,
		time TEXT NOT NULL,
		status TEXT NOT NULL
	);

	-- Remaining-quantity counters
	CREATE TABLE IF NOT EXISTS stocks (
		subject TEXT NOT NULL,
		medicine_name TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (subject, medicine_name)
	);

	-- Device configuration flags
	CREATE TABLE IF NOT EXISTS device_config (
		subject TEXT PRIMARY KEY,
		is_dispensing BOOLEAN NOT NULL,
		is_locked BOOLEAN NOT NULL,
		notify_caregiver BOOLEAN NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SCHEDULE STORE (engine.ScheduleStore interface)
// =============================================================================

func (s *Store) ListSchedules(ctx context.Context, subject engine.SubjectID) ([]engine.ScheduleDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT medicine_name, medicine_dose, interval_type, interval_value,
		       scheduled_time, scheduled_date, slot_number
		FROM schedules WHERE subject = ?
		ORDER BY medicine_name`, subject)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer rows.Close()

	var defs []engine.ScheduleDefinition
	for rows.Next() {
		var def engine.ScheduleDefinition
		var intervalValue, scheduledDate string
		if err := rows.Scan(&def.MedicineName, &def.MedicineDose, &def.IntervalType,
			&intervalValue, &def.ScheduledTime, &scheduledDate, &def.SlotNumber); err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		def.Subject = subject

		value, err := decimal.NewFromString(intervalValue)
		if err != nil {
			return nil, fmt.Errorf("schedule %q: %w", def.MedicineName, engine.ErrInvalidInterval)
		}
		def.IntervalValue = value

		def.ScheduledDate, err = time.Parse(time.RFC3339, scheduledDate)
		if err != nil {
			return nil, fmt.Errorf("failed to parse schedule date: %w", err)
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

func (s *Store) PutSchedule(ctx context.Context, def engine.ScheduleDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO schedules
		(subject, medicine_name, medicine_dose, interval_type, interval_value,
		 scheduled_time, scheduled_date, slot_number)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(subject, medicine_name) DO UPDATE SET
			medicine_dose = excluded.medicine_dose,
			interval_type = excluded.interval_type,
			interval_value = excluded.interval_value,
			scheduled_time = excluded.scheduled_time,
			scheduled_date = excluded.scheduled_date,
			slot_number = excluded.slot_number`,
		def.Subject,
		def.MedicineName,
		def.MedicineDose,
		def.IntervalType,
		def.IntervalValue.String(),
		def.ScheduledTime,
		def.ScheduledDate.UTC().Format(time.RFC3339),
		def.SlotNumber,
	)
	if err != nil {
		return fmt.Errorf("failed to put schedule: %w", err)
	}
	return nil
}

func (s *Store) DeleteSchedule(ctx context.Context, subject engine.SubjectID, medicineName, medicineDose string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM schedules WHERE subject = ? AND medicine_name = ? AND medicine_dose = ?`,
		subject, medicineName, medicineDose)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	return nil
}

// =============================================================================
// LEDGER STORE (engine.LedgerStore interface)
// =============================================================================

func (s *Store) ListRecords(ctx context.Context, subject engine.SubjectID) ([]engine.DoseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, medicine_name, medicine_dose, scheduled_time, time, status, taken
		FROM dose_records WHERE subject = ?
		ORDER BY created_at, id`, subject)
	if err != nil {
		return nil, fmt.Errorf("failed to list dose records: %w", err)
	}
	defer rows.Close()

	var records []engine.DoseRecord
	for rows.Next() {
		var rec engine.DoseRecord
		var at string
		if err := rows.Scan(&rec.ID, &rec.MedicineName, &rec.MedicineDose,
			&rec.ScheduledTime, &at, &rec.Status, &rec.Taken); err != nil {
			return nil, fmt.Errorf("failed to scan dose record: %w", err)
		}

		parsed, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return nil, fmt.Errorf("failed to parse dose time: %w", err)
		}
		rec.Time = parsed
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ApplyDelta applies the whole ledger delta in one SQL transaction.
func (s *Store) ApplyDelta(ctx context.Context, subject engine.SubjectID, delta engine.LedgerDelta) error {
	if delta.Empty() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delta transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range delta.Delete {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM dose_records WHERE subject = ? AND id = ?`, subject, id); err != nil {
			return fmt.Errorf("failed to delete dose record: %w", err)
		}
	}

	for _, u := range delta.Update {
		if _, err := tx.ExecContext(ctx,
			`UPDATE dose_records SET status = ?, taken = ? WHERE subject = ? AND id = ?`,
			u.Status, u.Taken, subject, u.RecordID); err != nil {
			return fmt.Errorf("failed to update dose record: %w", err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, rec := range delta.Insert {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO dose_records
			(id, subject, medicine_name, medicine_dose, scheduled_time, time, status, taken, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, subject, rec.MedicineName, rec.MedicineDose, rec.ScheduledTime,
			rec.Time.UTC().Format(time.RFC3339), rec.Status, rec.Taken, now); err != nil {
			return fmt.Errorf("failed to insert dose record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delta: %w", err)
	}
	return nil
}

// =============================================================================
// POINTER STORE (engine.PointerStore interface)
// =============================================================================

func (s *Store) GetPointer(ctx context.Context, subject engine.SubjectID) (*engine.NextSchedulePointer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p engine.NextSchedulePointer
	err := s.db.QueryRowContext(ctx, `
		SELECT medicine_name, medicine_dose, scheduled_time, time, status
		FROM next_schedule WHERE subject = ?`, subject).
		Scan(&p.MedicineName, &p.MedicineDose, &p.ScheduledTime, &p.Time, &p.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pointer: %w", err)
	}
	return &p, nil
}

func (s *Store) SetPointer(ctx context.Context, subject engine.SubjectID, p engine.NextSchedulePointer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO next_schedule
		(subject, medicine_name, medicine_dose, scheduled_time, time, status)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(subject) DO UPDATE SET
			medicine_name = excluded.medicine_name,
			medicine_dose = excluded.medicine_dose,
			scheduled_time = excluded.scheduled_time,
			time = excluded.time,
			status = excluded.status`,
		subject, p.MedicineName, p.MedicineDose, p.ScheduledTime, p.Time, p.Status)
	if err != nil {
		return fmt.Errorf("failed to set pointer: %w", err)
	}
	return nil
}

func (s *Store) RemovePointer(ctx context.Context, subject engine.SubjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM next_schedule WHERE subject = ?`, subject)
	if err != nil {
		return fmt.Errorf("failed to remove pointer: %w", err)
	}
	return nil
}

func (s *Store) SetDeviceConfig(ctx context.Context, subject engine.SubjectID, cfg engine.DeviceConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO device_config (subject, is_dispensing, is_locked, notify_caregiver)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(subject) DO UPDATE SET
			is_dispensing = excluded.is_dispensing,
			is_locked = excluded.is_locked,
			notify_caregiver = excluded.notify_caregiver`,
		subject, cfg.IsDispensing, cfg.IsLocked, cfg.NotifyCaregiver)
	if err != nil {
		return fmt.Errorf("failed to set device config: %w", err)
	}
	return nil
}

// =============================================================================
// STOCK STORE (engine.StockStore interface)
// =============================================================================

func (s *Store) ListStockKeys(ctx context.Context, subject engine.SubjectID) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT medicine_name FROM stocks WHERE subject = ? ORDER BY medicine_name`, subject)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan stock key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *Store) RemoveStockKeys(ctx context.Context, subject engine.SubjectID, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin stock transaction: %w", err)
	}
	defer tx.Rollback()

	for _, k := range keys {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM stocks WHERE subject = ? AND medicine_name = ?`, subject, k); err != nil {
			return fmt.Errorf("failed to remove stock key: %w", err)
		}
	}
	return tx.Commit()
}

// =============================================================================
// SUBJECT LISTER (engine.SubjectLister interface)
// =============================================================================

func (s *Store) ListSubjects(ctx context.Context) ([]engine.SubjectID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT subject FROM schedules ORDER BY subject`)
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	defer rows.Close()

	var subjects []engine.SubjectID
	for rows.Next() {
		var subject engine.SubjectID
		if err := rows.Scan(&subject); err != nil {
			return nil, fmt.Errorf("failed to scan subject: %w", err)
		}
		subjects = append(subjects, subject)
	}
	return subjects, rows.Err()
}
