// Package store provides in-memory implementations of the engine store
// interfaces, used by tests and in-memory dev runs.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/pillbox/dispense-engine/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements engine.Store and engine.SubjectLister with plain maps.
type Memory struct {
	mu        sync.RWMutex
	schedules map[engine.SubjectID][]engine.ScheduleDefinition
	ledger    map[engine.SubjectID][]engine.DoseRecord
	pointers  map[engine.SubjectID]engine.NextSchedulePointer
	configs   map[engine.SubjectID]engine.DeviceConfig
	stocks    map[engine.SubjectID]map[string]int
}

func NewMemory() *Memory {
	return &Memory{
		schedules: make(map[engine.SubjectID][]engine.ScheduleDefinition),
		ledger:    make(map[engine.SubjectID][]engine.DoseRecord),
		pointers:  make(map[engine.SubjectID]engine.NextSchedulePointer),
		configs:   make(map[engine.SubjectID]engine.DeviceConfig),
		stocks:    make(map[engine.SubjectID]map[string]int),
	}
}

// -----------------------------------------------------------------------------
// ScheduleStore
// -----------------------------------------------------------------------------

func (m *Memory) ListSchedules(_ context.Context, subject engine.SubjectID) ([]engine.ScheduleDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]engine.ScheduleDefinition, len(m.schedules[subject]))
	copy(out, m.schedules[subject])
	return out, nil
}

func (m *Memory) PutSchedule(_ context.Context, def engine.ScheduleDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	defs := m.schedules[def.Subject]
	for i, existing := range defs {
		if existing.MedicineName == def.MedicineName {
			defs[i] = def
			return nil
		}
	}
	m.schedules[def.Subject] = append(defs, def)
	return nil
}

func (m *Memory) DeleteSchedule(_ context.Context, subject engine.SubjectID, medicineName, medicineDose string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	defs := m.schedules[subject]
	for i, def := range defs {
		if def.MedicineName == medicineName && def.MedicineDose == medicineDose {
			m.schedules[subject] = append(defs[:i:i], defs[i+1:]...)
			return nil
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// LedgerStore
// -----------------------------------------------------------------------------

func (m *Memory) ListRecords(_ context.Context, subject engine.SubjectID) ([]engine.DoseRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]engine.DoseRecord, len(m.ledger[subject]))
	copy(out, m.ledger[subject])
	return out, nil
}

func (m *Memory) ApplyDelta(_ context.Context, subject engine.SubjectID, delta engine.LedgerDelta) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ledger[subject] = delta.Apply(m.ledger[subject])
	return nil
}

// SeedRecord appends a ledger record directly, bypassing delta application.
// Test fixture helper.
func (m *Memory) SeedRecord(subject engine.SubjectID, rec engine.DoseRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledger[subject] = append(m.ledger[subject], rec)
}

// -----------------------------------------------------------------------------
// PointerStore
// -----------------------------------------------------------------------------

func (m *Memory) GetPointer(_ context.Context, subject engine.SubjectID) (*engine.NextSchedulePointer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.pointers[subject]
	if !ok {
		return nil, nil
	}
	out := p
	return &out, nil
}

func (m *Memory) SetPointer(_ context.Context, subject engine.SubjectID, p engine.NextSchedulePointer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pointers[subject] = p
	return nil
}

func (m *Memory) RemovePointer(_ context.Context, subject engine.SubjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pointers, subject)
	return nil
}

func (m *Memory) SetDeviceConfig(_ context.Context, subject engine.SubjectID, cfg engine.DeviceConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[subject] = cfg
	return nil
}

// DeviceConfig returns the stored config and whether one exists. Test helper.
func (m *Memory) DeviceConfig(subject engine.SubjectID) (engine.DeviceConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.configs[subject]
	return cfg, ok
}

// -----------------------------------------------------------------------------
// StockStore
// -----------------------------------------------------------------------------

func (m *Memory) ListStockKeys(_ context.Context, subject engine.SubjectID) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.stocks[subject]))
	for k := range m.stocks[subject] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *Memory) RemoveStockKeys(_ context.Context, subject engine.SubjectID, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.stocks[subject], k)
	}
	return nil
}

// SetStock sets a stock counter. Test fixture helper.
func (m *Memory) SetStock(subject engine.SubjectID, medicineName string, quantity int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stocks[subject] == nil {
		m.stocks[subject] = make(map[string]int)
	}
	m.stocks[subject][medicineName] = quantity
}

// -----------------------------------------------------------------------------
// SubjectLister
// -----------------------------------------------------------------------------

func (m *Memory) ListSubjects(_ context.Context) ([]engine.SubjectID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	subjects := make([]engine.SubjectID, 0, len(m.schedules))
	for s, defs := range m.schedules {
		if len(defs) > 0 {
			subjects = append(subjects, s)
		}
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i] < subjects[j] })
	return subjects, nil
}
