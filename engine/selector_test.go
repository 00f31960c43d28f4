package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pillbox/dispense-engine/engine"
)

// =============================================================================
// NEXT-DOSE SELECTION
// =============================================================================

func TestNextDose_EarliestFutureScheduled(t *testing.T) {
	// GIVEN: Past, taken, missed, and two future Scheduled records
	// WHEN: Selecting the next dose
	// THEN: The earliest future Scheduled record wins

	ledger := []engine.DoseRecord{
		dose("rec-1", "Aspirin", "100mg", testNow.Add(-2*time.Hour), engine.StatusScheduled),
		dose("rec-2", "Aspirin", "100mg", testNow.Add(6*time.Hour), engine.StatusScheduled),
		dose("rec-3", "Insulin", "10u", testNow.Add(3*time.Hour), engine.StatusScheduled),
		dose("rec-4", "Insulin", "10u", testNow.Add(time.Hour), engine.StatusTaken),
		dose("rec-5", "Syrup", "5ml", testNow.Add(2*time.Hour), engine.StatusMissed),
	}

	next := engine.NextDose(ledger, testNow)
	require.NotNil(t, next)
	assert.Equal(t, "rec-3", next.ID)
}

func TestNextDose_TieKeepsLedgerOrder(t *testing.T) {
	// GIVEN: Two future records due at the same instant
	// WHEN: Selecting
	// THEN: The earlier ledger position wins (stable selection)

	at := testNow.Add(time.Hour)
	ledger := []engine.DoseRecord{
		dose("rec-1", "Aspirin", "100mg", at, engine.StatusScheduled),
		dose("rec-2", "Insulin", "10u", at, engine.StatusScheduled),
	}

	next := engine.NextDose(ledger, testNow)
	require.NotNil(t, next)
	assert.Equal(t, "rec-1", next.ID)
}

func TestNextDose_NoneFuture(t *testing.T) {
	ledger := []engine.DoseRecord{
		dose("rec-1", "Aspirin", "100mg", testNow.Add(-time.Hour), engine.StatusScheduled),
	}
	assert.Nil(t, engine.NextDose(ledger, testNow))
}

// =============================================================================
// POINTER CHANGE-DETECTION
// =============================================================================

func TestResolvePointer_PublishOnFirstRun(t *testing.T) {
	ledger := []engine.DoseRecord{
		dose("rec-1", "Aspirin", "100mg", testNow.Add(5*time.Hour), engine.StatusScheduled),
	}

	op := engine.ResolvePointer(ledger, nil, testNow, time.UTC)
	require.Equal(t, engine.PointerPublish, op.Action)
	require.NotNil(t, op.Pointer)
	assert.Equal(t, "Aspirin", op.Pointer.MedicineName)
	assert.Equal(t, engine.CanonicalTimestamp(testNow.Add(5*time.Hour), time.UTC), op.Pointer.Time)
	assert.Equal(t, string(engine.StatusScheduled), op.Pointer.Status)
}

func TestResolvePointer_SecondRunIsNoOp(t *testing.T) {
	// GIVEN: A pointer published from an unchanged ledger
	// WHEN: Resolving again
	// THEN: No-op - change-detection is idempotent

	ledger := []engine.DoseRecord{
		dose("rec-1", "Aspirin", "100mg", testNow.Add(5*time.Hour), engine.StatusScheduled),
	}

	first := engine.ResolvePointer(ledger, nil, testNow, time.UTC)
	require.Equal(t, engine.PointerPublish, first.Action)

	second := engine.ResolvePointer(ledger, first.Pointer, testNow, time.UTC)
	assert.Equal(t, engine.PointerNone, second.Action)
}

func TestResolvePointer_PublishOnChange(t *testing.T) {
	// GIVEN: A published pointer for a dose that has since moved
	// WHEN: Resolving against the new ledger
	// THEN: Publish with the new rendering

	old := engine.RenderPointer(
		dose("rec-1", "Aspirin", "100mg", testNow.Add(2*time.Hour), engine.StatusScheduled), time.UTC)
	ledger := []engine.DoseRecord{
		dose("rec-2", "Aspirin", "100mg", testNow.Add(5*time.Hour), engine.StatusScheduled),
	}

	op := engine.ResolvePointer(ledger, &old, testNow, time.UTC)
	require.Equal(t, engine.PointerPublish, op.Action)
	assert.Equal(t, engine.CanonicalTimestamp(testNow.Add(5*time.Hour), time.UTC), op.Pointer.Time)
}

func TestResolvePointer_ClearWhenNoPendingDose(t *testing.T) {
	// GIVEN: A published pointer but no future Scheduled record
	// WHEN: Resolving
	// THEN: Clear - the pointer is never left dangling

	published := engine.RenderPointer(
		dose("rec-1", "Aspirin", "100mg", testNow.Add(-time.Hour), engine.StatusScheduled), time.UTC)
	ledger := []engine.DoseRecord{
		dose("rec-1", "Aspirin", "100mg", testNow.Add(-time.Hour), engine.StatusMissed),
	}

	op := engine.ResolvePointer(ledger, &published, testNow, time.UTC)
	assert.Equal(t, engine.PointerClear, op.Action)
}

func TestResolvePointer_NoOpWhenEmptyAndAbsent(t *testing.T) {
	op := engine.ResolvePointer(nil, nil, testNow, time.UTC)
	assert.Equal(t, engine.PointerNone, op.Action)
}

// =============================================================================
// RENDERING
// =============================================================================

func TestRenderPointer_Deterministic(t *testing.T) {
	// GIVEN: The same record and timezone
	// WHEN: Rendering twice
	// THEN: Identical pointers - the equality check depends on it

	rec := dose("rec-1", "Aspirin", "100mg", testNow.Add(5*time.Hour), engine.StatusScheduled)
	a := engine.RenderPointer(rec, time.UTC)
	b := engine.RenderPointer(rec, time.UTC)
	assert.Equal(t, a, b)
}

func TestRenderPointer_UsesConfiguredTimezone(t *testing.T) {
	manila := time.FixedZone("PST", 8*3600)
	rec := dose("rec-1", "Aspirin", "100mg",
		time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC), engine.StatusScheduled)

	p := engine.RenderPointer(rec, manila)
	assert.Equal(t, "2025-03-10T20:00:00+08:00", p.Time)
}
