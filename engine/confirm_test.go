package engine_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pillbox/dispense-engine/engine"
)

// =============================================================================
// RECURRING CONFIRMATION
// =============================================================================

func TestConfirm_Recurring_AdvancesCycle(t *testing.T) {
	// GIVEN: A recurring 6h Aspirin schedule with a pending Scheduled dose
	// WHEN: Confirming the dose
	// THEN: The record goes Taken, the next occurrence lands at now+6h, and
	//       the definition's stored date/time advance with it

	def := schedule("Aspirin", "100mg", 6, testNow)
	ledger := []engine.DoseRecord{
		dose("rec-1", "Aspirin", "100mg", testNow.Add(-10*time.Minute), engine.StatusScheduled),
	}

	conf, err := engine.Confirm(def, ledger, fixedClock(testNow), time.UTC)
	require.NoError(t, err)

	require.Len(t, conf.Ledger.Update, 1)
	assert.Equal(t, "rec-1", conf.Ledger.Update[0].RecordID)
	assert.Equal(t, engine.StatusTaken, conf.Ledger.Update[0].Status)
	assert.True(t, conf.Ledger.Update[0].Taken)

	nextTime := testNow.Add(6 * time.Hour)
	require.Len(t, conf.Ledger.Insert, 1)
	inserted := conf.Ledger.Insert[0]
	assert.NotEmpty(t, inserted.ID)
	assert.True(t, inserted.Time.Equal(nextTime))
	assert.Equal(t, engine.StatusScheduled, inserted.Status)
	assert.Equal(t, engine.ClockTime(nextTime, time.UTC), inserted.ScheduledTime)

	require.NotNil(t, conf.UpdatedSchedule)
	assert.True(t, conf.UpdatedSchedule.ScheduledDate.Equal(nextTime))
	assert.Equal(t, engine.ClockTime(nextTime, time.UTC), conf.UpdatedSchedule.ScheduledTime)

	assert.False(t, conf.RetireSchedule)
}

func TestConfirm_Recurring_InvalidInterval(t *testing.T) {
	def := schedule("Aspirin", "100mg", 6, testNow)
	def.IntervalValue = decimal.Zero
	ledger := []engine.DoseRecord{
		dose("rec-1", "Aspirin", "100mg", testNow, engine.StatusScheduled),
	}

	_, err := engine.Confirm(def, ledger, fixedClock(testNow), time.UTC)
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrInvalidInterval))
}

// =============================================================================
// ONE-TIME CONFIRMATION
// =============================================================================

func TestConfirm_Once_RetiresEverything(t *testing.T) {
	// GIVEN: A one-time medicine with a pending Scheduled dose
	// WHEN: Confirming
	// THEN: The record goes Taken and the caller is told to delete the
	//       definition, the stock key, and the pointer - no new occurrence

	def := schedule("Antibiotic", "500mg", 0, testNow)
	def.IntervalType = engine.IntervalOnce
	def.IntervalValue = decimal.Zero
	ledger := []engine.DoseRecord{
		dose("rec-1", "Antibiotic", "500mg", testNow.Add(-5*time.Minute), engine.StatusScheduled),
	}

	conf, err := engine.Confirm(def, ledger, fixedClock(testNow), time.UTC)
	require.NoError(t, err)

	assert.True(t, conf.RetireSchedule)
	assert.Equal(t, "Antibiotic", conf.StockKey)
	assert.Empty(t, conf.Ledger.Insert)
	assert.Nil(t, conf.UpdatedSchedule)

	require.Len(t, conf.Ledger.Update, 1)
	assert.Equal(t, engine.StatusTaken, conf.Ledger.Update[0].Status)
}

// =============================================================================
// FAILURE
// =============================================================================

func TestConfirm_NoPendingDose_HistoryNotFound(t *testing.T) {
	// GIVEN: Only a Taken record for the medicine
	// WHEN: Confirming
	// THEN: ErrHistoryNotFound - confirmation without a pending dose

	def := schedule("Aspirin", "100mg", 6, testNow)
	ledger := []engine.DoseRecord{
		dose("rec-1", "Aspirin", "100mg", testNow.Add(-time.Hour), engine.StatusTaken),
	}

	_, err := engine.Confirm(def, ledger, fixedClock(testNow), time.UTC)
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrHistoryNotFound))
}

func TestConfirm_DoseMismatch_HistoryNotFound(t *testing.T) {
	// The pending record must match both medicine name and dose.
	def := schedule("Aspirin", "100mg", 6, testNow)
	ledger := []engine.DoseRecord{
		dose("rec-1", "Aspirin", "200mg", testNow, engine.StatusScheduled),
	}

	_, err := engine.Confirm(def, ledger, fixedClock(testNow), time.UTC)
	assert.True(t, errors.Is(err, engine.ErrHistoryNotFound))
}
