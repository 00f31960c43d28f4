package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pillbox/dispense-engine/engine"
)

func TestPartitionOrphans_ExhaustiveAndDisjoint(t *testing.T) {
	// GIVEN: Three definitions, a mixed ledger with one orphan, and one
	//        definition with no history at all
	// WHEN: Partitioning
	// THEN: Every entry is exactly kept or deleted, and no-history plus
	//       matched medicines accounts for every definition

	defs := []engine.ScheduleDefinition{
		schedule("Aspirin", "100mg", 6, testNow),
		schedule("Insulin", "10u", 8, testNow),
		schedule("Syrup", "5ml", 4, testNow),
	}
	ledger := []engine.DoseRecord{
		dose("rec-1", "Aspirin", "100mg", testNow.Add(-6*time.Hour), engine.StatusTaken),
		dose("rec-2", "Aspirin", "100mg", testNow.Add(2*time.Hour), engine.StatusScheduled),
		dose("rec-3", "Vitamin D", "1000IU", testNow.Add(time.Hour), engine.StatusScheduled),
		dose("rec-4", "Insulin", "10u", testNow.Add(-time.Hour), engine.StatusMissed),
	}

	report := engine.PartitionOrphans(defs, ledger)

	assert.Len(t, report.Kept, 3)
	assert.Len(t, report.Deleted, 1)
	assert.Equal(t, len(ledger), len(report.Kept)+len(report.Deleted))
	assert.Equal(t, "rec-3", report.Deleted[0].ID)

	// Syrup has no history; Aspirin and Insulin are matched.
	assert.Equal(t, []string{"Syrup"}, report.NoHistory)
	matched := len(defs) - len(report.NoHistory)
	assert.Equal(t, len(defs), matched+len(report.NoHistory))
}

func TestPartitionOrphans_EmptyLedger(t *testing.T) {
	defs := []engine.ScheduleDefinition{schedule("Aspirin", "100mg", 6, testNow)}

	report := engine.PartitionOrphans(defs, nil)
	assert.Empty(t, report.Kept)
	assert.Empty(t, report.Deleted)
	assert.Equal(t, []string{"Aspirin"}, report.NoHistory)
}

func TestOrphanReport_DeltaOnlyDeletes(t *testing.T) {
	defs := []engine.ScheduleDefinition{schedule("Aspirin", "100mg", 6, testNow)}
	ledger := []engine.DoseRecord{
		dose("rec-1", "Vitamin D", "1000IU", testNow, engine.StatusScheduled),
	}

	delta := engine.PartitionOrphans(defs, ledger).Delta()
	assert.Equal(t, []string{"rec-1"}, delta.Delete)
	assert.Empty(t, delta.Insert)
	assert.Empty(t, delta.Update)
}

func TestPruneStock_RemovesStaleKeys(t *testing.T) {
	// GIVEN: A stock table with a key for a medicine that was deprovisioned
	// WHEN: Pruning
	// THEN: Only the stale key is reported

	defs := []engine.ScheduleDefinition{
		schedule("Aspirin", "100mg", 6, testNow),
		schedule("Insulin", "10u", 8, testNow),
	}
	stale := engine.PruneStock(defs, []string{"Aspirin", "Vitamin D", "Insulin"})
	assert.Equal(t, []string{"Vitamin D"}, stale)
}

func TestPruneStock_AllValid(t *testing.T) {
	defs := []engine.ScheduleDefinition{schedule("Aspirin", "100mg", 6, testNow)}
	assert.Empty(t, engine.PruneStock(defs, []string{"Aspirin"}))
}
