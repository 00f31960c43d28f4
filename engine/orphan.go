/*
orphan.go - Orphaned ledger and stock reconciliation

PURPOSE:
  Maintenance pass over one subject's full state. Partitions the ledger into
  entries backed by an active schedule definition (kept) and entries that are
  not (deleted), reports which medicines have zero history, and computes the
  stock keys with no matching definition. Invoked explicitly, not on every
  schedule check.

PROPERTIES:
  The partition is exhaustive and disjoint: every ledger entry lands in
  exactly one of Kept or Deleted, and NoHistory plus the matched medicines
  account for every active definition.
*/
package engine

// OrphanReport is the result of partitioning a subject's ledger against the
// active schedule definitions.
type OrphanReport struct {
	Kept    []DoseRecord
	Deleted []DoseRecord

	// NoHistory lists active medicines with zero ledger entries.
	// Informational only; no mutation follows from it.
	NoHistory []string
}

// Delta returns the ledger delta that removes the orphaned entries.
func (r OrphanReport) Delta() LedgerDelta {
	var d LedgerDelta
	for _, rec := range r.Deleted {
		d.Delete = append(d.Delete, rec.ID)
	}
	return d
}

// PartitionOrphans classifies every ledger entry as kept or deleted based on
// whether its medicine still has an active definition.
func PartitionOrphans(defs []ScheduleDefinition, ledger []DoseRecord) OrphanReport {
	active := make(map[string]bool, len(defs))
	for _, def := range defs {
		active[def.MedicineName] = true
	}

	report := OrphanReport{
		Kept:    make([]DoseRecord, 0, len(ledger)),
		Deleted: make([]DoseRecord, 0),
	}

	seen := make(map[string]bool, len(defs))
	for _, rec := range ledger {
		if active[rec.MedicineName] {
			report.Kept = append(report.Kept, rec)
			seen[rec.MedicineName] = true
		} else {
			report.Deleted = append(report.Deleted, rec)
		}
	}

	for _, def := range defs {
		if !seen[def.MedicineName] {
			report.NoHistory = append(report.NoHistory, def.MedicineName)
		}
	}
	return report
}

// PruneStock returns the stock keys that no longer correspond to an active
// schedule definition. The engine only prunes keys; it never decrements
// counts.
func PruneStock(defs []ScheduleDefinition, stockKeys []string) []string {
	active := make(map[string]bool, len(defs))
	for _, def := range defs {
		active[def.MedicineName] = true
	}

	var stale []string
	for _, key := range stockKeys {
		if !active[key] {
			stale = append(stale, key)
		}
	}
	return stale
}
