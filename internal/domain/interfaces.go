package domain

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// LedgerStore abstracts persistence of the whole ledger document.
type LedgerStore interface {
	// Load returns the persisted ledger, or EmptyLedger when none exists.
	// A document that can't be parsed yields a *CorruptStateError.
	Load() (Ledger, error)

	// Save overwrites the persisted ledger.
	Save(l Ledger) error
}

// Relocator moves unit artifacts between the pending and done areas.
type Relocator interface {
	// MoveToDone returns false with no error when the artifact isn't pending.
	MoveToDone(unit string) (bool, error)

	// MoveToPending returns false with no error when the artifact isn't done.
	MoveToPending(unit string) (bool, error)

	// List returns unit identifiers present in each area.
	List() (Artifacts, error)
}
