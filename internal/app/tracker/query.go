package tracker

import (
	"slices"

	"github.com/tutu-network/studytrack/internal/domain"
	"github.com/tutu-network/studytrack/internal/infra/observability"
)

// ─── Query Surface ──────────────────────────────────────────────────────────
// Read-only views. They take the engine lock so they never interleave with a
// half-finished mutation.

// State returns the current ledger.
func (e *Engine) State() (domain.Ledger, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	l, err := e.load()
	if err != nil {
		return domain.Ledger{}, err
	}
	return l.Clone(), nil
}

// ListArtifacts returns what is on disk in each area, ignoring the ledger.
func (e *Engine) ListArtifacts() (domain.Artifacts, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.files.List()
}

// Reconcile compares the ledger against the filesystem. It never repairs.
func (e *Engine) Reconcile() (domain.Reconciliation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ledger, err := e.load()
	if err != nil {
		return domain.Reconciliation{}, err
	}
	arts, err := e.files.List()
	if err != nil {
		return domain.Reconciliation{}, err
	}

	r := domain.Reconciliation{Misplaced: []string{}, Untracked: []string{}}
	for _, unit := range ledger.Completed {
		if slices.Contains(arts.Available, unit) {
			r.Misplaced = append(r.Misplaced, unit)
		}
	}
	for _, unit := range arts.Done {
		if !ledger.IsCompleted(unit) {
			r.Untracked = append(r.Untracked, unit)
		}
	}
	r.InSync = r.Divergent() == 0
	observability.DivergentArtifacts.Set(float64(r.Divergent()))
	return r, nil
}

// LastAction returns the most recent successful mutation, or nil.
func (e *Engine) LastAction() *domain.Action {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.last == nil {
		return nil
	}
	a := *e.last
	if a.Prize != nil {
		a.Prize = a.Prize.Clone()
	}
	return &a
}
