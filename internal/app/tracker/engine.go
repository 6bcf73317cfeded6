// Package tracker is the completion engine: it keeps the persisted ledger and
// the location of unit artifacts in step.
//
// Every mutation is a read-modify-write over the whole ledger document, done
// under one mutex:
//  1. Load the ledger
//  2. Check the precondition (a failed one is a result, not an error)
//  3. Move the artifact, if any
//  4. Save the ledger
//
// A failed move aborts before the save, so a completed unit never points at
// an artifact left in pending. A failed save after a successful move is
// returned and logged; the two effects share no transaction.
package tracker

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tutu-network/studytrack/internal/domain"
	"github.com/tutu-network/studytrack/internal/infra/observability"
)

// Engine applies tracker operations. Construct one per process with New.
type Engine struct {
	mu    sync.Mutex
	store domain.LedgerStore
	files domain.Relocator
	log   logrus.FieldLogger

	now   func() time.Time
	newID func() string
	last  *domain.Action
}

// New creates an Engine over the given store and relocator.
func New(store domain.LedgerStore, files domain.Relocator, log logrus.FieldLogger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{
		store: store,
		files: files,
		log:   log.WithField("component", "tracker"),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// ─── Mutations ──────────────────────────────────────────────────────────────

// Complete marks unit as done and moves its artifact to the done area.
// Completing an already-completed or empty unit is a no-op result.
func (e *Engine) Complete(unit string) (domain.CompleteResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	finish := observability.ObserveOperation("complete")

	if unit == "" {
		finish(observability.OutcomeRejected)
		return domain.CompleteResult{OK: false, Reason: domain.ReasonAlreadyDone}, nil
	}
	if err := domain.ValidateUnit(unit); err != nil {
		finish(observability.OutcomeRejected)
		return domain.CompleteResult{OK: false, Reason: domain.ReasonInvalidUnit}, nil
	}

	ledger, err := e.load()
	if err != nil {
		finish(observability.OutcomeError)
		return domain.CompleteResult{}, err
	}
	if ledger.IsCompleted(unit) {
		finish(observability.OutcomeRejected)
		return domain.CompleteResult{OK: false, Reason: domain.ReasonAlreadyDone}, nil
	}

	ledger.Completed = append(ledger.Completed, unit)
	moved, err := e.files.MoveToDone(unit)
	if err != nil {
		finish(observability.OutcomeError)
		e.log.WithError(err).WithField("unit", unit).Error("complete: artifact move failed, ledger unchanged")
		return domain.CompleteResult{}, err
	}
	if moved {
		observability.ArtifactMovesTotal.WithLabelValues("done").Inc()
	}

	if err := e.save(ledger); err != nil {
		finish(observability.OutcomeError)
		e.log.WithError(err).WithFields(logrus.Fields{"unit": unit, "moved": moved}).
			Error("complete: ledger not saved after artifact move")
		return domain.CompleteResult{}, err
	}

	e.record(domain.Action{Kind: domain.ActionComplete, Unit: unit, Moved: moved})
	e.log.WithFields(logrus.Fields{"unit": unit, "moved": moved}).Info("unit completed")
	finish(observability.OutcomeOK)
	return domain.CompleteResult{OK: true, Moved: moved}, nil
}

// Undo reverts a completion and moves the artifact back to pending.
func (e *Engine) Undo(unit string) (domain.UndoResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	finish := observability.ObserveOperation("undo")

	ledger, err := e.load()
	if err != nil {
		finish(observability.OutcomeError)
		return domain.UndoResult{}, err
	}
	idx := slices.Index(ledger.Completed, unit)
	if idx < 0 {
		finish(observability.OutcomeRejected)
		return domain.UndoResult{OK: false}, nil
	}

	ledger.Completed = append(ledger.Completed[:idx], ledger.Completed[idx+1:]...)
	movedBack, err := e.moveBack(unit)
	if err != nil {
		finish(observability.OutcomeError)
		e.log.WithError(err).WithField("unit", unit).Error("undo: artifact move failed, ledger unchanged")
		return domain.UndoResult{}, err
	}

	if err := e.save(ledger); err != nil {
		finish(observability.OutcomeError)
		e.log.WithError(err).WithFields(logrus.Fields{"unit": unit, "moved_back": movedBack}).
			Error("undo: ledger not saved after artifact move")
		return domain.UndoResult{}, err
	}

	e.record(domain.Action{Kind: domain.ActionUndo, Unit: unit, Moved: movedBack})
	e.log.WithFields(logrus.Fields{"unit": unit, "moved_back": movedBack}).Info("unit reopened")
	finish(observability.OutcomeOK)
	return domain.UndoResult{OK: true, MovedBack: movedBack}, nil
}

// AddPrize pushes a prize onto the ledger. A nil prize is stored as {}.
func (e *Engine) AddPrize(p domain.Prize) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	finish := observability.ObserveOperation("add_prize")

	ledger, err := e.load()
	if err != nil {
		finish(observability.OutcomeError)
		return err
	}
	if p == nil {
		p = domain.Prize{}
	}
	p = p.Clone()
	ledger.Prizes = append(ledger.Prizes, p)

	if err := e.save(ledger); err != nil {
		finish(observability.OutcomeError)
		return err
	}

	e.record(domain.Action{Kind: domain.ActionAddPrize, Prize: p.Clone()})
	e.log.WithField("prize", p.Name()).Info("prize added")
	finish(observability.OutcomeOK)
	return nil
}

// RemovePrize pops the most recent prize. With no prizes it does nothing,
// and nothing is written.
func (e *Engine) RemovePrize() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	finish := observability.ObserveOperation("remove_prize")

	ledger, err := e.load()
	if err != nil {
		finish(observability.OutcomeError)
		return err
	}
	if len(ledger.Prizes) == 0 {
		finish(observability.OutcomeOK)
		return nil
	}

	last := ledger.Prizes[len(ledger.Prizes)-1]
	ledger.Prizes = ledger.Prizes[:len(ledger.Prizes)-1]
	if err := e.save(ledger); err != nil {
		finish(observability.OutcomeError)
		return err
	}

	e.record(domain.Action{Kind: domain.ActionRemovePrize, Prize: last})
	e.log.WithField("prize", last.Name()).Info("prize removed")
	finish(observability.OutcomeOK)
	return nil
}

// Reset moves every completed unit's artifact back to pending and clears
// the ledger. Units whose artifact can't be moved stay completed, and the
// move errors are returned together after the ledger is saved.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	finish := observability.ObserveOperation("reset")

	ledger, err := e.load()
	if err != nil {
		finish(observability.OutcomeError)
		return err
	}

	next := domain.EmptyLedger()
	var moveErrs []error
	movedBack := 0
	for _, unit := range ledger.Completed {
		ok, err := e.moveBack(unit)
		if err != nil {
			moveErrs = append(moveErrs, err)
			next.Completed = append(next.Completed, unit)
			continue
		}
		if ok {
			movedBack++
		}
	}

	if err := e.save(next); err != nil {
		finish(observability.OutcomeError)
		return errors.Join(append(moveErrs, err)...)
	}
	if len(moveErrs) > 0 {
		finish(observability.OutcomeError)
		e.log.WithField("kept", next.Completed).Error("reset: some artifacts could not be moved back")
		return fmt.Errorf("reset: %w", errors.Join(moveErrs...))
	}

	e.record(domain.Action{Kind: domain.ActionReset, Moved: movedBack > 0})
	e.log.WithFields(logrus.Fields{"units": len(ledger.Completed), "moved_back": movedBack}).Info("tracker reset")
	finish(observability.OutcomeOK)
	return nil
}

// ─── Internal helpers ───────────────────────────────────────────────────────

func (e *Engine) load() (domain.Ledger, error) {
	l, err := e.store.Load()
	if err != nil {
		if errors.Is(err, domain.ErrCorruptState) {
			observability.LedgerCorrupt.Inc()
		}
		return domain.Ledger{}, err
	}
	return l, nil
}

func (e *Engine) save(l domain.Ledger) error {
	if err := e.store.Save(l); err != nil {
		observability.LedgerWriteErrors.Inc()
		return err
	}
	observability.RecordLedgerSize(len(l.Completed), len(l.Prizes))
	return nil
}

// moveBack skips the filesystem for identifiers that can't name a file;
// older ledgers may hold such entries.
func (e *Engine) moveBack(unit string) (bool, error) {
	if err := domain.ValidateUnit(unit); err != nil {
		e.log.WithField("unit", unit).Warn("skipping artifact move for invalid unit name")
		return false, nil
	}
	ok, err := e.files.MoveToPending(unit)
	if err != nil {
		return false, err
	}
	if ok {
		observability.ArtifactMovesTotal.WithLabelValues("pending").Inc()
	}
	return ok, nil
}

func (e *Engine) record(a domain.Action) {
	a.ID = e.newID()
	a.At = e.now()
	e.last = &a
}
