// Package domain contains pure business types with no infrastructure imports.
// It is the innermost layer and depends on nothing else in the module.
package domain

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

// ─── Ledger Types ───────────────────────────────────────────────────────────

// Ledger is the persisted completion + reward record.
//
// Completed keeps insertion order (display order) and never holds the same
// unit twice. Prizes is a stack: the last appended prize is the first removed.
type Ledger struct {
	Completed []string `json:"completed"`
	Prizes    []Prize  `json:"prizes"`
}

// EmptyLedger returns the default ledger used when nothing is persisted yet.
func EmptyLedger() Ledger {
	return Ledger{Completed: []string{}, Prizes: []Prize{}}
}

// Normalize replaces nil slices with empty ones and drops duplicate units,
// keeping the first occurrence. It returns the dropped duplicates.
func (l *Ledger) Normalize() []string {
	if l.Completed == nil {
		l.Completed = []string{}
	}
	if l.Prizes == nil {
		l.Prizes = []Prize{}
	}
	for i, p := range l.Prizes {
		if p == nil {
			l.Prizes[i] = Prize{}
		}
	}

	seen := make(map[string]struct{}, len(l.Completed))
	kept := l.Completed[:0]
	var dups []string
	for _, unit := range l.Completed {
		if _, ok := seen[unit]; ok {
			dups = append(dups, unit)
			continue
		}
		seen[unit] = struct{}{}
		kept = append(kept, unit)
	}
	l.Completed = kept
	return dups
}

// IsCompleted reports whether unit is in the completed list.
func (l Ledger) IsCompleted(unit string) bool {
	return slices.Contains(l.Completed, unit)
}

// Clone returns a deep copy so callers can't mutate engine-owned slices.
func (l Ledger) Clone() Ledger {
	out := Ledger{
		Completed: append([]string{}, l.Completed...),
		Prizes:    make([]Prize, 0, len(l.Prizes)),
	}
	for _, p := range l.Prizes {
		out.Prizes = append(out.Prizes, p.Clone())
	}
	return out
}

// Prize is an opaque reward record, conventionally {"name", "cost"}.
// Numbers are kept as json.Number so they round-trip exactly.
type Prize map[string]any

// Name returns the "name" field if it is a string.
func (p Prize) Name() string {
	s, _ := p["name"].(string)
	return s
}

// Cost returns the "cost" field as written by the client, or "" when absent.
func (p Prize) Cost() string {
	switch v := p["cost"].(type) {
	case json.Number:
		return v.String()
	case string:
		return v
	case nil:
		return ""
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

// Clone returns a shallow copy of the top-level keys.
func (p Prize) Clone() Prize {
	out := make(Prize, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// ─── Artifact Types ─────────────────────────────────────────────────────────

// Artifacts lists unit identifiers found on disk, independent of the ledger.
type Artifacts struct {
	Available []string `json:"available"`
	Done      []string `json:"done"`
}

// Reconciliation describes where the ledger and the filesystem disagree.
type Reconciliation struct {
	// Misplaced units are completed but their artifact still sits in pending.
	Misplaced []string `json:"misplaced"`
	// Untracked units have an artifact in done but are not completed.
	Untracked []string `json:"untracked"`
	InSync    bool     `json:"in_sync"`
}

// Divergent returns the total number of disagreeing artifacts.
func (r Reconciliation) Divergent() int {
	return len(r.Misplaced) + len(r.Untracked)
}

// ─── Operation Results ──────────────────────────────────────────────────────

// ReasonAlreadyDone is reported when a completion request is a no-op.
const ReasonAlreadyDone = "already done or empty"

// ReasonInvalidUnit is reported for identifiers that can't name a file.
const ReasonInvalidUnit = "invalid unit name"

// CompleteResult is the outcome of a completion request.
type CompleteResult struct {
	OK     bool   `json:"ok"`
	Moved  bool   `json:"moved"`
	Reason string `json:"reason,omitempty"`
}

// UndoResult is the outcome of an undo request.
type UndoResult struct {
	OK        bool `json:"ok"`
	MovedBack bool `json:"moved_back"`
}

// ─── Actions ────────────────────────────────────────────────────────────────

// ActionKind names a mutating operation.
type ActionKind string

const (
	ActionComplete    ActionKind = "complete"
	ActionUndo        ActionKind = "undo"
	ActionAddPrize    ActionKind = "add_prize"
	ActionRemovePrize ActionKind = "remove_prize"
	ActionReset       ActionKind = "reset"
)

// Action records the most recent successful mutation. It is never persisted.
type Action struct {
	ID    string     `json:"id"`
	Kind  ActionKind `json:"kind"`
	Unit  string     `json:"unit,omitempty"`
	Moved bool       `json:"moved"`
	Prize Prize      `json:"prize,omitempty"`
	At    time.Time  `json:"at"`
}

// ─── Validation ─────────────────────────────────────────────────────────────

// ValidateUnit rejects identifiers that can't be used as a plain file name.
func ValidateUnit(unit string) error {
	switch {
	case strings.TrimSpace(unit) == "":
		return fmt.Errorf("%w: empty", ErrInvalidUnit)
	case unit == "." || unit == "..":
		return fmt.Errorf("%w: %q", ErrInvalidUnit, unit)
	case strings.ContainsAny(unit, `/\`+"\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidUnit, unit)
	}
	return nil
}
