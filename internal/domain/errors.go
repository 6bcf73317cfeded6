package domain

import (
	"errors"
	"fmt"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure with no infrastructure dependency.

var (
	// Ledger errors
	ErrCorruptState = errors.New("ledger state is corrupt")

	// Artifact errors
	ErrInvalidUnit = errors.New("invalid unit name")
	ErrMoveFailed  = errors.New("artifact move failed")
)

// CorruptStateError reports a ledger file that exists but can't be parsed.
// It matches ErrCorruptState with errors.Is.
type CorruptStateError struct {
	Path string
	Err  error
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("corrupt ledger %s: %v", e.Path, e.Err)
}

func (e *CorruptStateError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrCorruptState) true for any CorruptStateError.
func (e *CorruptStateError) Is(target error) bool { return target == ErrCorruptState }

// MoveError reports a filesystem failure while relocating an artifact.
type MoveError struct {
	Unit      string
	Direction string // "done" or "pending"
	Err       error
}

func (e *MoveError) Error() string {
	return fmt.Sprintf("move %s to %s: %v", e.Unit, e.Direction, e.Err)
}

func (e *MoveError) Unwrap() error { return e.Err }

func (e *MoveError) Is(target error) bool { return target == ErrMoveFailed }
