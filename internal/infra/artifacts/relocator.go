// Package artifacts moves unit documents between the pending directory and
// the done directory. A unit's artifact is "<unit><ext>"; nothing else in
// either directory is ever touched.
package artifacts

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/tutu-network/studytrack/internal/domain"
)

// DefaultExt is the artifact file extension.
const DefaultExt = ".pdf"

// Relocator implements domain.Relocator.
type Relocator struct {
	pendingDir string
	doneDir    string
	ext        string
	log        logrus.FieldLogger
}

var _ domain.Relocator = (*Relocator)(nil)

// New creates a Relocator. An empty ext means DefaultExt.
func New(pendingDir, doneDir, ext string, log logrus.FieldLogger) *Relocator {
	if ext == "" {
		ext = DefaultExt
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Relocator{
		pendingDir: pendingDir,
		doneDir:    doneDir,
		ext:        ext,
		log:        log.WithField("component", "artifacts"),
	}
}

// Init ensures the done directory exists.
func (r *Relocator) Init() error {
	if err := os.MkdirAll(r.doneDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", r.doneDir, err)
	}
	return nil
}

// PendingDir returns the pending area path.
func (r *Relocator) PendingDir() string { return r.pendingDir }

// DoneDir returns the done area path.
func (r *Relocator) DoneDir() string { return r.doneDir }

// Ext returns the artifact extension.
func (r *Relocator) Ext() string { return r.ext }

// PendingPath returns where a pending artifact for unit lives.
func (r *Relocator) PendingPath(unit string) string {
	return filepath.Join(r.pendingDir, unit+r.ext)
}

// DonePath returns where a done artifact for unit lives.
func (r *Relocator) DonePath(unit string) string {
	return filepath.Join(r.doneDir, unit+r.ext)
}

// MoveToDone moves the unit's artifact from pending to done.
func (r *Relocator) MoveToDone(unit string) (bool, error) {
	return r.move(unit, r.PendingPath(unit), r.DonePath(unit), "done")
}

// MoveToPending moves the unit's artifact from done back to pending.
func (r *Relocator) MoveToPending(unit string) (bool, error) {
	return r.move(unit, r.DonePath(unit), r.PendingPath(unit), "pending")
}

func (r *Relocator) move(unit, src, dst, direction string) (bool, error) {
	if err := domain.ValidateUnit(unit); err != nil {
		return false, err
	}

	info, err := os.Stat(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, &domain.MoveError{Unit: unit, Direction: direction, Err: err}
	}
	if info.IsDir() {
		return false, nil
	}

	if err := moveFile(src, dst, info.Mode().Perm()); err != nil {
		return false, &domain.MoveError{Unit: unit, Direction: direction, Err: err}
	}
	r.log.WithFields(logrus.Fields{"unit": unit, "to": direction}).Debug("artifact moved")
	return true, nil
}

// List returns the units present in each area, sorted by name.
func (r *Relocator) List() (domain.Artifacts, error) {
	available, err := r.listDir(r.pendingDir)
	if err != nil {
		return domain.Artifacts{}, err
	}
	done, err := r.listDir(r.doneDir)
	if err != nil {
		return domain.Artifacts{}, err
	}
	return domain.Artifacts{Available: available, Done: done}, nil
}

func (r *Relocator) listDir(dir string) ([]string, error) {
	units := []string{}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return units, nil
		}
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if unit, ok := r.UnitFromName(e.Name()); ok {
			units = append(units, unit)
		}
	}
	slices.Sort(units)
	return units, nil
}

// UnitFromName maps a file name to its unit identifier.
func (r *Relocator) UnitFromName(name string) (string, bool) {
	if !strings.HasSuffix(name, r.ext) {
		return "", false
	}
	unit := strings.TrimSuffix(name, r.ext)
	if unit == "" {
		return "", false
	}
	return unit, true
}

// rename is swapped in tests to simulate a cross-device move.
var rename = os.Rename

// moveFile renames src over dst, falling back to copy+remove across devices.
func moveFile(src, dst string, perm os.FileMode) error {
	err := rename(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return err
	}
	if err := copyFile(src, dst, perm); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return err
	}
	committed = true
	return nil
}
