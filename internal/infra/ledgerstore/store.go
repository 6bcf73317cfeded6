// Package ledgerstore persists the tracker ledger as a single JSON document.
//
// Writes are atomic and durable (temp file + fsync + rename + dir fsync), so a
// crash mid-save leaves either the old or the new document, never a torn one.
package ledgerstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tutu-network/studytrack/internal/domain"
)

// Store implements domain.LedgerStore on top of one file.
type Store struct {
	path string
	log  logrus.FieldLogger
}

var _ domain.LedgerStore = (*Store)(nil)

// New creates a Store for the given file path. The file need not exist.
func New(path string, log logrus.FieldLogger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("ledger path is required")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{path: path, log: log.WithField("component", "ledgerstore")}, nil
}

// Path returns the ledger file location.
func (s *Store) Path() string { return s.path }

// Load reads the ledger. A missing file is the empty ledger.
func (s *Store) Load() (domain.Ledger, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.EmptyLedger(), nil
		}
		return domain.Ledger{}, fmt.Errorf("read ledger: %w", err)
	}

	l, err := decode(data)
	if err != nil {
		s.log.WithError(err).WithField("path", s.path).Error("ledger file is corrupt")
		return domain.Ledger{}, &domain.CorruptStateError{Path: s.path, Err: err}
	}
	if dups := l.Normalize(); len(dups) > 0 {
		s.log.WithField("duplicates", dups).Warn("dropped duplicate completions on load")
	}
	return l, nil
}

// Save overwrites the ledger document.
func (s *Store) Save(l domain.Ledger) error {
	l = l.Clone()
	l.Normalize()
	data, err := encode(l)
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}
	if err := writeFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	return nil
}

// decode parses the document strictly enough to catch a wrong shape while
// tolerating missing keys, which older trackers may have written.
func decode(data []byte) (domain.Ledger, error) {
	var raw struct {
		Completed *[]*string        `json:"completed"`
		Prizes    *[]map[string]any `json:"prizes"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return domain.Ledger{}, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return domain.Ledger{}, errors.New("invalid JSON: trailing content")
	}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return domain.Ledger{}, errors.New("ledger document is null")
	}

	l := domain.EmptyLedger()
	if raw.Completed != nil {
		for i, unit := range *raw.Completed {
			if unit == nil {
				return domain.Ledger{}, fmt.Errorf("completed[%d] is null", i)
			}
			l.Completed = append(l.Completed, *unit)
		}
	}
	if raw.Prizes != nil {
		for _, p := range *raw.Prizes {
			l.Prizes = append(l.Prizes, domain.Prize(p))
		}
	}
	return l, nil
}

// encode serializes deterministically: fixed key order, two-space indent,
// non-ASCII verbatim, trailing newline.
func encode(l domain.Ledger) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(l); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
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

	if _, err := tmp.Write(data); err != nil {
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
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return syncDir(dir)
}

// syncDir is best effort: some platforms can't fsync a directory.
func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	_ = f.Sync()
	return nil
}
