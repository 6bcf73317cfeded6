// Package watch notices artifacts being added, removed, or renamed in the
// pending and done directories, batching bursts of events with a debounce
// window so a drag of many files triggers one callback.
package watch

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Change is a single artifact event.
type Change struct {
	Path string
	Op   fsnotify.Op
	Time time.Time
}

// Handler receives a debounced, de-duplicated batch of changes.
type Handler func(changes []Change)

// Options controls a Watcher.
type Options struct {
	Dirs       []string
	Ext        string        // only names ending in Ext are reported
	Debounce   time.Duration // default 250ms
	BufferSize int           // default 256
}

// Watcher watches a fixed set of directories (non-recursively).
type Watcher struct {
	dirs     []string
	ext      string
	debounce time.Duration
	handler  Handler
	log      logrus.FieldLogger

	fsw      *fsnotify.Watcher
	changes  chan Change
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	watching bool
}

// New creates a Watcher. Call Start to begin watching.
func New(opts Options, handler Handler, log logrus.FieldLogger) (*Watcher, error) {
	if len(opts.Dirs) == 0 {
		return nil, errors.New("watch: at least one directory is required")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 250 * time.Millisecond
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 256
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		dirs:     opts.Dirs,
		ext:      opts.Ext,
		debounce: opts.Debounce,
		handler:  handler,
		log:      log.WithField("component", "watch"),
		fsw:      fsw,
		changes:  make(chan Change, opts.BufferSize),
		done:     make(chan struct{}),
	}, nil
}

// Start adds the directories and begins processing events in the background.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	for _, dir := range w.dirs {
		if err := w.fsw.Add(dir); err != nil {
			w.Stop()
			return err
		}
	}

	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Run starts the watcher and blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-w.done:
	}
	w.Stop()
	return nil
}

// Stop releases the underlying watcher. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.fsw.Close()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

func (w *Watcher) relevant(name string) bool {
	base := filepath.Base(name)
	if w.ext == "" {
		return true
	}
	return strings.HasSuffix(base, w.ext) && base != w.ext
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(event.Name) {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			select {
			case w.changes <- Change{Path: event.Name, Op: event.Op, Time: time.Now()}:
			default:
				// Buffer full; the next batch will still trigger a reconcile.
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("watcher error")
		}
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	var batch []Change
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(batch) > 0 && w.handler != nil {
			w.handler(dedupe(batch))
		}
		batch = batch[:0]
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-w.done:
			flush()
			return
		case c := <-w.changes:
			batch = append(batch, c)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			flush()
		}
	}
}

// dedupe keeps the latest change per path, in first-seen order.
func dedupe(batch []Change) []Change {
	idx := make(map[string]int, len(batch))
	out := make([]Change, 0, len(batch))
	for _, c := range batch {
		if i, ok := idx[c.Path]; ok {
			out[i] = c
			continue
		}
		idx[c.Path] = len(out)
		out = append(out, c)
	}
	return out
}
