// Package watch observes a project's queue directory and reports record
// changes to external tooling (dashboards, tail commands). It is a
// read-only consumer; the orchestrator and worker remain the only
// writers.
package watch

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/forgeworks/issuepilot/internal/types"
)

// DefaultDebounce coalesces the write-then-rename pair a record update
// produces into a single notification.
const DefaultDebounce = 250 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	// Dir is the queue directory holding triage_<n>.json and
	// autofix_<n>.json records.
	Dir string
	// Debounce is the quiet period before a changed record is reloaded.
	// Zero means DefaultDebounce.
	Debounce time.Duration

	// OnTriage and OnAutoFix receive the reloaded record. Nil callbacks
	// drop the corresponding record kind.
	OnTriage  func(*types.TriageResult)
	OnAutoFix func(*types.AutoFixState)
	// OnError receives watcher failures and decode failures. A decode
	// failure is reported and the record skipped; watching continues.
	OnError func(error)
}

// Watcher reloads queue records as they change on disk.
type Watcher struct {
	opts Options
	fsw  *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New creates a watcher over the queue directory. The directory is
// created if missing so a watch can be started before the first job.
func New(opts Options) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(opts.Dir); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{
		opts:    opts,
		fsw:     fsw,
		pending: make(map[string]*time.Timer),
	}, nil
}

// Run blocks processing events until the context is cancelled or the
// underlying watcher closes.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.schedule(ev.Name)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.reportError(err)
		}
	}
}

// Close stops the watcher and cancels pending reloads.
func (w *Watcher) Close() error {
	w.mu.Lock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
	return w.fsw.Close()
}

// schedule arms (or re-arms) the debounce timer for one record path.
func (w *Watcher) schedule(path string) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, ".json") {
		return
	}
	if !strings.HasPrefix(base, "triage_") && !strings.HasPrefix(base, "autofix_") {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.opts.Debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.opts.Debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.reload(path)
	})
}

// reload reads and decodes one record, dispatching to the matching
// callback. A vanished file is silent (deletes race the debounce); a
// malformed one is reported and skipped.
func (w *Watcher) reload(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			w.reportError(err)
		}
		return
	}

	base := filepath.Base(path)
	switch {
	case strings.HasPrefix(base, "triage_"):
		var r types.TriageResult
		if err := json.Unmarshal(data, &r); err != nil {
			w.reportError(err)
			return
		}
		if w.opts.OnTriage != nil {
			w.opts.OnTriage(&r)
		}
	case strings.HasPrefix(base, "autofix_"):
		var s types.AutoFixState
		if err := json.Unmarshal(data, &s); err != nil {
			w.reportError(err)
			return
		}
		if w.opts.OnAutoFix != nil {
			w.opts.OnAutoFix(&s)
		}
	}
}

func (w *Watcher) reportError(err error) {
	if w.opts.OnError != nil {
		w.opts.OnError(err)
	}
}
