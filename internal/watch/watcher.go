// Package watch re-runs a pipeline when its input tables change. It monitors
// directories for new or modified workbooks and hands each settled batch of
// changed paths to a handler.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 500 * time.Millisecond

// tableExtensions are the files a pipeline can read.
var tableExtensions = map[string]bool{
	".xlsx": true, ".xlsm": true, ".csv": true, ".json": true,
}

// Handler is called with the changed paths of one settled batch, sorted.
type Handler func(ctx context.Context, changed []string) error

// Event is one handled batch.
type Event struct {
	Time   time.Time `json:"time"`
	Paths  []string  `json:"paths"`
	Status string    `json:"status"` // "processed" or "error"
	Error  string    `json:"error,omitempty"`
}

// Watcher monitors directories for table file changes.
type Watcher struct {
	Dirs      []string
	Recursive bool
	Debounce  time.Duration
	// Ignore drops paths the handler itself writes, so a run does not
	// trigger the next one.
	Ignore func(path string) bool
	Logger *slog.Logger

	mu      sync.Mutex
	events  []Event
	watcher *fsnotify.Watcher
}

// New creates a watcher over dirs.
func New(dirs []string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("could not create file watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{Dirs: dirs, Debounce: debounce, Logger: logger, watcher: fsw}, nil
}

// Run watches until ctx is cancelled, calling fn once per batch of changes.
// Handler errors are logged and recorded; they do not stop the watcher.
func (w *Watcher) Run(ctx context.Context, fn Handler) error {
	defer w.watcher.Close()

	for _, dir := range w.Dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("could not resolve %s: %w", dir, err)
		}
		if w.Recursive {
			err = w.addRecursive(abs)
		} else {
			err = w.watcher.Add(abs)
		}
		if err != nil {
			return fmt.Errorf("could not watch %s: %w", abs, err)
		}
	}
	w.Logger.Info("watching for changes", "dirs", w.Dirs, "debounce", w.Debounce)

	pending := map[string]bool{}
	timer := time.NewTimer(w.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Logger.Info("stopping watcher")
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			pending[event.Name] = true
			timer.Reset(w.Debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.Logger.Warn("watch error", "error", err)
		case <-timer.C:
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			clear(pending)
			w.handle(ctx, fn, changed)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, fn Handler, changed []string) {
	evt := Event{Time: time.Now(), Paths: changed, Status: "processed"}
	w.Logger.Info("inputs changed", "files", len(changed))
	if err := fn(ctx, changed); err != nil {
		evt.Status = "error"
		evt.Error = err.Error()
		w.Logger.Error("run failed", "error", err)
	}
	w.mu.Lock()
	w.events = append(w.events, evt)
	w.mu.Unlock()
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return false
	}
	if !IsTableFile(event.Name) {
		return false
	}
	return w.Ignore == nil || !w.Ignore(event.Name)
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if strings.HasPrefix(filepath.Base(path), ".") && path != dir {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// IsTableFile reports whether path is a workbook or table file a pipeline
// reads. Office lock files such as "~$sales.xlsx" are not.
func IsTableFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, "~$") || strings.HasPrefix(base, ".~") || strings.HasPrefix(base, ".") {
		return false
	}
	return tableExtensions[strings.ToLower(filepath.Ext(path))]
}

// Events returns the handled batches so far.
func (w *Watcher) Events() []Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	events := make([]Event, len(w.events))
	copy(events, w.events)
	return events
}
