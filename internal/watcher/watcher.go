// Package watcher reports changes to preset files.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/alucardeht/amgp/internal/logger"
)

var log = logger.ForComponent("watcher")

// Watcher watches directories with fsnotify and reports debounced batches of
// file events. Single files are watched through their parent directory so
// that editors replacing the file on save are still seen.
type Watcher struct {
	config      Config
	fsWatcher   *fsnotify.Watcher
	fsWatcherMu sync.Mutex
	debouncer   *Debouncer
	onChange    func([]FileEvent)

	// watched directory to the files of interest in it; nil means every
	// file matching Include
	dirs map[string]map[string]bool

	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(config Config, onChange func([]FileEvent)) (*Watcher, error) {
	for _, pattern := range append(append([]string{}, config.Include...), config.Ignore...) {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid watch pattern %q", pattern)
		}
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		config:    config,
		fsWatcher: fsWatcher,
		onChange:  onChange,
		dirs:      make(map[string]map[string]bool),
	}
	w.debouncer = NewDebouncer(config.Debounce, config.MaxBatch, w.onFlush)
	return w, nil
}

func (w *Watcher) addToWatcher(path string) error {
	w.fsWatcherMu.Lock()
	defer w.fsWatcherMu.Unlock()
	return w.fsWatcher.Add(path)
}

// Add watches a file or a directory. Directories are not watched
// recursively.
func (w *Watcher) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return err
	}

	dir, file := abs, ""
	if !info.IsDir() {
		dir, file = filepath.Dir(abs), abs
	}

	w.mu.Lock()
	files, seen := w.dirs[dir]
	switch {
	case !seen && file == "":
		w.dirs[dir] = nil
	case !seen:
		w.dirs[dir] = map[string]bool{file: true}
	case files != nil && file != "":
		files[file] = true
	case file == "":
		w.dirs[dir] = nil
	}
	w.mu.Unlock()

	if seen {
		return nil
	}
	if err := w.addToWatcher(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	log.Info("watching", "path", abs)
	return nil
}

func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	w.running = true
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.handleEvents()

	log.Info("file watcher started", "debounce", w.config.Debounce)
	return nil
}

func (w *Watcher) handleEvents() {
	defer close(w.done)
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			log.Debug("file event", "path", event.Name, "op", event.Op.String())

			if fileEvent := w.convertEvent(event); fileEvent != nil {
				w.debouncer.Add(*fileEvent)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) convertEvent(event fsnotify.Event) *FileEvent {
	if !w.relevant(event.Name) {
		return nil
	}

	var eventType EventType

	switch {
	case event.Has(fsnotify.Create):
		eventType = EventCreate
	case event.Has(fsnotify.Write):
		eventType = EventModify
	case event.Has(fsnotify.Remove):
		eventType = EventDelete
	case event.Has(fsnotify.Rename):
		eventType = EventRename
	default:
		return nil
	}

	return &FileEvent{
		Path:      event.Name,
		Type:      eventType,
		Timestamp: time.Now(),
	}
}

func (w *Watcher) relevant(path string) bool {
	if w.shouldIgnore(path) {
		return false
	}

	w.mu.RLock()
	files, ok := w.dirs[filepath.Dir(path)]
	w.mu.RUnlock()
	if !ok {
		return false
	}
	if files != nil {
		return files[path]
	}
	return w.included(filepath.Base(path))
}

func (w *Watcher) included(base string) bool {
	if len(w.config.Include) == 0 {
		return true
	}
	for _, pattern := range w.config.Include {
		if match, _ := doublestar.Match(pattern, base); match {
			return true
		}
	}
	return false
}

func (w *Watcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range w.config.Ignore {
		if match, _ := doublestar.Match(pattern, base); match {
			return true
		}
	}
	return false
}

func (w *Watcher) onFlush(events []FileEvent) {
	log.Info("flushing events", "count", len(events))
	if w.onChange != nil {
		w.onChange(events)
	}
}

// Stop flushes pending events and releases the fsnotify watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.closeWatcher()
	}
	w.running = false
	w.cancel()
	done := w.done
	w.mu.Unlock()

	<-done
	w.debouncer.Stop()
	log.Info("file watcher stopped")
	return w.closeWatcher()
}

func (w *Watcher) closeWatcher() error {
	w.fsWatcherMu.Lock()
	defer w.fsWatcherMu.Unlock()
	return w.fsWatcher.Close()
}
