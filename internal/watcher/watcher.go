// Package watcher reports changes to partial directories and manifests,
// debounced into a single signal per burst of edits.
package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/jsonpartial/internal/log"
)

// Watcher monitors partial sources and sends notifications.
type Watcher struct {
	fsWatcher  *fsnotify.Watcher
	paths      []string
	extensions []string
	debounce   time.Duration
	files      map[string]bool // watched individual files, by clean path
	onChange   chan struct{}
	done       chan struct{}
	stopped    chan struct{}
	started    bool
	stopOnce   sync.Once
}

// Config holds watcher configuration options.
type Config struct {
	// Paths are directories, watched recursively, or single files.
	Paths []string
	// Extensions filter events inside watched directories.
	Extensions []string
	// Debounce is how long the sources must be quiet before a signal.
	Debounce time.Duration
}

// DefaultConfig watches JSON partials and YAML manifests under paths.
func DefaultConfig(paths ...string) Config {
	return Config{
		Paths:      paths,
		Extensions: []string{".json", ".yaml", ".yml"},
		Debounce:   300 * time.Millisecond,
	}
}

// New creates a watcher. Nothing is watched until Start.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &Watcher{
		fsWatcher:  fsw,
		paths:      cfg.Paths,
		extensions: cfg.Extensions,
		debounce:   cfg.Debounce,
		files:      make(map[string]bool),
		onChange:   make(chan struct{}, 1),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}, nil
}

// Start begins watching. The returned channel receives a signal after
// each debounced burst of relevant changes; signals are dropped while one
// is already pending.
func (w *Watcher) Start() (<-chan struct{}, error) {
	for _, path := range w.paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("watching %s: %w", path, err)
		}
		if info.IsDir() {
			if err := w.addTree(path); err != nil {
				return nil, err
			}
			continue
		}
		// Watch the parent so files replaced on save are still seen.
		w.files[filepath.Clean(path)] = true
		dir := filepath.Dir(path)
		if err := w.fsWatcher.Add(dir); err != nil {
			return nil, fmt.Errorf("watching directory %s: %w", dir, err)
		}
	}

	w.started = true
	go w.loop()
	log.Debug(log.CatWatcher, "watcher started", "paths", w.paths, "debounce", w.debounce)
	return w.onChange, nil
}

// Stop terminates the watcher and waits for its goroutine to exit. It is
// safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fsWatcher.Close()
		if w.started {
			<-w.stopped
		}
	})
	return err
}

// addTree watches root and every directory below it.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsWatcher.Add(path); err != nil {
			return fmt.Errorf("watching directory %s: %w", path, err)
		}
		return nil
	})
}

// loop processes file system events with debouncing.
func (w *Watcher) loop() {
	defer close(w.stopped)

	var (
		timer   *time.Timer
		pending bool
	)
	timerC := func() <-chan time.Time {
		if timer != nil {
			return timer.C
		}
		return nil
	}

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			if event.Has(fsnotify.Create) {
				w.watchNewDir(event.Name)
			}
			if !w.isRelevantEvent(event) {
				continue
			}
			log.Debug(log.CatWatcher, "change detected", "path", event.Name, "op", event.Op.String())

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			pending = true

		case <-timerC():
			if pending {
				select {
				case w.onChange <- struct{}{}:
				default:
				}
				pending = false
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.ErrorErr(log.CatWatcher, "watch error", err)

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// watchNewDir adds a directory created inside a watched tree. Directories
// created next to a single watched file are ignored.
func (w *Watcher) watchNewDir(path string) {
	path = filepath.Clean(path)
	if w.files[path] || !w.insideWatchedDir(path) {
		return
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.addTree(path); err != nil {
		log.ErrorErr(log.CatWatcher, "failed to watch new directory", err, "path", path)
	}
}

// isRelevantEvent checks if the event should trigger a reload.
func (w *Watcher) isRelevantEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}

	name := filepath.Clean(event.Name)
	if w.files[name] {
		return true
	}
	if len(w.files) > 0 && !w.insideWatchedDir(name) {
		return false
	}
	return slices.Contains(w.extensions, filepath.Ext(name))
}

// insideWatchedDir reports whether name lies under a directory passed in
// Paths, as opposed to the parent of a watched file.
func (w *Watcher) insideWatchedDir(name string) bool {
	for _, path := range w.paths {
		if w.files[filepath.Clean(path)] {
			continue
		}
		if rel, err := filepath.Rel(path, name); err == nil && !strings.HasPrefix(rel, "..") {
			return true
		}
	}
	return false
}
