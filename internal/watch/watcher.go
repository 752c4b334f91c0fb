package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the tree must be quiet before a re-run.
const DefaultDebounce = 750 * time.Millisecond

// DefaultExtensions are the front-end source files whose changes can
// affect layout.
var DefaultExtensions = []string{
	".html", ".css", ".scss", ".sass", ".less",
	".js", ".jsx", ".ts", ".tsx", ".mjs",
	".vue", ".svelte",
}

// DefaultIgnoreDirs are directory names that are never watched.
var DefaultIgnoreDirs = []string{
	".git", "node_modules", "dist", "build", ".next", ".cache", "overflow-report",
}

// ChangeFunc is called with the changed paths after each quiet period.
// A returned error is logged and watching continues.
type ChangeFunc func(ctx context.Context, changed []string) error

// Watcher monitors a directory tree for source changes.
type Watcher struct {
	watcher    *fsnotify.Watcher
	root       string
	debounce   time.Duration
	extensions []string
	ignoreDirs []string
	logger     *slog.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period. Non-positive values are ignored.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithExtensions limits the watched files to the given extensions.
// An empty list watches every file.
func WithExtensions(exts ...string) Option {
	return func(w *Watcher) {
		w.extensions = exts
	}
}

// WithIgnoreDirs adds directory names to skip.
func WithIgnoreDirs(names ...string) Option {
	return func(w *Watcher) {
		w.ignoreDirs = append(w.ignoreDirs, names...)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// New creates a Watcher for the tree rooted at root.
func New(root string, opts ...Option) (*Watcher, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat watch root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch root %s is not a directory", root)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		watcher:    fw,
		root:       root,
		debounce:   DefaultDebounce,
		extensions: DefaultExtensions,
		ignoreDirs: slices.Clone(DefaultIgnoreDirs),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Close releases the underlying watcher. It is safe to call after Run.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Run watches until ctx is cancelled, calling onChange after each burst
// of relevant changes. It closes the underlying watcher before returning.
func (w *Watcher) Run(ctx context.Context, onChange ChangeFunc) error {
	defer w.watcher.Close()

	if err := w.addTree(w.root); err != nil {
		return err
	}
	w.logger.Info("watching for changes", "dir", w.root, "debounce", w.debounce)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	pending := make(map[string]struct{})
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.handleEvent(event) {
				continue
			}
			pending[event.Name] = struct{}{}
			timer.Reset(w.debounce)
			fire = timer.C

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)

		case <-fire:
			fire = nil
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			clear(pending)
			slices.Sort(changed)

			w.logger.Info("change detected, re-running", "files", len(changed))
			if err := onChange(ctx, changed); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				w.logger.Error("re-run failed", "error", err)
			}
		}
	}
}

// handleEvent reports whether the event should trigger a re-run.
// New directories are added to the watch list.
func (w *Watcher) handleEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if w.ignored(filepath.Base(event.Name)) {
				return false
			}
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "dir", event.Name, "error", err)
			}
			return false
		}
	}

	return w.relevant(event.Name)
}

// relevant reports whether a file path matches the extension filter.
func (w *Watcher) relevant(path string) bool {
	base := filepath.Base(path)
	// Editor swap and backup files.
	if strings.HasPrefix(base, ".#") || strings.HasSuffix(base, "~") {
		return false
	}
	if len(w.extensions) == 0 {
		return true
	}
	return slices.Contains(w.extensions, strings.ToLower(filepath.Ext(path)))
}

func (w *Watcher) ignored(name string) bool {
	return slices.Contains(w.ignoreDirs, name)
}

// addTree adds dir and every non-ignored subdirectory to the watcher.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.ignored(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		w.logger.Debug("watching directory", "dir", path)
		return nil
	})
}
