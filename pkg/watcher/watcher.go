package watcher

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// RecursiveWatcher wraps fsnotify with recursive directory support.
// fsnotify is NOT recursive on Linux/POSIX, so we must explicitly
// watch all subdirectories and dynamically add watchers for new directories.
type RecursiveWatcher struct {
	*fsnotify.Watcher
	skip map[string]bool
	dirs map[string]bool
	mu   sync.RWMutex
}

// New creates a watcher that never descends into directories named in skip
// or into hidden directories.
func New(skip []string) (*RecursiveWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	names := make(map[string]bool, len(skip))
	for _, s := range skip {
		names[s] = true
	}
	return &RecursiveWatcher{
		Watcher: w,
		skip:    names,
		dirs:    make(map[string]bool),
	}, nil
}

func (w *RecursiveWatcher) skipDir(path, root string) bool {
	name := filepath.Base(path)
	if path == root {
		return false
	}
	return w.skip[name] || strings.HasPrefix(name, ".")
}

// AddRecursive adds a directory and all its subdirectories to the watcher.
func (w *RecursiveWatcher) AddRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip inaccessible directories
		}
		if !d.IsDir() {
			return nil
		}
		if w.skipDir(path, root) {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return nil // Skip, don't fail entirely
		}
		w.mu.Lock()
		w.dirs[path] = true
		w.mu.Unlock()
		return nil
	})
}

// HandleNewDirectory checks if an event is a new directory and adds it to the watcher.
// Returns true if a new directory was added.
func (w *RecursiveWatcher) HandleNewDirectory(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) {
		return false
	}
	info, err := os.Stat(event.Name)
	if err != nil || !info.IsDir() {
		return false
	}
	if w.skipDir(event.Name, "") {
		return false
	}
	w.AddRecursive(event.Name)
	return true
}

// Watched reports whether dir is being watched.
func (w *RecursiveWatcher) Watched(dir string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.dirs[dir]
}

// IsRelevantFile reports whether a changed path should trigger a re-parse:
// a regular, non-hidden file outside skipped directories.
func (w *RecursiveWatcher) IsRelevantFile(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(filepath.Dir(path)), "/") {
		if w.skip[part] {
			return false
		}
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// IsChange reports whether an event may have changed file content.
func IsChange(event fsnotify.Event) bool {
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
}
