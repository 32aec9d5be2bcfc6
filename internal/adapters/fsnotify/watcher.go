// Package fsnotify implements the ports.Watcher interface using github.com/fsnotify/fsnotify.
// It recursively watches a project root, filters out VCS and state directories,
// write backups and editor droppings, and debounces rapid events (editors often
// trigger multiple writes per save).
package fsnotify

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/corey/cpbench/internal/adapters/logging"
	"github.com/corey/cpbench/internal/ports"
)

// Directories to ignore when watching.
var ignoreDirs = map[string]bool{
	".git":              true,
	".hg":               true,
	".cpbench":          true,
	"node_modules":      true,
	".idea":             true,
	".vscode":           true,
	"build":             true,
	"cmake-build-debug": true,
}

// File suffixes to ignore. ".bak" is the verified-write backup.
var ignoreSuffixes = []string{
	".DS_Store",
	".swp",
	".swx",
	"~",
	".bak",
	".o",
	".obj",
	".exe",
}

const debounceInterval = 50 * time.Millisecond

// Watcher implements ports.Watcher using fsnotify. A Watcher is single use:
// after Stop, create a new one to watch another root.
type Watcher struct {
	fw      *fsnotify.Watcher
	log     *logging.Logger
	root    string
	done    chan struct{}
	stopped bool
	mu      sync.Mutex
}

var _ ports.Watcher = (*Watcher)(nil)

// NewWatcher creates a new file system watcher.
func NewWatcher(log *logging.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fw:   fw,
		log:  log,
		done: make(chan struct{}),
	}, nil
}

// Watch starts monitoring projectPath recursively.
// onChange is called with the absolute path of each changed entry.
func (w *Watcher) Watch(projectPath string, onChange func(filePath string)) error {
	root, err := filepath.Abs(projectPath)
	if err != nil {
		return err
	}
	if info, err := os.Stat(root); err != nil {
		return err
	} else if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}
	w.root = root

	if err := w.addTree(root); err != nil {
		return err
	}
	go w.loop(onChange)
	return nil
}

// addTree registers dir and every non-ignored directory below it.
// Unreadable entries are skipped.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != dir && shouldIgnoreDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.fw.Add(path)
	})
}

func (w *Watcher) loop(onChange func(string)) {
	recent := make(map[string]time.Time)
	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				w.follow(event.Name)
			}
			if !relevant(event) || w.shouldIgnorePath(event.Name) {
				continue
			}
			if settle(recent, event.Name, time.Now()) {
				onChange(event.Name)
			}

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", "root", w.root, "error", err)

		case <-w.done:
			return
		}
	}
}

// follow starts watching a directory created after Watch was called,
// including anything already inside it (mkdir -p, moved-in trees).
func (w *Watcher) follow(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() || shouldIgnoreDir(info.Name()) {
		return
	}
	if err := w.addTree(path); err != nil {
		w.log.Debug("watch new dir", "path", path, "error", err)
	}
}

func relevant(event fsnotify.Event) bool {
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}

// settle reports whether path is outside its debounce window and records
// the event. Old entries are pruned once the map grows.
func settle(recent map[string]time.Time, path string, now time.Time) bool {
	if last, seen := recent[path]; seen && now.Sub(last) < debounceInterval {
		return false
	}
	recent[path] = now
	if len(recent) > 4096 {
		for p, at := range recent {
			if now.Sub(at) > debounceInterval {
				delete(recent, p)
			}
		}
	}
	return true
}

// Stop ends monitoring and releases all resources.
// Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.done)
	return w.fw.Close()
}

// shouldIgnoreDir returns true if the directory name should be skipped.
func shouldIgnoreDir(name string) bool {
	return ignoreDirs[name]
}

// shouldIgnorePath returns true if the path should not trigger onChange.
// Only components below the watched root are checked, so a root that itself
// lives under, say, a "build" directory is still watched.
func (w *Watcher) shouldIgnorePath(path string) bool {
	base := filepath.Base(path)
	for _, suffix := range ignoreSuffixes {
		if strings.HasSuffix(base, suffix) {
			return true
		}
	}

	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if ignoreDirs[part] {
			return true
		}
	}
	return false
}
