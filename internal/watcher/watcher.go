// Package watcher triggers re-indexing when watched roots change.
//
// Filesystem events arrive in bursts (editors write temp files, save,
// rename), so events are debounced: a rescan fires only after the roots
// have been quiet for the debounce window.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet window before a rescan fires.
const DefaultDebounce = 2 * time.Second

// Watcher observes roots and invokes the rescan callback after changes.
type Watcher struct {
	roots    []string
	debounce time.Duration
	rescan   func(ctx context.Context) error
}

// New creates a Watcher. rescan is called serially, never concurrently
// with itself.
func New(roots []string, debounce time.Duration, rescan func(ctx context.Context) error) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{roots: roots, debounce: debounce, rescan: rescan}
}

// Run watches until the context is canceled. Directories nested under the
// roots at start time are watched too; directories created later are added
// as their create events arrive.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fsw.Close() }()

	for _, root := range w.roots {
		if err := addRecursive(fsw, root); err != nil {
			slog.Warn("cannot watch root",
				slog.String("root", root),
				slog.String("error", err.Error()))
		}
	}

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = addRecursive(fsw, event.Name)
				}
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) &&
				!event.Op.Has(fsnotify.Rename) && !event.Op.Has(fsnotify.Remove) {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", slog.String("error", err.Error()))

		case <-timerC:
			timer = nil
			timerC = nil
			if err := w.rescan(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				slog.Error("rescan failed", slog.String("error", err.Error()))
			}
		}
	}
}

func addRecursive(fsw *fsnotify.Watcher, root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fsw.Add(filepath.Dir(root))
	}

	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		return fsw.Add(path)
	})
}
