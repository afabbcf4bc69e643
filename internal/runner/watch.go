package runner

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher re-runs extraction when source files under the root change.
// Changes are debounced so an editor save burst triggers one run; the
// memo cache keeps the re-run incremental. Removed units are dropped
// from the sink before the batch runs.
type Watcher struct {
	runner       *Runner
	rootDir      string
	watcher      *fsnotify.Watcher
	debounceTime time.Duration
	stopCh       chan struct{}
	doneCh       chan struct{}
	stopOnce     sync.Once
}

// NewWatcher creates a file watcher over the runner's root directory.
func NewWatcher(r *Runner) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	debounce := r.opts.Debounce
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	w := &Watcher{
		runner:       r,
		rootDir:      r.opts.Root,
		watcher:      watcher,
		debounceTime: debounce,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}

	// Add directories to watcher recursively
	if err := w.addDirectoriesRecursively(r.opts.Root); err != nil {
		watcher.Close()
		return nil, err
	}

	return w, nil
}

// Start begins watching for file changes.
func (w *Watcher) Start(ctx context.Context) {
	go w.watch(ctx)
}

// Stop stops the file watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		<-w.doneCh
		w.watcher.Close()
	})
}

// watch is the main event loop with debouncing logic.
func (w *Watcher) watch(ctx context.Context) {
	defer close(w.doneCh)

	var debounceTimer *time.Timer
	rerunCh := make(chan struct{}, 1)
	removed := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			relevant := w.shouldProcessEvent(event)

			// New directories must be registered before the pattern
			// filter; include patterns describe files, not directories.
			// A directory can arrive with files already inside it, so
			// its creation also schedules a re-run.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if w.shouldWatchDirectory(event.Name) {
						if err := w.addDirectoriesRecursively(event.Name); err != nil {
							log.Printf("Warning: failed to watch new directory %s: %v", event.Name, err)
						}
						relevant = true
					}
				}
			}

			if !relevant {
				continue
			}

			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				if rel, err := filepath.Rel(w.rootDir, event.Name); err == nil {
					removed[filepath.ToSlash(rel)] = true
				}
			}

			// Reset debounce timer - properly stop and drain
			if debounceTimer != nil {
				if !debounceTimer.Stop() {
					select {
					case <-debounceTimer.C:
					default:
					}
				}
			}
			debounceTimer = time.AfterFunc(w.debounceTime, func() {
				select {
				case rerunCh <- struct{}{}:
				default:
				}
			})

		case <-rerunCh:
			w.rerun(ctx, removed)
			removed = make(map[string]bool)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("File watcher error: %v", err)
		}
	}
}

// rerun drops removed units and runs the batch again. Unchanged units
// are skipped by the runner's memo, so only the changed ones re-extract.
func (w *Watcher) rerun(ctx context.Context, removed map[string]bool) {
	for unit := range removed {
		w.runner.memo.forget(unit)
		if w.runner.sink != nil {
			if err := w.runner.sink.DeleteUnit(unit); err != nil {
				log.Printf("Warning: failed to drop removed unit %s: %v", unit, err)
			}
		}
	}

	log.Println("Re-extracting changed units...")
	start := time.Now()

	stats, err := w.runner.Run(ctx)
	if err != nil {
		log.Printf("Error during re-extraction: %v", err)
		return
	}

	log.Printf("Re-extraction complete in %v (%d extracted, %d skipped, %d entities)",
		time.Since(start).Round(time.Millisecond),
		stats.UnitsExtracted, stats.UnitsSkipped, stats.Entities)
}

// shouldProcessEvent checks if an event should trigger re-extraction.
func (w *Watcher) shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}

	relPath, err := filepath.Rel(w.rootDir, event.Name)
	if err != nil {
		return false
	}

	// Normalize path separators for glob matching
	relPath = filepath.ToSlash(relPath)

	if w.runner.discovery.shouldIgnore(relPath) {
		return false
	}

	return w.runner.discovery.matchesAnyPattern(relPath, w.runner.discovery.includePatterns)
}

// shouldWatchDirectory checks if a directory should be watched.
func (w *Watcher) shouldWatchDirectory(path string) bool {
	relPath, err := filepath.Rel(w.rootDir, path)
	if err != nil {
		return false
	}

	relPath = filepath.ToSlash(relPath)

	return !w.runner.discovery.shouldIgnore(relPath)
}

// addDirectoriesRecursively adds all directories in the tree to the watcher.
func (w *Watcher) addDirectoriesRecursively(rootPath string) error {
	return filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// Log but continue - don't fail the entire watch for one directory
			log.Printf("Warning: error accessing %s: %v", path, err)
			return nil
		}

		if !info.IsDir() {
			return nil
		}

		if !w.shouldWatchDirectory(path) {
			return filepath.SkipDir
		}

		if err := w.watcher.Add(path); err != nil {
			log.Printf("Warning: failed to watch directory %s: %v", path, err)
			return nil // Continue anyway
		}

		return nil
	})
}
