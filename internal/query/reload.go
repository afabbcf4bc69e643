package query

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Reloader watches query definition directories and rebuilds the store
// when .scm files change. The rebuilt store is delivered through the
// callback; a rebuild that fails to load keeps the previous store in
// service and only logs the failure.
type Reloader struct {
	watcher  *fsnotify.Watcher
	dirs     []string
	debounce time.Duration
	callback func(*Store)

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	done     chan struct{}

	dirty   bool
	dirtyMu sync.Mutex

	timer   *time.Timer
	timerMu sync.Mutex
}

// NewReloader creates a reloader for the given query directories.
func NewReloader(dirs []string) (*Reloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, err
		}
	}
	return &Reloader{
		watcher:  watcher,
		dirs:     dirs,
		debounce: 500 * time.Millisecond,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. The callback receives each successfully rebuilt
// store; it runs on the reloader's goroutine and must not block long.
func (r *Reloader) Start(ctx context.Context, callback func(*Store)) error {
	if callback == nil {
		return nil
	}
	r.callback = callback
	r.ctx, r.cancel = context.WithCancel(ctx)
	go r.watch()
	return nil
}

// Stop halts watching and waits for the watch goroutine to exit.
func (r *Reloader) Stop() error {
	var err error
	r.stopOnce.Do(func() {
		if r.cancel != nil {
			r.cancel()
			<-r.done
		} else {
			close(r.done)
		}
		err = r.watcher.Close()
	})
	return err
}

func (r *Reloader) watch() {
	defer close(r.done)

	reloadCh := make(chan struct{}, 1)

	for {
		select {
		case <-r.ctx.Done():
			r.stopTimer()
			return

		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".scm") {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			r.dirtyMu.Lock()
			r.dirty = true
			r.dirtyMu.Unlock()
			r.resetTimer(reloadCh)

		case <-reloadCh:
			r.reload()

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Query reloader error: %v", err)
		}
	}
}

func (r *Reloader) reload() {
	r.dirtyMu.Lock()
	if !r.dirty {
		r.dirtyMu.Unlock()
		return
	}
	r.dirty = false
	r.dirtyMu.Unlock()

	store, err := r.rebuild()
	if err != nil {
		log.Printf("Warning: query reload failed, keeping previous query sets: %v", err)
		return
	}
	r.callback(store)
}

// rebuild loads the embedded sets and layers the watched directories on
// top, the same composition used at startup.
func (r *Reloader) rebuild() (*Store, error) {
	store, err := LoadEmbedded()
	if err != nil {
		return nil, err
	}
	for _, dir := range r.dirs {
		if err := store.LoadDir(dir); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func (r *Reloader) resetTimer(reloadCh chan struct{}) {
	r.timerMu.Lock()
	defer r.timerMu.Unlock()

	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.debounce, func() {
		select {
		case reloadCh <- struct{}{}:
		default:
		}
	})
}

func (r *Reloader) stopTimer() {
	r.timerMu.Lock()
	defer r.timerMu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
	}
}
