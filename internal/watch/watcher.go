// Package watch keeps open editor buffers in sync with their files on disk.
package watch

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lexcodex/refhints/framework/editor"
)

// DefaultDebounce coalesces the burst of events a single save produces.
const DefaultDebounce = 50 * time.Millisecond

// Options configures a BufferWatcher.
type Options struct {
	Debounce time.Duration
	Logger   *log.Logger
	// OnReload runs after a buffer was refreshed from disk.
	OnReload func(path string, changed bool)
}

// BufferWatcher reloads buffers whose files change on disk. A reload with
// new content raises BufferEdited and Edited; every reload raises Saved.
type BufferWatcher struct {
	watcher  *fsnotify.Watcher
	logger   *log.Logger
	debounce time.Duration
	onReload func(path string, changed bool)

	mu      sync.Mutex
	closed  bool
	buffers map[string]*editor.Buffer
	dirs    map[string]int
	timers  map[string]*time.Timer

	done chan struct{}
	wg   sync.WaitGroup
}

// New starts the event loop. Buffers are registered with Add.
func New(opts Options) (*BufferWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &BufferWatcher{
		watcher:  fw,
		logger:   logger,
		debounce: debounce,
		onReload: opts.OnReload,
		buffers:  make(map[string]*editor.Buffer),
		dirs:     make(map[string]int),
		timers:   make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.processEvents()
	return w, nil
}

func key(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// Add watches buf's file. The containing directory is watched so that
// atomic replace-on-save is seen.
func (w *BufferWatcher) Add(buf *editor.Buffer) error {
	path := key(buf.Path())
	dir := filepath.Dir(path)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("watcher closed")
	}
	if _, ok := w.buffers[path]; ok {
		w.buffers[path] = buf
		return nil
	}
	if w.dirs[dir] == 0 {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	w.dirs[dir]++
	w.buffers[path] = buf
	return nil
}

// Remove stops watching buf's file.
func (w *BufferWatcher) Remove(buf *editor.Buffer) {
	path := key(buf.Path())
	dir := filepath.Dir(path)
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.buffers[path]; !ok {
		return
	}
	delete(w.buffers, path)
	w.stopTimerLocked(path)
	w.dirs[dir]--
	if w.dirs[dir] <= 0 {
		delete(w.dirs, dir)
		if !w.closed {
			_ = w.watcher.Remove(dir)
		}
	}
}

func (w *BufferWatcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Printf("watch: watcher error: %v", err)
		}
	}
}

func (w *BufferWatcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	path := filepath.Clean(event.Name)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if _, ok := w.buffers[path]; !ok {
		return
	}
	w.stopTimerLocked(path)
	w.wg.Add(1)
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		defer w.wg.Done()
		w.reload(path)
	})
}

// stopTimerLocked cancels a pending reload. A timer that was stopped before
// firing never runs its deferred wg.Done, so it is released here.
func (w *BufferWatcher) stopTimerLocked(path string) {
	if timer, ok := w.timers[path]; ok {
		if timer.Stop() {
			w.wg.Done()
		}
		delete(w.timers, path)
	}
}

func (w *BufferWatcher) reload(path string) {
	w.mu.Lock()
	buf, ok := w.buffers[path]
	delete(w.timers, path)
	closed := w.closed
	w.mu.Unlock()
	if !ok || closed {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		w.logger.Printf("watch: reload %s: %v", path, err)
		return
	}
	text := string(data)
	changed := buf.Snapshot().Text() != text
	if changed {
		buf.SetText(text)
	}
	buf.MarkSaved()
	if w.onReload != nil {
		w.onReload(path, changed)
	}
}

// Close stops watching and waits for pending reloads.
func (w *BufferWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for path := range w.timers {
		w.stopTimerLocked(path)
	}
	w.mu.Unlock()
	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}
