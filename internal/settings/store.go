package settings

import (
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/lexcodex/refhints/framework/refhints"
)

// Store holds the effective settings and notifies subscribers when they
// change. It implements refhints.ConfigSource.
type Store struct {
	path   string
	logger *log.Logger

	mu       sync.RWMutex
	settings Settings
	subs     map[int]func(Settings)
	nextID   int
}

// NewStore wraps an already loaded value. path is used by Reload and Watch.
func NewStore(path string, initial Settings, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{
		path:     path,
		logger:   logger,
		settings: initial,
		subs:     make(map[int]func(Settings)),
	}
}

// Open loads workspace/.env, the settings file and the environment
// overrides. An empty path selects DefaultPath(workspace).
func Open(workspace, path string, logger *log.Logger) (*Store, error) {
	if path == "" {
		path = DefaultPath(workspace)
	}
	if err := LoadEnv(workspace); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	s, err := loadWithEnv(path)
	if err != nil {
		return nil, err
	}
	return NewStore(path, s, logger), nil
}

func loadWithEnv(path string) (Settings, error) {
	s, err := Load(path)
	if err != nil {
		return s, err
	}
	if err := s.ApplyEnv(); err != nil {
		return s, err
	}
	return s, nil
}

// Path returns the settings file backing the store.
func (s *Store) Path() string { return s.path }

// Settings returns a copy of the current value.
func (s *Store) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Configuration implements refhints.ConfigSource.
func (s *Store) Configuration() refhints.Configuration {
	return s.Settings().Configuration()
}

// Subscribe registers fn for every Update. Callbacks run on the updating
// goroutine, in registration order.
func (s *Store) Subscribe(fn func(Settings)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Update replaces the settings and notifies subscribers.
func (s *Store) Update(next Settings) error {
	if err := next.Normalize(); err != nil {
		return err
	}
	s.mu.Lock()
	s.settings = next
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]func(Settings), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, s.subs[id])
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(next)
	}
	return nil
}

// Reload rereads the file and the environment. On error the current value
// is kept.
func (s *Store) Reload() error {
	next, err := loadWithEnv(s.path)
	if err != nil {
		return err
	}
	return s.Update(next)
}

// Watcher reloads a Store when its file changes on disk.
type Watcher struct {
	store   *Store
	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// Watch starts watching the settings file. The parent directory is watched
// so that editors replacing the file are seen; it must exist.
func (s *Store) Watch() (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(s.path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(s.path), err)
	}
	w := &Watcher{store: s, watcher: fw, done: make(chan struct{})}
	w.wg.Add(1)
	go w.processEvents()
	return w, nil
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	target := filepath.Clean(w.store.path)
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := w.store.Reload(); err != nil {
				w.store.logger.Printf("settings: reload %s: %v", target, err)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.store.logger.Printf("settings: watcher error: %v", err)
		}
	}
}

// Close stops the watcher and waits for its goroutine.
func (w *Watcher) Close() error {
	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}
