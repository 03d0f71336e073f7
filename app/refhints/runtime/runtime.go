// Package runtime wires settings, editor views, symbol backends and the
// reference hint controller into one process-wide Runtime shared by the CLI
// and the terminal viewer.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/lexcodex/refhints/framework/ast"
	"github.com/lexcodex/refhints/framework/editor"
	"github.com/lexcodex/refhints/framework/refhints"
	"github.com/lexcodex/refhints/internal/settings"
	"github.com/lexcodex/refhints/internal/watch"
	"github.com/lexcodex/refhints/tools"
)

// ErrHintsDisabled is returned by Annotate when the feature or the inlay
// hint switch is off.
var ErrHintsDisabled = errors.New("reference hints are disabled")

// ErrRefreshDropped is returned by Annotate when the controller went idle
// without publishing for the refresh it started.
var ErrRefreshDropped = errors.New("refresh dropped")

// Options configures New.
type Options struct {
	Config Config
	// LogOutput receives the log in addition to the log file.
	LogOutput io.Writer
	// Proxy serves the lsp backend. It is required when that backend is
	// selected and is closed with the runtime.
	Proxy *tools.Proxy
	// WatchFiles reloads open buffers when their files change on disk.
	WatchFiles bool
	// WatchSettings reloads the settings file when it changes.
	WatchSettings bool
}

// Runtime owns the long-lived components behind the CLI and the viewer.
type Runtime struct {
	Config     Config
	Settings   *settings.Store
	Logger     *log.Logger
	Controller *refhints.Controller
	// Index is nil unless the index backend is selected.
	Index *ast.IndexManager
	// Proxy is nil unless the lsp backend is selected.
	Proxy *tools.Proxy

	logFile         io.Closer
	store           ast.IndexStore
	watcher         *watch.BufferWatcher
	settingsWatcher *settings.Watcher
	unsubSettings   func()

	mu        sync.Mutex
	view      *editor.View
	unsubView func()
	watched   []*editor.Buffer
	listeners map[int]func([]refhints.Annotation)
	drops     map[int]func(uint64, string)
	nextID    int
	enabled   bool
}

// New builds a runtime with the backend chosen by Config.Backend or the
// settings file.
func New(ctx context.Context, opts Options) (*Runtime, error) {
	cfg := opts.Config
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	bootLogger := log.New(io.Discard, "", 0)
	store, err := settings.Open(cfg.Workspace, cfg.ConfigPath, bootLogger)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	current := store.Settings()
	cfg.apply(current)

	if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	logFile, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	var out io.Writer = logFile
	if opts.LogOutput != nil {
		out = io.MultiWriter(opts.LogOutput, logFile)
	}
	logger := log.New(out, "refhints ", log.LstdFlags|log.Lmicroseconds)
	store = settings.NewStore(store.Path(), current, logger)

	rt := &Runtime{
		Config:    cfg,
		Settings:  store,
		Logger:    logger,
		logFile:   logFile,
		listeners: make(map[int]func([]refhints.Annotation)),
		drops:     make(map[int]func(uint64, string)),
		enabled:   current.SymbolRefHints.Enabled,
	}
	sources, err := rt.buildSources(current, opts.Proxy)
	if err != nil {
		logFile.Close()
		return nil, err
	}
	rt.Controller = refhints.NewController(refhints.ControllerOptions{
		Outline:    sources.outline,
		Symbols:    sources.symbols,
		References: sources.references,
		Config:     store,
		Enabled:    current.SymbolRefHints.Enabled,
		Logger:     logger,
		Verbose:    cfg.Verbose,
	})
	rt.Controller.OnPublish(rt.firePublish)
	rt.Controller.OnDrop(rt.fireDrop)
	rt.unsubSettings = store.Subscribe(rt.settingsChanged)

	if opts.WatchFiles {
		w, err := watch.New(watch.Options{Logger: logger})
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("start file watcher: %w", err)
		}
		rt.watcher = w
	}
	if opts.WatchSettings {
		if err := os.MkdirAll(filepath.Dir(cfg.ConfigPath), 0o755); err != nil {
			rt.Close()
			return nil, err
		}
		w, err := store.Watch()
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("watch settings: %w", err)
		}
		rt.settingsWatcher = w
	}
	logger.Printf("runtime ready: workspace=%s backend=%s", cfg.Workspace, cfg.Backend)
	return rt, nil
}

type sources struct {
	outline    refhints.OutlineSource
	symbols    refhints.SymbolSource
	references refhints.ReferenceService
}

func (r *Runtime) buildSources(s settings.Settings, proxy *tools.Proxy) (sources, error) {
	parser := ast.NewSnapshotParser(nil)
	structural := ast.NewOutlineProvider(parser)
	switch r.Config.Backend {
	case settings.BackendLSP:
		if proxy == nil {
			return sources{}, fmt.Errorf("%w: the lsp backend needs a language server", tools.ErrNoClient)
		}
		r.Proxy = proxy
		return sources{
			outline:    firstOutline{structural, &tools.LSPOutlineSource{Proxy: proxy}},
			symbols:    &tools.LSPSymbolSource{Proxy: proxy},
			references: &tools.LSPReferenceService{Proxy: proxy},
		}, nil
	default:
		store, err := ast.NewSQLiteStore(r.Config.IndexPath)
		if err != nil {
			return sources{}, fmt.Errorf("open index: %w", err)
		}
		r.store = store
		r.Index = ast.NewIndexManager(store, ast.IndexConfig{
			WorkspacePath:   r.Config.Workspace,
			ParallelWorkers: s.Index.Workers,
			IgnorePatterns:  s.Index.Ignore,
			Logger:          r.Logger,
		})
		return sources{
			outline:    structural,
			symbols:    ast.NewSymbolProvider(parser),
			references: ast.NewIndexReferenceService(r.Index),
		}, nil
	}
}

// firstOutline asks each source in turn and keeps the first non-empty
// outline.
type firstOutline []refhints.OutlineSource

func (f firstOutline) Outline(snap editor.Snapshot) []refhints.OutlineEntry {
	for _, src := range f {
		if entries := src.Outline(snap); len(entries) > 0 {
			return entries
		}
	}
	return nil
}

func (r *Runtime) settingsChanged(s settings.Settings) {
	r.mu.Lock()
	toggled := r.enabled != s.SymbolRefHints.Enabled
	r.enabled = s.SymbolRefHints.Enabled
	r.mu.Unlock()
	r.Logger.Printf("settings changed: enabled=%v debounce=%dms", s.SymbolRefHints.Enabled, s.InlayHints.EditDebounceMs)
	if toggled {
		r.Controller.SetEnabled(s.SymbolRefHints.Enabled)
		return
	}
	r.Controller.Notify(refhints.Event{Signal: refhints.SignalSettingsChanged})
}

// OpenFile loads path into a buffer shown by a new singleton view and makes
// that view active.
func (r *Runtime) OpenFile(path string) (*editor.View, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.Config.Workspace, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	language := ast.NewLanguageDetector().Detect(path)
	buf := editor.NewBuffer(path, language, string(data))
	view := editor.SingletonView(buf, r.Settings.Settings().InlayHints.Enabled)
	if err := r.SetActiveView(view); err != nil {
		return nil, err
	}
	return view, nil
}

// SetActiveView re-points the controller at view. Subscriptions on the
// previous view are released and its hints removed.
func (r *Runtime) SetActiveView(view *editor.View) error {
	r.mu.Lock()
	if r.unsubView != nil {
		r.unsubView()
		r.unsubView = nil
	}
	if r.watcher != nil {
		for _, buf := range r.watched {
			r.watcher.Remove(buf)
		}
	}
	r.watched = nil
	r.view = view
	if view != nil {
		r.unsubView = view.Subscribe(func(ev editor.Event) {
			if activation, ok := refhints.EventFromEditor(ev); ok {
				r.Controller.Notify(activation)
			}
		})
		if r.watcher != nil {
			for _, ex := range view.Excerpts() {
				if err := r.watcher.Add(ex.Buffer); err != nil {
					r.Logger.Printf("watch %s: %v", ex.Buffer.Path(), err)
					continue
				}
				r.watched = append(r.watched, ex.Buffer)
			}
		}
	}
	r.mu.Unlock()

	if view == nil {
		r.Controller.SetSurface(nil, nil)
		return nil
	}
	r.Controller.SetSurface(view, view)
	return nil
}

// ActiveView returns the view the controller is attached to.
func (r *Runtime) ActiveView() *editor.View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view
}

// OnPublish registers fn for every published annotation set.
func (r *Runtime) OnPublish(fn func([]refhints.Annotation)) (unsubscribe func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

func (r *Runtime) firePublish(annotations []refhints.Annotation) {
	r.mu.Lock()
	fns := make([]func([]refhints.Annotation), 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	r.mu.Unlock()
	for _, fn := range fns {
		fn(annotations)
	}
}

// OnDrop registers fn for every refresh that ends without publishing. It
// receives the revision that went idle and the reason.
func (r *Runtime) OnDrop(fn func(rev uint64, reason string)) (unsubscribe func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.drops[id] = fn
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.drops, id)
		r.mu.Unlock()
	}
}

func (r *Runtime) fireDrop(rev uint64, reason string) {
	r.mu.Lock()
	fns := make([]func(uint64, string), 0, len(r.drops))
	for _, fn := range r.drops {
		fns = append(fns, fn)
	}
	r.mu.Unlock()
	for _, fn := range fns {
		fn(rev, reason)
	}
}

type droppedRefresh struct {
	rev    uint64
	reason string
}

// Annotate runs one refresh of the active view and waits for it to publish.
// It returns early if that refresh, or a later one, is dropped.
func (r *Runtime) Annotate(ctx context.Context) ([]refhints.Annotation, error) {
	view := r.ActiveView()
	if view == nil {
		return nil, errors.New("no active view")
	}
	if !r.Controller.Enabled() || !r.Settings.Configuration().HintsEnabled || !view.InlayHintsEnabled() {
		return nil, ErrHintsDisabled
	}
	if !view.IsSingleton() {
		return nil, errors.New("reference hints need a single-buffer view")
	}
	published := make(chan []refhints.Annotation, 1)
	unsubscribe := r.OnPublish(func(annotations []refhints.Annotation) {
		select {
		case published <- annotations:
		default:
		}
	})
	defer unsubscribe()
	dropped := make(chan droppedRefresh, 16)
	unsubscribeDrops := r.OnDrop(func(rev uint64, reason string) {
		select {
		case dropped <- droppedRefresh{rev: rev, reason: reason}:
		default:
		}
	})
	defer unsubscribeDrops()
	r.Controller.Refresh()
	rev := r.Controller.Revision()
	for {
		select {
		case annotations := <-published:
			return annotations, nil
		case d := <-dropped:
			if d.rev < rev {
				continue
			}
			if !r.Controller.Enabled() || !r.Settings.Configuration().HintsEnabled || !view.InlayHintsEnabled() {
				return nil, ErrHintsDisabled
			}
			return nil, fmt.Errorf("%w: %s", ErrRefreshDropped, d.reason)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Refresh schedules an immediate refresh of the active view.
func (r *Runtime) Refresh() {
	r.Controller.Refresh()
}

// SetHintsEnabled flips symbol_ref_hints.enabled for this process. The
// settings file is left untouched.
func (r *Runtime) SetHintsEnabled(enabled bool) error {
	next := r.Settings.Settings()
	next.SymbolRefHints.Enabled = enabled
	return r.Settings.Update(next)
}

// IndexWorkspace rebuilds the reference index.
func (r *Runtime) IndexWorkspace(ctx context.Context) (*ast.IndexReport, error) {
	if r.Index == nil {
		return nil, fmt.Errorf("backend %s has no index", r.Config.Backend)
	}
	return r.Index.IndexWorkspace(ctx)
}

// Close releases resources managed by the runtime.
func (r *Runtime) Close() error {
	if r.unsubSettings != nil {
		r.unsubSettings()
	}
	if r.settingsWatcher != nil {
		_ = r.settingsWatcher.Close()
	}
	r.mu.Lock()
	if r.unsubView != nil {
		r.unsubView()
		r.unsubView = nil
	}
	r.mu.Unlock()
	if r.Controller != nil {
		r.Controller.Close()
	}
	if r.watcher != nil {
		_ = r.watcher.Close()
	}
	var errs []error
	if r.Proxy != nil {
		errs = append(errs, r.Proxy.Close())
	}
	if r.store != nil {
		errs = append(errs, r.store.Close())
	}
	if r.logFile != nil {
		errs = append(errs, r.logFile.Close())
	}
	return errors.Join(errs...)
}
