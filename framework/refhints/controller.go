package refhints

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// State is the phase of the controller's current refresh cycle.
type State int

const (
	StateIdle State = iota
	StateDebouncing
	StateResolvingSymbols
	StateQueryingReferences
	StatePublishing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDebouncing:
		return "debouncing"
	case StateResolvingSymbols:
		return "resolving_symbols"
	case StateQueryingReferences:
		return "querying_references"
	case StatePublishing:
		return "publishing"
	default:
		return "unknown"
	}
}

// Stats counts controller activity since construction.
type Stats struct {
	Activations uint64
	Started     uint64
	Published   uint64
	Discarded   uint64
	Cleared     uint64
	Queries     uint64
}

// ControllerOptions wires a Controller to its collaborators.
type ControllerOptions struct {
	Surface    Surface
	Sink       AnnotationSink
	Outline    OutlineSource
	Symbols    SymbolSource
	References ReferenceService
	Config     ConfigSource
	// IDs defaults to DefaultIDRange.
	IDs     IDRange
	Enabled bool
	Logger  *log.Logger
	// Verbose logs every clear and discard.
	Verbose bool
}

// Controller owns the refresh revision and decides when reference hints
// are recomputed. At most one refresh is live: every activation bumps the
// revision, and work captured under an older revision is dropped at its
// next checkpoint instead of being applied.
type Controller struct {
	outline    OutlineSource
	symbols    SymbolSource
	references ReferenceService
	config     ConfigSource
	ids        IDRange
	logger     *log.Logger
	verbose    bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu serializes writers. enabled, revision and state are only changed
	// under mu but are atomics so readers never block on a sink splice.
	mu        sync.Mutex
	surface   Surface
	sink      AnnotationSink
	enabled   atomic.Bool
	revision  atomic.Uint64
	state     atomic.Int32
	timer     *time.Timer
	closed    bool
	onPublish func([]Annotation)
	onDrop    func(rev uint64, reason string)

	activations atomic.Uint64
	started     atomic.Uint64
	published   atomic.Uint64
	discarded   atomic.Uint64
	cleared     atomic.Uint64
	queries     atomic.Uint64
}

// NewController builds an idle controller. Nothing runs until Notify,
// Refresh or SetEnabled is called.
func NewController(opts ControllerOptions) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	ids := opts.IDs
	if ids.Capacity <= 0 {
		ids = DefaultIDRange
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = StaticConfig(DefaultConfiguration())
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		outline:    opts.Outline,
		symbols:    opts.Symbols,
		references: opts.References,
		config:     cfg,
		ids:        ids,
		logger:     logger,
		verbose:    opts.Verbose,
		ctx:        ctx,
		cancel:     cancel,
		surface:    opts.Surface,
		sink:       opts.Sink,
	}
	c.enabled.Store(opts.Enabled)
	return c
}

// OnPublish installs a hook called after every successful publish.
func (c *Controller) OnPublish(fn func([]Annotation)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPublish = fn
}

// OnDrop installs a hook called when the controller goes idle without
// publishing and no newer refresh is pending: the hints were cleared, the
// view had no snapshot, or the live refresh was abandoned. rev is the
// revision that went idle.
func (c *Controller) OnDrop(fn func(rev uint64, reason string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDrop = fn
}

// Revision returns the current refresh revision. It never blocks, so it is
// safe to call from a sink's event subscribers.
func (c *Controller) Revision() uint64 {
	return c.revision.Load()
}

// State returns the phase of the live refresh. It never blocks.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Enabled reports the feature flag. It never blocks.
func (c *Controller) Enabled() bool {
	return c.enabled.Load()
}

func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
}

// Stats returns a copy of the activity counters.
func (c *Controller) Stats() Stats {
	return Stats{
		Activations: c.activations.Load(),
		Started:     c.started.Load(),
		Published:   c.published.Load(),
		Discarded:   c.discarded.Load(),
		Cleared:     c.cleared.Load(),
		Queries:     c.queries.Load(),
	}
}

// Notify handles one activation signal. When the feature or any of its
// prerequisites is off, existing hints are cleared and nothing is
// scheduled; otherwise a refresh is scheduled after the edit debounce,
// superseding any refresh in progress.
func (c *Controller) Notify(ev Event) {
	c.activate(ev, nil)
}

// Refresh schedules a refresh without waiting for the debounce interval.
func (c *Controller) Refresh() {
	immediate := time.Duration(0)
	c.activate(Event{Signal: SignalActiveViewChanged}, &immediate)
}

// SetEnabled flips the feature flag. Disabling clears published hints;
// enabling schedules an immediate refresh.
func (c *Controller) SetEnabled(enabled bool) {
	c.mu.Lock()
	c.enabled.Store(enabled)
	c.mu.Unlock()
	if enabled {
		c.Refresh()
		return
	}
	c.mu.Lock()
	var drop func()
	if !c.closed {
		drop = c.clearLocked("disabled")
	}
	c.mu.Unlock()
	if drop != nil {
		drop()
	}
}

// SetSurface points the controller at a different view. Hints published
// into the previous sink are removed, and a refresh is scheduled for the
// new view. A nil surface detaches the controller.
func (c *Controller) SetSurface(surface Surface, sink AnnotationSink) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	drop := c.clearLocked("active view changed")
	c.surface = surface
	c.sink = sink
	c.mu.Unlock()
	if surface != nil {
		c.Notify(Event{Signal: SignalActiveViewChanged})
		return
	}
	drop()
}

// Close invalidates any refresh in flight and waits for background work to
// return. Published hints are left in place.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.revision.Add(1)
	c.stopTimerLocked()
	c.setState(StateIdle)
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
}

func (c *Controller) activate(ev Event, debounce *time.Duration) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.activations.Add(1)
	if ev.HintsEnabled != nil && !*ev.HintsEnabled {
		drop := c.clearLocked("hints toggled off")
		c.mu.Unlock()
		drop()
		return
	}
	cfg := c.config.Configuration()
	if !c.prerequisitesLocked(cfg) {
		drop := c.clearLocked("prerequisites not met")
		c.mu.Unlock()
		drop()
		return
	}
	delay := cfg.EditDebounce
	if debounce != nil {
		delay = *debounce
	}
	c.scheduleLocked(delay)
	c.mu.Unlock()
}

func (c *Controller) prerequisitesLocked(cfg Configuration) bool {
	if !c.enabled.Load() || !cfg.HintsEnabled || c.surface == nil {
		return false
	}
	return c.surface.InlayHintsEnabled() && c.surface.IsSingleton()
}

// clearLocked invalidates the live refresh and empties the reserved range.
// The returned func runs the drop hook and must be called after mu is
// released.
func (c *Controller) clearLocked(reason string) func() {
	rev := c.revision.Add(1)
	c.stopTimerLocked()
	c.setState(StateIdle)
	if c.sink != nil {
		Publish(c.sink, c.ids, nil)
		c.cleared.Add(1)
	}
	c.tracef("cleared at rev %d: %s", rev, reason)
	return c.dropHookLocked(rev, "cleared: "+reason)
}

func (c *Controller) dropHookLocked(rev uint64, reason string) func() {
	hook := c.onDrop
	return func() {
		if hook != nil {
			hook(rev, reason)
		}
	}
}

func (c *Controller) scheduleLocked(delay time.Duration) {
	rev := c.revision.Add(1)
	c.stopTimerLocked()
	c.setState(StateDebouncing)
	c.wg.Add(1)
	c.timer = time.AfterFunc(delay, func() {
		defer c.wg.Done()
		c.run(rev)
	})
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil && c.timer.Stop() {
		// The callback will never run, so release its slot here.
		c.wg.Done()
	}
	c.timer = nil
}

func (c *Controller) currentLocked(rev uint64) bool {
	if c.closed || rev != c.revision.Load() {
		return false
	}
	return c.prerequisitesLocked(c.config.Configuration())
}

func (c *Controller) current(rev uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentLocked(rev)
}

// advance moves to state if rev is still live.
func (c *Controller) advance(rev uint64, state State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(rev) {
		return false
	}
	c.setState(state)
	return true
}

// discard records that rev was abandoned. When rev is still the newest
// revision nothing else will run, so the controller settles to idle and
// reports the drop.
func (c *Controller) discard(rev uint64, phase string) {
	c.discarded.Add(1)
	c.tracef("rev %d discarded after %s", rev, phase)
	c.mu.Lock()
	settled := !c.closed && rev == c.revision.Load()
	var drop func()
	if settled {
		c.setState(StateIdle)
		drop = c.dropHookLocked(rev, "discarded after "+phase)
	}
	c.mu.Unlock()
	if drop != nil {
		drop()
	}
}

func (c *Controller) tracef(format string, args ...interface{}) {
	if c.verbose {
		c.logger.Printf("refhints: "+format, args...)
	}
}
