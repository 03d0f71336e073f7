package editor

import (
	"sort"
	"sync"
)

// InlayKind partitions inlay identifiers between features so that one
// feature never removes another's inlays.
type InlayKind int

const (
	InlayHint InlayKind = iota
	InlaySymbolRefHint
)

// InlayID identifies a rendered inlay.
type InlayID struct {
	Kind  InlayKind
	Value int
}

// Inlay is non-editable text rendered before the byte at Position.
type Inlay struct {
	ID       InlayID
	Position int
	Text     string
}

// Excerpt is a byte range of a buffer shown in a view. End < 0 means the
// excerpt runs to the end of the buffer.
type Excerpt struct {
	Buffer *Buffer
	Start  int
	End    int
}

// Whole returns an excerpt covering all of buf.
func Whole(buf *Buffer) Excerpt {
	return Excerpt{Buffer: buf, Start: 0, End: -1}
}

func (e Excerpt) coversBuffer() bool {
	if e.Buffer == nil || e.Start != 0 {
		return false
	}
	return e.End < 0 || e.End >= e.Buffer.Snapshot().Len()
}

// View is an editor pane showing one or more excerpts with inlays.
type View struct {
	mu           sync.RWMutex
	excerpts     []Excerpt
	active       int
	unsubs       []func()
	hintsEnabled bool
	inlays       map[InlayID]Inlay
	bus          Bus
}

// NewView builds a view over the given excerpts.
func NewView(hintsEnabled bool, excerpts ...Excerpt) *View {
	v := &View{hintsEnabled: hintsEnabled, inlays: make(map[InlayID]Inlay)}
	v.mu.Lock()
	v.attachLocked(excerpts)
	v.mu.Unlock()
	return v
}

// SingletonView builds a view showing the whole of buf.
func SingletonView(buf *Buffer, hintsEnabled bool) *View {
	return NewView(hintsEnabled, Whole(buf))
}

// Subscribe registers a handler for view events, including events forwarded
// from the buffers in the view.
func (v *View) Subscribe(fn func(Event)) func() {
	return v.bus.Subscribe(fn)
}

// Close releases the view's subscriptions on its buffers.
func (v *View) Close() {
	v.mu.Lock()
	v.detachLocked()
	v.mu.Unlock()
}

func (v *View) attachLocked(excerpts []Excerpt) {
	v.excerpts = append([]Excerpt(nil), excerpts...)
	v.active = 0
	seen := make(map[*Buffer]bool)
	for _, ex := range v.excerpts {
		if ex.Buffer == nil || seen[ex.Buffer] {
			continue
		}
		seen[ex.Buffer] = true
		v.unsubs = append(v.unsubs, ex.Buffer.Subscribe(v.bus.Emit))
	}
}

func (v *View) detachLocked() {
	for _, unsub := range v.unsubs {
		unsub()
	}
	v.unsubs = nil
}

// SetExcerpts replaces the excerpts shown by the view.
func (v *View) SetExcerpts(excerpts ...Excerpt) {
	v.mu.Lock()
	v.detachLocked()
	v.attachLocked(excerpts)
	v.mu.Unlock()
	v.bus.Emit(Event{Kind: EventExcerptsEdited})
}

// AddExcerpt appends an excerpt, turning a singleton view into a
// multi-excerpt one.
func (v *View) AddExcerpt(ex Excerpt) {
	v.mu.RLock()
	excerpts := append(append([]Excerpt(nil), v.excerpts...), ex)
	v.mu.RUnlock()
	v.SetExcerpts(excerpts...)
}

// Excerpts returns a copy of the current excerpts.
func (v *View) Excerpts() []Excerpt {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]Excerpt(nil), v.excerpts...)
}

// SetActiveExcerpt moves the cursor into excerpt i.
func (v *View) SetActiveExcerpt(i int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if i >= 0 && i < len(v.excerpts) {
		v.active = i
	}
}

// IsSingleton reports whether the view shows exactly one whole buffer.
func (v *View) IsSingleton() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.excerpts) == 1 && v.excerpts[0].coversBuffer()
}

// ActiveBuffer returns the buffer under the cursor.
func (v *View) ActiveBuffer() (*Buffer, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if len(v.excerpts) == 0 || v.excerpts[v.active].Buffer == nil {
		return nil, false
	}
	return v.excerpts[v.active].Buffer, true
}

// ActiveSnapshot returns a snapshot of the buffer under the cursor.
func (v *View) ActiveSnapshot() (Snapshot, bool) {
	buf, ok := v.ActiveBuffer()
	if !ok {
		return Snapshot{}, false
	}
	return buf.Snapshot(), true
}

// InlayHintsEnabled reports the view's own hint-display setting.
func (v *View) InlayHintsEnabled() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.hintsEnabled
}

// SetInlayHintsEnabled toggles hint display and emits
// EventInlayHintsToggled when the value changes.
func (v *View) SetInlayHintsEnabled(enabled bool) {
	v.mu.Lock()
	changed := v.hintsEnabled != enabled
	v.hintsEnabled = enabled
	v.mu.Unlock()
	if changed {
		v.bus.Emit(Event{Kind: EventInlayHintsToggled, Enabled: enabled})
	}
}

// SpliceInlays removes the given ids and inserts the new inlays as one
// atomic step.
func (v *View) SpliceInlays(remove []InlayID, insert []Inlay) {
	v.mu.Lock()
	for _, id := range remove {
		delete(v.inlays, id)
	}
	for _, inlay := range insert {
		v.inlays[inlay.ID] = inlay
	}
	v.mu.Unlock()
	v.bus.Emit(Event{Kind: EventInlaysChanged})
}

// Inlays returns every inlay ordered by position, then id.
func (v *View) Inlays() []Inlay {
	v.mu.RLock()
	out := make([]Inlay, 0, len(v.inlays))
	for _, inlay := range v.inlays {
		out = append(out, inlay)
	}
	v.mu.RUnlock()
	sortInlays(out)
	return out
}

// InlaysOfKind returns the inlays owned by one feature.
func (v *View) InlaysOfKind(kind InlayKind) []Inlay {
	all := v.Inlays()
	out := all[:0]
	for _, inlay := range all {
		if inlay.ID.Kind == kind {
			out = append(out, inlay)
		}
	}
	return out
}

func sortInlays(inlays []Inlay) {
	sort.Slice(inlays, func(i, j int) bool {
		a, b := inlays[i], inlays[j]
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		if a.ID.Kind != b.ID.Kind {
			return a.ID.Kind < b.ID.Kind
		}
		return a.ID.Value < b.ID.Value
	})
}
