package editor

import (
	"sort"
	"sync"
)

// EventKind enumerates the notifications a buffer or view can raise.
type EventKind int

const (
	EventReparsed EventKind = iota
	EventEdited
	EventExcerptsEdited
	EventBufferEdited
	EventSaved
	EventInlayHintsToggled
	// EventInlaysChanged fires after every inlay splice. It is informational
	// and never an activation signal.
	EventInlaysChanged
)

func (k EventKind) String() string {
	switch k {
	case EventReparsed:
		return "reparsed"
	case EventEdited:
		return "edited"
	case EventExcerptsEdited:
		return "excerpts_edited"
	case EventBufferEdited:
		return "buffer_edited"
	case EventSaved:
		return "saved"
	case EventInlayHintsToggled:
		return "inlay_hints_toggled"
	case EventInlaysChanged:
		return "inlays_changed"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers of a Buffer or View.
type Event struct {
	Kind EventKind
	// Path identifies the buffer for buffer-originated events.
	Path string
	// Enabled carries the new value for EventInlayHintsToggled.
	Enabled bool
}

// Bus fans events out to subscribers. Handlers run synchronously on the
// emitting goroutine and must not block.
type Bus struct {
	mu       sync.Mutex
	nextID   int
	handlers map[int]func(Event)
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn func(Event)) func() {
	if fn == nil {
		return func() {}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers == nil {
		b.handlers = make(map[int]func(Event))
	}
	id := b.nextID
	b.nextID++
	b.handlers[id] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		})
	}
}

// Emit delivers ev to every current subscriber in subscription order.
func (b *Bus) Emit(ev Event) {
	b.mu.Lock()
	ids := make([]int, 0, len(b.handlers))
	for id := range b.handlers {
		ids = append(ids, id)
	}
	handlers := make([]func(Event), 0, len(ids))
	sort.Ints(ids)
	for _, id := range ids {
		handlers = append(handlers, b.handlers[id])
	}
	b.mu.Unlock()
	for _, fn := range handlers {
		fn(ev)
	}
}
