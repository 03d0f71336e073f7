package editor

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Point is a zero-based line/column pair. Columns count bytes.
type Point struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Buffer holds the text of one file open in the editor.
type Buffer struct {
	mu         sync.RWMutex
	path       string
	languageID string
	text       string
	version    int
	bus        Bus
}

// NewBuffer creates a buffer at version 1.
func NewBuffer(path, languageID, text string) *Buffer {
	return &Buffer{path: path, languageID: languageID, text: text, version: 1}
}

// Path returns the file path backing the buffer.
func (b *Buffer) Path() string { return b.path }

// LanguageID returns the language identifier of the buffer.
func (b *Buffer) LanguageID() string { return b.languageID }

// Snapshot returns an immutable copy of the current contents.
func (b *Buffer) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return newSnapshot(b.path, b.languageID, b.text, b.version)
}

// Subscribe registers a handler for events raised by this buffer.
func (b *Buffer) Subscribe(fn func(Event)) func() {
	return b.bus.Subscribe(fn)
}

// SetText replaces the whole contents. No events fire when the text is
// unchanged.
func (b *Buffer) SetText(text string) {
	b.mu.Lock()
	if b.text == text {
		b.mu.Unlock()
		return
	}
	b.text = text
	b.version++
	b.mu.Unlock()
	b.emitEdited()
}

// Edit replaces the byte range [start, end) with text.
func (b *Buffer) Edit(start, end int, text string) error {
	b.mu.Lock()
	if start < 0 || end < start || end > len(b.text) {
		b.mu.Unlock()
		return fmt.Errorf("edit range [%d,%d) outside buffer of length %d", start, end, len(b.text))
	}
	b.text = b.text[:start] + text + b.text[end:]
	b.version++
	b.mu.Unlock()
	b.emitEdited()
	return nil
}

// MarkSaved signals that the buffer was written to disk.
func (b *Buffer) MarkSaved() {
	b.bus.Emit(Event{Kind: EventSaved, Path: b.path})
}

// MarkReparsed signals that the syntax tree for the buffer was rebuilt.
func (b *Buffer) MarkReparsed() {
	b.bus.Emit(Event{Kind: EventReparsed, Path: b.path})
}

func (b *Buffer) emitEdited() {
	b.bus.Emit(Event{Kind: EventBufferEdited, Path: b.path})
	b.bus.Emit(Event{Kind: EventEdited, Path: b.path})
}

// Snapshot is a point-in-time view of a buffer. Offsets taken from one
// snapshot are only meaningful against that snapshot.
type Snapshot struct {
	path       string
	languageID string
	text       string
	version    int
	lineStarts []int
}

func newSnapshot(path, languageID, text string, version int) Snapshot {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return Snapshot{path: path, languageID: languageID, text: text, version: version, lineStarts: starts}
}

// NewSnapshot builds a detached snapshot, mostly useful in tests.
func NewSnapshot(path, languageID, text string) Snapshot {
	return newSnapshot(path, languageID, text, 1)
}

func (s Snapshot) Path() string       { return s.path }
func (s Snapshot) LanguageID() string { return s.languageID }
func (s Snapshot) Text() string       { return s.text }
func (s Snapshot) Version() int       { return s.version }
func (s Snapshot) Len() int           { return len(s.text) }

// Hash returns the xxhash of the snapshot text.
func (s Snapshot) Hash() uint64 {
	return xxhash.Sum64String(s.text)
}

// LineCount returns the number of lines, counting a trailing partial line.
func (s Snapshot) LineCount() int {
	return len(s.lineStarts)
}

// Line returns the text of line n without its newline.
func (s Snapshot) Line(n int) string {
	if n < 0 || n >= len(s.lineStarts) {
		return ""
	}
	start := s.lineStarts[n]
	end := len(s.text)
	if n+1 < len(s.lineStarts) {
		end = s.lineStarts[n+1] - 1
	}
	return strings.TrimSuffix(s.text[start:end], "\r")
}

// LineStart returns the offset of the first byte of line n.
func (s Snapshot) LineStart(n int) int {
	if n <= 0 {
		return 0
	}
	if n >= len(s.lineStarts) {
		return len(s.text)
	}
	return s.lineStarts[n]
}

// Clip clamps off into [0, Len()].
func (s Snapshot) Clip(off int) int {
	if off < 0 {
		return 0
	}
	if off > len(s.text) {
		return len(s.text)
	}
	return off
}

// OffsetToPoint converts a byte offset to a line/column pair.
func (s Snapshot) OffsetToPoint(off int) Point {
	off = s.Clip(off)
	line := sort.Search(len(s.lineStarts), func(i int) bool { return s.lineStarts[i] > off }) - 1
	if line < 0 {
		line = 0
	}
	return Point{Line: line, Column: off - s.lineStarts[line]}
}

// PointToOffset converts a line/column pair to a byte offset, clamping
// columns past the end of the line.
func (s Snapshot) PointToOffset(p Point) int {
	if p.Line < 0 {
		return 0
	}
	if p.Line >= len(s.lineStarts) {
		return len(s.text)
	}
	start := s.lineStarts[p.Line]
	end := len(s.text)
	if p.Line+1 < len(s.lineStarts) {
		end = s.lineStarts[p.Line+1] - 1
	}
	off := start + p.Column
	if p.Column < 0 {
		off = start
	}
	if off > end {
		off = end
	}
	return off
}
