// Package refhints computes, for every outline entry of the active buffer,
// how many places reference the enclosing symbol, and publishes the counts
// as inlays in a reserved identifier range.
package refhints

import (
	"context"
	"time"

	"github.com/lexcodex/refhints/framework/editor"
)

// Range is a half-open byte range within one snapshot.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether off lies in [Start, End).
func (r Range) Contains(off int) bool {
	return r.Start <= off && off < r.End
}

// Span is the length of the range.
func (r Range) Span() int {
	return r.End - r.Start
}

// OutlineEntry is one navigable top-level item of a document outline.
type OutlineEntry struct {
	Start int
	End   int
}

// DocumentSymbol is a node of the structural symbol tree of a document.
type DocumentSymbol struct {
	Name           string
	Range          Range
	SelectionRange Range
	Children       []DocumentSymbol
}

// FlatSymbol is a DocumentSymbol stripped of its children.
type FlatSymbol struct {
	Name           string
	Range          Range
	SelectionRange Range
}

// Anchor is the position chosen to carry the hint for an outline entry.
// Symbol is empty when no symbol enclosed the entry.
type Anchor struct {
	Offset int
	Symbol string
}

// Location is a reference site reported by a ReferenceService.
type Location struct {
	Path  string
	Start editor.Point
	End   editor.Point
}

// Annotation is a computed hint ready to be spliced into the sink.
type Annotation struct {
	ID       editor.InlayID
	Position int
	Text     string
}

// Inlay converts the annotation into the sink's representation.
func (a Annotation) Inlay() editor.Inlay {
	return editor.Inlay{ID: a.ID, Position: a.Position, Text: a.Text}
}

// Configuration is the explicit settings value the controller reads at the
// start of each activation.
type Configuration struct {
	// EditDebounce delays a refresh after an activation signal.
	EditDebounce time.Duration
	// HintsEnabled is the global inlay-hint switch.
	HintsEnabled bool
	// Capacity bounds the number of published annotations.
	Capacity int
	// ReferenceConcurrency bounds parallel reference queries; values <= 1
	// query sequentially.
	ReferenceConcurrency int
}

const (
	DefaultEditDebounce = 700 * time.Millisecond
	DefaultCapacity     = 1024
)

// DefaultConfiguration returns the settings used when no source is wired.
func DefaultConfiguration() Configuration {
	return Configuration{
		EditDebounce:         DefaultEditDebounce,
		HintsEnabled:         true,
		Capacity:             DefaultCapacity,
		ReferenceConcurrency: 1,
	}
}

// Surface is the editor view the controller is attached to.
type Surface interface {
	IsSingleton() bool
	InlayHintsEnabled() bool
	ActiveSnapshot() (editor.Snapshot, bool)
}

// OutlineSource extracts outline entries from a snapshot.
type OutlineSource interface {
	Outline(snap editor.Snapshot) []OutlineEntry
}

// SymbolSource produces the document symbol tree for a snapshot.
type SymbolSource interface {
	DocumentSymbols(ctx context.Context, snap editor.Snapshot) ([]DocumentSymbol, error)
}

// ReferenceService finds references to the symbol at offset. ok is false
// when the backend has no answer for that position.
type ReferenceService interface {
	References(ctx context.Context, snap editor.Snapshot, offset int) (locs []Location, ok bool, err error)
}

// AnnotationSink receives inlay splices. Each call must be applied
// atomically from the caller's point of view.
type AnnotationSink interface {
	SpliceInlays(remove []editor.InlayID, insert []editor.Inlay)
}

// ConfigSource supplies the current Configuration.
type ConfigSource interface {
	Configuration() Configuration
}

// StaticConfig is a ConfigSource that never changes.
type StaticConfig Configuration

func (c StaticConfig) Configuration() Configuration { return Configuration(c) }
