package refhints

import (
	"fmt"

	"github.com/lexcodex/refhints/framework/editor"
)

// IDRange is the block of inlay identifiers owned by reference hints.
type IDRange struct {
	Base     int
	Capacity int
}

// DefaultIDRange keeps clear of identifiers other features allocate.
var DefaultIDRange = IDRange{Base: 900_000_000, Capacity: DefaultCapacity}

// ID returns the identifier of the i-th annotation.
func (r IDRange) ID(i int) editor.InlayID {
	return editor.InlayID{Kind: editor.InlaySymbolRefHint, Value: r.Base + i}
}

// Owns reports whether id falls inside the range.
func (r IDRange) Owns(id editor.InlayID) bool {
	return id.Kind == editor.InlaySymbolRefHint && id.Value >= r.Base && id.Value < r.Base+r.Capacity
}

// RemovalIDs lists every identifier in the range, published or not.
func (r IDRange) RemovalIDs() []editor.InlayID {
	ids := make([]editor.InlayID, r.Capacity)
	for i := range ids {
		ids[i] = r.ID(i)
	}
	return ids
}

// WithCapacity returns the range clamped to capacity when it is positive
// and smaller than the reserved block.
func (r IDRange) WithCapacity(capacity int) IDRange {
	if capacity > 0 && capacity < r.Capacity {
		r.Capacity = capacity
	}
	return r
}

// HintText formats a reference count for display.
func HintText(count int) string {
	return fmt.Sprintf("%d ", count)
}

// BuildAnnotations pairs each anchor with its count. Anchors past the
// range capacity are dropped; truncated reports whether that happened.
func BuildAnnotations(anchors []Anchor, counts []int, ids IDRange) (annotations []Annotation, truncated bool) {
	n := len(anchors)
	if len(counts) < n {
		n = len(counts)
	}
	if n > ids.Capacity {
		n = ids.Capacity
		truncated = true
	}
	annotations = make([]Annotation, 0, n)
	for i := 0; i < n; i++ {
		annotations = append(annotations, Annotation{
			ID:       ids.ID(i),
			Position: anchors[i].Offset,
			Text:     HintText(counts[i]),
		})
	}
	return annotations, truncated
}

// Publish replaces everything in the range with annotations in a single
// splice. An empty set still clears the range.
func Publish(sink AnnotationSink, ids IDRange, annotations []Annotation) {
	if sink == nil {
		return
	}
	inlays := make([]editor.Inlay, 0, len(annotations))
	for _, a := range annotations {
		inlays = append(inlays, a.Inlay())
	}
	sink.SpliceInlays(ids.RemovalIDs(), inlays)
}
