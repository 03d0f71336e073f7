package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotPointConversion(t *testing.T) {
	snap := NewSnapshot("a.go", "go", "package a\n\nfunc A() {}\n")
	assert.Equal(t, 4, snap.LineCount())
	assert.Equal(t, Point{Line: 2, Column: 5}, snap.OffsetToPoint(16))
	assert.Equal(t, 16, snap.PointToOffset(Point{Line: 2, Column: 5}))
	assert.Equal(t, "func A() {}", snap.Line(2))
	// Columns past the end of a line clamp to the line end.
	assert.Equal(t, 9, snap.PointToOffset(Point{Line: 0, Column: 99}))
	assert.Equal(t, snap.Len(), snap.PointToOffset(Point{Line: 40}))
	assert.Equal(t, Point{Line: 0, Column: 0}, snap.OffsetToPoint(-3))
}

func TestSnapshotHashTracksText(t *testing.T) {
	a := NewSnapshot("a.go", "go", "x")
	b := NewSnapshot("b.go", "go", "x")
	c := NewSnapshot("a.go", "go", "y")
	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), c.Hash())
}

func TestBufferEditBumpsVersionAndEmits(t *testing.T) {
	buf := NewBuffer("a.go", "go", "hello world")
	var kinds []EventKind
	unsub := buf.Subscribe(func(ev Event) { kinds = append(kinds, ev.Kind) })
	defer unsub()

	require.NoError(t, buf.Edit(0, 5, "howdy"))
	snap := buf.Snapshot()
	assert.Equal(t, "howdy world", snap.Text())
	assert.Equal(t, 2, snap.Version())
	assert.Equal(t, []EventKind{EventBufferEdited, EventEdited}, kinds)

	assert.Error(t, buf.Edit(4, 100, "x"))
	buf.SetText("howdy world")
	assert.Len(t, kinds, 2, "unchanged text must not emit")
}

func TestViewSingletonDetection(t *testing.T) {
	a := NewBuffer("a.go", "go", "package a\n")
	b := NewBuffer("b.go", "go", "package b\n")
	view := SingletonView(a, true)
	defer view.Close()
	assert.True(t, view.IsSingleton())

	var got []EventKind
	view.Subscribe(func(ev Event) { got = append(got, ev.Kind) })
	view.AddExcerpt(Whole(b))
	assert.False(t, view.IsSingleton())
	assert.Equal(t, []EventKind{EventExcerptsEdited}, got)

	view.SetExcerpts(Excerpt{Buffer: a, Start: 2, End: 5})
	assert.False(t, view.IsSingleton(), "partial excerpt is not a singleton")
}

func TestViewForwardsBufferEventsUntilDetached(t *testing.T) {
	a := NewBuffer("a.go", "go", "one")
	b := NewBuffer("b.go", "go", "two")
	view := SingletonView(a, true)
	var paths []string
	view.Subscribe(func(ev Event) {
		if ev.Kind == EventSaved {
			paths = append(paths, ev.Path)
		}
	})
	a.MarkSaved()
	view.SetExcerpts(Whole(b))
	a.MarkSaved()
	b.MarkSaved()
	view.Close()
	b.MarkSaved()
	assert.Equal(t, []string{"a.go", "b.go"}, paths)
}

func TestViewToggleEmitsOnlyOnChange(t *testing.T) {
	view := NewView(true)
	var toggles []bool
	view.Subscribe(func(ev Event) {
		if ev.Kind == EventInlayHintsToggled {
			toggles = append(toggles, ev.Enabled)
		}
	})
	view.SetInlayHintsEnabled(true)
	view.SetInlayHintsEnabled(false)
	view.SetInlayHintsEnabled(false)
	view.SetInlayHintsEnabled(true)
	assert.Equal(t, []bool{false, true}, toggles)
}

func TestSpliceInlaysIsScopedByID(t *testing.T) {
	view := NewView(true)
	other := Inlay{ID: InlayID{Kind: InlayHint, Value: 1}, Position: 3, Text: ": int"}
	view.SpliceInlays(nil, []Inlay{other})
	view.SpliceInlays(nil, []Inlay{
		{ID: InlayID{Kind: InlaySymbolRefHint, Value: 10}, Position: 7, Text: "2 "},
		{ID: InlayID{Kind: InlaySymbolRefHint, Value: 11}, Position: 1, Text: "0 "},
	})
	require.Len(t, view.Inlays(), 3)
	assert.Equal(t, 1, view.Inlays()[0].Position)

	view.SpliceInlays([]InlayID{{Kind: InlaySymbolRefHint, Value: 10}, {Kind: InlaySymbolRefHint, Value: 11}}, nil)
	assert.Equal(t, []Inlay{other}, view.Inlays())
	assert.Empty(t, view.InlaysOfKind(InlaySymbolRefHint))
}

func TestRenderLines(t *testing.T) {
	snap := NewSnapshot("a.go", "go", "func A() {}\nfunc B() {}")
	lines := RenderLines(snap, []Inlay{
		{ID: InlayID{Kind: InlaySymbolRefHint, Value: 0}, Position: 5, Text: "3 "},
		{ID: InlayID{Kind: InlaySymbolRefHint, Value: 1}, Position: 12, Text: "0 "},
	})
	require.Len(t, lines, 2)
	assert.Equal(t, "func 3 A() {}", lines[0].String())
	assert.Equal(t, "0 func B() {}", lines[1].String())
	assert.True(t, lines[1].Segments[0].Inlay)
	assert.Equal(t, 2, lines[1].Number)
}
