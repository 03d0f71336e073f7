package editor

import "strings"

// RenderedLine is one buffer line with its inlays spliced in.
type RenderedLine struct {
	Number int
	// Segments alternate between buffer text and inlay text; Inlay marks
	// which segments came from inlays.
	Segments []Segment
}

// Segment is a run of text within a rendered line.
type Segment struct {
	Text  string
	Inlay bool
}

// String flattens the line back to plain text.
func (l RenderedLine) String() string {
	var b strings.Builder
	for _, seg := range l.Segments {
		b.WriteString(seg.Text)
	}
	return b.String()
}

// RenderLines lays inlays over the snapshot text. Inlays must be sorted by
// position as returned by View.Inlays.
func RenderLines(snap Snapshot, inlays []Inlay) []RenderedLine {
	lines := make([]RenderedLine, 0, snap.LineCount())
	next := 0
	for n := 0; n < snap.LineCount(); n++ {
		start := snap.LineStart(n)
		text := snap.Line(n)
		end := start + len(text)
		line := RenderedLine{Number: n + 1}
		cursor := start
		for next < len(inlays) && inlays[next].Position <= end {
			inlay := inlays[next]
			next++
			pos := inlay.Position
			if pos < cursor {
				pos = cursor
			}
			if pos > cursor {
				line.Segments = append(line.Segments, Segment{Text: snap.text[cursor:pos]})
				cursor = pos
			}
			line.Segments = append(line.Segments, Segment{Text: inlay.Text, Inlay: true})
		}
		if cursor < end {
			line.Segments = append(line.Segments, Segment{Text: snap.text[cursor:end]})
		}
		lines = append(lines, line)
	}
	return lines
}
