package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lexcodex/refhints/framework/editor"
)

// View composes the header, the file body, the status bar and key help.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.body.View(),
		m.statusBar.View(m.width),
		m.help.View(keys),
	)
}

func (m Model) renderHeader() string {
	view := m.backend.ActiveView()
	if view == nil {
		return headerStyle.Render("refhints")
	}
	snap, ok := view.ActiveSnapshot()
	if !ok {
		return headerStyle.Render("refhints")
	}
	return headerStyle.Render("refhints ") + filePathStyle.Render(snap.Path()) +
		dimStyle.Render(fmt.Sprintf(" v%d", snap.Version()))
}

// renderView draws every line of the active buffer with a line number
// gutter and its inlays styled apart from the text.
func renderView(view *editor.View) string {
	if view == nil {
		return dimStyle.Render("no file open")
	}
	snap, ok := view.ActiveSnapshot()
	if !ok {
		return dimStyle.Render("no file open")
	}
	var inlays []editor.Inlay
	if view.InlayHintsEnabled() {
		inlays = view.Inlays()
	}
	lines := editor.RenderLines(snap, inlays)
	width := len(fmt.Sprint(len(lines)))
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(gutterStyle.Render(fmt.Sprintf("%*d ", width, line.Number)))
		for _, seg := range line.Segments {
			if seg.Inlay {
				b.WriteString(hintStyle.Render(seg.Text))
				continue
			}
			b.WriteString(textStyle.Render(seg.Text))
		}
	}
	return b.String()
}
