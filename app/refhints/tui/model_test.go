package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	runtimesvc "github.com/lexcodex/refhints/app/refhints/runtime"
	"github.com/lexcodex/refhints/framework/editor"
	"github.com/lexcodex/refhints/framework/refhints"
)

type fakeBackend struct {
	view      *editor.View
	enabled   bool
	refreshes int
	listener  func([]refhints.Annotation)
	unsubbed  bool
}

func newFakeBackend(text string) *fakeBackend {
	buf := editor.NewBuffer("/ws/demo.go", "go", text)
	return &fakeBackend{view: editor.SingletonView(buf, true), enabled: true}
}

func (f *fakeBackend) ActiveView() *editor.View { return f.view }

func (f *fakeBackend) Status() runtimesvc.StatusSnapshot {
	return runtimesvc.StatusSnapshot{
		Workspace: "/ws",
		Backend:   "index",
		Enabled:   f.enabled,
		Hints:     len(f.view.InlaysOfKind(editor.InlaySymbolRefHint)),
	}
}

func (f *fakeBackend) OnPublish(fn func([]refhints.Annotation)) func() {
	f.listener = fn
	return func() { f.unsubbed = true }
}

func (f *fakeBackend) Refresh() { f.refreshes++ }

func (f *fakeBackend) SetHintsEnabled(enabled bool) error {
	f.enabled = enabled
	if !enabled {
		f.view.SpliceInlays(idsOf(f.view.Inlays()), nil)
	}
	return nil
}

func idsOf(inlays []editor.Inlay) []editor.InlayID {
	ids := make([]editor.InlayID, 0, len(inlays))
	for _, inlay := range inlays {
		ids = append(ids, inlay.ID)
	}
	return ids
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func sized(t *testing.T, m Model) Model {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 20})
	return next.(Model)
}

func TestViewRendersHintsBeforeSymbols(t *testing.T) {
	backend := newFakeBackend("package demo\n\nfunc Hello() {}\n")
	backend.view.SpliceInlays(nil, []editor.Inlay{{
		ID:       editor.InlayID{Kind: editor.InlaySymbolRefHint, Value: 1},
		Position: strings.Index("package demo\n\nfunc Hello() {}\n", "Hello"),
		Text:     "3 ",
	}})
	m := sized(t, NewModel(backend))

	out := m.View()
	assert.Contains(t, out, "func 3 Hello() {}")
	assert.Contains(t, out, "/ws/demo.go")
	assert.Contains(t, out, "1 shown")
}

func TestInitializingBeforeResize(t *testing.T) {
	m := NewModel(newFakeBackend("x\n"))
	assert.Equal(t, "Initializing...", m.View())
}

func TestToggleKeys(t *testing.T) {
	backend := newFakeBackend("package demo\n\nfunc Hello() {}\n")
	backend.view.SpliceInlays(nil, []editor.Inlay{{
		ID:       editor.InlayID{Kind: editor.InlaySymbolRefHint, Value: 1},
		Position: 19,
		Text:     "3 ",
	}})
	m := sized(t, NewModel(backend))

	next, _ := m.Update(keyRune('i'))
	m = next.(Model)
	assert.False(t, backend.view.InlayHintsEnabled())
	assert.NotContains(t, m.View(), "3 Hello")

	next, _ = m.Update(keyRune('i'))
	m = next.(Model)
	assert.True(t, backend.view.InlayHintsEnabled())

	next, _ = m.Update(keyRune('h'))
	m = next.(Model)
	assert.False(t, backend.enabled)
	assert.Empty(t, backend.view.Inlays())
	assert.Contains(t, m.View(), "hints off")

	next, _ = m.Update(keyRune('r'))
	m = next.(Model)
	assert.Equal(t, 1, backend.refreshes)

	_, cmd := m.Update(keyRune('q'))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestPublishFlowsThroughChannel(t *testing.T) {
	backend := newFakeBackend("package demo\n")
	m := sized(t, NewModel(backend))
	require.NotNil(t, backend.listener)

	annotations := []refhints.Annotation{{Position: 8, Text: "0 "}}
	backend.listener(annotations)
	// A second publish while the first is unread is dropped.
	backend.listener(nil)

	msg := waitForPublish(m.published)()
	require.Equal(t, publishMsg{annotations: annotations}, msg)

	next, cmd := m.Update(msg)
	require.NotNil(t, cmd)
	assert.Contains(t, next.(Model).View(), "1 hints")

	m.Close()
	assert.True(t, backend.unsubbed)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "work…", truncate("workspace", 5))
}
