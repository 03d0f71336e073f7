// Package tui is a read-only terminal viewer that shows a file with its
// reference count hints and refreshes as the file or settings change.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	runtimesvc "github.com/lexcodex/refhints/app/refhints/runtime"
	"github.com/lexcodex/refhints/framework/editor"
	"github.com/lexcodex/refhints/framework/refhints"
)

// Backend is the slice of the runtime the viewer drives.
type Backend interface {
	ActiveView() *editor.View
	Status() runtimesvc.StatusSnapshot
	OnPublish(fn func([]refhints.Annotation)) (unsubscribe func())
	Refresh()
	SetHintsEnabled(enabled bool) error
}

// Run shows the runtime's active view until the user quits or ctx ends.
func Run(ctx context.Context, rt Backend) error {
	if rt == nil {
		return fmt.Errorf("runtime is required")
	}
	model := NewModel(rt)
	defer model.Close()
	program := tea.NewProgram(
		model,
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	_, err := program.Run()
	return err
}

// statusInterval paces status bar polling.
const statusInterval = 500 * time.Millisecond

type keyMap struct {
	ToggleInlays key.Binding
	ToggleHints  key.Binding
	Refresh      key.Binding
	Quit         key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.ToggleInlays, k.ToggleHints, k.Refresh, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var keys = keyMap{
	ToggleInlays: key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "inlay hints")),
	ToggleHints:  key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "reference hints")),
	Refresh:      key.NewBinding(key.WithKeys("r", "ctrl+r"), key.WithHelp("r", "refresh")),
	Quit:         key.NewBinding(key.WithKeys("q", "ctrl+c", "ctrl+d"), key.WithHelp("q", "quit")),
}

// Model implements tea.Model for the hint viewer.
type Model struct {
	backend Backend

	body      viewport.Model
	help      help.Model
	statusBar StatusBar

	// published is fed by the controller's publish hook; the hook never
	// blocks on it.
	published   chan []refhints.Annotation
	unsubscribe func()

	width  int
	height int
	ready  bool

	message string
}

type publishMsg struct {
	annotations []refhints.Annotation
}

type statusTickMsg time.Time

// NewModel subscribes to rt's publishes.
func NewModel(rt Backend) Model {
	m := Model{
		backend:   rt,
		help:      help.New(),
		published: make(chan []refhints.Annotation, 1),
	}
	ch := m.published
	m.unsubscribe = rt.OnPublish(func(annotations []refhints.Annotation) {
		select {
		case ch <- annotations:
		default:
		}
	})
	m.statusBar = statusFrom(rt.Status(), "")
	return m
}

// Close releases the publish subscription.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Init fulfills the Bubble Tea Model interface.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForPublish(m.published), tickStatus())
}

func waitForPublish(ch <-chan []refhints.Annotation) tea.Cmd {
	return func() tea.Msg {
		annotations, ok := <-ch
		if !ok {
			return nil
		}
		return publishMsg{annotations: annotations}
	}
}

func tickStatus() tea.Cmd {
	return tea.Tick(statusInterval, func(t time.Time) tea.Msg {
		return statusTickMsg(t)
	})
}
