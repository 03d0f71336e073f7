package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// Update applies incoming Bubble Tea messages to the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)
	case tea.KeyMsg:
		return m.handleKey(msg)
	case publishMsg:
		m.message = fmt.Sprintf("%d hints", len(msg.annotations))
		m = m.refreshBody()
		return m, waitForPublish(m.published)
	case statusTickMsg:
		m.statusBar = statusFrom(m.backend.Status(), m.message)
		return m, tickStatus()
	}
	var cmd tea.Cmd
	m.body, cmd = m.body.Update(msg)
	return m, cmd
}

// handleResize gives the body everything except the header, status and
// help lines.
func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	chrome := 3
	bodyHeight := max(1, msg.Height-chrome)
	if !m.ready {
		m.body = viewport.New(msg.Width, bodyHeight)
		m.ready = true
	} else {
		m.body.Width = msg.Width
		m.body.Height = bodyHeight
	}
	m.help.Width = msg.Width
	return m.refreshBody(), nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.ToggleInlays):
		view := m.backend.ActiveView()
		if view == nil {
			return m, nil
		}
		enabled := !view.InlayHintsEnabled()
		view.SetInlayHintsEnabled(enabled)
		m.message = "inlay hints " + onOff(enabled)
		return m.refreshBody(), nil
	case key.Matches(msg, keys.ToggleHints):
		enabled := !m.backend.Status().Enabled
		if err := m.backend.SetHintsEnabled(enabled); err != nil {
			m.message = errorStyle.Render(err.Error())
			return m, nil
		}
		m.message = "reference hints " + onOff(enabled)
		return m.refreshBody(), nil
	case key.Matches(msg, keys.Refresh):
		m.backend.Refresh()
		m.message = "refreshing"
		return m, nil
	}
	if !m.ready {
		return m, nil
	}
	var cmd tea.Cmd
	m.body, cmd = m.body.Update(msg)
	return m, cmd
}

// refreshBody re-renders the active view and the status bar.
func (m Model) refreshBody() Model {
	m.statusBar = statusFrom(m.backend.Status(), m.message)
	if !m.ready {
		return m
	}
	m.body.SetContent(renderView(m.backend.ActiveView()))
	return m
}

func onOff(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}
