package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	runtimesvc "github.com/lexcodex/refhints/app/refhints/runtime"
	"github.com/lexcodex/refhints/framework/refhints"
)

// StatusBar renders backend, controller state and hint counts.
type StatusBar struct {
	workspace string
	backend   string
	enabled   bool
	state     refhints.State
	revision  uint64
	hints     int
	published uint64
	discarded uint64
	message   string
}

func statusFrom(snap runtimesvc.StatusSnapshot, message string) StatusBar {
	return StatusBar{
		workspace: filepath.Base(snap.Workspace),
		backend:   snap.Backend,
		enabled:   snap.Enabled,
		state:     snap.State,
		revision:  snap.Revision,
		hints:     snap.Hints,
		published: snap.Stats.Published,
		discarded: snap.Stats.Discarded,
		message:   message,
	}
}

func (s StatusBar) View(width int) string {
	feature := "on"
	if !s.enabled {
		feature = "off"
	}
	state := s.state.String()
	if s.state != refhints.StateIdle {
		state = busyStyle.Render(state)
	}
	left := fmt.Sprintf("%s | %s | hints %s | %s", truncate(s.workspace, 20), s.backend, feature, state)
	if s.message != "" {
		left += " | " + s.message
	}
	right := fmt.Sprintf("%d shown | rev %d | %d/%d published/discarded", s.hints, s.revision, s.published, s.discarded)
	padding := width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}
	return statusStyle.Render(left + strings.Repeat(" ", padding) + right)
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:1]
	}
	return s[:n-1] + "…"
}
