package runtime

import (
	"os/exec"
	"sort"
	"time"

	"github.com/lexcodex/refhints/framework/ast"
	"github.com/lexcodex/refhints/framework/editor"
	"github.com/lexcodex/refhints/framework/refhints"
)

// StatusSnapshot captures live runtime details for the viewer's status bar
// and the CLI.
type StatusSnapshot struct {
	Workspace string
	Backend   string
	Path      string
	Enabled   bool
	State     refhints.State
	Revision  uint64
	Stats     refhints.Stats
	Hints     int
	Index     *ast.IndexStats
	Timestamp time.Time
}

// Status reports the controller and index state.
func (r *Runtime) Status() StatusSnapshot {
	snap := StatusSnapshot{
		Workspace: r.Config.Workspace,
		Backend:   r.Config.Backend,
		Enabled:   r.Controller.Enabled(),
		State:     r.Controller.State(),
		Revision:  r.Controller.Revision(),
		Stats:     r.Controller.Stats(),
		Timestamp: time.Now(),
	}
	if view := r.ActiveView(); view != nil {
		if active, ok := view.ActiveSnapshot(); ok {
			snap.Path = active.Path()
		}
		snap.Hints = len(view.InlaysOfKind(editor.InlaySymbolRefHint))
	}
	if r.Index != nil {
		if stats, err := r.Index.Stats(); err == nil {
			snap.Index = stats
		}
	}
	return snap
}

// ServerBinary is the result of looking up a language server on PATH.
type ServerBinary struct {
	Language string
	Command  string
	Path     string
	Error    string
}

// ProbeServers checks which configured language servers are installed.
func (r *Runtime) ProbeServers() []ServerBinary {
	servers := r.Settings.Settings().LSP
	languages := make([]string, 0, len(servers))
	for language := range servers {
		languages = append(languages, language)
	}
	sort.Strings(languages)
	out := make([]ServerBinary, 0, len(languages))
	for _, language := range languages {
		out = append(out, ProbeBinary(language, servers[language].Command))
	}
	return out
}

// ProbeBinary looks command up on PATH.
func ProbeBinary(language, command string) ServerBinary {
	result := ServerBinary{Language: language, Command: command}
	path, err := exec.LookPath(command)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Path = path
	return result
}
