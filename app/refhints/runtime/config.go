package runtime

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lexcodex/refhints/internal/settings"
)

// Config captures the knobs shared by the CLI commands and the viewer.
// Empty fields fall back to the settings file, then to defaults.
type Config struct {
	Workspace  string
	ConfigPath string
	LogPath    string
	IndexPath  string
	// Backend overrides symbol_ref_hints.backend when set.
	Backend string
	Verbose bool
}

// DefaultConfig infers defaults from the current working directory. Errors
// from os.Getwd are ignored so callers can override manually.
func DefaultConfig() Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return Config{
		Workspace:  cwd,
		ConfigPath: settings.DefaultPath(cwd),
	}
}

// Normalize makes every filesystem path absolute.
func (c *Config) Normalize() error {
	if c.Workspace == "" {
		return fmt.Errorf("workspace path required")
	}
	absWorkspace, err := filepath.Abs(c.Workspace)
	if err != nil {
		return fmt.Errorf("resolve workspace: %w", err)
	}
	c.Workspace = absWorkspace
	if c.ConfigPath == "" {
		c.ConfigPath = settings.DefaultPath(c.Workspace)
	}
	c.ConfigPath = settings.Resolve(c.Workspace, c.ConfigPath)
	c.LogPath = settings.Resolve(c.Workspace, c.LogPath)
	c.IndexPath = settings.Resolve(c.Workspace, c.IndexPath)
	switch c.Backend {
	case "", settings.BackendIndex, settings.BackendLSP:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	return nil
}

// apply fills unset fields from s.
func (c *Config) apply(s settings.Settings) {
	if c.LogPath == "" {
		c.LogPath = settings.Resolve(c.Workspace, s.Logging.File)
	}
	if c.IndexPath == "" {
		c.IndexPath = settings.Resolve(c.Workspace, s.Index.Path)
	}
	if c.Backend == "" {
		c.Backend = s.SymbolRefHints.Backend
	}
	if s.Logging.Verbose {
		c.Verbose = true
	}
}
