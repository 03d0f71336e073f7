// Package settings loads the refhints configuration file, applies .env and
// environment overrides, and exposes the result as a refhints.ConfigSource.
package settings

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/lexcodex/refhints/framework/refhints"
)

const (
	BackendIndex = "index"
	BackendLSP   = "lsp"
)

// Environment overrides.
const (
	EnvEditDebounceMs = "REFHINTS_EDIT_DEBOUNCE_MS"
	EnvEnabled        = "REFHINTS_ENABLED"
	EnvBackend        = "REFHINTS_BACKEND"
	EnvConcurrency    = "REFHINTS_CONCURRENCY"
)

// Settings mirrors .refhints/config.yaml.
type Settings struct {
	InlayHints     InlayHintsSettings        `yaml:"inlay_hints"`
	SymbolRefHints SymbolRefHintsSettings    `yaml:"symbol_ref_hints"`
	Index          IndexSettings             `yaml:"index"`
	LSP            map[string]ServerSettings `yaml:"lsp,omitempty"`
	Logging        LoggingSettings           `yaml:"logging"`
}

// InlayHintsSettings holds the editor-wide inlay hint switches.
type InlayHintsSettings struct {
	Enabled        bool `yaml:"enabled"`
	EditDebounceMs int  `yaml:"edit_debounce_ms"`
}

// SymbolRefHintsSettings configures the reference hint feature itself.
type SymbolRefHintsSettings struct {
	Enabled     bool   `yaml:"enabled"`
	Capacity    int    `yaml:"capacity"`
	Concurrency int    `yaml:"concurrency"`
	Backend     string `yaml:"backend"`
}

// IndexSettings configures the SQLite reference index.
type IndexSettings struct {
	Path    string   `yaml:"path"`
	Ignore  []string `yaml:"ignore"`
	Workers int      `yaml:"workers"`
}

// ServerSettings overrides the command used to start a language server.
type ServerSettings struct {
	Command    string   `yaml:"command"`
	Args       []string `yaml:"args,omitempty"`
	Extensions []string `yaml:"extensions,omitempty"`
}

// LoggingSettings controls the runtime log.
type LoggingSettings struct {
	File    string `yaml:"file"`
	Verbose bool   `yaml:"verbose"`
}

// ConfigDir resolves the directory storing workspace settings.
func ConfigDir(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".refhints")
}

// DefaultPath returns .refhints/config.yaml within the workspace.
func DefaultPath(workspace string) string {
	return filepath.Join(ConfigDir(workspace), "config.yaml")
}

// Defaults returns the settings used when no file exists.
func Defaults() Settings {
	return Settings{
		InlayHints: InlayHintsSettings{
			Enabled:        true,
			EditDebounceMs: int(refhints.DefaultEditDebounce / time.Millisecond),
		},
		SymbolRefHints: SymbolRefHintsSettings{
			Enabled:     true,
			Capacity:    refhints.DefaultCapacity,
			Concurrency: 1,
			Backend:     BackendIndex,
		},
		Index: IndexSettings{
			Path:    filepath.Join(".refhints", "index.db"),
			Ignore:  []string{"**/vendor/**", "**/.git/**", "**/node_modules/**", ".refhints/**"},
			Workers: 4,
		},
		Logging: LoggingSettings{
			File: filepath.Join(".refhints", "refhints.log"),
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
// Keys that match no setting are an error.
func Load(path string) (Settings, error) {
	s := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return s, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return Defaults(), fmt.Errorf("parse %s: %w", path, err)
	}
	if err := s.Normalize(); err != nil {
		return Defaults(), fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Save writes the settings to disk, creating directories.
func Save(path string, s Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadEnv loads workspace/.env into the process environment without
// overriding variables that are already set. A missing file is ignored.
func LoadEnv(workspace string) error {
	path := filepath.Join(workspace, ".env")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// ApplyEnv overlays the REFHINTS_* environment variables.
func (s *Settings) ApplyEnv() error {
	if raw, ok := lookupEnv(EnvEditDebounceMs); ok {
		ms, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvEditDebounceMs, err)
		}
		s.InlayHints.EditDebounceMs = ms
	}
	if raw, ok := lookupEnv(EnvEnabled); ok {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvEnabled, err)
		}
		s.SymbolRefHints.Enabled = enabled
	}
	if raw, ok := lookupEnv(EnvBackend); ok {
		s.SymbolRefHints.Backend = strings.ToLower(raw)
	}
	if raw, ok := lookupEnv(EnvConcurrency); ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvConcurrency, err)
		}
		s.SymbolRefHints.Concurrency = n
	}
	return s.Normalize()
}

func lookupEnv(key string) (string, bool) {
	raw, ok := os.LookupEnv(key)
	raw = strings.TrimSpace(raw)
	return raw, ok && raw != ""
}

// Normalize fills zero values with defaults and rejects unknown backends.
func (s *Settings) Normalize() error {
	defaults := Defaults()
	if s.InlayHints.EditDebounceMs < 0 {
		s.InlayHints.EditDebounceMs = defaults.InlayHints.EditDebounceMs
	}
	if s.SymbolRefHints.Capacity <= 0 {
		s.SymbolRefHints.Capacity = defaults.SymbolRefHints.Capacity
	}
	if s.SymbolRefHints.Concurrency < 1 {
		s.SymbolRefHints.Concurrency = 1
	}
	switch s.SymbolRefHints.Backend {
	case "":
		s.SymbolRefHints.Backend = BackendIndex
	case BackendIndex, BackendLSP:
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", s.SymbolRefHints.Backend, BackendIndex, BackendLSP)
	}
	if s.Index.Path == "" {
		s.Index.Path = defaults.Index.Path
	}
	if s.Index.Workers < 1 {
		s.Index.Workers = 1
	}
	return nil
}

// Configuration converts the settings into the pipeline's explicit value.
func (s Settings) Configuration() refhints.Configuration {
	return refhints.Configuration{
		EditDebounce:         time.Duration(s.InlayHints.EditDebounceMs) * time.Millisecond,
		HintsEnabled:         s.InlayHints.Enabled,
		Capacity:             s.SymbolRefHints.Capacity,
		ReferenceConcurrency: s.SymbolRefHints.Concurrency,
	}
}

// Resolve returns path joined to workspace unless it is absolute.
func Resolve(workspace, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(workspace, path)
}
