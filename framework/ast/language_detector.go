package ast

import (
	"path/filepath"
	"strings"
)

// LanguageDetector maps filenames/extensions to language identifiers. The
// identifiers double as LSP languageId values.
type LanguageDetector struct {
	extensionMap map[string]string
	filenameMap  map[string]string
}

// NewLanguageDetector seeds defaults for the languages the hint backends
// know about.
func NewLanguageDetector() *LanguageDetector {
	ld := &LanguageDetector{
		extensionMap: map[string]string{
			".go":   "go",
			".rs":   "rust",
			".c":    "c",
			".h":    "c",
			".cc":   "cpp",
			".cpp":  "cpp",
			".hpp":  "cpp",
			".ts":   "typescript",
			".tsx":  "typescriptreact",
			".js":   "javascript",
			".jsx":  "javascriptreact",
			".py":   "python",
			".lua":  "lua",
			".md":   "markdown",
			".yaml": "yaml",
			".yml":  "yaml",
			".json": "json",
			".toml": "toml",
		},
		filenameMap: map[string]string{
			"go.mod":     "go.mod",
			"README":     "markdown",
			"Makefile":   "makefile",
			"Cargo.toml": "toml",
		},
	}
	return ld
}

// Detect returns the best-effort language identifier, or "unknown".
func (ld *LanguageDetector) Detect(path string) string {
	if path == "" {
		return "unknown"
	}
	base := filepath.Base(path)
	if lang, ok := ld.filenameMap[base]; ok {
		return lang
	}
	if lang, ok := ld.extensionMap[strings.ToLower(filepath.Ext(base))]; ok {
		return lang
	}
	return "unknown"
}

// DetectCategory maps a language to its category.
func (ld *LanguageDetector) DetectCategory(language string) Category {
	switch language {
	case "go", "rust", "c", "cpp", "typescript", "typescriptreact", "javascript", "javascriptreact", "python", "lua":
		return CategoryCode
	case "yaml", "json", "toml", "go.mod", "makefile":
		return CategoryConfig
	default:
		return CategoryDoc
	}
}
