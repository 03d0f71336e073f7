package ast

import "errors"

var (
	// ErrUnsupportedLanguage is returned when no parser handles a language.
	ErrUnsupportedLanguage = errors.New("unsupported language")
	// ErrNotIndexed is returned for paths or positions the index does not know.
	ErrNotIndexed = errors.New("not indexed")
)

// IndexStore persists per-file symbols and identifier uses.
type IndexStore interface {
	SaveFile(metadata *FileMetadata) error
	// ReplaceFile swaps everything recorded for metadata.Path in one
	// transaction.
	ReplaceFile(metadata *FileMetadata, symbols []SymbolRecord, refs []RefRecord) error
	GetFileByPath(path string) (*FileMetadata, error)
	ListFiles(language string) ([]*FileMetadata, error)
	DeleteFile(path string) error
	// SymbolAt returns the innermost symbol whose selection contains offset.
	SymbolAt(path string, offset int) (*SymbolRecord, error)
	SymbolsInFile(path string) ([]SymbolRecord, error)
	CountReferences(name string) (int, error)
	ReferencesTo(name string) ([]RefRecord, error)
	Vacuum() error
	Stats() (*IndexStats, error)
	Close() error
}

// SymbolRecord is one stored symbol. Container is the enclosing symbol's
// name, empty at top level.
type SymbolRecord struct {
	Path      string     `json:"path"`
	Name      string     `json:"name"`
	Kind      SymbolKind `json:"kind"`
	Container string     `json:"container,omitempty"`
	Start     int        `json:"start"`
	End       int        `json:"end"`
	SelStart  int        `json:"sel_start"`
	SelEnd    int        `json:"sel_end"`
}

// RefRecord is one stored identifier use. Line and Column are zero-based.
type RefRecord struct {
	Path   string `json:"path"`
	Name   string `json:"name"`
	Offset int    `json:"offset"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// IndexStats exposes counts.
type IndexStats struct {
	TotalFiles      int
	TotalSymbols    int
	TotalRefs       int
	FilesByLanguage map[string]int
	SymbolsByKind   map[SymbolKind]int
	DatabaseSize    int64
}
