package ast

import "time"

// FileMetadata stores per-file statistics and indexing metadata.
type FileMetadata struct {
	ID            int64     `json:"id"`
	Path          string    `json:"path"`
	Language      string    `json:"language"`
	Category      Category  `json:"category"`
	LineCount     int       `json:"line_count"`
	ContentHash   string    `json:"content_hash"`
	SymbolCount   int       `json:"symbol_count"`
	RefCount      int       `json:"ref_count"`
	IndexedAt     time.Time `json:"indexed_at"`
	ParserVersion string    `json:"parser_version"`
}
