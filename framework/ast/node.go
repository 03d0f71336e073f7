package ast

import "github.com/lexcodex/refhints/framework/refhints"

// SymbolKind classifies a declared symbol.
type SymbolKind string

const (
	KindFunction  SymbolKind = "function"
	KindMethod    SymbolKind = "method"
	KindStruct    SymbolKind = "struct"
	KindInterface SymbolKind = "interface"
	KindType      SymbolKind = "type"
	KindVariable  SymbolKind = "variable"
	KindConstant  SymbolKind = "constant"
	KindField     SymbolKind = "field"
	// KindGroup is a parenthesized var/const/type block.
	KindGroup   SymbolKind = "group"
	KindSection SymbolKind = "section"
)

// Category represents the high level grouping for a language.
type Category string

const (
	CategoryCode   Category = "code"
	CategoryDoc    Category = "document"
	CategoryConfig Category = "config"
)

// OutlineItem is one top-level navigable item of a file. Offsets are bytes.
type OutlineItem struct {
	Name  string     `json:"name"`
	Kind  SymbolKind `json:"kind"`
	Start int        `json:"start"`
	End   int        `json:"end"`
}

// Symbol is a node of the structural symbol tree. Name is the identifier
// references are matched against; Detail is the display form.
type Symbol struct {
	Name      string         `json:"name"`
	Detail    string         `json:"detail,omitempty"`
	Kind      SymbolKind     `json:"kind"`
	Range     refhints.Range `json:"range"`
	Selection refhints.Range `json:"selection"`
	Children  []Symbol       `json:"children,omitempty"`
}

// Identifier is a use of a name, as opposed to its declaration.
type Identifier struct {
	Name   string `json:"name"`
	Offset int    `json:"offset"`
}

// OutlineEntries converts outline items into pipeline entries.
func OutlineEntries(items []OutlineItem) []refhints.OutlineEntry {
	if len(items) == 0 {
		return nil
	}
	entries := make([]refhints.OutlineEntry, len(items))
	for i, item := range items {
		entries[i] = refhints.OutlineEntry{Start: item.Start, End: item.End}
	}
	return entries
}

// DocumentSymbols converts a symbol tree into the pipeline representation.
func DocumentSymbols(symbols []Symbol) []refhints.DocumentSymbol {
	if len(symbols) == 0 {
		return nil
	}
	out := make([]refhints.DocumentSymbol, len(symbols))
	for i, sym := range symbols {
		out[i] = refhints.DocumentSymbol{
			Name:           sym.Name,
			Range:          sym.Range,
			SelectionRange: sym.Selection,
			Children:       DocumentSymbols(sym.Children),
		}
	}
	return out
}
