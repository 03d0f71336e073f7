package ast

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lexcodex/refhints/framework/editor"
	"github.com/lexcodex/refhints/framework/refhints"
)

const defaultParseCacheSize = 64

// SnapshotParser parses editor snapshots with the registered parsers and
// remembers recent results by path and content hash, so the outline and
// the symbol query of one refresh share a parse.
type SnapshotParser struct {
	registry *ParserRegistry
	detector *LanguageDetector
	cache    *lru.Cache[string, *ParseResult]
}

// NewSnapshotParser builds a parser over registry. A nil registry uses the
// built-in parsers.
func NewSnapshotParser(registry *ParserRegistry) *SnapshotParser {
	if registry == nil {
		registry = DefaultParserRegistry()
	}
	cache, err := lru.New[string, *ParseResult](defaultParseCacheSize)
	if err != nil {
		panic(err)
	}
	return &SnapshotParser{registry: registry, detector: NewLanguageDetector(), cache: cache}
}

// Language resolves the language of snap, preferring its own id.
func (sp *SnapshotParser) Language(snap editor.Snapshot) string {
	if lang := snap.LanguageID(); lang != "" {
		return lang
	}
	return sp.detector.Detect(snap.Path())
}

// Parse returns the parse of snap. Unsupported languages yield
// ErrUnsupportedLanguage.
func (sp *SnapshotParser) Parse(snap editor.Snapshot) (*ParseResult, error) {
	language := sp.Language(snap)
	parser, ok := sp.registry.GetParser(language)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
	}
	key := fmt.Sprintf("%s@%016x", snap.Path(), snap.Hash())
	if result, ok := sp.cache.Get(key); ok {
		return result, nil
	}
	result, err := parser.Parse(snap.Text(), snap.Path())
	if err != nil {
		return nil, err
	}
	sp.cache.Add(key, result)
	return result, nil
}

// OutlineProvider serves outline entries parsed from the snapshot itself.
type OutlineProvider struct {
	parser *SnapshotParser
}

// NewOutlineProvider wraps sp.
func NewOutlineProvider(sp *SnapshotParser) *OutlineProvider {
	return &OutlineProvider{parser: sp}
}

// Outline returns nothing for unsupported languages or unparseable text.
func (p *OutlineProvider) Outline(snap editor.Snapshot) []refhints.OutlineEntry {
	result, err := p.parser.Parse(snap)
	if err != nil {
		return nil
	}
	return OutlineEntries(result.Outline)
}

// SymbolProvider serves document symbols parsed from the snapshot itself.
type SymbolProvider struct {
	parser *SnapshotParser
}

// NewSymbolProvider wraps sp.
func NewSymbolProvider(sp *SnapshotParser) *SymbolProvider {
	return &SymbolProvider{parser: sp}
}

// DocumentSymbols returns an empty tree for unsupported languages.
func (p *SymbolProvider) DocumentSymbols(ctx context.Context, snap editor.Snapshot) ([]refhints.DocumentSymbol, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result, err := p.parser.Parse(snap)
	if errors.Is(err, ErrUnsupportedLanguage) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return DocumentSymbols(result.Symbols), nil
}
