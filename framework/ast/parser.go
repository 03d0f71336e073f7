package ast

import "sort"

// Parser converts file contents into outline, symbols and identifier uses.
type Parser interface {
	Parse(content string, filePath string) (*ParseResult, error)
	Language() string
	Category() Category
}

// ParseResult captures everything one parse yields.
type ParseResult struct {
	Outline     []OutlineItem
	Symbols     []Symbol
	Identifiers []Identifier
	Errors      []ParseError
}

// ParseError represents parser warnings/errors. Lines and columns are 1-based.
type ParseError struct {
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
	Level   string `json:"level"`
}

// ParserRegistry keeps parser implementations keyed by language.
type ParserRegistry struct {
	parsers map[string]Parser
}

// NewParserRegistry constructs a registry.
func NewParserRegistry() *ParserRegistry {
	return &ParserRegistry{parsers: make(map[string]Parser)}
}

// DefaultParserRegistry returns a registry holding the built-in parsers.
func DefaultParserRegistry() *ParserRegistry {
	registry := NewParserRegistry()
	registry.Register(NewGoParser())
	registry.Register(NewMarkdownParser())
	return registry
}

// Register adds a parser keyed by its Language.
func (pr *ParserRegistry) Register(parser Parser) {
	if parser == nil {
		return
	}
	pr.parsers[parser.Language()] = parser
}

// GetParser retrieves a parser by language identifier.
func (pr *ParserRegistry) GetParser(language string) (Parser, bool) {
	parser, ok := pr.parsers[language]
	return parser, ok
}

// SupportedLanguages returns all registered languages, sorted.
func (pr *ParserRegistry) SupportedLanguages() []string {
	langs := make([]string, 0, len(pr.parsers))
	for lang := range pr.parsers {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}
