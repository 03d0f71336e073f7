package ast

import (
	"context"
	"strings"
	"testing"

	"github.com/lexcodex/refhints/framework/editor"
	"github.com/lexcodex/refhints/framework/refhints"
)

func TestLanguageDetector(t *testing.T) {
	detector := NewLanguageDetector()
	if lang := detector.Detect("main.go"); lang != "go" {
		t.Fatalf("expected go, got %s", lang)
	}
	if lang := detector.Detect("README.md"); lang != "markdown" {
		t.Fatalf("expected markdown, got %s", lang)
	}
	if lang := detector.Detect("lib/MOD.RS"); lang != "rust" {
		t.Fatalf("expected rust, got %s", lang)
	}
	if cat := detector.DetectCategory("yaml"); cat != CategoryConfig {
		t.Fatalf("expected config category, got %s", cat)
	}
	if cat := detector.DetectCategory("unknown-lang"); cat != CategoryDoc {
		t.Fatalf("expected doc category fallback, got %s", cat)
	}
}

type stubParser struct {
	language string
}

func (s *stubParser) Parse(content string, path string) (*ParseResult, error) {
	return &ParseResult{Outline: []OutlineItem{{Name: path, Start: 0, End: len(content)}}}, nil
}

func (s *stubParser) Language() string   { return s.language }
func (s *stubParser) Category() Category { return CategoryDoc }

func TestParserRegistry(t *testing.T) {
	registry := NewParserRegistry()
	parser := &stubParser{language: "custom"}
	registry.Register(parser)
	registry.Register(nil)
	if _, ok := registry.GetParser("custom"); !ok {
		t.Fatal("expected parser to be registered")
	}
	supported := registry.SupportedLanguages()
	if len(supported) != 1 || supported[0] != "custom" {
		t.Fatalf("unexpected supported languages: %v", supported)
	}
	if got := DefaultParserRegistry().SupportedLanguages(); strings.Join(got, ",") != "go,markdown" {
		t.Fatalf("unexpected default languages: %v", got)
	}
}

const goSample = `package sample

import "fmt"

// Greeter says hello.
type Greeter struct {
	Name string
}

func (g *Greeter) Hello() string {
	return fmt.Sprintf("hi %s", g.Name)
}

var (
	Default = &Greeter{Name: "world"}
	other   = Default.Hello()
)

const Max = 3

func main() {
	g := Default
	fmt.Println(g.Hello(), Max)
}
`

func TestGoParserOutline(t *testing.T) {
	result, err := NewGoParser().Parse(goSample, "sample.go")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	var names []string
	for _, item := range result.Outline {
		names = append(names, item.Name)
	}
	want := "Greeter,(*Greeter).Hello,Default,other,Max,main"
	if got := strings.Join(names, ","); got != want {
		t.Fatalf("outline = %s, want %s", got, want)
	}
	if start := result.Outline[0].Start; start != strings.Index(goSample, "type Greeter") {
		t.Fatalf("type outline should start at the keyword, got %d", start)
	}
	if kind := result.Outline[1].Kind; kind != KindMethod {
		t.Fatalf("expected method kind, got %s", kind)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected parse errors: %v", result.Errors)
	}
}

func TestGoParserSymbolsAnchorOutline(t *testing.T) {
	result, err := NewGoParser().Parse(goSample, "sample.go")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	greeter := result.Symbols[0]
	if greeter.Name != "Greeter" || greeter.Kind != KindStruct {
		t.Fatalf("unexpected first symbol: %+v", greeter)
	}
	if len(greeter.Children) != 1 || greeter.Children[0].Name != "Name" {
		t.Fatalf("expected struct field child, got %+v", greeter.Children)
	}
	group := result.Symbols[2]
	if group.Kind != KindGroup || len(group.Children) != 2 {
		t.Fatalf("expected var group with two specs, got %+v", group)
	}

	anchors := refhints.ResolveAnchors(OutlineEntries(result.Outline), refhints.Flatten(DocumentSymbols(result.Symbols)))
	want := []int{
		strings.Index(goSample, "Greeter struct"),
		strings.Index(goSample, "Hello() string"),
		strings.Index(goSample, "Default ="),
		strings.Index(goSample, "other "),
		strings.Index(goSample, "Max ="),
		strings.Index(goSample, "main()"),
	}
	if len(anchors) != len(want) {
		t.Fatalf("expected %d anchors, got %d", len(want), len(anchors))
	}
	for i, anchor := range anchors {
		if anchor.Offset != want[i] {
			t.Fatalf("anchor %d at %d, want %d (%s)", i, anchor.Offset, want[i], anchor.Symbol)
		}
	}
}

func TestGoParserIdentifiers(t *testing.T) {
	result, err := NewGoParser().Parse(goSample, "sample.go")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	counts := make(map[string]int)
	for _, id := range result.Identifiers {
		counts[id.Name]++
		if goSample[id.Offset:id.Offset+len(id.Name)] != id.Name {
			t.Fatalf("identifier %s has wrong offset %d", id.Name, id.Offset)
		}
	}
	for name, want := range map[string]int{"Hello": 2, "Greeter": 2, "Max": 1, "Default": 2, "g": 2, "main": 0} {
		if counts[name] != want {
			t.Fatalf("uses of %s = %d, want %d", name, counts[name], want)
		}
	}
}

func TestGoParserToleratesSyntaxErrors(t *testing.T) {
	result, err := NewGoParser().Parse("package broken\n\nfunc A() {\n\treturn\n", "broken.go")
	if err != nil {
		t.Fatalf("expected partial result, got %v", err)
	}
	if len(result.Errors) == 0 {
		t.Fatal("expected parse errors to be recorded")
	}
	if len(result.Outline) != 1 || result.Outline[0].Name != "A" {
		t.Fatalf("expected recovered outline, got %+v", result.Outline)
	}
}

const mdSample = "# Guide\n\nSee [setup](#setup) and [usage](#usage).\n\n## Setup\n\nRun it. Back to [setup](#setup).\n\n```sh\n# not a heading\n```\n\n## Usage\n\nDone.\n"

func TestMarkdownParserSections(t *testing.T) {
	result, err := NewMarkdownParser().Parse(mdSample, "doc.md")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(result.Outline) != 3 {
		t.Fatalf("expected three headings, got %+v", result.Outline)
	}
	if len(result.Symbols) != 1 || len(result.Symbols[0].Children) != 2 {
		t.Fatalf("expected guide with two sections, got %+v", result.Symbols)
	}
	setup := result.Symbols[0].Children[0]
	if setup.Name != "setup" || setup.Detail != "Setup" {
		t.Fatalf("unexpected section: %+v", setup)
	}
	if setup.Range.End != strings.Index(mdSample, "## Usage") {
		t.Fatalf("setup should end at the next heading, got %d", setup.Range.End)
	}
	if end := result.Symbols[0].Range.End; end != len(mdSample) {
		t.Fatalf("guide should run to EOF, got %d", end)
	}
	counts := make(map[string]int)
	for _, id := range result.Identifiers {
		counts[id.Name]++
	}
	if counts["setup"] != 2 || counts["usage"] != 1 {
		t.Fatalf("unexpected anchor links: %v", counts)
	}
}

func TestSnapshotProviders(t *testing.T) {
	sp := NewSnapshotParser(nil)
	outline := NewOutlineProvider(sp)
	symbols := NewSymbolProvider(sp)

	snap := editor.NewSnapshot("sample.go", "go", goSample)
	if entries := outline.Outline(snap); len(entries) != 6 {
		t.Fatalf("expected 6 outline entries, got %d", len(entries))
	}
	tree, err := symbols.DocumentSymbols(context.Background(), snap)
	if err != nil || len(tree) != 5 {
		t.Fatalf("expected 5 top-level symbols, got %d (%v)", len(tree), err)
	}

	text := editor.NewSnapshot("notes.txt", "", "plain words")
	if entries := outline.Outline(text); entries != nil {
		t.Fatalf("expected no outline for plain text, got %v", entries)
	}
	tree, err = symbols.DocumentSymbols(context.Background(), text)
	if err != nil || tree != nil {
		t.Fatalf("expected empty tree for plain text, got %v (%v)", tree, err)
	}
}
