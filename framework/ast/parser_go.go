package ast

import (
	"bytes"
	"errors"
	"fmt"
	goast "go/ast"
	"go/parser"
	"go/printer"
	"go/scanner"
	"go/token"

	"github.com/lexcodex/refhints/framework/refhints"
)

// GoParser builds outlines and symbol trees using go/parser. Files with
// syntax errors still yield whatever the parser recovered.
type GoParser struct{}

// NewGoParser returns a ready-to-use Go parser.
func NewGoParser() *GoParser {
	return &GoParser{}
}

func (gp *GoParser) Language() string   { return "go" }
func (gp *GoParser) Category() Category { return CategoryCode }

// Parse converts Go source code into outline items, symbols and identifier
// uses. Offsets are byte offsets into content.
func (gp *GoParser) Parse(content string, filePath string) (*ParseResult, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filePath, content, parser.ParseComments|parser.SkipObjectResolution)
	if file == nil {
		return nil, err
	}
	g := &goFile{fset: fset, file: fset.File(file.Pos())}
	result := &ParseResult{}
	if err != nil {
		result.Errors = parseErrors(err)
	}
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *goast.FuncDecl:
			item, sym := g.funcDecl(d)
			result.Outline = append(result.Outline, item)
			result.Symbols = append(result.Symbols, sym)
		case *goast.GenDecl:
			if d.Tok == token.IMPORT {
				continue
			}
			items, sym := g.genDecl(d)
			result.Outline = append(result.Outline, items...)
			result.Symbols = append(result.Symbols, sym...)
		}
	}
	result.Identifiers = g.identifiers(file)
	return result, nil
}

type goFile struct {
	fset *token.FileSet
	file *token.File
}

func (g *goFile) offset(pos token.Pos) int {
	return g.file.Offset(pos)
}

func (g *goFile) span(node goast.Node) refhints.Range {
	return refhints.Range{Start: g.offset(node.Pos()), End: g.offset(node.End())}
}

func (g *goFile) funcDecl(d *goast.FuncDecl) (OutlineItem, Symbol) {
	kind := KindFunction
	detail := d.Name.Name
	if d.Recv != nil && len(d.Recv.List) > 0 {
		kind = KindMethod
		detail = fmt.Sprintf("(%s).%s", g.exprString(d.Recv.List[0].Type), d.Name.Name)
	}
	rng := g.span(d)
	item := OutlineItem{Name: detail, Kind: kind, Start: rng.Start, End: rng.End}
	sym := Symbol{
		Name:      d.Name.Name,
		Detail:    detail,
		Kind:      kind,
		Range:     rng,
		Selection: g.span(d.Name),
	}
	return item, sym
}

// genDecl handles var/const/type declarations. A single unparenthesized
// spec becomes one symbol spanning the keyword; a parenthesized block
// becomes a group symbol with one child per spec.
func (g *goFile) genDecl(d *goast.GenDecl) ([]OutlineItem, []Symbol) {
	var specs []Symbol
	for _, spec := range d.Specs {
		specs = append(specs, g.specSymbols(d.Tok, spec)...)
	}
	declRange := g.span(d)
	if !d.Lparen.IsValid() {
		if len(specs) == 0 {
			return nil, nil
		}
		for i := range specs {
			specs[i].Range = declRange
		}
		item := OutlineItem{Name: specs[0].Name, Kind: specs[0].Kind, Start: declRange.Start, End: declRange.End}
		return []OutlineItem{item}, specs
	}

	items := make([]OutlineItem, 0, len(d.Specs))
	for _, spec := range d.Specs {
		rng := g.span(spec)
		items = append(items, OutlineItem{Name: specName(spec), Kind: genKind(d.Tok, spec), Start: rng.Start, End: rng.End})
	}
	tokStart := g.offset(d.TokPos)
	group := Symbol{
		Name:      d.Tok.String(),
		Kind:      KindGroup,
		Range:     declRange,
		Selection: refhints.Range{Start: tokStart, End: tokStart + len(d.Tok.String())},
		Children:  specs,
	}
	return items, []Symbol{group}
}

func (g *goFile) specSymbols(tok token.Token, spec goast.Spec) []Symbol {
	switch s := spec.(type) {
	case *goast.TypeSpec:
		sym := Symbol{
			Name:      s.Name.Name,
			Kind:      genKind(tok, s),
			Range:     g.span(s),
			Selection: g.span(s.Name),
		}
		switch t := s.Type.(type) {
		case *goast.StructType:
			sym.Children = g.fieldSymbols(t.Fields, KindField)
		case *goast.InterfaceType:
			sym.Children = g.fieldSymbols(t.Methods, KindMethod)
		}
		return []Symbol{sym}
	case *goast.ValueSpec:
		kind := genKind(tok, s)
		rng := g.span(s)
		out := make([]Symbol, 0, len(s.Names))
		for _, name := range s.Names {
			if name.Name == "_" {
				continue
			}
			out = append(out, Symbol{Name: name.Name, Kind: kind, Range: rng, Selection: g.span(name)})
		}
		return out
	}
	return nil
}

func (g *goFile) fieldSymbols(list *goast.FieldList, kind SymbolKind) []Symbol {
	if list == nil {
		return nil
	}
	var out []Symbol
	for _, field := range list.List {
		rng := g.span(field)
		if len(field.Names) == 0 {
			// Embedded field or interface.
			out = append(out, Symbol{
				Name:      embeddedName(field.Type),
				Kind:      KindField,
				Range:     rng,
				Selection: g.span(field.Type),
			})
			continue
		}
		for _, name := range field.Names {
			out = append(out, Symbol{Name: name.Name, Kind: kind, Range: rng, Selection: g.span(name)})
		}
	}
	return out
}

// identifiers lists every identifier that is not itself a declaration.
func (g *goFile) identifiers(file *goast.File) []Identifier {
	decls := map[*goast.Ident]bool{file.Name: true}
	mark := func(exprs ...goast.Expr) {
		for _, e := range exprs {
			if id, ok := e.(*goast.Ident); ok {
				decls[id] = true
			}
		}
	}
	goast.Inspect(file, func(n goast.Node) bool {
		switch x := n.(type) {
		case *goast.FuncDecl:
			decls[x.Name] = true
		case *goast.TypeSpec:
			decls[x.Name] = true
		case *goast.ValueSpec:
			for _, name := range x.Names {
				decls[name] = true
			}
		case *goast.Field:
			for _, name := range x.Names {
				decls[name] = true
			}
		case *goast.ImportSpec:
			if x.Name != nil {
				decls[x.Name] = true
			}
		case *goast.AssignStmt:
			if x.Tok == token.DEFINE {
				mark(x.Lhs...)
			}
		case *goast.RangeStmt:
			if x.Tok == token.DEFINE {
				mark(x.Key, x.Value)
			}
		case *goast.LabeledStmt:
			decls[x.Label] = true
		case *goast.BranchStmt:
			if x.Label != nil {
				decls[x.Label] = true
			}
		}
		return true
	})

	var out []Identifier
	goast.Inspect(file, func(n goast.Node) bool {
		id, ok := n.(*goast.Ident)
		if !ok || decls[id] || id.Name == "_" {
			return true
		}
		out = append(out, Identifier{Name: id.Name, Offset: g.offset(id.Pos())})
		return true
	})
	return out
}

func (g *goFile) exprString(expr goast.Expr) string {
	var buf bytes.Buffer
	if err := printer.Fprint(&buf, g.fset, expr); err != nil {
		return "?"
	}
	return buf.String()
}

func genKind(tok token.Token, spec goast.Spec) SymbolKind {
	switch s := spec.(type) {
	case *goast.TypeSpec:
		switch s.Type.(type) {
		case *goast.StructType:
			return KindStruct
		case *goast.InterfaceType:
			return KindInterface
		default:
			return KindType
		}
	case *goast.ValueSpec:
		if tok == token.CONST {
			return KindConstant
		}
	}
	return KindVariable
}

func specName(spec goast.Spec) string {
	switch s := spec.(type) {
	case *goast.TypeSpec:
		return s.Name.Name
	case *goast.ValueSpec:
		if len(s.Names) > 0 {
			return s.Names[0].Name
		}
	}
	return ""
}

func embeddedName(expr goast.Expr) string {
	switch t := expr.(type) {
	case *goast.Ident:
		return t.Name
	case *goast.StarExpr:
		return embeddedName(t.X)
	case *goast.SelectorExpr:
		return t.Sel.Name
	case *goast.IndexExpr:
		return embeddedName(t.X)
	case *goast.IndexListExpr:
		return embeddedName(t.X)
	}
	return ""
}

func parseErrors(err error) []ParseError {
	var list scanner.ErrorList
	if !errors.As(err, &list) {
		return []ParseError{{Message: err.Error(), Level: "error"}}
	}
	out := make([]ParseError, 0, len(list))
	for _, e := range list {
		out = append(out, ParseError{Line: e.Pos.Line, Column: e.Pos.Column, Message: e.Msg, Level: "error"})
	}
	return out
}
