package ast

import (
	"regexp"
	"strings"

	"github.com/lexcodex/refhints/framework/refhints"
)

// MarkdownParser treats headings as symbols and anchor links as their
// references, so a heading's hint counts the links pointing at it.
type MarkdownParser struct {
	heading *regexp.Regexp
	fence   *regexp.Regexp
	link    *regexp.Regexp
}

// NewMarkdownParser creates a parser.
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{
		heading: regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*#*\s*$`),
		fence:   regexp.MustCompile("^\\s*(```|~~~)"),
		link:    regexp.MustCompile(`\[([^\]]+)\]\(([^\)\s]*#[^\)\s]+)\)`),
	}
}

func (mp *MarkdownParser) Language() string   { return "markdown" }
func (mp *MarkdownParser) Category() Category { return CategoryDoc }

type mdSection struct {
	level int
	sym   Symbol
}

// Parse converts markdown into nested sections. A section runs from its
// heading to the next heading of the same or a shallower level.
func (mp *MarkdownParser) Parse(content string, filePath string) (*ParseResult, error) {
	result := &ParseResult{}
	var (
		stack   []mdSection
		roots   []Symbol
		inFence bool
	)
	// closeTo pops sections deeper than or equal to level, ending them at end.
	closeTo := func(level, end int) {
		for len(stack) > 0 && stack[len(stack)-1].level >= level {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			top.sym.Range.End = end
			if len(stack) == 0 {
				roots = append(roots, top.sym)
			} else {
				parent := &stack[len(stack)-1].sym
				parent.Children = append(parent.Children, top.sym)
			}
		}
	}

	offset := 0
	for _, line := range strings.SplitAfter(content, "\n") {
		lineStart := offset
		offset += len(line)
		text := strings.TrimRight(line, "\r\n")
		if mp.fence.MatchString(text) {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		for _, m := range mp.link.FindAllStringSubmatchIndex(text, -1) {
			target := text[m[4]:m[5]]
			anchor := target[strings.LastIndex(target, "#")+1:]
			result.Identifiers = append(result.Identifiers, Identifier{Name: anchor, Offset: lineStart + m[0]})
		}
		m := mp.heading.FindStringSubmatchIndex(text)
		if m == nil {
			continue
		}
		level := m[3] - m[2]
		title := text[m[4]:m[5]]
		closeTo(level, lineStart)
		stack = append(stack, mdSection{
			level: level,
			sym: Symbol{
				Name:      slugify(title),
				Detail:    title,
				Kind:      KindSection,
				Range:     refhints.Range{Start: lineStart},
				Selection: refhints.Range{Start: lineStart + m[4], End: lineStart + m[5]},
			},
		})
	}
	closeTo(1, len(content))
	result.Symbols = roots

	// Outline entries are every heading, in document order.
	work := make([]Symbol, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		work = append(work, roots[i])
	}
	for len(work) > 0 {
		sym := work[len(work)-1]
		work = work[:len(work)-1]
		result.Outline = append(result.Outline, OutlineItem{
			Name:  sym.Detail,
			Kind:  KindSection,
			Start: sym.Range.Start,
			End:   sym.Range.End,
		})
		for i := len(sym.Children) - 1; i >= 0; i-- {
			work = append(work, sym.Children[i])
		}
	}
	return result, nil
}
