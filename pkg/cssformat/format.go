// Package cssformat pretty-prints CSS.
//
// The output keeps every non-whitespace, non-comment token of the input in
// its original order and only changes the layout around them: one
// declaration per line, one selector per line, blocks indented, a blank line
// between rules, missing semicolons added and comments removed. Formatting
// the output again returns it unchanged.
package cssformat

import (
	"strings"

	"github.com/tdewolff/parse/v2/css"

	"github.com/jupierce/css-coverage-analysis/pkg/csstoken"
)

// Formatter formats stylesheets. The zero value indents with tabs.
type Formatter struct {
	// Indent is written once per nesting level. Defaults to a tab.
	Indent string
}

// New returns a Formatter that indents with tabs.
func New() *Formatter {
	return &Formatter{Indent: "\t"}
}

// Format formats src with a default Formatter.
func Format(src string) string {
	return New().Format(src)
}

// Format returns the pretty-printed form of src.
func (f *Formatter) Format(src string) string {
	indent := f.Indent
	if indent == "" {
		indent = "\t"
	}

	p := &printer{indent: indent}
	spaced := false
	for _, t := range csstoken.All(src) {
		switch t.Type {
		case css.WhitespaceToken, css.CommentToken:
			spaced = true
			continue
		}
		p.toks = append(p.toks, token{
			kind:  t.Type,
			data:  string(t.Data),
			space: spaced,
		})
		spaced = false
	}

	var b strings.Builder
	p.block(&b, 0)
	return strings.TrimRight(b.String(), "\n")
}

// token is a significant token; space records whether whitespace or a
// comment separated it from the previous significant token.
type token struct {
	kind  css.TokenType
	data  string
	space bool
}

func (t token) is(kind css.TokenType, data string) bool {
	return t.kind == kind && t.data == data
}

type mode int

const (
	valueMode mode = iota
	selectorMode
	atRuleMode
)

type printer struct {
	toks   []token
	pos    int
	indent string
}

func (p *printer) line(b *strings.Builder, depth int, s string) {
	b.WriteString(strings.Repeat(p.indent, depth))
	b.WriteString(s)
	b.WriteByte('\n')
}

// block prints the items of a block until its closing brace, which it
// consumes. At depth 0 it runs to the end of input.
func (p *printer) block(b *strings.Builder, depth int) {
	first := true
	lastWasBlock := false

	for p.pos < len(p.toks) {
		t := p.toks[p.pos]
		switch t.kind {
		case css.RightBraceToken:
			p.pos++
			if depth > 0 {
				return
			}
			p.line(b, depth, t.data)
			first, lastWasBlock = false, false
			continue
		case css.SemicolonToken:
			p.pos++
			continue
		case css.CDOToken, css.CDCToken:
			p.pos++
			p.line(b, depth, t.data)
			first, lastWasBlock = false, false
			continue
		}

		prelude, term := p.collect()
		if term == css.LeftBraceToken {
			if !first {
				b.WriteByte('\n')
			}
			head := p.prelude(prelude, depth)
			var inner strings.Builder
			p.block(&inner, depth+1)
			switch {
			case inner.Len() == 0 && head == "":
				p.line(b, depth, "{}")
			case inner.Len() == 0:
				p.line(b, depth, head+" {}")
			default:
				if head == "" {
					p.line(b, depth, "{")
				} else {
					p.line(b, depth, head+" {")
				}
				b.WriteString(inner.String())
				p.line(b, depth, "}")
			}
			lastWasBlock = true
		} else {
			if lastWasBlock {
				b.WriteByte('\n')
			}
			p.line(b, depth, p.statement(prelude)+";")
			lastWasBlock = false
		}
		first = false
	}
}

// collect gathers the tokens of one item. It consumes a terminating ';' or
// '{' and leaves a '}' in place. term is css.ErrorToken at end of input.
func (p *printer) collect() (toks []token, term css.TokenType) {
	nesting := 0
	for p.pos < len(p.toks) {
		t := p.toks[p.pos]
		switch t.kind {
		case css.LeftBraceToken:
			p.pos++
			return toks, t.kind
		case css.RightBraceToken:
			return toks, t.kind
		case css.SemicolonToken:
			if nesting == 0 {
				p.pos++
				return toks, t.kind
			}
		case css.FunctionToken, css.LeftParenthesisToken, css.LeftBracketToken:
			nesting++
		case css.RightParenthesisToken, css.RightBracketToken:
			if nesting > 0 {
				nesting--
			}
		}
		toks = append(toks, t)
		p.pos++
	}
	return toks, css.ErrorToken
}

// prelude formats the part of a rule before its '{'.
func (p *printer) prelude(toks []token, depth int) string {
	if len(toks) == 0 {
		return ""
	}
	if toks[0].kind == css.AtKeywordToken {
		return join(toks, atRuleMode)
	}

	var selectors []string
	for _, group := range splitTopLevel(toks, css.CommaToken) {
		selectors = append(selectors, join(group, selectorMode))
	}
	return strings.Join(selectors, ",\n"+strings.Repeat(p.indent, depth))
}

// statement formats a declaration or a block-less at-rule, without its ';'.
func (p *printer) statement(toks []token) string {
	if len(toks) == 0 {
		return ""
	}
	if toks[0].kind == css.AtKeywordToken {
		return join(toks, atRuleMode)
	}

	colon := -1
	for i, t := range toks {
		if t.kind == css.ColonToken {
			colon = i
			break
		}
	}
	if colon < 0 {
		return join(toks, valueMode)
	}

	var b strings.Builder
	for _, t := range toks[:colon] {
		b.WriteString(t.data)
	}
	b.WriteString(toks[colon].data)
	if value := join(toks[colon+1:], valueMode); value != "" {
		b.WriteByte(' ')
		b.WriteString(value)
	}
	return b.String()
}

// splitTopLevel splits toks on sep tokens outside parentheses and brackets.
func splitTopLevel(toks []token, sep css.TokenType) [][]token {
	var (
		groups  [][]token
		current []token
		nesting int
	)
	for _, t := range toks {
		switch t.kind {
		case css.FunctionToken, css.LeftParenthesisToken, css.LeftBracketToken:
			nesting++
		case css.RightParenthesisToken, css.RightBracketToken:
			if nesting > 0 {
				nesting--
			}
		case sep:
			if nesting == 0 {
				groups = append(groups, current)
				current = nil
				continue
			}
		}
		current = append(current, t)
	}
	return append(groups, current)
}

func join(toks []token, m mode) string {
	var b strings.Builder
	nesting := 0
	for i, t := range toks {
		if i > 0 && spaceBetween(toks[i-1], t, m, nesting) {
			b.WriteByte(' ')
		}
		b.WriteString(t.data)

		switch t.kind {
		case css.FunctionToken, css.LeftParenthesisToken, css.LeftBracketToken:
			nesting++
		case css.RightParenthesisToken, css.RightBracketToken:
			if nesting > 0 {
				nesting--
			}
		}
	}
	return b.String()
}

func isCombinator(t token) bool {
	return t.is(css.DelimToken, ">") || t.is(css.DelimToken, "+") || t.is(css.DelimToken, "~")
}

// spaceBetween decides whether a space separates prev and cur. nesting is
// the parenthesis depth before cur.
func spaceBetween(prev, cur token, m mode, nesting int) bool {
	switch {
	case cur.kind == css.CommaToken,
		cur.kind == css.RightParenthesisToken,
		cur.kind == css.RightBracketToken:
		return false
	case prev.kind == css.FunctionToken,
		prev.kind == css.LeftParenthesisToken,
		prev.kind == css.LeftBracketToken:
		return false
	case prev.kind == css.AtKeywordToken:
		return true
	case prev.kind == css.CommaToken:
		return m != selectorMode || cur.space
	}

	switch m {
	case selectorMode:
		if nesting == 0 && (isCombinator(prev) || isCombinator(cur)) {
			return true
		}
		return cur.space
	case atRuleMode:
		if nesting > 0 {
			if cur.kind == css.ColonToken {
				return false
			}
			if prev.kind == css.ColonToken {
				return true
			}
		}
		return cur.space
	default:
		if cur.kind == css.ColonToken {
			return false
		}
		if prev.kind == css.ColonToken || cur.is(css.DelimToken, "!") {
			return true
		}
		return cur.space
	}
}
