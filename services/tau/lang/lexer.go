// Copyright (C) 2025 The tau authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package lang

import (
	"fmt"
	"strings"
)

// lexer turns source text into a token stream with INDENT/DEDENT structure.
//
// Blank lines and comment-only lines produce no tokens at all, so formatting
// edits cannot change the stream. Inside parentheses, newlines are treated as
// plain whitespace.
type lexer struct {
	src     []rune
	pos     int
	line    int
	col     int
	indents []int
	parens  int
	tokens  []Token
}

// Tokenize lexes a complete source text.
func Tokenize(src string) ([]Token, error) {
	lx := &lexer{
		src:     []rune(src),
		line:    1,
		indents: []int{0},
	}
	if err := lx.run(); err != nil {
		return nil, err
	}
	return lx.tokens, nil
}

func (lx *lexer) errf(format string, args ...any) error {
	return fmt.Errorf("lang: line %d: %w: %s", lx.line, ErrSyntax, fmt.Sprintf(format, args...))
}

func (lx *lexer) peek() rune {
	if lx.pos >= len(lx.src) {
		return 0
	}
	return lx.src[lx.pos]
}

func (lx *lexer) peekAt(off int) rune {
	if lx.pos+off >= len(lx.src) {
		return 0
	}
	return lx.src[lx.pos+off]
}

func (lx *lexer) advance() rune {
	r := lx.src[lx.pos]
	lx.pos++
	if r == '\n' {
		lx.line++
		lx.col = 0
	} else {
		lx.col++
	}
	return r
}

func (lx *lexer) emit(kind Kind, lit string) {
	lx.tokens = append(lx.tokens, Token{Kind: kind, Lit: lit, Line: lx.line, Col: lx.col})
}

func (lx *lexer) run() error {
	for lx.pos < len(lx.src) {
		if err := lx.lexLine(); err != nil {
			return err
		}
	}
	// Close any open blocks at end of input.
	if n := len(lx.tokens); n > 0 && lx.tokens[n-1].Kind != Newline {
		lx.emit(Newline, "")
	}
	for len(lx.indents) > 1 {
		lx.indents = lx.indents[:len(lx.indents)-1]
		lx.emit(Dedent, "")
	}
	lx.emit(EOF, "")
	return nil
}

// lexLine handles one physical line: indentation, tokens, trailing newline.
func (lx *lexer) lexLine() error {
	width := 0
	for lx.pos < len(lx.src) {
		switch lx.peek() {
		case ' ':
			width++
			lx.advance()
			continue
		case '\t':
			width += 8 - width%8
			lx.advance()
			continue
		}
		break
	}

	// Blank or comment-only lines contribute nothing.
	if lx.pos >= len(lx.src) {
		return nil
	}
	if lx.peek() == '\n' {
		lx.advance()
		return nil
	}
	if lx.peek() == '#' {
		lx.skipToEOL()
		return nil
	}

	if lx.parens == 0 {
		if err := lx.applyIndent(width); err != nil {
			return err
		}
	}

	for lx.pos < len(lx.src) {
		r := lx.peek()
		if r == '\n' {
			lx.advance()
			if lx.parens == 0 {
				lx.emit(Newline, "")
				return nil
			}
			continue
		}
		if r == ' ' || r == '\t' || r == '\r' {
			lx.advance()
			continue
		}
		if r == '#' {
			lx.skipToEOL()
			if lx.parens == 0 {
				lx.emit(Newline, "")
			}
			return nil
		}
		if err := lx.lexToken(); err != nil {
			return err
		}
	}
	return nil
}

func (lx *lexer) skipToEOL() {
	for lx.pos < len(lx.src) && lx.peek() != '\n' {
		lx.advance()
	}
	if lx.pos < len(lx.src) {
		lx.advance()
	}
}

func (lx *lexer) applyIndent(width int) error {
	top := lx.indents[len(lx.indents)-1]
	switch {
	case width > top:
		lx.indents = append(lx.indents, width)
		lx.emit(Indent, "")
	case width < top:
		for len(lx.indents) > 1 && lx.indents[len(lx.indents)-1] > width {
			lx.indents = lx.indents[:len(lx.indents)-1]
			lx.emit(Dedent, "")
		}
		if lx.indents[len(lx.indents)-1] != width {
			return lx.errf("unindent does not match any outer indentation level")
		}
	}
	return nil
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentCont(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}

func (lx *lexer) lexToken() error {
	r := lx.peek()

	switch {
	case isIdentStart(r):
		var sb strings.Builder
		for lx.pos < len(lx.src) && isIdentCont(lx.peek()) {
			sb.WriteRune(lx.advance())
		}
		word := sb.String()
		if kw, ok := keywords[word]; ok {
			lx.emit(kw, word)
		} else {
			lx.emit(Ident, word)
		}
		return nil

	case r >= '0' && r <= '9':
		var sb strings.Builder
		for lx.pos < len(lx.src) && lx.peek() >= '0' && lx.peek() <= '9' {
			sb.WriteRune(lx.advance())
		}
		if isIdentStart(lx.peek()) || lx.peek() == '.' {
			return lx.errf("unsupported numeric literal near %q", sb.String()+string(lx.peek()))
		}
		lx.emit(Int, sb.String())
		return nil

	case r == '"' || r == '\'':
		return lx.lexString()
	}

	lx.advance()
	switch r {
	case '(':
		lx.parens++
		lx.emit(LParen, "(")
	case ')':
		if lx.parens == 0 {
			return lx.errf("unmatched )")
		}
		lx.parens--
		lx.emit(RParen, ")")
	case ':':
		lx.emit(Colon, ":")
	case ',':
		lx.emit(Comma, ",")
	case ';':
		lx.emit(Semi, ";")
	case '+':
		lx.emit(Plus, "+")
	case '-':
		if lx.peek() == '>' {
			lx.advance()
			lx.emit(Arrow, "->")
		} else {
			lx.emit(Minus, "-")
		}
	case '*':
		lx.emit(Star, "*")
	case '/':
		if lx.peek() == '/' {
			lx.advance()
			lx.emit(SlashSlash, "//")
		} else {
			lx.emit(Slash, "/")
		}
	case '%':
		lx.emit(Percent, "%")
	case '=':
		if lx.peek() == '=' {
			lx.advance()
			lx.emit(OpEq, "==")
		} else {
			lx.emit(Assign, "=")
		}
	case '!':
		if lx.peek() != '=' {
			return lx.errf("unexpected character %q", r)
		}
		lx.advance()
		lx.emit(OpNe, "!=")
	case '<':
		if lx.peek() == '=' {
			lx.advance()
			lx.emit(OpLe, "<=")
		} else {
			lx.emit(OpLt, "<")
		}
	case '>':
		if lx.peek() == '=' {
			lx.advance()
			lx.emit(OpGe, ">=")
		} else {
			lx.emit(OpGt, ">")
		}
	default:
		return lx.errf("unexpected character %q", r)
	}
	return nil
}

// lexString handles single-, double-, and triple-quoted strings. Escape
// sequences are kept simple: a backslash takes the next character literally,
// with \n and \t translated. Strings only ever reach the translator as
// docstrings or literals, so no further fidelity is needed.
func (lx *lexer) lexString() error {
	quote := lx.advance()
	triple := false
	if lx.peek() == quote && lx.peekAt(1) == quote {
		lx.advance()
		lx.advance()
		triple = true
	}

	var sb strings.Builder
	for lx.pos < len(lx.src) {
		r := lx.peek()
		if r == '\\' {
			lx.advance()
			if lx.pos >= len(lx.src) {
				return lx.errf("unterminated string literal")
			}
			esc := lx.advance()
			switch esc {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			default:
				sb.WriteRune(esc)
			}
			continue
		}
		if r == quote {
			if !triple {
				lx.advance()
				lx.emit(String, sb.String())
				return nil
			}
			if lx.peekAt(1) == quote && lx.peekAt(2) == quote {
				lx.advance()
				lx.advance()
				lx.advance()
				lx.emit(String, sb.String())
				return nil
			}
			sb.WriteRune(lx.advance())
			continue
		}
		if r == '\n' && !triple {
			return lx.errf("unterminated string literal")
		}
		sb.WriteRune(lx.advance())
	}
	return lx.errf("unterminated string literal")
}
