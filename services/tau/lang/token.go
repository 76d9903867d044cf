// Copyright (C) 2025 The tau authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package lang

import "fmt"

// Kind identifies a lexical token class.
type Kind int

const (
	EOF Kind = iota
	Newline
	Indent
	Dedent

	Ident
	Int
	String

	// Keywords.
	KwDef
	KwReturn
	KwIf
	KwElse
	KwWhile
	KwAnd
	KwOr
	KwNot
	KwTrue
	KwFalse

	// Punctuation and operators.
	LParen
	RParen
	Colon
	Comma
	Semi
	Arrow

	Assign
	Plus
	Minus
	Star
	Slash
	SlashSlash
	Percent

	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

var kindNames = map[Kind]string{
	EOF:        "EOF",
	Newline:    "NEWLINE",
	Indent:     "INDENT",
	Dedent:     "DEDENT",
	Ident:      "IDENT",
	Int:        "INT",
	String:     "STRING",
	KwDef:      "def",
	KwReturn:   "return",
	KwIf:       "if",
	KwElse:     "else",
	KwWhile:    "while",
	KwAnd:      "and",
	KwOr:       "or",
	KwNot:      "not",
	KwTrue:     "True",
	KwFalse:    "False",
	LParen:     "(",
	RParen:     ")",
	Colon:      ":",
	Comma:      ",",
	Semi:       ";",
	Arrow:      "->",
	Assign:     "=",
	Plus:       "+",
	Minus:      "-",
	Star:       "*",
	Slash:      "/",
	SlashSlash: "//",
	Percent:    "%",
	OpEq:       "==",
	OpNe:       "!=",
	OpLt:       "<",
	OpLe:       "<=",
	OpGt:       ">",
	OpGe:       ">=",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

var keywords = map[string]Kind{
	"def":    KwDef,
	"return": KwReturn,
	"if":     KwIf,
	"else":   KwElse,
	"while":  KwWhile,
	"and":    KwAnd,
	"or":     KwOr,
	"not":    KwNot,
	"True":   KwTrue,
	"False":  KwFalse,
}

// Token is a single lexeme with its source position.
type Token struct {
	Kind Kind
	Lit  string
	Line int
	Col  int
}

func (t Token) String() string {
	if t.Lit != "" && t.Kind != Newline {
		return fmt.Sprintf("%s(%s)", t.Kind, t.Lit)
	}
	return t.Kind.String()
}
