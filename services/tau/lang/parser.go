// Copyright (C) 2025 The tau authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package lang parses the restricted imperative source subset tau verifies:
// function definitions with typed integer/boolean parameters, simple
// assignment, two-armed conditionals, while loops, and returns.
//
// The grammar is indentation-sensitive. A suite after ":" is either a block
// (NEWLINE INDENT ... DEDENT) or inline simple statements separated by ";".
// Compound statements require a block suite.
package lang

import (
	"errors"
	"fmt"
)

// ErrSyntax is wrapped by every lexing and parsing error.
var ErrSyntax = errors.New("syntax error")

type parser struct {
	tokens []Token
	pos    int
}

// Parse parses a complete source text into a Module.
func Parse(src string) (*Module, error) {
	tokens, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	return p.parseModule()
}

// ParseFunction parses a source text expected to contain exactly one
// function definition.
func ParseFunction(src string) (*FuncDef, error) {
	mod, err := Parse(src)
	if err != nil {
		return nil, err
	}
	if len(mod.Functions) != 1 {
		return nil, fmt.Errorf("lang: %w: expected exactly one function, found %d", ErrSyntax, len(mod.Functions))
	}
	return mod.Functions[0], nil
}

func (p *parser) cur() Token  { return p.tokens[p.pos] }
func (p *parser) next() Token { t := p.tokens[p.pos]; p.pos++; return t }

func (p *parser) accept(kind Kind) bool {
	if p.cur().Kind == kind {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(kind Kind) (Token, error) {
	t := p.cur()
	if t.Kind != kind {
		return t, p.errf(t, "expected %s, found %s", kind, t)
	}
	p.pos++
	return t, nil
}

func (p *parser) errf(t Token, format string, args ...any) error {
	return fmt.Errorf("lang: line %d: %w: %s", t.Line, ErrSyntax, fmt.Sprintf(format, args...))
}

func (p *parser) parseModule() (*Module, error) {
	mod := &Module{}
	for {
		switch p.cur().Kind {
		case EOF:
			if len(mod.Functions) == 0 {
				return nil, fmt.Errorf("lang: %w: no functions found in source", ErrSyntax)
			}
			return mod, nil
		case Newline:
			p.pos++
		case KwDef:
			fn, err := p.parseFuncDef()
			if err != nil {
				return nil, err
			}
			mod.Functions = append(mod.Functions, fn)
		default:
			return nil, p.errf(p.cur(), "expected function definition, found %s", p.cur())
		}
	}
}

func (p *parser) parseFuncDef() (*FuncDef, error) {
	defTok, err := p.expect(KwDef)
	if err != nil {
		return nil, err
	}
	nameTok, err := p.expect(Ident)
	if err != nil {
		return nil, err
	}
	fn := &FuncDef{Name: nameTok.Lit, ReturnType: "int", Line: defTok.Line}

	if _, err := p.expect(LParen); err != nil {
		return nil, err
	}
	for p.cur().Kind != RParen {
		pname, err := p.expect(Ident)
		if err != nil {
			return nil, err
		}
		param := Param{Name: pname.Lit, Type: "int"}
		if p.accept(Colon) {
			ptype, err := p.expect(Ident)
			if err != nil {
				return nil, err
			}
			param.Type = ptype.Lit
		}
		fn.Params = append(fn.Params, param)
		if !p.accept(Comma) {
			break
		}
	}
	if _, err := p.expect(RParen); err != nil {
		return nil, err
	}
	if p.accept(Arrow) {
		rt, err := p.expect(Ident)
		if err != nil {
			return nil, err
		}
		fn.ReturnType = rt.Lit
	}
	if _, err := p.expect(Colon); err != nil {
		return nil, err
	}

	body, doc, err := p.parseSuite(true)
	if err != nil {
		return nil, err
	}
	fn.Body = body
	fn.Docstring = doc
	if len(fn.Body) == 0 {
		return nil, p.errf(defTok, "function %s has an empty body", fn.Name)
	}
	return fn, nil
}

// parseSuite parses the statements after a ":". When allowDocstring is set, a
// leading bare string literal is captured as the docstring and excluded from
// the statement list.
func (p *parser) parseSuite(allowDocstring bool) ([]Stmt, string, error) {
	if p.accept(Newline) {
		if _, err := p.expect(Indent); err != nil {
			return nil, "", err
		}
		doc := ""
		if allowDocstring && p.cur().Kind == String {
			doc = p.next().Lit
			if _, err := p.expect(Newline); err != nil {
				return nil, "", err
			}
		}
		var stmts []Stmt
		for p.cur().Kind != Dedent {
			batch, err := p.parseStatement()
			if err != nil {
				return nil, "", err
			}
			stmts = append(stmts, batch...)
		}
		p.pos++ // Dedent
		return stmts, doc, nil
	}

	// Inline suite: simple statements only.
	doc := ""
	if allowDocstring && p.cur().Kind == String {
		doc = p.next().Lit
		if !p.accept(Semi) {
			if _, err := p.expect(Newline); err != nil {
				return nil, "", err
			}
			return nil, doc, nil
		}
	}
	stmts, err := p.parseSimpleStmts()
	if err != nil {
		return nil, "", err
	}
	return stmts, doc, nil
}

// parseStatement parses one logical line: a compound statement, or a
// semicolon-separated run of simple statements.
func (p *parser) parseStatement() ([]Stmt, error) {
	switch p.cur().Kind {
	case KwIf:
		s, err := p.parseIf()
		if err != nil {
			return nil, err
		}
		return []Stmt{s}, nil
	case KwWhile:
		s, err := p.parseWhile()
		if err != nil {
			return nil, err
		}
		return []Stmt{s}, nil
	default:
		return p.parseSimpleStmts()
	}
}

func (p *parser) parseSimpleStmts() ([]Stmt, error) {
	var stmts []Stmt
	for {
		s, err := p.parseSimpleStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
		if p.accept(Semi) {
			if p.cur().Kind == Newline || p.cur().Kind == EOF {
				break
			}
			continue
		}
		break
	}
	if p.cur().Kind == Newline {
		p.pos++
	} else if p.cur().Kind != EOF && p.cur().Kind != Dedent {
		return nil, p.errf(p.cur(), "unexpected %s after statement", p.cur())
	}
	return stmts, nil
}

func (p *parser) parseSimpleStmt() (Stmt, error) {
	t := p.cur()
	switch t.Kind {
	case KwReturn:
		p.pos++
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ReturnStmt{Value: value, Line: t.Line}, nil
	case Ident:
		if p.tokens[p.pos+1].Kind == Assign {
			name := p.next()
			p.pos++ // =
			value, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			return &AssignStmt{Target: name.Lit, Value: value, Line: name.Line}, nil
		}
		return nil, p.errf(t, "only assignments to a single variable are supported")
	default:
		return nil, p.errf(t, "expected statement, found %s", t)
	}
}

func (p *parser) parseIf() (Stmt, error) {
	ifTok := p.next()
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(Colon); err != nil {
		return nil, err
	}
	then, _, err := p.parseSuite(false)
	if err != nil {
		return nil, err
	}

	stmt := &IfStmt{Cond: cond, Then: then, Line: ifTok.Line}
	if p.cur().Kind == KwElse {
		p.pos++
		if _, err := p.expect(Colon); err != nil {
			return nil, err
		}
		elseBody, _, err := p.parseSuite(false)
		if err != nil {
			return nil, err
		}
		stmt.Else = elseBody
	}
	return stmt, nil
}

func (p *parser) parseWhile() (Stmt, error) {
	whileTok := p.next()
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(Colon); err != nil {
		return nil, err
	}
	body, _, err := p.parseSuite(false)
	if err != nil {
		return nil, err
	}
	return &WhileStmt{Cond: cond, Body: body, Line: whileTok.Line}, nil
}

// Expression grammar, loosest to tightest binding:
//
//	ternary    := or ["if" or "else" ternary]
//	or         := and {"or" and}
//	and        := not {"and" not}
//	not        := "not" not | comparison
//	comparison := arith {cmpop arith}
//	arith      := term {("+"|"-") term}
//	term       := factor {("*"|"/"|"//"|"%") factor}
//	factor     := ("-"|"+") factor | atom
//	atom       := INT | STRING | True | False | IDENT ["(" args ")"] | "(" ternary ")"
func (p *parser) parseExpr() (Expr, error) {
	value, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur().Kind != KwIf {
		return value, nil
	}
	p.pos++
	cond, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(KwElse); err != nil {
		return nil, err
	}
	orelse, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &CondExpr{Cond: cond, Then: value, Else: orelse}, nil
}

func (p *parser) parseOr() (Expr, error) {
	return p.parseBoolChain(KwOr, "or", p.parseAnd)
}

func (p *parser) parseAnd() (Expr, error) {
	return p.parseBoolChain(KwAnd, "and", p.parseNot)
}

func (p *parser) parseBoolChain(kw Kind, op string, sub func() (Expr, error)) (Expr, error) {
	first, err := sub()
	if err != nil {
		return nil, err
	}
	if p.cur().Kind != kw {
		return first, nil
	}
	values := []Expr{first}
	for p.accept(kw) {
		v, err := sub()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return &BoolExpr{Op: op, Values: values}, nil
}

func (p *parser) parseNot() (Expr, error) {
	if p.accept(KwNot) {
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: "not", Operand: operand}, nil
	}
	return p.parseComparison()
}

var cmpOps = map[Kind]string{
	OpEq: "==",
	OpNe: "!=",
	OpLt: "<",
	OpLe: "<=",
	OpGt: ">",
	OpGe: ">=",
}

func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseArith()
	if err != nil {
		return nil, err
	}
	if _, ok := cmpOps[p.cur().Kind]; !ok {
		return left, nil
	}
	cmp := &CompareExpr{Left: left}
	for {
		op, ok := cmpOps[p.cur().Kind]
		if !ok {
			break
		}
		p.pos++
		right, err := p.parseArith()
		if err != nil {
			return nil, err
		}
		cmp.Ops = append(cmp.Ops, op)
		cmp.Comparators = append(cmp.Comparators, right)
	}
	return cmp, nil
}

func (p *parser) parseArith() (Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch p.cur().Kind {
		case Plus:
			op = "+"
		case Minus:
			op = "-"
		default:
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseTerm() (Expr, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch p.cur().Kind {
		case Star:
			op = "*"
		case SlashSlash, Slash:
			op = "//"
		case Percent:
			op = "%"
		default:
			return left, nil
		}
		p.pos++
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseFactor() (Expr, error) {
	switch p.cur().Kind {
	case Minus:
		p.pos++
		operand, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: "-", Operand: operand}, nil
	case Plus:
		p.pos++
		operand, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: "+", Operand: operand}, nil
	}
	return p.parseAtom()
}

func (p *parser) parseAtom() (Expr, error) {
	t := p.cur()
	switch t.Kind {
	case Int:
		p.pos++
		return &IntLit{Value: t.Lit}, nil
	case String:
		p.pos++
		return &StringLit{Value: t.Lit}, nil
	case KwTrue:
		p.pos++
		return &BoolLit{Value: true}, nil
	case KwFalse:
		p.pos++
		return &BoolLit{Value: false}, nil
	case LParen:
		p.pos++
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RParen); err != nil {
			return nil, err
		}
		return inner, nil
	case Ident:
		p.pos++
		if !p.accept(LParen) {
			return &NameExpr{ID: t.Lit, Line: t.Line}, nil
		}
		call := &CallExpr{Func: t.Lit, Line: t.Line}
		for p.cur().Kind != RParen {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
			if !p.accept(Comma) {
				break
			}
		}
		if _, err := p.expect(RParen); err != nil {
			return nil, err
		}
		return call, nil
	default:
		return nil, p.errf(t, "expected expression, found %s", t)
	}
}
