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

// Module is a parsed source file: one or more function definitions.
type Module struct {
	Functions []*FuncDef
}

// Param is a typed function parameter. Type defaults to "int" when the
// annotation is omitted.
type Param struct {
	Name string
	Type string
}

// FuncDef is a function definition. Docstring holds a leading string-literal
// statement; it is excluded from Body so structural dumps ignore it.
type FuncDef struct {
	Name       string
	Params     []Param
	ReturnType string
	Docstring  string
	Body       []Stmt
	Line       int
}

// Stmt is a statement node.
type Stmt interface {
	stmtNode()
	// Dump renders a canonical, whitespace-independent structural form.
	// Two statements with the same executable meaning but different
	// formatting or comments dump identically.
	Dump() string
}

// Expr is an expression node.
type Expr interface {
	exprNode()
	Dump() string
}

// AssignStmt assigns an expression to a single simple name.
type AssignStmt struct {
	Target string
	Value  Expr
	Line   int
}

// IfStmt is a conditional. Else may be empty; the translator rejects that.
type IfStmt struct {
	Cond Expr
	Then []Stmt
	Else []Stmt
	Line int
}

// WhileStmt is a loop.
type WhileStmt struct {
	Cond Expr
	Body []Stmt
	Line int
}

// ReturnStmt returns an expression value.
type ReturnStmt struct {
	Value Expr
	Line  int
}

func (*AssignStmt) stmtNode() {}
func (*IfStmt) stmtNode()     {}
func (*WhileStmt) stmtNode()  {}
func (*ReturnStmt) stmtNode() {}

// NameExpr is a reference to a parameter, local variable, or function.
type NameExpr struct {
	ID   string
	Line int
}

// IntLit is a decimal integer literal.
type IntLit struct {
	Value string
}

// BoolLit is True or False.
type BoolLit struct {
	Value bool
}

// StringLit is a string literal. Only meaningful as a docstring, but kept as
// an expression so the translator can name it when it appears elsewhere.
type StringLit struct {
	Value string
}

// UnaryExpr applies "-", "+", or "not" to an operand.
type UnaryExpr struct {
	Op      string
	Operand Expr
}

// BinaryExpr applies an arithmetic operator: "+", "-", "*", "//", "%".
type BinaryExpr struct {
	Op    string
	Left  Expr
	Right Expr
}

// BoolExpr is an n-ary "and" or "or" chain, flattened.
type BoolExpr struct {
	Op     string
	Values []Expr
}

// CompareExpr holds one left operand and parallel operator/comparator lists.
// len(Ops) > 1 is a chained comparison, which the translator rejects.
type CompareExpr struct {
	Left        Expr
	Ops         []string
	Comparators []Expr
}

// CondExpr is a conditional expression: Then if Cond else Else.
type CondExpr struct {
	Cond Expr
	Then Expr
	Else Expr
}

// CallExpr calls a named function.
type CallExpr struct {
	Func string
	Args []Expr
	Line int
}

func (*NameExpr) exprNode()    {}
func (*IntLit) exprNode()      {}
func (*BoolLit) exprNode()     {}
func (*StringLit) exprNode()   {}
func (*UnaryExpr) exprNode()   {}
func (*BinaryExpr) exprNode()  {}
func (*BoolExpr) exprNode()    {}
func (*CompareExpr) exprNode() {}
func (*CondExpr) exprNode()    {}
func (*CallExpr) exprNode()    {}

func dumpStmts(stmts []Stmt) string {
	parts := make([]string, len(stmts))
	for i, s := range stmts {
		parts[i] = s.Dump()
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func dumpExprs(exprs []Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.Dump()
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// Dump renders the full structural form of the definition, including the
// signature. Docstrings and source positions are excluded.
func (f *FuncDef) Dump() string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.Name + ":" + p.Type
	}
	return fmt.Sprintf("FuncDef(%s,[%s],%s,%s)",
		f.Name, strings.Join(params, ","), f.ReturnType, dumpStmts(f.Body))
}

func (s *AssignStmt) Dump() string {
	return fmt.Sprintf("Assign(%s,%s)", s.Target, s.Value.Dump())
}

func (s *IfStmt) Dump() string {
	return fmt.Sprintf("If(%s,%s,%s)", s.Cond.Dump(), dumpStmts(s.Then), dumpStmts(s.Else))
}

func (s *WhileStmt) Dump() string {
	return fmt.Sprintf("While(%s,%s)", s.Cond.Dump(), dumpStmts(s.Body))
}

func (s *ReturnStmt) Dump() string {
	return fmt.Sprintf("Return(%s)", s.Value.Dump())
}

func (e *NameExpr) Dump() string  { return fmt.Sprintf("Name(%s)", e.ID) }
func (e *IntLit) Dump() string    { return fmt.Sprintf("Int(%s)", e.Value) }
func (e *BoolLit) Dump() string   { return fmt.Sprintf("Bool(%t)", e.Value) }
func (e *StringLit) Dump() string { return fmt.Sprintf("Str(%q)", e.Value) }

func (e *UnaryExpr) Dump() string {
	return fmt.Sprintf("Unary(%s,%s)", e.Op, e.Operand.Dump())
}

func (e *BinaryExpr) Dump() string {
	return fmt.Sprintf("Bin(%s,%s,%s)", e.Op, e.Left.Dump(), e.Right.Dump())
}

func (e *BoolExpr) Dump() string {
	return fmt.Sprintf("BoolOp(%s,%s)", e.Op, dumpExprs(e.Values))
}

func (e *CompareExpr) Dump() string {
	return fmt.Sprintf("Cmp(%s,[%s],%s)",
		e.Left.Dump(), strings.Join(e.Ops, ","), dumpExprs(e.Comparators))
}

func (e *CondExpr) Dump() string {
	return fmt.Sprintf("Cond(%s,%s,%s)", e.Cond.Dump(), e.Then.Dump(), e.Else.Dump())
}

func (e *CallExpr) Dump() string {
	return fmt.Sprintf("Call(%s,%s)", e.Func, dumpExprs(e.Args))
}
