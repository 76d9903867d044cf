// Copyright (C) 2025 The tau authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package gen assembles translated functions into WhyML modules and emits
// the companion Lean proof-skeleton documents.
package gen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pedronobrol/tau/services/tau/lang"
	"github.com/pedronobrol/tau/services/tau/translate"
)

// Spec is the specification attached to a function identifier: the
// pre/postcondition pair plus an optional loop contract. This replaces the
// source system's decorator markers with plain data.
type Spec struct {
	Requires   string   `json:"requires"`
	Ensures    string   `json:"ensures"`
	Invariants []string `json:"invariants,omitempty"`
	Variant    string   `json:"variant,omitempty"`
}

// LoopContract returns the loop contract carried by the spec, or nil when
// the spec declares neither invariants nor a variant.
func (s Spec) LoopContract() *translate.LoopContract {
	if len(s.Invariants) == 0 && s.Variant == "" {
		return nil
	}
	return &translate.LoopContract{Invariants: s.Invariants, Variant: s.Variant}
}

var typeToWhy = map[string]string{
	"int":   "int",
	"bool":  "bool",
	"float": "real",
	"Nat":   "int",
}

func whyType(name string) string {
	if t, ok := typeToWhy[name]; ok {
		return t
	}
	return "int"
}

// Module translates every function in source and assembles one WhyML module.
// External contracts are declared before any function definition. When
// moduleName is empty, M_<first function> is used.
//
// Returns the module source, the translated contracts in definition order,
// and the resolved module name.
func Module(source string, specs map[string]Spec, external map[string]translate.ExternalContract, moduleName string) (string, []*translate.FunctionContract, string, error) {
	mod, err := lang.Parse(source)
	if err != nil {
		return "", nil, "", err
	}

	known := make(map[string]bool, len(mod.Functions))
	for _, fn := range mod.Functions {
		known[fn.Name] = true
	}

	var contracts []*translate.FunctionContract
	for _, fn := range mod.Functions {
		contract, err := translateFunction(fn, specs[fn.Name], known, external)
		if err != nil {
			return "", nil, "", fmt.Errorf("gen: function %s: %w", fn.Name, err)
		}
		contracts = append(contracts, contract)
	}

	modName := moduleName
	if modName == "" {
		modName = "M_" + mod.Functions[0].Name
	}

	lines := []string{
		"module " + modName,
		"use int.Int",
		"use bool.Bool",
		"use ref.Ref",
		"use int.ComputerDivision",
		"",
	}

	for _, extName := range sortedKeys(external) {
		ext := external[extName]
		lines = append(lines,
			fmt.Sprintf("val %s %s : %s", extName, paramSig(ext.Params), whyType(ext.ReturnType)),
			fmt.Sprintf("  requires { %s }", ext.Requires),
			fmt.Sprintf("  ensures  { %s }", ext.Ensures),
			"")
	}

	for _, fc := range contracts {
		lines = append(lines,
			fmt.Sprintf("let %s %s : %s =", fc.Name, paramSig(fc.Params), fc.ReturnType),
			fmt.Sprintf("  requires { %s }", fc.Requires),
			fmt.Sprintf("  ensures  { %s }", fc.Ensures),
			indentBlock(fc.Body),
			"")
	}

	lines = append(lines, "end")
	return strings.Join(lines, "\n"), contracts, modName, nil
}

func translateFunction(fn *lang.FuncDef, spec Spec, known map[string]bool, external map[string]translate.ExternalContract) (*translate.FunctionContract, error) {
	params := make([]lang.Param, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = lang.Param{Name: p.Name, Type: whyType(p.Type)}
	}

	requires := spec.Requires
	if requires == "" {
		requires = "true"
	}
	ensures := spec.Ensures
	if ensures == "" {
		ensures = "true"
	}
	loop := spec.LoopContract()

	ctx := translate.NewContext(known, external)
	body, err := translate.Body(fn.Body, ctx, loop)
	if err != nil {
		return nil, err
	}

	return &translate.FunctionContract{
		Name:       fn.Name,
		Params:     params,
		ReturnType: whyType(fn.ReturnType),
		Requires:   requires,
		Ensures:    ensures,
		Loop:       loop,
		Body:       body,
	}, nil
}

func paramSig(params []lang.Param) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = fmt.Sprintf("(%s:%s)", p.Name, whyType(p.Type))
	}
	return strings.Join(parts, " ")
}

func sortedKeys(m map[string]translate.ExternalContract) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func indentBlock(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			lines[i] = "  " + line
		}
	}
	return strings.Join(lines, "\n")
}
