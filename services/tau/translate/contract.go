// Copyright (C) 2025 The tau authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package translate

import "github.com/pedronobrol/tau/services/tau/lang"

// LoopContract carries the proof obligations attached to a function's loop:
// invariants in the order they should be emitted, and an optional variant
// establishing termination.
type LoopContract struct {
	Invariants []string `json:"invariants"`
	Variant    string   `json:"variant"`
}

// Clone returns an independent copy.
func (lc *LoopContract) Clone() *LoopContract {
	if lc == nil {
		return nil
	}
	out := &LoopContract{Variant: lc.Variant}
	out.Invariants = append(out.Invariants, lc.Invariants...)
	return out
}

// Empty reports whether the contract carries no obligations at all.
func (lc *LoopContract) Empty() bool {
	return lc == nil || (len(lc.Invariants) == 0 && lc.Variant == "")
}

// ExternalContract describes a function that is called but not defined in
// the translated module. It must be declared before any call site uses it.
type ExternalContract struct {
	Params     []lang.Param `json:"params"`
	ReturnType string       `json:"return_type"`
	Requires   string       `json:"requires"`
	Ensures    string       `json:"ensures"`
}

// FunctionContract is one fully translated function: its signature, its
// pre/postconditions, its loop contract if any, and the translated body.
// Contracts are created fresh per translation and never mutated afterwards.
type FunctionContract struct {
	Name       string
	Params     []lang.Param
	ReturnType string
	Requires   string
	Ensures    string
	Loop       *LoopContract
	Body       string
}

// Context is the per-function translation state: the set of names callable
// as functions, and the set of names currently bound as mutable reference
// cells. The ref-cell set only ever grows within one function.
type Context struct {
	Known    map[string]bool
	External map[string]ExternalContract
	Refs     map[string]bool
}

// NewContext builds a fresh context for one function translation.
func NewContext(known map[string]bool, external map[string]ExternalContract) *Context {
	ctx := &Context{
		Known:    known,
		External: external,
		Refs:     make(map[string]bool),
	}
	if ctx.Known == nil {
		ctx.Known = make(map[string]bool)
	}
	if ctx.External == nil {
		ctx.External = make(map[string]ExternalContract)
	}
	return ctx
}
