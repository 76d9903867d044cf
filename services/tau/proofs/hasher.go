// Copyright (C) 2025 The tau authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package proofs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pedronobrol/tau/services/tau/lang"
)

// FunctionInfo identifies one function for hashing: its name, source text,
// and full specification.
type FunctionInfo struct {
	Name       string   `json:"name"`
	Source     string   `json:"source"`
	Requires   string   `json:"requires"`
	Ensures    string   `json:"ensures"`
	Invariants []string `json:"invariants"`
	Variant    string   `json:"variant"`
}

// FullHash is the cache key: a structural hash over the function's name,
// parameter names, body, and full specification. The body component is an
// AST dump, so whitespace, comments, and docstrings do not affect it, while
// any executable change does. Specification changes always change it.
func FullHash(info FunctionInfo) string {
	fn, err := firstFunction(info.Source)
	if err != nil {
		slog.Warn("structural hashing failed, using text fallback", "function", info.Name, "error", err)
		return SourceHash(info)
	}
	return canonicalHash(map[string]any{
		"name":       info.Name,
		"args":       paramNames(fn),
		"body_ast":   fn.Dump(),
		"requires":   info.Requires,
		"ensures":    info.Ensures,
		"invariants": nonNil(info.Invariants),
		"variant":    info.Variant,
	})
}

// BodyHash is the structural hash of the body alone, with the specification
// omitted. Two versions of a function that differ only in their declared
// contract share a body hash, which is what find-by-body resolves.
func BodyHash(info FunctionInfo) string {
	fn, err := firstFunction(info.Source)
	if err != nil {
		slog.Warn("structural body hashing failed, using text fallback", "function", info.Name, "error", err)
		return hashString(info.Name + info.Source)
	}
	return canonicalHash(map[string]any{
		"name":     info.Name,
		"args":     paramNames(fn),
		"body_ast": fn.Dump(),
	})
}

// SourceHash digests the literal source text plus specification strings. It
// changes on any textual edit, including whitespace, and exists for audit
// only; it is never used as a cache key.
func SourceHash(info FunctionInfo) string {
	return hashString(info.Name + info.Source + info.Requires + info.Ensures +
		fmt.Sprint(nonNil(info.Invariants)) + info.Variant)
}

func firstFunction(source string) (*lang.FuncDef, error) {
	mod, err := lang.Parse(source)
	if err != nil {
		return nil, err
	}
	return mod.Functions[0], nil
}

func paramNames(fn *lang.FuncDef) []string {
	names := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		names[i] = p.Name
	}
	return names
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// canonicalHash serializes to JSON (Go sorts map keys, making the form
// canonical) and digests with SHA-256.
func canonicalHash(components map[string]any) string {
	data, err := json.Marshal(components)
	if err != nil {
		// Only string/slice values reach here; Marshal cannot fail on them.
		panic(fmt.Sprintf("proofs: canonical serialization: %v", err))
	}
	return hashBytes(data)
}

func hashString(s string) string {
	return hashBytes([]byte(s))
}

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
