// Copyright (C) 2025 The tau authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package gen

import (
	"fmt"
	"strings"

	"github.com/pedronobrol/tau/services/tau/translate"
)

var whyTypeToLean = map[string]string{
	"int":  "Int",
	"bool": "Bool",
	"real": "Real",
}

// ProofSkeleton renders the companion Lean document: one unproved
// placeholder theorem per function, preceded by comment lines restating the
// requires/ensures clauses verbatim. It states the obligations for a human
// auditor; it proves nothing.
func ProofSkeleton(contracts []*translate.FunctionContract, moduleName string) string {
	lines := []string{
		"-- Lean theorems for " + moduleName,
		"set_option autoImplicit true",
		"set_option sorryPermitted true",
		"",
	}

	for _, fc := range contracts {
		params := make([]string, len(fc.Params))
		for i, p := range fc.Params {
			leanType := p.Type
			if t, ok := whyTypeToLean[p.Type]; ok {
				leanType = t
			}
			params[i] = fmt.Sprintf("(%s : %s)", p.Name, leanType)
		}

		lines = append(lines,
			"-- requires: "+fc.Requires,
			"-- ensures: "+fc.Ensures,
			fmt.Sprintf("theorem %s_correct %s : Prop := by", fc.Name, strings.Join(params, " ")),
			"  admit",
			"")
	}

	return strings.Join(lines, "\n")
}
