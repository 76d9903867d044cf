// Copyright (C) 2025 The tau authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package translate

import "errors"

// Structural translation errors. All are fatal for the function being
// translated and are never retried; in a multi-function module only the
// offending function's translation aborts.
var (
	// ErrUnsupportedConstruct indicates a statement or expression shape the
	// subset does not cover. The wrapping error names the construct.
	ErrUnsupportedConstruct = errors.New("unsupported construct")

	// ErrMissingElseBranch indicates a conditional without an else branch.
	// The verification language has no implicit fallthrough.
	ErrMissingElseBranch = errors.New("both if/else branches required")

	// ErrMultipleLoops indicates more than one loop in a single function.
	ErrMultipleLoops = errors.New("only one while loop per function supported")

	// ErrUnknownFunction indicates a call to a function that is neither
	// defined in the module nor covered by an external contract.
	ErrUnknownFunction = errors.New("unknown function")

	// ErrChainedComparison indicates a comparison with more than one
	// operator, e.g. a < b < c.
	ErrChainedComparison = errors.New("chained comparisons not supported")
)
