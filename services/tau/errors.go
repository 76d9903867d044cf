// Copyright (C) 2025 The tau authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tau

import "errors"

var (
	// ErrEmptySource indicates a request without source code.
	ErrEmptySource = errors.New("source code is required")

	// ErrFunctionNotFound indicates the named function does not appear in
	// the submitted source.
	ErrFunctionNotFound = errors.New("function not found in source")
)
