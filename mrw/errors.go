// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mrw

import "errors"

// Package-level error definitions.
//
// A walk that ends without reaching the goal is NOT an error: failed walks
// are normal control flow and engines report them only in aggregate stats.
// Likewise exhausting the walk budget without a plan returns found=false
// with a nil error; "no plan found" is absence of evidence, not proof the
// problem is unsolvable.
var (
	ErrNilProblem         = errors.New("nil problem")
	ErrInvalidConfig      = errors.New("invalid config")
	ErrUnsupportedProblem = errors.New("unsupported problem requirements")
)

// EngineError wraps engine-specific errors with the failing operation.
type EngineError struct {
	Engine    string
	Operation string
	Err       error
}

func (e *EngineError) Error() string {
	return e.Engine + "." + e.Operation + ": " + e.Err.Error()
}

func (e *EngineError) Unwrap() error {
	return e.Err
}
