// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extensions

import (
	"context"
	"errors"
	"fmt"

	"github.com/AleutianAI/AleutianPlan/pddl"
)

// ErrProblemBlocked is returned when a problem gate rejects a planning
// problem before search.
//
// Callers should map this to HTTP 422 or an equivalent rejected-input
// response, with the gate's BlockReason as the detail.
var ErrProblemBlocked = errors.New("problem blocked by gate")

// GateResult is the outcome of inspecting a problem.
//
// Example:
//
//	result := &GateResult{
//	    Blocked:     true,
//	    BlockReason: "problem has 120000 ground actions, limit is 50000",
//	    Findings: []GateFinding{
//	        {Type: "action_count", Detail: "120000 > 50000"},
//	    },
//	}
type GateResult struct {
	// Blocked reports whether the problem was rejected.
	Blocked bool

	// BlockReason explains the rejection in operator-readable terms.
	// Empty when Blocked is false.
	BlockReason string

	// Findings lists what the gate observed, blocked or not.
	// Useful for audit logging and capacity planning.
	Findings []GateFinding
}

// GateFinding describes a single observation made by a gate.
type GateFinding struct {
	// Type categorizes the observation.
	// Common types: "action_count", "fluent_count", "requirement"
	Type string

	// Detail describes the observation. Format is gate-specific
	// (e.g., "120000 > 50000").
	Detail string
}

// ProblemGate inspects a planning problem before any search work is
// scheduled.
//
// Implementations must be safe for concurrent use by multiple goroutines.
//
// # Purpose
//
// A hosted solve service runs untrusted problems. Grounding already
// happened by the time the gate runs, but random walks have not: a gate
// lets a deployment refuse problems that would monopolize workers
// (enormous action sets, pathological fluent counts) before budget is
// spent on them.
//
// # Open Source Behavior
//
// The default NopProblemGate admits every problem. A local planner run
// by its own user needs no admission control.
//
// # Blocking Protocol
//
// To block, return a GateResult with Blocked=true and BlockReason set.
// The caller should then:
//  1. Log the block via AuditLogger with outcome "blocked"
//  2. Return ErrProblemBlocked to the client
//  3. NOT schedule any walks
type ProblemGate interface {
	// Inspect examines the problem and decides admission.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - p: The ground problem to inspect
	//
	// Returns:
	//   - *GateResult: The decision and supporting findings
	//   - error: Non-nil only for gate failures (not for blocks)
	Inspect(ctx context.Context, p *pddl.Problem) (*GateResult, error)
}

// NopProblemGate is the default gate for open source builds.
// It admits every problem without inspection.
//
// Thread-safe: This implementation has no mutable state.
type NopProblemGate struct{}

// Inspect admits the problem unconditionally.
func (g *NopProblemGate) Inspect(ctx context.Context, p *pddl.Problem) (*GateResult, error) {
	return &GateResult{}, nil
}

// LimitGate blocks problems whose ground size exceeds fixed limits.
//
// A zero limit means unlimited for that dimension, so the zero value
// admits everything.
//
// Thread-safe: Fields are read-only after construction.
//
// Example:
//
//	gate := &LimitGate{MaxActions: 50000, MaxFluents: 20000}
//	result, _ := gate.Inspect(ctx, problem)
//	if result.Blocked {
//	    return extensions.ErrProblemBlocked
//	}
type LimitGate struct {
	// MaxActions caps the number of ground actions. Zero = unlimited.
	MaxActions int

	// MaxFluents caps the number of ground fluents. Zero = unlimited.
	MaxFluents int
}

// Inspect blocks the problem if either limit is exceeded. When both are
// exceeded the action count sets BlockReason and both appear in Findings.
func (g *LimitGate) Inspect(ctx context.Context, p *pddl.Problem) (*GateResult, error) {
	result := &GateResult{}

	if g.MaxActions > 0 && len(p.Actions) > g.MaxActions {
		result.Blocked = true
		result.BlockReason = fmt.Sprintf("problem has %d ground actions, limit is %d",
			len(p.Actions), g.MaxActions)
		result.Findings = append(result.Findings, GateFinding{
			Type:   "action_count",
			Detail: fmt.Sprintf("%d > %d", len(p.Actions), g.MaxActions),
		})
	}

	if g.MaxFluents > 0 && p.Fluents.Len() > g.MaxFluents {
		if !result.Blocked {
			result.Blocked = true
			result.BlockReason = fmt.Sprintf("problem has %d ground fluents, limit is %d",
				p.Fluents.Len(), g.MaxFluents)
		}
		result.Findings = append(result.Findings, GateFinding{
			Type:   "fluent_count",
			Detail: fmt.Sprintf("%d > %d", p.Fluents.Len(), g.MaxFluents),
		})
	}

	return result, nil
}

// Compile-time interface compliance checks.
var (
	_ ProblemGate = (*NopProblemGate)(nil)
	_ ProblemGate = (*LimitGate)(nil)
)
