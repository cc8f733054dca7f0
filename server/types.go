// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"time"

	"github.com/AleutianAI/AleutianPlan/mrw"
	"github.com/AleutianAI/AleutianPlan/pddl"
)

// SolveRequest is the request body for POST /v1/solve.
type SolveRequest struct {
	// Problem is the ground problem to solve. Required.
	Problem pddl.YAMLProblem `json:"problem" binding:"required"`

	// Walks overrides the configured walk budget. Zero keeps the default.
	Walks int `json:"walks" binding:"omitempty,gt=0"`

	// MaxWalkLength overrides the per-walk step cap. Zero keeps the default.
	MaxWalkLength int `json:"max_walk_length" binding:"omitempty,gt=0"`

	// TargetPlanLength overrides the early-stop plan length. Explicit
	// zero disables early stopping for all but empty plans.
	TargetPlanLength *int `json:"target_plan_length" binding:"omitempty,gte=0"`

	// DeadlockAvoidance toggles visited-successor filtering.
	DeadlockAvoidance *bool `json:"deadlock_avoidance"`

	// HelpfulActions toggles goal-directed action biasing.
	HelpfulActions *bool `json:"helpful_actions"`

	// Seed fixes the RNG for a reproducible solve.
	Seed *int64 `json:"seed"`

	// TimeLimitMs bounds the search in milliseconds. Zero keeps the default.
	TimeLimitMs int64 `json:"time_limit_ms" binding:"omitempty,gt=0"`

	// Parallel toggles the worker-pool engine for this solve.
	Parallel *bool `json:"parallel"`

	// NoCache skips the plan cache for both lookup and store.
	NoCache bool `json:"no_cache"`
}

// solveOptions converts the request overrides into service solve options.
func (r *SolveRequest) solveOptions() SolveOptions {
	return SolveOptions{
		Walks:             r.Walks,
		MaxWalkLength:     r.MaxWalkLength,
		TargetPlanLength:  r.TargetPlanLength,
		DeadlockAvoidance: r.DeadlockAvoidance,
		HelpfulActions:    r.HelpfulActions,
		Seed:              r.Seed,
		TimeLimit:         time.Duration(r.TimeLimitMs) * time.Millisecond,
		Parallel:          r.Parallel,
		NoCache:           r.NoCache,
	}
}

// SolveResponse is the response for POST /v1/solve.
type SolveResponse struct {
	// RunID identifies this solve in logs and traces. Cache hits get a
	// fresh ID since no engine run took place.
	RunID string `json:"run_id"`

	// Problem is the problem name.
	Problem string `json:"problem"`

	// Fingerprint is the semantic digest of the problem.
	Fingerprint string `json:"fingerprint"`

	// Found reports whether a plan was found.
	Found bool `json:"found"`

	// Plan is the action sequence in execution order. Empty when Found
	// is false.
	Plan []string `json:"plan"`

	// PlanLength is the number of actions in the plan, -1 when none found.
	PlanLength int `json:"plan_length"`

	// Cached is true when the plan was served from the plan cache.
	Cached bool `json:"cached"`

	// Stats aggregates search effort. Nil for cache hits.
	Stats *mrw.SearchStats `json:"stats,omitempty"`
}

// ValidateRequest is the request body for POST /v1/validate.
type ValidateRequest struct {
	// Problem is the ground problem the plan claims to solve. Required.
	Problem pddl.YAMLProblem `json:"problem" binding:"required"`

	// Plan is the action name sequence. An empty plan is valid only when
	// the initial state already satisfies the goal.
	Plan []string `json:"plan"`
}

// ValidateResponse is the response for POST /v1/validate.
type ValidateResponse struct {
	// Valid is true when the plan replays from init to a goal state.
	Valid bool `json:"valid"`

	// PlanLength is the number of actions in the submitted plan.
	PlanLength int `json:"plan_length"`

	// Reason explains the failure when Valid is false.
	Reason string `json:"reason,omitempty"`
}

// ProblemSummary describes one cached plan entry in list responses.
type ProblemSummary struct {
	// Problem is the problem name.
	Problem string `json:"problem"`

	// Fingerprint is the semantic digest keying the cache entry.
	Fingerprint string `json:"fingerprint"`

	// PlanLength is the cached plan's action count.
	PlanLength int `json:"plan_length"`

	// Seed is the seed of the solve that produced the plan.
	Seed int64 `json:"seed"`

	// CreatedAt is when the entry was stored.
	CreatedAt time.Time `json:"created_at"`
}

// ProblemsResponse is the response for GET /v1/problems.
type ProblemsResponse struct {
	// Problems lists cached entries, one per solved problem.
	Problems []ProblemSummary `json:"problems"`

	// Count is the number of entries returned.
	Count int `json:"count"`
}

// PlanResponse is the response for GET /v1/problems/:fingerprint.
type PlanResponse struct {
	// Problem is the problem name.
	Problem string `json:"problem"`

	// Fingerprint is the semantic digest keying the cache entry.
	Fingerprint string `json:"fingerprint"`

	// Plan is the cached action sequence.
	Plan []string `json:"plan"`

	// PlanLength is the number of actions in the plan.
	PlanLength int `json:"plan_length"`

	// Seed is the seed of the solve that produced the plan.
	Seed int64 `json:"seed"`

	// CreatedAt is when the entry was stored.
	CreatedAt time.Time `json:"created_at"`
}

// HealthResponse is the response for GET /v1/health.
type HealthResponse struct {
	// Status is "healthy" or "degraded".
	Status string `json:"status"`

	// Version is the service version.
	Version string `json:"version"`
}

// ReadyResponse is the response for GET /v1/ready.
type ReadyResponse struct {
	// Ready is true if the service is ready to accept requests.
	Ready bool `json:"ready"`

	// CacheOK is true if a plan cache is attached.
	CacheOK bool `json:"cache_ok"`

	// CachedPlans is the number of cached plans, zero without a cache.
	CachedPlans int `json:"cached_plans"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code (optional).
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}
