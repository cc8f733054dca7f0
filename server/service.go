// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server provides the AleutianPlan HTTP service for plan search.
//
// The service exposes endpoints for:
//   - Solving ground planning problems with the random-walk engine
//   - Validating externally produced plans against a problem
//   - Listing, fetching, and deleting cached plans
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianPlan/mrw"
	"github.com/AleutianAI/AleutianPlan/pddl"
	"github.com/AleutianAI/AleutianPlan/pkg/extensions"
	"github.com/AleutianAI/AleutianPlan/store"
)

// ServiceConfig configures the planning service.
type ServiceConfig struct {
	// Search is the default engine configuration. Per-request overrides
	// apply on top of it.
	Search mrw.SearchConfig

	// SolveTimeout is the per-request ceiling for solve operations,
	// enforced on top of any request time limit. Zero means no ceiling.
	// Default: 60s
	SolveTimeout time.Duration

	// ListLimit caps the entries returned by a single list request.
	// Default: 100
	ListLimit int
}

// DefaultServiceConfig returns sensible defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Search:       mrw.DefaultSearchConfig(),
		SolveTimeout: 60 * time.Second,
		ListLimit:    100,
	}
}

// Service is the planning service.
//
// Thread Safety:
//
//	Service is safe for concurrent use. An engine is created per solve,
//	and the plan cache is internally synchronized.
type Service struct {
	config  ServiceConfig
	cache   *store.PlanCache
	ext     extensions.ServiceOptions
	logger  *slog.Logger
	metrics *Metrics
}

// NewService creates a new planning service.
//
// Description:
//
//	Creates a service with the given configuration, no plan cache, nop
//	extension points, and the default logger. Use the With* methods to
//	attach these before serving requests.
//
// Inputs:
//
//	config - Service configuration
//
// Outputs:
//
//	*Service - The new service instance
func NewService(config ServiceConfig) *Service {
	return &Service{
		config: config,
		ext:    extensions.DefaultOptions(),
		logger: slog.Default(),
	}
}

// WithCache attaches a plan cache. The service takes ownership and
// closes it on Close.
func (s *Service) WithCache(cache *store.PlanCache) *Service {
	s.cache = cache
	return s
}

// WithExtensions sets the deployment extension points.
func (s *Service) WithExtensions(opts extensions.ServiceOptions) *Service {
	s.ext = opts
	return s
}

// WithLogger sets the service logger. Nil is ignored.
func (s *Service) WithLogger(logger *slog.Logger) *Service {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithMetrics attaches Prometheus metrics recording.
func (s *Service) WithMetrics(m *Metrics) *Service {
	s.metrics = m
	return s
}

// SolveOptions carries per-request overrides of the configured engine
// defaults. Zero and nil fields leave the default untouched.
type SolveOptions struct {
	Walks             int
	MaxWalkLength     int
	TargetPlanLength  *int
	DeadlockAvoidance *bool
	HelpfulActions    *bool
	Seed              *int64
	TimeLimit         time.Duration
	Parallel          *bool
	NoCache           bool
}

// searchConfig merges request overrides into the configured defaults.
func (s *Service) searchConfig(opts SolveOptions) mrw.SearchConfig {
	cfg := s.config.Search
	if opts.Walks > 0 {
		cfg.Budget.Walks = opts.Walks
	}
	if opts.MaxWalkLength > 0 {
		cfg.Walk.MaxLength = opts.MaxWalkLength
	}
	if opts.TargetPlanLength != nil {
		cfg.Walk.TargetPlanLength = *opts.TargetPlanLength
	}
	if opts.DeadlockAvoidance != nil {
		cfg.Walk.DeadlockAvoidance = *opts.DeadlockAvoidance
	}
	if opts.HelpfulActions != nil {
		cfg.Walk.HelpfulActions = *opts.HelpfulActions
	}
	if opts.Seed != nil {
		cfg.Walk.Seed = *opts.Seed
	}
	if opts.TimeLimit > 0 {
		cfg.Budget.TimeLimit = opts.TimeLimit
	}
	if opts.Parallel != nil {
		cfg.Parallel.Enabled = *opts.Parallel
	}
	return cfg
}

// Solve runs the engine on the problem, consulting the plan cache first.
//
// Description:
//
//	Authorizes the request, inspects the problem through the gate, and
//	serves a cached plan when one exists for the problem's fingerprint.
//	Otherwise it builds an engine from the merged configuration, runs
//	the search, and caches any plan found.
//
// Inputs:
//
//	ctx - Request context.
//	user - Authenticated caller, nil when auth is not configured.
//	problem - Grounded problem to solve.
//	opts - Per-request configuration overrides.
//
// Outputs:
//
//	*SolveResponse - Outcome with plan and statistics. A search that
//	exhausts its budget without a plan is a success with Found=false.
//	error - Authorization, gate, configuration, or engine error.
func (s *Service) Solve(ctx context.Context, user *extensions.AuthInfo, problem *pddl.Problem, opts SolveOptions) (*SolveResponse, error) {
	if problem == nil {
		return nil, mrw.ErrNilProblem
	}

	userID := userIDOf(user)

	if err := s.authorize(ctx, user, "solve", "problem", problem.Name); err != nil {
		return nil, err
	}

	s.audit(ctx, extensions.AuditEvent{
		EventType:    "solve.submit",
		UserID:       userID,
		Action:       "solve",
		ResourceType: "problem",
		ResourceID:   problem.Name,
		Outcome:      "success",
	})

	gateRes, err := s.ext.ProblemGate.Inspect(ctx, problem)
	if err != nil {
		return nil, fmt.Errorf("problem gate: %w", err)
	}
	if gateRes.Blocked {
		s.audit(ctx, extensions.AuditEvent{
			EventType:    "solve.rejected",
			UserID:       userID,
			Action:       "solve",
			ResourceType: "problem",
			ResourceID:   problem.Name,
			Outcome:      "blocked",
			Metadata:     map[string]any{"reason": gateRes.BlockReason},
		})
		return nil, fmt.Errorf("%s: %w", gateRes.BlockReason, extensions.ErrProblemBlocked)
	}

	fingerprint := problem.Fingerprint()

	if !opts.NoCache && s.cache != nil {
		if resp, ok := s.cachedResponse(ctx, problem, fingerprint, userID); ok {
			return resp, nil
		}
	}

	cfg := s.searchConfig(opts)

	engineOpts := []mrw.EngineOption{mrw.WithLogger(s.logger)}
	if opts.Seed != nil {
		engineOpts = append(engineOpts, mrw.WithSeed(*opts.Seed))
	}
	engine, err := mrw.NewEngine(cfg, engineOpts...)
	if err != nil {
		return nil, err
	}

	solveCtx := ctx
	if s.config.SolveTimeout > 0 {
		var cancel context.CancelFunc
		solveCtx, cancel = context.WithTimeout(ctx, s.config.SolveTimeout)
		defer cancel()
	}

	var result *mrw.SolveResult
	if cfg.Parallel.Enabled {
		result, err = mrw.NewParallelEngine(engine).Solve(solveCtx, problem)
	} else {
		result, err = engine.Solve(solveCtx, problem)
	}
	if err != nil {
		elapsed := time.Duration(0)
		if result != nil {
			elapsed = result.Stats.Elapsed
		}
		s.recordSolve(SolveStatusError, SolveSourceEngine, elapsed, result)
		s.audit(ctx, extensions.AuditEvent{
			EventType:    "solve.complete",
			UserID:       userID,
			Action:       "solve",
			ResourceType: "problem",
			ResourceID:   problem.Name,
			Outcome:      "error",
			Metadata:     map[string]any{"error": err.Error()},
		})
		return nil, err
	}

	status := SolveStatusExhausted
	if result.Found {
		status = SolveStatusFound
	}
	s.recordSolve(status, SolveSourceEngine, result.Stats.Elapsed, result)

	if result.Found && !opts.NoCache && s.cache != nil {
		if err := s.cache.Put(ctx, problem, result.Plan, result.Stats.Seed); err != nil {
			s.logger.Warn("Failed to cache plan",
				"problem", problem.Name,
				"fingerprint", fingerprint,
				"error", err)
		}
	}

	s.audit(ctx, extensions.AuditEvent{
		EventType:    "solve.complete",
		UserID:       userID,
		Action:       "solve",
		ResourceType: "problem",
		ResourceID:   problem.Name,
		Outcome:      "success",
		Metadata: map[string]any{
			"found":       result.Found,
			"plan_length": result.Stats.BestLength,
			"walks":       result.Stats.WalksStarted,
		},
	})

	return &SolveResponse{
		RunID:       result.RunID,
		Problem:     problem.Name,
		Fingerprint: fingerprint,
		Found:       result.Found,
		Plan:        result.Plan.Names(),
		PlanLength:  result.Stats.BestLength,
		Stats:       &result.Stats,
	}, nil
}

// cachedResponse looks the problem up in the plan cache. Lookup errors
// and undecodable entries degrade to a miss.
func (s *Service) cachedResponse(ctx context.Context, problem *pddl.Problem, fingerprint, userID string) (*SolveResponse, bool) {
	start := time.Now()

	cached, found, err := s.cache.Get(ctx, problem)
	if err != nil {
		s.logger.Warn("Plan cache lookup failed",
			"problem", problem.Name,
			"error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	if _, err := cached.ToPlan(problem); err != nil {
		s.logger.Warn("Ignoring unusable cache entry",
			"fingerprint", fingerprint,
			"error", err)
		return nil, false
	}

	s.recordSolve(SolveStatusFound, SolveSourceCache, time.Since(start), nil)
	s.audit(ctx, extensions.AuditEvent{
		EventType:    "cache.hit",
		UserID:       userID,
		Action:       "solve",
		ResourceType: "plan",
		ResourceID:   fingerprint,
		Outcome:      "success",
	})

	s.logger.Info("Serving cached plan",
		"problem", problem.Name,
		"fingerprint", fingerprint,
		"plan_length", cached.Length)

	return &SolveResponse{
		RunID:       uuid.NewString(),
		Problem:     cached.Problem,
		Fingerprint: fingerprint,
		Found:       true,
		Plan:        append([]string(nil), cached.Actions...),
		PlanLength:  cached.Length,
		Cached:      true,
	}, true
}

// Validate replays a plan against a problem and reports whether it
// reaches the goal.
//
// Description:
//
//	Resolves the action names against the problem, then replays the
//	sequence from the initial state checking preconditions at each
//	step and goal satisfaction at the end. Validation failures are
//	reported in the response, not as errors.
//
// Inputs:
//
//	ctx - Request context.
//	problem - Grounded problem the plan claims to solve.
//	actionNames - The plan as a sequence of action names.
//
// Outputs:
//
//	*ValidateResponse - Verdict with a reason on failure.
//	error - Non-nil only for nil problems or cancelled contexts.
func (s *Service) Validate(ctx context.Context, problem *pddl.Problem, actionNames []string) (*ValidateResponse, error) {
	if problem == nil {
		return nil, mrw.ErrNilProblem
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	steps := make([]*pddl.Action, 0, len(actionNames))
	for _, name := range actionNames {
		action := problem.ActionByName(name)
		if action == nil {
			return &ValidateResponse{
				Valid:      false,
				PlanLength: len(actionNames),
				Reason:     fmt.Sprintf("unknown action %q", name),
			}, nil
		}
		steps = append(steps, action)
	}

	plan := pddl.Plan{Steps: steps}
	if err := plan.Validate(problem); err != nil {
		return &ValidateResponse{
			Valid:      false,
			PlanLength: plan.Length(),
			Reason:     err.Error(),
		}, nil
	}

	return &ValidateResponse{Valid: true, PlanLength: plan.Length()}, nil
}

// ListPlans returns summaries of cached plans.
//
// Inputs:
//
//	ctx - Request context.
//	limit - Maximum entries; zero or out-of-range values fall back to
//	the configured list limit.
//
// Outputs:
//
//	[]ProblemSummary - One entry per cached problem, empty when none.
//	error - ErrCacheDisabled without a cache, otherwise scan errors.
func (s *Service) ListPlans(ctx context.Context, limit int) ([]ProblemSummary, error) {
	if s.cache == nil {
		return nil, ErrCacheDisabled
	}
	if limit <= 0 || limit > s.config.ListLimit {
		limit = s.config.ListLimit
	}

	plans, err := s.cache.List(ctx, limit)
	if err != nil {
		return nil, err
	}

	summaries := make([]ProblemSummary, 0, len(plans))
	for _, p := range plans {
		summaries = append(summaries, ProblemSummary{
			Problem:     p.Problem,
			Fingerprint: p.Fingerprint,
			PlanLength:  p.Length,
			Seed:        p.Seed,
			CreatedAt:   p.CreatedAt,
		})
	}
	return summaries, nil
}

// GetPlan returns the cached plan for a fingerprint.
//
// Outputs:
//
//	*PlanResponse - The cached entry.
//	error - ErrCacheDisabled, ErrPlanNotFound, authorization or
//	lookup errors.
func (s *Service) GetPlan(ctx context.Context, user *extensions.AuthInfo, fingerprint string) (*PlanResponse, error) {
	if s.cache == nil {
		return nil, ErrCacheDisabled
	}
	if err := s.authorize(ctx, user, "read", "plan", fingerprint); err != nil {
		return nil, err
	}

	cached, found, err := s.cache.GetByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, fingerprint)
	}

	s.audit(ctx, extensions.AuditEvent{
		EventType:    "plan.read",
		UserID:       userIDOf(user),
		Action:       "read",
		ResourceType: "plan",
		ResourceID:   fingerprint,
		Outcome:      "success",
	})

	return &PlanResponse{
		Problem:     cached.Problem,
		Fingerprint: cached.Fingerprint,
		Plan:        append([]string(nil), cached.Actions...),
		PlanLength:  cached.Length,
		Seed:        cached.Seed,
		CreatedAt:   cached.CreatedAt,
	}, nil
}

// DeletePlan removes a cached plan.
//
// Outputs:
//
//	error - ErrCacheDisabled, ErrPlanNotFound, authorization or
//	delete errors. Nil on success.
func (s *Service) DeletePlan(ctx context.Context, user *extensions.AuthInfo, fingerprint string) error {
	if s.cache == nil {
		return ErrCacheDisabled
	}
	if err := s.authorize(ctx, user, "delete", "plan", fingerprint); err != nil {
		return err
	}

	_, found, err := s.cache.GetByFingerprint(ctx, fingerprint)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrPlanNotFound, fingerprint)
	}

	if err := s.cache.Delete(ctx, fingerprint); err != nil {
		return err
	}

	s.audit(ctx, extensions.AuditEvent{
		EventType:    "cache.evict",
		UserID:       userIDOf(user),
		Action:       "delete",
		ResourceType: "plan",
		ResourceID:   fingerprint,
		Outcome:      "success",
	})
	return nil
}

// CacheAvailable reports whether a plan cache is attached.
func (s *Service) CacheAvailable() bool {
	return s.cache != nil
}

// CachedPlanCount returns the number of cached plans, zero without a
// cache or on scan errors.
func (s *Service) CachedPlanCount(ctx context.Context) int {
	if s.cache == nil {
		return 0
	}
	n, err := s.cache.Count(ctx)
	if err != nil {
		s.logger.Warn("Plan cache count failed", "error", err)
		return 0
	}
	return n
}

// Close flushes the audit logger and closes the plan cache if one was
// attached.
func (s *Service) Close(ctx context.Context) error {
	var errs []error
	if err := s.ext.AuditLogger.Flush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flush audit logger: %w", err))
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close plan cache: %w", err))
		}
	}
	return errors.Join(errs...)
}

// authorize checks the caller's permission through the authz provider.
func (s *Service) authorize(ctx context.Context, user *extensions.AuthInfo, action, resourceType, resourceID string) error {
	return s.ext.AuthzProvider.Authorize(ctx, extensions.AuthzRequest{
		User:         user,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
	})
}

// audit records an event, never failing the request on audit errors.
func (s *Service) audit(ctx context.Context, event extensions.AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := s.ext.AuditLogger.Log(ctx, event); err != nil {
		s.logger.Warn("Audit log failed",
			"event_type", event.EventType,
			"error", err)
	}
}

// recordSolve feeds the metrics sink when one is attached.
func (s *Service) recordSolve(status SolveStatus, source SolveSource, elapsed time.Duration, result *mrw.SolveResult) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordSolve(status, source, elapsed)
	if result != nil {
		s.metrics.RecordWalks(result.Stats.WalksStarted)
		if result.Found {
			s.metrics.RecordPlanLength(result.Stats.BestLength)
		}
	}
}

func userIDOf(user *extensions.AuthInfo) string {
	if user == nil {
		return ""
	}
	return user.UserID
}
