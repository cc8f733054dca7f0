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
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianPlan/mrw"
	"github.com/AleutianAI/AleutianPlan/pddl"
	"github.com/AleutianAI/AleutianPlan/pkg/extensions"
	"github.com/AleutianAI/AleutianPlan/store"
)

// mockAuditLogger records events in memory for assertions.
type mockAuditLogger struct {
	mu      sync.Mutex
	events  []extensions.AuditEvent
	flushed bool
}

func (l *mockAuditLogger) Log(ctx context.Context, event extensions.AuditEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

func (l *mockAuditLogger) Query(ctx context.Context, filter extensions.AuditFilter) ([]extensions.AuditEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]extensions.AuditEvent{}, l.events...), nil
}

func (l *mockAuditLogger) Flush(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.flushed = true
	return nil
}

func (l *mockAuditLogger) eventTypes() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	types := make([]string, len(l.events))
	for i, e := range l.events {
		types[i] = e.EventType
	}
	return types
}

// denyAuthzProvider rejects every authorization request.
type denyAuthzProvider struct{}

func (denyAuthzProvider) Authorize(ctx context.Context, req extensions.AuthzRequest) error {
	return extensions.ErrUnauthorized
}

func int64Ptr(v int64) *int64 { return &v }
func intPtr(v int) *int       { return &v }

func twoRoomsProblem(t *testing.T) *pddl.Problem {
	t.Helper()
	b := pddl.NewProblemBuilder("two-rooms").Domain("rooms")
	b.Init("at-a").Goal([]string{"at-b"}, nil)
	b.Action("move-a-b").Pre([]string{"at-a"}, nil).Effect([]string{"at-b"}, []string{"at-a"})
	b.Action("move-b-a").Pre([]string{"at-b"}, nil).Effect([]string{"at-a"}, []string{"at-b"})
	p, err := b.Build()
	require.NoError(t, err)
	return p
}

// corridorProblem is a four-room corridor a-b-c-d. Walks branch at every
// interior room, so the action sequence depends on the seed.
func corridorProblem(t *testing.T) *pddl.Problem {
	t.Helper()
	b := pddl.NewProblemBuilder("corridor").Domain("rooms")
	b.Init("at-a").Goal([]string{"at-d"}, nil)
	rooms := []string{"a", "b", "c", "d"}
	for i := 0; i < len(rooms)-1; i++ {
		from, to := rooms[i], rooms[i+1]
		b.Action("move-"+from+"-"+to).
			Pre([]string{"at-" + from}, nil).
			Effect([]string{"at-" + to}, []string{"at-" + from})
		b.Action("move-"+to+"-"+from).
			Pre([]string{"at-" + to}, nil).
			Effect([]string{"at-" + from}, []string{"at-" + to})
	}
	p, err := b.Build()
	require.NoError(t, err)
	return p
}

func TestDefaultServiceConfig(t *testing.T) {
	cfg := DefaultServiceConfig()

	assert.Equal(t, mrw.DefaultSearchConfig(), cfg.Search)
	assert.Equal(t, 60*time.Second, cfg.SolveTimeout)
	assert.Equal(t, 100, cfg.ListLimit)
}

func TestService_Solve_NilProblem(t *testing.T) {
	svc := NewService(DefaultServiceConfig())

	_, err := svc.Solve(context.Background(), nil, nil, SolveOptions{})
	assert.ErrorIs(t, err, mrw.ErrNilProblem)
}

func TestService_Solve_SeedReproducible(t *testing.T) {
	svc := NewService(DefaultServiceConfig())
	problem := corridorProblem(t)
	opts := SolveOptions{Walks: 500, MaxWalkLength: 30, Seed: int64Ptr(42)}

	first, err := svc.Solve(context.Background(), nil, problem, opts)
	require.NoError(t, err)
	require.True(t, first.Found)

	second, err := svc.Solve(context.Background(), nil, problem, opts)
	require.NoError(t, err)
	require.True(t, second.Found)

	assert.Equal(t, first.Plan, second.Plan)
	assert.Equal(t, first.PlanLength, second.PlanLength)
	assert.Equal(t, int64(42), first.Stats.Seed)
	assert.Equal(t, first.Stats.WalksStarted, second.Stats.WalksStarted)
}

func TestService_Solve_AuditTrail(t *testing.T) {
	audit := &mockAuditLogger{}
	svc := NewService(DefaultServiceConfig()).
		WithExtensions(extensions.DefaultOptions().WithAudit(audit))

	user := &extensions.AuthInfo{UserID: "u-test"}
	resp, err := svc.Solve(context.Background(), user, twoRoomsProblem(t), SolveOptions{Walks: 50})
	require.NoError(t, err)
	require.True(t, resp.Found)

	require.Equal(t, []string{"solve.submit", "solve.complete"}, audit.eventTypes())

	submit := audit.events[0]
	assert.Equal(t, "u-test", submit.UserID)
	assert.Equal(t, "problem", submit.ResourceType)
	assert.Equal(t, "two-rooms", submit.ResourceID)
	assert.False(t, submit.Timestamp.IsZero())

	complete := audit.events[1]
	assert.Equal(t, "success", complete.Outcome)
	assert.Equal(t, true, complete.Metadata["found"])
	assert.Equal(t, 1, complete.Metadata["plan_length"])
}

func TestService_Solve_GateBlocked(t *testing.T) {
	audit := &mockAuditLogger{}
	opts := extensions.DefaultOptions().
		WithAudit(audit).
		WithGate(&extensions.LimitGate{MaxActions: 1})
	svc := NewService(DefaultServiceConfig()).WithExtensions(opts)

	_, err := svc.Solve(context.Background(), nil, twoRoomsProblem(t), SolveOptions{})
	require.ErrorIs(t, err, extensions.ErrProblemBlocked)
	assert.Contains(t, err.Error(), "limit is 1")

	require.Equal(t, []string{"solve.submit", "solve.rejected"}, audit.eventTypes())
	assert.Equal(t, "blocked", audit.events[1].Outcome)
	assert.Contains(t, audit.events[1].Metadata["reason"], "ground actions")
}

func TestService_Solve_AuthzDenied(t *testing.T) {
	audit := &mockAuditLogger{}
	opts := extensions.DefaultOptions().
		WithAudit(audit).
		WithAuthz(denyAuthzProvider{})
	svc := NewService(DefaultServiceConfig()).WithExtensions(opts)

	_, err := svc.Solve(context.Background(), nil, twoRoomsProblem(t), SolveOptions{})
	require.ErrorIs(t, err, extensions.ErrUnauthorized)

	// Denied before any work was submitted
	assert.Empty(t, audit.eventTypes())
}

func TestService_Solve_CacheHitAudited(t *testing.T) {
	cache, err := store.OpenInMemory()
	require.NoError(t, err)
	audit := &mockAuditLogger{}
	svc := NewService(DefaultServiceConfig()).
		WithCache(cache).
		WithExtensions(extensions.DefaultOptions().WithAudit(audit))
	defer svc.Close(context.Background())

	problem := twoRoomsProblem(t)

	first, err := svc.Solve(context.Background(), nil, problem, SolveOptions{Walks: 50})
	require.NoError(t, err)
	require.True(t, first.Found)
	assert.False(t, first.Cached)

	second, err := svc.Solve(context.Background(), nil, problem, SolveOptions{Walks: 50})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Nil(t, second.Stats)
	assert.Equal(t, first.Plan, second.Plan)
	assert.NotEqual(t, first.RunID, second.RunID)

	types := audit.eventTypes()
	require.Len(t, types, 4)
	assert.Equal(t, "cache.hit", types[3])
	assert.Equal(t, first.Fingerprint, audit.events[3].ResourceID)
}

func TestService_Solve_InvalidOverride(t *testing.T) {
	svc := NewService(DefaultServiceConfig())

	_, err := svc.Solve(context.Background(), nil, twoRoomsProblem(t), SolveOptions{
		TargetPlanLength: intPtr(-1),
	})
	assert.ErrorIs(t, err, mrw.ErrInvalidConfig)
}

func TestService_Validate(t *testing.T) {
	svc := NewService(DefaultServiceConfig())
	problem := twoRoomsProblem(t)

	_, err := svc.Validate(context.Background(), nil, nil)
	assert.ErrorIs(t, err, mrw.ErrNilProblem)

	resp, err := svc.Validate(context.Background(), problem, []string{"move-a-b"})
	require.NoError(t, err)
	assert.True(t, resp.Valid)
	assert.Equal(t, 1, resp.PlanLength)

	resp, err = svc.Validate(context.Background(), problem, []string{"warp-b"})
	require.NoError(t, err)
	assert.False(t, resp.Valid)
	assert.Contains(t, resp.Reason, `unknown action "warp-b"`)
}

func TestService_PlanOps_NoCache(t *testing.T) {
	svc := NewService(DefaultServiceConfig())
	ctx := context.Background()

	_, err := svc.ListPlans(ctx, 10)
	assert.ErrorIs(t, err, ErrCacheDisabled)

	_, err = svc.GetPlan(ctx, nil, "abc123")
	assert.ErrorIs(t, err, ErrCacheDisabled)

	err = svc.DeletePlan(ctx, nil, "abc123")
	assert.ErrorIs(t, err, ErrCacheDisabled)

	assert.False(t, svc.CacheAvailable())
	assert.Equal(t, 0, svc.CachedPlanCount(ctx))
}

func TestService_ListPlans_LimitClamped(t *testing.T) {
	cache, err := store.OpenInMemory()
	require.NoError(t, err)

	ctx := context.Background()
	twoRooms := twoRoomsProblem(t)
	corridor := corridorProblem(t)

	move := twoRooms.ActionByName("move-a-b")
	require.NotNil(t, move)
	require.NoError(t, cache.Put(ctx, twoRooms, pddl.Plan{Steps: []*pddl.Action{move}}, 1))

	steps := []*pddl.Action{
		corridor.ActionByName("move-a-b"),
		corridor.ActionByName("move-b-c"),
		corridor.ActionByName("move-c-d"),
	}
	require.NoError(t, cache.Put(ctx, corridor, pddl.Plan{Steps: steps}, 2))

	cfg := DefaultServiceConfig()
	cfg.ListLimit = 1
	svc := NewService(cfg).WithCache(cache)
	defer svc.Close(ctx)

	assert.Equal(t, 2, svc.CachedPlanCount(ctx))

	plans, err := svc.ListPlans(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, plans, 1)

	// Requests above the configured cap are clamped, not honored
	plans, err = svc.ListPlans(ctx, 99)
	require.NoError(t, err)
	assert.Len(t, plans, 1)
}

func TestService_GetPlan(t *testing.T) {
	cache, err := store.OpenInMemory()
	require.NoError(t, err)

	ctx := context.Background()
	problem := twoRoomsProblem(t)
	move := problem.ActionByName("move-a-b")
	require.NoError(t, cache.Put(ctx, problem, pddl.Plan{Steps: []*pddl.Action{move}}, 9))

	audit := &mockAuditLogger{}
	svc := NewService(DefaultServiceConfig()).
		WithCache(cache).
		WithExtensions(extensions.DefaultOptions().WithAudit(audit))
	defer svc.Close(ctx)

	resp, err := svc.GetPlan(ctx, nil, problem.Fingerprint())
	require.NoError(t, err)
	assert.Equal(t, "two-rooms", resp.Problem)
	assert.Equal(t, []string{"move-a-b"}, resp.Plan)
	assert.Equal(t, int64(9), resp.Seed)
	assert.Equal(t, []string{"plan.read"}, audit.eventTypes())

	_, err = svc.GetPlan(ctx, nil, "no-such-digest")
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestService_GetPlan_AuthzDenied(t *testing.T) {
	cache, err := store.OpenInMemory()
	require.NoError(t, err)
	svc := NewService(DefaultServiceConfig()).
		WithCache(cache).
		WithExtensions(extensions.DefaultOptions().WithAuthz(denyAuthzProvider{}))
	defer svc.Close(context.Background())

	_, err = svc.GetPlan(context.Background(), nil, "abc123")
	assert.ErrorIs(t, err, extensions.ErrUnauthorized)
}

func TestService_DeletePlan(t *testing.T) {
	cache, err := store.OpenInMemory()
	require.NoError(t, err)

	ctx := context.Background()
	problem := twoRoomsProblem(t)
	move := problem.ActionByName("move-a-b")
	require.NoError(t, cache.Put(ctx, problem, pddl.Plan{Steps: []*pddl.Action{move}}, 3))

	audit := &mockAuditLogger{}
	svc := NewService(DefaultServiceConfig()).
		WithCache(cache).
		WithExtensions(extensions.DefaultOptions().WithAudit(audit))
	defer svc.Close(ctx)

	fp := problem.Fingerprint()
	require.NoError(t, svc.DeletePlan(ctx, nil, fp))
	assert.Equal(t, []string{"cache.evict"}, audit.eventTypes())

	err = svc.DeletePlan(ctx, nil, fp)
	assert.ErrorIs(t, err, ErrPlanNotFound)

	_, err = svc.GetPlan(ctx, nil, fp)
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestService_Close(t *testing.T) {
	cache, err := store.OpenInMemory()
	require.NoError(t, err)
	audit := &mockAuditLogger{}
	svc := NewService(DefaultServiceConfig()).
		WithCache(cache).
		WithExtensions(extensions.DefaultOptions().WithAudit(audit))

	require.NoError(t, svc.Close(context.Background()))
	assert.True(t, audit.flushed)
}
