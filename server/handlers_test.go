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
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianPlan/pddl"
	"github.com/AleutianAI/AleutianPlan/pkg/extensions"
	"github.com/AleutianAI/AleutianPlan/store"
)

func init() {
	// Set Gin to test mode to reduce noise
	gin.SetMode(gin.TestMode)
}

func setupTestRouter(svc *Service) *gin.Engine {
	router := gin.New()
	handlers := NewHandlers(svc)
	v1 := router.Group("/v1")
	v1.Use(AuthMiddleware(extensions.DefaultOptions().AuthProvider))
	RegisterRoutes(v1, handlers)
	return router
}

// twoRoomsYAML is a one-step problem: move from room a to room b.
func twoRoomsYAML() pddl.YAMLProblem {
	return pddl.YAMLProblem{
		Name:   "two-rooms",
		Domain: "rooms",
		Init:   []string{"at-a"},
		Goal:   pddl.YAMLCondition{Pos: []string{"at-b"}},
		Actions: []pddl.YAMLAction{
			{
				Name:    "move-a-b",
				Pre:     pddl.YAMLCondition{Pos: []string{"at-a"}},
				Effects: []pddl.YAMLEffect{{Add: []string{"at-b"}, Del: []string{"at-a"}}},
			},
			{
				Name:    "move-b-a",
				Pre:     pddl.YAMLCondition{Pos: []string{"at-b"}},
				Effects: []pddl.YAMLEffect{{Add: []string{"at-a"}, Del: []string{"at-b"}}},
			},
		},
	}
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func postJSON(t *testing.T, router *gin.Engine, path string, v any) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest("POST", path, jsonBody(t, v))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandlers_HandleHealth(t *testing.T) {
	router := setupTestRouter(NewService(DefaultServiceConfig()))

	req, _ := http.NewRequest("GET", "/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, ServiceVersion, resp.Version)
}

func TestHandlers_HandleReady_NoCache(t *testing.T) {
	router := setupTestRouter(NewService(DefaultServiceConfig()))

	req, _ := http.NewRequest("GET", "/v1/ready", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp ReadyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Ready)
	assert.False(t, resp.CacheOK)
	assert.Equal(t, 0, resp.CachedPlans)
}

func TestHandlers_HandleReady_WithCache(t *testing.T) {
	cache, err := store.OpenInMemory()
	require.NoError(t, err)
	svc := NewService(DefaultServiceConfig()).WithCache(cache)
	defer svc.Close(context.Background())

	router := setupTestRouter(svc)

	req, _ := http.NewRequest("GET", "/v1/ready", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp ReadyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Ready)
	assert.True(t, resp.CacheOK)
}

func TestHandlers_HandleSolve_InvalidRequest(t *testing.T) {
	router := setupTestRouter(NewService(DefaultServiceConfig()))

	badName := twoRoomsYAML()
	badName.Name = "Two Rooms!"

	noEffects := twoRoomsYAML()
	noEffects.Actions[0].Effects = nil

	unsupported := twoRoomsYAML()
	unsupported.Requirements = []string{"adl"}

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{
			name:       "empty body",
			body:       map[string]any{},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "negative walks",
			body:       map[string]any{"problem": twoRoomsYAML(), "walks": -1},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "invalid problem name",
			body:       SolveRequest{Problem: badName},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_NAME",
		},
		{
			name:       "action without effects",
			body:       SolveRequest{Problem: noEffects},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_PROBLEM",
		},
		{
			name:       "unsupported requirements",
			body:       SolveRequest{Problem: unsupported},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "UNSUPPORTED_PROBLEM",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, router, "/v1/solve", tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}
}

func TestHandlers_HandleSolve_Success(t *testing.T) {
	router := setupTestRouter(NewService(DefaultServiceConfig()))

	seed := int64(7)
	w := postJSON(t, router, "/v1/solve", SolveRequest{
		Problem: twoRoomsYAML(),
		Walks:   50,
		Seed:    &seed,
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var resp SolveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, "two-rooms", resp.Problem)
	assert.NotEmpty(t, resp.Fingerprint)
	assert.True(t, resp.Found)
	assert.Equal(t, []string{"move-a-b"}, resp.Plan)
	assert.Equal(t, 1, resp.PlanLength)
	assert.False(t, resp.Cached)
	require.NotNil(t, resp.Stats)
	assert.Equal(t, seed, resp.Stats.Seed)
	assert.GreaterOrEqual(t, resp.Stats.WalksStarted, int64(1))
}

func TestHandlers_HandleSolve_RequestIDEchoed(t *testing.T) {
	router := setupTestRouter(NewService(DefaultServiceConfig()))

	req, err := http.NewRequest("POST", "/v1/solve", jsonBody(t, SolveRequest{Problem: twoRoomsYAML()}))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "plan-req-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "plan-req-42", w.Header().Get("X-Request-ID"))
}

func TestHandlers_HandleSolve_CacheRoundtrip(t *testing.T) {
	cache, err := store.OpenInMemory()
	require.NoError(t, err)
	svc := NewService(DefaultServiceConfig()).WithCache(cache)
	defer svc.Close(context.Background())

	router := setupTestRouter(svc)
	body := SolveRequest{Problem: twoRoomsYAML(), Walks: 50}

	w := postJSON(t, router, "/v1/solve", body)
	require.Equal(t, http.StatusOK, w.Code)

	var first SolveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	require.True(t, first.Found)
	assert.False(t, first.Cached)

	w = postJSON(t, router, "/v1/solve", body)
	require.Equal(t, http.StatusOK, w.Code)

	var second SolveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.True(t, second.Found)
	assert.True(t, second.Cached)
	assert.Nil(t, second.Stats)
	assert.Equal(t, first.Plan, second.Plan)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestHandlers_HandleSolve_NoCacheSkipsLookup(t *testing.T) {
	cache, err := store.OpenInMemory()
	require.NoError(t, err)
	svc := NewService(DefaultServiceConfig()).WithCache(cache)
	defer svc.Close(context.Background())

	router := setupTestRouter(svc)

	w := postJSON(t, router, "/v1/solve", SolveRequest{Problem: twoRoomsYAML(), Walks: 50})
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(t, router, "/v1/solve", SolveRequest{Problem: twoRoomsYAML(), Walks: 50, NoCache: true})
	require.Equal(t, http.StatusOK, w.Code)

	var resp SolveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Cached)
	assert.NotNil(t, resp.Stats)
}

func TestHandlers_HandleSolve_GateBlocked(t *testing.T) {
	opts := extensions.DefaultOptions().WithGate(&extensions.LimitGate{MaxActions: 1})
	svc := NewService(DefaultServiceConfig()).WithExtensions(opts)
	router := setupTestRouter(svc)

	w := postJSON(t, router, "/v1/solve", SolveRequest{Problem: twoRoomsYAML()})

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "PROBLEM_BLOCKED", resp.Code)
	assert.Contains(t, resp.Error, "2 ground actions, limit is 1")
}

func TestHandlers_HandleSolve_AuthzDenied(t *testing.T) {
	opts := extensions.DefaultOptions().WithAuthz(denyAuthzProvider{})
	svc := NewService(DefaultServiceConfig()).WithExtensions(opts)
	router := setupTestRouter(svc)

	w := postJSON(t, router, "/v1/solve", SolveRequest{Problem: twoRoomsYAML()})

	require.Equal(t, http.StatusForbidden, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "FORBIDDEN", resp.Code)
}

func TestHandlers_HandleSolve_NotFoundIsNotAnError(t *testing.T) {
	router := setupTestRouter(NewService(DefaultServiceConfig()))

	// Goal requires an atom no action ever adds
	impossible := twoRoomsYAML()
	impossible.Name = "stuck"
	impossible.Goal = pddl.YAMLCondition{Pos: []string{"at-c"}}

	w := postJSON(t, router, "/v1/solve", SolveRequest{Problem: impossible, Walks: 5, MaxWalkLength: 4})

	require.Equal(t, http.StatusOK, w.Code)

	var resp SolveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Found)
	assert.Empty(t, resp.Plan)
	assert.Equal(t, -1, resp.PlanLength)
	require.NotNil(t, resp.Stats)
	assert.Equal(t, int64(5), resp.Stats.WalksStarted)
}

func TestHandlers_HandleValidate(t *testing.T) {
	router := setupTestRouter(NewService(DefaultServiceConfig()))

	tests := []struct {
		name       string
		plan       []string
		wantValid  bool
		wantReason string
	}{
		{
			name:      "valid one-step plan",
			plan:      []string{"move-a-b"},
			wantValid: true,
		},
		{
			name:      "valid round trip and back",
			plan:      []string{"move-a-b", "move-b-a", "move-a-b"},
			wantValid: true,
		},
		{
			name:       "precondition not met",
			plan:       []string{"move-b-a"},
			wantValid:  false,
			wantReason: "precondition not met",
		},
		{
			name:       "goal not reached",
			plan:       []string{"move-a-b", "move-b-a"},
			wantValid:  false,
			wantReason: "does not satisfy the goal",
		},
		{
			name:       "unknown action",
			plan:       []string{"teleport-a-b"},
			wantValid:  false,
			wantReason: "unknown action",
		},
		{
			name:       "empty plan with unsatisfied goal",
			plan:       []string{},
			wantValid:  false,
			wantReason: "does not satisfy the goal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, router, "/v1/validate", ValidateRequest{
				Problem: twoRoomsYAML(),
				Plan:    tt.plan,
			})

			require.Equal(t, http.StatusOK, w.Code)

			var resp ValidateResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantValid, resp.Valid)
			assert.Equal(t, len(tt.plan), resp.PlanLength)
			if tt.wantReason != "" {
				assert.Contains(t, resp.Reason, tt.wantReason)
			}
		})
	}
}

func TestHandlers_HandleValidate_EmptyPlanGoalSatisfied(t *testing.T) {
	router := setupTestRouter(NewService(DefaultServiceConfig()))

	problem := twoRoomsYAML()
	problem.Init = []string{"at-b"}

	w := postJSON(t, router, "/v1/validate", ValidateRequest{Problem: problem})

	require.Equal(t, http.StatusOK, w.Code)

	var resp ValidateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Valid)
	assert.Equal(t, 0, resp.PlanLength)
}

func TestHandlers_HandleValidate_InvalidBody(t *testing.T) {
	router := setupTestRouter(NewService(DefaultServiceConfig()))

	w := postJSON(t, router, "/v1/validate", map[string]any{})

	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_REQUEST", resp.Code)
}

func TestHandlers_HandleListProblems_NoCache(t *testing.T) {
	router := setupTestRouter(NewService(DefaultServiceConfig()))

	req, _ := http.NewRequest("GET", "/v1/problems", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "CACHE_DISABLED", resp.Code)
}

func TestHandlers_HandleListProblems(t *testing.T) {
	cache, err := store.OpenInMemory()
	require.NoError(t, err)
	svc := NewService(DefaultServiceConfig()).WithCache(cache)
	defer svc.Close(context.Background())

	router := setupTestRouter(svc)

	req, _ := http.NewRequest("GET", "/v1/problems", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp ProblemsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Count)
	assert.Empty(t, resp.Problems)

	sw := postJSON(t, router, "/v1/solve", SolveRequest{Problem: twoRoomsYAML(), Walks: 50})
	require.Equal(t, http.StatusOK, sw.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "two-rooms", resp.Problems[0].Problem)
	assert.Equal(t, 1, resp.Problems[0].PlanLength)
	assert.NotEmpty(t, resp.Problems[0].Fingerprint)
	assert.False(t, resp.Problems[0].CreatedAt.IsZero())
}

func TestHandlers_HandleListProblems_InvalidLimit(t *testing.T) {
	cache, err := store.OpenInMemory()
	require.NoError(t, err)
	svc := NewService(DefaultServiceConfig()).WithCache(cache)
	defer svc.Close(context.Background())

	router := setupTestRouter(svc)

	req, _ := http.NewRequest("GET", "/v1/problems?limit=banana", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_REQUEST", resp.Code)
}

func TestHandlers_HandleGetProblem(t *testing.T) {
	cache, err := store.OpenInMemory()
	require.NoError(t, err)
	svc := NewService(DefaultServiceConfig()).WithCache(cache)
	defer svc.Close(context.Background())

	router := setupTestRouter(svc)

	sw := postJSON(t, router, "/v1/solve", SolveRequest{Problem: twoRoomsYAML(), Walks: 50})
	require.Equal(t, http.StatusOK, sw.Code)

	var solved SolveResponse
	require.NoError(t, json.Unmarshal(sw.Body.Bytes(), &solved))

	req, _ := http.NewRequest("GET", "/v1/problems/"+solved.Fingerprint, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp PlanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "two-rooms", resp.Problem)
	assert.Equal(t, solved.Fingerprint, resp.Fingerprint)
	assert.Equal(t, []string{"move-a-b"}, resp.Plan)
	assert.Equal(t, 1, resp.PlanLength)
}

func TestHandlers_HandleGetProblem_NotFound(t *testing.T) {
	cache, err := store.OpenInMemory()
	require.NoError(t, err)
	svc := NewService(DefaultServiceConfig()).WithCache(cache)
	defer svc.Close(context.Background())

	router := setupTestRouter(svc)

	req, _ := http.NewRequest("GET", "/v1/problems/no-such-digest", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "PLAN_NOT_FOUND", resp.Code)
}

func TestHandlers_HandleDeleteProblem(t *testing.T) {
	cache, err := store.OpenInMemory()
	require.NoError(t, err)
	svc := NewService(DefaultServiceConfig()).WithCache(cache)
	defer svc.Close(context.Background())

	router := setupTestRouter(svc)

	sw := postJSON(t, router, "/v1/solve", SolveRequest{Problem: twoRoomsYAML(), Walks: 50})
	require.Equal(t, http.StatusOK, sw.Code)

	var solved SolveResponse
	require.NoError(t, json.Unmarshal(sw.Body.Bytes(), &solved))

	req, _ := http.NewRequest("DELETE", "/v1/problems/"+solved.Fingerprint, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)

	// A second delete finds nothing
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	listReq, _ := http.NewRequest("GET", "/v1/problems", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, listReq)

	var resp ProblemsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Count)
}

func TestGetOrCreateRequestID(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/v1/health", nil)
	c.Request.Header.Set("X-Request-ID", "existing-id")

	assert.Equal(t, "existing-id", getOrCreateRequestID(c))
	assert.Equal(t, "existing-id", w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/v1/health", nil)

	generated := getOrCreateRequestID(c)
	assert.NotEmpty(t, generated)
	assert.Equal(t, generated, w.Header().Get("X-Request-ID"))
}
