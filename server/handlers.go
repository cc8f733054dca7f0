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
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianPlan/mrw"
	"github.com/AleutianAI/AleutianPlan/pkg/extensions"
	"github.com/AleutianAI/AleutianPlan/pkg/validation"
)

// ServiceVersion is the planning service version.
const ServiceVersion = "0.1.0"

// Handlers contains the HTTP handlers for the planning service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleSolve handles POST /v1/solve.
//
// Description:
//
//	Solves a ground planning problem with the random-walk engine.
//	Cached plans for semantically identical problems are served
//	without a new search unless no_cache is set. A search that
//	exhausts its budget is a success with found=false.
//
// Request Body:
//
//	SolveRequest
//
// Response:
//
//	200 OK: SolveResponse
//	400 Bad Request: Malformed body, name, problem, or config override
//	403 Forbidden: Authorization denied
//	422 Unprocessable Entity: Unsupported requirements or gate block
//	504 Gateway Timeout: Solve hit the service time ceiling
func (h *Handlers) HandleSolve(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleSolve")

	var req SolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Code:    "INVALID_REQUEST",
			Details: err.Error(),
		})
		return
	}

	if err := req.Validate(); err != nil {
		logger.Warn("Request limits exceeded", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Request exceeds size limits",
			Code:    "REQUEST_TOO_LARGE",
			Details: err.Error(),
		})
		return
	}

	if err := validation.ValidateName(req.Problem.Name); err != nil {
		logger.Warn("Invalid problem name", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid problem name",
			Code:    "INVALID_NAME",
			Details: err.Error(),
		})
		return
	}

	problem, err := req.Problem.ToProblem()
	if err != nil {
		logger.Warn("Invalid problem definition", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid problem definition",
			Code:    "INVALID_PROBLEM",
			Details: err.Error(),
		})
		return
	}

	logger.Info("Solving problem",
		"problem", problem.Name,
		"actions", len(problem.Actions),
		"fluents", problem.Fluents.Len())

	resp, err := h.svc.Solve(c.Request.Context(), GetAuthInfo(c), problem, req.solveOptions())
	if err != nil {
		status, code := solveErrorStatus(err)
		logger.Error("Solve failed", "problem", problem.Name, "error", err)
		c.JSON(status, ErrorResponse{
			Error: err.Error(),
			Code:  code,
		})
		return
	}

	logger.Info("Solve finished",
		"problem", problem.Name,
		"found", resp.Found,
		"plan_length", resp.PlanLength,
		"cached", resp.Cached)

	c.JSON(http.StatusOK, resp)
}

// HandleValidate handles POST /v1/validate.
//
// Description:
//
//	Replays a plan against a problem and reports whether it reaches
//	the goal. An invalid plan is a 200 with valid=false and a reason,
//	not an HTTP error.
//
// Request Body:
//
//	ValidateRequest
//
// Response:
//
//	200 OK: ValidateResponse
//	400 Bad Request: Malformed body or problem
func (h *Handlers) HandleValidate(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleValidate")

	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Code:    "INVALID_REQUEST",
			Details: err.Error(),
		})
		return
	}

	if err := req.Validate(); err != nil {
		logger.Warn("Request limits exceeded", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Request exceeds size limits",
			Code:    "REQUEST_TOO_LARGE",
			Details: err.Error(),
		})
		return
	}

	problem, err := req.Problem.ToProblem()
	if err != nil {
		logger.Warn("Invalid problem definition", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid problem definition",
			Code:    "INVALID_PROBLEM",
			Details: err.Error(),
		})
		return
	}

	resp, err := h.svc.Validate(c.Request.Context(), problem, req.Plan)
	if err != nil {
		logger.Error("Validate failed", "problem", problem.Name, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "VALIDATE_FAILED",
		})
		return
	}

	logger.Info("Plan validated",
		"problem", problem.Name,
		"valid", resp.Valid,
		"plan_length", resp.PlanLength)

	c.JSON(http.StatusOK, resp)
}

// HandleListProblems handles GET /v1/problems.
//
// Description:
//
//	Lists cached plans, one entry per solved problem.
//
// Query Parameters:
//
//	limit: Maximum number of entries (optional, default from config)
//
// Response:
//
//	200 OK: ProblemsResponse
//	400 Bad Request: Malformed limit
//	503 Service Unavailable: Plan cache not configured
func (h *Handlers) HandleListProblems(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleListProblems")

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			logger.Warn("Invalid limit parameter", "limit", raw)
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "limit must be a non-negative integer",
				Code:  "INVALID_REQUEST",
			})
			return
		}
		limit = parsed
	}

	summaries, err := h.svc.ListPlans(c.Request.Context(), limit)
	if err != nil {
		if errors.Is(err, ErrCacheDisabled) {
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{
				Error: err.Error(),
				Code:  "CACHE_DISABLED",
			})
			return
		}
		logger.Error("List cached plans failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "LIST_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, ProblemsResponse{
		Problems: summaries,
		Count:    len(summaries),
	})
}

// HandleGetProblem handles GET /v1/problems/:fingerprint.
//
// Description:
//
//	Returns the cached plan for a problem fingerprint.
//
// Response:
//
//	200 OK: PlanResponse
//	403 Forbidden: Authorization denied
//	404 Not Found: No cached plan for the fingerprint
//	503 Service Unavailable: Plan cache not configured
func (h *Handlers) HandleGetProblem(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleGetProblem")

	fingerprint := c.Param("fingerprint")

	resp, err := h.svc.GetPlan(c.Request.Context(), GetAuthInfo(c), fingerprint)
	if err != nil {
		status, code := planErrorStatus(err)
		if status == http.StatusInternalServerError {
			logger.Error("Plan lookup failed", "fingerprint", fingerprint, "error", err)
		}
		c.JSON(status, ErrorResponse{
			Error: err.Error(),
			Code:  code,
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// HandleDeleteProblem handles DELETE /v1/problems/:fingerprint.
//
// Description:
//
//	Removes the cached plan for a problem fingerprint. The next solve
//	of that problem runs the engine again.
//
// Response:
//
//	204 No Content: Entry removed
//	403 Forbidden: Authorization denied
//	404 Not Found: No cached plan for the fingerprint
//	503 Service Unavailable: Plan cache not configured
func (h *Handlers) HandleDeleteProblem(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleDeleteProblem")

	fingerprint := c.Param("fingerprint")

	if err := h.svc.DeletePlan(c.Request.Context(), GetAuthInfo(c), fingerprint); err != nil {
		status, code := planErrorStatus(err)
		if status == http.StatusInternalServerError {
			logger.Error("Plan delete failed", "fingerprint", fingerprint, "error", err)
		}
		c.JSON(status, ErrorResponse{
			Error: err.Error(),
			Code:  code,
		})
		return
	}

	logger.Info("Deleted cached plan", "fingerprint", fingerprint)

	c.Status(http.StatusNoContent)
}

// HandleHealth handles GET /v1/health.
//
// Description:
//
//	Returns the health status of the service. Always returns 200 if
//	running.
//
// Response:
//
//	200 OK: HealthResponse
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
	})
}

// HandleReady handles GET /v1/ready.
//
// Description:
//
//	Returns readiness including plan cache state. The service solves
//	without a cache, so readiness is not gated on it.
//
// Response:
//
//	200 OK: ReadyResponse
func (h *Handlers) HandleReady(c *gin.Context) {
	c.JSON(http.StatusOK, ReadyResponse{
		Ready:       true,
		CacheOK:     h.svc.CacheAvailable(),
		CachedPlans: h.svc.CachedPlanCount(c.Request.Context()),
	})
}

// getOrCreateRequestID returns the X-Request-ID header value, creating
// one when absent, and echoes it on the response.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

// solveErrorStatus maps solve errors to an HTTP status and error code.
func solveErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, extensions.ErrUnauthorized):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, extensions.ErrProblemBlocked):
		return http.StatusUnprocessableEntity, "PROBLEM_BLOCKED"
	case errors.Is(err, mrw.ErrUnsupportedProblem):
		return http.StatusUnprocessableEntity, "UNSUPPORTED_PROBLEM"
	case errors.Is(err, mrw.ErrInvalidConfig):
		return http.StatusBadRequest, "INVALID_CONFIG"
	case errors.Is(err, mrw.ErrNilProblem):
		return http.StatusBadRequest, "INVALID_PROBLEM"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "SOLVE_TIMEOUT"
	default:
		return http.StatusInternalServerError, "SOLVE_FAILED"
	}
}

// planErrorStatus maps cached-plan errors to an HTTP status and error code.
func planErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, extensions.ErrUnauthorized):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, ErrPlanNotFound):
		return http.StatusNotFound, "PLAN_NOT_FOUND"
	case errors.Is(err, ErrCacheDisabled):
		return http.StatusServiceUnavailable, "CACHE_DISABLED"
	default:
		return http.StatusInternalServerError, "CACHE_FAILED"
	}
}
