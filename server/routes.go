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
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes registers all planning service routes with the router.
//
// Description:
//
//	Registers all /v1/* endpoints with the given Gin router group.
//	The router group should already have any required middleware
//	applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST /v1/solve - Solve a ground planning problem
//	POST /v1/validate - Validate a plan against a problem
//
//	GET    /v1/problems - List cached plans
//	GET    /v1/problems/:fingerprint - Get a cached plan
//	DELETE /v1/problems/:fingerprint - Remove a cached plan
//
//	GET /v1/health - Health check
//	GET /v1/ready - Readiness check
//
// Example:
//
//	opts := extensions.DefaultOptions()
//	svc := server.NewService(server.DefaultServiceConfig()).WithExtensions(opts)
//	handlers := server.NewHandlers(svc)
//
//	v1 := router.Group("/v1")
//	v1.Use(server.AuthMiddleware(opts.AuthProvider))
//	server.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	rg.POST("/solve", handlers.HandleSolve)
	rg.POST("/validate", handlers.HandleValidate)

	problems := rg.Group("/problems")
	{
		problems.GET("", handlers.HandleListProblems)
		problems.GET("/:fingerprint", handlers.HandleGetProblem)
		problems.DELETE("/:fingerprint", handlers.HandleDeleteProblem)
	}

	rg.GET("/health", handlers.HandleHealth)
	rg.GET("/ready", handlers.HandleReady)
}

// RegisterMetricsRoute exposes the Prometheus /metrics endpoint on the
// router root, outside the /v1 group and its middleware.
func RegisterMetricsRoute(router *gin.Engine) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
