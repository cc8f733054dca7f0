// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package plan

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/AleutianPlan/pkg/extensions"
	"github.com/AleutianAI/AleutianPlan/server"
	"github.com/AleutianAI/AleutianPlan/store"
)

func runServe(cmd *cobra.Command, args []string) {
	if serveDebug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	slogger := logger.Slog()

	opts := extensions.DefaultOptions()
	if serveMaxActions > 0 {
		opts = opts.WithGate(&extensions.LimitGate{MaxActions: serveMaxActions})
	}

	svcConfig := server.DefaultServiceConfig()
	svcConfig.Search = searchCfg
	svc := server.NewService(svcConfig).
		WithLogger(slogger).
		WithExtensions(opts).
		WithMetrics(server.InitMetrics())

	if !noCache {
		dir := cacheDir
		if dir == "" {
			dir = defaultCacheDir()
		}
		storeCfg := store.DefaultConfig()
		storeCfg.Path = dir
		storeCfg.Logger = slogger
		cache, err := store.Open(storeCfg)
		if err != nil {
			log.Fatalf("Error opening plan cache at %s: %v", dir, err)
		}
		svc = svc.WithCache(cache)
		slogger.Info("Plan cache open", "path", dir)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("aleutianplan"))
	if serveDebug {
		router.Use(gin.Logger())
	}

	v1 := router.Group("/v1")
	v1.Use(server.AuthMiddleware(opts.AuthProvider))
	server.RegisterRoutes(v1, server.NewHandlers(svc))
	server.RegisterMetricsRoute(router)

	auditSystemEvent(opts, "system.start", "start", map[string]any{"port": servePort})

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		slogger.Info("Shutting down planning server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		auditSystemEvent(opts, "system.stop", "stop", nil)
		if err := svc.Close(ctx); err != nil {
			slogger.Error("Shutdown cleanup failed", "error", err)
		}
		flushTelemetry()
		os.Exit(0)
	}()

	addr := fmt.Sprintf(":%d", servePort)
	slogger.Info("Starting planning server",
		"address", addr,
		"cache", !noCache,
		"version", server.ServiceVersion)
	if err := router.Run(addr); err != nil {
		slogger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".aleutianplan", "plans")
	}
	return filepath.Join(home, ".aleutianplan", "plans")
}

func auditSystemEvent(opts extensions.ServiceOptions, eventType, action string, meta map[string]any) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	event := extensions.AuditEvent{
		EventType:    eventType,
		Timestamp:    time.Now().UTC(),
		UserID:       "system",
		Action:       action,
		ResourceType: "system",
		Outcome:      "success",
		Metadata:     meta,
	}
	if err := opts.AuditLogger.Log(ctx, event); err != nil {
		logger.Warn("Audit log failed", "event", eventType, "error", err)
	}
}
