// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package plan implements the aleutianplan command line interface.
//
// The package exposes a single entry point, Execute, which the root
// main package calls. Shared state (the logger and the search
// configuration) is loaded once in a persistent pre-run hook before
// any subcommand runs, so every command sees the same layered
// configuration: defaults, then the --config file, then environment
// overrides, then its own flags.
package plan

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianPlan/mrw"
	"github.com/AleutianAI/AleutianPlan/pkg/logging"
	"github.com/AleutianAI/AleutianPlan/pkg/telemetry"
	"github.com/AleutianAI/AleutianPlan/pkg/ux"
	"github.com/AleutianAI/AleutianPlan/server"
)

var (
	logger    *logging.Logger
	searchCfg mrw.SearchConfig

	// telemetryShutdown flushes buffered spans. Nil when tracing is off.
	telemetryShutdown func(context.Context) error
)

// Execute runs the root command. Cobra handles parsing the arguments.
func Execute() {
	err := rootCmd.Execute()
	flushTelemetry()
	if err != nil {
		os.Exit(1)
	}
}

// flushTelemetry drains buffered spans before the process exits. Safe to
// call when tracing never started.
func flushTelemetry() {
	if telemetryShutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := telemetryShutdown(ctx); err != nil {
		logger.Warn("Trace flush failed", "error", err)
	}
}

func init() {
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		ux.InitPersonality()
		if personality != "" {
			ux.SetPersonalityLevel(ux.ParsePersonalityLevel(personality))
		}

		level, err := logging.ParseLevel(logLevel)
		if err != nil {
			log.Fatalf("Invalid log level %q: %v", logLevel, err)
		}
		logger = logging.New(logging.Config{
			Level:   level,
			JSON:    logJSON,
			Service: "planner",
		})

		searchCfg, err = mrw.LoadSearchConfig(cfgFile)
		if err != nil {
			log.Fatalf("Error loading search configuration: %v", err)
		}

		telCfg := telemetry.DefaultConfig()
		telCfg.ServiceVersion = server.ServiceVersion
		if cmd.Flags().Changed("trace-exporter") {
			telCfg.TraceExporter = traceExporter
		}
		if telCfg.TraceExporter != "none" {
			telemetryShutdown, err = telemetry.Init(cmd.Context(), telCfg)
			if err != nil {
				log.Fatalf("Error initializing tracing: %v", err)
			}
			searchCfg.Observability.TracingEnabled = true
		}
	}
}
