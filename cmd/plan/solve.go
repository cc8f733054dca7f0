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
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianPlan/mrw"
	"github.com/AleutianAI/AleutianPlan/pddl"
	"github.com/AleutianAI/AleutianPlan/pkg/ux"
)

func runSolve(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := buildSearchConfig(cmd)
	problemPath := args[0]

	problem, err := loadPlanningProblem(problemPath, domainPath)
	if err != nil {
		log.Fatalf("Error loading problem: %v", err)
	}

	if err := solveOnce(ctx, problem, cfg); err != nil {
		if !watchMode {
			log.Fatalf("Solve failed: %v", err)
		}
		ux.Error(fmt.Sprintf("Solve failed: %v", err))
	}

	if watchMode {
		if err := watchProblem(ctx, problemPath, cfg); err != nil {
			log.Fatalf("Watch failed: %v", err)
		}
	}
}

// buildSearchConfig overlays the solve flags onto the loaded search
// configuration. Only flags the user actually set take effect, so a
// --config file keeps its values unless overridden.
func buildSearchConfig(cmd *cobra.Command) mrw.SearchConfig {
	cfg := searchCfg
	flags := cmd.Flags()

	if flags.Changed("walks") {
		cfg.Budget.Walks = walks
	}
	if flags.Changed("timeout") {
		cfg.Budget.TimeLimit = timeout
	}
	if flags.Changed("max-length") {
		cfg.Walk.MaxLength = maxLength
	}
	if flags.Changed("target-length") {
		cfg.Walk.TargetPlanLength = targetLength
	}
	if flags.Changed("deadlock-avoidance") {
		cfg.Walk.DeadlockAvoidance = deadlockAvoidance
	}
	if flags.Changed("helpful-actions") {
		cfg.Walk.HelpfulActions = helpfulActions
	}
	if flags.Changed("seed") {
		cfg.Walk.Seed = seed
	}
	if flags.Changed("parallel") {
		cfg.Parallel.Enabled = parallelSolve
	}
	if flags.Changed("workers") {
		cfg.Parallel.Workers = workers
		cfg.Parallel.Enabled = true
	}
	return cfg
}

// loadPlanningProblem loads a problem by file extension. PDDL problems
// need a domain; when none was given, a domain.pddl sitting next to the
// problem file is used.
func loadPlanningProblem(path, domain string) (*pddl.Problem, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return pddl.LoadYAMLProblem(path)
	case ".pddl":
		if domain == "" {
			candidate := filepath.Join(filepath.Dir(path), "domain.pddl")
			if _, err := os.Stat(candidate); err != nil {
				return nil, fmt.Errorf("%s needs --domain (no domain.pddl next to it)", path)
			}
			domain = candidate
		}
		return pddl.LoadProblem(domain, path)
	default:
		return nil, fmt.Errorf("unsupported problem file %s (want .pddl, .yaml, or .yml)", path)
	}
}

func solveOnce(ctx context.Context, problem *pddl.Problem, cfg mrw.SearchConfig) error {
	engine, err := mrw.NewEngine(cfg, mrw.WithLogger(logger.Slog()))
	if err != nil {
		return err
	}

	var spin *ux.Spinner
	if !jsonOutput && ux.ShouldShowProgress() {
		spin = ux.NewSpinner(fmt.Sprintf("Searching %s (%d walks, length cap %d)",
			problem.Name, cfg.Budget.Walks, cfg.Walk.MaxLength))
		spin.Start()
	}

	var result *mrw.SolveResult
	if cfg.Parallel.Enabled {
		result, err = mrw.NewParallelEngine(engine).Solve(ctx, problem)
	} else {
		result, err = engine.Solve(ctx, problem)
	}
	if err != nil {
		if spin != nil {
			spin.StopWithError("Search failed")
		}
		return err
	}

	if jsonOutput {
		if spin != nil {
			spin.Stop()
		}
		return printSolveJSON(problem, result)
	}

	if result.Found {
		msg := fmt.Sprintf("Plan found: %d steps (seed %d)",
			result.Plan.Length(), result.Stats.Seed)
		if spin != nil {
			spin.StopWithSuccess(msg)
		} else {
			ux.Success(msg)
		}
		for i, name := range result.Plan.Names() {
			ux.PlanStep(i+1, name)
		}
		ux.SolveSummary(result.Plan.Length(), result.Stats.WalksStarted,
			result.Stats.WalksFailed, result.Stats.Elapsed)
		return nil
	}

	msg := fmt.Sprintf("No plan found after %d walks (%s)",
		result.Stats.WalksStarted, result.Stats.StopReason)
	if spin != nil {
		spin.StopWithWarning(msg)
	} else {
		ux.Warning(msg)
	}
	return nil
}

// solveOutput is the machine-readable shape printed by solve --json.
type solveOutput struct {
	Problem string          `json:"problem"`
	Found   bool            `json:"found"`
	Plan    []string        `json:"plan"`
	Stats   mrw.SearchStats `json:"stats"`
}

func printSolveJSON(problem *pddl.Problem, result *mrw.SolveResult) error {
	out := solveOutput{
		Problem: problem.Name,
		Found:   result.Found,
		Plan:    result.Plan.Names(),
		Stats:   result.Stats,
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// watchProblem re-solves whenever the problem (or its domain) changes.
//
// Editors often replace files on save instead of writing in place, so
// the watch is on the containing directory with events filtered down to
// the files of interest. A rate limiter collapses the event bursts a
// single save can produce into one re-solve.
func watchProblem(ctx context.Context, problemPath string, cfg mrw.SearchConfig) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	watched := map[string]bool{filepath.Clean(problemPath): true}
	dirs := map[string]bool{filepath.Dir(problemPath): true}
	if domainPath != "" {
		watched[filepath.Clean(domainPath)] = true
		dirs[filepath.Dir(domainPath)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	ux.Info("Watching for changes (Ctrl+C to stop)")
	limiter := rate.NewLimiter(rate.Every(500*time.Millisecond), 1)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !watched[filepath.Clean(event.Name)] {
				continue
			}
			if !limiter.Allow() {
				continue
			}

			problem, err := loadPlanningProblem(problemPath, domainPath)
			if err != nil {
				ux.Error(fmt.Sprintf("Reload failed: %v", err))
				continue
			}
			ux.Info(fmt.Sprintf("Change detected, solving %s again", problem.Name))
			if err := solveOnce(ctx, problem, cfg); err != nil {
				ux.Error(fmt.Sprintf("Solve failed: %v", err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			ux.Warning(fmt.Sprintf("Watcher error: %v", err))
		}
	}
}
