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
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianPlan/mrw"
	"github.com/AleutianAI/AleutianPlan/pddl"
	"github.com/AleutianAI/AleutianPlan/pkg/ux"
	"github.com/AleutianAI/AleutianPlan/server"
)

var (
	rootCmd = &cobra.Command{
		Use:   "aleutianplan",
		Short: "A stochastic planner for ground STRIPS problems",
		Long: `aleutianplan is a stochastic planner for ground STRIPS problems.
The engine runs many short randomized walks through the state space
and keeps the shortest action sequence that reaches the goal.

Problems are PDDL domain/problem pairs or self-contained YAML files.`,
	}
	cfgFile       string
	logLevel      string
	logJSON       bool
	personality   string
	traceExporter string

	solveCmd = &cobra.Command{
		Use:   "solve [problem file]",
		Short: "Solve a planning problem with Monte-Carlo random walks",
		Long: `Loads a problem, runs the random-walk search, and prints the best
plan found. YAML problems are self-contained; .pddl problems are
grounded against --domain, or a domain.pddl next to the problem file.`,
		Args: cobra.ExactArgs(1),
		Run:  runSolve,
	}
	domainPath        string
	walks             int
	maxLength         int
	targetLength      int
	deadlockAvoidance bool
	helpfulActions    bool
	seed              int64
	timeout           time.Duration
	parallelSolve     bool
	workers           int
	watchMode         bool
	jsonOutput        bool

	benchCmd = &cobra.Command{
		Use:   "bench [problem directory]",
		Short: "Compare engine configurations across a directory of problems",
		Long: `Runs every problem in the directory under each configuration of a
benchmark suite and prints a comparison table. Without --suite the
standard sweep is used: the plain engine against each walk refinement.`,
		Args: cobra.ExactArgs(1),
		Run:  runBench,
	}
	suitePath    string
	benchTimeout time.Duration
	benchWorkers int
	benchSeed    int64
	benchOut     string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the planning service over HTTP",
		Run:   runServe,
	}
	servePort       int
	serveDebug      bool
	cacheDir        string
	noCache         bool
	serveMaxActions int

	inspectCmd = &cobra.Command{
		Use:   "inspect [problem file]",
		Short: "Show the size and requirements of a problem",
		Args:  cobra.ExactArgs(1),
		Run:   runInspect,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run:   runVersion,
	}
)

func init() {
	defaults := mrw.DefaultSearchConfig()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"Search configuration file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false,
		"Emit logs as JSON")
	rootCmd.PersistentFlags().StringVar(&personality, "personality", "",
		"Output style (full, standard, minimal, machine)")
	rootCmd.PersistentFlags().StringVar(&traceExporter, "trace-exporter", "none",
		"Span exporter for search tracing (otlp, stdout, none)")

	// --- Solve ---
	rootCmd.AddCommand(solveCmd)
	solveCmd.Flags().StringVar(&domainPath, "domain", "",
		"PDDL domain file for .pddl problems")
	solveCmd.Flags().IntVarP(&walks, "walks", "w", defaults.Budget.Walks,
		"Number of random walks")
	solveCmd.Flags().IntVarP(&maxLength, "max-length", "l", defaults.Walk.MaxLength,
		"Maximum steps per walk")
	solveCmd.Flags().IntVar(&targetLength, "target-length", defaults.Walk.TargetPlanLength,
		"Stop early once a plan at or under this length is found")
	solveCmd.Flags().BoolVarP(&deadlockAvoidance, "deadlock-avoidance", "d", false,
		"Skip actions that lead back to a state the walk already visited")
	solveCmd.Flags().BoolVar(&helpfulActions, "helpful-actions", false,
		"Prefer actions with an effect aimed at the goal")
	solveCmd.Flags().Int64Var(&seed, "seed", 0,
		"Random seed (0 picks one from the clock)")
	solveCmd.Flags().DurationVar(&timeout, "timeout", 0,
		"Wall-clock budget for the search (0 = walks only)")
	solveCmd.Flags().BoolVar(&parallelSolve, "parallel", false,
		"Run walk batches on parallel workers")
	solveCmd.Flags().IntVar(&workers, "workers", defaults.Parallel.Workers,
		"Parallel worker count (implies --parallel)")
	solveCmd.Flags().BoolVar(&watchMode, "watch", false,
		"Keep running and re-solve whenever the problem file changes")
	solveCmd.Flags().BoolVar(&jsonOutput, "json", false,
		"Print the result as JSON")

	// --- Bench ---
	rootCmd.AddCommand(benchCmd)
	benchCmd.Flags().StringVar(&suitePath, "suite", "",
		"Benchmark suite manifest (YAML); defaults to the standard sweep")
	benchCmd.Flags().DurationVar(&benchTimeout, "timeout", 60*time.Second,
		"Per-run wall-clock limit (0 = none)")
	benchCmd.Flags().IntVar(&benchWorkers, "workers", 1,
		"Concurrent benchmark runs")
	benchCmd.Flags().Int64Var(&benchSeed, "seed", 0,
		"Fixed engine seed for every run (0 leaves seeding to the configs)")
	benchCmd.Flags().StringVar(&benchOut, "out", "",
		"Write the full results to this JSON file")

	// --- Serve ---
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080,
		"Port to listen on")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false,
		"Enable gin debug mode and request logging")
	serveCmd.Flags().StringVar(&cacheDir, "cache-dir", "",
		"Plan cache directory (default ~/.aleutianplan/plans)")
	serveCmd.Flags().BoolVar(&noCache, "no-cache", false,
		"Disable the plan cache")
	serveCmd.Flags().IntVar(&serveMaxActions, "max-actions", 0,
		"Reject problems with more ground actions than this (0 = unlimited)")

	// --- Inspect ---
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVar(&domainPath, "domain", "",
		"PDDL domain file for .pddl problems")

	rootCmd.AddCommand(versionCmd)
}

func runInspect(cmd *cobra.Command, args []string) {
	problem, err := loadPlanningProblem(args[0], domainPath)
	if err != nil {
		log.Fatalf("Error loading problem: %v", err)
	}

	ux.Title(problem.Name)
	ux.Table([]string{"property", "value"}, [][]string{
		{"domain", problem.Domain},
		{"requirements", formatRequirements(problem.Requirements)},
		{"fluents", strconv.Itoa(problem.Fluents.Len())},
		{"ground actions", strconv.Itoa(len(problem.Actions))},
		{"init facts", strconv.Itoa(problem.Init.Count())},
		{"goal atoms", fmt.Sprintf("%d positive, %d negative",
			problem.Goal.Pos.Count(), problem.Goal.Neg.Count())},
		{"fingerprint", problem.Fingerprint()[:16]},
	})

	if problem.Supported() {
		ux.Success("Problem is inside the supported fragment")
	} else {
		ux.Warning(fmt.Sprintf("Unsupported requirements: %v",
			problem.UnsupportedRequirements()))
	}
}

func formatRequirements(reqs []pddl.Requirement) string {
	if len(reqs) == 0 {
		return "none"
	}
	parts := make([]string, len(reqs))
	for i, r := range reqs {
		parts[i] = string(r)
	}
	return strings.Join(parts, " ")
}

func runVersion(cmd *cobra.Command, args []string) {
	fmt.Printf("aleutianplan %s\n", server.ServiceVersion)
}
