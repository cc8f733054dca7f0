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
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianPlan/mrw"
	"github.com/AleutianAI/AleutianPlan/pddl"
	"github.com/AleutianAI/AleutianPlan/pkg/logging"
	"github.com/AleutianAI/AleutianPlan/pkg/ux"
)

const testProblemYAML = `
name: two-rooms
domain: rooms
init: [at-a]
goal:
  pos: [at-b]
actions:
  - name: move-a-b
    pre: {pos: [at-a]}
    effects:
      - add: [at-b]
        del: [at-a]
  - name: move-b-a
    pre: {pos: [at-b]}
    effects:
      - add: [at-a]
        del: [at-b]
`

const testDomainPDDL = `
(define (domain rooms)
  (:requirements :strips)
  (:predicates (at-a) (at-b))
  (:action move-a-b
    :parameters ()
    :precondition (at-a)
    :effect (and (at-b) (not (at-a))))
  (:action move-b-a
    :parameters ()
    :precondition (at-b)
    :effect (and (at-a) (not (at-b)))))
`

const testShuttlePDDL = `
(define (problem shuttle)
  (:domain rooms)
  (:init (at-a))
  (:goal (and (at-b))))
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestCommandTree(t *testing.T) {
	want := map[string]bool{
		"solve":   false,
		"bench":   false,
		"serve":   false,
		"inspect": false,
		"version": false,
	}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("command %q not registered on the root", name)
		}
	}
}

func mustSet(t *testing.T, cmd *cobra.Command, name, value string) {
	t.Helper()
	if err := cmd.Flags().Set(name, value); err != nil {
		t.Fatalf("set --%s=%s: %v", name, value, err)
	}
}

func TestBuildSearchConfig(t *testing.T) {
	searchCfg = mrw.DefaultSearchConfig()
	searchCfg.Budget.Walks = 777

	// Subtests share solveCmd's flag set, so the untouched case has to
	// run before anything is Set.
	t.Run("no flags keeps loaded config", func(t *testing.T) {
		cfg := buildSearchConfig(solveCmd)
		if cfg != searchCfg {
			t.Errorf("config changed without flags: %+v", cfg)
		}
	})

	t.Run("set flags override", func(t *testing.T) {
		mustSet(t, solveCmd, "walks", "25")
		mustSet(t, solveCmd, "seed", "42")
		mustSet(t, solveCmd, "deadlock-avoidance", "true")
		mustSet(t, solveCmd, "timeout", "2s")

		cfg := buildSearchConfig(solveCmd)
		if cfg.Budget.Walks != 25 {
			t.Errorf("walks = %d, want 25", cfg.Budget.Walks)
		}
		if cfg.Walk.Seed != 42 {
			t.Errorf("seed = %d, want 42", cfg.Walk.Seed)
		}
		if !cfg.Walk.DeadlockAvoidance {
			t.Error("deadlock avoidance should be on")
		}
		if cfg.Budget.TimeLimit.Seconds() != 2 {
			t.Errorf("time limit = %s, want 2s", cfg.Budget.TimeLimit)
		}
		if cfg.Walk.MaxLength != searchCfg.Walk.MaxLength {
			t.Errorf("max length moved to %d without its flag", cfg.Walk.MaxLength)
		}
	})

	t.Run("workers implies parallel", func(t *testing.T) {
		mustSet(t, solveCmd, "workers", "8")
		cfg := buildSearchConfig(solveCmd)
		if !cfg.Parallel.Enabled {
			t.Error("setting --workers should enable parallel mode")
		}
		if cfg.Parallel.Workers != 8 {
			t.Errorf("workers = %d, want 8", cfg.Parallel.Workers)
		}
	})
}

func TestLoadPlanningProblem(t *testing.T) {
	t.Run("yaml", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "two-rooms.yaml", testProblemYAML)

		p, err := loadPlanningProblem(path, "")
		if err != nil {
			t.Fatalf("loadPlanningProblem: %v", err)
		}
		if p.Name != "two-rooms" || len(p.Actions) != 2 {
			t.Errorf("loaded %q with %d actions", p.Name, len(p.Actions))
		}
	})

	t.Run("pddl with sibling domain", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "domain.pddl", testDomainPDDL)
		path := writeFile(t, dir, "shuttle.pddl", testShuttlePDDL)

		p, err := loadPlanningProblem(path, "")
		if err != nil {
			t.Fatalf("loadPlanningProblem: %v", err)
		}
		if p.Name != "shuttle" || p.Domain != "rooms" {
			t.Errorf("loaded header = %q / %q", p.Name, p.Domain)
		}
		if len(p.Actions) != 2 {
			t.Errorf("actions = %d, want 2", len(p.Actions))
		}
	})

	t.Run("pddl with explicit domain", func(t *testing.T) {
		domainDir := t.TempDir()
		problemDir := t.TempDir()
		domain := writeFile(t, domainDir, "rooms.pddl", testDomainPDDL)
		path := writeFile(t, problemDir, "shuttle.pddl", testShuttlePDDL)

		p, err := loadPlanningProblem(path, domain)
		if err != nil {
			t.Fatalf("loadPlanningProblem: %v", err)
		}
		if p.Name != "shuttle" {
			t.Errorf("loaded %q", p.Name)
		}
	})

	t.Run("pddl without domain", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "shuttle.pddl", testShuttlePDDL)

		_, err := loadPlanningProblem(path, "")
		if err == nil {
			t.Fatal("expected an error without a domain")
		}
		if !strings.Contains(err.Error(), "--domain") {
			t.Errorf("error should mention --domain, got %v", err)
		}
	})

	t.Run("unknown extension", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "problem.txt", "whatever")

		_, err := loadPlanningProblem(path, "")
		if err == nil || !strings.Contains(err.Error(), "unsupported problem file") {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestFormatRequirements(t *testing.T) {
	if got := formatRequirements(nil); got != "none" {
		t.Errorf("empty requirements = %q, want none", got)
	}
	got := formatRequirements([]pddl.Requirement{pddl.RequireSTRIPS, pddl.RequireTyping})
	if got != ":strips :typing" {
		t.Errorf("requirements = %q", got)
	}
}

func TestSolveOnce(t *testing.T) {
	logger = logging.New(logging.Config{Quiet: true})
	orig := ux.GetPersonality()
	defer ux.SetPersonality(orig)
	ux.SetPersonalityLevel(ux.PersonalityMachine)

	cfg := mrw.DefaultSearchConfig()
	cfg.Budget.Walks = 50
	cfg.Walk.MaxLength = 10
	cfg.Walk.Seed = 7

	t.Run("solvable", func(t *testing.T) {
		problem, err := pddl.ParseYAMLProblem([]byte(testProblemYAML))
		if err != nil {
			t.Fatalf("ParseYAMLProblem: %v", err)
		}
		if err := solveOnce(context.Background(), problem, cfg); err != nil {
			t.Fatalf("solveOnce: %v", err)
		}
	})

	t.Run("unsupported problem", func(t *testing.T) {
		src := strings.Replace(testProblemYAML, "domain: rooms",
			"domain: rooms\nrequirements: [\":adl\"]", 1)
		problem, err := pddl.ParseYAMLProblem([]byte(src))
		if err != nil {
			t.Fatalf("ParseYAMLProblem: %v", err)
		}
		err = solveOnce(context.Background(), problem, cfg)
		if !errors.Is(err, mrw.ErrUnsupportedProblem) {
			t.Errorf("error = %v, want ErrUnsupportedProblem", err)
		}
	})
}
