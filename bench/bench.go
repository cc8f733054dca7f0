// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package bench runs a set of planning problems under one or more engine
// configurations and collects per-run rows for comparison.
//
// A benchmark is a cross product: every problem is solved once per named
// configuration. Failed runs (timeout, unsupported problem, exhausted
// budget) become rows with Solved=false rather than aborting the sweep,
// so a single hard problem cannot sink the whole report.
package bench

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianPlan/mrw"
	"github.com/AleutianAI/AleutianPlan/pddl"
	"github.com/AleutianAI/AleutianPlan/pkg/ux"
	"github.com/AleutianAI/AleutianPlan/pkg/validation"
)

// Config is one named engine configuration in a benchmark sweep.
type Config struct {
	// Name labels the configuration in rows and the summary table.
	Name string `yaml:"name" json:"name"`

	// Search is the engine configuration for every run under this name.
	Search mrw.SearchConfig `yaml:"search" json:"search"`
}

// UnmarshalYAML seeds the search settings with the engine defaults, so a
// manifest entry only has to state what it changes.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type rawConfig Config
	raw := rawConfig{Search: mrw.DefaultSearchConfig()}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*c = Config(raw)
	return nil
}

// Manifest is the YAML shape of a benchmark suite file.
type Manifest struct {
	Configs []Config `yaml:"configs"`
}

// DefaultConfigs returns the standard comparison sweep: the plain engine
// against each walk refinement, alone and combined.
func DefaultConfigs() []Config {
	base := mrw.DefaultSearchConfig()

	deadlock := base
	deadlock.Walk.DeadlockAvoidance = true

	helpful := base
	helpful.Walk.HelpfulActions = true

	combined := base
	combined.Walk.DeadlockAvoidance = true
	combined.Walk.HelpfulActions = true

	return []Config{
		{Name: "baseline", Search: base},
		{Name: "deadlock-avoidance", Search: deadlock},
		{Name: "helpful-actions", Search: helpful},
		{Name: "combined", Search: combined},
	}
}

// LoadConfigs reads a benchmark manifest file.
//
// Description:
//
//	Parses the YAML manifest, fills unstated search settings with engine
//	defaults, and validates every entry. Config names must be unique and
//	valid planning identifiers since they end up in result files.
//
// Inputs:
//
//	path - Manifest file path.
//
// Outputs:
//
//	[]Config - The validated configurations, in file order.
//	error - Read, parse, or validation failure.
func LoadConfigs(path string) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if len(m.Configs) == 0 {
		return nil, fmt.Errorf("manifest %s defines no configs", path)
	}

	seen := make(map[string]bool, len(m.Configs))
	for i := range m.Configs {
		name, err := validation.SanitizeName(m.Configs[i].Name)
		if err != nil {
			return nil, fmt.Errorf("config %d: %w", i, err)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate config name %q", name)
		}
		seen[name] = true
		m.Configs[i].Name = name

		if err := m.Configs[i].Search.Validate(); err != nil {
			return nil, fmt.Errorf("config %q: %w", name, err)
		}
	}

	return m.Configs, nil
}

// LoadProblems reads every planning problem in a directory.
//
// Description:
//
//	YAML files (.yaml, .yml) are parsed as self-contained ground
//	problems. PDDL problem files (.pddl) are grounded against the
//	domain.pddl file in the same directory. Files are processed in
//	lexical order so runs are reproducible.
//
// Inputs:
//
//	dir - Directory holding problem files.
//
// Outputs:
//
//	[]*pddl.Problem - The loaded problems, in file order.
//	error - Read, parse, or grounding failure, or an empty directory.
func LoadProblems(dir string) ([]*pddl.Problem, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read problem dir: %w", err)
	}

	var yamlFiles, pddlFiles []string
	domainPath := ""
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch strings.ToLower(filepath.Ext(name)) {
		case ".yaml", ".yml":
			yamlFiles = append(yamlFiles, name)
		case ".pddl":
			if strings.EqualFold(name, "domain.pddl") {
				domainPath = filepath.Join(dir, name)
			} else {
				pddlFiles = append(pddlFiles, name)
			}
		}
	}
	sort.Strings(yamlFiles)
	sort.Strings(pddlFiles)

	var problems []*pddl.Problem
	for _, name := range yamlFiles {
		p, err := pddl.LoadYAMLProblem(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		problems = append(problems, p)
	}

	if len(pddlFiles) > 0 {
		if domainPath == "" {
			return nil, fmt.Errorf("%s holds .pddl problems but no domain.pddl", dir)
		}
		for _, name := range pddlFiles {
			p, err := pddl.LoadProblem(domainPath, filepath.Join(dir, name))
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			problems = append(problems, p)
		}
	}

	if len(problems) == 0 {
		return nil, fmt.Errorf("no problems found in %s", dir)
	}
	return problems, nil
}

// Result is one row of a benchmark: one problem under one configuration.
type Result struct {
	// Problem is the problem name.
	Problem string `json:"problem"`

	// Config is the configuration name.
	Config string `json:"config"`

	// Solved reports whether a plan was found.
	Solved bool `json:"solved"`

	// PlanLength is the found plan's length, or -1 when unsolved.
	PlanLength int `json:"plan_length"`

	// Walks counts random walks the run started.
	Walks int64 `json:"walks"`

	// Steps counts actions applied across the run's walks.
	Steps int64 `json:"steps"`

	// Seconds is the run's wall time.
	Seconds float64 `json:"seconds"`

	// Error holds the failure reason for runs that errored ("timeout",
	// an unsupported-problem message). Empty for clean runs, including
	// clean runs that simply found no plan.
	Error string `json:"error,omitempty"`
}

// Report is a completed benchmark: the sweep inputs plus every row.
type Report struct {
	CreatedAt time.Time `json:"created_at"`
	Problems  []string  `json:"problems"`
	Configs   []string  `json:"configs"`
	Results   []Result  `json:"results"`
}

// ConfigSummary aggregates one configuration's rows.
type ConfigSummary struct {
	Config     string
	Solved     int
	Total      int
	AvgLength  float64
	AvgSeconds float64
	Walks      int64
}

// Runner executes benchmark sweeps.
//
// Thread Safety:
//
//	A Runner is safe for concurrent use; each Run builds its own engines.
type Runner struct {
	configs  []Config
	timeout  time.Duration
	workers  int
	seed     int64
	logger   *slog.Logger
	progress func(done, total int)
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithTimeout bounds each individual run. Zero means no per-run bound.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) { r.timeout = d }
}

// WithWorkers sets how many runs execute concurrently. Values below 1
// fall back to sequential execution.
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) { r.workers = n }
}

// WithSeed fixes the engine seed for every run, so each configuration
// faces the same walk sequence. Zero leaves seeding to the configs.
func WithSeed(seed int64) RunnerOption {
	return func(r *Runner) { r.seed = seed }
}

// WithLogger sets the runner logger. Nil is ignored.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithProgress installs a callback invoked after every completed run.
func WithProgress(f func(done, total int)) RunnerOption {
	return func(r *Runner) { r.progress = f }
}

// NewRunner creates a benchmark runner over the given configurations.
func NewRunner(configs []Config, opts ...RunnerOption) (*Runner, error) {
	if len(configs) == 0 {
		return nil, errors.New("bench: no configs")
	}
	for _, c := range configs {
		if c.Name == "" {
			return nil, errors.New("bench: config with empty name")
		}
		if err := c.Search.Validate(); err != nil {
			return nil, fmt.Errorf("bench: config %q: %w", c.Name, err)
		}
	}

	r := &Runner{
		configs: configs,
		workers: 1,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run executes the full sweep: every problem under every configuration.
//
// Description:
//
//	Runs fan out across the worker pool. Each run gets its own engine
//	and, when a timeout is set, its own deadline. Run failures are
//	recorded in their row; only cancellation of the parent context
//	aborts the sweep.
//
// Inputs:
//
//	ctx - Cancels the whole sweep.
//	problems - Problems to solve under each configuration.
//
// Outputs:
//
//	*Report - One row per (problem, config) pair, in sweep order.
//	error - Non-nil only when ctx was cancelled or no problems given.
func (r *Runner) Run(ctx context.Context, problems []*pddl.Problem) (*Report, error) {
	if len(problems) == 0 {
		return nil, errors.New("bench: no problems")
	}

	total := len(problems) * len(r.configs)
	results := make([]Result, total)
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.workers, 1))

	start := time.Now()
	r.logger.Info("Benchmark sweep starting",
		"problems", len(problems),
		"configs", len(r.configs),
		"runs", total,
		"workers", max(r.workers, 1))

	for pi, problem := range problems {
		for ci, cfg := range r.configs {
			idx := pi*len(r.configs) + ci
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[idx] = r.runOne(gctx, problem, cfg)
				n := int(done.Add(1))
				if r.progress != nil {
					r.progress(n, total)
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{
		CreatedAt: time.Now().UTC(),
		Problems:  make([]string, len(problems)),
		Configs:   make([]string, len(r.configs)),
		Results:   results,
	}
	for i, p := range problems {
		report.Problems[i] = p.Name
	}
	for i, c := range r.configs {
		report.Configs[i] = c.Name
	}

	r.logger.Info("Benchmark sweep finished",
		"runs", total,
		"elapsed", time.Since(start))
	return report, nil
}

// runOne executes one (problem, config) pair and always produces a row.
func (r *Runner) runOne(ctx context.Context, problem *pddl.Problem, cfg Config) Result {
	row := Result{
		Problem:    problem.Name,
		Config:     cfg.Name,
		PlanLength: -1,
	}

	engineOpts := []mrw.EngineOption{mrw.WithLogger(r.logger)}
	if r.seed != 0 {
		engineOpts = append(engineOpts, mrw.WithSeed(r.seed))
	}
	engine, err := mrw.NewEngine(cfg.Search, engineOpts...)
	if err != nil {
		row.Error = err.Error()
		return row
	}

	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	var result *mrw.SolveResult
	if cfg.Search.Parallel.Enabled {
		result, err = mrw.NewParallelEngine(engine).Solve(runCtx, problem)
	} else {
		result, err = engine.Solve(runCtx, problem)
	}
	row.Seconds = time.Since(start).Seconds()

	if result != nil {
		row.Walks = result.Stats.WalksStarted
		row.Steps = result.Stats.StepsTaken
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			row.Error = "timeout"
		} else {
			row.Error = err.Error()
		}
		return row
	}

	row.Solved = result.Found
	if result.Found {
		row.PlanLength = result.Stats.BestLength
	}
	return row
}

// WriteJSON writes the report to path as indented JSON.
func (rep *Report) WriteJSON(path string) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// Summaries aggregates the rows per configuration, in sweep order.
func (rep *Report) Summaries() []ConfigSummary {
	byConfig := make(map[string]*ConfigSummary, len(rep.Configs))
	order := make([]*ConfigSummary, 0, len(rep.Configs))
	for _, name := range rep.Configs {
		s := &ConfigSummary{Config: name}
		byConfig[name] = s
		order = append(order, s)
	}

	lengthSums := make(map[string]int, len(rep.Configs))
	secondSums := make(map[string]float64, len(rep.Configs))
	for _, row := range rep.Results {
		s, ok := byConfig[row.Config]
		if !ok {
			continue
		}
		s.Total++
		s.Walks += row.Walks
		secondSums[row.Config] += row.Seconds
		if row.Solved {
			s.Solved++
			lengthSums[row.Config] += row.PlanLength
		}
	}

	out := make([]ConfigSummary, 0, len(order))
	for _, s := range order {
		if s.Solved > 0 {
			s.AvgLength = float64(lengthSums[s.Config]) / float64(s.Solved)
		}
		if s.Total > 0 {
			s.AvgSeconds = secondSums[s.Config] / float64(s.Total)
		}
		out = append(out, *s)
	}
	return out
}

// TableData renders the per-config summaries as table cells.
func (rep *Report) TableData() ([]string, [][]string) {
	headers := []string{"config", "solved", "avg length", "avg time", "walks"}
	summaries := rep.Summaries()
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		avgLength := "-"
		if s.Solved > 0 {
			avgLength = fmt.Sprintf("%.1f", s.AvgLength)
		}
		rows = append(rows, []string{
			s.Config,
			fmt.Sprintf("%d/%d", s.Solved, s.Total),
			avgLength,
			fmt.Sprintf("%.3fs", s.AvgSeconds),
			fmt.Sprintf("%d", s.Walks),
		})
	}
	return headers, rows
}

// PrintTable prints the comparison table to the terminal.
func (rep *Report) PrintTable() {
	headers, rows := rep.TableData()
	ux.Table(headers, rows)
}
