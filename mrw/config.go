// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mrw

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// SearchConfig contains all random-walk search configuration.
// This is the top-level config struct that can be loaded from files/env.
//
// Thread Safety: Safe to read concurrently. Not safe to modify after creation.
type SearchConfig struct {
	// Budget contains resource limit settings.
	Budget BudgetConfig `json:"budget" yaml:"budget"`

	// Walk contains per-walk settings.
	Walk WalkConfig `json:"walk" yaml:"walk"`

	// Parallel contains parallel execution settings.
	Parallel ParallelConfig `json:"parallel" yaml:"parallel"`

	// Observability contains observability settings.
	Observability ObservabilityConfig `json:"observability" yaml:"observability"`
}

// BudgetConfig contains budget-related settings.
type BudgetConfig struct {
	// Walks is the maximum number of random walks per solve. Zero walks
	// is legal and simply reports no plan found.
	Walks int `json:"walks" yaml:"walks"`

	// TimeLimit bounds the whole solve; zero means no time limit.
	TimeLimit time.Duration `json:"time_limit" yaml:"time_limit"`
}

// WalkConfig contains per-walk settings.
type WalkConfig struct {
	// MaxLength caps the steps of one walk. Zero still performs the
	// initial goal check, so a goal-satisfying initial state yields the
	// empty plan.
	MaxLength int `json:"max_length" yaml:"max_length"`

	// TargetPlanLength stops the search early once a plan at or under
	// this length has been found. Zero keeps searching for the full
	// budget (only a length-0 plan can match).
	TargetPlanLength int `json:"target_plan_length" yaml:"target_plan_length"`

	// DeadlockAvoidance filters actions whose successor state was
	// already visited in the current walk.
	DeadlockAvoidance bool `json:"deadlock_avoidance" yaml:"deadlock_avoidance"`

	// HelpfulActions biases selection toward actions with a conditional
	// effect aimed at the goal's positive fluents.
	HelpfulActions bool `json:"helpful_actions" yaml:"helpful_actions"`

	// Seed fixes the RNG; zero seeds from the clock at engine creation.
	Seed int64 `json:"seed" yaml:"seed"`
}

// ParallelConfig contains parallel execution settings.
type ParallelConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Workers int  `json:"workers" yaml:"workers"`
}

// ObservabilityConfig contains observability settings.
type ObservabilityConfig struct {
	TracingEnabled bool   `json:"tracing_enabled" yaml:"tracing_enabled"`
	LogLevel       string `json:"log_level" yaml:"log_level"`
	ServiceName    string `json:"service_name" yaml:"service_name"`
}

// DefaultSearchConfig returns the default configuration.
//
// Outputs:
//   - SearchConfig: Default configuration with sensible values.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		Budget: BudgetConfig{
			Walks:     1000,
			TimeLimit: 0,
		},
		Walk: WalkConfig{
			MaxLength:         100,
			TargetPlanLength:  10,
			DeadlockAvoidance: false,
			HelpfulActions:    false,
			Seed:              0,
		},
		Parallel: ParallelConfig{
			Enabled: false, // Off by default
			Workers: 4,
		},
		Observability: ObservabilityConfig{
			TracingEnabled: false,
			LogLevel:       "info",
			ServiceName:    "aleutian-plan",
		},
	}
}

// LoadSearchConfig loads configuration with priority: env > file > defaults.
//
// Inputs:
//   - configPath: Path to YAML/JSON config file (optional, can be empty).
//
// Outputs:
//   - SearchConfig: Merged configuration.
//   - error: Non-nil if file exists but is invalid.
func LoadSearchConfig(configPath string) (SearchConfig, error) {
	// Start with defaults
	config := DefaultSearchConfig()

	// Load from file if specified
	if configPath != "" {
		if err := loadConfigFile(configPath, &config); err != nil {
			return config, fmt.Errorf("load config file: %w", err)
		}
	}

	// Override from environment variables
	loadConfigFromEnv(&config)

	// Validate
	if err := config.Validate(); err != nil {
		return config, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

func loadConfigFile(path string, config *SearchConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File doesn't exist, use defaults
		}
		return err
	}

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, config); err != nil {
		if jsonErr := json.Unmarshal(data, config); jsonErr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): YAML error: %v, JSON error: %w", err, jsonErr)
		}
	}

	return nil
}

func loadConfigFromEnv(config *SearchConfig) {
	// Budget
	if v := os.Getenv("MRW_WALKS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			config.Budget.Walks = i
		}
	}
	if v := os.Getenv("MRW_TIME_LIMIT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Budget.TimeLimit = d
		}
	}

	// Walk
	if v := os.Getenv("MRW_MAX_WALK_LENGTH"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			config.Walk.MaxLength = i
		}
	}
	if v := os.Getenv("MRW_TARGET_PLAN_LENGTH"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			config.Walk.TargetPlanLength = i
		}
	}
	if v := os.Getenv("MRW_DEADLOCK_AVOIDANCE"); v != "" {
		config.Walk.DeadlockAvoidance = v == "true" || v == "1"
	}
	if v := os.Getenv("MRW_HELPFUL_ACTIONS"); v != "" {
		config.Walk.HelpfulActions = v == "true" || v == "1"
	}
	if v := os.Getenv("MRW_SEED"); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Walk.Seed = i
		}
	}

	// Parallel
	if v := os.Getenv("MRW_PARALLEL_ENABLED"); v != "" {
		config.Parallel.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("MRW_WORKERS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			config.Parallel.Workers = i
		}
	}

	// Observability
	if v := os.Getenv("MRW_TRACING_ENABLED"); v != "" {
		config.Observability.TracingEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("MRW_LOG_LEVEL"); v != "" {
		config.Observability.LogLevel = v
	}
}

// Validate checks that the configuration is valid.
//
// Zero is a meaningful value for Walks, MaxLength, TargetPlanLength, and
// TimeLimit, so only negatives are rejected.
//
// Outputs:
//   - error: Non-nil if configuration is invalid.
func (c SearchConfig) Validate() error {
	if c.Budget.Walks < 0 {
		return fmt.Errorf("%w: walks must be >= 0", ErrInvalidConfig)
	}
	if c.Budget.TimeLimit < 0 {
		return fmt.Errorf("%w: time_limit must be >= 0", ErrInvalidConfig)
	}
	if c.Walk.MaxLength < 0 {
		return fmt.Errorf("%w: max_length must be >= 0", ErrInvalidConfig)
	}
	if c.Walk.TargetPlanLength < 0 {
		return fmt.Errorf("%w: target_plan_length must be >= 0", ErrInvalidConfig)
	}
	if c.Parallel.Enabled && c.Parallel.Workers < 1 {
		return fmt.Errorf("%w: workers must be >= 1 when parallel is enabled", ErrInvalidConfig)
	}
	return nil
}
