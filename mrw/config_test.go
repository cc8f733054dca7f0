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
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultSearchConfig(t *testing.T) {
	config := DefaultSearchConfig()

	if config.Budget.Walks != 1000 {
		t.Errorf("Budget.Walks = %d, want 1000", config.Budget.Walks)
	}
	if config.Budget.TimeLimit != 0 {
		t.Errorf("Budget.TimeLimit = %v, want 0", config.Budget.TimeLimit)
	}
	if config.Walk.MaxLength != 100 {
		t.Errorf("Walk.MaxLength = %d, want 100", config.Walk.MaxLength)
	}
	if config.Walk.TargetPlanLength != 10 {
		t.Errorf("Walk.TargetPlanLength = %d, want 10", config.Walk.TargetPlanLength)
	}
	if config.Walk.DeadlockAvoidance {
		t.Error("Walk.DeadlockAvoidance should default to false")
	}
	if config.Walk.HelpfulActions {
		t.Error("Walk.HelpfulActions should default to false")
	}
	if config.Parallel.Enabled {
		t.Error("Parallel.Enabled should default to false")
	}
	if config.Parallel.Workers != 4 {
		t.Errorf("Parallel.Workers = %d, want 4", config.Parallel.Workers)
	}
	if config.Observability.LogLevel != "info" {
		t.Errorf("Observability.LogLevel = %s, want info", config.Observability.LogLevel)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestSearchConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SearchConfig)
		wantErr bool
	}{
		{
			name:   "defaults",
			mutate: func(c *SearchConfig) {},
		},
		{
			name:   "zero walks is legal",
			mutate: func(c *SearchConfig) { c.Budget.Walks = 0 },
		},
		{
			name:   "zero max length is legal",
			mutate: func(c *SearchConfig) { c.Walk.MaxLength = 0 },
		},
		{
			name:   "zero target length is legal",
			mutate: func(c *SearchConfig) { c.Walk.TargetPlanLength = 0 },
		},
		{
			name:    "negative walks",
			mutate:  func(c *SearchConfig) { c.Budget.Walks = -1 },
			wantErr: true,
		},
		{
			name:    "negative time limit",
			mutate:  func(c *SearchConfig) { c.Budget.TimeLimit = -time.Second },
			wantErr: true,
		},
		{
			name:    "negative max length",
			mutate:  func(c *SearchConfig) { c.Walk.MaxLength = -5 },
			wantErr: true,
		},
		{
			name:    "negative target length",
			mutate:  func(c *SearchConfig) { c.Walk.TargetPlanLength = -1 },
			wantErr: true,
		},
		{
			name: "parallel without workers",
			mutate: func(c *SearchConfig) {
				c.Parallel.Enabled = true
				c.Parallel.Workers = 0
			},
			wantErr: true,
		},
		{
			name: "parallel off ignores workers",
			mutate: func(c *SearchConfig) {
				c.Parallel.Enabled = false
				c.Parallel.Workers = 0
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultSearchConfig()
			tt.mutate(&config)

			err := config.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadSearchConfig_FromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
budget:
  walks: 250
  time_limit: 30s

walk:
  max_length: 60
  target_plan_length: 4
  deadlock_avoidance: true
  seed: 7
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	config, err := LoadSearchConfig(configPath)
	if err != nil {
		t.Fatalf("LoadSearchConfig() error = %v", err)
	}

	if config.Budget.Walks != 250 {
		t.Errorf("Budget.Walks = %d, want 250", config.Budget.Walks)
	}
	if config.Budget.TimeLimit != 30*time.Second {
		t.Errorf("Budget.TimeLimit = %v, want 30s", config.Budget.TimeLimit)
	}
	if config.Walk.MaxLength != 60 {
		t.Errorf("Walk.MaxLength = %d, want 60", config.Walk.MaxLength)
	}
	if config.Walk.TargetPlanLength != 4 {
		t.Errorf("Walk.TargetPlanLength = %d, want 4", config.Walk.TargetPlanLength)
	}
	if !config.Walk.DeadlockAvoidance {
		t.Error("Walk.DeadlockAvoidance should be true")
	}
	if config.Walk.Seed != 7 {
		t.Errorf("Walk.Seed = %d, want 7", config.Walk.Seed)
	}
	// Untouched sections keep defaults.
	if config.Parallel.Workers != 4 {
		t.Errorf("Parallel.Workers = %d, want default 4", config.Parallel.Workers)
	}
}

func TestLoadSearchConfig_FromJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	jsonContent := `{
  "budget": {
    "walks": 64
  },
  "parallel": {
    "enabled": true,
    "workers": 8
  }
}`

	if err := os.WriteFile(configPath, []byte(jsonContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	config, err := LoadSearchConfig(configPath)
	if err != nil {
		t.Fatalf("LoadSearchConfig() error = %v", err)
	}

	if config.Budget.Walks != 64 {
		t.Errorf("Budget.Walks = %d, want 64", config.Budget.Walks)
	}
	if !config.Parallel.Enabled {
		t.Error("Parallel.Enabled should be true")
	}
	if config.Parallel.Workers != 8 {
		t.Errorf("Parallel.Workers = %d, want 8", config.Parallel.Workers)
	}
}

func TestLoadSearchConfig_EnvOverrides(t *testing.T) {
	// Save and restore env vars
	oldVars := map[string]string{
		"MRW_WALKS":              os.Getenv("MRW_WALKS"),
		"MRW_MAX_WALK_LENGTH":    os.Getenv("MRW_MAX_WALK_LENGTH"),
		"MRW_DEADLOCK_AVOIDANCE": os.Getenv("MRW_DEADLOCK_AVOIDANCE"),
		"MRW_HELPFUL_ACTIONS":    os.Getenv("MRW_HELPFUL_ACTIONS"),
		"MRW_SEED":               os.Getenv("MRW_SEED"),
		"MRW_LOG_LEVEL":          os.Getenv("MRW_LOG_LEVEL"),
	}
	defer func() {
		for k, v := range oldVars {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	os.Setenv("MRW_WALKS", "77")
	os.Setenv("MRW_MAX_WALK_LENGTH", "33")
	os.Setenv("MRW_DEADLOCK_AVOIDANCE", "1")
	os.Setenv("MRW_HELPFUL_ACTIONS", "true")
	os.Setenv("MRW_SEED", "12345")
	os.Setenv("MRW_LOG_LEVEL", "warn")

	config, err := LoadSearchConfig("")
	if err != nil {
		t.Fatalf("LoadSearchConfig() error = %v", err)
	}

	if config.Budget.Walks != 77 {
		t.Errorf("Budget.Walks = %d, want 77", config.Budget.Walks)
	}
	if config.Walk.MaxLength != 33 {
		t.Errorf("Walk.MaxLength = %d, want 33", config.Walk.MaxLength)
	}
	if !config.Walk.DeadlockAvoidance {
		t.Error("Walk.DeadlockAvoidance should be true from env")
	}
	if !config.Walk.HelpfulActions {
		t.Error("Walk.HelpfulActions should be true from env")
	}
	if config.Walk.Seed != 12345 {
		t.Errorf("Walk.Seed = %d, want 12345", config.Walk.Seed)
	}
	if config.Observability.LogLevel != "warn" {
		t.Errorf("Observability.LogLevel = %s, want warn", config.Observability.LogLevel)
	}
}

func TestLoadSearchConfig_MissingFile(t *testing.T) {
	// Non-existent file should return defaults
	config, err := LoadSearchConfig("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("LoadSearchConfig() should not error for missing file: %v", err)
	}

	if config.Budget.Walks != 1000 {
		t.Errorf("Should return default Walks=1000, got %d", config.Budget.Walks)
	}
}

func TestLoadSearchConfig_InvalidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("not: valid: yaml: content:::"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := LoadSearchConfig(configPath)
	if err == nil {
		t.Error("LoadSearchConfig() should error for invalid file")
	}
}

func TestLoadSearchConfig_FileRejectedByValidation(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("budget:\n  walks: -3\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := LoadSearchConfig(configPath)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
