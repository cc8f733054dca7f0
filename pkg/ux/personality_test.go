// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"os"
	"sync"
	"testing"
)

// =============================================================================
// Get / Set Tests
// =============================================================================

func TestSetPersonality_AndGet(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	p := Personality{
		Level: PersonalityMinimal,
		Theme: "dark",
	}
	SetPersonality(p)

	got := GetPersonality()
	if got.Level != PersonalityMinimal {
		t.Errorf("Level = %v, want PersonalityMinimal", got.Level)
	}
	if got.Theme != "dark" {
		t.Errorf("Theme = %v, want dark", got.Theme)
	}
}

func TestSetPersonalityLevel_Full(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityFull)
	if GetPersonality().Level != PersonalityFull {
		t.Error("expected PersonalityFull")
	}
}

func TestSetPersonalityLevel_Standard(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityStandard)
	if GetPersonality().Level != PersonalityStandard {
		t.Error("expected PersonalityStandard")
	}
}

func TestSetPersonalityLevel_Minimal(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityMinimal)
	if GetPersonality().Level != PersonalityMinimal {
		t.Error("expected PersonalityMinimal")
	}
}

func TestSetPersonalityLevel_Machine(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityMachine)
	if GetPersonality().Level != PersonalityMachine {
		t.Error("expected PersonalityMachine")
	}
}

// =============================================================================
// ParsePersonalityLevel Tests
// =============================================================================

func TestParsePersonalityLevel_Full(t *testing.T) {
	for _, s := range []string{"full", "FULL", "f"} {
		if got := ParsePersonalityLevel(s); got != PersonalityFull {
			t.Errorf("ParsePersonalityLevel(%q) = %v, want PersonalityFull", s, got)
		}
	}
}

func TestParsePersonalityLevel_Standard(t *testing.T) {
	for _, s := range []string{"standard", "std", "s"} {
		if got := ParsePersonalityLevel(s); got != PersonalityStandard {
			t.Errorf("ParsePersonalityLevel(%q) = %v, want PersonalityStandard", s, got)
		}
	}
}

func TestParsePersonalityLevel_Minimal(t *testing.T) {
	for _, s := range []string{"minimal", "min", "m"} {
		if got := ParsePersonalityLevel(s); got != PersonalityMinimal {
			t.Errorf("ParsePersonalityLevel(%q) = %v, want PersonalityMinimal", s, got)
		}
	}
}

func TestParsePersonalityLevel_Machine(t *testing.T) {
	for _, s := range []string{"machine", "quiet", "q"} {
		if got := ParsePersonalityLevel(s); got != PersonalityMachine {
			t.Errorf("ParsePersonalityLevel(%q) = %v, want PersonalityMachine", s, got)
		}
	}
}

func TestParsePersonalityLevel_Default(t *testing.T) {
	// Unknown strings fall back to standard
	for _, s := range []string{"", "bogus", "verbose"} {
		if got := ParsePersonalityLevel(s); got != PersonalityStandard {
			t.Errorf("ParsePersonalityLevel(%q) = %v, want PersonalityStandard", s, got)
		}
	}
}

// =============================================================================
// InitPersonality Tests
// =============================================================================

func TestInitPersonality_WithEnvVar(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	oldEnv := os.Getenv("ALEUTIANPLAN_PERSONALITY")
	defer func() {
		if oldEnv == "" {
			os.Unsetenv("ALEUTIANPLAN_PERSONALITY")
		} else {
			os.Setenv("ALEUTIANPLAN_PERSONALITY", oldEnv)
		}
	}()

	os.Setenv("ALEUTIANPLAN_PERSONALITY", "minimal")
	InitPersonality()

	if GetPersonality().Level != PersonalityMinimal {
		t.Errorf("Level = %v, want PersonalityMinimal", GetPersonality().Level)
	}
}

func TestInitPersonality_WithEnvVar_Machine(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	oldEnv := os.Getenv("ALEUTIANPLAN_PERSONALITY")
	defer func() {
		if oldEnv == "" {
			os.Unsetenv("ALEUTIANPLAN_PERSONALITY")
		} else {
			os.Setenv("ALEUTIANPLAN_PERSONALITY", oldEnv)
		}
	}()

	os.Setenv("ALEUTIANPLAN_PERSONALITY", "machine")
	InitPersonality()

	if GetPersonality().Level != PersonalityMachine {
		t.Errorf("Level = %v, want PersonalityMachine", GetPersonality().Level)
	}
}

func TestInitPersonality_NoEnvVar(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	oldEnv := os.Getenv("ALEUTIANPLAN_PERSONALITY")
	os.Unsetenv("ALEUTIANPLAN_PERSONALITY")
	defer func() {
		if oldEnv != "" {
			os.Setenv("ALEUTIANPLAN_PERSONALITY", oldEnv)
		}
	}()

	InitPersonality()

	// Without the env var the level depends on whether stdout is a
	// terminal: machine when piped, full when interactive.
	got := GetPersonality().Level
	if isTerminal() {
		if got != PersonalityFull {
			t.Errorf("Level = %v, want PersonalityFull on a terminal", got)
		}
	} else {
		if got != PersonalityMachine {
			t.Errorf("Level = %v, want PersonalityMachine when piped", got)
		}
	}
}

// =============================================================================
// Terminal / Interactivity Tests
// =============================================================================

func TestIsTerminal(t *testing.T) {
	// Just verify it doesn't panic; the result depends on the test runner
	_ = isTerminal()
}

func TestIsInteractive_MachineMode(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityMachine)
	if IsInteractive() {
		t.Error("machine mode should never be interactive")
	}
}

func TestIsInteractive_FullMode(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityFull)
	if IsInteractive() != isTerminal() {
		t.Error("full mode interactivity should track terminal state")
	}
}

func TestShouldShowProgress_MachineMode(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityMachine)
	if ShouldShowProgress() {
		t.Error("machine mode should not show progress")
	}
}

func TestShouldShowProgress_FullMode(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityFull)
	if !ShouldShowProgress() {
		t.Error("full mode should show progress")
	}
}

func TestShouldShowProgress_MinimalMode(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityMinimal)
	if !ShouldShowProgress() {
		t.Error("minimal mode should show progress")
	}
}

func TestShouldShowColors_MachineMode(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityMachine)
	if ShouldShowColors() {
		t.Error("machine mode should not use colors")
	}
}

func TestShouldShowColors_FullMode(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityFull)
	if !ShouldShowColors() {
		t.Error("full mode should use colors")
	}
}

// =============================================================================
// Defaults Tests
// =============================================================================

func TestDefaultPersonality(t *testing.T) {
	p := DefaultPersonality()
	if p.Level != PersonalityFull {
		t.Errorf("Level = %v, want PersonalityFull", p.Level)
	}
	if p.Theme != "default" {
		t.Errorf("Theme = %v, want default", p.Theme)
	}
}

func TestPersonalityLevel_Values(t *testing.T) {
	if PersonalityFull != "full" {
		t.Error("PersonalityFull should be 'full'")
	}
	if PersonalityStandard != "standard" {
		t.Error("PersonalityStandard should be 'standard'")
	}
	if PersonalityMinimal != "minimal" {
		t.Error("PersonalityMinimal should be 'minimal'")
	}
	if PersonalityMachine != "machine" {
		t.Error("PersonalityMachine should be 'machine'")
	}
}

func TestPersonality_ConcurrentAccess(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if n%2 == 0 {
				SetPersonalityLevel(PersonalityFull)
			} else {
				_ = GetPersonality()
			}
		}(i)
	}
	wg.Wait()
}
