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
	"context"
	"testing"

	"github.com/AleutianAI/AleutianPlan/eval"
	"github.com/AleutianAI/AleutianPlan/eval/correctness"
)

func TestEngine_RegisteredForEvaluation(t *testing.T) {
	component, err := eval.Get("mrw_engine")
	if err != nil {
		t.Fatalf("engine should self-register: %v", err)
	}
	if component.Name() != "mrw_engine" {
		t.Errorf("Name() = %s, want mrw_engine", component.Name())
	}
	if len(component.Properties()) == 0 {
		t.Error("engine should declare properties")
	}
	if len(component.Metrics()) == 0 {
		t.Error("engine should declare metrics")
	}
}

func TestEngine_PropertiesAreValid(t *testing.T) {
	engine, err := NewEngine(DefaultSearchConfig())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	for _, prop := range engine.Properties() {
		if err := prop.Validate(); err != nil {
			t.Errorf("property %s invalid: %v", prop.Name, err)
		}
		if !prop.HasGenerator() {
			t.Errorf("property %s has no generator", prop.Name)
		}
	}
}

func TestEngine_MetricDefinitionsAreValid(t *testing.T) {
	engine, err := NewEngine(DefaultSearchConfig())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	for _, def := range engine.Metrics() {
		if err := def.Validate(); err != nil {
			t.Errorf("metric %s invalid: %v", def.Name, err)
		}
	}
}

func TestEngine_PropertiesHoldUnderVerification(t *testing.T) {
	if testing.Short() {
		t.Skip("runs many solves")
	}

	verifier := correctness.NewVerifier(nil)
	result, err := verifier.Verify(context.Background(), "mrw_engine",
		correctness.WithIterations(3))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if !result.Passed {
		for _, name := range result.FailedProperties() {
			t.Errorf("property failed: %s", name)
		}
		for _, prop := range result.Properties {
			if !prop.Passed && prop.Error != nil {
				t.Logf("%s: %v (input %v)", prop.Name, prop.Error, prop.FailingInput)
			}
		}
	}
}

func TestEngine_HealthCheck(t *testing.T) {
	engine, err := NewEngine(DefaultSearchConfig())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	if err := engine.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	if err := engine.HealthCheck(nil); err == nil { //nolint:staticcheck
		t.Error("nil context should fail the health check")
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if err := engine.HealthCheck(cancelled); err == nil {
		t.Error("cancelled context should fail the health check")
	}
}
