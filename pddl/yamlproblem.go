// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pddl

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// YAMLProblem is the ground-problem YAML format: no variables, no
// grounding, just facts and actions as the engine consumes them. It is
// the native format of the HTTP API and the test fixtures.
//
// Example:
//
//	name: two-rooms
//	init: [at-a]
//	goal:
//	  pos: [at-b]
//	actions:
//	  - name: move-a-b
//	    pre: {pos: [at-a]}
//	    effects:
//	      - add: [at-b]
//	        del: [at-a]
type YAMLProblem struct {
	Name         string        `yaml:"name" json:"name"`
	Domain       string        `yaml:"domain,omitempty" json:"domain,omitempty"`
	Requirements []string      `yaml:"requirements,omitempty" json:"requirements,omitempty"`
	Init         []string      `yaml:"init" json:"init"`
	Goal         YAMLCondition `yaml:"goal" json:"goal"`
	Actions      []YAMLAction  `yaml:"actions" json:"actions"`
}

// YAMLCondition is a conjunction of positive and negative atoms.
type YAMLCondition struct {
	Pos []string `yaml:"pos,omitempty" json:"pos,omitempty"`
	Neg []string `yaml:"neg,omitempty" json:"neg,omitempty"`
}

// YAMLAction is one ground action.
type YAMLAction struct {
	Name    string        `yaml:"name" json:"name"`
	Pre     YAMLCondition `yaml:"pre,omitempty" json:"pre,omitempty"`
	Effects []YAMLEffect  `yaml:"effects" json:"effects"`
}

// YAMLEffect is one effect clause; When is the optional guard.
type YAMLEffect struct {
	When YAMLCondition `yaml:"when,omitempty" json:"when,omitempty"`
	Add  []string      `yaml:"add,omitempty" json:"add,omitempty"`
	Del  []string      `yaml:"del,omitempty" json:"del,omitempty"`
}

// ToProblem materializes the YAML document into a ground Problem.
func (y *YAMLProblem) ToProblem() (*Problem, error) {
	name := y.Name
	if name == "" {
		name = "problem"
	}
	b := NewProblemBuilder(name).Domain(y.Domain)
	for _, r := range y.Requirements {
		b.Require(Requirement(r))
	}
	b.Init(y.Init...)
	b.Goal(y.Goal.Pos, y.Goal.Neg)
	for i, a := range y.Actions {
		if a.Name == "" {
			return nil, fmt.Errorf("action %d: missing name", i)
		}
		ab := b.Action(a.Name).Pre(a.Pre.Pos, a.Pre.Neg)
		if len(a.Effects) == 0 {
			return nil, fmt.Errorf("action %s: no effects", a.Name)
		}
		for _, e := range a.Effects {
			ab.When(e.When.Pos, e.When.Neg, e.Add, e.Del)
		}
	}
	return b.Build()
}

// ParseYAMLProblem decodes and materializes a ground-problem YAML document.
func ParseYAMLProblem(data []byte) (*Problem, error) {
	var y YAMLProblem
	if err := yaml.Unmarshal(data, &y); err != nil {
		return nil, fmt.Errorf("decoding problem: %w", err)
	}
	return y.ToProblem()
}

// LoadYAMLProblem reads and materializes a ground-problem YAML file.
func LoadYAMLProblem(path string) (*Problem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := ParseYAMLProblem(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}
