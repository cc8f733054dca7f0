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
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadYAMLProblem(t *testing.T) {
	p, err := LoadYAMLProblem(filepath.Join("testdata", "two-rooms.yaml"))
	if err != nil {
		t.Fatalf("LoadYAMLProblem: %v", err)
	}

	if p.Name != "two-rooms" {
		t.Errorf("name = %q", p.Name)
	}
	if len(p.Actions) != 2 {
		t.Fatalf("actions = %d, want 2", len(p.Actions))
	}

	move := p.ActionByName("move-a-b")
	if move == nil {
		t.Fatal("missing action move-a-b")
	}
	goalState := p.Init.Apply(move)
	if !goalState.Satisfies(p.Goal) {
		t.Error("move-a-b should reach the goal from init")
	}
}

func TestParseYAMLProblemConditionalEffect(t *testing.T) {
	doc := `
name: heater
init: [cold, powered]
goal:
  pos: [warm]
actions:
  - name: heat
    pre: {pos: [powered]}
    effects:
      - when: {pos: [cold]}
        add: [warm]
        del: [cold]
`
	p, err := ParseYAMLProblem([]byte(doc))
	if err != nil {
		t.Fatalf("ParseYAMLProblem: %v", err)
	}
	heat := p.ActionByName("heat")
	if heat == nil {
		t.Fatal("missing action heat")
	}
	if len(heat.Effects) != 1 || heat.Effects[0].Guard.IsEmpty() {
		t.Errorf("heat should carry one guarded effect, got %+v", heat.Effects)
	}

	next := p.Init.Apply(heat)
	if !next.Satisfies(p.Goal) {
		t.Error("heating a cold room should reach the goal")
	}
}

func TestParseYAMLProblemErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			"not yaml",
			"::\nnot yaml {",
			"decoding problem",
		},
		{
			"missing action name",
			"init: [p]\ngoal: {pos: [q]}\nactions:\n  - effects:\n      - add: [q]\n",
			"missing name",
		},
		{
			"no effects",
			"init: [p]\ngoal: {pos: [q]}\nactions:\n  - name: a\n",
			"no effects",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseYAMLProblem([]byte(tt.doc))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}
