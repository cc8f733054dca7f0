// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/AleutianPlan/pddl"
)

// Request size limits. JSON binding checks shape; these bound the work a
// single request can queue before grounding and search run.
const (
	// MaxNameBytes is the maximum byte length of any single name or atom
	// in a request. Byte length, not rune count.
	MaxNameBytes = 256

	// MaxProblemAtoms is the maximum total atom occurrences in a problem:
	// init, goal, preconditions, and effects combined. Action names count
	// toward the total so a problem of empty actions is still bounded.
	MaxProblemAtoms = 100_000

	// MaxPlanActions is the maximum plan length accepted for validation.
	MaxPlanActions = 10_000
)

// requestValidate is the validator instance for request payloads.
// Initialized in init() with custom validators.
var requestValidate *validator.Validate

func init() {
	requestValidate = validator.New()

	_ = requestValidate.RegisterValidation("namebytes", validateNameBytes)
}

// validateNameBytes reports whether a string field fits MaxNameBytes.
func validateNameBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxNameBytes
}

// Validate enforces the size limits JSON binding cannot express.
func (r *SolveRequest) Validate() error {
	return checkProblemSize(&r.Problem)
}

// Validate enforces the size limits plus the plan length cap.
func (r *ValidateRequest) Validate() error {
	if len(r.Plan) > MaxPlanActions {
		return fmt.Errorf("plan has %d actions, limit is %d", len(r.Plan), MaxPlanActions)
	}
	for _, step := range r.Plan {
		if err := checkAtom("plan action", step); err != nil {
			return err
		}
	}
	return checkProblemSize(&r.Problem)
}

// checkProblemSize walks every name and atom in the problem, bounding
// individual name sizes and the total atom count.
func checkProblemSize(p *pddl.YAMLProblem) error {
	if err := checkLabel("problem name", p.Name); err != nil {
		return err
	}
	if err := checkLabel("domain name", p.Domain); err != nil {
		return err
	}
	for _, r := range p.Requirements {
		if err := checkLabel("requirement", r); err != nil {
			return err
		}
	}

	atoms := 0
	count := func(kind string, names []string) error {
		atoms += len(names)
		if atoms > MaxProblemAtoms {
			return fmt.Errorf("problem exceeds %d atoms", MaxProblemAtoms)
		}
		for _, n := range names {
			if err := checkAtom(kind, n); err != nil {
				return err
			}
		}
		return nil
	}

	if err := count("init atom", p.Init); err != nil {
		return err
	}
	if err := count("goal atom", p.Goal.Pos); err != nil {
		return err
	}
	if err := count("goal atom", p.Goal.Neg); err != nil {
		return err
	}
	for _, a := range p.Actions {
		if err := checkAtom("action name", a.Name); err != nil {
			return err
		}
		atoms++
		if atoms > MaxProblemAtoms {
			return fmt.Errorf("problem exceeds %d atoms", MaxProblemAtoms)
		}
		if err := count("precondition atom", a.Pre.Pos); err != nil {
			return err
		}
		if err := count("precondition atom", a.Pre.Neg); err != nil {
			return err
		}
		for _, e := range a.Effects {
			if err := count("effect condition atom", e.When.Pos); err != nil {
				return err
			}
			if err := count("effect condition atom", e.When.Neg); err != nil {
				return err
			}
			if err := count("effect atom", e.Add); err != nil {
				return err
			}
			if err := count("effect atom", e.Del); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkAtom rejects empty names and names over MaxNameBytes.
func checkAtom(kind, name string) error {
	if err := requestValidate.Var(name, "required,namebytes"); err != nil {
		return fmt.Errorf("%s %q: empty or longer than %d bytes", kind, clip(name), MaxNameBytes)
	}
	return nil
}

// checkLabel is checkAtom for optional fields: empty passes.
func checkLabel(kind, name string) error {
	if err := requestValidate.Var(name, "namebytes"); err != nil {
		return fmt.Errorf("%s %q: longer than %d bytes", kind, clip(name), MaxNameBytes)
	}
	return nil
}

// clip truncates a name for error messages so oversized input does not
// echo back in full.
func clip(name string) string {
	const keep = 32
	if len(name) <= keep {
		return name
	}
	return name[:keep] + "..."
}
