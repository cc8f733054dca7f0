// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided identifiers that are used
// in file paths, storage keys, or log output. Using these validators prevents
// path traversal and injection through crafted problem or action names.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// namePattern matches valid planning identifiers.
// Allows: lowercase letters, digits, hyphens (move-a-b), underscores
// Must start with a letter. Max length: 64 characters.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_\-]{0,63}$`)

// ValidateName validates a problem or action name before it is used in
// a file path or storage key.
//
// Valid names:
//   - 1-64 characters
//   - Start with a lowercase letter a-z
//   - Continue with lowercase letters, digits, hyphens, or underscores
//
// Returns an error if the name is invalid.
//
// Example:
//
//	if err := validation.ValidateName(req.Name); err != nil {
//	    return nil, fmt.Errorf("invalid problem name: %w", err)
//	}
//	// Safe to use in a result filename
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}

	if !namePattern.MatchString(name) {
		return fmt.Errorf("invalid name format: %q (must be 1-64 lowercase alphanumeric chars, hyphens, or underscores, starting with a letter)", name)
	}

	return nil
}

// ValidateNames validates multiple names.
// Returns an error listing all invalid names if any fail validation.
func ValidateNames(names []string) error {
	var invalid []string
	for _, n := range names {
		if err := ValidateName(n); err != nil {
			invalid = append(invalid, n)
		}
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid names: %v", invalid)
	}
	return nil
}

// SanitizeName normalizes and validates a planning identifier.
// Returns the lowercase name if valid, or an error if invalid.
//
// Use this when you need both validation and normalization:
//
//	safeName, err := validation.SanitizeName(userInput)
//	if err != nil {
//	    return err
//	}
//	// safeName is lowercase and validated
func SanitizeName(name string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if err := ValidateName(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
