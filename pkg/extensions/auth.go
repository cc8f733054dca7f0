// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"errors"
)

// ErrUnauthorized is returned when authentication or authorization fails.
//
// Callers should map this to HTTP 401/403 or an equivalent access-denied
// response without leaking which check failed.
var ErrUnauthorized = errors.New("unauthorized")

// AuthInfo describes an authenticated principal.
//
// Example:
//
//	info := &AuthInfo{
//	    UserID: "u-7f3a",
//	    Email:  "planner-ops@example.com",
//	    Roles:  []string{"operator"},
//	    Metadata: map[string]any{
//	        "team": "logistics",
//	    },
//	}
type AuthInfo struct {
	// UserID uniquely identifies the user within the deployment.
	UserID string

	// Email is the user's address, if the provider knows it.
	Email string

	// Roles lists the roles granted to the user.
	// Role names are deployment-defined; "admin" grants everything
	// in the open source build.
	Roles []string

	// Metadata carries provider-specific attributes (tenant, team,
	// token scopes). Keys are implementation-defined.
	Metadata map[string]any
}

// HasRole reports whether the user holds the named role.
// Matching is exact and case sensitive.
func (a *AuthInfo) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuthProvider validates request credentials.
//
// Implementations must be safe for concurrent use by multiple goroutines.
//
// # Open Source Behavior
//
// The default NopAuthProvider accepts any token, including the empty
// string, and maps it to a local admin user. This is appropriate for a
// planner running on a developer's own machine.
//
// # Hosted Implementations
//
// Hosted deployments implement real validation: OIDC token verification,
// API key lookup, mTLS identity extraction. Return ErrUnauthorized
// (possibly wrapped) for invalid credentials so callers can classify the
// failure with errors.Is.
type AuthProvider interface {
	// Validate checks the credential and returns the authenticated user.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - token: The raw credential from the request (bearer token,
	//     API key). May be empty.
	//
	// Returns:
	//   - *AuthInfo: The authenticated principal
	//   - error: ErrUnauthorized (possibly wrapped) if the credential
	//     is invalid, or another error for provider failures
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// AuthzRequest describes an authorization decision to be made.
//
// Example:
//
//	req := AuthzRequest{
//	    User:         info,
//	    Action:       "solve",
//	    ResourceType: "problem",
//	    ResourceID:   "blocks-12",
//	}
type AuthzRequest struct {
	// User is the authenticated principal making the request.
	User *AuthInfo

	// Action names what the user wants to do.
	// The solve service uses "solve", "read", and "delete".
	Action string

	// ResourceType categorizes the target.
	// The solve service uses "problem" and "plan".
	ResourceType string

	// ResourceID identifies the specific target, when there is one.
	// For problems this is the problem name; for cached plans it is
	// the problem fingerprint.
	ResourceID string
}

// AuthzProvider decides whether an authenticated user may perform an
// action.
//
// Implementations must be safe for concurrent use by multiple goroutines.
//
// # Open Source Behavior
//
// The default NopAuthzProvider allows everything. A single-user local
// planner has no meaningful authorization boundary.
//
// # Hosted Implementations
//
// Hosted deployments enforce policy here: role checks, per-tenant
// isolation, quota-derived denials. Return ErrUnauthorized (possibly
// wrapped) to deny.
type AuthzProvider interface {
	// Authorize returns nil if the request is allowed.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - req: The decision to make
	//
	// Returns:
	//   - error: nil to allow; ErrUnauthorized (possibly wrapped) to
	//     deny; another error for provider failures
	Authorize(ctx context.Context, req AuthzRequest) error
}

// NopAuthProvider is the default auth provider for open source builds.
//
// Every token, valid or not, maps to the same local admin user. No
// network calls, no state.
//
// Thread-safe: This implementation has no mutable state.
type NopAuthProvider struct{}

// Validate returns a fixed local admin identity for any token.
func (p *NopAuthProvider) Validate(ctx context.Context, token string) (*AuthInfo, error) {
	return &AuthInfo{
		UserID: "local-user",
		Roles:  []string{"admin"},
	}, nil
}

// NopAuthzProvider is the default authorization provider for open source
// builds. It allows every request.
//
// Thread-safe: This implementation has no mutable state.
type NopAuthzProvider struct{}

// Authorize always returns nil.
func (p *NopAuthzProvider) Authorize(ctx context.Context, req AuthzRequest) error {
	return nil
}

// Compile-time interface compliance checks.
var (
	_ AuthProvider  = (*NopAuthProvider)(nil)
	_ AuthzProvider = (*NopAuthzProvider)(nil)
)
