// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package extensions defines interfaces for deployment-specific functionality.
//
// This package provides extension points that let hosted deployments add
// capabilities without modifying the core planner codebase. The open source
// version uses no-op defaults for all interfaces.
//
// # Architecture
//
// The solve service accepts a ServiceOptions struct at construction. Each
// field is an interface with a no-op default, so a local single-user build
// pays nothing for hooks it never uses:
//
//	opts := extensions.DefaultOptions()
//	svc := server.NewSolveService(engine, store, opts)
//
// A hosted deployment swaps in real implementations:
//
//	opts := extensions.DefaultOptions().
//	    WithAuth(oidcProvider).
//	    WithAudit(dbAuditLogger).
//	    WithGate(&extensions.LimitGate{MaxActions: 50000})
//
// # Design Principles
//
//  1. Interfaces accept context.Context for cancellation and timeouts.
//  2. No-op implementations are stateless and safe for concurrent use.
//  3. ServiceOptions is copied by value; With* methods never mutate the
//     receiver, so a base options value can be shared and specialized.
package extensions

// ServiceOptions bundles the extension points consumed by the solve service.
//
// The zero value is NOT usable: fields are interfaces and default to nil.
// Always start from DefaultOptions and override with the With* methods.
type ServiceOptions struct {
	// AuthProvider validates request credentials.
	// Default: NopAuthProvider (every token maps to a local admin).
	AuthProvider AuthProvider

	// AuthzProvider decides whether an authenticated user may perform
	// an action on a resource.
	// Default: NopAuthzProvider (everything is allowed).
	AuthzProvider AuthzProvider

	// AuditLogger records security-relevant events such as solve
	// submissions and rejected problems.
	// Default: NopAuditLogger (events are discarded).
	AuditLogger AuditLogger

	// ProblemGate inspects a planning problem before any search work
	// is scheduled and may reject it.
	// Default: NopProblemGate (every problem is admitted).
	ProblemGate ProblemGate
}

// DefaultOptions returns ServiceOptions populated with no-op
// implementations for every extension point.
func DefaultOptions() ServiceOptions {
	return ServiceOptions{
		AuthProvider:  &NopAuthProvider{},
		AuthzProvider: &NopAuthzProvider{},
		AuditLogger:   &NopAuditLogger{},
		ProblemGate:   &NopProblemGate{},
	}
}

// WithAuth returns a copy of the options with the given auth provider.
func (o ServiceOptions) WithAuth(p AuthProvider) ServiceOptions {
	o.AuthProvider = p
	return o
}

// WithAuthz returns a copy of the options with the given authorization
// provider.
func (o ServiceOptions) WithAuthz(p AuthzProvider) ServiceOptions {
	o.AuthzProvider = p
	return o
}

// WithAudit returns a copy of the options with the given audit logger.
func (o ServiceOptions) WithAudit(l AuditLogger) ServiceOptions {
	o.AuditLogger = l
	return o
}

// WithGate returns a copy of the options with the given problem gate.
func (o ServiceOptions) WithGate(g ProblemGate) ServiceOptions {
	o.ProblemGate = g
	return o
}
