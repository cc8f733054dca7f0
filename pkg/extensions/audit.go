// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"time"
)

// AuditEvent represents a security-relevant event for compliance logging.
//
// Example:
//
//	event := AuditEvent{
//	    EventType:    "solve.complete",
//	    Timestamp:    time.Now().UTC(),
//	    UserID:       "u-7f3a",
//	    Action:       "solve",
//	    ResourceType: "problem",
//	    ResourceID:   "blocks-12",
//	    Outcome:      "success",
//	    Metadata: map[string]any{
//	        "plan_length": 14,
//	        "walks":       1000,
//	    },
//	}
type AuditEvent struct {
	// EventType categorizes the event as "category.action".
	// The solve service emits: "solve.submit", "solve.complete",
	// "solve.rejected", "plan.read", "cache.hit", "cache.evict",
	// "system.start", "system.stop".
	EventType string

	// Timestamp is when the event occurred, in UTC.
	Timestamp time.Time

	// UserID identifies who triggered the event.
	UserID string

	// Action is the verb ("solve", "read", "delete", "start").
	Action string

	// ResourceType categorizes the target ("problem", "plan", "system").
	ResourceType string

	// ResourceID identifies the specific target: the problem name for
	// problems, the fingerprint for cached plans.
	ResourceID string

	// Outcome records how the event ended.
	// Values: "success", "failure", "blocked", "error".
	Outcome string

	// Metadata carries event-specific details (plan length, walk
	// counts, rejection reasons).
	Metadata map[string]any
}

// AuditFilter selects events for Query.
//
// Zero-value fields mean "no constraint"; a zero filter matches
// everything the logger retains.
type AuditFilter struct {
	// EventTypes restricts results to the listed types.
	EventTypes []string

	// UserID restricts results to one user.
	UserID string

	// StartTime excludes events before this instant.
	StartTime time.Time

	// EndTime excludes events after this instant.
	EndTime time.Time

	// ResourceType restricts results to one resource category.
	ResourceType string

	// ResourceID restricts results to one resource.
	ResourceID string

	// Outcome restricts results to one outcome value.
	Outcome string

	// Limit caps the number of results. Zero means no cap.
	Limit int

	// Offset skips the first N matching events, for pagination.
	Offset int
}

// AuditLogger records and retrieves audit events.
//
// Implementations must be safe for concurrent use by multiple goroutines.
//
// # Open Source Behavior
//
// The default NopAuditLogger discards every event. A local single-user
// planner has no compliance requirement.
//
// # Hosted Implementations
//
// Hosted deployments persist events to durable storage (database,
// append-only log, SIEM export). Log should be cheap; buffer and let
// Flush force durability.
type AuditLogger interface {
	// Log records one event.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - event: The event to record
	//
	// Returns:
	//   - error: Non-nil if the event could not be recorded
	Log(ctx context.Context, event AuditEvent) error

	// Query retrieves events matching the filter.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - filter: Constraints on the result set
	//
	// Returns:
	//   - []AuditEvent: Matching events, never nil
	//   - error: Non-nil for retrieval failures
	Query(ctx context.Context, filter AuditFilter) ([]AuditEvent, error)

	// Flush forces any buffered events to durable storage.
	//
	// Call before shutdown so buffered events are not lost.
	Flush(ctx context.Context) error
}

// NopAuditLogger is the default audit logger for open source builds.
// It discards all events.
//
// Thread-safe: This implementation has no mutable state.
type NopAuditLogger struct{}

// Log discards the event and returns nil.
func (l *NopAuditLogger) Log(ctx context.Context, event AuditEvent) error {
	return nil
}

// Query returns an empty, non-nil slice.
func (l *NopAuditLogger) Query(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	return []AuditEvent{}, nil
}

// Flush returns nil; there is never anything buffered.
func (l *NopAuditLogger) Flush(ctx context.Context) error {
	return nil
}

// Compile-time interface compliance check.
var _ AuditLogger = (*NopAuditLogger)(nil)
