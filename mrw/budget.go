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
	"sync"
	"sync/atomic"
	"time"
)

// Budget errors.
var (
	ErrBudgetExhausted   = errors.New("budget exhausted")
	ErrWalkLimitExceeded = errors.New("walk limit exceeded")
	ErrTimeLimitExceeded = errors.New("time limit exceeded")
)

// WalkBudgetConfig contains configuration for search effort limits.
type WalkBudgetConfig struct {
	MaxWalks  int           // Maximum walks to start; 0 starts none
	TimeLimit time.Duration // Wall clock limit; 0 means unlimited
}

// WalkBudget tracks effort consumption during a solve.
//
// Walk slots are claimed through TryStartWalk, which is the single
// allocation point for both the sequential and the parallel engine, so
// concurrent workers can never start more than MaxWalks walks between
// them.
//
// Thread Safety: Safe for concurrent use.
type WalkBudget struct {
	config    WalkBudgetConfig
	startTime time.Time

	// Atomic counters
	walksStarted int64
	walksFailed  int64
	stepsTaken   int64

	// Exhaustion record (protected by mu)
	mu          sync.RWMutex
	exhausted   bool
	exhaustedBy string // Which limit was hit
}

// NewWalkBudget creates a new budget tracker. The clock starts now.
func NewWalkBudget(config WalkBudgetConfig) *WalkBudget {
	return &WalkBudget{
		config:    config,
		startTime: time.Now(),
	}
}

// Config returns the budget configuration.
func (b *WalkBudget) Config() WalkBudgetConfig {
	return b.config
}

// TryStartWalk claims one walk slot.
//
// Outputs:
//   - bool: True when a slot was claimed. False marks the budget
//     exhausted by whichever limit refused the slot.
func (b *WalkBudget) TryStartWalk() bool {
	if b.config.TimeLimit > 0 && time.Since(b.startTime) >= b.config.TimeLimit {
		b.markExhausted("time")
		return false
	}
	for {
		cur := atomic.LoadInt64(&b.walksStarted)
		if cur >= int64(b.config.MaxWalks) {
			b.markExhausted("walks")
			return false
		}
		if atomic.CompareAndSwapInt64(&b.walksStarted, cur, cur+1) {
			return true
		}
	}
}

// WalksStarted returns the number of walks started.
func (b *WalkBudget) WalksStarted() int64 {
	return atomic.LoadInt64(&b.walksStarted)
}

// RecordWalkFailed records a walk that ended without reaching the goal.
func (b *WalkBudget) RecordWalkFailed() int64 {
	return atomic.AddInt64(&b.walksFailed, 1)
}

// WalksFailed returns the number of failed walks.
func (b *WalkBudget) WalksFailed() int64 {
	return atomic.LoadInt64(&b.walksFailed)
}

// RecordSteps records n executed walk steps.
func (b *WalkBudget) RecordSteps(n int) int64 {
	return atomic.AddInt64(&b.stepsTaken, int64(n))
}

// StepsTaken returns the total steps executed across all walks.
func (b *WalkBudget) StepsTaken() int64 {
	return atomic.LoadInt64(&b.stepsTaken)
}

// Elapsed returns time elapsed since the budget was created.
func (b *WalkBudget) Elapsed() time.Duration {
	return time.Since(b.startTime)
}

// BudgetRemaining contains remaining budget values.
type BudgetRemaining struct {
	Walks int           `json:"walks"`
	Time  time.Duration `json:"time"`
}

// Remaining returns the remaining budget as a struct. Time is zero when
// no time limit is configured.
func (b *WalkBudget) Remaining() BudgetRemaining {
	r := BudgetRemaining{
		Walks: b.config.MaxWalks - int(b.WalksStarted()),
	}
	if b.config.TimeLimit > 0 {
		r.Time = b.config.TimeLimit - b.Elapsed()
	}
	return r
}

// Exhausted returns whether the budget has been exhausted.
func (b *WalkBudget) Exhausted() bool {
	b.mu.RLock()
	if b.exhausted {
		b.mu.RUnlock()
		return true
	}
	b.mu.RUnlock()

	if b.config.TimeLimit > 0 && time.Since(b.startTime) >= b.config.TimeLimit {
		b.markExhausted("time")
		return true
	}
	if atomic.LoadInt64(&b.walksStarted) >= int64(b.config.MaxWalks) {
		b.markExhausted("walks")
		return true
	}
	return false
}

// ExhaustedBy returns which limit caused exhaustion (empty if not exhausted).
func (b *WalkBudget) ExhaustedBy() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.exhaustedBy
}

// Err maps the exhaustion record to its error, nil when not exhausted.
func (b *WalkBudget) Err() error {
	switch b.ExhaustedBy() {
	case "time":
		return ErrTimeLimitExceeded
	case "walks":
		return ErrWalkLimitExceeded
	case "":
		return nil
	default:
		return ErrBudgetExhausted
	}
}

func (b *WalkBudget) markExhausted(by string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.exhausted {
		b.exhausted = true
		b.exhaustedBy = by
	}
}
