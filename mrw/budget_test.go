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
	"testing"
	"time"
)

func TestNewWalkBudget(t *testing.T) {
	budget := NewWalkBudget(WalkBudgetConfig{MaxWalks: 10})

	if budget == nil {
		t.Fatal("NewWalkBudget returned nil")
	}
	if budget.WalksStarted() != 0 {
		t.Errorf("Initial WalksStarted = %d, want 0", budget.WalksStarted())
	}
	if budget.WalksFailed() != 0 {
		t.Errorf("Initial WalksFailed = %d, want 0", budget.WalksFailed())
	}
	if budget.StepsTaken() != 0 {
		t.Errorf("Initial StepsTaken = %d, want 0", budget.StepsTaken())
	}
	if budget.Exhausted() {
		t.Error("Initial budget should not be exhausted")
	}
	if budget.Err() != nil {
		t.Errorf("Initial Err = %v, want nil", budget.Err())
	}
}

func TestWalkBudget_TryStartWalk_Cap(t *testing.T) {
	budget := NewWalkBudget(WalkBudgetConfig{MaxWalks: 5})

	for i := 0; i < 5; i++ {
		if !budget.TryStartWalk() {
			t.Fatalf("walk %d refused below the cap", i)
		}
	}
	if budget.TryStartWalk() {
		t.Error("walk claimed beyond the cap")
	}
	if budget.WalksStarted() != 5 {
		t.Errorf("WalksStarted = %d, want 5", budget.WalksStarted())
	}
	if !budget.Exhausted() {
		t.Error("budget should be exhausted")
	}
	if budget.ExhaustedBy() != "walks" {
		t.Errorf("ExhaustedBy = %q, want walks", budget.ExhaustedBy())
	}
	if !errors.Is(budget.Err(), ErrWalkLimitExceeded) {
		t.Errorf("Err = %v, want ErrWalkLimitExceeded", budget.Err())
	}
}

func TestWalkBudget_ZeroWalks(t *testing.T) {
	budget := NewWalkBudget(WalkBudgetConfig{MaxWalks: 0})

	if budget.TryStartWalk() {
		t.Error("zero-walk budget should refuse the first walk")
	}
	if budget.WalksStarted() != 0 {
		t.Errorf("WalksStarted = %d, want 0", budget.WalksStarted())
	}
	if !errors.Is(budget.Err(), ErrWalkLimitExceeded) {
		t.Errorf("Err = %v, want ErrWalkLimitExceeded", budget.Err())
	}
}

func TestWalkBudget_TimeLimit(t *testing.T) {
	budget := NewWalkBudget(WalkBudgetConfig{MaxWalks: 100, TimeLimit: time.Nanosecond})
	time.Sleep(time.Millisecond)

	if budget.TryStartWalk() {
		t.Error("expired budget should refuse walks")
	}
	if budget.ExhaustedBy() != "time" {
		t.Errorf("ExhaustedBy = %q, want time", budget.ExhaustedBy())
	}
	if !errors.Is(budget.Err(), ErrTimeLimitExceeded) {
		t.Errorf("Err = %v, want ErrTimeLimitExceeded", budget.Err())
	}
}

func TestWalkBudget_TryStartWalkConcurrency(t *testing.T) {
	const maxWalks = 100
	const goroutines = 10
	const attemptsPerGoroutine = 30

	budget := NewWalkBudget(WalkBudgetConfig{MaxWalks: maxWalks})

	var claimed atomic.Int64
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < attemptsPerGoroutine; j++ {
				if budget.TryStartWalk() {
					claimed.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	if claimed.Load() != maxWalks {
		t.Errorf("claimed %d slots, want exactly %d", claimed.Load(), maxWalks)
	}
	if budget.WalksStarted() != maxWalks {
		t.Errorf("WalksStarted = %d, want %d", budget.WalksStarted(), maxWalks)
	}
}

func TestWalkBudget_Counters(t *testing.T) {
	budget := NewWalkBudget(WalkBudgetConfig{MaxWalks: 10})

	budget.RecordWalkFailed()
	budget.RecordWalkFailed()
	budget.RecordWalkFailed()
	if budget.WalksFailed() != 3 {
		t.Errorf("WalksFailed = %d, want 3", budget.WalksFailed())
	}

	budget.RecordSteps(5)
	budget.RecordSteps(7)
	if budget.StepsTaken() != 12 {
		t.Errorf("StepsTaken = %d, want 12", budget.StepsTaken())
	}
}

func TestWalkBudget_Remaining(t *testing.T) {
	budget := NewWalkBudget(WalkBudgetConfig{MaxWalks: 10})

	budget.TryStartWalk()
	budget.TryStartWalk()
	budget.TryStartWalk()

	remaining := budget.Remaining()
	if remaining.Walks != 7 {
		t.Errorf("Remaining.Walks = %d, want 7", remaining.Walks)
	}
	if remaining.Time != 0 {
		t.Errorf("Remaining.Time = %v, want 0 without a time limit", remaining.Time)
	}

	timed := NewWalkBudget(WalkBudgetConfig{MaxWalks: 10, TimeLimit: time.Hour})
	if timed.Remaining().Time <= 0 {
		t.Error("Remaining.Time should be positive under an hour-long limit")
	}
}

func TestWalkBudget_ElapsedGrows(t *testing.T) {
	budget := NewWalkBudget(WalkBudgetConfig{MaxWalks: 1})
	first := budget.Elapsed()
	time.Sleep(time.Millisecond)
	if budget.Elapsed() <= first {
		t.Error("Elapsed should grow over time")
	}
}

func TestWalkBudget_Config(t *testing.T) {
	config := WalkBudgetConfig{MaxWalks: 42, TimeLimit: time.Minute}
	budget := NewWalkBudget(config)

	got := budget.Config()
	if got.MaxWalks != 42 || got.TimeLimit != time.Minute {
		t.Errorf("Config() = %+v, want %+v", got, config)
	}
}
