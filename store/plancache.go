// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store provides an embedded plan cache backed by BadgerDB.
//
// Solving is randomized and potentially expensive; the cache remembers the
// best plan found for a problem so a repeated solve of the same input can
// return instantly. Entries are keyed by the problem fingerprint, a digest
// of the ground problem's semantic content, so renaming a file or
// reordering its actions still hits the cache while any change to facts,
// goal, or effects misses.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
// This package follows Apache 2.0 guidelines for attribution and usage.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianPlan/pddl"
)

// planKeyPrefix namespaces cache entries so future record types can share
// the database.
const planKeyPrefix = "plan:"

// Config holds configuration for the plan cache database.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Required for persistent databases.
	// Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	// Default: true for production, false for testing.
	SyncWrites bool

	// Logger is the logger for BadgerDB operations.
	// If nil, BadgerDB's internal logging is disabled.
	Logger *slog.Logger

	// TTL expires cache entries after this duration.
	// Default: 0 (entries never expire).
	TTL time.Duration

	// GCInterval is how often to run value log garbage collection.
	// Default: 5 minutes. Set to 0 to disable.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum ratio of discardable data before GC.
	// Default: 0.5 (GC when 50% of value log is garbage).
	GCDiscardRatio float64
}

// DefaultConfig returns sensible defaults for production use.
//
// Description:
//
//	Returns a Config with:
//	- SyncWrites enabled for durability
//	- No entry expiry
//	- 5-minute GC interval
//	- 50% discard ratio threshold
//
// Outputs:
//
//	Config - Ready-to-use production configuration
func DefaultConfig() Config {
	return Config{
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns configuration optimized for testing.
//
// Description:
//
//	Returns a Config with:
//	- InMemory mode enabled (no disk I/O)
//	- SyncWrites disabled (faster tests)
//	- GC disabled
//
// Outputs:
//
//	Config - Ready-to-use test configuration
func InMemoryConfig() Config {
	return Config{
		InMemory:   true,
		SyncWrites: false,
		GCInterval: 0, // disabled
	}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// CachedPlan is the stored record for one solved problem.
//
// Actions holds the plan as ordered ground action names; ToPlan resolves
// them back against a live Problem. Values are JSON so the database stays
// inspectable with badger's CLI tooling.
type CachedPlan struct {
	// Problem is the problem name the plan was solved for.
	Problem string `json:"problem"`

	// Fingerprint is the semantic digest the entry is keyed by.
	Fingerprint string `json:"fingerprint"`

	// Actions is the plan as ordered ground action names.
	Actions []string `json:"actions"`

	// Length is len(Actions), stored for queries without decoding.
	Length int `json:"length"`

	// Seed is the engine seed that produced the plan.
	Seed int64 `json:"seed"`

	// CreatedAt is when the entry was written, in UTC.
	CreatedAt time.Time `json:"created_at"`
}

// ToPlan resolves the stored action names against the given problem.
//
// Description:
//
//	Rebuilds a pddl.Plan from the cached names. The problem must have the
//	same fingerprint the entry was stored under; a cache hit guarantees
//	that, so a missing action name means the database was tampered with
//	or corrupted.
//
// Inputs:
//
//	problem - The live problem to resolve against. Must not be nil.
//
// Outputs:
//
//	pddl.Plan - The reconstructed plan.
//	error - Non-nil if an action name has no match in the problem.
func (c *CachedPlan) ToPlan(problem *pddl.Problem) (pddl.Plan, error) {
	plan := pddl.Plan{Steps: make([]*pddl.Action, 0, len(c.Actions))}
	for _, name := range c.Actions {
		a := problem.ActionByName(name)
		if a == nil {
			return pddl.Plan{}, fmt.Errorf("cached plan references unknown action %q", name)
		}
		plan.Steps = append(plan.Steps, a)
	}
	return plan, nil
}

// PlanCache is a fingerprint-keyed plan store on BadgerDB.
//
// Thread Safety: Safe for concurrent use; BadgerDB handles locking.
type PlanCache struct {
	db       *badger.DB
	gcRunner *gcRunner
	ttl      time.Duration
	path     string
	inMemory bool
}

// Open creates and opens a plan cache with the given configuration.
//
// Description:
//
//	Opens a BadgerDB database at the configured path, or in memory if
//	InMemory is true. Creates the directory if it doesn't exist, and
//	starts a GC runner when GCInterval is configured.
//
// Inputs:
//
//	cfg - Cache configuration. Path is required unless InMemory is true.
//
// Outputs:
//
//	*PlanCache - The opened cache. Caller must call Close() when done.
//	error - Non-nil if path is invalid or database cannot be opened.
//
// Thread Safety: The returned *PlanCache is safe for concurrent use.
func Open(cfg Config) (*PlanCache, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent cache")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil) // Disable BadgerDB's internal logging
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open plan cache: %w", err)
	}

	cache := &PlanCache{
		db:       db,
		ttl:      cfg.TTL,
		path:     cfg.Path,
		inMemory: cfg.InMemory,
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		cache.gcRunner = newGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
		cache.gcRunner.start()
	}

	return cache, nil
}

// OpenInMemory is a convenience function for opening an in-memory cache.
//
// Description:
//
//	Opens an in-memory plan cache for testing. Data is lost when closed.
//
// Outputs:
//
//	*PlanCache - The opened cache. Caller must call Close() when done.
//	error - Non-nil if database cannot be opened (unlikely for in-memory).
func OpenInMemory() (*PlanCache, error) {
	return Open(InMemoryConfig())
}

// Put stores the best plan found for a problem.
//
// Description:
//
//	Writes a CachedPlan under the problem's fingerprint, replacing any
//	previous entry. The entry expires after the configured TTL, if one
//	was set.
//
// Inputs:
//
//	ctx - Context for cancellation (checked before the write).
//	problem - The solved problem. Must not be nil.
//	plan - The plan to cache.
//	seed - The engine seed that produced the plan.
//
// Outputs:
//
//	error - Non-nil if encoding or the write fails.
//
// Thread Safety: Safe for concurrent use.
func (c *PlanCache) Put(ctx context.Context, problem *pddl.Problem, plan pddl.Plan, seed int64) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	fp := problem.Fingerprint()
	entry := CachedPlan{
		Problem:     problem.Name,
		Fingerprint: fp,
		Actions:     plan.Names(),
		Length:      plan.Length(),
		Seed:        seed,
		CreatedAt:   time.Now().UTC(),
	}
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cached plan: %w", err)
	}

	return c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(planKeyPrefix+fp), value)
		if c.ttl > 0 {
			e = e.WithTTL(c.ttl)
		}
		return txn.SetEntry(e)
	})
}

// Get retrieves the cached plan for a problem, if any.
//
// Description:
//
//	Looks up the entry under the problem's fingerprint. A miss is not an
//	error: the bool result distinguishes "no entry" from lookup failures.
//
// Inputs:
//
//	ctx - Context for cancellation (checked before the read).
//	problem - The problem to look up. Must not be nil.
//
// Outputs:
//
//	*CachedPlan - The cached entry, or nil on a miss.
//	bool - Whether an entry was found.
//	error - Non-nil for decode or database failures.
//
// Thread Safety: Safe for concurrent use.
func (c *PlanCache) Get(ctx context.Context, problem *pddl.Problem) (*CachedPlan, bool, error) {
	return c.GetByFingerprint(ctx, problem.Fingerprint())
}

// GetByFingerprint retrieves a cached plan by its fingerprint digest.
//
// Inputs:
//
//	ctx - Context for cancellation (checked before the read).
//	fingerprint - The digest the entry was stored under.
//
// Outputs:
//
//	*CachedPlan - The cached entry, or nil on a miss.
//	bool - Whether an entry was found.
//	error - Non-nil for decode or database failures.
func (c *PlanCache) GetByFingerprint(ctx context.Context, fingerprint string) (*CachedPlan, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, fmt.Errorf("context cancelled: %w", err)
	}

	var entry CachedPlan
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(planKeyPrefix + fingerprint))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cached plan: %w", err)
	}
	return &entry, true, nil
}

// Delete removes the entry for a fingerprint.
//
// Description:
//
//	Deleting a missing entry is not an error.
//
// Inputs:
//
//	ctx - Context for cancellation (checked before the write).
//	fingerprint - The digest of the entry to remove.
//
// Outputs:
//
//	error - Non-nil if the delete fails.
func (c *PlanCache) Delete(ctx context.Context, fingerprint string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(planKeyPrefix + fingerprint))
	})
}

// Count returns the number of cached plans.
//
// Description:
//
//	Iterates keys under the plan prefix without fetching values.
//
// Inputs:
//
//	ctx - Context for cancellation (checked before the scan).
//
// Outputs:
//
//	int - Number of entries.
//	error - Non-nil if the scan fails.
func (c *PlanCache) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context cancelled: %w", err)
	}

	count := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(planKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count cached plans: %w", err)
	}
	return count, nil
}

// List returns cached plans in key order.
//
// Description:
//
//	Iterates entries under the plan prefix, decoding each value. Keys
//	are fingerprints, so the order is stable but not chronological.
//
// Inputs:
//
//	ctx - Context for cancellation (checked before the scan).
//	limit - Maximum entries to return. Zero or negative means all.
//
// Outputs:
//
//	[]*CachedPlan - The decoded entries, empty slice when the cache is empty.
//	error - Non-nil if the scan or decoding fails.
func (c *PlanCache) List(ctx context.Context, limit int) ([]*CachedPlan, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	plans := []*CachedPlan{}
	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(planKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(plans) >= limit {
				return nil
			}
			err := it.Item().Value(func(val []byte) error {
				var cached CachedPlan
				if err := json.Unmarshal(val, &cached); err != nil {
					return fmt.Errorf("decode cached plan: %w", err)
				}
				plans = append(plans, &cached)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list cached plans: %w", err)
	}
	return plans, nil
}

// Path returns the database path, or empty string for in-memory caches.
func (c *PlanCache) Path() string {
	return c.path
}

// InMemory returns true if this is an in-memory cache.
func (c *PlanCache) InMemory() bool {
	return c.inMemory
}

// Close stops garbage collection and closes the database.
//
// Outputs:
//
//	error - Non-nil if database close fails.
func (c *PlanCache) Close() error {
	if c.gcRunner != nil {
		c.gcRunner.stop()
	}
	return c.db.Close()
}

// gcRunner runs periodic value log garbage collection.
type gcRunner struct {
	db       *badger.DB
	interval time.Duration
	ratio    float64
	stopCh   chan struct{}
	doneCh   chan struct{}
	logger   *slog.Logger
}

func newGCRunner(db *badger.DB, interval time.Duration, ratio float64, logger *slog.Logger) *gcRunner {
	return &gcRunner{
		db:       db,
		interval: interval,
		ratio:    ratio,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		logger:   logger,
	}
}

func (r *gcRunner) start() {
	go r.run()
}

func (r *gcRunner) stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *gcRunner) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.runGC()
		}
	}
}

func (r *gcRunner) runGC() {
	// RunValueLogGC returns nil if GC was triggered, error if not needed
	err := r.db.RunValueLogGC(r.ratio)
	if err == nil {
		if r.logger != nil {
			r.logger.Debug("plan cache value log GC completed")
		}
	} else if !errors.Is(err, badger.ErrNoRewrite) {
		// ErrNoRewrite means no GC was needed, not an error
		if r.logger != nil {
			r.logger.Warn("plan cache value log GC error", slog.String("error", err.Error()))
		}
	}
}
