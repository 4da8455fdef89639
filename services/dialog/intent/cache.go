// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package intent

// =============================================================================
// Verdict Cache — LLM Classification Persistence
// =============================================================================
//
// LLM classification is the slowest step of a dialog turn (hundreds of ms
// against a local model, more against a remote one) while its input space
// is tiny: operators ask for the same handful of reports with the same
// phrasing day after day. Verdicts are therefore persisted in BadgerDB,
// keyed by a digest of the model name and the exact query text.
//
// Storage layout:
//
//	intent/label/v1/{sha256(model \x00 query)}  →  JSON {"function": "<name>"}
//	                                               TTL: 7 days
//
// "No verdict" results are cached too — a query the model could not place
// yesterday will not place today either, and re-asking burns the same
// latency for the same answer.

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// verdictCacheDefaultTTL bounds how long a cached verdict survives. Seven
// days outlives weekends and short redeploys without pinning stale labels
// forever after a prompt or model change.
const verdictCacheDefaultTTL = 7 * 24 * time.Hour

// verdictKeyPrefix is versioned so the entry format can change without
// colliding with old keys.
const verdictKeyPrefix = "intent/label/v1/"

var errVerdictMiss = errors.New("verdict cache miss")

// VerdictStore persists classification verdicts between service restarts.
//
// Both methods treat a nil receiver as "no cache configured": Load always
// misses and Save is a no-op. Tests and cache-less deployments pass nil.
//
// Thread Safety: Implementations must be safe for concurrent use.
type VerdictStore interface {
	// Load returns the cached verdict for the key and whether it was found.
	// A found empty label is a cached "no verdict".
	Load(ctx context.Context, key string) (label string, found bool, err error)

	// Save persists the verdict under the key with the store's TTL.
	Save(ctx context.Context, key, label string) error
}

// VerdictKey derives the cache key for a model/query pair. The NUL joiner
// keeps ("m", "odel query") and ("model", " query") from colliding.
func VerdictKey(model, query string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + query))
	return verdictKeyPrefix + hex.EncodeToString(sum[:])
}

// =============================================================================
// BadgerVerdictStore
// =============================================================================

// BadgerVerdictStore implements VerdictStore on a BadgerDB instance. The DB
// is opened by the caller (typically main) and outlives the store; expiry
// is BadgerDB's native TTL, so no application-level sweep exists.
//
// Thread Safety: Safe for concurrent use.
type BadgerVerdictStore struct {
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger
}

// NewBadgerVerdictStore creates a store backed by the given DB.
//
// Inputs:
//
//	db     - Opened BadgerDB. Must not be nil.
//	ttl    - Entry lifetime. Pass 0 for the 7-day default.
//	logger - May be nil; defaults to slog.Default().
func NewBadgerVerdictStore(db *badger.DB, ttl time.Duration, logger *slog.Logger) *BadgerVerdictStore {
	if db == nil {
		panic("NewBadgerVerdictStore: db must not be nil")
	}
	if ttl <= 0 {
		ttl = verdictCacheDefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerVerdictStore{db: db, ttl: ttl, logger: logger}
}

// Load implements VerdictStore.
func (s *BadgerVerdictStore) Load(_ context.Context, key string) (string, bool, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return errVerdictMiss
		}
		if err != nil {
			return fmt.Errorf("get verdict key: %w", err)
		}
		raw, err = item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("copy value: %w", err)
		}
		return nil
	})
	if errors.Is(err, errVerdictMiss) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("verdict cache load: %w", err)
	}

	var envelope verdictEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		// A corrupt entry is a miss; it will be overwritten on Save.
		s.logger.Warn("intent: corrupt verdict entry", slog.String("key", shortKey(key)))
		return "", false, nil
	}
	return envelope.Function, true, nil
}

// Save implements VerdictStore.
func (s *BadgerVerdictStore) Save(_ context.Context, key, label string) error {
	raw, err := json.Marshal(verdictEnvelope{Function: label})
	if err != nil {
		return fmt.Errorf("verdict cache encode: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), raw).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("verdict cache save: %w", err)
	}
	return nil
}

func shortKey(key string) string {
	if len(key) <= len(verdictKeyPrefix)+8 {
		return key
	}
	return key[:len(verdictKeyPrefix)+8]
}

// =============================================================================
// Cached Classifier
// =============================================================================

// CachedClassifier wraps an LLMClassifier with a VerdictStore. Cache
// failures never fail classification; they log a warning and fall through
// to the model.
//
// Thread Safety: Safe for concurrent use.
type CachedClassifier struct {
	inner  *LLMClassifier
	store  VerdictStore
	logger *slog.Logger
}

// NewCachedClassifier wraps the classifier with the store. A nil store is
// allowed and disables persistence.
func NewCachedClassifier(inner *LLMClassifier, store VerdictStore, logger *slog.Logger) *CachedClassifier {
	if inner == nil {
		panic("NewCachedClassifier: inner must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedClassifier{inner: inner, store: store, logger: logger}
}

// Classify implements Classifier.
func (c *CachedClassifier) Classify(ctx context.Context, query string) (string, error) {
	key := VerdictKey(c.inner.Model(), query)

	if c.store != nil {
		label, found, err := c.store.Load(ctx, key)
		if err != nil {
			c.logger.Warn("intent: verdict cache load failed", slog.String("error", err.Error()))
		} else if found {
			verdictCacheTotal.WithLabelValues("hit").Inc()
			return label, nil
		}
	}
	verdictCacheTotal.WithLabelValues("miss").Inc()

	label, err := c.inner.Classify(ctx, query)
	if err != nil {
		return NoVerdict, err
	}

	if c.store != nil {
		if err := c.store.Save(ctx, key, label); err != nil {
			c.logger.Warn("intent: verdict cache save failed", slog.String("error", err.Error()))
		}
	}
	return label, nil
}
