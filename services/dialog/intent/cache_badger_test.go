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

import (
	"context"
	"testing"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

func newTestDB(t *testing.T) *badger.DB {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("badger.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBadgerVerdictStore_RoundTrip(t *testing.T) {
	store := NewBadgerVerdictStore(newTestDB(t), 0, nil)
	ctx := context.Background()
	key := VerdictKey("test-model", "plot SM-12")

	label, found, err := store.Load(ctx, key)
	if err != nil {
		t.Fatalf("Load() before save: %v", err)
	}
	if found {
		t.Fatalf("Load() before save found %q, want miss", label)
	}

	if err := store.Save(ctx, key, "plot_combi_S"); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	label, found, err = store.Load(ctx, key)
	if err != nil {
		t.Fatalf("Load() after save: %v", err)
	}
	if !found || label != "plot_combi_S" {
		t.Errorf("Load() = (%q, %v), want (plot_combi_S, true)", label, found)
	}
}

func TestBadgerVerdictStore_EmptyLabelRoundTrips(t *testing.T) {
	store := NewBadgerVerdictStore(newTestDB(t), 0, nil)
	ctx := context.Background()
	key := VerdictKey("test-model", "what's for lunch")

	if err := store.Save(ctx, key, NoVerdict); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	label, found, err := store.Load(ctx, key)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !found {
		t.Fatal("cached no-verdict should be found, not a miss")
	}
	if label != NoVerdict {
		t.Errorf("Load() label = %q, want empty", label)
	}
}

func TestBadgerVerdictStore_TTLExpiry(t *testing.T) {
	store := NewBadgerVerdictStore(newTestDB(t), 50*time.Millisecond, nil)
	ctx := context.Background()
	key := VerdictKey("test-model", "short lived")

	if err := store.Save(ctx, key, "Asaoka_data"); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	_, found, err := store.Load(ctx, key)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if found {
		t.Error("expired entry should be a miss")
	}
}
