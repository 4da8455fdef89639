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
	"errors"
	"sync"
	"testing"

	"github.com/tuasgeo/platechat/services/dialog/config"
	"github.com/tuasgeo/platechat/services/llm"
)

// =============================================================================
// Test Doubles
// =============================================================================

// stubChat replays a canned reply and records calls.
type stubChat struct {
	reply string
	err   error
	calls int
}

func (s *stubChat) Chat(_ context.Context, _ []llm.Message, _ llm.ChatOptions) (string, error) {
	s.calls++
	return s.reply, s.err
}

func (s *stubChat) ChatStream(ctx context.Context, messages []llm.Message, opts llm.ChatOptions, onToken func(string)) (string, error) {
	return s.Chat(ctx, messages, opts)
}

// memVerdictStore is an in-memory VerdictStore for cache-path tests.
type memVerdictStore struct {
	mu      sync.Mutex
	entries map[string]string
	loadErr error
	saveErr error
}

func newMemVerdictStore() *memVerdictStore {
	return &memVerdictStore{entries: make(map[string]string)}
}

func (m *memVerdictStore) Load(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return "", false, m.loadErr
	}
	label, ok := m.entries[key]
	return label, ok, nil
}

func (m *memVerdictStore) Save(_ context.Context, key, label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.entries[key] = label
	return nil
}

// fixedClassifier returns a fixed verdict, for arbiter tests.
type fixedClassifier struct {
	label string
	err   error
}

func (f fixedClassifier) Classify(_ context.Context, _ string) (string, error) {
	return f.label, f.err
}

func mustSchema(t *testing.T) *config.SlotSchema {
	t.Helper()
	schema, err := config.LoadSlotSchema()
	if err != nil {
		t.Fatalf("LoadSlotSchema() error: %v", err)
	}
	return schema
}

func mustRules(t *testing.T) *config.RuleConfig {
	t.Helper()
	rules, err := config.LoadRuleConfig()
	if err != nil {
		t.Fatalf("LoadRuleConfig() error: %v", err)
	}
	return rules
}

// =============================================================================
// Rule Classifier
// =============================================================================

func TestRuleClassifier(t *testing.T) {
	classifier := NewRuleClassifier(mustRules(t))
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"plot keyword", "plot settlement for F3-R09a-SM-12", "plot_combi_S"},
		{"report keyword", "generate a report for the eastern plates", "reporter_Asaoka"},
		{"asaoka keyword", "run the asaoka analysis", "Asaoka_data"},
		{"overview keyword", "give me an overview of the site", "SM_overview"},
		{"case insensitive", "PLOT the data please", "plot_combi_S"},
		{"group order breaks ties", "plot the report", "plot_combi_S"},
		{"no keywords", "what's the weather like", NoVerdict},
		{"empty query", "", NoVerdict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := classifier.Classify(context.Background(), tt.query)
			if err != nil {
				t.Fatalf("Classify(%q) error: %v", tt.query, err)
			}
			if got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}

// =============================================================================
// LLM Classifier
// =============================================================================

func TestLLMClassifier_VerdictParsing(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{"json verdict", `{"function": "Asaoka_data"}`, "Asaoka_data"},
		{"json none", `{"function": "none"}`, NoVerdict},
		{"json unknown function", `{"function": "delete_everything"}`, NoVerdict},
		{"fenced json", "```json\n{\"function\": \"plot_combi_S\"}\n```", "plot_combi_S"},
		{"bare name", "The best match is reporter_Asaoka.", "reporter_Asaoka"},
		{"garbage", "I am not sure what you mean.", NoVerdict},
		{"empty reply", "", NoVerdict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := &stubChat{reply: tt.reply}
			classifier := NewLLMClassifier(chat, mustSchema(t), "test-model", nil)
			got, err := classifier.Classify(context.Background(), "some query")
			if err != nil {
				t.Fatalf("Classify() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLLMClassifier_TransportError(t *testing.T) {
	chat := &stubChat{err: errors.New("connection refused")}
	classifier := NewLLMClassifier(chat, mustSchema(t), "test-model", nil)
	_, err := classifier.Classify(context.Background(), "plot it")
	if err == nil {
		t.Fatal("Classify() should propagate transport errors")
	}
}

// =============================================================================
// Cached Classifier
// =============================================================================

func TestCachedClassifier_MissThenHit(t *testing.T) {
	chat := &stubChat{reply: `{"function": "Asaoka_data"}`}
	store := newMemVerdictStore()
	classifier := NewCachedClassifier(NewLLMClassifier(chat, mustSchema(t), "test-model", nil), store, nil)

	for i := 0; i < 2; i++ {
		got, err := classifier.Classify(context.Background(), "crunch the numbers for SM-12")
		if err != nil {
			t.Fatalf("Classify() call %d error: %v", i+1, err)
		}
		if got != "Asaoka_data" {
			t.Errorf("Classify() call %d = %q, want %q", i+1, got, "Asaoka_data")
		}
	}
	if chat.calls != 1 {
		t.Errorf("chat called %d times, want 1 (second call should hit cache)", chat.calls)
	}
}

func TestCachedClassifier_CachesNoVerdict(t *testing.T) {
	chat := &stubChat{reply: `{"function": "none"}`}
	store := newMemVerdictStore()
	classifier := NewCachedClassifier(NewLLMClassifier(chat, mustSchema(t), "test-model", nil), store, nil)

	for i := 0; i < 2; i++ {
		got, err := classifier.Classify(context.Background(), "what's for lunch")
		if err != nil {
			t.Fatalf("Classify() error: %v", err)
		}
		if got != NoVerdict {
			t.Errorf("Classify() = %q, want no verdict", got)
		}
	}
	if chat.calls != 1 {
		t.Errorf("chat called %d times, want 1 (no-verdict should be cached)", chat.calls)
	}
}

func TestCachedClassifier_NilStore(t *testing.T) {
	chat := &stubChat{reply: `{"function": "plot_combi_S"}`}
	classifier := NewCachedClassifier(NewLLMClassifier(chat, mustSchema(t), "test-model", nil), nil, nil)

	got, err := classifier.Classify(context.Background(), "plot it")
	if err != nil {
		t.Fatalf("Classify() error: %v", err)
	}
	if got != "plot_combi_S" {
		t.Errorf("Classify() = %q, want %q", got, "plot_combi_S")
	}
}

func TestCachedClassifier_StoreFailureFallsThrough(t *testing.T) {
	chat := &stubChat{reply: `{"function": "plot_combi_S"}`}
	store := newMemVerdictStore()
	store.loadErr = errors.New("disk on fire")
	store.saveErr = errors.New("disk still on fire")
	classifier := NewCachedClassifier(NewLLMClassifier(chat, mustSchema(t), "test-model", nil), store, nil)

	got, err := classifier.Classify(context.Background(), "plot it")
	if err != nil {
		t.Fatalf("Classify() error: %v (cache failure must not fail classification)", err)
	}
	if got != "plot_combi_S" {
		t.Errorf("Classify() = %q, want %q", got, "plot_combi_S")
	}
}

func TestVerdictKey_Distinct(t *testing.T) {
	a := VerdictKey("model-a", "query")
	b := VerdictKey("model-b", "query")
	c := VerdictKey("model-a", "other query")
	if a == b || a == c || b == c {
		t.Errorf("keys should differ: %q %q %q", a, b, c)
	}
	// The NUL joiner keeps shifted boundaries apart.
	if VerdictKey("m", "odel query") == VerdictKey("model", " query") {
		t.Error("boundary-shifted inputs must not collide")
	}
}

// =============================================================================
// Arbiter
// =============================================================================

func TestArbiter_Resolve(t *testing.T) {
	tests := []struct {
		name      string
		learned   string
		rule      string
		wantFunc  string
		wantClash bool
	}{
		{"agreement", "Asaoka_data", "Asaoka_data", "Asaoka_data", false},
		{"learned only", "SM_overview", NoVerdict, "SM_overview", false},
		{"rule only is not promoted", NoVerdict, "plot_combi_S", NoVerdict, false},
		{"disagreement", "reporter_Asaoka", "plot_combi_S", NoVerdict, true},
		{"neither", NoVerdict, NoVerdict, NoVerdict, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arbiter := NewArbiter(fixedClassifier{label: tt.learned}, fixedClassifier{label: tt.rule}, nil)
			decision, err := arbiter.Resolve(context.Background(), "the query")
			if err != nil {
				t.Fatalf("Resolve() error: %v", err)
			}
			if decision.Function != tt.wantFunc {
				t.Errorf("Function = %q, want %q", decision.Function, tt.wantFunc)
			}
			if (decision.Clash != nil) != tt.wantClash {
				t.Fatalf("Clash = %+v, wantClash = %v", decision.Clash, tt.wantClash)
			}
			if tt.wantClash {
				if decision.Clash.Learned != tt.learned || decision.Clash.Rule != tt.rule {
					t.Errorf("Clash = %+v, want learned %q / rule %q", decision.Clash, tt.learned, tt.rule)
				}
				if decision.Clash.Input != "the query" {
					t.Errorf("Clash.Input = %q, want original query", decision.Clash.Input)
				}
			}
		})
	}
}

func TestArbiter_LearnedErrorPropagates(t *testing.T) {
	arbiter := NewArbiter(fixedClassifier{err: errors.New("backend down")}, fixedClassifier{label: "plot_combi_S"}, nil)
	_, err := arbiter.Resolve(context.Background(), "plot it")
	if err == nil {
		t.Fatal("Resolve() should propagate learned classifier errors")
	}
}
