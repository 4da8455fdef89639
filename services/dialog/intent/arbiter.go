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
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var arbiterTracer = otel.Tracer("platechat.dialog.intent.arbiter")

// =============================================================================
// Prometheus Metrics for Intent Resolution
// =============================================================================

var (
	// intentDecisionsTotal counts arbiter outcomes.
	// Labels: outcome (agreed, learned_only, rule_only, clash, none)
	intentDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "platechat",
		Subsystem: "intent",
		Name:      "decisions_total",
		Help:      "Total intent arbiter decisions by outcome",
	}, []string{"outcome"})

	// verdictCacheTotal counts verdict cache lookups.
	// Labels: result (hit, miss)
	verdictCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "platechat",
		Subsystem: "intent",
		Name:      "verdict_cache_total",
		Help:      "Total verdict cache lookups by result",
	}, []string{"result"})
)

// =============================================================================
// Arbiter
// =============================================================================

// Clash records a disagreement between the learned and rule classifiers.
// The user is shown both candidates and picks one; Input carries the
// original query so the session can resume parameter resolution with it.
type Clash struct {
	Learned string `json:"learned"`
	Rule    string `json:"rule"`
	Input   string `json:"input"`
}

// Decision is the arbiter's verdict for one query. Exactly one of the
// following holds: Function is non-empty (a function was chosen), Clash is
// non-nil (the user must pick), or both are zero (no function fits).
type Decision struct {
	Function string
	Clash    *Clash
}

// Arbiter reconciles the learned and rule classifier verdicts.
//
// The table is deliberately asymmetric: a learned-only verdict is trusted
// (the model reads phrasing the keyword list cannot), but a rule-only
// verdict is not promoted on its own — a keyword hit with no model
// agreement is most often an incidental substring, and acting on it would
// run the wrong analysis without the user noticing.
//
// Thread Safety: Arbiter is safe for concurrent use.
type Arbiter struct {
	learned Classifier
	rule    Classifier
	logger  *slog.Logger
}

// NewArbiter creates an arbiter over the two classifiers.
//
// Inputs:
//
//	learned - LLM-backed classifier. Must not be nil.
//	rule    - Keyword classifier. Must not be nil.
//	logger  - May be nil; defaults to slog.Default().
func NewArbiter(learned, rule Classifier, logger *slog.Logger) *Arbiter {
	if learned == nil || rule == nil {
		panic("NewArbiter: both classifiers must be non-nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Arbiter{learned: learned, rule: rule, logger: logger}
}

// Resolve classifies the query with both classifiers and reconciles:
//
//	agree on f        → Decision{Function: f}
//	learned only      → Decision{Function: learned}
//	rule only         → Decision{} (no function)
//	disagree          → Decision{Clash: ...}
//	neither           → Decision{} (no function)
//
// An error from the learned classifier fails the whole resolution; the
// rule classifier never errors.
func (a *Arbiter) Resolve(ctx context.Context, query string) (Decision, error) {
	ctx, span := arbiterTracer.Start(ctx, "intent.Resolve")
	defer span.End()

	learned, err := a.learned.Classify(ctx, query)
	if err != nil {
		return Decision{}, err
	}
	rule, _ := a.rule.Classify(ctx, query)

	span.SetAttributes(
		attribute.String("intent.learned", learned),
		attribute.String("intent.rule", rule),
	)

	decision, outcome := reconcile(learned, rule, query)
	intentDecisionsTotal.WithLabelValues(outcome).Inc()
	span.SetAttributes(attribute.String("intent.outcome", outcome))

	a.logger.Debug("intent: arbiter decision",
		slog.String("learned", learned),
		slog.String("rule", rule),
		slog.String("outcome", outcome),
	)
	return decision, nil
}

func reconcile(learned, rule, query string) (Decision, string) {
	switch {
	case learned != NoVerdict && learned == rule:
		return Decision{Function: learned}, "agreed"
	case learned != NoVerdict && rule == NoVerdict:
		return Decision{Function: learned}, "learned_only"
	case learned == NoVerdict && rule != NoVerdict:
		return Decision{}, "rule_only"
	case learned != NoVerdict && rule != NoVerdict:
		return Decision{Clash: &Clash{Learned: learned, Rule: rule, Input: query}}, "clash"
	default:
		return Decision{}, "none"
	}
}
