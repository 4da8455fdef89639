// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session drives the turn-by-turn slot-filling dialogue. A
// Dialogue is an in-memory value owned by one conversation; the engine
// assumes the caller serializes turns, so no locking happens here.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tuasgeo/platechat/services/dialog/intent"
	"github.com/tuasgeo/platechat/services/dialog/params"
)

var sessionTracer = otel.Tracer("platechat.dialog.session")

var (
	// turnOutcomesTotal counts turn outcomes across all sessions.
	// Labels: outcome (resolved, awaiting_slot, clash_pending, cancelled, no_function, failed)
	turnOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "platechat",
		Subsystem: "session",
		Name:      "turn_outcomes_total",
		Help:      "Total dialog turn outcomes",
	}, []string{"outcome"})
)

// cancelPhrases end an in-flight slot-filling or clash exchange. Matching
// is case-insensitive on the trimmed answer.
var cancelPhrases = map[string]bool{
	"skip":       true,
	"never mind": true,
	"nvm":        true,
	"nah":        true,
}

// IsCancelPhrase reports whether the answer is a recognized cancellation.
func IsCancelPhrase(answer string) bool {
	return cancelPhrases[strings.ToLower(strings.TrimSpace(answer))]
}

// ErrNotACandidate reports a clash pick that matches neither candidate.
// The clash stands; the caller should re-ask rather than abort.
var ErrNotACandidate = errors.New("session: selection is not a clash candidate")

// PromptForSlot is the follow-up question shown when a slot is missing.
func PromptForSlot(slot string) string {
	return fmt.Sprintf("What's your %s?", slot)
}

// =============================================================================
// Outcomes
// =============================================================================

// OutcomeKind tags the result of one turn.
type OutcomeKind string

const (
	// OutcomeResolved means a function and its full parameter set were
	// determined; Function and Params are set.
	OutcomeResolved OutcomeKind = "resolved"

	// OutcomeAwaitingSlot means one slot is still unfilled; Slot names it
	// and the dialogue stays open for the answer.
	OutcomeAwaitingSlot OutcomeKind = "awaiting_slot"

	// OutcomeClashPending means the classifiers disagreed; Clash carries
	// both candidates and the dialogue waits for the user's pick.
	OutcomeClashPending OutcomeKind = "clash_pending"

	// OutcomeCancelled means the user backed out; the caller falls back to
	// free-form answering with the original query.
	OutcomeCancelled OutcomeKind = "cancelled"

	// OutcomeNoFunction means no registered function fits the utterance;
	// the caller answers it free-form. No dialogue is opened.
	OutcomeNoFunction OutcomeKind = "no_function"

	// OutcomeFailed means a non-recoverable error (classifier transport,
	// unknown function name); Err is set and the dialogue is closed.
	OutcomeFailed OutcomeKind = "failed"
)

// Outcome is the result of one turn through the state machine.
type Outcome struct {
	Kind     OutcomeKind
	Function string
	Params   params.Params
	Slot     string
	Clash    *intent.Clash
	Err      error
}

// =============================================================================
// Dialogue State
// =============================================================================

type dialogueState string

const (
	stateAwaitingSlot dialogueState = "awaiting_slot"
	stateClashPending dialogueState = "clash_pending"
	stateClosed       dialogueState = "closed"
)

// Dialogue is the per-conversation state between turns. It exists only
// while a question is pending — resolved and no-function turns never
// allocate one. The caller owns storage and must serialize turns.
type Dialogue struct {
	state dialogueState

	// OriginalQuery is the first utterance, kept verbatim so cancellation
	// can fall back to it unaugmented.
	OriginalQuery string

	// Function is the chosen function once known.
	Function string

	// Context accumulates the original prose plus one "slot: answer" line
	// per follow-up reply.
	Context string

	// PendingSlot is the slot the open question asks for.
	PendingSlot string

	// Clash holds the candidates while the user's pick is pending.
	Clash *intent.Clash
}

// Open reports whether the dialogue still expects another turn.
func (d *Dialogue) Open() bool {
	return d != nil && (d.state == stateAwaitingSlot || d.state == stateClashPending)
}

// AwaitingSlot reports whether the dialogue is waiting on a slot answer.
func (d *Dialogue) AwaitingSlot() bool { return d != nil && d.state == stateAwaitingSlot }

// ClashPending reports whether the dialogue is waiting on a clash pick.
func (d *Dialogue) ClashPending() bool { return d != nil && d.state == stateClashPending }

// =============================================================================
// Engine
// =============================================================================

// Engine runs the intent arbiter and parameter resolver through the
// session state machine. It holds no per-conversation state itself.
//
// Thread Safety: Engine is safe for concurrent use across dialogues; a
// single Dialogue must not be driven by two turns at once.
type Engine struct {
	arbiter  *intent.Arbiter
	resolver *params.Resolver
	logger   *slog.Logger
}

// NewEngine creates an engine over the given arbiter and resolver.
//
// Inputs:
//
//	arbiter  - Intent arbiter. Must not be nil.
//	resolver - Parameter resolver. Must not be nil.
//	logger   - May be nil; defaults to slog.Default().
func NewEngine(arbiter *intent.Arbiter, resolver *params.Resolver, logger *slog.Logger) *Engine {
	if arbiter == nil || resolver == nil {
		panic("NewEngine: arbiter and resolver must be non-nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{arbiter: arbiter, resolver: resolver, logger: logger}
}

// Open handles the first utterance of a conversation turn.
//
// Outputs:
//
//	*Dialogue - Non-nil only when another turn is expected (awaiting a
//	            slot answer or a clash pick).
//	Outcome   - The turn result.
func (e *Engine) Open(ctx context.Context, utterance string) (*Dialogue, Outcome) {
	ctx, span := sessionTracer.Start(ctx, "session.Open")
	defer span.End()

	decision, err := e.arbiter.Resolve(ctx, utterance)
	if err != nil {
		return nil, e.finish(span, nil, Outcome{Kind: OutcomeFailed, Err: err})
	}
	if decision.Clash != nil {
		d := &Dialogue{
			state:         stateClashPending,
			OriginalQuery: utterance,
			Context:       utterance,
			Clash:         decision.Clash,
		}
		return d, e.finish(span, d, Outcome{Kind: OutcomeClashPending, Clash: decision.Clash})
	}
	if decision.Function == "" {
		return nil, e.finish(span, nil, Outcome{Kind: OutcomeNoFunction})
	}
	return e.resolveInto(ctx, span, &Dialogue{
		OriginalQuery: utterance,
		Function:      decision.Function,
		Context:       utterance,
	})
}

// Submit handles a follow-up answer while a slot question is open.
func (e *Engine) Submit(ctx context.Context, d *Dialogue, answer string) Outcome {
	ctx, span := sessionTracer.Start(ctx, "session.Submit")
	defer span.End()

	if !d.AwaitingSlot() {
		return e.finish(span, d, Outcome{Kind: OutcomeFailed, Err: errors.New("session: no slot question is open")})
	}
	if IsCancelPhrase(answer) {
		d.state = stateClosed
		return e.finish(span, d, Outcome{Kind: OutcomeCancelled})
	}

	d.Context += fmt.Sprintf("\n%s: %s", d.PendingSlot, answer)
	d.PendingSlot = ""
	_, outcome := e.resolveInto(ctx, span, d)
	return outcome
}

// Choose handles the user's pick while a clash is pending. The selection
// must be one of the clash candidates; a cancel phrase (or "cancel")
// abandons the exchange.
func (e *Engine) Choose(ctx context.Context, d *Dialogue, selection string) Outcome {
	ctx, span := sessionTracer.Start(ctx, "session.Choose")
	defer span.End()

	if !d.ClashPending() {
		return e.finish(span, d, Outcome{Kind: OutcomeFailed, Err: errors.New("session: no clash is pending")})
	}
	trimmed := strings.TrimSpace(selection)
	if IsCancelPhrase(trimmed) || strings.EqualFold(trimmed, "cancel") {
		d.state = stateClosed
		return e.finish(span, d, Outcome{Kind: OutcomeCancelled})
	}
	if trimmed != d.Clash.Learned && trimmed != d.Clash.Rule {
		return e.finish(span, d, Outcome{
			Kind: OutcomeFailed,
			Err:  fmt.Errorf("%w: %q", ErrNotACandidate, trimmed),
		})
	}

	// Resolution runs against the input that was active at clash time.
	d.Function = trimmed
	d.Context = d.Clash.Input
	d.Clash = nil
	_, outcome := e.resolveInto(ctx, span, d)
	return outcome
}

// resolveInto runs the resolver for the dialogue's function and moves the
// dialogue to its next state.
func (e *Engine) resolveInto(ctx context.Context, span trace.Span, d *Dialogue) (*Dialogue, Outcome) {
	res, err := e.resolver.Resolve(ctx, d.Context, d.Function)
	if err != nil {
		// Unsupported function names and other resolver failures abort the
		// session; they are config errors, never retried.
		d.state = stateClosed
		return nil, e.finish(span, d, Outcome{Kind: OutcomeFailed, Function: d.Function, Err: err})
	}
	if !res.Complete() {
		d.state = stateAwaitingSlot
		d.PendingSlot = res.Missing
		return d, e.finish(span, d, Outcome{Kind: OutcomeAwaitingSlot, Function: d.Function, Slot: res.Missing})
	}
	d.state = stateClosed
	return nil, e.finish(span, d, Outcome{Kind: OutcomeResolved, Function: d.Function, Params: res.Params})
}

func (e *Engine) finish(span trace.Span, d *Dialogue, outcome Outcome) Outcome {
	turnOutcomesTotal.WithLabelValues(string(outcome.Kind)).Inc()
	span.SetAttributes(attribute.String("session.outcome", string(outcome.Kind)))
	if outcome.Err != nil {
		e.logger.Warn("session: turn failed", slog.String("error", outcome.Err.Error()))
	} else {
		attrs := []any{slog.String("outcome", string(outcome.Kind))}
		if outcome.Function != "" {
			attrs = append(attrs, slog.String("function", outcome.Function))
		}
		if d != nil && d.PendingSlot != "" {
			attrs = append(attrs, slog.String("pending_slot", d.PendingSlot))
		}
		e.logger.Debug("session: turn", attrs...)
	}
	return outcome
}
