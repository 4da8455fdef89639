// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package responder turns a dialog turn's outcome into the user-facing
// reply. It wraps the chat model with the project background, per-function
// guidelines and a rolling conversation memory, and supports an "@recap"
// marker that replays the stored history into the prompt.
package responder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tuasgeo/platechat/services/dialog/params"
	"github.com/tuasgeo/platechat/services/llm"
)

var responderTracer = otel.Tracer("platechat.responder")

var (
	// repliesTotal counts generated replies by mode.
	// Labels: mode (function, fallback), status (ok, error)
	repliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "platechat",
		Subsystem: "responder",
		Name:      "replies_total",
		Help:      "Total generated replies by mode and status",
	}, []string{"mode", "status"})
)

const (
	// recapMarker in the user input requests that stored history be
	// replayed into the prompt. It is stripped before the model sees the
	// query.
	recapMarker = "@recap"

	// defaultMaxTurns bounds the rolling memory.
	defaultMaxTurns = 5

	// memoryReplyLimit truncates stored assistant replies so long answers
	// do not crowd the context window on later turns.
	memoryReplyLimit = 600
)

// =============================================================================
// Conversation Memory
// =============================================================================

// Turn is one stored user/assistant exchange.
type Turn struct {
	User      string
	Assistant string
}

// Memory is the rolling per-conversation history. Like the dialogue state,
// it is owned by one conversation and must not be shared across them; the
// engine does not lock it.
type Memory struct {
	turns    []Turn
	maxTurns int
}

// NewMemory creates a memory keeping at most maxTurns exchanges. Pass 0
// for the default.
func NewMemory(maxTurns int) *Memory {
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	return &Memory{maxTurns: maxTurns}
}

// Add stores an exchange, evicting the oldest once over capacity. The
// assistant text is truncated to keep later prompts bounded.
func (m *Memory) Add(user, assistant string) {
	if len(assistant) > memoryReplyLimit {
		cut := memoryReplyLimit
		// Back off to a rune boundary so a multi-byte character is never
		// split mid-sequence.
		for cut > 0 && !utf8.RuneStart(assistant[cut]) {
			cut--
		}
		assistant = assistant[:cut] + "..."
	}
	m.turns = append(m.turns, Turn{User: user, Assistant: assistant})
	if len(m.turns) > m.maxTurns {
		m.turns = m.turns[len(m.turns)-m.maxTurns:]
	}
}

// Len returns the number of stored exchanges.
func (m *Memory) Len() int { return len(m.turns) }

func (m *Memory) recapBlock() string {
	var b strings.Builder
	b.WriteString("=== PREVIOUS CONVERSATION ===\n")
	for i, turn := range m.turns {
		fmt.Fprintf(&b, "User (%d): %s\n", i+1, strings.TrimSpace(turn.User))
		fmt.Fprintf(&b, "Assistant (%d): %s\n", i+1, strings.TrimSpace(turn.Assistant))
	}
	return strings.TrimSpace(b.String())
}

// =============================================================================
// Responder
// =============================================================================

// Request carries everything the responder needs for one reply. Function,
// Params and FunctionOutput are zero when the turn fell through to
// free-form conversation.
type Request struct {
	Utterance      string
	Function       string
	Params         params.Params
	FunctionOutput string

	// OnToken, when non-nil, receives streamed tokens as they arrive.
	OnToken func(string)
}

// Responder generates user-facing replies through a chat model.
//
// Thread Safety: Responder is safe for concurrent use across
// conversations; each conversation's Memory must be driven serially.
type Responder struct {
	chat   llm.ChatClient
	model  string
	logger *slog.Logger
}

// NewResponder creates a responder over the given chat client.
//
// Inputs:
//
//	chat   - Chat backend. Must not be nil.
//	model  - Model name passed to the chat client. May be empty when the
//	         client carries its own default.
//	logger - May be nil; defaults to slog.Default().
func NewResponder(chat llm.ChatClient, model string, logger *slog.Logger) *Responder {
	if chat == nil {
		panic("NewResponder: chat must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{chat: chat, model: model, logger: logger}
}

// Respond generates the reply for one turn and records the exchange in
// memory. The memory may be nil for one-shot calls.
func (r *Responder) Respond(ctx context.Context, req Request, memory *Memory) (string, error) {
	ctx, span := responderTracer.Start(ctx, "responder.Respond")
	defer span.End()

	mode := "fallback"
	if req.Function != "" {
		mode = "function"
	}
	span.SetAttributes(
		attribute.String("responder.mode", mode),
		attribute.String("responder.function", req.Function),
	)

	messages := r.buildMessages(req, memory)
	reply, err := r.chat.ChatStream(ctx, messages, llm.ChatOptions{Model: r.model}, req.OnToken)
	if err != nil {
		repliesTotal.WithLabelValues(mode, "error").Inc()
		r.logger.Error("responder: generation failed",
			slog.String("error", llm.SafeLogString(err.Error())),
		)
		return "", fmt.Errorf("responder: %w", err)
	}

	if memory != nil {
		memory.Add(cleanUtterance(req.Utterance), reply)
	}
	repliesTotal.WithLabelValues(mode, "ok").Inc()
	return reply, nil
}

// buildMessages assembles the prompt: common instructions, then the
// function guidelines (or the conversational fallback), then the resolved
// function block, then the recap when requested, then the user query.
func (r *Responder) buildMessages(req Request, memory *Memory) []llm.Message {
	messages := []llm.Message{{Role: "system", Content: systemInstructions}}

	if guidelines, ok := functionGuidelines[req.Function]; ok {
		messages = append(messages, llm.Message{Role: "system", Content: guidelines})
	} else {
		messages = append(messages, llm.Message{Role: "system", Content: fallbackInstructions})
	}

	if req.Function != "" || req.FunctionOutput != "" {
		var block strings.Builder
		if req.Function != "" {
			fmt.Fprintf(&block, "Function: %s\nParams: %v\n", req.Function, req.Params)
		}
		if req.FunctionOutput != "" {
			fmt.Fprintf(&block, "Output: %s\n", req.FunctionOutput)
		}
		messages = append(messages, llm.Message{Role: "system", Content: strings.TrimSpace(block.String())})
	}

	if strings.Contains(req.Utterance, recapMarker) && memory != nil && memory.Len() > 0 {
		messages = append(messages, llm.Message{Role: "system", Content: memory.recapBlock()})
	}

	messages = append(messages, llm.Message{
		Role:    "user",
		Content: "=== USER QUERY ===\n" + cleanUtterance(req.Utterance),
	})
	return messages
}

func cleanUtterance(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, recapMarker, ""))
}
