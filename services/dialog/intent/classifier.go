// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package intent maps free-form user queries to registered analysis
// function names. Two classifiers run side by side — a learned one backed
// by an LLM and a keyword rule matcher — and an arbiter reconciles their
// verdicts, surfacing a clash to the user when they disagree.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tuasgeo/platechat/services/dialog/config"
	"github.com/tuasgeo/platechat/services/llm"
)

// NoVerdict is the empty label a classifier returns when it cannot map the
// query to any registered function.
const NoVerdict = ""

// Classifier maps a raw user query to a registered function name.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Classifier interface {
	// Classify returns the function name the query maps to, or NoVerdict
	// when no registered function fits. An error means the classifier
	// itself failed (transport, backend), not that it abstained.
	Classify(ctx context.Context, query string) (string, error)
}

// =============================================================================
// LLM Classifier
// =============================================================================

const classifierSystemPrompt = `You classify user requests about settlement plate monitoring into exactly one function name.

Known functions:
%s

Respond with JSON: {"function": "<name>"}.
If none of the functions fit the request, respond with {"function": "none"}.
Do not add any other text.`

// verdictEnvelope is the JSON shape the model is prompted to produce.
type verdictEnvelope struct {
	Function string `json:"function"`
}

// LLMClassifier asks a chat model which registered function a query maps
// to. The model is prompted for a one-field JSON object; replies that are
// not parseable, or that name an unknown function, count as no verdict
// rather than an error — a confused model should not fail the turn.
//
// Thread Safety: LLMClassifier is safe for concurrent use.
type LLMClassifier struct {
	chat   llm.ChatClient
	schema *config.SlotSchema
	model  string
	logger *slog.Logger
}

// NewLLMClassifier creates a classifier backed by the given chat client.
//
// Inputs:
//
//	chat   - Chat backend. Must not be nil.
//	schema - Registered function table. Must not be nil.
//	model  - Model name passed through to the chat client. May be empty
//	         when the client carries its own default.
//	logger - May be nil; defaults to slog.Default().
func NewLLMClassifier(chat llm.ChatClient, schema *config.SlotSchema, model string, logger *slog.Logger) *LLMClassifier {
	if chat == nil {
		panic("NewLLMClassifier: chat must not be nil")
	}
	if schema == nil {
		panic("NewLLMClassifier: schema must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMClassifier{chat: chat, schema: schema, model: model, logger: logger}
}

// Model returns the model name this classifier calls with. Used by the
// verdict cache to key entries per model.
func (c *LLMClassifier) Model() string { return c.model }

// Classify implements Classifier.
func (c *LLMClassifier) Classify(ctx context.Context, query string) (string, error) {
	var functions strings.Builder
	for _, name := range c.schema.Names() {
		spec, _ := c.schema.Lookup(name)
		fmt.Fprintf(&functions, "- %s (date slots: %s)\n", name, describeSlots(spec))
	}

	messages := []llm.Message{
		{Role: "system", Content: fmt.Sprintf(classifierSystemPrompt, functions.String())},
		{Role: "user", Content: query},
	}
	raw, err := c.chat.Chat(ctx, messages, llm.ChatOptions{Model: c.model, Temperature: 0})
	if err != nil {
		return NoVerdict, fmt.Errorf("intent: llm classify: %w", err)
	}

	label := c.parseVerdict(raw)
	c.logger.Debug("intent: llm verdict",
		slog.String("label", label),
		slog.Int("query_len", len(query)),
	)
	return label, nil
}

// parseVerdict extracts a function name from the model reply. JSON is tried
// first; failing that, the reply text itself is matched against the known
// set so bare-name answers like "Asaoka_data" still count.
func (c *LLMClassifier) parseVerdict(raw string) string {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var envelope verdictEnvelope
	if err := json.Unmarshal([]byte(trimmed), &envelope); err == nil {
		if c.schema.Known(envelope.Function) {
			return envelope.Function
		}
		return NoVerdict
	}

	for _, name := range c.schema.Names() {
		if strings.Contains(trimmed, name) {
			return name
		}
	}
	return NoVerdict
}

func describeSlots(spec config.FunctionSpec) string {
	if len(spec.DateSlots) == 0 {
		return "none"
	}
	return strings.Join(spec.DateSlots, ", ")
}
