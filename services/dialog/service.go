// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dialog wires the intent arbiter, parameter resolver, session
// engine, function registry and responder into one service and exposes
// them over HTTP.
package dialog

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/tuasgeo/platechat/services/dialog/config"
	"github.com/tuasgeo/platechat/services/dialog/intent"
	"github.com/tuasgeo/platechat/services/dialog/params"
	"github.com/tuasgeo/platechat/services/dialog/registry"
	"github.com/tuasgeo/platechat/services/dialog/session"
	"github.com/tuasgeo/platechat/services/llm"
	"github.com/tuasgeo/platechat/services/responder"
)

// ServiceConfig carries the injectable collaborators. Zero-value fields
// get defaults in NewService.
type ServiceConfig struct {
	// Chat is the model backend for classification and response
	// generation. Defaults to an Ollama client against OLLAMA_BASE_URL.
	Chat llm.ChatClient

	// Model is the model name passed to the chat client. Defaults to
	// the OLLAMA_MODEL environment variable.
	Model string

	// VerdictStore persists LLM classification verdicts. Nil disables
	// caching.
	VerdictStore intent.VerdictStore

	// Data backs the plate overview function. Nil leaves the overview
	// reporting that no data is configured.
	Data registry.DataSource

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultServiceConfig returns a config wired against a local Ollama
// instance with no verdict cache and no data source.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Chat:  llm.NewOllamaClient("", ""),
		Model: os.Getenv("OLLAMA_MODEL"),
	}
}

// Service owns the assembled dialog engine. Construct once per process;
// all parts are safe for concurrent use across conversations.
type Service struct {
	schema    *config.SlotSchema
	arbiter   *intent.Arbiter
	resolver  *params.Resolver
	engine    *session.Engine
	registry  *registry.Registry
	responder *responder.Responder
	sessions  *SessionStore
	logger    *slog.Logger
}

// NewService loads the embedded configuration and assembles the engine.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Chat == nil {
		cfg.Chat = llm.NewOllamaClient("", "")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	schema, err := config.LoadSlotSchema()
	if err != nil {
		return nil, fmt.Errorf("dialog: load slot schema: %w", err)
	}
	rules, err := config.LoadRuleConfig()
	if err != nil {
		return nil, fmt.Errorf("dialog: load rule config: %w", err)
	}

	learned := intent.NewCachedClassifier(
		intent.NewLLMClassifier(cfg.Chat, schema, cfg.Model, cfg.Logger),
		cfg.VerdictStore,
		cfg.Logger,
	)
	arbiter := intent.NewArbiter(learned, intent.NewRuleClassifier(rules), cfg.Logger)
	resolver := params.NewResolver(schema, cfg.Logger)

	reg := registry.NewRegistry(cfg.Logger)
	registry.RegisterDefaults(reg, cfg.Data)

	return &Service{
		schema:    schema,
		arbiter:   arbiter,
		resolver:  resolver,
		engine:    session.NewEngine(arbiter, resolver, cfg.Logger),
		registry:  reg,
		responder: responder.NewResponder(cfg.Chat, cfg.Model, cfg.Logger),
		sessions:  NewSessionStore(),
		logger:    cfg.Logger,
	}, nil
}
