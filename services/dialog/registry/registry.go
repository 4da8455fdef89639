// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package registry maps resolved function names to their implementations
// and runs them with the exact parameter shape the slot schema prescribes.
package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tuasgeo/platechat/services/dialog/config"
	"github.com/tuasgeo/platechat/services/dialog/params"
)

var (
	// invocationsTotal counts function runs by name and status.
	// Labels: function, status (ok, error)
	invocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "platechat",
		Subsystem: "registry",
		Name:      "invocations_total",
		Help:      "Total function invocations by name and status",
	}, []string{"function", "status"})
)

// Handler executes one registered analysis function.
type Handler interface {
	Invoke(ctx context.Context, p params.Params) (string, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, p params.Params) (string, error)

// Invoke implements Handler.
func (f HandlerFunc) Invoke(ctx context.Context, p params.Params) (string, error) {
	return f(ctx, p)
}

// Registry holds the function table. Registration happens once at startup;
// after that the table is read-only and safe for concurrent use.
type Registry struct {
	handlers map[string]Handler
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{handlers: make(map[string]Handler), logger: logger}
}

// Register binds a handler to a function name, replacing any previous one.
func (r *Registry) Register(name string, h Handler) {
	r.handlers[name] = h
}

// Run invokes the named function with the resolved parameters.
//
// Outputs:
//
//	string - The function's text result.
//	error  - config.ErrUnsupportedFunction when the name is unknown, or
//	         the handler's own failure.
func (r *Registry) Run(ctx context.Context, function string, p params.Params) (string, error) {
	h, ok := r.handlers[function]
	if !ok {
		invocationsTotal.WithLabelValues(function, "error").Inc()
		return "", fmt.Errorf("registry: %q: %w", function, config.ErrUnsupportedFunction)
	}
	out, err := h.Invoke(ctx, p)
	if err != nil {
		invocationsTotal.WithLabelValues(function, "error").Inc()
		return "", fmt.Errorf("registry: %s: %w", function, err)
	}
	invocationsTotal.WithLabelValues(function, "ok").Inc()
	r.logger.Debug("registry: invoked", slog.String("function", function))
	return out, nil
}
