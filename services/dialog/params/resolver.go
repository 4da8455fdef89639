// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package params fills the parameter slots of a chosen analysis function
// from the accumulated dialog context. The context text is the original
// query plus one "slot: answer" line per follow-up reply, so resolution
// reads both prose and those appended lines.
package params

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tuasgeo/platechat/services/dialog/config"
	"github.com/tuasgeo/platechat/services/dialog/extract"
)

var resolverTracer = otel.Tracer("platechat.dialog.params.resolver")

var (
	// resolutionsTotal counts resolve calls by result.
	// Labels: function, result (complete, missing_slot, unsupported)
	resolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "platechat",
		Subsystem: "params",
		Name:      "resolutions_total",
		Help:      "Total parameter resolutions by function and result",
	}, []string{"function", "result"})
)

// Params holds the resolved arguments for one function invocation. Keys are
// the function's parameter names ("id" or "ids" plus its date slots).
type Params map[string]any

// Resolution is the outcome of one resolve pass. Exactly one of Params and
// Missing is set: a complete resolution carries Params, an incomplete one
// names the first unfilled slot in schema order.
type Resolution struct {
	Params  Params
	Missing string
}

// Complete reports whether all required slots were filled.
func (r Resolution) Complete() bool { return r.Missing == "" }

// slotLinePattern matches the "slot: answer" lines the session appends to
// the context after each follow-up reply.
var slotLinePattern = regexp.MustCompile(`^([A-Za-z_]+):\s*(.*)$`)

// knownSlots is the full universe of slot names across all functions; lines
// led by anything else stay part of the prose.
var knownSlots = map[string]bool{
	config.PlatesSlot:   true,
	extract.SlotSCD:     true,
	extract.SlotASD:     true,
	extract.SlotMaxDate: true,
}

// Resolver fills function slots from dialog context text.
//
// Thread Safety: Resolver is safe for concurrent use.
type Resolver struct {
	schema *config.SlotSchema
	logger *slog.Logger
}

// NewResolver creates a resolver over the given function table.
//
// Inputs:
//
//	schema - Registered function table. Must not be nil.
//	logger - May be nil; defaults to slog.Default().
func NewResolver(schema *config.SlotSchema, logger *slog.Logger) *Resolver {
	if schema == nil {
		panic("NewResolver: schema must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{schema: schema, logger: logger}
}

// Resolve fills the slots of function from contextText.
//
// Plate IDs come from the prose and from "plates:" lines. Date slots are
// checked in schema order; each one fills from, in precedence order, its
// own "slot:" line, a date mention labeled for it by a nearby cue word, or
// the next unclaimed unlabeled date mention in reading order. The first
// slot that cannot be filled stops the pass and is reported in Missing, so
// the caller asks one question at a time.
//
// Outputs:
//
//	Resolution - Complete params or the first missing slot name.
//	error      - config.ErrUnsupportedFunction when function is unknown.
func (r *Resolver) Resolve(ctx context.Context, contextText, function string) (Resolution, error) {
	_, span := resolverTracer.Start(ctx, "params.Resolve")
	defer span.End()
	span.SetAttributes(attribute.String("params.function", function))

	spec, err := r.schema.Lookup(function)
	if err != nil {
		resolutionsTotal.WithLabelValues(function, "unsupported").Inc()
		return Resolution{}, err
	}

	prose, slotLines := splitContext(contextText)

	plates := extract.FindPlates(prose)
	plates = append(plates, extract.FindPlates(slotLines[config.PlatesSlot])...)
	if len(plates) == 0 {
		resolutionsTotal.WithLabelValues(function, "missing_slot").Inc()
		span.SetAttributes(attribute.String("params.missing", config.PlatesSlot))
		return Resolution{Missing: config.PlatesSlot}, nil
	}

	dates, missing := r.fillDates(spec, prose, slotLines)
	if missing != "" {
		resolutionsTotal.WithLabelValues(function, "missing_slot").Inc()
		span.SetAttributes(attribute.String("params.missing", missing))
		return Resolution{Missing: missing}, nil
	}

	resolved := Params{}
	switch spec.IDArity {
	case config.AritySingle:
		resolved[spec.IDParam] = plates[0]
	default:
		// Extraction order is preserved, duplicates included.
		resolved[spec.IDParam] = plates
	}
	for slot, iso := range dates {
		resolved[slot] = iso
	}

	resolutionsTotal.WithLabelValues(function, "complete").Inc()
	r.logger.Debug("params: resolution complete",
		slog.String("function", function),
		slog.Int("plate_count", len(plates)),
	)
	return Resolution{Params: resolved}, nil
}

// fillDates fills the spec's date slots in order. It returns the filled
// ISO dates and the name of the first slot that could not be filled.
func (r *Resolver) fillDates(spec config.FunctionSpec, prose string, slotLines map[string]string) (map[string]string, string) {
	mentions := extract.FindDateMentions(prose)
	claimed := make([]bool, len(mentions))
	filled := make(map[string]string, len(spec.DateSlots))

	// Labeled mentions bind to their slot up front so an earlier slot
	// cannot steal a later slot's cued date positionally.
	for i, m := range mentions {
		if m.Label != "" {
			claimed[i] = true
			if _, taken := filled[m.Label]; !taken {
				filled[m.Label] = m.ISO
			}
		}
	}

	for _, slot := range spec.DateSlots {
		if line, ok := slotLines[slot]; ok {
			iso := extract.NormalizeDate(line)
			if iso == "" {
				// The follow-up answer did not parse; ask again.
				return nil, slot
			}
			filled[slot] = iso
			continue
		}
		if _, ok := filled[slot]; ok {
			continue
		}
		if iso, ok := claimNext(mentions, claimed); ok {
			filled[slot] = iso
			continue
		}
		return nil, slot
	}

	// Drop labels for slots this function does not take.
	for slot := range filled {
		if !contains(spec.DateSlots, slot) {
			delete(filled, slot)
		}
	}
	return filled, ""
}

func claimNext(mentions []extract.DateMention, claimed []bool) (string, bool) {
	for i, m := range mentions {
		if !claimed[i] {
			claimed[i] = true
			return m.ISO, true
		}
	}
	return "", false
}

// splitContext separates "slot: answer" lines from the prose. Later lines
// for the same slot win, matching how a user corrects an earlier answer.
func splitContext(text string) (string, map[string]string) {
	var prose []string
	slotLines := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		m := slotLinePattern.FindStringSubmatch(strings.TrimSpace(line))
		if m != nil && knownSlots[m[1]] {
			slotLines[m[1]] = m[2]
			continue
		}
		prose = append(prose, line)
	}
	return strings.Join(prose, "\n"), slotLines
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
