// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the embedded dialog configuration: the slot schema
// (which parameters each domain function requires) and the keyword table
// backing the rule-based intent classifier.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Default Slot Schema
// =============================================================================

//go:embed slot_schema.yaml
var defaultSlotSchemaYAML []byte

// ErrUnsupportedFunction is returned when a function name is not present in
// the slot schema. It indicates a programming or configuration error, not a
// user mistake: callers abort the current resolution rather than re-prompting.
var ErrUnsupportedFunction = errors.New("unsupported function")

// Identifier arities for FunctionSpec.IDArity.
const (
	AritySingle = "single"
	ArityMany   = "many"
)

// PlatesSlot is the synthetic slot name reported when no plate identifier can
// be extracted from an utterance, regardless of target function.
const PlatesSlot = "plates"

// =============================================================================
// Schema Types
// =============================================================================

// FunctionSpec declares the parameter shape of one domain function.
//
// Description:
//
//	Every domain function takes one or more plate identifiers (under IDParam,
//	as a single string or a list depending on IDArity) plus zero or more date
//	slots in the declared order.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type FunctionSpec struct {
	// Name is the function name as produced by the intent classifiers.
	Name string `yaml:"name" validate:"required"`

	// IDParam is the parameter key the identifiers are assembled under
	// ("id" for single-plate functions, "ids" for multi-plate ones).
	IDParam string `yaml:"id_param" validate:"required"`

	// IDArity is "single" or "many".
	IDArity string `yaml:"id_arity" validate:"required,oneof=single many"`

	// DateSlots are the required date parameters, in resolution order.
	DateSlots []string `yaml:"date_slots"`
}

// schemaFile is the on-disk YAML shape.
type schemaFile struct {
	Functions []FunctionSpec `yaml:"functions" validate:"required,min=1,dive"`
}

// SlotSchema is the loaded function → required-slots table.
//
// Thread Safety: Immutable after construction; safe for concurrent use.
type SlotSchema struct {
	specs map[string]FunctionSpec
	order []string
}

// =============================================================================
// Loading
// =============================================================================

var (
	defaultSchemaOnce sync.Once
	defaultSchema     *SlotSchema
	defaultSchemaErr  error
)

// LoadSlotSchema returns the embedded default slot schema.
//
// The result is parsed and validated once and shared; it must be treated as
// read-only.
func LoadSlotSchema() (*SlotSchema, error) {
	defaultSchemaOnce.Do(func() {
		defaultSchema, defaultSchemaErr = ParseSlotSchema(defaultSlotSchemaYAML)
	})
	return defaultSchema, defaultSchemaErr
}

// ParseSlotSchema parses and validates a YAML slot schema document.
//
// Inputs:
//
//	data - Raw YAML bytes.
//
// Outputs:
//
//	*SlotSchema - The loaded schema. Nil on error.
//	error       - Non-nil if the document is malformed, fails validation,
//	              or declares the same function twice.
func ParseSlotSchema(data []byte) (*SlotSchema, error) {
	var file schemaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("slot schema: parse: %w", err)
	}
	if err := validator.New().Struct(&file); err != nil {
		return nil, fmt.Errorf("slot schema: validate: %w", err)
	}

	s := &SlotSchema{specs: make(map[string]FunctionSpec, len(file.Functions))}
	for _, fn := range file.Functions {
		if _, dup := s.specs[fn.Name]; dup {
			return nil, fmt.Errorf("slot schema: duplicate function %q", fn.Name)
		}
		s.specs[fn.Name] = fn
		s.order = append(s.order, fn.Name)
	}
	return s, nil
}

// Lookup returns the spec for a function name.
//
// Outputs:
//
//	FunctionSpec - The declared parameter shape.
//	error        - Wraps ErrUnsupportedFunction if the name is unknown.
func (s *SlotSchema) Lookup(name string) (FunctionSpec, error) {
	spec, ok := s.specs[name]
	if !ok {
		return FunctionSpec{}, fmt.Errorf("%w: %q", ErrUnsupportedFunction, name)
	}
	return spec, nil
}

// Known reports whether a function name is declared in the schema.
func (s *SlotSchema) Known(name string) bool {
	_, ok := s.specs[name]
	return ok
}

// Names returns the declared function names in file order.
func (s *SlotSchema) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
