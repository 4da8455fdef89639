// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Default Rule Keywords
// =============================================================================

//go:embed rule_keywords.yaml
var defaultRuleKeywordsYAML []byte

// KeywordGroup maps one function to the keywords that suggest it.
//
// Groups are ordered: the first group with any matching keyword wins, so the
// table order is part of the classifier's observable behavior.
type KeywordGroup struct {
	// Function is the function name this group votes for.
	Function string `yaml:"function" validate:"required"`

	// Keywords are matched case-insensitively as substrings of the utterance.
	Keywords []string `yaml:"keywords" validate:"required,min=1"`
}

// RuleConfig is the loaded keyword table for the rule classifier.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type RuleConfig struct {
	Groups []KeywordGroup `yaml:"groups" validate:"required,min=1,dive"`
}

var (
	defaultRulesOnce sync.Once
	defaultRules     *RuleConfig
	defaultRulesErr  error
)

// LoadRuleConfig returns the embedded default keyword table.
func LoadRuleConfig() (*RuleConfig, error) {
	defaultRulesOnce.Do(func() {
		defaultRules, defaultRulesErr = ParseRuleConfig(defaultRuleKeywordsYAML)
	})
	return defaultRules, defaultRulesErr
}

// ParseRuleConfig parses and validates a YAML keyword table.
func ParseRuleConfig(data []byte) (*RuleConfig, error) {
	var cfg RuleConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("rule keywords: parse: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("rule keywords: validate: %w", err)
	}
	return &cfg, nil
}
