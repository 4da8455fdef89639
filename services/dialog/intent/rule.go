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
	"strings"

	"github.com/tuasgeo/platechat/services/dialog/config"
)

// RuleClassifier matches a query against ordered keyword groups. The first
// group containing any keyword that appears in the lowercased query wins,
// so group order in the config resolves keyword collisions deterministically.
//
// Thread Safety: RuleClassifier is immutable after construction and safe
// for concurrent use.
type RuleClassifier struct {
	groups []config.KeywordGroup
}

// NewRuleClassifier creates a classifier from the given keyword config.
func NewRuleClassifier(rules *config.RuleConfig) *RuleClassifier {
	if rules == nil {
		panic("NewRuleClassifier: rules must not be nil")
	}
	return &RuleClassifier{groups: rules.Groups}
}

// Classify implements Classifier. It never returns an error; a query with
// no keyword hits yields NoVerdict.
func (c *RuleClassifier) Classify(_ context.Context, query string) (string, error) {
	lowered := strings.ToLower(query)
	for _, group := range c.groups {
		for _, keyword := range group.Keywords {
			if strings.Contains(lowered, keyword) {
				return group.Function, nil
			}
		}
	}
	return NoVerdict, nil
}
