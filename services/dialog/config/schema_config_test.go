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
	"errors"
	"testing"
)

func TestLoadSlotSchema_EmbeddedDefaults(t *testing.T) {
	s, err := LoadSlotSchema()
	if err != nil {
		t.Fatalf("LoadSlotSchema: %v", err)
	}

	tests := []struct {
		name      string
		idParam   string
		idArity   string
		dateSlots []string
	}{
		{"Asaoka_data", "id", AritySingle, []string{"SCD", "ASD", "max_date"}},
		{"reporter_Asaoka", "ids", ArityMany, []string{"SCD", "ASD", "max_date"}},
		{"plot_combi_S", "ids", ArityMany, []string{"max_date"}},
		{"SM_overview", "ids", ArityMany, nil},
	}

	for _, tt := range tests {
		spec, err := s.Lookup(tt.name)
		if err != nil {
			t.Errorf("Lookup(%q): %v", tt.name, err)
			continue
		}
		if spec.IDParam != tt.idParam {
			t.Errorf("%s: IDParam = %q, want %q", tt.name, spec.IDParam, tt.idParam)
		}
		if spec.IDArity != tt.idArity {
			t.Errorf("%s: IDArity = %q, want %q", tt.name, spec.IDArity, tt.idArity)
		}
		if len(spec.DateSlots) != len(tt.dateSlots) {
			t.Errorf("%s: DateSlots = %v, want %v", tt.name, spec.DateSlots, tt.dateSlots)
			continue
		}
		for i, slot := range tt.dateSlots {
			if spec.DateSlots[i] != slot {
				t.Errorf("%s: DateSlots[%d] = %q, want %q", tt.name, i, spec.DateSlots[i], slot)
			}
		}
	}
}

func TestSlotSchema_LookupUnknown(t *testing.T) {
	s, err := LoadSlotSchema()
	if err != nil {
		t.Fatalf("LoadSlotSchema: %v", err)
	}
	_, err = s.Lookup("make_coffee")
	if !errors.Is(err, ErrUnsupportedFunction) {
		t.Errorf("Lookup(unknown) error = %v, want ErrUnsupportedFunction", err)
	}
}

func TestParseSlotSchema_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty document", "functions: []"},
		{"missing id_param", "functions:\n  - name: f\n    id_arity: single\n"},
		{"bad arity", "functions:\n  - name: f\n    id_param: id\n    id_arity: triple\n"},
		{"duplicate function", "functions:\n  - {name: f, id_param: id, id_arity: single}\n  - {name: f, id_param: ids, id_arity: many}\n"},
		{"malformed yaml", "functions: ["},
	}
	for _, tt := range tests {
		if _, err := ParseSlotSchema([]byte(tt.yaml)); err == nil {
			t.Errorf("%s: expected error, got nil", tt.name)
		}
	}
}

func TestLoadRuleConfig_OrderAndContent(t *testing.T) {
	cfg, err := LoadRuleConfig()
	if err != nil {
		t.Fatalf("LoadRuleConfig: %v", err)
	}
	if len(cfg.Groups) < 3 {
		t.Fatalf("expected at least 3 keyword groups, got %d", len(cfg.Groups))
	}
	// Plot vocabulary must come first: "plot" phrasings are the most common
	// and the group order decides first-match-wins ties.
	if cfg.Groups[0].Function != "plot_combi_S" {
		t.Errorf("first group = %q, want plot_combi_S", cfg.Groups[0].Function)
	}

	schema, err := LoadSlotSchema()
	if err != nil {
		t.Fatalf("LoadSlotSchema: %v", err)
	}
	for _, g := range cfg.Groups {
		if !schema.Known(g.Function) {
			t.Errorf("keyword group references unknown function %q", g.Function)
		}
	}
}

func TestParseRuleConfig_Invalid(t *testing.T) {
	if _, err := ParseRuleConfig([]byte("groups:\n  - function: f\n    keywords: []\n")); err == nil {
		t.Error("expected validation error for empty keyword list")
	}
	if _, err := ParseRuleConfig([]byte("groups: [")); err == nil {
		t.Error("expected parse error for malformed yaml")
	}
}
