// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package registry

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tuasgeo/platechat/services/dialog/config"
	"github.com/tuasgeo/platechat/services/dialog/params"
)

func newTestRegistry() *Registry {
	r := NewRegistry(nil)
	RegisterDefaults(r, NewStaticDataSource([]PlateRecord{
		{
			ID:               "F3-R09a-SM-12",
			LatestSettlement: "4.213m",
			LatestGL:         "+5.1 mCD",
			LatestDate:       "2025-08-20",
			AsaokaDOC:        "92.4%",
			HoldingPeriod:    "41 days",
			SevenDayRate:     "2.1 mm/day",
		},
	}))
	return r
}

func TestRun_AsaokaData(t *testing.T) {
	r := newTestRegistry()
	out, err := r.Run(context.Background(), "Asaoka_data", params.Params{
		"id": "F3-R09a-SM-12", "SCD": "2025-06-01", "ASD": "2025-06-15", "max_date": "2025-07-31",
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	want := "Processed Asaoka data for ID: F3-R09a-SM-12, SCD: 2025-06-01, ASD: 2025-06-15, Max Date: 2025-07-31"
	if out != want {
		t.Errorf("Run() = %q, want %q", out, want)
	}
}

func TestRun_PlotCombiS(t *testing.T) {
	r := newTestRegistry()
	out, err := r.Run(context.Background(), "plot_combi_S", params.Params{
		"ids": []string{"F3-R15c-SM-33"}, "max_date": "2024-01-28",
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	want := "Plotted combined data for IDs: F3-R15c-SM-33, Max Date: 2024-01-28"
	if out != want {
		t.Errorf("Run() = %q, want %q", out, want)
	}
}

func TestRun_ReporterAsaoka(t *testing.T) {
	r := newTestRegistry()
	out, err := r.Run(context.Background(), "reporter_Asaoka", params.Params{
		"ids": []string{"F3-R09a-SM-12", "F3-R10b-SM-3"},
		"SCD": "2025-06-01", "ASD": "2025-06-15", "max_date": "2025-07-31",
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !strings.Contains(out, "F3-R09a-SM-12, F3-R10b-SM-3") {
		t.Errorf("Run() = %q, want both IDs listed", out)
	}
}

func TestRun_SMOverview(t *testing.T) {
	r := newTestRegistry()
	out, err := r.Run(context.Background(), "SM_overview", params.Params{
		"ids": []string{"F3-R09a-SM-12", "F3-R99z-SM-1"},
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !strings.Contains(out, "F3-R09a-SM-12") || !strings.Contains(out, "92.4%") {
		t.Errorf("Run() = %q, want the known plate's record", out)
	}
	// Unknown plates are skipped, not errors.
	if strings.Contains(out, "F3-R99z-SM-1") {
		t.Errorf("Run() = %q, unknown plate should be absent", out)
	}
}

func TestRun_SMOverviewNoMatches(t *testing.T) {
	r := newTestRegistry()
	out, err := r.Run(context.Background(), "SM_overview", params.Params{
		"ids": []string{"F3-R99z-SM-1"},
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !strings.Contains(out, "No monitoring records") {
		t.Errorf("Run() = %q, want empty-result message", out)
	}
}

func TestRun_UnknownFunction(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Run(context.Background(), "delete_everything", params.Params{})
	if !errors.Is(err, config.ErrUnsupportedFunction) {
		t.Errorf("error = %v, want ErrUnsupportedFunction", err)
	}
}

func TestRun_WrongParamShape(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Run(context.Background(), "plot_combi_S", params.Params{
		"ids": "F3-R15c-SM-33", // string, not []string
		"max_date": "2024-01-28",
	})
	if err == nil {
		t.Fatal("Run() should reject a mis-shaped parameter")
	}
}
