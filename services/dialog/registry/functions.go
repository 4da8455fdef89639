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
	"fmt"
	"strings"

	"github.com/tuasgeo/platechat/services/dialog/params"
)

// =============================================================================
// Data Source
// =============================================================================

// PlateRecord is one settlement plate's monitoring summary. Field names
// track the instrumentation export columns operators already know.
type PlateRecord struct {
	ID               string
	LatestSettlement string
	LatestGL         string
	LatestDate       string
	AsaokaDOC        string
	HoldingPeriod    string
	SevenDayRate     string
}

// DataSource supplies plate monitoring records to the overview function.
//
// Thread Safety: Implementations must be safe for concurrent use.
type DataSource interface {
	// PlateOverview returns the records for the given plate IDs, in the
	// requested order. Unknown IDs are skipped, not errors.
	PlateOverview(ctx context.Context, ids []string) ([]PlateRecord, error)
}

// StaticDataSource serves records from an in-memory table keyed by plate
// ID. It backs tests and deployments where the instrumentation export is
// loaded at startup.
type StaticDataSource struct {
	records map[string]PlateRecord
}

// NewStaticDataSource builds a source over the given records.
func NewStaticDataSource(records []PlateRecord) *StaticDataSource {
	table := make(map[string]PlateRecord, len(records))
	for _, rec := range records {
		table[rec.ID] = rec
	}
	return &StaticDataSource{records: table}
}

// PlateOverview implements DataSource.
func (s *StaticDataSource) PlateOverview(_ context.Context, ids []string) ([]PlateRecord, error) {
	out := make([]PlateRecord, 0, len(ids))
	for _, id := range ids {
		if rec, ok := s.records[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// =============================================================================
// Registered Functions
// =============================================================================

// RegisterDefaults installs the standard four functions into the registry.
// The data source is only needed by the overview function; passing nil
// leaves it reporting that no data is configured.
func RegisterDefaults(r *Registry, data DataSource) {
	r.Register("Asaoka_data", HandlerFunc(asaokaData))
	r.Register("reporter_Asaoka", HandlerFunc(reporterAsaoka))
	r.Register("plot_combi_S", HandlerFunc(plotCombiS))
	r.Register("SM_overview", HandlerFunc(smOverview(data)))
}

func asaokaData(_ context.Context, p params.Params) (string, error) {
	id, err := stringParam(p, "id")
	if err != nil {
		return "", err
	}
	scd, asd, maxDate, err := dateParams(p)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Processed Asaoka data for ID: %s, SCD: %s, ASD: %s, Max Date: %s", id, scd, asd, maxDate), nil
}

func reporterAsaoka(_ context.Context, p params.Params) (string, error) {
	ids, err := stringsParam(p, "ids")
	if err != nil {
		return "", err
	}
	scd, asd, maxDate, err := dateParams(p)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Generated report for IDs: %s, SCD: %s, ASD: %s, Max Date: %s",
		strings.Join(ids, ", "), scd, asd, maxDate), nil
}

func plotCombiS(_ context.Context, p params.Params) (string, error) {
	ids, err := stringsParam(p, "ids")
	if err != nil {
		return "", err
	}
	maxDate, err := stringParam(p, "max_date")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Plotted combined data for IDs: %s, Max Date: %s", strings.Join(ids, ", "), maxDate), nil
}

// smOverview renders a per-plate status table from the data source.
func smOverview(data DataSource) func(context.Context, params.Params) (string, error) {
	return func(ctx context.Context, p params.Params) (string, error) {
		ids, err := stringsParam(p, "ids")
		if err != nil {
			return "", err
		}
		if data == nil {
			return "No monitoring data source is configured.", nil
		}
		records, err := data.PlateOverview(ctx, ids)
		if err != nil {
			return "", fmt.Errorf("overview: %w", err)
		}
		if len(records) == 0 {
			return fmt.Sprintf("No monitoring records found for: %s", strings.Join(ids, ", ")), nil
		}

		var b strings.Builder
		b.WriteString("| Plate ID | Latest Settlement | Latest GL | Latest Date | Asaoka DOC | Holding Period | 7-Day Rate |\n")
		b.WriteString("|---|---|---|---|---|---|---|\n")
		for _, rec := range records {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
				rec.ID, rec.LatestSettlement, rec.LatestGL, rec.LatestDate,
				rec.AsaokaDOC, rec.HoldingPeriod, rec.SevenDayRate)
		}
		return b.String(), nil
	}
}

// =============================================================================
// Param Accessors
// =============================================================================

func stringParam(p params.Params, key string) (string, error) {
	v, ok := p[key]
	if !ok {
		return "", fmt.Errorf("missing parameter %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter %q is %T, want string", key, v)
	}
	return s, nil
}

func stringsParam(p params.Params, key string) ([]string, error) {
	v, ok := p[key]
	if !ok {
		return nil, fmt.Errorf("missing parameter %q", key)
	}
	list, ok := v.([]string)
	if !ok {
		return nil, fmt.Errorf("parameter %q is %T, want []string", key, v)
	}
	return list, nil
}

func dateParams(p params.Params) (scd, asd, maxDate string, err error) {
	if scd, err = stringParam(p, "SCD"); err != nil {
		return "", "", "", err
	}
	if asd, err = stringParam(p, "ASD"); err != nil {
		return "", "", "", err
	}
	if maxDate, err = stringParam(p, "max_date"); err != nil {
		return "", "", "", err
	}
	return scd, asd, maxDate, nil
}
