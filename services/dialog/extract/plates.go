// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extract pulls structured values out of free-text utterances:
// settlement-plate identifiers and calendar dates. All functions here are
// pure and safe for concurrent use.
package extract

import "regexp"

// platePattern matches settlement-plate identifiers: project tag "F3",
// two-digit zone index plus zone letter ("R15c"), instrument tag "SM" and a
// one-or-two digit index. The pattern is carried over verbatim from the
// monitoring system's plate register.
var platePattern = regexp.MustCompile(`F3-R\d{2}[a-z]-SM-(?:[0-9][0-9]?|80)`)

// FindPlates extracts plate identifiers from text.
//
// Outputs:
//
//	[]string - Identifiers in order of first appearance, duplicates kept.
//	           Nil when nothing matches; callers treat that as the synthetic
//	           "plates" slot being unfilled.
func FindPlates(text string) []string {
	return platePattern.FindAllString(text, -1)
}
