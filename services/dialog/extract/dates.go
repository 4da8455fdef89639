// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	naturaldate "github.com/tj/go-naturaldate"
)

// ReferenceYear is the year assumed for date fragments that omit one
// ("13/10", "16 Nov"). It is deliberately a literal, not time.Now(): the
// deployed system was calibrated against this value and downstream reports
// compare against dates produced with it. Changing it to a dynamic year
// silently shifts every year-less date in stored transcripts.
const ReferenceYear = 2025

// monthByPrefix resolves month names through their first three letters,
// which also accepts abbreviated forms ("Sep", "Aug.").
var monthByPrefix = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// =============================================================================
// Pattern Ladder
// =============================================================================
//
// The ladder below is evaluated top to bottom and the FIRST matching rule
// wins, even when a later rule would also match. That makes ambiguous
// fragments deterministic ("Aug 24" is always month+year, never month+day)
// and makes the rule order part of the observable contract — do not reorder.

var (
	// 1. DD-MM-YYYY / DD/MM/YYYY (day first; 2-digit years expand to 20YY)
	reDayMonYear = regexp.MustCompile(`^(\d{1,2})[-/](\d{1,2})[-/](\d{2}|\d{4})$`)

	// 2. YYYY-MM-DD / YYYY/MM/DD
	reYearMonDay = regexp.MustCompile(`^(\d{4})[-/](\d{1,2})[-/](\d{1,2})$`)

	// 3. DD-MM / DD/MM (reference year assumed)
	reDayMon = regexp.MustCompile(`^(\d{1,2})[-/](\d{1,2})$`)

	// 4. D[D] Month-name [YYYY]
	reDayMonthName = regexp.MustCompile(`^(\d{1,2})(?:st|nd|rd|th)?\s+([A-Za-z]{3,9})\.?(?:,?\s+(\d{4}))?$`)

	// 5. Month-name YY|YYYY (day defaults to the 1st)
	reMonthNameYear = regexp.MustCompile(`^([A-Za-z]{3,9})\.?,?\s+(\d{2}|\d{4})$`)

	// 6. Month-name D[D] (reference year assumed)
	reMonthNameDay = regexp.MustCompile(`^([A-Za-z]{3,9})\.?\s+(\d{1,2})(?:st|nd|rd|th)?$`)

	// 7. D[D] Month-name (reference year assumed)
	reDayThenMonth = regexp.MustCompile(`^(\d{1,2})(?:st|nd|rd|th)?\s+([A-Za-z]{3,9})\.?$`)

	// ordinalSuffix strips "1st", "22nd" and the occasional malformed "02st".
	ordinalSuffix = regexp.MustCompile(`(\d{1,2})(?:st|nd|rd|th)\b`)

	// bareDay matches a solitary day-of-month answer ("22", "22nd",
	// "the 22nd").
	bareDay = regexp.MustCompile(`^(?:[Tt]he\s+)?(\d{1,2})(?:st|nd|rd|th)?$`)
)

// fallbackLayouts are tried, in order, on the cleaned fragment before the
// general-purpose parsers get a chance. time.Parse keeps day-month semantics
// unambiguous here, unlike ParseAny's US-leaning defaults.
var fallbackLayouts = []string{
	"January 2 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"2006-01-02",
}

// leadingCues are discourse prefixes users habitually attach to date answers
// ("before July 22 2025"). Stripped repeatedly before the fallback parse.
var leadingCues = []string{
	"before ", "until ", "till ", "up to ", "by ", "on ", "from ", "at ", "due ",
}

// NormalizeDate converts a loosely-formatted date fragment to YYYY-MM-DD.
//
// Description:
//
//	Runs the fixed pattern ladder first (rules 1-7, first match wins), then
//	falls back to a cleanup pass plus general-purpose parsing with a
//	prefer-dates-in-the-past tie break. Already-canonical input passes
//	through unchanged.
//
// Outputs:
//
//	string - The ISO calendar date, or "" when nothing parses.
func NormalizeDate(raw string) string {
	s := strings.Trim(strings.TrimSpace(raw), ".,!? ")
	if s == "" {
		return ""
	}
	if iso, ok := ladder(s); ok {
		return iso
	}
	return fallbackParse(s)
}

// ladder applies rules 1-7. A pattern whose month name does not resolve is
// treated as not matching, so the scan continues down the ladder.
func ladder(s string) (string, bool) {
	if m := reDayMonYear.FindStringSubmatch(s); m != nil {
		return isoDate(expandYear(m[3]), time.Month(atoi(m[2])), atoi(m[1]))
	}
	if m := reYearMonDay.FindStringSubmatch(s); m != nil {
		return isoDate(atoi(m[1]), time.Month(atoi(m[2])), atoi(m[3]))
	}
	if m := reDayMon.FindStringSubmatch(s); m != nil {
		return isoDate(ReferenceYear, time.Month(atoi(m[2])), atoi(m[1]))
	}
	if m := reDayMonthName.FindStringSubmatch(s); m != nil {
		if mon, ok := monthFromName(m[2]); ok {
			year := ReferenceYear
			if m[3] != "" {
				year = atoi(m[3])
			}
			if iso, ok := isoDate(year, mon, atoi(m[1])); ok {
				return iso, true
			}
		}
	}
	if m := reMonthNameYear.FindStringSubmatch(s); m != nil {
		if mon, ok := monthFromName(m[1]); ok {
			if iso, ok := isoDate(expandYear(m[2]), mon, 1); ok {
				return iso, true
			}
		}
	}
	if m := reMonthNameDay.FindStringSubmatch(s); m != nil {
		if mon, ok := monthFromName(m[1]); ok {
			if iso, ok := isoDate(ReferenceYear, mon, atoi(m[2])); ok {
				return iso, true
			}
		}
	}
	if m := reDayThenMonth.FindStringSubmatch(s); m != nil {
		if mon, ok := monthFromName(m[2]); ok {
			if iso, ok := isoDate(ReferenceYear, mon, atoi(m[1])); ok {
				return iso, true
			}
		}
	}
	return "", false
}

// fallbackParse is ladder rule 8: strip leading cue words, resolve a bare
// day-of-month answer against the current month, then re-run the ladder on
// the ordinal-stripped fragment, try the fixed layouts, dateparse, and
// finally natural-language parsing biased to the past ("last monday").
func fallbackParse(s string) string {
	cues := stripLeadingCues(s)
	if cues == "" {
		return ""
	}

	// A solitary day number is a slot answer like "the 22nd". The general
	// parsers cannot take it from here — dateparse rejects a bare number
	// and naturaldate reads it as an hour of day — so resolve it against
	// the current month directly.
	if m := bareDay.FindStringSubmatch(cues); m != nil {
		now := time.Now()
		if iso, ok := isoDate(now.Year(), now.Month(), atoi(m[1])); ok {
			return iso
		}
		return ""
	}

	cleaned := strings.TrimSpace(ordinalSuffix.ReplaceAllString(cues, "$1"))
	if cleaned != s {
		if iso, ok := ladder(cleaned); ok {
			return iso
		}
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t.Format("2006-01-02")
		}
	}
	if t, err := dateparse.ParseAny(cleaned); err == nil {
		return t.Format("2006-01-02")
	}
	// The ordinal strip stays local to the tiers above; naturaldate reads
	// suffixed forms ("22nd of July") natively.
	if t, err := naturaldate.Parse(cues, time.Now(), naturaldate.WithDirection(naturaldate.Past)); err == nil {
		return t.Format("2006-01-02")
	}
	return ""
}

func stripLeadingCues(s string) string {
	lower := strings.ToLower(s)
	for changed := true; changed; {
		changed = false
		for _, cue := range leadingCues {
			if strings.HasPrefix(lower, cue) {
				s = s[len(cue):]
				lower = lower[len(cue):]
				changed = true
			}
		}
	}
	return strings.TrimSpace(s)
}

func monthFromName(name string) (time.Month, bool) {
	n := strings.ToLower(strings.TrimSuffix(name, "."))
	if len(n) < 3 {
		return 0, false
	}
	m, ok := monthByPrefix[n[:3]]
	return m, ok
}

// isoDate validates the calendar date and renders it. time.Date normalizes
// overflow (Feb 31 → Mar 3), so a round-trip comparison rejects impossible
// component combinations.
func isoDate(year int, month time.Month, day int) (string, bool) {
	if year < 1 || month < time.January || month > time.December || day < 1 || day > 31 {
		return "", false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

func expandYear(y string) int {
	if len(y) == 2 {
		return 2000 + atoi(y)
	}
	return atoi(y)
}

// atoi is safe here: every call site guarantees digits via the regexp.
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
