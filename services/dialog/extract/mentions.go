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
	"sort"
	"strings"
)

// Date slot labels attached to prose mentions. The strings match the slot
// names declared by the slot schema.
const (
	SlotSCD     = "SCD"
	SlotASD     = "ASD"
	SlotMaxDate = "max_date"
)

// DateMention is one date-looking fragment found in free prose.
type DateMention struct {
	// Raw is the matched fragment as written.
	Raw string

	// ISO is the fragment normalized through the pattern ladder.
	ISO string

	// Label is the date slot the surrounding context suggests
	// (SlotSCD, SlotASD, SlotMaxDate), or "" when nothing nearby hints.
	Label string

	// Start is the byte offset of the fragment in the source text.
	Start int
}

var (
	// mentionNumeric matches 13/10/25, 29-12-2024, 13/10 and 2024-01-28.
	mentionNumeric = regexp.MustCompile(`\b\d{1,2}[-/]\d{1,2}(?:[-/]\d{2,4})?\b|\b\d{4}[-/]\d{1,2}[-/]\d{1,2}\b`)

	// mentionMonthName matches month-name forms with optional day on either
	// side and optional year: "July 22 2025", "16 Nov", "Oct 19, 2024",
	// "22nd December", "Aug 24".
	// The trailing year group accepts "…, 2024" and "… 2024" but a 2-digit
	// year only without a comma: in "August 19, 28 Aug" the ", 28" belongs
	// to the next date, not to this one.
	mentionMonthName = regexp.MustCompile(`(?i)\b(?:\d{1,2}(?:st|nd|rd|th)?\s+)?(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?(?:\s+\d{1,2}(?:st|nd|rd|th)?\b)?(?:,?\s+\d{4}\b|\s+\d{2}\b)?`)
)

// cueWindow is how far back (in bytes) labeling looks for a slot cue word.
const cueWindow = 32

// slotCues are scanned over the window preceding a mention; the cue closest
// to the mention wins, so "from surcharge 24/06/24" labels SCD even though
// "from" alone would suggest ASD.
var slotCues = []struct {
	label string
	cue   string
}{
	{SlotSCD, "scd"},
	{SlotSCD, "surcharge"},
	{SlotASD, "asd"},
	{SlotASD, "assessment"},
	{SlotASD, "assess"},
	{SlotASD, "monitor"},
	{SlotASD, "start"},
	{SlotASD, "begin"},
	{SlotASD, "kicks off"},
	{SlotASD, "from "},
	{SlotMaxDate, "max"},
	{SlotMaxDate, "cutoff"},
	{SlotMaxDate, "cut-off"},
	{SlotMaxDate, "until"},
	{SlotMaxDate, "till"},
	{SlotMaxDate, "up to"},
	{SlotMaxDate, "before"},
	{SlotMaxDate, "deadline"},
	{SlotMaxDate, "end"},
	{SlotMaxDate, "stop"},
	{SlotMaxDate, "latest"},
	{SlotMaxDate, "last"},
	{SlotMaxDate, "to "},
	{SlotMaxDate, "by "},
}

// FindDateMentions scans free prose for date fragments.
//
// Description:
//
//	Collects numeric and month-name fragments, drops overlaps (earlier,
//	longer matches win), normalizes each through the ladder and labels each
//	by the nearest slot cue in the preceding context window. Fragments that
//	fail normalization are discarded.
//
// Outputs:
//
//	[]DateMention - Mentions in textual order. Nil when none found.
func FindDateMentions(text string) []DateMention {
	spans := mentionNumeric.FindAllStringIndex(text, -1)
	spans = append(spans, mentionMonthName.FindAllStringIndex(text, -1)...)
	sort.Slice(spans, func(i, j int) bool {
		if spans[i][0] != spans[j][0] {
			return spans[i][0] < spans[j][0]
		}
		return spans[i][1] > spans[j][1]
	})

	var mentions []DateMention
	lastEnd := -1
	for _, span := range spans {
		if span[0] < lastEnd {
			continue
		}
		raw := text[span[0]:span[1]]
		if !strings.ContainsAny(raw, "0123456789") {
			// A bare month word ("may", "march") is too ambiguous to count.
			continue
		}
		iso := NormalizeDate(raw)
		if iso == "" {
			continue
		}
		mentions = append(mentions, DateMention{
			Raw:   raw,
			ISO:   iso,
			Label: labelFor(text, span[0]),
			Start: span[0],
		})
		lastEnd = span[1]
	}
	return mentions
}

// labelFor inspects the window preceding a mention for slot cue words and
// returns the label of the cue occurring closest to the mention.
func labelFor(text string, start int) string {
	from := start - cueWindow
	if from < 0 {
		from = 0
	}
	window := strings.ToLower(text[from:start])

	best := ""
	bestIdx := -1
	bestLen := 0
	for _, sc := range slotCues {
		idx := strings.LastIndex(window, sc.cue)
		if idx < 0 {
			continue
		}
		if idx > bestIdx || (idx == bestIdx && len(sc.cue) > bestLen) {
			best = sc.label
			bestIdx = idx
			bestLen = len(sc.cue)
		}
	}
	return best
}
