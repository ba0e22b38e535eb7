/*
 * This file is part of Koemaki (https://github.com/koemaki/koemaki).
 * Copyright (C) 2026 Koemaki Authors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package textnorm

import (
	"regexp"
	"unicode/utf8"
)

// Candidate is one textual variant of an utterance offered to the synthesizer.
// The label records provenance for diagnostics only.
type Candidate struct {
	Label string
	Text  string
}

// Candidate provenance labels.
const (
	LabelOriginal       = "original"
	LabelPhonetic       = "phonetic"
	LabelAggressive     = "aggressively-sanitized"
	LabelCLIPhonetic    = "cli-phonetic"
	LabelClauseExpanded = "clause-expanded"
)

var (
	// Characters whose presence historically predicts an undefined-symbol
	// rejection of the raw text. Empirically tuned, hence configurable.
	defaultProblematicRe = regexp.MustCompile("[A-Za-z0-9\\[\\]()<>@#$%^&*\\\\/~`_=+|:;\"']|[“”‘’…\\-–—]")

	digitKanjiRe  = regexp.MustCompile(`[0-9０-９][一-龯]|[一-龯][0-9０-９]`)
	counterWordRe = regexp.MustCompile(`[0-9０-９]+[万億兆]`)
)

// Policy decides whether the phonetic reading should be tried before the raw
// text. The defaults reproduce the tuned production heuristic; callers may
// substitute their own thresholds and pattern.
type Policy struct {
	// MinReadingRunes is the minimum reading length that makes the reading
	// trustworthy enough to lead the candidate order.
	MinReadingRunes int
	// Problematic matches raw text likely to be rejected as-is. Digit+kanji
	// adjacency and digit+counter-word patterns are always checked in
	// addition to this pattern.
	Problematic *regexp.Regexp
}

// DefaultPolicy returns the production ordering heuristic.
func DefaultPolicy() Policy {
	return Policy{
		MinReadingRunes: 4,
		Problematic:     defaultProblematicRe,
	}
}

// LooksProblematic reports whether raw text is likely to be rejected by the
// synthesizer without transliteration.
func (p Policy) LooksProblematic(raw string) bool {
	if raw == "" {
		return false
	}
	if p.Problematic != nil && p.Problematic.MatchString(raw) {
		return true
	}
	return digitKanjiRe.MatchString(raw) || counterWordRe.MatchString(raw)
}

// PreferReading reports whether the phonetic reading should be the first
// candidate for the given raw text.
func (p Policy) PreferReading(raw, reading string) bool {
	if reading != "" && utf8.RuneCountInString(reading) >= p.MinReadingRunes {
		return true
	}
	return p.LooksProblematic(raw)
}

// Generate produces the ordered candidate list for one utterance or clause.
// raw is the prepared (cleaned) input text; reading is the sanitized phonetic
// reading and cliReading the sanitized reading from the secondary
// command-line transliterator, either possibly empty. The CLI reading is
// always appended last. The result is duplicate-free, order-preserving, and
// never empty: when everything filters away the raw text survives as the
// sole candidate.
func Generate(raw, reading, cliReading string, p Policy) []Candidate {
	var out []Candidate
	seen := map[string]bool{}
	add := func(label, text string) {
		if text == "" || seen[text] {
			return
		}
		seen[text] = true
		out = append(out, Candidate{Label: label, Text: text})
	}

	if p.PreferReading(raw, reading) {
		add(LabelPhonetic, reading)
		add(LabelOriginal, raw)
	} else {
		add(LabelOriginal, raw)
		add(LabelPhonetic, reading)
	}
	add(LabelAggressive, JapaneseOnly(raw))
	add(LabelCLIPhonetic, cliReading)

	if len(out) == 0 {
		out = append(out, Candidate{Label: LabelOriginal, Text: raw})
	}
	return out
}

// Insert places extra candidates into queue immediately after position at,
// skipping texts already present. Returns the updated queue.
func Insert(queue []Candidate, at int, extra []Candidate) []Candidate {
	seen := map[string]bool{}
	for _, c := range queue {
		seen[c.Text] = true
	}
	var fresh []Candidate
	for _, c := range extra {
		if c.Text == "" || seen[c.Text] {
			continue
		}
		seen[c.Text] = true
		fresh = append(fresh, c)
	}
	if len(fresh) == 0 {
		return queue
	}
	if at >= len(queue)-1 {
		return append(queue, fresh...)
	}
	tail := append([]Candidate(nil), queue[at+1:]...)
	queue = append(queue[:at+1], fresh...)
	return append(queue, tail...)
}
