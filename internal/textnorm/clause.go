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

import "strings"

// Clause is a sub-span of an utterance delimited by sentence-internal
// punctuation, synthesized independently for robustness. Delim is the
// delimiter that terminated the clause, empty for the final span.
type Clause struct {
	Text  string
	Delim string
}

// clauseDelims are the clause-terminating delimiters, ASCII and full-width.
var clauseDelims = map[rune]bool{
	'、': true, ',': true, '，': true,
	'。': true, '.': true, '．': true,
	'！': true, '!': true,
	'？': true, '?': true,
	'；': true, ';': true,
}

// SplitClauses splits text at clause-terminating punctuation, keeping each
// delimiter with its preceding clause. Joining all texts and delimiters in
// order reconstructs the input modulo whitespace. Text without any delimiter
// comes back as a single clause.
func SplitClauses(text string) []Clause {
	var out []Clause
	var cur []rune
	for _, r := range text {
		if clauseDelims[r] {
			t := strings.TrimSpace(string(cur))
			out = append(out, Clause{Text: t, Delim: string(r)})
			cur = cur[:0]
			continue
		}
		cur = append(cur, r)
	}
	if t := strings.TrimSpace(string(cur)); t != "" {
		out = append(out, Clause{Text: t})
	}
	if len(out) == 0 {
		out = []Clause{{Text: strings.TrimSpace(text)}}
	}
	return out
}

// JoinClauses reassembles clause texts with their delimiters.
func JoinClauses(clauses []Clause) string {
	var b strings.Builder
	for _, c := range clauses {
		b.WriteString(c.Text)
		b.WriteString(c.Delim)
	}
	return b.String()
}
