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

import "testing"

func TestSplitClausesKeepsDelimiters(t *testing.T) {
	got := SplitClauses("こんにちは、元気？")
	want := []Clause{
		{Text: "こんにちは", Delim: "、"},
		{Text: "元気", Delim: "？"},
	}
	if len(got) != len(want) {
		t.Fatalf("SplitClauses = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("clause %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSplitClausesRejoinProperty(t *testing.T) {
	inputs := []string{
		"こんにちは、元気？",
		"受注開始から1か月で1万1千台を突破。さらに続く！",
		"一つ,二つ;三つ.",
		"区切りなしの文章",
		"終わり。",
	}
	for _, in := range inputs {
		clauses := SplitClauses(in)
		if JoinClauses(clauses) != in {
			t.Errorf("rejoin of %q = %q", in, JoinClauses(clauses))
		}
	}
}

func TestSplitClausesNoDelimiter(t *testing.T) {
	got := SplitClauses("区切りなし")
	if len(got) != 1 || got[0].Text != "区切りなし" || got[0].Delim != "" {
		t.Fatalf("SplitClauses without delimiter = %v", got)
	}
}

func TestSplitClausesMixedWidthDelimiters(t *testing.T) {
	got := SplitClauses("a,b，c;d；e")
	if len(got) != 5 {
		t.Fatalf("expected 5 clauses, got %v", got)
	}
	delims := []string{",", "，", ";", "；", ""}
	for i, d := range delims {
		if got[i].Delim != d {
			t.Errorf("clause %d delim = %q, want %q", i, got[i].Delim, d)
		}
	}
}

func TestSplitClausesConsecutiveDelimiters(t *testing.T) {
	got := SplitClauses("ねえ、、本当？")
	// Empty middle clause keeps its delimiter so rejoin still works
	if JoinClauses(got) != "ねえ、、本当？" {
		t.Fatalf("rejoin of consecutive delimiters = %q", JoinClauses(got))
	}
}

func TestSplitClausesEmptyInput(t *testing.T) {
	got := SplitClauses("")
	if len(got) != 1 || got[0].Text != "" {
		t.Fatalf("SplitClauses(\"\") = %v", got)
	}
}
