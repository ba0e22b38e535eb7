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
	"strings"
	"testing"
	"unicode"
)

func TestSanitizeSubstitutions(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "voiced iteration marks", in: "ヂヅヴゔ", want: "ジズブぶ"},
		{name: "interpunct becomes comma", in: "ア・イ", want: "ア、イ"},
		{name: "wave dash becomes prolonging mark", in: "そう〜", want: "そうー"},
		{name: "ascii hyphen becomes prolonging mark", in: "コ-ヒ", want: "コーヒ"},
		{name: "ascii punctuation goes full width", in: "はい,そう.何?やった!", want: "はい、そう。何？やった！"},
		{name: "latin letters stripped", in: "ABCあxいyz", want: "あい"},
		{name: "quotes removed", in: "“すごい”", want: "すごい"},
		{name: "small kana combos expanded", in: "パーティ", want: "パーテイ"},
		{name: "voiced combo beats lone substitution", in: "ヴァイオリン", want: "バイオリン"},
		{name: "whitespace collapsed", in: "  ある　　日  ", want: "ある 日"},
		{name: "empty stays empty", in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in, false); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	inputs := []string{
		"10月21日に「受注開始から1か月で1万1千台を突破」と明言",
		"ヴァイオリンのパーティ〜",
		"Hello, 世界! コーヒー・ブレイク?",
		"こんにちは、元気？",
		"\x00制御\x1f文字\x7f入り",
		"ＡＢＣ１２３（全角）",
		"",
	}
	for _, in := range inputs {
		for _, hira := range []bool{false, true} {
			once := Sanitize(in, hira)
			twice := Sanitize(once, hira)
			if once != twice {
				t.Errorf("Sanitize not idempotent for %q (hira=%v): %q != %q", in, hira, once, twice)
			}
		}
	}
}

func TestSanitizeOutputClass(t *testing.T) {
	inputs := []string{
		"abcDEF123",
		"改行\nとタブ\tと文字",
		"mixed英語とJapanese日本語",
	}
	for _, in := range inputs {
		got := Sanitize(in, false)
		for _, r := range got {
			if r >= 'A' && r <= 'z' && unicode.IsLetter(r) {
				t.Errorf("Sanitize(%q) kept Latin letter %q in %q", in, r, got)
			}
			if unicode.IsControl(r) {
				t.Errorf("Sanitize(%q) kept control character %U in %q", in, r, got)
			}
		}
	}
}

func TestScriptConversionRoundTrip(t *testing.T) {
	hira := "こんにちはげんきぶ"
	kata := HiraToKata(hira)
	if kata != "コンニチハゲンキブ" {
		t.Fatalf("HiraToKata(%q) = %q", hira, kata)
	}
	if back := KataToHira(kata); back != hira {
		t.Fatalf("KataToHira(HiraToKata(%q)) = %q", hira, back)
	}

	// Katakana-only filtering is stable under repeated conversion
	reading := KeepKatakanaReading(Sanitize("こんにちは、元気？", true))
	again := KeepKatakanaReading(HiraToKata(KataToHira(reading)))
	if reading != again {
		t.Fatalf("katakana class not stable: %q != %q", reading, again)
	}
}

func TestToFullWidthDigits(t *testing.T) {
	if got := ToFullWidthDigits("10月21日"); got != "１０月２１日" {
		t.Errorf("ToFullWidthDigits = %q", got)
	}
	if got := ToFullWidthDigits("なし"); got != "なし" {
		t.Errorf("ToFullWidthDigits changed digit-free text: %q", got)
	}
}

func TestKeepKatakanaReading(t *testing.T) {
	got := KeepKatakanaReading("こんにちは,げんき?")
	if got != "コンニチハ、ゲンキ？" {
		t.Errorf("KeepKatakanaReading = %q", got)
	}
	if strings.ContainsAny(got, "abcABC,.?!") {
		t.Errorf("KeepKatakanaReading kept foreign characters: %q", got)
	}
}

func TestAggressiveSanitize(t *testing.T) {
	got := AggressiveSanitize("「テスト」(test) 123!")
	if strings.ContainsAny(got, "()「」test123") {
		t.Errorf("AggressiveSanitize kept rejected characters: %q", got)
	}
	if AggressiveSanitize("") != "" {
		t.Error("AggressiveSanitize should keep empty input empty")
	}
}

func TestBasicCleanKeepsForbiddenRunes(t *testing.T) {
	// The fallback path must not substitute; only strip control and spaces.
	got := BasicClean("ヴ\x00  テスト")
	if got != "ヴ テスト" {
		t.Errorf("BasicClean = %q", got)
	}
}

func TestTrimTrailingCommas(t *testing.T) {
	tests := map[string]string{
		"そうだね、、":  "そうだね",
		"そうだね,":   "そうだね",
		"そうだね":    "そうだね",
		"、":       "",
		"そう、だね、，,": "そう、だね",
	}
	for in, want := range tests {
		if got := TrimTrailingCommas(in); got != want {
			t.Errorf("TrimTrailingCommas(%q) = %q, want %q", in, got, want)
		}
	}
}
