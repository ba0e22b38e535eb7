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

// Package textnorm converts free-form Japanese text into the restricted
// character set the speech synthesizer accepts: script conversion, substitution
// of characters known to trigger undefined-symbol rejections, candidate
// generation, and clause splitting.
package textnorm

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// baseReplacer fixes characters that many synthesizer voices reject outright.
// ASCII punctuation arrives here post-NFKC, so full-width variants are covered.
var baseReplacer = strings.NewReplacer(
	"ヂ", "ジ",
	"ヅ", "ズ",
	"ヴ", "ブ",
	"ゔ", "ぶ",
	"・", "、",
	"〜", "ー",
	"~", "ー",
	"‐", "ー",
	"-", "ー",
	"–", "ー",
	"—", "ー",
	",", "、",
	".", "。",
	"?", "？",
	"!", "！",
	";", "、",
	":", "、",
	"“", "",
	"”", "",
	"‘", "",
	"’", "",
	`"`, "",
	"'", "",
)

// comboReplacer expands small-kana combinations that some voices cannot read.
var comboReplacer = strings.NewReplacer(
	"ヴァ", "バ",
	"ヴィ", "ビ",
	"ヴェ", "ベ",
	"ヴォ", "ボ",
	"ティ", "テイ",
	"トゥ", "トウ",
	"ディ", "デイ",
	"ドゥ", "ドウ",
	"チェ", "チエ",
	"ファ", "フア",
	"フィ", "フイ",
	"フェ", "フエ",
	"フォ", "フオ",
	"ウェ", "ウエ",
	"ウォ", "ウオ",
)

// readingPunctReplacer maps ASCII punctuation inside readings to the
// full-width forms the synthesizer voices understand.
var readingPunctReplacer = strings.NewReplacer(
	",", "、",
	".", "。",
	"?", "？",
	"!", "！",
	";", "、",
	":", "、",
	"“", "",
	"”", "",
	"‘", "",
	"’", "",
	`"`, "",
	"'", "",
)

var (
	controlRe      = regexp.MustCompile(`[\x{0000}-\x{001F}\x{007F}-\x{009F}]`)
	latinRe        = regexp.MustCompile(`[A-Za-z]`)
	spaceRe        = regexp.MustCompile(`[\s\x{3000}]+`)
	katakanaOnlyRe = regexp.MustCompile(`[^ァ-ヴー\x{3000}\s、。！？]`)
	japaneseOnlyRe = regexp.MustCompile(`[^\x{3000}-\x{30FF}\x{4E00}-\x{9FFF}\x{FF01}-\x{FF60}、。・ー\s！？0-9０-９]`)
	trailCommaRe   = regexp.MustCompile(`[、，,]+$`)

	aggressiveBracketRe = regexp.MustCompile(`[「」『』【】＜＞〈〉《》\[\]\(\)<>{}]`)
	aggressiveRemoveRe  = regexp.MustCompile(`[^\x{3000}-\x{30FF}\x{4E00}-\x{9FFF}\x{FF01}-\x{FF60}、。・ー\s！？ァ-ヴ]`)
	latinPunctRe        = regexp.MustCompile("[A-Za-z0-9\\[\\]()<>@#$%^&*\\\\/~`_=+|:;\"'\\-–—…]")
)

// Sanitize maps raw text or a phonetic reading into the restricted character
// set the synthesizer accepts. Pure and total: it never fails, and may return
// an empty string when nothing survives filtering. Idempotent by construction;
// the substitution tables only map out of the forbidden set.
func Sanitize(text string, toHiragana bool) string {
	if text == "" {
		return text
	}
	s := norm.NFKC.String(text)
	// Combos first: ヴァ must become バ before the lone ヴ fallback applies.
	s = comboReplacer.Replace(s)
	s = baseReplacer.Replace(s)
	s = controlRe.ReplaceAllString(s, "")
	s = latinRe.ReplaceAllString(s, "")
	s = collapseSpace(s)
	if toHiragana {
		s = KataToHira(s)
	}
	return s
}

// BasicClean is the fallback preparation path used when the full normalizer is
// not wired in: control characters removed and whitespace collapsed, nothing
// else. Substitutions are then left to the retry loop's alternative texts.
func BasicClean(text string) string {
	if text == "" {
		return text
	}
	return collapseSpace(controlRe.ReplaceAllString(text, ""))
}

// HiraToKata converts hiragana runes to their katakana counterparts.
func HiraToKata(s string) string {
	if s == "" {
		return s
	}
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= 0x3041 && r <= 0x3096 {
			r += 0x60
		}
		out = append(out, r)
	}
	return string(out)
}

// KataToHira converts katakana runes to their hiragana counterparts.
func KataToHira(s string) string {
	if s == "" {
		return s
	}
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= 0x30A1 && r <= 0x30F6 {
			r -= 0x60
		}
		out = append(out, r)
	}
	return string(out)
}

// ToFullWidthDigits converts ASCII digits to their full-width forms, which
// synthesizer voices read as numbers instead of rejecting.
func ToFullWidthDigits(s string) string {
	if s == "" {
		return s
	}
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			r = '０' + (r - '0')
		}
		out = append(out, r)
	}
	return string(out)
}

// KeepKatakanaReading reduces a morphological-analyzer reading to the
// katakana-and-punctuation class the synthesizer understands.
func KeepKatakanaReading(yomi string) string {
	if yomi == "" {
		return yomi
	}
	s := HiraToKata(yomi)
	s = readingPunctReplacer.Replace(s)
	s = katakanaOnlyRe.ReplaceAllString(s, "")
	return collapseSpace(s)
}

// JapaneseOnly strips everything outside the Japanese character classes plus
// digits and recognized punctuation. Used as the last-resort candidate text.
func JapaneseOnly(text string) string {
	if text == "" {
		return text
	}
	s := japaneseOnlyRe.ReplaceAllString(text, "")
	return collapseSpace(s)
}

// AggressiveSanitize produces the harshest variant still worth voicing:
// full-width digits, brackets and foreign characters removed, and a
// katakana-preferred rendition of what remains.
func AggressiveSanitize(text string) string {
	if text == "" {
		return text
	}
	t := ToFullWidthDigits(text)
	t = aggressiveBracketRe.ReplaceAllString(t, "")
	t = aggressiveRemoveRe.ReplaceAllString(t, "")
	t = collapseSpace(t)

	kat := HiraToKata(t)
	kat = katakanaOnlyRe.ReplaceAllString(kat, "")
	kat = collapseSpace(kat)
	if kat != "" {
		return kat
	}
	return t
}

// StripLatinAndPunct removes Latin letters, digits, and the ASCII punctuation
// classes most often behind undefined-symbol rejections.
func StripLatinAndPunct(s string) string {
	if s == "" {
		return s
	}
	return collapseSpace(latinPunctRe.ReplaceAllString(s, ""))
}

// TrimTrailingCommas strips stray commas left at the end of a clause.
func TrimTrailingCommas(s string) string {
	return strings.TrimSpace(trailCommaRe.ReplaceAllString(s, ""))
}

func collapseSpace(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
