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

package reading

import (
	"context"
	"testing"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

func encode(t *testing.T, enc transform.Transformer, s string) []byte {
	t.Helper()
	out, _, err := transform.Bytes(enc, []byte(s))
	if err != nil {
		t.Fatalf("encoding fixture %q: %v", s, err)
	}
	return out
}

func TestDecodeReadingUTF8(t *testing.T) {
	got := decodeReading([]byte("コンニチハ\n"))
	if got != "コンニチハ" {
		t.Errorf("decodeReading = %q", got)
	}
}

func TestDecodeReadingShiftJIS(t *testing.T) {
	raw := encode(t, japanese.ShiftJIS.NewEncoder(), "トウキョウトッキョ")
	got := decodeReading(raw)
	if got != "トウキョウトッキョ" {
		t.Errorf("decodeReading(shift-jis) = %q", got)
	}
}

func TestDecodeReadingEUCJP(t *testing.T) {
	raw := encode(t, japanese.EUCJP.NewEncoder(), "ゲンキデスカ")
	got := decodeReading(raw)
	if got != "ゲンキデスカ" {
		t.Errorf("decodeReading(euc-jp) = %q", got)
	}
}

func TestDecodeReadingEmpty(t *testing.T) {
	if got := decodeReading(nil); got != "" {
		t.Errorf("decodeReading(nil) = %q", got)
	}
	if got := decodeReading([]byte("   \n")); got != "" {
		t.Errorf("decodeReading(whitespace) = %q", got)
	}
}

func TestDecodeReadingKanaFreeUTF8FallsThrough(t *testing.T) {
	// ASCII-only output is valid in every probed encoding; without kana it
	// is only accepted by the last-resort UTF-8 path.
	got := decodeReading([]byte("hello"))
	if got != "hello" {
		t.Errorf("decodeReading(ascii) = %q", got)
	}
}

func TestLooksLikeReading(t *testing.T) {
	if !looksLikeReading("カタカナ") || !looksLikeReading("ひらがな") {
		t.Error("kana text should look like a reading")
	}
	if looksLikeReading("abc 123") || looksLikeReading("") {
		t.Error("kana-free text should not look like a reading")
	}
}

func TestHasKanji(t *testing.T) {
	if !HasKanji("東京タワー") {
		t.Error("HasKanji should detect ideographs")
	}
	if HasKanji("トウキョウタワー") {
		t.Error("HasKanji should ignore katakana")
	}
}

func TestStaticProvider(t *testing.T) {
	p := Static{"東京": "トウキョウ"}
	got, err := p.Reading(context.Background(), "東京")
	if err != nil || got != "トウキョウ" {
		t.Fatalf("Static.Reading = %q, %v", got, err)
	}
	got, err = p.Reading(context.Background(), "未知")
	if err != nil || got != "" {
		t.Fatalf("Static.Reading(miss) = %q, %v", got, err)
	}
}

func TestNewExecProviderMissingBinary(t *testing.T) {
	t.Setenv("KOEMAKI_MECAB_PATH", "")
	t.Setenv("PATH", t.TempDir())
	if _, err := NewExecProvider("", 0); err == nil {
		t.Fatal("expected error when mecab is absent")
	}
}
