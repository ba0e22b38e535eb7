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

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"japanese undefined symbol", errors.New("synthesis failed with status 422: 読み記号が未定義です"), KindMalformedSymbol},
		{"undefined notice", errors.New("audio_query failed with status 400: undefined reading symbol"), KindMalformedSymbol},
		{"engine code", errors.New("synthesizer failed: ERR:105: exit status 1"), KindMalformedSymbol},
		{"code not standalone", errors.New("wrote 1105 bytes"), KindUnknown},
		{"deadline", fmt.Errorf("request: %w", context.DeadlineExceeded), KindTimeout},
		{"timeout text", errors.New("synthesizer timed out after 10s"), KindTimeout},
		{"connection refused", errors.New("dial tcp 127.0.0.1:50021: connect: connection refused"), KindUnavailable},
		{"no such host", errors.New("dial tcp: lookup speech.local: no such host"), KindUnavailable},
		{"wrapped explicit kind", fmt.Errorf("clause 2: %w", NewSynthError(KindTruncatedOutput, errors.New("0.1s"))), KindTruncatedOutput},
		{"anything else", errors.New("weird"), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestSynthErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := NewSynthError(KindEmptyOutput, inner)
	if !errors.Is(err, inner) {
		t.Error("SynthError should unwrap to its cause")
	}
}

func TestExhaustedError(t *testing.T) {
	inner := NewSynthError(KindMalformedSymbol, errors.New("未定義"))
	err := &ExhaustedError{Utterance: "テスト", Attempts: 7, LastKind: KindMalformedSymbol, LastErr: inner}
	if !errors.Is(err, inner) {
		t.Error("ExhaustedError should unwrap to the last failure")
	}
	var ex *ExhaustedError
	if !errors.As(fmt.Errorf("line 3: %w", err), &ex) {
		t.Error("ExhaustedError should survive wrapping")
	}
	if ex.Attempts != 7 {
		t.Errorf("Attempts = %d", ex.Attempts)
	}
}

func TestIsTruncated(t *testing.T) {
	tests := []struct {
		name  string
		dur   float64
		runes int
		want  bool
	}{
		{"short clip short text", 0.1, 3, true},
		{"floor applies to short text", 0.44, 1, true},
		{"just above floor", 0.46, 1, false},
		{"long text short clip", 1.0, 50, true},
		{"long text plausible clip", 2.0, 50, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTruncated(tt.dur, tt.runes); got != tt.want {
				t.Errorf("IsTruncated(%v, %d) = %v, want %v", tt.dur, tt.runes, got, tt.want)
			}
		})
	}
}

func TestExpectedSeconds(t *testing.T) {
	if got := ExpectedSeconds(5); got != 0.6 {
		t.Errorf("ExpectedSeconds(5) = %v, want floor 0.6", got)
	}
	if got := ExpectedSeconds(50); got != 3.0 {
		t.Errorf("ExpectedSeconds(50) = %v, want 3.0", got)
	}
}
