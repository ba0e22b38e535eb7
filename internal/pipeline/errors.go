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

// Package pipeline orchestrates the synthesis retry matrix: candidate texts
// against voices, with clause-level escalation as the last resort.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/koemaki/koemaki/internal/events"
)

// Kind classifies a synthesis failure and drives the retry strategy.
type Kind int

const (
	KindUnknown Kind = iota
	// KindMalformedSymbol means the engine rejected a symbol in the text.
	// Recoverable by trying a different textual variant.
	KindMalformedSymbol
	// KindTruncatedOutput means the render is implausibly short for the
	// text. Recoverable by clause-level synthesis.
	KindTruncatedOutput
	// KindEmptyOutput means no usable audio landed on disk.
	KindEmptyOutput
	// KindTimeout means the backend did not answer in time.
	KindTimeout
	// KindUnavailable means the backend cannot be reached at all.
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindMalformedSymbol:
		return "malformed-symbol"
	case KindTruncatedOutput:
		return "truncated-output"
	case KindEmptyOutput:
		return "empty-output"
	case KindTimeout:
		return "timeout"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// SynthError is a classified synthesis failure.
type SynthError struct {
	Kind Kind
	Err  error
}

func (e *SynthError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *SynthError) Unwrap() error { return e.Err }

// NewSynthError wraps err with an explicit kind.
func NewSynthError(kind Kind, err error) *SynthError {
	return &SynthError{Kind: kind, Err: err}
}

// ExhaustedError reports that every candidate text on every permitted voice
// failed, including the clause-level fallback.
type ExhaustedError struct {
	Utterance string
	Attempts  int
	LastKind  Kind
	LastErr   error
	History   []*events.Attempt
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all candidates exhausted for %q after %d attempts, last failure %s: %v",
		e.Utterance, e.Attempts, e.LastKind, e.LastErr)
}

func (e *ExhaustedError) Unwrap() error { return e.LastErr }

// Engine diagnostics that indicate an unpronounceable symbol. The numeric
// code is matched as a standalone token so durations and byte counts in the
// message cannot trigger it.
var malformedCodeRe = regexp.MustCompile(`\b105\b`)

// Classify maps an arbitrary synthesis error to a Kind. Explicit SynthError
// wrapping wins; otherwise the backend's message text decides.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var se *SynthError
	if errors.As(err, &se) {
		return se.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return KindTimeout
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(msg, "未定義"),
		strings.Contains(msg, "読み記号"),
		malformedCodeRe.MatchString(msg),
		strings.Contains(lower, "undefined") && strings.Contains(lower, "symbol"),
		strings.Contains(lower, "undefined") && strings.Contains(lower, "reading"):
		return KindMalformedSymbol

	case strings.Contains(lower, "timed out"),
		strings.Contains(lower, "timeout"),
		strings.Contains(lower, "deadline exceeded"):
		return KindTimeout

	case strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "no such host"),
		strings.Contains(lower, "connection reset"),
		strings.Contains(lower, "unavailable"),
		strings.Contains(lower, "failed to connect"):
		return KindUnavailable

	default:
		return KindUnknown
	}
}

// MinOutputBytes is the smallest file size accepted as real audio. Anything
// at or below this is header-only or empty.
const MinOutputBytes = 512

// ExpectedSeconds estimates how long a render of runeCount characters
// should at least be.
func ExpectedSeconds(runeCount int) float64 {
	expected := 0.06 * float64(runeCount)
	if expected < 0.6 {
		expected = 0.6
	}
	return expected
}

// IsTruncated reports whether a render of durSeconds is implausibly short
// for runeCount characters of text.
func IsTruncated(durSeconds float64, runeCount int) bool {
	threshold := 0.55 * ExpectedSeconds(runeCount)
	if threshold < 0.45 {
		threshold = 0.45
	}
	return durSeconds < threshold
}
