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
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"github.com/koemaki/koemaki/internal/logging"
)

const defaultMecabTimeout = 10 * time.Second

// ExecProvider shells out to the mecab binary in yomi mode. Input is fed as
// UTF-8; output encoding depends on how the local dictionary was built, so
// the decoder probes the common encodings and accepts the first that yields
// kana.
type ExecProvider struct {
	path    string
	timeout time.Duration
}

// NewExecProvider resolves the mecab executable. Resolution order: the
// explicit path argument, the KOEMAKI_MECAB_PATH environment variable, then
// PATH lookup. Returns ErrUnavailable when nothing resolves.
func NewExecProvider(path string, timeout time.Duration) (*ExecProvider, error) {
	if path == "" {
		path = os.Getenv("KOEMAKI_MECAB_PATH")
	}
	if path == "" {
		found, err := exec.LookPath("mecab")
		if err != nil {
			return nil, fmt.Errorf("mecab not found on PATH: %w", ErrUnavailable)
		}
		path = found
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("mecab binary %s: %w", path, ErrUnavailable)
	}
	if timeout <= 0 {
		timeout = defaultMecabTimeout
	}
	return &ExecProvider{path: path, timeout: timeout}, nil
}

// Reading runs `mecab -Oyomi` over text and returns the decoded reading.
func (p *ExecProvider) Reading(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.path, "-Oyomi")
	cmd.Stdin = strings.NewReader(text + "\n")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("mecab timed out after %v: %w", p.timeout, ctx.Err())
		}
		logging.LogWarn("mecab invocation failed",
			zap.String("path", p.path),
			zap.String("stderr", strings.TrimSpace(stderr.String())),
			zap.Error(err),
		)
		return "", fmt.Errorf("mecab: %w", err)
	}

	reading := decodeReading(stdout.Bytes())
	if logging.Logger != nil {
		logging.Logger.Debug("mecab reading",
			zap.Int("input_runes", utf8.RuneCountInString(text)),
			zap.Int("reading_runes", utf8.RuneCountInString(reading)),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	return reading, nil
}

// decodeReading interprets raw mecab output. Dictionaries compiled for
// Shift_JIS or EUC-JP are still common, so valid UTF-8 alone is not trusted
// unless it actually contains kana.
func decodeReading(raw []byte) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	if utf8.Valid(raw) {
		if s := strings.TrimSpace(string(raw)); looksLikeReading(s) {
			return s
		}
	}
	for _, enc := range []encoding.Encoding{japanese.ShiftJIS, japanese.EUCJP} {
		decoded, _, err := transform.Bytes(enc.NewDecoder(), raw)
		if err != nil {
			continue
		}
		if s := strings.TrimSpace(string(decoded)); looksLikeReading(s) {
			return s
		}
	}
	// Last resort: hand back whatever was valid UTF-8, else nothing.
	if utf8.Valid(raw) {
		return strings.TrimSpace(string(raw))
	}
	return ""
}

// looksLikeReading reports whether s contains at least one full-width kana
// rune, the minimum evidence that a decode attempt picked the right encoding.
// Half-width katakana is deliberately excluded: EUC-JP bytes mis-decoded as
// Shift_JIS come out as half-width kana and must not be accepted.
func looksLikeReading(s string) bool {
	for _, r := range s {
		if (r >= 0x3041 && r <= 0x309F) || (r >= 0x30A1 && r <= 0x30FA) {
			return true
		}
	}
	return false
}

// HasKanji reports whether s still contains CJK ideographs. A reading that
// kept kanji means the analyzer could not resolve them and the raw text is
// usually the safer candidate.
func HasKanji(s string) bool {
	for _, r := range s {
		if unicode.In(r, unicode.Han) {
			return true
		}
	}
	return false
}
