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

// Package reading produces phonetic katakana readings for Japanese text
// via an external morphological analyzer.
package reading

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when no reading backend can be reached. The
// pipeline treats it as "no reading", not as a synthesis failure.
var ErrUnavailable = errors.New("reading provider unavailable")

// Provider turns raw Japanese text into a katakana reading. Implementations
// must be safe for concurrent use.
type Provider interface {
	// Reading returns the phonetic reading of text. An empty string with a
	// nil error means the analyzer ran but produced nothing usable.
	Reading(ctx context.Context, text string) (string, error)
}

// Static is a fixed-map Provider for tests and offline runs.
type Static map[string]string

func (s Static) Reading(_ context.Context, text string) (string, error) {
	if r, ok := s[text]; ok {
		return r, nil
	}
	return "", nil
}
