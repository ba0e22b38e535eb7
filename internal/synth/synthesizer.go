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

// Package synth abstracts text-to-speech backends behind a common
// file-producing interface.
package synth

import "context"

// Speed bounds accepted by every backend, in percent of normal rate.
const (
	MinSpeedPercent = 30
	MaxSpeedPercent = 400
)

// Synthesizer renders one utterance to a WAV file on disk. Implementations
// must be safe for concurrent use and must not leave a partial file at
// outPath on error.
type Synthesizer interface {
	// SynthesizeToFile renders text with the given voice at speedPercent
	// (100 = normal) into outPath.
	SynthesizeToFile(ctx context.Context, text, voice string, speedPercent int, outPath string) error

	// Voices lists the identifiers the backend can speak with, in fallback
	// order.
	Voices(ctx context.Context) ([]string, error)
}

// ClampSpeed forces speedPercent into the supported range. Zero or negative
// input means "normal speed".
func ClampSpeed(speedPercent int) int {
	if speedPercent <= 0 {
		return 100
	}
	if speedPercent < MinSpeedPercent {
		return MinSpeedPercent
	}
	if speedPercent > MaxSpeedPercent {
		return MaxSpeedPercent
	}
	return speedPercent
}
