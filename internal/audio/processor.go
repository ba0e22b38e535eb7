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

// Package audio provides the WAV inspection and assembly operations the
// synthesis pipeline needs: duration probing, resampling to a canonical
// rate, and concatenation with inter-segment silence.
package audio

import "context"

// Segment is one piece of a concatenation job. TrailingSilence is appended
// after the segment, in seconds.
type Segment struct {
	Path            string
	TrailingSilence float64
}

// Processor abstracts the audio tooling. The built-in engine works on PCM
// WAV only; the ffmpeg engine handles anything ffmpeg can read.
type Processor interface {
	// Duration returns the playable length of the audio file in seconds.
	Duration(ctx context.Context, path string) (float64, error)

	// SampleRate returns the sample rate of the audio file in Hz.
	SampleRate(ctx context.Context, path string) (int, error)

	// Resample writes a copy of inPath at rate Hz to outPath. Implementations
	// may hard-link or copy when the rate already matches.
	Resample(ctx context.Context, inPath, outPath string, rate int) error

	// Concat joins segments in order into outPath at rate Hz, inserting each
	// segment's trailing silence after it.
	Concat(ctx context.Context, segments []Segment, outPath string, rate int) error
}
