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

package audio

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
)

func stereoBuffer(interleaved []int, rate int) *goaudio.IntBuffer {
	return &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 2, SampleRate: rate},
		SourceBitDepth: 16,
		Data:           interleaved,
	}
}

const testRate = 16000

func withinSeconds(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

func TestWriteSilenceAndDuration(t *testing.T) {
	engine := NewWAVEngine()
	path := filepath.Join(t.TempDir(), "silence.wav")
	if err := WriteSilenceWAV(path, 0.5, testRate); err != nil {
		t.Fatalf("WriteSilenceWAV: %v", err)
	}

	dur, err := engine.Duration(context.Background(), path)
	if err != nil {
		t.Fatalf("Duration: %v", err)
	}
	if !withinSeconds(dur, 0.5, 0.01) {
		t.Errorf("Duration = %v, want ~0.5s", dur)
	}

	rate, err := engine.SampleRate(context.Background(), path)
	if err != nil {
		t.Fatalf("SampleRate: %v", err)
	}
	if rate != testRate {
		t.Errorf("SampleRate = %d, want %d", rate, testRate)
	}
}

func TestResampleChangesRateKeepsDuration(t *testing.T) {
	engine := NewWAVEngine()
	dir := t.TempDir()
	in := filepath.Join(dir, "in.wav")
	out := filepath.Join(dir, "out.wav")

	if err := WriteToneWAV(in, 1.0, 44100); err != nil {
		t.Fatalf("WriteToneWAV: %v", err)
	}
	if err := engine.Resample(context.Background(), in, out, testRate); err != nil {
		t.Fatalf("Resample: %v", err)
	}

	rate, err := engine.SampleRate(context.Background(), out)
	if err != nil {
		t.Fatalf("SampleRate: %v", err)
	}
	if rate != testRate {
		t.Errorf("resampled rate = %d, want %d", rate, testRate)
	}

	dur, err := engine.Duration(context.Background(), out)
	if err != nil {
		t.Fatalf("Duration: %v", err)
	}
	if !withinSeconds(dur, 1.0, 0.02) {
		t.Errorf("resampled duration = %v, want ~1.0s", dur)
	}
}

func TestConcatWithTrailingSilence(t *testing.T) {
	engine := NewWAVEngine()
	dir := t.TempDir()
	a := filepath.Join(dir, "a.wav")
	b := filepath.Join(dir, "b.wav")
	out := filepath.Join(dir, "out.wav")

	if err := WriteToneWAV(a, 0.4, testRate); err != nil {
		t.Fatalf("WriteToneWAV: %v", err)
	}
	if err := WriteToneWAV(b, 0.6, testRate); err != nil {
		t.Fatalf("WriteToneWAV: %v", err)
	}

	segments := []Segment{
		{Path: a, TrailingSilence: 0.3},
		{Path: b},
	}
	if err := engine.Concat(context.Background(), segments, out, testRate); err != nil {
		t.Fatalf("Concat: %v", err)
	}

	dur, err := engine.Duration(context.Background(), out)
	if err != nil {
		t.Fatalf("Duration: %v", err)
	}
	if !withinSeconds(dur, 1.3, 0.02) {
		t.Errorf("concat duration = %v, want ~1.3s", dur)
	}
}

func TestConcatMixedRatesNormalizes(t *testing.T) {
	engine := NewWAVEngine()
	dir := t.TempDir()
	a := filepath.Join(dir, "a.wav")
	b := filepath.Join(dir, "b.wav")
	out := filepath.Join(dir, "out.wav")

	if err := WriteToneWAV(a, 0.5, 8000); err != nil {
		t.Fatalf("WriteToneWAV: %v", err)
	}
	if err := WriteToneWAV(b, 0.5, 44100); err != nil {
		t.Fatalf("WriteToneWAV: %v", err)
	}

	segments := []Segment{{Path: a}, {Path: b}}
	if err := engine.Concat(context.Background(), segments, out, testRate); err != nil {
		t.Fatalf("Concat: %v", err)
	}

	rate, err := engine.SampleRate(context.Background(), out)
	if err != nil {
		t.Fatalf("SampleRate: %v", err)
	}
	if rate != testRate {
		t.Errorf("output rate = %d, want %d", rate, testRate)
	}
	dur, err := engine.Duration(context.Background(), out)
	if err != nil {
		t.Fatalf("Duration: %v", err)
	}
	if !withinSeconds(dur, 1.0, 0.03) {
		t.Errorf("output duration = %v, want ~1.0s", dur)
	}
}

func TestConcatEmptyFails(t *testing.T) {
	engine := NewWAVEngine()
	if err := engine.Concat(context.Background(), nil, filepath.Join(t.TempDir(), "out.wav"), testRate); err == nil {
		t.Fatal("expected error for empty segment list")
	}
}

func TestDownmixMono(t *testing.T) {
	// Stereo frames [L=100 R=300] should average to 200.
	buf := stereoBuffer([]int{100, 300, 100, 300}, testRate)
	mono := downmixMono(buf)
	if mono.Format.NumChannels != 1 {
		t.Fatalf("NumChannels = %d", mono.Format.NumChannels)
	}
	if len(mono.Data) != 2 || mono.Data[0] != 200 || mono.Data[1] != 200 {
		t.Errorf("downmix data = %v", mono.Data)
	}
}
