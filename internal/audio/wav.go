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
	"fmt"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVEngine is the built-in Processor. It decodes and encodes PCM WAV in
// process, downmixing to mono and resampling with linear interpolation.
// Output is always 16-bit mono.
type WAVEngine struct{}

// NewWAVEngine returns the built-in engine.
func NewWAVEngine() *WAVEngine {
	return &WAVEngine{}
}

func (e *WAVEngine) Duration(_ context.Context, path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	d := wav.NewDecoder(f)
	dur, err := d.Duration()
	if err != nil {
		return 0, fmt.Errorf("failed to probe duration of %s: %w", path, err)
	}
	return dur.Seconds(), nil
}

func (e *WAVEngine) SampleRate(_ context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	d := wav.NewDecoder(f)
	d.ReadInfo()
	if !d.IsValidFile() {
		return 0, fmt.Errorf("%s is not a valid WAV file", path)
	}
	return int(d.SampleRate), nil
}

func (e *WAVEngine) Resample(ctx context.Context, inPath, outPath string, rate int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	buf, err := readPCM(inPath)
	if err != nil {
		return err
	}
	mono := downmixMono(buf)
	out := resampleLinear(mono, rate)
	return writePCM(outPath, out)
}

func (e *WAVEngine) Concat(ctx context.Context, segments []Segment, outPath string, rate int) error {
	if len(segments) == 0 {
		return fmt.Errorf("nothing to concatenate")
	}

	joined := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: rate},
		SourceBitDepth: 16,
	}
	for _, seg := range segments {
		if err := ctx.Err(); err != nil {
			return err
		}
		buf, err := readPCM(seg.Path)
		if err != nil {
			return err
		}
		part := resampleLinear(downmixMono(buf), rate)
		joined.Data = append(joined.Data, part.Data...)
		if seg.TrailingSilence > 0 {
			joined.Data = append(joined.Data, silenceSamples(seg.TrailingSilence, rate)...)
		}
	}
	return writePCM(outPath, joined)
}

// WriteSilenceWAV writes seconds of 16-bit mono silence at rate Hz to path.
func WriteSilenceWAV(path string, seconds float64, rate int) error {
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: rate},
		SourceBitDepth: 16,
		Data:           silenceSamples(seconds, rate),
	}
	return writePCM(path, buf)
}

// WriteToneWAV writes seconds of a quiet square wave, useful as a stand-in
// for speech in tests.
func WriteToneWAV(path string, seconds float64, rate int) error {
	n := int(seconds * float64(rate))
	data := make([]int, n)
	// ~220Hz square wave at low amplitude
	period := rate / 220
	if period < 2 {
		period = 2
	}
	for i := range data {
		if (i/(period/2))%2 == 0 {
			data[i] = 3000
		} else {
			data[i] = -3000
		}
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: rate},
		SourceBitDepth: 16,
		Data:           data,
	}
	return writePCM(path, buf)
}

func readPCM(path string) (*goaudio.IntBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%s is not a valid WAV file", path)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return buf, nil
}

func writePCM(path string, buf *goaudio.IntBuffer) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	enc := wav.NewEncoder(f, buf.Format.SampleRate, 16, buf.Format.NumChannels, 1)
	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		_ = f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to finalize %s: %w", path, err)
	}
	return f.Close()
}

// downmixMono averages all channels into one.
func downmixMono(buf *goaudio.IntBuffer) *goaudio.IntBuffer {
	ch := buf.Format.NumChannels
	if ch <= 1 {
		return buf
	}
	frames := len(buf.Data) / ch
	data := make([]int, frames)
	for i := 0; i < frames; i++ {
		sum := 0
		for c := 0; c < ch; c++ {
			sum += buf.Data[i*ch+c]
		}
		data[i] = sum / ch
	}
	return &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: buf.Format.SampleRate},
		SourceBitDepth: buf.SourceBitDepth,
		Data:           data,
	}
}

// resampleLinear converts a mono buffer to rate Hz by linear interpolation.
func resampleLinear(buf *goaudio.IntBuffer, rate int) *goaudio.IntBuffer {
	src := buf.Format.SampleRate
	if src == rate || len(buf.Data) == 0 {
		out := *buf
		out.Format = &goaudio.Format{NumChannels: 1, SampleRate: rate}
		return &out
	}
	ratio := float64(src) / float64(rate)
	n := int(float64(len(buf.Data)) / ratio)
	data := make([]int, n)
	for i := 0; i < n; i++ {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= len(buf.Data)-1 {
			data[i] = buf.Data[len(buf.Data)-1]
			continue
		}
		frac := pos - float64(j)
		data[i] = int(float64(buf.Data[j])*(1-frac) + float64(buf.Data[j+1])*frac)
	}
	return &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: rate},
		SourceBitDepth: buf.SourceBitDepth,
		Data:           data,
	}
}

func silenceSamples(seconds float64, rate int) []int {
	n := int(seconds * float64(rate))
	if n < 0 {
		n = 0
	}
	return make([]int, n)
}
