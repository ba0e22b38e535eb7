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
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/koemaki/koemaki/internal/logging"
)

// FFmpegEngine shells out to ffmpeg/ffprobe. It prefers the soxr resampler
// when the local build carries it and caches generated silence files per
// duration and rate.
type FFmpegEngine struct {
	ffmpegPath  string
	ffprobePath string
	tempDir     string

	soxrOnce sync.Once
	hasSoxr  bool

	silenceMu    sync.Mutex
	silenceFiles map[string]string
}

// NewFFmpegEngine creates an engine using the given executables. Empty paths
// fall back to PATH lookup of "ffmpeg" and "ffprobe".
func NewFFmpegEngine(ffmpegPath, ffprobePath, tempDir string) *FFmpegEngine {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &FFmpegEngine{
		ffmpegPath:   ffmpegPath,
		ffprobePath:  ffprobePath,
		tempDir:      tempDir,
		silenceFiles: make(map[string]string),
	}
}

func (e *FFmpegEngine) Duration(ctx context.Context, path string) (float64, error) {
	out, err := e.runProbe(ctx,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration of %s: %w", path, err)
	}
	dur, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("unparsable duration %q for %s: %w", out, path, err)
	}
	return dur, nil
}

func (e *FFmpegEngine) SampleRate(ctx context.Context, path string) (int, error) {
	out, err := e.runProbe(ctx,
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=sample_rate",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("ffprobe sample rate of %s: %w", path, err)
	}
	rate, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return 0, fmt.Errorf("unparsable sample rate %q for %s: %w", out, path, err)
	}
	return rate, nil
}

func (e *FFmpegEngine) Resample(ctx context.Context, inPath, outPath string, rate int) error {
	args := []string{"-hide_banner", "-loglevel", "error", "-y", "-i", inPath, "-ac", "1", "-ar", strconv.Itoa(rate)}
	if e.soxrAvailable(ctx) {
		args = append(args, "-af", "aresample=resampler=soxr")
	}
	args = append(args, outPath)
	if err := e.runFFmpeg(ctx, args...); err != nil {
		_ = os.Remove(outPath)
		return fmt.Errorf("ffmpeg resample %s: %w", inPath, err)
	}
	return nil
}

func (e *FFmpegEngine) Concat(ctx context.Context, segments []Segment, outPath string, rate int) error {
	if len(segments) == 0 {
		return fmt.Errorf("nothing to concatenate")
	}

	list, err := os.CreateTemp(e.tempDir, "concat-*.txt")
	if err != nil {
		return err
	}
	listPath := list.Name()
	defer func() { _ = os.Remove(listPath) }()

	for _, seg := range segments {
		fmt.Fprintf(list, "file '%s'\n", escapeConcatPath(seg.Path))
		if seg.TrailingSilence > 0 {
			silence, err := e.silenceFile(ctx, seg.TrailingSilence, rate)
			if err != nil {
				_ = list.Close()
				return err
			}
			fmt.Fprintf(list, "file '%s'\n", escapeConcatPath(silence))
		}
	}
	if err := list.Close(); err != nil {
		return err
	}

	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "concat", "-safe", "0", "-i", listPath,
		"-ac", "1", "-ar", strconv.Itoa(rate),
		outPath,
	}
	if err := e.runFFmpeg(ctx, args...); err != nil {
		_ = os.Remove(outPath)
		return fmt.Errorf("ffmpeg concat: %w", err)
	}
	return nil
}

// silenceFile returns a cached silence WAV of the given length, generating
// it on first use.
func (e *FFmpegEngine) silenceFile(ctx context.Context, seconds float64, rate int) (string, error) {
	key := fmt.Sprintf("%.3f@%d", seconds, rate)

	e.silenceMu.Lock()
	defer e.silenceMu.Unlock()

	if p, ok := e.silenceFiles[key]; ok {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
		delete(e.silenceFiles, key)
	}

	path := filepath.Join(e.tempDir, fmt.Sprintf("silence-%s.wav", strings.ReplaceAll(key, "@", "-")))
	err := e.runFFmpeg(ctx,
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("anullsrc=r=%d:cl=mono", rate),
		"-t", fmt.Sprintf("%.3f", seconds),
		path,
	)
	if err != nil {
		return "", fmt.Errorf("ffmpeg silence generation: %w", err)
	}
	e.silenceFiles[key] = path
	return path, nil
}

// soxrAvailable probes the local ffmpeg build for the soxr resampler once.
func (e *FFmpegEngine) soxrAvailable(ctx context.Context) bool {
	e.soxrOnce.Do(func() {
		cmd := exec.CommandContext(ctx, e.ffmpegPath, "-hide_banner", "-buildconf")
		out, err := cmd.Output()
		if err != nil {
			return
		}
		e.hasSoxr = bytes.Contains(out, []byte("--enable-libsoxr"))
		if logging.Logger != nil {
			logging.LogAudioProcessing("soxr_probe", zap.Bool("available", e.hasSoxr))
		}
	})
	return e.hasSoxr
}

func (e *FFmpegEngine) runFFmpeg(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", strings.TrimSpace(stderr.String()), err)
	}
	return nil
}

func (e *FFmpegEngine) runProbe(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, e.ffprobePath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s: %w", strings.TrimSpace(stderr.String()), err)
	}
	return stdout.String(), nil
}

// escapeConcatPath quotes single quotes for the concat demuxer list format.
func escapeConcatPath(p string) string {
	return strings.ReplaceAll(p, "'", `'\''`)
}
