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

package synth

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/koemaki/koemaki/internal/config"
	"github.com/koemaki/koemaki/internal/logging"
)

// VoiceCache lazily resolves voice identifiers to their resource directories
// under a voice root. Resolution results, including misses, are cached.
type VoiceCache struct {
	root string

	mu    sync.Mutex
	paths map[string]string
	errs  map[string]error
}

// NewVoiceCache creates a cache over root. An empty root disables resource
// resolution; every lookup then succeeds with an empty path.
func NewVoiceCache(root string) *VoiceCache {
	return &VoiceCache{
		root:  root,
		paths: make(map[string]string),
		errs:  make(map[string]error),
	}
}

// Resolve returns the resource directory for voice.
func (vc *VoiceCache) Resolve(voice string) (string, error) {
	if vc.root == "" {
		return "", nil
	}

	vc.mu.Lock()
	defer vc.mu.Unlock()

	if p, ok := vc.paths[voice]; ok {
		return p, nil
	}
	if err, ok := vc.errs[voice]; ok {
		return "", err
	}

	dir := filepath.Join(vc.root, voice)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		e := fmt.Errorf("voice %q has no resource directory under %s", voice, vc.root)
		vc.errs[voice] = e
		return "", e
	}
	vc.paths[voice] = dir
	return dir, nil
}

// Known lists the voices present under the root, sorted.
func (vc *VoiceCache) Known() ([]string, error) {
	if vc.root == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(vc.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read voice root %s: %w", vc.root, err)
	}
	var voices []string
	for _, e := range entries {
		if e.IsDir() {
			voices = append(voices, e.Name())
		}
	}
	sort.Strings(voices)
	return voices, nil
}

// CommandClient drives a native synthesizer CLI. Each call runs one process:
//
//	<command> -v <voice-dir> -s <speed> -o <out> <text>
type CommandClient struct {
	path    string
	voices  *VoiceCache
	config  config.SynthConfig
	timeout time.Duration
}

// NewCommandClient validates the executable and prepares the voice cache.
func NewCommandClient(cfg config.SynthConfig) (*CommandClient, error) {
	if cfg.CommandPath == "" {
		return nil, fmt.Errorf("synthesizer command path cannot be empty")
	}
	if _, err := os.Stat(cfg.CommandPath); err != nil {
		return nil, fmt.Errorf("synthesizer command %s: %w", cfg.CommandPath, err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &CommandClient{
		path:    cfg.CommandPath,
		voices:  NewVoiceCache(cfg.VoiceRoot),
		config:  cfg,
		timeout: timeout,
	}, nil
}

// SynthesizeToFile renders text with the native CLI. The CLI writes to a
// scratch path first so outPath never holds a partial render.
func (c *CommandClient) SynthesizeToFile(ctx context.Context, text, voice string, speedPercent int, outPath string) error {
	if text == "" {
		return fmt.Errorf("text cannot be empty")
	}
	if voice == "" {
		voice = c.config.Voice
	}
	speedPercent = ClampSpeed(speedPercent)

	voiceArg := voice
	if dir, err := c.voices.Resolve(voice); err != nil {
		return err
	} else if dir != "" {
		voiceArg = dir
	}

	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	scratch := filepath.Join(dir, ".cmd-"+uuid.NewString()+".wav")
	defer func() { _ = os.Remove(scratch) }()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.path,
		"-v", voiceArg,
		"-s", strconv.Itoa(speedPercent),
		"-o", scratch,
		text,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("synthesizer timed out after %v: %w", c.timeout, ctx.Err())
		}
		// Stderr carries the engine's diagnostic (error codes, undefined
		// symbol notices) and is kept for failure classification.
		return fmt.Errorf("synthesizer failed: %s: %w", strings.TrimSpace(stderr.String()), err)
	}

	if _, err := os.Stat(scratch); err != nil {
		return fmt.Errorf("synthesizer produced no output: %w", err)
	}
	if err := os.Rename(scratch, outPath); err != nil {
		return fmt.Errorf("failed to move synthesis output: %w", err)
	}

	if logging.Logger != nil {
		logging.LogSynthesis("command_complete",
			zap.String("voice", voice),
			zap.Int("text_length", len(text)),
			zap.Duration("processing_time", time.Since(start)),
		)
	}
	return nil
}

// Voices lists the voices found under the configured voice root, with the
// default voice first when present.
func (c *CommandClient) Voices(_ context.Context) ([]string, error) {
	voices, err := c.voices.Known()
	if err != nil {
		return nil, err
	}
	if len(voices) == 0 {
		if c.config.Voice != "" {
			return []string{c.config.Voice}, nil
		}
		return nil, nil
	}
	for i, v := range voices {
		if v == c.config.Voice && i != 0 {
			voices = append([]string{v}, append(append([]string{}, voices[:i]...), voices[i+1:]...)...)
			break
		}
	}
	return voices, nil
}
