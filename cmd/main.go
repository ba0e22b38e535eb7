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

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/koemaki/koemaki/internal/audio"
	"github.com/koemaki/koemaki/internal/config"
	"github.com/koemaki/koemaki/internal/logging"
	"github.com/koemaki/koemaki/internal/messaging"
	"github.com/koemaki/koemaki/internal/pipeline"
	"github.com/koemaki/koemaki/internal/reading"
	"github.com/koemaki/koemaki/internal/storage"
	"github.com/koemaki/koemaki/internal/synth"
	"github.com/koemaki/koemaki/internal/textnorm"
)

func main() {
	var (
		text      = flag.String("text", "", "single utterance to synthesize")
		script    = flag.String("script", "", "path to a script file, one utterance per line")
		out       = flag.String("out", "out.wav", "output WAV file (single) or directory (script)")
		voice     = flag.String("voice", "", "voice identifier, overrides KOEMAKI_SYNTH_VOICE")
		speed     = flag.Int("speed", 100, "speech speed in percent, 30-400")
		clause    = flag.Bool("clause", false, "always synthesize clause by clause")
		normalize = flag.Bool("normalize", false, "apply full symbol substitution before the first attempt")
	)
	flag.Parse()

	if err := logging.Initialize(); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.Close()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *clause {
		cfg.Pipeline.ForceClauseMode = true
	}

	if *text == "" && *script == "" {
		fmt.Fprintln(os.Stderr, "either -text or -script is required")
		flag.Usage()
		os.Exit(2)
	}

	orch, cleanup, err := buildOrchestrator(cfg, *voice, *speed, *normalize)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}
	defer cleanup()

	ctx := context.Background()

	if *text != "" {
		res, err := orch.Synthesize(ctx, pipeline.Request{Text: *text, Line: 1, OutPath: *out})
		if err != nil {
			logging.LogError(err, "Synthesis failed")
			log.Fatalf("Synthesis failed: %v", err)
		}
		logging.Sugar.Infow("🎤 Synthesis complete",
			"path", res.Path,
			"seconds", res.Seconds,
			"attempts", res.Attempts,
			"clause_mode", res.UsedClauseMode,
		)
		return
	}

	requests, err := loadScript(*script, *out)
	if err != nil {
		log.Fatalf("Failed to read script: %v", err)
	}

	results := orch.RunBatch(ctx, requests)
	failed := 0
	for i, r := range results {
		if r.Err != nil {
			failed++
			logging.LogError(r.Err, "Line failed")
			fmt.Fprintf(os.Stderr, "line %d: %v\n", requests[i].Line, r.Err)
		}
	}
	logging.Sugar.Infow("🎤 Batch complete",
		"lines", len(requests),
		"failed", failed,
	)
	if failed > 0 {
		os.Exit(1)
	}
}

// buildOrchestrator wires the configured backend, audio engine, analyzers,
// and reporters into a pipeline.
func buildOrchestrator(cfg *config.Config, voice string, speed int, normalize bool) (*pipeline.Orchestrator, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	var synthesizer synth.Synthesizer
	switch cfg.Synth.Backend {
	case "command":
		c, err := synth.NewCommandClient(cfg.Synth)
		if err != nil {
			return nil, nil, err
		}
		synthesizer = c
	default:
		c, err := synth.NewHTTPClient(cfg.Synth)
		if err != nil {
			return nil, nil, err
		}
		cleanups = append(cleanups, func() { _ = c.Close() })
		synthesizer = c
	}

	var processor audio.Processor
	if cfg.Audio.Engine == "ffmpeg" {
		processor = audio.NewFFmpegEngine(cfg.Audio.FFmpegPath, cfg.Audio.FFprobePath, cfg.Pipeline.TempDir)
	} else {
		processor = audio.NewWAVEngine()
	}

	var reader reading.Provider
	if p, err := reading.NewExecProvider(cfg.Reading.MecabPath, cfg.Reading.Timeout); err == nil {
		reader = p
	} else {
		logging.LogWarn("morphological analyzer unavailable, readings disabled")
	}

	var cliReader reading.Provider
	if cfg.Reading.CLIPath != "" {
		if p, err := reading.NewExecProvider(cfg.Reading.CLIPath, cfg.Reading.Timeout); err == nil {
			cliReader = p
		} else {
			logging.LogWarn("command-line transliterator unavailable, cli readings disabled")
		}
	}

	reporters := pipeline.MultiReporter{pipeline.ZapReporter{}}
	if cfg.Storage.Enabled {
		db, err := storage.NewDatabase(storage.DatabaseConfig{Path: cfg.Storage.Path})
		if err != nil {
			return nil, nil, err
		}
		cleanups = append(cleanups, func() { _ = db.Close() })
		reporters = append(reporters, storage.NewAttemptsStore(db))
	}
	if cfg.NATS.Enabled {
		pub := messaging.NewAttemptPublisher(messaging.PublisherConfig{
			URL:           cfg.NATS.URL,
			Subject:       cfg.NATS.Subject,
			MaxReconnect:  cfg.NATS.MaxReconnect,
			ReconnectWait: cfg.NATS.ReconnectWait,
		})
		if err := pub.Connect(); err != nil {
			return nil, nil, err
		}
		cleanups = append(cleanups, pub.Close)
		reporters = append(reporters, pub)
	}

	if voice == "" {
		voice = cfg.Synth.Voice
	}

	var normalizer pipeline.Normalizer
	if normalize {
		forceHira := cfg.Pipeline.ForceHiragana
		normalizer = func(text string) string {
			return textnorm.Sanitize(text, forceHira)
		}
	}

	orch, err := pipeline.New(pipeline.Options{
		Synth:        synthesizer,
		Audio:        processor,
		Reading:      reader,
		CLIReading:   cliReader,
		Normalizer:   normalizer,
		Reporter:     reporters,
		Config:       cfg.Pipeline,
		Voice:        voice,
		SpeedPercent: speed,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return orch, cleanup, nil
}

// loadScript reads one utterance per line, skipping blanks and # comments.
func loadScript(path, outDir string) ([]pipeline.Request, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return nil, err
	}

	var requests []pipeline.Request
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		requests = append(requests, pipeline.Request{
			Text:    text,
			Line:    line,
			OutPath: filepath.Join(outDir, fmt.Sprintf("line-%04d.wav", line)),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return nil, fmt.Errorf("no utterances in %s", path)
	}
	return requests, nil
}
