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

package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/koemaki/koemaki/internal/audio"
	"github.com/koemaki/koemaki/internal/config"
	"github.com/koemaki/koemaki/internal/events"
	"github.com/koemaki/koemaki/internal/logging"
	"github.com/koemaki/koemaki/internal/reading"
	"github.com/koemaki/koemaki/internal/synth"
	"github.com/koemaki/koemaki/internal/textnorm"
)

// Candidate labels the orchestrator adds beyond the generator's defaults.
const (
	labelAltSanitized    = "alt-sanitized"
	labelKatakanaReading = "katakana-reading"
	labelFullWidthDigits = "fullwidth-digits"
	labelStripped        = "latin-stripped"
)

// Normalizer optionally pre-processes utterance text before candidate
// generation. When nil, only whitespace/control cleanup and digit widening
// are applied, leaving symbol substitution to the failure-driven variants.
type Normalizer func(text string) string

// Options wires an Orchestrator.
type Options struct {
	Synth      synth.Synthesizer
	Audio      audio.Processor
	Reading    reading.Provider // primary analyzer, may be nil
	CLIReading reading.Provider // secondary analyzer for extra variants, may be nil
	Normalizer Normalizer       // optional
	Reporter   Reporter         // optional
	Policy     *textnorm.Policy // optional, defaults to textnorm.DefaultPolicy
	Config     config.PipelineConfig

	Voice        string // default voice
	SpeedPercent int    // default speed, 100 = normal
}

// Request is one utterance to synthesize.
type Request struct {
	Text         string
	Line         int
	Voice        string // overrides the default when set
	SpeedPercent int    // overrides the default when set
	OutPath      string
}

// Result describes a successful synthesis.
type Result struct {
	Path           string
	Seconds        float64
	Attempts       int
	UsedClauseMode bool
	History        []*events.Attempt // every attempt made, in order
}

// Orchestrator drives the retry matrix for utterances: candidate texts
// against voices, clause-level synthesis as the escalation path.
type Orchestrator struct {
	synth      synth.Synthesizer
	audio      audio.Processor
	reading    reading.Provider
	cliReading reading.Provider
	normalizer Normalizer
	reporter   Reporter
	policy     textnorm.Policy
	cfg        config.PipelineConfig

	voice string
	speed int
}

// New validates options and builds an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Synth == nil {
		return nil, fmt.Errorf("synthesizer is required")
	}
	if opts.Audio == nil {
		return nil, fmt.Errorf("audio processor is required")
	}

	cfg := opts.Config
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.PerTextRetries <= 0 {
		cfg.PerTextRetries = 2
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}

	policy := textnorm.DefaultPolicy()
	if opts.Policy != nil {
		policy = *opts.Policy
	}

	var reporter Reporter = nopReporter{}
	if opts.Reporter != nil {
		reporter = opts.Reporter
	}

	speed := opts.SpeedPercent
	if speed <= 0 {
		speed = 100
	}

	return &Orchestrator{
		synth:      opts.Synth,
		audio:      opts.Audio,
		reading:    opts.Reading,
		cliReading: opts.CLIReading,
		normalizer: opts.Normalizer,
		reporter:   reporter,
		policy:     policy,
		cfg:        cfg,
		voice:      opts.Voice,
		speed:      synth.ClampSpeed(speed),
	}, nil
}

// Synthesize renders one utterance to req.OutPath, retrying across
// candidate texts, voices, and finally clause-level synthesis. The output
// file appears only on success.
func (o *Orchestrator) Synthesize(ctx context.Context, req Request) (*Result, error) {
	voice := req.Voice
	if voice == "" {
		voice = o.voice
	}
	speed := req.SpeedPercent
	if speed <= 0 {
		speed = o.speed
	}
	speed = synth.ClampSpeed(speed)

	prepped := o.prepare(req.Text)
	if prepped == "" {
		return nil, fmt.Errorf("nothing to synthesize in %q", req.Text)
	}

	totalAttempts := 0
	escalated := false
	injected := false
	var history []*events.Attempt
	var lastErr error

	if o.cfg.ForceClauseMode {
		// Clause-first is a fast path, not exclusive: when it fails, the
		// utterance still gets the full per-text matrix below.
		escalated = true
		res, cerr := o.synthesizeClauses(ctx, req, prepped, voice, speed, &history)
		if cerr == nil {
			res.History = history
			return res, nil
		}
		lastErr = cerr
		totalAttempts = len(history)
		o.reporter.Report(fmt.Sprintf("line %d: clause synthesis failed, trying the whole utterance", req.Line))
	}

	readingSan := o.lookupReading(ctx, prepped)
	cliSan := o.lookupCLIReading(ctx, prepped)
	// The secondary transliterator often resolves kanji the primary analyzer
	// left behind; prefer its reading in that case.
	if reading.HasKanji(readingSan) && cliSan != "" && !reading.HasKanji(cliSan) {
		readingSan = cliSan
	}
	cands := textnorm.Generate(prepped, readingSan, cliSan, o.policy)
	// A reading that kept kanji means the analyzer gave up on parts of the
	// text; trust the raw form first in that case.
	if reading.HasKanji(readingSan) && len(cands) > 1 && cands[0].Label == textnorm.LabelPhonetic {
		cands[0], cands[1] = cands[1], cands[0]
	}

	voices := o.voiceList(ctx, voice)

	retries := o.cfg.PerTextRetries
	if o.cfg.AggressiveRetry {
		retries *= 2
	}

	for _, v := range voices {
	candLoop:
		for ci := 0; ci < len(cands); ci++ {
			cand := cands[ci]
			for try := 0; try < retries; try++ {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				totalAttempts++

				rec := events.NewAttempt(req.Text, req.Line)
				rec.SetTry(events.StageUtterance, v, cand.Label, cand.Text, speed)

				seconds, err := o.render(ctx, cand.Text, v, speed, req.OutPath, true)
				if err == nil {
					rec.SetSuccess(seconds)
					o.emit(&history, rec)
					return &Result{Path: req.OutPath, Seconds: seconds, Attempts: totalAttempts, History: history}, nil
				}
				lastErr = err
				kind := Classify(err)

				if kind == KindTruncatedOutput && !escalated {
					escalated = true
					rec.SetEscalated(kind.String(), err)
					o.emit(&history, rec)
					o.reporter.Report(fmt.Sprintf("line %d: output truncated, escalating to clause synthesis", req.Line))

					res, cerr := o.synthesizeClauses(ctx, req, prepped, v, speed, &history)
					if cerr == nil {
						res.Attempts += totalAttempts
						res.History = history
						return res, nil
					}
					lastErr = cerr
					continue candLoop
				}

				rec.SetFailure(kind.String(), err)
				o.emit(&history, rec)

				switch kind {
				case KindMalformedSymbol:
					// Retrying the same symbols is pointless; widen the
					// candidate queue once and move on.
					if !injected {
						injected = true
						cands = textnorm.Insert(cands, ci, o.malformedAlternatives(prepped, readingSan, cliSan))
						o.reporter.Report(fmt.Sprintf("line %d: symbol rejected, trying substituted variants", req.Line))
					}
					continue candLoop
				case KindUnknown:
					// An unclassified engine error taints the whole voice.
					break candLoop
				default:
					o.sleepCtx(ctx, o.cfg.BackoffBase*time.Duration(try+1))
				}
			}
		}
	}

	// Last resort: take the utterance apart.
	if !escalated {
		res, cerr := o.synthesizeClauses(ctx, req, prepped, voice, speed, &history)
		if cerr == nil {
			res.Attempts += totalAttempts
			res.History = history
			return res, nil
		}
		lastErr = cerr
	}

	o.reporter.Report(fmt.Sprintf("line %d: exhausted after %d attempts", req.Line, totalAttempts))

	if o.cfg.DebugDir != "" {
		if path, derr := DumpFailure(o.cfg.DebugDir, req.Text, cands, history); derr == nil && path != "" {
			logging.LogWarn("wrote failure dump", zap.String("path", path))
		}
	}

	return nil, &ExhaustedError{
		Utterance: req.Text,
		Attempts:  totalAttempts,
		LastKind:  Classify(lastErr),
		LastErr:   lastErr,
		History:   history,
	}
}

// emit appends rec to the per-call history and forwards it to the reporter.
func (o *Orchestrator) emit(history *[]*events.Attempt, rec *events.Attempt) {
	*history = append(*history, rec)
	o.reporter.Attempt(rec)
}

// render synthesizes text into outPath at the canonical sample rate and
// verifies the output is plausible. outPath appears only on success.
func (o *Orchestrator) render(ctx context.Context, text, voice string, speed int, outPath string, checkTruncation bool) (float64, error) {
	raw := filepath.Join(o.cfg.TempDir, "render-"+uuid.NewString()+".wav")
	defer func() { _ = os.Remove(raw) }()

	if err := o.synth.SynthesizeToFile(ctx, text, voice, speed, raw); err != nil {
		return 0, err
	}

	info, err := os.Stat(raw)
	if err != nil {
		return 0, NewSynthError(KindEmptyOutput, fmt.Errorf("no output file: %w", err))
	}
	if info.Size() <= MinOutputBytes {
		return 0, NewSynthError(KindEmptyOutput, fmt.Errorf("output is %d bytes", info.Size()))
	}

	norm := raw + ".norm.wav"
	defer func() { _ = os.Remove(norm) }()
	if err := o.audio.Resample(ctx, raw, norm, o.cfg.SampleRate); err != nil {
		return 0, err
	}

	dur, err := o.audio.Duration(ctx, norm)
	if err != nil {
		return 0, err
	}
	if checkTruncation {
		n := utf8.RuneCountInString(text)
		if IsTruncated(dur, n) {
			return dur, NewSynthError(KindTruncatedOutput,
				fmt.Errorf("render is %.2fs for %d runes, expected at least %.2fs", dur, n, ExpectedSeconds(n)))
		}
	}

	if err := promote(norm, outPath); err != nil {
		return 0, err
	}
	return dur, nil
}

// prepare cleans the raw utterance before candidate generation.
func (o *Orchestrator) prepare(text string) string {
	if o.normalizer != nil {
		return o.normalizer(text)
	}
	return textnorm.ToFullWidthDigits(textnorm.BasicClean(text))
}

// lookupReading fetches and sanitizes the phonetic reading, best-effort.
func (o *Orchestrator) lookupReading(ctx context.Context, text string) string {
	if o.reading == nil {
		return ""
	}
	r, err := o.reading.Reading(ctx, text)
	if err != nil {
		logging.LogWarn("reading lookup failed", zap.Error(err))
		return ""
	}
	return o.sanitizeReading(r)
}

// lookupCLIReading fetches the secondary transliterator's reading, best-effort.
func (o *Orchestrator) lookupCLIReading(ctx context.Context, text string) string {
	if o.cliReading == nil {
		return ""
	}
	r, err := o.cliReading.Reading(ctx, text)
	if err != nil {
		return ""
	}
	return o.sanitizeReading(r)
}

func (o *Orchestrator) sanitizeReading(r string) string {
	if r == "" {
		return ""
	}
	return textnorm.Sanitize(r, o.cfg.ForceHiragana)
}

// voiceList builds the voice fallback order: the requested voice first,
// then the backend's remaining voices when fallback is allowed.
func (o *Orchestrator) voiceList(ctx context.Context, primary string) []string {
	out := []string{primary}
	if !o.cfg.AllowVoiceFallback {
		return out
	}
	vs, err := o.synth.Voices(ctx)
	if err != nil {
		logging.LogWarn("voice listing failed", zap.Error(err))
		return out
	}
	for _, v := range vs {
		if v != primary {
			out = append(out, v)
		}
	}
	return out
}

// malformedAlternatives builds the variant list injected after an
// unpronounceable-symbol rejection, strongest fix first.
func (o *Orchestrator) malformedAlternatives(prepped, readingSan, cliSan string) []textnorm.Candidate {
	alts := []textnorm.Candidate{
		{Label: labelAltSanitized, Text: textnorm.Sanitize(prepped, o.cfg.ForceHiragana)},
		{Label: textnorm.LabelPhonetic, Text: readingSan},
		{Label: labelKatakanaReading, Text: textnorm.KeepKatakanaReading(prepped)},
		{Label: labelFullWidthDigits, Text: textnorm.ToFullWidthDigits(prepped)},
		{Label: labelStripped, Text: textnorm.StripLatinAndPunct(prepped)},
	}
	if cliSan != "" {
		alts = append(alts, textnorm.Candidate{Label: textnorm.LabelCLIPhonetic, Text: cliSan})
	}
	if o.cfg.AggressiveRetry {
		alts = append(alts, textnorm.Candidate{Label: textnorm.LabelAggressive, Text: textnorm.AggressiveSanitize(prepped)})
	}
	return alts
}
