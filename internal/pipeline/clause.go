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

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/koemaki/koemaki/internal/audio"
	"github.com/koemaki/koemaki/internal/events"
	"github.com/koemaki/koemaki/internal/logging"
	"github.com/koemaki/koemaki/internal/textnorm"
)

// DefaultClausePause is the silence inserted between clauses, in seconds.
const DefaultClausePause = 0.3

// pauseFor returns the inter-clause pause for a delimiter. The flat default
// reads naturally for both commas and sentence enders; a per-delimiter map
// did not measurably improve listening tests.
func pauseFor(delim string) float64 {
	if delim == "" {
		return 0
	}
	return DefaultClausePause
}

// synthesizeClauses renders the utterance clause by clause with voice v and
// joins the pieces with pauses. Either the complete result lands at outPath
// or nothing does.
func (o *Orchestrator) synthesizeClauses(ctx context.Context, req Request, prepped, v string, speed int, history *[]*events.Attempt) (*Result, error) {
	clauses := textnorm.SplitClauses(prepped)

	workDir := filepath.Join(o.cfg.TempDir, "clauses-"+uuid.NewString())
	if err := os.MkdirAll(workDir, 0o750); err != nil {
		return nil, err
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	texts := make([]string, len(clauses))
	lastVoiced := -1
	for i, cl := range clauses {
		texts[i] = textnorm.TrimTrailingCommas(cl.Text)
		if texts[i] != "" {
			lastVoiced = i
		}
	}

	var segments []audio.Segment
	attempts := 0

	for i, cl := range clauses {
		text := texts[i]
		if text == "" {
			// Pure punctuation still contributes its pause, unless nothing
			// voiced follows it: the utterance never ends in silence.
			if len(segments) > 0 && i < lastVoiced {
				segments[len(segments)-1].TrailingSilence += pauseFor(cl.Delim)
			}
			continue
		}

		segPath := filepath.Join(workDir, fmt.Sprintf("clause-%03d.wav", i))
		n, err := o.synthesizeClause(ctx, req, text, v, speed, segPath, history)
		attempts += n
		if err != nil {
			return nil, fmt.Errorf("clause %d (%q): %w", i+1, text, err)
		}

		seg := audio.Segment{Path: segPath}
		if i < lastVoiced {
			seg.TrailingSilence = pauseFor(cl.Delim)
		}
		segments = append(segments, seg)
	}

	if len(segments) == 0 {
		return nil, NewSynthError(KindEmptyOutput, fmt.Errorf("no synthesizable clauses in %q", prepped))
	}

	joined := filepath.Join(workDir, "joined.wav")
	if err := o.audio.Concat(ctx, segments, joined, o.cfg.SampleRate); err != nil {
		return nil, err
	}

	dur, err := o.audio.Duration(ctx, joined)
	if err != nil {
		return nil, err
	}

	if err := promote(joined, req.OutPath); err != nil {
		return nil, err
	}

	if logging.Logger != nil {
		logging.LogSynthesis("clause_mode_complete",
			zap.String("voice", v),
			zap.Int("clauses", len(clauses)),
			zap.Int("attempts", attempts),
			zap.Float64("audio_seconds", dur),
		)
	}

	return &Result{
		Path:           req.OutPath,
		Seconds:        dur,
		Attempts:       attempts,
		UsedClauseMode: true,
	}, nil
}

// synthesizeClause tries the candidate variants of one clause until one
// renders. Returns the number of attempts made.
func (o *Orchestrator) synthesizeClause(ctx context.Context, req Request, text, v string, speed int, outPath string, history *[]*events.Attempt) (int, error) {
	cands := o.clauseCandidates(ctx, text)

	attempts := 0
	var lastErr error
	for _, cand := range cands {
		if err := ctx.Err(); err != nil {
			return attempts, err
		}
		attempts++

		rec := events.NewAttempt(req.Text, req.Line)
		rec.SetTry(events.StageClause, v, cand.Label, cand.Text, speed)

		seconds, err := o.render(ctx, cand.Text, v, speed, outPath, false)
		if err == nil {
			rec.SetSuccess(seconds)
			o.emit(history, rec)
			return attempts, nil
		}

		lastErr = err
		rec.SetFailure(Classify(err).String(), err)
		o.emit(history, rec)

		o.sleepCtx(ctx, o.cfg.BackoffBase)
	}
	return attempts, fmt.Errorf("all clause variants failed: %w", lastErr)
}

// clauseCandidates builds the per-clause variant list: the clause itself,
// its phonetic reading, and an aggressively reduced form.
func (o *Orchestrator) clauseCandidates(ctx context.Context, text string) []textnorm.Candidate {
	var readingText string
	if o.reading != nil {
		if r, err := o.reading.Reading(ctx, text); err == nil {
			readingText = o.sanitizeReading(r)
		}
	}

	out := []textnorm.Candidate{{Label: textnorm.LabelOriginal, Text: text}}
	seen := map[string]bool{text: true}
	add := func(label, t string) {
		if t == "" || seen[t] {
			return
		}
		seen[t] = true
		out = append(out, textnorm.Candidate{Label: label, Text: t})
	}
	add(textnorm.LabelPhonetic, readingText)
	add(textnorm.LabelAggressive, textnorm.AggressiveSanitize(text))
	return out
}

// sleepCtx sleeps for d unless the context ends first.
func (o *Orchestrator) sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

// promote moves a finished render into place.
func promote(tmpPath, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
		return err
	}
	return os.Rename(tmpPath, outPath)
}
