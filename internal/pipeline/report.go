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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/koemaki/koemaki/internal/events"
	"github.com/koemaki/koemaki/internal/logging"
	"github.com/koemaki/koemaki/internal/textnorm"
)

// Reporter receives progress messages and attempt records from the
// orchestrator. Reporting is best-effort: implementations log their own
// failures and never block synthesis.
type Reporter interface {
	// Report delivers a human-readable progress message.
	Report(msg string)
	// Attempt delivers one structured attempt record.
	Attempt(a *events.Attempt)
}

// MultiReporter fans messages and attempts out to several reporters.
type MultiReporter []Reporter

func (m MultiReporter) Report(msg string) {
	for _, r := range m {
		if r != nil {
			r.Report(msg)
		}
	}
}

func (m MultiReporter) Attempt(a *events.Attempt) {
	for _, r := range m {
		if r != nil {
			r.Attempt(a)
		}
	}
}

// ZapReporter logs progress and attempts through the global logger.
type ZapReporter struct{}

func (ZapReporter) Report(msg string) {
	if logging.Logger != nil {
		logging.Logger.Info(msg)
	}
}

func (ZapReporter) Attempt(a *events.Attempt) {
	if logging.Logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("uuid", a.UUID),
		zap.Int("line", a.Line),
		zap.String("stage", a.Stage),
		zap.String("voice", a.Voice),
		zap.String("candidate", a.CandidateLabel),
		zap.String("outcome", a.Outcome),
	}
	switch a.Outcome {
	case events.OutcomeSuccess:
		fields = append(fields, zap.Float64("audio_seconds", a.AudioSeconds))
		logging.LogSynthesis("attempt", fields...)
	default:
		fields = append(fields,
			zap.String("failure_kind", a.FailureKind),
			zap.String("error", a.ErrorMessage),
		)
		logging.LogSynthesis("attempt", fields...)
	}
}

// nopReporter is used when nothing is wired.
type nopReporter struct{}

func (nopReporter) Report(string) {}

func (nopReporter) Attempt(*events.Attempt) {}

// DumpFailure writes a human-readable candidate-matrix report for a failed
// utterance into dir. Returns the dump path.
func DumpFailure(dir, utterance string, candidates []textnorm.Candidate, attempts []*events.Attempt) (string, error) {
	if dir == "" {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "utterance: %s\n", utterance)
	fmt.Fprintf(&b, "time: %s\n\n", time.Now().Format(time.RFC3339))
	b.WriteString("candidates:\n")
	for i, c := range candidates {
		fmt.Fprintf(&b, "  %d. [%s] %s\n", i+1, c.Label, c.Text)
	}
	b.WriteString("\nattempts:\n")
	for i, a := range attempts {
		fmt.Fprintf(&b, "  %d. stage=%s voice=%s candidate=%s outcome=%s kind=%s err=%s\n",
			i+1, a.Stage, a.Voice, a.CandidateLabel, a.Outcome, a.FailureKind, a.ErrorMessage)
	}

	path := filepath.Join(dir, fmt.Sprintf("failure-%s.txt", uuid.NewString()))
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		return "", err
	}
	return path, nil
}
