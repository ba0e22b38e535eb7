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

// Package events defines the attempt records emitted by the synthesis
// pipeline for observability and storage.
package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Attempt outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeEscalated = "escalated"
)

// Attempt stages.
const (
	StageUtterance = "utterance"
	StageClause    = "clause"
)

// Attempt represents one synthesis try with full traceability: which text
// variant, which voice, what came of it.
type Attempt struct {
	// Core identification
	UUID      string    `json:"uuid" db:"uuid"`
	Utterance string    `json:"utterance" db:"utterance"`
	Line      int       `json:"line" db:"line"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`

	// What was tried
	Stage          string `json:"stage" db:"stage"`
	Voice          string `json:"voice" db:"voice"`
	CandidateLabel string `json:"candidate_label" db:"candidate_label"`
	CandidateText  string `json:"candidate_text" db:"candidate_text"`
	SpeedPercent   int    `json:"speed_percent" db:"speed_percent"`

	// What came of it
	Outcome        string  `json:"outcome" db:"outcome"`
	FailureKind    string  `json:"failure_kind,omitempty" db:"failure_kind"`
	ErrorMessage   string  `json:"error_message,omitempty" db:"error_message"`
	AudioSeconds   float64 `json:"audio_seconds" db:"audio_seconds"`
	ProcessingTime int64   `json:"processing_time_ms" db:"processing_time_ms"`
}

// NewAttempt creates an Attempt with a generated UUID and current timestamp.
func NewAttempt(utterance string, line int) *Attempt {
	return &Attempt{
		UUID:      uuid.NewString(),
		Utterance: utterance,
		Line:      line,
		Timestamp: time.Now(),
		Stage:     StageUtterance,
	}
}

// SetTry records what is about to be tried.
func (a *Attempt) SetTry(stage, voice, label, text string, speedPercent int) {
	a.Stage = stage
	a.Voice = voice
	a.CandidateLabel = label
	a.CandidateText = text
	a.SpeedPercent = speedPercent
}

// SetSuccess marks the attempt successful with the rendered duration.
func (a *Attempt) SetSuccess(audioSeconds float64) {
	a.Outcome = OutcomeSuccess
	a.AudioSeconds = audioSeconds
	a.ProcessingTime = time.Since(a.Timestamp).Milliseconds()
}

// SetFailure marks the attempt failed with a classified kind.
func (a *Attempt) SetFailure(kind string, err error) {
	a.Outcome = OutcomeFailure
	a.FailureKind = kind
	if err != nil {
		a.ErrorMessage = err.Error()
	}
	a.ProcessingTime = time.Since(a.Timestamp).Milliseconds()
}

// SetEscalated marks the attempt as handed over to clause-level synthesis.
func (a *Attempt) SetEscalated(kind string, err error) {
	a.Outcome = OutcomeEscalated
	a.FailureKind = kind
	if err != nil {
		a.ErrorMessage = err.Error()
	}
	a.ProcessingTime = time.Since(a.Timestamp).Milliseconds()
}

// IsValid performs basic validation on the attempt record.
func (a *Attempt) IsValid() error {
	if a.UUID == "" {
		return fmt.Errorf("UUID is required")
	}
	if a.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	switch a.Outcome {
	case OutcomeSuccess, OutcomeFailure, OutcomeEscalated:
	default:
		return fmt.Errorf("unknown outcome: %q", a.Outcome)
	}
	return nil
}

// String returns a human-readable representation of the attempt.
func (a *Attempt) String() string {
	return fmt.Sprintf("Attempt{UUID: %s, Stage: %s, Voice: %s, Candidate: %s %q, Outcome: %s, Kind: %s}",
		a.UUID, a.Stage, a.Voice, a.CandidateLabel, a.CandidateText, a.Outcome, a.FailureKind)
}
