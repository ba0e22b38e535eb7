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

package storage

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/koemaki/koemaki/internal/events"
	"github.com/koemaki/koemaki/internal/logging"
)

// AttemptsStore handles database operations for synthesis attempts. Its
// Attempt method satisfies the pipeline's Reporter interface, so a store can
// be wired straight into the orchestrator.
type AttemptsStore struct {
	db *Database
}

// NewAttemptsStore creates a new attempts store
func NewAttemptsStore(db *Database) *AttemptsStore {
	return &AttemptsStore{db: db}
}

// ListOptions controls attempt queries.
type ListOptions struct {
	Outcome     string // filter by outcome, empty for all
	FailureKind string // filter by failure kind, empty for all
	Line        int    // filter by script line, 0 for all
	Limit       int    // 0 means 100
	Offset      int
}

// Insert stores a new attempt record
func (s *AttemptsStore) Insert(a *events.Attempt) error {
	if err := a.IsValid(); err != nil {
		return fmt.Errorf("invalid attempt: %w", err)
	}

	query := `
		INSERT INTO synthesis_attempts (
			uuid, utterance, line, timestamp,
			stage, voice, candidate_label, candidate_text, speed_percent,
			outcome, failure_kind, error_message, audio_seconds, processing_time_ms
		) VALUES (
			?, ?, ?, ?,
			?, ?, ?, ?, ?,
			?, ?, ?, ?, ?
		)`

	_, err := s.db.DB().Exec(query,
		a.UUID, a.Utterance, a.Line, a.Timestamp,
		a.Stage, a.Voice, a.CandidateLabel, a.CandidateText, a.SpeedPercent,
		a.Outcome, a.FailureKind, a.ErrorMessage, a.AudioSeconds, a.ProcessingTime,
	)
	if err != nil {
		return fmt.Errorf("failed to insert attempt: %w", err)
	}

	logging.LogDatabaseOperation("insert", "synthesis_attempts",
		zap.String("uuid", a.UUID),
		zap.String("outcome", a.Outcome),
	)
	return nil
}

// Report implements the pipeline Reporter interface. Only structured attempt
// records are persisted; progress messages are left to the log reporter.
func (s *AttemptsStore) Report(string) {}

// Attempt implements the pipeline Reporter interface. Storage failures are
// logged and swallowed; reporting never fails a synthesis.
func (s *AttemptsStore) Attempt(a *events.Attempt) {
	if err := s.Insert(a); err != nil {
		logging.LogError(err, "failed to store attempt", zap.String("uuid", a.UUID))
	}
}

// GetByUUID retrieves an attempt by its UUID
func (s *AttemptsStore) GetByUUID(uuid string) (*events.Attempt, error) {
	query := selectColumns + ` WHERE uuid = ?`
	row := s.db.DB().QueryRow(query, uuid)
	return scanAttempt(row)
}

// List retrieves attempts with pagination and filtering, newest first
func (s *AttemptsStore) List(options ListOptions) ([]*events.Attempt, error) {
	query, args := buildListQuery(options)

	rows, err := s.db.DB().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer rows.Close()

	var list []*events.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attempts: %w", err)
	}
	return list, nil
}

// Count returns the number of attempts matching the filter
func (s *AttemptsStore) Count(options ListOptions) (int, error) {
	query := `SELECT COUNT(*) FROM synthesis_attempts`
	where, args := buildWhere(options)
	query += where

	var count int
	if err := s.db.DB().QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", err)
	}
	return count, nil
}

const selectColumns = `
	SELECT uuid, utterance, line, timestamp,
	       stage, voice, candidate_label, candidate_text, speed_percent,
	       outcome, failure_kind, error_message, audio_seconds, processing_time_ms
	FROM synthesis_attempts`

func buildWhere(options ListOptions) (string, []interface{}) {
	var conds []string
	var args []interface{}
	if options.Outcome != "" {
		conds = append(conds, "outcome = ?")
		args = append(args, options.Outcome)
	}
	if options.FailureKind != "" {
		conds = append(conds, "failure_kind = ?")
		args = append(args, options.FailureKind)
	}
	if options.Line > 0 {
		conds = append(conds, "line = ?")
		args = append(args, options.Line)
	}
	if len(conds) == 0 {
		return "", nil
	}
	where := " WHERE " + conds[0]
	for _, c := range conds[1:] {
		where += " AND " + c
	}
	return where, args
}

func buildListQuery(options ListOptions) (string, []interface{}) {
	query := selectColumns
	where, args := buildWhere(options)
	query += where
	query += " ORDER BY timestamp DESC"

	limit := options.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)
	if options.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, options.Offset)
	}
	return query, args
}

// scanner abstracts sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAttempt(row scanner) (*events.Attempt, error) {
	var a events.Attempt
	err := row.Scan(
		&a.UUID, &a.Utterance, &a.Line, &a.Timestamp,
		&a.Stage, &a.Voice, &a.CandidateLabel, &a.CandidateText, &a.SpeedPercent,
		&a.Outcome, &a.FailureKind, &a.ErrorMessage, &a.AudioSeconds, &a.ProcessingTime,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("attempt not found")
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
