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
	"context"
	"os"
	"sync"

	"github.com/koemaki/koemaki/internal/audio"
)

// Rule scripts the mock's behavior for matching calls. Empty Voice or Text
// matches anything; rules are evaluated in order, first match wins.
type Rule struct {
	Voice string
	Text  string

	Err      error   // returned without writing anything
	Duration float64 // seconds of audio written on success
	Raw      []byte  // verbatim output bytes, overrides Duration
}

// Call records one synthesis invocation.
type Call struct {
	Text  string
	Voice string
	Speed int
}

// Mock is a scriptable Synthesizer that writes real WAV files, so the rest
// of the pipeline can probe and concatenate its output for real.
type Mock struct {
	Rules      []Rule
	Default    Rule
	VoiceList  []string
	SampleRate int

	mu    sync.Mutex
	calls []Call
}

// NewMock returns a mock producing 1-second renders at rate by default.
func NewMock(rate int) *Mock {
	return &Mock{
		Default:    Rule{Duration: 1.0},
		VoiceList:  []string{"f1"},
		SampleRate: rate,
	}
}

func (m *Mock) SynthesizeToFile(_ context.Context, text, voice string, speedPercent int, outPath string) error {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Text: text, Voice: voice, Speed: ClampSpeed(speedPercent)})
	rule := m.Default
	for _, r := range m.Rules {
		if (r.Voice == "" || r.Voice == voice) && (r.Text == "" || r.Text == text) {
			rule = r
			break
		}
	}
	m.mu.Unlock()

	if rule.Err != nil {
		return rule.Err
	}
	if rule.Raw != nil {
		return os.WriteFile(outPath, rule.Raw, 0o600)
	}
	dur := rule.Duration
	if dur <= 0 {
		dur = 1.0
	}
	return audio.WriteToneWAV(outPath, dur, m.SampleRate)
}

func (m *Mock) Voices(_ context.Context) ([]string, error) {
	out := make([]string, len(m.VoiceList))
	copy(out, m.VoiceList)
	return out, nil
}

// Calls returns a copy of the recorded invocations.
func (m *Mock) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many synthesis calls were made.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
