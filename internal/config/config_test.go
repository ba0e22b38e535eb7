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

package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Synth.Backend != "http" {
		t.Errorf("default backend = %q, want http", cfg.Synth.Backend)
	}
	if cfg.Synth.URL != "http://127.0.0.1:50021" {
		t.Errorf("default synth URL = %q", cfg.Synth.URL)
	}
	if cfg.Pipeline.SampleRate != 16000 {
		t.Errorf("default sample rate = %d, want 16000", cfg.Pipeline.SampleRate)
	}
	if cfg.Pipeline.PerTextRetries != 2 {
		t.Errorf("default retries = %d, want 2", cfg.Pipeline.PerTextRetries)
	}
	if cfg.Pipeline.BackoffBase != 350*time.Millisecond {
		t.Errorf("default backoff = %v", cfg.Pipeline.BackoffBase)
	}
	if cfg.Audio.Engine != "wav" {
		t.Errorf("default audio engine = %q, want wav", cfg.Audio.Engine)
	}
	if cfg.Storage.Enabled || cfg.NATS.Enabled {
		t.Error("storage and NATS should be disabled by default")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("KOEMAKI_SYNTH_VOICE", "f2")
	t.Setenv("KOEMAKI_SYNTH_SPEED", "1.25")
	t.Setenv("KOEMAKI_SAMPLE_RATE", "22050")
	t.Setenv("KOEMAKI_PER_TEXT_RETRIES", "4")
	t.Setenv("KOEMAKI_AGGRESSIVE_RETRY", "true")
	t.Setenv("KOEMAKI_BACKOFF_BASE", "1s")
	t.Setenv("KOEMAKI_AUDIO_ENGINE", "ffmpeg")
	t.Setenv("KOEMAKI_CLI_READING_PATH", "/opt/kana/kana2koe")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Synth.Voice != "f2" {
		t.Errorf("voice = %q", cfg.Synth.Voice)
	}
	if cfg.Synth.Speed != 1.25 {
		t.Errorf("speed = %v", cfg.Synth.Speed)
	}
	if cfg.Pipeline.SampleRate != 22050 {
		t.Errorf("sample rate = %d", cfg.Pipeline.SampleRate)
	}
	if cfg.Pipeline.PerTextRetries != 4 {
		t.Errorf("retries = %d", cfg.Pipeline.PerTextRetries)
	}
	if !cfg.Pipeline.AggressiveRetry {
		t.Error("aggressive retry should be on")
	}
	if cfg.Pipeline.BackoffBase != time.Second {
		t.Errorf("backoff = %v", cfg.Pipeline.BackoffBase)
	}
	if cfg.Audio.Engine != "ffmpeg" {
		t.Errorf("audio engine = %q", cfg.Audio.Engine)
	}
	if cfg.Reading.CLIPath != "/opt/kana/kana2koe" {
		t.Errorf("cli reading path = %q", cfg.Reading.CLIPath)
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("KOEMAKI_SAMPLE_RATE", "not-a-number")
	t.Setenv("KOEMAKI_BACKOFF_BASE", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Pipeline.SampleRate != 16000 {
		t.Errorf("sample rate = %d, want default", cfg.Pipeline.SampleRate)
	}
	if cfg.Pipeline.BackoffBase != 350*time.Millisecond {
		t.Errorf("backoff = %v, want default", cfg.Pipeline.BackoffBase)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid http", func(c *Config) {}, false},
		{"unknown backend", func(c *Config) { c.Synth.Backend = "carrier-pigeon" }, true},
		{"http without URL", func(c *Config) { c.Synth.URL = "" }, true},
		{"command without path", func(c *Config) { c.Synth.Backend = "command"; c.Synth.CommandPath = "" }, true},
		{"command with path", func(c *Config) { c.Synth.Backend = "command"; c.Synth.CommandPath = "/usr/bin/say" }, false},
		{"zero concurrency", func(c *Config) { c.Synth.MaxConcurrent = 0 }, true},
		{"negative speed", func(c *Config) { c.Synth.Speed = -1 }, true},
		{"sample rate too low", func(c *Config) { c.Pipeline.SampleRate = 4000 }, true},
		{"zero retries", func(c *Config) { c.Pipeline.PerTextRetries = 0 }, true},
		{"unknown audio engine", func(c *Config) { c.Audio.Engine = "gramophone" }, true},
		{"nats enabled without URL", func(c *Config) { c.NATS.Enabled = true; c.NATS.URL = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() failed: %v", err)
			}
			tt.mutate(cfg)
			err = cfg.validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
