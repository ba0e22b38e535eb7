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
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the Koemaki synthesis backend
type Config struct {
	Synth    SynthConfig
	Reading  ReadingConfig
	Audio    AudioConfig
	Pipeline PipelineConfig
	Storage  StorageConfig
	NATS     NATSConfig
	Logging  LoggingConfig
}

// SynthConfig holds speech synthesizer configuration
type SynthConfig struct {
	Backend       string        // "http" for a local speech server, "command" for a native CLI
	URL           string        // REST API URL for the HTTP speech server
	Voice         string        // Default voice identifier
	Speed         float64       // Speech speed multiplier (1.0 = normal)
	MaxConcurrent int           // Maximum concurrent synthesis requests
	Timeout       time.Duration // Per-request timeout
	CommandPath   string        // Native synthesizer executable (command backend)
	VoiceRoot     string        // Directory holding per-voice resources (command backend)
}

// ReadingConfig holds morphological-analyzer configuration
type ReadingConfig struct {
	MecabPath string        // Explicit mecab executable path; empty means env/PATH lookup
	CLIPath   string        // Secondary command-line transliterator executable; empty disables
	Timeout   time.Duration // Per-invocation timeout
}

// AudioConfig holds audio utility configuration
type AudioConfig struct {
	Engine      string // "wav" for the built-in engine, "ffmpeg" for external tools
	FFmpegPath  string
	FFprobePath string
}

// PipelineConfig holds retry/orchestration configuration
type PipelineConfig struct {
	ForceClauseMode    bool          // Always try clause-based synthesis first
	AllowVoiceFallback bool          // Try alternate voices after the configured one
	PerTextRetries     int           // Attempts per candidate text
	AggressiveRetry    bool          // Raise retry budget and inject aggressive variants
	BackoffBase        time.Duration // Linear backoff base between retries
	ForceHiragana      bool          // Normalize readings to hiragana
	SampleRate         int           // Canonical sample rate all artifacts normalize to
	MaxConcurrent      int           // Concurrent utterances in batch mode
	TempDir            string        // Per-attempt temp files live here
	DebugDir           string        // Candidate-matrix dumps for failed utterances ("" disables)
}

// StorageConfig holds attempt-history database configuration
type StorageConfig struct {
	Enabled bool
	Path    string
}

// NATSConfig holds NATS messaging configuration
type NATSConfig struct {
	Enabled       bool
	URL           string
	Subject       string
	MaxReconnect  int
	ReconnectWait time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	config := &Config{
		Synth: SynthConfig{
			Backend:       getEnvString("KOEMAKI_SYNTH_BACKEND", "http"),
			URL:           getEnvString("KOEMAKI_SYNTH_URL", "http://127.0.0.1:50021"),
			Voice:         getEnvString("KOEMAKI_SYNTH_VOICE", "f1"),
			Speed:         getEnvFloat64("KOEMAKI_SYNTH_SPEED", 1.0),
			MaxConcurrent: getEnvInt("KOEMAKI_SYNTH_MAX_CONCURRENT", 4),
			Timeout:       getEnvDuration("KOEMAKI_SYNTH_TIMEOUT", 60*time.Second),
			CommandPath:   getEnvString("KOEMAKI_SYNTH_COMMAND", ""),
			VoiceRoot:     getEnvString("KOEMAKI_SYNTH_VOICE_ROOT", ""),
		},
		Reading: ReadingConfig{
			MecabPath: getEnvString("KOEMAKI_MECAB_PATH", ""),
			CLIPath:   getEnvString("KOEMAKI_CLI_READING_PATH", ""),
			Timeout:   getEnvDuration("KOEMAKI_MECAB_TIMEOUT", 6*time.Second),
		},
		Audio: AudioConfig{
			Engine:      getEnvString("KOEMAKI_AUDIO_ENGINE", "wav"),
			FFmpegPath:  getEnvString("KOEMAKI_FFMPEG_PATH", "ffmpeg"),
			FFprobePath: getEnvString("KOEMAKI_FFPROBE_PATH", "ffprobe"),
		},
		Pipeline: PipelineConfig{
			ForceClauseMode:    getEnvBool("KOEMAKI_FORCE_CLAUSE", false),
			AllowVoiceFallback: getEnvBool("KOEMAKI_VOICE_FALLBACK", false),
			PerTextRetries:     getEnvInt("KOEMAKI_PER_TEXT_RETRIES", 2),
			AggressiveRetry:    getEnvBool("KOEMAKI_AGGRESSIVE_RETRY", false),
			BackoffBase:        getEnvDuration("KOEMAKI_BACKOFF_BASE", 350*time.Millisecond),
			ForceHiragana:      getEnvBool("KOEMAKI_FORCE_HIRAGANA", false),
			SampleRate:         getEnvInt("KOEMAKI_SAMPLE_RATE", 16000),
			MaxConcurrent:      getEnvInt("KOEMAKI_MAX_CONCURRENT", 4),
			TempDir:            getEnvString("KOEMAKI_TEMP_DIR", os.TempDir()),
			DebugDir:           getEnvString("KOEMAKI_DEBUG_DIR", ""),
		},
		Storage: StorageConfig{
			Enabled: getEnvBool("KOEMAKI_DB_ENABLED", false),
			Path:    getEnvString("KOEMAKI_DB_PATH", "./data/koemaki.db"),
		},
		NATS: NATSConfig{
			Enabled:       getEnvBool("KOEMAKI_NATS_ENABLED", false),
			URL:           getEnvString("NATS_URL", "nats://localhost:4222"),
			Subject:       getEnvString("KOEMAKI_NATS_SUBJECT", "koemaki.synthesis"),
			MaxReconnect:  getEnvInt("KOEMAKI_NATS_MAX_RECONNECT", 10),
			ReconnectWait: getEnvDuration("KOEMAKI_NATS_RECONNECT_WAIT", 2*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "console"),
		},
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// validate checks if the configuration is valid
func (c *Config) validate() error {
	switch c.Synth.Backend {
	case "http":
		if c.Synth.URL == "" {
			return fmt.Errorf("synth URL must be provided for http backend")
		}
	case "command":
		if c.Synth.CommandPath == "" {
			return fmt.Errorf("synth command path must be provided for command backend")
		}
	default:
		return fmt.Errorf("unknown synth backend: %q", c.Synth.Backend)
	}

	if c.Synth.MaxConcurrent <= 0 {
		return fmt.Errorf("synth max concurrent must be positive: %d", c.Synth.MaxConcurrent)
	}

	if c.Synth.Speed <= 0 {
		return fmt.Errorf("synth speed must be positive: %f", c.Synth.Speed)
	}

	if c.Pipeline.SampleRate < 8000 {
		return fmt.Errorf("sample rate too low: %d", c.Pipeline.SampleRate)
	}

	if c.Pipeline.PerTextRetries <= 0 {
		return fmt.Errorf("per-text retries must be positive: %d", c.Pipeline.PerTextRetries)
	}

	if c.Pipeline.MaxConcurrent <= 0 {
		return fmt.Errorf("pipeline max concurrent must be positive: %d", c.Pipeline.MaxConcurrent)
	}

	if c.Audio.Engine != "wav" && c.Audio.Engine != "ffmpeg" {
		return fmt.Errorf("unknown audio engine: %q", c.Audio.Engine)
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("NATS URL must be provided when NATS is enabled")
	}

	return nil
}

// Environment variable helpers

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
