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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/koemaki/koemaki/internal/config"
	"github.com/koemaki/koemaki/internal/logging"
)

// speakerStyle is one entry of the speech server's /speakers response.
type speakerStyle struct {
	ID int `json:"id"`
}

type speakerInfo struct {
	Name   string         `json:"name"`
	Styles []speakerStyle `json:"styles"`
}

// HTTPClient talks to a local speech server with a two-phase API: an
// audio_query call builds the synthesis plan, a synthesis call renders it.
type HTTPClient struct {
	baseURL         string
	client          *http.Client
	config          config.SynthConfig
	semaphore       chan struct{} // Limits concurrent requests
	mu              sync.RWMutex
	cachedVoices    []string
	voicesCacheTime time.Time
}

// NewHTTPClient creates a speech-server client and verifies the server is
// reachable.
func NewHTTPClient(cfg config.SynthConfig) (*HTTPClient, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("speech server URL cannot be empty")
	}

	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}

	c := &HTTPClient{
		baseURL:   strings.TrimSuffix(cfg.URL, "/"),
		client:    &http.Client{Timeout: cfg.Timeout},
		config:    cfg,
		semaphore: make(chan struct{}, cfg.MaxConcurrent),
	}

	if err := c.testConnection(); err != nil {
		return nil, fmt.Errorf("failed to connect to speech server: %w", err)
	}

	if logging.Sugar != nil {
		logging.Sugar.Infow("🔊 Speech server client initialized",
			"url", cfg.URL,
			"voice", cfg.Voice,
			"max_concurrent", cfg.MaxConcurrent,
		)
	}

	return c, nil
}

// SynthesizeToFile renders text into a WAV file at outPath. The file is
// written atomically: either the full render lands at outPath or nothing
// does.
func (c *HTTPClient) SynthesizeToFile(ctx context.Context, text, voice string, speedPercent int, outPath string) error {
	if text == "" {
		return fmt.Errorf("text cannot be empty")
	}
	if voice == "" {
		voice = c.config.Voice
	}
	speedPercent = ClampSpeed(speedPercent)

	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("synthesis queue full, request timed out")
	}

	startTime := time.Now()

	query, err := c.audioQuery(ctx, text, voice)
	if err != nil {
		return err
	}

	// Patch the requested speed into the synthesis plan.
	query["speedScale"] = float64(speedPercent) / 100.0

	audio, err := c.synthesis(ctx, query, voice)
	if err != nil {
		return err
	}

	if err := writeFileAtomic(outPath, audio); err != nil {
		return fmt.Errorf("failed to write synthesis output: %w", err)
	}

	if logging.Logger != nil {
		logging.LogSynthesis("http_complete",
			zap.String("voice", voice),
			zap.Int("text_length", len(text)),
			zap.Int("bytes", len(audio)),
			zap.Duration("processing_time", time.Since(startTime)),
		)
	}
	return nil
}

// audioQuery asks the server to build a synthesis plan for text.
func (c *HTTPClient) audioQuery(ctx context.Context, text, voice string) (map[string]interface{}, error) {
	q := url.Values{}
	q.Set("text", text)
	q.Set("speaker", voice)

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/audio_query?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio_query request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("audio_query request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		// The body text carries the engine's rejection reason and is kept in
		// the error for downstream failure classification.
		return nil, fmt.Errorf("audio_query failed with status %d: %s", resp.StatusCode, string(body))
	}

	var query map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&query); err != nil {
		return nil, fmt.Errorf("failed to decode audio_query response: %w", err)
	}
	return query, nil
}

// synthesis renders a previously built plan to WAV bytes.
func (c *HTTPClient) synthesis(ctx context.Context, query map[string]interface{}, voice string) ([]byte, error) {
	payload, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal synthesis plan: %w", err)
	}

	q := url.Values{}
	q.Set("speaker", voice)

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/synthesis?"+q.Encode(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("synthesis failed with status %d: %s", resp.StatusCode, string(body))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesis audio: %w", err)
	}
	return audio, nil
}

// Voices returns the speaker style identifiers the server offers, cached for
// an hour.
func (c *HTTPClient) Voices(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	if len(c.cachedVoices) > 0 && time.Since(c.voicesCacheTime) < time.Hour {
		voices := make([]string, len(c.cachedVoices))
		copy(voices, c.cachedVoices)
		c.mu.RUnlock()
		return voices, nil
	}
	c.mu.RUnlock()

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/speakers", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create speakers request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch speakers: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("speakers request failed with status %d", resp.StatusCode)
	}

	var speakers []speakerInfo
	if err := json.NewDecoder(resp.Body).Decode(&speakers); err != nil {
		return nil, fmt.Errorf("failed to decode speakers response: %w", err)
	}

	var voices []string
	for _, s := range speakers {
		for _, st := range s.Styles {
			voices = append(voices, fmt.Sprintf("%d", st.ID))
		}
	}

	c.mu.Lock()
	c.cachedVoices = make([]string, len(voices))
	copy(c.cachedVoices, voices)
	c.voicesCacheTime = time.Now()
	c.mu.Unlock()

	if logging.Sugar != nil {
		logging.Sugar.Debugw("🔊 Retrieved available voices",
			"count", len(voices),
		)
	}
	return voices, nil
}

// Close cleans up idle connections.
func (c *HTTPClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// testConnection checks the speakers endpoint as a health probe.
func (c *HTTPClient) testConnection() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/speakers", nil)
	if err != nil {
		return fmt.Errorf("failed to create test request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status %d", resp.StatusCode)
	}
	return nil
}

// writeFileAtomic writes data next to path and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".synth-*.wav")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
