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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koemaki/koemaki/internal/config"
)

func newSpeechServer(t *testing.T, queryStatus int, queryBody string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/speakers", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"name":"metan","styles":[{"id":2},{"id":36}]},{"name":"zundamon","styles":[{"id":3}]}]`))
	})
	mux.HandleFunc("/audio_query", func(w http.ResponseWriter, r *http.Request) {
		if queryStatus != http.StatusOK {
			w.WriteHeader(queryStatus)
			_, _ = w.Write([]byte(queryBody))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"accent_phrases":[],"speedScale":1.0,"outputSamplingRate":24000}`))
	})
	mux.HandleFunc("/synthesis", func(w http.ResponseWriter, r *http.Request) {
		var query map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&query))
		// The patched speed must arrive in the synthesis plan.
		assert.InDelta(t, 1.5, query["speedScale"], 0.001)
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("RIFFfakewavdata"))
	})
	return httptest.NewServer(mux)
}

func testSynthConfig(url string) config.SynthConfig {
	return config.SynthConfig{
		Backend:       "http",
		URL:           url,
		Voice:         "2",
		Speed:         1.0,
		MaxConcurrent: 2,
		Timeout:       5 * time.Second,
	}
}

func TestHTTPClientSynthesizeToFile(t *testing.T) {
	server := newSpeechServer(t, http.StatusOK, "")
	defer server.Close()

	client, err := NewHTTPClient(testSynthConfig(server.URL))
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	out := filepath.Join(t.TempDir(), "out.wav")
	err = client.SynthesizeToFile(context.Background(), "こんにちは", "2", 150, out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "RIFFfakewavdata", string(data))
}

func TestHTTPClientErrorBodyPreserved(t *testing.T) {
	server := newSpeechServer(t, http.StatusUnprocessableEntity, "読み記号が未定義です")
	defer server.Close()

	client, err := NewHTTPClient(testSynthConfig(server.URL))
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	out := filepath.Join(t.TempDir(), "out.wav")
	err = client.SynthesizeToFile(context.Background(), "ヴ", "2", 150, out)
	require.Error(t, err)
	// The engine diagnostic must survive into the error text for
	// downstream classification.
	assert.Contains(t, err.Error(), "未定義")
	// No partial output file on failure.
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestHTTPClientVoices(t *testing.T) {
	server := newSpeechServer(t, http.StatusOK, "")
	defer server.Close()

	client, err := NewHTTPClient(testSynthConfig(server.URL))
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	voices, err := client.Voices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "36", "3"}, voices)

	// Second call is served from cache
	again, err := client.Voices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, voices, again)
}

func TestHTTPClientRejectsEmptyText(t *testing.T) {
	server := newSpeechServer(t, http.StatusOK, "")
	defer server.Close()

	client, err := NewHTTPClient(testSynthConfig(server.URL))
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	err = client.SynthesizeToFile(context.Background(), "", "2", 100, filepath.Join(t.TempDir(), "out.wav"))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "empty"))
}

func TestNewHTTPClientUnreachable(t *testing.T) {
	cfg := testSynthConfig("http://127.0.0.1:1")
	cfg.Timeout = 500 * time.Millisecond
	_, err := NewHTTPClient(cfg)
	require.Error(t, err)
}

func TestClampSpeed(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, 100},
		{-5, 100},
		{10, 30},
		{30, 30},
		{100, 100},
		{400, 400},
		{1000, 400},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampSpeed(tt.in), "ClampSpeed(%d)", tt.in)
	}
}
