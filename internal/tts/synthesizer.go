// Package tts speaks chat messages through a text-to-speech backend.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/botonex/botonex/internal/config"
)

// Synthesizer turns text into audio. The caller closes the returned reader.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (io.ReadCloser, error)
}

// HTTPSynthesizer calls an OpenAI-compatible /audio/speech endpoint and
// receives MP3 audio.
type HTTPSynthesizer struct {
	apiBase string
	apiKey  string
	model   string
	voice   string
	client  *http.Client
}

func NewHTTPSynthesizer(cfg config.TTSConfig) *HTTPSynthesizer {
	def := config.DefaultConfig().TTS
	if cfg.APIBase == "" {
		cfg.APIBase = def.APIBase
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Voice == "" {
		cfg.Voice = def.Voice
	}
	return &HTTPSynthesizer{
		apiBase: strings.TrimRight(cfg.APIBase, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		voice:   cfg.Voice,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type speechRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
	Voice string `json:"voice"`
}

func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text string) (io.ReadCloser, error) {
	body, err := json.Marshal(speechRequest{Model: s.model, Input: text, Voice: s.voice})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiBase+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("tts api error (status %d): %s", resp.StatusCode, string(respBody))
	}
	return resp.Body, nil
}
