package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const cartesiaAPIURL = "https://api.cartesia.ai/tts/bytes"

// CartesiaConfig configures the Cartesia Sonic client
type CartesiaConfig struct {
	APIKey  string
	VoiceID string
	ModelID string
	// URL overrides the endpoint, used in tests
	URL string
}

// CartesiaClient synthesizes speech with the Cartesia API
type CartesiaClient struct {
	cfg        CartesiaConfig
	httpClient *http.Client
}

// NewCartesiaClient creates a Cartesia synthesizer
func NewCartesiaClient(cfg CartesiaConfig) *CartesiaClient {
	if cfg.VoiceID == "" {
		cfg.VoiceID = "a0e99841-438c-4a64-b679-ae501e7d6091"
	}
	if cfg.ModelID == "" {
		cfg.ModelID = "sonic-2"
	}
	if cfg.URL == "" {
		cfg.URL = cartesiaAPIURL
	}
	return &CartesiaClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type cartesiaRequest struct {
	ModelID      string         `json:"model_id"`
	Transcript   string         `json:"transcript"`
	Voice        cartesiaVoice  `json:"voice"`
	OutputFormat cartesiaFormat `json:"output_format"`
}

type cartesiaVoice struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type cartesiaFormat struct {
	Container  string `json:"container"`
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
}

// Synthesize returns 24kHz 16-bit PCM WAV audio for text
func (c *CartesiaClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if c.cfg.APIKey == "" {
		return nil, fmt.Errorf("cartesia: %w", ErrNotConfigured)
	}

	reqBody := cartesiaRequest{
		ModelID:    c.cfg.ModelID,
		Transcript: text,
		Voice:      cartesiaVoice{Mode: "id", ID: c.cfg.VoiceID},
		OutputFormat: cartesiaFormat{
			Container:  "wav",
			SampleRate: 24000,
			Encoding:   "pcm_s16le",
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.cfg.APIKey)
	req.Header.Set("Cartesia-Version", "2024-06-10")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("cartesia api error (status %d): %s", resp.StatusCode, string(body))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	return audio, nil
}
