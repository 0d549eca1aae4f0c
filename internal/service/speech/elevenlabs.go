package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	speechmodel "github.com/cybergenix/niva/backend/internal/model/speech"
)

const elevenLabsBaseURL = "https://api.elevenlabs.io"

// ElevenLabsClient calls the ElevenLabs text-to-speech REST API and keeps the
// streamed bytes in memory.
type ElevenLabsClient struct {
	baseURL      string
	apiKey       string
	voice        string
	modelID      string
	outputFormat string
	client       *http.Client
}

// NewElevenLabsClient creates a client with the given credentials and defaults.
func NewElevenLabsClient(apiKey, voice, modelID, outputFormat string, timeout time.Duration) *ElevenLabsClient {
	return &ElevenLabsClient{
		baseURL:      elevenLabsBaseURL,
		apiKey:       apiKey,
		voice:        voice,
		modelID:      modelID,
		outputFormat: outputFormat,
		client:       &http.Client{Timeout: timeout},
	}
}

// Format derives the container from output formats such as "mp3_44100_128".
func (c *ElevenLabsClient) Format() string {
	format, _, _ := strings.Cut(c.outputFormat, "_")
	if format == "" {
		return "mp3"
	}
	return format
}

// Synthesize converts req.Text with the requested or default voice.
func (c *ElevenLabsClient) Synthesize(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}

	voice := strings.TrimSpace(req.Voice)
	if voice == "" {
		voice = c.voice
	}

	body, err := json.Marshal(map[string]string{
		"text":     req.Text,
		"model_id": c.modelID,
	})
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s",
		c.baseURL, url.PathEscape(voice), url.QueryEscape(c.outputFormat))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("xi-api-key", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ElevenLabs API request: %w", err)
	}

	audio, err := readAudio("ElevenLabs", resp)
	if err != nil {
		return nil, err
	}

	return &speechmodel.TTSResponse{
		SessionID: req.SessionID,
		AudioData: audio,
		Format:    c.Format(),
		RequestID: resp.Header.Get("request-id"),
		CreatedAt: time.Now(),
	}, nil
}
