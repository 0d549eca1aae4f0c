package speech

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	speechmodel "github.com/cybergenix/niva/backend/internal/model/speech"
)

// LocalClient talks to a self-hosted Coqui-style TTS server (usually behind a
// load balancer) that answers GET /api/tts with a WAV file.
type LocalClient struct {
	baseURL string
	voice   string
	client  *http.Client
}

// NewLocalClient creates a client for the server at baseURL.
func NewLocalClient(baseURL, voice string, timeout time.Duration) *LocalClient {
	return &LocalClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		voice:   voice,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *LocalClient) Format() string { return "wav" }

// Synthesize requests a waveform for req.Text.
func (c *LocalClient) Synthesize(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}

	voice := strings.TrimSpace(req.Voice)
	if voice == "" {
		voice = c.voice
	}

	query := url.Values{}
	query.Set("text", req.Text)
	query.Set("speaker_id", voice)
	query.Set("style_wav", "")
	query.Set("language_id", req.Language)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tts?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "audio/wav")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("local TTS request: %w", err)
	}

	audio, err := readAudio("local", resp)
	if err != nil {
		return nil, err
	}

	return &speechmodel.TTSResponse{
		SessionID: req.SessionID,
		AudioData: audio,
		Format:    c.Format(),
		CreatedAt: time.Now(),
	}, nil
}
