package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	speechmodel "github.com/cybergenix/niva/backend/internal/model/speech"
)

var (
	ErrEmptyText  = errors.New("TTS text is empty")
	ErrEmptyAudio = errors.New("TTS audio is empty")
)

// Synthesizer turns text into an audio waveform.
type Synthesizer interface {
	Synthesize(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error)
	// Format is the audio encoding the backend produces, e.g. "wav".
	Format() string
}

// readAudio drains a successful HTTP response or turns a failed one into an error.
func readAudio(provider string, resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s TTS error (status %d): %s", provider, resp.StatusCode, string(body))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s TTS read body: %w", provider, err)
	}
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}
	return audio, nil
}
