package speech

import "time"

// TTSResponse 语音合成响应
type TTSResponse struct {
	SessionID string    `json:"sessionId,omitempty"`
	AudioData []byte    `json:"-"`
	Duration  int64     `json:"duration,omitempty"` // milliseconds
	Format    string    `json:"format"`
	RequestID string    `json:"requestId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ContentType maps the audio format to a MIME type.
func (r *TTSResponse) ContentType() string {
	switch r.Format {
	case "wav":
		return "audio/wav"
	case "mp3", "mpeg":
		return "audio/mpeg"
	case "":
		return "application/octet-stream"
	default:
		return "audio/" + r.Format
	}
}
