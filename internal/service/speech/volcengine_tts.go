package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	speechmodel "github.com/cybergenix/niva/backend/internal/model/speech"
)

const volcengineTTSURL = "wss://openspeech.bytedance.com/api/v3/tts/unidirectional/stream"

// VolcengineClient 火山引擎单向流式 TTS WebSocket 客户端
type VolcengineClient struct {
	endpoint    string
	appID       string
	accessToken string
	voice       string
	language    string
	dialer      *websocket.Dialer
}

// NewVolcengineClient 创建火山引擎 TTS 客户端
func NewVolcengineClient(appID, accessToken, voice, language string, timeout time.Duration) *VolcengineClient {
	return &VolcengineClient{
		endpoint:    volcengineTTSURL,
		appID:       strings.TrimSpace(appID),
		accessToken: strings.TrimSpace(accessToken),
		voice:       strings.TrimSpace(voice),
		language:    strings.TrimSpace(language),
		dialer:      &websocket.Dialer{HandshakeTimeout: timeout},
	}
}

func (c *VolcengineClient) Format() string { return "mp3" }

type volcengineServerMessage struct {
	ReqID    string `json:"reqid"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Data     string `json:"data"`
	Addition struct {
		Duration string `json:"duration,omitempty"`
	} `json:"addition,omitempty"`
}

type volcengineRequest struct {
	User struct {
		UID string `json:"uid"`
	} `json:"user"`
	ReqParams struct {
		Speaker     string                `json:"speaker"`
		Text        string                `json:"text"`
		AudioParams volcengineAudioParams `json:"audio_params"`
		Language    string                `json:"language,omitempty"`
	} `json:"req_params"`
}

type volcengineAudioParams struct {
	Format     string  `json:"format"`
	SampleRate int     `json:"sample_rate"`
	SpeedRatio float32 `json:"speed_ratio,omitempty"`
}

// Synthesize 依次尝试候选音色与资源 ID，直到服务端接受为止。
func (c *VolcengineClient) Synthesize(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}
	if c.appID == "" || c.accessToken == "" {
		return nil, fmt.Errorf("火山引擎语音配置缺少 AppID 或 AccessToken")
	}

	speakers := resolveSpeakerCandidates(req.Voice, c.voice)
	var lastMismatch error

	for _, speaker := range speakers {
		for _, resourceID := range resolveResourceCandidates(speaker) {
			resp, err := c.synthesizeWithResource(ctx, req, speaker, resourceID)
			if err == nil {
				return resp, nil
			}
			if !isResourceMismatchError(err) {
				return nil, err
			}
			log.Printf("[tts] voice %s resource %s mismatch: %v", speaker, resourceID, err)
			lastMismatch = err
		}
	}

	if lastMismatch != nil {
		return nil, lastMismatch
	}
	return nil, fmt.Errorf("TTS synthesis failed: no compatible resource for voices %v", speakers)
}

func (c *VolcengineClient) synthesizeWithResource(ctx context.Context, req *speechmodel.TTSRequest, speaker, resourceID string) (*speechmodel.TTSResponse, error) {
	connectID := uuid.NewString()

	header := http.Header{}
	header.Set("X-Api-App-Key", c.appID)
	header.Set("X-Api-Access-Key", c.accessToken)
	header.Set("X-Api-Resource-Id", resourceID)
	header.Set("X-Api-Connect-Id", connectID)

	conn, _, err := c.dialer.DialContext(ctx, c.endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to TTS WebSocket: %w", err)
	}
	defer conn.Close()

	// ReadMessage 不感知 ctx，取消时直接关闭连接。
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	payload, err := json.Marshal(c.buildRequest(req, speaker))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal TTS request: %w", err)
	}
	frame, err := NewRequestFrame(payload, NoCompression)
	if err != nil {
		return nil, err
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, frame.Encode()); err != nil {
		return nil, fmt.Errorf("failed to send TTS request: %w", err)
	}

	var (
		audio    bytes.Buffer
		reqID    = connectID
		duration int64
	)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("failed to read TTS response: %w", err)
		}

		msg, err := DecodeFrame(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode TTS message: %w", err)
		}

		body, err := msg.Body()
		if err != nil {
			return nil, fmt.Errorf("failed to decompress TTS payload: %w", err)
		}

		switch msg.Header.MessageType {
		case ErrorMessage:
			return nil, fmt.Errorf("TTS error %d: %s", msg.ErrorCode, string(body))

		case AudioOnlyServerResponse:
			audio.Write(body)

		case FullServerResponse:
			var serverResp volcengineServerMessage
			if len(body) > 0 {
				if err := json.Unmarshal(body, &serverResp); err != nil {
					log.Printf("[tts] failed to unmarshal response payload: %v", err)
				} else {
					if serverResp.Code != 0 && serverResp.Code != 3000 {
						return nil, fmt.Errorf("TTS API error %d: %s", serverResp.Code, serverResp.Message)
					}
					if serverResp.ReqID != "" {
						reqID = serverResp.ReqID
					}
					if ms, err := strconv.ParseInt(serverResp.Addition.Duration, 10, 64); err == nil {
						duration = ms
					}
					if serverResp.Data != "" {
						chunk, err := base64.StdEncoding.DecodeString(serverResp.Data)
						if err != nil {
							return nil, fmt.Errorf("failed to decode base64 audio chunk: %w", err)
						}
						audio.Write(chunk)
					}
				}
			}

			if msg.IsLast() || serverResp.Sequence < 0 {
				if audio.Len() == 0 {
					return nil, ErrEmptyAudio
				}
				return &speechmodel.TTSResponse{
					SessionID: req.SessionID,
					AudioData: audio.Bytes(),
					Duration:  duration,
					Format:    c.Format(),
					RequestID: reqID,
					CreatedAt: time.Now(),
				}, nil
			}

		default:
			log.Printf("[tts] unexpected message type: %d", msg.Header.MessageType)
		}
	}
}

func (c *VolcengineClient) buildRequest(req *speechmodel.TTSRequest, speaker string) *volcengineRequest {
	out := &volcengineRequest{}

	out.User.UID = strings.TrimSpace(req.SessionID)
	if out.User.UID == "" {
		out.User.UID = uuid.NewString()
	}

	out.ReqParams.Speaker = speaker
	out.ReqParams.Text = req.Text
	out.ReqParams.AudioParams = volcengineAudioParams{
		Format:     c.Format(),
		SampleRate: 24000,
	}
	if req.Speed > 0 && req.Speed != 1.0 {
		out.ReqParams.AudioParams.SpeedRatio = req.Speed
	}

	out.ReqParams.Language = strings.TrimSpace(req.Language)
	if out.ReqParams.Language == "" {
		out.ReqParams.Language = c.language
	}
	return out
}

var voiceAliases = map[string]string{
	"en_default": "en_female_amy_jupiter_bigtts",
	"niva":       "en_female_amy_jupiter_bigtts",
	"millie":     "en_female_skye_emo_v2_mars_bigtts",
}

// resolveSpeakerCandidates 返回去重后的候选音色，请求音色优先。
func resolveSpeakerCandidates(requested, fallback string) []string {
	var candidates []string

	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if mapped, ok := voiceAliases[strings.ToLower(s)]; ok {
			s = mapped
		}
		for _, existing := range candidates {
			if strings.EqualFold(existing, s) {
				return
			}
		}
		candidates = append(candidates, s)
	}

	add(requested)
	add(fallback)

	if len(candidates) == 0 {
		return []string{voiceAliases["en_default"]}
	}
	return candidates
}

// resolveResourceCandidates 根据音色命名推断可用的资源 ID。
func resolveResourceCandidates(voice string) []string {
	const (
		defaultResource = "volc.service_type.10029"
		megaResource    = "volc.megatts.default"
		seedResource    = "seed-tts-2.0"
	)

	voice = strings.TrimSpace(voice)
	if strings.HasPrefix(voice, "S_") {
		return []string{megaResource}
	}

	normalized := strings.ToLower(voice)
	for _, hint := range []string{"bigtts", "seed", "megatts", "uranus", "venus", "jupiter", "saturn", "mars"} {
		if strings.Contains(normalized, hint) {
			return []string{seedResource, defaultResource}
		}
	}
	return []string{defaultResource, seedResource}
}

func isResourceMismatchError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "resource ID is mismatched with speaker related resource")
}
