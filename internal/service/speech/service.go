package speech

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cybergenix/niva/backend/internal/config"
	"github.com/cybergenix/niva/backend/internal/model/chat"
	speechmodel "github.com/cybergenix/niva/backend/internal/model/speech"
)

// Service 把回复文本转成语音，并在需要时附加口型数据。
type Service struct {
	synth    Synthesizer
	lipsync  LipSyncer
	language string
	voices   map[string]string
}

// personaVoices 把角色音色名映射到各 provider 的音色 ID。
// 火山引擎的映射在 voiceAliases 里，由客户端自己处理。
var personaVoices = map[string]map[string]string{
	config.TTSProviderLocal: {
		"niva":   "p364",
		"millie": "p335",
	},
	config.TTSProviderElevenLabs: {
		"niva":   "9BWtsMINqrJLrRacOk9x",
		"millie": "XB0fDUnXU5powFXDhCwa",
	},
}

// NewService 根据配置创建语音服务实例
func NewService(cfg config.SpeechConfig) (*Service, error) {
	var synth Synthesizer
	switch cfg.Provider {
	case config.TTSProviderLocal:
		synth = NewLocalClient(cfg.ServerURL, cfg.VoiceID, cfg.Timeout)
	case config.TTSProviderElevenLabs:
		synth = NewElevenLabsClient(cfg.APIKey, cfg.VoiceID, cfg.ModelID, cfg.OutputFormat, cfg.Timeout)
	case config.TTSProviderVolcengine:
		synth = NewVolcengineClient(cfg.AppID, cfg.AccessToken, cfg.VoiceID, cfg.Language, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unsupported TTS provider %q", cfg.Provider)
	}

	var lipsync LipSyncer
	if cfg.LipSyncEnabled {
		lipsync = NewRhubarb(cfg.RhubarbPath, cfg.AudioDir)
	}

	log.Printf("[tts] provider=%s voice=%s lipsync=%t", cfg.Provider, cfg.VoiceID, cfg.LipSyncEnabled)
	return &Service{synth: synth, lipsync: lipsync, language: cfg.Language, voices: personaVoices[cfg.Provider]}, nil
}

// NewServiceWith assembles a service from explicit components. lipsync may be nil.
func NewServiceWith(synth Synthesizer, lipsync LipSyncer) *Service {
	return &Service{synth: synth, lipsync: lipsync}
}

// LipSyncEnabled reports whether mouth cues are generated.
func (s *Service) LipSyncEnabled() bool {
	return s.lipsync != nil && s.synth.Format() == "wav"
}

// Synthesize 直接合成文本，不做截断。req 不会被修改。
func (s *Service) Synthesize(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error) {
	out := *req
	out.Voice = s.resolveVoice(out.Voice)
	if out.Language == "" {
		out.Language = s.language
	}
	return s.synth.Synthesize(ctx, &out)
}

// resolveVoice 把角色音色名换成 provider 音色，其他值原样传递。
func (s *Service) resolveVoice(voice string) string {
	if mapped, ok := s.voices[strings.ToLower(strings.TrimSpace(voice))]; ok {
		return mapped
	}
	return voice
}

// Render fills msg.Audio (and msg.Lipsync when enabled) for the index-th
// message of a reply. Long replies are spoken in shortened form.
func (s *Service) Render(ctx context.Context, index int, msg *chat.Message, voice string) error {
	started := time.Now()

	resp, err := s.Synthesize(ctx, &speechmodel.TTSRequest{
		Text:  ShortenForSpeech(msg.Text),
		Voice: voice,
	})
	if err != nil {
		return fmt.Errorf("synthesize message %d: %w", index, err)
	}
	msg.Audio = resp.AudioData

	if s.LipSyncEnabled() {
		cues, err := s.lipsync.Analyze(ctx, fmt.Sprintf("message_%d", index), resp.AudioData)
		if err != nil {
			return fmt.Errorf("lipsync message %d: %w", index, err)
		}
		msg.Lipsync = cues
	}

	log.Printf("[tts] message %d: %s", index, time.Since(started).Round(time.Millisecond))
	return nil
}
