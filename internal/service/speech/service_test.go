package speech

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cybergenix/niva/backend/internal/config"
	"github.com/cybergenix/niva/backend/internal/model/chat"
	"github.com/cybergenix/niva/backend/internal/model/persona"
	speechmodel "github.com/cybergenix/niva/backend/internal/model/speech"
)

type fakeSynth struct {
	format string
	err    error

	mu       sync.Mutex
	requests []speechmodel.TTSRequest
}

func (f *fakeSynth) Format() string { return f.format }

func (f *fakeSynth) Synthesize(_ context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, *req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &speechmodel.TTSResponse{AudioData: []byte("audio:" + req.Text), Format: f.format}, nil
}

type fakeLipSync struct {
	names []string
	err   error
}

func (f *fakeLipSync) Analyze(_ context.Context, name string, _ []byte) (*chat.LipSync, error) {
	f.names = append(f.names, name)
	if f.err != nil {
		return nil, f.err
	}
	return &chat.LipSync{MouthCues: []chat.MouthCue{{Start: 0, End: 0.1, Value: "A"}}}, nil
}

func TestRenderAttachesAudio(t *testing.T) {
	synth := &fakeSynth{format: "mp3"}
	svc := NewServiceWith(synth, nil)

	msg := &chat.Message{Text: "Hello!", FacialExpression: chat.ExpressionSmile, Animation: chat.AnimationTalking0}
	require.NoError(t, svc.Render(context.Background(), 0, msg, "voice-x"))

	assert.Equal(t, []byte("audio:Hello!"), msg.Audio)
	assert.Nil(t, msg.Lipsync)
	assert.Equal(t, "Hello!", msg.Text)
	require.Len(t, synth.requests, 1)
	assert.Equal(t, "voice-x", synth.requests[0].Voice)
}

func TestRenderShortensLongText(t *testing.T) {
	synth := &fakeSynth{format: "wav"}
	svc := NewServiceWith(synth, nil)

	long := "First sentence here. " + strings.Repeat("more words follow ", 12)
	msg := &chat.Message{Text: long}
	require.NoError(t, svc.Render(context.Background(), 1, msg, ""))

	assert.Equal(t, "First sentence here."+moreDetailsSuffix, synth.requests[0].Text)
	assert.Equal(t, long, msg.Text, "chat text is not shortened")
}

func TestRenderLipSyncOnlyForWav(t *testing.T) {
	lips := &fakeLipSync{}

	wav := NewServiceWith(&fakeSynth{format: "wav"}, lips)
	assert.True(t, wav.LipSyncEnabled())
	msg := &chat.Message{Text: "hi"}
	require.NoError(t, wav.Render(context.Background(), 1, msg, ""))
	require.NotNil(t, msg.Lipsync)
	assert.Equal(t, []string{"message_1"}, lips.names)

	mp3 := NewServiceWith(&fakeSynth{format: "mp3"}, lips)
	assert.False(t, mp3.LipSyncEnabled())
	msg = &chat.Message{Text: "hi"}
	require.NoError(t, mp3.Render(context.Background(), 0, msg, ""))
	assert.Nil(t, msg.Lipsync)
}

func TestRenderErrors(t *testing.T) {
	boom := errors.New("tts down")
	svc := NewServiceWith(&fakeSynth{format: "wav", err: boom}, nil)
	msg := &chat.Message{Text: "hi"}
	err := svc.Render(context.Background(), 0, msg, "")
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, msg.Audio)

	lipErr := errors.New("rhubarb crashed")
	svc = NewServiceWith(&fakeSynth{format: "wav"}, &fakeLipSync{err: lipErr})
	err = svc.Render(context.Background(), 0, &chat.Message{Text: "hi"}, "")
	assert.ErrorIs(t, err, lipErr)
}

func TestSynthesizeResolvesPersonaVoice(t *testing.T) {
	synth := &fakeSynth{format: "wav"}
	svc := NewServiceWith(synth, nil)
	svc.voices = personaVoices[config.TTSProviderLocal]
	svc.language = "en"

	req := &speechmodel.TTSRequest{Text: "Hi", Voice: "Millie"}
	_, err := svc.Synthesize(context.Background(), req)
	require.NoError(t, err)

	msg := &chat.Message{Text: "Hello"}
	require.NoError(t, svc.Render(context.Background(), 0, msg, "p225"))

	require.Len(t, synth.requests, 2)
	assert.Equal(t, "p335", synth.requests[0].Voice)
	assert.Equal(t, "en", synth.requests[0].Language)
	assert.Equal(t, "p225", synth.requests[1].Voice, "explicit provider voices pass through")

	assert.Equal(t, "Millie", req.Voice, "caller's request is left untouched")
	assert.Empty(t, req.Language)
}

func TestPersonaVoicesCoverSeeds(t *testing.T) {
	for _, p := range persona.Seed() {
		require.NotEmpty(t, p.VoiceID, p.ID)
		for provider, voices := range personaVoices {
			assert.Contains(t, voices, p.VoiceID, "%s has no %s voice", p.ID, provider)
		}
		assert.Contains(t, voiceAliases, p.VoiceID, "%s has no volcengine voice", p.ID)
	}
}
