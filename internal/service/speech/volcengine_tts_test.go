package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	speechmodel "github.com/cybergenix/niva/backend/internal/model/speech"
)

func TestResolveResourceCandidates(t *testing.T) {
	tests := []struct {
		name  string
		voice string
		want  []string
	}{
		{name: "default voice", voice: "", want: []string{"volc.service_type.10029", "seed-tts-2.0"}},
		{name: "mega clone voice", voice: "S_clone_speaker", want: []string{"volc.megatts.default"}},
		{name: "bigtts voice", voice: "en_female_amy_jupiter_bigtts", want: []string{"seed-tts-2.0", "volc.service_type.10029"}},
		{name: "legacy voice", voice: "en_male_organizer", want: []string{"volc.service_type.10029", "seed-tts-2.0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveResourceCandidates(tt.voice))
		})
	}
}

func TestResolveSpeakerCandidates(t *testing.T) {
	tests := []struct {
		name     string
		request  string
		fallback string
		want     []string
	}{
		{name: "request and fallback", request: "custom-voice", fallback: "en_male_organizer", want: []string{"custom-voice", "en_male_organizer"}},
		{name: "request empty", request: "", fallback: "en_male_organizer", want: []string{"en_male_organizer"}},
		{name: "duplicates ignored", request: "EN_voice", fallback: "en_voice", want: []string{"EN_voice"}},
		{name: "persona alias", request: "niva", fallback: "en_male_organizer", want: []string{"en_female_amy_jupiter_bigtts", "en_male_organizer"}},
		{name: "alias collapses with fallback", request: "Niva", fallback: "en_female_amy_jupiter_bigtts", want: []string{"en_female_amy_jupiter_bigtts"}},
		{name: "nothing configured", want: []string{"en_female_amy_jupiter_bigtts"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveSpeakerCandidates(tt.request, tt.fallback))
		})
	}
}

func TestIsResourceMismatchError(t *testing.T) {
	assert.False(t, isResourceMismatchError(nil))
	assert.False(t, isResourceMismatchError(errors.New("some other error")))
	assert.True(t, isResourceMismatchError(errors.New(`TTS error 45000000: {"error":"resource ID is mismatched with speaker related resource"}`)))
}

// fakeVolcengine 模拟单向流式 TTS 服务端
type fakeVolcengine struct {
	t        *testing.T
	reject   string // 返回资源不匹配错误的资源 ID
	mu       sync.Mutex
	seen     []string
	speakers []string
}

func (f *fakeVolcengine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resource := r.Header.Get("X-Api-Resource-Id")
	assert.Equal(f.t, "app-1", r.Header.Get("X-Api-App-Key"))
	assert.Equal(f.t, "token-1", r.Header.Get("X-Api-Access-Key"))

	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	_, data, err := conn.ReadMessage()
	if !assert.NoError(f.t, err) {
		return
	}
	frame, err := DecodeFrame(data)
	if !assert.NoError(f.t, err) {
		return
	}
	var req volcengineRequest
	if !assert.NoError(f.t, json.Unmarshal(frame.Payload, &req)) {
		return
	}

	f.mu.Lock()
	f.seen = append(f.seen, resource)
	f.speakers = append(f.speakers, req.ReqParams.Speaker)
	f.mu.Unlock()

	if resource == f.reject {
		errFrame := &Frame{
			Header:    Header{MessageType: ErrorMessage, Serialization: JSONSerialization},
			ErrorCode: 45000000,
			Payload:   []byte(`{"error":"resource ID is mismatched with speaker related resource"}`),
		}
		_ = conn.WriteMessage(websocket.BinaryMessage, errFrame.Encode())
		return
	}

	audio := &Frame{
		Header:   Header{MessageType: AudioOnlyServerResponse, Flags: PositiveSequenceNumber},
		Sequence: 1,
		Payload:  []byte("ID3"),
	}
	_ = conn.WriteMessage(websocket.BinaryMessage, audio.Encode())

	final, _ := json.Marshal(map[string]any{
		"reqid":    "req-7",
		"code":     3000,
		"sequence": -1,
		"data":     base64.StdEncoding.EncodeToString([]byte("mp3")),
		"addition": map[string]string{"duration": "1200"},
	})
	gz, err := compress(final, GzipCompression)
	if !assert.NoError(f.t, err) {
		return
	}
	last := &Frame{
		Header:   Header{MessageType: FullServerResponse, Flags: NegativeSequenceNumber, Serialization: JSONSerialization, Compression: GzipCompression},
		Sequence: -2,
		Payload:  gz,
	}
	_ = conn.WriteMessage(websocket.BinaryMessage, last.Encode())
}

func (f *fakeVolcengine) calls() ([]string, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.seen...), append([]string(nil), f.speakers...)
}

func newVolcengineTestClient(t *testing.T, fake *fakeVolcengine) *VolcengineClient {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client := NewVolcengineClient("app-1", "token-1", "en_female_amy_jupiter_bigtts", "en", 5*time.Second)
	client.endpoint = "ws" + strings.TrimPrefix(srv.URL, "http")
	return client
}

func TestVolcengineSynthesize(t *testing.T) {
	fake := &fakeVolcengine{t: t}
	client := newVolcengineTestClient(t, fake)

	resp, err := client.Synthesize(context.Background(), &speechmodel.TTSRequest{Text: "Hello there", SessionID: "s1"})
	require.NoError(t, err)

	assert.Equal(t, []byte("ID3mp3"), resp.AudioData)
	assert.Equal(t, "mp3", resp.Format)
	assert.Equal(t, "req-7", resp.RequestID)
	assert.Equal(t, int64(1200), resp.Duration)
	assert.Equal(t, "s1", resp.SessionID)
	resources, speakers := fake.calls()
	assert.Equal(t, []string{"seed-tts-2.0"}, resources)
	assert.Equal(t, []string{"en_female_amy_jupiter_bigtts"}, speakers)
}

func TestVolcengineRetriesOnResourceMismatch(t *testing.T) {
	fake := &fakeVolcengine{t: t, reject: "seed-tts-2.0"}
	client := newVolcengineTestClient(t, fake)

	resp, err := client.Synthesize(context.Background(), &speechmodel.TTSRequest{Text: "Hello there"})
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3mp3"), resp.AudioData)
	resources, _ := fake.calls()
	assert.Equal(t, []string{"seed-tts-2.0", "volc.service_type.10029"}, resources)
}

func TestVolcengineRequiresCredentials(t *testing.T) {
	client := NewVolcengineClient("", "", "", "", time.Second)
	_, err := client.Synthesize(context.Background(), &speechmodel.TTSRequest{Text: "hi"})
	assert.Error(t, err)

	_, err = client.Synthesize(context.Background(), &speechmodel.TTSRequest{Text: ""})
	assert.ErrorIs(t, err, ErrEmptyText)
}
