package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// redirectTransport sends every request to the test server regardless of host.
type redirectTransport struct {
	target *url.URL
}

func (rt redirectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = rt.target.Scheme
	req.URL.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

type webhookRecorder struct {
	mu       sync.Mutex
	paths    []string
	payloads []map[string]any
	release  chan struct{}
}

func (r *webhookRecorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if r.release != nil {
		<-r.release
	}
	body, _ := io.ReadAll(req.Body)
	var payload map[string]any
	_ = json.Unmarshal(body, &payload)

	r.mu.Lock()
	r.paths = append(r.paths, req.URL.Path)
	r.payloads = append(r.payloads, payload)
	r.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func newTestDiscord(t *testing.T, rec *webhookRecorder, queue int) *Discord {
	t.Helper()
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)

	target, err := url.Parse(srv.URL)
	require.NoError(t, err)

	d, err := NewDiscord("https://discord.com/api/webhooks/123/secret-token", queue, "niva", &http.Client{
		Transport: redirectTransport{target: target},
		Timeout:   5 * time.Second,
	})
	require.NoError(t, err)
	return d
}

func TestDiscordDeliversEmbed(t *testing.T) {
	rec := &webhookRecorder{}
	d := newTestDiscord(t, rec, 4)

	d.Notify(Error("error: text key not found"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.payloads, 1)
	assert.True(t, strings.HasSuffix(rec.paths[0], "/webhooks/123/secret-token"), rec.paths[0])

	embeds := rec.payloads[0]["embeds"].([]any)
	require.Len(t, embeds, 1)
	embed := embeds[0].(map[string]any)
	assert.Equal(t, "Ai_Model Log", embed["title"])
	assert.EqualValues(t, 0xff0000, embed["color"])

	fields := embed["fields"].([]any)
	logField := fields[1].(map[string]any)
	assert.Equal(t, "Log", logField["name"])
	assert.Equal(t, "```error: text key not found```", logField["value"])
}

func TestDiscordNotifyNeverBlocks(t *testing.T) {
	rec := &webhookRecorder{release: make(chan struct{})}
	d := newTestDiscord(t, rec, 1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			d.Notify(Input("hello"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked while the webhook was stalled")
	}
	assert.Greater(t, d.Dropped(), int64(0))

	close(rec.release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))

	// 关闭后的通知直接丢弃
	d.Notify(Output("late"))
}

func TestParseWebhookURL(t *testing.T) {
	id, token, err := ParseWebhookURL("https://discord.com/api/webhooks/1404753369523818496/abc-DEF_123")
	require.NoError(t, err)
	assert.Equal(t, "1404753369523818496", id)
	assert.Equal(t, "abc-DEF_123", token)

	_, _, err = ParseWebhookURL("https://discord.com/api/channels/1")
	assert.ErrorIs(t, err, ErrInvalidWebhookURL)

	_, _, err = ParseWebhookURL("not a url")
	assert.ErrorIs(t, err, ErrInvalidWebhookURL)
}

func TestFenceTruncates(t *testing.T) {
	long := strings.Repeat("é", 2000)
	out := fence(long)
	assert.LessOrEqual(t, len(out), embedValueMax)
	assert.True(t, strings.HasPrefix(out, "```"))
	assert.True(t, strings.HasSuffix(out, "...```"))
}
