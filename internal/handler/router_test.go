package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cybergenix/niva/backend/internal/model/chat"
	"github.com/cybergenix/niva/backend/internal/model/persona"
	"github.com/cybergenix/niva/backend/internal/service/assistant"
	"github.com/cybergenix/niva/backend/internal/service/history"
)

type noopAssistant struct{}

func (noopAssistant) Chat(context.Context, chat.Request) (*assistant.Result, error) {
	return &assistant.Result{}, nil
}

func (noopAssistant) ChatStream(context.Context, chat.Request, func(int, chat.Message) error) (*assistant.Result, error) {
	return &assistant.Result{}, nil
}

type unreachableStore struct {
	*history.MemoryStore
}

func (unreachableStore) Ping(context.Context) error { return errors.New("no reachable servers") }

func newTestRouter(store history.Store) http.Handler {
	return NewRouter(Services{
		Assistant:      noopAssistant{},
		History:        store,
		Personas:       persona.NewMemoryStore(persona.Seed(), "niva"),
		AllowedOrigins: []string{"*"},
	})
}

func TestRoutesRegistered(t *testing.T) {
	r := newTestRouter(history.NewMemoryStore())

	for _, tc := range []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/personas", http.StatusOK},
		{http.MethodGet, "/ids", http.StatusOK},
		{http.MethodGet, "/history/default", http.StatusOK},
		{http.MethodPost, "/ids/create", http.StatusCreated},
		{http.MethodPost, "/speech/synthesize", http.StatusNotFound},
	} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, tc.want, rr.Code, "%s %s", tc.method, tc.path)
	}
}

func TestHealthReportsStoreOutage(t *testing.T) {
	r := newTestRouter(unreachableStore{history.NewMemoryStore()})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.JSONEq(t, `{"status":"degraded","history":"unreachable"}`, rr.Body.String())
}

func TestCORSPreflightOnChat(t *testing.T) {
	r := newTestRouter(history.NewMemoryStore())

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
