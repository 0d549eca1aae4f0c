package knowledge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWikipedia(t *testing.T, handler http.HandlerFunc) *Wikipedia {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	w := NewWikipedia("en")
	w.baseURL = srv.URL
	return w
}

func TestSummaryExactTitle(t *testing.T) {
	w := newTestWikipedia(t, func(rw http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/rest_v1/page/summary/Go_(programming_language)", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = rw.Write([]byte(`{"type":"standard","title":"Go (programming language)","extract":" Go is a statically typed language. "}`))
	})

	got, err := w.Summary(context.Background(), "Go (programming language)")
	require.NoError(t, err)
	assert.Equal(t, "Go is a statically typed language.", got)
}

func TestSummaryFallsBackToSearch(t *testing.T) {
	w := newTestWikipedia(t, func(rw http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/rest_v1/page/summary/who_built_niva":
			http.NotFound(rw, r)
		case "/w/api.php":
			assert.Equal(t, "opensearch", r.URL.Query().Get("action"))
			assert.Equal(t, "who built niva", r.URL.Query().Get("search"))
			_, _ = rw.Write([]byte(`["who built niva",["Niva"],[""],["https://en.wikipedia.org/wiki/Niva"]]`))
		case "/api/rest_v1/page/summary/Niva":
			_, _ = rw.Write([]byte(`{"type":"standard","title":"Niva","extract":"Niva may refer to a car."}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(rw, r)
		}
	})

	got, err := w.Summary(context.Background(), "who built niva")
	require.NoError(t, err)
	assert.Equal(t, "Niva may refer to a car.", got)
}

func TestSummaryNotFound(t *testing.T) {
	w := newTestWikipedia(t, func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/w/api.php" {
			_, _ = rw.Write([]byte(`["zzzz",[],[],[]]`))
			return
		}
		http.NotFound(rw, r)
	})

	_, err := w.Summary(context.Background(), "zzzz")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = w.Summary(context.Background(), " ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSummaryUpstreamError(t *testing.T) {
	w := newTestWikipedia(t, func(rw http.ResponseWriter, r *http.Request) {
		http.Error(rw, "maintenance", http.StatusServiceUnavailable)
	})

	_, err := w.Summary(context.Background(), "Niva")
	assert.ErrorContains(t, err, "status 503")
	assert.NotErrorIs(t, err, ErrNotFound)
}
