package persona

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/cybergenix/niva/backend/internal/model/persona"
)

func TestListPersonas(t *testing.T) {
	r := chi.NewRouter()
	New(persona.NewMemoryStore(persona.Seed(), "millie")).RegisterRoutes(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/personas", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["default"] != "millie" {
		t.Fatalf("expected default millie, got %v", body["default"])
	}

	items, _ := body["personas"].([]any)
	if len(items) != 2 {
		t.Fatalf("expected 2 personas, got %d", len(items))
	}
	first, _ := items[0].(map[string]any)
	if _, leaked := first["instructions"]; leaked {
		t.Fatalf("prompt instructions must not be exposed")
	}
	if first["id"] != "niva" {
		t.Fatalf("expected first persona niva, got %v", first["id"])
	}
}
