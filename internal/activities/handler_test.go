package activities

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/steplab/backend/internal/generator"
	"github.com/steplab/backend/internal/models"
)

func newTestRouter(store *memStore) *mux.Router {
	service := NewService(generator.NewMockGateway(), store)
	handler := NewHandler(service, store)
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/activities/generate", handler.Generate).Methods("POST")
	r.HandleFunc("/api/v1/activities/{id}", handler.GetActivity).Methods("GET")
	return r
}

func TestGenerateEndpointRejectsBadBody(t *testing.T) {
	router := newTestRouter(newMemStore())
	req := httptest.NewRequest("POST", "/api/v1/activities/generate", strings.NewReader("not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestGenerateEndpointRejectsInvalidRequest(t *testing.T) {
	router := newTestRouter(newMemStore())
	body := `{"grade": 6, "mode": "learning", "length": "short"}`
	req := httptest.NewRequest("POST", "/api/v1/activities/generate", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "error") {
		t.Errorf("expected JSON error body, got %q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("validation failures must not open a stream, got %q", ct)
	}
}

func TestGenerateEndpointStreams(t *testing.T) {
	router := newTestRouter(newMemStore())
	body := `{"grade": 6, "topic": "The water cycle", "mode": "learning", "length": "short"}`
	req := httptest.NewRequest("POST", "/api/v1/activities/generate", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected SSE content type, got %q", ct)
	}
	out := w.Body.String()
	for _, marker := range []string{"event: progress", "event: skeleton_complete", "event: step_complete", "event: done"} {
		if !strings.Contains(out, marker) {
			t.Errorf("stream missing %q", marker)
		}
	}
}

func TestGetActivityEndpoint(t *testing.T) {
	store := newMemStore()
	artifact := &models.ActivityArtifact{ID: uuid.NewString()}
	store.byID[artifact.ID] = artifact

	router := newTestRouter(store)
	req := httptest.NewRequest("GET", "/api/v1/activities/"+artifact.ID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), artifact.ID) {
		t.Error("response missing artifact id")
	}
}

func TestGetActivityNotFound(t *testing.T) {
	router := newTestRouter(newMemStore())
	req := httptest.NewRequest("GET", "/api/v1/activities/does-not-exist", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
