package activities

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/steplab/backend/internal/models"
	"github.com/steplab/backend/internal/stream"
)

// Handler exposes the generation endpoints.
type Handler struct {
	service *Service
	store   ArtifactStore
}

func NewHandler(service *Service, store ArtifactStore) *Handler {
	return &Handler{service: service, store: store}
}

// Generate handles POST /api/v1/activities/generate. Validation failures
// are plain JSON errors; once the stream opens, all failures travel as
// error events instead.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if oerr := ValidateRequest(req); oerr != nil {
		writeError(w, http.StatusBadRequest, oerr.Reason)
		return
	}

	sink, err := stream.NewSSESink(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	requestID := uuid.NewString()
	pub := stream.NewPublisher(sink, requestID)
	log.Printf("[activities] generation started request_id=%s mode=%s grade=%d", requestID, req.Mode, req.Grade)

	h.service.Generate(r.Context(), req, pub)
}

// GetActivity handles GET /api/v1/activities/{id}.
func (h *Handler) GetActivity(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing activity id")
		return
	}

	artifact, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		log.Printf("WARN: activity lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load activity")
		return
	}
	if artifact == nil {
		writeError(w, http.StatusNotFound, "activity not found")
		return
	}

	writeJSON(w, http.StatusOK, artifact)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("WARN: failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
