package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/open-mic-lineup/internal/model"
)

// GetEvent handles GET /events/{id}
// Returns the event snapshot.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.events.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// Claim handles POST /events/{id}/claim
// Signs a performer up for the next free position.
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	var req model.ClaimRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	claim, err := h.allocator.ClaimNextSlot(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeServiceError(w, r, err, "event not found")
		return
	}
	writeJSON(w, http.StatusCreated, claim)
}

// Lineup handles GET /events/{id}/lineup?queue=K
// Display clients poll this for the current performer and who is next.
func (h *Handler) Lineup(w http.ResponseWriter, r *http.Request) {
	queue := h.queueSize
	if raw := r.URL.Query().Get("queue"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > model.MaxCapacity {
			writeError(w, http.StatusBadRequest, "queue must be an integer between 0 and 255")
			return
		}
		queue = n
	}

	lineup, err := h.projector.Lineup(r.Context(), chi.URLParam(r, "id"), queue)
	if err != nil {
		h.writeServiceError(w, r, err, "event not found")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, lineup)
}
