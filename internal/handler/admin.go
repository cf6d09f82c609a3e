package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/open-mic-lineup/internal/model"
)

// CreateEvent handles POST /admin/events
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	event, err := h.events.CreateEvent(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err, "event not found")
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// ListEvents handles GET /admin/events
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.ListEvents(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "event not found")
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// ListEntries handles GET /admin/events/{id}/entries
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.admin.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err, "event not found")
		return
	}
	if entries == nil {
		entries = []model.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// UpsertEntry handles PUT /admin/events/{id}/entries/{position}
// Creates the entry at position, or updates the one already there.
func (h *Handler) UpsertEntry(w http.ResponseWriter, r *http.Request) {
	position, err := strconv.Atoi(chi.URLParam(r, "position"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "position must be an integer")
		return
	}

	var req model.UpsertEntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	entry, err := h.admin.UpsertAt(r.Context(), chi.URLParam(r, "id"), position, req)
	if err != nil {
		h.writeServiceError(w, r, err, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// UpdateEntry handles PATCH /admin/entries/{entryID}
func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateEntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	entry, err := h.admin.Update(r.Context(), chi.URLParam(r, "entryID"), req)
	if err != nil {
		h.writeServiceError(w, r, err, "entry not found")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// DeleteEntry handles DELETE /admin/entries/{entryID}
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.Delete(r.Context(), chi.URLParam(r, "entryID")); err != nil {
		h.writeServiceError(w, r, err, "entry not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reorder handles POST /admin/events/{id}/reorder
// Applies all moves or none.
func (h *Handler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req model.ReorderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	entries, err := h.admin.Reorder(r.Context(), chi.URLParam(r, "id"), req.Moves)
	if err != nil {
		h.writeServiceError(w, r, err, "event or entry not found")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
