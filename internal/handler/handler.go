// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/open-mic-lineup/internal/model"
	"github.com/Shivanand-hulikatti/open-mic-lineup/internal/service"
)

// Handler holds all HTTP handlers for the lineup API.
type Handler struct {
	events    *service.EventService
	allocator *service.Allocator
	admin     *service.Admin
	projector *service.Projector
	queueSize int
	log       logrus.FieldLogger
}

// Config carries the service layer a Handler dispatches to.
type Config struct {
	Events    *service.EventService
	Allocator *service.Allocator
	Admin     *service.Admin
	Projector *service.Projector
	// QueueSize is the default number of upcoming performers in a lineup.
	QueueSize int
	Logger    logrus.FieldLogger
}

// New constructs a Handler.
func New(cfg Config) *Handler {
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		events:    cfg.Events,
		allocator: cfg.Allocator,
		admin:     cfg.Admin,
		projector: cfg.Projector,
		queueSize: cfg.QueueSize,
		log:       log,
	}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func writeErrorCode(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg, Code: code})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
// notFound is the message used when the referenced resource is missing.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		writeErrorCode(w, http.StatusBadRequest, "validation", ve.Error())
	case errors.Is(err, service.ErrNotFound):
		writeErrorCode(w, http.StatusNotFound, "not_found", notFound)
	case errors.Is(err, service.ErrSlotsFull):
		writeErrorCode(w, http.StatusConflict, "slots_full", "all slots are taken")
	case errors.Is(err, service.ErrConflictRetryExhausted):
		writeErrorCode(w, http.StatusConflict, "conflict_retry_exhausted", "too many simultaneous sign-ups, please try again")
	case errors.Is(err, service.ErrPositionConflict):
		writeErrorCode(w, http.StatusConflict, "position_conflict", "position was taken by a concurrent change, reload and retry")
	default:
		h.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health. ping may be nil.
func HealthCheck(ping func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			if err := ping(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
