package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/open-mic-lineup/internal/catalog"
	"github.com/Shivanand-hulikatti/open-mic-lineup/internal/logging"
	"github.com/Shivanand-hulikatti/open-mic-lineup/internal/model"
	"github.com/Shivanand-hulikatti/open-mic-lineup/internal/repository"
	"github.com/Shivanand-hulikatti/open-mic-lineup/internal/service"
)

var eventStart = time.Date(2026, 10, 16, 19, 0, 0, 0, time.UTC)

type testServer struct {
	t       *testing.T
	handler http.Handler
	mem     *repository.Memory
}

func newTestServer(t *testing.T, opts RouterOptions) *testServer {
	t.Helper()
	mem := repository.NewMemory()
	events, entries := mem.Events(), mem.Entries()
	cat := catalog.NewMemory(7)
	log := logging.Discard()

	h := New(Config{
		Events:    service.NewEventService(events),
		Allocator: service.NewAllocator(events, entries, cat, cat, service.AllocatorOptions{Rules: service.DefaultRules, Logger: log}),
		Admin:     service.NewAdmin(events, entries, cat, service.AdminOptions{Rules: service.DefaultRules, Logger: log}),
		Projector: service.NewProjector(events, entries, func() time.Time { return eventStart.Add(time.Minute) }),
		QueueSize: 2,
		Logger:    log,
	})
	opts.Logger = log
	return &testServer{t: t, handler: NewRouter(h, opts), mem: mem}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	s.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) createEvent(capacity int) model.Event {
	s.t.Helper()
	body, err := json.Marshal(model.CreateEventRequest{
		Name:      "Open mic",
		Capacity:  capacity,
		StartTime: eventStart,
		EndTime:   eventStart.Add(2 * time.Hour),
	})
	require.NoError(s.t, err)

	rec := s.do(http.MethodPost, "/admin/events", string(body))
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())

	var ev model.Event
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &ev))
	return ev
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestClaim_AssignsPositionsThenSlotsFull(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	ev := s.createEvent(3)

	for want := 1; want <= 3; want++ {
		rec := s.do(http.MethodPost, "/events/"+ev.ID+"/claim", `{"performer_name":"Sam"}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		claim := decode[model.Claim](t, rec)
		assert.Equal(t, want, claim.Position)
		assert.NotEmpty(t, claim.EntryID)
	}

	rec := s.do(http.MethodPost, "/events/"+ev.ID+"/claim", `{"performer_name":"Late"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decode[model.ErrorResponse](t, rec)
	assert.Equal(t, "slots_full", resp.Code)
	assert.NotEmpty(t, resp.Error)
}

func TestClaim_Errors(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	ev := s.createEvent(3)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"unknown event", "/events/00000000-0000-0000-0000-000000000000/claim", `{"performer_name":"A"}`, http.StatusNotFound},
		{"empty body", "/events/" + ev.ID + "/claim", ``, http.StatusBadRequest},
		{"unknown field", "/events/" + ev.ID + "/claim", `{"performer_name":"A","song":"x"}`, http.StatusBadRequest},
		{"name too long", "/events/" + ev.ID + "/claim", `{"performer_name":"` + strings.Repeat("a", 151) + `"}`, http.StatusBadRequest},
		{"unknown selection", "/events/" + ev.ID + "/claim", `{"performer_name":"A","selection_id":99}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[model.ErrorResponse](t, rec).Error)
		})
	}
}

func TestClaim_ConcurrentRequests(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	ev := s.createEvent(3)

	var wg sync.WaitGroup
	codes := make(chan int, 3)
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/events/"+ev.ID+"/claim", strings.NewReader(`{"performer_name":"p"}`))
			rec := httptest.NewRecorder()
			s.handler.ServeHTTP(rec, req)
			codes <- rec.Code
		}()
	}
	wg.Wait()
	close(codes)
	for code := range codes {
		assert.Equal(t, http.StatusCreated, code)
	}

	rec := s.do(http.MethodGet, "/admin/events/"+ev.ID+"/entries", "")
	entries := decode[[]model.Entry](t, rec)
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, i+1, e.Position)
	}
}

func TestAdmin_UpsertUpdateLineupFlow(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	ev := s.createEvent(5)
	base := "/admin/events/" + ev.ID + "/entries/"

	rec := s.do(http.MethodPut, base+"2", `{"performer_name":"Alice"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	alice := decode[model.Entry](t, rec)

	rec = s.do(http.MethodPut, base+"2", `{"performer_name":"Bob","selection_id":7}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	bob := decode[model.Entry](t, rec)
	assert.Equal(t, alice.ID, bob.ID)
	assert.Equal(t, "Bob", *bob.PerformerName)
	assert.Equal(t, int64(7), *bob.SelectionID)

	rec = s.do(http.MethodPut, base+"4", `{"performer_name":"Cleo"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	cleo := decode[model.Entry](t, rec)

	rec = s.do(http.MethodGet, "/events/"+ev.ID+"/lineup", "")
	require.Equal(t, http.StatusOK, rec.Code)
	lineup := decode[model.Lineup](t, rec)
	assert.Equal(t, model.StatusActive, lineup.Status)
	assert.Equal(t, bob.ID, lineup.Current.ID)
	require.Len(t, lineup.Queue, 1)
	assert.Equal(t, cleo.ID, lineup.Queue[0].ID)

	rec = s.do(http.MethodPatch, "/admin/entries/"+bob.ID, `{"finished":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/events/"+ev.ID+"/lineup?queue=0", "")
	lineup = decode[model.Lineup](t, rec)
	assert.Equal(t, cleo.ID, lineup.Current.ID)
	assert.Empty(t, lineup.Queue)

	rec = s.do(http.MethodPatch, "/admin/entries/"+cleo.ID, `{"finished":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/events/"+ev.ID+"/lineup", "")
	lineup = decode[model.Lineup](t, rec)
	assert.Nil(t, lineup.Current)
	assert.True(t, lineup.AllDone)
}

func TestAdmin_ReorderAndDelete(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	ev := s.createEvent(3)

	a := decode[model.Claim](t, s.do(http.MethodPost, "/events/"+ev.ID+"/claim", `{"performer_name":"A"}`))
	b := decode[model.Claim](t, s.do(http.MethodPost, "/events/"+ev.ID+"/claim", `{"performer_name":"B"}`))

	body := `{"moves":[{"entry_id":"` + a.EntryID + `","position":2},{"entry_id":"` + b.EntryID + `","position":1}]}`
	rec := s.do(http.MethodPost, "/admin/events/"+ev.ID+"/reorder", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	entries := decode[[]model.Entry](t, rec)
	require.Len(t, entries, 2)
	assert.Equal(t, b.EntryID, entries[0].ID)
	assert.Equal(t, a.EntryID, entries[1].ID)

	dup := `{"moves":[{"entry_id":"` + a.EntryID + `","position":3},{"entry_id":"` + b.EntryID + `","position":3}]}`
	rec = s.do(http.MethodPost, "/admin/events/"+ev.ID+"/reorder", dup)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodDelete, "/admin/entries/"+a.EntryID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(http.MethodDelete, "/admin/entries/"+a.EntryID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdmin_BadInput(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	ev := s.createEvent(3)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPut, "/admin/events/"+ev.ID+"/entries/two", `{"performer_name":"A"}`).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPut, "/admin/events/"+ev.ID+"/entries/9", `{"performer_name":"A"}`).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPatch, "/admin/entries/x", `{}`).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPatch, "/admin/entries/x", `{"finished":true}`).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/admin/events", `{"name":"x","capacity":300}`).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/events/"+ev.ID+"/lineup?queue=-1", "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/events/nope", "").Code)
}

func TestListEvents(t *testing.T) {
	s := newTestServer(t, RouterOptions{})

	rec := s.do(http.MethodGet, "/admin/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	ev := s.createEvent(4)
	events := decode[[]model.Event](t, s.do(http.MethodGet, "/admin/events", ""))
	require.Len(t, events, 1)
	assert.Equal(t, ev.ID, events[0].ID)

	got := decode[model.Event](t, s.do(http.MethodGet, "/events/"+ev.ID, ""))
	assert.Equal(t, 4, got.Capacity)
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t, RouterOptions{Ping: func(context.Context) error { return nil }})
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", "").Code)

	s = newTestServer(t, RouterOptions{Ping: func(context.Context) error { return errors.New("down") }})
	assert.Equal(t, http.StatusServiceUnavailable, s.do(http.MethodGet, "/health", "").Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	rec := s.do(http.MethodOptions, "/events/x/lineup", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestClaim_RateLimited(t *testing.T) {
	s := newTestServer(t, RouterOptions{Limiter: NewRateLimiter(0.01, 1, time.Minute)})
	ev := s.createEvent(5)

	rec := s.do(http.MethodPost, "/events/"+ev.ID+"/claim", `{"performer_name":"A"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(http.MethodPost, "/events/"+ev.ID+"/claim", `{"performer_name":"A"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", decode[model.ErrorResponse](t, rec).Code)

	// Lineup polling is not throttled.
	for range 5 {
		assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/events/"+ev.ID+"/lineup", "").Code)
	}
}

func TestWriteServiceError_Internal(t *testing.T) {
	h := New(Config{Logger: logging.Discard()})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)

	h.writeServiceError(rec, req, &service.StorageError{Op: "read", Err: errors.New("timeout")}, "nope")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "timeout")

	rec = httptest.NewRecorder()
	h.writeServiceError(rec, req, service.ErrConflictRetryExhausted, "nope")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict_retry_exhausted", decode[model.ErrorResponse](t, rec).Code)
}

func TestLoggerMiddleware(t *testing.T) {
	buf := &bytes.Buffer{}
	log := logging.Discard()
	log.SetOutput(buf)

	h := Logger(log)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/brew", nil))

	assert.Contains(t, buf.String(), "status=418")
	assert.Contains(t, buf.String(), "path=/brew")
}
