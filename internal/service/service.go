// Package service implements the lineup core: the public slot allocator, the
// admin mutator and the read-only lineup projector, plus validation of every
// request before it reaches the store.
package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/Shivanand-hulikatti/open-mic-lineup/internal/model"
)

// EventStore reads and creates event snapshots.
type EventStore interface {
	Create(ctx context.Context, req model.CreateEventRequest) (*model.Event, error)
	List(ctx context.Context) ([]model.Event, error)
	GetByID(ctx context.Context, id string) (*model.Event, error)
}

// EntryStore persists entries and arbitrates the (event, position) invariant.
type EntryStore interface {
	ListByEvent(ctx context.Context, eventID string) ([]model.Entry, error)
	OccupiedPositions(ctx context.Context, eventID string) ([]int, error)
	GetByID(ctx context.Context, id string) (*model.Entry, error)
	Insert(ctx context.Context, e *model.Entry) error
	Upsert(ctx context.Context, e *model.Entry) (*model.Entry, error)
	Update(ctx context.Context, e *model.Entry) error
	Delete(ctx context.Context, id string) error
	Reorder(ctx context.Context, eventID string, moves []model.Move) error
}

// SelectionChecker tells whether a selection reference exists.
type SelectionChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// UsageRecorder counts how often a selection was signed up for.
type UsageRecorder interface {
	IncrementUsage(ctx context.Context, id int64) error
}

// Rules are the field requirements for entries.
type Rules struct {
	RequirePerformerName bool
	RequireSelection     bool
	MaxNameLength        int
}

// DefaultRules mirror the default configuration.
var DefaultRules = Rules{RequirePerformerName: true, MaxNameLength: model.MaxNameLength}

// performerName trims and bounds a performer name. Blank names become nil.
func (r Rules) performerName(name *string, required bool) (*string, error) {
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			name = nil
		} else {
			name = &trimmed
		}
	}
	if name == nil {
		if required {
			return nil, invalid("performer_name", "is required")
		}
		return nil, nil
	}
	limit := r.MaxNameLength
	if limit <= 0 {
		limit = DefaultRules.MaxNameLength
	}
	if utf8.RuneCountInString(*name) > limit {
		return nil, invalid("performer_name", "must be at most %d characters", limit)
	}
	return name, nil
}

// checkSelection verifies that a selection reference resolves.
func checkSelection(ctx context.Context, selections SelectionChecker, id int64) error {
	if id <= 0 {
		return invalid("selection_id", "must be a positive integer")
	}
	ok, err := selections.Exists(ctx, id)
	if err != nil {
		return storageErr("check selection", err)
	}
	if !ok {
		return invalid("selection_id", "selection %d does not exist", id)
	}
	return nil
}

// EventService manages the event snapshots the lineup core works against.
type EventService struct {
	events EventStore
}

// NewEventService constructs an EventService.
func NewEventService(events EventStore) *EventService {
	return &EventService{events: events}
}

// CreateEvent validates the request and delegates to the store.
func (s *EventService) CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, invalid("name", "is required")
	}
	if req.Capacity < 1 || req.Capacity > model.MaxCapacity {
		return nil, invalid("capacity", "must be between 1 and %d", model.MaxCapacity)
	}
	if req.StartTime.IsZero() || req.EndTime.IsZero() {
		return nil, invalid("start_time", "start_time and end_time are required")
	}
	if req.EndTime.Before(req.StartTime) {
		return nil, invalid("end_time", "must not be before start_time")
	}
	event, err := s.events.Create(ctx, req)
	if err != nil {
		return nil, storageErr("create event", err)
	}
	return event, nil
}

// ListEvents returns all events.
func (s *EventService) ListEvents(ctx context.Context) ([]model.Event, error) {
	events, err := s.events.List(ctx)
	if err != nil {
		return nil, storageErr("list events", err)
	}
	return events, nil
}

// GetEvent returns a single event by ID.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	return loadEvent(ctx, s.events, id)
}

func loadEvent(ctx context.Context, events EventStore, id string) (*model.Event, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	event, err := events.GetByID(ctx, id)
	if err != nil {
		return nil, storageErr("get event", err)
	}
	return event, nil
}
