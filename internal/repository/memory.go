package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/open-mic-lineup/internal/model"
)

// Memory is an in-process store for events and entries. Every operation runs
// under one mutex, so it enforces the (event, position) invariant atomically
// in the same way the database constraint does.
type Memory struct {
	mu      sync.RWMutex
	events  map[string]model.Event
	entries map[string]model.Entry
	now     func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		events:  make(map[string]model.Event),
		entries: make(map[string]model.Entry),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Events returns the event view of the store.
func (m *Memory) Events() *MemoryEvents { return &MemoryEvents{m: m} }

// Entries returns the entry view of the store.
func (m *Memory) Entries() *MemoryEntries { return &MemoryEntries{m: m} }

// DeleteEvent removes an event and cascades to its entries.
func (m *Memory) DeleteEvent(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.events, id)
	for eid, e := range m.entries {
		if e.EventID == id {
			delete(m.entries, eid)
		}
	}
}

// occupant returns the entry at (eventID, position). Caller holds m.mu.
func (m *Memory) occupant(eventID string, position int) (model.Entry, bool) {
	for _, e := range m.entries {
		if e.EventID == eventID && e.Position == position {
			return e, true
		}
	}
	return model.Entry{}, false
}

// MemoryEvents is the event side of Memory.
type MemoryEvents struct {
	m *Memory
}

// Create stores a new event.
func (s *MemoryEvents) Create(_ context.Context, req model.CreateEventRequest) (*model.Event, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	event := model.Event{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Capacity:  req.Capacity,
		StartTime: req.StartTime.UTC(),
		EndTime:   req.EndTime.UTC(),
		CreatedAt: s.m.now(),
	}
	s.m.events[event.ID] = event
	return &event, nil
}

// List returns all events ordered by start time descending.
func (s *MemoryEvents) List(_ context.Context) ([]model.Event, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	events := make([]model.Event, 0, len(s.m.events))
	for _, e := range s.m.events {
		events = append(events, e)
	}
	slices.SortFunc(events, func(a, b model.Event) int { return b.StartTime.Compare(a.StartTime) })
	return events, nil
}

// GetByID returns a single event or ErrNotFound.
func (s *MemoryEvents) GetByID(_ context.Context, id string) (*model.Event, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	e, ok := s.m.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

// MemoryEntries is the entry side of Memory.
type MemoryEntries struct {
	m *Memory
}

// ListByEvent returns every entry of an event ordered by position.
func (s *MemoryEntries) ListByEvent(_ context.Context, eventID string) ([]model.Entry, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	var entries []model.Entry
	for _, e := range s.m.entries {
		if e.EventID == eventID {
			entries = append(entries, e)
		}
	}
	slices.SortFunc(entries, func(a, b model.Entry) int { return a.Position - b.Position })
	return entries, nil
}

// OccupiedPositions returns the positions currently taken in an event.
func (s *MemoryEntries) OccupiedPositions(ctx context.Context, eventID string) ([]int, error) {
	entries, _ := s.ListByEvent(ctx, eventID)
	positions := make([]int, 0, len(entries))
	for _, e := range entries {
		positions = append(positions, e.Position)
	}
	return positions, nil
}

// GetByID returns a single entry or ErrNotFound.
func (s *MemoryEntries) GetByID(_ context.Context, id string) (*model.Entry, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	e, ok := s.m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

// Insert stores a new entry at e.Position, assigning its ID and timestamp.
func (s *MemoryEntries) Insert(_ context.Context, e *model.Entry) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	if _, ok := s.m.events[e.EventID]; !ok {
		return &ConstraintViolation{Kind: MissingEvent}
	}
	if _, taken := s.m.occupant(e.EventID, e.Position); taken {
		return &ConstraintViolation{Kind: UniquePosition}
	}
	e.ID = uuid.New().String()
	e.UpdatedAt = s.m.now()
	s.m.entries[e.ID] = *e
	return nil
}

// Upsert writes name and selection at (e.EventID, e.Position), keeping the
// occupant's ID when the position is already taken.
func (s *MemoryEntries) Upsert(_ context.Context, e *model.Entry) (*model.Entry, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	if _, ok := s.m.events[e.EventID]; !ok {
		return nil, &ConstraintViolation{Kind: MissingEvent}
	}
	out, ok := s.m.occupant(e.EventID, e.Position)
	if !ok {
		out = model.Entry{ID: uuid.New().String(), EventID: e.EventID, Position: e.Position}
	}
	out.PerformerName = e.PerformerName
	out.SelectionID = e.SelectionID
	out.UpdatedAt = s.m.now()
	s.m.entries[out.ID] = out
	return &out, nil
}

// Update writes every mutable field of e by ID, displacing any other entry
// at e.Position.
func (s *MemoryEntries) Update(_ context.Context, e *model.Entry) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	cur, ok := s.m.entries[e.ID]
	if !ok {
		return ErrNotFound
	}
	if other, taken := s.m.occupant(cur.EventID, e.Position); taken && other.ID != e.ID {
		delete(s.m.entries, other.ID)
	}
	cur.Position = e.Position
	cur.PerformerName = e.PerformerName
	cur.SelectionID = e.SelectionID
	cur.Finished = e.Finished
	cur.UpdatedAt = s.m.now()
	s.m.entries[cur.ID] = cur
	e.UpdatedAt = cur.UpdatedAt
	return nil
}

// Delete removes an entry or returns ErrNotFound.
func (s *MemoryEntries) Delete(_ context.Context, id string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	if _, ok := s.m.entries[id]; !ok {
		return ErrNotFound
	}
	delete(s.m.entries, id)
	return nil
}

// Reorder applies a batch of moves for one event. The resulting state is
// checked as a whole before anything is written.
func (s *MemoryEntries) Reorder(_ context.Context, eventID string, moves []model.Move) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	target := make(map[string]int, len(moves))
	for _, mv := range moves {
		e, ok := s.m.entries[mv.EntryID]
		if !ok || e.EventID != eventID {
			return ErrNotFound
		}
		target[mv.EntryID] = mv.Position
	}

	taken := make(map[int]bool)
	for id, e := range s.m.entries {
		if e.EventID != eventID {
			continue
		}
		pos := e.Position
		if p, moved := target[id]; moved {
			pos = p
		}
		if taken[pos] {
			return &ConstraintViolation{Kind: UniquePosition}
		}
		taken[pos] = true
	}

	now := s.m.now()
	for id, pos := range target {
		e := s.m.entries[id]
		e.Position = pos
		e.UpdatedAt = now
		s.m.entries[id] = e
	}
	return nil
}

// Ping always succeeds.
func (s *MemoryEntries) Ping(context.Context) error { return nil }
