// Package model defines the core domain types for the lineup sign-up system.
package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// MaxCapacity is the largest number of positions an event may offer.
const MaxCapacity = 255

// MaxNameLength is the longest performer name the store can hold, in characters.
const MaxNameLength = 150

// Event is the read-only snapshot of an event the lineup core works against.
type Event struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Capacity  int       `json:"capacity"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	CreatedAt time.Time `json:"created_at"`
}

// InRange reports whether position is a valid slot number for the event.
func (e *Event) InRange(position int) bool {
	return position >= 1 && position <= e.Capacity
}

// Entry assigns a performer and/or selection to one numbered position of an event.
type Entry struct {
	ID            string    `json:"id"`
	EventID       string    `json:"event_id"`
	Position      int       `json:"position"`
	PerformerName *string   `json:"performer_name"`
	SelectionID   *int64    `json:"selection_id"`
	Finished      bool      `json:"finished"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsReal reports whether the entry carries a performer name or a selection.
func (e *Entry) IsReal() bool {
	return (e.PerformerName != nil && *e.PerformerName != "") || e.SelectionID != nil
}

// Move reassigns one entry to a new position as part of a reorder batch.
type Move struct {
	EntryID  string `json:"entry_id"`
	Position int    `json:"position"`
}

// EventStatus is the time-window classification of an event.
type EventStatus string

const (
	StatusUpcoming EventStatus = "upcoming"
	StatusActive   EventStatus = "active"
	StatusPast     EventStatus = "past"
)

// Lineup is the display-side projection of an event's entries.
type Lineup struct {
	Event   Event       `json:"event"`
	Status  EventStatus `json:"status"`
	Current *Entry      `json:"current"`
	Queue   []Entry     `json:"queue"`
	AllDone bool        `json:"all_done"`
}

// Claim is the result of a successful public sign-up.
type Claim struct {
	EntryID  string `json:"entry_id"`
	Position int    `json:"position"`
}

// Optional is a JSON field that distinguishes "absent" from an explicit null.
// Set is true whenever the key appeared in the payload; Value is nil for null.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// UnmarshalJSON records that the field was present and decodes its value.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Name      string    `json:"name"`
	Capacity  int       `json:"capacity"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// ClaimRequest is the public sign-up payload.
type ClaimRequest struct {
	PerformerName *string `json:"performer_name"`
	SelectionID   *int64  `json:"selection_id"`
}

// UpsertEntryRequest writes an entry at an explicit position.
type UpsertEntryRequest struct {
	PerformerName *string `json:"performer_name"`
	SelectionID   *int64  `json:"selection_id"`
}

// UpdateEntryRequest applies any subset of an entry's mutable fields.
type UpdateEntryRequest struct {
	PerformerName Optional[string] `json:"performer_name"`
	SelectionID   Optional[int64]  `json:"selection_id"`
	Position      *int             `json:"position"`
	Finished      *bool            `json:"finished"`
}

// Empty reports whether the request changes nothing.
func (r *UpdateEntryRequest) Empty() bool {
	return !r.PerformerName.Set && !r.SelectionID.Set && r.Position == nil && r.Finished == nil
}

// ReorderRequest reassigns positions for a batch of entries atomically.
type ReorderRequest struct {
	Moves []Move `json:"moves"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
