// Package repository implements persistence for events and lineup entries.
// It uses pgx directly (no ORM) for the PostgreSQL store and offers an
// in-memory store with identical semantics for development and tests.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/open-mic-lineup/internal/database"
	"github.com/Shivanand-hulikatti/open-mic-lineup/internal/model"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ConstraintKind identifies which store invariant rejected a write.
type ConstraintKind int

const (
	// UniquePosition: another entry already holds (event, position).
	UniquePosition ConstraintKind = iota + 1
	// MissingEvent: the referenced event no longer exists.
	MissingEvent
	// MissingSelection: the referenced selection does not exist.
	MissingSelection
)

func (k ConstraintKind) String() string {
	switch k {
	case UniquePosition:
		return "unique position"
	case MissingEvent:
		return "missing event"
	case MissingSelection:
		return "missing selection"
	default:
		return "unknown"
	}
}

// ConstraintViolation is returned when a write breaks a store invariant.
type ConstraintViolation struct {
	Kind ConstraintKind
	Err  error
}

func (e *ConstraintViolation) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("constraint violation (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("constraint violation (%s)", e.Kind)
}

func (e *ConstraintViolation) Unwrap() error { return e.Err }

// IsConstraint reports whether err is a ConstraintViolation of the given kind.
func IsConstraint(err error, kind ConstraintKind) bool {
	var cv *ConstraintViolation
	return errors.As(err, &cv) && cv.Kind == kind
}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// classify turns a PostgreSQL constraint error into a ConstraintViolation
// based on its SQLSTATE and constraint name. Other errors pass through.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch {
	case pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == database.EntryPositionConstraint:
		return &ConstraintViolation{Kind: UniquePosition, Err: err}
	case pgErr.Code == pgForeignKeyViolation && pgErr.ConstraintName == database.EntryEventConstraint:
		return &ConstraintViolation{Kind: MissingEvent, Err: err}
	case pgErr.Code == pgForeignKeyViolation && pgErr.ConstraintName == database.EntrySelectionConstraint:
		return &ConstraintViolation{Kind: MissingSelection, Err: err}
	}
	return err
}

// validID reports whether id can possibly name a stored row.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// EventRepository handles persistence for event snapshots.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts a new event and returns it with a generated UUID.
func (r *EventRepository) Create(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	event := &model.Event{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Capacity:  req.Capacity,
		StartTime: req.StartTime.UTC(),
		EndTime:   req.EndTime.UTC(),
		CreatedAt: time.Now().UTC(),
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO events (id, name, capacity, start_time, end_time, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.Name, event.Capacity, event.StartTime, event.EndTime, event.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return event, nil
}

// List returns all events ordered by start time descending.
func (r *EventRepository) List(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, capacity, start_time, end_time, created_at
		 FROM events
		 ORDER BY start_time DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.Name, &e.Capacity, &e.StartTime, &e.EndTime, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// GetByID returns a single event or ErrNotFound.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	var e model.Event
	err := r.db.QueryRow(ctx,
		`SELECT id, name, capacity, start_time, end_time, created_at
		 FROM events WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.Name, &e.Capacity, &e.StartTime, &e.EndTime, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &e, nil
}
