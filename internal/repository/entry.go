package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/open-mic-lineup/internal/model"
)

const entryColumns = `id, event_id, position, performer_name, selection_id, finished, updated_at`

// EntryRepository handles persistence for lineup entries.
//
// The (event_id, position) unique constraint is the only arbiter between
// concurrent writers. Nothing here takes row locks around the public claim
// path; a losing writer gets a ConstraintViolation{Kind: UniquePosition}.
type EntryRepository struct {
	db *pgxpool.Pool
}

// NewEntryRepository constructs an EntryRepository.
func NewEntryRepository(db *pgxpool.Pool) *EntryRepository {
	return &EntryRepository{db: db}
}

func scanEntry(row pgx.Row) (*model.Entry, error) {
	var e model.Entry
	if err := row.Scan(&e.ID, &e.EventID, &e.Position, &e.PerformerName, &e.SelectionID, &e.Finished, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

// ListByEvent returns every entry of an event ordered by position.
func (r *EntryRepository) ListByEvent(ctx context.Context, eventID string) ([]model.Entry, error) {
	if !validID(eventID) {
		return nil, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+entryColumns+`
		 FROM entries
		 WHERE event_id = $1
		 ORDER BY position ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []model.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// OccupiedPositions returns the positions currently taken in an event.
func (r *EntryRepository) OccupiedPositions(ctx context.Context, eventID string) ([]int, error) {
	if !validID(eventID) {
		return nil, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT position FROM entries WHERE event_id = $1 ORDER BY position ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("occupied positions: %w", err)
	}
	defer rows.Close()

	var positions []int
	for rows.Next() {
		var p int
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// GetByID returns a single entry or ErrNotFound.
func (r *EntryRepository) GetByID(ctx context.Context, id string) (*model.Entry, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	e, err := scanEntry(r.db.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

// Insert stores a new entry at e.Position, assigning its ID and timestamp.
// A concurrent writer that already holds the position makes this fail with
// ConstraintViolation{Kind: UniquePosition}.
func (r *EntryRepository) Insert(ctx context.Context, e *model.Entry) error {
	id := uuid.New().String()
	err := r.db.QueryRow(ctx,
		`INSERT INTO entries (id, event_id, position, performer_name, selection_id, finished, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())
		 RETURNING updated_at`,
		id, e.EventID, e.Position, e.PerformerName, e.SelectionID, e.Finished,
	).Scan(&e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert entry: %w", classify(err))
	}
	e.ID = id
	return nil
}

// Upsert writes name and selection at (e.EventID, e.Position). An existing
// occupant is updated in place and keeps its ID; otherwise a new entry is
// created. The returned entry reflects the stored row.
func (r *EntryRepository) Upsert(ctx context.Context, e *model.Entry) (*model.Entry, error) {
	out, err := scanEntry(r.db.QueryRow(ctx,
		`INSERT INTO entries (id, event_id, position, performer_name, selection_id, finished, updated_at)
		 VALUES ($1, $2, $3, $4, $5, false, now())
		 ON CONFLICT ON CONSTRAINT entries_event_position_key DO UPDATE
		 SET performer_name = EXCLUDED.performer_name,
		     selection_id   = EXCLUDED.selection_id,
		     updated_at     = EXCLUDED.updated_at
		 RETURNING `+entryColumns,
		uuid.New().String(), e.EventID, e.Position, e.PerformerName, e.SelectionID,
	))
	if err != nil {
		return nil, fmt.Errorf("upsert entry: %w", classify(err))
	}
	return out, nil
}

// Update writes every mutable field of e by ID. If another entry of the
// same event sits at e.Position it is removed in the same transaction, so
// the moved entry replaces it.
func (r *EntryRepository) Update(ctx context.Context, e *model.Entry) (err error) {
	if !validID(e.ID) {
		return ErrNotFound
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx,
		`DELETE FROM entries WHERE event_id = $1 AND position = $2 AND id <> $3`,
		e.EventID, e.Position, e.ID,
	)
	if err != nil {
		return fmt.Errorf("displace occupant: %w", err)
	}

	err = tx.QueryRow(ctx,
		`UPDATE entries
		 SET position = $2, performer_name = $3, selection_id = $4, finished = $5, updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at`,
		e.ID, e.Position, e.PerformerName, e.SelectionID, e.Finished,
	).Scan(&e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update entry: %w", classify(err))
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", classify(err))
	}
	return nil
}

// Delete removes an entry or returns ErrNotFound.
func (r *EntryRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Reorder applies a batch of position moves for one event atomically.
//
// Two moves may exchange positions, so every moved entry is first parked on
// a distinct negative sentinel and only then placed on its final position.
// The unique constraint holds after every statement and readers outside the
// transaction only ever see the state before or after the whole batch.
func (r *EntryRepository) Reorder(ctx context.Context, eventID string, moves []model.Move) (err error) {
	if !validID(eventID) {
		return ErrNotFound
	}
	for _, mv := range moves {
		if !validID(mv.EntryID) {
			return ErrNotFound
		}
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	for i, mv := range moves {
		tag, execErr := tx.Exec(ctx,
			`UPDATE entries SET position = $1 WHERE id = $2 AND event_id = $3`,
			-(i + 1), mv.EntryID, eventID,
		)
		if execErr != nil {
			return fmt.Errorf("stage move: %w", classify(execErr))
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
	}

	for _, mv := range moves {
		_, err = tx.Exec(ctx,
			`UPDATE entries SET position = $1, updated_at = now() WHERE id = $2`,
			mv.Position, mv.EntryID,
		)
		if err != nil {
			return fmt.Errorf("apply move: %w", classify(err))
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", classify(err))
	}
	return nil
}

// Ping checks the store is reachable.
func (r *EntryRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
