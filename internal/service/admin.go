package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/open-mic-lineup/internal/metrics"
	"github.com/Shivanand-hulikatti/open-mic-lineup/internal/model"
	"github.com/Shivanand-hulikatti/open-mic-lineup/internal/repository"
)

// AdminOptions configures an Admin. Zero values select defaults.
type AdminOptions struct {
	Rules   Rules
	Metrics metrics.Collector
	Logger  logrus.FieldLogger
}

// Admin performs privileged, explicit-position changes to an event's entries.
//
// UpsertAt, Update and Delete are single-row writes with no retry. They
// assume one administrator edits a given event at a time; two admins racing
// on the same entry get last-writer-wins. Reorder is the only multi-row
// operation and runs as one transaction.
type Admin struct {
	events     EventStore
	entries    EntryStore
	selections SelectionChecker
	rules      Rules
	metrics    metrics.Collector
	log        logrus.FieldLogger
}

// NewAdmin constructs an Admin.
func NewAdmin(events EventStore, entries EntryStore, selections SelectionChecker, opts AdminOptions) *Admin {
	a := &Admin{
		events:     events,
		entries:    entries,
		selections: selections,
		rules:      opts.Rules,
		metrics:    opts.Metrics,
		log:        opts.Logger,
	}
	if a.metrics == nil {
		a.metrics = metrics.Nop{}
	}
	if a.log == nil {
		a.log = logrus.StandardLogger()
	}
	return a
}

func (a *Admin) done(op string, err error) {
	a.metrics.AdminOperation(op, err == nil)
	if err != nil && !IsValidation(err) && !errors.Is(err, ErrNotFound) {
		a.log.WithError(err).WithField("op", op).Error("admin operation failed")
	}
}

// List returns every entry of an event ordered by position.
func (a *Admin) List(ctx context.Context, eventID string) ([]model.Entry, error) {
	event, err := loadEvent(ctx, a.events, eventID)
	if err != nil {
		return nil, err
	}
	entries, err := a.entries.ListByEvent(ctx, event.ID)
	if err != nil {
		return nil, storageErr("list entries", err)
	}
	return entries, nil
}

// UpsertAt writes a performer and selection at an explicit position. An
// existing occupant is updated in place and keeps its ID.
func (a *Admin) UpsertAt(ctx context.Context, eventID string, position int, req model.UpsertEntryRequest) (entry *model.Entry, err error) {
	defer func() { a.done("upsert", err) }()

	event, err := loadEvent(ctx, a.events, eventID)
	if err != nil {
		return nil, err
	}
	if !event.InRange(position) {
		return nil, invalid("position", "must be between 1 and %d", event.Capacity)
	}
	name, err := a.rules.performerName(req.PerformerName, false)
	if err != nil {
		return nil, err
	}
	if name == nil && req.SelectionID == nil {
		return nil, invalid("", "performer_name or selection_id is required")
	}
	if req.SelectionID != nil {
		if err := checkSelection(ctx, a.selections, *req.SelectionID); err != nil {
			return nil, err
		}
	}

	entry, err = a.entries.Upsert(ctx, &model.Entry{
		EventID:       event.ID,
		Position:      position,
		PerformerName: name,
		SelectionID:   req.SelectionID,
	})
	if err != nil {
		return nil, a.writeErr("upsert entry", err)
	}
	return entry, nil
}

// Update applies any subset of an entry's mutable fields. Moving an entry
// onto a position held by another entry replaces that entry; use Reorder to
// swap instead.
func (a *Admin) Update(ctx context.Context, entryID string, req model.UpdateEntryRequest) (entry *model.Entry, err error) {
	defer func() { a.done("update", err) }()

	if req.Empty() {
		return nil, invalid("", "no fields to update")
	}

	entry, err = a.entries.GetByID(ctx, entryID)
	if err != nil {
		return nil, storageErr("get entry", err)
	}

	if req.PerformerName.Set {
		name, err := a.rules.performerName(req.PerformerName.Value, false)
		if err != nil {
			return nil, err
		}
		entry.PerformerName = name
	}
	if req.SelectionID.Set {
		if req.SelectionID.Value != nil {
			if err := checkSelection(ctx, a.selections, *req.SelectionID.Value); err != nil {
				return nil, err
			}
		}
		entry.SelectionID = req.SelectionID.Value
	}
	if req.Position != nil {
		event, err := loadEvent(ctx, a.events, entry.EventID)
		if err != nil {
			return nil, err
		}
		if !event.InRange(*req.Position) {
			return nil, invalid("position", "must be between 1 and %d", event.Capacity)
		}
		entry.Position = *req.Position
	}
	if req.Finished != nil {
		entry.Finished = *req.Finished
	}
	if !entry.IsReal() {
		return nil, invalid("", "performer_name or selection_id is required")
	}

	if err := a.entries.Update(ctx, entry); err != nil {
		return nil, a.writeErr("update entry", err)
	}
	return entry, nil
}

// Delete removes an entry.
func (a *Admin) Delete(ctx context.Context, entryID string) (err error) {
	defer func() { a.done("delete", err) }()

	if err := a.entries.Delete(ctx, entryID); err != nil {
		return storageErr("delete entry", err)
	}
	return nil
}

// Reorder moves a batch of entries to new positions as one atomic unit and
// returns the resulting lineup. The batch is rejected as a whole, before
// anything is written, if a target is out of range, two moves share a target
// or an entry, an entry is unknown, or a target stays occupied by an entry
// that is not part of the batch.
func (a *Admin) Reorder(ctx context.Context, eventID string, moves []model.Move) (entries []model.Entry, err error) {
	defer func() { a.done("reorder", err) }()

	event, err := loadEvent(ctx, a.events, eventID)
	if err != nil {
		return nil, err
	}
	current, err := a.entries.ListByEvent(ctx, event.ID)
	if err != nil {
		return nil, storageErr("list entries", err)
	}
	if err := validateMoves(event, current, moves); err != nil {
		return nil, err
	}

	if err := a.entries.Reorder(ctx, event.ID, moves); err != nil {
		if repository.IsConstraint(err, repository.UniquePosition) {
			return nil, ErrPositionConflict
		}
		return nil, storageErr("reorder entries", err)
	}

	entries, err = a.entries.ListByEvent(ctx, event.ID)
	if err != nil {
		return nil, storageErr("list entries", err)
	}
	return entries, nil
}

func validateMoves(event *model.Event, current []model.Entry, moves []model.Move) error {
	if len(moves) == 0 {
		return invalid("moves", "must not be empty")
	}

	byID := make(map[string]model.Entry, len(current))
	for _, e := range current {
		byID[e.ID] = e
	}

	targets := make(map[int]string, len(moves))
	moved := make(map[string]bool, len(moves))
	for i, mv := range moves {
		if mv.EntryID == "" {
			return invalid("moves", "move %d has no entry_id", i)
		}
		if !event.InRange(mv.Position) {
			return invalid("moves", "position %d is outside 1..%d", mv.Position, event.Capacity)
		}
		if moved[mv.EntryID] {
			return invalid("moves", "entry %s is moved more than once", mv.EntryID)
		}
		if _, dup := targets[mv.Position]; dup {
			return invalid("moves", "position %d is targeted more than once", mv.Position)
		}
		if _, ok := byID[mv.EntryID]; !ok {
			return ErrNotFound
		}
		moved[mv.EntryID] = true
		targets[mv.Position] = mv.EntryID
	}

	for _, e := range current {
		if moved[e.ID] {
			continue
		}
		if _, clash := targets[e.Position]; clash {
			return invalid("moves", "position %d is held by an entry that is not being moved", e.Position)
		}
	}
	return nil
}

// writeErr maps store write failures to service errors.
func (a *Admin) writeErr(op string, err error) error {
	switch {
	case repository.IsConstraint(err, repository.MissingEvent):
		return ErrNotFound
	case repository.IsConstraint(err, repository.MissingSelection):
		return invalid("selection_id", "selection does not exist")
	case repository.IsConstraint(err, repository.UniquePosition):
		return ErrPositionConflict
	}
	return storageErr(op, err)
}
