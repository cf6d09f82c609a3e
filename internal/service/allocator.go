package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/open-mic-lineup/internal/metrics"
	"github.com/Shivanand-hulikatti/open-mic-lineup/internal/model"
	"github.com/Shivanand-hulikatti/open-mic-lineup/internal/repository"
)

// DefaultMaxAttempts is the claim attempt bound used when none is configured.
const DefaultMaxAttempts = 3

const usageTimeout = 5 * time.Second

// AllocatorOptions configures an Allocator. Zero values select defaults.
type AllocatorOptions struct {
	MaxAttempts int
	Rules       Rules
	Metrics     metrics.Collector
	Logger      logrus.FieldLogger
}

// Allocator hands out the lowest free position of an event to public
// sign-ups. It holds no locks: the entry store's unique (event, position)
// constraint decides which of several concurrent claims gets a position, and
// the losers rescan and try the next free one.
type Allocator struct {
	events      EventStore
	entries     EntryStore
	selections  SelectionChecker
	usage       UsageRecorder
	rules       Rules
	maxAttempts int
	metrics     metrics.Collector
	log         logrus.FieldLogger
}

// NewAllocator constructs an Allocator.
func NewAllocator(
	events EventStore,
	entries EntryStore,
	selections SelectionChecker,
	usage UsageRecorder,
	opts AllocatorOptions,
) *Allocator {
	a := &Allocator{
		events:      events,
		entries:     entries,
		selections:  selections,
		usage:       usage,
		rules:       opts.Rules,
		maxAttempts: opts.MaxAttempts,
		metrics:     opts.Metrics,
		log:         opts.Logger,
	}
	if a.maxAttempts < 1 {
		a.maxAttempts = DefaultMaxAttempts
	}
	if a.metrics == nil {
		a.metrics = metrics.Nop{}
	}
	if a.log == nil {
		a.log = logrus.StandardLogger()
	}
	if a.usage == nil {
		a.usage = noUsage{}
	}
	return a
}

// ClaimNextSlot assigns the lowest free position of an event to a new entry.
//
// Errors:
//   - *ValidationError for a bad name or an unknown selection
//   - ErrNotFound if the event does not exist (or vanished mid-claim)
//   - ErrSlotsFull if no position is free when scanned
//   - ErrConflictRetryExhausted if every attempt lost its position to
//     another writer
//   - *StorageError for anything else
func (a *Allocator) ClaimNextSlot(ctx context.Context, eventID string, req model.ClaimRequest) (*model.Claim, error) {
	claim, attempts, err := a.claim(ctx, eventID, req)
	a.metrics.ClaimFinished(claimOutcome(err), attempts)
	if err != nil {
		return nil, err
	}

	if req.SelectionID != nil {
		a.recordUsage(ctx, *req.SelectionID)
	}
	return claim, nil
}

func (a *Allocator) claim(ctx context.Context, eventID string, req model.ClaimRequest) (*model.Claim, int, error) {
	name, err := a.rules.performerName(req.PerformerName, a.rules.RequirePerformerName)
	if err != nil {
		return nil, 0, err
	}
	if req.SelectionID == nil && a.rules.RequireSelection {
		return nil, 0, invalid("selection_id", "is required")
	}
	if name == nil && req.SelectionID == nil {
		return nil, 0, invalid("", "performer_name or selection_id is required")
	}

	event, err := loadEvent(ctx, a.events, eventID)
	if err != nil {
		return nil, 0, err
	}

	if req.SelectionID != nil {
		if err := checkSelection(ctx, a.selections, *req.SelectionID); err != nil {
			return nil, 0, err
		}
	}

	log := a.log.WithField("event_id", event.ID)

	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		occupied, err := a.entries.OccupiedPositions(ctx, event.ID)
		if err != nil {
			return nil, attempt, storageErr("read occupied positions", err)
		}

		position := firstFree(occupied, event.Capacity)
		if position == 0 {
			return nil, attempt, ErrSlotsFull
		}

		entry := &model.Entry{
			EventID:       event.ID,
			Position:      position,
			PerformerName: name,
			SelectionID:   req.SelectionID,
		}
		err = a.entries.Insert(ctx, entry)
		switch {
		case err == nil:
			log.WithFields(logrus.Fields{"entry_id": entry.ID, "position": position, "attempt": attempt}).Info("slot claimed")
			return &model.Claim{EntryID: entry.ID, Position: position}, attempt, nil
		case repository.IsConstraint(err, repository.UniquePosition):
			a.metrics.PositionCollision()
			log.WithFields(logrus.Fields{"position": position, "attempt": attempt}).Debug("position taken concurrently, rescanning")
		case repository.IsConstraint(err, repository.MissingEvent):
			return nil, attempt, ErrNotFound
		case repository.IsConstraint(err, repository.MissingSelection):
			return nil, attempt, invalid("selection_id", "selection %d does not exist", *req.SelectionID)
		default:
			return nil, attempt, storageErr("insert entry", err)
		}
	}

	log.WithField("attempts", a.maxAttempts).Warn("slot claim gave up after repeated collisions")
	return nil, a.maxAttempts, ErrConflictRetryExhausted
}

// recordUsage bumps the selection's usage counter without holding up or
// failing the claim. The caller's cancellation does not abort it.
func (a *Allocator) recordUsage(ctx context.Context, selectionID int64) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, usageTimeout)
		defer cancel()
		if err := a.usage.IncrementUsage(ctx, selectionID); err != nil {
			a.log.WithError(err).WithField("selection_id", selectionID).Warn("could not record selection usage")
		}
	}()
}

type noUsage struct{}

func (noUsage) IncrementUsage(context.Context, int64) error { return nil }

// firstFree returns the lowest position in [1, capacity] not in occupied,
// or 0 when every position is taken.
func firstFree(occupied []int, capacity int) int {
	taken := make(map[int]struct{}, len(occupied))
	for _, p := range occupied {
		taken[p] = struct{}{}
	}
	for p := 1; p <= capacity; p++ {
		if _, ok := taken[p]; !ok {
			return p
		}
	}
	return 0
}

func claimOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeClaimed
	case errors.Is(err, ErrSlotsFull):
		return metrics.OutcomeSlotsFull
	case errors.Is(err, ErrConflictRetryExhausted):
		return metrics.OutcomeRetryExhausted
	case IsValidation(err), errors.Is(err, ErrNotFound):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}
