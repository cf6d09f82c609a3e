package service

import (
	"context"
	"slices"
	"time"

	"github.com/Shivanand-hulikatti/open-mic-lineup/internal/model"
)

// Projector derives the display view of an event from a fresh read of its
// entries on every call. It keeps no state between calls.
type Projector struct {
	events  EventStore
	entries EntryStore
	now     func() time.Time
}

// NewProjector constructs a Projector. A nil clock uses time.Now.
func NewProjector(events EventStore, entries EntryStore, now func() time.Time) *Projector {
	if now == nil {
		now = time.Now
	}
	return &Projector{events: events, entries: entries, now: now}
}

// Lineup returns the current performer, the next queueSize performers and
// the event status.
func (p *Projector) Lineup(ctx context.Context, eventID string, queueSize int) (*model.Lineup, error) {
	if queueSize < 0 {
		return nil, invalid("queue", "must not be negative")
	}
	event, err := loadEvent(ctx, p.events, eventID)
	if err != nil {
		return nil, err
	}
	entries, err := p.entries.ListByEvent(ctx, event.ID)
	if err != nil {
		return nil, storageErr("list entries", err)
	}
	lineup := Project(*event, entries, p.now(), queueSize)
	return &lineup, nil
}

// Status classifies now against the event's time window. Both ends of the
// window count as active.
func Status(event model.Event, now time.Time) model.EventStatus {
	switch {
	case now.Before(event.StartTime):
		return model.StatusUpcoming
	case now.After(event.EndTime):
		return model.StatusPast
	default:
		return model.StatusActive
	}
}

// Project computes a lineup from an event and its entries in any order.
// Only entries with a performer name or selection are considered; the
// current entry is the unfinished one with the lowest position.
func Project(event model.Event, entries []model.Entry, now time.Time, queueSize int) model.Lineup {
	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, func(a, b model.Entry) int { return a.Position - b.Position })

	lineup := model.Lineup{
		Event:  event,
		Status: Status(event, now),
		Queue:  []model.Entry{},
	}

	var real int
	for i := range sorted {
		e := sorted[i]
		if !e.IsReal() {
			continue
		}
		real++
		if e.Finished {
			continue
		}
		if lineup.Current == nil {
			lineup.Current = &e
			continue
		}
		if len(lineup.Queue) < queueSize {
			lineup.Queue = append(lineup.Queue, e)
		}
	}

	lineup.AllDone = real > 0 && lineup.Current == nil
	return lineup
}
