package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/open-mic-lineup/internal/model"
)

func ptr[T any](v T) *T { return &v }

func newEvent(t *testing.T, m *Memory, capacity int) *model.Event {
	t.Helper()
	start := time.Date(2026, 10, 16, 19, 0, 0, 0, time.UTC)
	ev, err := m.Events().Create(context.Background(), model.CreateEventRequest{
		Name:      "Open mic",
		Capacity:  capacity,
		StartTime: start,
		EndTime:   start.Add(3 * time.Hour),
	})
	require.NoError(t, err)
	return ev
}

func TestMemory_InsertRejectsTakenPosition(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	ev := newEvent(t, m, 3)
	entries := m.Entries()

	first := &model.Entry{EventID: ev.ID, Position: 1, PerformerName: ptr("Alice")}
	require.NoError(t, entries.Insert(ctx, first))
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.UpdatedAt.IsZero())

	err := entries.Insert(ctx, &model.Entry{EventID: ev.ID, Position: 1, PerformerName: ptr("Bob")})
	require.Error(t, err)
	assert.True(t, IsConstraint(err, UniquePosition))

	err = entries.Insert(ctx, &model.Entry{EventID: "gone", Position: 1})
	assert.True(t, IsConstraint(err, MissingEvent))
}

func TestMemory_ConcurrentInsertsSamePosition(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	ev := newEvent(t, m, 1)
	entries := m.Entries()

	const writers = 20
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := entries.Insert(ctx, &model.Entry{EventID: ev.ID, Position: 1, PerformerName: ptr("x")})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.True(t, IsConstraint(err, UniquePosition))
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestMemory_UpsertPreservesID(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	ev := newEvent(t, m, 5)
	entries := m.Entries()

	created, err := entries.Upsert(ctx, &model.Entry{EventID: ev.ID, Position: 2, PerformerName: ptr("Alice")})
	require.NoError(t, err)

	updated, err := entries.Upsert(ctx, &model.Entry{EventID: ev.ID, Position: 2, PerformerName: ptr("Bob"), SelectionID: ptr(int64(7))})
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Bob", *updated.PerformerName)
	assert.Equal(t, int64(7), *updated.SelectionID)

	all, err := entries.ListByEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMemory_UpdateDisplacesOccupant(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	ev := newEvent(t, m, 5)
	entries := m.Entries()

	a := &model.Entry{EventID: ev.ID, Position: 1, PerformerName: ptr("A")}
	b := &model.Entry{EventID: ev.ID, Position: 2, PerformerName: ptr("B")}
	require.NoError(t, entries.Insert(ctx, a))
	require.NoError(t, entries.Insert(ctx, b))

	a.Position = 2
	require.NoError(t, entries.Update(ctx, a))

	_, err := entries.GetByID(ctx, b.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := entries.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Position)
}

func TestMemory_ReorderSwap(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	ev := newEvent(t, m, 5)
	entries := m.Entries()

	a := &model.Entry{EventID: ev.ID, Position: 1, PerformerName: ptr("A")}
	b := &model.Entry{EventID: ev.ID, Position: 2, PerformerName: ptr("B")}
	require.NoError(t, entries.Insert(ctx, a))
	require.NoError(t, entries.Insert(ctx, b))

	require.NoError(t, entries.Reorder(ctx, ev.ID, []model.Move{
		{EntryID: a.ID, Position: 2},
		{EntryID: b.ID, Position: 1},
	}))

	all, err := entries.ListByEvent(ctx, ev.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, b.ID, all[0].ID)
	assert.Equal(t, a.ID, all[1].ID)
}

func TestMemory_ReorderRejectsWholeBatch(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	ev := newEvent(t, m, 5)
	entries := m.Entries()

	a := &model.Entry{EventID: ev.ID, Position: 1, PerformerName: ptr("A")}
	b := &model.Entry{EventID: ev.ID, Position: 2, PerformerName: ptr("B")}
	c := &model.Entry{EventID: ev.ID, Position: 3, PerformerName: ptr("C")}
	for _, e := range []*model.Entry{a, b, c} {
		require.NoError(t, entries.Insert(ctx, e))
	}

	// a moves onto c, which stays put.
	err := entries.Reorder(ctx, ev.ID, []model.Move{
		{EntryID: b.ID, Position: 4},
		{EntryID: a.ID, Position: 3},
	})
	assert.True(t, IsConstraint(err, UniquePosition))

	err = entries.Reorder(ctx, ev.ID, []model.Move{
		{EntryID: a.ID, Position: 5},
		{EntryID: "missing", Position: 1},
	})
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := entries.ListByEvent(ctx, ev.ID)
	require.NoError(t, err)
	for i, e := range all {
		assert.Equal(t, i+1, e.Position, "no move may be applied partially")
	}
}

func TestMemory_DeleteEventCascades(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	ev := newEvent(t, m, 2)
	entries := m.Entries()

	e := &model.Entry{EventID: ev.ID, Position: 1, PerformerName: ptr("A")}
	require.NoError(t, entries.Insert(ctx, e))

	m.DeleteEvent(ev.ID)

	_, err := m.Events().GetByID(ctx, ev.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = entries.GetByID(ctx, e.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, entries.Delete(ctx, e.ID), ErrNotFound)
}
