package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/open-mic-lineup/internal/catalog"
	"github.com/Shivanand-hulikatti/open-mic-lineup/internal/logging"
	"github.com/Shivanand-hulikatti/open-mic-lineup/internal/model"
	"github.com/Shivanand-hulikatti/open-mic-lineup/internal/repository"
)

var eventStart = time.Date(2026, 10, 16, 19, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

type fixture struct {
	mem     *repository.Memory
	events  *repository.MemoryEvents
	entries *repository.MemoryEntries
	catalog *catalog.Memory
}

func newFixture() *fixture {
	mem := repository.NewMemory()
	return &fixture{
		mem:     mem,
		events:  mem.Events(),
		entries: mem.Entries(),
		catalog: catalog.NewMemory(7, 8, 9),
	}
}

func (f *fixture) event(t *testing.T, capacity int) *model.Event {
	t.Helper()
	ev, err := f.events.Create(context.Background(), model.CreateEventRequest{
		Name:      "Open mic",
		Capacity:  capacity,
		StartTime: eventStart,
		EndTime:   eventStart.Add(3 * time.Hour),
	})
	require.NoError(t, err)
	return ev
}

func (f *fixture) insert(t *testing.T, eventID string, position int, name string) *model.Entry {
	t.Helper()
	e := &model.Entry{EventID: eventID, Position: position, PerformerName: ptr(name)}
	require.NoError(t, f.entries.Insert(context.Background(), e))
	return e
}

func (f *fixture) allocator(opts AllocatorOptions) *Allocator {
	return f.allocatorWith(f.entries, opts)
}

func (f *fixture) allocatorWith(entries EntryStore, opts AllocatorOptions) *Allocator {
	if opts.Rules == (Rules{}) {
		opts.Rules = DefaultRules
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return NewAllocator(f.events, entries, f.catalog, f.catalog, opts)
}

func (f *fixture) admin() *Admin {
	return NewAdmin(f.events, f.entries, f.catalog, AdminOptions{Rules: DefaultRules, Logger: logging.Discard()})
}

// racingEntries simulates a competing writer: before each of the first
// steals inserts it places another entry at the same position, so the
// wrapped insert loses on the real uniqueness check.
type racingEntries struct {
	*repository.MemoryEntries
	steals  int
	stolen  atomic.Int32
	inserts atomic.Int32
}

func (r *racingEntries) Insert(ctx context.Context, e *model.Entry) error {
	r.inserts.Add(1)
	if int(r.stolen.Load()) < r.steals {
		r.stolen.Add(1)
		rival := &model.Entry{EventID: e.EventID, Position: e.Position, PerformerName: ptr("rival")}
		if err := r.MemoryEntries.Insert(ctx, rival); err != nil {
			return err
		}
	}
	return r.MemoryEntries.Insert(ctx, e)
}

// failingEntries fails selected operations with a storage error.
type failingEntries struct {
	*repository.MemoryEntries
	err error
}

func (f *failingEntries) OccupiedPositions(context.Context, string) ([]int, error) {
	return nil, f.err
}

func (f *failingEntries) Reorder(context.Context, string, []model.Move) error {
	return f.err
}

// recordingMetrics counts calls.
type recordingMetrics struct {
	mu         sync.Mutex
	outcomes   map[string]int
	collisions int
	admin      map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{outcomes: map[string]int{}, admin: map[string]int{}}
}

func (m *recordingMetrics) ClaimFinished(outcome string, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[outcome]++
}

func (m *recordingMetrics) PositionCollision() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collisions++
}

func (m *recordingMetrics) AdminOperation(op string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.admin[op]++
	}
}

// usageSpy records usage increments on a channel.
type usageSpy struct {
	calls chan int64
	err   error
}

func (u *usageSpy) IncrementUsage(_ context.Context, id int64) error {
	u.calls <- id
	return u.err
}

var errBoom = errors.New("boom")
