// Package catalog is the lineup's view of the selection catalog: it can tell
// whether a selection exists and bump its usage counter, nothing more.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Postgres answers existence checks and counts usage in the selections table.
type Postgres struct {
	db *pgxpool.Pool
}

// NewPostgres constructs a Postgres catalog.
func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

// Exists reports whether a selection with the given ID exists.
func (c *Postgres) Exists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := c.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM selections WHERE id = $1)`, id).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("selection exists: %w", err)
	}
	return ok, nil
}

// IncrementUsage bumps the usage counter of a selection.
func (c *Postgres) IncrementUsage(ctx context.Context, id int64) error {
	_, err := c.db.Exec(ctx, `UPDATE selections SET usage_count = usage_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment usage: %w", err)
	}
	return nil
}

// RedisUsage counts selection usage in a redis hash keyed by selection ID.
type RedisUsage struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisUsage constructs a RedisUsage writing to the hash named prefix.
func NewRedisUsage(rdb *redis.Client, prefix string) *RedisUsage {
	if prefix == "" {
		prefix = "lineup:selection_usage"
	}
	return &RedisUsage{rdb: rdb, prefix: prefix}
}

// IncrementUsage bumps the usage counter of a selection.
func (c *RedisUsage) IncrementUsage(ctx context.Context, id int64) error {
	if err := c.rdb.HIncrBy(ctx, c.prefix, strconv.FormatInt(id, 10), 1).Err(); err != nil {
		return fmt.Errorf("increment usage: %w", err)
	}
	return nil
}

// Usage returns the recorded usage count of a selection.
func (c *RedisUsage) Usage(ctx context.Context, id int64) (int64, error) {
	n, err := c.rdb.HGet(ctx, c.prefix, strconv.FormatInt(id, 10)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("usage: %w", err)
	}
	return n, nil
}

// Nop records nothing.
type Nop struct{}

// IncrementUsage does nothing.
func (Nop) IncrementUsage(context.Context, int64) error { return nil }

// Memory is an in-process catalog used with the memory store.
type Memory struct {
	mu    sync.Mutex
	known map[int64]int64
}

// NewMemory creates a catalog holding the given selection IDs.
func NewMemory(ids ...int64) *Memory {
	m := &Memory{known: make(map[int64]int64)}
	for _, id := range ids {
		m.known[id] = 0
	}
	return m
}

// Add registers a selection ID.
func (m *Memory) Add(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.known[id]; !ok {
		m.known[id] = 0
	}
}

// Exists reports whether the selection was registered.
func (m *Memory) Exists(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.known[id]
	return ok, nil
}

// IncrementUsage bumps the counter of a registered selection.
func (m *Memory) IncrementUsage(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.known[id]; !ok {
		return fmt.Errorf("increment usage: unknown selection %d", id)
	}
	m.known[id]++
	return nil
}

// Usage returns the recorded usage count of a selection.
func (m *Memory) Usage(id int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.known[id]
}
