package database

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/open-mic-lineup/internal/model"
)

// Constraint names the repository relies on to classify write failures.
const (
	EntryPositionConstraint  = "entries_event_position_key"
	EntryEventConstraint     = "entries_event_id_fkey"
	EntrySelectionConstraint = "entries_selection_id_fkey"
)

// Negative positions exist only inside a reorder transaction, never committed.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id         UUID PRIMARY KEY,
		name       TEXT NOT NULL,
		capacity   SMALLINT NOT NULL CHECK (capacity BETWEEN 1 AND 255),
		start_time TIMESTAMPTZ NOT NULL,
		end_time   TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CHECK (end_time >= start_time)
	)`,
	`CREATE TABLE IF NOT EXISTS selections (
		id          BIGSERIAL PRIMARY KEY,
		title       TEXT NOT NULL,
		artist      TEXT NOT NULL DEFAULT '',
		usage_count INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS entries (
		id             UUID PRIMARY KEY,
		event_id       UUID NOT NULL,
		position       SMALLINT NOT NULL CHECK (position <> 0),
		performer_name VARCHAR(` + strconv.Itoa(model.MaxNameLength) + `),
		selection_id   BIGINT,
		finished       BOOLEAN NOT NULL DEFAULT false,
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT ` + EntryPositionConstraint + ` UNIQUE (event_id, position),
		CONSTRAINT ` + EntryEventConstraint + ` FOREIGN KEY (event_id) REFERENCES events (id) ON DELETE CASCADE,
		CONSTRAINT ` + EntrySelectionConstraint + ` FOREIGN KEY (selection_id) REFERENCES selections (id) ON DELETE SET NULL
	)`,
}

// Migrate creates the tables the service needs if they do not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
