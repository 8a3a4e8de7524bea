package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS chat_rooms (
	room_name   TEXT PRIMARY KEY,
	owner_alias TEXT NOT NULL,
	room_type   TEXT NOT NULL,
	member_list TEXT[] NOT NULL DEFAULT '{}',
	create_time TIMESTAMPTZ NOT NULL,
	modify_time TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_messages (
	id           BIGSERIAL PRIMARY KEY,
	room_name    TEXT NOT NULL REFERENCES chat_rooms (room_name) ON DELETE CASCADE,
	message      TEXT NOT NULL,
	sequence_num BIGINT NOT NULL,
	mess_props   JSONB NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_chat_messages_room_seq ON chat_messages (room_name, sequence_num);
CREATE INDEX IF NOT EXISTS idx_chat_messages_room_id ON chat_messages (room_name, id);

CREATE TABLE IF NOT EXISTS room_lists (
	list_name      TEXT PRIMARY KEY,
	create_time    TIMESTAMPTZ NOT NULL,
	modify_time    TIMESTAMPTZ NOT NULL,
	rooms_metadata JSONB NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS chat_sequences (
	counter_id TEXT NOT NULL,
	room_name  TEXT NOT NULL,
	value      BIGINT NOT NULL,
	PRIMARY KEY (counter_id, room_name)
);

CREATE TABLE IF NOT EXISTS chat_users (
	alias       TEXT PRIMARY KEY,
	create_time TIMESTAMPTZ NOT NULL,
	modify_time TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_audit_log (
	id         BIGSERIAL PRIMARY KEY,
	event_time TIMESTAMPTZ NOT NULL,
	actor      TEXT NOT NULL,
	room_name  TEXT NOT NULL,
	event_type TEXT NOT NULL,
	payload    JSONB NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_chat_audit_log_room ON chat_audit_log (room_name, id);
`

// Migrate creates the chat tables and indexes. It is idempotent.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate chat schema: %w", err)
	}
	return nil
}
