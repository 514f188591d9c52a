package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const conversationsSchema = `
CREATE TABLE IF NOT EXISTS conversations (
	id         UUID PRIMARY KEY,
	user_id    TEXT NOT NULL,
	title      TEXT NOT NULL,
	messages   JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS conversations_user_updated_idx
	ON conversations (user_id, updated_at DESC);
`

// EnsureSchema crea la tabla de conversaciones si no existe. Es idempotente.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, conversationsSchema)
	return err
}
