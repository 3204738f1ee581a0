package db

import (
	"context"

	"github.com/pkg/errors"
)

// schema creates the tables used by the service if they don't exist yet.
const schema = `
CREATE TABLE IF NOT EXISTS notifications (
    id text PRIMARY KEY,
    user_id text NOT NULL,
    user_type text NOT NULL CHECK (user_type IN ('student', 'admin')),
    type text NOT NULL,
    title text NOT NULL,
    message text NOT NULL,
    data jsonb NOT NULL DEFAULT '{}',
    is_read boolean NOT NULL DEFAULT false,
    created_at timestamp with time zone NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS notifications_owner_created_at_index
    ON notifications (user_id, user_type, created_at DESC);

CREATE INDEX IF NOT EXISTS notifications_unread_index
    ON notifications (user_id, user_type) WHERE NOT is_read;

CREATE INDEX IF NOT EXISTS notifications_created_at_index
    ON notifications (created_at);

CREATE TABLE IF NOT EXISTS admins (
    id text PRIMARY KEY,
    email text NOT NULL UNIQUE,
    created_at timestamp with time zone NOT NULL DEFAULT now()
);
`

// InitSchema creates the notifications and admins tables along with their indexes.
func InitSchema(ctx context.Context, db Queryer) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "unable to initialize the database schema")
	}
	return nil
}
