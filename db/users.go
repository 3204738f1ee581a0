package db

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// ListAdminIDs returns the identifiers of every administrator known to the portal.
func ListAdminIDs(ctx context.Context, db Queryer) ([]string, error) {
	wrapMsg := "unable to list administrators"

	// Build the query.
	query, args, err := psql.
		Select("id").
		From("admins").
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	// Query the database.
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, wrapMsg)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	return ids, nil
}

// AddAdmin registers an administrator. The normalized email address doubles as the administrator's identifier.
// Registering the same administrator twice has no effect.
func AddAdmin(ctx context.Context, db Queryer, email string) error {
	wrapMsg := fmt.Sprintf("unable to add `%s` to the admins table", email)

	// Build the statement.
	statement, args, err := psql.
		Insert("admins").
		Columns("id", "email").
		Values(email, email).
		Suffix("ON CONFLICT DO NOTHING").
		ToSql()
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	// Execute the statement.
	if _, err = db.ExecContext(ctx, statement, args...); err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	return nil
}
