package db

import (
	"context"
	"database/sql"

	"github.com/cyverse-de/dbutil"
	"github.com/pkg/errors"

	sq "github.com/Masterminds/squirrel"

	// Registers the postgres driver.
	_ "github.com/lib/pq"
)

// Queryer describes the methods shared by *sql.DB and *sql.Tx that the functions in this package need.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// psql is the statement builder used for every statement in this package.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// InitDatabase establishes a database connection and verifies tha the database can be reached.
func InitDatabase(driverName, databaseURI string) (*sql.DB, error) {
	wrapMsg := "unable to initialize the database"

	// Create a database connector to establish the connection.
	connector, err := dbutil.NewDefaultConnector("1m")
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	// Establish the database connection.
	db, err := connector.Connect(driverName, databaseURI)
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	return db, nil
}
