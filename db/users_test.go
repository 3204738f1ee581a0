package db

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListAdminIDs(t *testing.T) {
	assert := assert.New(t)

	db, mock, err := sqlmock.New()
	ctx := context.Background()
	require.NoError(t, err, "unable to open the mock database connection")
	defer db.Close()

	// Set up the expectations.
	rows := sqlmock.NewRows([]string{"id"}).
		AddRow("admin1@example.edu").
		AddRow("admin2@example.edu")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM admins ORDER BY id")).
		WillReturnRows(rows)

	// List the administrators.
	ids, err := ListAdminIDs(ctx, db)
	assert.NoError(err, "unexpected error occurred while listing administrators")
	assert.Equal([]string{"admin1@example.edu", "admin2@example.edu"}, ids)

	// Verify that all mock expectations were met.
	assert.NoError(mock.ExpectationsWereMet(), "not all mock expectations were met")
}

func TestListAdminIDsEmpty(t *testing.T) {
	assert := assert.New(t)

	db, mock, err := sqlmock.New()
	require.NoError(t, err, "unable to open the mock database connection")
	defer db.Close()

	mock.ExpectQuery("SELECT id FROM admins").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	ids, err := ListAdminIDs(context.Background(), db)
	assert.NoError(err)
	assert.NotNil(ids)
	assert.Empty(ids)
	assert.NoError(mock.ExpectationsWereMet(), "not all mock expectations were met")
}

func TestAddAdmin(t *testing.T) {
	assert := assert.New(t)

	db, mock, err := sqlmock.New()
	ctx := context.Background()
	require.NoError(t, err, "unable to open the mock database connection")
	defer db.Close()

	// Set up the expectations.
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO admins (id,email) VALUES ($1,$2) ON CONFLICT DO NOTHING")).
		WithArgs("registrar@example.edu", "registrar@example.edu").
		WillReturnResult(sqlmock.NewResult(0, 1))

	// Register the administrator.
	err = AddAdmin(ctx, db, "registrar@example.edu")
	assert.NoError(err, "unexpected error occurred while registering the administrator")

	// Verify that all mock expectations were met.
	assert.NoError(mock.ExpectationsWereMet(), "not all mock expectations were met")
}

func TestInitSchema(t *testing.T) {
	assert := assert.New(t)

	db, mock, err := sqlmock.New()
	require.NoError(t, err, "unable to open the mock database connection")
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS notifications").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(InitSchema(context.Background(), db))
	assert.NoError(mock.ExpectationsWereMet(), "not all mock expectations were met")
}
