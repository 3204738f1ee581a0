package db

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarship-portal/notification-service/model"
)

var errTest = errors.New("test error")

var testColumns = []string{"id", "user_id", "user_type", "type", "title", "message", "data", "is_read", "created_at"}

func testTimestamp() time.Time {
	return time.Date(2024, time.March, 4, 9, 30, 0, 0, time.UTC)
}

func TestInsertNotifications(t *testing.T) {
	assert := assert.New(t)

	db, mock, err := sqlmock.New()
	ctx := context.Background()
	require.NoError(t, err, "unable to open the mock database connection")
	defer db.Close()

	// Set up the expectations.
	createdAt := testTimestamp()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notifications (id,user_id,user_type,type,title,message,data,is_read,created_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9),($10,")).
		WithArgs(
			"n1", "admin1@example.edu", "admin", "application_submitted", "New Application", "a", sqlmock.AnyArg(), false, createdAt,
			"n2", "admin2@example.edu", "admin", "application_submitted", "New Application", "a", sqlmock.AnyArg(), false, createdAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 2))

	// Save two notifications.
	notifications := []model.Notification{
		{ID: "n1", UserID: "admin1@example.edu", UserType: model.UserTypeAdmin, Type: "application_submitted", Title: "New Application", Message: "a", CreatedAt: createdAt},
		{ID: "n2", UserID: "admin2@example.edu", UserType: model.UserTypeAdmin, Type: "application_submitted", Title: "New Application", Message: "a", CreatedAt: createdAt},
	}
	err = InsertNotifications(ctx, db, notifications)
	assert.NoError(err, "unexpected error occurred while saving notifications")

	// Verify that all mock expectations were met.
	assert.NoError(mock.ExpectationsWereMet(), "not all mock expectations were met")
}

func TestInsertNotificationsEmpty(t *testing.T) {
	assert := assert.New(t)

	db, mock, err := sqlmock.New()
	require.NoError(t, err, "unable to open the mock database connection")
	defer db.Close()

	// No statement should be executed at all.
	err = InsertNotifications(context.Background(), db, nil)
	assert.NoError(err)
	assert.NoError(mock.ExpectationsWereMet(), "not all mock expectations were met")
}

func TestInsertNotificationsFailure(t *testing.T) {
	assert := assert.New(t)

	db, mock, err := sqlmock.New()
	require.NoError(t, err, "unable to open the mock database connection")
	defer db.Close()

	mock.ExpectExec("INSERT INTO notifications").WillReturnError(errTest)

	err = InsertNotifications(context.Background(), db, []model.Notification{{ID: "n1", UserID: "s1", UserType: model.UserTypeStudent}})
	assert.Error(err)
	assert.Contains(err.Error(), "unable to save notifications")
	assert.NoError(mock.ExpectationsWereMet(), "not all mock expectations were met")
}

func TestListNotifications(t *testing.T) {
	assert := assert.New(t)

	db, mock, err := sqlmock.New()
	ctx := context.Background()
	require.NoError(t, err, "unable to open the mock database connection")
	defer db.Close()

	// Set up the expectations.
	createdAt := testTimestamp()
	rows := sqlmock.NewRows(testColumns).
		AddRow("n2", "FA22-BCS-001", "student", "application_approved", "Approved", "b", []byte(`{"applicationId":"a1"}`), false, createdAt).
		AddRow("n1", "FA22-BCS-001", "student", "application_submitted", "Received", "a", []byte(`{}`), true, createdAt.Add(-time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, user_type, type, title, message, data, is_read, created_at FROM notifications WHERE user_id = $1 AND user_type = $2 AND is_read = $3 ORDER BY created_at DESC LIMIT 10")).
		WithArgs("FA22-BCS-001", "student", false).
		WillReturnRows(rows)

	// List the notifications.
	filter := &model.Filter{
		Owner:      model.Owner{UserID: "FA22-BCS-001", UserType: model.UserTypeStudent},
		UnreadOnly: true,
	}
	notifications, err := ListNotifications(ctx, db, filter, 10)
	assert.NoError(err, "unexpected error occurred while listing notifications")
	if assert.Len(notifications, 2) {
		assert.Equal("n2", notifications[0].ID)
		assert.Equal(model.UserTypeStudent, notifications[0].UserType)
		assert.Equal("a1", notifications[0].Data["applicationId"])
		assert.True(notifications[1].IsRead)
		assert.NotNil(notifications[1].Data)
	}

	// Verify that all mock expectations were met.
	assert.NoError(mock.ExpectationsWereMet(), "not all mock expectations were met")
}

func TestCountNotifications(t *testing.T) {
	assert := assert.New(t)

	db, mock, err := sqlmock.New()
	ctx := context.Background()
	require.NoError(t, err, "unable to open the mock database connection")
	defer db.Close()

	// Set up the expectations.
	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM notifications WHERE user_id = $1 AND user_type = $2 AND is_read = $3")).
		WithArgs("FA22-BCS-001", "student", false).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(73)))

	// Count the unread notifications.
	filter := &model.Filter{
		Owner:      model.Owner{UserID: "FA22-BCS-001", UserType: model.UserTypeStudent},
		UnreadOnly: true,
	}
	total, err := CountNotifications(ctx, db, filter)
	assert.NoError(err, "unexpected error occurred while counting notifications")
	assert.Equal(int64(73), total)

	// Verify that all mock expectations were met.
	assert.NoError(mock.ExpectationsWereMet(), "not all mock expectations were met")
}

func TestMarkNotificationsReadByID(t *testing.T) {
	assert := assert.New(t)

	db, mock, err := sqlmock.New()
	ctx := context.Background()
	require.NoError(t, err, "unable to open the mock database connection")
	defer db.Close()

	// Set up the expectations.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET is_read = $1 WHERE id IN ($2,$3)")).
		WithArgs(true, "n1", "n2").
		WillReturnResult(sqlmock.NewResult(0, 2))

	// Mark the notifications as read.
	count, err := MarkNotificationsRead(ctx, db, &model.Filter{IDs: []string{"n1", "n2"}})
	assert.NoError(err, "unexpected error occurred while marking notifications as read")
	assert.Equal(int64(2), count)

	// Verify that all mock expectations were met.
	assert.NoError(mock.ExpectationsWereMet(), "not all mock expectations were met")
}

func TestMarkNotificationsReadForOwner(t *testing.T) {
	assert := assert.New(t)

	db, mock, err := sqlmock.New()
	ctx := context.Background()
	require.NoError(t, err, "unable to open the mock database connection")
	defer db.Close()

	// Set up the expectations.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET is_read = $1 WHERE user_id = $2 AND user_type = $3 AND is_read = $4")).
		WithArgs(true, "FA22-BCS-001", "student", false).
		WillReturnResult(sqlmock.NewResult(0, 5))

	// Mark all of the user's notifications as read.
	filter := &model.Filter{
		Owner:      model.Owner{UserID: "FA22-BCS-001", UserType: model.UserTypeStudent},
		UnreadOnly: true,
	}
	count, err := MarkNotificationsRead(ctx, db, filter)
	assert.NoError(err, "unexpected error occurred while marking notifications as read")
	assert.Equal(int64(5), count)

	// Verify that all mock expectations were met.
	assert.NoError(mock.ExpectationsWereMet(), "not all mock expectations were met")
}

func TestMarkNotificationsReadRequiresFilter(t *testing.T) {
	assert := assert.New(t)

	db, mock, err := sqlmock.New()
	require.NoError(t, err, "unable to open the mock database connection")
	defer db.Close()

	_, err = MarkNotificationsRead(context.Background(), db, &model.Filter{})
	assert.Error(err)
	assert.NoError(mock.ExpectationsWereMet(), "not all mock expectations were met")
}

func TestDeleteNotifications(t *testing.T) {
	assert := assert.New(t)

	db, mock, err := sqlmock.New()
	ctx := context.Background()
	require.NoError(t, err, "unable to open the mock database connection")
	defer db.Close()

	// Set up the expectations.
	cutoff := testTimestamp()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM notifications WHERE user_id = $1 AND user_type = $2 AND created_at < $3")).
		WithArgs("admin1@example.edu", "admin", cutoff).
		WillReturnResult(sqlmock.NewResult(0, 4))

	// Delete the old notifications.
	filter := &model.Filter{
		Owner:         model.Owner{UserID: "admin1@example.edu", UserType: model.UserTypeAdmin},
		CreatedBefore: cutoff,
	}
	count, err := DeleteNotifications(ctx, db, filter)
	assert.NoError(err, "unexpected error occurred while deleting notifications")
	assert.Equal(int64(4), count)

	// Verify that all mock expectations were met.
	assert.NoError(mock.ExpectationsWereMet(), "not all mock expectations were met")
}

func TestDeleteNotificationsUnknownCount(t *testing.T) {
	assert := assert.New(t)

	db, mock, err := sqlmock.New()
	require.NoError(t, err, "unable to open the mock database connection")
	defer db.Close()

	// The driver can't report the number of affected rows.
	cutoff := testTimestamp()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM notifications WHERE created_at < $1")).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewErrorResult(errTest))

	count, err := DeleteNotifications(context.Background(), db, &model.Filter{CreatedBefore: cutoff})
	assert.NoError(err)
	assert.Equal(int64(0), count)
	assert.NoError(mock.ExpectationsWereMet(), "not all mock expectations were met")
}
