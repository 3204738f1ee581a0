package db

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"

	sq "github.com/Masterminds/squirrel"

	"github.com/scholarship-portal/notification-service/model"
)

// notificationColumns lists the columns of the notifications table in the order they're scanned.
var notificationColumns = []string{
	"id",
	"user_id",
	"user_type",
	"type",
	"title",
	"message",
	"data",
	"is_read",
	"created_at",
}

// filterConditions converts a notification filter to the list of conditions for a WHERE clause.
func filterConditions(filter *model.Filter) []sq.Sqlizer {
	conditions := make([]sq.Sqlizer, 0)
	if len(filter.IDs) > 0 {
		conditions = append(conditions, sq.Eq{"id": filter.IDs})
	}
	if filter.Owner.UserID != "" {
		conditions = append(conditions, sq.Eq{"user_id": filter.Owner.UserID})
	}
	if filter.Owner.UserType != "" {
		conditions = append(conditions, sq.Eq{"user_type": string(filter.Owner.UserType)})
	}
	if filter.UnreadOnly {
		conditions = append(conditions, sq.Eq{"is_read": false})
	}
	if !filter.CreatedBefore.IsZero() {
		conditions = append(conditions, sq.Lt{"created_at": filter.CreatedBefore})
	}
	return conditions
}

// InsertNotifications saves one or more notifications in a single statement.
func InsertNotifications(ctx context.Context, db Queryer, notifications []model.Notification) error {
	wrapMsg := "unable to save notifications"

	if len(notifications) == 0 {
		return nil
	}

	// Build the statement to insert the notifications.
	builder := psql.
		Insert("notifications").
		Columns(notificationColumns...)
	for _, n := range notifications {
		data := n.Data
		if data == nil {
			data = map[string]interface{}{}
		}
		dataJSON, err := json.Marshal(data)
		if err != nil {
			return errors.Wrap(err, wrapMsg)
		}
		builder = builder.Values(
			n.ID,
			n.UserID,
			string(n.UserType),
			n.Type,
			n.Title,
			n.Message,
			dataJSON,
			n.IsRead,
			n.CreatedAt,
		)
	}
	statement, args, err := builder.ToSql()
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	// Execute the statement.
	if _, err = db.ExecContext(ctx, statement, args...); err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	return nil
}

// ListNotifications returns the notifications matching the filter, newest first. A limit of zero means no limit.
func ListNotifications(ctx context.Context, db Queryer, filter *model.Filter, limit uint64) ([]model.Notification, error) {
	wrapMsg := "unable to list notifications"

	// Build the query.
	builder := psql.
		Select(notificationColumns...).
		From("notifications").
		OrderBy("created_at DESC")
	for _, condition := range filterConditions(filter) {
		builder = builder.Where(condition)
	}
	if limit > 0 {
		builder = builder.Limit(limit)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	// Query the database.
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}
	defer rows.Close()

	notifications := make([]model.Notification, 0)
	for rows.Next() {
		var n model.Notification
		var userType string
		var dataJSON []byte
		err = rows.Scan(&n.ID, &n.UserID, &userType, &n.Type, &n.Title, &n.Message, &dataJSON, &n.IsRead, &n.CreatedAt)
		if err != nil {
			return nil, errors.Wrap(err, wrapMsg)
		}
		n.UserType = model.UserType(userType)
		n.Data = map[string]interface{}{}
		if len(dataJSON) > 0 {
			if err = json.Unmarshal(dataJSON, &n.Data); err != nil {
				return nil, errors.Wrap(err, wrapMsg)
			}
		}
		notifications = append(notifications, n)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	return notifications, nil
}

// CountNotifications counts the notifications matching the filter.
func CountNotifications(ctx context.Context, db Queryer, filter *model.Filter) (int64, error) {
	wrapMsg := "unable to count notifications"
	var total int64

	// Build the statement to count the notifications.
	builder := psql.
		Select("count(*)").
		From("notifications")
	for _, condition := range filterConditions(filter) {
		builder = builder.Where(condition)
	}
	statement, args, err := builder.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, wrapMsg)
	}

	// Execute the statement.
	err = db.QueryRowContext(ctx, statement, args...).Scan(&total)
	if err != nil {
		return 0, errors.Wrap(err, wrapMsg)
	}

	return total, nil
}

// MarkNotificationsRead marks every notification matching the filter as read. An empty filter is rejected so that a
// caller can't accidentally update every notification in the database.
func MarkNotificationsRead(ctx context.Context, db Queryer, filter *model.Filter) (int64, error) {
	wrapMsg := "unable to mark notifications as read"

	conditions := filterConditions(filter)
	if len(conditions) == 0 {
		return 0, errors.New(wrapMsg + ": no filter conditions were provided")
	}

	// Build the update statement.
	builder := psql.
		Update("notifications").
		Set("is_read", true)
	for _, condition := range conditions {
		builder = builder.Where(condition)
	}
	statement, args, err := builder.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, wrapMsg)
	}

	// Execute the statement.
	result, err := db.ExecContext(ctx, statement, args...)
	if err != nil {
		return 0, errors.Wrap(err, wrapMsg)
	}

	return rowsAffected(result), nil
}

// DeleteNotifications deletes every notification matching the filter.
func DeleteNotifications(ctx context.Context, db Queryer, filter *model.Filter) (int64, error) {
	wrapMsg := "unable to delete notifications"

	// Build the delete statement.
	builder := psql.Delete("notifications")
	for _, condition := range filterConditions(filter) {
		builder = builder.Where(condition)
	}
	statement, args, err := builder.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, wrapMsg)
	}

	// Execute the statement.
	result, err := db.ExecContext(ctx, statement, args...)
	if err != nil {
		return 0, errors.Wrap(err, wrapMsg)
	}

	return rowsAffected(result), nil
}

// rowsAffected returns the number of rows affected by a statement, or zero if the driver can't tell us.
func rowsAffected(result sql.Result) int64 {
	count, err := result.RowsAffected()
	if err != nil {
		return 0
	}
	return count
}

// Store provides the notification service with access to the database.
type Store struct {
	db Queryer
}

// NewStore returns a store backed by the given database handle.
func NewStore(db Queryer) *Store {
	return &Store{db: db}
}

// Insert saves notifications.
func (s *Store) Insert(ctx context.Context, notifications []model.Notification) error {
	return InsertNotifications(ctx, s.db, notifications)
}

// List returns notifications matching a filter, newest first.
func (s *Store) List(ctx context.Context, filter *model.Filter, limit uint64) ([]model.Notification, error) {
	return ListNotifications(ctx, s.db, filter, limit)
}

// Count counts notifications matching a filter.
func (s *Store) Count(ctx context.Context, filter *model.Filter) (int64, error) {
	return CountNotifications(ctx, s.db, filter)
}

// MarkRead marks notifications matching a filter as read.
func (s *Store) MarkRead(ctx context.Context, filter *model.Filter) (int64, error) {
	return MarkNotificationsRead(ctx, s.db, filter)
}

// Delete deletes notifications matching a filter.
func (s *Store) Delete(ctx context.Context, filter *model.Filter) (int64, error) {
	return DeleteNotifications(ctx, s.db, filter)
}

// ListAdminIDs returns the identifiers of all administrators.
func (s *Store) ListAdminIDs(ctx context.Context) ([]string, error) {
	return ListAdminIDs(ctx, s.db)
}

// AddAdmin registers an administrator.
func (s *Store) AddAdmin(ctx context.Context, email string) error {
	return AddAdmin(ctx, s.db, email)
}
