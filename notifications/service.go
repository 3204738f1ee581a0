// Package notifications contains the business rules for creating, listing, reading and purging portal notifications.
package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/scholarship-portal/notification-service/common"
	"github.com/scholarship-portal/notification-service/model"
)

var log = logrus.WithFields(logrus.Fields{"package": "notifications"})

const (
	// DefaultListLimit is the number of notifications returned when the caller doesn't specify a limit.
	DefaultListLimit = 50

	// MaxListLimit is the largest number of notifications returned by a single list request.
	MaxListLimit = 500

	// DefaultPurgeDays is the age in days past which notifications are purged by default.
	DefaultPurgeDays = 30
)

// Store describes the database operations the service needs.
type Store interface {
	Insert(ctx context.Context, notifications []model.Notification) error
	List(ctx context.Context, filter *model.Filter, limit uint64) ([]model.Notification, error)
	Count(ctx context.Context, filter *model.Filter) (int64, error)
	MarkRead(ctx context.Context, filter *model.Filter) (int64, error)
	Delete(ctx context.Context, filter *model.Filter) (int64, error)
}

// AdminRegistry resolves the set of portal administrators.
type AdminRegistry interface {
	ListAdminIDs(ctx context.Context) ([]string, error)
	AddAdmin(ctx context.Context, email string) error
}

// Publisher announces newly created notifications to other services.
type Publisher interface {
	PublishNotification(ctx context.Context, notification *model.Notification) error
}

// Service implements the notification operations.
type Service struct {
	store     Store
	admins    AdminRegistry
	publisher Publisher
	now       func() time.Time
	newID     func() string
}

// Option customizes a Service.
type Option func(*Service)

// WithPublisher causes the service to announce every notification it creates.
func WithPublisher(publisher Publisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

// WithClock replaces the function used to obtain the current time.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithIDGenerator replaces the function used to assign notification identifiers.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		s.newID = newID
	}
}

// New returns a new notification service.
func New(store Store, admins AdminRegistry, opts ...Option) *Service {
	s := &Service{
		store:  store,
		admins: admins,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRequest describes a notification to be created.
type CreateRequest struct {
	Recipient model.Recipient
	Type      string
	Title     string
	Message   string
	Data      map[string]interface{}
}

func (r *CreateRequest) validate() error {
	switch r.Recipient.Mode {
	case model.RecipientSingle, "":
		if r.Recipient.UserID == "" {
			return NewValidationError("userId is required")
		}
		if r.Recipient.UserType == "" {
			return NewValidationError("userType is required")
		}
		if !r.Recipient.UserType.Valid() {
			return NewValidationError("invalid userType: %s", r.Recipient.UserType)
		}
	case model.RecipientAllAdmins:
	default:
		return NewValidationError("invalid recipient mode: %s", r.Recipient.Mode)
	}
	if r.Type == "" {
		return NewValidationError("type is required")
	}
	if r.Title == "" {
		return NewValidationError("title is required")
	}
	if r.Message == "" {
		return NewValidationError("message is required")
	}
	return nil
}

// Create stores a notification for a single user, or one notification per administrator when the request is
// addressed to all administrators. The stored notifications are returned.
func (s *Service) Create(ctx context.Context, req *CreateRequest) ([]model.Notification, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	// Determine the recipients.
	var recipients []model.Owner
	if req.Recipient.Mode == model.RecipientAllAdmins {
		adminIDs, err := s.admins.ListAdminIDs(ctx)
		if err != nil {
			return nil, NewStorageError("list administrators", err)
		}
		for _, adminID := range adminIDs {
			recipients = append(recipients, model.Owner{UserID: adminID, UserType: model.UserTypeAdmin})
		}
	} else {
		recipients = []model.Owner{{UserID: req.Recipient.UserID, UserType: req.Recipient.UserType}}
	}
	if len(recipients) == 0 {
		log.Debugf("no administrators are registered; skipping %s notification", req.Type)
		return []model.Notification{}, nil
	}

	// Build one notification per recipient.
	data := req.Data
	if data == nil {
		data = map[string]interface{}{}
	}
	createdAt := s.now().UTC()
	notifications := make([]model.Notification, len(recipients))
	for i, recipient := range recipients {
		notifications[i] = model.Notification{
			ID:        s.newID(),
			UserID:    recipient.UserID,
			UserType:  recipient.UserType,
			Type:      req.Type,
			Title:     req.Title,
			Message:   req.Message,
			Data:      data,
			IsRead:    false,
			CreatedAt: createdAt,
		}
	}

	// Store the notifications.
	if err := s.store.Insert(ctx, notifications); err != nil {
		return nil, NewStorageError("save notifications", err)
	}

	s.announce(ctx, notifications)

	return notifications, nil
}

// announce publishes the newly created notifications. Publication failures are logged and otherwise ignored.
func (s *Service) announce(ctx context.Context, notifications []model.Notification) {
	if s.publisher == nil {
		return
	}
	for i := range notifications {
		n := &notifications[i]
		if err := s.publisher.PublishNotification(ctx, n); err != nil {
			log.WithFields(logrus.Fields{"id": n.ID, "user": n.UserID}).
				Warnf("unable to publish notification: %s", err)
		}
	}
}

// Outcome is the result of a notification that was created as a side effect of some other action.
type Outcome struct {
	Notifications []model.Notification
	Err           error
}

// Succeeded returns true if the notifications were created.
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// Notify creates notifications and reports the result as an Outcome instead of an error, so that the caller can log
// the failure and carry on with its own work.
func (s *Service) Notify(ctx context.Context, req *CreateRequest) Outcome {
	notifications, err := s.Create(ctx, req)
	return Outcome{Notifications: notifications, Err: err}
}

// ListRequest describes a request to list a user's notifications.
type ListRequest struct {
	Owner      model.Owner
	Limit      int
	UnreadOnly bool
}

// ListResult contains a page of notifications along with the user's total number of unread notifications.
type ListResult struct {
	Notifications []model.Notification `json:"notifications"`
	UnreadCount   int64                `json:"unreadCount"`
}

func validateOwner(owner model.Owner) error {
	if owner.UserID == "" || owner.UserType == "" {
		return NewValidationError("userId and userType are required")
	}
	if !owner.UserType.Valid() {
		return NewValidationError("invalid userType: %s", owner.UserType)
	}
	return nil
}

// List returns the most recent notifications for a user along with the number of unread notifications the user has.
// The unread count is not affected by the limit.
func (s *Service) List(ctx context.Context, req *ListRequest) (*ListResult, error) {
	if err := validateOwner(req.Owner); err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	listFilter := &model.Filter{Owner: req.Owner, UnreadOnly: req.UnreadOnly}
	notifications, err := s.store.List(ctx, listFilter, uint64(limit))
	if err != nil {
		return nil, NewStorageError("list notifications", err)
	}

	unreadFilter := &model.Filter{Owner: req.Owner, UnreadOnly: true}
	unreadCount, err := s.store.Count(ctx, unreadFilter)
	if err != nil {
		return nil, NewStorageError("count unread notifications", err)
	}

	return &ListResult{Notifications: notifications, UnreadCount: unreadCount}, nil
}

// MarkReadRequest selects the notifications to mark as read. Either IDs must be non-empty, or MarkAll must be set
// along with a complete owner. If IDs and an owner are both supplied, only the owner's notifications are updated.
type MarkReadRequest struct {
	IDs     []string
	MarkAll bool
	Owner   model.Owner
}

// MarkRead marks notifications as read. When specific notifications are requested, the number of distinct
// notification IDs is returned. When all notifications are requested, the number of updated rows is returned.
func (s *Service) MarkRead(ctx context.Context, req *MarkReadRequest) (int64, error) {
	ids := distinct(req.IDs)

	// Mark specific notifications as read.
	if len(ids) > 0 {
		filter := &model.Filter{IDs: ids}
		if !req.Owner.IsZero() {
			if err := validateOwner(req.Owner); err != nil {
				return 0, err
			}
			filter.Owner = req.Owner
		}
		if _, err := s.store.MarkRead(ctx, filter); err != nil {
			return 0, NewStorageError("mark notifications as read", err)
		}
		return int64(len(ids)), nil
	}

	// Mark all of the user's notifications as read.
	if req.MarkAll && req.Owner.UserID != "" && req.Owner.UserType != "" {
		if err := validateOwner(req.Owner); err != nil {
			return 0, err
		}
		count, err := s.store.MarkRead(ctx, &model.Filter{Owner: req.Owner, UnreadOnly: true})
		if err != nil {
			return 0, NewStorageError("mark all notifications as read", err)
		}
		return count, nil
	}

	return 0, NewValidationError("provide id list or mark-all with user identity")
}

// PurgeRequest describes notifications to delete because of their age. The owner is optional. The purge is limited to
// the owner's notifications only when both the user ID and the user type are supplied; a partial owner is ignored and
// the purge applies to every user.
type PurgeRequest struct {
	Days  int
	Owner model.Owner
}

// PurgeOlderThan deletes notifications created more than the given number of days ago. A notification that is exactly
// that old is kept. The number of deleted notifications is returned if the database reports it, or zero otherwise.
func (s *Service) PurgeOlderThan(ctx context.Context, req *PurgeRequest) (int64, error) {
	if req.Days < 0 {
		return 0, NewValidationError("days must not be negative")
	}

	cutoff := s.now().UTC().Add(-time.Duration(req.Days) * 24 * time.Hour)
	filter := &model.Filter{CreatedBefore: cutoff}
	if req.Owner.UserID != "" && req.Owner.UserType != "" {
		filter.Owner = req.Owner
	} else if !req.Owner.IsZero() {
		log.WithFields(logrus.Fields{"user": req.Owner.UserID, "userType": req.Owner.UserType}).
			Warn("incomplete owner in purge request; purging notifications for all users")
	}

	count, err := s.store.Delete(ctx, filter)
	if err != nil {
		return 0, NewStorageError("purge notifications", err)
	}

	log.WithFields(logrus.Fields{"days": req.Days, "user": filter.Owner.UserID}).
		Infof("purged %d notifications", count)

	return count, nil
}

// RegisterAdmin adds an administrator to the registry used to resolve notifications addressed to all administrators.
func (s *Service) RegisterAdmin(ctx context.Context, email string) error {
	if email == "" {
		return NewValidationError("email is required")
	}
	normalized, err := common.NormalizeEmailAddress(email)
	if err != nil {
		return NewValidationError("invalid email address %s: %s", email, err)
	}
	if err = s.admins.AddAdmin(ctx, normalized); err != nil {
		return NewStorageError("register administrator", err)
	}
	return nil
}

// distinct removes duplicate and empty IDs while preserving order.
func distinct(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)
	}
	return result
}
