// Package handlers turns scholarship application workflow events into notifications.
package handlers

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"github.com/scholarship-portal/notification-service/notifications"
)

var log = logrus.WithFields(logrus.Fields{"package": "handlers"})

// Routing keys of the application workflow events that produce notifications.
const (
	ApplicationSubmittedKey = "events.scholarship.application.submitted"
	ApplicationApprovedKey  = "events.scholarship.application.approved"
	ApplicationRejectedKey  = "events.scholarship.application.rejected"
)

// MessageHandler describes the interface used to handle AMQP messages.
type MessageHandler interface {
	HandleMessage(ctx context.Context, delivery amqp.Delivery) error
}

// Notifier creates notifications without failing the caller.
type Notifier interface {
	Notify(ctx context.Context, req *notifications.CreateRequest) notifications.Outcome
}

// InitMessageHandlers returns a map from routing key to message handler.
func InitMessageHandlers(notifier Notifier) map[string]MessageHandler {
	return map[string]MessageHandler{
		ApplicationSubmittedKey: NewApplicationSubmitted(notifier),
		ApplicationApprovedKey:  NewApplicationReviewed(notifier, true),
		ApplicationRejectedKey:  NewApplicationReviewed(notifier, false),
	}
}
