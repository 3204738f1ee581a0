package handlerset

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/cyverse-de/messaging/v9"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"github.com/scholarship-portal/notification-service/common"
	"github.com/scholarship-portal/notification-service/handlers"
	"github.com/scholarship-portal/notification-service/model"
)

var log = logrus.WithFields(logrus.Fields{"package": "handlerset"})

// prefetchCount is the number of unacknowledged deliveries the broker may send to each consumer.
const prefetchCount = 100

// notificationCreatedKeyPrefix is the routing key prefix for notification created events. The user type is appended.
const notificationCreatedKeyPrefix = "events.notification.created."

// amqpClient lists the methods of messaging.Client used by the handler set.
type amqpClient interface {
	AddConsumer(exchange, exchangeType, queue, key string, handler messaging.MessageHandler, prefetchCount int)
	SetupPublishing(exchange string) error
	Publish(key string, body []byte) error
	Listen()
	Close()
}

// HandlerSet represents a set of AMQP message handlers along with the client used to publish notification events.
type HandlerSet struct {
	amqpClient   amqpClient
	amqpSettings *common.AMQPSettings
	handlerFor   map[string]handlers.MessageHandler
}

// New creates a new handler set. No messages are consumed until Listen is called.
func New(amqpSettings *common.AMQPSettings) (*HandlerSet, error) {
	wrapMsg := "unable to create the message handler set"

	// Create the AMQP client.
	client, err := messaging.NewClient(amqpSettings.URI, true)
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	// Prepare the client for publishing notification events.
	if err = client.SetupPublishing(amqpSettings.ExchangeName); err != nil {
		client.Close()
		return nil, errors.Wrap(err, wrapMsg)
	}

	return newHandlerSet(client, amqpSettings), nil
}

func newHandlerSet(client amqpClient, amqpSettings *common.AMQPSettings) *HandlerSet {
	return &HandlerSet{
		amqpClient:   client,
		amqpSettings: amqpSettings,
		handlerFor:   map[string]handlers.MessageHandler{},
	}
}

// Listen registers a consumer for every routing key in handlerFor and then blocks, dispatching deliveries.
func (hs *HandlerSet) Listen(handlerFor map[string]handlers.MessageHandler) {
	hs.handlerFor = handlerFor

	keys := make([]string, 0, len(hs.handlerFor))
	for key := range hs.handlerFor {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		hs.amqpClient.AddConsumer(
			hs.amqpSettings.ExchangeName,
			hs.amqpSettings.ExchangeType,
			hs.amqpSettings.QueueName,
			key,
			hs.dispatch,
			prefetchCount,
		)
		log.Infof("listening for %s", key)
	}

	hs.amqpClient.Listen()
}

// dispatch passes a delivery to the handler registered for its routing key. Every delivery is acknowledged, because
// notifications are a best-effort side effect of the workflow that published the event.
func (hs *HandlerSet) dispatch(ctx context.Context, delivery amqp.Delivery) {
	logger := log.WithFields(logrus.Fields{"key": delivery.RoutingKey})

	handler, ok := hs.handlerFor[delivery.RoutingKey]
	if !ok {
		logger.Warn("no handler is registered for the routing key")
	} else if err := handler.HandleMessage(ctx, delivery); err != nil {
		if handlers.IsRecoverable(err) {
			logger.Warnf("unable to process message: %s", err)
		} else {
			logger.Errorf("discarding message: %s", err)
		}
	}

	if err := delivery.Ack(false); err != nil {
		logger.Errorf("unable to acknowledge message: %s", err)
	}
}

// notificationEvent is the body of a notification created event.
type notificationEvent struct {
	Timestamp    string              `json:"timestamp"`
	Notification *model.Notification `json:"notification"`
}

// PublishNotification announces a newly created notification on the exchange.
func (hs *HandlerSet) PublishNotification(_ context.Context, notification *model.Notification) error {
	wrapMsg := "unable to publish the notification created event"

	body, err := json.Marshal(&notificationEvent{
		Timestamp:    common.FormatTimestamp(notification.CreatedAt),
		Notification: notification,
	})
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	key := notificationCreatedKeyPrefix + string(notification.UserType)
	if err = hs.amqpClient.Publish(key, body); err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	return nil
}

// Close closes a message handler set.
func (hs *HandlerSet) Close() {
	hs.amqpClient.Close()
}
