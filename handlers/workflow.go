package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"github.com/scholarship-portal/notification-service/model"
	"github.com/scholarship-portal/notification-service/notifications"
)

// Notification types produced by the application workflow.
const (
	TypeApplicationSubmitted = "application_submitted"
	TypeApplicationApproved  = "application_approved"
	TypeApplicationRejected  = "application_rejected"
)

// ApplicationEvent represents a deserialized scholarship application workflow event.
type ApplicationEvent struct {
	ApplicationID    string `json:"applicationId"`
	ScholarshipID    string `json:"scholarshipId"`
	ScholarshipTitle string `json:"scholarshipTitle"`
	StudentID        string `json:"studentId"`
	StudentName      string `json:"studentName"`
	Reason           string `json:"reason"`
}

// parseApplicationEvent extracts an application event from an AMQP delivery.
func parseApplicationEvent(delivery amqp.Delivery) (*ApplicationEvent, error) {
	var event ApplicationEvent
	if err := json.Unmarshal(delivery.Body, &event); err != nil {
		return nil, NewUnrecoverableError("unable to parse message body: %s", err.Error())
	}
	if event.StudentID == "" {
		return nil, NewUnrecoverableError("no student ID found in the message body")
	}
	if event.ScholarshipTitle == "" {
		event.ScholarshipTitle = "the scholarship"
	}
	if event.StudentName == "" {
		event.StudentName = event.StudentID
	}
	return &event, nil
}

// data returns the notification payload used by the portal to link back to the application.
func (e *ApplicationEvent) data() map[string]interface{} {
	return map[string]interface{}{
		"applicationId": e.ApplicationID,
		"scholarshipId": e.ScholarshipID,
	}
}

// notifyAll sends each of the notifications, continuing after failures. The failures are logged and returned as a
// single recoverable error.
func notifyAll(ctx context.Context, notifier Notifier, event *ApplicationEvent, reqs ...*notifications.CreateRequest) error {
	var failures []string
	for _, req := range reqs {
		outcome := notifier.Notify(ctx, req)
		if outcome.Succeeded() {
			continue
		}
		log.WithFields(logrus.Fields{
			"application": event.ApplicationID,
			"type":        req.Type,
			"mode":        req.Recipient.Mode,
		}).Errorf("unable to create notification: %s", outcome.Err)
		failures = append(failures, outcome.Err.Error())
	}
	if len(failures) > 0 {
		return NewRecoverableError("unable to create %d notification(s): %s", len(failures), strings.Join(failures, "; "))
	}
	return nil
}

// ApplicationSubmitted notifies the student and every administrator when an application is submitted.
type ApplicationSubmitted struct {
	notifier Notifier
}

// NewApplicationSubmitted returns a new handler for application submission events.
func NewApplicationSubmitted(notifier Notifier) *ApplicationSubmitted {
	return &ApplicationSubmitted{notifier: notifier}
}

// HandleMessage handles a single AMQP delivery.
func (h *ApplicationSubmitted) HandleMessage(ctx context.Context, delivery amqp.Delivery) error {
	event, err := parseApplicationEvent(delivery)
	if err != nil {
		return err
	}

	studentRequest := &notifications.CreateRequest{
		Recipient: model.SingleRecipient(event.StudentID, model.UserTypeStudent),
		Type:      TypeApplicationSubmitted,
		Title:     "Application Received",
		Message:   fmt.Sprintf("Your application for %s has been received and is under review.", event.ScholarshipTitle),
		Data:      event.data(),
	}
	adminRequest := &notifications.CreateRequest{
		Recipient: model.AdminsRecipient(),
		Type:      TypeApplicationSubmitted,
		Title:     "New Application Submitted",
		Message:   fmt.Sprintf("%s has applied for %s.", event.StudentName, event.ScholarshipTitle),
		Data:      event.data(),
	}

	return notifyAll(ctx, h.notifier, event, studentRequest, adminRequest)
}

// ApplicationReviewed notifies the student when an administrator approves or rejects an application.
type ApplicationReviewed struct {
	notifier Notifier
	approved bool
}

// NewApplicationReviewed returns a new handler for application review events.
func NewApplicationReviewed(notifier Notifier, approved bool) *ApplicationReviewed {
	return &ApplicationReviewed{notifier: notifier, approved: approved}
}

// HandleMessage handles a single AMQP delivery.
func (h *ApplicationReviewed) HandleMessage(ctx context.Context, delivery amqp.Delivery) error {
	event, err := parseApplicationEvent(delivery)
	if err != nil {
		return err
	}

	req := &notifications.CreateRequest{
		Recipient: model.SingleRecipient(event.StudentID, model.UserTypeStudent),
		Data:      event.data(),
	}
	if h.approved {
		req.Type = TypeApplicationApproved
		req.Title = "Application Approved"
		req.Message = fmt.Sprintf("Congratulations! Your application for %s has been approved.", event.ScholarshipTitle)
	} else {
		req.Type = TypeApplicationRejected
		req.Title = "Application Rejected"
		req.Message = fmt.Sprintf("Your application for %s was not approved.", event.ScholarshipTitle)
		if event.Reason != "" {
			req.Message += " Reason: " + event.Reason
		}
	}

	return notifyAll(ctx, h.notifier, event, req)
}
