// Package api exposes the notification service over HTTP.
package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/scholarship-portal/notification-service/model"
	"github.com/scholarship-portal/notification-service/notifications"
)

var log = logrus.WithFields(logrus.Fields{"package": "api"})

// NotificationService describes the operations the HTTP handlers call.
type NotificationService interface {
	Create(ctx context.Context, req *notifications.CreateRequest) ([]model.Notification, error)
	List(ctx context.Context, req *notifications.ListRequest) (*notifications.ListResult, error)
	MarkRead(ctx context.Context, req *notifications.MarkReadRequest) (int64, error)
	PurgeOlderThan(ctx context.Context, req *notifications.PurgeRequest) (int64, error)
	RegisterAdmin(ctx context.Context, email string) error
}

// App contains the HTTP handlers for the notification service.
type App struct {
	service     NotificationService
	serviceName string
	version     string
}

// New returns a new App.
func New(service NotificationService, serviceName, version string) *App {
	return &App{service: service, serviceName: serviceName, version: version}
}

// Router builds the gin engine that routes requests to the handlers.
func (a *App) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(Logger())

	router.GET("/", a.Status)

	notificationRoutes := router.Group("/notifications")
	notificationRoutes.GET("", a.ListNotifications)
	notificationRoutes.POST("", a.CreateNotification)
	notificationRoutes.PUT("/read", a.MarkNotificationsRead)
	notificationRoutes.DELETE("/cleanup", a.PurgeNotifications)

	router.POST("/admins", a.RegisterAdmin)

	return router
}

// errorResponse sends the response for an error returned by the notification service.
func errorResponse(c *gin.Context, err error) {
	if notifications.IsValidationError(err) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	log.WithFields(logrus.Fields{"path": c.Request.URL.Path}).Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// bindingError converts an error returned while binding a request body to a validation error.
func bindingError(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		fields := make([]string, len(validationErrors))
		for i, fieldErr := range validationErrors {
			name := fieldErr.Field()
			fields[i] = strings.ToLower(name[:1]) + name[1:]
		}
		return notifications.NewValidationError("missing required fields: %s", strings.Join(fields, ", "))
	}
	return notifications.NewValidationError("invalid request body: %s", err)
}

// Status returns basic information about the service.
// GET /
func (a *App) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": a.serviceName,
		"version": a.version,
	})
}

// ListNotifications returns the most recent notifications for a user along with the user's unread count.
// GET /notifications?userId=&userType=&limit=&unreadOnly=
func (a *App) ListNotifications(c *gin.Context) {
	req := &notifications.ListRequest{
		Owner: model.Owner{
			UserID:   c.Query("userId"),
			UserType: model.UserType(c.Query("userType")),
		},
	}

	if unreadOnlyStr := c.Query("unreadOnly"); unreadOnlyStr != "" {
		unreadOnly, err := strconv.ParseBool(unreadOnlyStr)
		if err != nil {
			errorResponse(c, notifications.NewValidationError("invalid unreadOnly: %s", unreadOnlyStr))
			return
		}
		req.UnreadOnly = unreadOnly
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			errorResponse(c, notifications.NewValidationError("invalid limit: %s", limitStr))
			return
		}
		req.Limit = limit
	}

	result, err := a.service.List(c.Request.Context(), req)
	if err != nil {
		errorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// createRequest is the body of a request to create a notification.
type createRequest struct {
	UserID   string                 `json:"userId"`
	Mode     string                 `json:"mode"`
	UserType string                 `json:"userType"`
	Type     string                 `json:"type" binding:"required"`
	Title    string                 `json:"title" binding:"required"`
	Message  string                 `json:"message" binding:"required"`
	Data     map[string]interface{} `json:"data"`
}

// recipient determines who the notification is addressed to. The user ID "all-admins" is equivalent to the
// broadcast-admins mode.
func (r *createRequest) recipient() model.Recipient {
	if r.UserID == model.AllAdmins || model.RecipientMode(r.Mode) == model.RecipientAllAdmins {
		return model.AdminsRecipient()
	}
	mode := model.RecipientMode(r.Mode)
	if mode == "" {
		mode = model.RecipientSingle
	}
	return model.Recipient{Mode: mode, UserID: r.UserID, UserType: model.UserType(r.UserType)}
}

// CreateNotification creates a notification for a user or for every administrator.
// POST /notifications
func (a *App) CreateNotification(c *gin.Context) {
	var body createRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		errorResponse(c, bindingError(err))
		return
	}

	created, err := a.service.Create(c.Request.Context(), &notifications.CreateRequest{
		Recipient: body.recipient(),
		Type:      body.Type,
		Title:     body.Title,
		Message:   body.Message,
		Data:      body.Data,
	})
	if err != nil {
		errorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(created)})
}

// markReadRequest is the body of a request to mark notifications as read.
type markReadRequest struct {
	NotificationIDs []string `json:"notificationIds"`
	MarkAll         bool     `json:"markAll"`
	UserID          string   `json:"userId"`
	UserType        string   `json:"userType"`
}

// MarkNotificationsRead marks either the listed notifications or all of a user's notifications as read.
// PUT /notifications/read
func (a *App) MarkNotificationsRead(c *gin.Context) {
	var body markReadRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		errorResponse(c, bindingError(err))
		return
	}

	req := &notifications.MarkReadRequest{
		IDs:     body.NotificationIDs,
		MarkAll: body.MarkAll,
		Owner:   model.Owner{UserID: body.UserID, UserType: model.UserType(body.UserType)},
	}
	count, err := a.service.MarkRead(c.Request.Context(), req)
	if err != nil {
		errorResponse(c, err)
		return
	}

	// Empty IDs are ignored, so the request only selects specific notifications if it names at least one.
	message := "All notifications marked as read"
	for _, id := range body.NotificationIDs {
		if id != "" {
			message = "Notifications marked as read"
			break
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": message, "count": count})
}

// PurgeNotifications deletes old notifications.
// DELETE /notifications/cleanup?days=&userId=&userType=
func (a *App) PurgeNotifications(c *gin.Context) {
	daysStr := c.DefaultQuery("days", strconv.Itoa(notifications.DefaultPurgeDays))
	days, err := strconv.Atoi(daysStr)
	if err != nil {
		errorResponse(c, notifications.NewValidationError("invalid days: %s", daysStr))
		return
	}

	req := &notifications.PurgeRequest{
		Days: days,
		Owner: model.Owner{
			UserID:   c.Query("userId"),
			UserType: model.UserType(c.Query("userType")),
		},
	}
	count, err := a.service.PurgeOlderThan(c.Request.Context(), req)
	if err != nil {
		errorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "count": count})
}

// registerAdminRequest is the body of a request to register an administrator.
type registerAdminRequest struct {
	Email string `json:"email" binding:"required"`
}

// RegisterAdmin adds an administrator to the set of users that receive notifications addressed to all administrators.
// POST /admins
func (a *App) RegisterAdmin(c *gin.Context) {
	var body registerAdminRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		errorResponse(c, bindingError(err))
		return
	}

	if err := a.service.RegisterAdmin(c.Request.Context(), body.Email); err != nil {
		errorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
