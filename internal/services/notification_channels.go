package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"domus/internal/models"
)

// Channel delivers a notification over one transport. Implementations must
// be safe for concurrent use.
type Channel interface {
	Name() models.NotificationChannel
	Deliver(ctx context.Context, notification *models.Notification) error
}

// deliveryLogger builds the structured JSON logger shared by the push and
// assistant channels. Falls back to stderr when the log file cannot be
// opened so deliveries are never silently dropped.
func deliveryLogger(logPath string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	if logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err == nil {
			file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err == nil {
				logger.SetOutput(file)
				return logger
			}
		}
		logger.Warnf("notification log %s unavailable, logging to stderr", logPath)
	}
	return logger
}

// InAppChannel appends to the household inbox. It cannot fail, which makes
// it the forced fallback when every other channel errors. Live WebSocket
// clients learn about the notification from the notification.created event
// the router publishes after delivery.
type InAppChannel struct {
	inbox *InboxService
}

// NewInAppChannel creates the in-app channel
func NewInAppChannel(inbox *InboxService) *InAppChannel {
	return &InAppChannel{inbox: inbox}
}

func (c *InAppChannel) Name() models.NotificationChannel {
	return models.ChannelInApp
}

func (c *InAppChannel) Deliver(_ context.Context, notification *models.Notification) error {
	c.inbox.Add(notification)
	return nil
}

// PushChannel records push deliveries to the structured delivery log. A
// shared limiter paces outbound sends so a burst of expiry findings cannot
// flood the provider.
type PushChannel struct {
	logger  *logrus.Logger
	limiter *rate.Limiter
}

// NewPushChannel creates the push channel writing to logPath
func NewPushChannel(logPath string) *PushChannel {
	return &PushChannel{
		logger:  deliveryLogger(logPath),
		limiter: rate.NewLimiter(rate.Limit(5), 10), // 5 sends/s, burst 10
	}
}

func (c *PushChannel) Name() models.NotificationChannel {
	return models.ChannelPush
}

func (c *PushChannel) Deliver(ctx context.Context, notification *models.Notification) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("push rate limit wait: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"channel":         "push",
		"notification_id": notification.ID,
		"household_id":    notification.HouseholdID,
		"type":            notification.Type,
		"severity":        notification.Severity,
		"title":           notification.Title,
	}).Info(notification.Message)
	return nil
}

// AssistantChannel hands the notification to the voice assistant surface,
// logging the utterance it would speak
type AssistantChannel struct {
	logger *logrus.Logger
}

// NewAssistantChannel creates the assistant channel writing to logPath
func NewAssistantChannel(logPath string) *AssistantChannel {
	return &AssistantChannel{logger: deliveryLogger(logPath)}
}

func (c *AssistantChannel) Name() models.NotificationChannel {
	return models.ChannelAssistant
}

func (c *AssistantChannel) Deliver(_ context.Context, notification *models.Notification) error {
	c.logger.WithFields(logrus.Fields{
		"channel":         "assistant",
		"notification_id": notification.ID,
		"household_id":    notification.HouseholdID,
		"severity":        notification.Severity,
		"utterance":       fmt.Sprintf("%s. %s", notification.Title, notification.Message),
	}).Info("assistant announcement queued")
	return nil
}
