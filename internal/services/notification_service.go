package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"domus/internal/models"
)

// deliveryAttempts is how many times each channel is tried before the
// router records a channel failure
const deliveryAttempts = 2

// RouteStatus is the terminal outcome of a Create call
type RouteStatus string

const (
	RouteDelivered RouteStatus = "delivered"
	RouteThrottled RouteStatus = "throttled"
)

// RouteResult reports what the router did with a request. Throttled is a
// normal outcome, not an error.
type RouteResult struct {
	Status       RouteStatus
	Notification *models.Notification
	Reason       string
}

// CreateNotificationRequest carries everything needed to build and route one
// notification. SourceID identifies the subject item for per-item throttling
// of expiry notifications.
type CreateNotificationRequest struct {
	HouseholdID string
	UserID      string
	Type        models.NotificationType
	Severity    models.NotificationSeverity
	Title       string
	Message     string
	SourceID    string
	Context     models.EventPayload
}

// NotificationRouter creates notifications, selects channels by severity,
// and drives delivery with a bounded retry per channel. The in-app channel
// is always selected and doubles as the forced fallback, so a created
// notification always lands somewhere the household can see it.
type NotificationRouter struct {
	debounce *DebounceManager
	bus      *EventBus
	inApp    *InAppChannel
	extra    []Channel
}

// NewNotificationRouter wires the router. extra holds the optional push and
// assistant channels; bus may be nil in tests.
func NewNotificationRouter(debounce *DebounceManager, bus *EventBus, inApp *InAppChannel, extra ...Channel) *NotificationRouter {
	return &NotificationRouter{
		debounce: debounce,
		bus:      bus,
		inApp:    inApp,
		extra:    extra,
	}
}

// Create routes one notification request end to end: throttle check, record
// creation, channel selection, delivery, and the notification.created event
func (r *NotificationRouter) Create(ctx context.Context, req CreateNotificationRequest) (*RouteResult, error) {
	if req.HouseholdID == "" {
		return nil, fmt.Errorf("notification request missing household ID")
	}

	if throttled, reason := r.checkThrottle(ctx, req); throttled {
		if m := GetMetrics(); m != nil {
			m.RecordNotificationThrottled()
		}
		log.Printf("🔕 [NOTIFY] throttled %s for household=%s item=%s", req.Type, req.HouseholdID, req.SourceID)
		return &RouteResult{Status: RouteThrottled, Reason: reason}, nil
	}

	notification := &models.Notification{
		ID:             uuid.NewString(),
		HouseholdID:    req.HouseholdID,
		UserID:         req.UserID,
		Type:           req.Type,
		Severity:       req.Severity,
		Title:          req.Title,
		Message:        req.Message,
		Context:        req.Context,
		DeliveryStatus: models.DeliveryPending,
		CreatedAt:      time.Now().UTC(),
	}

	r.deliver(ctx, notification)

	if m := GetMetrics(); m != nil {
		m.RecordNotificationCreated(string(notification.Severity))
	}

	if r.bus != nil {
		event := models.NewEvent("notification_router", notification.HouseholdID,
			models.NotificationCreatedPayload{Notification: *notification})
		if err := r.bus.Publish(event); err != nil {
			log.Printf("⚠️ [NOTIFY] failed to publish notification.created: %v", err)
		}
	}

	return &RouteResult{Status: RouteDelivered, Notification: notification}, nil
}

// checkThrottle applies the per-item expiry throttle. Store failures fail
// open: a duplicate reminder beats a silently missing one.
func (r *NotificationRouter) checkThrottle(ctx context.Context, req CreateNotificationRequest) (bool, string) {
	if req.Type != models.NotificationPerishableExpiry || req.SourceID == "" || r.debounce == nil {
		return false, ""
	}

	accept, err := r.debounce.AcceptExpiryNotification(ctx, req.HouseholdID, req.SourceID)
	if err != nil {
		log.Printf("⚠️ [NOTIFY] throttle check failed, allowing through: %v", err)
		return false, ""
	}
	if accept {
		return false, ""
	}
	return true, fmt.Sprintf("expiry notification for %s already sent within the throttle window", req.SourceID)
}

// selectChannels picks delivery channels for a notification. In-app is
// unconditional; push joins for high and urgent severities and for hardware
// disconnections; the assistant speaks only for urgent.
func (r *NotificationRouter) selectChannels(notification *models.Notification) []Channel {
	channels := []Channel{r.inApp}

	wantPush := notification.Severity == models.SeverityHigh ||
		notification.Severity == models.SeverityUrgent ||
		notification.Type == models.NotificationHardwareDisconnected
	wantAssistant := notification.Severity == models.SeverityUrgent

	for _, ch := range r.extra {
		switch ch.Name() {
		case models.ChannelPush:
			if wantPush {
				channels = append(channels, ch)
			}
		case models.ChannelAssistant:
			if wantAssistant {
				channels = append(channels, ch)
			}
		}
	}
	return channels
}

func (r *NotificationRouter) deliver(ctx context.Context, notification *models.Notification) {
	for _, ch := range r.selectChannels(notification) {
		notification.ChannelsAttempted = append(notification.ChannelsAttempted, ch.Name())
		if r.deliverWithRetry(ctx, ch, notification) {
			notification.ChannelsDelivered = append(notification.ChannelsDelivered, ch.Name())
		} else if m := GetMetrics(); m != nil {
			m.RecordDeliveryFailure(string(ch.Name()))
		}
	}

	// Every selected channel failed. Force the in-app fallback so the
	// notification is never lost; InAppChannel.Deliver cannot error.
	if len(notification.ChannelsDelivered) == 0 {
		log.Printf("⚠️ [NOTIFY] all channels failed for %s, forcing in-app fallback", notification.ID)
		_ = r.inApp.Deliver(ctx, notification)
		if !containsChannel(notification.ChannelsAttempted, models.ChannelInApp) {
			notification.ChannelsAttempted = append(notification.ChannelsAttempted, models.ChannelInApp)
		}
		notification.ChannelsDelivered = append(notification.ChannelsDelivered, models.ChannelInApp)
	}

	now := time.Now().UTC()
	notification.DeliveredAt = &now
	notification.DeliveryStatus = models.DeliveryDelivered
}

func (r *NotificationRouter) deliverWithRetry(ctx context.Context, ch Channel, notification *models.Notification) bool {
	var lastErr error
	for attempt := 1; attempt <= deliveryAttempts; attempt++ {
		if lastErr = ch.Deliver(ctx, notification); lastErr == nil {
			return true
		}
		log.Printf("⚠️ [NOTIFY] %s delivery attempt %d/%d failed for %s: %v",
			ch.Name(), attempt, deliveryAttempts, notification.ID, lastErr)
	}
	return false
}

func containsChannel(channels []models.NotificationChannel, target models.NotificationChannel) bool {
	for _, ch := range channels {
		if ch == target {
			return true
		}
	}
	return false
}
