package services

import (
	"sort"
	"sync"
	"time"

	"domus/internal/models"
)

// maxInboxPerHousehold bounds memory; the oldest entries are dropped past it
const maxInboxPerHousehold = 500

// InboxService stores delivered in-app notifications per household. In-app
// delivery appends here, so the in-app channel cannot fail.
type InboxService struct {
	mu      sync.RWMutex
	inboxes map[string][]*models.Notification
}

// NewInboxService creates an empty inbox store
func NewInboxService() *InboxService {
	return &InboxService{
		inboxes: make(map[string][]*models.Notification),
	}
}

// Add appends a notification to its household inbox
func (s *InboxService) Add(notification *models.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inbox := append(s.inboxes[notification.HouseholdID], notification)
	if len(inbox) > maxInboxPerHousehold {
		inbox = inbox[len(inbox)-maxInboxPerHousehold:]
	}
	s.inboxes[notification.HouseholdID] = inbox
}

// List returns a household's notifications, newest first. unreadOnly filters
// to unread entries; limit <= 0 means no limit.
func (s *InboxService) List(householdID string, unreadOnly bool, limit int) []*models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Notification, 0, len(s.inboxes[householdID]))
	for _, n := range s.inboxes[householdID] {
		if unreadOnly && n.IsRead {
			continue
		}
		result = append(result, n)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// UnreadCount returns how many unread notifications a household has
func (s *InboxService) UnreadCount(householdID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.inboxes[householdID] {
		if !n.IsRead {
			count++
		}
	}
	return count
}

// MarkRead marks a single notification as read. Returns false when the
// notification does not exist for the household.
func (s *InboxService) MarkRead(householdID, notificationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.inboxes[householdID] {
		if n.ID == notificationID {
			if !n.IsRead {
				n.IsRead = true
				now := time.Now().UTC()
				n.ReadAt = &now
			}
			return true
		}
	}
	return false
}

// MarkAllRead marks every unread notification for a household as read and
// returns how many were updated
func (s *InboxService) MarkAllRead(householdID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := 0
	now := time.Now().UTC()
	for _, n := range s.inboxes[householdID] {
		if !n.IsRead {
			n.IsRead = true
			readAt := now
			n.ReadAt = &readAt
			updated++
		}
	}
	return updated
}
