package domain

import (
	"encoding/json"
	"time"
)

type NotificationType string

const (
	NotificationDocumentUpload NotificationType = "document_upload"
	NotificationQueueAdd       NotificationType = "queue_add"
	NotificationCheckStart     NotificationType = "check_start"
	NotificationCheckComplete  NotificationType = "check_complete"
)

type Notification struct {
	ID        int64            `json:"id"`
	Type      NotificationType `json:"type"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
	Read      bool             `json:"read"`
}

// NotificationSettings are the user's delivery preferences.
type NotificationSettings struct {
	EmailNotifications bool `json:"email_notifications" yaml:"email_notifications"`
	PushNotifications  bool `json:"push_notifications" yaml:"push_notifications"`
}

func (t NotificationType) Title() string {
	switch t {
	case NotificationDocumentUpload:
		return "New document"
	case NotificationQueueAdd:
		return "Added to queue"
	case NotificationCheckStart:
		return "Check started"
	case NotificationCheckComplete:
		return "Check complete"
	default:
		return "Notification"
	}
}

func UnreadCount(items []Notification) int {
	n := 0
	for _, item := range items {
		if !item.Read {
			n++
		}
	}
	return n
}

// UnmarshalJSON accepts timestamps with or without a zone offset.
func (n *Notification) UnmarshalJSON(data []byte) error {
	type plain Notification
	var raw struct {
		plain
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*n = Notification(raw.plain)
	n.Timestamp = parseBackendTime(raw.Timestamp)
	return nil
}
