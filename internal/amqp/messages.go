package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"alice/internal/core"
)

// NotificationMessage is the wire form of a notification published to the
// notifications queue.
type NotificationMessage struct {
	Kind      string    `json:"kind"`
	Email     string    `json:"email"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Icon      string    `json:"icon,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Timestamp time.Time `json:"timestamp"`
}

// NewNotificationMessage wraps n, stamping the publish time.
func NewNotificationMessage(n core.Notification) *NotificationMessage {
	return &NotificationMessage{
		Kind:      string(n.Kind),
		Email:     n.Email,
		Title:     n.Title,
		Body:      n.Body,
		Icon:      n.Icon,
		CreatedAt: n.CreatedAt,
		Timestamp: time.Now(),
	}
}

// Notification converts the message back to the domain type.
func (m *NotificationMessage) Notification() core.Notification {
	return core.Notification{
		Kind:      core.NotificationKind(m.Kind),
		Email:     m.Email,
		Title:     m.Title,
		Body:      m.Body,
		Icon:      m.Icon,
		CreatedAt: m.CreatedAt,
	}
}

func (m *NotificationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// NotificationMessageFromJSON decodes a message; kind and title are required.
func NotificationMessageFromJSON(data []byte) (*NotificationMessage, error) {
	var msg NotificationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Kind == "" || msg.Title == "" {
		return nil, fmt.Errorf("notification message missing kind or title")
	}
	return &msg, nil
}
