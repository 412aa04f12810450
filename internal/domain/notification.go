package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Channel represents the notification delivery channel
type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

func (c Channel) IsValid() bool {
	switch c {
	case ChannelPush, ChannelEmail, ChannelSMS:
		return true
	}
	return false
}

type Status string

const (
	StatusPending Status = "pending"
	StatusQueued  Status = "queued"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// IsTerminal reports whether the status is a delivery end state.
func (s Status) IsTerminal() bool {
	return s == StatusSent || s == StatusFailed
}

// Notification represents a row in the notifications table. Rows are
// inserted at ingestion with status pending and only ever move forward
// to sent or failed; they are never deleted.
type Notification struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	Recipient  string     `json:"recipient"`
	Channel    Channel    `json:"channel"`
	TemplateID *uuid.UUID `json:"template_id,omitempty"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func NewNotification(userID uuid.UUID, recipient string, channel Channel, templateID *uuid.UUID) *Notification {
	now := time.Now().UTC()
	return &Notification{
		ID:         uuid.New(),
		UserID:     userID,
		Recipient:  recipient,
		Channel:    channel,
		TemplateID: templateID,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Job is the descriptor placed on the work queue. The wire format is
// UTF-8 JSON; the same shape lands on the dead-letter queue when a job
// is poisoned or exhausted.
type Job struct {
	NotificationID string          `json:"notification_id"`
	Recipient      string          `json:"recipient"`
	RecipientType  string          `json:"recipient_type,omitempty"`
	Sender         string          `json:"sender,omitempty"`
	Channel        string          `json:"channel"`
	TemplateID     string          `json:"template_id,omitempty"`
	Payload        json.RawMessage `json:"payload"`
	RetryCount     int             `json:"retry_count"`
}

// Marshal serializes the job for the queue.
func (j *Job) Marshal() ([]byte, error) {
	return json.Marshal(j)
}

// NotificationRepository defines persistence for notification rows.
// UpdateStatus is idempotent: repeating a terminal write leaves the row
// unchanged and may report zero affected rows.
type NotificationRepository interface {
	Insert(ctx context.Context, n *Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*Notification, error)
	UpdateStatus(ctx context.Context, id string, status Status) (int64, error)
}

// Queue defines the FIFO work queue. Producers push to the tail,
// consumers pop from the head. Pop returns (nil, nil) when the queue
// is empty.
type Queue interface {
	Push(ctx context.Context, key string, value []byte) error
	Pop(ctx context.Context, key string) ([]byte, error)
	Depth(ctx context.Context, key string) (int64, error)
}

// FailedQueueKey derives the dead-letter queue key from the main key.
func FailedQueueKey(queueKey string) string {
	return queueKey + "_failed"
}

// StatusUpdate announces a delivery status transition to observers
// (the websocket hub). It carries the job's view of the notification,
// not the full row.
type StatusUpdate struct {
	NotificationID string    `json:"notification_id"`
	Channel        Channel   `json:"channel"`
	Status         Status    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
}

// StatusBroadcast receives delivery status transitions. Implementations
// must not block.
type StatusBroadcast func(update StatusUpdate)
