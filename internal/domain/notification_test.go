package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannel_IsValid(t *testing.T) {
	tests := []struct {
		name    string
		channel Channel
		want    bool
	}{
		{"valid push", ChannelPush, true},
		{"valid email", ChannelEmail, true},
		{"valid sms", ChannelSMS, true},
		{"invalid channel", Channel("invalid"), false},
		{"empty channel", Channel(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.channel.IsValid())
		})
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		want   bool
	}{
		{"pending is not terminal", StatusPending, false},
		{"queued is not terminal", StatusQueued, false},
		{"sent is terminal", StatusSent, true},
		{"failed is terminal", StatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.IsTerminal())
		})
	}
}

func TestNewNotification(t *testing.T) {
	userID := uuid.New()
	templateID := uuid.New()

	n := NewNotification(userID, "device-token-1", ChannelPush, &templateID)

	assert.NotNil(t, n)
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, userID, n.UserID)
	assert.Equal(t, "device-token-1", n.Recipient)
	assert.Equal(t, ChannelPush, n.Channel)
	assert.Equal(t, &templateID, n.TemplateID)
	assert.Equal(t, StatusPending, n.Status)
	assert.NotZero(t, n.CreatedAt)
	assert.NotZero(t, n.UpdatedAt)
}

func TestJob_Marshal(t *testing.T) {
	job := &Job{
		NotificationID: "3f1c8a6e-0000-0000-0000-000000000001",
		Recipient:      "device-token-1",
		RecipientType:  "token",
		Channel:        "push",
		Payload:        json.RawMessage(`{"title":"Hi","body":"There"}`),
		RetryCount:     2,
	}

	data, err := job.Marshal()
	require.NoError(t, err)

	var decoded Job
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, job.NotificationID, decoded.NotificationID)
	assert.Equal(t, job.RecipientType, decoded.RecipientType)
	assert.Equal(t, 2, decoded.RetryCount)
	assert.JSONEq(t, string(job.Payload), string(decoded.Payload))
}

func TestFailedQueueKey(t *testing.T) {
	assert.Equal(t, "notification_queue_failed", FailedQueueKey("notification_queue"))
}

func TestNewProviderError_Retryability(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"internal server error is retryable", 500, true},
		{"bad gateway is retryable", 502, true},
		{"too many requests is retryable", 429, true},
		{"unauthorized is retryable", 401, true},
		{"bad request is permanent", 400, false},
		{"not found is permanent", 404, false},
		{"forbidden is permanent", 403, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewProviderError(tt.status, "boom")
			assert.Equal(t, tt.retryable, err.Retryable)
			assert.Equal(t, !tt.retryable, IsTerminal(err))
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(ErrInvalidPayload))
	assert.True(t, IsTerminal(ErrUnsupported))
	assert.False(t, IsTerminal(TransportError{Err: errors.New("connection refused")}))
	assert.False(t, IsTerminal(errors.New("some other error")))
}
