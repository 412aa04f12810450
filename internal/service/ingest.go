package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dispatchd/notification-dispatcher/internal/domain"
)

// IngestService accepts notification requests, persists them and hands
// them to the delivery pipeline through the work queue.
type IngestService struct {
	repo     domain.NotificationRepository
	queue    domain.Queue
	queueKey string
	logger   *slog.Logger
}

// NewIngestService creates a new IngestService
func NewIngestService(
	repo domain.NotificationRepository,
	queue domain.Queue,
	queueKey string,
	logger *slog.Logger,
) *IngestService {
	return &IngestService{
		repo:     repo,
		queue:    queue,
		queueKey: queueKey,
		logger:   logger,
	}
}

// SendRequest is the ingestion payload for a single notification.
type SendRequest struct {
	UserID        string          `json:"user_id" validate:"required"`
	Recipient     string          `json:"recipient" validate:"required"`
	RecipientType string          `json:"recipient_type,omitempty"`
	Sender        string          `json:"sender,omitempty"`
	Channel       domain.Channel  `json:"channel" validate:"required"`
	TemplateID    string          `json:"template_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// SendResponse acknowledges queueing; the row itself stays pending
// until delivery writes a terminal status.
type SendResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Send validates the request, inserts a pending notifications row and
// pushes a job descriptor to the tail of the main queue. The insert
// happens before the push; if the push fails the row is left pending
// for the operator to reconcile.
func (s *IngestService) Send(ctx context.Context, req SendRequest) (*SendResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return nil, domain.NewValidationError("user_id", "must be a valid UUID")
	}

	var templateID *uuid.UUID
	if req.TemplateID != "" {
		id, err := uuid.Parse(req.TemplateID)
		if err != nil {
			return nil, domain.NewValidationError("template_id", "must be a valid UUID")
		}
		templateID = &id
	}

	notification := domain.NewNotification(userID, req.Recipient, req.Channel, templateID)
	if err := s.repo.Insert(ctx, notification); err != nil {
		return nil, fmt.Errorf("failed to persist notification: %w", err)
	}

	job := &domain.Job{
		NotificationID: notification.ID.String(),
		Recipient:      req.Recipient,
		RecipientType:  req.RecipientType,
		Sender:         req.Sender,
		Channel:        string(req.Channel),
		TemplateID:     req.TemplateID,
		Payload:        req.Payload,
		RetryCount:     0,
	}

	data, err := job.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize job: %w", err)
	}

	if err := s.queue.Push(ctx, s.queueKey, data); err != nil {
		s.logger.Error("queue push failed, row left pending",
			"notification_id", notification.ID,
			"error", err,
		)
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	s.logger.Info("notification queued",
		"notification_id", notification.ID,
		"channel", notification.Channel,
	)

	return &SendResponse{
		ID:     notification.ID.String(),
		Status: "queued",
	}, nil
}

// GetByID retrieves a notification row for status consultation.
func (s *IngestService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	return s.repo.GetByID(ctx, id)
}

// validateRequest applies the channel-shape and channel-required-field
// checks in order; the first failure wins.
func validateRequest(req SendRequest) error {
	if err := domain.ValidatePayload(req.Channel, req.Payload); err != nil {
		return err
	}

	switch req.Channel {
	case domain.ChannelPush:
		if req.RecipientType == "" {
			return domain.NewValidationError("recipient_type", "required for push notifications")
		}
	case domain.ChannelEmail:
		if req.Sender == "" {
			return domain.NewValidationError("sender", "required for email notifications")
		}
	}
	return nil
}
