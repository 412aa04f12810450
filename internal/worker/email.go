package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/dispatchd/notification-dispatcher/internal/config"
	"github.com/dispatchd/notification-dispatcher/internal/domain"
)

// EmailSender delivers email through the SendGrid v3 mail send API.
type EmailSender struct {
	client        *http.Client
	url           string
	apiKey        string
	notifications domain.NotificationRepository
	logger        *slog.Logger
}

// NewEmailSender creates an EmailSender.
func NewEmailSender(
	cfg config.EmailConfig,
	notifications domain.NotificationRepository,
	logger *slog.Logger,
) *EmailSender {
	return &EmailSender{
		client:        &http.Client{Timeout: cfg.Timeout},
		url:           cfg.Endpoint,
		apiKey:        cfg.APIKey,
		notifications: notifications,
		logger:        logger,
	}
}

// Send posts the job to the mail provider. 2xx writes status=sent; a
// non-2xx returns a ProviderError without a status write so the actor
// drives retry or dead-lettering.
func (s *EmailSender) Send(ctx context.Context, job *domain.Job) error {
	payload, err := domain.ParseEmailPayload(job.Payload)
	if err != nil {
		return err
	}

	if job.Sender == "" {
		return fmt.Errorf("%w: missing sender", domain.ErrInvalidPayload)
	}

	envelope := map[string]any{
		"personalizations": []map[string]any{
			{"to": []map[string]string{{"email": job.Recipient}}},
		},
		"from":    map[string]string{"email": job.Sender},
		"subject": payload.Subject,
		"content": []map[string]string{
			{"type": payload.ContentType, "value": payload.Content},
		},
	}
	if attachments := payload.Attachments(); len(attachments) > 0 {
		envelope["attachments"] = attachments
	}
	if replyTo := payload.ReplyTo(); replyTo != nil {
		envelope["reply_to"] = replyTo
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return domain.TransportError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return domain.TransportError{Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.NewProviderError(resp.StatusCode, string(respBody))
	}

	rows, err := s.notifications.UpdateStatus(ctx, job.NotificationID, domain.StatusSent)
	if err != nil {
		return fmt.Errorf("failed to update status after send: %w", err)
	}
	s.logger.Info("email sent",
		"notification_id", job.NotificationID,
		"rows_affected", rows,
	)
	return nil
}
