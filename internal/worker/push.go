package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dispatchd/notification-dispatcher/internal/auth"
	"github.com/dispatchd/notification-dispatcher/internal/config"
	"github.com/dispatchd/notification-dispatcher/internal/domain"
)

// PushSender delivers push notifications through the FCM v1 API. All
// concurrent sends share one bearer token through the token manager;
// a 401 triggers a refresh and a single in-call retry.
type PushSender struct {
	client        *http.Client
	url           string
	tokens        *auth.TokenManager
	notifications domain.NotificationRepository
	logger        *slog.Logger
}

// NewPushSender creates a PushSender for the configured project.
func NewPushSender(
	cfg config.PushConfig,
	tokens *auth.TokenManager,
	notifications domain.NotificationRepository,
	logger *slog.Logger,
) *PushSender {
	return &PushSender{
		client: &http.Client{Timeout: cfg.Timeout},
		url: fmt.Sprintf("%s/projects/%s/messages:send",
			strings.TrimSuffix(cfg.Endpoint, "/"), cfg.ProjectID),
		tokens:        tokens,
		notifications: notifications,
		logger:        logger,
	}
}

// Send posts the job to FCM. 2xx writes status=sent; any other
// response (after the one 401 retry) writes status=failed and returns
// a ProviderError. Transport errors return without touching the row.
func (s *PushSender) Send(ctx context.Context, job *domain.Job) error {
	payload, err := domain.ParsePushPayload(job.Payload)
	if err != nil {
		return err
	}

	if job.RecipientType == "" {
		return fmt.Errorf("%w: missing recipient_type", domain.ErrInvalidPayload)
	}

	envelope := map[string]any{
		"message": map[string]any{
			job.RecipientType: job.Recipient,
			"notification": map[string]string{
				"title": payload.Title,
				"body":  payload.Body,
			},
		},
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	refreshed := false
	for {
		token, ok := s.tokens.Token()
		if !ok {
			return domain.ErrNoToken
		}

		status, respBody, err := s.post(ctx, body, token)
		if err != nil {
			return domain.TransportError{Err: err}
		}

		switch {
		case status == http.StatusUnauthorized && !refreshed:
			s.logger.Warn("push token rejected, refreshing",
				"notification_id", job.NotificationID,
			)
			if err := s.tokens.Refresh(ctx); err != nil {
				s.logger.Error("token refresh failed", "error", err)
			}
			refreshed = true
			continue

		case status >= 200 && status < 300:
			rows, err := s.notifications.UpdateStatus(ctx, job.NotificationID, domain.StatusSent)
			if err != nil {
				return fmt.Errorf("failed to update status after send: %w", err)
			}
			s.logger.Info("push notification sent",
				"notification_id", job.NotificationID,
				"rows_affected", rows,
			)
			return nil

		default:
			if _, uerr := s.notifications.UpdateStatus(ctx, job.NotificationID, domain.StatusFailed); uerr != nil {
				s.logger.Error("status update error", "error", uerr)
			}
			return domain.NewProviderError(status, string(respBody))
		}
	}
}

func (s *PushSender) post(ctx context.Context, body []byte, token string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, respBody, nil
}
