package worker

import (
	"context"
	"log/slog"

	"github.com/dispatchd/notification-dispatcher/internal/domain"
)

// SMSSender is a placeholder. Ingestion rejects the sms channel, so
// jobs only reach it by direct queue injection; it logs them and
// reports success without calling a provider or touching the row.
type SMSSender struct {
	logger *slog.Logger
}

// NewSMSSender creates the placeholder SMS sender.
func NewSMSSender(logger *slog.Logger) *SMSSender {
	return &SMSSender{logger: logger}
}

func (s *SMSSender) Send(_ context.Context, job *domain.Job) error {
	s.logger.Info("sms delivery not implemented, dropping job",
		"notification_id", job.NotificationID,
		"recipient", job.Recipient,
	)
	return nil
}
