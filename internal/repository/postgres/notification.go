package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dispatchd/notification-dispatcher/internal/domain"
)

// Statement names match the SQL files the service was originally
// deployed with.
const (
	insertNoti = `
		INSERT INTO notifications (id, user_id, recipient, channel, template_id, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	updateNotificationStatus = `
		UPDATE notifications SET status = $1, updated_at = now() WHERE id = $2
	`

	selectNotification = `
		SELECT id, user_id, recipient, channel, template_id, status, created_at, updated_at
		FROM notifications
		WHERE id = $1
	`
)

// NotificationRepository implements domain.NotificationRepository using PostgreSQL
type NotificationRepository struct {
	db *DB
}

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(db *DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Insert creates a new notification row with its ingestion-time status.
func (r *NotificationRepository) Insert(ctx context.Context, n *domain.Notification) error {
	_, err := r.db.Pool.Exec(ctx, insertNoti,
		n.ID, n.UserID, n.Recipient, n.Channel, n.TemplateID, n.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// GetByID retrieves a notification by ID
func (r *NotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	n := &domain.Notification{}
	err := r.db.Pool.QueryRow(ctx, selectNotification, id).Scan(
		&n.ID, &n.UserID, &n.Recipient, &n.Channel, &n.TemplateID,
		&n.Status, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan notification: %w", err)
	}
	return n, nil
}

// UpdateStatus sets the status of a notification row and returns the
// affected row count. The id arrives as a string because delivery jobs
// and poisoned queue payloads carry string ids; an unparseable id is a
// zero-row no-op rather than an error so best-effort status writes
// stay best-effort.
func (r *NotificationRepository) UpdateStatus(ctx context.Context, id string, status domain.Status) (int64, error) {
	notiID, err := uuid.Parse(id)
	if err != nil {
		return 0, nil
	}

	result, err := r.db.Pool.Exec(ctx, updateNotificationStatus, status, notiID)
	if err != nil {
		return 0, fmt.Errorf("failed to update notification status: %w", err)
	}
	return result.RowsAffected(), nil
}
