// Package postgres provides the PostgreSQL implementation of the
// notification queue repository.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rkotelnikov/sitewatch/internal/notifications"
)

// Repository implements the notifications.Repository interface using
// PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Enqueue inserts a pending queue item.
func (r *Repository) Enqueue(ctx context.Context, item *notifications.QueueItem) error {
	query := `
		INSERT INTO notification_queue (id, incident_id, payload, status, max_attempts)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at, next_attempt_at
	`
	err := r.db.QueryRow(ctx, query,
		item.ID,
		item.IncidentID,
		item.Payload,
		item.Status,
		item.MaxAttempts,
	).Scan(&item.CreatedAt, &item.UpdatedAt, &item.NextAttemptAt)

	if err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

// FetchPending claims up to limit due pending items. The UPDATE with
// FOR UPDATE SKIP LOCKED moves the claimed rows to processing atomically so
// concurrent workers never deliver the same item twice.
func (r *Repository) FetchPending(ctx context.Context, limit int) ([]*notifications.QueueItem, error) {
	query := `
		UPDATE notification_queue
		SET status = 'processing', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM notification_queue
			WHERE status = 'pending' AND next_attempt_at <= NOW()
			ORDER BY next_attempt_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, incident_id, payload, status, attempts, max_attempts,
			next_attempt_at, last_error, created_at, updated_at, sent_at
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch pending notifications: %w", err)
	}
	defer rows.Close()

	items := make([]*notifications.QueueItem, 0)
	for rows.Next() {
		var item notifications.QueueItem
		err := rows.Scan(
			&item.ID,
			&item.IncidentID,
			&item.Payload,
			&item.Status,
			&item.Attempts,
			&item.MaxAttempts,
			&item.NextAttemptAt,
			&item.LastError,
			&item.CreatedAt,
			&item.UpdatedAt,
			&item.SentAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

// MarkAsSent finalizes a delivered item.
func (r *Repository) MarkAsSent(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE notification_queue
		SET status = 'sent', attempts = attempts + 1, sent_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	return nil
}

// MarkForRetry returns an item to pending with a future attempt time.
func (r *Repository) MarkForRetry(ctx context.Context, id string, sendErr error, nextAttemptAt time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE notification_queue
		SET status = 'pending', attempts = attempts + 1, last_error = $2,
			next_attempt_at = $3, updated_at = NOW()
		WHERE id = $1
	`, id, sendErr.Error(), nextAttemptAt)
	if err != nil {
		return fmt.Errorf("mark notification for retry: %w", err)
	}
	return nil
}

// MarkAsFailed finalizes an item that exhausted its attempts or hit a
// permanent error.
func (r *Repository) MarkAsFailed(ctx context.Context, id string, sendErr error) error {
	_, err := r.db.Exec(ctx, `
		UPDATE notification_queue
		SET status = 'failed', attempts = attempts + 1, last_error = $2, updated_at = NOW()
		WHERE id = $1
	`, id, sendErr.Error())
	if err != nil {
		return fmt.Errorf("mark notification failed: %w", err)
	}
	return nil
}

// QueueStats returns per-status item counts.
func (r *Repository) QueueStats(ctx context.Context) (*notifications.QueueStats, error) {
	rows, err := r.db.Query(ctx,
		"SELECT status, COUNT(*) FROM notification_queue GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := &notifications.QueueStats{}
	for rows.Next() {
		var (
			status notifications.QueueStatus
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan queue stats: %w", err)
		}
		switch status {
		case notifications.QueueStatusPending:
			stats.Pending = count
		case notifications.QueueStatusProcessing:
			stats.Processing = count
		case notifications.QueueStatusSent:
			stats.Sent = count
		case notifications.QueueStatusFailed:
			stats.Failed = count
		}
	}
	return stats, rows.Err()
}
