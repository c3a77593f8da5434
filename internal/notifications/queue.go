// Package notifications delivers incident webhooks through a durable
// postgres-backed queue with retry.
package notifications

import (
	"context"
	"time"
)

// QueueStatus represents the status of a queue item.
type QueueStatus string

// Queue statuses.
const (
	QueueStatusPending    QueueStatus = "pending"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusSent       QueueStatus = "sent"
	QueueStatusFailed     QueueStatus = "failed"
)

// IncidentPayload is the webhook envelope delivered for an incident.
type IncidentPayload struct {
	IncidentID string `json:"incident_id"`
	SiteID     string `json:"site_id"`
	Severity   string `json:"severity"`
	IsNew      bool   `json:"is_new"`
}

// QueueItem represents one notification in the queue.
type QueueItem struct {
	ID            string
	IncidentID    string
	Payload       IncidentPayload
	Status        QueueStatus
	Attempts      int
	MaxAttempts   int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	SentAt        *time.Time
}

// QueueStats holds per-status queue item counts.
type QueueStats struct {
	Pending    int
	Processing int
	Sent       int
	Failed     int
}

// Repository defines queue persistence.
type Repository interface {
	Enqueue(ctx context.Context, item *QueueItem) error
	// FetchPending claims up to limit due pending items, moving them to
	// processing so concurrent workers never pick up the same item.
	FetchPending(ctx context.Context, limit int) ([]*QueueItem, error)
	MarkAsSent(ctx context.Context, id string) error
	MarkForRetry(ctx context.Context, id string, sendErr error, nextAttemptAt time.Time) error
	MarkAsFailed(ctx context.Context, id string, sendErr error) error
	QueueStats(ctx context.Context) (*QueueStats, error)
}

// Sender delivers one payload to the configured destination.
type Sender interface {
	Send(ctx context.Context, payload IncidentPayload) error
}
