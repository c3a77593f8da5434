package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rkotelnikov/sitewatch/internal/domain"
)

// Notifier enqueues incident notifications. Enqueueing only writes a queue
// row; delivery happens asynchronously in the worker, so a slow or dead
// webhook never blocks incident creation.
type Notifier struct {
	repo        Repository
	maxAttempts int
}

// NewNotifier creates a new notifier.
func NewNotifier(repo Repository, maxAttempts int) *Notifier {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Notifier{repo: repo, maxAttempts: maxAttempts}
}

// IncidentCreated enqueues a notification for a newly opened incident.
func (n *Notifier) IncidentCreated(ctx context.Context, incident *domain.Incident) error {
	item := &QueueItem{
		ID:         uuid.NewString(),
		IncidentID: incident.ID,
		Payload: IncidentPayload{
			IncidentID: incident.ID,
			SiteID:     incident.SiteID,
			Severity:   string(incident.Severity),
			IsNew:      true,
		},
		Status:      QueueStatusPending,
		MaxAttempts: n.maxAttempts,
	}

	if err := n.repo.Enqueue(ctx, item); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}
