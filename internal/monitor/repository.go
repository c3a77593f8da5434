// Package monitor runs poll cycles: it fans probes out over the enabled
// checks, records the resulting events and hands failures to the classifier.
package monitor

import (
	"context"

	"github.com/rkotelnikov/sitewatch/internal/domain"
	"github.com/rkotelnikov/sitewatch/internal/probe"
	"github.com/rkotelnikov/sitewatch/internal/sites"
)

// EventRepository defines event persistence used by the poller.
type EventRepository interface {
	CreateEvent(ctx context.Context, event *domain.HealthEvent) error
	ListRecentEvents(ctx context.Context, siteID string, checkType domain.CheckType, limit int) ([]domain.HealthEvent, error)
}

// CheckSource supplies the probe-ready checks for a cycle.
type CheckSource interface {
	ListEnabledChecks(ctx context.Context) ([]sites.EnabledCheck, error)
}

// Prober executes a single probe.
type Prober interface {
	Execute(ctx context.Context, d probe.Descriptor) probe.Outcome
}

// FailureClassifier decides whether a failing event opens an incident.
// Classification runs after the event is persisted; its errors never abort
// a poll cycle.
type FailureClassifier interface {
	ClassifyEvent(ctx context.Context, event *domain.HealthEvent) error
}
