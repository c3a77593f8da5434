// Package incidents classifies failing health events into deduplicated
// incidents and ingests directly reported errors.
package incidents

import (
	"context"
	"errors"

	"github.com/rkotelnikov/sitewatch/internal/domain"
)

// Sentinel errors returned by the incidents module.
var (
	ErrIncidentNotFound = errors.New("incident not found")
	// ErrOpenIncidentExists is returned when an insert collides with the
	// one-open-incident-per-(site, trigger check type) constraint. Callers
	// treat it as "merge into the existing incident".
	ErrOpenIncidentExists = errors.New("open incident already exists")
	ErrSiteInactive       = errors.New("site is not active")
	ErrInvalidSecret      = errors.New("invalid site secret")
	ErrInvalidSeverity    = errors.New("invalid severity")
)

// Repository defines the interface for incident data operations.
type Repository interface {
	CreateIncident(ctx context.Context, incident *domain.Incident) error
	GetIncidentByID(ctx context.Context, id string) (*domain.Incident, error)
	// GetOpenIncident returns the single open incident for
	// (site, trigger check type), or ErrIncidentNotFound.
	GetOpenIncident(ctx context.Context, siteID string, checkType domain.CheckType) (*domain.Incident, error)
	// AppendTriggerEvent adds an event to an open incident's trigger list,
	// refreshes the description and bumps updated_at.
	AppendTriggerEvent(ctx context.Context, incidentID, eventID, description string) error
	ListIncidentsBySite(ctx context.Context, siteID string, limit int) ([]domain.Incident, error)
}

// ErrorLogRepository defines the interface for error log persistence.
type ErrorLogRepository interface {
	CreateErrorLog(ctx context.Context, entry *domain.ErrorLogEntry) error
	// LinkIncident sets the incident reference on an error log and marks it
	// processed.
	LinkIncident(ctx context.Context, errorLogID, incidentID string) error
}

// SiteSource resolves sites for classification and ingestion.
type SiteSource interface {
	GetSiteByID(ctx context.Context, id string) (*domain.MonitoredSite, error)
}

// EventHistory supplies the recent event window for failure counting.
type EventHistory interface {
	ListRecentEvents(ctx context.Context, siteID string, checkType domain.CheckType, limit int) ([]domain.HealthEvent, error)
}

// Notifier is told about newly created incidents. Delivery is best effort;
// failures are logged by the caller and never surface.
type Notifier interface {
	IncidentCreated(ctx context.Context, incident *domain.Incident) error
}
