package incidents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rkotelnikov/sitewatch/internal/domain"
	"github.com/rkotelnikov/sitewatch/internal/pkg/ctxlog"
)

// ingestTriggerCheckType is the trigger key used by directly reported
// errors. It shares the open-incident invariant with health_api check
// failures, so a failing health API and a burst of reported errors fold into
// one incident.
const ingestTriggerCheckType = domain.CheckTypeHealthAPI

// ReportErrorInput holds a directly reported error.
type ReportErrorInput struct {
	SiteID     string
	Severity   domain.Severity
	ErrorType  string
	Message    string
	Path       *string
	Metadata   map[string]any
	OccurredAt *time.Time
	Secret     string
}

// ErrorReport is the outcome of one ingestion call.
type ErrorReport struct {
	ErrorLog        *domain.ErrorLogEntry
	IncidentCreated bool
	Incident        *domain.Incident
}

// ReportError records an externally reported error and, for sev-1/sev-2
// reports, links it to the site's open incident or opens one directly. This
// path bypasses the failure threshold and the deploy suppression window;
// callers reporting critical errors already decided the site is in trouble.
func (s *Service) ReportError(ctx context.Context, input ReportErrorInput) (*ErrorReport, error) {
	site, err := s.siteSrc.GetSiteByID(ctx, input.SiteID)
	if err != nil {
		return nil, err
	}

	if !site.SecretMatches(input.Secret) {
		return nil, ErrInvalidSecret
	}

	if site.Status != domain.SiteStatusActive {
		return nil, ErrSiteInactive
	}

	if !input.Severity.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSeverity, input.Severity)
	}

	entry := &domain.ErrorLogEntry{
		SiteID:    site.ID,
		Severity:  input.Severity,
		ErrorType: input.ErrorType,
		Message:   input.Message,
		Path:      input.Path,
		Metadata:  input.Metadata,
	}
	if input.OccurredAt != nil {
		entry.CreatedAt = *input.OccurredAt
	}

	if err := s.errorLogs.CreateErrorLog(ctx, entry); err != nil {
		return nil, fmt.Errorf("create error log: %w", err)
	}

	report := &ErrorReport{ErrorLog: entry}
	if input.Severity == domain.SeverityInfo {
		return report, nil
	}

	incident, created, err := s.linkOrOpen(ctx, site.ID, input)
	if err != nil {
		return nil, err
	}

	if err := s.errorLogs.LinkIncident(ctx, entry.ID, incident.ID); err != nil {
		// The error log and incident both exist; only the link is lost.
		ctxlog.FromContext(ctx).Error("failed to link error log to incident",
			"error_log_id", entry.ID, "incident_id", incident.ID, "error", err)
	} else {
		entry.Processed = true
		entry.IncidentID = &incident.ID
	}

	if created {
		s.notify(ctx, incident)
		recordIncidentCreated(incident.Severity, "ingestion")
	}

	report.IncidentCreated = created
	report.Incident = incident
	return report, nil
}

// linkOrOpen finds the open ingestion incident for the site or creates one
// from the caller-supplied fields, enforcing the same invariant as the
// classifier path.
func (s *Service) linkOrOpen(ctx context.Context, siteID string, input ReportErrorInput) (*domain.Incident, bool, error) {
	open, err := s.incidents.GetOpenIncident(ctx, siteID, ingestTriggerCheckType)
	if err == nil {
		return open, false, nil
	}
	if !errors.Is(err, ErrIncidentNotFound) {
		return nil, false, fmt.Errorf("get open incident: %w", err)
	}

	incident := &domain.Incident{
		SiteID:           siteID,
		Severity:         input.Severity,
		Status:           domain.IncidentStatusOpen,
		Title:            fmt.Sprintf("%s: %s", strings.ToUpper(string(input.Severity)), input.ErrorType),
		Description:      input.Message,
		TriggerCheckType: ingestTriggerCheckType,
		TriggerEventIDs:  []string{},
	}

	err = s.incidents.CreateIncident(ctx, incident)
	if errors.Is(err, ErrOpenIncidentExists) {
		open, err := s.incidents.GetOpenIncident(ctx, siteID, ingestTriggerCheckType)
		if err != nil {
			return nil, false, fmt.Errorf("get open incident after conflict: %w", err)
		}
		return open, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("create incident: %w", err)
	}
	return incident, true, nil
}
