package incidents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rkotelnikov/sitewatch/internal/domain"
	"github.com/rkotelnikov/sitewatch/internal/pkg/ctxlog"
)

// Config holds the classification thresholds.
type Config struct {
	// FailureThreshold is the minimum run of leading consecutive failures
	// required to open or extend an incident.
	FailureThreshold int
	// HistoryLimit is how many recent events the failure count looks at.
	HistoryLimit int
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 2
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 5
	}
	return c
}

// Service implements incident classification and error ingestion logic.
type Service struct {
	incidents Repository
	errorLogs ErrorLogRepository
	siteSrc   SiteSource
	history   EventHistory
	notifier  Notifier
	cfg       Config
	now       func() time.Time
}

// NewService creates a new incidents service.
func NewService(incidents Repository, errorLogs ErrorLogRepository, siteSrc SiteSource, history EventHistory, notifier Notifier, cfg Config) *Service {
	return &Service{
		incidents: incidents,
		errorLogs: errorLogs,
		siteSrc:   siteSrc,
		history:   history,
		notifier:  notifier,
		cfg:       cfg.withDefaults(),
		now:       time.Now,
	}
}

// ClassifyInput identifies the failing event to classify.
type ClassifyInput struct {
	SiteID    string
	CheckType domain.CheckType
	EventID   string
}

// Classification is the outcome of one classifier run.
type Classification struct {
	Suppressed          bool
	Reason              string
	IncidentCreated     bool
	Incident            *domain.Incident
	ConsecutiveFailures int
}

// Classify decides whether a failing event opens a new incident, extends an
// open one, or does nothing. The triggering event itself is already recorded
// by the poller; suppression and thresholds only gate incident writes.
func (s *Service) Classify(ctx context.Context, input ClassifyInput) (*Classification, error) {
	site, err := s.siteSrc.GetSiteByID(ctx, input.SiteID)
	if err != nil {
		return nil, err
	}

	if site.InDeployWindow(s.now()) {
		return &Classification{
			Suppressed: true,
			Reason:     "inside deploy suppression window",
		}, nil
	}

	events, err := s.history.ListRecentEvents(ctx, input.SiteID, input.CheckType, s.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("load event history: %w", err)
	}

	failures := leadingFailures(events)
	if failures < s.cfg.FailureThreshold {
		return &Classification{
			Reason:              fmt.Sprintf("%d consecutive failures, threshold is %d", failures, s.cfg.FailureThreshold),
			ConsecutiveFailures: failures,
		}, nil
	}

	incident, created, err := s.openOrExtend(ctx, site.ID, input.CheckType, input.EventID, failures)
	if err != nil {
		return nil, err
	}

	if created {
		s.notify(ctx, incident)
		recordIncidentCreated(incident.Severity, "classifier")
	}

	return &Classification{
		IncidentCreated:     created,
		Incident:            incident,
		ConsecutiveFailures: failures,
	}, nil
}

// ClassifyEvent adapts Classify for the poller, which hands over the full
// persisted event.
func (s *Service) ClassifyEvent(ctx context.Context, event *domain.HealthEvent) error {
	_, err := s.Classify(ctx, ClassifyInput{
		SiteID:    event.SiteID,
		CheckType: event.CheckType,
		EventID:   event.ID,
	})
	return err
}

// GetIncident returns an incident by ID.
func (s *Service) GetIncident(ctx context.Context, id string) (*domain.Incident, error) {
	return s.incidents.GetIncidentByID(ctx, id)
}

// ListIncidents returns the most recent incidents for a site.
func (s *Service) ListIncidents(ctx context.Context, siteID string, limit int) ([]domain.Incident, error) {
	if _, err := s.siteSrc.GetSiteByID(ctx, siteID); err != nil {
		return nil, err
	}
	return s.incidents.ListIncidentsBySite(ctx, siteID, limit)
}

// openOrExtend enforces the one-open-incident invariant: extend the open
// incident if there is one, otherwise create. A create that loses the race
// against a concurrent classifier run collides with the store's uniqueness
// constraint and retries as an extend.
func (s *Service) openOrExtend(ctx context.Context, siteID string, checkType domain.CheckType, eventID string, failures int) (*domain.Incident, bool, error) {
	description := checkType.IncidentDescription(failures)

	open, err := s.incidents.GetOpenIncident(ctx, siteID, checkType)
	if err == nil {
		if err := s.incidents.AppendTriggerEvent(ctx, open.ID, eventID, description); err != nil {
			return nil, false, fmt.Errorf("append trigger event: %w", err)
		}
		open.TriggerEventIDs = append(open.TriggerEventIDs, eventID)
		return open, false, nil
	}
	if !errors.Is(err, ErrIncidentNotFound) {
		return nil, false, fmt.Errorf("get open incident: %w", err)
	}

	incident := &domain.Incident{
		SiteID:           siteID,
		Severity:         checkType.IncidentSeverity(),
		Status:           domain.IncidentStatusOpen,
		Title:            checkType.IncidentTitle(),
		Description:      description,
		TriggerCheckType: checkType,
		TriggerEventIDs:  []string{eventID},
	}

	err = s.incidents.CreateIncident(ctx, incident)
	if errors.Is(err, ErrOpenIncidentExists) {
		open, err := s.incidents.GetOpenIncident(ctx, siteID, checkType)
		if err != nil {
			return nil, false, fmt.Errorf("get open incident after conflict: %w", err)
		}
		if err := s.incidents.AppendTriggerEvent(ctx, open.ID, eventID, description); err != nil {
			return nil, false, fmt.Errorf("append trigger event after conflict: %w", err)
		}
		open.TriggerEventIDs = append(open.TriggerEventIDs, eventID)
		return open, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("create incident: %w", err)
	}
	return incident, true, nil
}

func (s *Service) notify(ctx context.Context, incident *domain.Incident) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.IncidentCreated(ctx, incident); err != nil {
		ctxlog.FromContext(ctx).Error("failed to enqueue incident notification",
			"incident_id", incident.ID, "error", err)
	}
}

// leadingFailures counts the run of fail results from the newest event down,
// stopping at the first non-fail.
func leadingFailures(events []domain.HealthEvent) int {
	n := 0
	for _, e := range events {
		if e.Result != domain.CheckResultFail {
			break
		}
		n++
	}
	return n
}
