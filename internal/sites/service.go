package sites

import (
	"context"
	"fmt"
	"time"

	"github.com/rkotelnikov/sitewatch/internal/domain"
)

// DefaultDeploySuppressionMinutes is applied when a site is registered
// without an explicit suppression window.
const DefaultDeploySuppressionMinutes = 30

// Service implements site and check business logic.
type Service struct {
	repo Repository
}

// NewService creates a new sites service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateSiteInput holds data for registering a site.
type CreateSiteInput struct {
	ExternalID               string
	Name                     string
	PrimaryDomain            string
	DeploySuppressionMinutes *int
	Secret                   string
}

// CreateCheckInput holds data for adding a health check to a site.
type CreateCheckInput struct {
	SiteID         string
	Type           domain.CheckType
	Target         string
	Timeout        time.Duration
	ExpectedStatus int
	Enabled        *bool
}

// CreateSite registers a new monitored site. A non-empty secret is stored
// as a bcrypt hash; the plaintext is never persisted.
func (s *Service) CreateSite(ctx context.Context, input CreateSiteInput) (*domain.MonitoredSite, error) {
	site := &domain.MonitoredSite{
		ExternalID:               input.ExternalID,
		Name:                     input.Name,
		PrimaryDomain:            input.PrimaryDomain,
		Status:                   domain.SiteStatusActive,
		DeploySuppressionMinutes: DefaultDeploySuppressionMinutes,
	}

	if input.DeploySuppressionMinutes != nil {
		site.DeploySuppressionMinutes = *input.DeploySuppressionMinutes
	}

	if input.Secret != "" {
		hash, err := domain.HashSecret(input.Secret)
		if err != nil {
			return nil, fmt.Errorf("hash secret: %w", err)
		}
		site.SecretHash = &hash
	}

	if err := s.repo.CreateSite(ctx, site); err != nil {
		return nil, err
	}
	return site, nil
}

// GetSite returns a site by ID.
func (s *Service) GetSite(ctx context.Context, id string) (*domain.MonitoredSite, error) {
	return s.repo.GetSiteByID(ctx, id)
}

// ListSites returns sites matching the filter.
func (s *Service) ListSites(ctx context.Context, filter SiteFilter) ([]domain.MonitoredSite, error) {
	return s.repo.ListSites(ctx, filter)
}

// UpdateSiteStatus activates or suspends a site.
func (s *Service) UpdateSiteStatus(ctx context.Context, id string, status domain.SiteStatus) (*domain.MonitoredSite, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid site status: %s", status)
	}

	site, err := s.repo.GetSiteByID(ctx, id)
	if err != nil {
		return nil, err
	}

	site.Status = status
	if err := s.repo.UpdateSite(ctx, site); err != nil {
		return nil, err
	}
	return site, nil
}

// RecordDeploy marks a deploy for the site identified by its external ID.
// The caller must present the site's shared secret. The deploy timestamp
// starts the suppression window used by the classifier.
func (s *Service) RecordDeploy(ctx context.Context, externalID, secret string, deployedAt time.Time) (*domain.MonitoredSite, error) {
	site, err := s.repo.GetSiteByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}

	if !site.SecretMatches(secret) {
		return nil, ErrInvalidSecret
	}

	if deployedAt.IsZero() {
		deployedAt = time.Now().UTC()
	}

	if err := s.repo.SetLastDeployAt(ctx, site.ID, deployedAt); err != nil {
		return nil, err
	}

	site.LastDeployAt = &deployedAt
	return site, nil
}

// CreateCheck adds a health check to a site. The check type must be one of
// the known types; unknown types are rejected rather than stored.
func (s *Service) CreateCheck(ctx context.Context, input CreateCheckInput) (*domain.HealthCheck, error) {
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("invalid check type: %s", input.Type)
	}

	if _, err := s.repo.GetSiteByID(ctx, input.SiteID); err != nil {
		return nil, err
	}

	check := &domain.HealthCheck{
		SiteID:         input.SiteID,
		Type:           input.Type,
		Target:         input.Target,
		Timeout:        input.Timeout,
		ExpectedStatus: input.ExpectedStatus,
		Enabled:        true,
	}
	if input.ExpectedStatus == 0 {
		check.ExpectedStatus = 200
	}
	if input.Enabled != nil {
		check.Enabled = *input.Enabled
	}

	if err := s.repo.CreateCheck(ctx, check); err != nil {
		return nil, err
	}
	return check, nil
}

// ListChecks returns all checks configured for a site.
func (s *Service) ListChecks(ctx context.Context, siteID string) ([]domain.HealthCheck, error) {
	if _, err := s.repo.GetSiteByID(ctx, siteID); err != nil {
		return nil, err
	}
	return s.repo.ListChecksBySite(ctx, siteID)
}

// SetCheckEnabled toggles a check without deleting its event history.
func (s *Service) SetCheckEnabled(ctx context.Context, id string, enabled bool) error {
	return s.repo.SetCheckEnabled(ctx, id, enabled)
}

// ListEnabledChecks returns every probe-ready check across active sites.
func (s *Service) ListEnabledChecks(ctx context.Context) ([]EnabledCheck, error) {
	return s.repo.ListEnabledChecks(ctx)
}
