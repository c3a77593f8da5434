// Package sites manages monitored sites and their health check definitions.
package sites

import (
	"context"
	"errors"
	"time"

	"github.com/rkotelnikov/sitewatch/internal/domain"
)

// Sentinel errors returned by the sites module.
var (
	ErrSiteNotFound  = errors.New("site not found")
	ErrCheckNotFound = errors.New("health check not found")
	ErrSiteExists    = errors.New("site with this external id already exists")
	ErrInvalidSecret = errors.New("invalid site secret")
)

// Repository defines the interface for site and check data operations.
type Repository interface {
	CreateSite(ctx context.Context, site *domain.MonitoredSite) error
	GetSiteByID(ctx context.Context, id string) (*domain.MonitoredSite, error)
	GetSiteByExternalID(ctx context.Context, externalID string) (*domain.MonitoredSite, error)
	ListSites(ctx context.Context, filter SiteFilter) ([]domain.MonitoredSite, error)
	UpdateSite(ctx context.Context, site *domain.MonitoredSite) error
	SetLastDeployAt(ctx context.Context, siteID string, at time.Time) error

	CreateCheck(ctx context.Context, check *domain.HealthCheck) error
	GetCheckByID(ctx context.Context, id string) (*domain.HealthCheck, error)
	ListChecksBySite(ctx context.Context, siteID string) ([]domain.HealthCheck, error)
	SetCheckEnabled(ctx context.Context, id string, enabled bool) error

	// ListEnabledChecks returns every enabled check of every active site,
	// joined with the owning site's name and domain for probe resolution.
	ListEnabledChecks(ctx context.Context) ([]EnabledCheck, error)
}

// SiteFilter represents filter criteria for listing sites.
type SiteFilter struct {
	Status *domain.SiteStatus
}

// EnabledCheck is a check joined with the site fields a probe needs.
type EnabledCheck struct {
	Check         domain.HealthCheck
	SiteName      string
	PrimaryDomain string
}
