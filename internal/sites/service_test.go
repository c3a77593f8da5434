package sites

import (
	"context"
	"testing"
	"time"

	"github.com/rkotelnikov/sitewatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// mockRepository implements Repository for testing.
type mockRepository struct {
	sites         map[string]*domain.MonitoredSite
	checks        map[string]*domain.HealthCheck
	createSiteErr error
	lastDeploys   map[string]time.Time
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		sites:       make(map[string]*domain.MonitoredSite),
		checks:      make(map[string]*domain.HealthCheck),
		lastDeploys: make(map[string]time.Time),
	}
}

func (m *mockRepository) CreateSite(_ context.Context, site *domain.MonitoredSite) error {
	if m.createSiteErr != nil {
		return m.createSiteErr
	}
	site.ID = "site-" + site.ExternalID
	m.sites[site.ID] = site
	return nil
}

func (m *mockRepository) GetSiteByID(_ context.Context, id string) (*domain.MonitoredSite, error) {
	if s, ok := m.sites[id]; ok {
		return s, nil
	}
	return nil, ErrSiteNotFound
}

func (m *mockRepository) GetSiteByExternalID(_ context.Context, externalID string) (*domain.MonitoredSite, error) {
	for _, s := range m.sites {
		if s.ExternalID == externalID {
			return s, nil
		}
	}
	return nil, ErrSiteNotFound
}

func (m *mockRepository) ListSites(_ context.Context, _ SiteFilter) ([]domain.MonitoredSite, error) {
	list := make([]domain.MonitoredSite, 0, len(m.sites))
	for _, s := range m.sites {
		list = append(list, *s)
	}
	return list, nil
}

func (m *mockRepository) UpdateSite(_ context.Context, site *domain.MonitoredSite) error {
	if _, ok := m.sites[site.ID]; !ok {
		return ErrSiteNotFound
	}
	m.sites[site.ID] = site
	return nil
}

func (m *mockRepository) SetLastDeployAt(_ context.Context, siteID string, at time.Time) error {
	if _, ok := m.sites[siteID]; !ok {
		return ErrSiteNotFound
	}
	m.lastDeploys[siteID] = at
	return nil
}

func (m *mockRepository) CreateCheck(_ context.Context, check *domain.HealthCheck) error {
	check.ID = "check-" + string(check.Type)
	m.checks[check.ID] = check
	return nil
}

func (m *mockRepository) GetCheckByID(_ context.Context, id string) (*domain.HealthCheck, error) {
	if c, ok := m.checks[id]; ok {
		return c, nil
	}
	return nil, ErrCheckNotFound
}

func (m *mockRepository) ListChecksBySite(_ context.Context, siteID string) ([]domain.HealthCheck, error) {
	list := make([]domain.HealthCheck, 0)
	for _, c := range m.checks {
		if c.SiteID == siteID {
			list = append(list, *c)
		}
	}
	return list, nil
}

func (m *mockRepository) SetCheckEnabled(_ context.Context, id string, enabled bool) error {
	c, ok := m.checks[id]
	if !ok {
		return ErrCheckNotFound
	}
	c.Enabled = enabled
	return nil
}

func (m *mockRepository) ListEnabledChecks(_ context.Context) ([]EnabledCheck, error) {
	return nil, nil
}

func TestCreateSite_HashesSecret(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)

	site, err := service.CreateSite(context.Background(), CreateSiteInput{
		ExternalID:    "acme",
		Name:          "Acme Corp",
		PrimaryDomain: "acme.example.com",
		Secret:        "s3cret",
	})
	require.NoError(t, err)

	require.NotNil(t, site.SecretHash)
	assert.NotEqual(t, "s3cret", *site.SecretHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(*site.SecretHash), []byte("s3cret")))
	assert.Equal(t, domain.SiteStatusActive, site.Status)
	assert.Equal(t, DefaultDeploySuppressionMinutes, site.DeploySuppressionMinutes)
}

func TestCreateSite_NoSecret(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)

	site, err := service.CreateSite(context.Background(), CreateSiteInput{
		ExternalID:    "acme",
		Name:          "Acme Corp",
		PrimaryDomain: "acme.example.com",
	})
	require.NoError(t, err)
	assert.Nil(t, site.SecretHash)
	assert.True(t, site.SecretMatches("anything"))
}

func TestCreateSite_CustomSuppressionWindow(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)

	window := 45
	site, err := service.CreateSite(context.Background(), CreateSiteInput{
		ExternalID:               "acme",
		Name:                     "Acme Corp",
		PrimaryDomain:            "acme.example.com",
		DeploySuppressionMinutes: &window,
	})
	require.NoError(t, err)
	assert.Equal(t, 45, site.DeploySuppressionMinutes)
}

func TestRecordDeploy(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)

	site, err := service.CreateSite(context.Background(), CreateSiteInput{
		ExternalID:    "acme",
		Name:          "Acme Corp",
		PrimaryDomain: "acme.example.com",
		Secret:        "s3cret",
	})
	require.NoError(t, err)

	deployedAt := time.Now().UTC().Truncate(time.Second)
	updated, err := service.RecordDeploy(context.Background(), "acme", "s3cret", deployedAt)
	require.NoError(t, err)

	require.NotNil(t, updated.LastDeployAt)
	assert.Equal(t, deployedAt, *updated.LastDeployAt)
	assert.Equal(t, deployedAt, repo.lastDeploys[site.ID])
}

func TestRecordDeploy_WrongSecret(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)

	_, err := service.CreateSite(context.Background(), CreateSiteInput{
		ExternalID:    "acme",
		Name:          "Acme Corp",
		PrimaryDomain: "acme.example.com",
		Secret:        "s3cret",
	})
	require.NoError(t, err)

	_, err = service.RecordDeploy(context.Background(), "acme", "wrong", time.Now())
	assert.ErrorIs(t, err, ErrInvalidSecret)
	assert.Empty(t, repo.lastDeploys)
}

func TestRecordDeploy_UnknownSite(t *testing.T) {
	service := NewService(newMockRepository())

	_, err := service.RecordDeploy(context.Background(), "nope", "", time.Now())
	assert.ErrorIs(t, err, ErrSiteNotFound)
}

func TestRecordDeploy_ZeroTimeDefaultsToNow(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)

	_, err := service.CreateSite(context.Background(), CreateSiteInput{
		ExternalID:    "acme",
		Name:          "Acme Corp",
		PrimaryDomain: "acme.example.com",
	})
	require.NoError(t, err)

	before := time.Now().UTC()
	updated, err := service.RecordDeploy(context.Background(), "acme", "", time.Time{})
	require.NoError(t, err)

	require.NotNil(t, updated.LastDeployAt)
	assert.False(t, updated.LastDeployAt.Before(before))
}

func TestCreateCheck_RejectsUnknownType(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)

	site, err := service.CreateSite(context.Background(), CreateSiteInput{
		ExternalID:    "acme",
		Name:          "Acme Corp",
		PrimaryDomain: "acme.example.com",
	})
	require.NoError(t, err)

	_, err = service.CreateCheck(context.Background(), CreateCheckInput{
		SiteID: site.ID,
		Type:   domain.CheckType("dns"),
		Target: "/",
	})
	assert.Error(t, err)
	assert.Empty(t, repo.checks)
}

func TestCreateCheck_Defaults(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)

	site, err := service.CreateSite(context.Background(), CreateSiteInput{
		ExternalID:    "acme",
		Name:          "Acme Corp",
		PrimaryDomain: "acme.example.com",
	})
	require.NoError(t, err)

	check, err := service.CreateCheck(context.Background(), CreateCheckInput{
		SiteID: site.ID,
		Type:   domain.CheckTypeUptime,
		Target: "/",
	})
	require.NoError(t, err)

	assert.Equal(t, 200, check.ExpectedStatus)
	assert.True(t, check.Enabled)
}

func TestCreateCheck_UnknownSite(t *testing.T) {
	service := NewService(newMockRepository())

	_, err := service.CreateCheck(context.Background(), CreateCheckInput{
		SiteID: "missing",
		Type:   domain.CheckTypeUptime,
		Target: "/",
	})
	assert.ErrorIs(t, err, ErrSiteNotFound)
}

func TestUpdateSiteStatus(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)

	site, err := service.CreateSite(context.Background(), CreateSiteInput{
		ExternalID:    "acme",
		Name:          "Acme Corp",
		PrimaryDomain: "acme.example.com",
	})
	require.NoError(t, err)

	updated, err := service.UpdateSiteStatus(context.Background(), site.ID, domain.SiteStatusSuspended)
	require.NoError(t, err)
	assert.Equal(t, domain.SiteStatusSuspended, updated.Status)

	_, err = service.UpdateSiteStatus(context.Background(), site.ID, domain.SiteStatus("gone"))
	assert.Error(t, err)
}
