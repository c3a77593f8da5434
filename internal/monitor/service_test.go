package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rkotelnikov/sitewatch/internal/domain"
	"github.com/rkotelnikov/sitewatch/internal/probe"
	"github.com/rkotelnikov/sitewatch/internal/sites"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockCheckSource implements CheckSource for testing.
type mockCheckSource struct {
	checks []sites.EnabledCheck
	err    error
}

func (m *mockCheckSource) ListEnabledChecks(_ context.Context) ([]sites.EnabledCheck, error) {
	return m.checks, m.err
}

// mockEventRepository implements EventRepository for testing.
type mockEventRepository struct {
	mu        sync.Mutex
	events    []*domain.HealthEvent
	createErr map[string]error // keyed by check id
	nextID    int
}

func (m *mockEventRepository) CreateEvent(_ context.Context, event *domain.HealthEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.createErr[event.CheckID]; err != nil {
		return err
	}
	m.nextID++
	event.ID = fmt.Sprintf("event-%d", m.nextID)
	event.CreatedAt = time.Now()
	m.events = append(m.events, event)
	return nil
}

func (m *mockEventRepository) ListRecentEvents(_ context.Context, _ string, _ domain.CheckType, _ int) ([]domain.HealthEvent, error) {
	return nil, nil
}

// mockProber implements Prober for testing.
type mockProber struct {
	outcomes map[string]probe.Outcome // keyed by check id
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
}

func (m *mockProber) Execute(_ context.Context, d probe.Descriptor) probe.Outcome {
	n := m.inFlight.Add(1)
	for {
		seen := m.maxSeen.Load()
		if n <= seen || m.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.inFlight.Add(-1)

	if out, ok := m.outcomes[d.CheckID]; ok {
		return out
	}
	return probe.Outcome{Result: domain.CheckResultOK}
}

// mockClassifier implements FailureClassifier for testing.
type mockClassifier struct {
	mu       sync.Mutex
	eventIDs []string
	err      error
}

func (m *mockClassifier) ClassifyEvent(_ context.Context, event *domain.HealthEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventIDs = append(m.eventIDs, event.ID)
	return m.err
}

func enabledCheck(id, siteID, siteName string, ct domain.CheckType) sites.EnabledCheck {
	return sites.EnabledCheck{
		Check: domain.HealthCheck{
			ID:             id,
			SiteID:         siteID,
			Type:           ct,
			Target:         "/",
			ExpectedStatus: 200,
			Enabled:        true,
		},
		SiteName:      siteName,
		PrimaryDomain: siteName + ".example.com",
	}
}

func TestRunCycle_AggregatesResults(t *testing.T) {
	source := &mockCheckSource{checks: []sites.EnabledCheck{
		enabledCheck("c1", "s1", "alpha", domain.CheckTypeUptime),
		enabledCheck("c2", "s1", "alpha", domain.CheckTypeCMS),
		enabledCheck("c3", "s2", "beta", domain.CheckTypeSSL),
	}}
	repo := &mockEventRepository{}
	prober := &mockProber{outcomes: map[string]probe.Outcome{
		"c1": {Result: domain.CheckResultOK},
		"c2": {Result: domain.CheckResultWarn},
		"c3": {Result: domain.CheckResultFail},
	}}
	classifier := &mockClassifier{}

	service := NewService(source, repo, prober, classifier, 10)
	summary, err := service.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.ChecksRun)
	assert.Equal(t, 1, summary.OK)
	assert.Equal(t, 1, summary.Warn)
	assert.Equal(t, 1, summary.Fail)
	assert.Len(t, summary.Results, 3)
	assert.Len(t, repo.events, 3)
}

func TestRunCycle_NoEnabledChecks(t *testing.T) {
	service := NewService(&mockCheckSource{}, &mockEventRepository{}, &mockProber{}, &mockClassifier{}, 10)

	summary, err := service.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.ChecksRun)
	assert.Empty(t, summary.Results)
}

func TestRunCycle_CheckSourceError(t *testing.T) {
	source := &mockCheckSource{err: errors.New("db down")}
	service := NewService(source, &mockEventRepository{}, &mockProber{}, &mockClassifier{}, 10)

	_, err := service.RunCycle(context.Background())
	assert.Error(t, err)
}

func TestRunCycle_PersistFailureDoesNotAbortCycle(t *testing.T) {
	source := &mockCheckSource{checks: []sites.EnabledCheck{
		enabledCheck("c1", "s1", "alpha", domain.CheckTypeUptime),
		enabledCheck("c2", "s1", "alpha", domain.CheckTypeForm),
	}}
	repo := &mockEventRepository{createErr: map[string]error{"c1": errors.New("insert failed")}}
	prober := &mockProber{outcomes: map[string]probe.Outcome{
		"c1": {Result: domain.CheckResultFail},
		"c2": {Result: domain.CheckResultOK},
	}}
	classifier := &mockClassifier{}

	service := NewService(source, repo, prober, classifier, 10)
	summary, err := service.RunCycle(context.Background())
	require.NoError(t, err)

	// Both probes still counted; only the persisted event exists.
	assert.Equal(t, 2, summary.ChecksRun)
	assert.Equal(t, 1, summary.Fail)
	assert.Len(t, repo.events, 1)

	// Classification is skipped for events that failed to persist.
	assert.Empty(t, classifier.eventIDs)
}

func TestRunCycle_ClassifiesOnlyFailures(t *testing.T) {
	source := &mockCheckSource{checks: []sites.EnabledCheck{
		enabledCheck("c1", "s1", "alpha", domain.CheckTypeUptime),
		enabledCheck("c2", "s1", "alpha", domain.CheckTypeCMS),
		enabledCheck("c3", "s1", "alpha", domain.CheckTypeSEO),
	}}
	repo := &mockEventRepository{}
	prober := &mockProber{outcomes: map[string]probe.Outcome{
		"c1": {Result: domain.CheckResultFail},
		"c2": {Result: domain.CheckResultWarn},
		"c3": {Result: domain.CheckResultOK},
	}}
	classifier := &mockClassifier{}

	service := NewService(source, repo, prober, classifier, 10)
	_, err := service.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Len(t, classifier.eventIDs, 1)
}

func TestRunCycle_ClassifierErrorDoesNotAbortCycle(t *testing.T) {
	source := &mockCheckSource{checks: []sites.EnabledCheck{
		enabledCheck("c1", "s1", "alpha", domain.CheckTypeUptime),
	}}
	prober := &mockProber{outcomes: map[string]probe.Outcome{
		"c1": {Result: domain.CheckResultFail},
	}}
	classifier := &mockClassifier{err: errors.New("classification failed")}

	service := NewService(source, &mockEventRepository{}, prober, classifier, 10)
	summary, err := service.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Fail)
}

func TestRunCycle_RespectsConcurrencyLimit(t *testing.T) {
	checks := make([]sites.EnabledCheck, 0, 20)
	for i := 0; i < 20; i++ {
		checks = append(checks, enabledCheck(fmt.Sprintf("c%d", i), "s1", "alpha", domain.CheckTypeUptime))
	}
	source := &mockCheckSource{checks: checks}
	prober := &mockProber{delay: 10 * time.Millisecond}

	service := NewService(source, &mockEventRepository{}, prober, &mockClassifier{}, 3)
	_, err := service.RunCycle(context.Background())
	require.NoError(t, err)

	assert.LessOrEqual(t, prober.maxSeen.Load(), int32(3))
}
