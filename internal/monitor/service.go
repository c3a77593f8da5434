package monitor

import (
	"context"
	"sync"

	"github.com/rkotelnikov/sitewatch/internal/domain"
	"github.com/rkotelnikov/sitewatch/internal/pkg/ctxlog"
	"github.com/rkotelnikov/sitewatch/internal/probe"
	"golang.org/x/sync/errgroup"
)

// Service runs poll cycles.
type Service struct {
	checks     CheckSource
	events     EventRepository
	prober     Prober
	classifier FailureClassifier
	maxProbes  int
}

// NewService creates a new monitor service. maxProbes bounds how many probes
// run concurrently within one cycle.
func NewService(checks CheckSource, events EventRepository, prober Prober, classifier FailureClassifier, maxProbes int) *Service {
	if maxProbes <= 0 {
		maxProbes = 20
	}
	return &Service{
		checks:     checks,
		events:     events,
		prober:     prober,
		classifier: classifier,
		maxProbes:  maxProbes,
	}
}

// CheckOutcome is the per-check slice of a cycle summary.
type CheckOutcome struct {
	CheckID  string             `json:"check_id"`
	SiteName string             `json:"site_name"`
	Result   domain.CheckResult `json:"result"`
}

// CycleSummary aggregates one poll cycle.
type CycleSummary struct {
	ChecksRun int
	OK        int
	Warn      int
	Fail      int
	Results   []CheckOutcome
}

// RunCycle probes every enabled check of every active site and records one
// event per check. A persistence or classification failure for one check is
// logged and the cycle continues; the summary still counts the probe result.
func (s *Service) RunCycle(ctx context.Context) (*CycleSummary, error) {
	logger := ctxlog.FromContext(ctx)

	enabled, err := s.checks.ListEnabledChecks(ctx)
	if err != nil {
		return nil, err
	}

	summary := &CycleSummary{Results: make([]CheckOutcome, 0, len(enabled))}
	if len(enabled) == 0 {
		return summary, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxProbes)

	for _, ec := range enabled {
		g.Go(func() error {
			outcome := s.prober.Execute(gctx, probe.Descriptor{
				CheckID:        ec.Check.ID,
				SiteID:         ec.Check.SiteID,
				Type:           ec.Check.Type,
				Target:         ec.Check.Target,
				Timeout:        ec.Check.Timeout,
				ExpectedStatus: ec.Check.ExpectedStatus,
				BaseDomain:     ec.PrimaryDomain,
			})

			event := &domain.HealthEvent{
				SiteID:       ec.Check.SiteID,
				CheckID:      ec.Check.ID,
				CheckType:    ec.Check.Type,
				Result:       outcome.Result,
				Latency:      outcome.Latency,
				HTTPStatus:   outcome.HTTPStatus,
				ErrorMessage: outcome.ErrorMessage,
				RawPayload:   outcome.RawPayload,
			}

			if err := s.events.CreateEvent(gctx, event); err != nil {
				logger.Error("failed to persist health event",
					"check_id", ec.Check.ID, "site_id", ec.Check.SiteID, "error", err)
			} else if outcome.Result == domain.CheckResultFail {
				if err := s.classifier.ClassifyEvent(gctx, event); err != nil {
					logger.Error("failed to classify failing event",
						"event_id", event.ID, "site_id", event.SiteID, "error", err)
				}
			}

			mu.Lock()
			summary.ChecksRun++
			switch outcome.Result {
			case domain.CheckResultOK:
				summary.OK++
			case domain.CheckResultWarn:
				summary.Warn++
			case domain.CheckResultFail:
				summary.Fail++
			}
			summary.Results = append(summary.Results, CheckOutcome{
				CheckID:  ec.Check.ID,
				SiteName: ec.SiteName,
				Result:   outcome.Result,
			})
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summary, nil
}
