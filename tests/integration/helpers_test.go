//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/rkotelnikov/sitewatch/internal/testutil"
	"github.com/stretchr/testify/require"
)

// createTestSite registers a site and returns its ID and external ID. The
// site is suspended on cleanup so later poll cycles skip its checks.
func createTestSite(t *testing.T, client *testutil.Client, name string, opts ...siteOption) (id, externalID string) {
	t.Helper()

	externalID = testutil.RandomExternalID("site")
	payload := map[string]interface{}{
		"external_id":    externalID,
		"name":           name,
		"primary_domain": externalID + ".example.com",
	}

	for _, opt := range opts {
		opt(payload)
	}

	resp, err := client.POST("/api/v1/sites", payload)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var site struct {
		ID string `json:"id"`
	}
	testutil.DecodeJSON(t, resp, &site)

	t.Cleanup(func() {
		resp, err := client.WithoutValidation().PATCH("/api/v1/sites/"+site.ID+"/status",
			map[string]string{"status": "suspended"})
		if err == nil {
			_ = resp.Body.Close()
		}
	})

	return site.ID, externalID
}

type siteOption func(map[string]interface{})

func withSecret(secret string) siteOption {
	return func(m map[string]interface{}) {
		m["secret"] = secret
	}
}

func withSuppressionMinutes(minutes int) siteOption {
	return func(m map[string]interface{}) {
		m["deploy_suppression_minutes"] = minutes
	}
}

// createTestCheck adds an enabled check against an absolute target URL and
// returns the check ID.
func createTestCheck(t *testing.T, client *testutil.Client, siteID, checkType, target string) string {
	t.Helper()

	resp, err := client.POST("/api/v1/sites/"+siteID+"/checks", map[string]interface{}{
		"check_type": checkType,
		"target":     target,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var check struct {
		ID string `json:"id"`
	}
	testutil.DecodeJSON(t, resp, &check)
	return check.ID
}

// pollResult is the parsed poll cycle response.
type pollResult struct {
	Success   bool `json:"success"`
	ChecksRun int  `json:"checks_run"`
	Summary   struct {
		OK   int `json:"ok"`
		Warn int `json:"warn"`
		Fail int `json:"fail"`
	} `json:"summary"`
	Results []struct {
		CheckID  string `json:"check_id"`
		SiteName string `json:"site_name"`
		Result   string `json:"result"`
	} `json:"results"`
}

// runPoll triggers one polling cycle and returns the summary.
func runPoll(t *testing.T, client *testutil.Client) pollResult {
	t.Helper()

	resp, err := client.POST("/api/v1/monitor/poll", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result pollResult
	testutil.DecodeJSON(t, resp, &result)
	return result
}

// resultFor returns the poll outcome for one check, failing the test when
// the check did not run.
func (p pollResult) resultFor(t *testing.T, checkID string) string {
	t.Helper()
	for _, r := range p.Results {
		if r.CheckID == checkID {
			return r.Result
		}
	}
	t.Fatalf("check %s not present in poll results", checkID)
	return ""
}

// incidentRecord is the parsed incident body.
type incidentRecord struct {
	ID               string   `json:"id"`
	SiteID           string   `json:"site_id"`
	Severity         string   `json:"severity"`
	Status           string   `json:"status"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	TriggerCheckType string   `json:"trigger_check_type"`
	TriggerEventIDs  []string `json:"trigger_event_ids"`
}

// listSiteIncidents fetches all incidents recorded for a site.
func listSiteIncidents(t *testing.T, client *testutil.Client, siteID string) []incidentRecord {
	t.Helper()

	resp, err := client.GET("/api/v1/sites/" + siteID + "/incidents")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Incidents []incidentRecord `json:"incidents"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Incidents
}
