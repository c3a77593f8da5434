//go:build integration

package integration

import (
	"net/http"
	"testing"
	"time"

	"github.com/rkotelnikov/sitewatch/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reportResponse is the parsed error report response.
type reportResponse struct {
	Success         bool    `json:"success"`
	ErrorLogID      string  `json:"error_log_id"`
	IncidentCreated bool    `json:"incident_created"`
	IncidentID      *string `json:"incident_id"`
}

func reportError(t *testing.T, client *testutil.Client, body map[string]interface{}) reportResponse {
	t.Helper()

	resp, err := client.POST("/api/v1/errors/report", body)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result reportResponse
	testutil.DecodeJSON(t, resp, &result)
	return result
}

func TestReportError_CreatesIncidentImmediately(t *testing.T) {
	client := newTestClient(t)

	siteID, _ := createTestSite(t, client, "Payments Site", withSecret("report-secret"))
	authed := client.WithHeader("X-Site-Secret", "report-secret")

	result := reportError(t, authed, map[string]interface{}{
		"site_id":  siteID,
		"severity": "sev-2",
		"type":     "payment_failure",
		"message":  "Stripe charge declined for order 1042",
		"path":     "/checkout",
		"metadata": map[string]interface{}{"order_id": 1042},
	})

	assert.True(t, result.IncidentCreated)
	require.NotNil(t, result.IncidentID)
	assert.NotEmpty(t, result.ErrorLogID)

	resp, err := client.GET("/api/v1/incidents/" + *result.IncidentID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var incident incidentRecord
	testutil.DecodeJSON(t, resp, &incident)
	assert.Equal(t, "sev-2", incident.Severity)
	assert.Equal(t, "SEV-2: payment_failure", incident.Title)
	assert.Equal(t, "Stripe charge declined for order 1042", incident.Description)

	// The error log is linked and marked processed.
	var processed bool
	var linkedIncident *string
	err = testDB.QueryRow(t.Context(),
		"SELECT processed, incident_id FROM error_logs WHERE id = $1", result.ErrorLogID).
		Scan(&processed, &linkedIncident)
	require.NoError(t, err)
	assert.True(t, processed)
	require.NotNil(t, linkedIncident)
	assert.Equal(t, *result.IncidentID, *linkedIncident)

	// Delivery to the webhook.
	assert.Eventually(t, func() bool {
		for _, p := range webhookReceiver.Received() {
			if p.IncidentID == *result.IncidentID {
				return p.Severity == "sev-2" && p.IsNew
			}
		}
		return false
	}, 5*time.Second, 100*time.Millisecond)
}

func TestReportError_Sev3RecordsWithoutIncident(t *testing.T) {
	client := newTestClient(t)

	siteID, _ := createTestSite(t, client, "Noisy Site")

	result := reportError(t, client, map[string]interface{}{
		"site_id":  siteID,
		"severity": "sev-3",
		"type":     "slow_query",
		"message":  "listing query took 4.2s",
	})

	assert.False(t, result.IncidentCreated)
	assert.Nil(t, result.IncidentID)
	assert.Empty(t, listSiteIncidents(t, client, siteID))

	var processed bool
	err := testDB.QueryRow(t.Context(),
		"SELECT processed FROM error_logs WHERE id = $1", result.ErrorLogID).Scan(&processed)
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestReportError_DeduplicatesIntoOpenIncident(t *testing.T) {
	client := newTestClient(t)

	siteID, _ := createTestSite(t, client, "Repeating Site")

	first := reportError(t, client, map[string]interface{}{
		"site_id":  siteID,
		"severity": "sev-1",
		"type":     "database_down",
		"message":  "connection pool exhausted",
	})
	require.True(t, first.IncidentCreated)
	require.NotNil(t, first.IncidentID)

	second := reportError(t, client, map[string]interface{}{
		"site_id":  siteID,
		"severity": "sev-2",
		"type":     "database_down",
		"message":  "still failing",
	})

	// The second report links to the already open incident; its severity is
	// preserved from first creation.
	assert.False(t, second.IncidentCreated)
	require.NotNil(t, second.IncidentID)
	assert.Equal(t, *first.IncidentID, *second.IncidentID)

	incidents := listSiteIncidents(t, client, siteID)
	require.Len(t, incidents, 1)
	assert.Equal(t, "sev-1", incidents[0].Severity)
}

func TestReportError_WrongSecretRejected(t *testing.T) {
	client := newTestClientWithoutValidation()

	siteID, _ := createTestSite(t, newTestClient(t), "Locked Site", withSecret("correct"))

	resp, err := client.WithHeader("X-Site-Secret", "incorrect").
		POST("/api/v1/errors/report", map[string]interface{}{
			"site_id":  siteID,
			"severity": "sev-1",
			"type":     "database_down",
			"message":  "nope",
		})
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Nothing is recorded for an unauthenticated report.
	var count int
	err = testDB.QueryRow(t.Context(),
		"SELECT COUNT(*) FROM error_logs WHERE site_id = $1", siteID).Scan(&count)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestReportError_SuspendedSiteRejected(t *testing.T) {
	client := newTestClient(t)

	siteID, _ := createTestSite(t, client, "Retired Site")

	resp, err := client.PATCH("/api/v1/sites/"+siteID+"/status", map[string]string{"status": "suspended"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = newTestClientWithoutValidation().POST("/api/v1/errors/report", map[string]interface{}{
		"site_id":  siteID,
		"severity": "sev-1",
		"type":     "database_down",
		"message":  "ignored",
	})
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReportError_InvalidSeverityRejected(t *testing.T) {
	client := newTestClientWithoutValidation()

	siteID, _ := createTestSite(t, newTestClient(t), "Strict Site")

	resp, err := client.POST("/api/v1/errors/report", map[string]interface{}{
		"site_id":  siteID,
		"severity": "sev-9",
		"type":     "whatever",
		"message":  "bad tier",
	})
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
