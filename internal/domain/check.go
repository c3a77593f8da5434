package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// CheckType represents the kind of probe a health check performs.
type CheckType string

// Check types.
const (
	CheckTypeUptime    CheckType = "uptime"
	CheckTypeHealthAPI CheckType = "health_api"
	CheckTypeSSL       CheckType = "ssl"
	CheckTypeCMS       CheckType = "cms"
	CheckTypeForm      CheckType = "form"
	CheckTypeSEO       CheckType = "seo"
)

// IsValid checks if the check type belongs to the closed set.
func (t CheckType) IsValid() bool {
	_, ok := checkTraits[t]
	return ok
}

// traits drives per-check-type behavior: severity of incidents it opens,
// incident title/description templates, and whether the probe response body
// is interpreted as a JSON health envelope.
type traits struct {
	severity    Severity
	title       string
	description string
	jsonStatus  bool
}

var checkTraits = map[CheckType]traits{
	CheckTypeUptime: {
		severity:    SeverityCritical,
		title:       "SEV-1: Site Unreachable",
		description: "Automated uptime checks could not reach the site.",
	},
	CheckTypeHealthAPI: {
		severity:    SeverityCritical,
		title:       "SEV-1: Health API Failing",
		description: "The site health API is reporting errors.",
		jsonStatus:  true,
	},
	CheckTypeSSL: {
		severity:    SeverityCritical,
		title:       "SEV-1: SSL Certificate Problem",
		description: "The SSL certificate check is failing.",
	},
	CheckTypeCMS: {
		severity:    SeverityDegraded,
		title:       "SEV-2: CMS Errors Detected",
		description: "The CMS status endpoint is reporting errors.",
		jsonStatus:  true,
	},
	CheckTypeForm: {
		severity:    SeverityDegraded,
		title:       "SEV-2: Form Submissions Failing",
		description: "The form submission check is failing.",
	},
	CheckTypeSEO: {
		severity:    SeverityInfo,
		title:       "SEV-3: SEO Check Degraded",
		description: "The SEO check is failing.",
	},
}

// unknownTraits is the fallback for check types outside the closed set,
// e.g. historical events written before a type was removed.
var unknownTraits = traits{
	severity:    SeverityInfo,
	title:       "SEV-3: Check Failing",
	description: "A configured health check is failing.",
}

func (t CheckType) lookup() traits {
	if tr, ok := checkTraits[t]; ok {
		return tr
	}
	return unknownTraits
}

// IncidentSeverity returns the severity tier for incidents opened by this
// check type.
func (t CheckType) IncidentSeverity() Severity {
	return t.lookup().severity
}

// IncidentTitle returns the static incident title for this check type.
func (t CheckType) IncidentTitle() string {
	return t.lookup().title
}

// IncidentDescription returns the incident description for this check type,
// suffixed with the observed consecutive failure count.
func (t CheckType) IncidentDescription(consecutiveFailures int) string {
	return fmt.Sprintf("%s Observed %d consecutive failures.", t.lookup().description, consecutiveFailures)
}

// InterpretsJSONStatus reports whether probe responses for this check type
// carry a JSON body with a "status" field to interpret.
func (t CheckType) InterpretsJSONStatus() bool {
	return t.lookup().jsonStatus
}

// HealthCheck is a configured probe against a monitored site. Configuration
// only; never mutated by the polling or classification paths.
type HealthCheck struct {
	ID             string
	SiteID         string
	Type           CheckType
	Target         string
	Timeout        time.Duration
	ExpectedStatus int
	Enabled        bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// healthCheckJSON is the wire form of a check; timeouts travel as
// milliseconds.
type healthCheckJSON struct {
	ID             string    `json:"id"`
	SiteID         string    `json:"site_id"`
	Type           CheckType `json:"check_type"`
	Target         string    `json:"target"`
	TimeoutMS      int64     `json:"timeout_ms"`
	ExpectedStatus int       `json:"expected_status"`
	Enabled        bool      `json:"enabled"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// MarshalJSON implements json.Marshaler.
func (c HealthCheck) MarshalJSON() ([]byte, error) {
	return json.Marshal(healthCheckJSON{
		ID:             c.ID,
		SiteID:         c.SiteID,
		Type:           c.Type,
		Target:         c.Target,
		TimeoutMS:      c.Timeout.Milliseconds(),
		ExpectedStatus: c.ExpectedStatus,
		Enabled:        c.Enabled,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *HealthCheck) UnmarshalJSON(data []byte) error {
	var w healthCheckJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*c = HealthCheck{
		ID:             w.ID,
		SiteID:         w.SiteID,
		Type:           w.Type,
		Target:         w.Target,
		Timeout:        time.Duration(w.TimeoutMS) * time.Millisecond,
		ExpectedStatus: w.ExpectedStatus,
		Enabled:        w.Enabled,
		CreatedAt:      w.CreatedAt,
		UpdatedAt:      w.UpdatedAt,
	}
	return nil
}
