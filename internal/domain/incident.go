package domain

import "time"

// Severity represents the priority tier of an incident.
type Severity string

// Severity tiers.
const (
	SeverityCritical Severity = "sev-1"
	SeverityDegraded Severity = "sev-2"
	SeverityInfo     Severity = "sev-3"
)

// IsValid checks if the severity is valid.
func (s Severity) IsValid() bool {
	return s == SeverityCritical || s == SeverityDegraded || s == SeverityInfo
}

// IncidentStatus represents the state of an incident.
type IncidentStatus string

// Incident statuses. Closing an incident happens outside the monitoring
// core; the classifier only ever opens or appends.
const (
	IncidentStatusOpen   IncidentStatus = "open"
	IncidentStatusClosed IncidentStatus = "closed"
)

// Incident is a deduplicated record of an ongoing problem for a site and
// trigger check type. At most one open incident exists per
// (site, trigger_check_type).
type Incident struct {
	ID               string         `json:"id"`
	SiteID           string         `json:"site_id"`
	Severity         Severity       `json:"severity"`
	Status           IncidentStatus `json:"status"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	TriggerCheckType CheckType      `json:"trigger_check_type"`
	TriggerEventIDs  []string       `json:"trigger_event_ids"`
	OpenedAt         time.Time      `json:"opened_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}
