package domain

import "time"

// ErrorLogEntry is an externally reported error recorded by the direct
// ingestion path. Unlike health events it carries a caller-supplied severity
// and may be linked to the incident it triggered or joined.
type ErrorLogEntry struct {
	ID         string         `json:"id"`
	SiteID     string         `json:"site_id"`
	Severity   Severity       `json:"severity"`
	ErrorType  string         `json:"type"`
	Message    string         `json:"message"`
	Path       *string        `json:"path,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Processed  bool           `json:"processed"`
	IncidentID *string        `json:"incident_id,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
