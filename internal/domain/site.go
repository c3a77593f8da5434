package domain

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// SiteStatus represents the lifecycle state of a monitored site.
type SiteStatus string

// Site statuses.
const (
	SiteStatusActive    SiteStatus = "active"
	SiteStatusSuspended SiteStatus = "suspended"
)

// IsValid checks if the site status is valid.
func (s SiteStatus) IsValid() bool {
	return s == SiteStatusActive || s == SiteStatusSuspended
}

// MonitoredSite represents an externally hosted site under monitoring.
type MonitoredSite struct {
	ID                       string     `json:"id"`
	ExternalID               string     `json:"external_id"`
	Name                     string     `json:"name"`
	PrimaryDomain            string     `json:"primary_domain"`
	Status                   SiteStatus `json:"status"`
	LastDeployAt             *time.Time `json:"last_deploy_at"`
	DeploySuppressionMinutes int        `json:"deploy_suppression_minutes"`
	SecretHash               *string    `json:"-"`
	CreatedAt                time.Time  `json:"created_at"`
	UpdatedAt                time.Time  `json:"updated_at"`
}

// InDeployWindow reports whether the site is inside its deploy suppression
// window at the given moment. Incident creation is withheld inside the
// window; event recording is not.
func (s *MonitoredSite) InDeployWindow(now time.Time) bool {
	if s.LastDeployAt == nil || s.DeploySuppressionMinutes <= 0 {
		return false
	}
	return now.Before(s.LastDeployAt.Add(time.Duration(s.DeploySuppressionMinutes) * time.Minute))
}

// SecretMatches compares a caller-supplied shared secret against the site's
// stored bcrypt hash. A site without a configured secret accepts any caller.
func (s *MonitoredSite) SecretMatches(secret string) bool {
	if s.SecretHash == nil || *s.SecretHash == "" {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(*s.SecretHash), []byte(secret)) == nil
}

// HashSecret hashes a shared secret for storage.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
